package roster

import (
	"context"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/content-pulse/internal/model"
	"github.com/sells-group/content-pulse/pkg/notion"
)

// ImportNotion pulls every page of a Notion database and upserts the rows
// as accounts. The database's title property becomes the account name; a
// website-like URL property becomes the website; text and select columns
// land in the mapped-fields bag. Pages without a name are skipped with a
// warning.
func ImportNotion(ctx context.Context, st AccountImporter, client notion.Client, dbID string) (int64, error) {
	pages, err := notion.QueryAll(ctx, client, dbID, nil)
	if err != nil {
		return 0, eris.Wrap(err, "roster: query notion database")
	}

	var accounts []model.Account
	skipped := 0
	for _, p := range pages {
		acct, err := parseAccountPage(p)
		if err != nil {
			zap.L().Warn("roster: skipping malformed notion page",
				zap.String("page_id", string(p.ID)),
				zap.Error(err),
			)
			skipped++
			continue
		}
		accounts = append(accounts, acct)
	}

	n, err := st.ImportAccounts(ctx, accounts)
	if err != nil {
		return n, eris.Wrap(err, "roster: import accounts")
	}
	zap.L().Info("roster: notion imported",
		zap.String("database", dbID),
		zap.Int64("imported", n),
		zap.Int("skipped", skipped),
	)
	return n, nil
}

func parseAccountPage(p notionapi.Page) (model.Account, error) {
	acct := model.Account{}
	setField := func(key, value string) {
		if value == "" {
			return
		}
		if acct.Fields == nil {
			acct.Fields = make(map[string]string)
		}
		acct.Fields[key] = value
	}

	for name, prop := range p.Properties {
		key := fieldKey(name)
		switch v := prop.(type) {
		case *notionapi.TitleProperty:
			acct.Name = plainText(v.Title)
		case *notionapi.URLProperty:
			switch key {
			case "website", "url", "domain":
				acct.Website = normalizeURL(v.URL)
			default:
				setField(key, normalizeURL(v.URL))
			}
		case *notionapi.RichTextProperty:
			switch key {
			case "crm_id", "salesforce_id", "sf_id":
				acct.CRMID = plainText(v.RichText)
			default:
				setField(key, plainText(v.RichText))
			}
		case *notionapi.SelectProperty:
			setField(key, v.Select.Name)
		case *notionapi.StatusProperty:
			setField(key, v.Status.Name)
		}
	}

	if acct.Name == "" {
		return acct, eris.New("roster: page has no name property")
	}
	return acct, nil
}

// plainText concatenates the plain_text values from a slice of RichText.
func plainText(rts []notionapi.RichText) string {
	var s string
	for _, rt := range rts {
		s += rt.PlainText
	}
	return s
}
