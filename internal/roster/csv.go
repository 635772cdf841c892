package roster

import (
	"context"
	"encoding/csv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/content-pulse/internal/model"
)

// ImportCSV reads a roster CSV from source (a local path or an http(s)://
// or ftp:// URL), maps rows to accounts, and upserts them. The header row
// names the columns: a name-like column is required, website-like columns
// set the account website, CRM id columns set the CRM link, and every
// other column lands in the mapped-fields bag keyed by its snake_cased
// header ("Blog URL" becomes "blog_url"). Rows are deduplicated by
// website; rows without a name are skipped.
func ImportCSV(ctx context.Context, st AccountImporter, source string) (int64, error) {
	rc, err := openSource(ctx, source)
	if err != nil {
		return 0, err
	}
	defer rc.Close() //nolint:errcheck

	reader := csv.NewReader(rc)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return 0, eris.Wrap(err, "roster: read csv")
	}
	if len(records) < 2 {
		return 0, nil // header only or empty
	}

	headers := records[0]
	nameIdx, siteIdx, crmIdx := -1, -1, -1
	for i, h := range headers {
		switch fieldKey(h) {
		case "name", "account_name", "company", "company_name":
			if nameIdx < 0 {
				nameIdx = i
			}
		case "website", "url", "domain":
			if siteIdx < 0 {
				siteIdx = i
			}
		case "crm_id", "salesforce_id", "sf_id":
			if crmIdx < 0 {
				crmIdx = i
			}
		}
	}
	if nameIdx < 0 {
		return 0, eris.Errorf("roster: csv %s has no name column", source)
	}

	seen := make(map[string]struct{})
	var accounts []model.Account
	skipped := 0
	for _, row := range records[1:] {
		acct, ok := mapRow(headers, row, nameIdx, siteIdx, crmIdx)
		if !ok {
			skipped++
			continue
		}
		if acct.Website != "" {
			key := strings.ToLower(acct.Website)
			if _, dup := seen[key]; dup {
				skipped++
				continue
			}
			seen[key] = struct{}{}
		}
		accounts = append(accounts, acct)
	}

	n, err := st.ImportAccounts(ctx, accounts)
	if err != nil {
		return n, eris.Wrap(err, "roster: import accounts")
	}
	zap.L().Info("roster: csv imported",
		zap.String("source", source),
		zap.Int64("imported", n),
		zap.Int("skipped", skipped),
	)
	return n, nil
}

// mapRow builds an account from one CSV row. Rows without a name are
// rejected; short rows read as empty cells.
func mapRow(headers, row []string, nameIdx, siteIdx, crmIdx int) (model.Account, bool) {
	cell := func(i int) string {
		if i >= 0 && i < len(row) {
			return strings.TrimSpace(row[i])
		}
		return ""
	}

	acct := model.Account{Name: cell(nameIdx)}
	if acct.Name == "" {
		return model.Account{}, false
	}
	acct.Website = normalizeURL(cell(siteIdx))
	acct.CRMID = cell(crmIdx)

	for i, h := range headers {
		if i == nameIdx || i == siteIdx || i == crmIdx {
			continue
		}
		v := cell(i)
		if v == "" {
			continue
		}
		if acct.Fields == nil {
			acct.Fields = make(map[string]string)
		}
		acct.Fields[fieldKey(h)] = v
	}
	return acct, true
}
