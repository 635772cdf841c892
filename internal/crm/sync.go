// Package crm writes audit results back to the matching Salesforce account.
package crm

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/content-pulse/internal/model"
	"github.com/sells-group/content-pulse/pkg/salesforce"
)

// Custom Account fields the dashboard package defines in Salesforce.
const (
	fieldPostsPerMonth = "Posts_Per_Month__c"
	fieldLastAudit     = "Last_Content_Audit__c"
)

// AccountPatcher persists a resolved CRM id back to the local store.
type AccountPatcher interface {
	UpdateAccount(ctx context.Context, id string, patch model.AccountPatch) error
}

// Syncer pushes audit results to Salesforce.
type Syncer struct {
	sf    salesforce.Client
	store AccountPatcher
}

// NewSyncer returns a Syncer. store may be nil, in which case CRM ids
// resolved by website lookup are not persisted locally.
func NewSyncer(sf salesforce.Client, store AccountPatcher) *Syncer {
	return &Syncer{sf: sf, store: store}
}

// Sync patches the Salesforce account with the audit's posting cadence and
// audit date. When the local account carries no CRM id, the Salesforce
// record is matched by website and the id is written back to the store.
func (s *Syncer) Sync(ctx context.Context, acct *model.Account, audit *model.ContentAudit, at time.Time) error {
	crmID := acct.CRMID
	if crmID == "" {
		found, err := s.match(ctx, acct)
		if err != nil {
			return err
		}
		crmID = found
	}
	if crmID == "" {
		return eris.Errorf("crm: no salesforce match for account %s", acct.ID)
	}

	fields := map[string]any{
		fieldPostsPerMonth: audit.PostsPerMonth,
		fieldLastAudit:     at.UTC().Format("2006-01-02"),
	}
	if err := salesforce.UpdateAccount(ctx, s.sf, crmID, fields); err != nil {
		return eris.Wrap(err, "crm: sync audit")
	}

	zap.L().Debug("crm: account synced",
		zap.String("account", acct.ID),
		zap.String("crm_id", crmID),
	)
	return nil
}

// match finds the Salesforce account whose website contains the local
// account's domain and persists the id when a store is attached.
func (s *Syncer) match(ctx context.Context, acct *model.Account) (string, error) {
	domain := domainOf(acct.Website)
	if domain == "" {
		return "", nil
	}

	found, err := salesforce.FindAccountByWebsite(ctx, s.sf, "%"+domain+"%")
	if err != nil {
		return "", eris.Wrap(err, "crm: match account")
	}
	if found == nil {
		return "", nil
	}

	if s.store != nil {
		if err := s.store.UpdateAccount(ctx, acct.ID, model.AccountPatch{CRMID: &found.ID}); err != nil {
			zap.L().Warn("crm: failed to persist crm id",
				zap.String("account", acct.ID),
				zap.String("crm_id", found.ID),
				zap.Error(err),
			)
		}
	}
	return found.ID, nil
}

// domainOf reduces a website URL to its bare lowercase domain.
func domainOf(rawURL string) string {
	d := strings.TrimSpace(rawURL)
	d = strings.TrimPrefix(d, "https://")
	d = strings.TrimPrefix(d, "http://")
	d = strings.TrimPrefix(d, "www.")
	if i := strings.Index(d, "/"); i >= 0 {
		d = d[:i]
	}
	return strings.ToLower(d)
}
