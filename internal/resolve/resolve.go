// Package resolve determines which URL to analyze for an account.
//
// Resolution is layered: mapped dashboard fields first, then stored
// attributes, then enrichment data, and finally external discovery via
// Google Places. Discovered websites are written back to the store so the
// next run takes the fast path.
package resolve

import (
	"context"
	"strings"

	"github.com/sells-group/content-pulse/internal/model"
	"go.uber.org/zap"
)

// Strategy extracts a candidate URL from an account without I/O.
type Strategy struct {
	Name string
	Pick func(acct *model.Account) string
}

// Strategies is the ordered fast-path list. The first strategy yielding a
// non-empty value after trimming wins.
var Strategies = []Strategy{
	{
		Name: "mapped_blog_url",
		Pick: func(a *model.Account) string { return a.Fields[model.FieldBlogURL] },
	},
	{
		Name: "mapped_website",
		Pick: func(a *model.Account) string { return a.Fields[model.FieldWebsite] },
	},
	{
		Name: "account_website",
		Pick: func(a *model.Account) string { return a.Website },
	},
	{
		Name: "enrichment_website",
		Pick: func(a *model.Account) string {
			if a.Enrichment == nil {
				return ""
			}
			return a.Enrichment.Website
		},
	},
}

// Discoverer finds a website for a business by name.
type Discoverer interface {
	Discover(ctx context.Context, name string) (string, error)
}

// AccountPatcher is the store subset the resolver writes discovered
// websites through.
type AccountPatcher interface {
	UpdateAccount(ctx context.Context, id string, patch model.AccountPatch) error
}

// Resolver resolves an analyzable URL for an account.
type Resolver struct {
	store      AccountPatcher
	discoverer Discoverer
}

// NewResolver creates a resolver. Both collaborators are optional: a nil
// discoverer disables the slow path, a nil store disables write-through.
func NewResolver(store AccountPatcher, discoverer Discoverer) *Resolver {
	return &Resolver{store: store, discoverer: discoverer}
}

// Fast returns the first non-empty URL from the strategy list, without I/O.
// Returns "" when no strategy yields a value.
func (r *Resolver) Fast(acct *model.Account) string {
	for _, s := range Strategies {
		if url := strings.TrimSpace(s.Pick(acct)); url != "" {
			zap.L().Debug("resolve: fast path",
				zap.String("account", acct.ID),
				zap.String("strategy", s.Name),
			)
			return url
		}
	}
	return ""
}

// Resolve tries the fast path, then discovery. A discovered URL is patched
// onto the account so subsequent runs skip discovery; a write-through
// failure is logged but does not discard the URL. Returns "" when no URL
// can be found; resolution failure is never fatal here, only for the
// target's own path.
func (r *Resolver) Resolve(ctx context.Context, acct *model.Account) string {
	if url := r.Fast(acct); url != "" {
		return url
	}
	if r.discoverer == nil {
		return ""
	}

	url, err := r.discoverer.Discover(ctx, acct.Name)
	if err != nil {
		zap.L().Warn("resolve: discovery failed",
			zap.String("account", acct.ID),
			zap.String("name", acct.Name),
			zap.Error(err),
		)
		return ""
	}
	url = strings.TrimSpace(url)
	if url == "" {
		return ""
	}

	if r.store != nil {
		patch := model.AccountPatch{Website: &url}
		if err := r.store.UpdateAccount(ctx, acct.ID, patch); err != nil {
			zap.L().Warn("resolve: website write-through failed",
				zap.String("account", acct.ID),
				zap.Error(err),
			)
		}
	}

	zap.L().Info("resolve: discovered website",
		zap.String("account", acct.ID),
		zap.String("name", acct.Name),
		zap.String("website", url),
	)
	return url
}
