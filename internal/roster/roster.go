// Package roster imports account rosters into the store from CSV sources
// (local file, http(s), ftp) and Notion databases.
package roster

import (
	"context"
	"strings"

	"github.com/sells-group/content-pulse/internal/model"
)

// AccountImporter is the slice of the store the roster importers need.
type AccountImporter interface {
	ImportAccounts(ctx context.Context, accounts []model.Account) (int64, error)
}

// normalizeURL ensures a bare domain gets an https:// scheme prefix.
func normalizeURL(domain string) string {
	domain = strings.TrimSpace(domain)
	if domain == "" {
		return ""
	}
	if !strings.Contains(domain, "://") {
		return "https://" + domain
	}
	return domain
}

// fieldKey converts a CSV header into a mapped-field key: lowercased,
// spaces collapsed to underscores. "Blog URL" becomes "blog_url".
func fieldKey(header string) string {
	key := strings.ToLower(strings.TrimSpace(header))
	return strings.Join(strings.Fields(key), "_")
}
