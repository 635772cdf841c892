// Package audit orchestrates bulk content audits: skip policy, batch
// scheduling, retry-wrapped analysis, persistence, and cost accounting.
package audit

import (
	"time"

	"github.com/sells-group/content-pulse/internal/model"
)

// ShouldSkip reports whether an account was audited recently enough to be
// skipped. skipDays <= 0 disables skipping, and accounts with no prior
// audit are never skipped. An account audited exactly skipDays ago is due
// again.
func ShouldSkip(acct *model.Account, skipDays int, now time.Time) bool {
	if skipDays <= 0 {
		return false
	}
	if acct.LastAuditAt == nil {
		return false
	}
	elapsedDays := now.Sub(*acct.LastAuditAt).Hours() / 24
	return elapsedDays < float64(skipDays)
}
