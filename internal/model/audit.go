package model

import "time"

// AuditMethod identifies which engine produced a content audit.
type AuditMethod string

const (
	MethodFeed  AuditMethod = "feed"
	MethodModel AuditMethod = "model"
)

// Known reports true for methods a stored audit may legitimately carry.
func (m AuditMethod) Known() bool {
	return m == MethodFeed || m == MethodModel
}

// ContentAudit is the payload produced by one analysis of an account's
// content surface.
type ContentAudit struct {
	ContentDetected bool        `json:"content_detected"`
	PostCount       int         `json:"post_count"`
	PostsPerMonth   float64     `json:"posts_per_month"`
	LatestPostAt    *time.Time  `json:"latest_post_at,omitempty"`
	FeedURL         string      `json:"feed_url,omitempty"`
	Method          AuditMethod `json:"method"`
	Summary         string      `json:"summary,omitempty"`
	Model           string      `json:"model,omitempty"`
	Usage           *TokenUsage `json:"usage,omitempty"`
}

// TokenUsage tracks model token consumption for one audit. ReaderTokens
// counts Jina Reader tokens spent fetching the page.
type TokenUsage struct {
	InputTokens      int64 `json:"input_tokens"`
	OutputTokens     int64 `json:"output_tokens"`
	CacheWriteTokens int64 `json:"cache_write_tokens,omitempty"`
	CacheReadTokens  int64 `json:"cache_read_tokens,omitempty"`
	ReaderTokens     int   `json:"reader_tokens,omitempty"`
}

// CostInfo is the priced summary of one successful audit.
type CostInfo struct {
	InputTokens  int64   `json:"input_tokens"`
	OutputTokens int64   `json:"output_tokens"`
	TotalCost    float64 `json:"total_cost"`
}

// Outcome is the terminal result for one account in a bulk run. Exactly one
// of the three terminal shapes holds: success, success-as-skip, or error.
type Outcome struct {
	Success bool          `json:"success"`
	Skipped bool          `json:"skipped,omitempty"`
	Audit   *ContentAudit `json:"audit,omitempty"`
	Error   string        `json:"error,omitempty"`
	Cost    *CostInfo     `json:"cost,omitempty"`
}

// BulkResult aggregates a full bulk run: one outcome per account plus the
// summed cost of successful audits.
type BulkResult struct {
	Outcomes  map[string]Outcome `json:"outcomes"`
	TotalCost float64            `json:"total_cost"`
}

// Counts tallies outcomes by terminal status.
func (r *BulkResult) Counts() (succeeded, skipped, failed int) {
	for _, o := range r.Outcomes {
		switch {
		case o.Skipped:
			skipped++
		case o.Success:
			succeeded++
		default:
			failed++
		}
	}
	return succeeded, skipped, failed
}

// AuditRecord is one persisted audit-history row for an account.
type AuditRecord struct {
	ID        string       `json:"id"`
	AccountID string       `json:"account_id"`
	Audit     ContentAudit `json:"audit"`
	CreatedAt time.Time    `json:"created_at"`
}

// Run records one bulk invocation in the run history.
type Run struct {
	ID         string     `json:"id"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Targets    int        `json:"targets"`
	Succeeded  int        `json:"succeeded"`
	Skipped    int        `json:"skipped"`
	Failed     int        `json:"failed"`
	TotalCost  float64    `json:"total_cost"`
}
