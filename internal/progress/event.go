// Package progress defines the per-target status stream emitted by bulk
// audits. Reporters are invoked synchronously on every transition; callers
// may rely on per-target ordering but not on interleaving across targets.
package progress

import (
	"github.com/sells-group/content-pulse/internal/model"
)

// Status is one step in a target's lifecycle. Every target moves
// pending → running → exactly one of the terminal statuses.
type Status string

const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
	StatusSkipped Status = "skipped"
)

// Terminal reports whether no further transitions follow this status.
func (s Status) Terminal() bool {
	switch s {
	case StatusSuccess, StatusError, StatusSkipped:
		return true
	default:
		return false
	}
}

// Event is one status transition for one account.
type Event struct {
	AccountID string          `json:"account_id"`
	Status    Status          `json:"status"`
	Message   string          `json:"message,omitempty"`
	Cost      *model.CostInfo `json:"cost,omitempty"`
}
