package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/content-pulse/internal/model"
)

// ErrNotFound is returned when a requested account does not exist. Callers
// can test for it with eris.Is.
var ErrNotFound = eris.New("account not found")

// RunFilter specifies criteria for listing bulk runs.
type RunFilter struct {
	Since  time.Time `json:"since,omitempty"`
	Limit  int       `json:"limit,omitempty"`
	Offset int       `json:"offset,omitempty"`
}

// Store defines the persistence interface for accounts, audit history,
// and bulk run records.
type Store interface {
	// Accounts
	GetAccount(ctx context.Context, id string) (*model.Account, error)
	ListAccounts(ctx context.Context) ([]model.Account, error)
	UpsertAccount(ctx context.Context, acct *model.Account) error
	ImportAccounts(ctx context.Context, accounts []model.Account) (int64, error)
	UpdateAccount(ctx context.Context, id string, patch model.AccountPatch) error

	// Audit history. SaveAudit writes the history row and applies the
	// account patch (posts/month, last audit) together.
	SaveAudit(ctx context.Context, accountID string, audit *model.ContentAudit, at time.Time) error
	ListAudits(ctx context.Context, accountID string, limit int) ([]model.AuditRecord, error)

	// Run history
	CreateRun(ctx context.Context) (*model.Run, error)
	FinishRun(ctx context.Context, run *model.Run) error
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Lifecycle
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}
