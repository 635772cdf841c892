package roster

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/sells-group/content-pulse/internal/model"
)

func init() {
	// Replace global logger with no-op for tests (suppress warning output).
	zap.ReplaceGlobals(zap.NewNop())
}

// importRecorder captures accounts passed to ImportAccounts.
type importRecorder struct {
	mu       sync.Mutex
	accounts []model.Account
	err      error
}

func (r *importRecorder) ImportAccounts(_ context.Context, accounts []model.Account) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return 0, r.err
	}
	r.accounts = append(r.accounts, accounts...)
	return int64(len(accounts)), nil
}

func (r *importRecorder) imported() []model.Account {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.Account(nil), r.accounts...)
}
