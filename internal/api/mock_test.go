package api

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/content-pulse/internal/model"
	"github.com/sells-group/content-pulse/internal/progress"
	"github.com/sells-group/content-pulse/internal/store"
)

// Replace global logger with no-op for tests (suppress request log output).
func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

// fakeStore is an in-memory store.Store for handler tests.
type fakeStore struct {
	mu       sync.Mutex
	accounts map[string]model.Account
	audits   map[string][]model.AuditRecord
	runs     []model.Run
	finished []model.Run

	listErr    error
	pingErr    error
	createErr  error
	auditLimit int
	runFilter  store.RunFilter
	nextID     int
}

var _ store.Store = (*fakeStore)(nil)

func newFakeStore(accounts ...model.Account) *fakeStore {
	st := &fakeStore{
		accounts: make(map[string]model.Account),
		audits:   make(map[string][]model.AuditRecord),
	}
	for _, a := range accounts {
		st.accounts[a.ID] = a
	}
	return st
}

func (f *fakeStore) GetAccount(_ context.Context, id string) (*model.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.accounts[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &a, nil
}

func (f *fakeStore) ListAccounts(context.Context) ([]model.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]model.Account, 0, len(f.accounts))
	for _, a := range f.accounts {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeStore) UpsertAccount(_ context.Context, acct *model.Account) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if acct.ID == "" {
		f.nextID++
		acct.ID = fmt.Sprintf("acct-%02d", f.nextID)
	}
	f.accounts[acct.ID] = *acct
	return nil
}

func (f *fakeStore) ImportAccounts(_ context.Context, accounts []model.Account) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range accounts {
		f.accounts[a.ID] = a
	}
	return int64(len(accounts)), nil
}

func (f *fakeStore) UpdateAccount(context.Context, string, model.AccountPatch) error {
	return nil
}

func (f *fakeStore) SaveAudit(_ context.Context, accountID string, audit *model.ContentAudit, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.audits[accountID] = append(f.audits[accountID], model.AuditRecord{
		AccountID: accountID,
		Audit:     *audit,
		CreatedAt: at,
	})
	return nil
}

func (f *fakeStore) ListAudits(_ context.Context, accountID string, limit int) ([]model.AuditRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.auditLimit = limit
	return f.audits[accountID], nil
}

func (f *fakeStore) CreateRun(context.Context) (*model.Run, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	run := model.Run{ID: fmt.Sprintf("run-%02d", len(f.runs)+1), StartedAt: time.Now().UTC()}
	f.runs = append(f.runs, run)
	return &run, nil
}

func (f *fakeStore) FinishRun(_ context.Context, run *model.Run) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finished = append(f.finished, *run)
	return nil
}

func (f *fakeStore) ListRuns(_ context.Context, filter store.RunFilter) ([]model.Run, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runFilter = filter
	return f.runs, nil
}

func (f *fakeStore) Ping(context.Context) error    { return f.pingErr }
func (f *fakeStore) Migrate(context.Context) error { return nil }
func (f *fakeStore) Close() error                  { return nil }

func (f *fakeStore) finishedRuns() []model.Run {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Run(nil), f.finished...)
}

// fakeAuditor reports pending, running, and success for every account and
// returns one success outcome each, costPer dollars apiece.
type fakeAuditor struct {
	mu      sync.Mutex
	got     []model.Account
	err     error
	costPer float64
}

func (f *fakeAuditor) Run(_ context.Context, accounts []model.Account, reporter progress.Reporter) (*model.BulkResult, error) {
	f.mu.Lock()
	f.got = accounts
	f.mu.Unlock()

	if f.err != nil {
		return nil, f.err
	}

	result := &model.BulkResult{Outcomes: make(map[string]model.Outcome, len(accounts))}
	for _, a := range accounts {
		reporter.Report(progress.Event{AccountID: a.ID, Status: progress.StatusPending})
		reporter.Report(progress.Event{AccountID: a.ID, Status: progress.StatusRunning, Message: "Analyzing..."})
		cost := &model.CostInfo{TotalCost: f.costPer}
		reporter.Report(progress.Event{AccountID: a.ID, Status: progress.StatusSuccess, Cost: cost})
		result.Outcomes[a.ID] = model.Outcome{
			Success: true,
			Audit:   &model.ContentAudit{ContentDetected: true},
			Cost:    cost,
		}
		result.TotalCost += f.costPer
	}
	return result, nil
}

func (f *fakeAuditor) targets() []model.Account {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Account(nil), f.got...)
}
