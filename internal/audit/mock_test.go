package audit

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sells-group/content-pulse/internal/model"
	"github.com/sells-group/content-pulse/internal/progress"
)

var errFlaky = errors.New("upstream flaked")

// mockAuditStore implements AuditStore for testing.
type mockAuditStore struct {
	mu    sync.Mutex
	saved map[string]*model.ContentAudit
	err   error
}

func (m *mockAuditStore) SaveAudit(_ context.Context, accountID string, audit *model.ContentAudit, _ time.Time) error {
	if m.err != nil {
		return m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saved == nil {
		m.saved = make(map[string]*model.ContentAudit)
	}
	m.saved[accountID] = audit
	return nil
}

func (m *mockAuditStore) savedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.saved)
}

// fakeEngine implements analyzer.Analyzer. failFirst makes the first N
// calls per account fail; err makes every call fail.
type fakeEngine struct {
	mu        sync.Mutex
	audit     *model.ContentAudit
	err       error
	failFirst int
	attempts  map[string]int
}

func (f *fakeEngine) Analyze(_ context.Context, name, _ string) (*model.ContentAudit, error) {
	f.mu.Lock()
	if f.attempts == nil {
		f.attempts = make(map[string]int)
	}
	f.attempts[name]++
	n := f.attempts[name]
	f.mu.Unlock()

	if f.err != nil {
		return nil, f.err
	}
	if n <= f.failFirst {
		return nil, errFlaky
	}
	if f.audit != nil {
		cp := *f.audit
		return &cp, nil
	}
	return &model.ContentAudit{
		ContentDetected: true,
		PostCount:       6,
		PostsPerMonth:   2.0,
		Method:          model.MethodFeed,
		Summary:         "6 posts in feed, 2.0/month over the last 90 days",
	}, nil
}

func (f *fakeEngine) calls(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attempts[name]
}

func (f *fakeEngine) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, n := range f.attempts {
		total += n
	}
	return total
}

// recordingReporter captures every event, safe for concurrent use.
type recordingReporter struct {
	mu     sync.Mutex
	events []progress.Event
}

func (r *recordingReporter) Report(e progress.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recordingReporter) all() []progress.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]progress.Event, len(r.events))
	copy(out, r.events)
	return out
}

func (r *recordingReporter) forAccount(id string) []progress.Event {
	var out []progress.Event
	for _, e := range r.all() {
		if e.AccountID == id {
			out = append(out, e)
		}
	}
	return out
}

func (r *recordingReporter) terminals() map[string][]progress.Event {
	out := make(map[string][]progress.Event)
	for _, e := range r.all() {
		if e.Status.Terminal() {
			out[e.AccountID] = append(out[e.AccountID], e)
		}
	}
	return out
}

// mockDiscoverer implements resolve.Discoverer.
type mockDiscoverer struct {
	mu    sync.Mutex
	url   string
	err   error
	calls int
}

func (m *mockDiscoverer) Discover(_ context.Context, _ string) (string, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	return m.url, nil
}

// mockCRM implements CRMSyncer.
type mockCRM struct {
	mu    sync.Mutex
	err   error
	calls int
}

func (m *mockCRM) Sync(_ context.Context, _ *model.Account, _ *model.ContentAudit, _ time.Time) error {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	return m.err
}

func (m *mockCRM) syncCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
