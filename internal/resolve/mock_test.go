package resolve

import (
	"context"

	"github.com/sells-group/content-pulse/internal/model"
)

// mockPatcher implements AccountPatcher for testing.
type mockPatcher struct {
	patches map[string]model.AccountPatch
	err     error
}

func (m *mockPatcher) UpdateAccount(_ context.Context, id string, patch model.AccountPatch) error {
	if m.err != nil {
		return m.err
	}
	if m.patches == nil {
		m.patches = make(map[string]model.AccountPatch)
	}
	m.patches[id] = patch
	return nil
}

// mockDiscoverer implements Discoverer for testing.
type mockDiscoverer struct {
	url       string
	err       error
	callCount int
	lastName  string
}

func (m *mockDiscoverer) Discover(_ context.Context, name string) (string, error) {
	m.callCount++
	m.lastName = name
	if m.err != nil {
		return "", m.err
	}
	return m.url, nil
}
