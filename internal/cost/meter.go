package cost

import "sync"

// Meter accumulates spend across concurrently processed targets. Only
// successful audits carrying cost info should be added; callers enforce that.
type Meter struct {
	mu    sync.Mutex
	total float64
	adds  int
}

// Add increases the running total.
func (m *Meter) Add(usd float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.total += usd
	m.adds++
}

// Total returns the accumulated cost.
func (m *Meter) Total() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.total
}

// Adds returns how many contributions the meter has received.
func (m *Meter) Adds() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.adds
}
