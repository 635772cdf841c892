package progress

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rotisserie/eris"
)

// PrometheusReporter exports audit progress as Prometheus metrics. It owns
// the collectors for per-status event counts, in-flight targets, and spend.
type PrometheusReporter struct {
	events  *prometheus.CounterVec
	inFlight    prometheus.Gauge
	cost    prometheus.Counter
	tracker *targetTracker
}

// NewPrometheusReporter registers the collectors against the provided
// registry. A nil registry uses the default registerer.
func NewPrometheusReporter(reg prometheus.Registerer) (*PrometheusReporter, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	r := &PrometheusReporter{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pulse_audit_events_total",
			Help: "Progress events emitted, partitioned by status.",
		}, []string{"status"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pulse_audits_in_flight",
			Help: "Targets currently pending or running.",
		}),
		cost: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pulse_audit_cost_usd_total",
			Help: "Accumulated spend across successful audits.",
		}),
		tracker: newTargetTracker(),
	}
	for _, c := range []prometheus.Collector{r.events, r.inFlight, r.cost} {
		if err := reg.Register(c); err != nil {
			return nil, eris.Wrap(err, "progress: register collector")
		}
	}
	return r, nil
}

// Report implements Reporter.
func (r *PrometheusReporter) Report(e Event) {
	r.events.WithLabelValues(string(e.Status)).Inc()

	switch {
	case e.Status == StatusPending:
		if r.tracker.start(e.AccountID) {
			r.inFlight.Inc()
		}
	case e.Status.Terminal():
		if r.tracker.complete(e.AccountID) {
			r.inFlight.Dec()
		}
	}

	if e.Status == StatusSuccess && e.Cost != nil {
		r.cost.Add(e.Cost.TotalCost)
	}
}

// targetTracker guards the in-flight gauge against repeated transitions for
// the same account (a target emits running more than once on the discovery
// path).
type targetTracker struct {
	mu       sync.Mutex
	inFlight map[string]struct{}
}

func newTargetTracker() *targetTracker {
	return &targetTracker{inFlight: make(map[string]struct{})}
}

func (t *targetTracker) start(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.inFlight[id]; ok {
		return false
	}
	t.inFlight[id] = struct{}{}
	return true
}

func (t *targetTracker) complete(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.inFlight[id]; !ok {
		return false
	}
	delete(t.inFlight, id)
	return true
}
