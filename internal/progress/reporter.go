package progress

// Reporter receives status transitions. Implementations must be safe for
// concurrent use (batch members report from separate goroutines) and must
// not panic; the audit core does not recover around Report calls.
type Reporter interface {
	Report(Event)
}

// ReporterFunc adapts a function to the Reporter interface.
type ReporterFunc func(Event)

// Report calls f(e).
func (f ReporterFunc) Report(e Event) { f(e) }

// Multi fans each event out to every reporter in order.
func Multi(reporters ...Reporter) Reporter {
	return ReporterFunc(func(e Event) {
		for _, r := range reporters {
			if r != nil {
				r.Report(e)
			}
		}
	})
}

// Nop returns a reporter that discards events.
func Nop() Reporter {
	return ReporterFunc(func(Event) {})
}
