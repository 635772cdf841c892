package progress

import (
	"go.uber.org/zap"
)

// LogReporter writes every transition to the global zap logger.
type LogReporter struct{}

// NewLogReporter returns a reporter logging at info for terminal statuses
// and debug for pending/running.
func NewLogReporter() *LogReporter {
	return &LogReporter{}
}

// Report implements Reporter.
func (r *LogReporter) Report(e Event) {
	fields := []zap.Field{
		zap.String("account_id", e.AccountID),
		zap.String("status", string(e.Status)),
	}
	if e.Message != "" {
		fields = append(fields, zap.String("message", e.Message))
	}
	if e.Cost != nil {
		fields = append(fields, zap.Float64("cost_usd", e.Cost.TotalCost))
	}

	if e.Status.Terminal() {
		zap.L().Info("audit progress", fields...)
		return
	}
	zap.L().Debug("audit progress", fields...)
}
