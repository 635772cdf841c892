package audit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/content-pulse/internal/analyzer"
	"github.com/sells-group/content-pulse/internal/cost"
	"github.com/sells-group/content-pulse/internal/model"
	"github.com/sells-group/content-pulse/internal/progress"
	"github.com/sells-group/content-pulse/internal/resilience"
	"github.com/sells-group/content-pulse/internal/resolve"
)

// noWebsiteMessage is the terminal message for accounts whose URL cannot
// be resolved even after discovery.
const noWebsiteMessage = "No website found (discovery failed)"

// Options configure a bulk audit run.
type Options struct {
	// BatchSize bounds how many accounts are analyzed concurrently.
	BatchSize int

	// RetryAttempts is the number of retries after a failed analysis.
	RetryAttempts int

	// RetryDelay is the base linear-backoff delay between retries.
	RetryDelay time.Duration

	// BatchPause separates consecutive batches.
	BatchPause time.Duration

	// SkipDays skips accounts audited within this many days. Zero disables.
	SkipDays int
}

// DefaultOptions returns the production tuning for bulk runs.
func DefaultOptions() Options {
	return Options{
		BatchSize:     5,
		RetryAttempts: 2,
		RetryDelay:    2 * time.Second,
		BatchPause:    time.Second,
		SkipDays:      7,
	}
}

// AuditStore is the store subset the runner writes through.
type AuditStore interface {
	SaveAudit(ctx context.Context, accountID string, audit *model.ContentAudit, at time.Time) error
}

// CRMSyncer pushes a successful audit into the CRM. Implementations are
// best-effort; a sync error never changes the target's outcome.
type CRMSyncer interface {
	Sync(ctx context.Context, acct *model.Account, audit *model.ContentAudit, at time.Time) error
}

// Runner executes bulk audits over a set of accounts.
type Runner struct {
	store    AuditStore
	resolver *resolve.Resolver
	engine   analyzer.Analyzer
	calc     *cost.Calculator
	crm      CRMSyncer
	opts     Options
	now      func() time.Time
}

// NewRunner creates a bulk audit runner.
func NewRunner(st AuditStore, resolver *resolve.Resolver, engine analyzer.Analyzer, calc *cost.Calculator, opts Options) *Runner {
	return &Runner{
		store:    st,
		resolver: resolver,
		engine:   engine,
		calc:     calc,
		opts:     opts,
		now:      time.Now,
	}
}

// WithCRM attaches a best-effort CRM syncer.
func (r *Runner) WithCRM(s CRMSyncer) *Runner {
	r.crm = s
	return r
}

// WithNow sets a fixed clock for testing.
func (r *Runner) WithNow(now func() time.Time) *Runner {
	r.now = now
	return r
}

// Run audits every account and returns one outcome per account plus the
// total cost of successful audits. Per-target failures are recorded as
// outcomes, never returned as errors; Run itself fails only on malformed
// setup. Every target reaches exactly one terminal status even when ctx
// dies mid-run.
func (r *Runner) Run(ctx context.Context, accounts []model.Account, reporter progress.Reporter) (*model.BulkResult, error) {
	if r.store == nil {
		return nil, eris.New("audit: store is required")
	}
	if r.resolver == nil {
		return nil, eris.New("audit: resolver is required")
	}
	if r.engine == nil {
		return nil, eris.New("audit: analyzer is required")
	}
	if reporter == nil {
		reporter = progress.Nop()
	}

	zap.L().Info("audit: bulk run starting",
		zap.Int("accounts", len(accounts)),
		zap.Int("batch_size", r.opts.BatchSize),
		zap.Int("skip_days", r.opts.SkipDays),
	)

	result := &model.BulkResult{Outcomes: make(map[string]model.Outcome, len(accounts))}
	var meter cost.Meter
	var mu sync.Mutex

	runBatches(ctx, accounts, r.opts.BatchSize, r.opts.BatchPause,
		func(acct *model.Account) {
			reporter.Report(progress.Event{AccountID: acct.ID, Status: progress.StatusPending})
		},
		func(ctx context.Context, acct *model.Account) {
			outcome := r.auditOne(ctx, acct, reporter, &meter)
			mu.Lock()
			result.Outcomes[acct.ID] = outcome
			mu.Unlock()
		},
	)

	result.TotalCost = meter.Total()

	succeeded, skipped, failed := result.Counts()
	zap.L().Info("audit: bulk run finished",
		zap.Int("succeeded", succeeded),
		zap.Int("skipped", skipped),
		zap.Int("failed", failed),
		zap.Float64("total_cost", result.TotalCost),
	)
	return result, nil
}

// auditOne takes a single account to its terminal status. It never panics
// or returns an error; failures become the outcome.
func (r *Runner) auditOne(ctx context.Context, acct *model.Account, reporter progress.Reporter, meter *cost.Meter) model.Outcome {
	now := r.now()

	if ShouldSkip(acct, r.opts.SkipDays, now) {
		reporter.Report(progress.Event{
			AccountID: acct.ID,
			Status:    progress.StatusSkipped,
			Message:   skipMessage(acct, now),
		})
		return model.Outcome{Success: true, Skipped: true, Audit: acct.LastAudit}
	}

	url := r.resolver.Fast(acct)
	if url == "" {
		reporter.Report(progress.Event{
			AccountID: acct.ID,
			Status:    progress.StatusRunning,
			Message:   "Discovering website...",
		})
		url = r.resolver.Resolve(ctx, acct)
	}
	if url == "" {
		reporter.Report(progress.Event{
			AccountID: acct.ID,
			Status:    progress.StatusError,
			Message:   noWebsiteMessage,
		})
		return model.Outcome{Error: noWebsiteMessage}
	}

	reporter.Report(progress.Event{
		AccountID: acct.ID,
		Status:    progress.StatusRunning,
		Message:   "Analyzing...",
	})

	cfg := resilience.RetryConfig{
		Retries: r.opts.RetryAttempts,
		Delay:   r.opts.RetryDelay,
		OnRetry: resilience.RetryLogger("analyzer", acct.ID),
	}
	audit, err := resilience.DoVal(ctx, cfg, func(ctx context.Context) (*model.ContentAudit, error) {
		return r.engine.Analyze(ctx, acct.Name, url)
	}, validateAudit)
	if err != nil {
		msg := err.Error()
		reporter.Report(progress.Event{AccountID: acct.ID, Status: progress.StatusError, Message: msg})
		return model.Outcome{Error: msg}
	}

	if err := r.store.SaveAudit(ctx, acct.ID, audit, now); err != nil {
		zap.L().Error("audit: save failed",
			zap.String("account", acct.ID),
			zap.Error(err),
		)
		msg := "analysis succeeded but saving failed: " + err.Error()
		reporter.Report(progress.Event{AccountID: acct.ID, Status: progress.StatusError, Message: msg})
		return model.Outcome{Error: msg}
	}

	ci := r.price(audit)
	if ci != nil {
		meter.Add(ci.TotalCost)
	}

	reporter.Report(progress.Event{
		AccountID: acct.ID,
		Status:    progress.StatusSuccess,
		Message:   audit.Summary,
		Cost:      ci,
	})

	if r.crm != nil {
		if err := r.crm.Sync(ctx, acct, audit, now); err != nil {
			zap.L().Warn("audit: crm sync failed",
				zap.String("account", acct.ID),
				zap.Error(err),
			)
		}
	}

	return model.Outcome{Success: true, Audit: audit, Cost: ci}
}

// validateAudit is the empty-result rule: a payload with no detected
// content, no posts, and no recognized method carries no information and
// counts as a failed attempt.
func validateAudit(audit *model.ContentAudit) error {
	if audit == nil {
		return eris.New("audit: analyzer returned nil")
	}
	if !audit.ContentDetected && audit.PostCount <= 0 && !audit.Method.Known() {
		return eris.New("audit: empty analysis result")
	}
	return nil
}

// price converts attached token usage to a cost record. Feed audits carry
// no usage and price to nil.
func (r *Runner) price(audit *model.ContentAudit) *model.CostInfo {
	if r.calc == nil {
		return nil
	}
	return r.calc.Audit(audit)
}

func skipMessage(acct *model.Account, now time.Time) string {
	days := int(now.Sub(*acct.LastAuditAt).Hours() / 24)
	if days == 1 {
		return "Last audited 1 day ago"
	}
	return fmt.Sprintf("Last audited %d days ago", days)
}
