package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/content-pulse/internal/cost"
	"github.com/sells-group/content-pulse/internal/model"
	"github.com/sells-group/content-pulse/internal/progress"
)

var (
	auditID    string
	auditName  string
	auditURL   string
	auditForce bool
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Audit one account's content publishing activity",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if auditURL != "" {
			return auditAdHoc(ctx)
		}
		if auditID == "" {
			return eris.New("either --id or --url is required")
		}

		if auditForce {
			// Zero skip window, so a recent audit never short-circuits the run.
			cfg.Bulk.SkipDays = 0
		}

		env, err := initRunner(ctx, "audit")
		if err != nil {
			return err
		}
		defer env.Close()

		acct, err := env.Store.GetAccount(ctx, auditID)
		if err != nil {
			return err
		}

		result, err := env.Runner.Run(ctx, []model.Account{*acct}, progress.NewLogReporter())
		if err != nil {
			return eris.Wrap(err, "audit run")
		}

		outcome := result.Outcomes[acct.ID]
		if outcome.Error != "" {
			zap.L().Warn("audit failed",
				zap.String("account", acct.Name),
				zap.String("error", outcome.Error),
			)
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(outcome)
	},
}

// auditAdHoc analyzes a URL directly without touching the store. Nothing is
// persisted; the audit and its cost go to stdout.
func auditAdHoc(ctx context.Context) error {
	if err := cfg.Validate("audit"); err != nil {
		return err
	}

	engine, err := buildAnalyzer()
	if err != nil {
		return err
	}

	name := auditName
	if name == "" {
		name = auditURL
	}

	started := time.Now()
	audit, err := engine.Analyze(ctx, name, auditURL)
	if err != nil {
		return eris.Wrap(err, "analyze")
	}

	rates := cost.DefaultRates()
	if cfg.Analyzer.RatesPath != "" {
		if rates, err = cost.LoadRates(cfg.Analyzer.RatesPath); err != nil {
			return eris.Wrap(err, "load rates")
		}
	}

	zap.L().Info("audit complete",
		zap.String("url", auditURL),
		zap.String("method", string(audit.Method)),
		zap.Bool("content_detected", audit.ContentDetected),
		zap.Duration("elapsed", time.Since(started)),
	)

	out := struct {
		Audit *model.ContentAudit `json:"audit"`
		Cost  *model.CostInfo     `json:"cost,omitempty"`
	}{
		Audit: audit,
		Cost:  cost.NewCalculator(rates).Audit(audit),
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func init() {
	auditCmd.Flags().StringVar(&auditID, "id", "", "account ID to audit")
	auditCmd.Flags().StringVar(&auditName, "name", "", "business name for ad-hoc analysis")
	auditCmd.Flags().StringVar(&auditURL, "url", "", "analyze this URL directly, bypassing the store")
	auditCmd.Flags().BoolVar(&auditForce, "force", false, "audit even if the account was audited recently")
	rootCmd.AddCommand(auditCmd)
}
