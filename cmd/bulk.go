package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/content-pulse/internal/audit"
	"github.com/sells-group/content-pulse/internal/model"
	"github.com/sells-group/content-pulse/internal/progress"
	"github.com/sells-group/content-pulse/internal/resolve"
	"github.com/sells-group/content-pulse/internal/store"
)

var (
	bulkIDs      []string
	bulkLimit    int
	bulkSkipDays int
	bulkMethod   string
	bulkDryRun   bool
)

var bulkCmd = &cobra.Command{
	Use:   "bulk",
	Short: "Audit accounts in batches",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if cmd.Flags().Changed("skip-days") {
			cfg.Bulk.SkipDays = bulkSkipDays
		}
		if bulkMethod != "" {
			cfg.Analyzer.Method = bulkMethod
		}

		env, err := initRunner(ctx, "bulk")
		if err != nil {
			return err
		}
		defer env.Close()

		accounts, err := bulkTargets(ctx, env.Store, bulkIDs, bulkLimit)
		if err != nil {
			return err
		}
		if len(accounts) == 0 {
			fmt.Fprintln(os.Stderr, "No accounts to audit.")
			return nil
		}

		if bulkDryRun {
			formatDryRun(os.Stdout, accounts, env.Resolver, cfg.Bulk.SkipDays, time.Now())
			return nil
		}

		run, err := env.Store.CreateRun(ctx)
		if err != nil {
			return eris.Wrap(err, "create run")
		}
		run.Targets = len(accounts)

		result, err := env.Runner.Run(ctx, accounts, progress.NewLogReporter())
		if err != nil {
			run.Failed = len(accounts)
			recordRun(ctx, env.Store, run)
			return eris.Wrap(err, "bulk run")
		}

		run.Succeeded, run.Skipped, run.Failed = result.Counts()
		run.TotalCost = result.TotalCost
		recordRun(ctx, env.Store, run)

		formatBulkSummary(os.Stdout, accounts, result)

		zap.L().Info("bulk complete",
			zap.String("run_id", run.ID),
			zap.Int("succeeded", run.Succeeded),
			zap.Int("skipped", run.Skipped),
			zap.Int("failed", run.Failed),
			zap.Float64("total_cost", run.TotalCost),
		)
		return nil
	},
}

func init() {
	bulkCmd.Flags().StringSliceVar(&bulkIDs, "ids", nil, "audit only these account IDs (comma-separated)")
	bulkCmd.Flags().IntVar(&bulkLimit, "limit", 0, "max number of accounts to audit (0 = all)")
	bulkCmd.Flags().IntVar(&bulkSkipDays, "skip-days", 0, "override bulk.skip_days (0 audits everything)")
	bulkCmd.Flags().StringVar(&bulkMethod, "method", "", "override analyzer.method (feed, model, auto)")
	bulkCmd.Flags().BoolVar(&bulkDryRun, "dry-run", false, "show what would be audited without running")
	rootCmd.AddCommand(bulkCmd)
}

// bulkTargets loads the accounts to audit: the given IDs, or every account
// when none are specified. Limit applies after selection.
func bulkTargets(ctx context.Context, st store.Store, ids []string, limit int) ([]model.Account, error) {
	var accounts []model.Account

	if len(ids) > 0 {
		for _, id := range ids {
			acct, err := st.GetAccount(ctx, id)
			if err != nil {
				return nil, eris.Wrapf(err, "account %s", id)
			}
			accounts = append(accounts, *acct)
		}
	} else {
		var err error
		accounts, err = st.ListAccounts(ctx)
		if err != nil {
			return nil, eris.Wrap(err, "list accounts")
		}
	}

	if limit > 0 && len(accounts) > limit {
		accounts = accounts[:limit]
	}
	return accounts, nil
}

// recordRun writes the run-history row even when the run context was
// canceled mid-flight.
func recordRun(ctx context.Context, st store.Store, run *model.Run) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := st.FinishRun(ctx, run); err != nil {
		zap.L().Warn("record run history", zap.Error(err))
	}
}

// formatDryRun writes the audit plan: which accounts would be skipped, and
// which URL each remaining account would analyze.
func formatDryRun(out io.Writer, accounts []model.Account, resolver *resolve.Resolver, skipDays int, now time.Time) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ACCOUNT\tACTION\tURL")
	_, _ = fmt.Fprintln(w, "-------\t------\t---")

	audits := 0
	for i := range accounts {
		acct := &accounts[i]

		action := "audit"
		url := resolver.Fast(acct)
		switch {
		case audit.ShouldSkip(acct, skipDays, now):
			action = "skip"
			url = ""
		case url == "":
			url = "(needs discovery)"
		}
		if action == "audit" {
			audits++
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", displayName(acct), action, url)
	}

	_, _ = fmt.Fprintf(w, "\n%d of %d accounts would be audited\n", audits, len(accounts))
	_ = w.Flush()
}

// formatBulkSummary writes one row per account plus the run totals.
func formatBulkSummary(out io.Writer, accounts []model.Account, result *model.BulkResult) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ACCOUNT\tSTATUS\tPOSTS/MO\tCOST\tNOTE")
	_, _ = fmt.Fprintln(w, "-------\t------\t--------\t----\t----")

	for i := range accounts {
		acct := &accounts[i]
		o := result.Outcomes[acct.ID]

		status := "error"
		note := o.Error
		switch {
		case o.Skipped:
			status = "skipped"
			note = "audited recently"
		case o.Success:
			status = "success"
			if o.Audit != nil {
				note = string(o.Audit.Method)
			}
		}
		if len(note) > 60 {
			note = note[:57] + "..."
		}

		perMonth := "-"
		if o.Audit != nil && o.Audit.ContentDetected {
			perMonth = fmt.Sprintf("%.1f", o.Audit.PostsPerMonth)
		}
		costCol := "-"
		if o.Cost != nil {
			costCol = fmt.Sprintf("$%.4f", o.Cost.TotalCost)
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", displayName(acct), status, perMonth, costCol, note)
	}

	succeeded, skipped, failed := result.Counts()
	_, _ = fmt.Fprintf(w, "\n%d succeeded, %d skipped, %d failed\ttotal cost $%.4f\n",
		succeeded, skipped, failed, result.TotalCost)
	_ = w.Flush()
}

// displayName returns the account name truncated for table display.
func displayName(acct *model.Account) string {
	name := acct.Name
	if name == "" {
		name = acct.ID
	}
	if len(name) > 30 {
		name = name[:27] + "..."
	}
	return name
}
