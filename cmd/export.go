package main

import (
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/sells-group/content-pulse/internal/model"
)

var (
	exportOut     string
	exportHistory int
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export accounts and audit history to an XLSX workbook",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("export"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		accounts, err := st.ListAccounts(ctx)
		if err != nil {
			return eris.Wrap(err, "list accounts")
		}

		history := make(map[string][]model.AuditRecord, len(accounts))
		if exportHistory > 0 {
			for _, acct := range accounts {
				records, err := st.ListAudits(ctx, acct.ID, exportHistory)
				if err != nil {
					return eris.Wrapf(err, "list audits for %s", acct.ID)
				}
				history[acct.ID] = records
			}
		}

		f, err := buildWorkbook(accounts, history)
		if err != nil {
			return err
		}
		if err := f.Save(exportOut); err != nil {
			return eris.Wrap(err, "save workbook")
		}

		zap.L().Info("export complete",
			zap.String("out", exportOut),
			zap.Int("accounts", len(accounts)),
		)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportOut, "out", "content-pulse.xlsx", "output workbook path")
	exportCmd.Flags().IntVar(&exportHistory, "history", 10, "audit-history rows per account (0 omits the sheet)")
	rootCmd.AddCommand(exportCmd)
}

// buildWorkbook assembles the export: an Accounts sheet, plus an Audit
// History sheet when any history was loaded.
func buildWorkbook(accounts []model.Account, history map[string][]model.AuditRecord) (*xlsx.File, error) {
	f := xlsx.NewFile()

	sheet, err := f.AddSheet("Accounts")
	if err != nil {
		return nil, eris.Wrap(err, "add accounts sheet")
	}
	addRow(sheet, "ID", "Name", "Website", "CRM ID", "Posts/Month", "Last Audit", "Method", "Created")

	for i := range accounts {
		acct := &accounts[i]

		perMonth := ""
		if acct.PostsPerMonth != nil {
			perMonth = fmt.Sprintf("%.1f", *acct.PostsPerMonth)
		}
		method := ""
		if acct.LastAudit != nil {
			method = string(acct.LastAudit.Method)
		}

		addRow(sheet,
			acct.ID,
			acct.Name,
			acct.Website,
			acct.CRMID,
			perMonth,
			formatTimePtr(acct.LastAuditAt),
			method,
			acct.CreatedAt.Format("2006-01-02"),
		)
	}

	if len(history) == 0 {
		return f, nil
	}

	hs, err := f.AddSheet("Audit History")
	if err != nil {
		return nil, eris.Wrap(err, "add history sheet")
	}
	addRow(hs, "Account", "Date", "Content", "Posts", "Posts/Month", "Latest Post", "Method", "Feed URL")

	// Rows follow the account sheet's order, newest audit first per account.
	for i := range accounts {
		acct := &accounts[i]
		for _, rec := range history[acct.ID] {
			content := "no"
			if rec.Audit.ContentDetected {
				content = "yes"
			}
			addRow(hs,
				acct.Name,
				rec.CreatedAt.Format("2006-01-02 15:04"),
				content,
				fmt.Sprintf("%d", rec.Audit.PostCount),
				fmt.Sprintf("%.1f", rec.Audit.PostsPerMonth),
				formatTimePtr(rec.Audit.LatestPostAt),
				string(rec.Audit.Method),
				rec.Audit.FeedURL,
			)
		}
	}

	return f, nil
}

func addRow(sheet *xlsx.Sheet, values ...string) {
	row := sheet.AddRow()
	for _, v := range values {
		row.AddCell().Value = v
	}
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}
