package main

import (
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/content-pulse/internal/roster"
	"github.com/sells-group/content-pulse/pkg/notion"
)

var (
	importSource string
	importNotion bool
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import accounts from a CSV source or Notion roster",
	Long:  "Imports accounts from a CSV file (local path, http(s):// or ftp:// URL) or from a Notion roster database. Existing accounts are matched by website and updated in place.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("import"); err != nil {
			return err
		}
		if importSource == "" && !importNotion {
			return eris.New("either --source or --notion is required")
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		if importNotion {
			if cfg.Notion.Token == "" {
				return eris.New("notion token is required (PULSE_NOTION_TOKEN)")
			}
			if cfg.Notion.RosterDB == "" {
				return eris.New("notion roster DB ID is required (PULSE_NOTION_ROSTER_DB)")
			}

			imported, err := roster.ImportNotion(ctx, st, notion.NewClient(cfg.Notion.Token), cfg.Notion.RosterDB)
			if err != nil {
				return eris.Wrap(err, "import notion")
			}

			zap.L().Info("import complete",
				zap.Int64("imported", imported),
				zap.String("source", "notion"),
			)
			return nil
		}

		imported, err := roster.ImportCSV(ctx, st, importSource)
		if err != nil {
			return eris.Wrap(err, "import csv")
		}

		zap.L().Info("import complete",
			zap.Int64("imported", imported),
			zap.String("source", importSource),
		)
		return nil
	},
}

func init() {
	importCmd.Flags().StringVar(&importSource, "source", "", "CSV source: file path, http(s):// or ftp:// URL")
	importCmd.Flags().BoolVar(&importNotion, "notion", false, "import from the Notion roster database")
	rootCmd.AddCommand(importCmd)
}
