package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/content-pulse/internal/api"
	"github.com/sells-group/content-pulse/internal/audit"
	"github.com/sells-group/content-pulse/internal/model"
	"github.com/sells-group/content-pulse/internal/progress"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the dashboard HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initRunner(ctx, "serve")
		if err != nil {
			return err
		}
		defer env.Close()

		reg := prometheus.NewRegistry()
		promReporter, err := progress.NewPrometheusReporter(reg)
		if err != nil {
			return eris.Wrap(err, "register metrics")
		}

		server := api.NewServer(env.Store,
			meteredAuditor{runner: env.Runner, prom: promReporter},
			reg, cfg.Server.AllowedOrigins)

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           server.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// meteredAuditor layers the Prometheus progress counter onto every run the
// API starts, alongside whatever reporter the request brings.
type meteredAuditor struct {
	runner *audit.Runner
	prom   progress.Reporter
}

func (a meteredAuditor) Run(ctx context.Context, accounts []model.Account, reporter progress.Reporter) (*model.BulkResult, error) {
	return a.runner.Run(ctx, accounts, progress.Multi(reporter, a.prom))
}
