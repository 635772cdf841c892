package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/content-pulse/internal/analyzer"
	"github.com/sells-group/content-pulse/internal/audit"
	"github.com/sells-group/content-pulse/internal/cost"
	"github.com/sells-group/content-pulse/internal/crm"
	"github.com/sells-group/content-pulse/internal/resolve"
	"github.com/sells-group/content-pulse/internal/store"
	anthropicpkg "github.com/sells-group/content-pulse/pkg/anthropic"
	"github.com/sells-group/content-pulse/pkg/google"
	"github.com/sells-group/content-pulse/pkg/jina"
)

// auditEnv holds the initialized store and runner shared by the audit,
// bulk, and serve commands.
type auditEnv struct {
	Store    store.Store
	Resolver *resolve.Resolver
	Runner   *audit.Runner
}

// Close releases resources held by the environment.
func (ae *auditEnv) Close() {
	if ae.Store != nil {
		_ = ae.Store.Close()
	}
}

// initRunner validates config for the given mode, sets up the store and
// API clients, and builds the bulk runner. Callers should defer
// env.Close().
func initRunner(ctx context.Context, mode string) (*auditEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	// Google Places client (optional, discovers websites for accounts with
	// no usable URL).
	var discoverer resolve.Discoverer
	if cfg.Google.Key != "" {
		var opts []google.Option
		if cfg.Google.PlacesBaseURL != "" {
			opts = append(opts, google.WithBaseURL(cfg.Google.PlacesBaseURL))
		}
		discoverer = resolve.NewPlacesDiscoverer(google.NewClient(cfg.Google.Key, opts...))
		zap.L().Info("google places discovery enabled")
	} else {
		zap.L().Debug("PULSE_GOOGLE_KEY not set, website discovery disabled")
	}

	resolver := resolve.NewResolver(st, discoverer)

	engine, err := buildAnalyzer()
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	rates := cost.DefaultRates()
	if cfg.Analyzer.RatesPath != "" {
		rates, err = cost.LoadRates(cfg.Analyzer.RatesPath)
		if err != nil {
			_ = st.Close()
			return nil, eris.Wrap(err, "load rates")
		}
	}

	runner := audit.NewRunner(st, resolver, engine, cost.NewCalculator(rates), audit.Options{
		BatchSize:     cfg.Bulk.BatchSize,
		RetryAttempts: cfg.Bulk.RetryAttempts,
		RetryDelay:    time.Duration(cfg.Bulk.RetryDelayMS) * time.Millisecond,
		BatchPause:    time.Duration(cfg.Bulk.BatchPauseMS) * time.Millisecond,
		SkipDays:      cfg.Bulk.SkipDays,
	})

	// Salesforce write-back (optional).
	if cfg.Salesforce.ClientID != "" {
		sfClient, err := initSalesforce()
		if err != nil {
			_ = st.Close()
			return nil, err
		}
		runner = runner.WithCRM(crm.NewSyncer(sfClient, st))
		zap.L().Info("salesforce write-back enabled")
	}

	return &auditEnv{Store: st, Resolver: resolver, Runner: runner}, nil
}

// buildAnalyzer constructs the analysis engine per analyzer.method: "feed"
// (RSS/Atom probing only), "model" (Claude over page text), or "auto"
// (feed first, model on feed miss).
func buildAnalyzer() (analyzer.Analyzer, error) {
	feed := analyzer.NewFeedAnalyzer(
		analyzer.WithWindow(time.Duration(cfg.Analyzer.FeedWindowDays) * 24 * time.Hour),
	)

	switch cfg.Analyzer.Method {
	case "feed":
		return feed, nil
	case "model":
		return modelAnalyzer()
	case "auto", "":
		m, err := modelAnalyzer()
		if err != nil {
			return nil, err
		}
		return analyzer.NewAuto(feed, m), nil
	default:
		return nil, eris.Errorf("unknown analyzer method %q (use feed, model, or auto)", cfg.Analyzer.Method)
	}
}

func modelAnalyzer() (*analyzer.ModelAnalyzer, error) {
	if cfg.Anthropic.Key == "" {
		return nil, eris.New("anthropic key is required for model analysis (PULSE_ANTHROPIC_KEY)")
	}
	reader := jina.NewClient(cfg.Jina.Key, jina.WithBaseURL(cfg.Jina.BaseURL))
	ai := anthropicpkg.NewClient(cfg.Anthropic.Key)
	return analyzer.NewModelAnalyzer(reader, ai, cfg.Anthropic.Model,
		analyzer.WithMaxContent(cfg.Analyzer.MaxContentChars),
		analyzer.WithMaxTokens(cfg.Anthropic.MaxTokens),
	), nil
}
