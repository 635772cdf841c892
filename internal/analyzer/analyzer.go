// Package analyzer produces content audits for business websites.
//
// Two engines are available: FeedAnalyzer discovers and parses RSS/Atom
// feeds (free, fast), ModelAnalyzer reads the page through Jina and asks
// Claude to classify it (costs tokens, works on sites without feeds).
// Auto composes them feed-first.
package analyzer

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/content-pulse/internal/model"
)

// ErrNoFeed signals that no RSS/Atom feed could be located for a site.
var ErrNoFeed = eris.New("analyzer: no feed found")

// Analyzer audits the content surface of one business website.
type Analyzer interface {
	Analyze(ctx context.Context, name, url string) (*model.ContentAudit, error)
}

// Auto tries the feed engine first and falls back to the model engine.
type Auto struct {
	feed  Analyzer
	model Analyzer
}

// NewAuto composes a feed-first analyzer with a model fallback.
func NewAuto(feed, fallback Analyzer) *Auto {
	return &Auto{feed: feed, model: fallback}
}

// Analyze runs the feed engine and, when it cannot produce an audit, the
// model engine. A feed miss is expected; other feed errors are logged but
// never mask the fallback.
func (a *Auto) Analyze(ctx context.Context, name, url string) (*model.ContentAudit, error) {
	audit, err := a.feed.Analyze(ctx, name, url)
	if err == nil {
		return audit, nil
	}

	if errors.Is(err, ErrNoFeed) {
		zap.L().Debug("analyzer: no feed, falling back to model",
			zap.String("name", name),
			zap.String("url", url),
		)
	} else {
		zap.L().Warn("analyzer: feed engine failed, falling back to model",
			zap.String("name", name),
			zap.String("url", url),
			zap.Error(err),
		)
	}

	return a.model.Analyze(ctx, name, url)
}
