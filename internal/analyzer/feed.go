package analyzer

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/content-pulse/internal/model"
)

const (
	// recentWindow is the lookback used to compute posts/month.
	recentWindow = 90 * 24 * time.Hour

	// maxFeedBytes limits how much of a feed document is downloaded.
	maxFeedBytes = 2 * 1024 * 1024

	// maxPageBytes limits the homepage download when scanning for feed links.
	maxPageBytes = 512 * 1024

	userAgent = "Mozilla/5.0 (compatible; content-pulse/1.0)"
)

// feedPaths are well-known feed locations probed in order.
var feedPaths = []string{
	"/feed",
	"/rss.xml",
	"/atom.xml",
	"/feed.xml",
	"/blog/feed",
	"/blog/rss.xml",
	"/index.xml",
}

// FeedAnalyzer audits a site by locating and parsing its RSS/Atom feed.
// It costs nothing to run and is preferred over the model engine.
type FeedAnalyzer struct {
	http   *http.Client
	now    func() time.Time
	window time.Duration
}

// FeedOption configures a FeedAnalyzer.
type FeedOption func(*FeedAnalyzer)

// WithHTTPClient overrides the HTTP client used for probing.
func WithHTTPClient(c *http.Client) FeedOption {
	return func(a *FeedAnalyzer) {
		a.http = c
	}
}

// WithNow sets a fixed clock for testing.
func WithNow(now func() time.Time) FeedOption {
	return func(a *FeedAnalyzer) {
		a.now = now
	}
}

// WithWindow sets the lookback used to compute posts/month. Non-positive
// values are ignored.
func WithWindow(d time.Duration) FeedOption {
	return func(a *FeedAnalyzer) {
		if d > 0 {
			a.window = d
		}
	}
}

// NewFeedAnalyzer creates a feed-based analyzer.
func NewFeedAnalyzer(opts ...FeedOption) *FeedAnalyzer {
	a := &FeedAnalyzer{
		http:   &http.Client{Timeout: 15 * time.Second},
		now:    time.Now,
		window: recentWindow,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Analyze locates a feed for the site and computes posting metrics from it.
// Returns ErrNoFeed when no candidate URL yields a parseable feed.
func (a *FeedAnalyzer) Analyze(ctx context.Context, name, rawURL string) (*model.ContentAudit, error) {
	base, err := normalizeBase(rawURL)
	if err != nil {
		return nil, err
	}

	feedURL, feed := a.locateFeed(ctx, base)
	if feed == nil {
		zap.L().Debug("analyzer: no feed located",
			zap.String("name", name),
			zap.String("url", base.String()),
		)
		return nil, ErrNoFeed
	}

	return a.buildAudit(feedURL, feed), nil
}

// locateFeed tries each candidate URL and returns the first parseable feed.
func (a *FeedAnalyzer) locateFeed(ctx context.Context, base *url.URL) (string, *parsedFeed) {
	for _, cand := range a.candidates(ctx, base) {
		if ctx.Err() != nil {
			return "", nil
		}
		feed, err := a.fetchFeed(ctx, cand)
		if err != nil {
			zap.L().Debug("analyzer: feed probe miss",
				zap.String("url", cand),
				zap.Error(err),
			)
			continue
		}
		return cand, feed
	}
	return "", nil
}

// candidates builds the probe list: the URL itself when it looks like a
// feed, then well-known paths at the site root, then link rel=alternate
// hints from the page head.
func (a *FeedAnalyzer) candidates(ctx context.Context, base *url.URL) []string {
	var out []string
	seen := make(map[string]bool)
	add := func(u string) {
		if u != "" && !seen[u] {
			seen[u] = true
			out = append(out, u)
		}
	}

	if looksLikeFeedPath(base.Path) {
		add(base.String())
	}

	root := *base
	root.Path = ""
	root.RawQuery = ""
	root.Fragment = ""
	for _, p := range feedPaths {
		add(root.String() + p)
	}

	for _, href := range a.pageFeedLinks(ctx, base) {
		add(href)
	}

	return out
}

func looksLikeFeedPath(path string) bool {
	p := strings.ToLower(strings.TrimSuffix(path, "/"))
	return strings.HasSuffix(p, ".xml") ||
		strings.HasSuffix(p, "/feed") ||
		strings.HasSuffix(p, "/rss") ||
		strings.HasSuffix(p, "/atom")
}

var (
	linkTagRe  = regexp.MustCompile(`(?is)<link\b[^>]*>`)
	feedTypeRe = regexp.MustCompile(`(?i)type\s*=\s*["']application/(?:rss|atom)\+xml["']`)
	relAltRe   = regexp.MustCompile(`(?i)rel\s*=\s*["']alternate["']`)
	hrefRe     = regexp.MustCompile(`(?i)href\s*=\s*["']([^"']+)["']`)
)

// pageFeedLinks fetches the page and extracts feed URLs advertised via
// link rel="alternate" tags. Failures yield an empty list; the well-known
// paths have already been tried.
func (a *FeedAnalyzer) pageFeedLinks(ctx context.Context, base *url.URL) []string {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base.String(), nil)
	if err != nil {
		return nil
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := a.http.Do(req)
	if err != nil {
		return nil
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil
	}

	var hrefs []string
	for _, tag := range linkTagRe.FindAllString(string(body), -1) {
		if !feedTypeRe.MatchString(tag) || !relAltRe.MatchString(tag) {
			continue
		}
		m := hrefRe.FindStringSubmatch(tag)
		if m == nil {
			continue
		}
		ref, err := base.Parse(strings.TrimSpace(m[1]))
		if err != nil {
			continue
		}
		hrefs = append(hrefs, ref.String())
	}
	return hrefs
}

func (a *FeedAnalyzer) fetchFeed(ctx context.Context, feedURL string) (*parsedFeed, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "analyzer: create feed request")
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/xml")

	resp, err := a.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "analyzer: fetch feed")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("analyzer: feed returned %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBytes))
	if err != nil {
		return nil, eris.Wrap(err, "analyzer: read feed")
	}

	return parseFeed(body)
}

// buildAudit computes posting metrics over the configured window.
func (a *FeedAnalyzer) buildAudit(feedURL string, feed *parsedFeed) *model.ContentAudit {
	now := a.now()
	cutoff := now.Add(-a.window)
	days := int(a.window.Hours() / 24)

	var latest *time.Time
	recent := 0
	for i := range feed.Posts {
		p := feed.Posts[i]
		if p.PublishedAt == nil {
			continue
		}
		if latest == nil || p.PublishedAt.After(*latest) {
			latest = p.PublishedAt
		}
		if p.PublishedAt.After(cutoff) {
			recent++
		}
	}

	perMonth := float64(recent) / (float64(days) / 30.0)
	return &model.ContentAudit{
		ContentDetected: len(feed.Posts) > 0,
		PostCount:       len(feed.Posts),
		PostsPerMonth:   perMonth,
		LatestPostAt:    latest,
		FeedURL:         feedURL,
		Method:          model.MethodFeed,
		Summary:         feedSummary(len(feed.Posts), perMonth, latest, days),
	}
}

func feedSummary(count int, perMonth float64, latest *time.Time, days int) string {
	if count == 0 {
		return "Feed found but it has no entries"
	}
	s := fmt.Sprintf("%d posts in feed, %.1f/month over the last %d days", count, perMonth, days)
	if latest != nil {
		s += ", latest " + latest.Format("2006-01-02")
	}
	return s
}

// normalizeBase parses the target URL, defaulting the scheme to https.
func normalizeBase(rawURL string) (*url.URL, error) {
	s := strings.TrimSpace(rawURL)
	if s == "" {
		return nil, eris.New("analyzer: url is required")
	}
	if !strings.Contains(s, "://") {
		s = "https://" + s
	}
	u, err := url.Parse(s)
	if err != nil {
		return nil, eris.Wrapf(err, "analyzer: parse url %q", rawURL)
	}
	if u.Host == "" {
		return nil, eris.Errorf("analyzer: url %q has no host", rawURL)
	}
	u.Path = strings.TrimSuffix(u.Path, "/")
	return u, nil
}
