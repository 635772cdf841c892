package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/content-pulse/internal/model"
	"github.com/sells-group/content-pulse/pkg/anthropic"
	"github.com/sells-group/content-pulse/pkg/jina"
)

const (
	// maxContentChars is the truncation limit for the markdown sent to Claude.
	maxContentChars = 16000 // ~4K tokens

	// auditMaxTokens bounds the model answer; the JSON payload is small.
	auditMaxTokens = 1024
)

// auditSystemPrompt is shared across every account in a run, so it is sent
// as a cached system block.
const auditSystemPrompt = `You are auditing a business website for content marketing activity. Examine the page content and determine whether the business publishes content (blog posts, articles, news, resources).

Respond with ONLY valid JSON, no other text:
{"content_detected": false, "post_count": 0, "posts_per_month": 0.0, "latest_post": "", "summary": ""}

Rules:
- "content_detected" is true only when the business publishes its own content.
- "post_count" is the number of distinct posts or articles visible in the content.
- "posts_per_month" is your best estimate of publishing frequency.
- "latest_post" is the most recent post date you can identify, formatted YYYY-MM-DD, or "" if none.
- "summary" is one short sentence describing the content activity.`

// ModelAnalyzer audits a site by reading it through Jina and asking Claude
// to classify the content activity. Token usage is attached to the audit
// so the caller can price it.
type ModelAnalyzer struct {
	reader     jina.Client
	ai         anthropic.Client
	modelName  string
	maxContent int
	maxTokens  int
}

// ModelOption configures a ModelAnalyzer.
type ModelOption func(*ModelAnalyzer)

// WithMaxContent sets the truncation limit for page content sent to the
// model. Non-positive values are ignored.
func WithMaxContent(chars int) ModelOption {
	return func(m *ModelAnalyzer) {
		if chars > 0 {
			m.maxContent = chars
		}
	}
}

// WithMaxTokens bounds the model answer. Non-positive values are ignored.
func WithMaxTokens(n int) ModelOption {
	return func(m *ModelAnalyzer) {
		if n > 0 {
			m.maxTokens = n
		}
	}
}

// NewModelAnalyzer creates a model-based analyzer.
func NewModelAnalyzer(reader jina.Client, ai anthropic.Client, modelName string, opts ...ModelOption) *ModelAnalyzer {
	m := &ModelAnalyzer{
		reader:     reader,
		ai:         ai,
		modelName:  modelName,
		maxContent: maxContentChars,
		maxTokens:  auditMaxTokens,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Analyze fetches the page as markdown and classifies it with one Claude
// message.
func (m *ModelAnalyzer) Analyze(ctx context.Context, name, url string) (*model.ContentAudit, error) {
	page, err := m.reader.Read(ctx, url)
	if err != nil {
		return nil, eris.Wrap(err, "analyzer: read page")
	}

	content := strings.TrimSpace(page.Data.Content)
	if content == "" {
		return nil, eris.New("analyzer: page has no content")
	}
	if len(content) > m.maxContent {
		content = content[:m.maxContent]
	}

	userMsg := fmt.Sprintf("Business name: %s\nWebsite: %s\n\nPage content:\n%s", name, url, content)

	resp, err := m.ai.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     m.modelName,
		MaxTokens: int64(m.maxTokens),
		System:    anthropic.BuildCachedSystemBlocks(auditSystemPrompt),
		Messages:  []anthropic.Message{{Role: "user", Content: userMsg}},
	})
	if err != nil {
		return nil, eris.Wrap(err, "analyzer: model request")
	}

	text := anthropic.FirstText(resp)
	if text == "" {
		return nil, eris.New("analyzer: empty model response")
	}

	payload, err := parseAuditJSON(text)
	if err != nil {
		return nil, err
	}

	audit := &model.ContentAudit{
		ContentDetected: payload.ContentDetected,
		PostCount:       payload.PostCount,
		PostsPerMonth:   payload.PostsPerMonth,
		LatestPostAt:    parseFeedTime(payload.LatestPost),
		Method:          model.MethodModel,
		Summary:         strings.TrimSpace(payload.Summary),
		Model:           resp.Model,
		Usage: &model.TokenUsage{
			InputTokens:      resp.Usage.InputTokens,
			OutputTokens:     resp.Usage.OutputTokens,
			CacheWriteTokens: resp.Usage.CacheCreationInputTokens,
			CacheReadTokens:  resp.Usage.CacheReadInputTokens,
			ReaderTokens:     page.Data.Usage.Tokens,
		},
	}
	if audit.Model == "" {
		audit.Model = m.modelName
	}
	return audit, nil
}

type auditPayload struct {
	ContentDetected bool    `json:"content_detected"`
	PostCount       int     `json:"post_count"`
	PostsPerMonth   float64 `json:"posts_per_month"`
	LatestPost      string  `json:"latest_post"`
	Summary         string  `json:"summary"`
}

// parseAuditJSON extracts the JSON object from a model answer, tolerating
// markdown fences and surrounding prose.
func parseAuditJSON(text string) (*auditPayload, error) {
	cleaned := strings.TrimSpace(text)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")

	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start < 0 || end <= start {
		return nil, eris.Errorf("analyzer: no JSON in model response: %.120s", text)
	}

	var p auditPayload
	if err := json.Unmarshal([]byte(cleaned[start:end+1]), &p); err != nil {
		return nil, eris.Wrap(err, "analyzer: parse model JSON")
	}

	if p.PostCount < 0 {
		p.PostCount = 0
	}
	if p.PostsPerMonth < 0 {
		p.PostsPerMonth = 0
	}
	return &p, nil
}
