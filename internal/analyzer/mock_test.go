package analyzer

import (
	"context"

	"github.com/sells-group/content-pulse/internal/model"
	"github.com/sells-group/content-pulse/pkg/anthropic"
	"github.com/sells-group/content-pulse/pkg/jina"
)

// mockJinaClient implements jina.Client for testing.
type mockJinaClient struct {
	content string
	tokens  int
	err     error
	lastURL string
}

func (m *mockJinaClient) Read(_ context.Context, targetURL string) (*jina.ReadResponse, error) {
	m.lastURL = targetURL
	if m.err != nil {
		return nil, m.err
	}
	resp := &jina.ReadResponse{Code: 200}
	resp.Data.URL = targetURL
	resp.Data.Content = m.content
	resp.Data.Usage.Tokens = m.tokens
	return resp, nil
}

// mockAnthropicClient implements anthropic.Client for testing.
type mockAnthropicClient struct {
	text    string
	usage   anthropic.TokenUsage
	model   string
	err     error
	lastReq anthropic.MessageRequest
	calls   int
}

func (m *mockAnthropicClient) CreateMessage(_ context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	m.calls++
	m.lastReq = req
	if m.err != nil {
		return nil, m.err
	}
	return &anthropic.MessageResponse{
		ID:      "msg_test",
		Model:   m.model,
		Content: []anthropic.ContentBlock{{Type: "text", Text: m.text}},
		Usage:   m.usage,
	}, nil
}

// mockAnalyzer implements Analyzer for testing the Auto composite.
type mockAnalyzer struct {
	audit *model.ContentAudit
	err   error
	calls int
}

func (m *mockAnalyzer) Analyze(_ context.Context, _, _ string) (*model.ContentAudit, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.audit, nil
}

func feedAuditFixture() *model.ContentAudit {
	return &model.ContentAudit{
		ContentDetected: true,
		PostCount:       8,
		PostsPerMonth:   2.0,
		FeedURL:         "https://acme.test/rss.xml",
		Method:          model.MethodFeed,
		Summary:         "8 posts in feed, 2.0/month over the last 90 days",
	}
}

func modelAuditFixture() *model.ContentAudit {
	return &model.ContentAudit{
		ContentDetected: true,
		PostCount:       4,
		PostsPerMonth:   1.0,
		Method:          model.MethodModel,
		Summary:         "Occasional posts on the news page.",
		Model:           "claude-haiku-4-5-20251001",
		Usage:           &model.TokenUsage{InputTokens: 3000, OutputTokens: 60},
	}
}
