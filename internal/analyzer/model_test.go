package analyzer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/content-pulse/pkg/anthropic"
)

func TestModelAnalyzer_Analyze(t *testing.T) {
	reader := &mockJinaClient{
		content: "# Acme Blog\n\nPost about widgets (Aug 2026)\nPost about gadgets (Jul 2026)",
		tokens:  1200,
	}
	ai := &mockAnthropicClient{
		model: "claude-haiku-4-5-20251001",
		text:  `{"content_detected": true, "post_count": 12, "posts_per_month": 2.5, "latest_post": "2026-08-14", "summary": "Active blog with regular posts."}`,
		usage: anthropic.TokenUsage{
			InputTokens:              4000,
			OutputTokens:             80,
			CacheCreationInputTokens: 500,
			CacheReadInputTokens:     0,
		},
	}

	m := NewModelAnalyzer(reader, ai, "claude-haiku-4-5-20251001")
	audit, err := m.Analyze(context.Background(), "Acme Corp", "https://acme.example.com")
	require.NoError(t, err)

	assert.True(t, audit.ContentDetected)
	assert.Equal(t, 12, audit.PostCount)
	assert.InDelta(t, 2.5, audit.PostsPerMonth, 0.001)
	require.NotNil(t, audit.LatestPostAt)
	assert.Equal(t, 14, audit.LatestPostAt.Day())
	assert.Equal(t, "model", string(audit.Method))
	assert.Equal(t, "Active blog with regular posts.", audit.Summary)
	assert.Equal(t, "claude-haiku-4-5-20251001", audit.Model)

	require.NotNil(t, audit.Usage)
	assert.Equal(t, int64(4000), audit.Usage.InputTokens)
	assert.Equal(t, int64(80), audit.Usage.OutputTokens)
	assert.Equal(t, int64(500), audit.Usage.CacheWriteTokens)
	assert.Equal(t, 1200, audit.Usage.ReaderTokens)

	// The page went through the reader and into the prompt.
	assert.Equal(t, "https://acme.example.com", reader.lastURL)
	require.Len(t, ai.lastReq.Messages, 1)
	assert.Contains(t, ai.lastReq.Messages[0].Content, "Acme Corp")
	assert.Contains(t, ai.lastReq.Messages[0].Content, "widgets")

	// The shared system prompt is sent as a cached block.
	require.NotEmpty(t, ai.lastReq.System)
	require.NotNil(t, ai.lastReq.System[0].CacheControl)
	assert.Equal(t, "1h", ai.lastReq.System[0].CacheControl.TTL)
}

func TestModelAnalyzer_FencedJSON(t *testing.T) {
	reader := &mockJinaClient{content: "some page text here with enough length"}
	ai := &mockAnthropicClient{
		text: "```json\n{\"content_detected\": true, \"post_count\": 3, \"posts_per_month\": 1.0, \"latest_post\": \"\", \"summary\": \"ok\"}\n```",
	}

	m := NewModelAnalyzer(reader, ai, "claude-haiku-4-5-20251001")
	audit, err := m.Analyze(context.Background(), "Acme", "https://acme.test")
	require.NoError(t, err)
	assert.Equal(t, 3, audit.PostCount)
	assert.Nil(t, audit.LatestPostAt)
}

func TestModelAnalyzer_TruncatesLongContent(t *testing.T) {
	reader := &mockJinaClient{content: strings.Repeat("x", maxContentChars*2)}
	ai := &mockAnthropicClient{
		text: `{"content_detected": false, "post_count": 0, "posts_per_month": 0, "latest_post": "", "summary": "none"}`,
	}

	m := NewModelAnalyzer(reader, ai, "claude-haiku-4-5-20251001")
	_, err := m.Analyze(context.Background(), "Acme", "https://acme.test")
	require.NoError(t, err)
	assert.Less(t, len(ai.lastReq.Messages[0].Content), maxContentChars+200)
}

func TestModelAnalyzer_CustomLimits(t *testing.T) {
	reader := &mockJinaClient{content: strings.Repeat("y", 500)}
	ai := &mockAnthropicClient{
		text: `{"content_detected": false, "post_count": 0, "posts_per_month": 0, "latest_post": "", "summary": "none"}`,
	}

	m := NewModelAnalyzer(reader, ai, "claude-haiku-4-5-20251001", WithMaxContent(100), WithMaxTokens(2048))
	_, err := m.Analyze(context.Background(), "Acme", "https://acme.test")
	require.NoError(t, err)
	assert.Less(t, len(ai.lastReq.Messages[0].Content), 300)
	assert.Equal(t, int64(2048), ai.lastReq.MaxTokens)
}

func TestModelAnalyzer_ReaderError(t *testing.T) {
	reader := &mockJinaClient{err: errors.New("blocked")}
	m := NewModelAnalyzer(reader, &mockAnthropicClient{}, "claude-haiku-4-5-20251001")

	_, err := m.Analyze(context.Background(), "Acme", "https://acme.test")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read page")
}

func TestModelAnalyzer_EmptyPage(t *testing.T) {
	reader := &mockJinaClient{content: "   \n  "}
	ai := &mockAnthropicClient{}
	m := NewModelAnalyzer(reader, ai, "claude-haiku-4-5-20251001")

	_, err := m.Analyze(context.Background(), "Acme", "https://acme.test")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no content")
	assert.Zero(t, ai.calls, "model should not be called for an empty page")
}

func TestModelAnalyzer_ModelError(t *testing.T) {
	reader := &mockJinaClient{content: "page content"}
	ai := &mockAnthropicClient{err: errors.New("overloaded")}
	m := NewModelAnalyzer(reader, ai, "claude-haiku-4-5-20251001")

	_, err := m.Analyze(context.Background(), "Acme", "https://acme.test")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model request")
}

func TestParseAuditJSON(t *testing.T) {
	t.Run("plain json", func(t *testing.T) {
		p, err := parseAuditJSON(`{"content_detected": true, "post_count": 5, "posts_per_month": 1.5, "latest_post": "2026-08-01", "summary": "s"}`)
		require.NoError(t, err)
		assert.True(t, p.ContentDetected)
		assert.Equal(t, 5, p.PostCount)
	})

	t.Run("surrounding prose", func(t *testing.T) {
		p, err := parseAuditJSON(`Here is my analysis: {"content_detected": false, "post_count": 0, "posts_per_month": 0, "latest_post": "", "summary": "no blog"} Hope that helps!`)
		require.NoError(t, err)
		assert.False(t, p.ContentDetected)
	})

	t.Run("fenced", func(t *testing.T) {
		p, err := parseAuditJSON("```json\n{\"post_count\": 2}\n```")
		require.NoError(t, err)
		assert.Equal(t, 2, p.PostCount)
	})

	t.Run("negative values clamped", func(t *testing.T) {
		p, err := parseAuditJSON(`{"post_count": -3, "posts_per_month": -1.0}`)
		require.NoError(t, err)
		assert.Zero(t, p.PostCount)
		assert.Zero(t, p.PostsPerMonth)
	})

	t.Run("no json", func(t *testing.T) {
		_, err := parseAuditJSON("I could not determine anything.")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no JSON")
	})

	t.Run("malformed json", func(t *testing.T) {
		_, err := parseAuditJSON(`{"post_count": }`)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "parse model JSON")
	})
}

func TestAuto_FeedFirst(t *testing.T) {
	feedAudit := &mockAnalyzer{audit: feedAuditFixture()}
	modelEngine := &mockAnalyzer{}

	auto := NewAuto(feedAudit, modelEngine)
	audit, err := auto.Analyze(context.Background(), "Acme", "https://acme.test")
	require.NoError(t, err)
	assert.Equal(t, "feed", string(audit.Method))
	assert.Zero(t, modelEngine.calls, "model engine should not run when the feed succeeds")
}

func TestAuto_FallsBackOnNoFeed(t *testing.T) {
	feedEngine := &mockAnalyzer{err: ErrNoFeed}
	modelEngine := &mockAnalyzer{audit: modelAuditFixture()}

	auto := NewAuto(feedEngine, modelEngine)
	audit, err := auto.Analyze(context.Background(), "Acme", "https://acme.test")
	require.NoError(t, err)
	assert.Equal(t, "model", string(audit.Method))
	assert.Equal(t, 1, feedEngine.calls)
	assert.Equal(t, 1, modelEngine.calls)
}

func TestAuto_FallsBackOnOtherFeedErrors(t *testing.T) {
	feedEngine := &mockAnalyzer{err: errors.New("tls handshake failed")}
	modelEngine := &mockAnalyzer{audit: modelAuditFixture()}

	auto := NewAuto(feedEngine, modelEngine)
	audit, err := auto.Analyze(context.Background(), "Acme", "https://acme.test")
	require.NoError(t, err)
	assert.Equal(t, "model", string(audit.Method))
}

func TestAuto_BothFail(t *testing.T) {
	feedEngine := &mockAnalyzer{err: ErrNoFeed}
	modelEngine := &mockAnalyzer{err: errors.New("overloaded")}

	auto := NewAuto(feedEngine, modelEngine)
	_, err := auto.Analyze(context.Background(), "Acme", "https://acme.test")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "overloaded")
}
