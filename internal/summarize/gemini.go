// Package summarize calls the generative-summary collaborator, with a
// deterministic local fallback when no credentials are configured or
// the call fails.
package summarize

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/leadscope/siteintel/internal/extract"
)

const defaultEndpoint = "https://generativelanguage.googleapis.com/v1beta/models/gemini-pro:generateContent"

const fallbackExcerptLen = 200

// Config holds summarizer settings.
type Config struct {
	APIKey   string
	Endpoint string
	Timeout  time.Duration
}

// Client produces business-intelligence summaries. It implements
// crawl.Summarizer and never surfaces an error to the caller.
type Client struct {
	cfg    Config
	client *http.Client
	logger *zap.Logger
}

// New constructs a Client.
func New(cfg Config, logger *zap.Logger) *Client {
	if cfg.Endpoint == "" {
		cfg.Endpoint = defaultEndpoint
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []part `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// Summarize returns a short summary of text for the given context
// label. Without an API key it degrades to a deterministic excerpt
// fallback; on any call failure it degrades to a generic fallback.
func (c *Client) Summarize(ctx context.Context, text string, contextLabel string) string {
	if c.cfg.APIKey == "" {
		return fmt.Sprintf("AI summary for %s: %s...", contextLabel, extract.Excerpt(text, fallbackExcerptLen))
	}

	summary, err := c.generate(ctx, text, contextLabel)
	if err != nil || summary == "" {
		c.logger.Warn("summary generation failed, using fallback",
			zap.String("context", contextLabel),
			zap.Error(err),
		)
		return fmt.Sprintf("Summary for %s: Key business information extracted from content.", contextLabel)
	}
	return summary
}

func (c *Client) generate(ctx context.Context, text string, contextLabel string) (string, error) {
	prompt := fmt.Sprintf(
		"Please provide a concise business intelligence summary of this %s content in 2-3 sentences, "+
			"focusing on key business information, services, and value propositions:\n\n%s",
		contextLabel, text,
	)
	payload, err := json.Marshal(generateRequest{
		Contents: []content{{Parts: []part{{Text: prompt}}}},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint+"?key="+c.cfg.APIKey, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("call summarizer: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("summarizer returned %d", resp.StatusCode)
	}

	var decoded generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(decoded.Candidates) == 0 || len(decoded.Candidates[0].Content.Parts) == 0 {
		return "", nil
	}
	return decoded.Candidates[0].Content.Parts[0].Text, nil
}
