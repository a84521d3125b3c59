package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

const (
	defaultAPIURL = "https://api.anthropic.com/v1/messages"
	apiVersion    = "2023-06-01"
	betaHeader    = "structured-outputs-2025-11-13"
	defaultModel  = "claude-haiku-4-5-20251001"
)

var (
	ErrNoAPIKey   = errors.New("ANTHROPIC_API_KEY environment variable not set")
	ErrAPIRequest = errors.New("API request failed")
)

// Client handles communication with the Anthropic API.
type Client struct {
	apiKey     string
	apiURL     string
	model      string
	httpClient *http.Client
}

// ClientOption customizes a Client.
type ClientOption func(*Client)

// WithBaseURL overrides the API endpoint. Used by tests.
func WithBaseURL(url string) ClientOption {
	return func(c *Client) { c.apiURL = url }
}

// WithModel overrides the default model.
func WithModel(model string) ClientOption {
	return func(c *Client) {
		if model != "" {
			c.model = model
		}
	}
}

// WithTimeout overrides the default request timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// NewClient creates a new AI client.
// Returns an error if ANTHROPIC_API_KEY is not set.
func NewClient(opts ...ClientOption) (*Client, error) {
	apiKey := os.Getenv("ANTHROPIC_API_KEY")
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}

	c := &Client{
		apiKey: apiKey,
		apiURL: defaultAPIURL,
		model:  defaultModel,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Analyze asks the provider for a title, one-sentence summary, and tags for
// the given URL. Transport and API errors are returned to the caller; a
// provider payload that fails to parse degrades to the fallback analysis.
func (c *Client) Analyze(ctx context.Context, url string) (Result, error) {
	reqBody := apiRequest{
		Model:     c.model,
		MaxTokens: 512,
		Messages: []apiMessage{
			{Role: "user", Content: buildPrompt(url)},
		},
		OutputFormat: &outputFormat{
			Type: "json_schema",
			Schema: jsonSchema{
				Type: "object",
				Properties: map[string]schemaProp{
					"title":   {Type: "string"},
					"summary": {Type: "string"},
					"tags":    {Type: "array", Items: &schemaProp{Type: "string"}},
				},
				Required:             []string{"title", "summary", "tags"},
				AdditionalProperties: false,
			},
		},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return Result{}, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.apiURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return Result{}, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", apiVersion)
	req.Header.Set("anthropic-beta", betaHeader)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrAPIRequest, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("%w: status %d: %s", ErrAPIRequest, resp.StatusCode, string(body))
	}

	var apiResp apiResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return Fallback(fmt.Sprintf("unparsable response body: %v", err)), nil
	}

	if len(apiResp.Content) == 0 || apiResp.Content[0].Type != "text" {
		return Fallback("response contained no text block"), nil
	}

	return parseAnalysis(apiResp.Content[0].Text), nil
}

// parseAnalysis turns the provider's text payload into a Result,
// falling back when it is not the requested JSON object.
func parseAnalysis(text string) Result {
	var analysis Analysis
	if err := json.Unmarshal([]byte(text), &analysis); err != nil {
		return Fallback(fmt.Sprintf("unparsable analysis payload: %v", err))
	}
	if analysis.Title == "" {
		return Fallback("analysis payload missing title")
	}
	if analysis.Tags == nil {
		analysis.Tags = []string{}
	}
	return Result{Analysis: analysis, Source: SourceProvider}
}

func buildPrompt(url string) string {
	return fmt.Sprintf(`Analyze this URL: %s

Instructions:
- Provide a professional, concise title for this page
- Provide a 1-sentence summary
- Provide 3 relevant tags, lowercase and concise`, url)
}
