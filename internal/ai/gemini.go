package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"google.golang.org/genai"
)

const defaultGeminiModel = "gemini-3-flash-preview"

// GeminiClient implements Analyzer against the Google Gemini API, asking
// for a JSON response constrained to the analysis schema.
type GeminiClient struct {
	client *genai.Client
	model  string
}

// NewGeminiClient creates a Gemini-backed analyzer.
// Returns an error if GEMINI_API_KEY is not set.
func NewGeminiClient(ctx context.Context, model string) (*GeminiClient, error) {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY environment variable not set")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	if model == "" {
		model = defaultGeminiModel
	}

	return &GeminiClient{client: client, model: model}, nil
}

// Analyze asks Gemini for a title, one-sentence summary, and tags for the
// given URL. Transport and API errors are returned; an unusable payload
// degrades to the fallback analysis.
func (g *GeminiClient) Analyze(ctx context.Context, url string) (Result, error) {
	prompt := fmt.Sprintf(
		"Analyze this URL: %s. Provide a professional title, a 1-sentence summary, and 3 relevant tags.",
		url,
	)

	resp, err := g.client.Models.GenerateContent(ctx,
		g.model,
		genai.Text(prompt),
		&genai.GenerateContentConfig{
			ResponseMIMEType: "application/json",
			ResponseSchema: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"title":   {Type: genai.TypeString},
					"summary": {Type: genai.TypeString},
					"tags": {
						Type:  genai.TypeArray,
						Items: &genai.Schema{Type: genai.TypeString},
					},
				},
				Required: []string{"title", "summary", "tags"},
			},
		},
	)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrAPIRequest, err)
	}

	text := resp.Text()
	if text == "" {
		return Fallback("empty response"), nil
	}

	var analysis Analysis
	if err := json.Unmarshal([]byte(text), &analysis); err != nil {
		return Fallback(fmt.Sprintf("unparsable analysis payload: %v", err)), nil
	}
	if analysis.Title == "" {
		return Fallback("analysis payload missing title"), nil
	}
	if analysis.Tags == nil {
		analysis.Tags = []string{}
	}

	return Result{Analysis: analysis, Source: SourceProvider}, nil
}
