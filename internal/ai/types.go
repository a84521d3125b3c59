package ai

import "context"

// Analysis is the enrichment result for a URL: a title, a one-sentence
// summary, and tags. It is merged into a new bookmark at creation time and
// never persisted on its own.
type Analysis struct {
	Title   string   `json:"title"`
	Summary string   `json:"summary"`
	Tags    []string `json:"tags"`
}

// Source tells callers whether the analysis came from the provider or from
// the fixed fallback value.
type Source int

const (
	SourceProvider Source = iota
	SourceFallback
)

// Result is a tagged enrichment outcome. A fallback result still carries a
// usable Analysis; Reason records why the provider payload was unusable.
type Result struct {
	Analysis Analysis
	Source   Source
	Reason   string
}

// Analyzer produces structured metadata for a URL. Implementations return
// an error only for transport or provider failures; unusable provider
// payloads degrade to the fallback analysis instead.
type Analyzer interface {
	Analyze(ctx context.Context, url string) (Result, error)
}

// Fallback returns the fixed analysis used when the provider's payload
// cannot be parsed. Enrichment failure never blocks bookmark creation.
func Fallback(reason string) Result {
	return Result{
		Analysis: Analysis{
			Title:   "New Bookmark",
			Summary: "No summary available.",
			Tags:    []string{"untagged"},
		},
		Source: SourceFallback,
		Reason: reason,
	}
}

// apiRequest represents the Anthropic API request body.
type apiRequest struct {
	Model        string        `json:"model"`
	MaxTokens    int           `json:"max_tokens"`
	Messages     []apiMessage  `json:"messages"`
	OutputFormat *outputFormat `json:"output_format,omitempty"`
}

type apiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type outputFormat struct {
	Type   string     `json:"type"`
	Schema jsonSchema `json:"schema"`
}

type jsonSchema struct {
	Type                 string                `json:"type"`
	Properties           map[string]schemaProp `json:"properties"`
	Required             []string              `json:"required"`
	AdditionalProperties bool                  `json:"additionalProperties"`
}

type schemaProp struct {
	Type  string      `json:"type"`
	Items *schemaProp `json:"items,omitempty"`
}

// apiResponse represents the Anthropic API response body.
type apiResponse struct {
	Content    []contentBlock `json:"content"`
	StopReason string         `json:"stop_reason"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}
