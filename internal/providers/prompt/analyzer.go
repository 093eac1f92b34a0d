package prompt

import (
	"context"
	"encoding/json"

	"oracle/internal/domain"
)

const (
	geminiProviderName = "gemini"
	openAIProviderName = "openai"
)

// AnalyzeRequest is one analysis prompt, already assembled by the caller.
type AnalyzeRequest struct {
	Task              string
	SystemInstruction string
	Prompt            string
	JSONMode          bool
	Schema            json.RawMessage
}

// AnalyzeResponse carries the raw model output. In JSON mode Text holds the
// validated JSON fragment.
type AnalyzeResponse struct {
	Text           string
	Provider       string
	Citations      []domain.Citation
	FallbackReason string
}

// Analyzer produces an answer for an assembled prompt.
type Analyzer interface {
	Name() string
	// Configured reports whether Analyze can be attempted at all.
	Configured() bool
	Analyze(ctx context.Context, req AnalyzeRequest) (*AnalyzeResponse, error)
}
