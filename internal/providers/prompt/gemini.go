package prompt

import (
	"context"
	"errors"
	"strings"

	"oracle/internal/providers/genai"
)

// Caller is the subset of the Gemini client analyzers need.
type Caller = genai.Caller

type GeminiOptions struct {
	Client Caller
	Model  string
}

// GeminiAnalyzer is the primary analysis provider.
type GeminiAnalyzer struct {
	client Caller
	model  string
}

func NewGeminiAnalyzer(opts GeminiOptions) *GeminiAnalyzer {
	return &GeminiAnalyzer{client: opts.Client, model: strings.TrimSpace(opts.Model)}
}

func (g *GeminiAnalyzer) Name() string { return geminiProviderName }

func (g *GeminiAnalyzer) Configured() bool { return g != nil && g.client != nil }

func (g *GeminiAnalyzer) Analyze(ctx context.Context, req AnalyzeRequest) (*AnalyzeResponse, error) {
	if !g.Configured() {
		return nil, errors.New("gemini analyzer has no client")
	}
	call := genai.TextRequest(g.model, req.Prompt)
	call.SystemInstruction = req.SystemInstruction
	if req.JSONMode {
		call.ResponseMIMEType = "application/json"
		if len(req.Schema) > 0 {
			call.ResponseSchema = req.Schema
		}
	}
	res, err := g.client.Call(ctx, call)
	if err != nil {
		return nil, err
	}
	return &AnalyzeResponse{
		Text:      strings.TrimSpace(res.Text),
		Provider:  geminiProviderName,
		Citations: res.Citations,
	}, nil
}

var _ Analyzer = (*GeminiAnalyzer)(nil)
