package prompt

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"oracle/internal/domain"
	"oracle/internal/providers/genai"
)

const defaultMediaPrompt = "Describe this media for a marketer. Respond as JSON: " +
	`{"description":string,"insights":string[],"tags":string[]}`

// MediaAnalyzer describes an image or video clip with Gemini.
type MediaAnalyzer struct {
	client Caller
	model  string
}

func NewMediaAnalyzer(client Caller, model string) *MediaAnalyzer {
	return &MediaAnalyzer{client: client, model: strings.TrimSpace(model)}
}

type mediaAnalysisPayload struct {
	Description string   `json:"description"`
	Insights    []string `json:"insights"`
	Tags        []string `json:"tags"`
}

// AnalyzeMedia sends the bytes inline with the prompt and decodes the JSON
// answer.
func (m *MediaAnalyzer) AnalyzeMedia(ctx context.Context, data []byte, mimeType, instruction string) (*domain.MediaAnalysis, error) {
	if len(data) == 0 {
		return nil, errors.New("media payload is empty")
	}
	text := coalesce(instruction, defaultMediaPrompt)
	if instruction != "" {
		text += "\n" + defaultMediaPrompt
	}
	req := genai.Request{
		Model: m.model,
		Messages: []genai.Message{{Role: genai.RoleUser, Parts: []genai.Part{
			{InlineData: &genai.InlineData{MIMEType: mimeType, Data: data}},
			{Text: text},
		}}},
		ResponseMIMEType: "application/json",
	}
	res, err := m.client.Call(ctx, req)
	if err != nil {
		return nil, err
	}
	payload, err := parseModelPayload[mediaAnalysisPayload](res.Text)
	if err != nil {
		return nil, fmt.Errorf("decode media analysis: %w: %v", domain.ErrMalformedResponse, err)
	}
	return &domain.MediaAnalysis{
		Description: strings.TrimSpace(payload.Description),
		Insights:    normalizeList(payload.Insights),
		Tags:        normalizeList(payload.Tags),
	}, nil
}

func normalizeList(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		key := strings.ToLower(item)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, item)
	}
	return out
}
