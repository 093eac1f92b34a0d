package genai

import (
	"encoding/json"

	"oracle/internal/domain"
)

// Role names accepted by Gemini.
const (
	RoleUser  = "user"
	RoleModel = "model"
)

// Modalities for Request.ResponseModalities.
const (
	ModalityText  = "TEXT"
	ModalityImage = "IMAGE"
)

// InlineData is binary content carried inside a request or response part.
// Data holds raw bytes; base64 happens on the wire.
type InlineData struct {
	MIMEType string
	Data     []byte
}

// Part is one element of a message: text or inline data.
type Part struct {
	Text       string
	InlineData *InlineData
}

// Message is a role-tagged list of parts.
type Message struct {
	Role  string
	Parts []Part
}

// ImageConfig constrains image output.
type ImageConfig struct {
	AspectRatio string
	ImageSize   string
}

// Request describes one generation call. The client never mutates it.
type Request struct {
	Model              string
	Messages           []Message
	SystemInstruction  string
	GoogleSearch       bool
	ResponseMIMEType   string
	ResponseSchema     json.RawMessage
	ResponseModalities []string
	ImageConfig        *ImageConfig
}

// TextRequest builds a single-turn text request.
func TextRequest(model, prompt string) Request {
	return Request{
		Model:    model,
		Messages: []Message{{Role: RoleUser, Parts: []Part{{Text: prompt}}}},
	}
}

// Result is the decoded outcome of a successful call.
type Result struct {
	Model        string
	Text         string
	Parts        []Part
	Citations    []domain.Citation
	FinishReason string
}

// FirstInline returns the first inline data part, if any.
func (r *Result) FirstInline() *InlineData {
	if r == nil {
		return nil
	}
	for _, p := range r.Parts {
		if p.InlineData != nil && len(p.InlineData.Data) > 0 {
			return p.InlineData
		}
	}
	return nil
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts,omitempty"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inlineData,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mimeType,omitempty"`
	Data     string `json:"data,omitempty"`
}

type geminiTool struct {
	GoogleSearch *struct{} `json:"googleSearch,omitempty"`
}

type geminiImageConfig struct {
	AspectRatio string `json:"aspectRatio,omitempty"`
	ImageSize   string `json:"imageSize,omitempty"`
}

type geminiGenerationConfig struct {
	ResponseMimeType   string             `json:"responseMimeType,omitempty"`
	ResponseSchema     json.RawMessage    `json:"responseSchema,omitempty"`
	ResponseModalities []string           `json:"responseModalities,omitempty"`
	ImageConfig        *geminiImageConfig `json:"imageConfig,omitempty"`
}

type geminiGenerateContentRequest struct {
	Contents          []geminiContent         `json:"contents"`
	SystemInstruction *geminiContent          `json:"systemInstruction,omitempty"`
	Tools             []geminiTool            `json:"tools,omitempty"`
	GenerationConfig  *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiGroundingSource struct {
	URI   string `json:"uri"`
	Title string `json:"title"`
}

type geminiGroundingChunk struct {
	Web  *geminiGroundingSource `json:"web,omitempty"`
	Maps *geminiGroundingSource `json:"maps,omitempty"`
}

type geminiGroundingMetadata struct {
	GroundingChunks []geminiGroundingChunk `json:"groundingChunks"`
}

type geminiCandidate struct {
	Content           geminiContent            `json:"content"`
	FinishReason      string                   `json:"finishReason,omitempty"`
	GroundingMetadata *geminiGroundingMetadata `json:"groundingMetadata,omitempty"`
}

type geminiPromptFeedback struct {
	BlockReason string `json:"blockReason,omitempty"`
}

type geminiGenerateContentResponse struct {
	Candidates     []geminiCandidate     `json:"candidates"`
	PromptFeedback *geminiPromptFeedback `json:"promptFeedback,omitempty"`
}

type geminiErrorResponse struct {
	Error struct {
		Code    int    `json:"code,omitempty"`
		Message string `json:"message,omitempty"`
		Status  string `json:"status,omitempty"`
	} `json:"error"`
}
