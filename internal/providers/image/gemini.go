// Package image generates and edits images through the Gemini image models.
package image

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"oracle/internal/domain"
	"oracle/internal/providers/genai"
)

const (
	DefaultModel    = "gemini-2.5-flash-image"
	DefaultProModel = "gemini-3-pro-image-preview"
)

// GenerateRequest describes a text-to-image call. Size only applies to the
// pro model.
type GenerateRequest struct {
	Prompt      string
	AspectRatio string
	UsePro      bool
	Size        string
}

// EditRequest rewrites Source according to Prompt.
type EditRequest struct {
	Prompt string
	Source genai.InlineData
}

// Asset is decoded image output, ready to be stored.
type Asset struct {
	MIME string
	Data []byte
}

// Generator is the contract the media manager depends on.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (*Asset, error)
	Edit(ctx context.Context, req EditRequest) (*Asset, error)
}

type GeminiOptions struct {
	Client   genai.Caller
	Model    string
	ProModel string
}

type GeminiGenerator struct {
	client   genai.Caller
	model    string
	proModel string
}

func NewGeminiGenerator(opts GeminiOptions) *GeminiGenerator {
	g := &GeminiGenerator{client: opts.Client, model: opts.Model, proModel: opts.ProModel}
	if g.model == "" {
		g.model = DefaultModel
	}
	if g.proModel == "" {
		g.proModel = DefaultProModel
	}
	return g
}

func (g *GeminiGenerator) Generate(ctx context.Context, req GenerateRequest) (*Asset, error) {
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return nil, errors.New("image: prompt is required")
	}
	call := genai.TextRequest(g.model, prompt)
	call.ResponseModalities = []string{genai.ModalityImage}
	cfg := &genai.ImageConfig{AspectRatio: coalesce(req.AspectRatio, "1:1")}
	if req.UsePro {
		call.Model = g.proModel
		cfg.ImageSize = coalesce(req.Size, "1K")
	}
	call.ImageConfig = cfg
	return g.invoke(ctx, call)
}

func (g *GeminiGenerator) Edit(ctx context.Context, req EditRequest) (*Asset, error) {
	if len(req.Source.Data) == 0 {
		return nil, errors.New("image: source image is required")
	}
	call := genai.Request{
		Model: g.model,
		Messages: []genai.Message{{
			Role: genai.RoleUser,
			Parts: []genai.Part{
				{InlineData: &genai.InlineData{MIMEType: coalesce(req.Source.MIMEType, "image/png"), Data: req.Source.Data}},
				{Text: strings.TrimSpace(req.Prompt)},
			},
		}},
		ResponseModalities: []string{genai.ModalityImage},
	}
	return g.invoke(ctx, call)
}

func (g *GeminiGenerator) invoke(ctx context.Context, call genai.Request) (*Asset, error) {
	res, err := g.client.Call(ctx, call)
	if err != nil {
		return nil, err
	}
	inline := res.FirstInline()
	if inline == nil {
		return nil, fmt.Errorf("image: model %s returned no image: %w", call.Model, domain.ErrMalformedResponse)
	}
	return &Asset{MIME: coalesce(inline.MIMEType, "image/png"), Data: inline.Data}, nil
}

func coalesce(v, fallback string) string {
	if v = strings.TrimSpace(v); v != "" {
		return v
	}
	return fallback
}

var _ Generator = (*GeminiGenerator)(nil)
