package image

import (
	"context"
	"errors"
	"testing"

	"oracle/internal/domain"
	"oracle/internal/providers/genai"
)

type callerFunc func(context.Context, genai.Request) (*genai.Result, error)

func (f callerFunc) Call(ctx context.Context, req genai.Request) (*genai.Result, error) {
	return f(ctx, req)
}

func imageResult(data []byte) *genai.Result {
	return &genai.Result{Parts: []genai.Part{
		{Text: "here"},
		{InlineData: &genai.InlineData{MIMEType: "image/jpeg", Data: data}},
	}}
}

func TestGenerateUsesFlashByDefault(t *testing.T) {
	var captured genai.Request
	g := NewGeminiGenerator(GeminiOptions{Client: callerFunc(func(_ context.Context, req genai.Request) (*genai.Result, error) {
		captured = req
		return imageResult([]byte{1, 2, 3}), nil
	})})

	asset, err := g.Generate(context.Background(), GenerateRequest{Prompt: "a red mug", AspectRatio: "16:9", Size: "2K"})
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if captured.Model != DefaultModel {
		t.Fatalf("model mismatch: %s", captured.Model)
	}
	if captured.ImageConfig == nil || captured.ImageConfig.AspectRatio != "16:9" || captured.ImageConfig.ImageSize != "" {
		t.Fatalf("unexpected image config: %+v", captured.ImageConfig)
	}
	if len(captured.ResponseModalities) != 1 || captured.ResponseModalities[0] != genai.ModalityImage {
		t.Fatalf("unexpected modalities: %v", captured.ResponseModalities)
	}
	if asset.MIME != "image/jpeg" || len(asset.Data) != 3 {
		t.Fatalf("unexpected asset: %+v", asset)
	}
}

func TestGenerateProModelCarriesSize(t *testing.T) {
	var captured genai.Request
	g := NewGeminiGenerator(GeminiOptions{Client: callerFunc(func(_ context.Context, req genai.Request) (*genai.Result, error) {
		captured = req
		return imageResult([]byte{9}), nil
	})})

	if _, err := g.Generate(context.Background(), GenerateRequest{Prompt: "logo", UsePro: true}); err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if captured.Model != DefaultProModel {
		t.Fatalf("model mismatch: %s", captured.Model)
	}
	if captured.ImageConfig.ImageSize != "1K" || captured.ImageConfig.AspectRatio != "1:1" {
		t.Fatalf("unexpected image config: %+v", captured.ImageConfig)
	}
}

func TestEditSendsSourceBeforePrompt(t *testing.T) {
	var captured genai.Request
	g := NewGeminiGenerator(GeminiOptions{Client: callerFunc(func(_ context.Context, req genai.Request) (*genai.Result, error) {
		captured = req
		return imageResult([]byte{7}), nil
	})})

	_, err := g.Edit(context.Background(), EditRequest{Prompt: "add a hat", Source: genai.InlineData{Data: []byte{1}}})
	if err != nil {
		t.Fatalf("Edit returned error: %v", err)
	}
	parts := captured.Messages[0].Parts
	if len(parts) != 2 || parts[0].InlineData == nil || parts[0].InlineData.MIMEType != "image/png" || parts[1].Text != "add a hat" {
		t.Fatalf("unexpected parts: %+v", parts)
	}
}

func TestGenerateWithoutInlineDataIsMalformed(t *testing.T) {
	g := NewGeminiGenerator(GeminiOptions{Client: callerFunc(func(context.Context, genai.Request) (*genai.Result, error) {
		return &genai.Result{Text: "I cannot draw that"}, nil
	})})

	_, err := g.Generate(context.Background(), GenerateRequest{Prompt: "x"})
	if !errors.Is(err, domain.ErrMalformedResponse) {
		t.Fatalf("expected malformed response, got %v", err)
	}
}

func TestGeneratePropagatesProviderError(t *testing.T) {
	g := NewGeminiGenerator(GeminiOptions{Client: callerFunc(func(context.Context, genai.Request) (*genai.Result, error) {
		return nil, domain.ErrQuotaExceeded
	})})

	if _, err := g.Generate(context.Background(), GenerateRequest{Prompt: "x"}); !errors.Is(err, domain.ErrQuotaExceeded) {
		t.Fatalf("expected quota error, got %v", err)
	}
	if _, err := g.Generate(context.Background(), GenerateRequest{Prompt: "  "}); err == nil {
		t.Fatalf("expected error for blank prompt")
	}
}
