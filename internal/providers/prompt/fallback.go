package prompt

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"oracle/internal/domain"
)

// Fallback tries Primary, then Secondary exactly once. A provider that is
// unconfigured, fails, returns empty text, or fails Validate counts as failed.
// When both fail, a primary quota or credential error stays the typed error.
type Fallback struct {
	Primary   Analyzer
	Secondary Analyzer
	// Validate normalizes provider text; a non-nil error rejects the answer.
	Validate func(text string) (string, error)
	// OnFallback receives the reason the primary was abandoned.
	OnFallback func(reason string, err error)
}

func (f *Fallback) Analyze(ctx context.Context, req AnalyzeRequest) (*AnalyzeResponse, error) {
	res, reason, primaryErr := f.attempt(ctx, f.Primary, req)
	if primaryErr == nil {
		return res, nil
	}
	if f.OnFallback != nil {
		f.OnFallback(reason, primaryErr)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res, _, secondaryErr := f.attempt(ctx, f.Secondary, req)
	if secondaryErr == nil {
		res.FallbackReason = reason
		return res, nil
	}
	if errors.Is(secondaryErr, domain.ErrProviderUnconfigured) {
		return nil, primaryErr
	}
	if domain.RequiresUserAction(primaryErr) {
		return nil, fmt.Errorf("%w (secondary: %v)", primaryErr, secondaryErr)
	}
	return nil, fmt.Errorf("%w (primary: %v)", secondaryErr, primaryErr)
}

func (f *Fallback) attempt(ctx context.Context, a Analyzer, req AnalyzeRequest) (*AnalyzeResponse, string, error) {
	if a == nil || !a.Configured() {
		return nil, "unconfigured", domain.ErrProviderUnconfigured
	}
	res, err := a.Analyze(ctx, req)
	if err != nil {
		return nil, fallbackReason(err), err
	}
	if res == nil || strings.TrimSpace(res.Text) == "" {
		return nil, "empty_response", fmt.Errorf("%s returned empty content", a.Name())
	}
	if f.Validate != nil {
		text, err := f.Validate(res.Text)
		if err != nil {
			return nil, "invalid_payload", err
		}
		res.Text = text
	}
	if res.Provider == "" {
		res.Provider = a.Name()
	}
	return res, "", nil
}

func fallbackReason(err error) string {
	switch kind := domain.Classify(err); kind {
	case domain.KindGeneric:
		return "provider_error"
	default:
		return string(kind)
	}
}
