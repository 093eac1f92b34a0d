package genai

import (
	"fmt"
	"net/http"
	"strings"

	"oracle/internal/domain"
)

// APIError is a non-2xx Gemini response. It unwraps to the domain sentinel
// matching its Kind so callers can branch with errors.Is.
type APIError struct {
	Kind    domain.ErrorKind
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("gemini status %d", e.Status)
	}
	return fmt.Sprintf("gemini status %d: %s", e.Status, e.Message)
}

func (e *APIError) Unwrap() error {
	switch e.Kind {
	case domain.KindQuotaExceeded:
		return domain.ErrQuotaExceeded
	case domain.KindCredentialInvalid:
		return domain.ErrCredentialInvalid
	case domain.KindUpstreamUnavailable:
		return domain.ErrUpstreamUnavailable
	default:
		return nil
	}
}

// classifyStatus maps a failed response onto an APIError.
func classifyStatus(status int, message string) *APIError {
	lower := strings.ToLower(message)
	kind := domain.KindGeneric
	switch {
	case status == http.StatusTooManyRequests || strings.Contains(lower, "quota"):
		kind = domain.KindQuotaExceeded
	case status == http.StatusBadRequest && strings.Contains(lower, "api key not valid"):
		kind = domain.KindCredentialInvalid
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		kind = domain.KindCredentialInvalid
	case status >= http.StatusInternalServerError:
		kind = domain.KindUpstreamUnavailable
	}
	return &APIError{Kind: kind, Status: status, Message: strings.TrimSpace(message)}
}
