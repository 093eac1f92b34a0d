package domain

import (
	"context"
	"errors"
)

var (
	ErrNotFound             = errors.New("not found")
	ErrQuotaExceeded        = errors.New("quota exceeded")
	ErrCredentialInvalid    = errors.New("credential invalid")
	ErrCredentialMissing    = errors.New("credential missing")
	ErrMalformedResponse    = errors.New("malformed response")
	ErrUpstreamUnavailable  = errors.New("upstream unavailable")
	ErrTimeout              = errors.New("timeout")
	ErrProviderUnconfigured = errors.New("provider unconfigured")
	ErrJobFinalized         = errors.New("job already finalized")
	ErrClosed               = errors.New("closed")
)

// ErrorKind is the coarse classification callers branch on.
type ErrorKind string

const (
	KindNone                ErrorKind = ""
	KindQuotaExceeded       ErrorKind = "quota_exceeded"
	KindCredentialInvalid   ErrorKind = "credential_invalid"
	KindCredentialMissing   ErrorKind = "credential_missing"
	KindMalformedResponse   ErrorKind = "malformed_response"
	KindUpstreamUnavailable ErrorKind = "upstream_unavailable"
	KindTimeout             ErrorKind = "timeout"
	KindGeneric             ErrorKind = "generic"
)

// Classify maps an error chain onto an ErrorKind.
func Classify(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrQuotaExceeded):
		return KindQuotaExceeded
	case errors.Is(err, ErrCredentialMissing):
		return KindCredentialMissing
	case errors.Is(err, ErrCredentialInvalid):
		return KindCredentialInvalid
	case errors.Is(err, ErrMalformedResponse):
		return KindMalformedResponse
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, ErrUpstreamUnavailable):
		return KindUpstreamUnavailable
	default:
		return KindGeneric
	}
}

// RequiresUserAction reports whether the failure can only be cleared by the
// user (waiting out a quota or reconnecting a key).
func RequiresUserAction(err error) bool {
	switch Classify(err) {
	case KindQuotaExceeded, KindCredentialInvalid, KindCredentialMissing:
		return true
	default:
		return false
	}
}

// UserMessage renders the user-facing message for a failure.
func UserMessage(err error) string {
	switch Classify(err) {
	case KindNone:
		return ""
	case KindQuotaExceeded:
		return "Quota exceeded: your API key limit was reached. Wait a moment or upgrade your plan."
	case KindCredentialMissing:
		return "API key missing. Connect your key in Settings."
	case KindCredentialInvalid:
		return "Invalid API key. Update it in Settings."
	case KindMalformedResponse:
		return "The response could not be understood. Please try again."
	case KindTimeout:
		return "The operation took too long. Please try again."
	case KindUpstreamUnavailable:
		return "The generation service is unavailable right now. Please try again."
	default:
		return "Something went wrong. Please try again."
	}
}
