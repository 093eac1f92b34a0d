package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"oracle/internal/apistatus"
	"oracle/internal/domain"
	"oracle/internal/infra"
	"oracle/internal/lifecycle"
	"oracle/internal/media"
	"oracle/internal/pipeline"
	"oracle/internal/qna"
	"oracle/internal/reports"
)

// ReportRunner runs one catalogue report.
type ReportRunner interface {
	Run(ctx context.Context, req reports.Request) (*reports.Report, error)
}

// Asker streams an answer to a question.
type Asker interface {
	Ask(ctx context.Context, q qna.Question, onChunk func(string) error) (string, error)
}

// CredentialWriter replaces or removes a provider key in the local store.
type CredentialWriter interface {
	SetToken(ctx context.Context, provider, token string) error
	Delete(ctx context.Context, provider string) error
}

// KeyValidator probes a candidate key before it is stored.
type KeyValidator func(ctx context.Context, provider, key string) error

type App struct {
	Reports     ReportRunner
	Media       *media.Manager
	History     domain.JobHistory
	QnA         Asker
	Lifecycle   *lifecycle.Interceptor
	Monitor     *apistatus.Monitor
	Credentials CredentialWriter
	ValidateKey KeyValidator
	Logger      *infra.Logger
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (a *App) error(w http.ResponseWriter, status int, code, message string) {
	a.json(w, status, map[string]errorBody{"error": {Code: code, Message: message}})
}

// fail maps err onto a status code and a user-facing message.
func (a *App) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code, message := describe(err)
	if status >= http.StatusInternalServerError {
		a.requestLogger(r).Error().Err(err).Str("path", r.URL.Path).Msg("http: request failed")
	}
	a.error(w, status, code, message)
}

// requestLogger prefers the request-scoped logger installed by
// middleware.RequestID.
func (a *App) requestLogger(r *http.Request) *zerolog.Logger {
	if l := zerolog.Ctx(r.Context()); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return infra.LoggerOrDiscard(a.Logger)
}

func describe(err error) (int, string, string) {
	switch {
	case errors.Is(err, reports.ErrUnknownKind), errors.Is(err, lifecycle.ErrUnknownKind):
		return http.StatusNotFound, "not_found", err.Error()
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not_found", "not found"
	case errors.Is(err, reports.ErrSubjectRequired),
		errors.Is(err, reports.ErrNicheRequired),
		errors.Is(err, pipeline.ErrEmptyTask),
		errors.Is(err, media.ErrInvalidRequest),
		errors.Is(err, qna.ErrEmptyQuestion):
		return http.StatusBadRequest, "bad_request", err.Error()
	case errors.Is(err, domain.ErrProviderUnconfigured):
		return http.StatusServiceUnavailable, "provider_unconfigured", err.Error()
	}

	kind := domain.Classify(err)
	message := domain.UserMessage(err)
	switch kind {
	case domain.KindQuotaExceeded:
		return http.StatusTooManyRequests, string(kind), message
	case domain.KindCredentialMissing, domain.KindCredentialInvalid:
		return http.StatusUnauthorized, string(kind), message
	case domain.KindMalformedResponse:
		return http.StatusBadGateway, string(kind), message
	case domain.KindUpstreamUnavailable:
		return http.StatusServiceUnavailable, string(kind), message
	case domain.KindTimeout:
		return http.StatusGatewayTimeout, string(kind), message
	default:
		return http.StatusInternalServerError, "internal", message
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// Media uploads travel base64 encoded inside JSON.
const maxBodyBytes = 32 << 20
