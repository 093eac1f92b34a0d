package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"oracle/internal/credentials"
	"oracle/internal/domain"
)

type credentialRequest struct {
	APIKey string `json:"api_key"`
}

// CredentialsPut validates and stores a provider key. The new key is used by
// the next generation call.
func (a *App) CredentialsPut(w http.ResponseWriter, r *http.Request) {
	provider := strings.ToLower(chi.URLParam(r, "provider"))
	if provider != credentials.ProviderGemini && provider != credentials.ProviderOpenAI {
		a.error(w, http.StatusNotFound, "not_found", "unknown provider")
		return
	}
	var req credentialRequest
	if err := decode(w, r, &req); err != nil || strings.TrimSpace(req.APIKey) == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "api_key is required")
		return
	}
	if a.ValidateKey != nil {
		if err := a.ValidateKey(r.Context(), provider, req.APIKey); err != nil {
			status, code, message := describe(err)
			if domain.Classify(err) == domain.KindGeneric {
				status, code, message = http.StatusBadRequest, "credential_invalid", err.Error()
			}
			a.error(w, status, code, message)
			return
		}
	}
	if err := a.Credentials.SetToken(r.Context(), provider, req.APIKey); err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]string{"provider": provider, "api_key": credentials.Mask(req.APIKey)})
}

func (a *App) CredentialsDelete(w http.ResponseWriter, r *http.Request) {
	provider := strings.ToLower(chi.URLParam(r, "provider"))
	if err := a.Credentials.Delete(r.Context(), provider); err != nil {
		a.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
