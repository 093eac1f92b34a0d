package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// GateState returns whether the interstitial for a category is showing and
// whether its content has arrived.
func (a *App) GateState(w http.ResponseWriter, r *http.Request) {
	category := chi.URLParam(r, "category")
	if !a.Lifecycle.HasGate(category) {
		a.error(w, http.StatusNotFound, "not_found", "unknown gate category")
		return
	}
	a.json(w, http.StatusOK, a.Lifecycle.Gate(category).State())
}

// GateClose dismisses the interstitial. Closing is always the caller's call.
func (a *App) GateClose(w http.ResponseWriter, r *http.Request) {
	category := chi.URLParam(r, "category")
	if !a.Lifecycle.HasGate(category) {
		a.error(w, http.StatusNotFound, "not_found", "unknown gate category")
		return
	}
	gate := a.Lifecycle.Gate(category)
	gate.Close()
	a.json(w, http.StatusOK, gate.State())
}
