package handlers

import (
	"net/http"
)

func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Status reports the provider outage flag.
func (a *App) Status(w http.ResponseWriter, r *http.Request) {
	if a.Monitor == nil {
		a.json(w, http.StatusOK, map[string]bool{"outage": false})
		return
	}
	a.json(w, http.StatusOK, a.Monitor.Status())
}

// ClearOutage resets the outage flag once the user has dealt with it.
func (a *App) ClearOutage(w http.ResponseWriter, r *http.Request) {
	if a.Monitor != nil {
		a.Monitor.Clear()
	}
	w.WriteHeader(http.StatusNoContent)
}
