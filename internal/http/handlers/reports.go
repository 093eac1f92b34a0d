package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"oracle/internal/middleware"
	"oracle/internal/reports"
	"oracle/internal/session"
)

type reportRequest struct {
	Subject string          `json:"subject,omitempty"`
	Exclude []string        `json:"exclude,omitempty"`
	Session session.Session `json:"session"`
}

// ReportsRun resolves one catalogue report synchronously.
func (a *App) ReportsRun(w http.ResponseWriter, r *http.Request) {
	var req reportRequest
	if err := decode(w, r, &req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	report, err := a.Reports.Run(r.Context(), reports.Request{
		Kind:    chi.URLParam(r, "kind"),
		Subject: req.Subject,
		Exclude: req.Exclude,
		Session: middleware.WithSessionDefaults(r.Context(), req.Session),
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, report)
}

// ReportKinds lists the catalogue.
func (a *App) ReportKinds(w http.ResponseWriter, r *http.Request) {
	type kindView struct {
		Name         string `json:"name"`
		Label        string `json:"label"`
		StackType    string `json:"stack_type"`
		FetchMore    bool   `json:"fetch_more"`
		NeedsSubject bool   `json:"needs_subject"`
	}
	names := reports.Names()
	out := make([]kindView, 0, len(names))
	for _, name := range names {
		k, _ := reports.Lookup(name)
		out = append(out, kindView{Name: k.Name, Label: k.Label, StackType: k.StackType, FetchMore: k.FetchMore, NeedsSubject: k.NeedsSubject})
	}
	a.json(w, http.StatusOK, map[string]any{"kinds": out})
}
