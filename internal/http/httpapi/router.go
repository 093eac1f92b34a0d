package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"oracle/internal/http/handlers"
	"oracle/internal/infra"
	"oracle/internal/middleware"
)

// RouterOptions carries the cross-cutting settings of the HTTP surface.
type RouterOptions struct {
	Logger          infra.Logger
	CORSOrigins     []string
	RateLimitPerMin int
	DefaultLocale   string
	Country         middleware.CountryLookup
	// StaticDir, when set, is served under /static for locally stored assets.
	StaticDir string
}

func NewRouter(app *handlers.App, opts RouterOptions) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID(opts.Logger),
		chimw.RealIP,
		chimw.Recoverer,
		middleware.CORS(opts.CORSOrigins),
		middleware.I18N(opts.DefaultLocale, opts.Country),
		middleware.Logger(opts.Logger),
	)

	if opts.StaticDir != "" {
		r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.Dir(opts.StaticDir))))
	}

	r.Route("/v1", func(r chi.Router) {
		r.Get("/healthz", app.Health)
		r.Get("/status", app.Status)
		r.Delete("/status/outage", app.ClearOutage)

		r.Get("/gates/{category}", app.GateState)
		r.Post("/gates/{category}/close", app.GateClose)

		r.Put("/credentials/{provider}", app.CredentialsPut)
		r.Delete("/credentials/{provider}", app.CredentialsDelete)

		r.Get("/media/jobs", app.MediaJobs)
		r.Get("/media/jobs/{job_id}", app.MediaJob)
		r.Get("/media/events", app.MediaEvents)
		r.Get("/cards/{card_id}/busy", app.CardBusy)
		r.Get("/reports", app.ReportKinds)

		// Everything below spends provider quota.
		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimit(opts.RateLimitPerMin, time.Minute))
			r.Post("/reports/{kind}", app.ReportsRun)
			r.Post("/media/images", app.MediaImages)
			r.Post("/media/edits", app.MediaEdits)
			r.Post("/media/videos", app.MediaVideos)
			r.Post("/media/analyses", app.MediaAnalyses)
			r.Post("/qna", app.QnAAsk)
		})
	})

	return r
}
