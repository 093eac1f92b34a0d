package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func corsHandler(origins ...string) (http.Handler, *bool) {
	called := new(bool)
	return CORS(origins)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*called = true
	})), called
}

func TestCORSListedOriginGetsCredentialsAndExposedHeaders(t *testing.T) {
	h, called := corsHandler("http://localhost:5173/")
	req := httptest.NewRequest(http.MethodGet, "/v1/media/jobs", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if !*called {
		t.Fatalf("expected request to reach handler")
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "http://localhost:5173" {
		t.Fatalf("unexpected allow origin %q", rec.Header().Get("Access-Control-Allow-Origin"))
	}
	if rec.Header().Get("Access-Control-Allow-Credentials") != "true" {
		t.Fatalf("expected credentials allowed")
	}
	if rec.Header().Get("Access-Control-Expose-Headers") != corsExposedHeaders {
		t.Fatalf("unexpected exposed headers %q", rec.Header().Get("Access-Control-Expose-Headers"))
	}
}

func TestCORSPreflight(t *testing.T) {
	tests := []struct {
		name    string
		origins []string
		origin  string
		want    int
		allow   string
	}{
		{name: "listed", origins: []string{"https://app.example"}, origin: "https://app.example", want: http.StatusNoContent, allow: "https://app.example"},
		{name: "wildcard", origins: []string{"*"}, origin: "https://other.example", want: http.StatusNoContent, allow: "*"},
		{name: "unlisted", origins: []string{"https://app.example"}, origin: "https://evil.example", want: http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, called := corsHandler(tt.origins...)
			req := httptest.NewRequest(http.MethodOptions, "/v1/qna", nil)
			req.Header.Set("Origin", tt.origin)
			req.Header.Set("Access-Control-Request-Method", http.MethodPost)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
			if *called {
				t.Fatalf("preflight must not reach handler")
			}
			if rec.Header().Get("Access-Control-Allow-Origin") != tt.allow {
				t.Fatalf("allow origin = %q, want %q", rec.Header().Get("Access-Control-Allow-Origin"), tt.allow)
			}
		})
	}
}

func TestCORSPlainOptionsPassesThrough(t *testing.T) {
	h, called := corsHandler("https://app.example")
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodOptions, "/v1/healthz", nil))
	if !*called {
		t.Fatalf("expected non-preflight OPTIONS to reach handler")
	}
}
