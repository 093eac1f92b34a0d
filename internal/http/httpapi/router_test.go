package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"oracle/internal/apistatus"
	"oracle/internal/domain"
	"oracle/internal/http/handlers"
	"oracle/internal/lifecycle"
	"oracle/internal/media"
	"oracle/internal/providers/image"
	"oracle/internal/qna"
	"oracle/internal/reports"
)

type stubReports struct {
	last reports.Request
	err  error
}

func (s *stubReports) Run(_ context.Context, req reports.Request) (*reports.Report, error) {
	s.last = req
	if s.err != nil {
		return nil, s.err
	}
	return &reports.Report{Kind: req.Kind, StackType: req.Kind, Provider: "gemini", Items: json.RawMessage(`[]`)}, nil
}

type stubAsker struct {
	chunks []string
	err    error
}

func (s stubAsker) Ask(_ context.Context, _ qna.Question, onChunk func(string) error) (string, error) {
	var b strings.Builder
	for _, c := range s.chunks {
		b.WriteString(c)
		if err := onChunk(c); err != nil {
			return b.String(), err
		}
	}
	return b.String(), s.err
}

type stubImages struct{}

func (stubImages) Generate(context.Context, image.GenerateRequest) (*image.Asset, error) {
	return &image.Asset{MIME: "image/png", Data: []byte("png")}, nil
}

func (stubImages) Edit(context.Context, image.EditRequest) (*image.Asset, error) {
	return &image.Asset{MIME: "image/png", Data: []byte("png")}, nil
}

type stubCredentials struct {
	stored map[string]string
}

func (s *stubCredentials) SetToken(_ context.Context, provider, token string) error {
	s.stored[provider] = token
	return nil
}

func (s *stubCredentials) Delete(_ context.Context, provider string) error {
	delete(s.stored, provider)
	return nil
}

type fixture struct {
	app     *handlers.App
	reports *stubReports
	creds   *stubCredentials
	router  http.Handler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	manager := media.NewManager(media.Options{Images: stubImages{}})
	t.Cleanup(manager.Close)
	in := lifecycle.NewInterceptor(nil)
	if err := reports.RegisterOperations(in, nil); err != nil {
		t.Fatalf("register operations: %v", err)
	}
	f := &fixture{
		reports: &stubReports{},
		creds:   &stubCredentials{stored: map[string]string{}},
	}
	f.app = &handlers.App{
		Reports:     f.reports,
		Media:       manager,
		QnA:         stubAsker{chunks: []string{"Hello ", "there"}},
		Lifecycle:   in,
		Monitor:     apistatus.NewMonitor(nil),
		Credentials: f.creds,
	}
	f.router = NewRouter(f.app, RouterOptions{Logger: zerolog.Nop(), RateLimitPerMin: 100})
	return f
}

func (f *fixture) do(method, path, body string, header ...string) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.RemoteAddr = "203.0.113.9:5000"
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), err)
	}
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodGet, "/v1/healthz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Fatalf("expected request id header")
	}
}

func TestReportsRunFillsSessionFromRequest(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodPost, "/v1/reports/trends", `{"session": {"niche": "kopi"}, "exclude": ["a"]}`,
		"Accept-Language", "id-ID,id;q=0.9")
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d body=%s", rec.Code, rec.Body.String())
	}
	if f.reports.last.Kind != "trends" {
		t.Fatalf("unexpected kind: %s", f.reports.last.Kind)
	}
	if f.reports.last.Session.Language != "id" || f.reports.last.Session.Country != "ID" {
		t.Fatalf("session defaults not applied: %+v", f.reports.last.Session)
	}
	if len(f.reports.last.Exclude) != 1 {
		t.Fatalf("exclusions dropped: %v", f.reports.last.Exclude)
	}
}

func TestReportsRunMapsErrors(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{reports.ErrUnknownKind, http.StatusNotFound, "not_found"},
		{reports.ErrNicheRequired, http.StatusBadRequest, "bad_request"},
		{domain.ErrQuotaExceeded, http.StatusTooManyRequests, "quota_exceeded"},
		{domain.ErrCredentialMissing, http.StatusUnauthorized, "credential_missing"},
		{domain.ErrMalformedResponse, http.StatusBadGateway, "malformed_response"},
		{errors.New("boom"), http.StatusInternalServerError, "internal"},
	}
	for _, tc := range cases {
		f := newFixture(t)
		f.reports.err = tc.err
		rec := f.do(http.MethodPost, "/v1/reports/trends", `{"session": {"niche": "kopi"}}`)
		if rec.Code != tc.status {
			t.Fatalf("%v: status = %d, want %d", tc.err, rec.Code, tc.status)
		}
		var body map[string]map[string]string
		decodeBody(t, rec, &body)
		if body["error"]["code"] != tc.code {
			t.Fatalf("%v: code = %q, want %q", tc.err, body["error"]["code"], tc.code)
		}
	}
}

func TestReportsRunRejectsUnknownFields(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodPost, "/v1/reports/trends", `{"nope": true}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
}

func TestMediaImageJobLifecycle(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodPost, "/v1/media/images", `{"prompt": "mug", "originating_card_id": "card-1"}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("unexpected status: %d body=%s", rec.Code, rec.Body.String())
	}
	var accepted struct {
		JobID  string `json:"job_id"`
		Status string `json:"status"`
	}
	decodeBody(t, rec, &accepted)
	if accepted.JobID == "" || accepted.Status != "queued" {
		t.Fatalf("unexpected response: %+v", accepted)
	}
	f.app.Media.Wait()

	rec = f.do(http.MethodGet, "/v1/media/jobs/"+accepted.JobID, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	var job domain.MediaJob
	decodeBody(t, rec, &job)
	if job.Status != domain.JobStatusCompleted || job.Progress != 100 || job.Asset == nil {
		t.Fatalf("unexpected job: %+v", job)
	}

	rec = f.do(http.MethodGet, "/v1/cards/card-1/busy", "")
	var busy struct {
		Busy bool `json:"busy"`
	}
	decodeBody(t, rec, &busy)
	if busy.Busy {
		t.Fatalf("card still busy after completion")
	}

	rec = f.do(http.MethodGet, "/v1/media/jobs", "")
	var list struct {
		Jobs []domain.MediaJob `json:"jobs"`
	}
	decodeBody(t, rec, &list)
	if len(list.Jobs) != 1 {
		t.Fatalf("unexpected job list: %+v", list.Jobs)
	}
}

func TestMediaRequestValidation(t *testing.T) {
	f := newFixture(t)
	if rec := f.do(http.MethodPost, "/v1/media/images", `{"prompt": " "}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("empty prompt status: %d", rec.Code)
	}
	if rec := f.do(http.MethodPost, "/v1/media/videos", `{"prompt": "reel"}`); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("unconfigured video status: %d", rec.Code)
	}
	if rec := f.do(http.MethodGet, "/v1/media/jobs/missing", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("missing job status: %d", rec.Code)
	}
}

func TestQnAStreamsEvents(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodPost, "/v1/qna", `{"question": "what sells?"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("unexpected content type: %s", ct)
	}
	body := rec.Body.String()
	if strings.Count(body, "event: chunk\n") != 2 {
		t.Fatalf("expected two chunk events: %s", body)
	}
	if !strings.Contains(body, `event: end`+"\n"+`data: {"answer":"Hello there"}`) {
		t.Fatalf("missing end event: %s", body)
	}
}

func TestQnAErrorBeforeFirstChunkIsJSON(t *testing.T) {
	f := newFixture(t)
	f.app.QnA = stubAsker{err: domain.ErrQuotaExceeded}
	rec := f.do(http.MethodPost, "/v1/qna", `{"question": "q"}`)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
}

func TestQnAErrorAfterChunkIsEvent(t *testing.T) {
	f := newFixture(t)
	f.app.QnA = stubAsker{chunks: []string{"part"}, err: domain.ErrUpstreamUnavailable}
	rec := f.do(http.MethodPost, "/v1/qna", `{"question": "q"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "event: error\n") {
		t.Fatalf("missing error event: %s", rec.Body.String())
	}
}

func TestGateStateAndClose(t *testing.T) {
	f := newFixture(t)
	ticket, err := f.app.Lifecycle.Begin(reports.OperationKind("trends"))
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	_ = ticket.Succeed()
	f.app.Lifecycle.Wait()

	rec := f.do(http.MethodGet, "/v1/gates/"+lifecycle.DefaultCategory, "")
	var state lifecycle.GateState
	decodeBody(t, rec, &state)
	if !state.Open || !state.ContentReady {
		t.Fatalf("unexpected gate state: %+v", state)
	}

	rec = f.do(http.MethodPost, "/v1/gates/"+lifecycle.DefaultCategory+"/close", "")
	decodeBody(t, rec, &state)
	if state.Open || state.ContentReady {
		t.Fatalf("gate not closed: %+v", state)
	}

	if rec := f.do(http.MethodGet, "/v1/gates/unknown", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown gate status: %d", rec.Code)
	}
}

func TestStatusOutageCycle(t *testing.T) {
	f := newFixture(t)
	f.app.Monitor.Report("test", domain.ErrQuotaExceeded)

	var status apistatus.Status
	decodeBody(t, f.do(http.MethodGet, "/v1/status", ""), &status)
	if !status.Outage || status.Kind != domain.KindQuotaExceeded {
		t.Fatalf("unexpected status: %+v", status)
	}

	if rec := f.do(http.MethodDelete, "/v1/status/outage", ""); rec.Code != http.StatusNoContent {
		t.Fatalf("clear status: %d", rec.Code)
	}
	decodeBody(t, f.do(http.MethodGet, "/v1/status", ""), &status)
	if status.Outage {
		t.Fatalf("outage not cleared")
	}
}

func TestCredentialsPut(t *testing.T) {
	f := newFixture(t)
	f.app.ValidateKey = func(_ context.Context, _ string, key string) error {
		if key == "bad" {
			return domain.ErrCredentialInvalid
		}
		return nil
	}

	if rec := f.do(http.MethodPut, "/v1/credentials/gemini", `{"api_key": "bad"}`); rec.Code != http.StatusUnauthorized {
		t.Fatalf("invalid key status: %d", rec.Code)
	}
	if _, ok := f.creds.stored["gemini"]; ok {
		t.Fatalf("invalid key was stored")
	}

	rec := f.do(http.MethodPut, "/v1/credentials/gemini", `{"api_key": "AIzaSyExample1234"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	var body map[string]string
	decodeBody(t, rec, &body)
	if body["api_key"] == "AIzaSyExample1234" || !strings.HasSuffix(body["api_key"], "1234") {
		t.Fatalf("key not masked: %q", body["api_key"])
	}
	if f.creds.stored["gemini"] != "AIzaSyExample1234" {
		t.Fatalf("key not stored")
	}

	if rec := f.do(http.MethodPut, "/v1/credentials/other", `{"api_key": "x"}`); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown provider status: %d", rec.Code)
	}
}
