package reports

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"oracle/internal/domain"
	"oracle/internal/lifecycle"
	"oracle/internal/pipeline"
	"oracle/internal/session"
)

type stubResolver struct {
	res   *pipeline.Result
	err   error
	calls []pipeline.Query
}

func (s *stubResolver) Resolve(_ context.Context, q pipeline.Query) (*pipeline.Result, error) {
	s.calls = append(s.calls, q)
	if s.err != nil {
		return nil, s.err
	}
	return s.res, nil
}

func TestCatalogueKindsAreComplete(t *testing.T) {
	for _, name := range Names() {
		kind, ok := Lookup(name)
		require.True(t, ok)
		require.NotEmpty(t, kind.Label, name)
		require.NotEmpty(t, kind.StackType, name)
		task := kind.Task(session.Session{Niche: "tea"}, "subject")
		require.NotEmpty(t, task.Instruction, name)
		require.Equal(t, name, task.Name)
	}
	comparison, ok := Lookup("comparison")
	require.True(t, ok)
	require.NotEmpty(t, comparison.Schema)
}

func TestRunWrapsSingleObjectAndStampsStackType(t *testing.T) {
	resolver := &stubResolver{res: &pipeline.Result{
		Provider: "gemini",
		JSON:     []byte(`{"title": "Matcha lattes"}`),
		Sources:  []domain.Citation{{Title: "Web Source", URI: "https://a"}},
	}}
	svc := NewService(resolver, nil, nil)

	report, err := svc.Run(context.Background(), Request{
		Kind:    "trends",
		Exclude: []string{"Cold brew"},
		Session: session.Session{Niche: "tea", Language: "en"},
	})
	require.NoError(t, err)
	require.Equal(t, "trends", report.StackType)
	require.JSONEq(t, `[{"title": "Matcha lattes", "stackType": "trends"}]`, string(report.Items))
	require.Len(t, report.Sources, 1)

	require.Len(t, resolver.calls, 1)
	q := resolver.calls[0]
	require.Equal(t, []string{"Cold brew"}, q.Exclude)
	require.True(t, q.Task.JSONMode)
	require.Contains(t, q.SystemInstruction, "Niche: tea.")
}

func TestRunIgnoresExclusionsForKindsWithoutFetchMore(t *testing.T) {
	resolver := &stubResolver{res: &pipeline.Result{JSON: []byte(`[]`)}}
	svc := NewService(resolver, nil, nil)

	_, err := svc.Run(context.Background(), Request{Kind: "socials", Exclude: []string{"x"}, Session: session.Session{Niche: "tea"}})
	require.NoError(t, err)
	require.Nil(t, resolver.calls[0].Exclude)
}

func TestRunPreconditions(t *testing.T) {
	svc := NewService(&stubResolver{}, nil, nil)

	_, err := svc.Run(context.Background(), Request{Kind: "horoscope"})
	require.ErrorIs(t, err, ErrUnknownKind)

	_, err = svc.Run(context.Background(), Request{Kind: "arbitrage", Session: session.Session{Niche: "tea"}})
	require.ErrorIs(t, err, ErrSubjectRequired)

	_, err = svc.Run(context.Background(), Request{Kind: "trends"})
	require.ErrorIs(t, err, ErrNicheRequired)
}

func TestRunTextReport(t *testing.T) {
	svc := NewService(&stubResolver{res: &pipeline.Result{Provider: "openai", Text: "Calm week."}}, nil, nil)
	svc.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }

	report, err := svc.Run(context.Background(), Request{Kind: "summary", Session: session.Session{Niche: "tea"}})
	require.NoError(t, err)
	require.Equal(t, "Calm week.", report.Text)
	require.Nil(t, report.Items)
	require.NotNil(t, report.Sources)
	require.Equal(t, 2026, report.GeneratedAt.Year())
}

func TestRunTracksLifecycle(t *testing.T) {
	in := lifecycle.NewInterceptor(nil)
	terminals := make(chan lifecycle.Terminal, 1)
	require.NoError(t, RegisterOperations(in, func(term lifecycle.Terminal) { terminals <- term }))

	boom := errors.New("provider down")
	svc := NewService(&stubResolver{err: boom}, in, nil)
	_, err := svc.Run(context.Background(), Request{Kind: "keywords", Session: session.Session{Niche: "tea"}})
	require.ErrorIs(t, err, boom)

	select {
	case term := <-terminals:
		require.Equal(t, OperationKind("keywords"), term.Kind)
		require.ErrorIs(t, term.Err, boom)
	case <-time.After(2 * time.Second):
		t.Fatalf("no terminal signal")
	}
	in.Wait()
	require.Equal(t, lifecycle.GateState{Open: true, ContentReady: true}, in.Gate(lifecycle.DefaultCategory).State())
}
