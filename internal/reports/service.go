package reports

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"oracle/internal/domain"
	"oracle/internal/infra"
	"oracle/internal/lifecycle"
	"oracle/internal/pipeline"
	"oracle/internal/session"
)

var (
	ErrUnknownKind     = errors.New("reports: unknown report kind")
	ErrSubjectRequired = errors.New("reports: subject is required for this report")
	ErrNicheRequired   = errors.New("reports: session niche is required")
)

// Resolver is the pipeline entry point reports depend on.
type Resolver interface {
	Resolve(ctx context.Context, q pipeline.Query) (*pipeline.Result, error)
}

// Tracker wraps a report run in a lifecycle ticket.
type Tracker interface {
	Track(ctx context.Context, kind string, fn func(ctx context.Context) error) error
}

type Request struct {
	Kind    string          `json:"kind"`
	Subject string          `json:"subject,omitempty"`
	Exclude []string        `json:"exclude,omitempty"`
	Session session.Session `json:"session"`
}

type Report struct {
	Kind                string            `json:"kind"`
	Label               string            `json:"label"`
	StackType           string            `json:"stack_type"`
	Provider            string            `json:"provider"`
	Items               json.RawMessage   `json:"items,omitempty"`
	Text                string            `json:"text,omitempty"`
	Sources             []domain.Citation `json:"sources"`
	UsedFallbackContext bool              `json:"used_fallback_context"`
	UsedSecondary       bool              `json:"used_secondary"`
	GeneratedAt         time.Time         `json:"generated_at"`
}

type Service struct {
	resolver Resolver
	tracker  Tracker
	now      func() time.Time
	logger   *infra.Logger
}

// NewService builds the report runner. tracker may be nil.
func NewService(resolver Resolver, tracker Tracker, logger *infra.Logger) *Service {
	return &Service{resolver: resolver, tracker: tracker, now: time.Now, logger: infra.LoggerOrDiscard(logger)}
}

// RegisterOperations declares every report kind as a trackable lifecycle
// operation on the default gate.
func RegisterOperations(in *lifecycle.Interceptor, onTerminal func(lifecycle.Terminal)) error {
	for _, name := range Names() {
		if err := in.Register(OperationKind(name), lifecycle.Registration{OnTerminal: onTerminal}); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) Run(ctx context.Context, req Request) (*Report, error) {
	kind, ok := Lookup(req.Kind)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, req.Kind)
	}
	if kind.NeedsSubject && strings.TrimSpace(req.Subject) == "" {
		return nil, ErrSubjectRequired
	}
	if !kind.NeedsSubject && strings.TrimSpace(req.Session.Niche) == "" {
		return nil, ErrNicheRequired
	}

	q := pipeline.Query{
		Task:              kind.Task(req.Session, req.Subject),
		Subject:           strings.TrimSpace(req.Subject),
		SystemInstruction: req.Session.SystemInstruction(),
	}
	if kind.FetchMore {
		q.Exclude = req.Exclude
	}

	var (
		report      *Report
		correlation string
	)
	run := func(ctx context.Context) error {
		correlation = lifecycle.CorrelationID(ctx)
		res, err := s.resolver.Resolve(ctx, q)
		if err != nil {
			return err
		}
		report, err = s.shape(kind, res)
		return err
	}
	var err error
	if s.tracker != nil {
		err = s.tracker.Track(ctx, OperationKind(kind.Name), run)
	} else {
		err = run(ctx)
	}
	if err != nil {
		s.logger.Warn().Err(err).Str("kind", kind.Name).Str("correlation_id", correlation).Msg("reports: run failed")
		return nil, err
	}
	return report, nil
}

func (s *Service) shape(kind Kind, res *pipeline.Result) (*Report, error) {
	report := &Report{
		Kind:                kind.Name,
		Label:               kind.Label,
		StackType:           kind.StackType,
		Provider:            res.Provider,
		Text:                res.Text,
		Sources:             res.Sources,
		UsedFallbackContext: res.UsedFallbackContext,
		UsedSecondary:       res.UsedSecondary,
		GeneratedAt:         s.now().UTC(),
	}
	if report.Sources == nil {
		report.Sources = []domain.Citation{}
	}
	if !kind.JSONMode {
		return report, nil
	}
	items, err := stampItems(res.JSON, kind)
	if err != nil {
		return nil, err
	}
	report.Items = items
	return report, nil
}

// stampItems wraps single objects for list kinds and tags each object with
// the kind's stack type.
func stampItems(raw json.RawMessage, kind Kind) (json.RawMessage, error) {
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("decode report items: %w: %v", domain.ErrMalformedResponse, err)
	}
	if obj, ok := decoded.(map[string]any); ok && kind.List {
		decoded = []any{obj}
	}
	switch v := decoded.(type) {
	case []any:
		for _, item := range v {
			if obj, ok := item.(map[string]any); ok {
				obj["stackType"] = kind.StackType
			}
		}
	case map[string]any:
		if kind.Schema == nil {
			v["stackType"] = kind.StackType
		}
	}
	out, err := json.Marshal(decoded)
	if err != nil {
		return nil, fmt.Errorf("encode report items: %w", err)
	}
	return out, nil
}
