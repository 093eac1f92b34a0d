// Package qna answers free-form questions over the reports and media a user
// has already produced, streaming the answer as it is generated.
package qna

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"oracle/internal/apistatus"
	"oracle/internal/domain"
	"oracle/internal/infra"
	"oracle/internal/lifecycle"
	"oracle/internal/providers/genai"
	"oracle/internal/session"
	"oracle/internal/stream"
)

// OperationKind is the lifecycle kind every question is tracked under.
const OperationKind = "qna.ask"

var ErrEmptyQuestion = errors.New("qna: question is required")

// Streamer opens a streamed generation. *genai.Client implements it.
type Streamer interface {
	Stream(req genai.Request) stream.Source
}

// JobLister exposes the media jobs whose completed entries join the context.
type JobLister interface {
	List() []domain.MediaJob
}

// Tracker wraps a question in a lifecycle ticket.
type Tracker interface {
	Track(ctx context.Context, kind string, fn func(ctx context.Context) error) error
}

// Question carries the user's question plus the report sections selected as
// context, keyed by section name.
type Question struct {
	Question string                     `json:"question"`
	Session  session.Session            `json:"session"`
	Sections map[string]json.RawMessage `json:"sections,omitempty"`
}

type Options struct {
	Streamer Streamer
	Jobs     JobLister
	Tracker  Tracker
	Monitor  *apistatus.Monitor
	Model    string
	Logger   *infra.Logger
}

type Service struct {
	streamer Streamer
	jobs     JobLister
	tracker  Tracker
	monitor  *apistatus.Monitor
	model    string
	logger   *infra.Logger
}

func NewService(opts Options) *Service {
	return &Service{
		streamer: opts.Streamer,
		jobs:     opts.Jobs,
		tracker:  opts.Tracker,
		monitor:  opts.Monitor,
		model:    opts.Model,
		logger:   infra.LoggerOrDiscard(opts.Logger),
	}
}

// RegisterOperation declares the question kind on the default gate.
func RegisterOperation(in *lifecycle.Interceptor, onTerminal func(lifecycle.Terminal)) error {
	return in.Register(OperationKind, lifecycle.Registration{OnTerminal: onTerminal})
}

// Ask streams the answer to q. Each chunk is passed to onChunk as it arrives
// and the concatenation is returned. On failure the partial answer is
// returned with the error. onChunk may be nil.
func (s *Service) Ask(ctx context.Context, q Question, onChunk func(string) error) (string, error) {
	if strings.TrimSpace(q.Question) == "" {
		return "", ErrEmptyQuestion
	}
	if s.streamer == nil {
		return "", fmt.Errorf("%w: question answering", domain.ErrProviderUnconfigured)
	}
	doc, err := s.BuildContext(q.Sections)
	if err != nil {
		return "", err
	}

	var answer strings.Builder
	run := func(ctx context.Context) error {
		req := genai.TextRequest(s.model, fmt.Sprintf("Context: %s. Question: %s", doc, strings.TrimSpace(q.Question)))
		req.SystemInstruction = q.Session.SystemInstruction()
		req.GoogleSearch = true

		h := stream.Open(ctx, s.streamer.Stream(req))
		defer h.Close()
		for {
			u, err := h.Take(ctx)
			if err != nil {
				return err
			}
			switch u.Kind {
			case stream.UnitChunk:
				answer.WriteString(u.Text)
				if onChunk != nil {
					if err := onChunk(u.Text); err != nil {
						return err
					}
				}
			case stream.UnitError:
				return u.Err
			case stream.UnitEnd:
				return nil
			}
		}
	}

	if s.tracker != nil {
		err = s.tracker.Track(ctx, OperationKind, run)
	} else {
		err = run(ctx)
	}
	if err != nil {
		s.monitor.Report("qna.ask", err)
		s.logger.Warn().Err(err).Int("partial_chars", answer.Len()).Msg("qna: answer failed")
		return answer.String(), err
	}
	s.logger.Debug().Int("chars", answer.Len()).Msg("qna: answered")
	return answer.String(), nil
}

type mediaEntry struct {
	Type     domain.JobType        `json:"type"`
	Prompt   string                `json:"prompt"`
	Analysis *domain.MediaAnalysis `json:"analysis,omitempty"`
}

// BuildContext renders the selected sections plus the completed media
// history as one indented JSON document. Empty sections are skipped.
func (s *Service) BuildContext(sections map[string]json.RawMessage) (string, error) {
	doc := make(map[string]any, len(sections)+1)
	names := make([]string, 0, len(sections))
	for name := range sections {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		raw := sections[name]
		if emptySection(raw) {
			continue
		}
		if !json.Valid(raw) {
			return "", fmt.Errorf("qna: section %q is not valid JSON", name)
		}
		doc[name] = raw
	}

	if s.jobs != nil {
		var history []mediaEntry
		for _, job := range s.jobs.List() {
			if job.Status != domain.JobStatusCompleted {
				continue
			}
			history = append(history, mediaEntry{Type: job.Type, Prompt: job.Prompt, Analysis: job.Analysis})
		}
		if len(history) > 0 {
			doc["mediaHistory"] = history
		}
	}

	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("qna: encode context: %w", err)
	}
	return string(out), nil
}

func emptySection(raw json.RawMessage) bool {
	switch strings.TrimSpace(string(raw)) {
	case "", "null", "[]", "{}":
		return true
	}
	return false
}
