// Package pipeline answers research queries by chaining web discovery,
// content extraction and model analysis.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"golang.org/x/sync/singleflight"

	"oracle/internal/apistatus"
	"oracle/internal/domain"
	"oracle/internal/extract"
	"oracle/internal/infra"
	"oracle/internal/providers/prompt"
)

// ErrEmptyTask rejects a query without a task instruction.
var ErrEmptyTask = errors.New("pipeline: task instruction is required")

// Task describes what the analysis stage must produce.
type Task struct {
	Name        string
	Instruction string
	JSONMode    bool
	// Schema optionally constrains JSON output; it is sent to the primary
	// provider and enforced on whatever provider answers.
	Schema json.RawMessage
}

type Query struct {
	Task              Task
	Subject           string
	Exclude           []string
	SystemInstruction string
}

type Result struct {
	Task                string            `json:"task"`
	Provider            string            `json:"provider"`
	JSON                json.RawMessage   `json:"json,omitempty"`
	Text                string            `json:"text,omitempty"`
	Sources             []domain.Citation `json:"sources"`
	ContextChars        int               `json:"context_chars"`
	UsedFallbackContext bool              `json:"used_fallback_context"`
	UsedSecondary       bool              `json:"used_secondary"`
	FallbackReason      string            `json:"fallback_reason,omitempty"`
}

type Options struct {
	Searcher    prompt.Caller
	SearchModel string
	Extractor   extract.Extractor
	Primary     prompt.Analyzer
	Secondary   prompt.Analyzer
	Monitor     *apistatus.Monitor
	Limits      infra.PipelineLimit
	Logger      *infra.Logger
}

// Pipeline runs discovery, extraction and analysis strictly in that order.
// Concurrent identical queries share one execution.
type Pipeline struct {
	searcher        prompt.Caller
	searchModel     string
	extractor       extract.Extractor
	primary         prompt.Analyzer
	secondary       prompt.Analyzer
	monitor         *apistatus.Monitor
	limits          infra.PipelineLimit
	logger          *infra.Logger
	discoverySchema *jsonschema.Schema
	schemas         *schemaCache
	group           singleflight.Group
}

func New(opts Options) (*Pipeline, error) {
	schema, err := compileSchema(discoverySchemaURL, discoverySchema)
	if err != nil {
		return nil, err
	}
	return &Pipeline{
		searcher:        opts.Searcher,
		searchModel:     opts.SearchModel,
		extractor:       opts.Extractor,
		primary:         opts.Primary,
		secondary:       opts.Secondary,
		monitor:         opts.Monitor,
		limits:          withDefaults(opts.Limits),
		logger:          infra.LoggerOrDiscard(opts.Logger),
		discoverySchema: schema,
		schemas:         newSchemaCache(),
	}, nil
}

func withDefaults(l infra.PipelineLimit) infra.PipelineLimit {
	if l.MaxSources <= 0 {
		l.MaxSources = 5
	}
	if l.MaxExtracted <= 0 {
		l.MaxExtracted = 2
	}
	if l.PerSourceChars <= 0 {
		l.PerSourceChars = 2000
	}
	if l.MaxContextChars <= 0 {
		l.MaxContextChars = 15000
	}
	if l.MaxExclusions <= 0 {
		l.MaxExclusions = 15
	}
	return l
}

// Resolve answers q. Discovery and extraction failures only thin the context;
// analysis failures are returned after the secondary provider was tried once.
func (p *Pipeline) Resolve(ctx context.Context, q Query) (*Result, error) {
	if strings.TrimSpace(q.Task.Instruction) == "" {
		return nil, ErrEmptyTask
	}
	q.Exclude = NormalizeExclusions(q.Exclude, p.limits.MaxExclusions)

	// The shared run outlives any single caller; each caller stops waiting
	// on its own context.
	ch := p.group.DoChan(q.key(), func() (any, error) {
		return p.run(context.WithoutCancel(ctx), q)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		res := r.Val.(*Result)
		if r.Shared {
			res = res.clone()
		}
		return res, nil
	}
}

func (p *Pipeline) run(ctx context.Context, q Query) (*Result, error) {
	start := time.Now()
	log := p.logger.With().Str("task", q.Task.Name).Logger()

	live, err := p.discover(ctx, q)
	if err != nil {
		log.Warn().Err(err).Str("stage", "discovery").Msg("pipeline: discovery failed, continuing without live data")
	}
	p.extract(ctx, live)
	contextDoc := live.render(p.limits.MaxContextChars)

	resp, err := p.analyze(ctx, q, contextDoc)
	if err != nil {
		log.Error().Err(err).Str("stage", "analysis").Msg("pipeline: analysis failed")
		return nil, fmt.Errorf("analyze %s: %w", q.Task.Name, err)
	}

	res := &Result{
		Task:                q.Task.Name,
		Provider:            resp.Provider,
		Sources:             mergeSources(live, resp.Citations),
		ContextChars:        len([]rune(contextDoc)),
		UsedFallbackContext: contextDoc == "",
		UsedSecondary:       resp.FallbackReason != "",
		FallbackReason:      resp.FallbackReason,
	}
	if q.Task.JSONMode {
		res.JSON = rawJSON(resp.Text)
	} else {
		res.Text = resp.Text
	}
	log.Info().
		Str("provider", res.Provider).
		Int("sources", len(res.Sources)).
		Int("context_chars", res.ContextChars).
		Dur("elapsed", time.Since(start)).
		Msg("pipeline: resolved")
	return res, nil
}

// mergeSources prefers grounding citations and falls back to the discovered
// urls, deduplicated by uri.
func mergeSources(live *liveContext, extra []domain.Citation) []domain.Citation {
	out := make([]domain.Citation, 0, len(live.citations)+len(live.urls))
	seen := make(map[string]struct{})
	add := func(c domain.Citation) {
		if c.URI == "" {
			return
		}
		if _, dup := seen[c.URI]; dup {
			return
		}
		seen[c.URI] = struct{}{}
		out = append(out, c)
	}
	for _, c := range live.citations {
		add(c)
	}
	for _, c := range extra {
		add(c)
	}
	for _, u := range live.urls {
		add(domain.Citation{Title: "Web Source", URI: u})
	}
	return out
}

func (q Query) key() string {
	var b strings.Builder
	b.WriteString(q.Task.Name)
	b.WriteByte(0)
	b.WriteString(q.Task.Instruction)
	b.WriteByte(0)
	if q.Task.JSONMode {
		b.Write(q.Task.Schema)
		b.WriteString("json")
	}
	b.WriteByte(0)
	b.WriteString(q.Subject)
	b.WriteByte(0)
	b.WriteString(q.SystemInstruction)
	for _, e := range q.Exclude {
		b.WriteByte(0)
		b.WriteString(e)
	}
	return b.String()
}

func (r *Result) clone() *Result {
	cp := *r
	cp.JSON = append(json.RawMessage(nil), r.JSON...)
	cp.Sources = append([]domain.Citation(nil), r.Sources...)
	return &cp
}
