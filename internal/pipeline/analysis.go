package pipeline

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/rs/zerolog"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"oracle/internal/providers/prompt"
)

// NoLiveData replaces the context block when discovery and extraction
// produced nothing.
const NoLiveData = "NO LIVE DATA FOUND"

func analysisPrompt(q Query, contextDoc string) string {
	if contextDoc == "" {
		contextDoc = NoLiveData
	}
	sections := make([]string, 0, 4)
	if s := strings.TrimSpace(q.SystemInstruction); s != "" {
		sections = append(sections, s)
	}
	sections = append(sections, "LIVE CONTEXT:\n"+contextDoc)

	task := "TASK:\n" + strings.TrimSpace(q.Task.Instruction)
	if s := strings.TrimSpace(q.Subject); s != "" {
		task += "\nSubject: " + s
	}
	sections = append(sections, task)

	if clause := exclusionClause(q.Exclude); clause != "" {
		sections = append(sections, clause)
	}
	return strings.Join(sections, "\n\n")
}

func (p *Pipeline) analyze(ctx context.Context, q Query, contextDoc string) (*prompt.AnalyzeResponse, error) {
	var schema *jsonschema.Schema
	if q.Task.JSONMode {
		var err error
		if schema, err = p.schemas.get(q.Task.Schema); err != nil {
			return nil, err
		}
	}

	fallback := prompt.Fallback{
		Primary:   p.primary,
		Secondary: p.secondary,
		Validate: func(text string) (string, error) {
			if !q.Task.JSONMode {
				return strings.TrimSpace(text), nil
			}
			fragment, err := prompt.ValidJSON(text)
			if err != nil {
				return "", err
			}
			if err := validateAgainstSchema(schema, []byte(fragment)); err != nil {
				return "", err
			}
			return fragment, nil
		},
		OnFallback: func(reason string, err error) {
			p.monitor.Report("pipeline.analysis", err)
			level := zerolog.WarnLevel
			if reason == "unconfigured" {
				level = zerolog.DebugLevel
			}
			p.logger.WithLevel(level).Err(err).Str("task", q.Task.Name).Str("reason", reason).Msg("pipeline: primary analysis abandoned")
		},
	}
	return fallback.Analyze(ctx, prompt.AnalyzeRequest{
		Task:     q.Task.Name,
		Prompt:   analysisPrompt(q, contextDoc),
		JSONMode: q.Task.JSONMode,
		Schema:   q.Task.Schema,
	})
}

func rawJSON(text string) json.RawMessage {
	return json.RawMessage(append([]byte(nil), text...))
}
