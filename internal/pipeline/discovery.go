package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"oracle/internal/domain"
	"oracle/internal/providers/genai"
	"oracle/internal/providers/prompt"
)

// liveContext is the per-call accumulator. It is built fresh by every
// resolve and never outlives it.
type liveContext struct {
	urls      []string
	snippets  []string
	extracted []extractedPage
	citations []domain.Citation
}

type extractedPage struct {
	url  string
	text string
}

type discoveryPayload struct {
	URLs     []string `json:"urls"`
	Snippets []string `json:"snippets"`
}

func discoveryPrompt(q Query, maxSources int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Search the web for up to %d recent, authoritative sources relevant to the following research task.\n", maxSources)
	fmt.Fprintf(&b, "Task: %s\n", q.Task.Name)
	if s := strings.TrimSpace(q.Subject); s != "" {
		fmt.Fprintf(&b, "Subject: %s\n", s)
	}
	b.WriteString(`Respond only with JSON of the form {"urls": ["https://..."], "snippets": ["one sentence summary per url"]}.`)
	return b.String()
}

// discover runs the single search-grounded call. Every failure degrades to an
// empty context; the error is returned for logging only.
func (p *Pipeline) discover(ctx context.Context, q Query) (*liveContext, error) {
	live := &liveContext{}
	if p.searcher == nil {
		return live, errors.New("no search client configured")
	}
	req := genai.TextRequest(p.searchModel, discoveryPrompt(q, p.limits.MaxSources))
	req.GoogleSearch = true
	res, err := p.searcher.Call(ctx, req)
	if err != nil {
		p.monitor.Report("pipeline.discovery", err)
		return live, err
	}
	payload, err := p.parseDiscovery(res.Text)
	if err != nil {
		return live, err
	}
	live.urls, live.snippets = capSources(payload.URLs, payload.Snippets, p.limits.MaxSources)
	live.citations = res.Citations
	return live, nil
}

func (p *Pipeline) parseDiscovery(text string) (*discoveryPayload, error) {
	fragment := prompt.ExtractJSONFragment(text)
	if fragment == "" {
		return nil, fmt.Errorf("discovery returned no json: %w", domain.ErrMalformedResponse)
	}
	if err := validateAgainstSchema(p.discoverySchema, []byte(fragment)); err != nil {
		return nil, err
	}
	var payload discoveryPayload
	if err := json.Unmarshal([]byte(fragment), &payload); err != nil {
		return nil, fmt.Errorf("decode discovery: %w: %v", domain.ErrMalformedResponse, err)
	}
	return &payload, nil
}

// capSources removes exact duplicate urls, keeps at most limit of them and
// trims snippets to the same length.
func capSources(urls, snippets []string, limit int) ([]string, []string) {
	seen := make(map[string]struct{}, len(urls))
	kept := make([]string, 0, min(len(urls), limit))
	for _, u := range urls {
		if u == "" {
			continue
		}
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}
		kept = append(kept, u)
		if len(kept) == limit {
			break
		}
	}
	if len(snippets) > len(kept) {
		snippets = snippets[:len(kept)]
	}
	return kept, append([]string(nil), snippets...)
}
