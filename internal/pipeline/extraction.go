package pipeline

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"
)

// extract fetches the first MaxExtracted urls concurrently. Failed pages are
// logged and skipped; extraction never fails the resolve.
func (p *Pipeline) extract(ctx context.Context, live *liveContext) {
	if p.extractor == nil || len(live.urls) == 0 {
		return
	}
	targets := live.urls
	if len(targets) > p.limits.MaxExtracted {
		targets = targets[:p.limits.MaxExtracted]
	}
	pages := make([]extractedPage, len(targets))
	var g errgroup.Group
	for i, u := range targets {
		g.Go(func() error {
			fetchCtx := ctx
			if p.limits.ExtractTimeout > 0 {
				var cancel context.CancelFunc
				fetchCtx, cancel = context.WithTimeout(ctx, p.limits.ExtractTimeout)
				defer cancel()
			}
			text, err := p.extractor.Extract(fetchCtx, u)
			if err != nil {
				p.logger.Debug().Err(err).Str("url", u).Msg("pipeline: extraction failed")
				return nil
			}
			text = strings.TrimSpace(text)
			if text == "" {
				return nil
			}
			pages[i] = extractedPage{url: u, text: truncateRunes(text, p.limits.PerSourceChars)}
			return nil
		})
	}
	_ = g.Wait()
	for _, page := range pages {
		if page.text != "" {
			live.extracted = append(live.extracted, page)
		}
	}
}

// render flattens the accumulator into the context document, capped at
// MaxContextChars. An empty accumulator renders as "".
func (l *liveContext) render(maxChars int) string {
	if len(l.urls) == 0 && len(l.extracted) == 0 {
		return ""
	}
	var b strings.Builder
	for i, u := range l.urls {
		fmt.Fprintf(&b, "[%d] %s\n", i+1, u)
		if i < len(l.snippets) && strings.TrimSpace(l.snippets[i]) != "" {
			fmt.Fprintf(&b, "    %s\n", strings.TrimSpace(l.snippets[i]))
		}
	}
	for _, page := range l.extracted {
		fmt.Fprintf(&b, "\n--- CONTENT FROM %s ---\n%s\n", page.url, page.text)
	}
	return truncateRunes(strings.TrimSpace(b.String()), maxChars)
}

func truncateRunes(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	count := 0
	for i := range s {
		if count == limit {
			return s[:i]
		}
		count++
	}
	return s
}
