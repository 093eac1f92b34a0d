// Package extract fetches a web page and reduces it to readable text.
package extract

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"oracle/internal/infra"
)

const maxBodyBytes = 2 << 20

// Extractor turns a URL into plain text.
type Extractor interface {
	Extract(ctx context.Context, url string) (string, error)
}

// Options configures an HTTPExtractor.
type Options struct {
	HTTPClient *http.Client
	Timeout    time.Duration
	UserAgent  string
	Logger     *infra.Logger
}

// HTTPExtractor downloads pages over HTTP and strips markup.
type HTTPExtractor struct {
	client    *http.Client
	timeout   time.Duration
	userAgent string
	logger    *infra.Logger
}

func NewHTTPExtractor(opts Options) *HTTPExtractor {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ua := opts.UserAgent
	if ua == "" {
		ua = "oracle-extractor/1.0"
	}
	return &HTTPExtractor{client: client, timeout: timeout, userAgent: ua, logger: infra.LoggerOrDiscard(opts.Logger)}
}

// Extract fetches url and returns its visible text with whitespace collapsed.
func (e *HTTPExtractor) Extract(ctx context.Context, url string) (string, error) {
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return "", fmt.Errorf("extract: unsupported url %q", url)
	}
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("extract: create request: %w", err)
	}
	req.Header.Set("User-Agent", e.userAgent)
	req.Header.Set("Accept", "text/html,text/plain;q=0.9,*/*;q=0.1")

	resp, err := e.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("extract: fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return "", fmt.Errorf("extract: status %d", resp.StatusCode)
	}

	body := io.LimitReader(resp.Body, maxBodyBytes)
	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	switch {
	case mediaType == "" || mediaType == "text/html" || mediaType == "application/xhtml+xml":
		text, err := HTMLText(body)
		if err != nil {
			return "", err
		}
		e.logger.Debug().Str("url", url).Int("chars", len(text)).Msg("extract: page extracted")
		return text, nil
	case strings.HasPrefix(mediaType, "text/"):
		raw, err := io.ReadAll(body)
		if err != nil {
			return "", fmt.Errorf("extract: read body: %w", err)
		}
		return collapseSpace(string(raw)), nil
	default:
		return "", fmt.Errorf("extract: unsupported content type %q", mediaType)
	}
}

var skipped = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Noscript: true,
	atom.Template: true,
	atom.Svg:      true,
	atom.Iframe:   true,
	atom.Head:     true,
	atom.Nav:      true,
	atom.Footer:   true,
}

var blocks = map[atom.Atom]bool{
	atom.P: true, atom.Div: true, atom.Br: true, atom.Li: true, atom.Tr: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Section: true, atom.Article: true, atom.Td: true,
}

// HTMLText tokenizes r and returns the visible text.
func HTMLText(r io.Reader) (string, error) {
	z := html.NewTokenizer(r)
	var b strings.Builder
	depth := 0
	for {
		switch z.Next() {
		case html.ErrorToken:
			if err := z.Err(); err != nil && !errors.Is(err, io.EOF) {
				return "", fmt.Errorf("extract: parse html: %w", err)
			}
			return collapseSpace(b.String()), nil
		case html.StartTagToken:
			tok := z.Token()
			if skipped[tok.DataAtom] {
				depth++
			} else if blocks[tok.DataAtom] {
				b.WriteByte('\n')
			}
		case html.EndTagToken:
			tok := z.Token()
			if skipped[tok.DataAtom] && depth > 0 {
				depth--
			} else if blocks[tok.DataAtom] {
				b.WriteByte('\n')
			}
		case html.SelfClosingTagToken:
			if tok := z.Token(); blocks[tok.DataAtom] {
				b.WriteByte('\n')
			}
		case html.TextToken:
			if depth == 0 {
				b.Write(z.Text())
				b.WriteByte(' ')
			}
		}
	}
}

// collapseSpace joins runs of whitespace into single spaces while keeping
// one newline between non-empty lines.
func collapseSpace(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if fields := strings.Fields(line); len(fields) > 0 {
			out = append(out, strings.Join(fields, " "))
		}
	}
	return strings.Join(out, "\n")
}
