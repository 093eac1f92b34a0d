package genai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"oracle/internal/domain"
	"oracle/internal/stream"
)

// Stream returns a push source over streamGenerateContent. The request is
// only sent when the source runs. Chunks with no text are skipped.
func (c *Client) Stream(req Request) stream.Source {
	return func(ctx context.Context, emit func(string) error) error {
		model := c.modelFor(req)
		payload, err := encodeRequest(req)
		if err != nil {
			return err
		}
		path := fmt.Sprintf("/models/%s:streamGenerateContent", url.PathEscape(model))
		httpReq, err := c.newRequest(ctx, http.MethodPost, path, url.Values{"alt": {"sse"}}, payload)
		if err != nil {
			return err
		}
		httpReq.Header.Set("Accept", "text/event-stream")

		resp, err := c.do(httpReq)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		return readEvents(ctx, resp, emit)
	}
}

func readEvents(ctx context.Context, resp *http.Response, emit func(string) error) error {
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64<<10), 4<<20)
	dataPrefix := []byte("data:")
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := bytes.TrimSpace(scanner.Bytes())
		if !bytes.HasPrefix(line, dataPrefix) {
			continue
		}
		data := bytes.TrimSpace(line[len(dataPrefix):])
		if len(data) == 0 || bytes.Equal(data, []byte("[DONE]")) {
			continue
		}
		var chunk geminiGenerateContentResponse
		if err := json.Unmarshal(data, &chunk); err != nil {
			return fmt.Errorf("decode stream chunk: %w: %v", domain.ErrMalformedResponse, err)
		}
		text := decodeResponse("", &chunk).Text
		if text == "" {
			continue
		}
		if err := emit(text); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("read stream: %w: %v", domain.ErrUpstreamUnavailable, err)
	}
	return nil
}
