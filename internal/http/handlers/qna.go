package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"oracle/internal/domain"
	"oracle/internal/middleware"
	"oracle/internal/qna"
)

// QnAAsk streams the answer as server-sent events: one "chunk" event per
// generated piece, then "end" with the full answer or "error".
func (a *App) QnAAsk(w http.ResponseWriter, r *http.Request) {
	var q qna.Question
	if err := decode(w, r, &q); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		a.error(w, http.StatusInternalServerError, "internal", "streaming not supported")
		return
	}
	q.Session = middleware.WithSessionDefaults(r.Context(), q.Session)

	started := false
	start := func() {
		if started {
			return
		}
		started = true
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")
		w.WriteHeader(http.StatusOK)
	}

	answer, err := a.QnA.Ask(r.Context(), q, func(chunk string) error {
		start()
		if err := writeEvent(w, "chunk", map[string]string{"text": chunk}); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	})
	if err != nil && !started {
		// Nothing streamed yet, so the failure can still be a plain JSON error.
		a.fail(w, r, err)
		return
	}
	start()
	if err != nil {
		_, code, message := describe(err)
		_ = writeEvent(w, "error", errorBody{Code: code, Message: message})
	} else {
		_ = writeEvent(w, "end", map[string]string{"answer": answer})
	}
	flusher.Flush()
}

func writeEvent(w http.ResponseWriter, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", event, err)
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data); err != nil {
		return fmt.Errorf("write %s event: %w", event, domain.ErrClosed)
	}
	return nil
}
