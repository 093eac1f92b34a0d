// Package stream turns a push-style chunk producer into a pull-style sequence
// of units that a consumer takes one at a time.
package stream

import (
	"context"
	"strings"
	"sync"

	"oracle/internal/domain"
)

// Source pushes chunks into emit until it returns. A non-nil return is
// delivered to the consumer as an Error unit. emit returns domain.ErrClosed
// once the handle is closed, and the source should stop.
type Source func(ctx context.Context, emit func(string) error) error

// UnitKind discriminates the units a Handle yields.
type UnitKind int

const (
	UnitChunk UnitKind = iota
	UnitError
	UnitEnd
)

func (k UnitKind) String() string {
	switch k {
	case UnitChunk:
		return "chunk"
	case UnitError:
		return "error"
	case UnitEnd:
		return "end"
	default:
		return "unknown"
	}
}

// Unit is one element of the pulled sequence.
type Unit struct {
	Kind UnitKind
	Text string
	Err  error
}

// Handle is the consumer side of a bridged source. Chunks are buffered
// without bound so a slow consumer never blocks the producer.
type Handle struct {
	mu      sync.Mutex
	queue   []Unit
	ready   chan struct{}
	ended   bool
	closed  bool
	cancel  context.CancelFunc
	drained chan struct{}
}

// Open starts draining src in the background and returns the consumer handle.
func Open(ctx context.Context, src Source) *Handle {
	ctx, cancel := context.WithCancel(ctx)
	h := &Handle{
		ready:   make(chan struct{}, 1),
		cancel:  cancel,
		drained: make(chan struct{}),
	}
	go h.drain(ctx, src)
	return h
}

func (h *Handle) drain(ctx context.Context, src Source) {
	defer close(h.drained)
	defer h.cancel()

	if err := src(ctx, h.emit); err != nil {
		h.push(Unit{Kind: UnitError, Err: err})
	}
	h.push(Unit{Kind: UnitEnd})
}

func (h *Handle) emit(chunk string) error {
	if !h.push(Unit{Kind: UnitChunk, Text: chunk}) {
		return domain.ErrClosed
	}
	return nil
}

// push appends u unless the handle is closed or already ended.
func (h *Handle) push(u Unit) bool {
	h.mu.Lock()
	if h.closed || h.ended {
		h.mu.Unlock()
		return false
	}
	h.queue = append(h.queue, u)
	if u.Kind == UnitEnd {
		h.ended = true
	}
	h.mu.Unlock()

	h.signal()
	return true
}

func (h *Handle) signal() {
	select {
	case h.ready <- struct{}{}:
	default:
	}
}

// Take blocks until the next unit is available. After End has been taken,
// further calls return End again. It returns domain.ErrClosed once the handle
// is closed, or the context error if ctx ends first.
func (h *Handle) Take(ctx context.Context) (Unit, error) {
	for {
		h.mu.Lock()
		if h.closed {
			h.mu.Unlock()
			return Unit{}, domain.ErrClosed
		}
		if len(h.queue) > 0 {
			u := h.queue[0]
			if u.Kind == UnitEnd {
				// End stays at the head so repeated takes observe it.
				h.mu.Unlock()
				h.signal()
				return u, nil
			}
			h.queue[0] = Unit{}
			h.queue = h.queue[1:]
			more := len(h.queue) > 0
			h.mu.Unlock()
			if more {
				h.signal()
			}
			return u, nil
		}
		h.mu.Unlock()

		select {
		case <-ctx.Done():
			return Unit{}, ctx.Err()
		case <-h.ready:
		}
	}
}

// Close stops the source and discards anything not yet taken. It is safe to
// call more than once.
func (h *Handle) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	h.queue = nil
	h.mu.Unlock()

	h.cancel()
	h.signal()
}

// Done is closed once the source has returned.
func (h *Handle) Done() <-chan struct{} {
	return h.drained
}

// Collect takes units until End and returns the concatenated chunks. The
// first Error unit aborts collection and is returned with the partial text.
func Collect(ctx context.Context, h *Handle) (string, error) {
	var b strings.Builder
	for {
		u, err := h.Take(ctx)
		if err != nil {
			return b.String(), err
		}
		switch u.Kind {
		case UnitChunk:
			b.WriteString(u.Text)
		case UnitError:
			return b.String(), u.Err
		case UnitEnd:
			return b.String(), nil
		}
	}
}

// Slice builds a Source that emits chunks in order. It is handy for tests and
// for replaying cached answers.
func Slice(chunks ...string) Source {
	return func(ctx context.Context, emit func(string) error) error {
		for _, c := range chunks {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := emit(c); err != nil {
				return err
			}
		}
		return nil
	}
}
