// Package lifecycle tracks long-running operations and drives the gate that
// tells a UI when their content is ready.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"oracle/internal/infra"
)

// DefaultCategory is the gate used when a registration names none.
const DefaultCategory = "interstitial"

var (
	ErrUnknownKind     = errors.New("lifecycle: operation kind not registered")
	ErrDuplicateKind   = errors.New("lifecycle: operation kind already registered")
	ErrTicketFinalized = errors.New("lifecycle: ticket already finalized")
)

// Start is passed to OnStart hooks.
type Start struct {
	Kind          string
	CorrelationID string
	StartedAt     time.Time
}

// Terminal is passed to OnTerminal hooks. Err is nil on success.
type Terminal struct {
	Kind          string
	CorrelationID string
	Err           error
	Elapsed       time.Duration
}

// Registration declares one trackable operation kind.
type Registration struct {
	Category   string
	OnStart    func(Start)
	OnTerminal func(Terminal)
}

// Interceptor pairs every Begin with the terminal signal of the same ticket.
// Tickets are correlated by id, so one kind finishing never resolves
// another kind's wait.
type Interceptor struct {
	mu       sync.Mutex
	registry map[string]Registration
	gates    map[string]*Gate
	pending  map[string]*Ticket
	waiters  sync.WaitGroup
	now      func() time.Time
	logger   *infra.Logger
}

func NewInterceptor(logger *infra.Logger) *Interceptor {
	return &Interceptor{
		registry: make(map[string]Registration),
		gates:    make(map[string]*Gate),
		pending:  make(map[string]*Ticket),
		now:      time.Now,
		logger:   infra.LoggerOrDiscard(logger),
	}
}

func (i *Interceptor) Register(kind string, reg Registration) error {
	if kind == "" {
		return errors.New("lifecycle: empty operation kind")
	}
	if reg.Category == "" {
		reg.Category = DefaultCategory
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	if _, exists := i.registry[kind]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateKind, kind)
	}
	i.registry[kind] = reg
	i.gateLocked(reg.Category)
	return nil
}

// Kinds lists the registered operation kinds in sorted order.
func (i *Interceptor) Kinds() []string {
	i.mu.Lock()
	defer i.mu.Unlock()
	out := make([]string, 0, len(i.registry))
	for k := range i.registry {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Gate returns the gate for category, creating it closed if needed.
func (i *Interceptor) Gate(category string) *Gate {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.gateLocked(category)
}

// HasGate reports whether any registration uses category.
func (i *Interceptor) HasGate(category string) bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	_, ok := i.gates[category]
	return ok
}

func (i *Interceptor) gateLocked(category string) *Gate {
	g, ok := i.gates[category]
	if !ok {
		g = &Gate{}
		i.gates[category] = g
	}
	return g
}

// Pending reports how many tickets are still waiting for a terminal signal.
func (i *Interceptor) Pending() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.pending)
}

// Begin starts tracking one invocation of kind. The gate is reset and opened
// before OnStart runs; a background waiter marks it ready once the returned
// ticket is finalized.
func (i *Interceptor) Begin(kind string) (*Ticket, error) {
	i.mu.Lock()
	reg, ok := i.registry[kind]
	if !ok {
		i.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
	gate := i.gateLocked(reg.Category)
	t := &Ticket{
		id:        uuid.NewString(),
		kind:      kind,
		startedAt: i.now(),
		done:      make(chan error, 1),
	}
	i.pending[t.id] = t
	i.waiters.Add(1)
	i.mu.Unlock()

	gate.reopen()
	if reg.OnStart != nil {
		reg.OnStart(Start{Kind: kind, CorrelationID: t.id, StartedAt: t.startedAt})
	}
	i.logger.Debug().Str("kind", kind).Str("correlation_id", t.id).Msg("lifecycle: operation started")

	go i.await(t, gate, reg)
	return t, nil
}

func (i *Interceptor) await(t *Ticket, gate *Gate, reg Registration) {
	defer i.waiters.Done()
	err := <-t.done

	i.mu.Lock()
	delete(i.pending, t.id)
	i.mu.Unlock()

	gate.markReady()
	term := Terminal{Kind: t.kind, CorrelationID: t.id, Err: err, Elapsed: i.now().Sub(t.startedAt)}
	if reg.OnTerminal != nil {
		reg.OnTerminal(term)
	}
	evt := i.logger.Debug()
	if err != nil {
		evt = evt.Err(err)
	}
	evt.Str("kind", t.kind).Str("correlation_id", t.id).Dur("elapsed", term.Elapsed).Msg("lifecycle: operation finished")
}

// Wait blocks until every begun ticket has been finalized and handled.
func (i *Interceptor) Wait() {
	i.waiters.Wait()
}

// Track runs fn between Begin and the matching terminal signal and returns
// fn's error.
func (i *Interceptor) Track(ctx context.Context, kind string, fn func(ctx context.Context) error) error {
	t, err := i.Begin(kind)
	if err != nil {
		return err
	}
	ctx = WithCorrelationID(ctx, t.ID())
	// Links the caller's request_id, when ctx carries a scoped logger.
	zerolog.Ctx(ctx).Debug().Str("kind", kind).Str("correlation_id", t.ID()).Msg("lifecycle: tracking")
	if err := fn(ctx); err != nil {
		_ = t.Fail(err)
		return err
	}
	_ = t.Succeed()
	return nil
}

// Ticket is the handle of one tracked invocation. Exactly one of Succeed or
// Fail takes effect.
type Ticket struct {
	id        string
	kind      string
	startedAt time.Time
	once      sync.Once
	done      chan error
}

func (t *Ticket) ID() string   { return t.id }
func (t *Ticket) Kind() string { return t.kind }

func (t *Ticket) Succeed() error { return t.finish(nil) }

func (t *Ticket) Fail(err error) error {
	if err == nil {
		err = errors.New("operation failed")
	}
	return t.finish(err)
}

func (t *Ticket) finish(err error) error {
	finalized := false
	t.once.Do(func() {
		t.done <- err
		finalized = true
	})
	if !finalized {
		return ErrTicketFinalized
	}
	return nil
}

type correlationKey struct{}

// WithCorrelationID stores the ticket id on ctx for downstream logging.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey{}, id)
}

func CorrelationID(ctx context.Context) string {
	if v, ok := ctx.Value(correlationKey{}).(string); ok {
		return v
	}
	return ""
}
