// Package apistatus tracks the process-wide provider outage flag.
package apistatus

import (
	"sync"
	"time"

	"oracle/internal/domain"
	"oracle/internal/infra"
)

// Status is a point-in-time copy of the monitor state.
type Status struct {
	Outage    bool             `json:"outage"`
	Kind      domain.ErrorKind `json:"kind,omitempty"`
	Message   string           `json:"message,omitempty"`
	TrippedAt time.Time        `json:"tripped_at,omitempty"`
	Trips     int              `json:"trips"`
}

// Monitor is tripped by quota failures from any component and cleared
// explicitly by the user.
type Monitor struct {
	mu     sync.RWMutex
	status Status
	now    func() time.Time
	logger *infra.Logger
}

func NewMonitor(logger *infra.Logger) *Monitor {
	return &Monitor{now: time.Now, logger: infra.LoggerOrDiscard(logger)}
}

// Report inspects err and trips the outage flag on quota exhaustion. It
// returns true when the flag was tripped by this call's error.
func (m *Monitor) Report(source string, err error) bool {
	if m == nil || domain.Classify(err) != domain.KindQuotaExceeded {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.status.Outage {
		m.status.TrippedAt = m.now()
	}
	m.status.Outage = true
	m.status.Kind = domain.KindQuotaExceeded
	m.status.Message = domain.UserMessage(err)
	m.status.Trips++
	m.logger.Warn().Err(err).Str("source", source).Msg("apistatus: provider outage reported")
	return true
}

func (m *Monitor) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

func (m *Monitor) Outage() bool {
	return m.Status().Outage
}

// Clear resets the outage flag. The trip counter is kept.
func (m *Monitor) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status.Outage = false
	m.status.Kind = domain.KindNone
	m.status.Message = ""
	m.status.TrippedAt = time.Time{}
}
