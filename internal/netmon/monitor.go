// Package netmon watches server reachability and reports the
// disconnected→connected transition.
package netmon

import (
	"context"
	"sync"
	"time"

	"github.com/Cobzariu/CarApp/internal/logging"
)

const probeTimeout = 3 * time.Second

// ProbeFunc checks reachability; nil error means connected.
type ProbeFunc func(ctx context.Context) error

// Monitor probes connectivity on a ticker. OnOnline fires exactly once per
// offline→online edge, never on repeat connected ticks and never on the
// online→offline edge. The initial state is disconnected, so the first
// successful probe counts as an edge.
type Monitor struct {
	probe    ProbeFunc
	interval time.Duration
	onOnline func()
	logger   logging.Logger

	mu        sync.Mutex
	connected bool
	stopped   bool
	cancel    context.CancelFunc
}

func New(probe ProbeFunc, interval time.Duration, onOnline func(), logger logging.Logger) *Monitor {
	if logger == nil {
		logger = logging.Default()
	}
	return &Monitor{
		probe:    probe,
		interval: interval,
		onOnline: onOnline,
		logger:   logger,
	}
}

// Connected reports the reachability seen by the last probe.
func (m *Monitor) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// Start launches the watcher goroutine. The first probe runs immediately.
func (m *Monitor) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)

	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		cancel()
		return
	}
	m.cancel = cancel
	m.mu.Unlock()

	go func() {
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()

		m.check(runCtx)
		for {
			select {
			case <-ticker.C:
				m.check(runCtx)
			case <-runCtx.Done():
				return
			}
		}
	}()
}

// Stop tears the watcher down. No callback fires after Stop returns.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	m.stopped = true
	cancel := m.cancel
	m.cancel = nil
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

func (m *Monitor) check(ctx context.Context) {
	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	err := m.probe(probeCtx)
	cancel()
	online := err == nil

	// The callback runs under the lock so Stop cannot return while an
	// edge is still being delivered.
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		return
	}
	wasConnected := m.connected
	m.connected = online

	switch {
	case online && !wasConnected:
		m.logger.Info(ctx, "connectivity restored")
		if m.onOnline != nil {
			m.onOnline()
		}
	case !online && wasConnected:
		m.logger.Info(ctx, "connectivity lost", "err", err)
	}
}
