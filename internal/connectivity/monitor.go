// Package connectivity tracks whether the device can reach the server and
// announces offline-to-online transitions so queued work can be replayed.
package connectivity

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/mathias-bellec/MkulimaLink-sub002/pkg/logger"
)

const defaultProbeInterval = 10 * time.Second

// Monitor holds the current connectivity state. Transitions in either
// direction are recorded, but only the offline-to-online edge notifies
// subscribers; repeated reports of the same state are no-ops.
type Monitor struct {
	logg *logger.Logger

	mu       sync.Mutex
	online   bool
	syncing  bool
	handlers []func(context.Context)
}

// NewMonitor builds a monitor that starts offline until told otherwise.
func NewMonitor(logg *logger.Logger) (*Monitor, error) {
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Monitor{logg: logg}, nil
}

// OnBecameOnline registers a handler invoked once per offline-to-online
// transition. Handlers run synchronously in SetOnline's caller.
func (m *Monitor) OnBecameOnline(fn func(context.Context)) {
	if fn == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers = append(m.handlers, fn)
}

// Online reports the last observed connectivity state.
func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// Syncing reports whether a drain pass currently holds the sync slot.
func (m *Monitor) Syncing() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.syncing
}

// TryBeginSync claims the single sync slot. It returns false when a drain
// is already running, so concurrent triggers collapse into one pass.
func (m *Monitor) TryBeginSync() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.syncing {
		return false
	}
	m.syncing = true
	return true
}

// EndSync releases the sync slot.
func (m *Monitor) EndSync() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.syncing = false
}

// SetOnline records a connectivity observation. The offline-to-online edge
// fires the registered handlers exactly once.
func (m *Monitor) SetOnline(ctx context.Context, online bool) {
	m.mu.Lock()
	if m.online == online {
		m.mu.Unlock()
		return
	}
	m.online = online
	handlers := make([]func(context.Context), 0, len(m.handlers))
	if online {
		handlers = append(handlers, m.handlers...)
	}
	m.mu.Unlock()

	if online {
		m.logg.Info(ctx, "connectivity restored")
		for _, fn := range handlers {
			fn(ctx)
		}
		return
	}
	m.logg.Warn(ctx, "connectivity lost")
}

// Probe reports whether the target URL answers. Any response, even a 5xx,
// proves the network path works; only a transport failure means offline.
type Probe func(ctx context.Context) bool

// HTTPProbe builds a probe that performs a GET against the given URL.
func HTTPProbe(client *http.Client, url string) Probe {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	return func(ctx context.Context) bool {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return false
		}
		resp, err := client.Do(req)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return true
	}
}

// Run polls the probe on a fixed cadence until the context is canceled,
// feeding each observation into SetOnline. Polling is the connectivity
// intake for a headless agent with no platform network events to listen
// to; a process that learns about connectivity another way can skip Run
// and call SetOnline directly.
func (m *Monitor) Run(ctx context.Context, probe Probe, interval time.Duration) error {
	if probe == nil {
		return fmt.Errorf("probe required")
	}
	if interval <= 0 {
		interval = defaultProbeInterval
	}

	m.SetOnline(ctx, probe(ctx))
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logg.Info(ctx, "connectivity monitor context canceled")
			return ctx.Err()
		case <-ticker.C:
			m.SetOnline(ctx, probe(ctx))
		}
	}
}
