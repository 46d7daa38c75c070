package heartbeat

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/seismolink/siteapi/internal/domain"
)

const (
	// DefaultInterval is how often dependencies are pinged
	DefaultInterval = 30 * time.Second

	pingTimeout = 5 * time.Second
)

// SweepFunc drops expired in-memory state and returns how many entries went
type SweepFunc func() int

// Monitor pings dependencies periodically, logging when one goes down or
// comes back, and runs housekeeping sweeps on the same tick
type Monitor struct {
	checks   map[string]domain.Pinger
	sweeps   map[string]SweepFunc
	interval time.Duration
	logger   *zap.Logger

	mu   sync.Mutex
	up   map[string]bool
	last time.Time
}

// NewMonitor creates a new heartbeat monitor
func NewMonitor(checks map[string]domain.Pinger, interval time.Duration, logger *zap.Logger) *Monitor {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Monitor{
		checks:   checks,
		sweeps:   map[string]SweepFunc{},
		interval: interval,
		logger:   logger,
		up:       map[string]bool{},
	}
}

// AddSweep registers fn to run on every tick
func (m *Monitor) AddSweep(name string, fn SweepFunc) {
	m.sweeps[name] = fn
}

// Run starts the heartbeat monitor
func (m *Monitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.logger.Info("[Heartbeat] monitor started",
		zap.Duration("interval", m.interval),
		zap.Int("checks", len(m.checks)),
	)

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("[Heartbeat] monitor stopped")
			return nil
		case <-ticker.C:
			m.Tick(ctx)
		}
	}
}

// Tick runs one round of checks and sweeps and returns the names of the
// dependencies that are down
func (m *Monitor) Tick(ctx context.Context) []string {
	var down []string

	for name, p := range m.checks {
		pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
		err := p.Ping(pingCtx)
		cancel()

		m.mu.Lock()
		wasUp, seen := m.up[name]
		m.up[name] = err == nil
		m.mu.Unlock()

		switch {
		case err != nil:
			down = append(down, name)
			if !seen || wasUp {
				m.logger.Warn("[Heartbeat] dependency down", zap.String("check", name), zap.Error(err))
			}
		case seen && !wasUp:
			m.logger.Info("[Heartbeat] dependency recovered", zap.String("check", name))
		}
	}

	for name, fn := range m.sweeps {
		if n := fn(); n > 0 {
			m.logger.Debug("[Heartbeat] swept entries", zap.String("sweep", name), zap.Int("removed", n))
		}
	}

	m.mu.Lock()
	m.last = time.Now()
	m.mu.Unlock()

	sort.Strings(down)
	return down
}

// LastTick returns when the last round finished
func (m *Monitor) LastTick() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}
