package connectivity

import (
	"context"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

// Probe answers whether the network currently looks reachable.
type Probe func(ctx context.Context) bool

// Monitor tracks device reachability and reports transitions. Reachability
// can come from a periodic probe, from the host platform pushing into
// Report, or both; either way subscribers only hear edges, never repeats.
type Monitor struct {
	probe    Probe
	interval time.Duration
	onChange func(online bool)
	log      *slog.Logger

	online   atomic.Bool
	stop     chan struct{}
	stopOnce sync.Once
}

type Config struct {
	// Probe is optional; without one the monitor only relays Report calls.
	Probe    Probe
	Interval time.Duration
	OnChange func(online bool)
	Logger   *slog.Logger
}

func New(cfg Config) *Monitor {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Second
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	m := &Monitor{
		probe:    cfg.Probe,
		interval: cfg.Interval,
		onChange: cfg.OnChange,
		log:      log.With("component", "connectivity"),
		stop:     make(chan struct{}),
	}
	m.online.Store(true)
	return m
}

// DialProbe probes reachability by opening a TCP connection to addr.
func DialProbe(addr string) Probe {
	return func(ctx context.Context) bool {
		d := net.Dialer{Timeout: 2 * time.Second}
		conn, err := d.DialContext(ctx, "tcp", addr)
		if err != nil {
			return false
		}
		_ = conn.Close()
		return true
	}
}

// Start launches the probe loop; a no-op when no probe is configured.
func (m *Monitor) Start(ctx context.Context) {
	if m.probe == nil {
		return
	}
	go m.run(ctx)
}

func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stop) })
}

// Online reports the last observed reachability.
func (m *Monitor) Online() bool { return m.online.Load() }

// Report feeds an external reachability signal, e.g. from the host
// platform. Repeats of the current state are ignored.
func (m *Monitor) Report(online bool) {
	if m.online.Swap(online) == online {
		return
	}
	m.log.Info("connectivity changed", "online", online)
	if m.onChange != nil {
		m.onChange(online)
	}
}

func (m *Monitor) run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-m.stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Report(m.probe(ctx))
		}
	}
}
