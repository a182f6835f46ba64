package poller

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/example/ride-tracker/internal/models"
	"github.com/example/ride-tracker/internal/observability"
	"github.com/example/ride-tracker/internal/ridesync"
)

// Sink is the slice of the reconciler the poller needs: somewhere to push
// snapshots, plus the staleness clock that gates whether a poll tick is
// allowed to hit the network at all.
type Sink interface {
	ApplySnapshot(src ridesync.Source, snap models.RideSnapshot)
	LastUpdateAt() time.Time
	TrackingPosition() bool
}

// Fetcher performs the snapshot fetch.
type Fetcher interface {
	FetchSnapshot(ctx context.Context, rideID string) (models.RideSnapshot, error)
}

type Config struct {
	RideID  string
	Fetcher Fetcher
	Sink    Sink
	Logger  *slog.Logger

	// Interval is the tick period. A tick only fetches when the state is
	// stale; a healthy realtime channel keeps polls suppressed.
	Interval time.Duration
	// StaleWhileTracked applies while driver positions are expected,
	// StaleWhileIdle while only status changes are being watched.
	StaleWhileTracked time.Duration
	StaleWhileIdle    time.Duration
	// FetchTimeout bounds a single fetch.
	FetchTimeout time.Duration
}

// Poller is the fallback feeder: it fetches ride snapshots on a timer, but
// only when no update from any source has been observed recently. It feeds
// the reconciler through the exact same snapshot path as the channel, so
// the state machine cannot tell the sources apart.
type Poller struct {
	cfg Config
	log *slog.Logger
	now func() time.Time

	online   atomic.Bool
	force    chan struct{}
	stop     chan struct{}
	stopOnce sync.Once
}

func New(cfg Config) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = 10 * time.Second
	}
	if cfg.StaleWhileTracked <= 0 {
		cfg.StaleWhileTracked = 10 * time.Second
	}
	if cfg.StaleWhileIdle <= 0 {
		cfg.StaleWhileIdle = 45 * time.Second
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 5 * time.Second
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	p := &Poller{
		cfg:   cfg,
		log:   log.With("component", "poller", "ride_id", cfg.RideID),
		now:   time.Now,
		force: make(chan struct{}, 1),
		stop:  make(chan struct{}),
	}
	p.online.Store(true)
	return p
}

// Start launches the poll loop.
func (p *Poller) Start(ctx context.Context) {
	go p.run(ctx)
}

// Stop halts the loop; a stopped poller never feeds the sink again.
func (p *Poller) Stop() {
	p.stopOnce.Do(func() { close(p.stop) })
}

// ForceFetch requests one immediate fetch that bypasses the staleness
// gate, used by the connectivity monitor on reconnect so missed events are
// caught up before the next scheduled tick.
func (p *Poller) ForceFetch() {
	select {
	case p.force <- struct{}{}:
	default:
	}
}

// SetOnline gates the loop: while offline no network calls are issued.
func (p *Poller) SetOnline(online bool) {
	p.online.Store(online)
}

func (p *Poller) run(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-p.stop:
			return
		case <-ctx.Done():
			return
		case <-p.force:
			p.fetch(ctx)
		case <-ticker.C:
			p.tick(ctx)
		}
	}
}

// tick runs one scheduled poll cycle: fetch only when stale.
func (p *Poller) tick(ctx context.Context) {
	if !p.stale() {
		observability.PollsSkipped.Inc()
		return
	}
	p.fetch(ctx)
}

// stale reports whether the last observed update, from any source, is old
// enough that a poll is warranted.
func (p *Poller) stale() bool {
	threshold := p.cfg.StaleWhileIdle
	if p.cfg.Sink.TrackingPosition() {
		threshold = p.cfg.StaleWhileTracked
	}
	return p.now().Sub(p.cfg.Sink.LastUpdateAt()) > threshold
}

func (p *Poller) fetch(ctx context.Context) {
	if !p.online.Load() {
		return
	}
	observability.PollsIssued.Inc()
	fctx, cancel := context.WithTimeout(ctx, p.cfg.FetchTimeout)
	defer cancel()
	snap, err := p.cfg.Fetcher.FetchSnapshot(fctx, p.cfg.RideID)
	if err != nil {
		observability.PollErrors.Inc()
		p.log.Debug("snapshot fetch failed", "error", err)
		return
	}
	p.cfg.Sink.ApplySnapshot(ridesync.SourcePoll, snap)
}
