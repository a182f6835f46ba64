package ridesync

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/example/ride-tracker/internal/cache"
	"github.com/example/ride-tracker/internal/models"
	"github.com/example/ride-tracker/internal/observability"
	"github.com/example/ride-tracker/internal/smoother"
)

// Source identifies which feeder produced an update. The state machine
// treats all sources identically; the label exists for logs and metrics.
type Source string

const (
	SourceChannel Source = "channel"
	SourcePoll    Source = "poll"
	SourceLocal   Source = "local"
)

// UI is the narrow surface the reconciler drives. Each command is emitted
// at most once per logical transition.
type UI interface {
	NavigateTo(screen string, params map[string]any)
	ShowAlert(message string)
}

// Screens the reconciler navigates to.
const (
	ScreenTrip    = "trip"
	ScreenReceipt = "receipt"
	ScreenHome    = "home"
)

// TransitionSink receives every applied status transition, e.g. for fleet
// analytics. Optional; failures are logged, never propagated.
type TransitionSink interface {
	PublishTransition(ctx context.Context, rideID string, from, to models.RideStatus, source string, at time.Time) error
}

// Archiver stores the final snapshot of a completed ride. Optional.
type Archiver interface {
	ArchiveCompleted(ctx context.Context, snap models.RideSnapshot) error
}

// Settler finalizes a payment hold when the ride ends. Optional.
type Settler interface {
	Capture(ctx context.Context, rideID string) error
	Release(ctx context.Context, rideID string) error
}

// Event is one typed incremental update from the realtime channel, or a
// locally applied optimistic transition. Status is empty for pure
// location updates.
type Event struct {
	Status         models.RideStatus
	At             time.Time
	Driver         *models.Driver
	ArrivedAt      *time.Time
	Position       *models.Coord
	ETAMinutes     *int
	Fare           *float64
	DistanceMeters *float64
	Breakdown      []models.FareLine
	Reason         string
}

// SyncState wraps the last applied snapshot plus the bookkeeping the
// engine needs: the idempotence key, the staleness clock and reachability.
type SyncState struct {
	Snapshot          models.RideSnapshot
	HasSnapshot       bool
	LastAppliedStatus models.RideStatus
	LastUpdateAt      time.Time
	Online            bool
}

type Config struct {
	RideID   string
	UI       UI
	Cache    cache.Cache
	Smoother *smoother.Smoother

	Transitions TransitionSink
	Archive     Archiver
	Settler     Settler

	Logger *slog.Logger

	// SnapshotEvery throttles periodic cache writes while a ride is live.
	SnapshotEvery time.Duration

	// StopFeeders is invoked once when the ride reaches a terminal state
	// so the channel adapter and poller shut down.
	StopFeeders func()
}

// Reconciler owns the authoritative ride state. All inputs, from either
// feeder, from the connectivity monitor or from the cancellation flow, are
// serialized through one inbox and handled by one goroutine, so SyncState
// is never mutated concurrently.
type Reconciler struct {
	cfg Config
	log *slog.Logger
	now func() time.Time

	inbox      chan inbound
	done       chan struct{}
	finished   chan struct{}
	closeOnce  sync.Once
	finishOnce sync.Once

	mu   sync.RWMutex
	view SyncState

	// loop-owned, never touched outside handle/run
	state SyncState
}

type inbound struct {
	upd    *update
	online *bool
}

// update is the single shape both feeders reduce to before the state
// machine sees it; the machine cannot tell which source produced it.
type update struct {
	source   Source
	snapshot *models.RideSnapshot
	event    *Event
}

func New(cfg Config) *Reconciler {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	if cfg.SnapshotEvery <= 0 {
		cfg.SnapshotEvery = 30 * time.Second
	}
	return &Reconciler{
		cfg:      cfg,
		log:      log.With("component", "reconciler", "ride_id", cfg.RideID),
		now:      time.Now,
		inbox:    make(chan inbound, 64),
		done:     make(chan struct{}),
		finished: make(chan struct{}),
		state:    SyncState{Online: true},
		view:     SyncState{Online: true},
	}
}

// Start resumes from the durable cache if an entry exists, then launches
// the event loop. A live fetch arriving later always overwrites whatever
// was loaded here.
func (r *Reconciler) Start(ctx context.Context) {
	if r.cfg.Cache != nil && r.cfg.RideID != "" {
		st, ok, err := r.cfg.Cache.Load(ctx, r.cfg.RideID)
		switch {
		case err != nil:
			r.log.Debug("cache load failed", "error", err)
		case ok && !st.LastAppliedStatus.Terminal():
			r.state.Snapshot = st.Snapshot
			r.state.HasSnapshot = true
			r.state.LastAppliedStatus = st.LastAppliedStatus
			r.log.Info("resumed from cached state",
				"status", st.Snapshot.Status, "saved_at", st.SavedAt)
		}
	}
	r.publish()
	go r.run(ctx)
}

// Close tears the reconciler down. Feeder callbacks landing after Close
// are dropped, never a panic.
func (r *Reconciler) Close() {
	r.closeOnce.Do(func() { close(r.done) })
}

// Done is closed once the ride reached a terminal state and tracking for
// it was shut down.
func (r *Reconciler) Done() <-chan struct{} { return r.finished }

// ApplySnapshot feeds a full server snapshot, from the poller or from an
// initial load.
func (r *Reconciler) ApplySnapshot(src Source, snap models.RideSnapshot) {
	r.enqueue(inbound{upd: &update{source: src, snapshot: &snap}})
}

// ApplyEvent feeds a typed incremental event from the realtime channel or
// an optimistic local transition.
func (r *Reconciler) ApplyEvent(src Source, ev Event) {
	r.enqueue(inbound{upd: &update{source: src, event: &ev}})
}

// SetOnline feeds a connectivity transition from the monitor.
func (r *Reconciler) SetOnline(online bool) {
	v := online
	r.enqueue(inbound{online: &v})
}

// Snapshot returns the current authoritative snapshot, false before the
// first update.
func (r *Reconciler) Snapshot() (models.RideSnapshot, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.view.Snapshot, r.view.HasSnapshot
}

// State returns a copy of the full sync state.
func (r *Reconciler) State() SyncState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.view
}

// LastUpdateAt is the staleness clock read by the polling fallback.
func (r *Reconciler) LastUpdateAt() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.view.LastUpdateAt
}

// TrackingPosition reports whether driver positions are currently expected,
// which selects the tighter staleness threshold.
func (r *Reconciler) TrackingPosition() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.view.HasSnapshot && r.view.Snapshot.Status.Tracking()
}

func (r *Reconciler) enqueue(m inbound) {
	select {
	case r.inbox <- m:
	case <-r.done:
	}
}

func (r *Reconciler) run(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.SnapshotEvery)
	defer ticker.Stop()
	for {
		select {
		case <-r.done:
			return
		case <-ctx.Done():
			return
		case m := <-r.inbox:
			r.handle(ctx, m)
		case <-ticker.C:
			r.persist(ctx)
		}
	}
}

func (r *Reconciler) handle(ctx context.Context, m inbound) {
	switch {
	case m.online != nil:
		r.handleConnectivity(ctx, *m.online)
	case m.upd != nil:
		r.apply(ctx, m.upd)
	}
	r.publish()
}

func (r *Reconciler) handleConnectivity(ctx context.Context, online bool) {
	if r.state.Online == online {
		return
	}
	r.state.Online = online
	if online {
		observability.Online.Set(1)
		r.log.Info("back online")
		return
	}
	observability.Online.Set(0)
	r.log.Warn("connectivity lost")
	r.persist(ctx)
	if r.state.HasSnapshot && !r.state.Snapshot.Status.Terminal() {
		r.cfg.UI.ShowAlert("You appear to be offline. Ride updates may be delayed.")
	}
}

func (r *Reconciler) apply(ctx context.Context, u *update) {
	if u.source != SourceLocal {
		r.state.LastUpdateAt = r.now()
	}
	switch {
	case u.snapshot != nil:
		r.applySnapshot(ctx, u.source, *u.snapshot)
	case u.event != nil:
		r.applyEvent(ctx, u.source, *u.event)
	}
}

func (r *Reconciler) applySnapshot(ctx context.Context, src Source, snap models.RideSnapshot) {
	if snap.RideID != "" && r.cfg.RideID != "" && snap.RideID != r.cfg.RideID {
		r.drop(src, "wrong_ride", string(snap.Status))
		return
	}
	if !snap.Status.Known() {
		r.drop(src, "unknown_status", string(snap.Status))
		return
	}
	current := r.currentStatus()
	switch {
	case snap.Status == current:
		// Same place in the lifecycle: adopt the fresh server truth
		// (positions, driver details) without re-firing anything.
		r.state.Snapshot = snap
		r.state.HasSnapshot = true
		r.forwardPosition()
		observability.UpdatesApplied.WithLabelValues(string(src)).Inc()
	case legalTransition(current, snap.Status):
		r.state.Snapshot = snap
		r.state.HasSnapshot = true
		r.forwardPosition()
		r.transition(ctx, src, snap.Status)
	default:
		r.drop(src, "illegal", string(snap.Status))
	}
}

func (r *Reconciler) applyEvent(ctx context.Context, src Source, ev Event) {
	if ev.Status == "" {
		r.applyLocation(src, ev)
		return
	}
	current := r.currentStatus()
	if ev.Status == current {
		r.drop(src, "duplicate", string(ev.Status))
		return
	}
	if !legalTransition(current, ev.Status) {
		r.drop(src, "illegal", string(ev.Status))
		return
	}
	if !r.state.HasSnapshot {
		r.state.Snapshot = models.RideSnapshot{RideID: r.cfg.RideID}
		r.state.HasSnapshot = true
	}
	mergeEvent(&r.state.Snapshot, ev)
	r.transition(ctx, src, ev.Status)
}

func (r *Reconciler) applyLocation(src Source, ev Event) {
	if ev.Position == nil {
		r.drop(src, "empty", "location")
		return
	}
	if !r.state.HasSnapshot {
		r.drop(src, "no_ride", "location")
		return
	}
	if r.state.Snapshot.Status.Terminal() {
		r.drop(src, "terminal", "location")
		return
	}
	p := *ev.Position
	r.state.Snapshot.DriverPosition = &p
	r.forwardPosition()
	observability.UpdatesApplied.WithLabelValues(string(src)).Inc()
}

// transition fires the one-time side effect for a status the engine has
// not acted upon yet, then records it as acted-upon. Both happen inside
// the same loop iteration, so the read-check-act-write sequence cannot
// interleave with another update.
func (r *Reconciler) transition(ctx context.Context, src Source, to models.RideStatus) {
	from := r.state.LastAppliedStatus
	if to == from {
		r.drop(src, "duplicate", string(to))
		return
	}
	r.state.Snapshot.Status = to
	r.forwardPosition()
	r.fireEffect(to)
	r.state.LastAppliedStatus = to
	observability.UpdatesApplied.WithLabelValues(string(src)).Inc()
	r.log.Info("transition applied", "from", from, "to", to, "source", src)

	if r.cfg.Transitions != nil {
		if err := r.cfg.Transitions.PublishTransition(ctx, r.rideID(), from, to, string(src), r.now()); err != nil {
			r.log.Debug("transition publish failed", "error", err)
		}
	}
	if to.Terminal() {
		r.shutdownTracking(ctx, to)
	} else {
		r.persist(ctx)
	}
}

func (r *Reconciler) fireEffect(to models.RideStatus) {
	snap := &r.state.Snapshot
	switch to {
	case models.StatusAccepted:
		if d := snap.Driver; d != nil && d.Name != "" {
			r.cfg.UI.ShowAlert("Your driver " + d.Name + " is on the way")
			observability.EffectsEmitted.WithLabelValues("alert").Inc()
		}
	case models.StatusArrived:
		if snap.ArrivedAt == nil {
			at := r.now()
			snap.ArrivedAt = &at
		}
		r.cfg.UI.ShowAlert("Your driver has arrived")
		observability.EffectsEmitted.WithLabelValues("alert").Inc()
	case models.StatusOngoing:
		if snap.StartedAt == nil {
			at := r.now()
			snap.StartedAt = &at
		}
		r.cfg.UI.NavigateTo(ScreenTrip, map[string]any{"ride_id": r.rideID()})
		observability.EffectsEmitted.WithLabelValues("navigate").Inc()
	case models.StatusCompleted:
		params := map[string]any{"ride_id": r.rideID()}
		if snap.Fare != nil {
			params["fare"] = *snap.Fare
		}
		if snap.DistanceMeters != nil {
			params["distance_meters"] = *snap.DistanceMeters
		}
		if len(snap.Breakdown) > 0 {
			params["breakdown"] = snap.Breakdown
		}
		r.cfg.UI.NavigateTo(ScreenReceipt, params)
		observability.EffectsEmitted.WithLabelValues("navigate").Inc()
	case models.StatusCancelled:
		if snap.CancelReason == models.CancelReasonTimeout {
			// Keep the screen: the rider gets a retry/support affordance
			// instead of being bounced home.
			r.cfg.UI.ShowAlert("No drivers accepted your request. Try again or contact support.")
			observability.EffectsEmitted.WithLabelValues("alert").Inc()
			return
		}
		r.cfg.UI.NavigateTo(ScreenHome, nil)
		observability.EffectsEmitted.WithLabelValues("navigate").Inc()
	}
}

// shutdownTracking runs once: stops both feeders, clears the durable
// entry and settles the payment hold.
func (r *Reconciler) shutdownTracking(ctx context.Context, to models.RideStatus) {
	r.finishOnce.Do(func() {
		if r.cfg.StopFeeders != nil {
			r.cfg.StopFeeders()
		}
		if r.cfg.Smoother != nil {
			r.cfg.Smoother.Reset()
		}
		if r.cfg.Cache != nil {
			if err := r.cfg.Cache.Clear(ctx, r.rideID()); err != nil {
				r.log.Debug("cache clear failed", "error", err)
			}
		}
		switch to {
		case models.StatusCompleted:
			if r.cfg.Archive != nil {
				if err := r.cfg.Archive.ArchiveCompleted(ctx, r.state.Snapshot); err != nil {
					r.log.Warn("ride archive failed", "error", err)
				}
			}
			if r.cfg.Settler != nil {
				if err := r.cfg.Settler.Capture(ctx, r.rideID()); err != nil {
					r.log.Warn("payment capture failed", "error", err)
				}
			}
		case models.StatusCancelled:
			if r.cfg.Settler != nil {
				if err := r.cfg.Settler.Release(ctx, r.rideID()); err != nil {
					r.log.Warn("payment release failed", "error", err)
				}
			}
		}
		r.log.Info("tracking stopped", "status", to)
		close(r.finished)
	})
}

func (r *Reconciler) persist(ctx context.Context) {
	if r.cfg.Cache == nil || !r.state.HasSnapshot || r.state.Snapshot.Status.Terminal() {
		return
	}
	st := cache.CachedState{
		Snapshot:          r.state.Snapshot,
		LastAppliedStatus: r.state.LastAppliedStatus,
		SavedAt:           r.now(),
	}
	if err := r.cfg.Cache.Save(ctx, r.rideID(), st); err != nil {
		observability.CacheSaveErrors.Inc()
		r.log.Debug("cache save failed", "error", err)
	}
}

func (r *Reconciler) forwardPosition() {
	if r.cfg.Smoother == nil {
		return
	}
	snap := &r.state.Snapshot
	if snap.DriverPosition != nil && snap.Status.Tracking() {
		r.cfg.Smoother.SetTarget(*snap.DriverPosition)
	}
}

func (r *Reconciler) drop(src Source, reason, detail string) {
	observability.UpdatesDropped.WithLabelValues(string(src), reason).Inc()
	r.log.Debug("update dropped", "source", src, "reason", reason, "detail", detail)
}

func (r *Reconciler) currentStatus() models.RideStatus {
	if !r.state.HasSnapshot {
		return ""
	}
	return r.state.Snapshot.Status
}

func (r *Reconciler) rideID() string {
	if r.cfg.RideID != "" {
		return r.cfg.RideID
	}
	return r.state.Snapshot.RideID
}

func (r *Reconciler) publish() {
	r.mu.Lock()
	r.view = r.state
	r.mu.Unlock()
}

func mergeEvent(snap *models.RideSnapshot, ev Event) {
	if ev.Driver != nil {
		snap.Driver = ev.Driver
	}
	if ev.ArrivedAt != nil {
		snap.ArrivedAt = ev.ArrivedAt
	}
	if ev.Position != nil {
		p := *ev.Position
		snap.DriverPosition = &p
	}
	if ev.Fare != nil {
		snap.Fare = ev.Fare
	}
	if ev.DistanceMeters != nil {
		snap.DistanceMeters = ev.DistanceMeters
	}
	if len(ev.Breakdown) > 0 {
		snap.Breakdown = ev.Breakdown
	}
	if ev.Reason != "" {
		snap.CancelReason = ev.Reason
	}
}
