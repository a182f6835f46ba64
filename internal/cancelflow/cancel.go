package cancelflow

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/example/ride-tracker/internal/models"
	"github.com/example/ride-tracker/internal/ridesync"
)

// ErrInFlight is returned when a cancellation is already being submitted,
// e.g. on a double-tap.
var ErrInFlight = errors.New("cancellation already in flight")

// Canceller issues the cancel command. The ride API client implements it.
type Canceller interface {
	CancelRide(ctx context.Context, rideID, reason string) error
}

// Applier is the slice of the reconciler the flow drives.
type Applier interface {
	ApplyEvent(src ridesync.Source, ev ridesync.Event)
}

// Flow submits exactly one cancel command per user-initiated cancellation.
// On success the reconciler is driven to cancelled optimistically; the
// authoritative event arriving later over the channel is a no-op
// confirmation. On failure nothing advances locally and the caller decides
// whether to retry.
type Flow struct {
	rideID   string
	api      Canceller
	sink     Applier
	log      *slog.Logger
	now      func() time.Time
	inFlight atomic.Bool
}

func New(rideID string, api Canceller, sink Applier, log *slog.Logger) *Flow {
	if log == nil {
		log = slog.Default()
	}
	return &Flow{
		rideID: rideID,
		api:    api,
		sink:   sink,
		log:    log.With("component", "cancelflow", "ride_id", rideID),
		now:    time.Now,
	}
}

// Cancel captures the reason and submits the command. Concurrent calls
// beyond the first return ErrInFlight without touching the network.
func (f *Flow) Cancel(ctx context.Context, reason string) error {
	if !f.inFlight.CompareAndSwap(false, true) {
		return ErrInFlight
	}
	defer f.inFlight.Store(false)

	if err := f.api.CancelRide(ctx, f.rideID, reason); err != nil {
		f.log.Warn("cancel submission failed", "error", err)
		return err
	}
	f.log.Info("ride cancelled", "reason", reason)
	f.sink.ApplyEvent(ridesync.SourceLocal, ridesync.Event{
		Status: models.StatusCancelled,
		At:     f.now(),
		Reason: reason,
	})
	return nil
}
