package cancelflow

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/example/ride-tracker/internal/models"
	"github.com/example/ride-tracker/internal/ridesync"
)

type fakeAPI struct {
	mu      sync.Mutex
	calls   int
	err     error
	started chan struct{}
	release chan struct{}
}

func (f *fakeAPI) CancelRide(ctx context.Context, rideID, reason string) error {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.started != nil {
		close(f.started)
		<-f.release
	}
	return f.err
}

func (f *fakeAPI) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeApplier struct {
	mu     sync.Mutex
	events []ridesync.Event
}

func (f *fakeApplier) ApplyEvent(src ridesync.Source, ev ridesync.Event) {
	f.mu.Lock()
	f.events = append(f.events, ev)
	f.mu.Unlock()
}

func TestCancelSuccessAppliesOptimisticTransition(t *testing.T) {
	api := &fakeAPI{}
	sink := &fakeApplier{}
	f := New("ride-42", api, sink, nil)

	if err := f.Cancel(context.Background(), "changed_plans"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if api.callCount() != 1 {
		t.Fatalf("expected one network call, got %d", api.callCount())
	}
	if len(sink.events) != 1 || sink.events[0].Status != models.StatusCancelled {
		t.Fatalf("expected optimistic cancelled event, got %+v", sink.events)
	}
	if sink.events[0].Reason != "changed_plans" {
		t.Fatalf("reason not captured: %q", sink.events[0].Reason)
	}
}

func TestCancelFailureDoesNotAdvanceState(t *testing.T) {
	api := &fakeAPI{err: errors.New("502")}
	sink := &fakeApplier{}
	f := New("ride-42", api, sink, nil)

	if err := f.Cancel(context.Background(), "changed_plans"); err == nil {
		t.Fatalf("expected failure to surface")
	}
	if len(sink.events) != 0 {
		t.Fatalf("failed cancel must not advance local state")
	}

	// caller retries after failure
	api.err = nil
	if err := f.Cancel(context.Background(), "changed_plans"); err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if api.callCount() != 2 {
		t.Fatalf("expected retry to reach the network")
	}
}

func TestDoubleTapIsSingleFlight(t *testing.T) {
	api := &fakeAPI{started: make(chan struct{}), release: make(chan struct{})}
	sink := &fakeApplier{}
	f := New("ride-42", api, sink, nil)

	errCh := make(chan error, 1)
	go func() { errCh <- f.Cancel(context.Background(), "changed_plans") }()
	<-api.started // first submission is on the wire

	if err := f.Cancel(context.Background(), "changed_plans"); !errors.Is(err, ErrInFlight) {
		t.Fatalf("expected ErrInFlight on double tap, got %v", err)
	}

	close(api.release)
	if err := <-errCh; err != nil {
		t.Fatalf("first cancel failed: %v", err)
	}
	if api.callCount() != 1 {
		t.Fatalf("double tap reached the network %d times", api.callCount())
	}
}
