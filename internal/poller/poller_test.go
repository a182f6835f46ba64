package poller

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/ride-tracker/internal/models"
	"github.com/example/ride-tracker/internal/ridesync"
)

type fakeSink struct {
	lastUpdate time.Time
	tracking   bool
	applied    []models.RideSnapshot
}

func (f *fakeSink) ApplySnapshot(src ridesync.Source, snap models.RideSnapshot) {
	f.applied = append(f.applied, snap)
}
func (f *fakeSink) LastUpdateAt() time.Time { return f.lastUpdate }
func (f *fakeSink) TrackingPosition() bool  { return f.tracking }

type fakeFetcher struct {
	calls int
	snap  models.RideSnapshot
	err   error
}

func (f *fakeFetcher) FetchSnapshot(ctx context.Context, rideID string) (models.RideSnapshot, error) {
	f.calls++
	return f.snap, f.err
}

func newTestPoller(sink *fakeSink, fetcher *fakeFetcher) *Poller {
	return New(Config{
		RideID:            "ride-42",
		Fetcher:           fetcher,
		Sink:              sink,
		Interval:          10 * time.Second,
		StaleWhileTracked: 10 * time.Second,
		StaleWhileIdle:    45 * time.Second,
	})
}

func TestTickSkipsWhenFresh(t *testing.T) {
	sink := &fakeSink{lastUpdate: time.Now(), tracking: true}
	fetcher := &fakeFetcher{}
	p := newTestPoller(sink, fetcher)

	p.tick(context.Background())

	if fetcher.calls != 0 {
		t.Fatalf("fresh state must suppress the poll, got %d calls", fetcher.calls)
	}
}

func TestTickFetchesWhenStale(t *testing.T) {
	sink := &fakeSink{lastUpdate: time.Now().Add(-time.Minute), tracking: true}
	fetcher := &fakeFetcher{snap: models.RideSnapshot{RideID: "ride-42", Status: models.StatusAccepted}}
	p := newTestPoller(sink, fetcher)

	p.tick(context.Background())

	if fetcher.calls != 1 {
		t.Fatalf("expected one fetch, got %d", fetcher.calls)
	}
	if len(sink.applied) != 1 || sink.applied[0].Status != models.StatusAccepted {
		t.Fatalf("snapshot not fed to sink: %+v", sink.applied)
	}
}

func TestIdleThresholdIsLooser(t *testing.T) {
	// 20s old: stale for tracking (10s) but fresh for idle watching (45s)
	sink := &fakeSink{lastUpdate: time.Now().Add(-20 * time.Second)}
	fetcher := &fakeFetcher{}
	p := newTestPoller(sink, fetcher)

	sink.tracking = false
	p.tick(context.Background())
	if fetcher.calls != 0 {
		t.Fatalf("idle watcher polled a fresh state")
	}

	sink.tracking = true
	p.tick(context.Background())
	if fetcher.calls != 1 {
		t.Fatalf("tracking watcher should have polled, got %d calls", fetcher.calls)
	}
}

func TestFetchBypassesGateWhenForced(t *testing.T) {
	sink := &fakeSink{lastUpdate: time.Now(), tracking: true}
	fetcher := &fakeFetcher{snap: models.RideSnapshot{RideID: "ride-42", Status: models.StatusOngoing}}
	p := newTestPoller(sink, fetcher)

	// the reconnect path calls fetch directly, ignoring staleness
	p.fetch(context.Background())

	if fetcher.calls != 1 {
		t.Fatalf("forced fetch must bypass the staleness gate")
	}
}

func TestOfflineSuppressesFetch(t *testing.T) {
	sink := &fakeSink{lastUpdate: time.Now().Add(-time.Hour), tracking: true}
	fetcher := &fakeFetcher{}
	p := newTestPoller(sink, fetcher)

	p.SetOnline(false)
	p.tick(context.Background())
	if fetcher.calls != 0 {
		t.Fatalf("offline poller must not hit the network")
	}

	p.SetOnline(true)
	p.tick(context.Background())
	if fetcher.calls != 1 {
		t.Fatalf("expected fetch after coming back online")
	}
}

func TestFetchErrorIsSwallowed(t *testing.T) {
	sink := &fakeSink{lastUpdate: time.Now().Add(-time.Hour), tracking: true}
	fetcher := &fakeFetcher{err: errors.New("connection refused")}
	p := newTestPoller(sink, fetcher)

	p.tick(context.Background())

	if len(sink.applied) != 0 {
		t.Fatalf("errored fetch must not feed the sink")
	}
}

func TestForceFetchSignalCoalesces(t *testing.T) {
	sink := &fakeSink{}
	p := newTestPoller(sink, &fakeFetcher{})
	// must not block however many times it is called
	for i := 0; i < 10; i++ {
		p.ForceFetch()
	}
}
