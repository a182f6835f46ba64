package smoother

import (
	"testing"
	"time"

	"github.com/example/ride-tracker/internal/models"
)

// fixed clock the tests can advance by hand
type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestSmoother(window time.Duration) (*Smoother, *clock) {
	c := &clock{t: time.Unix(1000, 0)}
	s := New(window)
	s.now = c.now
	return s, c
}

func TestFirstSampleDisplaysImmediately(t *testing.T) {
	s, _ := newTestSmoother(2 * time.Second)
	s.SetTarget(models.Coord{Lat: 10, Lng: 20})
	pos, ok := s.Position()
	if !ok || pos.Lat != 10 || pos.Lng != 20 {
		t.Fatalf("expected immediate position, got %+v ok=%v", pos, ok)
	}
}

func TestInterpolatesLinearlyOverWindow(t *testing.T) {
	s, c := newTestSmoother(2 * time.Second)
	s.SetTarget(models.Coord{Lat: 0, Lng: 0})
	s.SetTarget(models.Coord{Lat: 1, Lng: 2})

	c.advance(time.Second) // halfway
	pos, _ := s.Position()
	if pos.Lat < 0.49 || pos.Lat > 0.51 || pos.Lng < 0.99 || pos.Lng > 1.01 {
		t.Fatalf("expected midpoint, got %+v", pos)
	}

	c.advance(2 * time.Second) // past the window
	pos, _ = s.Position()
	if pos.Lat != 1 || pos.Lng != 2 {
		t.Fatalf("expected settled target, got %+v", pos)
	}
}

func TestReplacedTargetNeverJumpsBackward(t *testing.T) {
	s, c := newTestSmoother(2 * time.Second)
	s.SetTarget(models.Coord{Lat: 0, Lng: 0}) // P0
	s.SetTarget(models.Coord{Lat: 1, Lng: 0}) // P1

	c.advance(time.Second)
	mid, _ := s.Position()

	// P2 arrives before P1's interpolation completes
	s.SetTarget(models.Coord{Lat: 2, Lng: 0})

	// displayed position must continue from mid and only grow toward P2
	prev := mid.Lat
	for i := 0; i < 8; i++ {
		c.advance(250 * time.Millisecond)
		pos, _ := s.Position()
		if pos.Lat < prev {
			t.Fatalf("position jumped backward: %f -> %f", prev, pos.Lat)
		}
		prev = pos.Lat
	}
	if prev != 2 {
		t.Fatalf("expected to settle at 2, got %f", prev)
	}
}

func TestEqualSampleDoesNotRestartAnimation(t *testing.T) {
	s, c := newTestSmoother(2 * time.Second)
	s.SetTarget(models.Coord{Lat: 0, Lng: 0})
	s.SetTarget(models.Coord{Lat: 1, Lng: 1})

	c.advance(time.Second)
	before, _ := s.Position()

	s.SetTarget(models.Coord{Lat: 1, Lng: 1}) // same value, new arrival
	after, _ := s.Position()
	if after != before {
		t.Fatalf("equal sample restarted animation: %+v -> %+v", before, after)
	}

	c.advance(time.Second)
	pos, _ := s.Position()
	if pos.Lat != 1 || pos.Lng != 1 {
		t.Fatalf("animation did not complete on original schedule: %+v", pos)
	}
}

func TestResetForgetsState(t *testing.T) {
	s, _ := newTestSmoother(time.Second)
	s.SetTarget(models.Coord{Lat: 5, Lng: 5})
	s.Reset()
	if _, ok := s.Position(); ok {
		t.Fatalf("expected no position after reset")
	}
}
