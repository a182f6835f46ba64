package smoother

import (
	"sync"
	"time"

	"github.com/example/ride-tracker/internal/models"
)

// Smoother turns discrete driver position samples, which arrive seconds or
// tens of seconds apart, into a continuously interpolated on-screen
// position. Motion runs linearly from the previously displayed position to
// the newest sample over a fixed window instead of snapping.
type Smoother struct {
	mu        sync.Mutex
	window    time.Duration
	hasTarget bool
	start     models.Coord
	target    models.Coord
	startedAt time.Time

	now func() time.Time
}

// DefaultWindow is the interpolation duration used when none is configured.
const DefaultWindow = 2 * time.Second

func New(window time.Duration) *Smoother {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Smoother{window: window, now: time.Now}
}

// SetTarget feeds a new position sample. If the sample equals the current
// target the animation is left untouched. If an interpolation is still in
// flight, motion continues from the currently displayed position toward
// the new sample, so the marker never jumps backward.
func (s *Smoother) SetTarget(p models.Coord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.hasTarget {
		// First sample: display it immediately.
		s.start = p
		s.target = p
		s.startedAt = s.now().Add(-s.window)
		s.hasTarget = true
		return
	}
	if p == s.target {
		return
	}
	s.start = s.positionLocked(s.now())
	s.target = p
	s.startedAt = s.now()
}

// Position returns the currently displayed position. The second return is
// false until the first sample arrives.
func (s *Smoother) Position() (models.Coord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hasTarget {
		return models.Coord{}, false
	}
	return s.positionLocked(s.now()), true
}

// Target returns the raw, uninterpolated latest sample.
func (s *Smoother) Target() (models.Coord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.target, s.hasTarget
}

// Reset clears all smoothing state, e.g. when tracking stops.
func (s *Smoother) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hasTarget = false
	s.start = models.Coord{}
	s.target = models.Coord{}
	s.startedAt = time.Time{}
}

func (s *Smoother) positionLocked(at time.Time) models.Coord {
	elapsed := at.Sub(s.startedAt)
	if elapsed >= s.window {
		return s.target
	}
	if elapsed < 0 {
		return s.start
	}
	t := float64(elapsed) / float64(s.window)
	return models.Coord{
		Lat: lerp(s.start.Lat, s.target.Lat, t),
		Lng: lerp(s.start.Lng, s.target.Lng, t),
	}
}

func lerp(a, b, t float64) float64 { return a + (b-a)*t }
