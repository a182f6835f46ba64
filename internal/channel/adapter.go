package channel

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/example/ride-tracker/internal/models"
	"github.com/example/ride-tracker/internal/observability"
	"github.com/example/ride-tracker/internal/ridesync"
)

// Sink receives decoded channel traffic. The reconciler implements it.
type Sink interface {
	ApplyEvent(src ridesync.Source, ev ridesync.Event)
}

// envelope is the wire frame: an event name plus its payload.
type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type Config struct {
	// URL is the websocket endpoint of the push service.
	URL       string
	AuthToken string
	RideID    string
	Sink      Sink
	Logger    *slog.Logger

	// MaxAuthFailures bounds handshake rejections before the adapter gives
	// up for good and leaves the poller as the sole source of truth.
	MaxAuthFailures int
}

// Adapter maintains one logical subscription to the realtime channel.
// Transport failures are retried with exponential backoff transparently to
// the subscriber; historical events are not re-emitted after a reconnect.
type Adapter struct {
	cfg Config
	log *slog.Logger

	mu       sync.Mutex
	conn     *websocket.Conn
	stop     chan struct{}
	stopOnce sync.Once
}

func New(cfg Config) *Adapter {
	if cfg.MaxAuthFailures <= 0 {
		cfg.MaxAuthFailures = 3
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Adapter{
		cfg:  cfg,
		log:  log.With("component", "channel", "ride_id", cfg.RideID),
		stop: make(chan struct{}),
	}
}

// Start launches the dial/read loop.
func (a *Adapter) Start() {
	go a.run()
}

// Close unsubscribes and releases the socket. A closed adapter never
// delivers to the sink again, so a stale subscriber cannot receive
// duplicate events.
func (a *Adapter) Close() {
	a.stopOnce.Do(func() {
		close(a.stop)
		a.mu.Lock()
		if a.conn != nil {
			_ = a.conn.Close()
		}
		a.mu.Unlock()
	})
}

func (a *Adapter) run() {
	backoff := time.Second
	const maxBackoff = 30 * time.Second
	authFailures := 0

	for {
		select {
		case <-a.stop:
			return
		default:
		}

		conn, resp, err := a.dial()
		if err != nil {
			if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
				authFailures++
				a.log.Warn("channel auth rejected", "status", resp.StatusCode, "failures", authFailures)
				if authFailures >= a.cfg.MaxAuthFailures {
					a.log.Error("giving up on realtime channel, polling remains the sole source")
					return
				}
			}
			observability.ChannelReconnects.Inc()
			a.log.Debug("channel dial failed", "error", err, "backoff", backoff)
			select {
			case <-a.stop:
				return
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}

		backoff = time.Second
		authFailures = 0
		a.setConn(conn)
		a.log.Info("channel subscribed")

		if err := a.subscribe(conn); err != nil {
			a.log.Debug("subscribe write failed", "error", err)
			_ = conn.Close()
			continue
		}
		a.readLoop(conn)

		select {
		case <-a.stop:
			return
		default:
			observability.ChannelReconnects.Inc()
		}
	}
}

func (a *Adapter) dial() (*websocket.Conn, *http.Response, error) {
	header := http.Header{}
	if a.cfg.AuthToken != "" {
		header.Set("Authorization", "Bearer "+a.cfg.AuthToken)
	}
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	return dialer.Dial(a.cfg.URL, header)
}

func (a *Adapter) subscribe(conn *websocket.Conn) error {
	return conn.WriteJSON(map[string]string{"action": "subscribe", "ride_id": a.cfg.RideID})
}

func (a *Adapter) setConn(conn *websocket.Conn) {
	a.mu.Lock()
	a.conn = conn
	a.mu.Unlock()
}

func (a *Adapter) readLoop(conn *websocket.Conn) {
	defer conn.Close()
	for {
		select {
		case <-a.stop:
			return
		default:
		}
		var env envelope
		if err := conn.ReadJSON(&env); err != nil {
			a.log.Debug("channel read failed", "error", err)
			return
		}
		a.dispatch(env)
	}
}

func (a *Adapter) dispatch(env envelope) {
	select {
	case <-a.stop:
		return
	default:
	}
	ev, ok := decodeEvent(env, a.log)
	if !ok {
		return
	}
	observability.ChannelEvents.WithLabelValues(env.Event).Inc()
	a.cfg.Sink.ApplyEvent(ridesync.SourceChannel, ev)
}

// decodeEvent maps a wire envelope onto the reconciler's event shape.
// Malformed or partial payloads leave fields unset instead of erroring; an
// unknown event name is skipped.
func decodeEvent(env envelope, log *slog.Logger) (ridesync.Event, bool) {
	switch env.Event {
	case models.EventLocationUpdated:
		var p models.LocationUpdated
		if err := json.Unmarshal(env.Data, &p); err != nil {
			log.Debug("malformed location payload", "error", err)
			return ridesync.Event{}, false
		}
		return ridesync.Event{
			Position:   &models.Coord{Lat: p.Lat, Lng: p.Lng},
			ETAMinutes: p.ETAMinutes,
		}, true
	case models.EventRideAccepted:
		var p models.RideAccepted
		_ = json.Unmarshal(env.Data, &p)
		return ridesync.Event{Status: models.StatusAccepted, Driver: p.Driver}, true
	case models.EventRideArrived:
		var p models.RideArrived
		_ = json.Unmarshal(env.Data, &p)
		return ridesync.Event{Status: models.StatusArrived, ArrivedAt: p.ArrivedAt}, true
	case models.EventRideStarted:
		return ridesync.Event{Status: models.StatusOngoing}, true
	case models.EventRideCompleted:
		var p models.RideCompleted
		_ = json.Unmarshal(env.Data, &p)
		return ridesync.Event{
			Status:         models.StatusCompleted,
			Fare:           p.Fare,
			DistanceMeters: p.DistanceMeters,
			Breakdown:      p.Breakdown,
		}, true
	case models.EventRideCancelled:
		var p models.RideCancelled
		_ = json.Unmarshal(env.Data, &p)
		return ridesync.Event{Status: models.StatusCancelled, Reason: p.Reason}, true
	default:
		log.Debug("unknown channel event", "event", env.Event)
		return ridesync.Event{}, false
	}
}
