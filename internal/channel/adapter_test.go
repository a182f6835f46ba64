package channel

import (
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/example/ride-tracker/internal/models"
)

func env(event, data string) envelope {
	return envelope{Event: event, Data: json.RawMessage(data)}
}

func TestDecodeLocationUpdated(t *testing.T) {
	ev, ok := decodeEvent(env(models.EventLocationUpdated, `{"lat":51.1,"lng":71.4,"eta_minutes":3}`), slog.Default())
	if !ok {
		t.Fatalf("expected decode to succeed")
	}
	if ev.Status != "" {
		t.Fatalf("location event must not carry a status")
	}
	if ev.Position == nil || ev.Position.Lat != 51.1 || ev.Position.Lng != 71.4 {
		t.Fatalf("bad position: %+v", ev.Position)
	}
	if ev.ETAMinutes == nil || *ev.ETAMinutes != 3 {
		t.Fatalf("eta lost")
	}
}

func TestDecodeStatusEvents(t *testing.T) {
	cases := []struct {
		event  string
		data   string
		status models.RideStatus
	}{
		{models.EventRideAccepted, `{"driver":{"name":"Asel","phone":"+7700"}}`, models.StatusAccepted},
		{models.EventRideArrived, `{"arrived_at":"2026-08-30T10:00:00Z"}`, models.StatusArrived},
		{models.EventRideStarted, `{}`, models.StatusOngoing},
		{models.EventRideCompleted, `{"fare":18.5,"distance_meters":5400,"breakdown":[{"label":"base","amount":10}]}`, models.StatusCompleted},
		{models.EventRideCancelled, `{"reason":"timeout_no_driver"}`, models.StatusCancelled},
	}
	for _, c := range cases {
		ev, ok := decodeEvent(env(c.event, c.data), slog.Default())
		if !ok {
			t.Fatalf("%s: decode failed", c.event)
		}
		if ev.Status != c.status {
			t.Fatalf("%s: got status %v", c.event, ev.Status)
		}
	}
}

func TestDecodeCarriesPayloadFields(t *testing.T) {
	ev, _ := decodeEvent(env(models.EventRideAccepted, `{"driver":{"name":"Asel"}}`), slog.Default())
	if ev.Driver == nil || ev.Driver.Name != "Asel" {
		t.Fatalf("driver lost: %+v", ev.Driver)
	}

	ev, _ = decodeEvent(env(models.EventRideCompleted, `{"fare":18.5}`), slog.Default())
	if ev.Fare == nil || *ev.Fare != 18.5 {
		t.Fatalf("fare lost")
	}
	if ev.DistanceMeters != nil {
		t.Fatalf("absent field must stay nil")
	}

	ev, _ = decodeEvent(env(models.EventRideCancelled, `{"reason":"timeout_no_driver"}`), slog.Default())
	if ev.Reason != models.CancelReasonTimeout {
		t.Fatalf("reason lost: %q", ev.Reason)
	}
}

func TestDecodePartialPayloadLeavesFieldsUnset(t *testing.T) {
	ev, ok := decodeEvent(env(models.EventRideAccepted, `{}`), slog.Default())
	if !ok || ev.Status != models.StatusAccepted {
		t.Fatalf("partial payload must still carry the transition")
	}
	if ev.Driver != nil {
		t.Fatalf("missing driver must stay nil")
	}
}

func TestDecodeUnknownEventSkipped(t *testing.T) {
	if _, ok := decodeEvent(env("ride.teleported", `{}`), slog.Default()); ok {
		t.Fatalf("unknown event must be skipped")
	}
}

func TestDecodeMalformedLocationSkipped(t *testing.T) {
	if _, ok := decodeEvent(env(models.EventLocationUpdated, `{"lat":"north"}`), slog.Default()); ok {
		t.Fatalf("malformed location must be skipped")
	}
}
