package models

import "time"

// Event names carried on the realtime channel.
const (
	EventLocationUpdated = "location.updated"
	EventRideAccepted    = "ride.accepted"
	EventRideArrived     = "ride.arrived"
	EventRideStarted     = "ride.started"
	EventRideCompleted   = "ride.completed"
	EventRideCancelled   = "ride.cancelled"
)

// LocationUpdated mirrors the location.updated channel payload.
type LocationUpdated struct {
	Lat        float64 `json:"lat"`
	Lng        float64 `json:"lng"`
	ETAMinutes *int    `json:"eta_minutes,omitempty"`
}

// RideAccepted mirrors the ride.accepted channel payload.
type RideAccepted struct {
	Driver *Driver `json:"driver,omitempty"`
}

// RideArrived mirrors the ride.arrived channel payload.
type RideArrived struct {
	ArrivedAt *time.Time `json:"arrived_at,omitempty"`
}

// RideCompleted mirrors the ride.completed channel payload.
type RideCompleted struct {
	Fare           *float64   `json:"fare,omitempty"`
	DistanceMeters *float64   `json:"distance_meters,omitempty"`
	Breakdown      []FareLine `json:"breakdown,omitempty"`
}

// RideCancelled mirrors the ride.cancelled channel payload.
type RideCancelled struct {
	Reason string `json:"reason,omitempty"`
}
