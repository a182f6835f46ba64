package models

import "time"

// RideStatus is the server-reported lifecycle state of a ride.
type RideStatus string

const (
	StatusRequested RideStatus = "requested"
	StatusSearching RideStatus = "searching"
	StatusAccepted  RideStatus = "accepted"
	StatusArrived   RideStatus = "arrived"
	StatusOngoing   RideStatus = "ongoing"
	StatusCompleted RideStatus = "completed"
	StatusCancelled RideStatus = "cancelled"
)

// Terminal reports whether no further transitions are possible.
func (s RideStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Tracking reports whether driver positions are expected for this status.
func (s RideStatus) Tracking() bool {
	return s == StatusAccepted || s == StatusArrived || s == StatusOngoing
}

// Known reports whether s is one of the closed enumeration values.
func (s RideStatus) Known() bool {
	switch s {
	case StatusRequested, StatusSearching, StatusAccepted, StatusArrived,
		StatusOngoing, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

type Coord struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Place is an address label plus its coordinate.
type Place struct {
	Label string  `json:"label"`
	Lat   float64 `json:"lat"`
	Lng   float64 `json:"lng"`
}

type Driver struct {
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	PhotoURL string `json:"photo_url,omitempty"`
	Vehicle  string `json:"vehicle,omitempty"`
}

// FareLine is one entry of a completed ride's fare breakdown.
type FareLine struct {
	Label  string  `json:"label"`
	Amount float64 `json:"amount"`
}

// RideSnapshot is the authoritative server-reported state of a ride at a
// point in time. Every field past Status is optional on the wire; absent
// fields stay nil rather than erroring.
type RideSnapshot struct {
	RideID         string     `json:"ride_id"`
	Status         RideStatus `json:"status"`
	Pickup         Place      `json:"pickup"`
	Dropoff        Place      `json:"dropoff"`
	Driver         *Driver    `json:"driver,omitempty"`
	DriverPosition *Coord     `json:"driver_position,omitempty"`
	ArrivedAt      *time.Time `json:"arrived_at,omitempty"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	Fare           *float64   `json:"fare,omitempty"`
	DistanceMeters *float64   `json:"distance_meters,omitempty"`
	Breakdown      []FareLine `json:"breakdown,omitempty"`
	CancelReason   string     `json:"cancel_reason,omitempty"`
}

// CancelReasonTimeout is emitted by the server when no driver accepts
// within its matching window.
const CancelReasonTimeout = "timeout_no_driver"
