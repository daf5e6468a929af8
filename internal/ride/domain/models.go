package domain

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// RideStatus is the closed set of lifecycle states a ride moves through.
type RideStatus string

const (
	StatusPending    RideStatus = "pending"
	StatusAccepted   RideStatus = "accepted"
	StatusDeclined   RideStatus = "declined"
	StatusStarted    RideStatus = "started"
	StatusPickedUp   RideStatus = "picked-up"
	StatusDroppedOff RideStatus = "dropped-off"
)

var (
	// ErrNotFound indicates an unknown ride id.
	ErrNotFound = errors.New("ride not found")
	// ErrConflict indicates the ride's current status did not match the
	// expected status of a compare-and-set; the caller lost a race and must
	// re-fetch before retrying.
	ErrConflict = errors.New("ride status conflict")
	// ErrInvalidTransition indicates the requested status is not one step
	// forward from the current status.
	ErrInvalidTransition = errors.New("invalid ride status transition")
	// ErrDriverMismatch indicates the acting driver is not the driver
	// assigned to the ride.
	ErrDriverMismatch = errors.New("driver not assigned to ride")
	// ErrInvalidRegion indicates a bounding region missing one of its four
	// scalar parameters.
	ErrInvalidRegion = errors.New("missing required parameters: latitude, longitude, latitudeDelta, longitudeDelta")
	// ErrUnauthorized indicates a missing or invalid session.
	ErrUnauthorized = errors.New("unauthorized")
)

// nextStatus is the total transition map. Statuses absent from the map are
// terminal and have no next state.
var nextStatus = map[RideStatus]RideStatus{
	StatusPending:  StatusAccepted,
	StatusAccepted: StatusStarted,
	StatusStarted:  StatusPickedUp,
	StatusPickedUp: StatusDroppedOff,
}

// Next returns the unique successor status. ok is false for terminal
// statuses (declined, dropped-off).
func (s RideStatus) Next() (RideStatus, bool) {
	n, ok := nextStatus[s]
	return n, ok
}

// Predecessor returns the unique status from which s is reachable in one
// step. ok is false when no status advances to s (pending, declined).
func Predecessor(s RideStatus) (RideStatus, bool) {
	for from, to := range nextStatus {
		if to == s {
			return from, true
		}
	}
	return "", false
}

// Terminal reports whether the status admits no further transitions.
func (s RideStatus) Terminal() bool {
	_, ok := nextStatus[s]
	return !ok && s.Valid()
}

// Valid reports whether s is a member of the status enumeration.
func (s RideStatus) Valid() bool {
	switch s {
	case StatusPending, StatusAccepted, StatusDeclined, StatusStarted, StatusPickedUp, StatusDroppedOff:
		return true
	}
	return false
}

// Assigned reports whether rides in this status carry an assigned driver.
// Declined rides record the declining driver separately for audit and are
// not considered assigned.
func (s RideStatus) Assigned() bool {
	switch s {
	case StatusAccepted, StatusStarted, StatusPickedUp, StatusDroppedOff:
		return true
	}
	return false
}

// GeoPoint is a WGS84 coordinate.
type GeoPoint struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Region is a map bounding box: a center point plus latitude/longitude spans.
type Region struct {
	Latitude       float64 `json:"latitude"`
	Longitude      float64 `json:"longitude"`
	LatitudeDelta  float64 `json:"latitudeDelta"`
	LongitudeDelta float64 `json:"longitudeDelta"`
}

// Contains reports whether p falls inside the bounding box. Bounds are
// inclusive: a point exactly on an edge is inside.
func (r Region) Contains(p GeoPoint) bool {
	halfLat := r.LatitudeDelta / 2
	halfLng := r.LongitudeDelta / 2
	return p.Latitude >= r.Latitude-halfLat && p.Latitude <= r.Latitude+halfLat &&
		p.Longitude >= r.Longitude-halfLng && p.Longitude <= r.Longitude+halfLng
}

// Ride is the canonical ride record. The store is its sole owner; every
// status mutation goes through Store.CompareAndSetStatus.
type Ride struct {
	ID             uuid.UUID  `json:"id"`
	PassengerID    uuid.UUID  `json:"passengerId"`
	DriverID       *uuid.UUID `json:"driverId"`
	DeclinedBy     *uuid.UUID `json:"declinedBy,omitempty"`
	PickupLocation GeoPoint   `json:"pickupLocation"`
	Destination    GeoPoint   `json:"destination"`
	Status         RideStatus `json:"status"`
	PickupTime     time.Time  `json:"pickupTime"`
	Timestamp      time.Time  `json:"timestamp"`
}

// Store owns ride records. CompareAndSetStatus is the only mutation path and
// must be atomic per ride id: the new status (and actor bookkeeping) is
// written only if the current status equals expected, otherwise ErrConflict
// is returned and nothing changes. When the transition leaves pending the
// actor becomes the assigned driver (accepted) or the audited decliner
// (declined); for transitions past accepted the actor must equal the
// assigned driver or ErrDriverMismatch is returned.
type Store interface {
	CreateRide(ctx context.Context, ride Ride) (Ride, error)
	GetRide(ctx context.Context, id uuid.UUID) (Ride, error)
	ListRides(ctx context.Context) ([]Ride, error)
	CompareAndSetStatus(ctx context.Context, id uuid.UUID, expected, next RideStatus, actor uuid.UUID) (Ride, error)
}

// RideEventType tags lifecycle notifications emitted after confirmed
// transitions.
type RideEventType string

const (
	EventRideRequested RideEventType = "RideRequested"
	EventRideAccepted  RideEventType = "RideAccepted"
	EventRideDeclined  RideEventType = "RideDeclined"
	EventRideAdvanced  RideEventType = "RideAdvanced"
)

// RideEvent describes a confirmed ride transition.
type RideEvent struct {
	RideID   uuid.UUID     `json:"rideId"`
	Type     RideEventType `json:"type"`
	Status   RideStatus    `json:"status"`
	DriverID *uuid.UUID    `json:"driverId,omitempty"`
	At       time.Time     `json:"at"`
}

// EventPublisher receives confirmed transition events.
type EventPublisher interface {
	Publish(ctx context.Context, event RideEvent) error
}

// Clock abstracts time for deterministic tests.
type Clock interface {
	Now() time.Time
}

// SystemClock is the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }
