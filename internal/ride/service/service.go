package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/example/dispatchlite/internal/ride/domain"
	"github.com/example/dispatchlite/internal/ride/geo"
)

// Service is the authoritative ride state machine. Every mutation it
// performs is exactly one call into the store's compare-and-set, so there is
// no read-then-write window: concurrent drivers contending for the same
// pending ride resolve to exactly one winner, losers observe ErrConflict.
type Service struct {
	store  domain.Store
	geo    *geo.Engine
	events domain.EventPublisher
	clock  domain.Clock
	tracer trace.Tracer
}

// New constructs a Service with the required collaborators.
func New(store domain.Store, engine *geo.Engine, events domain.EventPublisher, clock domain.Clock) *Service {
	return &Service{
		store:  store,
		geo:    engine,
		events: events,
		clock:  clock,
		tracer: otel.Tracer("dispatch.service"),
	}
}

// CreateRideRequest contains the payload for creating a ride.
type CreateRideRequest struct {
	PassengerID uuid.UUID
	Pickup      domain.GeoPoint
	Destination domain.GeoPoint
	PickupTime  time.Time
}

// ListPending returns pending rides whose pickup falls inside region.
func (s *Service) ListPending(ctx context.Context, region domain.Region) ([]domain.Ride, error) {
	return s.geo.FindEligible(ctx, region)
}

// GetRide retrieves a ride by id.
func (s *Service) GetRide(ctx context.Context, id uuid.UUID) (domain.Ride, error) {
	return s.store.GetRide(ctx, id)
}

// OrderHistory returns rides assigned to the given driver, optionally
// filtered to a single status, ordered most recent first.
func (s *Service) OrderHistory(ctx context.Context, driverID uuid.UUID, status domain.RideStatus) ([]domain.Ride, error) {
	rides, err := s.store.ListRides(ctx)
	if err != nil {
		return nil, fmt.Errorf("list rides: %w", err)
	}
	history := make([]domain.Ride, 0)
	for _, ride := range rides {
		if ride.DriverID == nil || *ride.DriverID != driverID {
			continue
		}
		if status != "" && ride.Status != status {
			continue
		}
		history = append(history, ride)
	}
	sort.Slice(history, func(i, j int) bool {
		return history[i].Timestamp.After(history[j].Timestamp)
	})
	return history, nil
}

// Create registers a new ride. Rides always start pending with no driver.
func (s *Service) Create(ctx context.Context, req CreateRideRequest) (domain.Ride, error) {
	ctx, span := s.tracer.Start(ctx, "dispatch.create")
	defer span.End()

	ride := domain.Ride{
		ID:             uuid.New(),
		PassengerID:    req.PassengerID,
		PickupLocation: req.Pickup,
		Destination:    req.Destination,
		Status:         domain.StatusPending,
		PickupTime:     req.PickupTime,
		Timestamp:      s.clock.Now(),
	}
	created, err := s.store.CreateRide(ctx, ride)
	if err != nil {
		return domain.Ride{}, fmt.Errorf("create ride: %w", err)
	}
	_ = s.events.Publish(ctx, domain.RideEvent{
		RideID: created.ID,
		Type:   domain.EventRideRequested,
		Status: created.Status,
		At:     s.clock.Now(),
	})
	return created, nil
}

// Accept assigns the ride to driverID. Only pending rides can be accepted;
// a concurrent winner leaves the loser with ErrConflict.
func (s *Service) Accept(ctx context.Context, id, driverID uuid.UUID) (domain.Ride, error) {
	ctx, span := s.tracer.Start(ctx, "dispatch.accept")
	defer span.End()
	return s.transition(ctx, "accept", id, domain.StatusPending, domain.StatusAccepted, driverID, domain.EventRideAccepted)
}

// Decline marks a pending ride declined, recording driverID for audit.
// Declined is terminal: the ride leaves the pending pool for every driver.
func (s *Service) Decline(ctx context.Context, id, driverID uuid.UUID) (domain.Ride, error) {
	ctx, span := s.tracer.Start(ctx, "dispatch.decline")
	defer span.End()
	return s.transition(ctx, "decline", id, domain.StatusPending, domain.StatusDeclined, driverID, domain.EventRideDeclined)
}

// Advance moves the ride one step forward from current. Terminal statuses
// have no successor and yield ErrInvalidTransition. Past accepted, the
// store enforces that driverID matches the assigned driver.
func (s *Service) Advance(ctx context.Context, id uuid.UUID, current domain.RideStatus, driverID uuid.UUID) (domain.Ride, error) {
	ctx, span := s.tracer.Start(ctx, "dispatch.advance")
	defer span.End()

	next, ok := current.Next()
	if !ok {
		transitionsTotal.WithLabelValues("advance", "invalid").Inc()
		return domain.Ride{}, domain.ErrInvalidTransition
	}
	event := domain.EventRideAdvanced
	if next == domain.StatusAccepted {
		event = domain.EventRideAccepted
	}
	return s.transition(ctx, "advance", id, current, next, driverID, event)
}

func (s *Service) transition(ctx context.Context, op string, id uuid.UUID, expected, next domain.RideStatus, actor uuid.UUID, event domain.RideEventType) (domain.Ride, error) {
	updated, err := s.store.CompareAndSetStatus(ctx, id, expected, next, actor)
	if err != nil {
		transitionsTotal.WithLabelValues(op, outcome(err)).Inc()
		return domain.Ride{}, err
	}
	transitionsTotal.WithLabelValues(op, "ok").Inc()
	_ = s.events.Publish(ctx, domain.RideEvent{
		RideID:   updated.ID,
		Type:     event,
		Status:   updated.Status,
		DriverID: updated.DriverID,
		At:       s.clock.Now(),
	})
	return updated, nil
}
