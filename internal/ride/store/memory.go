package store

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/example/dispatchlite/internal/ride/domain"
)

// MemoryStore is an in-memory ride store suitable for tests and local demos.
// It satisfies the same compare-and-set contract as the Redis-backed store:
// one mutex guards the table, so each CAS observes and writes ride state in
// a single critical section.
type MemoryStore struct {
	mu    sync.RWMutex
	rides map[uuid.UUID]domain.Ride
}

// NewMemoryStore constructs an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rides: make(map[uuid.UUID]domain.Ride)}
}

// CreateRide stores the ride and returns it.
func (m *MemoryStore) CreateRide(_ context.Context, ride domain.Ride) (domain.Ride, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rides[ride.ID] = ride
	return ride, nil
}

// GetRide retrieves a ride by id.
func (m *MemoryStore) GetRide(_ context.Context, id uuid.UUID) (domain.Ride, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ride, ok := m.rides[id]
	if !ok {
		return domain.Ride{}, domain.ErrNotFound
	}
	return ride, nil
}

// ListRides returns a copy of every stored ride.
func (m *MemoryStore) ListRides(_ context.Context) ([]domain.Ride, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rides := make([]domain.Ride, 0, len(m.rides))
	for _, ride := range m.rides {
		rides = append(rides, ride)
	}
	return rides, nil
}

// CompareAndSetStatus writes next only if the current status equals expected.
// Losers of a race observe domain.ErrConflict and the record is untouched.
func (m *MemoryStore) CompareAndSetStatus(_ context.Context, id uuid.UUID, expected, next domain.RideStatus, actor uuid.UUID) (domain.Ride, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ride, ok := m.rides[id]
	if !ok {
		return domain.Ride{}, domain.ErrNotFound
	}
	if ride.Status != expected {
		return domain.Ride{}, domain.ErrConflict
	}
	if expected != domain.StatusPending {
		if ride.DriverID == nil || *ride.DriverID != actor {
			return domain.Ride{}, domain.ErrDriverMismatch
		}
	}
	ride.Status = next
	switch {
	case expected == domain.StatusPending && next == domain.StatusAccepted:
		driverID := actor
		ride.DriverID = &driverID
	case expected == domain.StatusPending && next == domain.StatusDeclined:
		declinedBy := actor
		ride.DeclinedBy = &declinedBy
	}
	m.rides[id] = ride
	return ride, nil
}
