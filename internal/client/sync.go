package client

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/dispatchlite/internal/ride/domain"
	"github.com/example/dispatchlite/internal/session"
)

// Synchronizer keeps the UI-facing cache consistent with server truth
// without blocking interaction: reads are served from cache and revalidated
// in the background, declines are applied optimistically and rolled back on
// failure, and confirmed accept/advance responses maintain the ongoing
// working set. Failures are never retried here; the caller decides whether
// to resubmit.
type Synchronizer struct {
	api    *Client
	cache  *Cache
	logger *zap.Logger

	driverID uuid.UUID
}

// NewSynchronizer constructs a synchronizer over the API client.
func NewSynchronizer(api *Client, logger *zap.Logger) *Synchronizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Synchronizer{api: api, cache: NewCache(), logger: logger}
}

// LoginDriver authenticates as the given driver; subsequent mutations act
// on its behalf.
func (s *Synchronizer) LoginDriver(ctx context.Context, driverID uuid.UUID) error {
	id := driverID
	if _, err := s.api.Login(ctx, session.LoginClaim{DriverID: &id}); err != nil {
		return err
	}
	s.driverID = driverID
	return nil
}

// Logout revokes the session. The cache is kept; its entries are stale
// reads, not credentials.
func (s *Synchronizer) Logout(ctx context.Context) error {
	return s.api.Logout(ctx)
}

// Rides returns the pending rides for region. A cached response is served
// immediately and revalidated in the background; a cache miss fetches
// synchronously.
func (s *Synchronizer) Rides(ctx context.Context, region domain.Region) ([]domain.Ride, error) {
	key := RegionKey(region)
	if cached, ok := s.cache.List(key); ok {
		go s.revalidate(context.WithoutCancel(ctx), key, region)
		return cached, nil
	}
	return s.Refresh(ctx, region)
}

// Refresh bypasses the cache and fetches the region list from the server.
func (s *Synchronizer) Refresh(ctx context.Context, region domain.Region) ([]domain.Ride, error) {
	rides, err := s.api.ListRides(ctx, region)
	if err != nil {
		return nil, err
	}
	s.cache.PutList(RegionKey(region), rides)
	return rides, nil
}

func (s *Synchronizer) revalidate(ctx context.Context, key string, region domain.Region) {
	rides, err := s.api.ListRides(ctx, region)
	if err != nil {
		s.logger.Warn("revalidate failed", zap.String("key", key), zap.Error(err))
		return
	}
	s.cache.PutList(key, rides)
}

// Ride returns the cached view of a ride, fetching on miss.
func (s *Synchronizer) Ride(ctx context.Context, id uuid.UUID) (domain.Ride, error) {
	if cached, ok := s.cache.Ride(id); ok {
		return cached, nil
	}
	ride, err := s.api.GetRide(ctx, id)
	if err != nil {
		return domain.Ride{}, err
	}
	s.cache.PutRide(ride)
	return ride, nil
}

// OrderHistory fetches and caches the driver's assigned rides.
func (s *Synchronizer) OrderHistory(ctx context.Context, status domain.RideStatus) ([]domain.Ride, error) {
	rides, err := s.api.OrderHistory(ctx, status)
	if err != nil {
		return nil, err
	}
	s.cache.PutList(HistoryKey(status), rides)
	return rides, nil
}

// Decline optimistically marks the ride declined in every cached view, then
// asks the server. The deferred rollback restores the pre-mutation snapshot
// on every exit path except the explicit commit, so a failed or panicking
// call leaves no residual optimistic state.
func (s *Synchronizer) Decline(ctx context.Context, id uuid.UUID) error {
	rp := s.cache.StageStatus(id, domain.StatusDeclined)
	defer rp.Rollback()

	ride, err := s.api.Decline(ctx, id, s.driverID)
	if err != nil {
		return err
	}
	rp.Commit()
	s.cache.Confirm(ride)
	return nil
}

// Accept claims the ride; on confirmation the ride joins the ongoing
// working set so it stays visible outside the queried region.
func (s *Synchronizer) Accept(ctx context.Context, id uuid.UUID) (domain.Ride, error) {
	ride, err := s.api.Accept(ctx, id, s.driverID)
	if err != nil {
		return domain.Ride{}, err
	}
	s.cache.Confirm(ride)
	s.cache.AddOngoing(ride)
	return ride, nil
}

// Advance moves the ride one step forward based on its current client
// view. On confirmation the ongoing entry is refreshed, and evicted once
// the ride reaches dropped-off.
func (s *Synchronizer) Advance(ctx context.Context, id uuid.UUID) (domain.Ride, error) {
	current, err := s.Ride(ctx, id)
	if err != nil {
		return domain.Ride{}, err
	}
	next, ok := current.Status.Next()
	if !ok {
		return domain.Ride{}, domain.ErrInvalidTransition
	}
	updated, err := s.api.UpdateStatus(ctx, id, next)
	if err != nil {
		return domain.Ride{}, err
	}
	s.cache.Confirm(updated)
	s.cache.UpdateOngoing(updated)
	return updated, nil
}

// OngoingRides returns the client-local working set of in-progress rides.
func (s *Synchronizer) OngoingRides() []domain.Ride {
	return s.cache.Ongoing()
}

// Cache exposes the underlying cache for direct inspection by the UI layer.
func (s *Synchronizer) Cache() *Cache {
	return s.cache
}
