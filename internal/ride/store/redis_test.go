package store

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/example/dispatchlite/internal/ride/domain"
)

func newRedisStore(t *testing.T) *RedisStore {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client, "")
}

func TestRedisStoreRoundTrip(t *testing.T) {
	s := newRedisStore(t)
	ride := newPendingRide(t, s)

	got, err := s.GetRide(context.Background(), ride.ID)
	require.NoError(t, err)
	require.Equal(t, ride.ID, got.ID)
	require.Equal(t, ride.PassengerID, got.PassengerID)
	require.Equal(t, ride.PickupLocation, got.PickupLocation)
	require.Equal(t, ride.Destination, got.Destination)
	require.Equal(t, domain.StatusPending, got.Status)
	require.Nil(t, got.DriverID)
	require.True(t, ride.PickupTime.Equal(got.PickupTime))
	require.True(t, ride.Timestamp.Equal(got.Timestamp))
}

func TestRedisStoreGetMissing(t *testing.T) {
	s := newRedisStore(t)
	_, err := s.GetRide(context.Background(), uuid.New())
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRedisStoreListRides(t *testing.T) {
	s := newRedisStore(t)
	a := newPendingRide(t, s)
	b := newPendingRide(t, s)

	rides, err := s.ListRides(context.Background())
	require.NoError(t, err)
	require.Len(t, rides, 2)
	ids := map[uuid.UUID]bool{rides[0].ID: true, rides[1].ID: true}
	require.True(t, ids[a.ID])
	require.True(t, ids[b.ID])
}

func TestRedisStoreCASAccept(t *testing.T) {
	s := newRedisStore(t)
	ride := newPendingRide(t, s)
	driver := uuid.New()

	updated, err := s.CompareAndSetStatus(context.Background(), ride.ID, domain.StatusPending, domain.StatusAccepted, driver)
	require.NoError(t, err)
	require.Equal(t, domain.StatusAccepted, updated.Status)
	require.NotNil(t, updated.DriverID)
	require.Equal(t, driver, *updated.DriverID)

	_, err = s.CompareAndSetStatus(context.Background(), ride.ID, domain.StatusPending, domain.StatusAccepted, uuid.New())
	require.ErrorIs(t, err, domain.ErrConflict)
}

func TestRedisStoreCASDecline(t *testing.T) {
	s := newRedisStore(t)
	ride := newPendingRide(t, s)
	driver := uuid.New()

	updated, err := s.CompareAndSetStatus(context.Background(), ride.ID, domain.StatusPending, domain.StatusDeclined, driver)
	require.NoError(t, err)
	require.Equal(t, domain.StatusDeclined, updated.Status)
	require.Nil(t, updated.DriverID)
	require.NotNil(t, updated.DeclinedBy)
	require.Equal(t, driver, *updated.DeclinedBy)
}

func TestRedisStoreCASDriverGuard(t *testing.T) {
	s := newRedisStore(t)
	ride := newPendingRide(t, s)
	driver := uuid.New()

	_, err := s.CompareAndSetStatus(context.Background(), ride.ID, domain.StatusPending, domain.StatusAccepted, driver)
	require.NoError(t, err)

	_, err = s.CompareAndSetStatus(context.Background(), ride.ID, domain.StatusAccepted, domain.StatusStarted, uuid.New())
	require.ErrorIs(t, err, domain.ErrDriverMismatch)

	updated, err := s.CompareAndSetStatus(context.Background(), ride.ID, domain.StatusAccepted, domain.StatusStarted, driver)
	require.NoError(t, err)
	require.Equal(t, domain.StatusStarted, updated.Status)
}

func TestRedisStoreCASMissing(t *testing.T) {
	s := newRedisStore(t)
	_, err := s.CompareAndSetStatus(context.Background(), uuid.New(), domain.StatusPending, domain.StatusAccepted, uuid.New())
	require.ErrorIs(t, err, domain.ErrNotFound)
}
