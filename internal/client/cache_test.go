package client

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/example/dispatchlite/internal/ride/domain"
)

func pendingRide() domain.Ride {
	return domain.Ride{
		ID:             uuid.New(),
		PassengerID:    uuid.New(),
		PickupLocation: domain.GeoPoint{Latitude: 37.78, Longitude: -122.43},
		Destination:    domain.GeoPoint{Latitude: 37.79, Longitude: -122.41},
		Status:         domain.StatusPending,
		PickupTime:     time.Now().UTC(),
		Timestamp:      time.Now().UTC(),
	}
}

func TestStageStatusRewritesAllViews(t *testing.T) {
	c := NewCache()
	ride := pendingRide()
	c.PutList("list-a", []domain.Ride{ride})
	c.PutList("list-b", []domain.Ride{ride, pendingRide()})

	rp := c.StageStatus(ride.ID, domain.StatusDeclined)
	require.NotNil(t, rp)

	got, ok := c.Ride(ride.ID)
	require.True(t, ok)
	require.Equal(t, domain.StatusDeclined, got.Status)

	for _, key := range []string{"list-a", "list-b"} {
		list, ok := c.List(key)
		require.True(t, ok)
		for _, entry := range list {
			if entry.ID == ride.ID {
				require.Equal(t, domain.StatusDeclined, entry.Status, key)
			}
		}
	}
}

func TestRollbackRestoresExactSnapshot(t *testing.T) {
	c := NewCache()
	ride := pendingRide()
	other := pendingRide()
	c.PutList("list", []domain.Ride{ride, other})

	before, ok := c.List("list")
	require.True(t, ok)

	rp := c.StageStatus(ride.ID, domain.StatusDeclined)
	rp.Rollback()

	after, ok := c.List("list")
	require.True(t, ok)
	require.Equal(t, before, after)

	got, ok := c.Ride(ride.ID)
	require.True(t, ok)
	require.Equal(t, domain.StatusPending, got.Status)
}

func TestRollbackIsIdempotent(t *testing.T) {
	c := NewCache()
	ride := pendingRide()
	c.PutList("list", []domain.Ride{ride})

	rp := c.StageStatus(ride.ID, domain.StatusDeclined)
	rp.Rollback()

	// A later confirmed write must survive repeated rollbacks.
	declined := ride
	declined.Status = domain.StatusDeclined
	c.Confirm(declined)
	rp.Rollback()

	got, ok := c.Ride(ride.ID)
	require.True(t, ok)
	require.Equal(t, domain.StatusDeclined, got.Status)
}

func TestCommitDisarmsRollback(t *testing.T) {
	c := NewCache()
	ride := pendingRide()
	c.PutList("list", []domain.Ride{ride})

	rp := c.StageStatus(ride.ID, domain.StatusDeclined)
	rp.Commit()
	rp.Rollback()

	got, ok := c.Ride(ride.ID)
	require.True(t, ok)
	require.Equal(t, domain.StatusDeclined, got.Status)
}

func TestStageStatusUnknownRide(t *testing.T) {
	c := NewCache()
	ride := pendingRide()
	c.PutList("list", []domain.Ride{ride})

	rp := c.StageStatus(uuid.New(), domain.StatusDeclined)
	rp.Rollback()

	list, ok := c.List("list")
	require.True(t, ok)
	require.Equal(t, []domain.Ride{ride}, list)
}

func TestOngoingLifecycle(t *testing.T) {
	c := NewCache()
	ride := pendingRide()
	ride.Status = domain.StatusAccepted

	c.AddOngoing(ride)
	require.Len(t, c.Ongoing(), 1)

	ride.Status = domain.StatusPickedUp
	c.UpdateOngoing(ride)
	require.Equal(t, domain.StatusPickedUp, c.Ongoing()[0].Status)

	ride.Status = domain.StatusDroppedOff
	c.UpdateOngoing(ride)
	require.Empty(t, c.Ongoing())
}

func TestUpdateOngoingIgnoresUntracked(t *testing.T) {
	c := NewCache()
	ride := pendingRide()
	ride.Status = domain.StatusStarted
	c.UpdateOngoing(ride)
	require.Empty(t, c.Ongoing())
}

func TestConfirmTouchesOngoing(t *testing.T) {
	c := NewCache()
	ride := pendingRide()
	ride.Status = domain.StatusAccepted
	c.AddOngoing(ride)

	ride.Status = domain.StatusStarted
	c.Confirm(ride)
	require.Equal(t, domain.StatusStarted, c.Ongoing()[0].Status)
}
