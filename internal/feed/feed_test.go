package feed

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/example/dispatchlite/internal/ride/domain"
)

func TestHubFansOut(t *testing.T) {
	hub := NewHub(4)
	first, cancelFirst := hub.Subscribe()
	second, cancelSecond := hub.Subscribe()
	defer cancelFirst()
	defer cancelSecond()

	event := domain.RideEvent{
		RideID: uuid.New(),
		Type:   domain.EventRideAccepted,
		Status: domain.StatusAccepted,
		At:     time.Now().UTC(),
	}
	require.NoError(t, hub.Publish(context.Background(), event))

	for _, ch := range []<-chan domain.RideEvent{first, second} {
		select {
		case got := <-ch:
			require.Equal(t, event.RideID, got.RideID)
			require.Equal(t, domain.EventRideAccepted, got.Type)
		case <-time.After(time.Second):
			t.Fatal("event not delivered")
		}
	}
}

func TestHubDropsWhenSubscriberIsSlow(t *testing.T) {
	hub := NewHub(1)
	ch, cancel := hub.Subscribe()
	defer cancel()

	for i := 0; i < 5; i++ {
		require.NoError(t, hub.Publish(context.Background(), domain.RideEvent{RideID: uuid.New()}))
	}

	// Buffer holds exactly one event; the rest were dropped, not blocked on.
	<-ch
	select {
	case _, ok := <-ch:
		require.False(t, ok, "expected no buffered events")
	default:
	}
}

func TestHubCancelClosesChannel(t *testing.T) {
	hub := NewHub(1)
	ch, cancel := hub.Subscribe()
	cancel()
	cancel()

	_, ok := <-ch
	require.False(t, ok)

	require.NoError(t, hub.Publish(context.Background(), domain.RideEvent{RideID: uuid.New()}))
}

func TestRideUpdateConversion(t *testing.T) {
	driver := uuid.New()
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	event := domain.RideEvent{
		RideID:   uuid.New(),
		Type:     domain.EventRideAdvanced,
		Status:   domain.StatusPickedUp,
		DriverID: &driver,
		At:       at,
	}

	update := toUpdate(event)
	require.Equal(t, event.RideID.String(), update.RideId)
	require.Equal(t, "picked-up", update.Status)
	require.Equal(t, driver.String(), update.DriverId)
	require.Equal(t, at.Unix(), update.UnixTs)
}
