package events

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/example/dispatchlite/internal/ride/domain"
)

type recordingPublisher struct {
	events []domain.RideEvent
	err    error
}

func (r *recordingPublisher) Publish(_ context.Context, event domain.RideEvent) error {
	r.events = append(r.events, event)
	return r.err
}

func TestNATSPublisherNilConnDropsEvents(t *testing.T) {
	p := NewNATSPublisher(nil, "")
	err := p.Publish(context.Background(), domain.RideEvent{RideID: uuid.New()})
	require.NoError(t, err)
}

func TestFanoutDeliversToAll(t *testing.T) {
	first := &recordingPublisher{}
	second := &recordingPublisher{}
	event := domain.RideEvent{RideID: uuid.New(), Type: domain.EventRideAccepted}

	require.NoError(t, Fanout{first, second}.Publish(context.Background(), event))
	require.Len(t, first.events, 1)
	require.Len(t, second.events, 1)
}

func TestFanoutKeepsGoingAfterError(t *testing.T) {
	boom := errors.New("boom")
	failing := &recordingPublisher{err: boom}
	ok := &recordingPublisher{}

	err := Fanout{failing, ok}.Publish(context.Background(), domain.RideEvent{RideID: uuid.New()})
	require.ErrorIs(t, err, boom)
	require.Len(t, ok.events, 1, "later publishers still receive the event")
}
