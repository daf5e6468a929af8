package store

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/example/dispatchlite/internal/ride/domain"
)

var seedStatuses = []domain.RideStatus{
	domain.StatusPending,
	domain.StatusAccepted,
	domain.StatusDeclined,
	domain.StatusStarted,
	domain.StatusPickedUp,
	domain.StatusDroppedOff,
}

// Seed populates the store with n randomly generated rides whose pickup and
// destination points fall inside region. Statuses are drawn uniformly from
// the full lifecycle; non-pending rides get a driver from drivers so the
// assignment invariant holds.
func Seed(ctx context.Context, s domain.Store, region domain.Region, n int, passengers, drivers []uuid.UUID, rng *rand.Rand) error {
	if len(passengers) == 0 || len(drivers) == 0 {
		return fmt.Errorf("seed requires at least one passenger and one driver")
	}
	now := time.Now().UTC()
	for i := 0; i < n; i++ {
		status := seedStatuses[rng.Intn(len(seedStatuses))]
		ride := domain.Ride{
			ID:             uuid.New(),
			PassengerID:    passengers[rng.Intn(len(passengers))],
			PickupLocation: randomPoint(region, rng),
			Destination:    randomPoint(region, rng),
			Status:         status,
			PickupTime:     now.Add(time.Duration(1+rng.Intn(120)) * time.Minute),
			Timestamp:      now.Add(-time.Duration(rng.Intn(60)) * time.Minute),
		}
		driverID := drivers[rng.Intn(len(drivers))]
		switch {
		case status.Assigned():
			ride.DriverID = &driverID
		case status == domain.StatusDeclined:
			ride.DeclinedBy = &driverID
		}
		if _, err := s.CreateRide(ctx, ride); err != nil {
			return fmt.Errorf("seed ride %d: %w", i, err)
		}
	}
	return nil
}

func randomPoint(region domain.Region, rng *rand.Rand) domain.GeoPoint {
	return domain.GeoPoint{
		Latitude:  region.Latitude + (rng.Float64()-0.5)*region.LatitudeDelta,
		Longitude: region.Longitude + (rng.Float64()-0.5)*region.LongitudeDelta,
	}
}
