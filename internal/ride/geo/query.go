package geo

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/example/dispatchlite/internal/ride/domain"
)

// Engine selects rides eligible for display inside a bounding region:
// status pending and pickup point within the (inclusive) box. No spatial
// index is kept; a linear scan over the store is sufficient at this scale.
type Engine struct {
	store domain.Store
}

// New constructs an engine over the given store.
func New(store domain.Store) *Engine {
	return &Engine{store: store}
}

// FindEligible returns pending rides whose pickup coordinate falls inside
// region. Results are ordered by ride id so repeated identical queries are
// stable absent mutation.
func (e *Engine) FindEligible(ctx context.Context, region domain.Region) ([]domain.Ride, error) {
	start := time.Now()
	rides, err := e.store.ListRides(ctx)
	if err != nil {
		regionQueries.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("list rides: %w", err)
	}
	eligible := make([]domain.Ride, 0)
	for _, ride := range rides {
		if ride.Status != domain.StatusPending {
			continue
		}
		if !region.Contains(ride.PickupLocation) {
			continue
		}
		eligible = append(eligible, ride)
	}
	sort.Slice(eligible, func(i, j int) bool {
		return eligible[i].ID.String() < eligible[j].ID.String()
	})
	regionQueries.WithLabelValues("ok").Inc()
	regionQuerySeconds.Observe(time.Since(start).Seconds())
	return eligible, nil
}

// ParseRegion builds a Region from request query parameters. All four
// scalars are required; a missing one yields domain.ErrInvalidRegion rather
// than a silently defaulted bound.
func ParseRegion(values url.Values) (domain.Region, error) {
	fields := [4]string{"latitude", "longitude", "latitudeDelta", "longitudeDelta"}
	var parsed [4]float64
	for i, name := range fields {
		raw := values.Get(name)
		if raw == "" {
			return domain.Region{}, domain.ErrInvalidRegion
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return domain.Region{}, domain.ErrInvalidRegion
		}
		parsed[i] = v
	}
	return domain.Region{
		Latitude:       parsed[0],
		Longitude:      parsed[1],
		LatitudeDelta:  parsed[2],
		LongitudeDelta: parsed[3],
	}, nil
}
