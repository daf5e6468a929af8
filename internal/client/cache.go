package client

import (
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/example/dispatchlite/internal/ride/domain"
)

// Cache is the UI-facing shadow of server ride state: list entries keyed by
// query, individual ride entries keyed by id, and the "ongoing rides"
// working set of rides the driver is actively serving. All entries are
// read-only copies of server responses except while an optimistic mutation
// is staged, in which case a RestorePoint holds the pre-mutation snapshot.
type Cache struct {
	mu      sync.Mutex
	lists   map[string][]domain.Ride
	rides   map[uuid.UUID]domain.Ride
	ongoing map[uuid.UUID]domain.Ride
}

// NewCache constructs an empty cache.
func NewCache() *Cache {
	return &Cache{
		lists:   make(map[string][]domain.Ride),
		rides:   make(map[uuid.UUID]domain.Ride),
		ongoing: make(map[uuid.UUID]domain.Ride),
	}
}

// RegionKey derives the cache key for a region list query.
func RegionKey(region domain.Region) string {
	return fmt.Sprintf("region:%g:%g:%g:%g", region.Latitude, region.Longitude, region.LatitudeDelta, region.LongitudeDelta)
}

// HistoryKey derives the cache key for an order-history query.
func HistoryKey(status domain.RideStatus) string {
	return "history:" + string(status)
}

// List returns a copy of the cached list for key.
func (c *Cache) List(key string) ([]domain.Ride, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rides, ok := c.lists[key]
	if !ok {
		return nil, false
	}
	return append([]domain.Ride(nil), rides...), true
}

// PutList stores a server list response and refreshes the per-ride entries
// it contains.
func (c *Cache) PutList(key string, rides []domain.Ride) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lists[key] = append([]domain.Ride(nil), rides...)
	for _, ride := range rides {
		c.rides[ride.ID] = ride
	}
}

// Ride returns the cached view of a single ride.
func (c *Cache) Ride(id uuid.UUID) (domain.Ride, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ride, ok := c.rides[id]
	return ride, ok
}

// PutRide stores a single server ride response.
func (c *Cache) PutRide(ride domain.Ride) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rides[ride.ID] = ride
}

// Confirm overwrites every cached view of the ride with the canonical
// post-transition record the server returned.
func (c *Cache) Confirm(ride domain.Ride) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rides[ride.ID] = ride
	for key, rides := range c.lists {
		for i := range rides {
			if rides[i].ID == ride.ID {
				rides[i] = ride
			}
		}
		c.lists[key] = rides
	}
	if _, ok := c.ongoing[ride.ID]; ok {
		c.ongoing[ride.ID] = ride
	}
}

// AddOngoing promotes a ride into the ongoing working set so in-progress
// rides stay visible outside the last queried region.
func (c *Cache) AddOngoing(ride domain.Ride) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ongoing[ride.ID] = ride
}

// UpdateOngoing refreshes an ongoing entry if present and evicts it once
// the ride reaches dropped-off.
func (c *Cache) UpdateOngoing(ride domain.Ride) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.ongoing[ride.ID]; !ok {
		return
	}
	if ride.Status == domain.StatusDroppedOff {
		delete(c.ongoing, ride.ID)
		return
	}
	c.ongoing[ride.ID] = ride
}

// Ongoing returns the working set ordered by ride id for stable rendering.
func (c *Cache) Ongoing() []domain.Ride {
	c.mu.Lock()
	defer c.mu.Unlock()
	rides := make([]domain.Ride, 0, len(c.ongoing))
	for _, ride := range c.ongoing {
		rides = append(rides, ride)
	}
	sort.Slice(rides, func(i, j int) bool { return rides[i].ID.String() < rides[j].ID.String() })
	return rides
}

// RestorePoint captures the exact pre-mutation cache state touched by an
// optimistic update. Rollback restores it; Commit discards it. Both are
// idempotent and mutually exclusive: whichever settles first wins, so a
// deferred Rollback after a Commit is a no-op.
type RestorePoint struct {
	cache    *Cache
	rideID   uuid.UUID
	prevRide domain.Ride
	hadRide  bool
	lists    map[string][]domain.Ride
	settled  bool
}

// StageStatus optimistically rewrites the cached ride and every cached list
// entry containing it to the given status, returning the restore point that
// undoes the rewrite.
func (c *Cache) StageStatus(id uuid.UUID, status domain.RideStatus) *RestorePoint {
	c.mu.Lock()
	defer c.mu.Unlock()

	rp := &RestorePoint{cache: c, rideID: id, lists: make(map[string][]domain.Ride)}
	if prev, ok := c.rides[id]; ok {
		rp.prevRide = prev
		rp.hadRide = true
		next := prev
		next.Status = status
		c.rides[id] = next
	}
	for key, rides := range c.lists {
		touched := false
		for i := range rides {
			if rides[i].ID == id {
				touched = true
				break
			}
		}
		if !touched {
			continue
		}
		rp.lists[key] = append([]domain.Ride(nil), rides...)
		for i := range rides {
			if rides[i].ID == id {
				rides[i].Status = status
			}
		}
		c.lists[key] = rides
	}
	return rp
}

// Rollback restores the snapshot unless the point already settled.
func (rp *RestorePoint) Rollback() {
	rp.cache.mu.Lock()
	defer rp.cache.mu.Unlock()
	if rp.settled {
		return
	}
	rp.settled = true
	if rp.hadRide {
		rp.cache.rides[rp.rideID] = rp.prevRide
	} else {
		delete(rp.cache.rides, rp.rideID)
	}
	for key, rides := range rp.lists {
		rp.cache.lists[key] = rides
	}
}

// Commit discards the snapshot, keeping the optimistic state until the
// confirmed record lands via Confirm.
func (rp *RestorePoint) Commit() {
	rp.cache.mu.Lock()
	defer rp.cache.mu.Unlock()
	rp.settled = true
}
