package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/example/dispatchlite/internal/ride/domain"
)

const (
	defaultRidePrefix = "ride:"
	defaultIndexKey   = "rides:index"
)

// casResult codes returned by the compare-and-set script.
const (
	casMissing  = 0
	casApplied  = 1
	casConflict = 2
	casMismatch = 3
)

// casScript performs the conditional status write server-side so that
// concurrent callers on the same ride id serialize inside Redis. ARGV:
// expected, next, actor field to set ("" for none), actor id, guard
// ("match" enforces actor == driverId before writing).
const casScript = `
local cur = redis.call('HGET', KEYS[1], 'status')
if not cur then
  return 0
end
if cur ~= ARGV[1] then
  return 2
end
if ARGV[5] == 'match' then
  local assigned = redis.call('HGET', KEYS[1], 'driverId')
  if not assigned or assigned ~= ARGV[4] then
    return 3
  end
end
redis.call('HSET', KEYS[1], 'status', ARGV[2])
if ARGV[3] ~= '' then
  redis.call('HSET', KEYS[1], ARGV[3], ARGV[4])
end
return 1
`

// RedisStore keeps each ride in a hash keyed by id plus a set of known ids.
// The compare-and-set runs as a Lua script, which Redis executes atomically.
type RedisStore struct {
	client redis.Cmdable
	prefix string
	index  string
	cas    *redis.Script
}

// NewRedisStore constructs a store on the given client.
func NewRedisStore(client redis.Cmdable, prefix string) *RedisStore {
	if prefix == "" {
		prefix = defaultRidePrefix
	}
	return &RedisStore{
		client: client,
		prefix: prefix,
		index:  defaultIndexKey,
		cas:    redis.NewScript(casScript),
	}
}

func (r *RedisStore) key(id uuid.UUID) string { return r.prefix + id.String() }

// CreateRide writes the ride hash and registers the id.
func (r *RedisStore) CreateRide(ctx context.Context, ride domain.Ride) (domain.Ride, error) {
	fields := encodeRide(ride)
	if err := r.client.HSet(ctx, r.key(ride.ID), fields).Err(); err != nil {
		return domain.Ride{}, fmt.Errorf("redis hset: %w", err)
	}
	if err := r.client.SAdd(ctx, r.index, ride.ID.String()).Err(); err != nil {
		return domain.Ride{}, fmt.Errorf("redis sadd: %w", err)
	}
	return ride, nil
}

// GetRide loads a ride hash.
func (r *RedisStore) GetRide(ctx context.Context, id uuid.UUID) (domain.Ride, error) {
	fields, err := r.client.HGetAll(ctx, r.key(id)).Result()
	if err != nil {
		return domain.Ride{}, fmt.Errorf("redis hgetall: %w", err)
	}
	if len(fields) == 0 {
		return domain.Ride{}, domain.ErrNotFound
	}
	return decodeRide(fields)
}

// ListRides loads every registered ride. A linear scan is acceptable at this
// scale; the geo engine filters the result by bounding box.
func (r *RedisStore) ListRides(ctx context.Context) ([]domain.Ride, error) {
	ids, err := r.client.SMembers(ctx, r.index).Result()
	if err != nil {
		return nil, fmt.Errorf("redis smembers: %w", err)
	}
	rides := make([]domain.Ride, 0, len(ids))
	for _, raw := range ids {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("corrupt ride index entry %q: %w", raw, err)
		}
		ride, err := r.GetRide(ctx, id)
		if errors.Is(err, domain.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		rides = append(rides, ride)
	}
	return rides, nil
}

// CompareAndSetStatus runs the conditional write script and re-reads the
// record on success.
func (r *RedisStore) CompareAndSetStatus(ctx context.Context, id uuid.UUID, expected, next domain.RideStatus, actor uuid.UUID) (domain.Ride, error) {
	actorField := ""
	guard := ""
	switch {
	case expected == domain.StatusPending && next == domain.StatusAccepted:
		actorField = "driverId"
	case expected == domain.StatusPending && next == domain.StatusDeclined:
		actorField = "declinedBy"
	case expected != domain.StatusPending:
		guard = "match"
	}

	res, err := r.cas.Run(ctx, r.client, []string{r.key(id)},
		string(expected), string(next), actorField, actor.String(), guard).Int()
	if err != nil {
		return domain.Ride{}, fmt.Errorf("redis cas: %w", err)
	}
	switch res {
	case casApplied:
		return r.GetRide(ctx, id)
	case casMissing:
		return domain.Ride{}, domain.ErrNotFound
	case casConflict:
		return domain.Ride{}, domain.ErrConflict
	case casMismatch:
		return domain.Ride{}, domain.ErrDriverMismatch
	default:
		return domain.Ride{}, fmt.Errorf("redis cas: unexpected result %d", res)
	}
}

func encodeRide(ride domain.Ride) map[string]any {
	fields := map[string]any{
		"id":          ride.ID.String(),
		"passengerId": ride.PassengerID.String(),
		"pickupLat":   formatFloat(ride.PickupLocation.Latitude),
		"pickupLng":   formatFloat(ride.PickupLocation.Longitude),
		"destLat":     formatFloat(ride.Destination.Latitude),
		"destLng":     formatFloat(ride.Destination.Longitude),
		"status":      string(ride.Status),
		"pickupTime":  ride.PickupTime.UTC().Format(time.RFC3339Nano),
		"timestamp":   ride.Timestamp.UTC().Format(time.RFC3339Nano),
	}
	if ride.DriverID != nil {
		fields["driverId"] = ride.DriverID.String()
	}
	if ride.DeclinedBy != nil {
		fields["declinedBy"] = ride.DeclinedBy.String()
	}
	return fields
}

func decodeRide(fields map[string]string) (domain.Ride, error) {
	var ride domain.Ride
	var err error
	if ride.ID, err = uuid.Parse(fields["id"]); err != nil {
		return domain.Ride{}, fmt.Errorf("corrupt ride id: %w", err)
	}
	if ride.PassengerID, err = uuid.Parse(fields["passengerId"]); err != nil {
		return domain.Ride{}, fmt.Errorf("corrupt passenger id: %w", err)
	}
	if raw, ok := fields["driverId"]; ok && raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return domain.Ride{}, fmt.Errorf("corrupt driver id: %w", err)
		}
		ride.DriverID = &id
	}
	if raw, ok := fields["declinedBy"]; ok && raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return domain.Ride{}, fmt.Errorf("corrupt decliner id: %w", err)
		}
		ride.DeclinedBy = &id
	}
	if ride.PickupLocation.Latitude, err = strconv.ParseFloat(fields["pickupLat"], 64); err != nil {
		return domain.Ride{}, fmt.Errorf("corrupt pickup latitude: %w", err)
	}
	if ride.PickupLocation.Longitude, err = strconv.ParseFloat(fields["pickupLng"], 64); err != nil {
		return domain.Ride{}, fmt.Errorf("corrupt pickup longitude: %w", err)
	}
	if ride.Destination.Latitude, err = strconv.ParseFloat(fields["destLat"], 64); err != nil {
		return domain.Ride{}, fmt.Errorf("corrupt destination latitude: %w", err)
	}
	if ride.Destination.Longitude, err = strconv.ParseFloat(fields["destLng"], 64); err != nil {
		return domain.Ride{}, fmt.Errorf("corrupt destination longitude: %w", err)
	}
	ride.Status = domain.RideStatus(fields["status"])
	if !ride.Status.Valid() {
		return domain.Ride{}, fmt.Errorf("corrupt ride status %q", fields["status"])
	}
	if ride.PickupTime, err = time.Parse(time.RFC3339Nano, fields["pickupTime"]); err != nil {
		return domain.Ride{}, fmt.Errorf("corrupt pickup time: %w", err)
	}
	if ride.Timestamp, err = time.Parse(time.RFC3339Nano, fields["timestamp"]); err != nil {
		return domain.Ride{}, fmt.Errorf("corrupt timestamp: %w", err)
	}
	return ride, nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
