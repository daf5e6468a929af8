package session

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/example/dispatchlite/internal/ride/domain"
)

// Role discriminates the two identity shapes a login claim can resolve to.
type Role string

const (
	RoleDriver    Role = "driver"
	RolePassenger Role = "passenger"
)

// Driver is a known driver identity.
type Driver struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Email string    `json:"email"`
	Phone string    `json:"phone"`
}

// Passenger is a known passenger identity.
type Passenger struct {
	ID              uuid.UUID `json:"id"`
	Name            string    `json:"name"`
	Email           string    `json:"email"`
	Phone           string    `json:"phone"`
	NumOfPassengers int       `json:"numOfPassengers"`
}

// Identity is a tagged union of the two user shapes, dispatched on Role.
// Exactly one of Driver/Passenger is non-nil, matching Role.
type Identity struct {
	Role      Role
	Driver    *Driver
	Passenger *Passenger
}

// SubjectID returns the identity's id regardless of shape.
func (id Identity) SubjectID() uuid.UUID {
	if id.Role == RoleDriver && id.Driver != nil {
		return id.Driver.ID
	}
	if id.Passenger != nil {
		return id.Passenger.ID
	}
	return uuid.Nil
}

// LoginClaim carries either a driver or a passenger id.
type LoginClaim struct {
	DriverID    *uuid.UUID `json:"driverId,omitempty"`
	PassengerID *uuid.UUID `json:"passengerId,omitempty"`
}

// Session pairs an issued bearer token with the resolved identity.
type Session struct {
	Token    string
	Identity Identity
}

type tokenClaims struct {
	Role Role `json:"role"`
	jwt.RegisteredClaims
}

// Registry maps known driver and passenger identities to bearer sessions.
// Tokens are HMAC-signed JWTs; logout revokes the token id so a stolen
// token stops validating before its expiry. Dispatch operations consult
// Validate per request but never mutate the registry.
type Registry struct {
	mu         sync.RWMutex
	drivers    map[uuid.UUID]Driver
	passengers map[uuid.UUID]Passenger
	revoked    map[string]struct{}
	secret     []byte
	ttl        time.Duration
	clock      domain.Clock
}

// NewRegistry constructs an empty registry. A zero ttl issues tokens
// without expiry.
func NewRegistry(secret []byte, ttl time.Duration, clock domain.Clock) *Registry {
	return &Registry{
		drivers:    make(map[uuid.UUID]Driver),
		passengers: make(map[uuid.UUID]Passenger),
		revoked:    make(map[string]struct{}),
		secret:     secret,
		ttl:        ttl,
		clock:      clock,
	}
}

// AddDriver registers a driver identity.
func (r *Registry) AddDriver(d Driver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.drivers[d.ID] = d
}

// AddPassenger registers a passenger identity.
func (r *Registry) AddPassenger(p Passenger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.passengers[p.ID] = p
}

// Driver looks up a driver by id.
func (r *Registry) Driver(id uuid.UUID) (Driver, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.drivers[id]
	return d, ok
}

// Passenger looks up a passenger by id.
func (r *Registry) Passenger(id uuid.UUID) (Passenger, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.passengers[id]
	return p, ok
}

// Drivers returns all known drivers.
func (r *Registry) Drivers() []Driver {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Driver, 0, len(r.drivers))
	for _, d := range r.drivers {
		out = append(out, d)
	}
	return out
}

// Passengers returns all known passengers.
func (r *Registry) Passengers() []Passenger {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Passenger, 0, len(r.passengers))
	for _, p := range r.passengers {
		out = append(out, p)
	}
	return out
}

// Login resolves claim against the directory and issues a session. An
// unknown identity yields domain.ErrUnauthorized.
func (r *Registry) Login(claim LoginClaim) (Session, error) {
	identity, err := r.resolve(claim)
	if err != nil {
		return Session{}, err
	}

	now := r.clock.Now()
	claims := tokenClaims{
		Role: identity.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  identity.SubjectID().String(),
			ID:       uuid.NewString(),
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if r.ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(r.ttl))
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(r.secret)
	if err != nil {
		return Session{}, fmt.Errorf("sign token: %w", err)
	}
	return Session{Token: token, Identity: identity}, nil
}

// Logout revokes the token's id. Revoking an already invalid token is not
// an error.
func (r *Registry) Logout(token string) {
	claims, err := r.parse(token)
	if err != nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.revoked[claims.ID] = struct{}{}
}

// Validate parses and verifies a bearer token and returns the identity it
// was issued for. Unknown, revoked, expired, or tampered tokens yield
// domain.ErrUnauthorized.
func (r *Registry) Validate(token string) (Identity, error) {
	claims, err := r.parse(token)
	if err != nil {
		return Identity{}, domain.ErrUnauthorized
	}

	r.mu.RLock()
	_, revoked := r.revoked[claims.ID]
	r.mu.RUnlock()
	if revoked {
		return Identity{}, domain.ErrUnauthorized
	}

	subject, err := uuid.Parse(claims.Subject)
	if err != nil {
		return Identity{}, domain.ErrUnauthorized
	}
	switch claims.Role {
	case RoleDriver:
		if d, ok := r.Driver(subject); ok {
			return Identity{Role: RoleDriver, Driver: &d}, nil
		}
	case RolePassenger:
		if p, ok := r.Passenger(subject); ok {
			return Identity{Role: RolePassenger, Passenger: &p}, nil
		}
	}
	return Identity{}, domain.ErrUnauthorized
}

func (r *Registry) resolve(claim LoginClaim) (Identity, error) {
	switch {
	case claim.DriverID != nil:
		if d, ok := r.Driver(*claim.DriverID); ok {
			return Identity{Role: RoleDriver, Driver: &d}, nil
		}
	case claim.PassengerID != nil:
		if p, ok := r.Passenger(*claim.PassengerID); ok {
			return Identity{Role: RolePassenger, Passenger: &p}, nil
		}
	}
	return Identity{}, domain.ErrUnauthorized
}

func (r *Registry) parse(token string) (*tokenClaims, error) {
	claims := &tokenClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return r.secret, nil
	}, jwt.WithTimeFunc(r.clock.Now))
	if err != nil || !parsed.Valid {
		return nil, domain.ErrUnauthorized
	}
	return claims, nil
}

// SeedDirectory fills the registry with generated passengers and drivers,
// mirroring the demo directory the mobile client logs into.
func SeedDirectory(r *Registry, passengers, drivers int, rng *rand.Rand) {
	for i := 0; i < passengers; i++ {
		r.AddPassenger(Passenger{
			ID:              uuid.New(),
			Name:            fmt.Sprintf("Passenger %d", i+1),
			Email:           fmt.Sprintf("passenger%d@example.com", i+1),
			Phone:           fmt.Sprintf("+1555%07d", rng.Intn(10000000)),
			NumOfPassengers: 1 + rng.Intn(5),
		})
	}
	for i := 0; i < drivers; i++ {
		r.AddDriver(Driver{
			ID:    uuid.New(),
			Name:  fmt.Sprintf("Driver %d", i+1),
			Email: fmt.Sprintf("driver%d@example.com", i+1),
			Phone: fmt.Sprintf("+1555%07d", rng.Intn(10000000)),
		})
	}
}
