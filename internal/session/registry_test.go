package session

import (
	"math/rand"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/example/dispatchlite/internal/ride/domain"
)

type testClock struct{ now time.Time }

func (c *testClock) Now() time.Time { return c.now }

func newTestRegistry(ttl time.Duration) (*Registry, *testClock, Driver, Passenger) {
	clock := &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	r := NewRegistry([]byte("test-secret"), ttl, clock)
	driver := Driver{ID: uuid.New(), Name: "Driver 1", Email: "driver1@example.com"}
	passenger := Passenger{ID: uuid.New(), Name: "Passenger 1", Email: "passenger1@example.com", NumOfPassengers: 2}
	r.AddDriver(driver)
	r.AddPassenger(passenger)
	return r, clock, driver, passenger
}

func TestLoginDriver(t *testing.T) {
	r, _, driver, _ := newTestRegistry(0)

	sess, err := r.Login(LoginClaim{DriverID: &driver.ID})
	require.NoError(t, err)
	require.NotEmpty(t, sess.Token)
	require.Equal(t, RoleDriver, sess.Identity.Role)
	require.NotNil(t, sess.Identity.Driver)
	require.Nil(t, sess.Identity.Passenger)
	require.Equal(t, driver.ID, sess.Identity.SubjectID())
}

func TestLoginPassenger(t *testing.T) {
	r, _, _, passenger := newTestRegistry(0)

	sess, err := r.Login(LoginClaim{PassengerID: &passenger.ID})
	require.NoError(t, err)
	require.Equal(t, RolePassenger, sess.Identity.Role)
	require.NotNil(t, sess.Identity.Passenger)
	require.Nil(t, sess.Identity.Driver)
}

func TestLoginUnknownIdentity(t *testing.T) {
	r, _, _, _ := newTestRegistry(0)
	unknown := uuid.New()

	_, err := r.Login(LoginClaim{DriverID: &unknown})
	require.ErrorIs(t, err, domain.ErrUnauthorized)

	_, err = r.Login(LoginClaim{})
	require.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestValidateRoundTrip(t *testing.T) {
	r, _, driver, _ := newTestRegistry(0)

	sess, err := r.Login(LoginClaim{DriverID: &driver.ID})
	require.NoError(t, err)

	identity, err := r.Validate(sess.Token)
	require.NoError(t, err)
	require.Equal(t, RoleDriver, identity.Role)
	require.Equal(t, driver.ID, identity.SubjectID())
}

func TestValidateRejectsGarbage(t *testing.T) {
	r, _, _, _ := newTestRegistry(0)
	_, err := r.Validate("not-a-token")
	require.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestValidateRejectsForeignSignature(t *testing.T) {
	r, _, driver, _ := newTestRegistry(0)
	other := NewRegistry([]byte("other-secret"), 0, &testClock{now: time.Now()})
	other.AddDriver(Driver{ID: driver.ID})

	sess, err := other.Login(LoginClaim{DriverID: &driver.ID})
	require.NoError(t, err)

	_, err = r.Validate(sess.Token)
	require.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestLogoutRevokesToken(t *testing.T) {
	r, _, driver, _ := newTestRegistry(0)

	sess, err := r.Login(LoginClaim{DriverID: &driver.ID})
	require.NoError(t, err)

	r.Logout(sess.Token)
	_, err = r.Validate(sess.Token)
	require.ErrorIs(t, err, domain.ErrUnauthorized)

	// Revoking again or revoking garbage is harmless.
	r.Logout(sess.Token)
	r.Logout("not-a-token")
}

func TestLogoutRevokesOnlyThatToken(t *testing.T) {
	r, _, driver, _ := newTestRegistry(0)

	first, err := r.Login(LoginClaim{DriverID: &driver.ID})
	require.NoError(t, err)
	second, err := r.Login(LoginClaim{DriverID: &driver.ID})
	require.NoError(t, err)

	r.Logout(first.Token)

	_, err = r.Validate(first.Token)
	require.ErrorIs(t, err, domain.ErrUnauthorized)
	_, err = r.Validate(second.Token)
	require.NoError(t, err)
}

func TestValidateExpiry(t *testing.T) {
	r, clock, driver, _ := newTestRegistry(time.Hour)

	sess, err := r.Login(LoginClaim{DriverID: &driver.ID})
	require.NoError(t, err)

	_, err = r.Validate(sess.Token)
	require.NoError(t, err)

	clock.now = clock.now.Add(2 * time.Hour)
	_, err = r.Validate(sess.Token)
	require.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestSeedDirectory(t *testing.T) {
	r, _, _, _ := newTestRegistry(0)
	SeedDirectory(r, 5, 2, rand.New(rand.NewSource(1)))

	require.Len(t, r.Passengers(), 6)
	require.Len(t, r.Drivers(), 3)
}
