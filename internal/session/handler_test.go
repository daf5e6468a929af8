package session

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/example/dispatchlite/internal/ride/domain"
)

func newHandlerEnv(t *testing.T) (http.Handler, *Registry, Driver, Passenger) {
	t.Helper()
	r, _, driver, passenger := newTestRegistry(0)
	return NewHTTP(r, zap.NewNop()).Router(), r, driver, passenger
}

func doJSON(t *testing.T, router http.Handler, method, target, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var payload *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		payload = bytes.NewReader(raw)
	} else {
		payload = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, payload)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestLoginEndpointDriver(t *testing.T) {
	router, _, driver, _ := newHandlerEnv(t)

	rec := doJSON(t, router, http.MethodPost, "/login", "", LoginClaim{DriverID: &driver.ID})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Token     string     `json:"token"`
		Driver    *Driver    `json:"driver"`
		Passenger *Passenger `json:"passenger"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	require.NotNil(t, resp.Driver)
	require.Equal(t, driver.ID, resp.Driver.ID)
	require.Nil(t, resp.Passenger)
}

func TestLoginEndpointPassenger(t *testing.T) {
	router, _, _, passenger := newHandlerEnv(t)

	rec := doJSON(t, router, http.MethodPost, "/login", "", LoginClaim{PassengerID: &passenger.ID})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Token     string     `json:"token"`
		Passenger *Passenger `json:"passenger"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Passenger)
	require.Equal(t, passenger.NumOfPassengers, resp.Passenger.NumOfPassengers)
}

func TestLoginEndpointUnknown(t *testing.T) {
	router, _, _, _ := newHandlerEnv(t)
	unknown := uuid.New()

	rec := doJSON(t, router, http.MethodPost, "/login", "", LoginClaim{DriverID: &unknown})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogoutEndpointRevokes(t *testing.T) {
	router, registry, driver, _ := newHandlerEnv(t)

	sess, err := registry.Login(LoginClaim{DriverID: &driver.ID})
	require.NoError(t, err)

	rec := doJSON(t, router, http.MethodPost, "/logout", sess.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	_, err = registry.Validate(sess.Token)
	require.ErrorIs(t, err, domain.ErrUnauthorized)

	// Logout without a token is accepted and does nothing.
	rec = doJSON(t, router, http.MethodPost, "/logout", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestDirectoryEndpoints(t *testing.T) {
	router, _, driver, passenger := newHandlerEnv(t)

	rec := doJSON(t, router, http.MethodGet, "/drivers", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var drivers struct {
		Drivers []Driver `json:"drivers"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &drivers))
	require.Len(t, drivers.Drivers, 1)

	rec = doJSON(t, router, http.MethodGet, "/drivers/"+driver.ID.String(), "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/drivers/"+uuid.NewString(), "", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/passengers/"+passenger.ID.String(), "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got Passenger
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, passenger.ID, got.ID)

	rec = doJSON(t, router, http.MethodGet, "/passengers/not-a-uuid", "", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
