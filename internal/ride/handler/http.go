package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"math/rand"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/dispatchlite/internal/ride/domain"
	"github.com/example/dispatchlite/internal/ride/geo"
	"github.com/example/dispatchlite/internal/ride/service"
	"github.com/example/dispatchlite/internal/session"
)

// Config controls handler behaviour knobs.
type Config struct {
	// AuthenticatedBrowsing requires a valid session on the region listing
	// endpoint. Mutations always require a driver session.
	AuthenticatedBrowsing bool
}

// HTTP exposes the dispatch endpoints the mobile client consumes.
type HTTP struct {
	svc      *service.Service
	registry *session.Registry
	logger   *zap.Logger
	cfg      Config
}

// NewHTTP constructs the handler.
func NewHTTP(svc *service.Service, registry *session.Registry, logger *zap.Logger, cfg Config) *HTTP {
	return &HTTP{svc: svc, registry: registry, logger: logger, cfg: cfg}
}

// Router builds the ride routes. Listing and single-ride reads are open
// unless authenticated browsing is enabled; history and every mutation past
// create require a driver session; create accepts any valid session.
func (h *HTTP) Router() http.Handler {
	r := chi.NewRouter()

	r.Group(func(g chi.Router) {
		if h.cfg.AuthenticatedBrowsing {
			g.Use(session.Middleware(h.registry))
		}
		g.Get("/", h.listRides)
		g.Get("/{id}", h.getRide)
	})

	r.Group(func(g chi.Router) {
		g.Use(session.Middleware(h.registry, session.RoleDriver))
		g.Get("/orderHistory", h.orderHistory)
		g.Post("/{id}/accept", h.acceptRide)
		g.Post("/{id}/decline", h.declineRide)
		g.Patch("/{id}/status", h.updateStatus)
	})

	r.Group(func(g chi.Router) {
		g.Use(session.Middleware(h.registry, session.RoleDriver, session.RolePassenger))
		g.Post("/", h.createRide)
	})

	return r
}

func (h *HTTP) listRides(w http.ResponseWriter, r *http.Request) {
	region, err := geo.ParseRegion(r.URL.Query())
	if err != nil {
		h.respondError(w, err)
		return
	}
	rides, err := h.svc.ListPending(r.Context(), region)
	if err != nil {
		h.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rides": rides})
}

func (h *HTTP) getRide(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid ride id")
		return
	}
	ride, err := h.svc.GetRide(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ride)
}

func (h *HTTP) orderHistory(w http.ResponseWriter, r *http.Request) {
	driverID, ok := driverFromContext(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "invalid token")
		return
	}
	status := domain.RideStatus(r.URL.Query().Get("status"))
	if status != "" && !status.Valid() {
		writeError(w, http.StatusBadRequest, "invalid status filter")
		return
	}
	rides, err := h.svc.OrderHistory(r.Context(), driverID, status)
	if err != nil {
		h.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rides": rides})
}

type driverActionRequest struct {
	DriverID *uuid.UUID `json:"driverId"`
}

func (h *HTTP) acceptRide(w http.ResponseWriter, r *http.Request) {
	h.driverAction(w, r, h.svc.Accept)
}

func (h *HTTP) declineRide(w http.ResponseWriter, r *http.Request) {
	h.driverAction(w, r, h.svc.Decline)
}

// driverAction handles the shared accept/decline shape: a ride id in the
// path and an optional driverId body that must match the session driver.
func (h *HTTP) driverAction(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, id, driverID uuid.UUID) (domain.Ride, error)) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid ride id")
		return
	}
	sessionDriver, ok := driverFromContext(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "invalid token")
		return
	}
	var payload driverActionRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if payload.DriverID != nil && *payload.DriverID != sessionDriver {
		writeError(w, http.StatusForbidden, "driverId does not match session")
		return
	}
	ride, err := op(r.Context(), id, sessionDriver)
	if err != nil {
		h.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ride)
}

type updateStatusRequest struct {
	Status domain.RideStatus `json:"status"`
}

func (h *HTTP) updateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid ride id")
		return
	}
	driverID, ok := driverFromContext(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "invalid token")
		return
	}
	var payload updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if !payload.Status.Valid() {
		writeError(w, http.StatusBadRequest, "unknown status")
		return
	}
	// The requested status must be exactly one step forward, so its unique
	// predecessor is the status the ride is expected to hold right now.
	expected, ok := domain.Predecessor(payload.Status)
	if !ok {
		h.respondError(w, domain.ErrInvalidTransition)
		return
	}
	ride, err := h.svc.Advance(r.Context(), id, expected, driverID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ride)
}

type createRideRequest struct {
	PassengerID    *uuid.UUID       `json:"passengerId"`
	PickupLocation *domain.GeoPoint `json:"pickupLocation"`
	Destination    *domain.GeoPoint `json:"destination"`
	PickupTime     *time.Time       `json:"pickupTime"`
	Region         *domain.Region   `json:"region"`
}

func (h *HTTP) createRide(w http.ResponseWriter, r *http.Request) {
	var payload createRideRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}

	identity, _ := session.IdentityFromContext(r.Context())
	passengerID := identity.SubjectID()
	if payload.PassengerID != nil {
		passengerID = *payload.PassengerID
	}
	if passengerID == uuid.Nil {
		writeError(w, http.StatusBadRequest, "passengerId is required")
		return
	}

	req := service.CreateRideRequest{PassengerID: passengerID}
	switch {
	case payload.PickupLocation != nil && payload.Destination != nil:
		req.Pickup = *payload.PickupLocation
		req.Destination = *payload.Destination
	case payload.Region != nil:
		// The mock generates coordinates inside the requested region when
		// the client sends only a region.
		req.Pickup = randomPoint(*payload.Region)
		req.Destination = randomPoint(*payload.Region)
	default:
		writeError(w, http.StatusBadRequest, "pickupLocation and destination (or region) are required")
		return
	}
	if payload.PickupTime != nil {
		req.PickupTime = *payload.PickupTime
	} else {
		req.PickupTime = time.Now().UTC().Add(15 * time.Minute)
	}

	ride, err := h.svc.Create(r.Context(), req)
	if err != nil {
		h.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ride)
}

func (h *HTTP) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidRegion):
		writeError(w, http.StatusBadRequest, domain.ErrInvalidRegion.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "ride not found")
	case errors.Is(err, domain.ErrConflict):
		writeError(w, http.StatusBadRequest, "ride status conflict")
	case errors.Is(err, domain.ErrInvalidTransition):
		writeError(w, http.StatusBadRequest, "invalid status transition")
	case errors.Is(err, domain.ErrDriverMismatch):
		writeError(w, http.StatusForbidden, "driver not assigned to ride")
	case errors.Is(err, domain.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "unauthorized")
	default:
		h.logger.Error("dispatch request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func driverFromContext(r *http.Request) (uuid.UUID, bool) {
	identity, ok := session.IdentityFromContext(r.Context())
	if !ok || identity.Role != session.RoleDriver || identity.Driver == nil {
		return uuid.Nil, false
	}
	return identity.Driver.ID, true
}

func randomPoint(region domain.Region) domain.GeoPoint {
	return domain.GeoPoint{
		Latitude:  region.Latitude + (rand.Float64()-0.5)*region.LatitudeDelta,
		Longitude: region.Longitude + (rand.Float64()-0.5)*region.LongitudeDelta,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
