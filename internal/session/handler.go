package session

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// HTTP exposes login/logout and the user directory.
type HTTP struct {
	registry *Registry
	logger   *zap.Logger
}

// NewHTTP constructs the handler.
func NewHTTP(registry *Registry, logger *zap.Logger) *HTTP {
	return &HTTP{registry: registry, logger: logger}
}

// Router builds the session routes.
func (h *HTTP) Router() http.Handler {
	r := chi.NewRouter()
	r.Post("/login", h.login)
	r.Post("/logout", h.logout)
	r.Get("/drivers", h.listDrivers)
	r.Get("/drivers/{id}", h.getDriver)
	r.Get("/passengers", h.listPassengers)
	r.Get("/passengers/{id}", h.getPassenger)
	return r
}

func (h *HTTP) login(w http.ResponseWriter, r *http.Request) {
	var claim LoginClaim
	if err := json.NewDecoder(r.Body).Decode(&claim); err != nil {
		writeError(w, http.StatusBadRequest, "invalid login payload")
		return
	}
	sess, err := h.registry.Login(claim)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "identity not found")
		return
	}
	resp := map[string]any{"token": sess.Token}
	switch sess.Identity.Role {
	case RoleDriver:
		resp["driver"] = sess.Identity.Driver
	case RolePassenger:
		resp["passenger"] = sess.Identity.Passenger
	}
	h.logger.Info("login", zap.String("role", string(sess.Identity.Role)), zap.Stringer("subject", sess.Identity.SubjectID()))
	writeJSON(w, http.StatusOK, resp)
}

func (h *HTTP) logout(w http.ResponseWriter, r *http.Request) {
	if token := tokenFromHeader(r.Header.Get("Authorization")); token != "" {
		h.registry.Logout(token)
	}
	w.WriteHeader(http.StatusOK)
}

func (h *HTTP) listDrivers(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"drivers": h.registry.Drivers()})
}

func (h *HTTP) getDriver(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	driver, ok := h.registry.Driver(id)
	if !ok {
		writeError(w, http.StatusNotFound, "driver not found")
		return
	}
	writeJSON(w, http.StatusOK, driver)
}

func (h *HTTP) listPassengers(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"passengers": h.registry.Passengers()})
}

func (h *HTTP) getPassenger(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	passenger, ok := h.registry.Passenger(id)
	if !ok {
		writeError(w, http.StatusNotFound, "passenger not found")
		return
	}
	writeJSON(w, http.StatusOK, passenger)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
