package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/example/dispatchlite/internal/ride/domain"
	"github.com/example/dispatchlite/internal/session"
)

// Client is the typed HTTP client for the dispatch API. It carries the
// bearer token issued at login and maps response codes back onto the domain
// error taxonomy so callers branch on sentinel errors, not status ints.
type Client struct {
	base string
	http *http.Client

	mu    sync.RWMutex
	token string
}

// New constructs a client for the API at base (e.g. "http://host:8080/api").
func New(base string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{base: base, http: httpClient}
}

// LoginResponse mirrors the login payload: a token plus exactly one of the
// two identity shapes.
type LoginResponse struct {
	Token     string             `json:"token"`
	Driver    *session.Driver    `json:"driver,omitempty"`
	Passenger *session.Passenger `json:"passenger,omitempty"`
}

// Login authenticates and stores the issued token for later calls.
func (c *Client) Login(ctx context.Context, claim session.LoginClaim) (LoginResponse, error) {
	var resp LoginResponse
	if err := c.do(ctx, http.MethodPost, "/login", nil, claim, &resp, mutationError); err != nil {
		return LoginResponse{}, err
	}
	c.mu.Lock()
	c.token = resp.Token
	c.mu.Unlock()
	return resp, nil
}

// Logout revokes and forgets the current token.
func (c *Client) Logout(ctx context.Context) error {
	err := c.do(ctx, http.MethodPost, "/logout", nil, nil, nil, mutationError)
	c.mu.Lock()
	c.token = ""
	c.mu.Unlock()
	return err
}

type ridesEnvelope struct {
	Rides []domain.Ride `json:"rides"`
}

// ListRides fetches pending rides inside region.
func (c *Client) ListRides(ctx context.Context, region domain.Region) ([]domain.Ride, error) {
	query := url.Values{}
	query.Set("latitude", formatFloat(region.Latitude))
	query.Set("longitude", formatFloat(region.Longitude))
	query.Set("latitudeDelta", formatFloat(region.LatitudeDelta))
	query.Set("longitudeDelta", formatFloat(region.LongitudeDelta))
	var envelope ridesEnvelope
	if err := c.do(ctx, http.MethodGet, "/rides", query, nil, &envelope, readError); err != nil {
		return nil, err
	}
	return envelope.Rides, nil
}

// GetRide fetches a single ride.
func (c *Client) GetRide(ctx context.Context, id uuid.UUID) (domain.Ride, error) {
	var ride domain.Ride
	if err := c.do(ctx, http.MethodGet, "/rides/"+id.String(), nil, nil, &ride, readError); err != nil {
		return domain.Ride{}, err
	}
	return ride, nil
}

// OrderHistory fetches rides assigned to the logged-in driver.
func (c *Client) OrderHistory(ctx context.Context, status domain.RideStatus) ([]domain.Ride, error) {
	query := url.Values{}
	if status != "" {
		query.Set("status", string(status))
	}
	var envelope ridesEnvelope
	if err := c.do(ctx, http.MethodGet, "/rides/orderHistory", query, nil, &envelope, readError); err != nil {
		return nil, err
	}
	return envelope.Rides, nil
}

// Accept claims a pending ride for the driver.
func (c *Client) Accept(ctx context.Context, id, driverID uuid.UUID) (domain.Ride, error) {
	var ride domain.Ride
	body := map[string]string{"driverId": driverID.String()}
	if err := c.do(ctx, http.MethodPost, "/rides/"+id.String()+"/accept", nil, body, &ride, mutationError); err != nil {
		return domain.Ride{}, err
	}
	return ride, nil
}

// Decline marks a pending ride declined.
func (c *Client) Decline(ctx context.Context, id, driverID uuid.UUID) (domain.Ride, error) {
	var ride domain.Ride
	body := map[string]string{"driverId": driverID.String()}
	if err := c.do(ctx, http.MethodPost, "/rides/"+id.String()+"/decline", nil, body, &ride, mutationError); err != nil {
		return domain.Ride{}, err
	}
	return ride, nil
}

// UpdateStatus requests a one-step-forward status change.
func (c *Client) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.RideStatus) (domain.Ride, error) {
	var ride domain.Ride
	body := map[string]string{"status": string(status)}
	if err := c.do(ctx, http.MethodPatch, "/rides/"+id.String()+"/status", nil, body, &ride, mutationError); err != nil {
		return domain.Ride{}, err
	}
	return ride, nil
}

// CreateRideRequest is the create payload; pickup/destination may be
// omitted in favour of a region the server generates points inside.
type CreateRideRequest struct {
	PassengerID    *uuid.UUID       `json:"passengerId,omitempty"`
	PickupLocation *domain.GeoPoint `json:"pickupLocation,omitempty"`
	Destination    *domain.GeoPoint `json:"destination,omitempty"`
	PickupTime     *time.Time       `json:"pickupTime,omitempty"`
	Region         *domain.Region   `json:"region,omitempty"`
}

// CreateRide registers a new pending ride.
func (c *Client) CreateRide(ctx context.Context, req CreateRideRequest) (domain.Ride, error) {
	var ride domain.Ride
	if err := c.do(ctx, http.MethodPost, "/rides", nil, req, &ride, mutationError); err != nil {
		return domain.Ride{}, err
	}
	return ride, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any, mapErr func(int, string) error) error {
	target := c.base + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	var payload *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		payload = bytes.NewReader(raw)
	} else {
		payload = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, payload)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.mu.RLock()
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	c.mu.RUnlock()

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errBody struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&errBody)
		return mapErr(resp.StatusCode, errBody.Error)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// readError maps read-endpoint failures: a 400 on a region read means the
// bounding parameters were rejected, not a lost race.
func readError(status int, msg string) error {
	switch status {
	case http.StatusBadRequest:
		return fmt.Errorf("%w: %s", domain.ErrInvalidRegion, msg)
	case http.StatusUnauthorized:
		return fmt.Errorf("%w: %s", domain.ErrUnauthorized, msg)
	case http.StatusNotFound:
		return domain.ErrNotFound
	default:
		return fmt.Errorf("request failed with status %d: %s", status, msg)
	}
}

// mutationError maps mutation failures onto the conflict taxonomy.
func mutationError(status int, msg string) error {
	switch status {
	case http.StatusBadRequest:
		return fmt.Errorf("%w: %s", domain.ErrConflict, msg)
	case http.StatusUnauthorized:
		return fmt.Errorf("%w: %s", domain.ErrUnauthorized, msg)
	case http.StatusForbidden:
		return fmt.Errorf("%w: %s", domain.ErrDriverMismatch, msg)
	case http.StatusNotFound:
		return domain.ErrNotFound
	default:
		return fmt.Errorf("request failed with status %d: %s", status, msg)
	}
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
