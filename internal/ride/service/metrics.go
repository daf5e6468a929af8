package service

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/example/dispatchlite/internal/ride/domain"
)

var transitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "dispatch_transitions_total",
	Help: "Ride status transition attempts grouped by operation and outcome.",
}, []string{"op", "result"})

func outcome(err error) string {
	switch {
	case errors.Is(err, domain.ErrConflict):
		return "conflict"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrDriverMismatch):
		return "driver_mismatch"
	case errors.Is(err, domain.ErrInvalidTransition):
		return "invalid"
	default:
		return "error"
	}
}
