// Package breaker wraps upstream calls in circuit breakers that report
// their state to logs and metrics.
package breaker

import (
	"errors"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/Somerville-Events/somerville.events-sub000/internal/metrics"
	"github.com/Somerville-Events/somerville.events-sub000/pkg/logger"
)

// New returns a breaker that opens once at least 5 calls in a minute
// have been made and 60% or more of them failed.
func New[T any](name string) *gobreaker.CircuitBreaker[T] {
	metrics.SetBreakerState(name, 0)
	return gobreaker.NewCircuitBreaker[T](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 5 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				zap.String("upstream", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
			metrics.SetBreakerState(name, stateValue(to))
		},
	})
}

// Rejected reports whether err came from the breaker itself rather than
// from the wrapped call.
func Rejected(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

func stateValue(s gobreaker.State) int {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
