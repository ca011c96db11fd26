package breaker

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	gobreaker "github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"

	"github.com/Somerville-Events/somerville.events-sub000/internal/metrics"
)

func TestBreakerOpensAfterFailures(t *testing.T) {
	cb := New[int]("breaker-test")
	boom := errors.New("boom")
	for i := 0; i < 5; i++ {
		_, err := cb.Execute(func() (int, error) { return 0, boom })
		assert.ErrorIs(t, err, boom)
		assert.False(t, Rejected(err))
	}
	assert.Equal(t, gobreaker.StateOpen, cb.State())
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.BreakerState.WithLabelValues("breaker-test")))

	_, err := cb.Execute(func() (int, error) { return 1, nil })
	assert.True(t, Rejected(err))
}

func TestBreakerToleratesOccasionalFailure(t *testing.T) {
	cb := New[int]("breaker-test-ok")
	for i := 0; i < 10; i++ {
		_, _ = cb.Execute(func() (int, error) {
			if i%4 == 0 {
				return 0, errors.New("flaky")
			}
			return i, nil
		})
	}
	assert.Equal(t, gobreaker.StateClosed, cb.State())
}
