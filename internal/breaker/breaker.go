package breaker

import (
	"errors"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

// ErrUnavailable is returned while the breaker is open or half-open and saturated.
var ErrUnavailable = errors.New("dependency unavailable")

type Settings struct {
	// ConsecutiveFailures trips the breaker.
	ConsecutiveFailures uint32
	// OpenTimeout is how long the breaker stays open before probing again.
	OpenTimeout time.Duration
	// IsSuccessful marks errors that must not count as failures (not found, etc).
	IsSuccessful func(err error) bool
}

func DefaultSettings() Settings {
	return Settings{
		ConsecutiveFailures: 5,
		OpenTimeout:         30 * time.Second,
	}
}

func New[T any](name string, s Settings, logger *zap.Logger) *gobreaker.CircuitBreaker[T] {
	st := gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     s.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= s.ConsecutiveFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	}
	if s.IsSuccessful != nil {
		st.IsSuccessful = func(err error) bool {
			return err == nil || s.IsSuccessful(err)
		}
	}
	return gobreaker.NewCircuitBreaker[T](st)
}

// Execute runs fn through cb and folds the breaker's own rejections into ErrUnavailable.
func Execute[T any](cb *gobreaker.CircuitBreaker[T], fn func() (T, error)) (T, error) {
	v, err := cb.Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		var zero T
		return zero, errors.Join(ErrUnavailable, err)
	}
	return v, err
}
