// Package resilience guards calls to flaky upstream services with a
// circuit breaker.
package resilience

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
)

// ErrCircuitOpen is returned without calling the operation while the
// breaker is open or its half-open trial quota is used up.
var ErrCircuitOpen = errors.New("circuit breaker open")

// CircuitState mirrors the gobreaker states.
type CircuitState int

const (
	StateClosed CircuitState = iota
	StateHalfOpen
	StateOpen
)

func (s CircuitState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half-open"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

func mapState(state gobreaker.State) CircuitState {
	switch state {
	case gobreaker.StateHalfOpen:
		return StateHalfOpen
	case gobreaker.StateOpen:
		return StateOpen
	default:
		return StateClosed
	}
}

// CircuitBreakerConfig configures a breaker. It trips after MaxFailures
// consecutive failures and tries again after Cooldown.
type CircuitBreakerConfig struct {
	Name          string
	MaxFailures   int
	Cooldown      time.Duration
	OnStateChange func(name string, from, to CircuitState)
	// IsSuccessful decides which errors count against the breaker. Nil
	// counts every non-nil error.
	IsSuccessful func(err error) bool
}

// CircuitBreaker wraps gobreaker with context-aware execution.
type CircuitBreaker struct {
	cb *gobreaker.CircuitBreaker
}

// NewCircuitBreaker creates a breaker, filling in defaults for zero values.
func NewCircuitBreaker(cfg CircuitBreakerConfig, logger *slog.Logger) *CircuitBreaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	log := logger.With("component", "circuit_breaker", "breaker", cfg.Name)

	maxFailures := uint32(cfg.MaxFailures)
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: 1,
		Timeout:     cfg.Cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			f, t := mapState(from), mapState(to)
			log.Warn("Circuit breaker state changed", "from", f, "to", t)
			if cfg.OnStateChange != nil {
				cfg.OnStateChange(name, f, t)
			}
		},
	}
	if cfg.IsSuccessful != nil {
		settings.IsSuccessful = cfg.IsSuccessful
	}

	return &CircuitBreaker{cb: gobreaker.NewCircuitBreaker(settings)}
}

// Execute runs op unless the breaker is open. A cancelled ctx is reported
// as the context error and does not count as an upstream failure.
func (b *CircuitBreaker) Execute(ctx context.Context, op func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, op(ctx)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return ErrCircuitOpen
	}
	return err
}

// State reports the current breaker state.
func (b *CircuitBreaker) State() CircuitState {
	return mapState(b.cb.State())
}
