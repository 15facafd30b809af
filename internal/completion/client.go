// Package completion talks to the language-model backends that produce the
// raw JSON verdict for a statement.
package completion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/edgard/veritybot/internal/config"
	apperrors "github.com/edgard/veritybot/internal/errors"
	"github.com/edgard/veritybot/internal/metrics"
	"github.com/edgard/veritybot/internal/resilience"
)

// Client produces the raw model output for a user statement. The returned
// string is expected to be a JSON object but is not validated here.
type Client interface {
	Analyze(ctx context.Context, text string) (string, error)
}

// New builds the client for the configured provider, guarded by a circuit
// breaker unless completion.breaker_failures is zero.
func New(ctx context.Context, cfg config.CompletionConfig, logger *slog.Logger) (Client, error) {
	prompt := cfg.SystemPrompt
	if prompt == "" {
		prompt = DefaultSystemPrompt
	}

	var (
		client Client
		err    error
	)
	switch cfg.Provider {
	case "", "openai":
		client = NewOpenAIClient(cfg, prompt, nil, logger)
	case "gemini":
		client, err = NewGeminiClient(ctx, cfg, prompt, logger)
	default:
		return nil, apperrors.NewConfigError(fmt.Sprintf("unknown completion provider %q", cfg.Provider), nil)
	}
	if err != nil {
		return nil, err
	}

	if cfg.BreakerFailures > 0 {
		client = WithBreaker(client, cfg.BreakerFailures, cfg.BreakerCooldown, logger)
	}
	return client, nil
}

const serviceName = "completion"

// guardedClient short-circuits calls while the upstream keeps failing.
type guardedClient struct {
	next    Client
	breaker *resilience.CircuitBreaker
}

// WithBreaker wraps next so that maxFailures consecutive errors stop calls
// to it for cooldown. While open, Analyze fails fast with an external
// service error.
func WithBreaker(next Client, maxFailures int, cooldown time.Duration, logger *slog.Logger) Client {
	metrics.BreakerState.WithLabelValues(serviceName).Set(float64(resilience.StateClosed))
	return &guardedClient{
		next: next,
		breaker: resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			Name:        serviceName,
			MaxFailures: maxFailures,
			Cooldown:    cooldown,
			OnStateChange: func(name string, _, to resilience.CircuitState) {
				metrics.BreakerState.WithLabelValues(name).Set(float64(to))
			},
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, context.Canceled)
			},
		}, logger),
	}
}

func (g *guardedClient) Analyze(ctx context.Context, text string) (string, error) {
	var out string
	err := g.breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		out, err = g.next.Analyze(ctx, text)
		return err
	})
	if errors.Is(err, resilience.ErrCircuitOpen) {
		return "", apperrors.NewExternalServiceError(serviceName, "upstream temporarily unavailable", err)
	}
	return out, err
}
