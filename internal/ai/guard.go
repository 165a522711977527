package ai

import (
	"context"
	"fmt"
	"time"

	"document-portal/models"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"
)

type GuardConfig struct {
	Name              string
	RequestsPerMinute int
	Retry             RetryPolicy
	// Timeout bounds a single attempt. Zero leaves the caller's deadline as the only bound.
	Timeout       time.Duration
	OnStateChange func(name, from, to string)
}

// Guard applies rate limiting, a circuit breaker and bounded retries to
// provider calls. Every error it returns matches models.ErrProvider.
type Guard struct {
	name        string
	breaker     *gobreaker.CircuitBreaker
	rateLimiter *rate.Limiter
	retry       RetryPolicy
	timeout     time.Duration
}

func NewGuard(cfg GuardConfig) *Guard {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: 5,
		Interval:    10 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			if cfg.OnStateChange != nil {
				cfg.OnStateChange(name, from.String(), to.String())
			}
		},
	})

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RequestsPerMinute > 0 {
		// RPM limit with some buffer
		limiter = rate.NewLimiter(rate.Limit(float64(cfg.RequestsPerMinute)*0.9/60.0), max(cfg.RequestsPerMinute/10, 1))
	}

	return &Guard{
		name:        cfg.Name,
		breaker:     breaker,
		rateLimiter: limiter,
		retry:       cfg.Retry,
		timeout:     cfg.Timeout,
	}
}

func (g *Guard) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	tracer := otel.Tracer("provider-guard")
	ctx, span := tracer.Start(ctx, "provider."+op)
	defer span.End()
	span.SetAttributes(attribute.String("provider.name", g.name))

	attempts := 0
	err := g.retry.Do(ctx, func(ctx context.Context) error {
		attempts++
		if err := g.rateLimiter.Wait(ctx); err != nil {
			return err
		}

		callCtx := ctx
		if g.timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, g.timeout)
			defer cancel()
		}

		_, err := g.breaker.Execute(func() (interface{}, error) {
			return nil, fn(callCtx)
		})
		return err
	})
	span.SetAttributes(attribute.Int("provider.attempts", attempts))

	if err != nil {
		span.SetAttributes(attribute.Bool("provider.error", true))
		if err == gobreaker.ErrOpenState {
			span.SetAttributes(attribute.Bool("provider.circuit_breaker_open", true))
		}
		return fmt.Errorf("%s %s after %d attempt(s): %w: %w", g.name, op, attempts, models.ErrProvider, err)
	}
	return nil
}

type guardedGenerator struct {
	inner Generator
	guard *Guard
}

// GuardGenerator wraps a generator so every call goes through guard.
func GuardGenerator(inner Generator, guard *Guard) Generator {
	return &guardedGenerator{inner: inner, guard: guard}
}

func (g *guardedGenerator) Model() string {
	return g.inner.Model()
}

func (g *guardedGenerator) Generate(ctx context.Context, messages []models.ChatMessage) (string, error) {
	var out string
	err := g.guard.Do(ctx, "generate", func(ctx context.Context) error {
		var err error
		out, err = g.inner.Generate(ctx, messages)
		return err
	})
	return out, err
}

type guardedEmbedder struct {
	inner Embedder
	guard *Guard
}

// GuardEmbedder wraps an embedder so every call goes through guard.
func GuardEmbedder(inner Embedder, guard *Guard) Embedder {
	return &guardedEmbedder{inner: inner, guard: guard}
}

func (e *guardedEmbedder) Model() string {
	return e.inner.Model()
}

func (e *guardedEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	var out [][]float32
	err := e.guard.Do(ctx, "embed", func(ctx context.Context) error {
		var err error
		out, err = e.inner.Embed(ctx, texts)
		return err
	})
	return out, err
}
