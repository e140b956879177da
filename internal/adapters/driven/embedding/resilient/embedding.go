// Package resilient decorates an embedding service with retry,
// circuit-breaking, and client-side rate limiting. Embedding backends
// are remote and flaky; the decorator keeps transient faults away from
// the indexing pipeline and turns sustained outages into a fast
// ErrEmbedderUnavailable instead of a retry storm.
package resilient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/custodia-labs/quarry/internal/core/domain"
	"github.com/custodia-labs/quarry/internal/core/ports/driven"
)

// Ensure EmbeddingService implements the interface.
var _ driven.EmbeddingService = (*EmbeddingService)(nil)

// Default configuration values.
const (
	DefaultMaxRetries        = 3
	DefaultInitialInterval   = 500 * time.Millisecond
	DefaultMaxInterval       = 10 * time.Second
	DefaultBreakerThreshold  = 5
	DefaultBreakerCooldown   = 30 * time.Second
	DefaultRequestsPerSecond = 10
	DefaultBurst             = 1
)

// Config holds the retry, breaker, and throttle policy.
type Config struct {
	// MaxRetries is the number of retries after the first attempt
	// (default: 3).
	MaxRetries uint64

	// InitialInterval is the first backoff delay (default: 500ms).
	InitialInterval time.Duration

	// MaxInterval caps the backoff delay (default: 10s).
	MaxInterval time.Duration

	// BreakerThreshold is the consecutive-failure count that opens the
	// circuit (default: 5).
	BreakerThreshold uint32

	// BreakerCooldown is how long the circuit stays open before a
	// half-open probe (default: 30s).
	BreakerCooldown time.Duration

	// RequestsPerSecond throttles calls to the backend (default: 10).
	RequestsPerSecond float64

	// Burst is the throttle bucket size (default: 1).
	Burst int
}

// EmbeddingService wraps another embedding service with the policy.
type EmbeddingService struct {
	inner   driven.EmbeddingService
	breaker *gobreaker.CircuitBreaker[any]
	limiter *rate.Limiter
	cfg     Config
}

// NewEmbeddingService decorates inner with retry, breaker, and
// rate-limiting policy.
func NewEmbeddingService(inner driven.EmbeddingService, cfg Config) *EmbeddingService {
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.InitialInterval == 0 {
		cfg.InitialInterval = DefaultInitialInterval
	}
	if cfg.MaxInterval == 0 {
		cfg.MaxInterval = DefaultMaxInterval
	}
	if cfg.BreakerThreshold == 0 {
		cfg.BreakerThreshold = DefaultBreakerThreshold
	}
	if cfg.BreakerCooldown == 0 {
		cfg.BreakerCooldown = DefaultBreakerCooldown
	}
	if cfg.RequestsPerSecond == 0 {
		cfg.RequestsPerSecond = DefaultRequestsPerSecond
	}
	if cfg.Burst == 0 {
		cfg.Burst = DefaultBurst
	}

	breaker := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:    "embedding",
		Timeout: cfg.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerThreshold
		},
		IsSuccessful: func(err error) bool {
			// A cancelled context is the caller's doing, not a
			// service fault.
			return err == nil || errors.Is(err, context.Canceled)
		},
	})

	return &EmbeddingService{
		inner:   inner,
		breaker: breaker,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		cfg:     cfg,
	}
}

// Embed generates a vector embedding for the given text.
func (s *EmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	result, err := s.execute(ctx, func() (any, error) {
		return s.inner.Embed(ctx, text)
	})
	if err != nil {
		return nil, err
	}
	return result.([]float32), nil
}

// EmbedBatch generates embeddings for multiple texts.
func (s *EmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	result, err := s.execute(ctx, func() (any, error) {
		return s.inner.EmbedBatch(ctx, texts)
	})
	if err != nil {
		return nil, err
	}
	return result.([][]float32), nil
}

// execute runs op under the rate limiter, breaker, and retry policy.
// An open circuit surfaces as ErrEmbedderUnavailable without retrying:
// backing off locally cannot close it.
func (s *EmbeddingService) execute(ctx context.Context, op func() (any, error)) (any, error) {
	var result any

	attempt := func() error {
		if err := s.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}

		var err error
		result, err = s.breaker.Execute(op)
		if err == nil {
			return nil
		}
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return backoff.Permanent(fmt.Errorf("%w: %v", domain.ErrEmbedderUnavailable, err))
		}
		if ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		return err
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = s.cfg.InitialInterval
	policy.MaxInterval = s.cfg.MaxInterval
	policy.MaxElapsedTime = 0 // bounded by retry count and ctx, not wall clock

	err := backoff.Retry(attempt, backoff.WithContext(
		backoff.WithMaxRetries(policy, s.cfg.MaxRetries), ctx))
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Dimensions returns the embedding vector size.
func (s *EmbeddingService) Dimensions() int {
	return s.inner.Dimensions()
}

// ModelName returns the identifier of the wrapped embedding model.
func (s *EmbeddingService) ModelName() string {
	return s.inner.ModelName()
}

// MaxInputLength returns the wrapped service's input cap.
func (s *EmbeddingService) MaxInputLength() int {
	return s.inner.MaxInputLength()
}

// Ping checks the wrapped service directly. Health probes bypass the
// retry and breaker policy so they report the real state.
func (s *EmbeddingService) Ping(ctx context.Context) error {
	return s.inner.Ping(ctx)
}

// Close releases the wrapped service's resources.
func (s *EmbeddingService) Close() error {
	return s.inner.Close()
}
