package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/ryder-call/a-share-platform-stocks-selection/internal/config"
	apperrors "github.com/ryder-call/a-share-platform-stocks-selection/internal/errors"
	"github.com/ryder-call/a-share-platform-stocks-selection/internal/models"
)

// SeriesSource is the series provider being guarded.
type SeriesSource interface {
	FetchSeries(ctx context.Context, code string, start, end time.Time) (*models.Series, error)
}

// GuardedProvider wraps a series source with a circuit breaker. Missing or
// malformed data for one stock says nothing about the backend and does not
// count as a failure, nor does cancellation.
type GuardedProvider struct {
	inner   SeriesSource
	breaker *CircuitBreaker
}

// NewGuardedProvider wraps inner with a breaker built from cfg.
func NewGuardedProvider(inner SeriesSource, name string, cfg config.BreakerConfig, logger zerolog.Logger) *GuardedProvider {
	logger = logger.With().Str("breaker", name).Logger()
	cb := NewCircuitBreaker(name, cfg,
		WithFailurePredicate(backendFailure),
		WithStateChange(func(from, to CircuitState) {
			ev := logger.Info()
			if to == CircuitOpen {
				ev = logger.Warn()
			}
			ev.Str("from", string(from)).Str("to", string(to)).Msg("Series source circuit changed state")
		}),
	)
	return &GuardedProvider{inner: inner, breaker: cb}
}

// FetchSeries fetches through the breaker. A rejected call wraps
// ErrProviderTripped.
func (g *GuardedProvider) FetchSeries(ctx context.Context, code string, start, end time.Time) (*models.Series, error) {
	s, err := ExecuteWithResult(ctx, g.breaker, func(ctx context.Context) (*models.Series, error) {
		return g.inner.FetchSeries(ctx, code, start, end)
	})
	if errors.Is(err, ErrCircuitOpen) {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrProviderTripped, g.breaker.Name())
	}
	return s, err
}

// Breaker exposes the underlying breaker.
func (g *GuardedProvider) Breaker() *CircuitBreaker {
	return g.breaker
}

func backendFailure(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, context.Canceled),
		errors.Is(err, apperrors.ErrInvalidSeries),
		errors.Is(err, apperrors.ErrSeriesUnavailable):
		return false
	}
	return true
}
