package engine

import (
	"context"
	"math/rand"
	"time"

	"github.com/jpillora/backoff"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"golang.org/x/sync/semaphore"
)

// GovernorConfig configures the two composed mechanisms: a per-venue
// concurrency cap and an exponential-backoff retry policy for rate-limit
// errors.
type GovernorConfig struct {
	MaxConcurrent  int64
	InitialBackoff time.Duration
	BackoffFactor  float64
	MaxBackoff     time.Duration
	MaxAttempts    int // retries after the initial call; total calls = MaxAttempts+1
	JitterFraction float64 // ±25% -> 0.25
}

// DefaultGovernorConfig returns initial=1s, factor=2, max=30s, retries=3
// (4 calls total), jitter=±25%, concurrency cap=2.
func DefaultGovernorConfig() GovernorConfig {
	return GovernorConfig{
		MaxConcurrent:  2,
		InitialBackoff: time.Second,
		BackoffFactor:  2,
		MaxBackoff:     30 * time.Second,
		MaxAttempts:    3,
		JitterFraction: 0.25,
	}
}

// Governor gates venue calls behind a concurrency semaphore, retries
// rate-limited failures with jittered exponential backoff, and trips a
// circuit breaker when a venue keeps failing outright.
type Governor struct {
	venue   string
	cfg     GovernorConfig
	sem     *semaphore.Weighted
	breaker *gobreaker.CircuitBreaker
	log     zerolog.Logger
}

// NewGovernor builds a Governor for one venue.
func NewGovernor(venue string, cfg GovernorConfig, log zerolog.Logger) *Governor {
	breakerSettings := gobreaker.Settings{
		Name:        venue + "-gateway",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			SetBreakerOpen(venue, to == gobreaker.StateOpen)
			log.Warn().Str("venue", venue).Str("from", from.String()).Str("to", to.String()).
				Msg("circuit breaker state change")
		},
	}
	return &Governor{
		venue:   venue,
		cfg:     cfg,
		sem:     semaphore.NewWeighted(cfg.MaxConcurrent),
		breaker: gobreaker.NewCircuitBreaker(breakerSettings),
		log:     log,
	}
}

// Do runs fn under the concurrency cap, retrying rate-limited failures up
// to MaxAttempts with jittered exponential backoff, and reports the whole
// attempt sequence to the circuit breaker as one logical call. Non-rate-
// limit errors propagate immediately without retry.
func (g *Governor) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer g.sem.Release(1)

	_, err := g.breaker.Execute(func() (interface{}, error) {
		return nil, g.doWithRetry(ctx, fn)
	})
	return err
}

// doWithRetry makes the initial call plus up to MaxAttempts retries — i.e.
// MaxAttempts+1 calls total — sleeping a jittered exponential backoff
// between each. Retry N (1-indexed) sleeps jitteredDelay(N-1) beforehand, so
// with the default MaxAttempts=3 the three retries sleep ~1s/2s/4s before
// the 4th call, and only then is *RateLimitError raised.
func (g *Governor) doWithRetry(ctx context.Context, fn func(ctx context.Context) error) error {
	var lastErr error
	for call := 0; call <= g.cfg.MaxAttempts; call++ {
		if call > 0 {
			delay := g.jitteredDelay(call - 1)
			IncRateLimitRetry(g.venue)
			g.log.Debug().Str("venue", g.venue).Int("attempt", call).Dur("delay", delay).
				Msg("retrying after rate-limit error")
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err
		if !IsRateLimited(err) {
			return err
		}
	}
	return &RateLimitError{Venue: g.venue, Err: lastErr}
}

// jitteredDelay computes min(initial * factor^attempt, max) and applies a
// uniform ±jitterFraction multiplier. The exponential envelope itself comes
// from jpillora/backoff (with its own Jitter disabled — that library's
// jitter is full-jitter-to-zero, not the symmetric ±25% this contract
// requires), so the envelope and the jitter are two separate, composed
// steps rather than one library call.
func (g *Governor) jitteredDelay(attempt int) time.Duration {
	b := &backoff.Backoff{
		Min:    g.cfg.InitialBackoff,
		Max:    g.cfg.MaxBackoff,
		Factor: g.cfg.BackoffFactor,
		Jitter: false,
	}
	base := b.ForAttempt(float64(attempt))

	jitter := 1 + (rand.Float64()*2-1)*g.cfg.JitterFraction
	d := time.Duration(float64(base) * jitter)
	if d > g.cfg.MaxBackoff {
		d = g.cfg.MaxBackoff
	}
	if d < 0 {
		d = 0
	}
	return d
}
