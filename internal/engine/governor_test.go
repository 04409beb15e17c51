package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testGovernor() *Governor {
	return NewGovernor("test-venue", DefaultGovernorConfig(), zerolog.Nop())
}

// Jittered delays must fall within the documented windows for the first
// three retries given initial=1s, factor=2.
func TestGovernor_JitteredDelayWindows(t *testing.T) {
	g := testGovernor()
	windows := []struct{ min, max time.Duration }{
		{750 * time.Millisecond, 1250 * time.Millisecond},
		{1500 * time.Millisecond, 2500 * time.Millisecond},
		{3000 * time.Millisecond, 5000 * time.Millisecond},
	}
	for attempt, w := range windows {
		for i := 0; i < 50; i++ {
			d := g.jitteredDelay(attempt)
			assert.GreaterOrEqualf(t, d, w.min, "attempt %d delay %v below window", attempt, d)
			assert.LessOrEqualf(t, d, w.max, "attempt %d delay %v above window", attempt, d)
		}
	}
}

func TestGovernor_NonRateLimitErrorPropagatesImmediately(t *testing.T) {
	g := testGovernor()
	g.cfg.InitialBackoff = time.Millisecond // keep the test fast regardless

	calls := 0
	err := g.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return errors.New("auth failure")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls, "non-rate-limit errors must not be retried")
}

func TestGovernor_RateLimitExhaustsAttemptsThenRaisesRateLimitError(t *testing.T) {
	cfg := DefaultGovernorConfig()
	cfg.InitialBackoff = time.Millisecond
	cfg.MaxBackoff = 5 * time.Millisecond
	g := NewGovernor("test-venue", cfg, zerolog.Nop())

	calls := 0
	err := g.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return errors.New("429 too many requests")
	})
	require.Error(t, err)
	var rle *RateLimitError
	require.ErrorAs(t, err, &rle)
	assert.Equal(t, cfg.MaxAttempts+1, calls, "initial call plus MaxAttempts retries")
}

func TestGovernor_SucceedsWithoutRetryOnFirstTry(t *testing.T) {
	g := testGovernor()
	calls := 0
	err := g.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}
