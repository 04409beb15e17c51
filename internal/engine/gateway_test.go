package engine

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsRateLimited_SubstringMatch(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"429 code", errors.New("http 429 from venue"), true},
		{"too many requests mixed case", errors.New("Too Many Requests"), true},
		{"rate limit phrase", errors.New("rate limit exceeded"), true},
		{"ratelimit one word", errors.New("RATELIMIT hit"), true},
		{"unrelated error", errors.New("connection refused"), false},
		{"typed RateLimitError", &RateLimitError{Venue: "A", Err: errors.New("boom")}, true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, IsRateLimited(c.err))
		})
	}
}
