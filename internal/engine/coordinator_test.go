package engine

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func d(f float64) decimal.Decimal { return decimal.NewFromFloat(f) }

func TestFloorToTick(t *testing.T) {
	assert.True(t, floorToTick(d(1.2345), d(0.01)).Equal(d(1.23)))
	assert.True(t, floorToTick(d(1.999), d(0.5)).Equal(d(1.5)))
	assert.True(t, floorToTick(d(5), d(0)).Equal(d(5)), "zero tick is a no-op")
}

// The computed size is floored to the coarser of the two venues' amount
// ticks.
func TestComputeSize_FloorsToCoarserTick(t *testing.T) {
	notional := d(1000)
	size, avgMid, err := computeSize(notional, d(100), d(102), d(0.01), d(0.1))
	assert.NoError(t, err)
	assert.True(t, avgMid.Equal(d(101)), "got %s", avgMid)
	// raw = 1000/101 = 9.9009..., floored to 0.1 tick -> 9.9
	assert.True(t, size.Equal(d(9.9)), "got %s", size)
}

func TestComputeSize_BelowMinimumRejected(t *testing.T) {
	_, _, err := computeSize(d(1), d(100), d(100), d(1), d(1))
	assert.Error(t, err)
	var tooSmall *SizeTooSmallError
	assert.ErrorAs(t, err, &tooSmall)
}

func TestComputeSize_ZeroMidRejected(t *testing.T) {
	_, _, err := computeSize(d(1000), d(0), d(0), d(0.01), d(0.01))
	assert.Error(t, err)
}

func TestComputeSize_DesyncReflooredToCoarserGrid(t *testing.T) {
	// tickA=0.001, tickL=1, raw size 10.5: per-venue floors would be 10.5 and
	// 10, a desync of 0.5 that exceeds the finer tick, so the result must sit
	// on the coarser (tickL) grid.
	size, _, err := computeSize(d(1050), d(100), d(100), d(0.001), d(1))
	assert.NoError(t, err)
	assert.True(t, size.Mod(d(1)).IsZero(), "size %s is not a multiple of the coarser tick", size)
}
