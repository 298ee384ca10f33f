package model_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"marketmirror/internal/model"
)

// ============================================================================
// Test: Fee
// ============================================================================

func TestFee_BelowCap(t *testing.T) {
	// 5000 minor units per contract is 10 in fee units, under the cap.
	assert.Equal(t, int64(10), model.Fee(5000, 1))
	assert.Equal(t, int64(30), model.Fee(5000, 3))
}

func TestFee_CappedPerContract(t *testing.T) {
	// 884000 / 500 = 1768, which caps at 15 per contract.
	assert.Equal(t, int64(15), model.Fee(884000, 1))
	assert.Equal(t, int64(45), model.Fee(884000, 3))
}

func TestFee_TinyPriceRoundsToZero(t *testing.T) {
	assert.Equal(t, int64(0), model.Fee(100, 1))
	assert.Equal(t, int64(0), model.Fee(499, 10))
}

func TestFee_NegativeSizeUsesMagnitude(t *testing.T) {
	assert.Equal(t, model.Fee(884000, 3), model.Fee(884000, -3))
}

// ============================================================================
// Test: FloorDiv
// ============================================================================

func TestFloorDiv(t *testing.T) {
	tests := []struct {
		a, b, want int64
	}{
		{7, 2, 3},
		{6, 2, 3},
		{-7, 2, -4},
		{-6, 2, -3},
		{7, -2, -4},
		{-7, -2, 3},
		{0, 5, 0},
		{-49985, 10000, -5},
		{1767970, 10000, 176},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, model.FloorDiv(tt.a, tt.b),
			"FloorDiv(%d, %d)", tt.a, tt.b)
	}
}
