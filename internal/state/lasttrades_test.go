package state_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketmirror/internal/model"
	"marketmirror/internal/state"
)

// ============================================================================
// Test: last-trade history
// ============================================================================

func TestOffer_KeepsNewestByTimestamp(t *testing.T) {
	trades := state.NewLastTrades()

	assert.True(t, trades.Offer(model.Trade{ContractID: 1, FilledPrice: 100, Timestamp: 10}))
	assert.True(t, trades.Offer(model.Trade{ContractID: 1, FilledPrice: 110, Timestamp: 20}))
	assert.False(t, trades.Offer(model.Trade{ContractID: 1, FilledPrice: 90, Timestamp: 15}))
	// Ties lose too.
	assert.False(t, trades.Offer(model.Trade{ContractID: 1, FilledPrice: 95, Timestamp: 20}))

	last, ok := trades.Get(1)
	require.True(t, ok)
	assert.Equal(t, int64(110), last.FilledPrice)
	assert.Equal(t, int64(20), last.Timestamp)
}

func TestOffer_PerContract(t *testing.T) {
	trades := state.NewLastTrades()
	trades.Offer(model.Trade{ContractID: 1, Timestamp: 10})
	trades.Offer(model.Trade{ContractID: 2, Timestamp: 5})

	assert.Equal(t, 2, trades.Len())
	_, ok := trades.Get(3)
	assert.False(t, ok)
}
