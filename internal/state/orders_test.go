package state_test

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketmirror/internal/state"
	"marketmirror/internal/testutil"
)

func newOrders() *state.Orders {
	return state.NewOrders(zerolog.Nop())
}

// ============================================================================
// Test: Replace clock/tick guard
// ============================================================================

func TestReplace_InsertsUnknownOrder(t *testing.T) {
	orders := newOrders()
	result := orders.Replace(testutil.Order(1, "m1", 5, 5), "")
	assert.Equal(t, state.OrderInserted, result)
	assert.Equal(t, 1, orders.Len())
}

func TestReplace_NewerClockAndTicksWins(t *testing.T) {
	orders := newOrders()
	orders.Insert(testutil.Order(1, "m1", 5, 5, testutil.Bid(100_000)))

	result := orders.Replace(testutil.Order(1, "m1", 6, 6, testutil.Bid(101_000)), "")
	assert.Equal(t, state.OrderReplaced, result)

	stored, ok := orders.Get(1, "m1")
	require.True(t, ok)
	assert.Equal(t, int64(101_000), stored.Price)
}

func TestReplace_SameClockHigherTicksWins(t *testing.T) {
	orders := newOrders()
	orders.Insert(testutil.Order(1, "m1", 5, 5))

	result := orders.Replace(testutil.Order(1, "m1", 5, 6), "")
	assert.Equal(t, state.OrderReplaced, result)
}

func TestReplace_EqualTicksIsDuplicate(t *testing.T) {
	orders := newOrders()
	orders.Insert(testutil.Order(1, "m1", 5, 5, testutil.Bid(100_000)))

	// Same revision, even with a newer clock, applies nothing.
	assert.Equal(t, state.OrderDuplicate, orders.Replace(testutil.Order(1, "m1", 5, 5), ""))
	assert.Equal(t, state.OrderDuplicate, orders.Replace(testutil.Order(1, "m1", 9, 5), ""))

	stored, ok := orders.Get(1, "m1")
	require.True(t, ok)
	assert.Equal(t, int64(100_000), stored.Price)
}

func TestReplace_OlderUpdateIsStale(t *testing.T) {
	orders := newOrders()
	orders.Insert(testutil.Order(1, "m1", 5, 5))

	assert.Equal(t, state.OrderStale, orders.Replace(testutil.Order(1, "m1", 4, 6), ""))
	assert.Equal(t, state.OrderStale, orders.Replace(testutil.Order(1, "m1", 5, 4), ""))
}

func TestReplace_ZeroSizeRemoves(t *testing.T) {
	orders := newOrders()
	orders.Insert(testutil.Order(1, "m1", 5, 5))

	result := orders.Replace(testutil.Order(1, "m1", 6, 6, testutil.Size(0)), "")
	assert.Equal(t, state.OrderRemoved, result)
	_, ok := orders.Get(1, "m1")
	assert.False(t, ok)
}

func TestReplace_OwnOrderNotDisplacedByUnownedUpdate(t *testing.T) {
	orders := newOrders()
	orders.Insert(testutil.Order(1, "m1", 5, 5, testutil.Own("trader-1", "acct-1")))

	// The anonymized copy of our own order must not strip the owner marker.
	result := orders.Replace(testutil.Order(1, "m1", 6, 6), "trader-1")
	assert.Equal(t, state.OrderOwnershipMismatch, result)

	stored, ok := orders.Get(1, "m1")
	require.True(t, ok)
	assert.Equal(t, "trader-1", stored.MPID)
}

func TestReplace_OwnUpdateReplacesOwnOrder(t *testing.T) {
	orders := newOrders()
	orders.Insert(testutil.Order(1, "m1", 5, 5, testutil.Own("trader-1", "acct-1")))

	result := orders.Replace(
		testutil.Order(1, "m1", 6, 6, testutil.Own("trader-1", "acct-1")), "trader-1")
	assert.Equal(t, state.OrderReplaced, result)
}

// ============================================================================
// Test: Remove and counters
// ============================================================================

func TestRemove(t *testing.T) {
	orders := newOrders()
	orders.Insert(testutil.Order(1, "m1", 5, 5))
	orders.Insert(testutil.Order(1, "m2", 5, 5))
	orders.Insert(testutil.Order(2, "m3", 5, 5))

	assert.Equal(t, 2, orders.CountForContract(1))
	assert.Equal(t, 3, orders.Len())

	assert.True(t, orders.Remove(1, "m1"))
	assert.False(t, orders.Remove(1, "m1"))
	assert.False(t, orders.Remove(9, "nope"))
	assert.Equal(t, 2, orders.Len())
}
