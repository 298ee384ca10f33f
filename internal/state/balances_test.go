package state_test

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketmirror/internal/model"
	"marketmirror/internal/state"
)

func newBalances() *state.Balances {
	return state.NewBalances(zerolog.Nop())
}

func amount(v int64) *int64 { return &v }

// ============================================================================
// Test: transaction replay
// ============================================================================

func TestApplyTransaction_DebitAndCredit(t *testing.T) {
	balances := newBalances()
	balances.SetExact(model.BalanceAvailable, "USD", 1_000)

	err := balances.ApplyTransaction(model.Transaction{
		Asset:              "USD",
		Amount:             300,
		State:              "executed",
		DebitAccountField:  string(model.BalanceAvailable),
		DebitPreBalance:    amount(1_000),
		DebitPostBalance:   amount(700),
		CreditAccountField: string(model.BalancePositionLocked),
		CreditPreBalance:   amount(0),
		CreditPostBalance:  amount(300),
	})
	require.NoError(t, err)

	assert.Equal(t, int64(700), balances.Get(model.BalanceAvailable, "USD"))
	assert.Equal(t, int64(300), balances.Get(model.BalancePositionLocked, "USD"))
}

func TestApplyTransaction_DebitMismatchRejected(t *testing.T) {
	balances := newBalances()
	err := balances.ApplyTransaction(model.Transaction{
		Asset:             "USD",
		Amount:            300,
		State:             "executed",
		DebitAccountField: string(model.BalanceAvailable),
		DebitPreBalance:   amount(1_000),
		DebitPostBalance:  amount(600), // delta -400, not -300
	})
	assert.Error(t, err)
}

func TestApplyTransaction_CreditMismatchRejected(t *testing.T) {
	balances := newBalances()
	err := balances.ApplyTransaction(model.Transaction{
		Asset:              "USD",
		Amount:             300,
		State:              "executed",
		CreditAccountField: string(model.BalanceAvailable),
		CreditPreBalance:   amount(0),
		CreditPostBalance:  amount(200),
	})
	assert.Error(t, err)
}

func TestApplyTransaction_NonExecutedSkipped(t *testing.T) {
	balances := newBalances()
	err := balances.ApplyTransaction(model.Transaction{
		Asset:             "USD",
		Amount:            300,
		State:             "pending",
		DebitAccountField: string(model.BalanceAvailable),
		DebitPreBalance:   amount(1_000),
		DebitPostBalance:  amount(700),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(0), balances.Get(model.BalanceAvailable, "USD"))
}

func TestApplyTransaction_OneSidedExternalTransfer(t *testing.T) {
	// A deposit only touches the credit side of our account.
	balances := newBalances()
	err := balances.ApplyTransaction(model.Transaction{
		Asset:              "CBTC",
		Amount:             5_000,
		State:              "executed",
		CreditAccountField: string(model.BalanceAvailable),
		CreditPreBalance:   amount(0),
		CreditPostBalance:  amount(5_000),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(5_000), balances.Get(model.BalanceAvailable, "CBTC"))
}

// ============================================================================
// Test: snapshots
// ============================================================================

func TestSnapshotAndAssets(t *testing.T) {
	balances := newBalances()
	balances.SetExact(model.BalanceAvailable, "USD", 700)
	balances.SetExact(model.BalancePositionLocked, "CBTC", 42)

	snap := balances.Snapshot()
	assert.Equal(t, int64(700), snap[string(model.BalanceAvailable)]["USD"])
	assert.Equal(t, int64(42), snap[string(model.BalancePositionLocked)]["CBTC"])

	assert.Equal(t, []string{"CBTC", "USD"}, balances.Assets())
}
