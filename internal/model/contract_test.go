package model_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketmirror/internal/model"
)

var expiry = time.Date(2023, 7, 25, 21, 0, 0, 0, time.UTC)

// ============================================================================
// Test: ContractLabel
// ============================================================================

func TestContractLabel_Future(t *testing.T) {
	label := model.ContractLabel("ETH", expiry, model.DerivativeFuture, false, 0)
	assert.Equal(t, "ETH-25JUL2023-Future", label)
}

func TestContractLabel_Options(t *testing.T) {
	call := model.ContractLabel("ETH", expiry, model.DerivativeOption, true, 2000)
	assert.Equal(t, "ETH-25JUL2023-2000-Call", call)

	put := model.ContractLabel("ETH", expiry, model.DerivativeOption, false, 2000)
	assert.Equal(t, "ETH-25JUL2023-2000-Put", put)
}

func TestContractLabel_NextDaySwap(t *testing.T) {
	label := model.ContractLabel("ETH", expiry, model.DerivativeDayAheadSwap, false, 0)
	assert.Equal(t, "ETH-25JUL2023-NextDay", label)
}

func TestContractLabel_CBTCBecomesMini(t *testing.T) {
	// CBTC strikes are quoted in hundredths of the displayed strike.
	label := model.ContractLabel("CBTC", expiry, model.DerivativeOption, true, 3_000_000)
	assert.Equal(t, "BTC-Mini-25JUL2023-30000-Call", label)

	future := model.ContractLabel("CBTC", expiry, model.DerivativeFuture, false, 0)
	assert.Equal(t, "BTC-Mini-25JUL2023-Future", future)
}

func TestContractLabel_UnknownType(t *testing.T) {
	assert.Equal(t, "", model.ContractLabel("ETH", expiry, model.DerivativeUnknown, false, 0))
}

// ============================================================================
// Test: DerivativeType
// ============================================================================

func TestParseDerivativeType(t *testing.T) {
	dt, err := model.ParseDerivativeType("future_contract")
	require.NoError(t, err)
	assert.Equal(t, model.DerivativeFuture, dt)

	dt, err = model.ParseDerivativeType("options_contract")
	require.NoError(t, err)
	assert.Equal(t, model.DerivativeOption, dt)

	dt, err = model.ParseDerivativeType("day_ahead_swap")
	require.NoError(t, err)
	assert.Equal(t, model.DerivativeDayAheadSwap, dt)

	_, err = model.ParseDerivativeType("perpetual")
	assert.Error(t, err)
}

// ============================================================================
// Test: SameOptionSeries
// ============================================================================

func TestSameOptionSeries(t *testing.T) {
	base := model.Contract{
		UnderlyingAsset: "ETH",
		DerivativeType:  model.DerivativeOption,
		IsCall:          true,
		StrikePrice:     2000,
		DateExpires:     expiry,
	}

	sameSeries := base
	sameSeries.StrikePrice = 2500
	assert.True(t, base.SameOptionSeries(&sameSeries))

	put := base
	put.IsCall = false
	assert.False(t, base.SameOptionSeries(&put))

	otherExpiry := base
	otherExpiry.DateExpires = expiry.AddDate(0, 1, 0)
	assert.False(t, base.SameOptionSeries(&otherExpiry))

	future := base
	future.DerivativeType = model.DerivativeFuture
	assert.False(t, base.SameOptionSeries(&future))
}

// ============================================================================
// Test: Order status codes
// ============================================================================

func TestIsErrorStatus(t *testing.T) {
	assert.False(t, model.IsErrorStatus(model.StatusResting))
	assert.False(t, model.IsErrorStatus(model.StatusCross))
	assert.False(t, model.IsErrorStatus(model.StatusAcknowledged))
	assert.True(t, model.IsErrorStatus(model.StatusExpired))
	assert.True(t, model.IsErrorStatus(600))
	assert.True(t, model.IsErrorStatus(631))
}
