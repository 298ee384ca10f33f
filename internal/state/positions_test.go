package state_test

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketmirror/internal/model"
	"marketmirror/internal/state"
	"marketmirror/internal/testutil"
)

func newPositions() *state.Positions {
	return state.NewPositions(zerolog.Nop())
}

func wantAll(int64) bool { return true }

// ============================================================================
// Test: ApplyUpdate
// ============================================================================

func TestApplyUpdate_NewPosition(t *testing.T) {
	positions := newPositions()
	isNew, sizeChanged := positions.ApplyUpdate(model.PositionUpdate{
		ContractID: 1, Size: 3,
	})
	assert.True(t, isNew)
	assert.False(t, sizeChanged)

	pos, ok := positions.Get(1)
	require.True(t, ok)
	assert.Equal(t, int64(3), pos.Size)
}

func TestApplyUpdate_FlatUnknownIgnored(t *testing.T) {
	positions := newPositions()
	isNew, sizeChanged := positions.ApplyUpdate(model.PositionUpdate{ContractID: 1})
	assert.False(t, isNew)
	assert.False(t, sizeChanged)
	_, ok := positions.Get(1)
	assert.False(t, ok)
}

func TestApplyUpdate_Resize(t *testing.T) {
	positions := newPositions()
	positions.Set(model.Position{ID: "p1", ContractID: 1, Size: 3})

	isNew, sizeChanged := positions.ApplyUpdate(model.PositionUpdate{
		ContractID: 1, Size: 5,
	})
	assert.False(t, isNew)
	assert.True(t, sizeChanged)

	// The exchange position id survives the in-place update.
	pos, _ := positions.Get(1)
	assert.Equal(t, "p1", pos.ID)
	assert.Equal(t, int64(5), pos.Size)
}

func TestApplyUpdate_SameSizeUnchanged(t *testing.T) {
	positions := newPositions()
	positions.Set(model.Position{ContractID: 1, Size: 3})

	isNew, sizeChanged := positions.ApplyUpdate(model.PositionUpdate{
		ContractID: 1, Size: 3,
	})
	assert.False(t, isNew)
	assert.False(t, sizeChanged)
}

// ============================================================================
// Test: ReplaceAll basis carry-over
// ============================================================================

func TestReplaceAll_CarriesBasisWhenUnchanged(t *testing.T) {
	positions := newPositions()
	basis := int64(12_345)
	positions.Set(model.Position{ID: "p1", ContractID: 1, Size: 3, Basis: &basis})

	flagged := positions.ReplaceAll([]model.Position{
		{ID: "p1", ContractID: 1, Size: 3},
	}, wantAll)
	assert.Empty(t, flagged)

	pos, _ := positions.Get(1)
	require.NotNil(t, pos.Basis)
	assert.Equal(t, int64(12_345), *pos.Basis)
}

func TestReplaceAll_ResizedPositionLosesBasis(t *testing.T) {
	positions := newPositions()
	basis := int64(12_345)
	positions.Set(model.Position{ID: "p1", ContractID: 1, Size: 3, Basis: &basis})

	flagged := positions.ReplaceAll([]model.Position{
		{ID: "p1", ContractID: 1, Size: 5},
	}, wantAll)
	assert.Equal(t, []int64{1}, flagged)

	pos, _ := positions.Get(1)
	assert.Nil(t, pos.Basis)
	assert.Equal(t, []int64{1}, positions.PendingBasis())
}

func TestReplaceAll_RespectsWantBasisFilter(t *testing.T) {
	positions := newPositions()
	flagged := positions.ReplaceAll([]model.Position{
		{ID: "p1", ContractID: 1, Size: 3},
		{ID: "p2", ContractID: 2, Size: 1},
	}, func(contractID int64) bool { return contractID == 2 })

	assert.Equal(t, []int64{2}, flagged)
	assert.Equal(t, []int64{2}, positions.PendingBasis())
}

func TestSetBasis_ClearsPendingFlag(t *testing.T) {
	positions := newPositions()
	positions.Set(model.Position{ContractID: 1, Size: 3})
	positions.MarkPendingBasis(1)

	positions.SetBasis(1, 999)
	pos, _ := positions.Get(1)
	require.NotNil(t, pos.Basis)
	assert.Equal(t, int64(999), *pos.Basis)
	assert.Empty(t, positions.PendingBasis())
}

// ============================================================================
// Test: FoldFills
// ============================================================================

func TestFoldFills(t *testing.T) {
	fills := []model.Fill{
		testutil.Fill(1, "bid", 2, 10, 1, 100),
		testutil.Fill(1, "ask", 1, 5, 0, 60),
	}
	size, basis, err := state.FoldFills(1, fills)
	require.NoError(t, err)
	assert.Equal(t, int64(1), size)
	// (10 - 1 + 100) + (5 - 0 - 60)
	assert.Equal(t, int64(54), basis)
}

func TestFoldFills_ShortPosition(t *testing.T) {
	fills := []model.Fill{
		testutil.Fill(1, "ask", 3, 9, 0, 300),
	}
	size, basis, err := state.FoldFills(1, fills)
	require.NoError(t, err)
	assert.Equal(t, int64(-3), size)
	assert.Equal(t, int64(-291), basis)
}

func TestFoldFills_WrongContractRejected(t *testing.T) {
	_, _, err := state.FoldFills(1, []model.Fill{testutil.Fill(2, "bid", 1, 0, 0, 0)})
	assert.Error(t, err)
}

func TestFoldFills_UnknownSideRejected(t *testing.T) {
	_, _, err := state.FoldFills(1, []model.Fill{testutil.Fill(1, "both", 1, 0, 0, 0)})
	assert.Error(t, err)
}

func TestFoldFills_EmptyHistory(t *testing.T) {
	size, basis, err := state.FoldFills(1, nil)
	require.NoError(t, err)
	assert.Zero(t, size)
	assert.Zero(t, basis)
}
