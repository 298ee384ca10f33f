package core

import (
	"context"
	"fmt"

	"marketmirror/internal/model"
	"marketmirror/internal/state"
)

// retrieveContractLocked fetches one contract from the catalog accessor and
// registers it. The REST call runs under the engine lock: single-contract
// lookups are rare and fast, and serializing them keeps the handlers that
// need them simple.
func (e *Engine) retrieveContractLocked(ctx context.Context, contractID int64) (*model.Contract, error) {
	contract, err := e.api.GetContract(ctx, contractID)
	if err != nil {
		return nil, fmt.Errorf("retrieving contract %d: %w", contractID, err)
	}
	if contract.ID != contractID {
		return nil, fmt.Errorf("contract lookup for %d returned %d", contractID, contract.ID)
	}
	e.catalog.Add(contract, e.now())
	stored, _ := e.catalog.Contract(contractID)
	return stored, nil
}

// ensureContractLocked resolves a contract id, fetching it when the catalog
// has not seen it yet.
func (e *Engine) ensureContractLocked(ctx context.Context, contractID int64) (*model.Contract, error) {
	if contract, ok := e.catalog.Contract(contractID); ok {
		return contract, nil
	}
	e.log.Warn().Int64("contract_id", contractID).Msg("unknown contract, retrieving it")
	return e.retrieveContractLocked(ctx, contractID)
}

// nextDaySwapLocked resolves the active next-day swap for an asset. When
// the cached one has expired or none is known, the full contract listing is
// refreshed to discover the latest one.
func (e *Engine) nextDaySwapLocked(ctx context.Context, asset string) (*model.Contract, error) {
	if contract, ok := e.catalog.NextDaySwap(asset, e.now()); ok {
		return contract, nil
	}

	e.log.Info().Str("asset", asset).Msg("discovering the latest next-day swap")
	contracts, err := e.api.ListContracts(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing contracts for next-day swap: %w", err)
	}
	now := e.now()
	for _, contract := range contracts {
		e.catalog.Add(contract, now)
	}
	contract, ok := e.catalog.NextDaySwap(asset, now)
	if !ok {
		return nil, fmt.Errorf("no live next-day swap for %s", asset)
	}
	return contract, nil
}

// QualifiesAsCoveredCall reports whether a call option is far enough out of
// the money, and far enough from expiry, to count as a qualified covered
// call. Fair value is taken from the underlying's next-day swap top.
func (e *Engine) QualifiesAsCoveredCall(ctx context.Context, contractID int64) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.qualifiesAsCoveredCallLocked(ctx, contractID)
}

func (e *Engine) qualifiesAsCoveredCallLocked(ctx context.Context, contractID int64) (bool, error) {
	contract, err := e.ensureContractLocked(ctx, contractID)
	if err != nil {
		return false, err
	}
	if !contract.IsOption() || !contract.IsCall {
		return false, nil
	}
	days := contract.DateExpires.Sub(e.now()).Hours() / 24
	if days <= 30 {
		return false, nil
	}

	swap, err := e.nextDaySwapLocked(ctx, contract.UnderlyingAsset)
	if err != nil {
		return false, err
	}
	top := e.topOfBookLocked(ctx, swap.ID, false)
	if top == nil {
		return false, nil
	}
	fairValue, ok := top.Mid()
	if !ok {
		return false, nil
	}

	strikes := e.catalog.SameSeriesStrikes(contract)
	floor := state.QualifyingStrikeFloor(strikes, fairValue, days)
	return contract.StrikePrice >= floor, nil
}
