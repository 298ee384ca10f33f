package event

import "marketmirror/internal/model"

// CollateralBalanceUpdate replaces the trader's balances per kind and asset.
type CollateralBalanceUpdate struct {
	AvailableBalances      map[string]int64
	PositionLockedBalances map[string]int64
}

func (e *CollateralBalanceUpdate) Kind() Type { return TypeCollateralBalanceUpdate }

// OpenPositionsUpdate carries the exchange's view of the trader's open
// positions, to be reconciled against the mirrored ones.
type OpenPositionsUpdate struct {
	Positions []model.PositionUpdate
}

func (e *OpenPositionsUpdate) Kind() Type { return TypeOpenPositionsUpdate }

// ContractAdded announces a new listing. Only the id and derivative type
// are trusted from the feed; the full record is re-fetched from the catalog
// accessor.
type ContractAdded struct {
	ContractID     int64
	DerivativeType model.DerivativeType
}

func (e *ContractAdded) Kind() Type { return TypeContractAdded }

// ContractRemoved announces a delisting; the embedded contract moves to the
// expired partition.
type ContractRemoved struct {
	Contract model.Contract
}

func (e *ContractRemoved) Kind() Type { return TypeContractRemoved }
