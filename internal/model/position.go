package model

import "fmt"

// PositionType is the exchange's long/short classification of a position.
type PositionType int32

const (
	PositionTypeUnknown PositionType = iota
	PositionTypeLong
	PositionTypeShort
)

func (pt PositionType) String() string {
	switch pt {
	case PositionTypeLong:
		return "long"
	case PositionTypeShort:
		return "short"
	default:
		return "unknown"
	}
}

// ParsePositionType maps the wire string onto the enum.
func ParsePositionType(s string) (PositionType, error) {
	switch s {
	case "long":
		return PositionTypeLong, nil
	case "short":
		return PositionTypeShort, nil
	default:
		return PositionTypeUnknown, fmt.Errorf("unknown position type %q", s)
	}
}

// Position is the trader's holding in one contract. Basis is the realized
// cost in minor currency units and stays nil until the fill-replay path has
// computed it; a nil basis means the figure cannot be trusted yet.
type Position struct {
	ID            string // exchange-assigned position id, required for fill listing
	ContractID    int64
	Size          int64 // signed
	ExercisedSize int64
	Type          PositionType
	Basis         *int64
	MPID          string
}

// SizeMatchesType reports whether the signed size is consistent with the
// long/short classification.
func (p *Position) SizeMatchesType() bool {
	switch p.Type {
	case PositionTypeShort:
		return p.Size <= 0
	case PositionTypeLong:
		return p.Size >= 0
	default:
		return false
	}
}

// PositionUpdate is one entry of an open-positions feed event: a partial
// view carrying only the reconcilable fields.
type PositionUpdate struct {
	ContractID    int64
	Size          int64
	ExercisedSize int64
	MPID          string
}

// CostToClose is the bounded cost of fully closing a position at the best
// available price. Optional figures are nil when the inputs to derive them
// (a side of the book, a trusted basis) are missing.
type CostToClose struct {
	ContractID int64  `json:"contract_id"`
	Size       int64  `json:"size"`
	Bid        *int64 `json:"bid,omitempty"`
	Ask        *int64 `json:"ask,omitempty"`
	Fee        *int64 `json:"fee,omitempty"`
	Cost       *int64 `json:"cost,omitempty"`  // whole currency units
	Basis      *int64 `json:"basis,omitempty"` // whole currency units
	Net        *int64 `json:"net,omitempty"`
	Low        *int64 `json:"low,omitempty"`
	High       *int64 `json:"high,omitempty"`
}
