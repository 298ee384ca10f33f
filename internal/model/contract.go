package model

import (
	"fmt"
	"strings"
	"time"
)

// DerivativeType discriminates the contract families the exchange lists.
type DerivativeType int32

const (
	DerivativeUnknown DerivativeType = iota
	DerivativeFuture
	DerivativeOption
	DerivativeDayAheadSwap
)

func (dt DerivativeType) String() string {
	switch dt {
	case DerivativeFuture:
		return "future_contract"
	case DerivativeOption:
		return "options_contract"
	case DerivativeDayAheadSwap:
		return "day_ahead_swap"
	default:
		return "unknown"
	}
}

// ParseDerivativeType maps the wire string onto the enum.
func ParseDerivativeType(s string) (DerivativeType, error) {
	switch s {
	case "future_contract":
		return DerivativeFuture, nil
	case "options_contract":
		return DerivativeOption, nil
	case "day_ahead_swap":
		return DerivativeDayAheadSwap, nil
	default:
		return DerivativeUnknown, fmt.Errorf("unknown derivative type %q", s)
	}
}

// Contract is an immutable listing record. Only the expired/active
// classification changes after creation, and that lives in the catalog,
// not here.
type Contract struct {
	ID              int64
	Label           string
	UnderlyingAsset string
	DerivativeType  DerivativeType
	IsCall          bool
	StrikePrice     int64 // minor price units
	DateExpires     time.Time
	DateLive        time.Time
	IsNextDay       bool
	Active          bool
	Multiplier      int64
}

// IsOption reports whether the contract carries a strike ladder.
func (c *Contract) IsOption() bool {
	return c.DerivativeType == DerivativeOption
}

// SameOptionSeries reports whether two contracts differ at most by strike:
// same expiry, same asset, same derivative type, same call/put side.
func (c *Contract) SameOptionSeries(other *Contract) bool {
	return c.IsOption() && other.IsOption() &&
		c.IsCall == other.IsCall &&
		c.DateExpires.Equal(other.DateExpires) &&
		c.UnderlyingAsset == other.UnderlyingAsset
}

// ContractLabel derives the canonical display label from contract fields.
// The exchange supplies labels on the wire too; the catalog derives this one
// independently and warns on mismatch.
//
// CBTC contracts are labelled as BTC-Mini with strikes quoted at 1/100.
func ContractLabel(asset string, expires time.Time, dt DerivativeType, isCall bool, strike int64) string {
	exp := strings.ToUpper(expires.Format("02Jan2006"))

	multiplier := int64(1)
	if asset == "CBTC" {
		asset = "BTC-Mini"
		multiplier = 100
	}

	switch dt {
	case DerivativeFuture:
		return fmt.Sprintf("%s-%s-Future", asset, exp)
	case DerivativeOption:
		if isCall {
			return fmt.Sprintf("%s-%s-%d-Call", asset, exp, strike/multiplier)
		}
		return fmt.Sprintf("%s-%s-%d-Put", asset, exp, strike/multiplier)
	case DerivativeDayAheadSwap:
		return fmt.Sprintf("%s-%s-NextDay", asset, exp)
	default:
		return ""
	}
}
