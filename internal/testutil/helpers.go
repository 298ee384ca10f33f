// Package testutil holds shared fixtures for tests: contract and order
// builders with sensible defaults, and a controllable clock.
package testutil

import (
	"time"

	"marketmirror/internal/model"
)

// Now is the fixed reference instant fixtures are built around.
var Now = time.Date(2023, 6, 15, 12, 0, 0, 0, time.UTC)

// Clock returns a time function pinned to a controllable instant.
func Clock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

// ContractOpt mutates a fixture contract.
type ContractOpt func(*model.Contract)

// Contract builds a live future expiring 40 days after Now.
func Contract(id int64, opts ...ContractOpt) model.Contract {
	c := model.Contract{
		ID:              id,
		UnderlyingAsset: "CBTC",
		DerivativeType:  model.DerivativeFuture,
		DateLive:        Now.AddDate(0, 0, -7),
		DateExpires:     Now.AddDate(0, 0, 40),
		Active:          true,
		Multiplier:      1,
	}
	for _, opt := range opts {
		opt(&c)
	}
	if c.Label == "" {
		c.Label = model.ContractLabel(c.UnderlyingAsset, c.DateExpires,
			c.DerivativeType, c.IsCall, c.StrikePrice)
	}
	return c
}

// Call makes the contract a call option at the given strike.
func Call(strike int64) ContractOpt {
	return func(c *model.Contract) {
		c.DerivativeType = model.DerivativeOption
		c.IsCall = true
		c.StrikePrice = strike
	}
}

// Put makes the contract a put option at the given strike.
func Put(strike int64) ContractOpt {
	return func(c *model.Contract) {
		c.DerivativeType = model.DerivativeOption
		c.IsCall = false
		c.StrikePrice = strike
	}
}

// NextDaySwap makes the contract a day-ahead swap expiring tomorrow.
func NextDaySwap() ContractOpt {
	return func(c *model.Contract) {
		c.DerivativeType = model.DerivativeDayAheadSwap
		c.IsNextDay = true
		c.DateExpires = Now.AddDate(0, 0, 1)
	}
}

// ExpiresIn overrides the expiration offset from Now.
func ExpiresIn(d time.Duration) ContractOpt {
	return func(c *model.Contract) { c.DateExpires = Now.Add(d) }
}

// OrderOpt mutates a fixture order.
type OrderOpt func(*model.Order)

// Order builds a resting bid with the given identity and clock.
func Order(contractID int64, mid string, clock, ticks int64, opts ...OrderOpt) model.Order {
	o := model.Order{
		MID:        mid,
		ContractID: contractID,
		Size:       5,
		Price:      100_000,
		Clock:      clock,
		Ticks:      ticks,
		StatusType: model.StatusResting,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Ask flips the order to the ask side at the given price.
func Ask(price int64) OrderOpt {
	return func(o *model.Order) {
		o.IsAsk = true
		o.Price = price
	}
}

// Bid sets the bid price.
func Bid(price int64) OrderOpt {
	return func(o *model.Order) {
		o.IsAsk = false
		o.Price = price
	}
}

// Size sets the remaining size.
func Size(n int64) OrderOpt {
	return func(o *model.Order) { o.Size = n }
}

// Own stamps the order with the trader identity.
func Own(mpid, cid string) OrderOpt {
	return func(o *model.Order) {
		o.MPID = mpid
		o.CID = cid
	}
}

// Status sets the status code.
func Status(status int) OrderOpt {
	return func(o *model.Order) { o.StatusType = status }
}

// Fill builds one execution for basis-replay tests.
func Fill(contractID int64, side string, size, fee, rebate, premium int64) model.Fill {
	return model.Fill{
		ContractID: contractID,
		Side:       side,
		FilledSize: size,
		Fee:        fee,
		Rebate:     rebate,
		Premium:    premium,
	}
}
