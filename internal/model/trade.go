package model

// Trade is the most recent observed trade on a contract, derived either
// from a cross action report or from the windowed trade listing.
type Trade struct {
	ContractID    int64
	ContractLabel string
	OrderType     string
	FilledPrice   int64
	FilledSize    int64
	Side          string // "bid" or "ask"
	Timestamp     int64  // ns since epoch
	MPID          string // set when the trade involved the local trader
}

// Fill is one execution from a position's complete fill history, used to
// replay basis. Premium is the traded notional; fee and rebate are the
// exchange's charges and credits, all in minor currency units.
type Fill struct {
	ContractID int64
	Side       string // "bid" or "ask"
	FilledSize int64
	Fee        int64
	Rebate     int64
	Premium    int64
}
