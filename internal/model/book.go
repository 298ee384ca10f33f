package model

// BookEntry is one price level entry in a contract's book, keyed by the
// market-assigned order id. An incoming entry older than the stored clock
// is dropped by the book engine.
type BookEntry struct {
	MID   string
	IsAsk bool
	Price int64 // minor price units
	Size  int64
	Clock int64
}

// BookTop is the derived best bid / best ask for a contract. A zero bid or
// ask means "no liquidity on that side"; the exchange reports absent sides
// as zero and the accessors below fold that into the (value, ok) form.
type BookTop struct {
	ContractID int64
	Bid        int64
	Ask        int64
	Clock      int64
}

// BidPrice returns the best bid, reporting absence.
func (t *BookTop) BidPrice() (int64, bool) {
	if t == nil || t.Bid == 0 {
		return 0, false
	}
	return t.Bid, true
}

// AskPrice returns the best ask, reporting absence.
func (t *BookTop) AskPrice() (int64, bool) {
	if t == nil || t.Ask == 0 {
		return 0, false
	}
	return t.Ask, true
}

// Mid returns the midpoint of bid and ask, falling back to whichever side
// exists when the other is absent.
func (t *BookTop) Mid() (int64, bool) {
	bid, hasBid := t.BidPrice()
	ask, hasAsk := t.AskPrice()
	switch {
	case hasBid && hasAsk:
		return (bid + ask) / 2, true
	case hasBid:
		return bid, true
	case hasAsk:
		return ask, true
	default:
		return 0, false
	}
}

// BookSnapshot is a full book-state snapshot for one contract as returned
// by the REST accessor.
type BookSnapshot struct {
	ContractID int64
	Entries    []BookEntry
}
