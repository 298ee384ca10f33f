package event

import "marketmirror/internal/model"

// BookTop is a top-of-book push for one contract. A zero bid or ask means
// that side of the book is empty.
type BookTop struct {
	ContractID int64
	Clock      int64
	Bid        int64
	Ask        int64
}

func (e *BookTop) Kind() Type { return TypeBookTop }

// Top returns the event as a storable book top.
func (e *BookTop) Top() model.BookTop {
	return model.BookTop{
		ContractID: e.ContractID,
		Bid:        e.Bid,
		Ask:        e.Ask,
		Clock:      e.Clock,
	}
}

// ActionReport carries an order lifecycle transition. The order's
// StatusType field drives the order/trade state machine.
type ActionReport struct {
	Order model.Order
}

func (e *ActionReport) Kind() Type { return TypeActionReport }

// Heartbeat is the feed's liveness pulse. RunID identifies the server
// session: a changed RunID means the server restarted and all mirrored
// state is suspect. Ticks increase monotonically within a run.
type Heartbeat struct {
	Ticks     int64
	RunID     string
	Timestamp int64 // ns since epoch
}

func (e *Heartbeat) Kind() Type { return TypeHeartbeat }

// TradeBusted announces that a previously reported trade was cancelled by
// the exchange.
type TradeBusted struct {
	ContractID int64
	MID        string
}

func (e *TradeBusted) Kind() Type { return TypeTradeBusted }
