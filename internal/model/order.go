package model

// Exchange order status codes carried on action reports.
const (
	StatusResting      = 200 // resting order inserted or updated
	StatusCross        = 201 // a cross (trade) occurred
	StatusNotFilled    = 202 // market order went unfilled
	StatusCancelled    = 203
	StatusAcknowledged = 300
	StatusExpired      = 610
	// Any other status >= 600 is an invalid or rejected order.
	statusErrorFloor = 600
)

// IsErrorStatus reports whether a status code signals an invalid or
// rejected order (the expired code included).
func IsErrorStatus(status int) bool {
	return status >= statusErrorFloor
}

// Order is a resting order as last seen on the feed or the REST order list.
// Identity is (ContractID, MID). Size is the signed remaining size.
//
// Clock is the exchange-assigned logical sequence number; Ticks is the
// per-order monotonic revision counter that disambiguates revisions sharing
// a clock. An update replaces a stored order only when its clock is >= the
// stored clock AND its ticks are > the stored ticks.
type Order struct {
	MID        string
	ContractID int64
	Size       int64 // signed remaining size
	Price      int64 // minor price units
	IsAsk      bool
	Clock      int64
	Ticks      int64
	StatusType int

	// Owner markers, present only on the local trader's own orders.
	MPID string
	CID  string

	// Fill fields, meaningful on StatusCross reports.
	FilledSize  int64
	FilledPrice int64

	OrderType   string
	UpdatedTime int64 // ns since epoch
}

// IsOwn reports whether the order carries the given trader id.
func (o *Order) IsOwn(mpid string) bool {
	return mpid != "" && o.MPID == mpid
}

// BookEntry returns the book-level view of the order.
func (o *Order) BookEntry() BookEntry {
	return BookEntry{
		MID:   o.MID,
		IsAsk: o.IsAsk,
		Price: o.Price,
		Size:  o.Size,
		Clock: o.Clock,
	}
}
