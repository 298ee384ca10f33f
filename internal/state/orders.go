package state

import (
	"github.com/rs/zerolog"

	"marketmirror/internal/model"
)

// OrderApplyResult classifies the outcome of offering an order update.
type OrderApplyResult int32

const (
	OrderInserted OrderApplyResult = iota
	OrderReplaced
	OrderRemoved // replacement carried zero size
	OrderDuplicate
	OrderStale
	OrderOwnershipMismatch // stored order is the trader's own, update is not
)

// Orders owns every resting order in the market, keyed by contract id and
// market-assigned order id. Not safe for concurrent use; the engine
// serializes access.
type Orders struct {
	byContract map[int64]map[string]*model.Order
	log        zerolog.Logger
}

func NewOrders(log zerolog.Logger) *Orders {
	o := &Orders{log: log}
	o.Clear()
	return o
}

func (o *Orders) Clear() {
	o.byContract = make(map[int64]map[string]*model.Order)
}

// Get returns the tracked order for (contract, mid).
func (o *Orders) Get(contractID int64, mid string) (*model.Order, bool) {
	order, ok := o.byContract[contractID][mid]
	return order, ok
}

// Insert stores a first-sighted order unconditionally.
func (o *Orders) Insert(order model.Order) {
	contractOrders, ok := o.byContract[order.ContractID]
	if !ok {
		contractOrders = make(map[string]*model.Order)
		o.byContract[order.ContractID] = contractOrders
	}
	stored := order
	contractOrders[order.MID] = &stored
}

// Replace offers an update for an already tracked order. The stored order
// is replaced only when the incoming clock is >= the stored clock AND the
// incoming tick counter is strictly greater; anything else is a duplicate
// or an out-of-order straggler and is dropped. A replacement with zero
// remaining size removes the order.
//
// An update stripped of the owner marker never displaces the trader's own
// order: losing track of own orders is worse than a momentarily stale book.
func (o *Orders) Replace(order model.Order, ownMPID string) OrderApplyResult {
	existing, ok := o.Get(order.ContractID, order.MID)
	if !ok {
		o.Insert(order)
		return OrderInserted
	}

	if existing.Clock > order.Clock || existing.Ticks >= order.Ticks {
		if existing.Ticks == order.Ticks {
			return OrderDuplicate
		}
		o.log.Warn().Int64("contract_id", order.ContractID).Str("mid", order.MID).
			Int64("stored_clock", existing.Clock).Int64("update_clock", order.Clock).
			Int64("stored_ticks", existing.Ticks).Int64("update_ticks", order.Ticks).
			Msg("stored order is newer than update; dropping")
		return OrderStale
	}

	if existing.IsOwn(ownMPID) && !order.IsOwn(ownMPID) {
		o.log.Warn().Int64("contract_id", order.ContractID).Str("mid", order.MID).
			Msg("own order would be replaced by unowned update; dropping")
		return OrderOwnershipMismatch
	}

	if order.Size == 0 {
		delete(o.byContract[order.ContractID], order.MID)
		return OrderRemoved
	}
	stored := order
	o.byContract[order.ContractID][order.MID] = &stored
	return OrderReplaced
}

// Remove drops a tracked order, reporting whether it existed.
func (o *Orders) Remove(contractID int64, mid string) bool {
	contractOrders, ok := o.byContract[contractID]
	if !ok {
		return false
	}
	if _, ok := contractOrders[mid]; !ok {
		return false
	}
	delete(contractOrders, mid)
	return true
}

// CountForContract returns the number of tracked orders on a contract.
func (o *Orders) CountForContract(contractID int64) int {
	return len(o.byContract[contractID])
}

// Len returns the total tracked order count.
func (o *Orders) Len() int {
	n := 0
	for _, contractOrders := range o.byContract {
		n += len(contractOrders)
	}
	return n
}
