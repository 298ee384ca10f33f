package state

import "marketmirror/internal/model"

// LastTrades keeps, per contract, only the most recent observed trade by
// timestamp. It deliberately survives a full engine clear: the history it
// mirrors is append-only upstream, so a reload never invalidates it.
// Not safe for concurrent use; the engine serializes access.
type LastTrades struct {
	byContract map[int64]*model.Trade
}

func NewLastTrades() *LastTrades {
	return &LastTrades{byContract: make(map[int64]*model.Trade)}
}

// Offer records a trade unless a newer one is already stored. Ties and
// older timestamps are dropped.
func (lt *LastTrades) Offer(trade model.Trade) bool {
	existing, ok := lt.byContract[trade.ContractID]
	if ok && trade.Timestamp <= existing.Timestamp {
		return false
	}
	stored := trade
	lt.byContract[trade.ContractID] = &stored
	return true
}

// Get returns the most recent trade for a contract.
func (lt *LastTrades) Get(contractID int64) (*model.Trade, bool) {
	trade, ok := lt.byContract[contractID]
	return trade, ok
}

// Len returns the number of contracts with an observed trade.
func (lt *LastTrades) Len() int {
	return len(lt.byContract)
}
