package core

import (
	"context"
	"time"

	"marketmirror/internal/model"
	"marketmirror/internal/state"
)

// handleOrderLocked runs the order status machine for one action report.
// Every mutation of the tracked order set is shadowed into the book-entry
// state so the entry-level books stay consistent with the order flow.
func (e *Engine) handleOrderLocked(ctx context.Context, order model.Order) error {
	isOwn := order.IsOwn(e.mpid)
	contract, err := e.ensureContractLocked(ctx, order.ContractID)
	if err != nil {
		return err
	}

	_, exists := e.orders.Get(order.ContractID, order.MID)
	if exists && order.MPID != "" && !isOwn {
		e.log.Warn().Str("mid", order.MID).Str("mpid", order.MPID).
			Str("own_mpid", e.mpid).Msg("order carries a foreign trader id")
	}

	// A transition for an order never seen resting: synthesize the resting
	// state first so the transition has something to apply to.
	if !exists && order.StatusType != model.StatusResting {
		e.log.Debug().Str("mid", order.MID).Int("status", order.StatusType).
			Msg("transition for an untracked order, inserting it first")
		e.orders.Insert(order)
		exists = true
	}

	switch order.StatusType {
	case model.StatusResting:
		result := e.orders.Replace(order, e.mpid)
		switch result {
		case state.OrderDuplicate:
			e.metrics.StaleDrops.WithLabelValues("order_duplicate").Inc()
			return nil
		case state.OrderStale, state.OrderOwnershipMismatch:
			e.metrics.StaleDrops.WithLabelValues("order").Inc()
			return nil
		}
		e.books.ApplyEntry(order.ContractID, order.BookEntry())

	case model.StatusCross:
		if isOwn {
			deltaPos := order.FilledSize
			deltaBasis := order.FilledSize * order.FilledPrice
			evt := e.log.Info().Int64("contract_id", order.ContractID).
				Str("label", contract.Label).Int64("size", deltaPos).
				Int64("notional", deltaBasis/model.PriceUnits)
			if order.IsAsk {
				evt.Msg("observed own sale")
			} else {
				evt.Msg("observed own purchase")
			}
		}
		if order.Size != 0 {
			// Partial fill: the remainder keeps resting.
			e.orders.Replace(order, e.mpid)
			e.books.ApplyEntry(order.ContractID, order.BookEntry())
		} else {
			e.orders.Remove(order.ContractID, order.MID)
			e.books.DeleteEntry(order.ContractID, order.MID)
		}
		e.recordTradeLocked(order, contract)

	case model.StatusNotFilled:
		e.log.Warn().Str("mid", order.MID).Str("label", contract.Label).
			Msg("unfilled market order, nothing to track")

	case model.StatusCancelled:
		if exists {
			e.orders.Remove(order.ContractID, order.MID)
		} else {
			e.log.Debug().Str("mid", order.MID).Str("label", contract.Label).
				Msg("ignoring untracked cancelled order")
		}
		e.books.DeleteEntry(order.ContractID, order.MID)

	case model.StatusAcknowledged:
		e.log.Info().Str("mid", order.MID).Str("label", contract.Label).
			Msg("order acknowledged")

	case model.StatusExpired:
		e.log.Info().Str("mid", order.MID).Str("label", contract.Label).
			Msg("order expired")
		e.orders.Remove(order.ContractID, order.MID)
		e.books.DeleteEntry(order.ContractID, order.MID)

	default:
		if model.IsErrorStatus(order.StatusType) {
			e.log.Warn().Str("mid", order.MID).Int("status", order.StatusType).
				Msg("invalid or rejected order")
			e.orders.Remove(order.ContractID, order.MID)
		} else {
			e.log.Warn().Str("mid", order.MID).Int("status", order.StatusType).
				Msg("unknown order status")
		}
	}

	return nil
}

// recordTradeLocked folds a cross report into the last-trade history.
func (e *Engine) recordTradeLocked(order model.Order, contract *model.Contract) {
	side := "bid"
	if order.IsAsk {
		side = "ask"
	}
	trade := model.Trade{
		ContractID:    order.ContractID,
		ContractLabel: contract.Label,
		OrderType:     order.OrderType,
		FilledPrice:   order.FilledPrice,
		FilledSize:    order.FilledSize,
		Side:          side,
		Timestamp:     order.UpdatedTime,
		MPID:          order.MPID,
	}
	if e.lastTrades.Offer(trade) {
		e.log.Info().Int64("contract_id", trade.ContractID).
			Str("label", trade.ContractLabel).Int64("price", trade.FilledPrice).
			Int64("size", trade.FilledSize).Msg("updated last trade")
	}
}

// ProcessTrades folds externally listed trades into the last-trade history.
func (e *Engine) ProcessTrades(trades []model.Trade) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, trade := range trades {
		e.lastTrades.Offer(trade)
	}
}

// ReplayRecentTrades pulls the trades executed inside the trailing window
// and folds them into the last-trade history. The REST paging happens
// outside the engine lock; each page locks only while it is applied.
func (e *Engine) ReplayRecentTrades(ctx context.Context, window time.Duration) error {
	before := e.now()
	after := before.Add(-window)
	e.log.Info().Time("after", after).Time("before", before).
		Msg("replaying recent trades")
	return e.api.ListTrades(ctx, after, before, func(page []model.Trade) error {
		e.ProcessTrades(page)
		return nil
	})
}
