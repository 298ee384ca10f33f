package core

import (
	"context"
	"fmt"
	"time"

	"marketmirror/internal/event"
)

// LoadMarket rebuilds the whole mirror from the REST surface: contracts,
// open orders, traded history, positions, books, and basis. Feed events
// arriving during the load are parked and applied once the snapshot is in
// place.
func (e *Engine) LoadMarket(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loadMarketLocked(ctx)
}

func (e *Engine) loadMarketLocked(ctx context.Context) (err error) {
	e.log.Info().Msg("loading the market")
	e.metrics.MarketReloads.Inc()
	e.clearLocked()

	started := e.queue.Begin()
	defer func() {
		if started {
			e.drainQueueLocked(ctx)
			e.queue.End()
		}
		if err == nil {
			e.health.SetReady(true)
		}
	}()

	// Contract catalog first so every later phase can resolve metadata.
	e.mu.Unlock()
	contracts, err := e.api.ListContracts(ctx)
	e.mu.Lock()
	if err != nil {
		return fmt.Errorf("listing contracts: %w", err)
	}
	now := e.now()
	for _, contract := range contracts {
		e.catalog.Add(contract, now)
	}
	e.log.Info().Int("contracts", e.catalog.Len()).
		Int("expirations", len(e.catalog.ExpirationDates())).Msg("loaded contracts")

	// Open orders carry the trader identity; capture it from the first.
	e.mu.Unlock()
	openOrders, err := e.api.ListOpenOrders(ctx)
	e.mu.Lock()
	if err != nil {
		return fmt.Errorf("listing open orders: %w", err)
	}
	for _, order := range openOrders {
		if e.mpid == "" {
			e.mpid = order.MPID
			e.cid = order.CID
			e.log.Info().Str("mpid", e.mpid).Str("cid", e.cid).
				Msg("captured trader identity")
		} else if order.MPID != e.mpid || order.CID != e.cid {
			e.log.Warn().Str("mpid", order.MPID).Str("cid", order.CID).
				Msg("open order carries a different trader identity")
		}
		if err := e.handleOrderLocked(ctx, order); err != nil {
			e.log.Error().Err(err).Str("mid", order.MID).
				Msg("open order failed to apply")
		}
	}
	e.log.Info().Int("orders", len(openOrders)).Msg("loaded open orders")

	if err := e.loadTradedContractsLocked(ctx); err != nil {
		return err
	}
	if err := e.refreshAllPositionsLocked(ctx); err != nil {
		return err
	}

	e.loadAllBooksLocked(ctx, e.catalog.IDs())
	e.recomputeBasisBatchLocked(ctx, e.positions.ContractIDs())

	if !e.catalog.SkipExpired() {
		e.zeroExpiredPositionsLocked()
	}

	e.netCostToCloseAllLocked(ctx)
	e.log.Info().Msg("market loaded")
	return nil
}

// loadTradedContractsLocked marks the contracts the account has history on,
// fetching metadata for any the catalog has not seen.
func (e *Engine) loadTradedContractsLocked(ctx context.Context) error {
	e.mu.Unlock()
	traded, err := e.api.ListTradedContracts(ctx)
	e.mu.Lock()
	if err != nil {
		return fmt.Errorf("listing traded contracts: %w", err)
	}
	skipped := 0
	for _, contract := range traded {
		if e.catalog.SkipExpired() {
			_, known := e.catalog.Contract(contract.ID)
			if !known || e.catalog.InExpiredPartition(contract.ID) {
				skipped++
				continue
			}
		}
		stored, ok := e.catalog.Contract(contract.ID)
		if !ok {
			var err error
			stored, err = e.retrieveContractLocked(ctx, contract.ID)
			if err != nil {
				e.log.Warn().Err(err).Int64("contract_id", contract.ID).
					Msg("traded contract lookup failed")
				continue
			}
		}
		e.catalog.MarkTraded(stored)
	}
	e.log.Info().Int("traded", len(traded)).Int("skipped_expired", skipped).
		Msg("loaded traded contracts")
	return nil
}

// zeroExpiredPositionsLocked flattens positions on expired contracts: they
// no longer exist at the exchange.
func (e *Engine) zeroExpiredPositionsLocked() {
	for _, contractID := range e.positions.ContractIDs() {
		if !e.catalog.InExpiredPartition(contractID) {
			continue
		}
		pos, ok := e.positions.Get(contractID)
		if !ok || pos.Size == 0 {
			continue
		}
		e.log.Info().Int64("contract_id", contractID).Int64("size", pos.Size).
			Msg("flattening position on expired contract")
		pos.Size = 0
	}
}

func (e *Engine) heartbeatLocked(ctx context.Context, hb *event.Heartbeat) error {
	reload := false
	if e.lastHeartbeat != nil {
		if e.lastHeartbeat.Ticks >= hb.Ticks {
			e.log.Warn().Int64("last_ticks", e.lastHeartbeat.Ticks).
				Int64("ticks", hb.Ticks).Msg("out of order heartbeats")
		}
		reload = e.lastHeartbeat.RunID != hb.RunID
	}
	e.lastHeartbeat = hb
	if reload {
		e.log.Info().Str("run_id", hb.RunID).
			Msg("feed server restarted, reloading market state")
		if err := e.loadMarketLocked(ctx); err != nil {
			return err
		}
	}

	lag := e.now().Sub(time.Unix(0, hb.Timestamp))
	e.metrics.HeartbeatLag.Set(lag.Seconds())
	if lag > e.opts.HeartbeatStaleness {
		// Processing is behind; adding catch-up work would make it worse.
		e.log.Warn().Dur("lag", lag).Msg("processed an old heartbeat, skipping catch-up")
		return nil
	}
	e.loadRemainingBooksLocked(ctx, e.opts.CatchUpLimit)
	return nil
}
