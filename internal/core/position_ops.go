package core

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"marketmirror/internal/event"
	"marketmirror/internal/model"
	"marketmirror/internal/state"
)

func (e *Engine) openPositionsLocked(ctx context.Context, ev *event.OpenPositionsUpdate) error {
	var fresh, resized []int64
	for _, update := range ev.Positions {
		isNew, sizeChanged := e.positions.ApplyUpdate(update)
		switch {
		case isNew:
			fresh = append(fresh, update.ContractID)
		case sizeChanged:
			resized = append(resized, update.ContractID)
		}
	}

	// A position never seen before arrives without its exchange id, so the
	// fill history cannot be replayed until the full listing names it.
	if len(fresh) > 0 {
		e.log.Info().Ints64("contract_ids", fresh).
			Msg("new positions on the feed, refreshing the full listing")
		if err := e.refreshAllPositionsLocked(ctx); err != nil {
			return err
		}
		resized = append(resized, fresh...)
	}
	if len(resized) > 0 {
		e.log.Info().Ints64("contract_ids", resized).
			Msg("recomputing basis for resized positions")
		e.recomputeBasisBatchLocked(ctx, resized)
	}
	return nil
}

// refreshAllPositionsLocked replaces the position set from a fresh listing.
// A stored basis survives only when the listed size and exercised size are
// unchanged; everything else joins the pending-basis set, minus expired
// contracts when those are skipped.
func (e *Engine) refreshAllPositionsLocked(ctx context.Context) error {
	e.mu.Unlock()
	listed, err := e.api.ListPositions(ctx)
	e.mu.Lock()
	if err != nil {
		return fmt.Errorf("listing positions: %w", err)
	}

	now := e.now()
	flagged := e.positions.ReplaceAll(listed, func(contractID int64) bool {
		if !e.catalog.SkipExpired() {
			return true
		}
		contract, ok := e.catalog.Contract(contractID)
		if !ok || e.catalog.InExpiredPartition(contractID) {
			return false
		}
		return !e.catalog.IsExpired(contract, now, e.opts.ExpiryGuard)
	})
	e.log.Info().Int("positions", len(listed)).Int("pending_basis", len(flagged)).
		Msg("replaced position set")
	return nil
}

// recomputeBasisBatchLocked replays the fill history of the given contracts
// with a bounded fan-out and folds each into a fresh basis. A fold that
// disagrees with the listed size means the mirror has diverged, and the
// whole position set is refreshed. The engine lock is released around the
// fetches; events arriving meanwhile are parked and drained afterwards.
func (e *Engine) recomputeBasisBatchLocked(ctx context.Context, contractIDs []int64) *BatchResult {
	batch := newBatchResult()

	type job struct {
		contractID int64
		positionID string
	}
	now := e.now()
	var jobs []job
	for _, id := range contractIDs {
		pos, ok := e.positions.Get(id)
		if !ok || pos.ID == "" {
			// No exchange position id yet, the next full listing names it.
			e.positions.MarkPendingBasis(id)
			continue
		}
		if e.catalog.SkipExpired() {
			contract, ok := e.catalog.Contract(id)
			if !ok || e.catalog.IsExpired(contract, now, e.opts.ExpiryGuard) {
				e.positions.ClearPendingBasis(id)
				continue
			}
		}
		jobs = append(jobs, job{contractID: id, positionID: pos.ID})
	}
	if len(jobs) == 0 {
		return batch
	}
	e.log.Info().Int("positions", len(jobs)).Str("run_id", batch.RunID).
		Msg("replaying fill histories")

	started := e.queue.Begin()

	histories := make([][]model.Fill, len(jobs))
	e.mu.Unlock()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.MaxParallelBookLoads)
	for i, jb := range jobs {
		g.Go(func() error {
			fills, err := e.api.ListPositionFills(gctx, jb.positionID)
			if err != nil {
				batch.Record(jb.contractID, err)
				return nil
			}
			if fills == nil {
				fills = []model.Fill{}
			}
			histories[i] = fills
			return nil
		})
	}
	_ = g.Wait()
	e.mu.Lock()

	diverged := false
	for i, jb := range jobs {
		if histories[i] == nil {
			e.metrics.BasisRecomputes.WithLabelValues("error").Inc()
			e.metrics.BatchItemFailures.Inc()
			e.positions.MarkPendingBasis(jb.contractID)
			continue
		}
		if e.applyFoldLocked(jb.contractID, histories[i]) {
			diverged = true
		}
	}
	for _, err := range batch.Errors() {
		e.log.Warn().Err(err).Str("run_id", batch.RunID).Msg("fill replay failed")
	}

	if diverged {
		e.metrics.FullResyncs.Inc()
		if err := e.refreshAllPositionsLocked(ctx); err != nil {
			e.log.Error().Err(err).Msg("position refresh after divergence failed")
		}
	}

	if started {
		e.drainQueueLocked(ctx)
		e.queue.End()
	}
	return batch
}

// applyFoldLocked folds one replayed fill history into the stored position.
// Returns true when the fold disagrees with the listed size and the caller
// must escalate to a full refresh.
func (e *Engine) applyFoldLocked(contractID int64, fills []model.Fill) (diverged bool) {
	pos, ok := e.positions.Get(contractID)
	if !ok {
		// The position vanished while the lock was released.
		e.positions.ClearPendingBasis(contractID)
		return false
	}
	size, basis, err := state.FoldFills(contractID, fills)
	if err != nil {
		e.metrics.BasisRecomputes.WithLabelValues("error").Inc()
		e.log.Error().Err(err).Int64("contract_id", contractID).
			Msg("fill history is inconsistent")
		return false
	}
	if (pos.Type == model.PositionTypeShort && size > 0) ||
		(pos.Type == model.PositionTypeLong && size < 0) {
		e.log.Warn().Int64("contract_id", contractID).Int64("folded_size", size).
			Stringer("type", pos.Type).Msg("folded size contradicts position type")
	}
	if size != pos.Size {
		e.metrics.BasisRecomputes.WithLabelValues("diverged").Inc()
		e.log.Warn().Int64("contract_id", contractID).Int64("folded_size", size).
			Int64("listed_size", pos.Size).
			Msg("fill replay disagrees with listed size, refreshing all positions")
		return true
	}
	e.positions.SetBasis(contractID, basis)
	e.metrics.BasisRecomputes.WithLabelValues("ok").Inc()
	e.log.Info().Int64("contract_id", contractID).Int("fills", len(fills)).
		Int64("size", size).Int64("basis", basis).Msg("recomputed basis")
	return false
}

// loadRemainingBooksLocked is the heartbeat catch-up: it repairs up to
// limit stale positions and missing books, leaving the rest for the next
// beat. A limit of zero means no cap.
func (e *Engine) loadRemainingBooksLocked(ctx context.Context, limit int) {
	pending := e.positions.PendingBasis()
	if limit > 0 && len(pending) > limit {
		pending = pending[:limit]
	}
	count := len(pending)
	if count > 0 {
		e.log.Info().Int("positions", count).Msg("updating stale position basis")
		e.recomputeBasisBatchLocked(ctx, pending)
	}

	if limit == 0 || count < limit {
		now := e.now()
		var toLoad []int64
		for _, id := range e.catalog.IDs() {
			contract, _ := e.catalog.Contract(id)
			if e.catalog.IsExpired(contract, now, e.opts.ExpiryGuard) {
				continue
			}
			if e.books.Tracking(id) {
				continue
			}
			toLoad = append(toLoad, id)
			count++
			if limit > 0 && count >= limit {
				break
			}
		}
		if len(toLoad) > 0 {
			e.loadAllBooksLocked(ctx, toLoad)
		}
	}
}

// CostToClose prices a full close of the position on one contract at the
// current top of book. Returns false when there is no position, the
// contract has expired, or no book exists to price against.
func (e *Engine) CostToClose(ctx context.Context, contractID int64) (model.CostToClose, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	res := e.costToCloseLocked(ctx, contractID)
	if res == nil {
		return model.CostToClose{}, false
	}
	return *res, true
}

func (e *Engine) costToCloseLocked(ctx context.Context, contractID int64) *model.CostToClose {
	pos, ok := e.positions.Get(contractID)
	if !ok || pos.Size == 0 {
		return nil
	}
	contract, ok := e.catalog.Contract(contractID)
	if !ok || e.catalog.IsExpired(contract, e.now(), e.opts.ExpiryGuard) {
		return nil
	}
	top := e.topOfBookLocked(ctx, contractID, true)
	if top == nil {
		return nil
	}

	size := pos.Size
	res := model.CostToClose{ContractID: contractID, Size: size}
	bid, hasBid := top.BidPrice()
	ask, hasAsk := top.AskPrice()
	if hasBid {
		res.Bid = ptr(bid)
	}
	if hasAsk {
		res.Ask = ptr(ask)
	}

	var fee int64
	mid, hasMid := top.Mid()
	if hasMid {
		fee = model.Fee(mid, size)
		res.Fee = ptr(fee)
		res.Cost = ptr(model.FloorDiv(fee+mid*size, 10000))
	}

	if pos.Basis != nil {
		basis := model.FloorDiv(*pos.Basis, 100)
		res.Basis = ptr(basis)
		if size < 0 && hasAsk {
			res.Net = ptr(model.FloorDiv(fee+ask*size, 10000) - basis)
		} else if size > 0 && hasBid {
			res.Net = ptr(model.FloorDiv(fee+bid*size, 10000) - basis)
		}
	} else {
		e.positions.MarkPendingBasis(contractID)
		e.log.Warn().Int64("contract_id", contractID).Str("label", contract.Label).
			Msg("no basis yet for cost to close")
	}

	// Low is the close at the unfavorable side, high at the favorable one.
	if size < 0 {
		if hasBid {
			res.Low = ptr(model.FloorDiv(fee+bid*size, 10000))
		}
		if hasAsk {
			res.High = ptr(model.FloorDiv(fee+ask*size, 10000))
		}
	} else {
		if hasAsk {
			res.Low = ptr(model.FloorDiv(fee+ask*size, 10000))
		}
		if hasBid {
			res.High = ptr(model.FloorDiv(fee+bid*size, 10000))
		}
	}

	e.costsToClose[contractID] = res
	return &res
}

// CloseSummary totals what closing every open position at the current top
// of book would realize against the accumulated basis, in whole currency
// units.
type CloseSummary struct {
	NetClose  int64 `json:"net_close"`
	NetBasis  int64 `json:"net_basis"`
	Positions int   `json:"positions"`
}

// NetCostToCloseAll walks every open position and totals the proceeds of
// closing each at its top of book. Positions whose side of the book is
// empty contribute nothing to the close total.
func (e *Engine) NetCostToCloseAll(ctx context.Context) CloseSummary {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.netCostToCloseAllLocked(ctx)
}

func (e *Engine) netCostToCloseAllLocked(ctx context.Context) CloseSummary {
	var sum CloseSummary
	var totalBasis int64
	now := e.now()
	for _, contractID := range e.positions.ContractIDs() {
		contract, ok := e.catalog.Contract(contractID)
		if !ok || (e.catalog.SkipExpired() && e.catalog.IsExpired(contract, now, e.opts.ExpiryGuard)) {
			continue
		}
		pos, _ := e.positions.Get(contractID)
		size := pos.Size
		if size == 0 {
			continue
		}
		sum.Positions++
		if pos.Basis != nil {
			totalBasis += *pos.Basis
		}
		top := e.topOfBookLocked(ctx, contractID, false)
		if top == nil {
			continue
		}
		if size > 0 {
			if bid, ok := top.BidPrice(); ok {
				fee := model.Fee(bid, size)
				sale := model.FloorDiv(size*bid-fee, 10000)
				sum.NetClose += sale
				e.log.Info().Str("label", contract.Label).Int64("size", size).
					Int64("bid", bid).Int64("sale", sale).Msg("sellable at top bid")
			} else {
				e.log.Info().Str("label", contract.Label).Int64("size", size).
					Msg("no buyers at any bid")
			}
		} else {
			if ask, ok := top.AskPrice(); ok {
				fee := model.Fee(ask, size)
				purchase := model.FloorDiv(size*ask+fee, 10000)
				sum.NetClose += purchase
				e.log.Info().Str("label", contract.Label).Int64("size", size).
					Int64("ask", ask).Int64("purchase", purchase).Msg("coverable at top ask")
			} else {
				e.log.Info().Str("label", contract.Label).Int64("size", size).
					Msg("no sellers at any ask")
			}
		}
	}
	sum.NetBasis = model.FloorDiv(totalBasis, 100)
	e.log.Info().Int64("net_close", sum.NetClose).Int64("net_basis", sum.NetBasis).
		Int64("net", sum.NetClose-sum.NetBasis).Int("positions", sum.Positions).
		Msg("net to close all positions at top of book")
	return sum
}

// LoadTransactions replays the full ledger into the account balances. A
// pre/post cross-check failure abandons the replay: silently drifting
// balances are worse than missing ones.
func (e *Engine) LoadTransactions(ctx context.Context) error {
	transactions, err := e.api.ListTransactions(ctx)
	if err != nil {
		return fmt.Errorf("listing transactions: %w", err)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, tx := range transactions {
		if err := e.balances.ApplyTransaction(tx); err != nil {
			return fmt.Errorf("replaying transactions: %w", err)
		}
	}
	e.log.Info().Int("transactions", len(transactions)).
		Strs("assets", e.balances.Assets()).Msg("replayed ledger transactions")
	return nil
}

func ptr(v int64) *int64 { return &v }
