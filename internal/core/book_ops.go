package core

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"marketmirror/internal/event"
	"marketmirror/internal/model"
	"marketmirror/internal/state"
)

func (e *Engine) bookTopLocked(ctx context.Context, ev *event.BookTop) error {
	if ev.ContractID == 0 {
		e.log.Warn().Int64("clock", ev.Clock).Msg("book top without a contract id")
		return nil
	}
	if _, ok := e.catalog.Contract(ev.ContractID); !ok {
		e.log.Info().Int64("contract_id", ev.ContractID).
			Msg("book top for an unknown contract, loading it")
		if _, err := e.retrieveContractLocked(ctx, ev.ContractID); err != nil {
			return err
		}
		if err := e.loadBooksLocked(ctx, ev.ContractID); err != nil {
			return err
		}
		// The push may predate the snapshot just fetched; drop it.
		return nil
	}

	switch e.books.ApplyTop(ev.Top()) {
	case state.TopApplied, state.TopFirst:
	case state.TopDuplicate:
		e.log.Debug().Int64("contract_id", ev.ContractID).Int64("clock", ev.Clock).
			Msg("duplicate book top")
	case state.TopConflict:
		e.metrics.TopConflicts.Inc()
		e.log.Warn().Int64("contract_id", ev.ContractID).Int64("clock", ev.Clock).
			Int64("bid", ev.Bid).Int64("ask", ev.Ask).
			Msg("different book top with the same clock, keeping the stored one")
	case state.TopStale:
		e.metrics.StaleDrops.WithLabelValues("book_top").Inc()
		e.log.Debug().Int64("contract_id", ev.ContractID).Int64("clock", ev.Clock).
			Msg("stale book top dropped")
	}
	return nil
}

// topOfBookLocked returns the stored top for a contract. With blocking set
// the books are fetched on a miss; otherwise the entry state is dropped so
// the next heartbeat reloads it, and nil is returned.
func (e *Engine) topOfBookLocked(ctx context.Context, contractID int64, blocking bool) *model.BookTop {
	if e.catalog.InExpiredPartition(contractID) {
		return nil
	}
	if _, ok := e.books.Top(contractID); !ok {
		e.log.Info().Int64("contract_id", contractID).Msg("no top of book yet")
		if blocking {
			if err := e.loadBooksLocked(ctx, contractID); err != nil {
				e.log.Error().Err(err).Int64("contract_id", contractID).
					Msg("book load failed")
				return nil
			}
		} else {
			e.books.DropState(contractID)
			return nil
		}
	}
	top, ok := e.books.Top(contractID)
	if !ok {
		return nil
	}
	copied := *top
	return &copied
}

// TopOfBook returns the best bid and ask for a contract. With blocking set,
// missing books are fetched before answering; otherwise a miss returns
// false and schedules a reload for the next heartbeat.
func (e *Engine) TopOfBook(ctx context.Context, contractID int64, blocking bool) (model.BookTop, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	top := e.topOfBookLocked(ctx, contractID, blocking)
	if top == nil {
		return model.BookTop{}, false
	}
	return *top, true
}

// loadBooksLocked fetches and installs one contract's book snapshot,
// holding the engine lock throughout. Expired contracts are skipped.
func (e *Engine) loadBooksLocked(ctx context.Context, contractID int64) error {
	contract, err := e.ensureContractLocked(ctx, contractID)
	if err != nil {
		return err
	}
	if e.catalog.IsExpired(contract, e.now(), e.opts.ExpiryGuard) {
		e.log.Info().Int64("contract_id", contractID).Str("label", contract.Label).
			Msg("skipping book load on expired contract")
		return nil
	}

	snapshot, err := e.api.BookState(ctx, contractID)
	if err != nil {
		e.metrics.BookLoads.WithLabelValues("error").Inc()
		return fmt.Errorf("loading books for %d: %w", contractID, err)
	}
	e.books.ReplaceAll(snapshot)
	e.metrics.BookLoads.WithLabelValues("ok").Inc()
	e.log.Info().Int64("contract_id", contractID).Str("label", contract.Label).
		Int("entries", len(snapshot.Entries)).Msg("replaced book state")
	return nil
}

// loadAllBooksLocked fetches book snapshots for many contracts with a
// bounded fan-out. The engine lock is released for the duration of the
// fetches; feed events arriving meanwhile are parked on the action queue
// and drained once every snapshot has been applied, so no push is applied
// on top of a snapshot it predates.
func (e *Engine) loadAllBooksLocked(ctx context.Context, contractIDs []int64) *BatchResult {
	batch := newBatchResult()

	// Resolve which contracts actually need a fetch before unlocking.
	now := e.now()
	var wanted []int64
	for _, id := range contractIDs {
		contract, ok := e.catalog.Contract(id)
		if !ok || e.catalog.IsExpired(contract, now, e.opts.ExpiryGuard) {
			continue
		}
		wanted = append(wanted, id)
	}
	if len(wanted) == 0 {
		return batch
	}
	e.log.Info().Int("contracts", len(wanted)).Str("run_id", batch.RunID).
		Msg("loading all books")

	started := e.queue.Begin()

	snapshots := make([]*model.BookSnapshot, len(wanted))
	e.mu.Unlock()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.MaxParallelBookLoads)
	for i, id := range wanted {
		g.Go(func() error {
			snapshot, err := e.api.BookState(gctx, id)
			if err != nil {
				// The contract may have just expired; keep going.
				batch.Record(id, err)
				return nil
			}
			snapshots[i] = &snapshot
			return nil
		})
	}
	_ = g.Wait()
	e.mu.Lock()

	for _, snapshot := range snapshots {
		if snapshot == nil {
			continue
		}
		e.books.ReplaceAll(*snapshot)
		e.metrics.BookLoads.WithLabelValues("ok").Inc()
	}
	for _, err := range batch.Errors() {
		e.metrics.BookLoads.WithLabelValues("error").Inc()
		e.metrics.BatchItemFailures.Inc()
		e.log.Warn().Err(err).Str("run_id", batch.RunID).Msg("book load failed")
	}

	if started {
		e.drainQueueLocked(ctx)
		e.queue.End()
	}
	e.log.Info().Int("contracts", len(wanted)).Int("failed", batch.Failed()).
		Str("run_id", batch.RunID).Msg("done loading books")
	return batch
}

// LoadBooks fetches fresh book snapshots for the given contracts.
func (e *Engine) LoadBooks(ctx context.Context, contractIDs ...int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	batch := e.loadAllBooksLocked(ctx, contractIDs)
	if n := batch.Failed(); n > 0 {
		return fmt.Errorf("%d of %d book loads failed", n, len(contractIDs))
	}
	return nil
}

// topBookStatesLocked returns the best bid and ask entries from the
// entry-level book state, reloading the snapshot when the derived top has
// run more than allowedLag clocks ahead of the entries. The returned lag is
// clamped to zero when the entries are ahead of the top.
func (e *Engine) topBookStatesLocked(ctx context.Context, contractID int64, allowedLag int64) (bid, ask *model.BookEntry, lag int64) {
	entryClock := e.books.MaxEntryClock(contractID)
	lag = -1
	if top, ok := e.books.Top(contractID); ok {
		lag = top.Clock - entryClock
		if lag < 0 {
			// The top is behind the entries; trust the entries.
			lag = 0
		}
	}
	if lag < 0 || lag > allowedLag {
		e.log.Info().Int64("contract_id", contractID).Int64("lag", lag).
			Msg("book entries are stale, reloading")
		if err := e.loadBooksLocked(ctx, contractID); err != nil {
			e.log.Error().Err(err).Int64("contract_id", contractID).
				Msg("book reload failed")
		}
	}
	bid, ask = e.books.TopEntries(contractID)
	if bid == nil || ask == nil {
		e.log.Info().Int64("contract_id", contractID).
			Msg("a side of the book is empty")
	}
	return bid, ask, lag
}

// TopBookStates returns the best bid and ask book entries, reloading from
// the accessor when they lag the pushed top by more than allowedLag clocks.
func (e *Engine) TopBookStates(ctx context.Context, contractID int64, allowedLag int64) (bid, ask *model.BookEntry, lag int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.topBookStatesLocked(ctx, contractID, allowedLag)
}

// TopBookStatesEstimate is the cheap variant: it tolerates up to maxLag
// clocks of staleness without reloading, and reports stale entries with
// their size clamped to one so that callers never overestimate available
// liquidity.
func (e *Engine) TopBookStatesEstimate(ctx context.Context, contractID int64, maxLag int64) (bid, ask *model.BookEntry, lag int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	bid, ask, lag = e.topBookStatesLocked(ctx, contractID, maxLag)
	if lag > 2 {
		if bid != nil {
			bid.Size = 1
		}
		if ask != nil {
			ask.Size = 1
		}
	}
	return bid, ask, lag
}
