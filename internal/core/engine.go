package core

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"marketmirror/internal/event"
	"marketmirror/internal/model"
	"marketmirror/internal/observability"
	"marketmirror/internal/state"
)

// Options tunes the engine's reconciliation behavior.
type Options struct {
	// SkipExpired excludes expired contracts from position and basis
	// upkeep.
	SkipExpired bool
	// MaxParallelBookLoads bounds the fan-out of bulk book fetches.
	MaxParallelBookLoads int
	// CatchUpLimit caps how many stale positions and missing books one
	// heartbeat may repair.
	CatchUpLimit int
	// ExpiryGuard is how close to expiration a contract may get before it
	// stops being treated as tradable.
	ExpiryGuard time.Duration
	// HeartbeatStaleness is the processing lag beyond which a heartbeat
	// triggers no catch-up work.
	HeartbeatStaleness time.Duration
}

// DefaultOptions mirror the exchange's operational limits.
func DefaultOptions() Options {
	return Options{
		SkipExpired:          true,
		MaxParallelBookLoads: 60,
		CatchUpLimit:         20,
		ExpiryGuard:          state.DefaultExpiryGuard,
		HeartbeatStaleness:   2 * time.Second,
	}
}

// Engine is the single point through which all mirrored state mutates.
// Feed events and reconciliation results are serialized under one mutex;
// the bulk loaders release it around their REST fan-out and buffer incoming
// events on the action queue until the load's results have been applied.
type Engine struct {
	// mu guards every field below. Methods suffixed Locked require it
	// held; they may release and re-acquire it internally, so no caller
	// may assume state is unchanged across such a call.
	mu sync.Mutex

	api MarketAPI

	catalog    *state.Catalog
	books      *state.Books
	orders     *state.Orders
	positions  *state.Positions
	balances   *state.Balances
	lastTrades *state.LastTrades

	queue        actionQueue
	costsToClose map[int64]model.CostToClose

	// Trader identity, captured from the first own order seen.
	mpid string
	cid  string

	lastHeartbeat *event.Heartbeat

	opts    Options
	metrics *observability.Metrics
	health  *observability.HealthChecker
	log     zerolog.Logger
	now     func() time.Time
}

func NewEngine(api MarketAPI, opts Options, metrics *observability.Metrics,
	health *observability.HealthChecker, log zerolog.Logger) *Engine {
	if opts.MaxParallelBookLoads <= 0 {
		opts.MaxParallelBookLoads = DefaultOptions().MaxParallelBookLoads
	}
	if opts.ExpiryGuard <= 0 {
		opts.ExpiryGuard = DefaultOptions().ExpiryGuard
	}
	if opts.HeartbeatStaleness <= 0 {
		opts.HeartbeatStaleness = DefaultOptions().HeartbeatStaleness
	}

	e := &Engine{
		api:        api,
		catalog:    state.NewCatalog(opts.SkipExpired, log),
		books:      state.NewBooks(log),
		orders:     state.NewOrders(log),
		positions:  state.NewPositions(log),
		balances:   state.NewBalances(log),
		lastTrades: state.NewLastTrades(),
		opts:       opts,
		metrics:    metrics,
		health:     health,
		log:        log,
		now:        time.Now,
	}
	e.clearLocked()
	return e
}

// clearLocked resets everything except the last-trade history, which
// mirrors an append-only upstream record and survives reloads.
func (e *Engine) clearLocked() {
	e.catalog.Clear()
	e.books.Clear()
	e.orders.Clear()
	e.positions.Clear()
	e.balances.Clear()
	e.costsToClose = make(map[int64]model.CostToClose)
	e.mpid = ""
	e.cid = ""
}

// HandleAction applies one decoded feed event. During a bulk load the event
// is parked on the action queue instead and applied, in arrival order, once
// the load's results are in place.
func (e *Engine) HandleAction(ctx context.Context, evt event.Event) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.handleActionLocked(ctx, evt, false)
}

func (e *Engine) handleActionLocked(ctx context.Context, evt event.Event, force bool) error {
	if e.queue.Buffering() && !force {
		e.queue.Push(evt)
		e.metrics.EventsQueued.Inc()
		e.metrics.QueueDepth.Set(float64(e.queue.Depth()))
		e.log.Debug().Stringer("kind", evt.Kind()).Int("pending", e.queue.Depth()).
			Msg("queued event during reload")
		return nil
	}

	start := time.Now()
	err := e.dispatchLocked(ctx, evt)
	kind := evt.Kind().String()
	e.metrics.HandleDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	if err == nil {
		e.metrics.EventsApplied.WithLabelValues(kind).Inc()
	}
	return err
}

func (e *Engine) dispatchLocked(ctx context.Context, evt event.Event) error {
	switch ev := evt.(type) {
	case *event.BookTop:
		return e.bookTopLocked(ctx, ev)
	case *event.ActionReport:
		return e.handleOrderLocked(ctx, ev.Order)
	case *event.Heartbeat:
		return e.heartbeatLocked(ctx, ev)
	case *event.CollateralBalanceUpdate:
		e.collateralLocked(ev)
		return nil
	case *event.OpenPositionsUpdate:
		return e.openPositionsLocked(ctx, ev)
	case *event.ContractAdded:
		return e.contractAddedLocked(ctx, ev)
	case *event.ContractRemoved:
		e.catalog.MarkExpired(ev.Contract)
		return nil
	case *event.TradeBusted:
		e.log.Info().Int64("contract_id", ev.ContractID).Str("mid", ev.MID).
			Msg("trade busted")
		return nil
	case *event.WebsocketStarting:
		e.log.Info().Msg("feed connection (re)started, books may be stale")
		return e.loadMarketLocked(ctx)
	case *event.ExposureReports:
		e.log.Info().Msg("exposure report")
		return nil
	case *event.Info:
		e.log.Info().Stringer("kind", ev.Kind()).Str("raw_type", ev.RawType).
			Msg("informational event")
		return nil
	case *event.Unrecognized:
		e.log.Warn().Str("raw_type", ev.RawType).Msg("unknown event type")
		return nil
	default:
		e.log.Warn().Stringer("kind", evt.Kind()).Msg("unhandled event")
		return nil
	}
}

// drainQueueLocked applies every parked event in arrival order. Handlers
// may park further events mid-drain (a heartbeat can start a reload); those
// are picked up by the same loop.
func (e *Engine) drainQueueLocked(ctx context.Context) {
	n := 0
	for {
		evt, ok := e.queue.Pop()
		if !ok {
			break
		}
		n++
		e.metrics.QueueDepth.Set(float64(e.queue.Depth()))
		if err := e.handleActionLocked(ctx, evt, true); err != nil {
			e.log.Error().Err(err).Stringer("kind", evt.Kind()).
				Msg("queued event failed to apply")
		}
	}
	if n > 0 {
		e.log.Info().Int("events", n).Msg("drained action queue")
	}
}

func (e *Engine) collateralLocked(ev *event.CollateralBalanceUpdate) {
	for asset, amount := range ev.AvailableBalances {
		e.balances.SetExact(model.BalanceAvailable, asset, amount)
	}
	for asset, amount := range ev.PositionLockedBalances {
		e.balances.SetExact(model.BalancePositionLocked, asset, amount)
	}
}

func (e *Engine) contractAddedLocked(ctx context.Context, ev *event.ContractAdded) error {
	contract, err := e.retrieveContractLocked(ctx, ev.ContractID)
	if err != nil {
		return err
	}
	if contract.DerivativeType != ev.DerivativeType {
		e.log.Warn().Int64("contract_id", ev.ContractID).
			Stringer("announced", ev.DerivativeType).
			Stringer("listed", contract.DerivativeType).
			Msg("contract listing disagrees with announcement")
	}
	return nil
}

// MPID returns the trader id captured during the market load.
func (e *Engine) MPID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mpid
}

// LastTrade returns the most recent observed trade on a contract.
func (e *Engine) LastTrade(contractID int64) (model.Trade, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	trade, ok := e.lastTrades.Get(contractID)
	if !ok {
		return model.Trade{}, false
	}
	return *trade, true
}

// Status is the engine's introspection snapshot, served on /statusz.
type Status struct {
	Ready            bool                        `json:"ready"`
	Contracts        int                         `json:"contracts"`
	TradedContracts  int                         `json:"traded_contracts"`
	Orders           int                         `json:"orders"`
	TrackedBooks     int                         `json:"tracked_books"`
	Positions        int                         `json:"positions"`
	PendingBasis     int                         `json:"pending_basis"`
	QueueDepth       int                         `json:"queue_depth"`
	LastTrades       int                         `json:"last_trades"`
	HeartbeatTicks   int64                       `json:"heartbeat_ticks,omitempty"`
	HeartbeatRunID   string                      `json:"heartbeat_run_id,omitempty"`
	Balances         map[string]map[string]int64 `json:"balances"`
	CostsToClose     []model.CostToClose         `json:"costs_to_close,omitempty"`
}

// StatusSnapshot implements observability.StatusSource.
func (e *Engine) StatusSnapshot() any {
	e.mu.Lock()
	defer e.mu.Unlock()
	st := Status{
		Ready:           e.health.IsReady(),
		Contracts:       e.catalog.Len(),
		TradedContracts: len(e.catalog.TradedIDs()),
		Orders:          e.orders.Len(),
		TrackedBooks:    len(e.books.TrackedIDs()),
		Positions:       len(e.positions.ContractIDs()),
		PendingBasis:    len(e.positions.PendingBasis()),
		QueueDepth:      e.queue.Depth(),
		LastTrades:      e.lastTrades.Len(),
		Balances:        e.balances.Snapshot(),
	}
	if e.lastHeartbeat != nil {
		st.HeartbeatTicks = e.lastHeartbeat.Ticks
		st.HeartbeatRunID = e.lastHeartbeat.RunID
	}
	if len(e.costsToClose) > 0 {
		st.CostsToClose = make([]model.CostToClose, 0, len(e.costsToClose))
		for _, ctc := range e.costsToClose {
			st.CostsToClose = append(st.CostsToClose, ctc)
		}
		sort.Slice(st.CostsToClose, func(i, j int) bool {
			return st.CostsToClose[i].ContractID < st.CostsToClose[j].ContractID
		})
	}
	return st
}
