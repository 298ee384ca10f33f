package core

import (
	"context"
	"time"

	"marketmirror/internal/model"
)

// MarketAPI is the REST surface the engine reconciles against. Every call
// must be safe for concurrent use: bulk reloads fan fetches out across
// goroutines. Pagination, retries and authentication live behind this
// interface, not in the engine.
type MarketAPI interface {
	// ListContracts returns the full contract catalog.
	ListContracts(ctx context.Context) ([]model.Contract, error)

	// GetContract retrieves one contract by id.
	GetContract(ctx context.Context, contractID int64) (model.Contract, error)

	// ListTradedContracts returns the contracts the trader's account has
	// history on. May include inactive or expired listings.
	ListTradedContracts(ctx context.Context) ([]model.Contract, error)

	// ListOpenOrders returns the trader's resting orders. Each record
	// carries the trader and account identifiers.
	ListOpenOrders(ctx context.Context) ([]model.Order, error)

	// ListPositions returns all of the trader's positions.
	ListPositions(ctx context.Context) ([]model.Position, error)

	// ListPositionFills returns a position's complete fill history.
	ListPositionFills(ctx context.Context, positionID string) ([]model.Fill, error)

	// ListTransactions returns all ledger debits and credits.
	ListTransactions(ctx context.Context) ([]model.Transaction, error)

	// BookState fetches a full book snapshot for one contract.
	BookState(ctx context.Context, contractID int64) (model.BookSnapshot, error)

	// ListTrades streams trades executed inside the window to fn, one page
	// at a time, in ascending time order.
	ListTrades(ctx context.Context, after, before time.Time, fn func([]model.Trade) error) error
}
