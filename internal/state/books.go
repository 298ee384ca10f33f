package state

import (
	"github.com/rs/zerolog"

	"marketmirror/internal/model"
)

// TopApplyResult classifies the outcome of offering a book-top update.
type TopApplyResult int32

const (
	TopApplied TopApplyResult = iota
	TopFirst
	TopDuplicate // same clock, same prices
	TopConflict  // same clock, different prices, stored top wins
	TopStale
)

// Books owns per-contract book-level entries and the derived tops. The
// entry map for a contract exists only once books have been loaded for it:
// an absent map means "not tracking", not "empty book".
// Not safe for concurrent use; the engine serializes access.
type Books struct {
	entries map[int64]map[string]*model.BookEntry
	tops    map[int64]*model.BookTop
	log     zerolog.Logger
}

func NewBooks(log zerolog.Logger) *Books {
	b := &Books{log: log}
	b.Clear()
	return b
}

func (b *Books) Clear() {
	b.entries = make(map[int64]map[string]*model.BookEntry)
	b.tops = make(map[int64]*model.BookTop)
}

// Tracking reports whether books have been loaded for the contract.
func (b *Books) Tracking(contractID int64) bool {
	_, ok := b.entries[contractID]
	return ok
}

// Top returns the stored top of book for a contract.
func (b *Books) Top(contractID int64) (*model.BookTop, bool) {
	top, ok := b.tops[contractID]
	return top, ok
}

// DropState discards the entry map for a contract, signalling that its
// books must be reloaded before they can be trusted again.
func (b *Books) DropState(contractID int64) {
	delete(b.entries, contractID)
}

// ApplyEntry upserts a book entry under the clock guard. A no-op when the
// contract is not tracked. Entries older than the stored clock are dropped.
func (b *Books) ApplyEntry(contractID int64, entry model.BookEntry) bool {
	book, ok := b.entries[contractID]
	if !ok {
		return false
	}
	if existing, ok := book[entry.MID]; ok && entry.Clock < existing.Clock {
		b.log.Debug().Int64("contract_id", contractID).Str("mid", entry.MID).
			Int64("entry_clock", entry.Clock).Int64("stored_clock", existing.Clock).
			Msg("dropping stale book entry")
		return false
	}
	stored := entry
	book[entry.MID] = &stored
	return true
}

// DeleteEntry removes an order's book entry. A no-op when the contract is
// not tracked.
func (b *Books) DeleteEntry(contractID int64, mid string) {
	book, ok := b.entries[contractID]
	if !ok {
		return
	}
	delete(book, mid)
}

// ReplaceAll installs a freshly fetched snapshot wholesale, discarding any
// previous entries, and recomputes the top.
func (b *Books) ReplaceAll(snapshot model.BookSnapshot) {
	b.entries[snapshot.ContractID] = make(map[string]*model.BookEntry, len(snapshot.Entries))
	for _, entry := range snapshot.Entries {
		b.ApplyEntry(snapshot.ContractID, entry)
	}
	b.RecomputeTop(snapshot.ContractID)
}

// RecomputeTop derives the top from a full scan of the entries and stores
// it if it is newer than the stored top. Returns the derived top.
func (b *Books) RecomputeTop(contractID int64) model.BookTop {
	top := model.BookTop{ContractID: contractID, Clock: -1}
	for _, entry := range b.entries[contractID] {
		if entry.IsAsk {
			if top.Ask == 0 || entry.Price < top.Ask {
				top.Ask = entry.Price
			}
		} else {
			if top.Bid == 0 || entry.Price > top.Bid {
				top.Bid = entry.Price
			}
		}
		if entry.Clock > top.Clock {
			top.Clock = entry.Clock
		}
	}
	if stored, ok := b.tops[contractID]; !ok || stored.Clock < top.Clock {
		copied := top
		b.tops[contractID] = &copied
	}
	return top
}

// ApplyTop offers a pushed top-of-book under the clock guard. Equal clocks
// with identical prices are duplicates; equal clocks with differing prices
// are a conflict and the stored top is retained.
func (b *Books) ApplyTop(top model.BookTop) TopApplyResult {
	stored, ok := b.tops[top.ContractID]
	if !ok {
		copied := top
		b.tops[top.ContractID] = &copied
		return TopFirst
	}
	switch {
	case stored.Clock < top.Clock:
		copied := top
		b.tops[top.ContractID] = &copied
		return TopApplied
	case stored.Clock == top.Clock:
		if stored.Bid == top.Bid && stored.Ask == top.Ask {
			return TopDuplicate
		}
		return TopConflict
	default:
		return TopStale
	}
}

// MaxEntryClock returns the largest clock among a contract's entries, or -1
// when none are tracked.
func (b *Books) MaxEntryClock(contractID int64) int64 {
	max := int64(-1)
	for _, entry := range b.entries[contractID] {
		if entry.Clock > max {
			max = entry.Clock
		}
	}
	return max
}

// TopEntries returns the best bid and best ask entries from the tracked
// book state, as copies. Either may be nil when that side is empty.
func (b *Books) TopEntries(contractID int64) (bid, ask *model.BookEntry) {
	for _, entry := range b.entries[contractID] {
		if entry.IsAsk {
			if ask == nil || entry.Price < ask.Price {
				copied := *entry
				ask = &copied
			}
		} else {
			if bid == nil || entry.Price > bid.Price {
				copied := *entry
				bid = &copied
			}
		}
	}
	return bid, ask
}

// TrackedIDs returns the contracts with loaded books.
func (b *Books) TrackedIDs() []int64 {
	out := make([]int64, 0, len(b.entries))
	for id := range b.entries {
		out = append(out, id)
	}
	return out
}
