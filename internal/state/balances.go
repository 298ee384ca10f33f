package state

import (
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"marketmirror/internal/model"
)

// Balances maintains the trader's account balances keyed by (kind, asset).
// It is mutated from two directions: collateral feed updates overwrite a
// balance outright, and ledger transaction replay applies debit/credit
// deltas with pre/post cross-checks. Not safe for concurrent use; the
// engine serializes access.
type Balances struct {
	amounts map[model.BalanceKind]map[string]int64
	log     zerolog.Logger
}

func NewBalances(log zerolog.Logger) *Balances {
	b := &Balances{log: log}
	b.Clear()
	return b
}

func (b *Balances) Clear() {
	b.amounts = make(map[model.BalanceKind]map[string]int64)
}

// Get returns the balance for a (kind, asset) pair.
func (b *Balances) Get(kind model.BalanceKind, asset string) int64 {
	return b.amounts[kind][asset]
}

// SetExact overwrites a balance with an authoritative feed value.
func (b *Balances) SetExact(kind model.BalanceKind, asset string, amount int64) {
	byAsset, ok := b.amounts[kind]
	if !ok {
		byAsset = make(map[string]int64)
		b.amounts[kind] = byAsset
	}
	byAsset[asset] = amount
}

// ApplyTransaction replays one executed ledger transaction. The debit side
// subtracts the amount and the credit side adds it; both sides cross-check
// the applied delta against the exchange-recorded pre/post balances and
// report a mismatch as an error (the replay is then abandoned rather than
// silently drift).
func (b *Balances) ApplyTransaction(tx model.Transaction) error {
	if tx.State != "executed" {
		b.log.Warn().Str("state", tx.State).Str("asset", tx.Asset).
			Msg("skipping transaction in unknown state")
		return nil
	}
	if tx.DebitPostBalance != nil {
		if tx.DebitPreBalance != nil && *tx.DebitPostBalance-*tx.DebitPreBalance != -tx.Amount {
			return fmt.Errorf("debit balance mismatch on %s %s: pre=%d post=%d amount=%d",
				tx.Asset, tx.DebitAccountField, *tx.DebitPreBalance, *tx.DebitPostBalance, tx.Amount)
		}
		kind := model.BalanceKind(tx.DebitAccountField)
		b.SetExact(kind, tx.Asset, b.Get(kind, tx.Asset)-tx.Amount)
	}
	if tx.CreditPostBalance != nil {
		if tx.CreditPreBalance != nil && *tx.CreditPostBalance-*tx.CreditPreBalance != tx.Amount {
			return fmt.Errorf("credit balance mismatch on %s %s: pre=%d post=%d amount=%d",
				tx.Asset, tx.CreditAccountField, *tx.CreditPreBalance, *tx.CreditPostBalance, tx.Amount)
		}
		kind := model.BalanceKind(tx.CreditAccountField)
		b.SetExact(kind, tx.Asset, b.Get(kind, tx.Asset)+tx.Amount)
	}
	return nil
}

// Snapshot returns a copy of all balances for the status endpoint.
func (b *Balances) Snapshot() map[string]map[string]int64 {
	out := make(map[string]map[string]int64, len(b.amounts))
	for kind, byAsset := range b.amounts {
		copied := make(map[string]int64, len(byAsset))
		for asset, amount := range byAsset {
			copied[asset] = amount
		}
		out[string(kind)] = copied
	}
	return out
}

// Assets returns every asset with a balance of any kind, sorted.
func (b *Balances) Assets() []string {
	seen := make(map[string]struct{})
	for _, byAsset := range b.amounts {
		for asset := range byAsset {
			seen[asset] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for asset := range seen {
		out = append(out, asset)
	}
	sort.Strings(out)
	return out
}
