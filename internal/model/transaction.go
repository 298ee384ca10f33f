package model

// Transaction is one ledger debit/credit against the trader's account
// balances. Pre/post balances are carried so replay can cross-check that
// the applied amount matches what the exchange recorded.
type Transaction struct {
	Asset  string
	Amount int64
	State  string // only "executed" transactions are replayed

	DebitAccountField string
	DebitPreBalance   *int64
	DebitPostBalance  *int64

	CreditAccountField string
	CreditPreBalance   *int64
	CreditPostBalance  *int64
}

// BalanceKind partitions an account balance by how the funds are held.
type BalanceKind string

const (
	BalanceAvailable        BalanceKind = "available_balance"
	BalancePositionLocked   BalanceKind = "position_locked_amount"
	BalanceWithdrawalLocked BalanceKind = "withdrawal_locked_amount"
)
