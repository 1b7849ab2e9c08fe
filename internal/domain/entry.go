package domain

import "time"

// LedgerEntry is a single immutable record in an account's ledger chain.
// ID is the global sequence id assigned by the store at commit time; the
// per-account ordering of IDs is the ordering of balances.
type LedgerEntry struct {
	ID           int64         `json:"id"`
	AccountID    string        `json:"owner_id"`
	Operation    OperationKind `json:"operation"`
	Delta        int64         `json:"delta"`
	BalanceAfter int64         `json:"amount"`
	Nonce        string        `json:"nonce"`
	CreatedAt    time.Time     `json:"created_at"`
}

// EntryCreate carries the fields the engine computes before an append.
// PrevID is the latest sequence id observed while computing BalanceAfter
// (0 for a new account); the store refuses the append if the account has
// moved past it.
type EntryCreate struct {
	AccountID    string
	Operation    OperationKind
	Delta        int64
	BalanceAfter int64
	Nonce        string
	PrevID       int64
}

// Balance is the derived read model: the balance_after of the latest entry.
type Balance struct {
	AccountID string `json:"owner_id"`
	Amount    int64  `json:"amount"`
}
