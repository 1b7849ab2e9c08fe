package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ledger-service/internal/domain"
	xerrors "ledger-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// EntryRepository is the durable log store the engine writes through.
// Entries are append-only; there is no update or delete path.
type EntryRepository interface {
	// GetLatestByAccount returns the entry with the highest sequence id for
	// the account, or xerrors.ErrNotFound if the account has no entries.
	GetLatestByAccount(ctx context.Context, accountID string) (*domain.LedgerEntry, error)

	// Append commits a new entry. The append is conditional: it succeeds only
	// if e.PrevID is still the account's latest sequence id. A concurrent
	// append to the same account surfaces as xerrors.ErrWriteConflict.
	Append(ctx context.Context, e *domain.EntryCreate) (*domain.LedgerEntry, error)

	// ListByAccount returns the account's full chain in sequence order, or
	// xerrors.ErrNotFound if there are no entries.
	ListByAccount(ctx context.Context, accountID string) ([]*domain.LedgerEntry, error)
}

type entryRepo struct {
	db *pgxpool.Pool
}

func NewEntryRepo(db *pgxpool.Pool) EntryRepository {
	return &entryRepo{db: db}
}

func (r *entryRepo) GetLatestByAccount(ctx context.Context, accountID string) (*domain.LedgerEntry, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, account_id, operation, delta, balance_after, nonce, created_at
		FROM ledger_entries
		WHERE account_id=$1
		ORDER BY id DESC
		LIMIT 1
	`, accountID)

	var e domain.LedgerEntry
	err := row.Scan(&e.ID, &e.AccountID, &e.Operation, &e.Delta, &e.BalanceAfter, &e.Nonce, &e.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, xerrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get latest entry: %w", err)
	}
	return &e, nil
}

// Append relies on the UNIQUE (account_id, prev_id) index: two writers that
// observed the same latest entry produce the same prev_id, so the loser hits
// unique_violation and the engine re-reads and retries.
func (r *entryRepo) Append(ctx context.Context, e *domain.EntryCreate) (*domain.LedgerEntry, error) {
	entry := domain.LedgerEntry{
		AccountID:    e.AccountID,
		Operation:    e.Operation,
		Delta:        e.Delta,
		BalanceAfter: e.BalanceAfter,
		Nonce:        e.Nonce,
	}

	err := r.db.QueryRow(ctx, `
		INSERT INTO ledger_entries (account_id, operation, delta, balance_after, nonce, prev_id, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING id, created_at
	`, e.AccountID, e.Operation, e.Delta, e.BalanceAfter, e.Nonce, e.PrevID, time.Now()).
		Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		if xerrors.ParsePGErrorCode(err) == xerrors.PGUniqueViolation {
			return nil, xerrors.ErrWriteConflict
		}
		return nil, fmt.Errorf("failed to append entry: %w", err)
	}
	return &entry, nil
}

func (r *entryRepo) ListByAccount(ctx context.Context, accountID string) ([]*domain.LedgerEntry, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, account_id, operation, delta, balance_after, nonce, created_at
		FROM ledger_entries
		WHERE account_id=$1
		ORDER BY id ASC
	`, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list entries: %w", err)
	}
	defer rows.Close()

	var entries []*domain.LedgerEntry
	for rows.Next() {
		var e domain.LedgerEntry
		if err := rows.Scan(&e.ID, &e.AccountID, &e.Operation, &e.Delta, &e.BalanceAfter, &e.Nonce, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(entries) == 0 {
		return nil, xerrors.ErrNotFound
	}
	return entries, nil
}
