// Package memory is an in-memory EntryRepository used by tests and local
// development. It enforces the same conditional-append contract as the
// Postgres store so the engine's retry path behaves identically.
package memory

import (
	"context"
	"sync"
	"time"

	"ledger-service/internal/domain"
	xerrors "ledger-service/internal/pkg/errors"
	"ledger-service/internal/repository"
)

type MemoryEntryStore struct {
	mu      sync.Mutex
	nextID  int64
	entries []*domain.LedgerEntry
	latest  map[string]*domain.LedgerEntry // account_id -> latest entry
}

func NewMemoryEntryStore() *MemoryEntryStore {
	return &MemoryEntryStore{
		latest: make(map[string]*domain.LedgerEntry),
	}
}

func (m *MemoryEntryStore) GetLatestByAccount(ctx context.Context, accountID string) (*domain.LedgerEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.latest[accountID]
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (m *MemoryEntryStore) Append(ctx context.Context, e *domain.EntryCreate) (*domain.LedgerEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Same check the UNIQUE (account_id, prev_id) index performs in Postgres.
	var latestID int64
	if prev, ok := m.latest[e.AccountID]; ok {
		latestID = prev.ID
	}
	if latestID != e.PrevID {
		return nil, xerrors.ErrWriteConflict
	}

	m.nextID++
	entry := &domain.LedgerEntry{
		ID:           m.nextID,
		AccountID:    e.AccountID,
		Operation:    e.Operation,
		Delta:        e.Delta,
		BalanceAfter: e.BalanceAfter,
		Nonce:        e.Nonce,
		CreatedAt:    time.Now(),
	}
	m.entries = append(m.entries, entry)
	m.latest[e.AccountID] = entry

	cp := *entry
	return &cp, nil
}

func (m *MemoryEntryStore) ListByAccount(ctx context.Context, accountID string) ([]*domain.LedgerEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*domain.LedgerEntry
	for _, e := range m.entries {
		if e.AccountID == accountID {
			cp := *e
			out = append(out, &cp)
		}
	}
	if len(out) == 0 {
		return nil, xerrors.ErrNotFound
	}
	return out, nil
}

var _ repository.EntryRepository = (*MemoryEntryStore)(nil)
