package memory

import (
	"context"
	"sync"
	"testing"

	"ledger-service/internal/domain"
	xerrors "ledger-service/internal/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryEntryStore_GetLatest_Empty(t *testing.T) {
	s := NewMemoryEntryStore()

	_, err := s.GetLatestByAccount(context.Background(), "u1")
	assert.ErrorIs(t, err, xerrors.ErrNotFound)
}

func TestMemoryEntryStore_AppendAndGetLatest(t *testing.T) {
	s := NewMemoryEntryStore()

	e1, err := s.Append(context.Background(), &domain.EntryCreate{
		AccountID:    "u1",
		Operation:    domain.OpSignupCredit,
		Delta:        3,
		BalanceAfter: 3,
		Nonce:        "k1",
		PrevID:       0,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), e1.ID)

	latest, err := s.GetLatestByAccount(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, e1.ID, latest.ID)
	assert.Equal(t, int64(3), latest.BalanceAfter)
}

func TestMemoryEntryStore_Append_StalePrevID(t *testing.T) {
	s := NewMemoryEntryStore()

	_, err := s.Append(context.Background(), &domain.EntryCreate{
		AccountID: "u1", Operation: domain.OpSignupCredit, Delta: 3, BalanceAfter: 3, Nonce: "k1", PrevID: 0,
	})
	require.NoError(t, err)

	// Second writer still thinks the account is empty.
	_, err = s.Append(context.Background(), &domain.EntryCreate{
		AccountID: "u1", Operation: domain.OpDailyReward, Delta: 1, BalanceAfter: 1, Nonce: "k2", PrevID: 0,
	})
	assert.ErrorIs(t, err, xerrors.ErrWriteConflict)
}

func TestMemoryEntryStore_Append_ConcurrentSamePrev_OneWins(t *testing.T) {
	s := NewMemoryEntryStore()

	_, err := s.Append(context.Background(), &domain.EntryCreate{
		AccountID: "u1", Operation: domain.OpSignupCredit, Delta: 3, BalanceAfter: 3, Nonce: "k1", PrevID: 0,
	})
	require.NoError(t, err)

	const writers = 16
	var wg sync.WaitGroup
	var mu sync.Mutex
	wins, conflicts := 0, 0

	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Append(context.Background(), &domain.EntryCreate{
				AccountID: "u1", Operation: domain.OpDailyReward, Delta: 1, BalanceAfter: 4, Nonce: "k2", PrevID: 1,
			})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				wins++
			} else if err == xerrors.ErrWriteConflict {
				conflicts++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Equal(t, writers-1, conflicts)
}

func TestMemoryEntryStore_ListByAccount(t *testing.T) {
	s := NewMemoryEntryStore()

	_, err := s.ListByAccount(context.Background(), "u1")
	assert.ErrorIs(t, err, xerrors.ErrNotFound)

	_, err = s.Append(context.Background(), &domain.EntryCreate{
		AccountID: "u1", Operation: domain.OpSignupCredit, Delta: 3, BalanceAfter: 3, Nonce: "k1", PrevID: 0,
	})
	require.NoError(t, err)
	_, err = s.Append(context.Background(), &domain.EntryCreate{
		AccountID: "u2", Operation: domain.OpSignupCredit, Delta: 3, BalanceAfter: 3, Nonce: "k1", PrevID: 0,
	})
	require.NoError(t, err)
	_, err = s.Append(context.Background(), &domain.EntryCreate{
		AccountID: "u1", Operation: domain.OpDailyReward, Delta: 1, BalanceAfter: 4, Nonce: "k2", PrevID: 1,
	})
	require.NoError(t, err)

	entries, err := s.ListByAccount(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, domain.OpSignupCredit, entries[0].Operation)
	assert.Equal(t, domain.OpDailyReward, entries[1].Operation)
	assert.Less(t, entries[0].ID, entries[1].ID)
}
