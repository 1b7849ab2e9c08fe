package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"ledger-service/internal/domain"
	xerrors "ledger-service/internal/pkg/errors"
	publisher "ledger-service/internal/pub"
	"ledger-service/internal/repository"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	// maxApplyAttempts bounds the optimistic retry loop. A conditional-append
	// conflict means another writer advanced the same account; re-reading and
	// recomputing almost always succeeds on the next attempt.
	maxApplyAttempts = 5

	balanceCacheTTL = 30 * time.Second
)

// LedgerUsecase is the ledger engine: it owns balance computation,
// idempotency and sufficiency checks, and the per-account write discipline.
// It holds no mutable state of its own; the durable log is the only shared
// resource, so any number of engine instances can share one store.
type LedgerUsecase struct {
	entryRepo   repository.EntryRepository
	registry    *domain.OperationRegistry
	redisClient *redis.Client
	events      *publisher.LedgerEventPublisher
	logger      *zap.Logger
}

func NewLedgerUsecase(
	entryRepo repository.EntryRepository,
	registry *domain.OperationRegistry,
	redisClient *redis.Client,
	events *publisher.LedgerEventPublisher,
	logger *zap.Logger,
) *LedgerUsecase {
	return &LedgerUsecase{
		entryRepo:   entryRepo,
		registry:    registry,
		redisClient: redisClient,
		events:      events,
		logger:      logger,
	}
}

// ===============================
// READS
// ===============================

// GetBalance returns the balance_after of the account's latest entry.
// An account with no entries yields xerrors.ErrNotFound; that is different
// from a balance of 0, which only an existing account can have.
func (uc *LedgerUsecase) GetBalance(ctx context.Context, accountID string) (*domain.Balance, error) {
	if accountID == "" {
		return nil, xerrors.ErrEmptyAccountID
	}

	// Try cache first
	cacheKey := fmt.Sprintf("ledger:balance:%s", accountID)
	if val, err := uc.redisClient.Get(ctx, cacheKey).Result(); err == nil {
		var balance domain.Balance
		if jsonErr := json.Unmarshal([]byte(val), &balance); jsonErr == nil {
			return &balance, nil
		}
	}

	latest, err := uc.entryRepo.GetLatestByAccount(ctx, accountID)
	if err != nil {
		if errors.Is(err, xerrors.ErrNotFound) {
			return nil, xerrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to read balance: %w", err)
	}

	balance := &domain.Balance{AccountID: accountID, Amount: latest.BalanceAfter}
	uc.cacheBalance(ctx, balance)
	return balance, nil
}

// ListEntries returns the account's full chain in sequence order.
func (uc *LedgerUsecase) ListEntries(ctx context.Context, accountID string) ([]*domain.LedgerEntry, error) {
	if accountID == "" {
		return nil, xerrors.ErrEmptyAccountID
	}
	entries, err := uc.entryRepo.ListByAccount(ctx, accountID)
	if err != nil {
		if errors.Is(err, xerrors.ErrNotFound) {
			return nil, xerrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to list entries: %w", err)
	}
	return entries, nil
}

// ===============================
// WRITES
// ===============================

// ApplyOperation validates and appends one ledger entry for the account.
//
// The read-compute-append sequence is made atomic per account by the store's
// conditional append: the new entry is keyed on the latest sequence id
// observed in step 1, so if another writer commits in between, the append
// fails with ErrWriteConflict and the whole sequence re-runs. Domain
// rejections (unknown account, duplicate nonce, insufficient credit) are
// terminal and never retried; nothing is written on any of them.
func (uc *LedgerUsecase) ApplyOperation(ctx context.Context, accountID string, kind domain.OperationKind, nonce string) (*domain.LedgerEntry, error) {
	if accountID == "" {
		return nil, xerrors.ErrEmptyAccountID
	}
	if nonce == "" {
		return nil, xerrors.ErrEmptyIdempotencyKey
	}

	// Reject unknown kinds before touching the store.
	spec, ok := uc.registry.Lookup(kind)
	if !ok {
		return nil, xerrors.ErrInvalidOperationKind
	}

	var lastErr error
	for attempt := 1; attempt <= maxApplyAttempts; attempt++ {
		entry, err := uc.applyOnce(ctx, accountID, kind, spec, nonce)
		if err == nil {
			uc.invalidateBalance(ctx, accountID)
			uc.publishEntryCreated(ctx, entry)
			return entry, nil
		}
		if !errors.Is(err, xerrors.ErrWriteConflict) {
			return nil, err
		}
		lastErr = err
		uc.logger.Warn("ledger write conflict, retrying",
			zap.String("owner_id", accountID),
			zap.String("operation", string(kind)),
			zap.Int("attempt", attempt),
		)
	}

	uc.logger.Error("ledger write conflict retries exhausted",
		zap.String("owner_id", accountID),
		zap.String("operation", string(kind)),
	)
	return nil, fmt.Errorf("%w: %v", xerrors.ErrInternalServer, lastErr)
}

// applyOnce runs one read-validate-append pass.
func (uc *LedgerUsecase) applyOnce(ctx context.Context, accountID string, kind domain.OperationKind, spec domain.OperationSpec, nonce string) (*domain.LedgerEntry, error) {
	latest, err := uc.entryRepo.GetLatestByAccount(ctx, accountID)
	if err != nil && !errors.Is(err, xerrors.ErrNotFound) {
		return nil, fmt.Errorf("failed to read latest entry: %w", err)
	}

	var prevID, prevBalance int64
	if latest == nil {
		// Only the account-creating kind may originate the first entry.
		if !spec.CreatesAccount {
			return nil, xerrors.ErrAccountNotFound
		}
	} else {
		// Replay detection is against the latest entry only; a repeated
		// nonce after an intervening different operation is not caught.
		if latest.Operation == kind && latest.Nonce == nonce {
			return nil, xerrors.ErrDuplicateOperation
		}
		prevID = latest.ID
		prevBalance = latest.BalanceAfter
	}

	newBalance := prevBalance + spec.Delta
	if newBalance < 0 {
		return nil, xerrors.ErrInsufficientFunds
	}

	return uc.entryRepo.Append(ctx, &domain.EntryCreate{
		AccountID:    accountID,
		Operation:    kind,
		Delta:        spec.Delta,
		BalanceAfter: newBalance,
		Nonce:        nonce,
		PrevID:       prevID,
	})
}

// ===============================
// CACHE & EVENTS
// ===============================

func (uc *LedgerUsecase) cacheBalance(ctx context.Context, balance *domain.Balance) {
	cacheKey := fmt.Sprintf("ledger:balance:%s", balance.AccountID)
	if data, err := json.Marshal(balance); err == nil {
		_ = uc.redisClient.Set(ctx, cacheKey, data, balanceCacheTTL).Err()
	}
}

// invalidateBalance drops the cached balance after an append. The next
// GetBalance repopulates it from the ledger head.
func (uc *LedgerUsecase) invalidateBalance(ctx context.Context, accountID string) {
	cacheKey := fmt.Sprintf("ledger:balance:%s", accountID)
	_ = uc.redisClient.Del(ctx, cacheKey).Err()
}

// publishEntryCreated is best-effort: the entry is already durable, so a
// broker hiccup is logged instead of failing the request.
func (uc *LedgerUsecase) publishEntryCreated(ctx context.Context, entry *domain.LedgerEntry) {
	if uc.events == nil {
		return
	}
	if err := uc.events.PublishEntryCreated(ctx, entry); err != nil {
		uc.logger.Error("failed to publish ledger event",
			zap.String("owner_id", entry.AccountID),
			zap.Int64("sequence_id", entry.ID),
			zap.Error(err),
		)
	}
}
