package server

import (
	"ledger-service/internal/config"
	"ledger-service/internal/domain"
	hrest "ledger-service/internal/handler/rest"
	publisher "ledger-service/internal/pub"
	"ledger-service/internal/repository"
	"ledger-service/internal/usecase"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// NewLedgerServer wires the service and blocks serving HTTP.
func NewLedgerServer(cfg config.AppConfig, logger *zap.Logger) error {
	// --- DB connection ---
	dbpool, err := config.ConnectDB(logger)
	if err != nil {
		return err
	}
	defer dbpool.Close()

	// --- Redis client ---
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPass,
		DB:       0,
	})
	defer rdb.Close()

	// --- Kafka writer ---
	kafkaWriter := publisher.NewLedgerEventsWriter(cfg.KafkaBrokers)
	defer kafkaWriter.Close()
	events := publisher.NewLedgerEventPublisher(kafkaWriter)

	// --- Operation registry ---
	// Shared table plus this deployment's extensions, validated once.
	registry, err := domain.NewOperationRegistry(
		domain.SharedOperations(),
		domain.AppOperations(),
	)
	if err != nil {
		return err
	}

	// --- Repositories ---
	entryRepo := repository.NewEntryRepo(dbpool)

	// --- Usecases ---
	ledgerUC := usecase.NewLedgerUsecase(entryRepo, registry, rdb, events, logger)

	// --- REST handler ---
	handler := hrest.NewLedgerRestHandler(ledgerUC, cfg.APIToken, logger)
	return handler.Start(cfg.HTTPAddr)
}
