// ledger-service/internal/pub/pub.go
package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ledger-service/internal/domain"
	"ledger-service/internal/pkg/id"

	"github.com/segmentio/kafka-go"
)

const LedgerEventsTopic = "ledger_events"

// NewLedgerEventsWriter builds the writer for the ledger event stream.
func NewLedgerEventsWriter(brokers []string) *kafka.Writer {
	return &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Topic:    LedgerEventsTopic,
		Balancer: &kafka.LeastBytes{},
	}
}

type LedgerEventPublisher struct {
	writer *kafka.Writer
}

func NewLedgerEventPublisher(writer *kafka.Writer) *LedgerEventPublisher {
	return &LedgerEventPublisher{writer: writer}
}

type LedgerEvent struct {
	EventID      string    `json:"event_id"`
	EventType    string    `json:"event_type"` // ledger.entry.created
	OwnerID      string    `json:"owner_id"`
	Operation    string    `json:"operation"`
	Delta        int64     `json:"delta"`
	BalanceAfter int64     `json:"balance_after"`
	SequenceID   int64     `json:"sequence_id"`
	Nonce        string    `json:"nonce"`
	Timestamp    time.Time `json:"timestamp"`
}

// PublishEntryCreated publishes a committed ledger entry to the event stream.
// Messages are keyed by owner so per-account ordering survives partitioning.
func (p *LedgerEventPublisher) PublishEntryCreated(ctx context.Context, e *domain.LedgerEntry) error {
	event := LedgerEvent{
		EventID:      id.GenerateUUID("evt"),
		EventType:    "ledger.entry.created",
		OwnerID:      e.AccountID,
		Operation:    string(e.Operation),
		Delta:        e.Delta,
		BalanceAfter: e.BalanceAfter,
		SequenceID:   e.ID,
		Nonce:        e.Nonce,
		Timestamp:    time.Now(),
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(e.AccountID),
		Value: payload,
	}); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}
