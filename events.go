package ledgerxgo

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
)

// TransferCompleted is emitted after a transfer has committed. Consumers
// must treat it as at-most-once; the ledger is the source of truth.
type TransferCompleted struct {
	EventID   string          `json:"event_id"`
	Seq       int64           `json:"seq"`
	Sender    string          `json:"sender"`
	Recipient string          `json:"recipient"`
	Amount    decimal.Decimal `json:"amount"`
	Timestamp time.Time       `json:"timestamp"`
}

func NewTransferCompleted(e LedgerEntry) TransferCompleted {
	return TransferCompleted{
		EventID:   uuid.NewString(),
		Seq:       e.Seq,
		Sender:    e.Sender,
		Recipient: e.Recipient,
		Amount:    e.Amount,
		Timestamp: e.Timestamp,
	}
}

type Publisher interface {
	Publish(ctx context.Context, event TransferCompleted) error
}

// NopPublisher drops every event. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, TransferCompleted) error { return nil }

type KafkaPublisher struct {
	writer *kafka.Writer
}

var (
	_ Publisher = (*KafkaPublisher)(nil)
	_ Publisher = NopPublisher{}
)

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Topic:    topic,
			Balancer: &kafka.LeastBytes{},
		},
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, event TransferCompleted) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.Sender),
		Value: data,
	})
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
