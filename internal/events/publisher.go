package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/Cryptoprojectsfun/stocktrade/internal/models"
)

// TradeEvent is the message emitted for every journaled trade attempt.
// Downstream consumers (notifications, analytics) key on the user.
type TradeEvent struct {
	TransactionID string    `json:"transaction_id"`
	UserID        string    `json:"user_id"`
	Symbol        string    `json:"symbol"`
	Quantity      float64   `json:"quantity"`
	FillPrice     float64   `json:"fill_price"`
	Status        string    `json:"status"`
	Reason        string    `json:"reason,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// Publisher emits trade events. Publishing is best effort: the trade
// pipeline never fails because an event could not be sent.
type Publisher interface {
	PublishTrade(ctx context.Context, txn *models.Transaction) error
	Close() error
}

// KafkaPublisher writes trade events to a kafka topic, partitioned by
// user so per-user event order is preserved.
type KafkaPublisher struct {
	writer *kafka.Writer
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
		},
	}
}

func (p *KafkaPublisher) PublishTrade(ctx context.Context, txn *models.Transaction) error {
	event := TradeEvent{
		TransactionID: txn.ID.String(),
		UserID:        txn.UserID,
		Symbol:        txn.Symbol,
		Quantity:      txn.Quantity,
		FillPrice:     txn.FillPrice,
		Status:        string(txn.Status),
		Reason:        txn.Reason,
		Timestamp:     txn.Timestamp,
	}

	value, err := json.Marshal(event)
	if err != nil {
		return err
	}

	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(txn.UserID),
		Value: value,
	})
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NopPublisher discards events; used when eventing is disabled.
type NopPublisher struct{}

func (NopPublisher) PublishTrade(ctx context.Context, txn *models.Transaction) error { return nil }
func (NopPublisher) Close() error                                                    { return nil }
