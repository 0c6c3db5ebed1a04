package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/IBM/sarama"

	"mobile-home-delivery/internal/domain"
)

// eventMessage is the JSON published for every outbox row.
type eventMessage struct {
	ID         string         `json:"id"`
	Event      string         `json:"event"`
	DeliveryID int64          `json:"delivery_id"`
	Payload    map[string]any `json:"payload"`
	CreatedAt  time.Time      `json:"created_at"`
}

// KafkaNotifier publishes every event to a topic, keyed by delivery id.
type KafkaNotifier struct {
	producer sarama.SyncProducer
	topic    string
}

// NewKafkaProducer builds a SyncProducer that waits for all replicas.
func NewKafkaProducer(brokers []string) (sarama.SyncProducer, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 5
	cfg.Producer.Retry.Backoff = 100 * time.Millisecond
	cfg.Producer.Return.Successes = true
	cfg.Producer.Idempotent = true
	cfg.Net.MaxOpenRequests = 1
	cfg.Version = sarama.V2_6_0_0

	p, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}
	return p, nil
}

// NewKafkaNotifier wraps producer. The caller owns closing it.
func NewKafkaNotifier(producer sarama.SyncProducer, topic string) *KafkaNotifier {
	return &KafkaNotifier{producer: producer, topic: topic}
}

// Name implements Notifier.
func (k *KafkaNotifier) Name() string { return "kafka" }

// Handles implements Notifier.
func (k *KafkaNotifier) Handles(domain.Notification) bool { return true }

// Send implements Notifier.
func (k *KafkaNotifier) Send(_ context.Context, n domain.Notification) error {
	body, err := json.Marshal(eventMessage{
		ID:         n.ID.String(),
		Event:      string(n.Event),
		DeliveryID: n.DeliveryID,
		Payload:    n.Payload,
		CreatedAt:  n.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	_, _, err = k.producer.SendMessage(&sarama.ProducerMessage{
		Topic: k.topic,
		Key:   sarama.StringEncoder(strconv.FormatInt(n.DeliveryID, 10)),
		Value: sarama.ByteEncoder(body),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event"), Value: []byte(n.Event)},
			{Key: []byte("id"), Value: []byte(n.ID.String())},
		},
	})
	if err != nil {
		return fmt.Errorf("publish to %s: %w", k.topic, err)
	}
	return nil
}
