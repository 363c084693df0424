package events

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"storefront/internal/domain/model"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const (
	eventVersion = 1
	producerName = "storefront-api"
)

// 送信するイベントの共通形
type Envelope struct {
	EventID      string          `json:"event_id"`
	EventType    string          `json:"event_type"`
	EventVersion int             `json:"event_version"`
	OccurredAt   time.Time       `json:"occurred_at"`
	Producer     string          `json:"producer"`
	Payload      json.RawMessage `json:"payload"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// usecase.EventPublisher のKafka実装。
// キーは注文ID / 商品IDなので、同じ対象のイベントは同じパーティションに入る
type KafkaPublisher struct {
	orders    messageWriter
	inventory messageWriter
	timeout   time.Duration
	log       *zap.Logger
}

func newWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 10 * time.Millisecond,
	}
}

func NewKafkaPublisher(brokers []string, ordersTopic, inventoryTopic string, log *zap.Logger) *KafkaPublisher {
	return newKafkaPublisher(newWriter(brokers, ordersTopic), newWriter(brokers, inventoryTopic), log)
}

func newKafkaPublisher(orders, inventory messageWriter, log *zap.Logger) *KafkaPublisher {
	if log == nil {
		log = zap.NewNop()
	}
	return &KafkaPublisher{orders: orders, inventory: inventory, timeout: 5 * time.Second, log: log}
}

func (p *KafkaPublisher) PublishOrderEvent(ctx context.Context, ev model.OrderEvent) error {
	return p.publish(ctx, p.orders, strconv.FormatInt(ev.OrderID, 10), string(ev.Type), ev.OccurredAt, ev)
}

func (p *KafkaPublisher) PublishInventoryEvent(ctx context.Context, ev model.InventoryEvent) error {
	return p.publish(ctx, p.inventory, strconv.FormatInt(ev.ProductID, 10), string(ev.Type), ev.OccurredAt, ev)
}

func (p *KafkaPublisher) publish(ctx context.Context, w messageWriter, key, eventType string, at time.Time, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	env := Envelope{
		EventID:      uuid.NewString(),
		EventType:    eventType,
		EventVersion: eventVersion,
		OccurredAt:   at.UTC(),
		Producer:     producerName,
		Payload:      body,
	}
	value, err := json.Marshal(env)
	if err != nil {
		return err
	}

	//リクエストのキャンセルに巻き込まれないように切り離す
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
	defer cancel()

	err = w.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: value,
		Time:  at,
		Headers: []kafka.Header{
			{Key: "x-event-type", Value: []byte(eventType)},
			{Key: "x-event-version", Value: []byte(strconv.Itoa(eventVersion))},
		},
	})
	if err != nil {
		return err
	}
	p.log.Debug("event published", zap.String("type", eventType), zap.String("key", key), zap.String("event_id", env.EventID))
	return nil
}

func (p *KafkaPublisher) Close() error {
	return errors.Join(p.orders.Close(), p.inventory.Close())
}
