package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"fleetbook/pkg/logger"
)

// Event types emitted by the services. The key is the aggregate ID so all
// events for one vehicle or group land on the same partition, in order.
const (
	TypeBookingCreated = "booking.created"
	TypeGroupCreated   = "group.created"
	TypeGroupDeleted   = "group.deleted"
	TypeMemberJoined   = "group.member.joined"
	TypeMemberLeft     = "group.member.left"
	TypeVehicleCreated = "vehicle.created"
	TypeVehicleDeleted = "vehicle.deleted"
)

const (
	HeaderEventID   = "event-id"
	HeaderEventType = "event-type"
	HeaderSource    = "source"
	HeaderTimestamp = "timestamp"
)

type Event struct {
	Type    string
	Key     string
	Payload any
}

// Publisher fans domain events out to interested consumers. Publishing is
// best effort: callers log failures but never fail the user operation.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

type kafkaPublisher struct {
	writer *kafka.Writer
	source string
	log    *logger.Logger
}

func NewKafkaPublisher(brokers []string, topic, source string, log *logger.Logger) Publisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 10 * time.Millisecond,
	}

	log.Info("Kafka event publisher initialized", "brokers", brokers, "topic", topic)

	return &kafkaPublisher{
		writer: writer,
		source: source,
		log:    log,
	}
}

func (p *kafkaPublisher) Publish(ctx context.Context, event Event) error {
	value, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("failed to encode event payload: %w", err)
	}

	now := time.Now().UTC()
	msg := kafka.Message{
		Key:   []byte(event.Key),
		Value: value,
		Time:  now,
		Headers: []kafka.Header{
			{Key: HeaderEventID, Value: []byte(uuid.NewString())},
			{Key: HeaderEventType, Value: []byte(event.Type)},
			{Key: HeaderSource, Value: []byte(p.source)},
			{Key: HeaderTimestamp, Value: []byte(now.Format(time.RFC3339))},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish %s event: %w", event.Type, err)
	}
	return nil
}

func (p *kafkaPublisher) Close() error {
	return p.writer.Close()
}
