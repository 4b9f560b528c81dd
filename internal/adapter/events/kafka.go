package events

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"bitguardian/internal/usecase/lending"

	"github.com/segmentio/kafka-go"
)

// messageWriter is the part of *kafka.Writer the publisher needs.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes loan lifecycle events keyed by loan id, so every
// event of one loan lands on the same partition.
type KafkaPublisher struct{ w messageWriter }

// NewKafkaPublisher writes each event on its own; Publish runs inside the
// submission request, so it must not wait for a batch to fill.
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{w: &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
		BatchSize:              1,
		BatchTimeout:           10 * time.Millisecond,
		WriteTimeout:           5 * time.Second,
	}}
}

func (p *KafkaPublisher) Publish(ctx context.Context, ev lending.Event) error {
	msg, err := toMessage(ev)
	if err != nil {
		return err
	}
	return p.w.WriteMessages(ctx, msg)
}

func (p *KafkaPublisher) Close() error { return p.w.Close() }

func toMessage(ev lending.Event) (kafka.Message, error) {
	body, err := json.Marshal(ev)
	if err != nil {
		return kafka.Message{}, err
	}
	return kafka.Message{
		Key:   []byte(strconv.FormatUint(ev.LoanID, 10)),
		Value: body,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(ev.Type)},
		},
		Time: ev.At,
	}, nil
}
