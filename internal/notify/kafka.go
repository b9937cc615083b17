// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/samber/oops"
	skafka "github.com/segmentio/kafka-go"
)

// KafkaConfig configures the Kafka publisher.
type KafkaConfig struct {
	Brokers []string `koanf:"brokers" json:"brokers,omitempty"`
	Topic   string   `koanf:"topic" json:"topic,omitempty"`
}

// Writer is the subset of kafka.Writer the publisher uses.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...skafka.Message) error
	Close() error
}

// Event is the JSON payload published for each message. A downstream
// mail service renders and delivers it.
type Event struct {
	Type       string    `json:"type"`
	To         string    `json:"to"`
	Subject    string    `json:"subject"`
	Template   string    `json:"template"`
	Data       Data      `json:"data"`
	OccurredAt time.Time `json:"occurred_at"`
}

// EventType identifies notification events on the topic.
const EventType = "account.notification"

// KafkaPublisher publishes messages as events keyed by recipient.
type KafkaPublisher struct {
	writer Writer
	now    func() time.Time
}

// NewKafkaPublisher creates a publisher writing to cfg.Topic.
func NewKafkaPublisher(cfg KafkaConfig) *KafkaPublisher {
	w := &skafka.Writer{
		Addr:                   skafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &skafka.Hash{},
		RequiredAcks:           skafka.RequireAll,
		AllowAutoTopicCreation: false,
	}
	return NewKafkaPublisherWithWriter(w)
}

// NewKafkaPublisherWithWriter allows injecting a test writer.
func NewKafkaPublisherWithWriter(w Writer) *KafkaPublisher {
	return &KafkaPublisher{writer: w, now: time.Now}
}

// Send publishes msg. Messages for one recipient land on one partition.
func (p *KafkaPublisher) Send(ctx context.Context, msg Message) error {
	payload, err := json.Marshal(Event{
		Type:       EventType,
		To:         msg.To,
		Subject:    msg.Subject,
		Template:   msg.Template,
		Data:       msg.Data,
		OccurredAt: p.now().UTC(),
	})
	if err != nil {
		return oops.Code("NOTIFY_SEND_FAILED").With("operation", "marshal event").Wrap(err)
	}
	if err := p.writer.WriteMessages(ctx, skafka.Message{Key: []byte(msg.To), Value: payload}); err != nil {
		return oops.Code("NOTIFY_SEND_FAILED").With("operation", "write event").With("template", msg.Template).Wrap(err)
	}
	return nil
}

// Close closes the underlying writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
