// Package kafka writes notifications as JSON envelopes to a Kafka topic.
package kafka

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"maillog/internal/mail"
	"maillog/internal/transport"
)

const DefaultTopic = "maillog-notifications"

type Config struct {
	Brokers []string
	Topic   string
	// Key is the message key. Empty uses the message title.
	Key string
}

// writer is the subset of *kafka.Writer used here.
type writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Transport struct {
	w   writer
	key string
}

func New(cfg Config) (*Transport, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka: no brokers")
	}
	topic := cfg.Topic
	if topic == "" {
		topic = DefaultTopic
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
	}
	return &Transport{w: w, key: cfg.Key}, nil
}

// Send writes synchronously so delivery errors reach the logger's Flush.
func (t *Transport) Send(ctx context.Context, msg *mail.Message) error {
	if msg == nil {
		return transport.ErrNilMessage
	}
	env := transport.NewEnvelope(msg)
	value, err := env.Marshal()
	if err != nil {
		return err
	}
	key := t.key
	if key == "" {
		key = env.Title
	}
	err = t.w.WriteMessages(ctx, kafka.Message{
		Key:     []byte(key),
		Value:   value,
		Time:    time.Now(),
		Headers: []kafka.Header{{Key: "maillog-id", Value: []byte(env.ID)}},
	})
	if err != nil {
		return fmt.Errorf("kafka: write: %w", err)
	}
	return nil
}

func (t *Transport) Close() error {
	return t.w.Close()
}
