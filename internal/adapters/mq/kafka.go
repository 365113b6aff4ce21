package mq

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaTransport produces to one topic, partitioning by message key.
type KafkaTransport struct {
	writer     messageWriter
	brokers    []string
	topic      string
	partitions func(ctx context.Context) (bool, error)
}

// NewKafka builds a synchronous producer. Connections are opened lazily.
func NewKafka(brokers []string, topic, clientID string, timeout time.Duration) (*KafkaTransport, error) {
	if len(brokers) == 0 {
		return nil, ErrNoBrokers
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		BatchTimeout:           5 * time.Millisecond,
		WriteTimeout:           timeout,
		AllowAutoTopicCreation: true,
		Transport:              &kafka.Transport{ClientID: clientID},
	}
	return newKafkaTransport(w, brokers, topic), nil
}

func newKafkaTransport(w messageWriter, brokers []string, topic string) *KafkaTransport {
	k := &KafkaTransport{writer: w, brokers: brokers, topic: topic}
	k.partitions = k.readPartitions
	return k
}

// Name implements Transport.
func (k *KafkaTransport) Name() string { return "kafka" }

// Send writes msgs in one produce call.
func (k *KafkaTransport) Send(ctx context.Context, msgs []Message) error {
	records := make([]kafka.Message, len(msgs))
	for i, m := range msgs {
		records[i] = kafka.Message{Key: []byte(m.Key), Value: m.Payload}
	}

	err := k.writer.WriteMessages(ctx, records...)
	if err == nil {
		return nil
	}
	var werrs kafka.WriteErrors
	if errors.As(err, &werrs) {
		for _, e := range werrs {
			if e != nil {
				return partialFailure(werrs.Count(), len(msgs), e)
			}
		}
	}
	return fmt.Errorf("kafka produce to %s: %w", k.topic, err)
}

// Ping checks that a broker answers and the topic has partitions.
func (k *KafkaTransport) Ping(ctx context.Context) (bool, error) {
	return k.partitions(ctx)
}

func (k *KafkaTransport) readPartitions(ctx context.Context) (bool, error) {
	var lastErr error
	for _, broker := range k.brokers {
		conn, err := kafka.DialContext(ctx, "tcp", broker)
		if err != nil {
			lastErr = err
			continue
		}
		if dl, ok := ctx.Deadline(); ok {
			_ = conn.SetDeadline(dl)
		}
		parts, err := conn.ReadPartitions(k.topic)
		_ = conn.Close()
		if err != nil {
			return false, fmt.Errorf("read partitions of %s: %w", k.topic, err)
		}
		if len(parts) == 0 {
			return false, fmt.Errorf("%w: %s", ErrTopicMissing, k.topic)
		}
		return true, nil
	}
	return false, lastErr
}

// Close flushes and closes the writer.
func (k *KafkaTransport) Close() error {
	return k.writer.Close()
}
