package infra

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/tnqbao/gau-ingest-pipeline/config"
)

// KafkaClient publishes to any topic through one writer; the topic is set per
// message
type KafkaClient struct {
	Writer  *kafka.Writer
	Brokers []string
}

func InitKafkaClient(cfg *config.EnvConfig) *KafkaClient {
	if len(cfg.Kafka.Brokers) == 0 {
		panic("Kafka brokers are not configured")
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Kafka.Brokers...),
		Balancer:               &kafka.LeastBytes{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
		BatchTimeout:           50 * time.Millisecond,
	}

	log.Println("Kafka writer configured for brokers:", cfg.Kafka.Brokers)

	return &KafkaClient{Writer: writer, Brokers: cfg.Kafka.Brokers}
}

func (k *KafkaClient) PublishBatch(ctx context.Context, stream string, events [][]byte) error {
	if len(events) == 0 {
		return nil
	}

	messages := make([]kafka.Message, len(events))
	for i, body := range events {
		messages[i] = kafka.Message{Topic: stream, Value: body}
	}

	if err := k.Writer.WriteMessages(ctx, messages...); err != nil {
		return fmt.Errorf("write %d messages to %s: %w", len(messages), stream, err)
	}
	return nil
}

func (k *KafkaClient) Ping(ctx context.Context) error {
	conn, err := kafka.DialContext(ctx, "tcp", k.Brokers[0])
	if err != nil {
		return err
	}
	return conn.Close()
}

func (k *KafkaClient) Close() error {
	return k.Writer.Close()
}
