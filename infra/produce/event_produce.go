package produce

import (
	"context"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	IngestEventExchange = "ingest.events"
	EventContentType    = "application/json"
)

// amqpChannel is the part of *amqp.Channel the event service uses
type amqpChannel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
	Tx() error
	TxCommit() error
	TxRollback() error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// EventStreamService publishes dataset records to a topic exchange. The
// stream name is the routing key and each stream gets a durable queue of the
// same name bound on first use.
type EventStreamService struct {
	channel amqpChannel

	mu       sync.Mutex
	declared map[string]struct{}
}

func InitEventStreamService(channel amqpChannel) *EventStreamService {
	service := &EventStreamService{
		channel:  channel,
		declared: make(map[string]struct{}),
	}

	err := channel.ExchangeDeclare(
		IngestEventExchange,
		"topic",
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		panic("Failed to declare Ingest event exchange: " + err.Error())
	}

	if err := channel.Tx(); err != nil {
		panic("Failed to put event channel into transaction mode: " + err.Error())
	}

	return service
}

// PublishBatch sends the events in order inside one channel transaction, so a
// batch is delivered completely or not at all
func (s *EventStreamService) PublishBatch(ctx context.Context, stream string, events [][]byte) error {
	if len(events) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.declareStream(stream); err != nil {
		return err
	}

	now := time.Now()
	for i, body := range events {
		err := s.channel.PublishWithContext(
			ctx,
			IngestEventExchange,
			stream,
			false,
			false,
			amqp.Publishing{
				ContentType:  EventContentType,
				Body:         body,
				DeliveryMode: amqp.Persistent,
				Timestamp:    now,
			},
		)
		if err != nil {
			if rbErr := s.channel.TxRollback(); rbErr != nil {
				return fmt.Errorf("publish event %d: %w (rollback failed: %v)", i, err, rbErr)
			}
			return fmt.Errorf("publish event %d: %w", i, err)
		}
	}

	if err := s.channel.TxCommit(); err != nil {
		return fmt.Errorf("commit event batch: %w", err)
	}
	return nil
}

func (s *EventStreamService) declareStream(stream string) error {
	if _, ok := s.declared[stream]; ok {
		return nil
	}

	_, err := s.channel.QueueDeclare(
		stream,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("declare queue %s: %w", stream, err)
	}

	if err := s.channel.QueueBind(stream, stream, IngestEventExchange, false, nil); err != nil {
		return fmt.Errorf("bind queue %s: %w", stream, err)
	}

	s.declared[stream] = struct{}{}
	return nil
}
