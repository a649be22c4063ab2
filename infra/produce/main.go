package produce

import amqp "github.com/rabbitmq/amqp091-go"

type Produce struct {
	EventService *EventStreamService
}

// InitProduce expects a channel dedicated to publishing; it is switched into
// transactional mode
func InitProduce(channel *amqp.Channel) *Produce {
	eventService := InitEventStreamService(channel)
	if eventService == nil {
		panic("Failed to initialize Event stream service")
	}

	return &Produce{
		EventService: eventService,
	}
}
