package queue

import (
	"github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"
)

// Publisher fans stored webhook events out to RabbitMQ for external
// consumers. It is strictly best-effort: publish failures are logged and
// never affect the ingestion pipeline.
type Publisher struct {
	conn    *amqp091.Connection
	channel *amqp091.Channel
	queue   string
	prefix  string
}

// NewPublisher connects to RabbitMQ. An empty URL disables publishing and
// returns a nil Publisher, which callers treat as "not configured".
func NewPublisher(url, queueName, prefix string) (*Publisher, error) {
	if url == "" {
		log.Info().Msg("RABBITMQ_URL is not set. RabbitMQ publishing disabled.")
		return nil, nil
	}

	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, err
	}
	channel, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	log.Info().
		Str("queue", queueName).
		Str("prefix", prefix).
		Msg("RabbitMQ connection established.")

	return &Publisher{
		conn:    conn,
		channel: channel,
		queue:   queueName,
		prefix:  prefix,
	}, nil
}

// queueName builds the destination queue for an event type.
func (p *Publisher) queueName() string {
	return p.prefix + "_" + p.queue
}

// Publish declares the queue (idempotent) and publishes one event payload.
func (p *Publisher) Publish(eventType string, data []byte) error {
	queueName := p.queueName()

	_, err := p.channel.QueueDeclare(
		queueName,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		log.Error().Err(err).Str("queue", queueName).Msg("Could not declare RabbitMQ queue")
		return err
	}

	err = p.channel.Publish(
		"",        // exchange (default)
		queueName, // routing key = queue
		false,     // mandatory
		false,     // immediate
		amqp091.Publishing{
			ContentType: "application/json",
			Body:        data,
		},
	)
	if err != nil {
		log.Error().Err(err).Str("eventType", eventType).Str("queue", queueName).Msg("Could not publish to RabbitMQ")
	} else {
		log.Debug().Str("eventType", eventType).Str("queue", queueName).Msg("Published event to RabbitMQ")
	}
	return err
}

// Close shuts the channel and connection down.
func (p *Publisher) Close() {
	if p == nil {
		return
	}
	if p.channel != nil {
		_ = p.channel.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
}
