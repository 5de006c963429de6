// Package broker publishes application events to RabbitMQ after successful
// workflow calls. Publishing is best-effort from the gateways' perspective:
// the store write has already committed, so a publish failure is logged and
// never fails the request.
package broker

import (
	"bytes"
	"encoding/json"

	"github.com/sirupsen/logrus"
	"github.com/streadway/amqp"

	"github.com/ststudios/whitelist/types"
)

// Service wraps an amqp channel bound to the application events queue
type Service struct {
	conn    *amqp.Connection
	Channel *amqp.Channel
	queue   amqp.Queue
	logger  *logrus.Entry
}

// queueArgs are the declaration arguments for the events queue. Publisher
// and consumer must declare with the same table: an inequivalent
// redeclaration is a channel error in AMQP 0-9-1.
func queueArgs() amqp.Table {
	return amqp.Table{
		// Unprocessable messages land on the dead-letter exchange with a
		// 24 hour TTL for later inspection
		"x-dead-letter-exchange": "dead.letter.ex",
		"x-message-ttl":          int32(86400000),
	}
}

// DeclareQueue declares the durable events queue on the given channel. Both
// the broker and the worker go through here so their declarations stay
// equivalent.
func DeclareQueue(ch *amqp.Channel, queueName string) (amqp.Queue, error) {
	return ch.QueueDeclare(
		queueName,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		queueArgs(),
	)
}

// NewService opens a channel on the given connection and declares the
// durable events queue.
func NewService(conn *amqp.Connection, queueName string, logger *logrus.Entry) (*Service, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, err
	}
	q, err := DeclareQueue(ch, queueName)
	if err != nil {
		return nil, err
	}
	return &Service{
		conn:    conn,
		Channel: ch,
		queue:   q,
		logger:  logger,
	}, nil
}

// Publish sends one application event to the queue
func (s *Service) Publish(event types.ApplicationEvent) error {
	body, err := serialize(event)
	if err != nil {
		return err
	}
	return s.Channel.Publish(
		"",           // exchange
		s.queue.Name, // routing key
		false,        // mandatory
		false,        // immediate
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			Body:         body,
		})
}

// PublishLogged publishes and downgrades failures to a log line. Gateways
// use it after the workflow has already committed.
func (s *Service) PublishLogged(event types.ApplicationEvent) {
	if err := s.Publish(event); err != nil {
		s.logger.WithFields(logrus.Fields{
			"err":  err.Error(),
			"kind": event.Kind,
			"id":   event.Application.ID,
		}).Error("Unable to publish application event")
	}
}

func serialize(event types.ApplicationEvent) ([]byte, error) {
	var b bytes.Buffer
	err := json.NewEncoder(&b).Encode(event)
	return b.Bytes(), err
}
