// Package worker consumes application events off the queue and refreshes
// derived state: the redis stats cache and, through it, the SSE dashboard
// streams.
package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/streadway/amqp"

	"github.com/ststudios/whitelist/broker"
	"github.com/ststudios/whitelist/cache"
	"github.com/ststudios/whitelist/types"
)

// Worker is the queue consumer
type Worker struct {
	conn      *amqp.Connection
	channel   *amqp.Channel
	queueName string
	cache     *cache.Service
	logger    *logrus.Entry
}

// NewWorker opens a consuming channel on the given connection. The queue is
// declared through the broker package so publisher and consumer always use
// equivalent arguments.
func NewWorker(conn *amqp.Connection, queueName string, cacheSvc *cache.Service, logger *logrus.Entry) (*Worker, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, err
	}
	if _, err := broker.DeclareQueue(ch, queueName); err != nil {
		return nil, err
	}
	if err := ch.Qos(1, 0, false); err != nil {
		return nil, err
	}
	return &Worker{
		conn:      conn,
		channel:   ch,
		queueName: queueName,
		cache:     cacheSvc,
		logger:    logger,
	}, nil
}

// Start consumes events until the channel closes. wg is released once the
// consumer is registered so callers can sequence startup.
func (w *Worker) Start(wg *sync.WaitGroup) {
	log := w.logger
	msgs, err := w.channel.Consume(
		w.queueName,
		"",    // consumer
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		log.WithFields(logrus.Fields{
			"err": err.Error(),
		}).Error("Unable to register queue consumer")
		wg.Done()
		return
	}
	wg.Done()
	log.Info("Worker started, listening for application events")

	for d := range msgs {
		event, err := deserialize(d.Body)
		if err != nil {
			log.WithFields(logrus.Fields{
				"err": err.Error(),
			}).Error("Unable to decode application event, dead-lettering")
			d.Nack(false, false)
			continue
		}
		log.WithFields(logrus.Fields{
			"kind":      event.Kind,
			"id":        event.Application.ID,
			"applicant": event.Application.ApplicantID,
		}).Info("Received application event")

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err = w.cache.RefreshStats(ctx)
		cancel()
		if err != nil {
			log.WithFields(logrus.Fields{
				"err": err.Error(),
			}).Error("Unable to refresh stats cache, dead-lettering event")
			d.Nack(false, false)
			continue
		}
		d.Ack(false)
	}
}

// Close shuts the consuming channel down
func (w *Worker) Close() error {
	return w.channel.Close()
}

func deserialize(body []byte) (types.ApplicationEvent, error) {
	var event types.ApplicationEvent
	err := json.NewDecoder(bytes.NewReader(body)).Decode(&event)
	return event, err
}
