// Package sse streams aggregate whitelist stats to connected admin
// dashboards over Server-Sent Events.
package sse

import (
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"
)

// Broker fans events out to every connected dashboard client
type Broker struct {
	// Notifier receives payloads to broadcast to all connected clients
	Notifier chan []byte

	newClients     chan chan []byte
	closingClients chan chan []byte
	clients        map[chan []byte]bool
	logger         *logrus.Entry
}

// NewBroker creates an SSE broker; call Listen in its own goroutine before
// serving connections.
func NewBroker(logger *logrus.Entry) *Broker {
	return &Broker{
		Notifier:       make(chan []byte, 1),
		newClients:     make(chan chan []byte),
		closingClients: make(chan chan []byte),
		clients:        make(map[chan []byte]bool),
		logger:         logger,
	}
}

func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	messages := make(chan []byte)
	b.newClients <- messages
	defer func() {
		b.closingClients <- messages
	}()

	done := r.Context().Done()
	for {
		select {
		case <-done:
			return
		case msg := <-messages:
			fmt.Fprintf(w, "data: %s\n\n", msg)
			flusher.Flush()
		}
	}
}

// Publish queues a payload for broadcast without ever blocking the caller.
// A stale undelivered payload is dropped in favor of the new one; stats
// payloads are full snapshots, so only the latest matters. Listen itself
// calls into Publish through onJoin, so a blocking send here would deadlock
// the broker loop against its own channel.
func (b *Broker) Publish(payload []byte) {
	select {
	case b.Notifier <- payload:
		return
	default:
	}
	select {
	case <-b.Notifier:
	default:
	}
	select {
	case b.Notifier <- payload:
	default:
	}
}

// Listen runs the broker loop. onJoin is called when a client connects so
// the current stats can be pushed immediately instead of waiting for the
// next change.
func (b *Broker) Listen(onJoin func() error) {
	log := b.logger
	for {
		select {
		case client := <-b.newClients:
			b.clients[client] = true
			log.Debugf("SSE client connected, %d active", len(b.clients))
			if onJoin != nil {
				if err := onJoin(); err != nil {
					log.WithFields(logrus.Fields{
						"err": err.Error(),
					}).Error("Unable to push initial stats to new SSE client")
				}
			}
		case client := <-b.closingClients:
			delete(b.clients, client)
			log.Debugf("SSE client disconnected, %d active", len(b.clients))
		case event := <-b.Notifier:
			for client := range b.clients {
				select {
				case client <- event:
				default:
					// Skip clients that are not draining
				}
			}
		}
	}
}
