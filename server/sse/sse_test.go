package sse

import (
	"bytes"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testBroker() *Broker {
	logger := logrus.New()
	logger.SetOutput(bytes.NewBuffer(nil))
	return NewBroker(logrus.NewEntry(logger))
}

// A client joining while the Notifier buffer is already full must not stall
// the broker loop: onJoin publishes from inside Listen, so a blocking send
// there would deadlock the loop against its own channel.
func TestListenSurvivesOnJoinWithFullBuffer(t *testing.T) {
	b := testBroker()
	b.Notifier <- []byte(`{"stale":true}`)

	go b.Listen(func() error {
		b.Publish([]byte(`{"fresh":true}`))
		return nil
	})

	client := make(chan []byte, 1)
	select {
	case b.newClients <- client:
	case <-time.After(2 * time.Second):
		t.Fatal("broker loop never accepted the client")
	}

	select {
	case msg := <-client:
		assert.Equal(t, `{"fresh":true}`, string(msg))
	case <-time.After(2 * time.Second):
		t.Fatal("client never received the onJoin payload")
	}
}

func TestPublishReplacesStalePayload(t *testing.T) {
	b := testBroker()

	b.Publish([]byte("first"))
	b.Publish([]byte("second"))

	select {
	case msg := <-b.Notifier:
		assert.Equal(t, "second", string(msg))
	default:
		t.Fatal("expected a queued payload")
	}
}

func TestBroadcastReachesAllClients(t *testing.T) {
	b := testBroker()
	go b.Listen(nil)

	first := make(chan []byte, 1)
	second := make(chan []byte, 1)
	b.newClients <- first
	b.newClients <- second

	b.Publish([]byte("stats"))

	for _, client := range []chan []byte{first, second} {
		select {
		case msg := <-client:
			require.Equal(t, "stats", string(msg))
		case <-time.After(2 * time.Second):
			t.Fatal("client never received the broadcast")
		}
	}
}
