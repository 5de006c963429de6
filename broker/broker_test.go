package broker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ststudios/whitelist/types"
)

// Publisher and consumer declare the events queue through DeclareQueue, so
// the argument table here is the single source of truth. Losing the
// dead-letter config, or diverging between the two sides, makes the second
// declaration a channel error on a live broker.
func TestQueueArgsCarryDeadLetterConfig(t *testing.T) {
	args := queueArgs()
	assert.Equal(t, "dead.letter.ex", args["x-dead-letter-exchange"])
	assert.Equal(t, int32(86400000), args["x-message-ttl"])
}

func TestSerializeRoundTrip(t *testing.T) {
	event := types.ApplicationEvent{
		Kind: types.EventApproved,
		Application: types.Application{
			ID:          "1",
			ApplicantID: "100",
			Status:      types.StatusApproved,
		},
	}
	body, err := serialize(event)
	require.NoError(t, err)
	assert.Contains(t, string(body), `"kind":"approved"`)
	assert.Contains(t, string(body), `"discord_id":"100"`)
}
