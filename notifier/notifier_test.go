package notifier_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ststudios/whitelist/discord"
	"github.com/ststudios/whitelist/notifier"
	"github.com/ststudios/whitelist/types"
)

func testLogger() *logrus.Entry {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger.WithField("origin", "test")
}

func rejectedApp() types.Application {
	return types.Application{
		ID:              "1",
		ApplicantID:     "100",
		ApplicantName:   "alice",
		GameHandle:      "AliceR",
		Status:          types.StatusRejected,
		RejectionReason: "Precisa detalhar mais",
	}
}

func TestNotifyDelivers(t *testing.T) {
	var sentEmbeds []discord.Embed
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/users/@me/channels":
			var payload map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
			assert.Equal(t, "100", payload["recipient_id"])
			json.NewEncoder(w).Encode(map[string]string{"id": "dm-chan-1"})
		case "/channels/dm-chan-1/messages":
			var msg discord.Message
			require.NoError(t, json.NewDecoder(r.Body).Decode(&msg))
			sentEmbeds = msg.Embeds
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("{}"))
		default:
			t.Errorf("unexpected request to %s", r.URL.Path)
		}
	}))
	defer api.Close()

	client := discord.NewClient("bot-token", testLogger())
	client.BaseURL = api.URL
	sink := notifier.NewDiscordSink(client, testLogger())

	delivered := sink.Notify(context.Background(), rejectedApp())
	assert.True(t, delivered)
	require.Len(t, sentEmbeds, 1)
	assert.Contains(t, sentEmbeds[0].Title, "REPROVADA")
	require.NotEmpty(t, sentEmbeds[0].Fields)
	assert.Equal(t, "Precisa detalhar mais", sentEmbeds[0].Fields[0].Value)
}

func TestNotifyApprovedEmbed(t *testing.T) {
	var sentEmbeds []discord.Embed
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/users/@me/channels" {
			json.NewEncoder(w).Encode(map[string]string{"id": "dm-chan-1"})
			return
		}
		var msg discord.Message
		json.NewDecoder(r.Body).Decode(&msg)
		sentEmbeds = msg.Embeds
		w.Write([]byte("{}"))
	}))
	defer api.Close()

	client := discord.NewClient("bot-token", testLogger())
	client.BaseURL = api.URL
	sink := notifier.NewDiscordSink(client, testLogger())

	app := rejectedApp()
	app.Status = types.StatusApproved
	app.RejectionReason = ""

	delivered := sink.Notify(context.Background(), app)
	assert.True(t, delivered)
	require.Len(t, sentEmbeds, 1)
	assert.Contains(t, sentEmbeds[0].Title, "APROVADA")
}

func TestNotifyRecipientUnreachable(t *testing.T) {
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/users/@me/channels" {
			json.NewEncoder(w).Encode(map[string]string{"id": "dm-chan-1"})
			return
		}
		// User blocked DMs
		w.WriteHeader(http.StatusForbidden)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"code":    discord.CodeCannotSendToUser,
			"message": "Cannot send messages to this user",
		})
	}))
	defer api.Close()

	client := discord.NewClient("bot-token", testLogger())
	client.BaseURL = api.URL
	sink := notifier.NewDiscordSink(client, testLogger())

	delivered := sink.Notify(context.Background(), rejectedApp())
	assert.False(t, delivered)
}

func TestNotifyAPIUnavailable(t *testing.T) {
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer api.Close()

	client := discord.NewClient("bot-token", testLogger())
	client.BaseURL = api.URL
	sink := notifier.NewDiscordSink(client, testLogger())

	delivered := sink.Notify(context.Background(), rejectedApp())
	assert.False(t, delivered)
}
