package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	logger := logrus.New()
	logger.SetOutput(bytes.NewBuffer(nil))
	client := NewClient("bot-token", logrus.NewEntry(logger))
	client.BaseURL = server.URL
	return client
}

func TestUserFromToken(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/users/@me", r.URL.Path)
		assert.Equal(t, "Bearer access-token", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(User{ID: "42", Username: "alice"})
	})

	user, err := client.UserFromToken(context.Background(), "access-token")
	require.NoError(t, err)
	assert.Equal(t, "42", user.ID)
	assert.Equal(t, "alice", user.Username)
}

func TestCreateDMChannel(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/users/@me/channels", r.URL.Path)
		assert.Equal(t, "Bot bot-token", r.Header.Get("Authorization"))

		var payload map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "42", payload["recipient_id"])

		json.NewEncoder(w).Encode(map[string]string{"id": "channel-7"})
	})

	channelID, err := client.CreateDMChannel(context.Background(), "42")
	require.NoError(t, err)
	assert.Equal(t, "channel-7", channelID)
}

func TestAPIErrorSurfacesCode(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"code":    CodeCannotSendToUser,
			"message": "Cannot send messages to this user",
		})
	})

	err := client.SendMessage(context.Background(), "channel-7", Message{Content: "oi"})
	require.Error(t, err)

	apiErr, ok := err.(*APIError)
	require.True(t, ok)
	assert.Equal(t, http.StatusForbidden, apiErr.Status)
	assert.Equal(t, CodeCannotSendToUser, apiErr.Code)
}

func TestRegisterGuildCommands(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/applications/app-1/guilds/guild-1/commands", r.URL.Path)

		var commands []ApplicationCommand
		require.NoError(t, json.NewDecoder(r.Body).Decode(&commands))
		require.Len(t, commands, 1)
		assert.Equal(t, "whitelist", commands[0].Name)

		w.Write([]byte(`[]`))
	})

	err := client.RegisterGuildCommands(context.Background(), "app-1", "guild-1", []ApplicationCommand{
		{Name: "whitelist", Description: "Gerenciar formulários de whitelist"},
	})
	require.NoError(t, err)
}
