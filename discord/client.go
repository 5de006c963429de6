package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultBaseURL is the Discord REST API root
const DefaultBaseURL = "https://discord.com/api/v10"

// CodeCannotSendToUser is the Discord error code returned when a user cannot
// receive DMs (privacy settings or a block). It is an expected outcome, not
// a failure.
const CodeCannotSendToUser = 50007

// Client is a minimal Discord REST client covering the calls this service
// needs: identity lookup, DM delivery, slash-command registration and
// interaction followups.
type Client struct {
	// BaseURL is overridable so tests can point the client at a stub server
	BaseURL string

	botToken   string
	httpClient *http.Client
	logger     *logrus.Entry
}

// NewClient creates a client authenticated with the given bot token
func NewClient(botToken string, logger *logrus.Entry) *Client {
	return &Client{
		BaseURL:    DefaultBaseURL,
		botToken:   botToken,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
	}
}

// User is the subset of a Discord user this service cares about
type User struct {
	ID            string `json:"id"`
	Username      string `json:"username"`
	Avatar        string `json:"avatar"`
	Discriminator string `json:"discriminator"`
}

// APIError is a non-2xx response from the Discord API
type APIError struct {
	Status  int
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("discord api: status=%d code=%d %s", e.Status, e.Code, e.Message)
}

// UserFromToken fetches the identity behind an OAuth access token
func (c *Client) UserFromToken(ctx context.Context, accessToken string) (*User, error) {
	var user User
	err := c.do(ctx, http.MethodGet, "/users/@me", "Bearer "+accessToken, nil, &user)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// CreateDMChannel opens (or reuses) the DM channel with the given user and
// returns its id.
func (c *Client) CreateDMChannel(ctx context.Context, recipientID string) (string, error) {
	payload := map[string]string{"recipient_id": recipientID}
	var channel struct {
		ID string `json:"id"`
	}
	err := c.do(ctx, http.MethodPost, "/users/@me/channels", c.botAuth(), payload, &channel)
	if err != nil {
		return "", err
	}
	return channel.ID, nil
}

// SendMessage posts a message to a channel
func (c *Client) SendMessage(ctx context.Context, channelID string, msg Message) error {
	path := fmt.Sprintf("/channels/%s/messages", channelID)
	return c.do(ctx, http.MethodPost, path, c.botAuth(), msg, nil)
}

// CreateFollowupMessage posts a followup to an acknowledged interaction
func (c *Client) CreateFollowupMessage(ctx context.Context, applicationID, token string, msg Message) error {
	path := fmt.Sprintf("/webhooks/%s/%s", applicationID, token)
	return c.do(ctx, http.MethodPost, path, c.botAuth(), msg, nil)
}

// RegisterGlobalCommands bulk-overwrites the application's global slash
// commands.
func (c *Client) RegisterGlobalCommands(ctx context.Context, applicationID string, commands []ApplicationCommand) error {
	path := fmt.Sprintf("/applications/%s/commands", applicationID)
	return c.do(ctx, http.MethodPut, path, c.botAuth(), commands, nil)
}

// RegisterGuildCommands bulk-overwrites the slash commands for one guild.
// Guild commands propagate immediately, unlike global ones.
func (c *Client) RegisterGuildCommands(ctx context.Context, applicationID, guildID string, commands []ApplicationCommand) error {
	path := fmt.Sprintf("/applications/%s/guilds/%s/commands", applicationID, guildID)
	return c.do(ctx, http.MethodPut, path, c.botAuth(), commands, nil)
}

func (c *Client) botAuth() string {
	return "Bot " + c.botToken
}

func (c *Client) do(ctx context.Context, method, path, auth string, body, out interface{}) error {
	var reqBody *bytes.Buffer
	if body != nil {
		reqBody = new(bytes.Buffer)
		if err := json.NewEncoder(reqBody).Encode(body); err != nil {
			return err
		}
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reqBody)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", auth)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		// Body decode failures leave code/message empty; status still tells
		json.NewDecoder(resp.Body).Decode(apiErr)
		c.logger.WithFields(logrus.Fields{
			"method": method,
			"path":   path,
			"status": resp.StatusCode,
			"code":   apiErr.Code,
		}).Debug("Discord API error response")
		return apiErr
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
