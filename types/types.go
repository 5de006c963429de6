package types

import "time"

// Status of a whitelist application
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Valid reports whether s is one of the known application statuses
func (s Status) Valid() bool {
	return s == StatusPending || s == StatusApproved || s == StatusRejected
}

// Application represents a whitelist application submitted by a player.
// There is at most one application per Discord user at any time; a rejected
// application is overwritten in place when the player resubmits.
type Application struct {
	ID              string    `json:"id"`
	ApplicantID     string    `json:"discord_id"`
	ApplicantName   string    `json:"discord_name"`
	ApplicantAvatar string    `json:"discord_avatar"`
	GameHandle      string    `json:"roblox"`
	Age             int64     `json:"idade"`
	Experience      string    `json:"experiencia"`
	Status          Status    `json:"status"`
	RejectionReason string    `json:"motivo_reprova"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// StatusCount is one row of the aggregate stats breakdown
type StatusCount struct {
	Status Status `json:"status"`
	Count  int64  `json:"count"`
}

// Event kinds published to the task queue after successful workflow calls
const (
	EventSubmitted   = "submitted"
	EventResubmitted = "resubmitted"
	EventApproved    = "approved"
	EventRejected    = "rejected"
)

// ApplicationEvent is the message shape carried over the broker. Consumers
// use it to refresh derived state (stats cache, dashboard streams); it is
// never the source of truth for the application itself.
type ApplicationEvent struct {
	Kind        string      `json:"kind"`
	Application Application `json:"application"`
}
