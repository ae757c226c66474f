// Package queue defines the auth events exchanged over RabbitMQ, the
// publisher used by the auth service and the consumer that appends them
// to an audit log.
package queue

import "time"

// AuthEventsQueue is the durable queue carrying every auth event, with
// reset tokens removed. The audit consumer reads it.
const AuthEventsQueue = "auth.events"

// PasswordResetQueue carries password.reset_requested events with their
// reset token, for the service that mails the reset link.
const PasswordResetQueue = "auth.password_resets"

// Event types.
const (
	EventUserRegistered         = "user.registered"
	EventPasswordChanged        = "user.password_changed"
	EventProfileUpdated         = "user.profile_updated"
	EventPasswordResetRequested = "password.reset_requested"
)

// AuthEvent is published after an auth state change. ResetToken is only
// set on password.reset_requested and only travels on PasswordResetQueue.
type AuthEvent struct {
	Type       string    `json:"type"`
	UserID     uint64    `json:"user_id"`
	PublicID   string    `json:"uuid"`
	Email      string    `json:"email"`
	ResetToken string    `json:"reset_token,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Redacted returns ev without its reset token.
func (ev AuthEvent) Redacted() AuthEvent {
	ev.ResetToken = ""
	return ev
}
