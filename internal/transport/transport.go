// Package transport defines the narrow capability surface the moderation
// engine consumes from the chat-client collaborator. The actual client
// (connection, authentication, session credentials) lives in a separate
// process; see the messaging package for the NATS binding.
package transport

import "context"

// Message is one inbound chat message as delivered by the chat client.
// Fields may be empty when the underlying message type does not carry them
// (system messages have no ID or sender); the engine treats those cases per
// its discard rules rather than as errors.
type Message struct {
	ID        string `json:"id"`
	Body      string `json:"body"`
	SenderRaw string `json:"sender"`
	GroupName string `json:"group"`
	IsGroup   bool   `json:"is_group"`
	Ts        int64  `json:"ts"`
}

// Client is the action surface the engine calls. Implementations own
// timeouts and connection state; errors report capability failures
// (insufficient privilege, disconnected client) which the engine handles as
// non-fatal.
type Client interface {
	// SendText posts a text message to the named group chat.
	SendText(ctx context.Context, group, text string) error

	// DeleteMessage deletes a message from the group, for everyone when the
	// client has the privilege to do so.
	DeleteMessage(ctx context.Context, group, messageID string, forEveryone bool) error

	// RemoveParticipant removes the participant with the given canonical
	// identity from the group.
	RemoveParticipant(ctx context.Context, group, identity string) error
}
