// Package messaging binds the engine's transport capability interface to a
// chat-client sidecar over NATS. Inbound messages arrive on a pub/sub
// subject; moderation actions (send, delete, remove) go out as
// request/reply so the sidecar can report capability failures back to the
// engine.
package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/modguard/modguard/internal/transport"
)

// NATS subjects shared with the chat-client sidecar.
const (
	SubjectInbound = "transport.message"
	SubjectSend    = "transport.send"
	SubjectDelete  = "transport.delete"
	SubjectRemove  = "transport.remove"
)

// Config holds NATS connection settings.
type Config struct {
	URL           string        // nats://localhost:4222
	Name          string        // client name for identification
	ReconnectWait time.Duration // time between reconnect attempts
	MaxReconnects int           // max reconnect attempts (-1 for infinite)
	ActionTimeout time.Duration // per-action request/reply timeout
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		URL:           "nats://localhost:4222",
		Name:          "modguard",
		ReconnectWait: 2 * time.Second,
		MaxReconnects: -1, // infinite reconnects
		ActionTimeout: 10 * time.Second,
	}
}

// Bridge is the NATS-backed implementation of transport.Client plus the
// inbound-message subscription.
type Bridge struct {
	conn    *nats.Conn
	sub     *nats.Subscription
	timeout time.Duration
}

// Wire types for the action request/reply protocol.
type sendRequest struct {
	Group string `json:"group"`
	Text  string `json:"text"`
}

type deleteRequest struct {
	Group       string `json:"group"`
	MessageID   string `json:"message_id"`
	ForEveryone bool   `json:"for_everyone"`
}

type removeRequest struct {
	Group    string `json:"group"`
	Identity string `json:"identity"`
}

type actionReply struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// NewBridge connects to NATS with the given config and returns a ready
// bridge. It returns an error if the initial connection fails.
func NewBridge(config Config) (*Bridge, error) {
	opts := []nats.Option{
		nats.Name(config.Name),
		nats.ReconnectWait(config.ReconnectWait),
		nats.MaxReconnects(config.MaxReconnects),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Printf("[nats] disconnected: %v", err)
			} else {
				log.Printf("[nats] disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Printf("[nats] reconnected to %s", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			log.Printf("[nats] connection closed")
		}),
	}

	nc, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	log.Printf("[nats] connected to %s", nc.ConnectedUrl())

	return &Bridge{conn: nc, timeout: config.ActionTimeout}, nil
}

// SubscribeMessages registers the handler for inbound chat messages. The
// handler must return quickly; the engine enqueues and returns so NATS
// delivery is never blocked on decision latency.
func (b *Bridge) SubscribeMessages(handler func(transport.Message)) error {
	sub, err := b.conn.Subscribe(SubjectInbound, func(msg *nats.Msg) {
		var m transport.Message
		if err := json.Unmarshal(msg.Data, &m); err != nil {
			log.Printf("[nats] malformed inbound message dropped: %v", err)
			return
		}
		handler(m)
	})
	if err != nil {
		return fmt.Errorf("nats subscribe %s: %w", SubjectInbound, err)
	}
	b.sub = sub
	return nil
}

// SendText implements transport.Client.
func (b *Bridge) SendText(ctx context.Context, group, text string) error {
	return b.request(ctx, SubjectSend, sendRequest{Group: group, Text: text})
}

// DeleteMessage implements transport.Client.
func (b *Bridge) DeleteMessage(ctx context.Context, group, messageID string, forEveryone bool) error {
	return b.request(ctx, SubjectDelete, deleteRequest{
		Group:       group,
		MessageID:   messageID,
		ForEveryone: forEveryone,
	})
}

// RemoveParticipant implements transport.Client.
func (b *Bridge) RemoveParticipant(ctx context.Context, group, identity string) error {
	return b.request(ctx, SubjectRemove, removeRequest{Group: group, Identity: identity})
}

// request performs one request/reply round trip and decodes the sidecar's
// ok/error verdict.
func (b *Bridge) request(ctx context.Context, subject string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("messaging: marshal %s: %w", subject, err)
	}

	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	msg, err := b.conn.RequestWithContext(ctx, subject, data)
	if err != nil {
		return fmt.Errorf("messaging: request %s: %w", subject, err)
	}

	var reply actionReply
	if err := json.Unmarshal(msg.Data, &reply); err != nil {
		return fmt.Errorf("messaging: malformed reply on %s: %w", subject, err)
	}
	if !reply.OK {
		if reply.Error == "" {
			return errors.New("messaging: transport rejected " + subject)
		}
		return fmt.Errorf("messaging: transport rejected %s: %s", subject, reply.Error)
	}
	return nil
}

// Close drains the inbound subscription and the connection.
func (b *Bridge) Close() {
	if b.sub != nil {
		if err := b.sub.Drain(); err != nil {
			log.Printf("[nats] drain %s: %v", SubjectInbound, err)
		}
	}
	if err := b.conn.Drain(); err != nil {
		log.Printf("[nats] connection drain: %v", err)
	}
	log.Printf("[nats] bridge closed")
}
