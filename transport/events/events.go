// Package events publishes game lifecycle events.
//
// Each event is encoded as JSON and published on a subject built from a
// configured prefix and the event type, for example "snake.player.joined".
// Consumers such as lobby screens or analytics subscribe with NATS wildcards
// ("snake.>").
//
// Publishing is fire-and-forget. A failed publish never fails the game
// operation that produced the event.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	log "github.com/spf13/jwalterweatherman"
)

// Type names a lifecycle event.
type Type string

const (
	GameCreated     Type = "game.created"
	PlayerJoined    Type = "player.joined"
	PlayerReady     Type = "player.ready"
	PlayerAbandoned Type = "player.abandoned"
	GameClosed      Type = "game.closed"
)

// Event is one lifecycle notification.
type Event struct {
	Type      Type      `json:"type"`
	Code      string    `json:"code"`
	SessionID string    `json:"session_id,omitempty"`
	Player    string    `json:"player,omitempty"`
	At        time.Time `json:"at"`
}

// Publisher delivers events to subscribers.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

// Discard is a Publisher that drops every event.
type Discard struct{}

func (Discard) Publish(context.Context, Event) error { return nil }
func (Discard) Close() error                         { return nil }

// Subject returns the subject ev is published on.
func Subject(prefix string, t Type) string {
	prefix = strings.Trim(prefix, ". ")
	if prefix == "" {
		return string(t)
	}
	return prefix + "." + string(t)
}

// NATSPublisher publishes events to a NATS server.
type NATSPublisher struct {
	conn   *nats.Conn
	prefix string
}

// Connect dials the NATS server at url.
func Connect(url, prefix string, opts ...nats.Option) (*NATSPublisher, error) {
	opts = append([]nats.Option{
		nats.Name("snake-party"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.WARN.Printf("[Events] disconnected from NATS: %v", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.INFO.Printf("[Events] reconnected to NATS at %s", nc.ConnectedUrl())
		}),
	}, opts...)

	conn, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	log.INFO.Printf("[Events] publishing lifecycle events to %s under %q", conn.ConnectedUrl(), prefix)
	return &NATSPublisher{conn: conn, prefix: prefix}, nil
}

// Publish encodes ev as JSON and publishes it.
func (p *NATSPublisher) Publish(ctx context.Context, ev Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if err := p.conn.Publish(Subject(p.prefix, ev.Type), data); err != nil {
		return fmt.Errorf("publish %s: %w", ev.Type, err)
	}
	return nil
}

// Close flushes pending events and closes the connection.
func (p *NATSPublisher) Close() error {
	if p == nil || p.conn == nil {
		return nil
	}
	if err := p.conn.Drain(); err != nil {
		p.conn.Close()
		return fmt.Errorf("drain nats: %w", err)
	}
	return nil
}
