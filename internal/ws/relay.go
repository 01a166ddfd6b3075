package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/serroba/annotated-docs/internal/highlight"
)

// DefaultRelayChannel is the Redis channel document events travel on.
const DefaultRelayChannel = "annotated:events"

const publishTimeout = 2 * time.Second

// Broadcaster fans out document events to viewers.
type Broadcaster interface {
	BroadcastDiscussion(slug string, d highlight.Discussion, excludeClientID string)
}

// relayEvent is the wire form of an event on the relay channel.
type relayEvent struct {
	Slug       string               `json:"slug"`
	Exclude    string               `json:"exclude,omitempty"`
	Discussion highlight.Discussion `json:"discussion"`
}

// Relay publishes document events on a Redis channel and delivers every
// event it receives to the local hub, so viewers connected to other
// servers see them too.
type Relay struct {
	client  *redis.Client
	hub     *Hub
	channel string
	logger  *slog.Logger

	pubsub *redis.PubSub
	done   chan struct{}
}

// NewRelay creates a relay for hub. Call Start before broadcasting.
func NewRelay(client *redis.Client, hub *Hub, logger *slog.Logger) *Relay {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Relay{
		client:  client,
		hub:     hub,
		channel: DefaultRelayChannel,
		logger:  logger,
	}
}

// Start subscribes to the relay channel and begins delivering events.
func (r *Relay) Start(ctx context.Context) error {
	if r.pubsub != nil {
		return errors.New("relay already started")
	}

	pubsub := r.client.Subscribe(ctx, r.channel)

	// Wait for the subscription to be confirmed
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()

		return fmt.Errorf("subscribe %s: %w", r.channel, err)
	}

	r.pubsub = pubsub
	r.done = make(chan struct{})

	go r.run(pubsub.Channel())

	return nil
}

func (r *Relay) run(ch <-chan *redis.Message) {
	defer close(r.done)

	for msg := range ch {
		var event relayEvent
		if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
			r.logger.Warn("dropping malformed relay event", "error", err)

			continue
		}

		r.hub.BroadcastDiscussion(event.Slug, event.Discussion, event.Exclude)
	}
}

// BroadcastDiscussion publishes a discussion event. If publishing fails
// the event is delivered to local viewers only.
func (r *Relay) BroadcastDiscussion(slug string, d highlight.Discussion, excludeClientID string) {
	body, err := json.Marshal(relayEvent{Slug: slug, Exclude: excludeClientID, Discussion: d})
	if err == nil {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		err = r.client.Publish(ctx, r.channel, body).Err()

		cancel()
	}

	if err != nil {
		r.logger.Error("relay publish failed", "slug", slug, "error", err)
		r.hub.BroadcastDiscussion(slug, d, excludeClientID)
	}
}

// Close unsubscribes and waits for delivery to stop.
func (r *Relay) Close() error {
	if r.pubsub == nil {
		return nil
	}

	err := r.pubsub.Close()
	<-r.done

	return err
}

var (
	_ Broadcaster = (*Hub)(nil)
	_ Broadcaster = (*Relay)(nil)
)
