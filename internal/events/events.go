// internal/events/events.go
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type Type string

const (
	ListingStatusChanged Type = "listing.status_changed"
	RequestStatusChanged Type = "request.status_changed"
	MatchCreated         Type = "match.created"
	MatchStatusChanged   Type = "match.status_changed"
	HelpRequestCreated   Type = "help.created"
	HelpRequestAnswered  Type = "help.answered"
)

// Event tells the bot layer that something its users care about happened.
// RecipientID is the internal user id the bot should notify, when known.
type Event struct {
	Type         Type      `json:"type"`
	ResourceType string    `json:"resource_type"`
	ResourceID   int64     `json:"resource_id"`
	ActorID      *int64    `json:"actor_id,omitempty"`
	RecipientID  *int64    `json:"recipient_id,omitempty"`
	Status       string    `json:"status,omitempty"`
	Reason       string    `json:"reason,omitempty"`
	OccurredAt   time.Time `json:"occurred_at"`
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// NopPublisher drops events. Used when Redis is disabled.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error {
	return nil
}

type RedisPublisher struct {
	client  redis.UniversalClient
	channel string
}

func NewRedisPublisher(client redis.UniversalClient, channel string) *RedisPublisher {
	return &RedisPublisher{client: client, channel: channel}
}

func (p *RedisPublisher) Publish(ctx context.Context, event Event) error {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	payload, err := Encode(event)
	if err != nil {
		return err
	}

	if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish %s: %w", event.Type, err)
	}
	return nil
}

func Encode(event Event) ([]byte, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to encode event %s: %w", event.Type, err)
	}
	return payload, nil
}

func Decode(payload []byte) (Event, error) {
	var event Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return Event{}, fmt.Errorf("failed to decode event: %w", err)
	}
	return event, nil
}

// Subscribe returns a channel of decoded events published on channel. The
// bot layer runs this; undecodable payloads are dropped.
func Subscribe(ctx context.Context, client redis.UniversalClient, channel string) <-chan Event {
	out := make(chan Event)
	sub := client.Subscribe(ctx, channel)

	go func() {
		defer close(out)
		defer sub.Close()

		messages := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				event, err := Decode([]byte(msg.Payload))
				if err != nil {
					continue
				}
				select {
				case out <- event:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out
}
