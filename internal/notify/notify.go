// Package notify delivers realtime notification messages to connected
// clients. The task core only sees the Publisher interface.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"taskmanager/internal/cache"
)

// Message is the realtime payload sent to a recipient.
type Message struct {
	NotificationID uuid.UUID `json:"notificationId"`
	TaskID         uuid.UUID `json:"taskId"`
	UserID         uuid.UUID `json:"user"`
	Message        string    `json:"message"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Publisher pushes messages to a recipient's live channel.
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
}

// Subscriber opens a recipient's live channel.
type Subscriber interface {
	// Subscribe returns a channel of messages and a close func. The channel is
	// nil when no transport is configured.
	Subscribe(ctx context.Context, userID uuid.UUID) (<-chan Message, func() error, error)
}

// Channel names the pub/sub channel for a user.
func Channel(userID uuid.UUID) string {
	return "notifications:user:" + userID.String()
}

// RedisPubSub implements Publisher and Subscriber over redis pub/sub.
type RedisPubSub struct {
	cache *cache.Client
}

var (
	_ Publisher  = (*RedisPubSub)(nil)
	_ Subscriber = (*RedisPubSub)(nil)
)

// NewRedisPubSub builds a publisher on the shared cache client.
func NewRedisPubSub(c *cache.Client) *RedisPubSub {
	return &RedisPubSub{cache: c}
}

func (p *RedisPubSub) Publish(ctx context.Context, msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	return p.cache.Publish(ctx, Channel(msg.UserID), payload)
}

func (p *RedisPubSub) Subscribe(ctx context.Context, userID uuid.UUID) (<-chan Message, func() error, error) {
	sub := p.cache.Subscribe(ctx, Channel(userID))
	if sub == nil {
		return nil, func() error { return nil }, nil
	}
	// Receive blocks until redis confirms the subscription.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, nil, fmt.Errorf("subscribe: %w", err)
	}

	out := make(chan Message)
	go relay(ctx, sub.Channel(), out)
	return out, sub.Close, nil
}

func relay(ctx context.Context, in <-chan *redis.Message, out chan<- Message) {
	defer close(out)
	for {
		select {
		case <-ctx.Done():
			return
		case raw, ok := <-in:
			if !ok {
				return
			}
			var msg Message
			if err := json.Unmarshal([]byte(raw.Payload), &msg); err != nil {
				continue
			}
			select {
			case out <- msg:
			case <-ctx.Done():
				return
			}
		}
	}
}

// Nop discards every message.
type Nop struct{}

func (Nop) Publish(context.Context, Message) error { return nil }

func (Nop) Subscribe(context.Context, uuid.UUID) (<-chan Message, func() error, error) {
	return nil, func() error { return nil }, nil
}
