package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	ChannelSubscriptionEvents = "subscription_events"
)

// 订阅事件类型
const (
	EventActivated   = "subscription.activated"
	EventSwitched    = "subscription.switched"
	EventDeactivated = "subscription.deactivated"
)

// SubscriptionEvent 订阅状态变更事件
type SubscriptionEvent struct {
	Type           string    `json:"type"`
	UserID         int64     `json:"user_id"`
	SubscriptionID int64     `json:"subscription_id"`
	PlanID         int64     `json:"plan_id"`
	PreviousPlanID int64     `json:"previous_plan_id,omitempty"`
	At             time.Time `json:"at"`
}

// EventPublisher 事件发布接口，服务层依赖此接口而非具体实现
type EventPublisher interface {
	PublishEvent(ctx context.Context, event *SubscriptionEvent) error
}

// Publisher Redis 发布者
type Publisher struct {
	client *redis.Client
}

// NewPublisher 创建发布者
func NewPublisher(client *redis.Client) *Publisher {
	return &Publisher{client: client}
}

// PublishEvent 发布订阅事件
func (p *Publisher) PublishEvent(ctx context.Context, event *SubscriptionEvent) error {
	if event.At.IsZero() {
		event.At = time.Now()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal subscription event: %w", err)
	}

	return p.client.Publish(ctx, ChannelSubscriptionEvents, data).Err()
}

// Subscriber Redis 订阅者
type Subscriber struct {
	client *redis.Client
}

// NewSubscriber 创建订阅者
func NewSubscriber(client *redis.Client) *Subscriber {
	return &Subscriber{client: client}
}

// Subscribe 订阅事件，阻塞直到 ctx 结束
func (s *Subscriber) Subscribe(ctx context.Context, handler func(*SubscriptionEvent)) error {
	pubsub := s.client.Subscribe(ctx, ChannelSubscriptionEvents)
	defer pubsub.Close()

	// 等待订阅确认
	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe %s: %w", ChannelSubscriptionEvents, err)
	}

	ch := pubsub.Channel()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}

			var event SubscriptionEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				continue // 忽略解析错误
			}

			handler(&event)
		}
	}
}
