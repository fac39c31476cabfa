package ws

import (
	"github.com/qs3c/subscription_server/internal/pkg/pubsub"
)

// ForwardEvent 把订阅事件推送给该用户的全部连接，用户不在线时丢弃
func (h *Hub) ForwardEvent(event *pubsub.SubscriptionEvent) {
	if !h.IsOnline(event.UserID) {
		return
	}
	if err := h.SendToUser(event.UserID, &Message{Type: event.Type, Data: event}); err != nil {
		h.logger.Warn("failed to forward subscription event", "user_id", event.UserID, "error", err)
	}
}
