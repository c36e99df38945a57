// Package events 发布 gram 生命周期事件
package events

import (
	"context"
	"time"
)

// 事件类型
const (
	GramCreated   = "gram.created"
	GramUpdated   = "gram.updated"
	GramDestroyed = "gram.destroyed"
)

// GramEvent gram 生命周期事件
type GramEvent struct {
	Type       string    `json:"type"`
	GramID     uint      `json:"gram_id"`
	UserID     uint      `json:"user_id"`
	Message    string    `json:"message,omitempty"`
	Image      string    `json:"image,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Publisher 事件发布者
type Publisher interface {
	Publish(ctx context.Context, event GramEvent) error
	Close() error
}

// NoopPublisher 未配置 broker 时使用
type NoopPublisher struct{}

// Publish 丢弃事件
func (NoopPublisher) Publish(context.Context, GramEvent) error { return nil }

// Close 无操作
func (NoopPublisher) Close() error { return nil }

// NewPublisher 有 broker 时返回 kafka 发布者，否则返回 NoopPublisher
func NewPublisher(brokers []string, topic string) Publisher {
	if len(brokers) == 0 {
		return NoopPublisher{}
	}
	return NewKafkaPublisher(brokers, topic)
}
