package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"time"

	kgo "github.com/segmentio/kafka-go"
)

// messageWriter kafka.Writer 的最小子集
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kgo.Message) error
	Close() error
}

// KafkaPublisher 将事件异步写入 kafka，以 gram ID 作为分区键
type KafkaPublisher struct {
	w messageWriter
}

// NewKafkaPublisher 创建 kafka 事件发布者
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	w := &kgo.Writer{
		Addr:         kgo.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kgo.Hash{},
		BatchTimeout: 50 * time.Millisecond,
		RequiredAcks: kgo.RequireOne,
		Async:        true,
		Completion: func(messages []kgo.Message, err error) {
			if err != nil {
				log.Printf("[Events] Failed to deliver %d message(s): %v", len(messages), err)
			}
		},
	}
	return &KafkaPublisher{w: w}
}

// Publish 序列化并写入事件
func (p *KafkaPublisher) Publish(ctx context.Context, event GramEvent) error {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}

	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", event.Type, err)
	}

	return p.w.WriteMessages(ctx, kgo.Message{
		Key:   []byte(strconv.FormatUint(uint64(event.GramID), 10)),
		Value: value,
		Time:  event.OccurredAt,
		Headers: []kgo.Header{
			{Key: "type", Value: []byte(event.Type)},
		},
	})
}

// Close 刷新缓冲并关闭 writer
func (p *KafkaPublisher) Close() error {
	return p.w.Close()
}
