package consumer

import (
	"context"
	"fmt"
	"time"

	mqttcommon "scout-gateway/common/mqtt"
	"scout-gateway/internal/handoff"
	"scout-gateway/internal/models"

	"go.uber.org/zap"
)

// Subscriber 总线订阅能力（由 common/mqtt.Client 实现）
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqttcommon.MessageHandler) error
	Unsubscribe(topics ...string) error
}

// RelayMirror 可选：把转发的消息旁路写入 Redis Stream
type RelayMirror interface {
	AppendJSON(ctx context.Context, data interface{}) (string, error)
}

const mirrorTimeout = 2 * time.Second

// MQTTConsumer 总线监听器：订阅入站主题，每条消息 1:1 交给 handoff 队列
// handleMessage 运行在 paho 的投递 goroutine 上，不接触任何客户端状态
type MQTTConsumer struct {
	topic  string
	qos    byte
	sub    Subscriber
	queue  *handoff.Queue
	mirror RelayMirror
	logger *zap.Logger
	now    func() time.Time
}

// NewMQTTConsumer 创建总线监听器，mirror 可以为 nil
func NewMQTTConsumer(
	topic string,
	qos byte,
	sub Subscriber,
	queue *handoff.Queue,
	mirror RelayMirror,
	logger *zap.Logger,
) *MQTTConsumer {
	return &MQTTConsumer{
		topic:  topic,
		qos:    qos,
		sub:    sub,
		queue:  queue,
		mirror: mirror,
		logger: logger,
		now:    time.Now,
	}
}

// Start 订阅入站主题，只订阅一次，不阻塞
func (c *MQTTConsumer) Start(ctx context.Context) error {
	if err := c.sub.Subscribe(c.topic, c.qos, c.handleMessage); err != nil {
		return fmt.Errorf("failed to subscribe to inbound topic: %w", err)
	}

	c.logger.Info("MQTT consumer started", zap.String("topic", c.topic))
	return nil
}

// Stop 取消订阅并关闭 handoff 队列
func (c *MQTTConsumer) Stop(ctx context.Context) error {
	if err := c.sub.Unsubscribe(c.topic); err != nil {
		c.logger.Error("Failed to unsubscribe", zap.String("topic", c.topic), zap.Error(err))
	}
	c.queue.Close()

	c.logger.Info("MQTT consumer stopped")
	return nil
}

// handleMessage 处理MQTT消息。payload 不做校验，原样入队
func (c *MQTTConsumer) handleMessage(topic string, payload []byte) error {
	msg := models.BusMessage{
		Topic:      topic,
		Payload:    string(payload),
		ReceivedAt: c.now(),
	}

	if err := c.queue.Push(msg); err != nil {
		return fmt.Errorf("failed to hand off message: %w", err)
	}

	c.logger.Debug("Received MQTT message",
		zap.String("topic", topic),
		zap.Int("payload_size", len(payload)),
		zap.Int("backlog", c.queue.Len()),
	)

	if c.mirror != nil {
		ctx, cancel := context.WithTimeout(context.Background(), mirrorTimeout)
		defer cancel()
		if _, err := c.mirror.AppendJSON(ctx, msg); err != nil {
			c.logger.Warn("Failed to mirror relay message", zap.String("topic", topic), zap.Error(err))
		}
	}

	return nil
}
