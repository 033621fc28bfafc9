package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	mqttcommon "scout-gateway/common/mqtt"
	rediscommon "scout-gateway/common/redis"
	"scout-gateway/internal/handoff"
	"scout-gateway/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeSubscriber 模拟 paho：Deliver 在独立 goroutine 中串行调用 handler
type fakeSubscriber struct {
	mu           sync.Mutex
	handlers     map[string]mqttcommon.MessageHandler
	subscribeErr error
	unsubscribed []string
}

func newFakeSubscriber() *fakeSubscriber {
	return &fakeSubscriber{handlers: make(map[string]mqttcommon.MessageHandler)}
}

func (f *fakeSubscriber) Subscribe(topic string, qos byte, handler mqttcommon.MessageHandler) error {
	if f.subscribeErr != nil {
		return f.subscribeErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[topic] = handler
	return nil
}

func (f *fakeSubscriber) Unsubscribe(topics ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unsubscribed = append(f.unsubscribed, topics...)
	return nil
}

func (f *fakeSubscriber) Deliver(topic string, payloads ...string) {
	f.mu.Lock()
	h := f.handlers[topic]
	f.mu.Unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for _, p := range payloads {
			_ = h(topic, []byte(p))
		}
	}()
	<-done
}

func TestMQTTConsumer_HandsOffEveryMessageInOrder(t *testing.T) {
	sub := newFakeSubscriber()
	q := handoff.NewQueue(0)
	c := NewMQTTConsumer("ros_to_react_topic", 1, sub, q, nil, zap.NewNop())
	require.NoError(t, c.Start(context.Background()))

	payloads := make([]string, 50)
	for i := range payloads {
		payloads[i] = "status-" + strconv.Itoa(i)
	}
	sub.Deliver("ros_to_react_topic", payloads...)

	require.Equal(t, 50, q.Len())
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	for _, want := range payloads {
		got, err := q.Pop(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, got.Payload)
		assert.Equal(t, "ros_to_react_topic", got.Topic)
		assert.False(t, got.ReceivedAt.IsZero())
	}
}

func TestMQTTConsumer_MalformedPayloadIsForwardedAsIs(t *testing.T) {
	sub := newFakeSubscriber()
	q := handoff.NewQueue(0)
	c := NewMQTTConsumer("ros_to_react_topic", 1, sub, q, nil, zap.NewNop())
	require.NoError(t, c.Start(context.Background()))

	sub.Deliver("ros_to_react_topic", "{not json", "")

	require.Equal(t, 2, q.Len())
	m, err := q.Pop(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "{not json", m.Payload)
}

func TestMQTTConsumer_Start_SubscribeFailure(t *testing.T) {
	sub := newFakeSubscriber()
	sub.subscribeErr = errors.New("not connected")
	c := NewMQTTConsumer("ros_to_react_topic", 1, sub, handoff.NewQueue(0), nil, zap.NewNop())

	err := c.Start(context.Background())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "not connected")
}

func TestMQTTConsumer_Stop_UnsubscribesAndClosesQueue(t *testing.T) {
	sub := newFakeSubscriber()
	q := handoff.NewQueue(0)
	c := NewMQTTConsumer("ros_to_react_topic", 1, sub, q, nil, zap.NewNop())
	require.NoError(t, c.Start(context.Background()))

	require.NoError(t, c.Stop(context.Background()))
	assert.Equal(t, []string{"ros_to_react_topic"}, sub.unsubscribed)

	err := c.handleMessage("ros_to_react_topic", []byte("late"))
	assert.ErrorIs(t, err, handoff.ErrClosed)
}

func TestMQTTConsumer_MirrorsToRedisStream(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	sub := newFakeSubscriber()
	q := handoff.NewQueue(0)
	mirror := rediscommon.NewStreamWriter(client, "scout:relay:stream", 100)
	c := NewMQTTConsumer("ros_to_react_topic", 1, sub, q, mirror, zap.NewNop())
	require.NoError(t, c.Start(context.Background()))

	sub.Deliver("ros_to_react_topic", "waypoint reached")

	msgs, err := client.XRange(context.Background(), "scout:relay:stream", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	var relayed models.BusMessage
	require.NoError(t, json.Unmarshal([]byte(msgs[0].Values["data"].(string)), &relayed))
	assert.Equal(t, "waypoint reached", relayed.Payload)
	assert.Equal(t, 1, q.Len())
}

func TestMQTTConsumer_MirrorFailureDoesNotBlockHandoff(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	mr.Close()

	sub := newFakeSubscriber()
	q := handoff.NewQueue(0)
	mirror := rediscommon.NewStreamWriter(client, "scout:relay:stream", 0)
	c := NewMQTTConsumer("ros_to_react_topic", 1, sub, q, mirror, zap.NewNop())
	require.NoError(t, c.Start(context.Background()))

	sub.Deliver("ros_to_react_topic", "still delivered")
	assert.Equal(t, 1, q.Len())
}
