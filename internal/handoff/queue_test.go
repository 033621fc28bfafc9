package handoff

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"scout-gateway/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func msg(i int) models.BusMessage {
	return models.BusMessage{Topic: "ros_to_react_topic", Payload: strconv.Itoa(i)}
}

func TestQueue_PushPop_PreservesOrder(t *testing.T) {
	q := NewQueue(0)
	ctx := context.Background()

	for i := 0; i < 200; i++ {
		require.NoError(t, q.Push(msg(i)))
	}
	assert.Equal(t, 200, q.Len())

	for i := 0; i < 200; i++ {
		got, err := q.Pop(ctx)
		require.NoError(t, err)
		assert.Equal(t, strconv.Itoa(i), got.Payload)
	}
	assert.Equal(t, 0, q.Len())
}

func TestQueue_Pop_BlocksUntilPush(t *testing.T) {
	q := NewQueue(0)
	got := make(chan models.BusMessage, 1)

	go func() {
		m, err := q.Pop(context.Background())
		if err == nil {
			got <- m
		}
	}()

	select {
	case <-got:
		t.Fatal("Pop returned before any message was pushed")
	case <-time.After(50 * time.Millisecond):
	}

	require.NoError(t, q.Push(msg(7)))

	select {
	case m := <-got:
		assert.Equal(t, "7", m.Payload)
	case <-time.After(time.Second):
		t.Fatal("Pop did not wake up after Push")
	}
}

func TestQueue_Pop_HonoursContext(t *testing.T) {
	q := NewQueue(0)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := q.Pop(ctx)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestQueue_Close_DrainsThenReturnsErrClosed(t *testing.T) {
	q := NewQueue(0)
	require.NoError(t, q.Push(msg(1)))
	q.Close()

	assert.ErrorIs(t, q.Push(msg(2)), ErrClosed)

	m, err := q.Pop(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1", m.Payload)

	_, err = q.Pop(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}

func TestQueue_Close_WakesBlockedConsumer(t *testing.T) {
	q := NewQueue(0)
	done := make(chan error, 1)
	go func() {
		_, err := q.Pop(context.Background())
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	q.Close()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrClosed)
	case <-time.After(time.Second):
		t.Fatal("blocked Pop was not released by Close")
	}
}

func TestQueue_Bounded_DropsOldest(t *testing.T) {
	q := NewQueue(3)
	for i := 0; i < 5; i++ {
		require.NoError(t, q.Push(msg(i)))
	}
	assert.Equal(t, 3, q.Len())
	assert.Equal(t, int64(2), q.Dropped())

	for _, want := range []string{"2", "3", "4"} {
		m, err := q.Pop(context.Background())
		require.NoError(t, err)
		assert.Equal(t, want, m.Payload)
	}
}

func TestQueue_ConcurrentProducerConsumer(t *testing.T) {
	q := NewQueue(0)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	const total = 5000
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < total; i++ {
			_ = q.Push(msg(i))
		}
	}()

	for i := 0; i < total; i++ {
		m, err := q.Pop(ctx)
		require.NoError(t, err)
		require.Equal(t, strconv.Itoa(i), m.Payload)
	}
	wg.Wait()
	assert.Equal(t, int64(0), q.Dropped())
}
