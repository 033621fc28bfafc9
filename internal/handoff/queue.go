// Package handoff 把总线监听 goroutine 收到的消息按到达顺序交给广播 hub。
//
// 语义：
//   - 单生产者（BusListener）、单消费者（BroadcastHub），跨 goroutine 安全；
//   - FIFO，Pop 只在队列为空时阻塞；
//   - 默认无界。capacity > 0 时队列满则丢弃最旧的一条，并计入 Dropped。
package handoff

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"scout-gateway/internal/models"
)

// ErrClosed 队列已关闭且已取空
var ErrClosed = errors.New("handoff: queue is closed")

// Queue 跨 goroutine 的有序消息队列
type Queue struct {
	mu       sync.Mutex
	buf      []models.BusMessage
	head     int
	capacity int
	closed   bool

	// ready 容量为 1：只需要唤醒唯一的消费者
	ready   chan struct{}
	dropped atomic.Int64
}

// NewQueue 创建队列，capacity <= 0 表示无界
func NewQueue(capacity int) *Queue {
	if capacity < 0 {
		capacity = 0
	}
	return &Queue{
		capacity: capacity,
		ready:    make(chan struct{}, 1),
	}
}

// Push 入队，从不阻塞。队列关闭后返回 ErrClosed
func (q *Queue) Push(msg models.BusMessage) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrClosed
	}
	if q.capacity > 0 && q.lenLocked() >= q.capacity {
		q.buf[q.head] = models.BusMessage{}
		q.head++
		q.dropped.Add(1)
		q.compactLocked()
	}
	q.buf = append(q.buf, msg)
	q.mu.Unlock()

	q.signal()
	return nil
}

// Pop 取出最早的一条消息；队列为空时阻塞直到有消息、ctx 取消或队列关闭
func (q *Queue) Pop(ctx context.Context) (models.BusMessage, error) {
	for {
		q.mu.Lock()
		if q.lenLocked() > 0 {
			msg := q.buf[q.head]
			q.buf[q.head] = models.BusMessage{}
			q.head++
			q.compactLocked()
			q.mu.Unlock()
			return msg, nil
		}
		if q.closed {
			q.mu.Unlock()
			return models.BusMessage{}, ErrClosed
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return models.BusMessage{}, ctx.Err()
		case <-q.ready:
		}
	}
}

// Close 关闭队列；已入队的消息仍可取出
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.mu.Unlock()
	q.signal()
}

// Len 当前积压数量
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.lenLocked()
}

// Dropped 因容量上限丢弃的消息数
func (q *Queue) Dropped() int64 {
	return q.dropped.Load()
}

func (q *Queue) signal() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}

func (q *Queue) lenLocked() int {
	return len(q.buf) - q.head
}

// compactLocked 头部空洞超过一半时整体前移，避免底层数组无限增长
func (q *Queue) compactLocked() {
	if q.head == len(q.buf) {
		q.buf = q.buf[:0]
		q.head = 0
		return
	}
	if q.head > 64 && q.head*2 >= len(q.buf) {
		n := copy(q.buf, q.buf[q.head:])
		q.buf = q.buf[:n]
		q.head = 0
	}
}
