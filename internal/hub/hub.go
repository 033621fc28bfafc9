// Package hub 维护 WebSocket 客户端注册表，并把 handoff 队列里的每条总线消息广播给所有客户端。
//
// 注册表只由 Hub 持有，外部只能 Register / Remove。
// 每个客户端有独立的发送缓冲和写 goroutine：Run 循环只在队列为空时挂起，从不等待 socket 写入。
// 缓冲写满、写超时或读端关闭的客户端会被移除（只移除一次），不影响其他客户端。
package hub

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"scout-gateway/internal/handoff"
	"scout-gateway/internal/models"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Conn 单个流式连接（*websocket.Conn 实现了该接口）
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	ReadMessage() (messageType int, p []byte, err error)
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Options Hub 参数
type Options struct {
	FramePrefix  string
	ClientBuffer int
	WriteTimeout time.Duration
	PingPeriod   time.Duration
}

// Client 一个已接入的流式连接，从接入到断开，不可复制
type Client struct {
	ID        string
	Connected time.Time

	conn   Conn
	send   chan []byte
	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
}

// Done 客户端被移除后关闭
func (c *Client) Done() <-chan struct{} {
	return c.ctx.Done()
}

// Hub 广播中心
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client

	queue    *handoff.Queue
	opts     Options
	upgrader websocket.Upgrader
	logger   *zap.Logger

	wg         sync.WaitGroup
	broadcasts atomic.Int64
	evicted    atomic.Int64
}

// NewHub 创建广播中心
func NewHub(queue *handoff.Queue, opts Options, logger *zap.Logger) *Hub {
	if opts.ClientBuffer < 1 {
		opts.ClientBuffer = 256
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 5 * time.Second
	}
	return &Hub{
		clients: make(map[string]*Client),
		queue:   queue,
		opts:    opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// 与 HTTP 层一致，允许任意来源
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: logger,
	}
}

// Register 把连接加入注册表并启动写 goroutine。只会收到注册之后出队的消息
func (h *Hub) Register(conn Conn) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	client := &Client{
		ID:        uuid.NewString(),
		Connected: time.Now(),
		conn:      conn,
		send:      make(chan []byte, h.opts.ClientBuffer),
		ctx:       ctx,
		cancel:    cancel,
	}

	h.mu.Lock()
	h.clients[client.ID] = client
	total := len(h.clients)
	h.mu.Unlock()

	h.wg.Add(1)
	go h.writePump(client)

	h.logger.Info("Client connected", zap.String("client_id", client.ID), zap.Int("clients", total))
	return client
}

// Remove 从注册表移除客户端并关闭连接，重复调用无副作用
func (h *Hub) Remove(client *Client) {
	client.once.Do(func() {
		h.mu.Lock()
		delete(h.clients, client.ID)
		total := len(h.clients)
		h.mu.Unlock()

		client.cancel()
		_ = client.conn.Close()

		h.logger.Info("Client disconnected", zap.String("client_id", client.ID), zap.Int("clients", total))
	})
}

// Count 当前客户端数量
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcasts 已广播的消息数量
func (h *Hub) Broadcasts() int64 { return h.broadcasts.Load() }

// Evicted 因发送缓冲写满被移除的客户端数量
func (h *Hub) Evicted() int64 { return h.evicted.Load() }

// Run 从 handoff 队列取消息并广播，直到 ctx 取消或队列关闭
func (h *Hub) Run(ctx context.Context) error {
	h.logger.Info("Broadcast hub started")
	for {
		msg, err := h.queue.Pop(ctx)
		if err != nil {
			if errors.Is(err, handoff.ErrClosed) || errors.Is(err, context.Canceled) {
				h.logger.Info("Broadcast hub stopped")
				return nil
			}
			return err
		}
		h.broadcast(msg)
	}
}

// broadcast 一轮广播。没有客户端时消息直接丢弃
func (h *Hub) broadcast(msg models.BusMessage) {
	h.broadcasts.Add(1)
	frame := []byte(h.opts.FramePrefix + msg.Payload)

	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		select {
		case <-c.ctx.Done():
			continue
		default:
		}

		select {
		case c.send <- frame:
		default:
			h.evicted.Add(1)
			h.logger.Warn("Client send buffer full, dropping client",
				zap.String("client_id", c.ID),
				zap.Int("buffer", cap(c.send)),
			)
			h.Remove(c)
		}
	}
}

func (h *Hub) writePump(c *Client) {
	defer h.wg.Done()

	var ping <-chan time.Time
	if h.opts.PingPeriod > 0 {
		ticker := time.NewTicker(h.opts.PingPeriod)
		defer ticker.Stop()
		ping = ticker.C
	}

	for {
		select {
		case <-c.ctx.Done():
			return
		case frame := <-c.send:
			if err := h.write(c, websocket.TextMessage, frame); err != nil {
				h.logger.Debug("Write to client failed", zap.String("client_id", c.ID), zap.Error(err))
				h.Remove(c)
				return
			}
		case <-ping:
			if err := h.write(c, websocket.PingMessage, nil); err != nil {
				h.Remove(c)
				return
			}
		}
	}
}

func (h *Hub) write(c *Client, messageType int, data []byte) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(h.opts.WriteTimeout)); err != nil {
		return err
	}
	return c.conn.WriteMessage(messageType, data)
}

// readPump 读到错误（包括对端关闭）即视为断开；客户端发来的内容忽略
func (h *Hub) readPump(c *Client) {
	defer h.Remove(c)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// ServeWS 升级为 WebSocket 并阻塞到连接断开
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}
	client := h.Register(conn)
	h.readPump(client)
}

// Close 移除所有客户端并等待写 goroutine 退出
func (h *Hub) Close() {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		h.Remove(c)
	}
	h.wg.Wait()
}
