package hub

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var errConnClosed = errors.New("connection closed")

// fakeConn 内存连接：记录写入的帧，可注入写失败或写阻塞
type fakeConn struct {
	mu        sync.Mutex
	frames    []string
	failWrite bool
	blockCh   chan struct{} // 非 nil 时写入阻塞到 Close
	closed    chan struct{}
	closes    int
	pings     int
}

func newFakeConn() *fakeConn {
	return &fakeConn{closed: make(chan struct{})}
}

func (f *fakeConn) WriteMessage(messageType int, data []byte) error {
	f.mu.Lock()
	fail, block := f.failWrite, f.blockCh
	f.mu.Unlock()

	if fail {
		return errors.New("broken pipe")
	}
	if block != nil {
		select {
		case <-block:
		case <-f.closed:
			return errConnClosed
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	select {
	case <-f.closed:
		return errConnClosed
	default:
	}
	if messageType == websocket.PingMessage {
		f.pings++
		return nil
	}
	f.frames = append(f.frames, string(data))
	return nil
}

func (f *fakeConn) Pings() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pings
}

func (f *fakeConn) ReadMessage() (int, []byte, error) {
	<-f.closed
	return 0, nil, errConnClosed
}

func (f *fakeConn) SetWriteDeadline(t time.Time) error { return nil }

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closes++
	if f.closes == 1 {
		close(f.closed)
	}
	return nil
}

func (f *fakeConn) Frames() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.frames))
	copy(out, f.frames)
	return out
}

func (f *fakeConn) Closes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closes
}

func httpHandler(h *Hub) http.HandlerFunc {
	return h.ServeWS
}
