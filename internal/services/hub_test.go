package services

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeConn 记录写入的消息，替代真实 websocket 连接
type fakeConn struct {
	mu       sync.Mutex
	messages [][]byte
	closed   bool
	wrote    chan struct{}
}

func newFakeConn() *fakeConn {
	return &fakeConn{wrote: make(chan struct{}, 128)}
}

func (f *fakeConn) WriteMessage(_ int, data []byte) error {
	f.mu.Lock()
	f.messages = append(f.messages, data)
	f.mu.Unlock()
	f.wrote <- struct{}{}
	return nil
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

func (f *fakeConn) waitFor(t *testing.T, n int) [][]byte {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-f.wrote:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for message %d of %d", i+1, n)
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]byte, len(f.messages))
	copy(out, f.messages)
	return out
}

func newTestHub() *Hub {
	return &Hub{conns: make(map[uint]map[*Connection]struct{})}
}

func TestHubEmitDeliversToAllConnections(t *testing.T) {
	hub := newTestHub()

	first := newFakeConn()
	second := newFakeConn()
	c1 := hub.Register(7, first)
	c2 := hub.Register(7, second)
	defer hub.Unregister(7, c1)
	defer hub.Unregister(7, c2)

	hub.Emit(7, EventNotificationNew, map[string]interface{}{"post_id": 1})

	for _, conn := range []*fakeConn{first, second} {
		msgs := conn.waitFor(t, 1)
		var env envelope
		require.NoError(t, json.Unmarshal(msgs[0], &env))
		require.Equal(t, EventNotificationNew, env.Event)
	}
}

func TestHubEmitWithoutConnectionsIsDropped(t *testing.T) {
	hub := newTestHub()

	// 没有在线连接时事件直接丢弃，不 panic 不阻塞
	hub.Emit(42, EventCommentNew, map[string]interface{}{"post_id": 1})
	require.Equal(t, 0, hub.ConnectionCount(42))
}

func TestHubEmitPreservesPerUserOrder(t *testing.T) {
	hub := newTestHub()

	conn := newFakeConn()
	c := hub.Register(9, conn)
	defer hub.Unregister(9, c)

	const n = 20
	for i := 0; i < n; i++ {
		hub.Emit(9, EventNotificationNew, map[string]interface{}{"seq": i})
	}

	msgs := conn.waitFor(t, n)
	for i, raw := range msgs {
		var env struct {
			Data struct {
				Seq int `json:"seq"`
			} `json:"data"`
		}
		require.NoError(t, json.Unmarshal(raw, &env))
		require.Equal(t, i, env.Data.Seq)
	}
}

func TestHubUnregisterRemovesEmptyUserEntry(t *testing.T) {
	hub := newTestHub()

	first := newFakeConn()
	second := newFakeConn()
	c1 := hub.Register(3, first)
	c2 := hub.Register(3, second)
	require.Equal(t, 2, hub.ConnectionCount(3))

	hub.Unregister(3, c1)
	require.Equal(t, 1, hub.ConnectionCount(3))

	hub.Unregister(3, c2)
	require.Equal(t, 0, hub.ConnectionCount(3))

	// 重复注销是空操作
	hub.Unregister(3, c2)
	require.Equal(t, 0, hub.ConnectionCount(3))
}

func TestHubUnregisterClosesConnection(t *testing.T) {
	hub := newTestHub()

	conn := newFakeConn()
	c := hub.Register(5, conn)
	hub.Unregister(5, c)

	require.Eventually(t, func() bool {
		conn.mu.Lock()
		defer conn.mu.Unlock()
		return conn.closed
	}, 2*time.Second, 10*time.Millisecond)
}
