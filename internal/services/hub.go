package services

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/gorilla/websocket"
)

// 实时推送的事件名
const (
	EventNotificationNew    = "notification:new"
	EventNotificationRemove = "notification:remove"
	EventCommentNew         = "comment:new"
)

// wsConn 抽出 websocket 连接里 Hub 用到的两个方法，方便测试替身
type wsConn interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Connection 是某个用户的一条在线连接。写操作全部走 send 队列，
// 由专属 writer goroutine 串行落到底层连接上
type Connection struct {
	userID uint
	conn   wsConn
	send   chan []byte
}

func (c *Connection) writePump() {
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			log.Printf("realtime write to user %d failed: %v", c.userID, err)
			break
		}
	}
	// send 关闭（注销）或写失败后收尾；残留消息直接丢弃，
	// 客户端重连后以持久化状态为准
	for range c.send {
	}
	c.conn.Close()
}

// Hub 是进程级连接注册表：userID → 在线连接集合。
// 同一用户可以有多条连接（多设备/多标签页），不落库，
// 连接断开即出表，最后一条连接移除时整个用户条目一起移除
type Hub struct {
	mu    sync.RWMutex
	conns map[uint]map[*Connection]struct{}
}

var (
	hubInstance *Hub
	hubOnce     sync.Once
)

// GetHub 获取单例连接注册表
func GetHub() *Hub {
	hubOnce.Do(func() {
		hubInstance = &Hub{
			conns: make(map[uint]map[*Connection]struct{}),
		}
	})
	return hubInstance
}

// Register 登记一条已通过鉴权的连接并启动它的 writer
func (h *Hub) Register(userID uint, conn wsConn) *Connection {
	c := &Connection{
		userID: userID,
		conn:   conn,
		send:   make(chan []byte, 64),
	}

	h.mu.Lock()
	if h.conns[userID] == nil {
		h.conns[userID] = make(map[*Connection]struct{})
	}
	h.conns[userID][c] = struct{}{}
	h.mu.Unlock()

	go c.writePump()
	return c
}

// Unregister 摘除连接；用户最后一条连接摘掉后条目整体删除
func (h *Hub) Unregister(userID uint, c *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set, ok := h.conns[userID]
	if !ok {
		return
	}
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	close(c.send)
	if len(set) == 0 {
		delete(h.conns, userID)
	}
}

type envelope struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// Emit 向用户的所有在线连接推送事件。尽力而为：用户不在线直接丢弃，
// 某条连接的队列满了也丢弃（只记日志），永远不阻塞调用方。
// 对同一用户的先后两次 Emit 在每条连接上保持调用顺序
func (h *Hub) Emit(userID uint, event string, payload interface{}) {
	raw, err := json.Marshal(envelope{Event: event, Data: payload})
	if err != nil {
		log.Printf("realtime marshal %s failed: %v", event, err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.conns[userID] {
		select {
		case c.send <- raw:
		default:
			log.Printf("realtime queue full, dropping %s for user %d", event, userID)
		}
	}
}

// ConnectionCount 返回用户当前在线连接数
func (h *Hub) ConnectionCount(userID uint) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns[userID])
}
