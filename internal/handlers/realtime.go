package handlers

import (
	"log"
	"net/http"
	"time"

	"feedlink/internal/middleware"
	"feedlink/internal/models"
	"feedlink/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = 45 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// 同源校验交给前置的会话鉴权，这里放开
	CheckOrigin: func(r *http.Request) bool { return true },
}

type RealtimeHandler struct{}

func NewRealtimeHandler() *RealtimeHandler {
	return &RealtimeHandler{}
}

// Subscribe 升级为 WebSocket 并把连接登记进 Hub。
// 读循环只用来探活（pong/断开），所有推送走 Hub 的写队列
func (h *RealtimeHandler) Subscribe(c *gin.Context) {
	user := c.MustGet(middleware.CheckUserKey).(*models.User)

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("websocket upgrade failed for user %d: %v", user.ID, err)
		return
	}

	hub := services.GetHub()
	conn := hub.Register(user.ID, ws)
	defer hub.Unregister(user.ID, conn)

	ws.SetReadLimit(512)
	ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				// WriteControl 可以与写队列并发
				if err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
					return
				}
			case <-done:
				return
			}
		}
	}()

	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			break
		}
	}
}
