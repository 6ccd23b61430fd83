package ws

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// 心跳配置
const (
	pongWait       = 60 * time.Second    // 等待 Pong 响应的最大时间
	pingPeriod     = (pongWait * 9) / 10 // Ping 发送间隔，必须小于 pongWait
	writeWait      = 10 * time.Second    // 写消息超时时间
	maxMessageSize = 4 * 1024            // 预览只发心跳，不需要大消息
	sendBuffer     = 32
)

// Client 一个编辑器预览的 WebSocket 连接，只接收推送
type Client struct {
	Hub     *Hub
	Conn    *websocket.Conn
	RoomKey string
	UserID  string
	Room    *Room
	send    chan []byte
	logger  *zap.Logger
}

func NewClient(hub *Hub, conn *websocket.Conn, roomKey, userID string) *Client {
	return &Client{
		Hub:     hub,
		Conn:    conn,
		RoomKey: roomKey,
		UserID:  userID,
		send:    make(chan []byte, sendBuffer),
		logger:  hub.logger.With(zap.String("room", roomKey), zap.String("user", userID)),
	}
}

// trySend 只能在 Room 的 run 循环里调用（send 由 run 负责关闭）
func (c *Client) trySend(msg []byte) bool {
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// WritePump 负责写消息和发送心跳 Ping
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// send 已关闭：被房间踢出或房间停止
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ReadPump 处理心跳，客户端的 ping 消息直接回 pong
func (c *Client) ReadPump() {
	defer func() {
		if c.Room != nil {
			c.Room.Unregister(c)
		}
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn("[Client] connection closed unexpectedly", zap.Error(err))
			}
			return
		}
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))

		var msg WSMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			c.reply(encode(TypeError, ErrorPayload{Code: ErrInvalidMessage, Message: "malformed message"}))
			continue
		}
		if msg.Type == TypePing {
			c.reply(encode(TypePong, nil))
		}
	}
}

// reply 经由房间投递，保证 send 只被 run 循环关闭
func (c *Client) reply(msg []byte) {
	if c.Room != nil {
		c.Room.sendTo(c, msg)
	}
}
