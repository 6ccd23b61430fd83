package ws

import (
	"sync"
	"sync/atomic"

	domainErrors "codeinject-go-server/domain/errors"

	"go.uber.org/zap"
)

// ========== Actor Model: Room 是完全自治的独立单元 ==========
// clients map 只在 run() 循环内访问，无需锁！

// Room 一个注入目标（page:<id> 或 site:<id>）的订阅者集合
type Room struct {
	ID string

	clients map[*Client]bool
	viewers atomic.Int32

	broadcast  chan []byte
	direct     chan directMessage
	register   chan *Client
	unregister chan *Client
	stopChan   chan struct{}
	done       chan struct{}
	stopOnce   sync.Once
	stopping   atomic.Bool

	// 反向引用：房间空闲时通知 Hub
	hub    *Hub
	logger *zap.Logger
}

// NewRoom 创建房间并启动事件循环
func NewRoom(id string, hub *Hub, logger *zap.Logger) *Room {
	r := &Room{
		ID:         id,
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 64),
		direct:     make(chan directMessage, 16),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		stopChan:   make(chan struct{}),
		done:       make(chan struct{}),
		hub:        hub,
		logger:     logger.With(zap.String("room", id)),
	}

	go r.run()

	r.logger.Debug("[Room] 🚀 started")
	return r
}

// run 所有逻辑串行处理，所以 clients map 不需要锁
func (r *Room) run() {
	defer func() {
		for client := range r.clients {
			close(client.send)
		}
		r.clients = nil
		close(r.done)
		r.logger.Debug("[Room] 🛑 stopped")
	}()

	for {
		select {
		case client := <-r.register:
			r.clients[client] = true
			r.viewers.Store(int32(len(r.clients)))
			client.trySend(encode(TypeSubscribed, SubscribedPayload{Room: r.ID, Viewers: len(r.clients)}))
			r.logger.Info("[Room] 👋 viewer joined",
				zap.String("user", client.UserID), zap.Int("viewers", len(r.clients)))

		case client := <-r.unregister:
			if _, ok := r.clients[client]; ok {
				delete(r.clients, client)
				close(client.send)
				r.viewers.Store(int32(len(r.clients)))
				r.logger.Info("[Room] 👋 viewer left",
					zap.String("user", client.UserID), zap.Int("viewers", len(r.clients)))

				// 空了交给 Hub 仲裁，Hub 双重检查后再 Stop
				if len(r.clients) == 0 && r.hub != nil {
					r.hub.NotifyIdle(r)
				}
			}

		case msg := <-r.broadcast:
			// 失效事件丢了也只是预览晚一点刷新，慢客户端直接踢出
			dropped := 0
			for client := range r.clients {
				if !client.trySend(msg) {
					r.logger.Warn("[Room] ⚠️ send buffer full, dropping viewer", zap.String("user", client.UserID))
					delete(r.clients, client)
					close(client.send)
					dropped++
				}
			}
			r.viewers.Store(int32(len(r.clients)))
			if dropped > 0 && len(r.clients) == 0 && r.hub != nil {
				r.hub.NotifyIdle(r)
			}

		case dm := <-r.direct:
			if r.clients[dm.client] {
				dm.client.trySend(dm.message)
			}

		case <-r.stopChan:
			return
		}
	}
}

type directMessage struct {
	client  *Client
	message []byte
}

// sendTo 单独回复某个客户端（心跳 pong、错误）
func (r *Room) sendTo(client *Client, message []byte) {
	select {
	case r.direct <- directMessage{client: client, message: message}:
	case <-r.stopChan:
	default:
	}
}

// ========== 对外暴露的接口 ==========

// Register 房间已停止时返回 ErrRoomClosing
func (r *Room) Register(client *Client) error {
	client.Room = r
	select {
	case r.register <- client:
		return nil
	case <-r.stopChan:
		return domainErrors.ErrRoomClosing
	}
}

func (r *Room) Unregister(client *Client) {
	select {
	case r.unregister <- client:
	case <-r.done:
	}
}

// Broadcast 不阻塞：房间已停止或队列已满时丢弃
func (r *Room) Broadcast(message []byte) bool {
	select {
	case <-r.stopChan:
		return false
	default:
	}
	select {
	case r.broadcast <- message:
		return true
	default:
		r.logger.Warn("[Room] ⚠️ broadcast queue full, event dropped")
		return false
	}
}

// ClientCount 当前订阅人数（由 run 循环维护）
func (r *Room) ClientCount() int {
	return int(r.viewers.Load())
}

func (r *Room) IsStopping() bool {
	return r.stopping.Load()
}

// Stop 停止房间并等待事件循环退出，可重复调用
func (r *Room) Stop() {
	r.stopOnce.Do(func() {
		r.stopping.Store(true)
		close(r.stopChan)
	})
	<-r.done
}
