package ws

import (
	"sync"

	"codeinject-go-server/domain/entity"
	domainErrors "codeinject-go-server/domain/errors"

	"go.uber.org/zap"
)

// ========== Actor Model: Hub 是生死的唯一仲裁者 ==========
// Hub 不处理任何业务消息，只管理 Room 的生命周期

// Hub 维护房间目录，同时把缓存失效事件转发给对应房间
type Hub struct {
	rooms    map[string]*Room
	mu       sync.RWMutex
	idleRoom chan *Room
	quit     chan struct{}
	quitOnce sync.Once
	logger   *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		rooms:    make(map[string]*Room),
		idleRoom: make(chan *Room, 16),
		quit:     make(chan struct{}),
		logger:   logger.Named("hub"),
	}
}

// Run Hub 事件循环，Shutdown 后退出
func (h *Hub) Run() {
	h.logger.Info("[Hub] 🚀 started")
	for {
		select {
		case room := <-h.idleRoom:
			go h.handleIdleRoom(room)
		case <-h.quit:
			return
		}
	}
}

// Shutdown 停止所有房间，可重复调用
func (h *Hub) Shutdown() {
	h.quitOnce.Do(func() { close(h.quit) })

	h.mu.Lock()
	rooms := make([]*Room, 0, len(h.rooms))
	for id, room := range h.rooms {
		rooms = append(rooms, room)
		delete(h.rooms, id)
	}
	h.mu.Unlock()

	for _, room := range rooms {
		room.Stop()
	}
}

// handleIdleRoom 双重检查后决定是否销毁
func (h *Hub) handleIdleRoom(room *Room) {
	if room.ClientCount() > 0 {
		h.logger.Debug("[Hub] 🔄 room has viewers again, keep it", zap.String("room", room.ID))
		return
	}

	room.Stop()

	h.mu.Lock()
	defer h.mu.Unlock()

	// 检查指针同一性，防止误删 Stop 期间新建的同名房间
	if current, ok := h.rooms[room.ID]; ok && current == room {
		delete(h.rooms, room.ID)
		h.logger.Debug("[Hub] 🗑️ room destroyed", zap.String("room", room.ID))
	}
}

// GetRoom 只读获取房间，不创建
func (h *Hub) GetRoom(roomID string) *Room {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.rooms[roomID]
}

// GetOrCreateRoom 线程安全地获取或创建房间
// 房间正在关闭时返回 ErrRoomClosing，客户端重试即可
func (h *Hub) GetOrCreateRoom(roomID string) (*Room, error) {
	h.mu.RLock()
	room, exists := h.rooms[roomID]
	h.mu.RUnlock()
	if exists {
		if room.IsStopping() {
			return nil, domainErrors.ErrRoomClosing
		}
		return room, nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	// 双重检查
	if room, exists = h.rooms[roomID]; exists {
		if room.IsStopping() {
			return nil, domainErrors.ErrRoomClosing
		}
		return room, nil
	}

	room = NewRoom(roomID, h, h.logger)
	h.rooms[roomID] = room
	h.logger.Debug("[Hub] 🏠 room created", zap.String("room", roomID))
	return room, nil
}

// NotifyIdle 供 Room 调用；Hub 已关闭时直接忽略
func (h *Hub) NotifyIdle(room *Room) {
	select {
	case h.idleRoom <- room:
	case <-h.quit:
	}
}

// NotifyInvalidated 把失效事件推给该目标的房间，没有订阅者时什么都不做
func (h *Hub) NotifyInvalidated(target entity.Target) {
	room := h.GetRoom(target.RoomKey())
	if room == nil {
		return
	}
	room.Broadcast(InvalidatedMessage(target))
}

// RoomCount 测试和 /health 使用
func (h *Hub) RoomCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms)
}
