package ws

import (
	"encoding/json"
	"time"

	"codeinject-go-server/domain/entity"
)

type MessageType string

const (
	// 服务端推送
	TypeSubscribed  MessageType = "subscribed"  // 订阅成功
	TypeInvalidated MessageType = "invalidated" // 目标缓存已失效，预览需要重新拉取
	TypePong        MessageType = "pong"
	TypeError       MessageType = "error"

	// 客户端发送
	TypePing MessageType = "ping"
)

// WSMessage 统一的 WebSocket 消息结构
type WSMessage struct {
	Type      MessageType     `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp int64           `json:"ts"`
}

// SubscribedPayload 订阅确认
type SubscribedPayload struct {
	Room    string `json:"room"`
	Viewers int    `json:"viewers"`
}

// InvalidatedPayload 失效事件，Location 为空表示两个位置都失效
type InvalidatedPayload struct {
	Type     entity.TargetKind `json:"type"`
	ID       string            `json:"id"`
	Location entity.Location   `json:"location,omitempty"`
}

// ========== 错误码系统 ==========
// 前端根据 Code 判断错误类型，而不是匹配 Message 字符串

type ErrorCode string

const (
	ErrInvalidMessage ErrorCode = "INVALID_MESSAGE"
	ErrRoomNotFound   ErrorCode = "ROOM_NOT_FOUND"
	ErrUnauthorized   ErrorCode = "UNAUTHORIZED"
	ErrInternalError  ErrorCode = "INTERNAL_ERROR"
)

type ErrorPayload struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// encode 序列化失败只可能来自不可编码的 payload，这里的 payload 都是固定结构
func encode(t MessageType, payload any) []byte {
	var raw json.RawMessage
	if payload != nil {
		raw, _ = json.Marshal(payload)
	}
	data, _ := json.Marshal(WSMessage{
		Type:      t,
		Payload:   raw,
		Timestamp: time.Now().UnixMilli(),
	})
	return data
}

// InvalidatedMessage 构造推送给预览的失效消息
func InvalidatedMessage(target entity.Target) []byte {
	return encode(TypeInvalidated, InvalidatedPayload{
		Type:     target.Kind,
		ID:       target.ID,
		Location: target.Location,
	})
}
