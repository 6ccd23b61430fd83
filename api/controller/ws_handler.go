package controller

import (
	"net/http"
	"strconv"
	"strings"

	"codeinject-go-server/api/middleware"
	"codeinject-go-server/domain/entity"
	"codeinject-go-server/internal/ws"
	"codeinject-go-server/usecase"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// WSHandler 编辑器预览订阅目标的失效事件
type WSHandler struct {
	hub      *ws.Hub
	editor   *usecase.EditorUseCase
	verify   middleware.TokenVerifier
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

func NewWSHandler(hub *ws.Hub, editor *usecase.EditorUseCase, verify middleware.TokenVerifier, allowedOrigins []string, logger *zap.Logger) *WSHandler {
	if verify == nil {
		verify = middleware.ClerkVerifier
	}
	logger = logger.Named("ws")
	return &WSHandler{
		hub:    hub,
		editor: editor,
		verify: verify,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				// 开发环境允许所有
				if origin == "" || strings.HasPrefix(origin, "http://localhost") {
					return true
				}
				for _, allowed := range allowedOrigins {
					if allowed == "*" || origin == allowed {
						return true
					}
				}
				logger.Warn("[WS] ⚠️ origin rejected", zap.String("origin", origin))
				return false
			},
		},
	}
}

// HandleWS GET /ws?type=page&id=42&token=xxx
// WebSocket 不支持自定义 Header，token 放在查询参数或 Sec-WebSocket-Protocol
func (h *WSHandler) HandleWS(c *gin.Context) {
	kind, err := entity.ParseTargetKind(c.Query("type"))
	if err != nil {
		respondError(c, err)
		return
	}
	id := c.Query("id")
	if id == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "id is required"})
		return
	}

	// 浏览器通过子协议传 token 时，握手响应必须原样回显，否则连接会被浏览器关闭
	var upgradeHeader http.Header
	token := c.Query("token")
	if token == "" {
		token = strings.TrimSpace(c.GetHeader("Sec-WebSocket-Protocol"))
		if token != "" {
			upgradeHeader = http.Header{"Sec-Websocket-Protocol": {token}}
		}
	}
	if token == "" {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "missing token"})
		return
	}
	userID, err := h.verify(c.Request.Context(), token)
	if err != nil {
		h.logger.Warn("[WS] ❌ token rejected", zap.Error(err))
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "invalid token", Details: err.Error()})
		return
	}

	// 只能订阅自己站点下的目标
	ctx := c.Request.Context()
	if kind == entity.TargetSite {
		_, err = h.editor.AuthorizeSite(ctx, userID, id)
	} else {
		pageID, perr := strconv.ParseUint(id, 10, 64)
		if perr != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "page id must be a positive integer"})
			return
		}
		id = strconv.FormatUint(pageID, 10)
		_, err = h.editor.GetPage(ctx, userID, uint(pageID))
	}
	if err != nil {
		respondError(c, err)
		return
	}

	// 先升级再建房间，升级失败不会留下空房间
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, upgradeHeader)
	if err != nil {
		h.logger.Warn("[WS] ❌ upgrade failed", zap.Error(err))
		return
	}

	roomKey := entity.Target{Kind: kind, ID: id}.RoomKey()
	client := ws.NewClient(h.hub, conn, roomKey, userID)
	room, err := h.hub.GetOrCreateRoom(roomKey)
	if err == nil {
		err = room.Register(client)
	}
	if err != nil {
		// 房间正在关闭，客户端收到 1013 后重连
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, err.Error()))
		h.logger.Warn("[WS] ❌ register failed", zap.String("room", roomKey), zap.Error(err))
		_ = conn.Close()
		return
	}

	h.logger.Info("[WS] ✅ connected", zap.String("user", userID), zap.String("room", roomKey))

	go client.WritePump()
	go client.ReadPump()
}
