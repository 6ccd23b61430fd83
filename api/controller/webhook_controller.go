package controller

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"codeinject-go-server/domain/entity"
	domainRepo "codeinject-go-server/domain/repository"
	"codeinject-go-server/internal/platform"
	"codeinject-go-server/usecase"

	"github.com/gin-gonic/gin"
	svix "github.com/svix/svix-webhooks/go"
	"go.uber.org/zap"
)

// webhook 触发的同步在后台执行，不受请求生命周期约束
const webhookSyncTimeout = 2 * time.Minute

// SiteSyncer webhook 触发同步（SyncUseCase 实现）
type SiteSyncer interface {
	SyncSite(ctx context.Context, siteID string) (usecase.SyncResult, error)
}

// WebhookController 处理 Clerk 与宿主平台的 Webhook 回调
type WebhookController struct {
	userRepo       domainRepo.UserRepository
	syncer         SiteSyncer
	clerkSecret    string
	platformSecret string
	logger         *zap.Logger
	now            func() time.Time
}

func NewWebhookController(userRepo domainRepo.UserRepository, syncer SiteSyncer, clerkSecret, platformSecret string, logger *zap.Logger) *WebhookController {
	return &WebhookController{
		userRepo:       userRepo,
		syncer:         syncer,
		clerkSecret:    clerkSecret,
		platformSecret: platformSecret,
		logger:         logger.Named("webhook"),
		now:            time.Now,
	}
}

// ClerkWebhookPayload Clerk Webhook 事件结构
type ClerkWebhookPayload struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// ClerkUserData Clerk 用户数据结构
type ClerkUserData struct {
	ID             string `json:"id"`
	EmailAddresses []struct {
		EmailAddress string `json:"email_address"`
	} `json:"email_addresses"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	ImageURL  string `json:"image_url"`
}

// HandleClerkWebhook POST /webhook/clerk
// 处理 user.created, user.updated, user.deleted 事件
func (wc *WebhookController) HandleClerkWebhook(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "cannot read request body"})
		return
	}

	// 使用 Svix SDK 验证签名
	if wc.clerkSecret != "" {
		wh, err := svix.NewWebhook(wc.clerkSecret)
		if err != nil {
			wc.logger.Error("[Webhook] ❌ invalid svix secret", zap.Error(err))
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "webhook misconfigured"})
			return
		}

		headers := http.Header{}
		headers.Set("svix-id", c.GetHeader("svix-id"))
		headers.Set("svix-timestamp", c.GetHeader("svix-timestamp"))
		headers.Set("svix-signature", c.GetHeader("svix-signature"))

		if err := wh.Verify(body, headers); err != nil {
			wc.logger.Warn("[Webhook] ❌ clerk signature rejected", zap.Error(err))
			c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "invalid signature"})
			return
		}
	} else {
		wc.logger.Warn("[Webhook] ⚠️ CLERK_WEBHOOK_SECRET not set, skipping verification (development only)")
	}

	var payload ClerkWebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid JSON"})
		return
	}

	wc.logger.Info("[Webhook] 📥 clerk event", zap.String("type", payload.Type))

	ctx := c.Request.Context()
	switch payload.Type {
	case "user.created", "user.updated":
		wc.handleUserUpsert(ctx, payload.Data)
	case "user.deleted":
		wc.handleUserDeleted(ctx, payload.Data)
	default:
		wc.logger.Debug("[Webhook] ignored clerk event", zap.String("type", payload.Type))
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}

func (wc *WebhookController) handleUserUpsert(ctx context.Context, data json.RawMessage) {
	var userData ClerkUserData
	if err := json.Unmarshal(data, &userData); err != nil {
		wc.logger.Error("[Webhook] ❌ cannot parse user data", zap.Error(err))
		return
	}

	email := ""
	if len(userData.EmailAddresses) > 0 {
		email = userData.EmailAddresses[0].EmailAddress
	}

	name := userData.FirstName
	if userData.LastName != "" {
		if name != "" {
			name += " "
		}
		name += userData.LastName
	}

	user := &entity.User{
		ID:        userData.ID,
		Email:     email,
		Name:      name,
		AvatarURL: userData.ImageURL,
	}
	if err := wc.userRepo.Upsert(ctx, user); err != nil {
		wc.logger.Error("[Webhook] ❌ user upsert failed", zap.String("user", user.ID), zap.Error(err))
		return
	}
	wc.logger.Info("[Webhook] ✅ user synced", zap.String("user", user.ID))
}

// handleUserDeleted 只删除用户记录，站点保留（所有者失效后无人可编辑）
func (wc *WebhookController) handleUserDeleted(ctx context.Context, data json.RawMessage) {
	var userData struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &userData); err != nil || userData.ID == "" {
		wc.logger.Error("[Webhook] ❌ cannot parse user.deleted payload", zap.Error(err))
		return
	}
	if err := wc.userRepo.Delete(ctx, userData.ID); err != nil {
		wc.logger.Error("[Webhook] ❌ user delete failed", zap.String("user", userData.ID), zap.Error(err))
		return
	}
	wc.logger.Info("[Webhook] 🗑️ user deleted", zap.String("user", userData.ID))
}

// HandlePlatformWebhook POST /webhook/platform
// 页面增删改、站点发布 → 后台同步该站点页面列表
func (wc *WebhookController) HandlePlatformWebhook(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "cannot read request body"})
		return
	}

	if wc.platformSecret != "" {
		err := platform.VerifyWebhook(wc.platformSecret,
			c.GetHeader(platform.HeaderWebhookTimestamp),
			c.GetHeader(platform.HeaderWebhookSignature),
			body, wc.now())
		if err != nil {
			wc.logger.Warn("[Webhook] ❌ platform signature rejected", zap.Error(err))
			c.JSON(http.StatusUnauthorized, ErrorResponse{Error: err.Error()})
			return
		}
	} else {
		wc.logger.Warn("[Webhook] ⚠️ PLATFORM_WEBHOOK_SECRET not set, skipping verification (development only)")
	}

	var event platform.WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid JSON"})
		return
	}

	siteID := event.Payload.SiteID
	if !platform.SyncTriggers[event.TriggerType] || siteID == "" {
		wc.logger.Debug("[Webhook] ignored platform event", zap.String("trigger", event.TriggerType))
		c.JSON(http.StatusOK, gin.H{"received": true, "sync": false})
		return
	}

	go wc.syncInBackground(siteID, event.TriggerType)
	c.JSON(http.StatusAccepted, gin.H{"received": true, "sync": true})
}

func (wc *WebhookController) syncInBackground(siteID, trigger string) {
	ctx, cancel := context.WithTimeout(context.Background(), webhookSyncTimeout)
	defer cancel()

	result, err := wc.syncer.SyncSite(ctx, siteID)
	if err != nil {
		wc.logger.Error("[Webhook] ❌ triggered sync failed",
			zap.String("site", siteID), zap.String("trigger", trigger), zap.Error(err))
		return
	}
	wc.logger.Info("[Webhook] ✅ triggered sync done",
		zap.String("site", siteID), zap.String("trigger", trigger),
		zap.Int("added", result.Added), zap.Int("updated", result.Updated), zap.Int("deleted", result.Deleted))
}
