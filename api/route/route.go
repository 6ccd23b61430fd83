package route

import (
	"net/http"

	"codeinject-go-server/api/controller"

	"github.com/gin-gonic/gin"
)

// Dependencies 路由依赖注入结构
type Dependencies struct {
	BundleController  *controller.BundleController
	PurgeController   *controller.PurgeController
	SiteController    *controller.SiteController
	PageController    *controller.PageController
	FileController    *controller.FileController
	LoaderController  *controller.LoaderController
	WebhookController *controller.WebhookController
	WSHandler         *controller.WSHandler

	// 中间件
	Auth        gin.HandlerFunc
	PurgeAuth   gin.HandlerFunc
	RateLimit   gin.HandlerFunc
	Metrics     http.Handler
	HealthCheck func() gin.H
}

// Setup 配置所有路由
func Setup(router *gin.Engine, deps *Dependencies) {
	// --- 公开路由 ---

	router.GET("/health", func(c *gin.Context) {
		body := gin.H{
			"status":  "ok",
			"service": "codeinject-go-server",
		}
		if deps.HealthCheck != nil {
			for k, v := range deps.HealthCheck() {
				body[k] = v
			}
		}
		c.JSON(http.StatusOK, body)
	})

	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics))
	}

	// Delivery Endpoint：宿主页面上的 loader 直接调用
	public := router.Group("/")
	if deps.RateLimit != nil {
		public.Use(deps.RateLimit)
	}
	{
		public.GET("/bundle", deps.BundleController.GetBundle)
		public.POST("/bundle", deps.BundleController.PostBundle)
		public.POST("/cache/purge", deps.PurgeAuth, deps.PurgeController.Purge)
	}

	// Webhook（使用签名验证，不使用 JWT）
	router.POST("/webhook/clerk", deps.WebhookController.HandleClerkWebhook)
	router.POST("/webhook/platform", deps.WebhookController.HandlePlatformWebhook)

	// --- WebSocket 路由 ---
	// WebSocket 自行在 Handler 中验证 Token
	router.GET("/ws", deps.WSHandler.HandleWS)

	// --- API 路由（需要 Clerk JWT 认证）---
	api := router.Group("/api")
	api.Use(deps.Auth)
	{
		// 站点
		api.GET("/sites", deps.SiteController.ListSites)
		api.POST("/sites", deps.SiteController.ConnectSite)
		api.GET("/sites/:siteId/pages", deps.SiteController.ListPages)
		api.POST("/sites/:siteId/sync", deps.SiteController.SyncSite)
		api.PUT("/sites/:siteId/files", deps.SiteController.UpdateFiles)
		api.GET("/sites/:siteId/files", deps.SiteController.ListFiles)
		api.POST("/sites/:siteId/scripts", deps.SiteController.RegisterScripts)

		// 页面
		api.GET("/pages/:pageId", deps.PageController.GetPage)
		api.PUT("/pages/:pageId/files", deps.PageController.UpdateFiles)
		api.PATCH("/pages/:pageId/files", deps.PageController.PatchFiles)
		api.POST("/pages/:pageId/scripts", deps.PageController.RegisterScripts)

		// 代码片段
		api.POST("/files", deps.FileController.CreateFile)
		api.PUT("/files/:fileId", deps.FileController.UpdateFile)
		api.DELETE("/files/:fileId", deps.FileController.DeleteFile)

		// loader 预览
		api.GET("/loader", deps.LoaderController.Preview)
	}
}
