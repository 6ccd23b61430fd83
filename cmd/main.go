package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"codeinject-go-server/api/controller"
	"codeinject-go-server/api/middleware"
	"codeinject-go-server/api/route"
	"codeinject-go-server/bootstrap"
	"codeinject-go-server/internal/cache"
	"codeinject-go-server/internal/platform"
	"codeinject-go-server/internal/telemetry"
	"codeinject-go-server/internal/ws"
	"codeinject-go-server/usecase"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	// 加载环境变量
	env, err := bootstrap.LoadEnv()
	if err != nil {
		log.Fatalf("[Server] ❌ %v", err)
	}

	logger, err := bootstrap.NewLogger(env.Environment, env.LogLevel)
	if err != nil {
		log.Fatalf("[Server] ❌ %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("[Server] CodeInject Go Server 启动中...", zap.String("env", env.Environment))

	// 初始化 Clerk
	bootstrap.InitClerk(env.ClerkSecretKey, logger)

	// 指标
	tel, err := telemetry.NewTelemetry(logger)
	if err != nil {
		logger.Fatal("[Server] ❌ telemetry init failed", zap.Error(err))
	}
	metrics, err := telemetry.NewMetrics(tel.Meter)
	if err != nil {
		logger.Fatal("[Server] ❌ metrics init failed", zap.Error(err))
	}

	// 依赖注入 - Repository 层
	repos, err := bootstrap.NewRepositories(env, logger)
	if err != nil {
		logger.Fatal("[Server] ❌ repository init failed", zap.Error(err))
	}

	// 外部依赖
	platformClient := platform.NewClient(platform.Config{
		BaseURL: env.PlatformAPIBase,
		Token:   env.PlatformToken,
		Timeout: env.UpstreamTimeout,
	}, logger)

	bundleCache := cache.NewTTLCache(env.CacheTTL, env.CacheCapacity)
	go bundleCache.Start()

	// WebSocket Hub
	hub := ws.NewHub(logger)
	go hub.Run()

	// 依赖注入 - UseCase 层
	bundleUseCase := usecase.NewBundleUseCase(repos.Pages, repos.Sites, repos.Files, bundleCache, hub, metrics, logger)
	editorUseCase := usecase.NewEditorUseCase(repos.Sites, repos.Pages, repos.Files, bundleUseCase, logger)
	syncUseCase := usecase.NewSyncUseCase(repos.Pages, repos.Sites, platformClient, bundleUseCase, metrics, logger, env.SyncConcurrency)
	scriptUseCase := usecase.NewScriptUseCase(repos.Pages, repos.Sites, platformClient, usecase.ScriptConfig{
		EndpointBase:    env.PublicBaseURL,
		PageMaxAttempts: env.PageScriptMaxAttempts,
		SiteMaxAttempts: env.SiteScriptMaxAttempts,
	}, metrics, logger)

	// 依赖注入 - Controller 层
	verify := middleware.TokenVerifier(middleware.ClerkVerifier)
	rateLimiter := middleware.NewRateLimiter(env.RateLimitRPS, env.RateLimitBurst)
	rateLimiter.Start()

	deps := &route.Dependencies{
		BundleController:  controller.NewBundleController(bundleUseCase, env.CacheTTL),
		PurgeController:   controller.NewPurgeController(bundleUseCase),
		SiteController:    controller.NewSiteController(editorUseCase, syncUseCase, scriptUseCase),
		PageController:    controller.NewPageController(editorUseCase, scriptUseCase),
		FileController:    controller.NewFileController(editorUseCase),
		LoaderController:  controller.NewLoaderController(editorUseCase, env.PublicBaseURL),
		WebhookController: controller.NewWebhookController(repos.Users, syncUseCase, env.ClerkWebhookSecret, env.PlatformWebhookSecret, logger),
		WSHandler:         controller.NewWSHandler(hub, editorUseCase, verify, env.AllowedOrigins, logger),

		Auth:      middleware.ClerkAuth(verify),
		PurgeAuth: middleware.PurgeAuth(env.PurgeSecret, logger),
		RateLimit: rateLimiter.Middleware(),
		Metrics:   tel.Handler(),
		HealthCheck: func() gin.H {
			db := "ok"
			if err := repos.Ping(); err != nil {
				db = err.Error()
			}
			return gin.H{
				"database":      db,
				"cachedBundles": bundleCache.Len(),
				"rooms":         hub.RoomCount(),
			}
		},
	}

	if env.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(middleware.RequestLogger(logger), gin.Recovery())

	// CORS 配置
	// loader 运行在任意宿主站点上，Delivery Endpoint 必须允许所有来源；编辑器接口靠 JWT 保护
	router.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Content-Type", "Authorization", "If-None-Match", middleware.HeaderPurgeSecret},
		ExposeHeaders:   []string{"Content-Length", "ETag", "X-Cache", middleware.HeaderRequestID},
		MaxAge:          12 * time.Hour,
	}))

	// 设置路由
	route.Setup(router, deps)

	// 启动 HTTP 服务
	srv := &http.Server{
		Addr:              ":" + env.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("[Server] 服务已启动",
			zap.String("addr", "http://localhost:"+env.Port),
			zap.String("endpoint", env.PublicBaseURL),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("[Server] 服务启动失败", zap.Error(err))
		}
	}()

	// 优雅停机
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("[Server] 收到停机信号，正在优雅关闭...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("[Server] 服务强制关闭", zap.Error(err))
	}

	hub.Shutdown()
	rateLimiter.Stop()
	bundleCache.Stop()
	if err := tel.Shutdown(ctx); err != nil {
		logger.Warn("[Server] telemetry shutdown", zap.Error(err))
	}
	if err := repos.Close(); err != nil {
		logger.Warn("[Server] database close", zap.Error(err))
	}

	logger.Info("[Server] 服务已安全停止")
}
