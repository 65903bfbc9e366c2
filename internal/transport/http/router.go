package httptransport

import (
	"net/http"
	"time"

	gincors "github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tempinbox/backend/internal/config"
	"tempinbox/backend/internal/health"
	"tempinbox/backend/internal/middleware"
	"tempinbox/backend/internal/monitoring"
	"tempinbox/backend/internal/service"
	"tempinbox/backend/internal/websocket"
)

// RouterDependencies 路由器依赖项
type RouterDependencies struct {
	Config         *config.Config
	MailboxService *service.MailboxService
	WebSocketHub   *websocket.Hub
	HealthChecker  *health.HealthChecker
	Metrics        *monitoring.Metrics
	Logger         *zap.Logger
}

// NewRouter 创建并返回 Gin 路由实例。
func NewRouter(deps RouterDependencies) *gin.Engine {
	router := gin.New()

	// 使用自定义中间件替代默认中间件
	router.Use(middleware.RecoveryHandler(deps.Logger))
	router.Use(middleware.RequestLogger(deps.Logger))
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.BodySizeLimit(middleware.DefaultBodyLimit))

	if deps.Metrics != nil {
		mm := middleware.NewMonitoringMiddleware(deps.Metrics, deps.Logger)
		router.Use(mm.HTTPMetrics())
	}

	// CORS 配置
	corsConfig := gincors.Config{
		AllowOrigins:     deps.Config.CORS.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}

	// 如果允许所有来源，则需清空凭证支持。
	for _, origin := range corsConfig.AllowOrigins {
		if origin == "*" {
			corsConfig.AllowCredentials = false
			break
		}
	}
	router.Use(gincors.New(corsConfig))

	// 创建处理器
	handler := NewHandler(deps.MailboxService)
	compatHandler := NewCompatHandler(deps.MailboxService)

	// 邮箱创建限流
	createLimiter := middleware.NewRateLimiter(deps.Config.RateLimit.CreatePerMinute, deps.Logger)

	// 健康检查
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if deps.HealthChecker != nil {
		router.GET("/health/live", gin.WrapF(deps.HealthChecker.LiveEndpoint))
		router.GET("/health/ready", gin.WrapF(deps.HealthChecker.ReadyEndpoint))
	}

	// Prometheus 指标
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics.HTTPHandler()))
	}

	// V1 API
	v1 := router.Group("/v1")
	{
		mailboxRoutes := v1.Group("/mailboxes")
		{
			mailboxRoutes.POST("", createLimiter.Middleware(), handler.CreateMailbox)
			mailboxRoutes.GET("/:id", handler.GetMailbox)
			mailboxRoutes.GET("/:id/messages", handler.ListMessages)
			mailboxRoutes.POST("/:id/refresh", handler.RefreshMailbox)
			mailboxRoutes.DELETE("/:id", handler.DeleteMailbox)
		}

		// WebSocket 实时推送
		v1.GET("/ws", websocket.HandleWebSocket(deps.WebSocketHub))
	}

	// 兼容旧版前端的 API
	api := router.Group("/api")
	{
		api.GET("/new_email", createLimiter.Middleware(), compatHandler.NewEmail)
		api.GET("/check_email/:emailId", compatHandler.CheckEmail)
		api.POST("/delete_email", compatHandler.DeleteEmail)
		api.POST("/refresh_email", compatHandler.RefreshEmail)
	}

	// 兼容旧版前端的 WebSocket 路径
	router.GET("/ws/inbox/:mailboxId", websocket.HandleWebSocket(deps.WebSocketHub))

	return router
}
