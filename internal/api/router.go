package api

import (
	"github.com/gin-gonic/gin"
	"github.com/liliang-cn/ragchat/internal/api/middleware"
	"github.com/liliang-cn/ragchat/internal/api/proxy"
	"github.com/liliang-cn/ragchat/internal/service"
	"go.uber.org/zap"
)

// RouterConfig holds configuration for the router
type RouterConfig struct {
	APIKey            string
	AllowOrigins      []string
	MaskBackendErrors bool
}

// SetupRouter sets up the Gin router for the model proxy
func SetupRouter(
	proxyService *service.ProxyService,
	logger *zap.Logger,
	cfg RouterConfig,
) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.Logger(logger))

	// CORS middleware
	r.Use(middleware.CORS(cfg.AllowOrigins))

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok", "model": proxyService.Model()})
	})

	// Proxy API (requires API key when one is configured)
	proxyHandler := proxy.NewHandler(proxyService, cfg.MaskBackendErrors)
	proxyGroup := r.Group("/")
	proxyGroup.Use(middleware.Auth(cfg.APIKey))
	proxyHandler.RegisterRoutes(proxyGroup)

	return r
}
