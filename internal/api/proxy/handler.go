package proxy

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/liliang-cn/ragchat/internal/domain"
	"github.com/liliang-cn/ragchat/internal/service"
)

// RootMessage is returned by GET /
const RootMessage = "Please use the /chat/completions endpoint to get chat response"

// Handler handles model proxy requests
type Handler struct {
	proxyService *service.ProxyService
	maskErrors   bool
}

// NewHandler creates a new proxy handler. With maskErrors set, backend
// failures are answered with 200 and the error text as message content.
func NewHandler(proxyService *service.ProxyService, maskErrors bool) *Handler {
	return &Handler{proxyService: proxyService, maskErrors: maskErrors}
}

// RegisterRoutes registers proxy routes
func (h *Handler) RegisterRoutes(r gin.IRoutes) {
	r.GET("/", h.Root)
	r.POST("/api/chat", h.Chat)
}

// Root returns a static informational message
func (h *Handler) Root(c *gin.Context) {
	c.JSON(http.StatusOK, domain.RootResponse{Message: RootMessage})
}

// Chat forwards a chat request to the backend model server
func (h *Handler) Chat(c *gin.Context) {
	var req domain.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result := h.proxyService.Chat(c.Request.Context(), &req)
	if result.Failed() {
		c.Set("proxy_outcome", result.Outcome.String())
	}

	c.JSON(h.status(result), result.Response)
}

func (h *Handler) status(result *service.ProxyResult) int {
	if !result.Failed() || h.maskErrors {
		return http.StatusOK
	}
	if result.Outcome == service.ProxyInvalidRequest {
		return http.StatusBadRequest
	}
	return http.StatusBadGateway
}
