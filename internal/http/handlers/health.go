package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
)

type StoreHealth interface {
	Health(ctx context.Context) (int, error)
}

type HealthHandler struct {
	store StoreHealth
}

func NewHealthHandler(store StoreHealth) *HealthHandler { return &HealthHandler{store: store} }

// HealthCheck is process liveness only.
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

// StoreStatus reports whether the vector store answers.
func (h *HealthHandler) StoreStatus(c *gin.Context) {
	n, err := h.store.Health(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unhealthy",
			"qdrant": "disconnected",
			"error":  err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "qdrant": "connected", "collections": n})
}

// NotFound answers unmatched routes.
func NotFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "Not found", "path": c.Request.URL.Path})
}
