package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/artisan-backend/internal/pipeline/renderer"
)

// RendererProbe resolves the renderer install without running it.
type RendererProbe interface {
	Locate(ctx context.Context) (renderer.Location, error)
}

type HealthHandler struct {
	probe       RendererProbe
	storageMode string
}

func NewHealthHandler(probe RendererProbe, storageMode string) *HealthHandler {
	return &HealthHandler{probe: probe, storageMode: storageMode}
}

type rendererHealth struct {
	Available bool   `json:"available"`
	Path      string `json:"path,omitempty"`
	Error     string `json:"error,omitempty"`
}

// GET /health. Always 200: a missing renderer degrades generation but the
// process itself is healthy.
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	rh := rendererHealth{}
	if h.probe != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		loc, err := h.probe.Locate(ctx)
		if err != nil {
			rh.Error = err.Error()
		} else {
			rh.Available = true
			rh.Path = loc.Executable
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"status":       "ok",
		"renderer":     rh,
		"storage_mode": h.storageMode,
	})
}
