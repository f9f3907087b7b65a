package handlers

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/artisan-backend/internal/http/response"
	"github.com/yungbote/artisan-backend/internal/pipeline"
)

const artifactCacheControl = "public, max-age=31536000, immutable"

// ARModelsHandler serves artifacts written by the local asset store.
type ARModelsHandler struct {
	dir string
}

func NewARModelsHandler(dir string) *ARModelsHandler {
	return &ARModelsHandler{dir: dir}
}

// GET /ar_models/:file
func (h *ARModelsHandler) Serve(c *gin.Context) {
	name := c.Param("file")
	if name == "" || name != filepath.Base(name) || strings.ContainsAny(name, `/\`) || strings.HasPrefix(name, ".") ||
		!strings.EqualFold(filepath.Ext(name), pipeline.ArtifactExt) {
		response.RespondError(c, http.StatusNotFound, "not_found", os.ErrNotExist)
		return
	}
	path := filepath.Join(h.dir, name)
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		response.RespondError(c, http.StatusNotFound, "not_found", os.ErrNotExist)
		return
	}
	c.Header("Content-Type", pipeline.ArtifactContentType)
	c.Header("Cache-Control", artifactCacheControl)
	c.File(path)
}
