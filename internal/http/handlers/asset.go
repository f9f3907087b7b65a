package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/artisan-backend/internal/http/response"
	"github.com/yungbote/artisan-backend/internal/pipeline"
	"github.com/yungbote/artisan-backend/internal/services"
)

const uploadField = "file"

type AssetHandler struct {
	assets         services.AssetGenerationService
	maxUploadBytes int64
}

func NewAssetHandler(assets services.AssetGenerationService, maxUploadBytes int64) *AssetHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = 25 << 20
	}
	return &AssetHandler{assets: assets, maxUploadBytes: maxUploadBytes}
}

// POST /generate_ar_model/:productId
func (h *AssetHandler) GenerateARModel(c *gin.Context) {
	productID := strings.TrimSpace(c.Param("productId"))
	if productID == "" {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", errors.New("missing product id"))
		return
	}
	upload, err := h.optionalUpload(c)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}

	res, err := h.assets.GenerateAsset(c.Request.Context(), productID, upload)
	if err != nil {
		respondErr(c, err)
		return
	}
	if res.Skipped {
		response.RespondOK(c, response.GenerateEnvelope{
			Success: true,
			Message: "Product is not eligible for AR model generation; nothing to do.",
		})
		return
	}
	response.RespondOK(c, response.GenerateEnvelope{
		Success:    true,
		ARModelURL: res.AssetURL,
		Message:    "AR model generated.",
	})
}

// POST /api/generate-ar converts an uploaded image and streams the artifact
// back without touching any product.
func (h *AssetHandler) GenerateAdHoc(c *gin.Context) {
	fh, err := c.FormFile(uploadField)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", fmt.Errorf("multipart field %q is required", uploadField))
		return
	}
	if ct := fh.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "image/") {
		response.RespondError(c, http.StatusBadRequest, pipeline.CodeInvalidImage, errors.New("file must be an image"))
		return
	}
	data, err := h.readPart(fh)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}

	name := fmt.Sprintf("ar_model_%s%s", uuid.NewString(), pipeline.ArtifactExt)
	err = h.assets.ConvertUpload(c.Request.Context(), data, func(artifact io.Reader, size int64) error {
		c.DataFromReader(http.StatusOK, size, pipeline.ArtifactContentType, artifact, map[string]string{
			"Content-Disposition": fmt.Sprintf(`attachment; filename="%s"`, name),
		})
		return nil
	})
	if err != nil {
		respondErr(c, err)
	}
}

func (h *AssetHandler) optionalUpload(c *gin.Context) ([]byte, error) {
	if !strings.HasPrefix(c.ContentType(), "multipart/") {
		return nil, nil
	}
	fh, err := c.FormFile(uploadField)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return h.readPart(fh)
}

func (h *AssetHandler) readPart(fh *multipart.FileHeader) ([]byte, error) {
	if fh.Size > h.maxUploadBytes {
		return nil, fmt.Errorf("upload exceeds %s bytes", strconv.FormatInt(h.maxUploadBytes, 10))
	}
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, h.maxUploadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > h.maxUploadBytes {
		return nil, fmt.Errorf("upload exceeds %d bytes", h.maxUploadBytes)
	}
	return data, nil
}
