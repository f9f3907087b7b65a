package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/artisan-backend/internal/http/response"
	"github.com/yungbote/artisan-backend/internal/services"
)

type ProductHandler struct {
	products services.ProductService
}

func NewProductHandler(products services.ProductService) *ProductHandler {
	return &ProductHandler{products: products}
}

type saveDraftRequest struct {
	ID                 string `json:"id"`
	Title              string `json:"title"`
	Description        string `json:"description"`
	Category           string `json:"category"`
	ImageSource        string `json:"imageSource"`
	IsEligibleForAsset bool   `json:"isEligibleForAsset"`
}

// POST /save_draft
func (h *ProductHandler) SaveDraft(c *gin.Context) {
	var req saveDraftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	p, err := h.products.SaveDraft(c.Request.Context(), services.SaveDraftInput{
		ID:                 req.ID,
		Title:              req.Title,
		Description:        req.Description,
		Category:           req.Category,
		ImageSource:        req.ImageSource,
		IsEligibleForAsset: req.IsEligibleForAsset,
	})
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "product_id": p.ID, "product": p})
}

// GET /get_product/:productId
func (h *ProductHandler) GetProduct(c *gin.Context) {
	p, err := h.products.Get(c.Request.Context(), c.Param("productId"))
	if err != nil {
		respondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"success": true, "product": p})
}

type publishRequest struct {
	Price *float64 `json:"price"`
}

// POST /publish_product/:productId
func (h *ProductHandler) Publish(c *gin.Context) {
	var req publishRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Price == nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", errMissingPrice)
		return
	}
	p, err := h.products.Publish(c.Request.Context(), c.Param("productId"), *req.Price)
	if err != nil {
		respondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"success": true, "product": p})
}
