package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/artisan-backend/internal/http/response"
	"github.com/yungbote/artisan-backend/internal/platform/apierr"
	"github.com/yungbote/artisan-backend/internal/services"
)

func respondErr(c *gin.Context, err error) {
	_ = c.Error(err)
	response.RespondAPIError(c, toAPIError(err))
}

func toAPIError(err error) *apierr.Error {
	var invalid *services.InvalidInputError
	var conflict *services.ConflictError
	switch {
	case errors.As(err, &invalid):
		return apierr.New(http.StatusBadRequest, "invalid_request", err)
	case errors.As(err, &conflict):
		return apierr.New(http.StatusConflict, "product_exists", err)
	case errors.Is(err, context.Canceled):
		return apierr.New(499, "request_canceled", err)
	default:
		return apierr.FromPipeline(err)
	}
}

var errMissingPrice = errors.New("body must be JSON with a numeric price")
