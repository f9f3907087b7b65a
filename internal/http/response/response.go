package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/artisan-backend/internal/platform/apierr"
)

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

type ErrorEnvelope struct {
	Success bool     `json:"success"`
	Message string   `json:"message"`
	Error   APIError `json:"error"`
}

// GenerateEnvelope is the reply of the asset generation endpoint.
type GenerateEnvelope struct {
	Success    bool   `json:"success"`
	ARModelURL string `json:"ar_model_url,omitempty"`
	Message    string `json:"message,omitempty"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
	RespondAPIError(c, apierr.New(status, code, err))
}

func RespondAPIError(c *gin.Context, e *apierr.Error) {
	msg := "unknown error"
	if e != nil && e.Error() != "" {
		msg = e.Error()
	}
	status := http.StatusInternalServerError
	code := "internal_error"
	detail := ""
	if e != nil {
		if e.Status != 0 {
			status = e.Status
		}
		if e.Code != "" {
			code = e.Code
		}
		detail = e.Detail
	}
	c.AbortWithStatusJSON(status, ErrorEnvelope{
		Success: false,
		Message: msg,
		Error: APIError{
			Code:    code,
			Message: msg,
			Detail:  detail,
		},
	})
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}
