package app

import (
	"github.com/gin-gonic/gin"

	apphttp "github.com/yungbote/artisan-backend/internal/http"
	"github.com/yungbote/artisan-backend/internal/observability"
	"github.com/yungbote/artisan-backend/internal/platform/logger"
)

func wireRouter(log *logger.Logger, cfg Config, handlers Handlers, metrics *observability.Metrics, tracing bool) *gin.Engine {
	return apphttp.NewRouter(apphttp.RouterConfig{
		Log:             log,
		Metrics:         metrics,
		ServiceName:     "artisan-backend",
		TracingEnabled:  tracing,
		CORSOrigins:     cfg.CORSOrigins,
		MaxUploadBytes:  cfg.ImageMaxBytes,
		AssetHandler:    handlers.Asset,
		ProductHandler:  handlers.Product,
		ARModelsHandler: handlers.ARModels,
		HealthHandler:   handlers.Health,
	})
}
