package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/artisan-backend/internal/http/handlers"
	httpMW "github.com/yungbote/artisan-backend/internal/http/middleware"
	"github.com/yungbote/artisan-backend/internal/observability"
	"github.com/yungbote/artisan-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log            *logger.Logger
	Metrics        *observability.Metrics
	ServiceName    string
	TracingEnabled bool
	CORSOrigins    []string
	MaxUploadBytes int64

	AssetHandler    *httpH.AssetHandler
	ProductHandler  *httpH.ProductHandler
	ARModelsHandler *httpH.ARModelsHandler
	HealthHandler   *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.MaxUploadBytes > 0 {
		r.MaxMultipartMemory = cfg.MaxUploadBytes
	}
	if cfg.TracingEnabled {
		name := cfg.ServiceName
		if name == "" {
			name = "artisan-backend"
		}
		r.Use(otelgin.Middleware(name))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.AttachRequestOrigin())
	if cfg.Log != nil {
		r.Use(httpMW.RequestLogger(cfg.Log))
	}
	if cfg.Metrics != nil {
		r.Use(httpMW.Metrics(cfg.Metrics))
	}
	r.Use(httpMW.CORS(cfg.CORSOrigins))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/health", cfg.HealthHandler.HealthCheck)
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}

	// Products
	if cfg.ProductHandler != nil {
		r.POST("/save_draft", cfg.ProductHandler.SaveDraft)
		r.GET("/get_product/:productId", cfg.ProductHandler.GetProduct)
		r.POST("/publish_product/:productId", cfg.ProductHandler.Publish)
	}

	// Asset generation
	if cfg.AssetHandler != nil {
		r.POST("/generate_ar_model/:productId", cfg.AssetHandler.GenerateARModel)
		r.POST("/api/generate-ar", cfg.AssetHandler.GenerateAdHoc)
	}

	// Local artifacts
	if cfg.ARModelsHandler != nil {
		r.GET("/ar_models/:file", cfg.ARModelsHandler.Serve)
		r.HEAD("/ar_models/:file", cfg.ARModelsHandler.Serve)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "route not found"})
	})

	return r
}
