package app

import (
	httpH "github.com/yungbote/artisan-backend/internal/http/handlers"
	"github.com/yungbote/artisan-backend/internal/platform/logger"
)

type Handlers struct {
	Health   *httpH.HealthHandler
	Product  *httpH.ProductHandler
	Asset    *httpH.AssetHandler
	ARModels *httpH.ARModelsHandler
}

func wireHandlers(log *logger.Logger, cfg Config, svcs Services) Handlers {
	log.Info("Wiring handlers...")
	h := Handlers{
		Health:  httpH.NewHealthHandler(svcs.Renderer, string(svcs.Store.Mode())),
		Product: httpH.NewProductHandler(svcs.Products),
		Asset:   httpH.NewAssetHandler(svcs.Assets, cfg.ImageMaxBytes),
	}
	if svcs.ARModelsDir != "" {
		h.ARModels = httpH.NewARModelsHandler(svcs.ARModelsDir)
	}
	return h
}
