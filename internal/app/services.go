package app

import (
	"fmt"

	"github.com/yungbote/artisan-backend/internal/data/repos"
	"github.com/yungbote/artisan-backend/internal/observability"
	"github.com/yungbote/artisan-backend/internal/pipeline/assetstore"
	"github.com/yungbote/artisan-backend/internal/pipeline/imaging"
	"github.com/yungbote/artisan-backend/internal/pipeline/renderer"
	"github.com/yungbote/artisan-backend/internal/platform/keylock"
	"github.com/yungbote/artisan-backend/internal/platform/logger"
	"github.com/yungbote/artisan-backend/internal/services"
)

type Services struct {
	Products services.ProductService
	Assets   services.AssetGenerationService

	Renderer    *renderer.Blender
	Store       assetstore.Store
	ARModelsDir string
	Locker      keylock.Locker
}

func wireRenderer(log *logger.Logger, cfg Config, metrics *observability.Metrics) *renderer.Blender {
	locator := renderer.NewLocator(log, renderer.LocatorConfig{
		Executable:      cfg.BlenderPath,
		ExtraCandidates: cfg.BlenderSearchPaths,
		InstallRoot:     cfg.AppRoot,
		ScriptPath:      cfg.RenderScriptPath,
	})
	return renderer.NewBlender(locator, renderer.NewRunner(log, cfg.RenderTimeout), metrics)
}

func wireLocker(log *logger.Logger, clients Clients) keylock.Locker {
	if clients.Redis != nil {
		log.Info("Using Redis product locks")
		return keylock.NewRedis(log, clients.Redis, keylock.RedisConfig{})
	}
	return keylock.NewLocal()
}

func wireServices(log *logger.Logger, cfg Config, reposet repos.Repos, clients Clients, metrics *observability.Metrics) (Services, error) {
	log.Info("Wiring services...")

	store, arDir, err := resolveAssetStore(log, cfg)
	if err != nil {
		return Services{}, err
	}
	blender := wireRenderer(log, cfg, metrics)
	locker := wireLocker(log, clients)

	acquirer := imaging.NewAcquirer(log, imaging.Options{
		FetchTimeout: cfg.ImageFetchTimeout,
		MaxBytes:     cfg.ImageMaxBytes,
		MaxPixels:    cfg.ImageMaxPixels,
		LocalRoot:    cfg.AppRoot,
	})

	assets, err := services.NewAssetGenerationService(log, services.AssetGenerationDeps{
		Products: reposet.Product,
		Runs:     reposet.AssetRun,
		Acquirer: acquirer,
		Renderer: blender,
		Store:    store,
		Locker:   locker,
		Metrics:  metrics,
		WorkRoot: cfg.WorkRoot,
	})
	if err != nil {
		return Services{}, fmt.Errorf("init asset generation: %w", err)
	}

	return Services{
		Products:    services.NewProductService(log, reposet.Product, locker),
		Assets:      assets,
		Renderer:    blender,
		Store:       store,
		ARModelsDir: arDir,
		Locker:      locker,
	}, nil
}
