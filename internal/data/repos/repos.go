package repos

import (
	"gorm.io/gorm"

	"github.com/yungbote/artisan-backend/internal/data/repos/catalog"
	"github.com/yungbote/artisan-backend/internal/platform/logger"
)

type ProductRepo = catalog.ProductRepo
type ProductPatch = catalog.ProductPatch
type AssetRunRepo = catalog.AssetRunRepo

var (
	ErrProductNotFound = catalog.ErrProductNotFound
	ErrProductExists   = catalog.ErrProductExists
)

type Repos struct {
	Product  ProductRepo
	AssetRun AssetRunRepo
}

// NewGorm backs every repo with db.
func NewGorm(db *gorm.DB, log *logger.Logger) Repos {
	return Repos{
		Product:  catalog.NewProductRepo(db, log),
		AssetRun: catalog.NewAssetRunRepo(db, log),
	}
}

// NewMemory keeps records for the lifetime of the process only.
func NewMemory(log *logger.Logger) Repos {
	return Repos{
		Product:  catalog.NewMemoryProductRepo(log),
		AssetRun: catalog.NewMemoryAssetRunRepo(0),
	}
}
