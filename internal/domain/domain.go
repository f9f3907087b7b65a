package domain

import (
	"github.com/yungbote/artisan-backend/internal/domain/catalog"
)

const (
	MaxProductIDLen = catalog.MaxProductIDLen

	ProductStatusDraft     = catalog.ProductStatusDraft
	ProductStatusPriced    = catalog.ProductStatusPriced
	ProductStatusPublished = catalog.ProductStatusPublished
	ProductStatusARReady   = catalog.ProductStatusARReady

	AssetRunSucceeded = catalog.AssetRunSucceeded
	AssetRunSkipped   = catalog.AssetRunSkipped
	AssetRunFailed    = catalog.AssetRunFailed
)

type Product = catalog.Product
type ProductStatus = catalog.ProductStatus
type AssetRun = catalog.AssetRun
type AssetRunOutcome = catalog.AssetRunOutcome
