package catalog

import (
	"time"
)

// MaxProductIDLen matches the width of the products.id column.
const MaxProductIDLen = 64

type ProductStatus string

const (
	ProductStatusDraft     ProductStatus = "draft"
	ProductStatusPriced    ProductStatus = "priced"
	ProductStatusPublished ProductStatus = "published"
	ProductStatusARReady   ProductStatus = "ar_ready"
)

func (s ProductStatus) Valid() bool {
	switch s {
	case ProductStatusDraft, ProductStatusPriced, ProductStatusPublished, ProductStatusARReady:
		return true
	default:
		return false
	}
}

// Product is a marketplace listing. ImageSource is a local path or remote
// URL and never changes after creation. AssetURL is set only by a
// successful asset generation.
type Product struct {
	ID                 string        `gorm:"type:varchar(64);primaryKey" json:"id"`
	Title              string        `gorm:"column:title;not null" json:"title"`
	Description        string        `gorm:"column:description;type:text" json:"description,omitempty"`
	Category           string        `gorm:"column:category;index" json:"category,omitempty"`
	Price              *float64      `gorm:"column:price" json:"price,omitempty"`
	ImageSource        string        `gorm:"column:image_source;type:text" json:"imageSource,omitempty"`
	IsEligibleForAsset bool          `gorm:"column:is_eligible_for_asset;not null;default:false" json:"isEligibleForAsset"`
	Status             ProductStatus `gorm:"column:status;type:varchar(16);not null;index" json:"status"`
	AssetURL           *string       `gorm:"column:asset_url;type:text" json:"assetUrl,omitempty"`
	CreatedAt          time.Time     `gorm:"not null;index" json:"createdAt"`
	UpdatedAt          time.Time     `gorm:"not null;index" json:"updatedAt"`
}

func (Product) TableName() string { return "product" }
