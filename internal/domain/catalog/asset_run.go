package catalog

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type AssetRunOutcome string

const (
	AssetRunSucceeded AssetRunOutcome = "succeeded"
	AssetRunSkipped   AssetRunOutcome = "skipped"
	AssetRunFailed    AssetRunOutcome = "failed"
)

// AssetRun is an append-only record of one generation attempt. It is
// written after the product record is settled and never read back by the
// pipeline.
type AssetRun struct {
	ID         uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	ProductID  string          `gorm:"column:product_id;type:varchar(64);not null;index" json:"product_id"`
	Outcome    AssetRunOutcome `gorm:"column:outcome;type:varchar(16);not null;index" json:"outcome"`
	ErrorCode  string          `gorm:"column:error_code;index" json:"error_code,omitempty"`
	Error      string          `gorm:"column:error;type:text" json:"error,omitempty"`
	Stderr     string          `gorm:"column:stderr;type:text" json:"stderr,omitempty"`
	AssetURL   string          `gorm:"column:asset_url;type:text" json:"asset_url,omitempty"`
	StoreMode  string          `gorm:"column:store_mode" json:"store_mode,omitempty"`
	DurationMS int64           `gorm:"column:duration_ms;not null;default:0" json:"duration_ms"`
	Metadata   datatypes.JSON  `gorm:"column:metadata" json:"metadata,omitempty"`
	CreatedAt  time.Time       `gorm:"not null;index" json:"created_at"`
}

func (AssetRun) TableName() string { return "asset_run" }
