package catalog

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/artisan-backend/internal/domain"
	"github.com/yungbote/artisan-backend/internal/platform/dbctx"
	"github.com/yungbote/artisan-backend/internal/platform/logger"
)

type AssetRunRepo interface {
	Create(dbc dbctx.Context, run *types.AssetRun) error
	ListByProduct(dbc dbctx.Context, productID string, limit int) ([]*types.AssetRun, error)
}

type assetRunRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAssetRunRepo(db *gorm.DB, baseLog *logger.Logger) AssetRunRepo {
	return &assetRunRepo{
		db:  db,
		log: baseLog.With("repo", "AssetRunRepo"),
	}
}

func (r *assetRunRepo) Create(dbc dbctx.Context, run *types.AssetRun) error {
	prepareRun(run)
	return dbc.DB(r.db).Create(run).Error
}

func (r *assetRunRepo) ListByProduct(dbc dbctx.Context, productID string, limit int) ([]*types.AssetRun, error) {
	var out []*types.AssetRun
	q := dbc.DB(r.db).Where("product_id = ?", productID).Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

type memoryAssetRunRepo struct {
	mu   sync.Mutex
	runs []types.AssetRun
	max  int
}

// NewMemoryAssetRunRepo keeps at most max runs, dropping the oldest.
func NewMemoryAssetRunRepo(max int) AssetRunRepo {
	if max <= 0 {
		max = 1000
	}
	return &memoryAssetRunRepo{max: max}
}

func (r *memoryAssetRunRepo) Create(_ dbctx.Context, run *types.AssetRun) error {
	prepareRun(run)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, *run)
	if over := len(r.runs) - r.max; over > 0 {
		r.runs = append([]types.AssetRun(nil), r.runs[over:]...)
	}
	return nil
}

func (r *memoryAssetRunRepo) ListByProduct(_ dbctx.Context, productID string, limit int) ([]*types.AssetRun, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*types.AssetRun
	for i := range r.runs {
		if r.runs[i].ProductID == productID {
			run := r.runs[i]
			out = append(out, &run)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func prepareRun(run *types.AssetRun) {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
}
