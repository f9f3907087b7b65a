package catalog

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/artisan-backend/internal/domain"
	"github.com/yungbote/artisan-backend/internal/platform/dbctx"
	"github.com/yungbote/artisan-backend/internal/platform/logger"
)

var (
	ErrProductNotFound = errors.New("product not found")
	ErrProductExists   = errors.New("product already exists")
)

// ProductPatch lists the mutable fields. Nil fields are left alone; all set
// fields land in one statement together with a fresh UpdatedAt.
type ProductPatch struct {
	Status   *types.ProductStatus
	AssetURL *string
	Price    *float64
}

func (p ProductPatch) empty() bool {
	return p.Status == nil && p.AssetURL == nil && p.Price == nil
}

func (p ProductPatch) validate() error {
	if p.Status != nil && !p.Status.Valid() {
		return fmt.Errorf("invalid product status %q", *p.Status)
	}
	return nil
}

type ProductRepo interface {
	Create(dbc dbctx.Context, product *types.Product) (*types.Product, error)
	GetByID(dbc dbctx.Context, id string) (*types.Product, error)
	Update(dbc dbctx.Context, id string, patch ProductPatch) (*types.Product, error)
}

type productRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewProductRepo(db *gorm.DB, baseLog *logger.Logger) ProductRepo {
	return &productRepo{
		db:  db,
		log: baseLog.With("repo", "ProductRepo"),
	}
}

func (r *productRepo) Create(dbc dbctx.Context, product *types.Product) (*types.Product, error) {
	if product == nil {
		return nil, fmt.Errorf("create product: nil product")
	}
	prepareForCreate(product, time.Now().UTC())
	// The nested transaction becomes a savepoint inside a caller's tx, so a
	// duplicate key does not abort it.
	err := dbc.DB(r.db).Transaction(func(tx *gorm.DB) error {
		return tx.Create(product).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("%w: %s", ErrProductExists, product.ID)
		}
		return nil, err
	}
	return product, nil
}

// GetByID returns nil, nil when the product does not exist.
func (r *productRepo) GetByID(dbc dbctx.Context, id string) (*types.Product, error) {
	if strings.TrimSpace(id) == "" {
		return nil, nil
	}
	var out types.Product
	err := dbc.DB(r.db).Where("id = ?", id).Limit(1).Find(&out).Error
	if err != nil {
		return nil, err
	}
	if out.ID == "" {
		return nil, nil
	}
	return &out, nil
}

func (r *productRepo) Update(dbc dbctx.Context, id string, patch ProductPatch) (*types.Product, error) {
	if patch.empty() {
		return r.GetByID(dbc, id)
	}
	if err := patch.validate(); err != nil {
		return nil, err
	}
	updates := map[string]interface{}{"updated_at": time.Now().UTC()}
	if patch.Status != nil {
		updates["status"] = *patch.Status
	}
	if patch.AssetURL != nil {
		updates["asset_url"] = *patch.AssetURL
	}
	if patch.Price != nil {
		updates["price"] = *patch.Price
	}
	res := dbc.DB(r.db).Model(&types.Product{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("%w: %s", ErrProductNotFound, id)
	}
	return r.GetByID(dbc, id)
}

func prepareForCreate(p *types.Product, now time.Time) {
	if strings.TrimSpace(p.ID) == "" {
		p.ID = uuid.NewString()
	}
	if p.Status == "" {
		p.Status = types.ProductStatusDraft
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = now
	}
}
