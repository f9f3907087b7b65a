package catalog

import (
	"fmt"
	"strings"
	"sync"
	"time"

	types "github.com/yungbote/artisan-backend/internal/domain"
	"github.com/yungbote/artisan-backend/internal/platform/dbctx"
	"github.com/yungbote/artisan-backend/internal/platform/logger"
)

// memoryProductRepo keeps products for the lifetime of the process. Values
// are copied in and out so callers never share state with the map.
type memoryProductRepo struct {
	mu    sync.RWMutex
	items map[string]types.Product
	log   *logger.Logger
	now   func() time.Time
}

func NewMemoryProductRepo(baseLog *logger.Logger) ProductRepo {
	return &memoryProductRepo{
		items: make(map[string]types.Product),
		log:   baseLog.With("repo", "MemoryProductRepo"),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (r *memoryProductRepo) Create(_ dbctx.Context, product *types.Product) (*types.Product, error) {
	if product == nil {
		return nil, fmt.Errorf("create product: nil product")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	prepareForCreate(product, r.now())
	if _, ok := r.items[product.ID]; ok {
		return nil, fmt.Errorf("%w: %s", ErrProductExists, product.ID)
	}
	r.items[product.ID] = cloneProduct(*product)
	out := cloneProduct(*product)
	return &out, nil
}

func (r *memoryProductRepo) GetByID(_ dbctx.Context, id string) (*types.Product, error) {
	if strings.TrimSpace(id) == "" {
		return nil, nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.items[id]
	if !ok {
		return nil, nil
	}
	out := cloneProduct(p)
	return &out, nil
}

func (r *memoryProductRepo) Update(dbc dbctx.Context, id string, patch ProductPatch) (*types.Product, error) {
	if patch.empty() {
		return r.GetByID(dbc, id)
	}
	if err := patch.validate(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.items[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProductNotFound, id)
	}
	if patch.Status != nil {
		p.Status = *patch.Status
	}
	if patch.AssetURL != nil {
		u := *patch.AssetURL
		p.AssetURL = &u
	}
	if patch.Price != nil {
		v := *patch.Price
		p.Price = &v
	}
	now := r.now()
	if !now.After(p.UpdatedAt) {
		now = p.UpdatedAt.Add(time.Microsecond)
	}
	p.UpdatedAt = now
	r.items[id] = p
	out := cloneProduct(p)
	return &out, nil
}

func cloneProduct(p types.Product) types.Product {
	if p.AssetURL != nil {
		u := *p.AssetURL
		p.AssetURL = &u
	}
	if p.Price != nil {
		v := *p.Price
		p.Price = &v
	}
	return p
}
