package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/yungbote/artisan-backend/internal/data/repos"
	types "github.com/yungbote/artisan-backend/internal/domain"
	"github.com/yungbote/artisan-backend/internal/pipeline"
	"github.com/yungbote/artisan-backend/internal/platform/dbctx"
	"github.com/yungbote/artisan-backend/internal/platform/keylock"
	"github.com/yungbote/artisan-backend/internal/platform/logger"
)

type SaveDraftInput struct {
	ID                 string
	Title              string
	Description        string
	Category           string
	ImageSource        string
	IsEligibleForAsset bool
}

type ProductService interface {
	SaveDraft(ctx context.Context, in SaveDraftInput) (*types.Product, error)
	Get(ctx context.Context, id string) (*types.Product, error)
	// Publish prices and publishes a product. An existing asset is kept.
	Publish(ctx context.Context, id string, price float64) (*types.Product, error)
}

type productService struct {
	log      *logger.Logger
	products repos.ProductRepo
	locker   keylock.Locker
}

// NewProductService shares locker with the asset generation service so that
// publish and generate never interleave on one record.
func NewProductService(log *logger.Logger, products repos.ProductRepo, locker keylock.Locker) ProductService {
	if locker == nil {
		locker = keylock.NewLocal()
	}
	return &productService{
		log:      log.With("service", "ProductService"),
		products: products,
		locker:   locker,
	}
}

func (s *productService) SaveDraft(ctx context.Context, in SaveDraftInput) (*types.Product, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, &InvalidInputError{Field: "title", Reason: "is required"}
	}
	id := strings.TrimSpace(in.ID)
	if strings.ContainsAny(id, `/\`) {
		return nil, &InvalidInputError{Field: "id", Reason: "must not contain path separators"}
	}
	if len(id) > types.MaxProductIDLen {
		return nil, &InvalidInputError{Field: "id", Reason: fmt.Sprintf("must be at most %d bytes", types.MaxProductIDLen)}
	}
	p, err := s.products.Create(dbctx.New(ctx), &types.Product{
		ID:                 id,
		Title:              title,
		Description:        strings.TrimSpace(in.Description),
		Category:           strings.TrimSpace(in.Category),
		ImageSource:        strings.TrimSpace(in.ImageSource),
		IsEligibleForAsset: in.IsEligibleForAsset,
		Status:             types.ProductStatusDraft,
	})
	if errors.Is(err, repos.ErrProductExists) {
		return nil, &ConflictError{Resource: "product", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("save draft: %w", err)
	}
	s.log.Info("Draft saved", "product_id", p.ID, "eligible", p.IsEligibleForAsset)
	return p, nil
}

func (s *productService) Get(ctx context.Context, id string) (*types.Product, error) {
	p, err := s.products.GetByID(dbctx.New(ctx), id)
	if err != nil {
		return nil, fmt.Errorf("load product %q: %w", id, err)
	}
	if p == nil {
		return nil, &pipeline.NotFoundError{ProductID: id}
	}
	return p, nil
}

func (s *productService) Publish(ctx context.Context, id string, price float64) (*types.Product, error) {
	if math.IsNaN(price) || math.IsInf(price, 0) || price <= 0 {
		return nil, &InvalidInputError{Field: "price", Reason: "must be a positive number"}
	}
	release, err := s.locker.Lock(ctx, "product:"+id)
	if err != nil {
		return nil, fmt.Errorf("wait for product lock: %w", err)
	}
	defer release()

	status := types.ProductStatusPublished
	p, err := s.products.Update(dbctx.New(ctx), id, repos.ProductPatch{Status: &status, Price: &price})
	if errors.Is(err, repos.ErrProductNotFound) {
		return nil, &pipeline.NotFoundError{ProductID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("publish product %q: %w", id, err)
	}
	s.log.Info("Product published", "product_id", id, "price", price, "has_asset", p.AssetURL != nil)
	return p, nil
}
