package services

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/yungbote/artisan-backend/internal/data/repos"
	types "github.com/yungbote/artisan-backend/internal/domain"
	"github.com/yungbote/artisan-backend/internal/pipeline"
	"github.com/yungbote/artisan-backend/internal/platform/dbctx"
	"github.com/yungbote/artisan-backend/internal/platform/logger"
)

func newProductService(t *testing.T) (ProductService, repos.Repos) {
	t.Helper()
	r := repos.NewMemory(logger.NewNop())
	return NewProductService(logger.NewNop(), r.Product, nil), r
}

func TestSaveDraftAndGet(t *testing.T) {
	svc, _ := newProductService(t)
	ctx := context.Background()

	p, err := svc.SaveDraft(ctx, SaveDraftInput{Title: "  Harbor  ", ImageSource: "harbor.jpg", IsEligibleForAsset: true})
	if err != nil {
		t.Fatalf("SaveDraft: %v", err)
	}
	if p.ID == "" || p.Title != "Harbor" || p.Status != types.ProductStatusDraft {
		t.Fatalf("draft: got=%+v", p)
	}
	got, err := svc.Get(ctx, p.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ImageSource != "harbor.jpg" || !got.IsEligibleForAsset {
		t.Fatalf("Get: got=%+v", got)
	}

	var nf *pipeline.NotFoundError
	if _, err := svc.Get(ctx, "nope"); !errors.As(err, &nf) {
		t.Fatalf("Get missing: want NotFoundError got=%v", err)
	}
}

func TestSaveDraftValidation(t *testing.T) {
	svc, _ := newProductService(t)
	ctx := context.Background()

	var invalid *InvalidInputError
	if _, err := svc.SaveDraft(ctx, SaveDraftInput{Title: " "}); !errors.As(err, &invalid) || invalid.Field != "title" {
		t.Fatalf("blank title: got=%v", err)
	}
	if _, err := svc.SaveDraft(ctx, SaveDraftInput{ID: "a/b", Title: "x"}); !errors.As(err, &invalid) || invalid.Field != "id" {
		t.Fatalf("id with slash: got=%v", err)
	}
	longID := strings.Repeat("x", types.MaxProductIDLen+1)
	if _, err := svc.SaveDraft(ctx, SaveDraftInput{ID: longID, Title: "x"}); !errors.As(err, &invalid) || invalid.Field != "id" {
		t.Fatalf("overlong id: got=%v", err)
	}
	if _, err := svc.SaveDraft(ctx, SaveDraftInput{ID: longID[:types.MaxProductIDLen], Title: "x"}); err != nil {
		t.Fatalf("id at limit: %v", err)
	}
	if _, err := svc.SaveDraft(ctx, SaveDraftInput{ID: "dup", Title: "x"}); err != nil {
		t.Fatalf("SaveDraft: %v", err)
	}
	var conflict *ConflictError
	if _, err := svc.SaveDraft(ctx, SaveDraftInput{ID: "dup", Title: "x"}); !errors.As(err, &conflict) {
		t.Fatalf("duplicate: want ConflictError got=%v", err)
	}
}

func TestPublishTransitions(t *testing.T) {
	svc, r := newProductService(t)
	ctx := context.Background()

	draft, _ := svc.SaveDraft(ctx, SaveDraftInput{Title: "draft"})
	published, err := svc.Publish(ctx, draft.ID, 49.5)
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if published.Status != types.ProductStatusPublished || published.Price == nil || *published.Price != 49.5 {
		t.Fatalf("published: got=%+v", published)
	}
	if published.AssetURL != nil {
		t.Fatalf("publish must not invent an asset")
	}

	url := "https://cdn.example.com/products/ar.glb"
	arReady, _ := r.Product.Create(dbctx.New(ctx), &types.Product{ID: "ar", Title: "x", Status: types.ProductStatusARReady, AssetURL: &url})
	out, err := svc.Publish(ctx, arReady.ID, 10)
	if err != nil {
		t.Fatalf("Publish ar_ready: %v", err)
	}
	if out.Status != types.ProductStatusPublished || out.AssetURL == nil || *out.AssetURL != url {
		t.Fatalf("ar_ready publish must keep asset: got=%+v", out)
	}
}

func TestPublishRejectsBadInput(t *testing.T) {
	svc, _ := newProductService(t)
	ctx := context.Background()
	p, _ := svc.SaveDraft(ctx, SaveDraftInput{Title: "x"})

	for _, price := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		var invalid *InvalidInputError
		if _, err := svc.Publish(ctx, p.ID, price); !errors.As(err, &invalid) {
			t.Fatalf("price %v: want InvalidInputError got=%v", price, err)
		}
	}
	var nf *pipeline.NotFoundError
	if _, err := svc.Publish(ctx, "missing", 5); !errors.As(err, &nf) {
		t.Fatalf("missing: want NotFoundError got=%v", err)
	}
}
