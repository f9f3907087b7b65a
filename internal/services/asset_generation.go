package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"

	"github.com/yungbote/artisan-backend/internal/data/repos"
	types "github.com/yungbote/artisan-backend/internal/domain"
	"github.com/yungbote/artisan-backend/internal/observability"
	"github.com/yungbote/artisan-backend/internal/pipeline"
	"github.com/yungbote/artisan-backend/internal/pipeline/assetstore"
	"github.com/yungbote/artisan-backend/internal/platform/dbctx"
	"github.com/yungbote/artisan-backend/internal/platform/keylock"
	"github.com/yungbote/artisan-backend/internal/platform/logger"
)

// ImageAcquirer writes the canonical input image into a job workspace.
type ImageAcquirer interface {
	Acquire(ctx context.Context, source string, ws *pipeline.Workspace) (string, error)
	AcquireBytes(ctx context.Context, data []byte, ws *pipeline.Workspace) (string, error)
}

type GenerateResult struct {
	ProductID string
	Skipped   bool
	AssetURL  string
	Product   *types.Product
}

type AssetGenerationService interface {
	// GenerateAsset runs acquire, render and persist for one product and
	// commits assetUrl and status=ar_ready in a single update. upload is used
	// only when the product has no image source on file.
	GenerateAsset(ctx context.Context, productID string, upload []byte) (*GenerateResult, error)
	// ConvertUpload renders an uploaded image without touching any record and
	// hands the artifact to emit while the workspace is still alive.
	ConvertUpload(ctx context.Context, upload []byte, emit func(artifact io.Reader, size int64) error) error
}

type AssetGenerationDeps struct {
	Products repos.ProductRepo
	Runs     repos.AssetRunRepo
	Acquirer ImageAcquirer
	Renderer pipeline.Renderer
	Store    assetstore.Store
	Locker   keylock.Locker
	Metrics  *observability.Metrics
	WorkRoot string
}

type assetGenerationService struct {
	log      *logger.Logger
	products repos.ProductRepo
	runs     repos.AssetRunRepo
	acquirer ImageAcquirer
	renderer pipeline.Renderer
	store    assetstore.Store
	locker   keylock.Locker
	metrics  *observability.Metrics
	workRoot string
	tracer   trace.Tracer
}

func NewAssetGenerationService(log *logger.Logger, deps AssetGenerationDeps) (AssetGenerationService, error) {
	switch {
	case deps.Products == nil:
		return nil, fmt.Errorf("asset generation: product repo is required")
	case deps.Acquirer == nil:
		return nil, fmt.Errorf("asset generation: image acquirer is required")
	case deps.Renderer == nil:
		return nil, fmt.Errorf("asset generation: renderer is required")
	case deps.Store == nil:
		return nil, fmt.Errorf("asset generation: asset store is required")
	}
	locker := deps.Locker
	if locker == nil {
		locker = keylock.NewLocal()
	}
	return &assetGenerationService{
		log:      log.With("service", "AssetGenerationService"),
		products: deps.Products,
		runs:     deps.Runs,
		acquirer: deps.Acquirer,
		renderer: deps.Renderer,
		store:    deps.Store,
		locker:   locker,
		metrics:  deps.Metrics,
		workRoot: deps.WorkRoot,
		tracer:   observability.Tracer("artisan/services/asset_generation"),
	}, nil
}

type runTrace struct {
	usedUpload bool
	render     *pipeline.RenderResult
}

func (s *assetGenerationService) GenerateAsset(ctx context.Context, productID string, upload []byte) (result *GenerateResult, err error) {
	ctx, span := s.tracer.Start(ctx, "GenerateAsset", trace.WithAttributes(attribute.String("product.id", productID)))
	defer span.End()

	start := time.Now()
	var rt runTrace
	defer func() {
		if p := recover(); p != nil {
			s.finish(ctx, span, productID, start, rt, nil, fmt.Errorf("asset generation panicked: %v", p))
			panic(p)
		}
		s.finish(ctx, span, productID, start, rt, result, err)
	}()

	lockStart := time.Now()
	release, err := s.locker.Lock(ctx, "product:"+productID)
	if err != nil {
		return nil, fmt.Errorf("wait for generation lock: %w", err)
	}
	defer release()
	s.metrics.ObserveLockWait(time.Since(lockStart))

	dbc := dbctx.New(ctx)
	product, err := s.products.GetByID(dbc, productID)
	if err != nil {
		return nil, fmt.Errorf("load product %q: %w", productID, err)
	}
	if product == nil {
		return nil, &pipeline.NotFoundError{ProductID: productID}
	}
	if !product.IsEligibleForAsset {
		return &GenerateResult{ProductID: productID, Skipped: true, Product: product}, nil
	}
	if product.ImageSource == "" && len(upload) == 0 {
		return nil, &pipeline.MissingInputError{ProductID: productID}
	}

	ws, err := pipeline.NewWorkspace(s.workRoot, productID)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := ws.Close(); cerr != nil {
			s.log.Warn("Failed to remove job workspace", "dir", ws.Dir, "error", cerr)
		}
	}()

	var input string
	err = s.stage(ctx, "acquire", func(ctx context.Context) error {
		var aerr error
		if product.ImageSource != "" {
			input, aerr = s.acquirer.Acquire(ctx, product.ImageSource, ws)
		} else {
			rt.usedUpload = true
			input, aerr = s.acquirer.AcquireBytes(ctx, upload, ws)
		}
		return aerr
	})
	if err != nil {
		return nil, err
	}

	err = s.stage(ctx, "render", func(ctx context.Context) error {
		res, rerr := s.renderer.Render(ctx, input, ws.OutputPath())
		rt.render = res
		if res != nil {
			s.metrics.ObserveRenderExit(res.ExitCode, res.OutputSize)
		}
		if rerr == nil && res == nil {
			return &pipeline.RenderOutputMissingError{OutputPath: ws.OutputPath()}
		}
		return rerr
	})
	if err != nil {
		return nil, err
	}

	var assetURL string
	err = s.stage(ctx, "persist", func(ctx context.Context) error {
		var perr error
		assetURL, perr = s.store.Persist(ctx, rt.render.OutputPath, productID)
		s.metrics.IncStoreWrite(string(s.store.Mode()), perr)
		return perr
	})
	if err != nil {
		return nil, err
	}

	status := types.ProductStatusARReady
	updated, err := s.products.Update(dbc, productID, repos.ProductPatch{
		Status:   &status,
		AssetURL: &assetURL,
	})
	if errors.Is(err, repos.ErrProductNotFound) {
		return nil, &pipeline.NotFoundError{ProductID: productID}
	}
	if err != nil {
		return nil, fmt.Errorf("commit asset for product %q: %w", productID, err)
	}
	return &GenerateResult{ProductID: productID, AssetURL: assetURL, Product: updated}, nil
}

func (s *assetGenerationService) ConvertUpload(ctx context.Context, upload []byte, emit func(io.Reader, int64) error) error {
	ctx, span := s.tracer.Start(ctx, "ConvertUpload")
	defer span.End()

	if len(upload) == 0 {
		return &pipeline.MissingInputError{}
	}
	ws, err := pipeline.NewWorkspace(s.workRoot, "adhoc")
	if err != nil {
		return err
	}
	defer func() {
		if cerr := ws.Close(); cerr != nil {
			s.log.Warn("Failed to remove job workspace", "dir", ws.Dir, "error", cerr)
		}
	}()

	var input string
	if err := s.stage(ctx, "acquire", func(ctx context.Context) error {
		var aerr error
		input, aerr = s.acquirer.AcquireBytes(ctx, upload, ws)
		return aerr
	}); err != nil {
		return err
	}
	var res *pipeline.RenderResult
	if err := s.stage(ctx, "render", func(ctx context.Context) error {
		var rerr error
		res, rerr = s.renderer.Render(ctx, input, ws.OutputPath())
		if rerr == nil && res == nil {
			return &pipeline.RenderOutputMissingError{OutputPath: ws.OutputPath()}
		}
		return rerr
	}); err != nil {
		span.SetStatus(codes.Error, pipeline.ErrorCode(err))
		return err
	}

	f, err := os.Open(res.OutputPath)
	if err != nil {
		return &pipeline.RenderOutputMissingError{OutputPath: res.OutputPath, Stdout: res.Stdout}
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat artifact: %w", err)
	}
	return emit(f, info.Size())
}

func (s *assetGenerationService) stage(ctx context.Context, name string, fn func(context.Context) error) error {
	ctx, span := s.tracer.Start(ctx, name)
	defer span.End()
	start := time.Now()
	err := fn(ctx)
	s.metrics.ObserveStage(name, err, time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, pipeline.ErrorCode(err))
	}
	return err
}

func (s *assetGenerationService) finish(ctx context.Context, span trace.Span, productID string, start time.Time, rt runTrace, result *GenerateResult, err error) {
	dur := time.Since(start)
	run := &types.AssetRun{
		ProductID:  productID,
		StoreMode:  string(s.store.Mode()),
		DurationMS: dur.Milliseconds(),
	}
	if err == nil && result == nil {
		err = errors.New("asset generation returned no result")
	}
	switch {
	case err != nil:
		code := pipeline.ErrorCode(err)
		run.Outcome = types.AssetRunFailed
		run.ErrorCode = code
		run.Error = err.Error()
		run.Stderr = truncate(pipeline.Stderr(err), 8<<10)
		span.RecordError(err)
		span.SetStatus(codes.Error, code)
		s.log.Warn("Asset generation failed", "product_id", productID, "code", code, "error", err, "duration_ms", run.DurationMS)
	case result != nil && result.Skipped:
		run.Outcome = types.AssetRunSkipped
		s.log.Info("Asset generation skipped; product not eligible", "product_id", productID)
	default:
		run.Outcome = types.AssetRunSucceeded
		run.AssetURL = result.AssetURL
		s.log.Info("Asset generated", "product_id", productID, "asset_url", run.AssetURL, "duration_ms", run.DurationMS)
	}
	span.SetAttributes(attribute.String("asset.outcome", string(run.Outcome)))
	s.metrics.ObserveGeneration(string(run.Outcome), run.ErrorCode, dur)

	if s.runs == nil {
		return
	}
	meta := map[string]interface{}{"used_upload": rt.usedUpload}
	if rt.render != nil {
		meta["executable"] = rt.render.Executable
		meta["exit_code"] = rt.render.ExitCode
		meta["artifact_bytes"] = rt.render.OutputSize
	}
	if raw, merr := json.Marshal(meta); merr == nil {
		run.Metadata = datatypes.JSON(raw)
	}
	// The run log must not depend on the caller still waiting.
	if rerr := s.runs.Create(dbctx.New(context.WithoutCancel(ctx)), run); rerr != nil {
		s.log.Warn("Failed to record asset run", "product_id", productID, "error", rerr)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
