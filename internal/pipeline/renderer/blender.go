package renderer

import (
	"context"

	"github.com/yungbote/artisan-backend/internal/observability"
	"github.com/yungbote/artisan-backend/internal/pipeline"
)

// Blender adapts Locator and Runner to the pipeline.Renderer port.
type Blender struct {
	locator *Locator
	runner  *Runner
	metrics *observability.Metrics
}

func NewBlender(locator *Locator, runner *Runner, metrics *observability.Metrics) *Blender {
	return &Blender{locator: locator, runner: runner, metrics: metrics}
}

func (b *Blender) Render(ctx context.Context, inputImagePath, outputPath string) (*pipeline.RenderResult, error) {
	loc, err := b.Locate(ctx)
	if err != nil {
		return nil, err
	}
	return b.runner.Run(ctx, loc.Executable, loc.Script, inputImagePath, outputPath)
}

// Locate exposes the resolved location for health reporting.
func (b *Blender) Locate(ctx context.Context) (Location, error) {
	loc, err := b.locator.Locate(ctx)
	b.metrics.IncLocate(err)
	return loc, err
}
