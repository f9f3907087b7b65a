package services

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"image"
	"image/color"
	"image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/yungbote/artisan-backend/internal/data/repos"
	types "github.com/yungbote/artisan-backend/internal/domain"
	"github.com/yungbote/artisan-backend/internal/pipeline"
	"github.com/yungbote/artisan-backend/internal/pipeline/assetstore"
	"github.com/yungbote/artisan-backend/internal/pipeline/imaging"
	"github.com/yungbote/artisan-backend/internal/pipeline/renderer"
	"github.com/yungbote/artisan-backend/internal/platform/ctxutil"
	"github.com/yungbote/artisan-backend/internal/platform/dbctx"
	"github.com/yungbote/artisan-backend/internal/platform/logger"
)

// fakeRenderer writes a distinct artifact per call unless err or noOutput
// is set.
type fakeRenderer struct {
	calls    int32
	err      error
	noOutput bool
	delay    time.Duration

	mu     sync.Mutex
	inputs []image.Config
	bodies []string
}

func (f *fakeRenderer) Render(ctx context.Context, input, output string) (*pipeline.RenderResult, error) {
	n := atomic.AddInt32(&f.calls, 1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	in, err := os.Open(input)
	if err != nil {
		return nil, err
	}
	cfg, format, err := image.DecodeConfig(in)
	in.Close()
	if err != nil || format != "png" {
		return nil, fmt.Errorf("renderer got non-png input: %v %q", err, format)
	}
	f.mu.Lock()
	f.inputs = append(f.inputs, cfg)
	f.mu.Unlock()

	if f.err != nil {
		return nil, f.err
	}
	if f.noOutput {
		return nil, &pipeline.RenderOutputMissingError{OutputPath: output}
	}
	body := fmt.Sprintf("glTF-run-%d", n)
	if err := os.WriteFile(output, []byte(body), 0o644); err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.bodies = append(f.bodies, body)
	f.mu.Unlock()
	return &pipeline.RenderResult{Executable: "fake", OutputPath: output, OutputSize: int64(len(body))}, nil
}

type panickingRenderer struct{}

func (panickingRenderer) Render(context.Context, string, string) (*pipeline.RenderResult, error) {
	panic("renderer blew up")
}

type failingStore struct{}

func (failingStore) Persist(context.Context, string, string) (string, error) {
	return "", &pipeline.StoreError{Backend: "gcs", Key: "products/x.glb", Err: errors.New("403 forbidden")}
}

func (failingStore) Mode() assetstore.Mode { return assetstore.ModeGCS }

type fixture struct {
	svc      AssetGenerationService
	repos    repos.Repos
	renderer *fakeRenderer
	workRoot string
	modelDir string
	imageDir string
}

type fixtureOpts struct {
	renderer pipeline.Renderer
	store    assetstore.Store
}

func newFixture(t *testing.T, opts fixtureOpts) *fixture {
	t.Helper()
	log := logger.NewNop()
	f := &fixture{
		repos:    repos.NewMemory(log),
		workRoot: t.TempDir(),
		modelDir: t.TempDir(),
		imageDir: t.TempDir(),
	}
	r := opts.renderer
	if r == nil {
		f.renderer = &fakeRenderer{}
		r = f.renderer
	}
	store := opts.store
	if store == nil {
		var err error
		store, err = assetstore.NewLocalStore(log, assetstore.LocalConfig{Dir: f.modelDir})
		if err != nil {
			t.Fatalf("NewLocalStore: %v", err)
		}
	}
	svc, err := NewAssetGenerationService(log, AssetGenerationDeps{
		Products: f.repos.Product,
		Runs:     f.repos.AssetRun,
		Acquirer: imaging.NewAcquirer(log, imaging.Options{LocalRoot: f.imageDir}),
		Renderer: r,
		Store:    store,
		WorkRoot: f.workRoot,
	})
	if err != nil {
		t.Fatalf("NewAssetGenerationService: %v", err)
	}
	f.svc = svc
	return f
}

func (f *fixture) writeJPEG(t *testing.T, name string, w, h int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 90, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}
	p := filepath.Join(f.imageDir, name)
	if err := os.WriteFile(p, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write jpeg: %v", err)
	}
	return p
}

func (f *fixture) seed(t *testing.T, p types.Product) *types.Product {
	t.Helper()
	out, err := f.repos.Product.Create(dbctx.New(context.Background()), &p)
	if err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return out
}

func (f *fixture) get(t *testing.T, id string) *types.Product {
	t.Helper()
	p, err := f.repos.Product.GetByID(dbctx.New(context.Background()), id)
	if err != nil || p == nil {
		t.Fatalf("get product %q: %v", id, err)
	}
	return p
}

func (f *fixture) assertNoWorkspaces(t *testing.T) {
	t.Helper()
	entries, err := os.ReadDir(f.workRoot)
	if err != nil {
		t.Fatalf("read work root: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("workspaces left behind: %d", len(entries))
	}
}

func originCtx(scheme, host string) context.Context {
	return ctxutil.WithRequestOrigin(context.Background(), ctxutil.RequestOrigin{Scheme: scheme, Host: host})
}

func sameRecord(a, b *types.Product) bool {
	if a.Status != b.Status || !a.UpdatedAt.Equal(b.UpdatedAt) {
		return false
	}
	if (a.AssetURL == nil) != (b.AssetURL == nil) {
		return false
	}
	return a.AssetURL == nil || *a.AssetURL == *b.AssetURL
}

func TestGenerateAssetLocalFallbackFromJPEG(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	src := f.writeJPEG(t, "painting.jpg", 400, 300)
	p := f.seed(t, types.Product{ID: "p1", Title: "Dusk", ImageSource: "painting.jpg", IsEligibleForAsset: true})

	res, err := f.svc.GenerateAsset(originCtx("http", "localhost:8080"), p.ID, nil)
	if err != nil {
		t.Fatalf("GenerateAsset: %v", err)
	}
	want := "http://localhost:8080/ar_models/p1.glb"
	if res.Skipped || res.AssetURL != want {
		t.Fatalf("result: want url=%q got=%+v", want, res)
	}
	got := f.get(t, "p1")
	if got.Status != types.ProductStatusARReady || got.AssetURL == nil || *got.AssetURL != want {
		t.Fatalf("record: got status=%q url=%v", got.Status, got.AssetURL)
	}
	if !got.UpdatedAt.After(p.UpdatedAt) {
		t.Fatalf("updatedAt not advanced: before=%v after=%v", p.UpdatedAt, got.UpdatedAt)
	}
	if len(f.renderer.inputs) != 1 || f.renderer.inputs[0].Width != 400 || f.renderer.inputs[0].Height != 300 {
		t.Fatalf("renderer input: got=%+v", f.renderer.inputs)
	}
	if _, err := os.Stat(filepath.Join(f.modelDir, "p1.glb")); err != nil {
		t.Fatalf("artifact not in served dir: %v", err)
	}
	if _, err := os.Stat(src); err != nil {
		t.Fatalf("source image touched: %v", err)
	}
	f.assertNoWorkspaces(t)
}

func TestGenerateAssetForcesHTTPSOnManagedHost(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	f.writeJPEG(t, "painting.jpg", 400, 300)
	f.seed(t, types.Product{ID: "p1", Title: "Dusk", ImageSource: "painting.jpg", IsEligibleForAsset: true})

	res, err := f.svc.GenerateAsset(originCtx("http", "artisan.onrender.com"), "p1", nil)
	if err != nil {
		t.Fatalf("GenerateAsset: %v", err)
	}
	want := "https://artisan.onrender.com/ar_models/p1.glb"
	if res.AssetURL != want {
		t.Fatalf("url: want=%q got=%q", want, res.AssetURL)
	}
}

func TestGenerateAssetIneligibleIsSkippedAndRepeatable(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	f.writeJPEG(t, "photo.jpg", 40, 30)
	before := f.seed(t, types.Product{ID: "p2", Title: "Mug", ImageSource: "photo.jpg", IsEligibleForAsset: false})

	for i := 0; i < 3; i++ {
		res, err := f.svc.GenerateAsset(originCtx("http", "localhost"), "p2", nil)
		if err != nil {
			t.Fatalf("GenerateAsset #%d: %v", i, err)
		}
		if !res.Skipped || res.AssetURL != "" {
			t.Fatalf("result #%d: want skipped got=%+v", i, res)
		}
	}
	if n := atomic.LoadInt32(&f.renderer.calls); n != 0 {
		t.Fatalf("renderer calls: want=0 got=%d", n)
	}
	if after := f.get(t, "p2"); !sameRecord(before, after) {
		t.Fatalf("record changed: before=%+v after=%+v", before, after)
	}
	runs, _ := f.repos.AssetRun.ListByProduct(dbctx.New(context.Background()), "p2", 0)
	if len(runs) != 3 || runs[0].Outcome != types.AssetRunSkipped {
		t.Fatalf("runs: got=%d first=%+v", len(runs), runs)
	}
}

func TestGenerateAssetOutputMissingLeavesRecordUnchanged(t *testing.T) {
	f := newFixture(t, fixtureOpts{renderer: &fakeRenderer{noOutput: true}})
	f.writeJPEG(t, "photo.jpg", 40, 30)
	prior := "http://localhost/ar_models/p3.glb"
	f.seed(t, types.Product{ID: "p3", Title: "T", ImageSource: "photo.jpg", IsEligibleForAsset: true, Status: types.ProductStatusARReady, AssetURL: &prior})
	before := f.get(t, "p3")

	_, err := f.svc.GenerateAsset(originCtx("http", "localhost"), "p3", nil)
	var missing *pipeline.RenderOutputMissingError
	if !errors.As(err, &missing) {
		t.Fatalf("error: want RenderOutputMissingError got=%T (%v)", err, err)
	}
	if after := f.get(t, "p3"); !sameRecord(before, after) {
		t.Fatalf("record changed: before=%+v after=%+v", before, after)
	}
	f.assertNoWorkspaces(t)

	runs, _ := f.repos.AssetRun.ListByProduct(dbctx.New(context.Background()), "p3", 1)
	if len(runs) != 1 || runs[0].ErrorCode != pipeline.CodeRenderOutputMissing {
		t.Fatalf("run log: got=%+v", runs)
	}
}

func TestGenerateAssetPanicIsRecordedAsFailure(t *testing.T) {
	f := newFixture(t, fixtureOpts{renderer: panickingRenderer{}})
	f.writeJPEG(t, "photo.jpg", 40, 30)
	f.seed(t, types.Product{ID: "p9", Title: "T", ImageSource: "photo.jpg", IsEligibleForAsset: true})
	before := f.get(t, "p9")

	func() {
		defer func() {
			if r := recover(); r == nil {
				t.Fatalf("want panic to propagate")
			}
		}()
		_, _ = f.svc.GenerateAsset(originCtx("http", "localhost"), "p9", nil)
	}()

	if after := f.get(t, "p9"); !sameRecord(before, after) {
		t.Fatalf("record changed: before=%+v after=%+v", before, after)
	}
	f.assertNoWorkspaces(t)

	runs, _ := f.repos.AssetRun.ListByProduct(dbctx.New(context.Background()), "p9", 1)
	if len(runs) != 1 {
		t.Fatalf("run log: want=1 got=%d", len(runs))
	}
	if runs[0].Outcome != types.AssetRunFailed || runs[0].ErrorCode != pipeline.CodeInternal {
		t.Fatalf("run: want failed/%s got=%s/%s", pipeline.CodeInternal, runs[0].Outcome, runs[0].ErrorCode)
	}
}

func TestGenerateAssetOversizedImageFailsCleanly(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	p := filepath.Join(f.imageDir, "huge.png")
	if err := os.WriteFile(p, pngHeaderOnly(1<<24, 1<<24), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	f.seed(t, types.Product{ID: "p10", Title: "T", ImageSource: "huge.png", IsEligibleForAsset: true})

	_, err := f.svc.GenerateAsset(originCtx("http", "localhost"), "p10", nil)
	var invalid *pipeline.InvalidImageError
	if !errors.As(err, &invalid) {
		t.Fatalf("error: want InvalidImageError got=%T (%v)", err, err)
	}
	if n := atomic.LoadInt32(&f.renderer.calls); n != 0 {
		t.Fatalf("renderer calls: want=0 got=%d", n)
	}
	runs, _ := f.repos.AssetRun.ListByProduct(dbctx.New(context.Background()), "p10", 1)
	if len(runs) != 1 || runs[0].ErrorCode != pipeline.CodeInvalidImage {
		t.Fatalf("run log: got=%+v", runs)
	}
}

// pngHeaderOnly returns a PNG whose IHDR declares w x h RGBA pixels and
// which carries no image data.
func pngHeaderOnly(w, h uint32) []byte {
	var buf bytes.Buffer
	buf.WriteString("\x89PNG\r\n\x1a\n")
	chunk := func(typ string, data []byte) {
		_ = binary.Write(&buf, binary.BigEndian, uint32(len(data)))
		body := append([]byte(typ), data...)
		buf.Write(body)
		_ = binary.Write(&buf, binary.BigEndian, crc32.ChecksumIEEE(body))
	}
	ihdr := make([]byte, 13)
	binary.BigEndian.PutUint32(ihdr[0:4], w)
	binary.BigEndian.PutUint32(ihdr[4:8], h)
	ihdr[8], ihdr[9] = 8, 6
	chunk("IHDR", ihdr)
	chunk("IEND", nil)
	return buf.Bytes()
}

func TestGenerateAssetRegenerationOverwrites(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	f.writeJPEG(t, "photo.jpg", 40, 30)
	f.seed(t, types.Product{ID: "p4", Title: "T", ImageSource: "photo.jpg", IsEligibleForAsset: true})
	ctx := originCtx("http", "localhost")

	if _, err := f.svc.GenerateAsset(ctx, "p4", nil); err != nil {
		t.Fatalf("GenerateAsset first: %v", err)
	}
	first := f.get(t, "p4")
	time.Sleep(2 * time.Millisecond)
	if _, err := f.svc.GenerateAsset(ctx, "p4", nil); err != nil {
		t.Fatalf("GenerateAsset second: %v", err)
	}
	second := f.get(t, "p4")

	if !second.UpdatedAt.After(first.UpdatedAt) {
		t.Fatalf("updatedAt not advanced on regeneration")
	}
	data, _ := os.ReadFile(filepath.Join(f.modelDir, "p4.glb"))
	if string(data) != "glTF-run-2" {
		t.Fatalf("artifact: want second run got=%q", data)
	}
}

func TestGenerateAssetRendererNotFoundLeavesNoWorkspace(t *testing.T) {
	log := logger.NewNop()
	loc := renderer.NewLocator(log, renderer.LocatorConfig{
		Platform:    renderer.PlatformLinux,
		Providers:   map[string][]renderer.CandidateProvider{},
		InstallRoot: t.TempDir(),
		LookPath:    func(string) (string, error) { return "", errors.New("not on PATH") },
	})
	blender := renderer.NewBlender(loc, renderer.NewRunner(log, time.Second), nil)
	f := newFixture(t, fixtureOpts{renderer: blender})
	f.writeJPEG(t, "photo.jpg", 40, 30)
	before := f.seed(t, types.Product{ID: "p5", Title: "T", ImageSource: "photo.jpg", IsEligibleForAsset: true})

	_, err := f.svc.GenerateAsset(originCtx("http", "localhost"), "p5", nil)
	if pipeline.ErrorCode(err) != pipeline.CodeRendererNotFound {
		t.Fatalf("code: want=%q got=%q (%v)", pipeline.CodeRendererNotFound, pipeline.ErrorCode(err), err)
	}
	f.assertNoWorkspaces(t)
	if after := f.get(t, "p5"); !sameRecord(before, after) {
		t.Fatalf("record changed")
	}
}

func TestGenerateAssetConcurrentSameProduct(t *testing.T) {
	fr := &fakeRenderer{delay: 10 * time.Millisecond}
	f := newFixture(t, fixtureOpts{renderer: fr})
	f.writeJPEG(t, "photo.jpg", 40, 30)
	f.seed(t, types.Product{ID: "p6", Title: "T", ImageSource: "photo.jpg", IsEligibleForAsset: true})

	var wg sync.WaitGroup
	errs := make([]error, 2)
	results := make([]*GenerateResult, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = f.svc.GenerateAsset(originCtx("http", "localhost"), "p6", nil)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("GenerateAsset #%d: %v", i, err)
		}
	}
	got := f.get(t, "p6")
	if got.Status != types.ProductStatusARReady || got.AssetURL == nil {
		t.Fatalf("record: got=%+v", got)
	}
	if *got.AssetURL != results[0].AssetURL && *got.AssetURL != results[1].AssetURL {
		t.Fatalf("url %q is neither run's result", *got.AssetURL)
	}
	data, _ := os.ReadFile(filepath.Join(f.modelDir, "p6.glb"))
	if string(data) != fr.bodies[0] && string(data) != fr.bodies[1] {
		t.Fatalf("artifact %q is neither run's output %v", data, fr.bodies)
	}
	f.assertNoWorkspaces(t)
}

func TestGenerateAssetErrors(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	f.seed(t, types.Product{ID: "nosrc", Title: "T", IsEligibleForAsset: true})
	f.seed(t, types.Product{ID: "badsrc", Title: "T", ImageSource: "missing.jpg", IsEligibleForAsset: true})
	if err := os.WriteFile(filepath.Join(f.imageDir, "notimage.jpg"), []byte("hello"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	f.seed(t, types.Product{ID: "garbage", Title: "T", ImageSource: "notimage.jpg", IsEligibleForAsset: true})

	cases := []struct {
		id   string
		want string
	}{
		{"unknown", pipeline.CodeNotFound},
		{"nosrc", pipeline.CodeMissingInput},
		{"badsrc", pipeline.CodeAcquisition},
		{"garbage", pipeline.CodeInvalidImage},
	}
	for _, tc := range cases {
		_, err := f.svc.GenerateAsset(originCtx("http", "localhost"), tc.id, nil)
		if got := pipeline.ErrorCode(err); got != tc.want {
			t.Fatalf("%s: want code=%q got=%q (%v)", tc.id, tc.want, got, err)
		}
	}
	f.assertNoWorkspaces(t)
}

func TestGenerateAssetStoreFailureLeavesRecordUnchanged(t *testing.T) {
	f := newFixture(t, fixtureOpts{store: failingStore{}})
	f.writeJPEG(t, "photo.jpg", 40, 30)
	before := f.seed(t, types.Product{ID: "p7", Title: "T", ImageSource: "photo.jpg", IsEligibleForAsset: true})

	_, err := f.svc.GenerateAsset(context.Background(), "p7", nil)
	if pipeline.ErrorCode(err) != pipeline.CodeStore {
		t.Fatalf("code: want=%q got=%q", pipeline.CodeStore, pipeline.ErrorCode(err))
	}
	if after := f.get(t, "p7"); !sameRecord(before, after) {
		t.Fatalf("record changed")
	}
}

func TestGenerateAssetUploadOnlyWithoutSource(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	f.writeJPEG(t, "photo.jpg", 40, 30)
	upload, _ := os.ReadFile(f.writeJPEG(t, "upload.jpg", 64, 48))
	f.seed(t, types.Product{ID: "withsrc", Title: "T", ImageSource: "photo.jpg", IsEligibleForAsset: true})
	f.seed(t, types.Product{ID: "nosrc", Title: "T", IsEligibleForAsset: true})
	ctx := originCtx("http", "localhost")

	if _, err := f.svc.GenerateAsset(ctx, "withsrc", upload); err != nil {
		t.Fatalf("GenerateAsset withsrc: %v", err)
	}
	if _, err := f.svc.GenerateAsset(ctx, "nosrc", upload); err != nil {
		t.Fatalf("GenerateAsset nosrc: %v", err)
	}
	if len(f.renderer.inputs) != 2 {
		t.Fatalf("renderer calls: want=2 got=%d", len(f.renderer.inputs))
	}
	if f.renderer.inputs[0].Width != 40 {
		t.Fatalf("source on file must win over upload: got width=%d", f.renderer.inputs[0].Width)
	}
	if f.renderer.inputs[1].Width != 64 {
		t.Fatalf("upload must be used without source: got width=%d", f.renderer.inputs[1].Width)
	}
}

func TestConvertUploadStreamsArtifact(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	upload, _ := os.ReadFile(f.writeJPEG(t, "upload.jpg", 32, 32))

	var got bytes.Buffer
	var size int64
	err := f.svc.ConvertUpload(context.Background(), upload, func(r io.Reader, n int64) error {
		size = n
		_, err := io.Copy(&got, r)
		return err
	})
	if err != nil {
		t.Fatalf("ConvertUpload: %v", err)
	}
	if got.String() != "glTF-run-1" || size != int64(got.Len()) {
		t.Fatalf("artifact: got=%q size=%d", got.String(), size)
	}
	f.assertNoWorkspaces(t)

	if err := f.svc.ConvertUpload(context.Background(), nil, nil); pipeline.ErrorCode(err) != pipeline.CodeMissingInput {
		t.Fatalf("empty upload: want %q got=%v", pipeline.CodeMissingInput, err)
	}
}
