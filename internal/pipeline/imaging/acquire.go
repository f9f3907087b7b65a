package imaging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/yungbote/artisan-backend/internal/pipeline"
	"github.com/yungbote/artisan-backend/internal/platform/ctxutil"
	"github.com/yungbote/artisan-backend/internal/platform/logger"
)

const defaultMaxImageBytes = 25 << 20

type Options struct {
	// HTTPClient is used for remote sources. Defaults to a client with
	// FetchTimeout.
	HTTPClient   *http.Client
	FetchTimeout time.Duration
	// MaxBytes caps the size of any source image.
	MaxBytes int64
	// MaxPixels caps the declared width*height. Defaults to DefaultMaxPixels.
	MaxPixels int64
	// LocalRoot resolves relative local references. Absolute paths and
	// file:// URLs are used as-is.
	LocalRoot string
}

// Acquirer obtains a product image and writes its canonical form into a job
// workspace.
type Acquirer struct {
	log       *logger.Logger
	client    *http.Client
	maxBytes  int64
	maxPixels int64
	root      string
}

func NewAcquirer(log *logger.Logger, opts Options) *Acquirer {
	client := opts.HTTPClient
	if client == nil {
		timeout := opts.FetchTimeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	maxBytes := opts.MaxBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxImageBytes
	}
	maxPixels := opts.MaxPixels
	if maxPixels <= 0 {
		maxPixels = DefaultMaxPixels
	}
	return &Acquirer{
		log:       log.With("service", "ImageAcquirer"),
		client:    client,
		maxBytes:  maxBytes,
		maxPixels: maxPixels,
		root:      opts.LocalRoot,
	}
}

// IsRemote reports whether source is an http(s) URL.
func IsRemote(source string) bool {
	s := strings.ToLower(strings.TrimSpace(source))
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// Acquire fetches or reads source and writes exactly one file, the canonical
// PNG, into ws. The source itself is never modified.
func (a *Acquirer) Acquire(ctx context.Context, source string, ws *pipeline.Workspace) (string, error) {
	ctx = ctxutil.Default(ctx)
	source = strings.TrimSpace(source)
	if source == "" {
		return "", &pipeline.AcquisitionError{Source: source, Err: errors.New("empty image source")}
	}

	var (
		data []byte
		err  error
	)
	if IsRemote(source) {
		data, err = a.fetch(ctx, source)
	} else {
		data, err = a.readLocal(source)
	}
	if err != nil {
		return "", err
	}
	return a.write(data, ws)
}

// AcquireBytes normalizes an image that arrived in the request body.
func (a *Acquirer) AcquireBytes(ctx context.Context, data []byte, ws *pipeline.Workspace) (string, error) {
	if int64(len(data)) > a.maxBytes {
		return "", &pipeline.AcquisitionError{Source: "upload", Err: fmt.Errorf("image exceeds %d bytes", a.maxBytes)}
	}
	return a.write(data, ws)
}

func (a *Acquirer) write(data []byte, ws *pipeline.Workspace) (string, error) {
	canonical, cfg, err := Normalize(data, a.maxPixels)
	if err != nil {
		return "", err
	}
	out := ws.Path(CanonicalName)
	if err := os.WriteFile(out, canonical, 0o644); err != nil {
		return "", fmt.Errorf("write canonical image: %w", err)
	}
	a.log.Debug("Image normalized", "path", out, "width", cfg.Width, "height", cfg.Height, "bytes", len(canonical))
	return out, nil
}

func (a *Acquirer) fetch(ctx context.Context, source string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return nil, &pipeline.AcquisitionError{Source: source, Err: err}
	}
	req.Header.Set("Accept", "image/*")
	resp, err := a.client.Do(req)
	if err != nil {
		return nil, &pipeline.AcquisitionError{Source: source, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return nil, &pipeline.AcquisitionError{Source: source, StatusCode: resp.StatusCode}
	}
	return a.readLimited(source, resp.Body)
}

func (a *Acquirer) readLocal(source string) ([]byte, error) {
	path, err := a.resolveLocal(source)
	if err != nil {
		return nil, &pipeline.AcquisitionError{Source: source, Err: err}
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, &pipeline.AcquisitionError{Source: source, Err: err}
	}
	defer f.Close()
	return a.readLimited(source, f)
}

func (a *Acquirer) resolveLocal(source string) (string, error) {
	if strings.HasPrefix(strings.ToLower(source), "file://") {
		u, err := url.Parse(source)
		if err != nil {
			return "", err
		}
		return filepath.FromSlash(u.Path), nil
	}
	if filepath.IsAbs(source) || a.root == "" {
		return source, nil
	}
	return filepath.Join(a.root, filepath.FromSlash(strings.TrimLeft(source, "/"))), nil
}

func (a *Acquirer) readLimited(source string, r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, a.maxBytes+1))
	if err != nil {
		return nil, &pipeline.AcquisitionError{Source: source, Err: err}
	}
	if int64(len(data)) > a.maxBytes {
		return nil, &pipeline.AcquisitionError{Source: source, Err: fmt.Errorf("image exceeds %d bytes", a.maxBytes)}
	}
	return data, nil
}
