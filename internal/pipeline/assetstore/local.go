package assetstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/yungbote/artisan-backend/internal/pipeline"
	"github.com/yungbote/artisan-backend/internal/platform/ctxutil"
	"github.com/yungbote/artisan-backend/internal/platform/logger"
)

// RoutePrefix is where the HTTP layer serves the local directory.
const RoutePrefix = "/ar_models"

var DefaultManagedHostDomains = []string{
	"onrender.com",
	"vercel.app",
	"herokuapp.com",
	"fly.dev",
	"railway.app",
}

var errNoOrigin = errors.New("no request origin and no public base url configured")

type LocalConfig struct {
	Dir string
	// PublicBaseURL is used when the caller context carries no request origin.
	PublicBaseURL string
	// ManagedHostDomains force https for hosts equal to or under these domains.
	ManagedHostDomains []string
}

type localStore struct {
	log     *logger.Logger
	dir     string
	baseURL string
	managed []string
}

func NewLocalStore(log *logger.Logger, cfg LocalConfig) (Store, error) {
	dir := strings.TrimSpace(cfg.Dir)
	if dir == "" {
		dir = "ar_models"
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve ar models dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create ar models dir: %w", err)
	}
	managed := cfg.ManagedHostDomains
	if len(managed) == 0 {
		managed = DefaultManagedHostDomains
	}
	return &localStore{
		log:     log.With("service", "LocalAssetStore"),
		dir:     abs,
		baseURL: strings.TrimRight(strings.TrimSpace(cfg.PublicBaseURL), "/"),
		managed: normalizeDomains(managed),
	}, nil
}

func (s *localStore) Mode() Mode { return ModeLocal }

func (s *localStore) Dir() string { return s.dir }

func (s *localStore) Persist(ctx context.Context, artifactPath, productID string) (string, error) {
	name := FileName(productID)
	fail := func(err error) (string, error) {
		return "", &pipeline.StoreError{Backend: string(ModeLocal), Key: name, Err: err}
	}
	if err := validateProductID(productID); err != nil {
		return fail(err)
	}
	// Resolve the URL first so a missing origin never leaves a stray file.
	publicURL, err := s.publicURL(ctx, name)
	if err != nil {
		return fail(err)
	}
	if err := ctx.Err(); err != nil {
		return fail(err)
	}
	if err := s.copyInto(artifactPath, filepath.Join(s.dir, name)); err != nil {
		return fail(err)
	}
	s.log.Info("Artifact stored locally", "path", filepath.Join(s.dir, name), "url", publicURL)
	return publicURL, nil
}

// copyInto writes through a temp file in the destination directory and renames
// it over dst, so readers never see a partially written artifact.
func (s *localStore) copyInto(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open artifact: %w", err)
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".upload-*"+pipeline.ArtifactExt)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := io.Copy(tmp, in); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("copy artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("chmod artifact: %w", err)
	}
	if err := os.Rename(tmpName, dst); err != nil {
		return fmt.Errorf("replace artifact: %w", err)
	}
	return nil
}

func (s *localStore) publicURL(ctx context.Context, name string) (string, error) {
	path := RoutePrefix + "/" + url.PathEscape(name)
	if origin, ok := ctxutil.GetRequestOrigin(ctx); ok {
		scheme := strings.ToLower(strings.TrimSpace(origin.Scheme))
		if scheme == "" {
			scheme = "http"
		}
		if IsManagedHost(origin.Host, s.managed) {
			scheme = "https"
		}
		return scheme + "://" + origin.Host + path, nil
	}
	if s.baseURL == "" {
		return "", errNoOrigin
	}
	base, err := url.Parse(s.baseURL)
	if err != nil || base.Host == "" {
		return "", fmt.Errorf("invalid public base url %q", s.baseURL)
	}
	if IsManagedHost(base.Host, s.managed) {
		base.Scheme = "https"
	}
	return strings.TrimRight(base.String(), "/") + path, nil
}

// IsManagedHost reports whether host (port ignored) is one of domains or a
// subdomain of one.
func IsManagedHost(host string, domains []string) bool {
	h := strings.ToLower(strings.TrimSpace(host))
	if hostOnly, _, err := net.SplitHostPort(h); err == nil {
		h = hostOnly
	}
	h = strings.TrimSuffix(h, ".")
	if h == "" {
		return false
	}
	for _, d := range domains {
		d = strings.ToLower(strings.Trim(strings.TrimSpace(d), "."))
		if d == "" {
			continue
		}
		if h == d || strings.HasSuffix(h, "."+d) {
			return true
		}
	}
	return false
}

func normalizeDomains(in []string) []string {
	out := make([]string, 0, len(in))
	for _, d := range in {
		d = strings.ToLower(strings.Trim(strings.TrimSpace(d), "."))
		if d != "" {
			out = append(out, d)
		}
	}
	return out
}
