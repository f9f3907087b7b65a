package app

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/yungbote/artisan-backend/internal/pipeline/assetstore"
	"github.com/yungbote/artisan-backend/internal/platform/gcp"
	"github.com/yungbote/artisan-backend/internal/platform/logger"
)

type testBucketService struct{}

func (s *testBucketService) UploadFile(context.Context, string, io.Reader, gcp.UploadOptions) error {
	return nil
}
func (s *testBucketService) DeleteFile(context.Context, string) error { return nil }
func (s *testBucketService) GetPublicURL(key string) string {
	return "https://storage.googleapis.com/assets/" + key
}
func (s *testBucketService) BucketName() string { return "assets" }

func stubBucketFactory(t *testing.T) *gcp.ObjectStorageConfig {
	t.Helper()
	orig := newBucketServiceWithConfig
	t.Cleanup(func() { newBucketServiceWithConfig = orig })
	captured := &gcp.ObjectStorageConfig{}
	newBucketServiceWithConfig = func(_ *logger.Logger, cfg gcp.ObjectStorageConfig) (gcp.BucketService, error) {
		*captured = cfg
		return &testBucketService{}, nil
	}
	return captured
}

func TestClassifyStorageProviderBootstrapError(t *testing.T) {
	cases := []struct {
		src  error
		want StorageProviderBootstrapErrorCode
	}{
		{&gcp.ObjectStorageConfigError{Code: gcp.ObjectStorageConfigErrorInvalidMode}, StorageProviderBootstrapErrorInvalidMode},
		{&gcp.ObjectStorageConfigError{Code: gcp.ObjectStorageConfigErrorMissingBucket}, StorageProviderBootstrapErrorMissingBucket},
		{&gcp.ObjectStorageConfigError{Code: gcp.ObjectStorageConfigErrorMissingEmulatorHost}, StorageProviderBootstrapErrorMissingEmulatorHost},
		{&gcp.ObjectStorageConfigError{Code: gcp.ObjectStorageConfigErrorInvalidEmulatorHost}, StorageProviderBootstrapErrorInvalidEmulatorHost},
		{errors.New("dial tcp: connection refused"), StorageProviderBootstrapErrorConnectFailed},
	}
	for _, tc := range cases {
		err := classifyStorageProviderBootstrapError(gcp.ObjectStorageConfig{Mode: gcp.ObjectStorageModeGCS}, tc.src)
		var got *StorageProviderBootstrapError
		if !errors.As(err, &got) {
			t.Fatalf("expected StorageProviderBootstrapError, got=%T", err)
		}
		if got.Code != tc.want {
			t.Fatalf("code: want=%q got=%q", tc.want, got.Code)
		}
		if !errors.Is(err, tc.src) {
			t.Fatalf("cause not wrapped for %q", tc.want)
		}
	}
}

func TestSelectStorageMode(t *testing.T) {
	cases := []struct {
		cfg  Config
		want string
	}{
		{Config{}, objectStorageModeLocal},
		{Config{AssetBucket: "assets"}, string(gcp.ObjectStorageModeGCS)},
		{Config{AssetBucket: "assets", StorageEmulatorHost: "http://fake-gcs:4443"}, string(gcp.ObjectStorageModeGCSEmulator)},
		{Config{ObjectStorageMode: "LOCAL", AssetBucket: "assets"}, objectStorageModeLocal},
	}
	for _, tc := range cases {
		if got, _ := selectStorageMode(tc.cfg); got != tc.want {
			t.Fatalf("mode for %+v: want=%q got=%q", tc.cfg, tc.want, got)
		}
	}
}

func TestResolveAssetStoreLocalFallback(t *testing.T) {
	dir := t.TempDir()
	store, served, err := resolveAssetStore(logger.NewNop(), Config{ARModelsDir: dir})
	if err != nil {
		t.Fatalf("resolveAssetStore: %v", err)
	}
	if store.Mode() != assetstore.ModeLocal {
		t.Fatalf("mode: want=%q got=%q", assetstore.ModeLocal, store.Mode())
	}
	if served != dir {
		t.Fatalf("served dir: want=%q got=%q", dir, served)
	}
}

func TestResolveAssetStoreInvalidMode(t *testing.T) {
	_, _, err := resolveAssetStore(logger.NewNop(), Config{ObjectStorageMode: "s3"})
	var got *StorageProviderBootstrapError
	if !errors.As(err, &got) {
		t.Fatalf("expected StorageProviderBootstrapError, got=%T", err)
	}
	if got.Code != StorageProviderBootstrapErrorInvalidMode {
		t.Fatalf("code: want=%q got=%q", StorageProviderBootstrapErrorInvalidMode, got.Code)
	}
}

func TestResolveAssetStoreGCSMode(t *testing.T) {
	captured := stubBucketFactory(t)

	store, served, err := resolveAssetStore(logger.NewNop(), Config{
		AssetBucket:    "assets",
		AssetCDNDomain: "cdn.example.com",
		AssetPublicACL: true,
	})
	if err != nil {
		t.Fatalf("resolveAssetStore: %v", err)
	}
	if store.Mode() != assetstore.ModeGCS || served != "" {
		t.Fatalf("store: mode=%q served=%q", store.Mode(), served)
	}
	if captured.Mode != gcp.ObjectStorageModeGCS || captured.Bucket != "assets" || captured.CDNDomain != "cdn.example.com" {
		t.Fatalf("captured config: %+v", *captured)
	}
	if !captured.PublicACL {
		t.Fatalf("public acl: want=true")
	}
}

func TestResolveAssetStoreEmulatorCompatibility(t *testing.T) {
	captured := stubBucketFactory(t)

	_, _, err := resolveAssetStore(logger.NewNop(), Config{
		AssetBucket:         "assets",
		StorageEmulatorHost: "http://fake-gcs:4443",
	})
	if err != nil {
		t.Fatalf("resolveAssetStore: %v", err)
	}
	if captured.Mode != gcp.ObjectStorageModeGCSEmulator {
		t.Fatalf("mode: want=%q got=%q", gcp.ObjectStorageModeGCSEmulator, captured.Mode)
	}
	if !captured.CompatibilityFallback {
		t.Fatalf("compatibility fallback: want=true")
	}
}

func TestResolveAssetStoreMissingEmulatorHost(t *testing.T) {
	_, _, err := resolveAssetStore(logger.NewNop(), Config{
		ObjectStorageMode: string(gcp.ObjectStorageModeGCSEmulator),
		AssetBucket:       "assets",
	})
	var got *StorageProviderBootstrapError
	if !errors.As(err, &got) {
		t.Fatalf("expected StorageProviderBootstrapError, got=%T", err)
	}
	if got.Code != StorageProviderBootstrapErrorMissingEmulatorHost {
		t.Fatalf("code: want=%q got=%q", StorageProviderBootstrapErrorMissingEmulatorHost, got.Code)
	}
}
