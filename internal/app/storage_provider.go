package app

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/yungbote/artisan-backend/internal/pipeline/assetstore"
	"github.com/yungbote/artisan-backend/internal/platform/gcp"
	"github.com/yungbote/artisan-backend/internal/platform/logger"
)

var newBucketServiceWithConfig = gcp.NewBucketServiceWithConfig

const objectStorageModeLocal = "local"

type StorageProviderBootstrapErrorCode string

const (
	StorageProviderBootstrapErrorInvalidMode         StorageProviderBootstrapErrorCode = "invalid_mode"
	StorageProviderBootstrapErrorMissingBucket       StorageProviderBootstrapErrorCode = "missing_bucket"
	StorageProviderBootstrapErrorMissingEmulatorHost StorageProviderBootstrapErrorCode = "missing_emulator_host"
	StorageProviderBootstrapErrorInvalidEmulatorHost StorageProviderBootstrapErrorCode = "invalid_emulator_host"
	StorageProviderBootstrapErrorLocalDir            StorageProviderBootstrapErrorCode = "local_dir"
	StorageProviderBootstrapErrorConnectFailed       StorageProviderBootstrapErrorCode = "connect_failed"
)

type StorageProviderBootstrapError struct {
	Code         StorageProviderBootstrapErrorCode
	Mode         string
	EmulatorHost string
	Cause        error
}

func (e *StorageProviderBootstrapError) Error() string {
	if e == nil {
		return "asset storage bootstrap failed"
	}
	return fmt.Sprintf(
		"asset storage bootstrap failed (code=%s mode=%q emulator_host=%q): %v",
		e.Code,
		e.Mode,
		e.EmulatorHost,
		e.Cause,
	)
}

func (e *StorageProviderBootstrapError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// selectStorageMode picks the backend. Without an explicit mode a configured
// bucket selects GCS (or the emulator when its host is set) and anything else
// falls back to local files.
func selectStorageMode(cfg Config) (mode string, source string) {
	mode = strings.ToLower(strings.TrimSpace(cfg.ObjectStorageMode))
	if mode != "" {
		return mode, "explicit"
	}
	switch {
	case strings.TrimSpace(cfg.AssetBucket) == "":
		return objectStorageModeLocal, "no_bucket"
	case strings.TrimSpace(cfg.StorageEmulatorHost) != "":
		return string(gcp.ObjectStorageModeGCSEmulator), "emulator_host"
	default:
		return string(gcp.ObjectStorageModeGCS), "bucket"
	}
}

// resolveAssetStore returns the artifact store and, in local mode, the
// directory that must be served under /ar_models.
func resolveAssetStore(log *logger.Logger, cfg Config) (assetstore.Store, string, error) {
	mode, source := selectStorageMode(cfg)

	if mode == objectStorageModeLocal {
		raw := strings.TrimSpace(cfg.ARModelsDir)
		if raw == "" {
			raw = "ar_models"
		}
		dir, err := filepath.Abs(raw)
		if err == nil {
			var store assetstore.Store
			store, err = assetstore.NewLocalStore(log, assetstore.LocalConfig{
				Dir:                dir,
				PublicBaseURL:      cfg.PublicBaseURL,
				ManagedHostDomains: cfg.ManagedHostDomains,
			})
			if err == nil {
				log.Info("Selecting asset storage provider", "mode", mode, "mode_source", source, "dir", dir)
				return store, dir, nil
			}
		}
		bootErr := &StorageProviderBootstrapError{Code: StorageProviderBootstrapErrorLocalDir, Mode: mode, Cause: err}
		log.Error("Asset storage provider bootstrap failed", "mode", mode, "error_code", bootErr.Code, "error", err)
		return nil, "", bootErr
	}

	storageCfg := gcp.ObjectStorageConfig{
		Mode:                  gcp.ObjectStorageMode(mode),
		EmulatorHost:          strings.TrimSpace(cfg.StorageEmulatorHost),
		Bucket:                strings.TrimSpace(cfg.AssetBucket),
		CDNDomain:             strings.TrimSpace(cfg.AssetCDNDomain),
		PublicBaseURL:         strings.TrimSpace(cfg.ObjectPublicBaseURL),
		PublicACL:             cfg.AssetPublicACL,
		CompatibilityFallback: source == "emulator_host",
	}

	if !gcp.IsSupportedObjectStorageMode(storageCfg.Mode) {
		err := &StorageProviderBootstrapError{
			Code:         StorageProviderBootstrapErrorInvalidMode,
			Mode:         mode,
			EmulatorHost: storageCfg.EmulatorHost,
			Cause:        fmt.Errorf("unsupported object storage mode %q", mode),
		}
		log.Error(
			"Asset storage provider selection failed",
			"mode", mode,
			"mode_source", source,
			"error_code", err.Code,
			"error", err,
		)
		return nil, "", err
	}

	log.Info(
		"Selecting asset storage provider",
		"mode", storageCfg.Mode,
		"mode_source", source,
		"compatibility_fallback", storageCfg.CompatibilityFallback,
		"emulator_host", storageCfg.EmulatorHost,
		"bucket", storageCfg.Bucket,
	)

	bucket, err := newBucketServiceWithConfig(log, storageCfg)
	if err != nil {
		classified := classifyStorageProviderBootstrapError(storageCfg, err)
		log.Error(
			"Asset storage provider bootstrap failed",
			"mode", storageCfg.Mode,
			"mode_source", source,
			"emulator_host", storageCfg.EmulatorHost,
			"error_code", storageProviderBootstrapErrorCode(classified),
			"error", classified,
		)
		return nil, "", classified
	}
	return assetstore.NewGCSStore(log, bucket), "", nil
}

func classifyStorageProviderBootstrapError(storageCfg gcp.ObjectStorageConfig, err error) error {
	code := StorageProviderBootstrapErrorConnectFailed
	var cfgErr *gcp.ObjectStorageConfigError
	if errors.As(err, &cfgErr) {
		switch cfgErr.Code {
		case gcp.ObjectStorageConfigErrorInvalidMode:
			code = StorageProviderBootstrapErrorInvalidMode
		case gcp.ObjectStorageConfigErrorMissingBucket:
			code = StorageProviderBootstrapErrorMissingBucket
		case gcp.ObjectStorageConfigErrorMissingEmulatorHost:
			code = StorageProviderBootstrapErrorMissingEmulatorHost
		case gcp.ObjectStorageConfigErrorInvalidEmulatorHost:
			code = StorageProviderBootstrapErrorInvalidEmulatorHost
		}
	}
	return &StorageProviderBootstrapError{
		Code:         code,
		Mode:         string(storageCfg.Mode),
		EmulatorHost: storageCfg.EmulatorHost,
		Cause:        err,
	}
}

func storageProviderBootstrapErrorCode(err error) StorageProviderBootstrapErrorCode {
	var bootstrapErr *StorageProviderBootstrapError
	if errors.As(err, &bootstrapErr) && bootstrapErr.Code != "" {
		return bootstrapErr.Code
	}
	return StorageProviderBootstrapErrorConnectFailed
}
