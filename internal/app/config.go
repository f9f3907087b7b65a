package app

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/yungbote/artisan-backend/internal/data/db"
	"github.com/yungbote/artisan-backend/internal/platform/envutil"
	"github.com/yungbote/artisan-backend/internal/platform/logger"
)

const (
	RecordStoreMemory   = "memory"
	RecordStoreSQLite   = "sqlite"
	RecordStorePostgres = "postgres"
)

type Config struct {
	Port        string
	LogMode     string
	Environment string
	Version     string

	RecordStore string
	Postgres    db.PostgresConfig
	SQLitePath  string

	ObjectStorageMode   string
	StorageEmulatorHost string
	AssetBucket         string
	AssetCDNDomain      string
	ObjectPublicBaseURL string
	AssetPublicACL      bool
	ARModelsDir         string
	PublicBaseURL       string
	ManagedHostDomains  []string

	BlenderPath        string
	BlenderSearchPaths []string
	RenderScriptPath   string
	AppRoot            string
	RenderTimeout      time.Duration

	ImageFetchTimeout time.Duration
	ImageMaxBytes     int64
	ImageMaxPixels    int64
	WorkRoot          string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	CORSOrigins []string
}

// fileOverlay is the optional YAML file named by APP_CONFIG_FILE. It only
// carries list-shaped settings that are awkward in a single env var.
type fileOverlay struct {
	Renderer struct {
		SearchPaths []string `yaml:"search_paths"`
		Executable  string   `yaml:"executable"`
		Script      string   `yaml:"script"`
	} `yaml:"renderer"`
	Storage struct {
		ManagedHostDomains []string `yaml:"managed_host_domains"`
	} `yaml:"storage"`
	CORS struct {
		Origins []string `yaml:"origins"`
	} `yaml:"cors"`
}

// LoadDotEnv reads .env (or ENV_FILE) into the process environment without
// overriding variables that are already set. A missing file is not an error.
func LoadDotEnv(log *logger.Logger) {
	path := envutil.String("ENV_FILE", ".env")
	if err := godotenv.Load(path); err != nil {
		if !errors.Is(err, os.ErrNotExist) && log != nil {
			log.Warn("Failed to load env file", "path", path, "error", err)
		}
		return
	}
	if log != nil {
		log.Debug("Loaded env file", "path", path)
	}
}

func LoadConfig(log *logger.Logger) (Config, error) {
	cfg := Config{
		Port:        envutil.String("PORT", "8000"),
		LogMode:     envutil.String("LOG_MODE", "development"),
		Environment: envutil.String("APP_ENV", "development"),
		Version:     envutil.String("APP_VERSION", "dev"),

		RecordStore: strings.ToLower(envutil.String("RECORD_STORE", RecordStoreMemory)),
		Postgres: db.PostgresConfig{
			Host:     envutil.String("POSTGRES_HOST", "localhost"),
			Port:     envutil.String("POSTGRES_PORT", "5432"),
			User:     envutil.String("POSTGRES_USER", "postgres"),
			Password: envutil.String("POSTGRES_PASSWORD", ""),
			Name:     envutil.String("POSTGRES_NAME", "artisan"),
			SSLMode:  envutil.String("POSTGRES_SSLMODE", "disable"),
		},
		SQLitePath: envutil.String("SQLITE_PATH", "data/artisan.db"),

		ObjectStorageMode:   strings.ToLower(envutil.String("OBJECT_STORAGE_MODE", "")),
		StorageEmulatorHost: envutil.String("STORAGE_EMULATOR_HOST", ""),
		AssetBucket:         envutil.String("ASSET_GCS_BUCKET_NAME", ""),
		AssetCDNDomain:      envutil.String("ASSET_CDN_DOMAIN", ""),
		ObjectPublicBaseURL: envutil.String("OBJECT_STORAGE_PUBLIC_BASE_URL", ""),
		AssetPublicACL:      envutil.Bool("ASSET_GCS_PUBLIC_ACL", true),
		ARModelsDir:         envutil.String("AR_MODELS_DIR", "ar_models"),
		PublicBaseURL:       envutil.String("PUBLIC_BASE_URL", ""),
		ManagedHostDomains:  envutil.List("MANAGED_HOST_DOMAINS"),

		BlenderPath:        envutil.String("BLENDER_PATH", ""),
		BlenderSearchPaths: envutil.List("BLENDER_SEARCH_PATHS"),
		RenderScriptPath:   envutil.String("RENDER_SCRIPT_PATH", ""),
		AppRoot:            envutil.String("APP_ROOT", ""),
		RenderTimeout:      envutil.Seconds("RENDER_TIMEOUT_SECONDS", 5*time.Minute),

		ImageFetchTimeout: envutil.Seconds("IMAGE_FETCH_TIMEOUT_SECONDS", 30*time.Second),
		ImageMaxBytes:     envutil.Int64("IMAGE_MAX_BYTES", 25<<20),
		ImageMaxPixels:    envutil.Int64("IMAGE_MAX_PIXELS", 40_000_000),
		WorkRoot:          envutil.String("WORK_ROOT", ""),

		RedisAddr:     envutil.String("REDIS_ADDR", ""),
		RedisPassword: envutil.String("REDIS_PASSWORD", ""),
		RedisDB:       envutil.Int("REDIS_DB", 0),

		CORSOrigins: envutil.List("CORS_ALLOWED_ORIGINS"),
	}

	if path := envutil.String("APP_CONFIG_FILE", ""); path != "" {
		if err := applyOverlay(&cfg, path); err != nil {
			return cfg, err
		}
		if log != nil {
			log.Info("Applied config overlay", "path", path)
		}
	}

	switch cfg.RecordStore {
	case RecordStoreMemory, RecordStoreSQLite, RecordStorePostgres:
	default:
		return cfg, fmt.Errorf("unsupported RECORD_STORE %q (want memory, sqlite or postgres)", cfg.RecordStore)
	}
	if cfg.ImageMaxBytes <= 0 {
		return cfg, fmt.Errorf("IMAGE_MAX_BYTES must be positive")
	}
	if cfg.ImageMaxPixels <= 0 {
		return cfg, fmt.Errorf("IMAGE_MAX_PIXELS must be positive")
	}
	return cfg, nil
}

// applyOverlay appends file-provided lists to env-provided ones. Scalars from
// the file only fill values the environment left empty.
func applyOverlay(cfg *Config, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %q: %w", path, err)
	}
	var o fileOverlay
	if err := yaml.Unmarshal(raw, &o); err != nil {
		return fmt.Errorf("parse config file %q: %w", path, err)
	}
	cfg.BlenderSearchPaths = append(cfg.BlenderSearchPaths, o.Renderer.SearchPaths...)
	cfg.ManagedHostDomains = append(cfg.ManagedHostDomains, o.Storage.ManagedHostDomains...)
	cfg.CORSOrigins = append(cfg.CORSOrigins, o.CORS.Origins...)
	if cfg.BlenderPath == "" {
		cfg.BlenderPath = strings.TrimSpace(o.Renderer.Executable)
	}
	if cfg.RenderScriptPath == "" {
		cfg.RenderScriptPath = strings.TrimSpace(o.Renderer.Script)
	}
	return nil
}
