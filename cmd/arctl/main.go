package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/yungbote/artisan-backend/internal/app"
	"github.com/yungbote/artisan-backend/internal/platform/ctxutil"
	"github.com/yungbote/artisan-backend/internal/platform/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := &cli.Command{
		Name:  "arctl",
		Usage: "run the asset generation pipeline outside the HTTP server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "env",
				Usage: "env file to load before reading configuration",
				Value: ".env",
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "generate",
				Usage:     "generate the AR asset for one product (needs RECORD_STORE=sqlite or postgres)",
				ArgsUsage: "<productId>",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "image",
						Usage: "local image used when the product has no image source",
					},
					&cli.StringFlag{
						Name:  "origin",
						Usage: "public origin used to build local asset URLs, e.g. https://shop.example.app",
					},
				},
				Action: generateAction,
			},
			{
				Name:   "locate",
				Usage:  "print the resolved renderer executable and script",
				Action: locateAction,
			},
		},
	}

	if err := cmd.Run(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "arctl: %v\n", err)
		os.Exit(1)
	}
}

// newApp wires the app from the env file. check, when set, vets the loaded
// config before anything is connected.
func newApp(ctx context.Context, cmd *cli.Command, check func(app.Config) error) (*app.App, error) {
	if err := os.Setenv("ENV_FILE", cmd.String("env")); err != nil {
		return nil, err
	}
	log, err := logger.New(os.Getenv("LOG_MODE"))
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	app.LoadDotEnv(log)
	cfg, err := app.LoadConfig(log)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if check != nil {
		if err := check(cfg); err != nil {
			return nil, err
		}
	}
	return app.NewWithConfig(ctx, log, cfg)
}

// requirePersistentRecords rejects the in-memory record store, which starts
// empty in every arctl process and so can never hold the product.
func requirePersistentRecords(cfg app.Config) error {
	if cfg.RecordStore == app.RecordStoreMemory {
		return fmt.Errorf("generate needs RECORD_STORE=sqlite or postgres; the %q store is empty in a fresh process", cfg.RecordStore)
	}
	return nil
}

// parseOrigin accepts an absolute http(s) URL and keeps its scheme and host.
func parseOrigin(raw string) (ctxutil.RequestOrigin, error) {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return ctxutil.RequestOrigin{}, fmt.Errorf("origin must be an absolute http(s) URL, got %q", raw)
	}
	return ctxutil.RequestOrigin{Scheme: u.Scheme, Host: u.Host}, nil
}

func generateAction(ctx context.Context, cmd *cli.Command) error {
	productID := cmd.Args().First()
	if productID == "" {
		return fmt.Errorf("generate: product id is required")
	}

	var upload []byte
	if path := cmd.String("image"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read image: %w", err)
		}
		upload = data
	}
	if raw := cmd.String("origin"); raw != "" {
		origin, err := parseOrigin(raw)
		if err != nil {
			return err
		}
		ctx = ctxutil.WithRequestOrigin(ctx, origin)
	}

	a, err := newApp(ctx, cmd, requirePersistentRecords)
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.Services.Assets.GenerateAsset(ctx, productID, upload)
	if err != nil {
		return err
	}
	return json.NewEncoder(os.Stdout).Encode(map[string]any{
		"product_id":   res.ProductID,
		"skipped":      res.Skipped,
		"ar_model_url": res.AssetURL,
	})
}

func locateAction(ctx context.Context, cmd *cli.Command) error {
	a, err := newApp(ctx, cmd, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	loc, err := a.Services.Renderer.Locate(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("executable: %s\nscript:     %s\n", loc.Executable, loc.Script)
	return nil
}
