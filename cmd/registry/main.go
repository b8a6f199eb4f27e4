package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/tendant/content-registry/pkg/registry"
	"github.com/tendant/content-registry/pkg/registry/config"
)

const envPrefix = "REGISTRY_"

// Settings holds process-level settings read from the environment.
// Storage settings are read separately by config.WithEnv.
type Settings struct {
	LogLevel string        `env:"REGISTRY_LOG_LEVEL" env-default:"info"`
	NoColor  bool          `env:"NO_COLOR" env-default:"false"`
	Timeout  time.Duration `env:"REGISTRY_TIMEOUT" env-default:"30s"`
}

func main() {
	// .env is optional
	_ = godotenv.Load()

	if err := run(context.Background(), os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		slog.Error("Command failed", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	var settings Settings
	if err := cleanenv.ReadEnv(&settings); err != nil {
		return fmt.Errorf("failed to read settings: %w", err)
	}

	level, err := config.ParseLogLevel(settings.LogLevel)
	if err != nil {
		return err
	}
	logger := slog.New(tint.NewHandler(stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
		NoColor:    settings.NoColor,
	}))
	slog.SetDefault(logger)

	if settings.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, settings.Timeout)
		defer cancel()
	}

	app := &cli{logger: logger, stdin: stdin, stdout: stdout}
	defer app.close()

	root := app.rootCommand()
	root.SetArgs(args)
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)
	return root.ExecuteContext(ctx)
}

// openRegistry builds the registry from REGISTRY_* variables. The --storage
// flag replaces REGISTRY_STORAGE_URL and uses backend defaults.
func (c *cli) openRegistry(ctx context.Context) (*registry.Registry, error) {
	opts := []config.Option{
		config.WithLogger(c.logger),
		config.WithEnv(envPrefix),
	}
	if c.storageURL != "" {
		opts = append(opts, config.WithStorageURL(c.storageURL))
	}

	cfg, err := config.Load(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	c.logger.Debug("Opening registry", "storage", cfg.Storage.Type, "environment", cfg.Environment)
	return cfg.BuildRegistry(ctx)
}
