package presets

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/tendant/content-registry/pkg/registry"
	"github.com/tendant/content-registry/pkg/registry/config"
	fsstorage "github.com/tendant/content-registry/pkg/registry/storage/fs"
	memorystorage "github.com/tendant/content-registry/pkg/registry/storage/memory"
)

// Configuration Presets
//
// This package provides ready-to-use registries for common situations.
// Every preset returns an initialized registry.

// NewDevelopment creates a registry configured for local development.
//
// Features:
//   - Filesystem storage at ./dev-data/ (persistent across restarts)
//   - Registration events logged through slog
//
// Returns:
//   - Registry instance
//   - Cleanup function (call with defer to remove the dev-data directory)
//   - Error if setup fails
//
// Example:
//
//	reg, cleanup, err := presets.NewDevelopment()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer cleanup()
func NewDevelopment(opts ...DevelopmentOption) (*registry.Registry, func(), error) {
	cfg := &devConfig{
		storageDir: "./dev-data",
	}
	for _, opt := range opts {
		opt(cfg)
	}

	fsBackend, err := fsstorage.New(fsstorage.Config{
		BaseDir: cfg.storageDir,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create filesystem storage: %w", err)
	}

	options := []registry.Option{
		registry.WithStorage(fsBackend),
		registry.WithEventSink(registry.NewLogEventSink(nil)),
	}
	options = append(options, cfg.registryOptions...)

	reg, err := registry.New(options...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create registry: %w", err)
	}
	if err := reg.Initialize(context.Background()); err != nil {
		return nil, nil, fmt.Errorf("failed to initialize registry: %w", err)
	}

	cleanup := func() {
		reg.Close()
		os.RemoveAll(cfg.storageDir)
	}

	return reg, cleanup, nil
}

// NewTesting creates a registry configured for unit and integration tests.
//
// Features:
//   - In-memory storage (isolated per test, no disk I/O)
//   - No event logging (cleaner test output)
//   - Optional sample items via WithTestFixtures
//
// Example:
//
//	func TestMyFeature(t *testing.T) {
//	    reg := presets.NewTesting(t)
//	    // Use registry in test...
//	}
func NewTesting(t testing.TB, opts ...TestingOption) *registry.Registry {
	t.Helper()

	cfg := &testConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	reg, err := registry.New(registry.WithStorage(memorystorage.New()))
	if err != nil {
		t.Fatalf("failed to create test registry: %v", err)
	}
	ctx := context.Background()
	if err := reg.Initialize(ctx); err != nil {
		t.Fatalf("failed to initialize test registry: %v", err)
	}

	if cfg.fixtures {
		for _, f := range Fixtures() {
			if err := reg.Register(ctx, f.Name, f.Content); err != nil {
				t.Fatalf("failed to register fixture %s: %v", f.Name, err)
			}
		}
	}

	t.Cleanup(func() {
		reg.Close()
	})

	return reg
}

// NewProduction creates a registry from environment variables read with
// config.WithEnv(prefix).
//
// Production requires persistent storage: STORAGE_URL must select file, s3,
// postgres or sqlite storage.
func NewProduction(ctx context.Context, prefix string, opts ...registry.Option) (*registry.Registry, error) {
	cfg, err := config.Load(config.WithEnvironment("production"), config.WithEnv(prefix))
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if cfg.Storage.Type == config.StorageMemory {
		return nil, fmt.Errorf("production preset requires persistent storage (set %sSTORAGE_URL)", prefix)
	}
	return cfg.BuildRegistry(ctx, opts...)
}

// Fixtures returns one sample item per content kind.
func Fixtures() []registry.Item {
	return []registry.Item{
		{Name: "sample.json", Content: mustContent(registry.KindJSON, `{"greeting": "hello"}`)},
		{Name: "sample.xml", Content: mustContent(registry.KindXML, `<greeting>hello</greeting>`)},
		{Name: "sample.txt", Content: registry.NewTextContent("hello")},
	}
}

func mustContent(kind registry.Kind, raw string) registry.Content {
	c, err := registry.NewContent(kind, raw)
	if err != nil {
		panic(err)
	}
	return c
}

// devConfig holds development preset configuration
type devConfig struct {
	storageDir      string
	registryOptions []registry.Option
}

// testConfig holds testing preset configuration
type testConfig struct {
	fixtures bool
}

// DevelopmentOption is a functional option for NewDevelopment
type DevelopmentOption func(*devConfig)

// WithDevStorage sets the development storage directory
func WithDevStorage(dir string) DevelopmentOption {
	return func(cfg *devConfig) {
		cfg.storageDir = dir
	}
}

// WithDevRegistryOptions passes extra options to registry.New
func WithDevRegistryOptions(opts ...registry.Option) DevelopmentOption {
	return func(cfg *devConfig) {
		cfg.registryOptions = append(cfg.registryOptions, opts...)
	}
}

// TestingOption is a functional option for NewTesting
type TestingOption func(*testConfig)

// WithTestFixtures registers the items returned by Fixtures
func WithTestFixtures() TestingOption {
	return func(cfg *testConfig) {
		cfg.fixtures = true
	}
}
