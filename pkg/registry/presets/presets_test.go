package presets

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/content-registry/pkg/registry"
)

func TestNewDevelopment(t *testing.T) {
	t.Run("custom storage directory", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "dev-data")
		reg, cleanup, err := NewDevelopment(WithDevStorage(dir))
		require.NoError(t, err)
		require.NotNil(t, reg)
		require.NotNil(t, cleanup)
		assert.True(t, reg.Initialized())

		ctx := context.Background()
		require.NoError(t, reg.Register(ctx, "test.txt", registry.NewTextContent("Hello Development!")))

		_, err = os.Stat(filepath.Join(dir, "test.txt.json"))
		require.NoError(t, err)

		cleanup()

		_, err = os.Stat(dir)
		assert.True(t, os.IsNotExist(err), "storage directory should be removed after cleanup")
	})

	t.Run("data persists until cleanup", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "dev-data")
		ctx := context.Background()

		first, _, err := NewDevelopment(WithDevStorage(dir))
		require.NoError(t, err)
		require.NoError(t, first.Register(ctx, "kept", registry.NewTextContent("v1")))
		require.NoError(t, first.Close())

		second, cleanup, err := NewDevelopment(WithDevStorage(dir), WithDevRegistryOptions(registry.WithEventSink(registry.NewNoopEventSink())))
		require.NoError(t, err)
		defer cleanup()

		got, err := second.Retrieve(ctx, "kept")
		require.NoError(t, err)
		assert.Equal(t, "v1", got.Raw())
	})

	t.Run("empty storage directory", func(t *testing.T) {
		_, _, err := NewDevelopment(WithDevStorage(""))
		assert.ErrorIs(t, err, registry.ErrInvalidArgument)
	})
}

func TestNewTesting(t *testing.T) {
	t.Run("isolated registries", func(t *testing.T) {
		ctx := context.Background()
		a := NewTesting(t)
		b := NewTesting(t)

		require.NoError(t, a.Register(ctx, "only-in-a", registry.NewTextContent("x")))

		exists, err := b.Contains(ctx, "only-in-a")
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("fixtures", func(t *testing.T) {
		ctx := context.Background()
		reg := NewTesting(t, WithTestFixtures())

		for _, f := range Fixtures() {
			got, err := reg.Retrieve(ctx, f.Name)
			require.NoError(t, err, f.Name)
			assert.Equal(t, f.Content.Kind(), got.Kind())
			assert.Equal(t, f.Content.Raw(), got.Raw())
		}
	})
}

func TestNewProduction(t *testing.T) {
	ctx := context.Background()

	t.Run("memory storage is rejected", func(t *testing.T) {
		t.Setenv("PRESETS_TEST_STORAGE_URL", "memory://")
		_, err := NewProduction(ctx, "PRESETS_TEST_")
		assert.Error(t, err)
	})

	t.Run("sqlite storage", func(t *testing.T) {
		t.Setenv("PRESETS_TEST_STORAGE_URL", "sqlite://"+filepath.Join(t.TempDir(), "registry.db"))
		t.Setenv("PRESETS_TEST_EVENT_LOGGING", "false")

		reg, err := NewProduction(ctx, "PRESETS_TEST_")
		require.NoError(t, err)
		defer reg.Close()

		require.NoError(t, reg.Register(ctx, "release", registry.NewTextContent("1.0")))
		exists, err := reg.Contains(ctx, "RELEASE")
		require.NoError(t, err)
		assert.True(t, exists)
	})
}
