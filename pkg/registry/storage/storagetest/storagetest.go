// Package storagetest holds the behavioural suite every registry.Storage
// implementation must pass.
package storagetest

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/content-registry/pkg/registry"
)

// Factory returns a fresh, initialized backend for one subtest.
type Factory func(t *testing.T) registry.Storage

// Run exercises the full storage contract against backends built by newStorage.
func Run(t *testing.T, newStorage Factory) {
	t.Helper()

	t.Run("EmptyBackend", func(t *testing.T) {
		s := newStorage(t)
		ctx := context.Background()

		exists, err := s.ContainsKey(ctx, "missing")
		require.NoError(t, err)
		assert.False(t, exists)

		item, found, err := s.TryGet(ctx, "missing")
		require.NoError(t, err)
		assert.False(t, found)
		assert.Nil(t, item)

		removed, err := s.TryRemove(ctx, "missing")
		require.NoError(t, err)
		assert.False(t, removed)
	})

	t.Run("RoundTripEveryKind", func(t *testing.T) {
		s := newStorage(t)
		ctx := context.Background()

		for _, tc := range []struct {
			name string
			kind registry.Kind
			raw  string
		}{
			{"config.json", registry.KindJSON, `{"a": 1, "b": [1, 2]}`},
			{"list.json", registry.KindJSON, "  [1, 2, 3]\n"},
			{"doc.xml", registry.KindXML, "<a><b>text</b></a>"},
			{"notes.txt", registry.KindText, "line one\nline \"two\"\té"},
			{"empty.txt", registry.KindText, ""},
		} {
			content, err := registry.NewContent(tc.kind, tc.raw)
			require.NoError(t, err)

			added, err := s.TryAdd(ctx, tc.name, &registry.Item{Name: tc.name, Content: content})
			require.NoError(t, err)
			require.True(t, added, tc.name)

			item, found, err := s.TryGet(ctx, tc.name)
			require.NoError(t, err)
			require.True(t, found, tc.name)
			assert.Equal(t, tc.name, item.Name)
			assert.Equal(t, tc.kind, item.Content.Kind())
			assert.Equal(t, tc.raw, item.Content.Raw())
			assert.True(t, item.Content.IsValid())
		}
	})

	t.Run("NoOverwrite", func(t *testing.T) {
		s := newStorage(t)
		ctx := context.Background()

		first := registry.NewTextContent("first")
		second := registry.NewTextContent("second")

		added, err := s.TryAdd(ctx, "item", &registry.Item{Name: "item", Content: first})
		require.NoError(t, err)
		require.True(t, added)

		added, err = s.TryAdd(ctx, "item", &registry.Item{Name: "item", Content: second})
		require.NoError(t, err)
		assert.False(t, added)

		item, found, err := s.TryGet(ctx, "item")
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, "first", item.Content.Raw())
	})

	t.Run("CaseInsensitiveKeys", func(t *testing.T) {
		s := newStorage(t)
		ctx := context.Background()

		added, err := s.TryAdd(ctx, "Report", &registry.Item{Name: "Report", Content: registry.NewTextContent("q1")})
		require.NoError(t, err)
		require.True(t, added)

		exists, err := s.ContainsKey(ctx, "report")
		require.NoError(t, err)
		assert.True(t, exists)

		item, found, err := s.TryGet(ctx, "REPORT")
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, "Report", item.Name)

		added, err = s.TryAdd(ctx, "rePort", &registry.Item{Name: "rePort", Content: registry.NewTextContent("q2")})
		require.NoError(t, err)
		assert.False(t, added)

		removed, err := s.TryRemove(ctx, "REPORT")
		require.NoError(t, err)
		assert.True(t, removed)
	})

	t.Run("Remove", func(t *testing.T) {
		s := newStorage(t)
		ctx := context.Background()

		added, err := s.TryAdd(ctx, "gone", &registry.Item{Name: "gone", Content: registry.NewTextContent("x")})
		require.NoError(t, err)
		require.True(t, added)

		removed, err := s.TryRemove(ctx, "gone")
		require.NoError(t, err)
		assert.True(t, removed)

		exists, err := s.ContainsKey(ctx, "gone")
		require.NoError(t, err)
		assert.False(t, exists)

		_, found, err := s.TryGet(ctx, "gone")
		require.NoError(t, err)
		assert.False(t, found)

		removed, err = s.TryRemove(ctx, "gone")
		require.NoError(t, err)
		assert.False(t, removed)

		added, err = s.TryAdd(ctx, "gone", &registry.Item{Name: "gone", Content: registry.NewTextContent("again")})
		require.NoError(t, err)
		assert.True(t, added)
	})

	t.Run("KeysWithPathCharacters", func(t *testing.T) {
		s := newStorage(t)
		ctx := context.Background()

		key := `reports/2024:q1?final`
		content, err := registry.NewJSONContent(`{"total": 3}`)
		require.NoError(t, err)

		added, err := s.TryAdd(ctx, key, &registry.Item{Name: key, Content: content})
		require.NoError(t, err)
		require.True(t, added)

		item, found, err := s.TryGet(ctx, key)
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, key, item.Name)
		assert.Equal(t, `{"total": 3}`, item.Content.Raw())
	})

	t.Run("BlankKeysAreRejected", func(t *testing.T) {
		s := newStorage(t)
		ctx := context.Background()
		item := &registry.Item{Name: "x", Content: registry.NewTextContent("x")}

		for _, key := range []string{"", "   ", "\t\n"} {
			_, err := s.TryAdd(ctx, key, item)
			assert.ErrorIs(t, err, registry.ErrInvalidArgument)

			_, _, err = s.TryGet(ctx, key)
			assert.ErrorIs(t, err, registry.ErrInvalidArgument)

			_, err = s.TryRemove(ctx, key)
			assert.ErrorIs(t, err, registry.ErrInvalidArgument)

			_, err = s.ContainsKey(ctx, key)
			assert.ErrorIs(t, err, registry.ErrInvalidArgument)
		}
	})

	t.Run("NilItemIsRejected", func(t *testing.T) {
		s := newStorage(t)

		_, err := s.TryAdd(context.Background(), "key", nil)
		assert.ErrorIs(t, err, registry.ErrInvalidArgument)

		exists, err := s.ContainsKey(context.Background(), "key")
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("ConcurrentDistinctKeys", func(t *testing.T) {
		s := newStorage(t)
		ctx := context.Background()
		const n = 32

		var wg sync.WaitGroup
		results := make([]bool, n)
		errs := make([]error, n)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				key := fmt.Sprintf("item-%d", i)
				content := registry.NewTextContent(fmt.Sprintf("value-%d", i))
				results[i], errs[i] = s.TryAdd(ctx, key, &registry.Item{Name: key, Content: content})
			}(i)
		}
		wg.Wait()

		for i := 0; i < n; i++ {
			require.NoError(t, errs[i])
			assert.True(t, results[i], "item-%d", i)

			item, found, err := s.TryGet(ctx, fmt.Sprintf("item-%d", i))
			require.NoError(t, err)
			require.True(t, found)
			assert.Equal(t, fmt.Sprintf("value-%d", i), item.Content.Raw())
		}
	})

	t.Run("ConcurrentSameKey", func(t *testing.T) {
		s := newStorage(t)
		ctx := context.Background()
		const n = 16

		var wg sync.WaitGroup
		var wins atomic.Int32
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				content := registry.NewTextContent(fmt.Sprintf("writer-%d", i))
				added, err := s.TryAdd(ctx, "contended", &registry.Item{Name: "contended", Content: content})
				if err == nil && added {
					wins.Add(1)
				}
			}(i)
		}
		wg.Wait()

		assert.Equal(t, int32(1), wins.Load())
		exists, err := s.ContainsKey(ctx, "contended")
		require.NoError(t, err)
		assert.True(t, exists)
	})
}
