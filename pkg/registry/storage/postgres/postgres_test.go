package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/content-registry/pkg/registry"
	"github.com/tendant/content-registry/pkg/registry/storage/storagetest"
)

type fakeRowData struct {
	name    string
	content string
	kind    int
}

// fakeDB understands the handful of statements the backend issues.
type fakeDB struct {
	mu      sync.Mutex
	rows    map[string]fakeRowData
	queries []string
	failAll bool
}

func newFakeDB() *fakeDB {
	return &fakeDB{rows: make(map[string]fakeRowData)}
}

func (f *fakeDB) Exec(ctx context.Context, query string, args ...interface{}) (pgconn.CommandTag, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, query)
	if f.failAll {
		return pgconn.CommandTag{}, &pgconn.PgError{Code: "42P01", Message: "relation does not exist"}
	}

	switch {
	case strings.Contains(query, "CREATE TABLE"):
		return pgconn.NewCommandTag("CREATE TABLE"), nil
	case strings.Contains(query, "INSERT INTO"):
		key := args[0].(string)
		if _, exists := f.rows[key]; exists {
			return pgconn.NewCommandTag("INSERT 0 0"), nil
		}
		f.rows[key] = fakeRowData{name: args[1].(string), content: args[2].(string), kind: args[3].(int)}
		return pgconn.NewCommandTag("INSERT 0 1"), nil
	case strings.Contains(query, "DELETE FROM"):
		key := args[0].(string)
		if _, exists := f.rows[key]; !exists {
			return pgconn.NewCommandTag("DELETE 0"), nil
		}
		delete(f.rows, key)
		return pgconn.NewCommandTag("DELETE 1"), nil
	}
	return pgconn.CommandTag{}, fmt.Errorf("unexpected statement: %s", query)
}

func (f *fakeDB) QueryRow(ctx context.Context, query string, args ...interface{}) pgx.Row {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, query)
	if f.failAll {
		return fakeRow{err: errors.New("connection refused")}
	}

	key := args[0].(string)
	row, exists := f.rows[key]
	switch {
	case strings.Contains(query, "SELECT EXISTS"):
		return fakeRow{values: []interface{}{exists}}
	case strings.Contains(query, "SELECT name, content, type"):
		if !exists {
			return fakeRow{err: pgx.ErrNoRows}
		}
		return fakeRow{values: []interface{}{row.name, row.content, row.kind}}
	}
	return fakeRow{err: fmt.Errorf("unexpected query: %s", query)}
}

func (f *fakeDB) put(key string, row fakeRowData) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[key] = row
}

type fakeRow struct {
	values []interface{}
	err    error
}

func (r fakeRow) Scan(dest ...interface{}) error {
	if r.err != nil {
		return r.err
	}
	if len(dest) != len(r.values) {
		return fmt.Errorf("scan: expected %d destinations, got %d", len(r.values), len(dest))
	}
	for i, d := range dest {
		switch p := d.(type) {
		case *string:
			*p = r.values[i].(string)
		case *int:
			*p = r.values[i].(int)
		case *bool:
			*p = r.values[i].(bool)
		default:
			return fmt.Errorf("scan: unsupported destination %T", d)
		}
	}
	return nil
}

func newTestBackend(t *testing.T, db DBTX) *Backend {
	t.Helper()
	b, err := New(db, Config{})
	require.NoError(t, err)
	require.NoError(t, b.Initialize(context.Background()))
	return b
}

func TestPostgresBackend_Contract(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) registry.Storage {
		return newTestBackend(t, newFakeDB())
	})
}

func TestPostgresBackend_New(t *testing.T) {
	_, err := New(nil, Config{})
	assert.ErrorIs(t, err, registry.ErrInvalidArgument)

	_, err = NewWithPool(nil, Config{})
	assert.ErrorIs(t, err, registry.ErrInvalidArgument)

	_, err = Open(context.Background(), "", Config{})
	assert.ErrorIs(t, err, registry.ErrInvalidArgument)

	_, err = New(newFakeDB(), Config{Table: "content..items"})
	assert.ErrorIs(t, err, registry.ErrInvalidArgument)

	b, err := New(newFakeDB(), Config{})
	require.NoError(t, err)
	assert.Equal(t, `"registry_items"`, b.table)

	b, err = New(newFakeDB(), Config{Table: "content.items"})
	require.NoError(t, err)
	assert.Equal(t, `"content"."items"`, b.table)

	b, err = New(newFakeDB(), Config{Table: `items"; DROP TABLE x; --`})
	require.NoError(t, err)
	assert.Equal(t, `"items""; DROP TABLE x; --"`, b.table)
}

func TestPostgresBackend_StoresFoldedKey(t *testing.T) {
	db := newFakeDB()
	b := newTestBackend(t, db)
	ctx := context.Background()

	content, err := registry.NewXMLContent("<a/>")
	require.NoError(t, err)
	added, err := b.TryAdd(ctx, "Layout", &registry.Item{Name: "Layout", Content: content})
	require.NoError(t, err)
	require.True(t, added)

	row, ok := db.rows["layout"]
	require.True(t, ok)
	assert.Equal(t, "Layout", row.name)
	assert.Equal(t, "<a/>", row.content)
	assert.Equal(t, int(registry.KindXML), row.kind)
}

func TestPostgresBackend_FailSoft(t *testing.T) {
	ctx := context.Background()

	t.Run("corrupt row", func(t *testing.T) {
		db := newFakeDB()
		b := newTestBackend(t, db)
		db.put("broken", fakeRowData{name: "broken", content: "not json", kind: int(registry.KindJSON)})

		_, found, err := b.TryGet(ctx, "broken")
		require.NoError(t, err)
		assert.False(t, found)

		exists, err := b.ContainsKey(ctx, "broken")
		require.NoError(t, err)
		assert.True(t, exists)
	})

	t.Run("unsupported type", func(t *testing.T) {
		db := newFakeDB()
		b := newTestBackend(t, db)
		db.put("future", fakeRowData{name: "future", content: "x", kind: 9})

		_, found, err := b.TryGet(ctx, "future")
		assert.False(t, found)
		assert.ErrorIs(t, err, registry.ErrUnsupported)

		var storageErr *registry.StorageError
		require.ErrorAs(t, err, &storageErr)
		assert.Equal(t, "postgres", storageErr.Backend)
	})

	t.Run("database unavailable", func(t *testing.T) {
		db := newFakeDB()
		b := newTestBackend(t, db)
		db.failAll = true

		added, err := b.TryAdd(ctx, "k", &registry.Item{Name: "k", Content: registry.NewTextContent("v")})
		require.NoError(t, err)
		assert.False(t, added)

		_, found, err := b.TryGet(ctx, "k")
		require.NoError(t, err)
		assert.False(t, found)

		removed, err := b.TryRemove(ctx, "k")
		require.NoError(t, err)
		assert.False(t, removed)

		exists, err := b.ContainsKey(ctx, "k")
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("initialize failure", func(t *testing.T) {
		db := newFakeDB()
		db.failAll = true
		b, err := New(db, Config{})
		require.NoError(t, err)

		err = b.Initialize(ctx)
		var storageErr *registry.StorageError
		require.ErrorAs(t, err, &storageErr)
		assert.Equal(t, "initialize", storageErr.Op)
		assert.Contains(t, err.Error(), "call Initialize first")
	})
}

// TestPostgresBackend_Integration runs the contract against a real database
func TestPostgresBackend_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	databaseURL := os.Getenv("TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("Skipping integration test: TEST_DATABASE_URL not set")
	}

	run := time.Now().UnixNano()
	var n int
	storagetest.Run(t, func(t *testing.T) registry.Storage {
		n++
		ctx := context.Background()
		table := fmt.Sprintf("registry_items_test_%d_%d", run, n)
		b, err := Open(ctx, databaseURL, Config{Table: table})
		require.NoError(t, err)
		t.Cleanup(func() {
			b.db.Exec(context.Background(), "DROP TABLE IF EXISTS "+b.table)
			b.Close()
		})
		require.NoError(t, b.Initialize(ctx))
		return b
	})
}
