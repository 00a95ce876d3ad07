package datastore

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pipelinereview/internal/infrastructure"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	providers := infrastructure.NoopProviders(logger)
	return NewCache(logger, providers, infrastructure.MustBusinessMetrics(providers.Meter))
}

func writeCSV(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestCache_HitsWithoutRereading(t *testing.T) {
	cache := newTestCache(t)
	path := filepath.Join(t.TempDir(), "summary.csv")
	writeCSV(t, path, "Symbol,Market Cap\nABC,1\n")

	src := Source{Name: "summary", Path: path, Numeric: []string{"Market Cap"}}

	first, err := cache.Load(context.Background(), src)
	require.NoError(t, err)
	second, err := cache.Load(context.Background(), src)
	require.NoError(t, err)

	assert.Same(t, first, second)
	stats := cache.Stats()
	assert.Equal(t, int64(1), stats.Loads)
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, 1, stats.Entries)
}

func TestCache_ReloadsWhenIdentityChanges(t *testing.T) {
	cache := newTestCache(t)
	path := filepath.Join(t.TempDir(), "summary.csv")
	writeCSV(t, path, "Symbol\nABC\n")

	src := Source{Name: "summary", Path: path}
	first, err := cache.Load(context.Background(), src)
	require.NoError(t, err)
	require.Equal(t, 1, first.Len())

	writeCSV(t, path, "Symbol\nABC\nDEF\n")
	later := time.Now().Add(2 * time.Second)
	require.NoError(t, os.Chtimes(path, later, later))

	second, err := cache.Load(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, 2, second.Len())
	assert.Equal(t, int64(2), cache.Stats().Loads)
	assert.Equal(t, 1, cache.Stats().Entries)
}

func TestCache_AbsentSourceReturnsEmpty(t *testing.T) {
	cache := newTestCache(t)
	tbl, err := cache.Load(context.Background(), Source{Name: "trials", Path: filepath.Join(t.TempDir(), "none.csv")})
	require.NoError(t, err)
	assert.True(t, tbl.IsEmpty())
	assert.Equal(t, int64(0), cache.Stats().Loads)
}

func TestCache_InvalidateAndClear(t *testing.T) {
	cache := newTestCache(t)
	path := filepath.Join(t.TempDir(), "summary.csv")
	writeCSV(t, path, "Symbol\nABC\n")
	src := Source{Name: "summary", Path: path}

	_, err := cache.Load(context.Background(), src)
	require.NoError(t, err)

	cache.Invalidate(path)
	assert.Equal(t, 0, cache.Stats().Entries)

	_, err = cache.Load(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, int64(2), cache.Stats().Loads)

	cache.Clear()
	stats := cache.Stats()
	assert.Equal(t, 0, stats.Entries)
	assert.Equal(t, int64(0), stats.Loads)
	assert.Equal(t, int64(0), stats.Hits)
}

func TestCache_ConcurrentFirstAccessLoadsOnce(t *testing.T) {
	cache := newTestCache(t)
	path := filepath.Join(t.TempDir(), "summary.csv")
	writeCSV(t, path, "Symbol\nABC\n")

	var calls atomic.Int32
	release := make(chan struct{})
	cache.load = func(src Source) (*Table, error) {
		calls.Add(1)
		<-release
		return LoadFile(src)
	}

	const callers = 8
	var wg sync.WaitGroup
	results := make([]*Table, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tbl, err := cache.Load(context.Background(), Source{Name: "summary", Path: path})
			assert.NoError(t, err)
			results[i] = tbl
		}(i)
	}

	// Give every caller a chance to join the in-flight load.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, tbl := range results {
		assert.Same(t, results[0], tbl)
	}
}

func TestCache_LoadErrorIsNotCached(t *testing.T) {
	cache := newTestCache(t)
	path := filepath.Join(t.TempDir(), "summary.csv")
	writeCSV(t, path, "Symbol\nABC\n")

	boom := errors.New("disk on fire")
	cache.load = func(Source) (*Table, error) { return nil, boom }

	_, err := cache.Load(context.Background(), Source{Name: "summary", Path: path})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, cache.Stats().Entries)

	cache.load = LoadFile
	tbl, err := cache.Load(context.Background(), Source{Name: "summary", Path: path})
	require.NoError(t, err)
	assert.Equal(t, 1, tbl.Len())
}
