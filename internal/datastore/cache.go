package datastore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"pipelinereview/internal/infrastructure"
)

// Identity is what the cache compares to decide whether a loaded table is
// still current: the resolved path plus the file's size and modification time.
type Identity struct {
	Path    string    `json:"path"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
}

func (id Identity) key() string {
	return fmt.Sprintf("%s|%d|%d", id.Path, id.Size, id.ModTime.UnixNano())
}

type cacheEntry struct {
	identity Identity
	schema   string
	table    *Table
	loadedAt time.Time
}

// CacheStats exposes cache counters for health endpoints and tests.
type CacheStats struct {
	Entries int        `json:"entries"`
	Hits    int64      `json:"hits"`
	Misses  int64      `json:"misses"`
	Loads   int64      `json:"loads"`
	Sources []Identity `json:"sources"`
}

// Cache is the process-wide store of loaded tables. Tables handed out are
// shared and must not be modified. Concurrent first loads of the same source
// identity collapse into one read.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]*cacheEntry
	group   singleflight.Group

	hits   atomic.Int64
	misses atomic.Int64
	loads  atomic.Int64

	load    func(Source) (*Table, error)
	logger  *slog.Logger
	tracer  trace.Tracer
	metrics *infrastructure.BusinessMetrics
}

// NewCache creates a cache that reads sources with LoadFile.
func NewCache(logger *slog.Logger, providers *infrastructure.OTelProviders, metrics *infrastructure.BusinessMetrics) *Cache {
	return &Cache{
		entries: make(map[string]*cacheEntry),
		load:    LoadFile,
		logger:  logger.With(slog.String("component", "datastore")),
		tracer:  providers.Tracer,
		metrics: metrics,
	}
}

// Load returns the table for src, reading the source only when nothing is
// cached for its current identity. An absent source yields the empty table.
func (c *Cache) Load(ctx context.Context, src Source) (*Table, error) {
	ctx, span := c.tracer.Start(ctx, "datastore.load",
		trace.WithAttributes(attribute.String("source.name", src.Name)))
	defer span.End()

	id, exists, err := StatIdentity(src.Path)
	if err != nil {
		infrastructure.RecordError(ctx, err)
		return nil, err
	}
	path := id.Path
	if !exists {
		c.Invalidate(path)
		c.logger.DebugContext(ctx, "source absent",
			slog.String("source", src.Name),
			slog.String("path", path))
		return Empty(), nil
	}

	schema := strings.Join(src.Numeric, "\x1f")
	attrs := metric.WithAttributes(attribute.String("source", src.Name))

	if table, ok := c.lookup(id, schema); ok {
		c.hits.Add(1)
		c.metrics.SourceCacheHits.Add(ctx, 1, attrs)
		return table, nil
	}

	c.misses.Add(1)
	c.metrics.SourceCacheMisses.Add(ctx, 1, attrs)

	v, err, shared := c.group.Do(id.key()+"|"+schema, func() (interface{}, error) {
		if table, ok := c.lookup(id, schema); ok {
			return table, nil
		}

		start := time.Now()
		resolved := src
		resolved.Path = path
		table, err := c.load(resolved)
		if err != nil {
			return nil, err
		}
		c.loads.Add(1)
		c.metrics.SourceLoadSeconds.Record(ctx, time.Since(start).Seconds(), attrs)
		c.metrics.SourceRowsLoaded.Add(ctx, int64(table.Len()), attrs)

		c.mu.Lock()
		c.entries[path] = &cacheEntry{identity: id, schema: schema, table: table, loadedAt: time.Now()}
		c.mu.Unlock()

		c.logger.InfoContext(ctx, "source loaded",
			slog.String("source", src.Name),
			slog.String("path", path),
			slog.Int("rows", table.Len()),
			slog.Int("columns", len(table.columns)),
			slog.Duration("duration", time.Since(start)))
		return table, nil
	})
	if err != nil {
		c.metrics.SourceLoadErrors.Add(ctx, 1, attrs)
		infrastructure.RecordError(ctx, err)
		c.logger.ErrorContext(ctx, "source load failed",
			slog.String("source", src.Name),
			slog.String("path", path),
			slog.String("error", err.Error()))
		return nil, err
	}
	if shared {
		c.logger.DebugContext(ctx, "source load shared with concurrent caller",
			slog.String("source", src.Name))
	}
	return v.(*Table), nil
}

// StatIdentity resolves path and reads its current identity. A missing file
// is reported through exists, not as an error.
func StatIdentity(path string) (id Identity, exists bool, err error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return Identity{}, false, fmt.Errorf("failed to resolve %s: %w", path, err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Identity{Path: abs}, false, nil
		}
		return Identity{Path: abs}, false, fmt.Errorf("failed to stat %s: %w", abs, err)
	}
	return Identity{Path: abs, Size: info.Size(), ModTime: info.ModTime()}, true, nil
}

func (c *Cache) lookup(id Identity, schema string) (*Table, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[id.Path]
	if !ok || e.identity != id || e.schema != schema {
		return nil, false
	}
	return e.table, true
}

// Invalidate drops whatever is cached for path.
func (c *Cache) Invalidate(path string) {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	c.mu.Lock()
	delete(c.entries, path)
	c.mu.Unlock()
}

// Clear drops every entry and resets the counters.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]*cacheEntry)
	c.mu.Unlock()
	c.hits.Store(0)
	c.misses.Store(0)
	c.loads.Store(0)
}

// Stats returns a snapshot of the cache.
func (c *Cache) Stats() CacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	stats := CacheStats{
		Entries: len(c.entries),
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Loads:   c.loads.Load(),
		Sources: make([]Identity, 0, len(c.entries)),
	}
	for _, e := range c.entries {
		stats.Sources = append(stats.Sources, e.identity)
	}
	return stats
}
