package watcher

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"pipelinereview/internal/datastore"
)

// ChangeFunc is called once for every source whose identity moved.
type ChangeFunc func(ctx context.Context, src datastore.Source)

// SourceWatcher runs periodic identity checks over the data sources and
// reports files that were created, rewritten or removed.
type SourceWatcher struct {
	sources  []datastore.Source
	interval time.Duration
	onChange ChangeFunc
	logger   *slog.Logger

	mu    sync.Mutex
	known map[string]datastore.Identity

	stop    chan struct{}
	done    chan struct{}
	started atomic.Bool
	once    sync.Once
}

// NewSourceWatcher snapshots the current identity of every source. Sources
// with an empty path are ignored.
func NewSourceWatcher(sources []datastore.Source, interval time.Duration, onChange ChangeFunc, logger *slog.Logger) *SourceWatcher {
	if logger == nil {
		logger = slog.Default()
	}

	w := &SourceWatcher{
		interval: interval,
		onChange: onChange,
		logger:   logger.With(slog.String("component", "source_watcher")),
		known:    make(map[string]datastore.Identity),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, src := range sources {
		if src.Path == "" {
			continue
		}
		w.sources = append(w.sources, src)
		w.known[src.Name] = w.identity(src)
	}
	return w
}

func (w *SourceWatcher) identity(src datastore.Source) datastore.Identity {
	id, exists, err := datastore.StatIdentity(src.Path)
	if err != nil {
		w.logger.Warn("Failed to stat source",
			slog.String("source", src.Name),
			slog.String("error", err.Error()))
	}
	if !exists {
		// Absent files compare equal to each other regardless of path.
		return datastore.Identity{}
	}
	return id
}

// Check compares every source with its last seen identity, fires the change
// callback for each one that moved and returns their names.
func (w *SourceWatcher) Check(ctx context.Context) []string {
	var changed []datastore.Source

	w.mu.Lock()
	for _, src := range w.sources {
		current := w.identity(src)
		previous := w.known[src.Name]
		if current.Path == previous.Path &&
			current.Size == previous.Size &&
			current.ModTime.Equal(previous.ModTime) {
			continue
		}
		w.known[src.Name] = current
		changed = append(changed, src)
	}
	w.mu.Unlock()

	names := make([]string, 0, len(changed))
	for _, src := range changed {
		w.logger.InfoContext(ctx, "Data source changed",
			slog.String("source", src.Name),
			slog.String("path", src.Path))
		if w.onChange != nil {
			w.onChange(ctx, src)
		}
		names = append(names, src.Name)
	}
	return names
}

// Start begins the periodic check. A non-positive interval disables it.
func (w *SourceWatcher) Start() {
	if !w.started.CompareAndSwap(false, true) {
		return
	}
	if w.interval <= 0 {
		w.logger.Info("Source watching disabled")
		close(w.done)
		return
	}

	ticker := time.NewTicker(w.interval)
	go func() {
		defer close(w.done)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				w.Check(context.Background())
			case <-w.stop:
				return
			}
		}
	}()

	w.logger.Info("Source watcher started",
		slog.Int("sources", len(w.sources)),
		slog.Duration("interval", w.interval))
}

// Stop ends the periodic check and waits for an in-flight check to finish.
func (w *SourceWatcher) Stop() {
	if !w.started.Load() {
		return
	}
	w.once.Do(func() {
		close(w.stop)
		<-w.done
	})
}
