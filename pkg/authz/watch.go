package authz

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/boardwalk-dev/boardwalk/pkg/observability"
)

// TableWatcher reloads the engine's role table whenever the backing YAML
// file changes on disk. A file that fails to parse leaves the previous table
// in place: a broken deploy must degrade to stale permissions, never to an
// open or empty table.
type TableWatcher struct {
	engine  *Engine
	path    string
	watcher *fsnotify.Watcher
	logger  *observability.Logger
	metrics *observability.Metrics
}

// NewTableWatcher creates a watcher for the role table file. The file's
// directory is watched rather than the file itself so atomic
// rename-into-place deploys are observed.
func NewTableWatcher(engine *Engine, path string, logger *observability.Logger, metrics *observability.Metrics) (*TableWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch role table directory: %w", err)
	}
	return &TableWatcher{
		engine:  engine,
		path:    path,
		watcher: watcher,
		logger:  logger,
		metrics: metrics,
	}, nil
}

// Run blocks processing file events until the context is cancelled.
func (w *TableWatcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !w.matches(event) {
				continue
			}
			w.reload(ctx)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.WithError(err).Warn("role table watcher error")
		}
	}
}

func (w *TableWatcher) matches(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != filepath.Clean(w.path) {
		return false
	}
	return event.Op.Has(fsnotify.Write) || event.Op.Has(fsnotify.Create) || event.Op.Has(fsnotify.Rename)
}

func (w *TableWatcher) reload(ctx context.Context) {
	table, err := LoadRoleTableFile(w.path)
	if err != nil {
		w.metrics.RoleTableReloadsTotal.WithLabelValues("invalid").Inc()
		w.logger.WithError(err).WithField("path", w.path).
			Error("role table file changed but failed to load, keeping previous table")
		return
	}
	if err := w.engine.ReloadRoleTable(ctx, table); err != nil {
		w.logger.WithError(err).Error("role table reload failed")
	}
}
