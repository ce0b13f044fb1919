package feed

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/meshlens/mesh-analyzer/pkg/logging"
	"github.com/meshlens/mesh-analyzer/pkg/store"
)

// settlePeriod lets editors finish their write-rename dance before we read
const settlePeriod = 100 * time.Millisecond

// FileFeed watches a topology document and ingests it on every change
type FileFeed struct {
	path    string
	store   *store.Store
	watcher *fsnotify.Watcher
}

// NewFileFeed creates a feed for the given document path
func NewFileFeed(path string, st *store.Store) (*FileFeed, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}
	return &FileFeed{
		path:    path,
		store:   st,
		watcher: watcher,
	}, nil
}

// Load reads the document once and ingests it
func (f *FileFeed) Load() error {
	doc, err := ReadDocument(f.path)
	if err != nil {
		return err
	}
	if err := f.store.Ingest(doc.Services, doc.Connections); err != nil {
		return fmt.Errorf("ingesting %s: %w", f.path, err)
	}
	logging.Info("topology ingested from file",
		"path", f.path,
		"services", len(doc.Services),
		"connections", len(doc.Connections),
		"version", f.store.Version(),
	)
	return nil
}

// Start performs an initial load and then watches the document's directory
// for changes until the context is cancelled. Watching the directory rather
// than the file survives rename-based atomic writes.
func (f *FileFeed) Start(ctx context.Context) error {
	if err := f.Load(); err != nil {
		return err
	}
	if err := f.watcher.Add(filepath.Dir(f.path)); err != nil {
		return fmt.Errorf("watching %s: %w", filepath.Dir(f.path), err)
	}
	logging.Info("watching topology file", "path", f.path)

	go f.processEvents(ctx)
	return nil
}

// processEvents coalesces raw fsnotify events with a settle timer and
// reloads the document once the burst quiets down. A bad document is logged
// and skipped; the store keeps its last good topology.
func (f *FileFeed) processEvents(ctx context.Context) {
	settleTimer := time.NewTimer(settlePeriod)
	settleTimer.Stop()

	for {
		select {
		case <-ctx.Done():
			f.watcher.Close()
			return

		case event, ok := <-f.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != filepath.Base(f.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			settleTimer.Reset(settlePeriod)

		case <-settleTimer.C:
			if err := f.Load(); err != nil {
				logging.Warn("topology reload rejected", "path", f.path, "error", err)
			}

		case err, ok := <-f.watcher.Errors:
			if !ok {
				return
			}
			logging.Error("feed watcher error", "error", err)
		}
	}
}
