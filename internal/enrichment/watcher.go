package enrichment

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pterm/pterm"
)

// reloadDebounce collapses the burst of events a database download produces.
const reloadDebounce = 500 * time.Millisecond

// FileWatcher reports changes to a fixed set of files. It watches the parent
// directories so files that do not exist yet are picked up when created.
type FileWatcher struct {
	watcher *fsnotify.Watcher
	targets map[string]struct{}
	events  chan string
	logger  *pterm.Logger
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewFileWatcher creates a new file watcher for the specified paths
func NewFileWatcher(paths []string, logger *pterm.Logger) (*FileWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logger.WithCaller().Error("Failed to create file watcher", logger.Args("error", err))
		return nil, err
	}

	fw := &FileWatcher{
		watcher: watcher,
		targets: make(map[string]struct{}, len(paths)),
		events:  make(chan string, 16),
		logger:  logger,
		stopCh:  make(chan struct{}),
	}

	dirs := make(map[string]struct{})
	for _, path := range paths {
		abs, err := filepath.Abs(path)
		if err != nil {
			continue
		}
		fw.targets[abs] = struct{}{}
		dirs[filepath.Dir(abs)] = struct{}{}
	}

	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			logger.Warn("Failed to watch directory", logger.Args("dir", dir, "error", err))
			continue
		}
		logger.Debug("Started watching directory", logger.Args("dir", dir))
	}

	fw.wg.Add(1)
	go fw.eventLoop()

	return fw, nil
}

func (fw *FileWatcher) eventLoop() {
	defer fw.wg.Done()

	for {
		select {
		case <-fw.stopCh:
			return

		case event, ok := <-fw.watcher.Events:
			if !ok {
				fw.logger.Warn("File watcher events channel closed")
				return
			}
			abs, err := filepath.Abs(event.Name)
			if err != nil {
				continue
			}
			if _, tracked := fw.targets[abs]; !tracked {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			fw.logger.Trace("Watched file changed", fw.logger.Args("file", abs, "op", event.Op.String()))
			select {
			case fw.events <- abs:
			default:
				// a reload is already pending
			}

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			fw.logger.WithCaller().Error("File watcher error", fw.logger.Args("error", err))
		}
	}
}

// Events returns the channel of changed file paths.
func (fw *FileWatcher) Events() <-chan string {
	return fw.events
}

// Close stops the file watcher and cleans up resources
func (fw *FileWatcher) Close() error {
	close(fw.stopCh)
	fw.wg.Wait()

	if err := fw.watcher.Close(); err != nil {
		fw.logger.WithCaller().Error("Failed to close file watcher", fw.logger.Args("error", err))
		return err
	}
	return nil
}

// WatchAndReload reloads the resolver whenever one of its database files
// changes, until ctx is cancelled.
func (g *GeoResolver) WatchAndReload(ctx context.Context) error {
	paths := g.Paths()
	if len(paths) == 0 {
		return nil
	}

	fw, err := NewFileWatcher(paths, g.logger)
	if err != nil {
		return err
	}
	defer fw.Close()

	g.logger.Info("Watching GeoIP databases for updates", g.logger.Args("files", len(paths)))

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil
		case path := <-fw.Events():
			g.logger.Debug("GeoIP database changed", g.logger.Args("path", path))
			if timer == nil {
				timer = time.NewTimer(reloadDebounce)
			} else {
				timer.Reset(reloadDebounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			g.Reload()
		}
	}
}
