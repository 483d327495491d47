package enrichment

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pterm/pterm"
)

// ReloadWatcher calls reload whenever one of the watched files is written,
// created or renamed into place. Bursts of events within the debounce
// window trigger a single reload.
type ReloadWatcher struct {
	watcher  *fsnotify.Watcher
	files    map[string]struct{}
	reload   func() error
	debounce time.Duration
	logger   *pterm.Logger
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewReloadWatcher watches the directories holding paths, since database
// updaters usually replace the file rather than write to it.
func NewReloadWatcher(paths []string, reload func() error, debounce time.Duration, logger *pterm.Logger) (*ReloadWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logger.WithCaller().Error("Failed to create file watcher", logger.Args("error", err))
		return nil, err
	}

	rw := &ReloadWatcher{
		watcher:  watcher,
		files:    make(map[string]struct{}, len(paths)),
		reload:   reload,
		debounce: debounce,
		logger:   logger,
		stopCh:   make(chan struct{}),
	}

	dirs := make(map[string]struct{})
	for _, path := range paths {
		abs, err := filepath.Abs(path)
		if err != nil {
			abs = path
		}
		rw.files[abs] = struct{}{}
		dirs[filepath.Dir(abs)] = struct{}{}
	}
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			watcher.Close()
			return nil, err
		}
		logger.Debug("Started watching directory", logger.Args("path", dir))
	}

	rw.wg.Add(1)
	go rw.eventLoop()

	logger.Info("GeoIP reload watcher initialized", logger.Args("files", len(rw.files)))
	return rw, nil
}

func (rw *ReloadWatcher) eventLoop() {
	defer rw.wg.Done()

	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-rw.stopCh:
			if timer != nil {
				timer.Stop()
			}
			return

		case event, ok := <-rw.watcher.Events:
			if !ok {
				rw.logger.Warn("File watcher events channel closed")
				return
			}
			if !rw.relevant(event) {
				continue
			}
			rw.logger.Trace("Database change detected", rw.logger.Args("file", event.Name, "op", event.Op.String()))
			if timer == nil {
				timer = time.NewTimer(rw.debounce)
			} else {
				timer.Reset(rw.debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			if err := rw.reload(); err != nil {
				rw.logger.WithCaller().Error("Failed to reload GeoIP databases", rw.logger.Args("error", err))
			}

		case err, ok := <-rw.watcher.Errors:
			if !ok {
				rw.logger.Warn("File watcher errors channel closed")
				return
			}
			rw.logger.WithCaller().Error("File watcher error", rw.logger.Args("error", err))
		}
	}
}

func (rw *ReloadWatcher) relevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
		return false
	}
	name, err := filepath.Abs(event.Name)
	if err != nil {
		name = event.Name
	}
	_, ok := rw.files[name]
	return ok
}

// Close stops the watcher and waits for the event loop to exit
func (rw *ReloadWatcher) Close() error {
	close(rw.stopCh)
	rw.wg.Wait()

	if err := rw.watcher.Close(); err != nil {
		rw.logger.WithCaller().Error("Failed to close file watcher", rw.logger.Args("error", err))
		return err
	}
	rw.logger.Debug("GeoIP reload watcher closed")
	return nil
}
