package config

import (
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/sigflow/sigflow/pkg/common/logging"
)

// Watcher re-reads a config file when it changes and applies the logging
// section to a live logger. Only the log level is applied to the logger at
// runtime; the log format is not changed, and buffer sizing is fixed once a
// graph has started.
type Watcher struct {
	watcher *fsnotify.Watcher
	done    chan struct{}
}

// Watch starts watching path. Change events re-load the file and call apply
// with the fresh, validated config. Invalid intermediate states (editors
// writing partial files) are skipped.
func Watch(path string, logger *logging.Logger, apply func(*Config)) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	// Watch the directory: editors replace files, which drops a watch on the
	// file itself.
	if err := fw.Add(filepath.Dir(path)); err != nil {
		fw.Close()
		return nil, err
	}

	w := &Watcher{watcher: fw, done: make(chan struct{})}
	go func() {
		defer close(w.done)
		for {
			select {
			case ev, ok := <-fw.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != filepath.Clean(path) {
					continue
				}
				if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
					continue
				}
				cfg, err := LoadConfig(path)
				if err != nil {
					logger.Warnf("config reload skipped: %v", err)
					continue
				}
				logger.SetLevel(cfg.LogLevel())
				if apply != nil {
					apply(cfg)
				}
				logger.Infof("config reloaded from %s", path)
			case err, ok := <-fw.Errors:
				if !ok {
					return
				}
				logger.Warnf("config watcher: %v", err)
			}
		}
	}()
	return w, nil
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	err := w.watcher.Close()
	<-w.done
	return err
}
