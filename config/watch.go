package config

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch calls fn with the reloaded configuration every time path is written or
// replaced, and with an error when the new file does not load. The directory is
// watched so editors that save by rename are seen. Watch returns once the watcher
// is running; it stops when ctx is done.
func Watch(ctx context.Context, path string, fn func(*Config, error)) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("config: watch %s: %w", path, err)
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config: watch %s: %w", path, err)
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		w.Close()
		return fmt.Errorf("config: watch %s: %w", path, err)
	}

	go func() {
		defer w.Close()
		for {
			select {
			case e, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(e.Name) != abs {
					continue
				}
				if e.Op&(fsnotify.Create|fsnotify.Write) == 0 {
					continue
				}
				fn(Load(abs))
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				fn(nil, fmt.Errorf("config: watch %s: %w", path, err))
			case <-ctx.Done():
				return
			}
		}
	}()
	return nil
}
