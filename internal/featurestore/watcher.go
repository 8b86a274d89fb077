package featurestore

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/DRSN-tech/go-similarity/pkg/e"
	"github.com/fsnotify/fsnotify"
)

const defaultDebounce = 2 * time.Second

// Watch следит за каталогом изображений и после серии изменений (с паузой debounce)
// вызывает EnsureFresh. Блокирует до отмены контекста.
func (s *Store) Watch(ctx context.Context, debounce time.Duration) error {
	const op = "Store.Watch"

	if debounce <= 0 {
		debounce = defaultDebounce
	}

	if err := os.MkdirAll(s.opts.ImageDir, 0o755); err != nil {
		return e.Wrap(op, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return e.Wrap(op, err)
	}
	defer watcher.Close()

	if err := watcher.Add(s.opts.ImageDir); err != nil {
		return e.Wrap(op, err)
	}

	s.logger.Infof("watching image directory %s", s.opts.ImageDir)

	timer := time.NewTimer(debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Remove|fsnotify.Rename|fsnotify.Write) == 0 {
				continue
			}
			if !s.allowed(filepath.Base(event.Name)) {
				continue
			}
			timer.Reset(debounce)
		case <-timer.C:
			rebuilt, err := s.EnsureFresh(ctx)
			if err != nil {
				s.logger.Errorf(err, "feature refresh after dataset change failed")
				continue
			}
			if rebuilt {
				s.logger.Infof("feature database refreshed after dataset change")
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Errorf(err, "image directory watcher error")
		}
	}
}
