package minio

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/DRSN-tech/go-similarity/internal/infrastructure"
	"github.com/DRSN-tech/go-similarity/internal/usecase"
	"github.com/DRSN-tech/go-similarity/pkg/e"
	"github.com/DRSN-tech/go-similarity/pkg/jitter"
	"github.com/DRSN-tech/go-similarity/pkg/logger"
)

// SyncRes: итог синхронизации датасета.
type SyncRes struct {
	Listed     int
	Downloaded int
	Skipped    int
	Failed     int
}

// DatasetSync выгружает изображения датасета из MinIO в локальный каталог,
// с которым работает хранилище векторов.
type DatasetSync struct {
	repo          usecase.DatasetImageRepository
	imageDir      string
	extensions    []string
	maxConcurrent int
	maxRetries    int
	backoff       jitter.Backoff
	logger        logger.Logger
}

func NewDatasetSync(repo usecase.DatasetImageRepository, imageDir string, extensions []string,
	maxConcurrent int, logger logger.Logger) *DatasetSync {
	if maxConcurrent <= 0 {
		maxConcurrent = 4
	}

	return &DatasetSync{
		repo:          repo,
		imageDir:      imageDir,
		extensions:    extensions,
		maxConcurrent: maxConcurrent,
		maxRetries:    3,
		backoff:       jitter.NewBackoff(time.Second, 30*time.Second),
		logger:        logger,
	}
}

// Sync скачивает объекты, которых нет локально или размер которых отличается.
// Объекты с одинаковым именем файла в разных префиксах скачиваются один раз, по первому ключу.
// Неудачные загрузки повторяются с экспоненциальной задержкой и не прерывают остальные.
func (d *DatasetSync) Sync(ctx context.Context) (*SyncRes, error) {
	const op = "DatasetSync.Sync"

	objects, err := d.repo.List(ctx)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	if err := os.MkdirAll(d.imageDir, 0o755); err != nil {
		return nil, e.Wrap(op, err)
	}

	var (
		wg         sync.WaitGroup
		sem        = make(chan struct{}, d.maxConcurrent)
		downloaded atomic.Int64
		skipped    atomic.Int64
		failed     atomic.Int64
	)

	seen := make(map[string]string, len(objects))
	for _, obj := range objects {
		name := path.Base(obj.Key)
		if !infrastructure.HasAllowedExtension(name, d.extensions) {
			skipped.Add(1)
			continue
		}
		if first, ok := seen[name]; ok {
			skipped.Add(1)
			d.logger.Warnf("skipping dataset object %s: file name %s is already taken by %s", obj.Key, name, first)
			continue
		}
		seen[name] = obj.Key

		dst := filepath.Join(d.imageDir, name)
		if info, err := os.Stat(dst); err == nil && info.Size() == obj.Size {
			skipped.Add(1)
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				return
			}
			defer func() { <-sem }()

			if err := d.download(ctx, obj.Key, dst); err != nil {
				failed.Add(1)
				d.logger.Errorf(err, "failed to download dataset image %s", obj.Key)
				return
			}
			downloaded.Add(1)
		}()
	}

	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, e.Wrap(op, err)
	}

	res := &SyncRes{
		Listed:     len(objects),
		Downloaded: int(downloaded.Load()),
		Skipped:    int(skipped.Load()),
		Failed:     int(failed.Load()),
	}
	d.logger.Infof("dataset sync finished: %d listed, %d downloaded, %d skipped, %d failed",
		res.Listed, res.Downloaded, res.Skipped, res.Failed)

	return res, nil
}

// download загружает один объект с повторами.
func (d *DatasetSync) download(ctx context.Context, key, dst string) error {
	var lastErr error
	for attempt := 0; attempt < d.maxRetries; attempt++ {
		lastErr = d.repo.Download(ctx, key, dst)
		if lastErr == nil {
			return nil
		}
		if errors.Is(lastErr, context.Canceled) || attempt == d.maxRetries-1 {
			break
		}

		sleepTime := d.backoff.Delay(attempt)
		d.logger.Warnf("download of %s failed, retrying in %v (attempt %d)", key, sleepTime, attempt+1)
		if err := jitter.Sleep(ctx, sleepTime); err != nil {
			return err
		}
	}

	return fmt.Errorf("download %s failed after %d attempts: %w", key, d.maxRetries, lastErr)
}
