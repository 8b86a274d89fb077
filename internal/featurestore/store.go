// Package featurestore хранит базу векторов изображений датасета: читает её из файла кэша,
// проверяет актуальность относительно каталога изображений и перестраивает при расхождении.
package featurestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/DRSN-tech/go-similarity/internal/domain"
	"github.com/DRSN-tech/go-similarity/internal/infrastructure"
	"github.com/DRSN-tech/go-similarity/internal/metrics"
	"github.com/DRSN-tech/go-similarity/internal/usecase"
	"github.com/DRSN-tech/go-similarity/pkg/e"
	"github.com/DRSN-tech/go-similarity/pkg/logger"
)

// Staleness: правило, по которому кэш считается устаревшим.
type Staleness string

const (
	// StalenessCount сравнивает только число изображений и записей кэша.
	StalenessCount Staleness = "count"
	// StalenessNames сравнивает множества имён файлов.
	StalenessNames Staleness = "names"
)

const defaultMaxConcurrent = 4

// skippedSuffix: суффикс файла рядом с кэшем, в котором хранятся имена изображений,
// не давших вектора при последнем перестроении.
const skippedSuffix = ".skipped.json"

// DefaultExtensions: расширения изображений датасета по умолчанию.
var DefaultExtensions = []string{".png", ".jpg", ".jpeg"}

// Options задаёт расположение датасета и кэша.
type Options struct {
	ImageDir      string
	CachePath     string
	Extensions    []string  // с точкой, без учёта регистра
	Staleness     Staleness // пусто: StalenessCount
	MaxConcurrent int       // параллельных извлечений при перестроении
}

// Store владеет опубликованной базой векторов. Чтение через Current безопасно
// из любых горутин, перестроения выполняются строго по одному.
type Store struct {
	opts       Options
	embedder   usecase.ImageEmbedder
	publishers []usecase.FeaturePublisher
	current    atomic.Pointer[domain.FeatureDatabase]
	mu         sync.Mutex
	logger     logger.Logger
}

func New(opts Options, embedder usecase.ImageEmbedder, logger logger.Logger, publishers ...usecase.FeaturePublisher) *Store {
	exts := opts.Extensions
	if len(exts) == 0 {
		exts = DefaultExtensions
	}
	opts.Extensions = make([]string, 0, len(exts))
	for _, ext := range exts {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		opts.Extensions = append(opts.Extensions, ext)
	}
	if opts.Staleness == "" {
		opts.Staleness = StalenessCount
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = defaultMaxConcurrent
	}

	s := &Store{
		opts:       opts,
		embedder:   embedder,
		publishers: publishers,
		logger:     logger,
	}
	s.current.Store(domain.EmptyFeatureDatabase())

	return s
}

// Current возвращает опубликованную базу. Никогда не возвращает nil.
func (s *Store) Current() *domain.FeatureDatabase {
	return s.current.Load()
}

// Load читает файл кэша. Отсутствующий или повреждённый файл даёт пустую базу.
func (s *Store) Load() *domain.FeatureDatabase {
	const op = "Store.Load"

	data, err := os.ReadFile(s.opts.CachePath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.logger.Warnf("%s: feature cache %s is unreadable, starting empty: %v", op, s.opts.CachePath, err)
		}
		return domain.EmptyFeatureDatabase()
	}

	var vectors map[string][]float32
	if err := json.Unmarshal(data, &vectors); err != nil {
		s.logger.Warnf("%s: feature cache %s is corrupt, starting empty: %v", op, s.opts.CachePath, err)
		return domain.EmptyFeatureDatabase()
	}

	return domain.NewFeatureDatabase(vectors)
}

// EnsureFresh загружает кэш и перестраивает его, если он не соответствует каталогу изображений.
// Возвращает true, если было выполнено перестроение. При неудачном перестроении остаётся
// опубликованной прежняя база, а если её ещё нет, то база из кэша.
func (s *Store) EnsureFresh(ctx context.Context) (bool, error) {
	const op = "Store.EnsureFresh"

	s.mu.Lock()
	defer s.mu.Unlock()

	db := s.Load()
	skipped := s.loadSkipped()
	images, err := s.listImages()
	if err != nil {
		return false, e.Wrap(op, err)
	}

	if !s.stale(db, skipped, images) {
		s.publish(ctx, db, false)
		s.logger.Infof("feature cache is fresh: %d entries, %d skipped", db.Len(), len(skipped))
		return false, nil
	}

	s.logger.Infof("feature cache is stale (%d entries, %d skipped, %d images), rebuilding", db.Len(), len(skipped), len(images))
	if _, err := s.rebuild(ctx, images); err != nil {
		if s.Current().Len() == 0 && db.Len() > 0 && db.Dimensions() == s.embedder.Dimensions() {
			s.logger.Warnf("rebuild failed, serving stale feature cache with %d entries", db.Len())
			s.publish(ctx, db, false)
		}
		return false, e.Wrap(op, err)
	}

	return true, nil
}

// Rebuild безусловно извлекает признаки всех изображений датасета, атомарно
// перезаписывает кэш и публикует новую базу. При ошибке опубликованная база и кэш не меняются.
func (s *Store) Rebuild(ctx context.Context) (*domain.FeatureDatabase, error) {
	const op = "Store.Rebuild"

	s.mu.Lock()
	defer s.mu.Unlock()

	images, err := s.listImages()
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	db, err := s.rebuild(ctx, images)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	return db, nil
}

// stale сравнивает кэш с каталогом изображений по выбранному правилу. Изображения,
// пропущенные при прошлом перестроении, считаются учтёнными.
// Кэш с размерностью, отличной от размерности извлекателя, всегда устаревший.
func (s *Store) stale(db *domain.FeatureDatabase, skipped map[string]struct{}, images []string) bool {
	if db.Len() > 0 && db.Dimensions() != s.embedder.Dimensions() {
		return true
	}

	if len(images) != db.Len()+len(skipped) {
		return true
	}

	if s.opts.Staleness == StalenessNames {
		for _, name := range images {
			if _, ok := db.Get(name); ok {
				continue
			}
			if _, ok := skipped[name]; !ok {
				return true
			}
		}
	}

	return false
}

// rebuild вызывается под s.mu. Нераспознаваемые изображения пропускаются, любая другая
// ошибка извлекателя прерывает перестроение без публикации.
func (s *Store) rebuild(ctx context.Context, images []string) (*domain.FeatureDatabase, error) {
	const op = "Store.rebuild"
	start := time.Now()

	type result struct {
		name   string
		vector []float32
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		results  = make(chan result, len(images))
		skipped  = make(chan string, len(images))
		sem      = make(chan struct{}, s.opts.MaxConcurrent)
		abortMu  sync.Mutex
		abortErr error
	)

	abort := func(err error) {
		abortMu.Lock()
		defer abortMu.Unlock()
		if abortErr == nil {
			abortErr = err
			cancel()
		}
	}

	for _, name := range images {
		wg.Add(1)
		go func() {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
			case <-runCtx.Done():
				return
			}
			defer func() { <-sem }()

			data, err := os.ReadFile(filepath.Join(s.opts.ImageDir, name))
			if err != nil {
				skipped <- name
				s.logger.Warnf("skipping image %s: %v", name, err)
				return
			}

			vector, err := s.embedder.Embed(runCtx, data)
			if err != nil {
				if errors.Is(err, e.ErrExtraction) {
					skipped <- name
					s.logger.Warnf("skipping image %s: %v", name, err)
					return
				}
				abort(fmt.Errorf("embedding %s: %w", name, err))
				return
			}

			results <- result{name: name, vector: vector}
		}()
	}

	wg.Wait()
	close(results)
	close(skipped)

	if err := ctx.Err(); err != nil {
		return nil, e.Wrap(op, err)
	}
	if abortErr != nil {
		metrics.RecordRebuildFailure()
		s.logger.Errorf(abortErr, "feature rebuild aborted, keeping previous database with %d entries", s.Current().Len())
		return nil, e.Wrap(op, abortErr)
	}

	vectors := make(map[string][]float32, len(images))
	for r := range results {
		vectors[r.name] = r.vector
	}
	skippedNames := make([]string, 0, len(skipped))
	for name := range skipped {
		skippedNames = append(skippedNames, name)
	}
	sort.Strings(skippedNames)

	if len(images) > 0 && len(vectors) == 0 {
		metrics.RecordRebuildFailure()
		return nil, e.Wrap(op, fmt.Errorf("%w: none of %d images produced a vector", e.ErrExtraction, len(images)))
	}

	db := domain.NewFeatureDatabase(vectors)

	if err := s.write(db, skippedNames); err != nil {
		s.logger.Errorf(err, "failed to persist feature cache, keeping rebuilt database in memory")
	}

	s.publish(ctx, db, true)
	metrics.RecordRebuild(db.Len(), len(skippedNames), time.Since(start))
	s.logger.Infof("feature database rebuilt: %d entries, %d skipped in %v", db.Len(), len(skippedNames), time.Since(start))

	return db, nil
}

// publish подменяет текущую базу и, после перестроения, уведомляет подписчиков.
// Ошибки подписчиков не отменяют публикацию.
func (s *Store) publish(ctx context.Context, db *domain.FeatureDatabase, rebuilt bool) {
	s.current.Store(db)
	metrics.FeatureEntries.Set(float64(db.Len()))

	if !rebuilt {
		return
	}

	req := usecase.NewPublishFeaturesReq(db, s.embedder.ModelVersion())
	for _, p := range s.publishers {
		if err := p.PublishFeatures(ctx, req); err != nil {
			s.logger.Errorf(err, "feature publisher failed")
		}
	}
}

// write сохраняет базу и список пропущенных изображений. Пустой список удаляет файл пропусков.
func (s *Store) write(db *domain.FeatureDatabase, skipped []string) error {
	const op = "Store.write"

	if err := writeJSON(s.opts.CachePath, db.Vectors()); err != nil {
		return e.Wrap(op, err)
	}

	if len(skipped) == 0 {
		if err := os.Remove(s.skippedPath()); err != nil && !errors.Is(err, os.ErrNotExist) {
			return e.Wrap(op, err)
		}
		return nil
	}

	if err := writeJSON(s.skippedPath(), skipped); err != nil {
		return e.Wrap(op, err)
	}

	return nil
}

// loadSkipped читает имена изображений, пропущенных при последнем перестроении.
// Отсутствующий или повреждённый файл означает пустой список.
func (s *Store) loadSkipped() map[string]struct{} {
	data, err := os.ReadFile(s.skippedPath())
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.logger.Warnf("skipped-images list %s is unreadable: %v", s.skippedPath(), err)
		}
		return nil
	}

	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		s.logger.Warnf("skipped-images list %s is corrupt: %v", s.skippedPath(), err)
		return nil
	}

	out := make(map[string]struct{}, len(names))
	for _, name := range names {
		out[name] = struct{}{}
	}
	return out
}

func (s *Store) skippedPath() string {
	return s.opts.CachePath + skippedSuffix
}

// writeJSON пишет значение во временный файл рядом с path и переименовывает его,
// поэтому читатель никогда не видит частично записанный файл.
func writeJSON(path string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmp.Name(), path)
}

// listImages возвращает отсортированные имена файлов изображений датасета.
// Отсутствующий каталог считается пустым датасетом.
func (s *Store) listImages() ([]string, error) {
	const op = "Store.listImages"

	entries, err := os.ReadDir(s.opts.ImageDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.logger.Warnf("image directory %s does not exist, treating dataset as empty", s.opts.ImageDir)
			return nil, nil
		}
		return nil, e.Wrap(op, fmt.Errorf("%w: %w", e.ErrLoad, err))
	}

	images := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !s.allowed(entry.Name()) {
			continue
		}
		images = append(images, entry.Name())
	}

	return images, nil
}

func (s *Store) allowed(name string) bool {
	return infrastructure.HasAllowedExtension(name, s.opts.Extensions)
}
