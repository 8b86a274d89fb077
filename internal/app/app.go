package app

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/DRSN-tech/go-similarity/internal/catalog"
	config "github.com/DRSN-tech/go-similarity/internal/cfg"
	v1Grpc "github.com/DRSN-tech/go-similarity/internal/delivery/v1/grpc"
	v1Http "github.com/DRSN-tech/go-similarity/internal/delivery/v1/http"
	"github.com/DRSN-tech/go-similarity/internal/domain"
	"github.com/DRSN-tech/go-similarity/internal/embedder"
	"github.com/DRSN-tech/go-similarity/internal/featurestore"
	"github.com/DRSN-tech/go-similarity/internal/infrastructure/kafka"
	minioInfra "github.com/DRSN-tech/go-similarity/internal/infrastructure/minio"
	ml_service "github.com/DRSN-tech/go-similarity/internal/infrastructure/ml-service"
	s3Repo "github.com/DRSN-tech/go-similarity/internal/repository/minio"
	"github.com/DRSN-tech/go-similarity/internal/repository/pgdb"
	qdrantRepo "github.com/DRSN-tech/go-similarity/internal/repository/qdrant"
	"github.com/DRSN-tech/go-similarity/internal/repository/redis"
	"github.com/DRSN-tech/go-similarity/internal/textindex"
	"github.com/DRSN-tech/go-similarity/internal/usecase"
	"github.com/DRSN-tech/go-similarity/pkg/closer"
	"github.com/DRSN-tech/go-similarity/pkg/clients"
	"github.com/DRSN-tech/go-similarity/pkg/e"
	"github.com/DRSN-tech/go-similarity/pkg/logger"
	"github.com/DRSN-tech/go-similarity/pkg/postgres"
	"github.com/go-chi/chi/v5"
	"github.com/jimlawless/whereami"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

const (
	initTimeout     = 10 * time.Second
	shutdownTimeout = 10 * time.Second
	topicTimeout    = 10 * time.Second
)

// App собирает зависимости сервиса и управляет его жизненным циклом.
type App struct {
	cfg    *config.Config
	logger logger.Logger
	closer *closer.Closer

	similarityUC *usecase.SimilarityUseCase
	catalogUC    *usecase.CatalogUseCase
	store        *featurestore.Store
	datasetSync  *minioInfra.DatasetSync // nil без MinIO
}

// NewApp подключает все настроенные интеграции. Ресурсы закрываются через Close.
func NewApp(cfg *config.Config, logger logger.Logger) (*App, error) {
	a := &App{
		cfg:    cfg,
		logger: logger,
		closer: closer.NewCloser(2*time.Second, logger),
	}

	if err := a.init(); err != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if cerr := a.closer.Close(ctx); cerr != nil {
			logger.Errorf(cerr, "failed to release resources after init error")
		}
		return nil, err
	}

	return a, nil
}

func (a *App) init() error {
	emb, err := a.initEmbedder()
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	var publishers []usecase.FeaturePublisher
	var catalogEvents usecase.CatalogEventPublisher

	if a.cfg.Qdrant != nil {
		embRepo, err := a.initQdrant(emb.Dimensions())
		if err != nil {
			return e.Wrap(whereami.WhereAmI(), err)
		}
		publishers = append(publishers, embRepo)
	}

	if a.cfg.Kafka != nil {
		producer := kafka.NewProducer(a.logger, a.cfg.Kafka)
		if err := producer.EnsureTopic(topicTimeout); err != nil {
			a.logger.Warnf("kafka topic %s is not ready: %v", a.cfg.Kafka.Topic, err)
		}
		a.closer.Add("kafka producer", producer.Close)
		publishers = append(publishers, producer)
		catalogEvents = producer
	}

	var cache usecase.RecommendationCache
	if a.cfg.Redis != nil {
		ctx, cancel := context.WithTimeout(context.Background(), initTimeout)
		defer cancel()

		redisClient, err := clients.ConnectRedis(ctx, a.cfg.Redis)
		if err != nil {
			a.logger.Errorf(err, "failed to connect to redis")
			return e.Wrap(whereami.WhereAmI(), err)
		}
		a.closer.Add("redis", redisClient.Close)
		cache = redis.NewCacheRepo(redisClient.Client, a.cfg.Redis.RecommendTTL, a.logger)
	}

	if a.cfg.Minio != nil {
		ds, err := a.initDatasetSync()
		if err != nil {
			return e.Wrap(whereami.WhereAmI(), err)
		}
		a.datasetSync = ds
	}

	source, err := a.initCatalogSource()
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	a.store = featurestore.New(featurestore.Options{
		ImageDir:      a.cfg.Features.ImageDir,
		CachePath:     a.cfg.Features.CachePath,
		Extensions:    a.cfg.Features.Extensions,
		Staleness:     featurestore.Staleness(a.cfg.Features.Staleness),
		MaxConcurrent: a.cfg.Features.MaxConcurrent,
	}, emb, a.logger, publishers...)

	a.similarityUC = usecase.NewSimilarityUC(a.store, emb, cache, a.cfg.Features.ImageURLPrefix, a.logger)
	a.catalogUC = usecase.NewCatalogUC(source, a.similarityUC, catalogEvents,
		textindex.Options{Workers: a.cfg.Catalog.Workers}, a.logger)

	return nil
}

func (a *App) initEmbedder() (usecase.ImageEmbedder, error) {
	if a.cfg.Embedder.Kind != config.EmbedderRemote {
		emb := embedder.NewPooled(a.cfg.Embedder.InputSize, a.cfg.Embedder.Grid,
			embedder.Normalization(a.cfg.Embedder.Normalization)).WithMaxPixels(a.cfg.Embedder.MaxPixels)
		a.logger.Infof("using local embedder %s (%d dimensions)", emb.ModelVersion(), emb.Dimensions())
		return emb, nil
	}

	conn, err := grpc.NewClient(
		a.cfg.Ml.Addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()), // явное указание gRPC-клиенту использовать НЕзащищённое соединение (без TLS).
	)
	if err != nil {
		a.logger.Errorf(err, "failed to initialize grpc client")
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	a.closer.Add("ml-service connection", func(context.Context) error { return conn.Close() })

	a.logger.Infof("using ml-service at %s, model %s", a.cfg.Ml.Addr, a.cfg.Ml.ModelVersion)
	return ml_service.NewMLService(conn, a.cfg.Ml.Dimensions, a.cfg.Ml.ModelVersion, a.cfg.Ml.MaxRetries, a.logger).
		WithTimeout(a.cfg.Ml.Timeout).
		WithMaxPixels(a.cfg.Embedder.MaxPixels), nil
}

func (a *App) initQdrant(dimensions int) (*qdrantRepo.EmbeddingRepo, error) {
	qdrantClient, err := clients.NewQdrantClient(a.cfg.Qdrant)
	if err != nil {
		a.logger.Errorf(err, "failed to initialize qdrant")
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	a.closer.Add("qdrant", qdrantClient.Close)

	ctx, cancel := context.WithTimeout(context.Background(), initTimeout)
	defer cancel()
	if err := clients.EnsureCollection(ctx, qdrantClient, uint64(dimensions), a.logger); err != nil {
		a.logger.Errorf(err, "failed to initialize qdrant collection")
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return qdrantRepo.NewEmbeddingRepo(qdrantClient.Client, a.cfg.Qdrant.QdrantCollectionName), nil
}

func (a *App) initDatasetSync() (*minioInfra.DatasetSync, error) {
	minioClient, err := clients.NewMinIOClient(a.cfg.Minio)
	if err != nil {
		a.logger.Errorf(err, "failed to initialize minio client")
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), initTimeout)
	defer cancel()
	if err := clients.CheckBucket(ctx, minioClient, a.cfg.Minio.BucketName); err != nil {
		a.logger.Errorf(err, "failed to check MinIO bucket")
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	imageRepo := s3Repo.NewImageRepo(minioClient, a.cfg.Minio.BucketName, a.cfg.Minio.Prefix)
	return minioInfra.NewDatasetSync(imageRepo, a.cfg.Features.ImageDir, a.cfg.Features.Extensions,
		a.cfg.Features.MaxConcurrent, a.logger), nil
}

func (a *App) initCatalogSource() (usecase.CatalogSource, error) {
	if a.cfg.Catalog.Source != config.CatalogSourcePostgres {
		return catalog.NewFileSource(a.cfg.Catalog.Path, a.logger), nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), initTimeout)
	defer cancel()

	db, err := postgres.Connect(ctx, a.cfg.Db)
	if err != nil {
		a.logger.Errorf(err, "failed to connect to database")
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	a.closer.Add("postgres", db.Close)

	if err := db.RunMigrations(a.logger); err != nil {
		a.logger.Errorf(err, "failed to run migrations")
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return pgdb.NewCatalogRepo(db.Pool, a.logger), nil
}

// WarmUp загружает каталог и приводит базу векторов в актуальное состояние.
// Запросы принимаются только после WarmUp.
func (a *App) WarmUp(ctx context.Context) error {
	if _, err := a.catalogUC.Reload(ctx); err != nil {
		a.logger.Errorf(err, "failed to load catalog")
		return e.Wrap(whereami.WhereAmI(), err)
	}

	if a.datasetSync != nil && a.cfg.Minio.SyncOnStart {
		if _, err := a.datasetSync.Sync(ctx); err != nil {
			a.logger.Warnf("dataset sync failed, using local images: %v", err)
		}
	}

	if _, err := a.store.EnsureFresh(ctx); err != nil {
		if !errors.Is(err, e.ErrEmbedderUnavailable) && !errors.Is(err, e.ErrExtraction) {
			a.logger.Errorf(err, "failed to prepare feature database")
			return e.Wrap(whereami.WhereAmI(), err)
		}
		a.logger.Warnf("feature database was not rebuilt, serving %d cached entries: %v", a.store.Current().Len(), err)
	}

	return nil
}

// Rebuild подтягивает датасет из MinIO, если он настроен, и перестраивает базу векторов.
func (a *App) Rebuild(ctx context.Context) (*domain.FeatureDatabase, error) {
	if a.datasetSync != nil {
		if _, err := a.datasetSync.Sync(ctx); err != nil {
			a.logger.Warnf("dataset sync failed, rebuilding from local images: %v", err)
		}
	}

	db, err := a.store.Rebuild(ctx)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return db, nil
}

// Close освобождает ресурсы в обратном порядке подключения.
func (a *App) Close(ctx context.Context) error {
	return a.closer.Close(ctx)
}

// Run прогревает индексы, поднимает HTTP и gRPC серверы и ждёт сигнала завершения.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(shutdown)

	warmCtx, warmCancel := context.WithCancel(ctx)
	go func() {
		select {
		case <-shutdown:
			a.logger.Infof("Received shutdown signal during warm-up")
			warmCancel()
		case <-warmCtx.Done():
		}
	}()
	err := a.WarmUp(warmCtx)
	warmCancel()
	if err != nil {
		a.closeAll()
		return err
	}

	if a.cfg.Features.Watch {
		go func() {
			if err := a.store.Watch(ctx, a.cfg.Features.WatchDebounce); err != nil && !errors.Is(err, context.Canceled) {
				a.logger.Errorf(err, "dataset watcher stopped")
			}
		}()
	}

	errCh := make(chan error, 2)

	r := chi.NewRouter()
	router := v1Http.NewRouter(r, a.cfg.Http.MaxUploadSize, a.logger)
	router.Init(a.similarityUC, a, a.catalogUC)

	httpSrv := v1Http.NewServer(r, a.cfg.Http)
	go func() {
		a.logger.Infof("HTTP server started on port %s", a.cfg.Http.Port)
		if err := httpSrv.Run(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Errorf(err, "HTTP server failed")
			errCh <- err
		}
	}()
	a.closer.Add("HTTP server", httpSrv.Stop)

	if a.cfg.Grpc.Enabled {
		grpcSrv := v1Grpc.NewGRPCServer(a.cfg.Grpc, a.cfg.Http.MaxUploadSize, a.logger)
		grpcSrv.RegisterServices(a.similarityUC, a.cfg.Http.MaxUploadSize)
		go func() {
			a.logger.Infof("gRPC server starting on %s:%s", a.cfg.Grpc.NetworkMode, a.cfg.Grpc.Port)
			if err := grpcSrv.Start(); err != nil {
				a.logger.Errorf(err, "gRPC server failed")
				errCh <- err
			}
		}()
		a.closer.Add("gRPC server", grpcSrv.Stop)
	}

	// === Ожидание сигнала или ошибки ===
	var appErr error
	select {
	case appErr = <-errCh:
		a.logger.Errorf(appErr, "server fatal error")
	case <-shutdown:
		a.logger.Infof("Received shutdown signal, stopping gracefully...")
	}

	cancel()
	a.closeAll()

	return appErr
}

func (a *App) closeAll() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := a.Close(ctx); err != nil {
		a.logger.Errorf(err, "shutdown finished with errors")
		return
	}
	a.logger.Infof("Application shutdown complete")
}
