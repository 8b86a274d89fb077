package cfg

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/DRSN-tech/go-similarity/pkg/e"
	"github.com/DRSN-tech/go-similarity/pkg/logger"
	"github.com/jimlawless/whereami"
)

// Config: конфигурация сервиса. Необязательные интеграции (Postgres, Redis, Qdrant,
// MinIO, Kafka, ML-сервис) равны nil, если не настроены.
type Config struct {
	Catalog  *CatalogCfg
	Features *FeaturesCfg
	Embedder *EmbedderCfg
	Http     *HTTPConfig
	Grpc     *GRPCConfig
	Db       *PGDBCfg
	Redis    *RedisCfg
	Qdrant   *QdrantCfg
	Minio    *MinIOCfg
	Kafka    *KafkaCfg
	Ml       *MLServiceCfg
}

const (
	CatalogSourceFile     = "file"
	CatalogSourcePostgres = "postgres"

	EmbedderLocal  = "local"
	EmbedderRemote = "remote"
)

type CatalogCfg struct {
	Source  string // file или postgres
	Path    string // путь к JSON-файлу каталога
	Workers int    // горутин для построения матрицы близости, 0: GOMAXPROCS
}

type FeaturesCfg struct {
	ImageDir       string
	CachePath      string
	Extensions     []string
	Staleness      string // count или names
	MaxConcurrent  int
	Watch          bool
	WatchDebounce  time.Duration
	ImageURLPrefix string // префикс ссылок на изображения датасета в ответах поиска
}

type EmbedderCfg struct {
	Kind          string // local или remote
	InputSize     int
	Grid          int
	Normalization string // caffe или torch
	MaxPixels     int    // предел ширина*высота декодируемого изображения
}

type HTTPConfig struct {
	Port          string
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
	IdleTimeout   time.Duration
	MaxUploadSize int64
}

type GRPCConfig struct {
	Enabled     bool
	Port        string
	NetworkMode string
}

type PGDBCfg struct {
	Host           string
	Port           string
	User           string
	Password       string
	DBName         string
	SSLMode        string
	MigrationsPath string
}

type RedisCfg struct {
	Addr         string
	Password     string
	User         string
	DB           int
	MaxRetries   int
	DialTimeout  time.Duration
	Timeout      time.Duration
	RecommendTTL time.Duration
}

type QdrantCfg struct {
	Port                 int
	Host                 string
	ApiKey               string
	QdrantCollectionName string // имя коллекции в Qdrant
	UseTLS               bool
}

type MinIOCfg struct {
	MinioEndpoint     string // Адрес конечной точки MinIO
	BucketName        string // Бакет с изображениями датасета
	Prefix            string // Префикс объектов датасета в бакете
	MinioRootUser     string
	MinioRootPassword string
	MinioUseSSL       bool
	SyncOnStart       bool
}

type KafkaCfg struct {
	Topic             string
	Brokers           []string
	NetworkMode       string
	Partitions        int
	ReplicationFactor int
}

type MLServiceCfg struct {
	Addr         string
	Dimensions   int
	ModelVersion string
	MaxRetries   int
	Timeout      time.Duration
}

// Load безопасно загружает конфигурацию и возвращает ошибку в случае неудачи.
func Load(log logger.Logger) (*Config, error) {
	catalog, err := loadCatalogCfg()
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	features, err := loadFeaturesCfg()
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	embedder, err := loadEmbedderCfg()
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	http, err := loadHTTPConfig(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	grpc, err := loadGRPCConfig()
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	var db *PGDBCfg
	if catalog.Source == CatalogSourcePostgres {
		if db, err = loadPGDBCfg(log); err != nil {
			return nil, e.Wrap(whereami.WhereAmI(), err)
		}
	}

	redis, err := loadRedisCfg(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	qdrant, err := loadQdrantCfg(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	minio, err := loadMinIOCfg(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	kafka, err := loadKafkaCfg()
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	var ml *MLServiceCfg
	if embedder.Kind == EmbedderRemote {
		if ml, err = loadMLServiceCfg(); err != nil {
			return nil, e.Wrap(whereami.WhereAmI(), err)
		}
	}

	return &Config{
		Catalog:  catalog,
		Features: features,
		Embedder: embedder,
		Http:     http,
		Grpc:     grpc,
		Db:       db,
		Redis:    redis,
		Qdrant:   qdrant,
		Minio:    minio,
		Kafka:    kafka,
		Ml:       ml,
	}, nil
}

func loadCatalogCfg() (*CatalogCfg, error) {
	const (
		defaultSource = CatalogSourceFile
		defaultPath   = "text_dataset.json"
	)

	source := strings.ToLower(getEnvOrDefault("CATALOG_SOURCE", defaultSource))
	if source != CatalogSourceFile && source != CatalogSourcePostgres {
		return nil, fmt.Errorf("%w: CATALOG_SOURCE must be %q or %q, got %q",
			e.ErrIncorrectEnvVariable, CatalogSourceFile, CatalogSourcePostgres, source)
	}

	workers, err := parseIntEnv("CATALOG_WORKERS", 0)
	if err != nil {
		return nil, e.Wrap("CATALOG_WORKERS", err)
	}

	return &CatalogCfg{
		Source:  source,
		Path:    getEnvOrDefault("CATALOG_PATH", defaultPath),
		Workers: workers,
	}, nil
}

func loadFeaturesCfg() (*FeaturesCfg, error) {
	const (
		defaultImageDir      = "static/dataset_images"
		defaultCachePath     = "features.json"
		defaultExtensions    = ".png,.jpg,.jpeg"
		defaultStaleness     = "count"
		defaultMaxConcurrent = 4
		defaultDebounce      = 2 * time.Second
		defaultURLPrefix     = "/static/dataset_images/"
	)

	staleness := strings.ToLower(getEnvOrDefault("FEATURES_STALENESS", defaultStaleness))
	if staleness != "count" && staleness != "names" {
		return nil, fmt.Errorf("%w: FEATURES_STALENESS must be count or names, got %q", e.ErrIncorrectEnvVariable, staleness)
	}

	maxConcurrent, err := parseIntEnv("FEATURES_MAX_CONCURRENT", defaultMaxConcurrent)
	if err != nil {
		return nil, e.Wrap("FEATURES_MAX_CONCURRENT", err)
	}

	watch, err := parseBoolEnv("FEATURES_WATCH", false)
	if err != nil {
		return nil, e.Wrap("FEATURES_WATCH", err)
	}

	debounce, err := parseDurationEnv("FEATURES_WATCH_DEBOUNCE", defaultDebounce)
	if err != nil {
		return nil, e.Wrap("FEATURES_WATCH_DEBOUNCE", err)
	}

	return &FeaturesCfg{
		ImageDir:       getEnvOrDefault("FEATURES_IMAGE_DIR", defaultImageDir),
		CachePath:      getEnvOrDefault("FEATURES_CACHE_PATH", defaultCachePath),
		Extensions:     splitList(getEnvOrDefault("FEATURES_EXTENSIONS", defaultExtensions)),
		Staleness:      staleness,
		MaxConcurrent:  maxConcurrent,
		Watch:          watch,
		WatchDebounce:  debounce,
		ImageURLPrefix: getEnvOrDefault("FEATURES_IMAGE_URL_PREFIX", defaultURLPrefix),
	}, nil
}

func loadEmbedderCfg() (*EmbedderCfg, error) {
	const (
		defaultKind          = EmbedderLocal
		defaultInputSize     = 224
		defaultGrid          = 8
		defaultNormalization = "caffe"
		defaultMaxPixels     = 40_000_000
	)

	kind := strings.ToLower(getEnvOrDefault("EMBEDDER", defaultKind))
	if kind != EmbedderLocal && kind != EmbedderRemote {
		return nil, fmt.Errorf("%w: EMBEDDER must be %q or %q, got %q",
			e.ErrIncorrectEnvVariable, EmbedderLocal, EmbedderRemote, kind)
	}

	inputSize, err := parseIntEnv("EMBEDDER_INPUT_SIZE", defaultInputSize)
	if err != nil {
		return nil, e.Wrap("EMBEDDER_INPUT_SIZE", err)
	}

	grid, err := parseIntEnv("EMBEDDER_GRID", defaultGrid)
	if err != nil {
		return nil, e.Wrap("EMBEDDER_GRID", err)
	}

	normalization := strings.ToLower(getEnvOrDefault("EMBEDDER_NORMALIZATION", defaultNormalization))
	if normalization != "caffe" && normalization != "torch" {
		return nil, fmt.Errorf("%w: EMBEDDER_NORMALIZATION must be caffe or torch, got %q", e.ErrIncorrectEnvVariable, normalization)
	}

	maxPixels, err := parseIntEnv("EMBEDDER_MAX_PIXELS", defaultMaxPixels)
	if err != nil {
		return nil, e.Wrap("EMBEDDER_MAX_PIXELS", err)
	}
	if maxPixels <= 0 {
		return nil, fmt.Errorf("%w: EMBEDDER_MAX_PIXELS must be positive, got %d", e.ErrIncorrectEnvVariable, maxPixels)
	}

	return &EmbedderCfg{
		Kind:          kind,
		InputSize:     inputSize,
		Grid:          grid,
		Normalization: normalization,
		MaxPixels:     maxPixels,
	}, nil
}

func loadHTTPConfig(log logger.Logger) (*HTTPConfig, error) {
	const (
		defaultPort          = "8080"
		defaultReadTimeout   = 15 * time.Second
		defaultWriteTimeout  = 60 * time.Second
		defaultIdleTimeout   = 60 * time.Second
		defaultMaxUploadSize = 16 << 20
	)

	port := getEnvOrDefault("HTTP_PORT", defaultPort)

	readTimeout, err := parseDurationEnv("HTTP_READ_TIMEOUT", defaultReadTimeout)
	if err != nil {
		log.Errorf(err, "invalid HTTP_READ_TIMEOUT")
		return nil, err
	}

	writeTimeout, err := parseDurationEnv("HTTP_WRITE_TIMEOUT", defaultWriteTimeout)
	if err != nil {
		log.Errorf(err, "invalid HTTP_WRITE_TIMEOUT")
		return nil, err
	}

	idleTimeout, err := parseDurationEnv("KEEP_ALIVE", defaultIdleTimeout)
	if err != nil {
		log.Errorf(err, "invalid KEEP_ALIVE")
		return nil, err
	}

	maxUpload, err := parseIntEnv("HTTP_MAX_UPLOAD_BYTES", defaultMaxUploadSize)
	if err != nil {
		log.Errorf(err, "invalid HTTP_MAX_UPLOAD_BYTES")
		return nil, err
	}

	return &HTTPConfig{
		Port:          port,
		ReadTimeout:   readTimeout,
		WriteTimeout:  writeTimeout,
		IdleTimeout:   idleTimeout,
		MaxUploadSize: int64(maxUpload),
	}, nil
}

func loadGRPCConfig() (*GRPCConfig, error) {
	const (
		defaultPort        = "8091"
		defaultNetworkMode = "tcp"
	)

	enabled, err := parseBoolEnv("GRPC_ENABLED", true)
	if err != nil {
		return nil, e.Wrap("GRPC_ENABLED", err)
	}

	return &GRPCConfig{
		Enabled:     enabled,
		Port:        getEnvOrDefault("GRPC_PORT", defaultPort),
		NetworkMode: getEnvOrDefault("GRPC_NETWORK_MODE", defaultNetworkMode),
	}, nil
}

func loadPGDBCfg(log logger.Logger) (*PGDBCfg, error) {
	const (
		defaultHost           = "localhost"
		defaultPort           = "5432"
		defaultSSLMode        = "disable"
		defaultMigrationsPath = "db/migrations"
	)

	user := getEnv("POSTGRES_USER")
	if user == "" {
		err := fmt.Errorf("POSTGRES_USER is required")
		log.Errorf(err, "missing POSTGRES_USER")
		return nil, err
	}

	password := getEnv("POSTGRES_PASSWORD")
	if password == "" {
		err := fmt.Errorf("POSTGRES_PASSWORD is required")
		log.Errorf(err, "missing POSTGRES_PASSWORD")
		return nil, err
	}

	dbName := getEnv("POSTGRES_DB")
	if dbName == "" {
		err := fmt.Errorf("POSTGRES_DB is required")
		log.Errorf(err, "missing POSTGRES_DB")
		return nil, err
	}

	return &PGDBCfg{
		Host:           getEnvOrDefault("POSTGRES_HOST", defaultHost),
		Port:           getEnvOrDefault("POSTGRES_PORT", defaultPort),
		User:           user,
		Password:       password,
		DBName:         dbName,
		SSLMode:        getEnvOrDefault("SSL_MODE", defaultSSLMode),
		MigrationsPath: getEnvOrDefault("MIGRATIONS_PATH", defaultMigrationsPath),
	}, nil
}

// loadRedisCfg возвращает nil, если REDIS_ADDR не задан: кэш рекомендаций выключен.
func loadRedisCfg(log logger.Logger) (*RedisCfg, error) {
	const (
		defaultDB           = 0
		defaultMaxRetries   = 3
		defaultDialTimeout  = 5 * time.Second
		defaultReadTimeout  = 3 * time.Second
		defaultWriteTimeout = 3 * time.Second
		defaultTTL          = 10 * time.Minute
	)

	addr := getEnv("REDIS_ADDR")
	if addr == "" {
		return nil, nil
	}

	db, err := parseIntEnv("REDIS_DB_ID", defaultDB)
	if err != nil {
		log.Errorf(err, "invalid REDIS_DB_ID")
		return nil, err
	}

	maxRetries, err := parseIntEnv("MAX_RETRIES", defaultMaxRetries)
	if err != nil {
		log.Errorf(err, "invalid MAX_RETRIES")
		return nil, err
	}

	dialTimeout, err := parseDurationEnv("DIAL_TIMEOUT", defaultDialTimeout)
	if err != nil {
		log.Errorf(err, "invalid DIAL_TIMEOUT")
		return nil, err
	}

	readTimeout, err := parseDurationEnv("READ_TIMEOUT", defaultReadTimeout)
	if err != nil {
		log.Errorf(err, "invalid READ_TIMEOUT")
		return nil, err
	}

	writeTimeout, err := parseDurationEnv("WRITE_TIMEOUT", defaultWriteTimeout)
	if err != nil {
		log.Errorf(err, "invalid WRITE_TIMEOUT")
		return nil, err
	}

	ttl, err := parseDurationEnv("RECOMMEND_TTL", defaultTTL)
	if err != nil {
		log.Errorf(err, "invalid RECOMMEND_TTL")
		return nil, err
	}

	return &RedisCfg{
		Addr:         addr,
		Password:     getEnv("REDIS_PASSWORD"),
		User:         getEnv("REDIS_USER"),
		DB:           db,
		MaxRetries:   maxRetries,
		DialTimeout:  dialTimeout,
		Timeout:      max(readTimeout, writeTimeout),
		RecommendTTL: ttl,
	}, nil
}

// loadQdrantCfg возвращает nil, если QDRANT_HOST не задан: зеркало в Qdrant выключено.
func loadQdrantCfg(log logger.Logger) (*QdrantCfg, error) {
	const (
		defaultQdrantGRPCPort = 6334
		defaultCollection     = "dataset_images"
	)

	host := getEnv("QDRANT_HOST")
	if host == "" {
		return nil, nil
	}

	port, err := parseIntEnv("QDRANT_GRPC_PORT", defaultQdrantGRPCPort)
	if err != nil {
		log.Errorf(err, "invalid QDRANT_GRPC_PORT")
		return nil, err
	}

	useTLS, err := parseBoolEnv("QDRANT_USE_TLS", false)
	if err != nil {
		log.Errorf(err, "invalid QDRANT_USE_TLS")
		return nil, err
	}

	return &QdrantCfg{
		Host:                 host,
		Port:                 port,
		ApiKey:               getEnv("QDRANT__SERVICE__API_KEY"),
		QdrantCollectionName: getEnvOrDefault("COLLECTION_NAME", defaultCollection),
		UseTLS:               useTLS,
	}, nil
}

// loadMinIOCfg возвращает nil, если MINIO_ENDPOINT не задан: синхронизация датасета выключена.
func loadMinIOCfg(log logger.Logger) (*MinIOCfg, error) {
	endpoint := getEnv("MINIO_ENDPOINT")
	if endpoint == "" {
		return nil, nil
	}

	bucket := getEnv("BUCKET_NAME")
	if bucket == "" {
		err := fmt.Errorf("BUCKET_NAME is required when MINIO_ENDPOINT is set")
		log.Errorf(err, "missing BUCKET_NAME")
		return nil, err
	}

	useSSL, err := parseBoolEnv("MINIO_USE_SSL", false)
	if err != nil {
		log.Errorf(err, "invalid MINIO_USE_SSL")
		return nil, err
	}

	syncOnStart, err := parseBoolEnv("MINIO_SYNC_ON_START", true)
	if err != nil {
		log.Errorf(err, "invalid MINIO_SYNC_ON_START")
		return nil, err
	}

	return &MinIOCfg{
		MinioEndpoint:     endpoint,
		BucketName:        bucket,
		Prefix:            getEnv("MINIO_PREFIX"),
		MinioRootUser:     getEnv("MINIO_ROOT_USER"),
		MinioRootPassword: getEnv("MINIO_ROOT_PASSWORD"),
		MinioUseSSL:       useSSL,
		SyncOnStart:       syncOnStart,
	}, nil
}

// loadKafkaCfg возвращает nil, если KAFKA_BROKERS не задан: события не публикуются.
func loadKafkaCfg() (*KafkaCfg, error) {
	const (
		defaultTopic             = "similarity-events"
		defaultPartitions        = 3
		defaultReplicationFactor = 1
		defaultNetworkMode       = "tcp"
	)

	brokers := splitList(getEnv("KAFKA_BROKERS"))
	if len(brokers) == 0 {
		return nil, nil
	}

	partitions, err := parseIntEnv("KAFKA_PARTITIONS", defaultPartitions)
	if err != nil {
		return nil, e.Wrap("KAFKA_PARTITIONS", err)
	}

	replicationFactor, err := parseIntEnv("REPLICATION_FACTOR", defaultReplicationFactor)
	if err != nil {
		return nil, e.Wrap("REPLICATION_FACTOR", err)
	}

	return &KafkaCfg{
		Brokers:           brokers,
		Topic:             getEnvOrDefault("KAFKA_TOPIC", defaultTopic),
		Partitions:        partitions,
		ReplicationFactor: replicationFactor,
		NetworkMode:       getEnvOrDefault("KAFKA_NETWORK_MODE", defaultNetworkMode),
	}, nil
}

func loadMLServiceCfg() (*MLServiceCfg, error) {
	const (
		defaultHost         = "ml-service"
		defaultPort         = "50051"
		defaultDimensions   = 512
		defaultModelVersion = "vgg16-avg"
		defaultMaxRetries   = 3
		defaultTimeout      = 30 * time.Second
	)

	dims, err := parseIntEnv("ML_VECTOR_SIZE", defaultDimensions)
	if err != nil {
		return nil, e.Wrap("ML_VECTOR_SIZE", err)
	}

	maxRetries, err := parseIntEnv("ML_MAX_RETRIES", defaultMaxRetries)
	if err != nil {
		return nil, e.Wrap("ML_MAX_RETRIES", err)
	}

	timeout, err := parseDurationEnv("ML_TIMEOUT", defaultTimeout)
	if err != nil {
		return nil, e.Wrap("ML_TIMEOUT", err)
	}

	host := getEnvOrDefault("ML_HOST", defaultHost)
	port := getEnvOrDefault("ML_PORT", defaultPort)

	return &MLServiceCfg{
		Addr:         host + ":" + port,
		Dimensions:   dims,
		ModelVersion: getEnvOrDefault("ML_MODEL_VERSION", defaultModelVersion),
		MaxRetries:   maxRetries,
		Timeout:      timeout,
	}, nil
}

// getEnv возвращает значение переменной окружения.
// Возвращает пустую строку, если переменная не задана.
func getEnv(key string) string {
	return os.Getenv(key)
}

// getEnvOrDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}

	return defaultValue
}

// parseDurationEnv считывает длительность или возвращает значение по умолчанию.
func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	if v := os.Getenv(key); v != "" {
		return time.ParseDuration(v)
	}

	return defaultValue, nil
}

func parseIntEnv(key string, defaultValue int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}

	intValue, err := strconv.Atoi(v)
	if err != nil {
		return defaultValue, e.ErrIncorrectEnvVariable
	}

	return intValue, nil
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}

	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultValue, e.ErrIncorrectEnvVariable
	}

	return b, nil
}

// splitList разбивает список через запятую, отбрасывая пустые элементы.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
