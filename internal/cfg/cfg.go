package cfg

import (
	"fmt"
	"net/url"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/DRSN-tech/style-recommender/pkg/e"
	"github.com/DRSN-tech/style-recommender/pkg/logger"
	"github.com/jimlawless/whereami"
)

type Config struct {
	Qdrant    *QdrantCfg
	Ml        *MLServiceCfg
	Ingest    *IngestCfg
	Dataset   *DatasetCfg
	Recommend *RecommendCfg
	Lock      *LockCfg
	Http      *HTTPConfig
	Db        *PGDBCfg
	Redis     *RedisCfg
	Minio     *MinIOCfg
	Kafka     *KafkaCfg
}

type QdrantCfg struct {
	Host                 string
	Port                 int
	ApiKey               string
	QdrantCollectionName string // имя коллекции в Qdrant
	UseTLS               bool
	VectorSize           uint64
	ScrollPageSize       uint32 // размер страницы при обходе коллекции через scroll
}

type MLServiceCfg struct {
	Addr               string
	Model              string // идентификатор модели эмбеддингов, например Qdrant/resnet50-onnx
	MaxConcurrentReads int    // сколько изображений читается с диска/MinIO одновременно
	BreakerFailures    uint32 // подряд идущих ошибок до размыкания breaker
	BreakerTimeout     time.Duration
}

type IngestCfg struct {
	EmbedBatch      int // размер чанка для одного вызова модели
	UploadBatch     int // размер батча одной загрузки в Qdrant
	ParallelUploads int // одновременных загрузок батчей внутри чанка
	MaxRetries      int // попыток на батч загрузки
}

type DatasetCfg struct {
	DataPath string
	Source   string // идентификатор исходного датасета (KAGGLE_REPO)
	Includes []string
	Excludes []string
}

// EmptyPreferencePolicy определяет ответ на запрос рекомендаций без лайков и дизлайков.
type EmptyPreferencePolicy string

const (
	EmptyPolicyCatalog EmptyPreferencePolicy = "catalog" // первые limit записей каталога
	EmptyPolicyEmpty   EmptyPreferencePolicy = "empty"   // пустой результат
)

type RecommendCfg struct {
	EmptyPolicy EmptyPreferencePolicy
}

type LockCfg struct {
	Backend string // local или redis
	TTL     time.Duration
}

type HTTPConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	RateLimit    int // запросов в минуту с одного IP, 0 — без ограничения
}

type PGDBCfg struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// DSN возвращает строку подключения к PostgreSQL.
func (c *PGDBCfg) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

type RedisCfg struct {
	Addr        string
	Password    string
	User        string
	DB          int
	MaxRetries  int
	DialTimeout time.Duration
	Timeout     time.Duration
}

type MinIOCfg struct {
	Enabled           bool
	MinioEndpoint     string // Адрес конечной точки Minio
	MinioRootUser     string // Имя пользователя для доступа к Minio
	MinioRootPassword string // Пароль для доступа к Minio
	MinioUseSSL       bool
}

type KafkaCfg struct {
	Enabled           bool
	Topic             string
	Brokers           []string
	Partitions        int
	ReplicationFactor int
	PollInterval      time.Duration // период опроса outbox
	BatchSize         int
}

// Load безопасно загружает конфигурацию и возвращает ошибку в случае неудачи.
func Load(log logger.Logger) (*Config, error) {
	qdrant, err := loadQdrantCfg(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	ml, err := loadMLServiceCfg(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	ingest, err := loadIngestCfg(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	recommend, err := loadRecommendCfg()
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	lock, err := loadLockCfg(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	http, err := loadHTTPConfig(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	db, err := loadPGDBCfg(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	redis, err := loadRedisCfg(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	minio, err := loadMinIOCfg(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	kafka, err := loadKafkaCfg(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return &Config{
		Qdrant:    qdrant,
		Ml:        ml,
		Ingest:    ingest,
		Dataset:   loadDatasetCfg(),
		Recommend: recommend,
		Lock:      lock,
		Http:      http,
		Db:        db,
		Redis:     redis,
		Minio:     minio,
		Kafka:     kafka,
	}, nil
}

func loadQdrantCfg(log logger.Logger) (*QdrantCfg, error) {
	const (
		defaultHost           = "localhost"
		defaultQdrantGRPCPort = 6334
		defaultUseTLS         = false
		defaultVectorSize     = 512
		defaultScrollPageSize = 256
	)

	collection := getEnv("QDRANT_COLLECTION_NAME")
	if collection == "" {
		err := e.Wrap("QDRANT_COLLECTION_NAME", e.ErrMissingEnvVariable)
		log.Errorf(err, "missing QDRANT_COLLECTION_NAME")
		return nil, err
	}

	host, port, useTLS := defaultHost, defaultQdrantGRPCPort, defaultUseTLS
	if rawURL := getEnv("QDRANT_URL"); rawURL != "" {
		var err error
		host, port, useTLS, err = parseQdrantURL(rawURL, defaultQdrantGRPCPort)
		if err != nil {
			log.Errorf(err, "invalid QDRANT_URL")
			return nil, err
		}
	} else {
		host = getEnvOrDefault("QDRANT_HOST", defaultHost)

		var err error
		port, err = parseIntEnv("QDRANT_GRPC_PORT", defaultQdrantGRPCPort)
		if err != nil {
			log.Errorf(err, "invalid QDRANT_GRPC_PORT")
			return nil, err
		}

		useTLS, err = strconv.ParseBool(getEnvOrDefault("QDRANT_USE_TLS", strconv.FormatBool(defaultUseTLS)))
		if err != nil {
			log.Errorf(err, "invalid QDRANT_USE_TLS")
			return nil, err
		}
	}

	vectorSize, err := strconv.ParseUint(getEnvOrDefault("VECTOR_SIZE", strconv.Itoa(defaultVectorSize)), 10, 64)
	if err != nil || vectorSize == 0 {
		err = e.Wrap("VECTOR_SIZE", e.ErrIncorrectEnvVariable)
		log.Errorf(err, "invalid VECTOR_SIZE")
		return nil, err
	}

	pageSize, err := parseIntEnv("QDRANT_SCROLL_PAGE", defaultScrollPageSize)
	if err != nil || pageSize <= 0 {
		err = e.Wrap("QDRANT_SCROLL_PAGE", e.ErrIncorrectEnvVariable)
		log.Errorf(err, "invalid QDRANT_SCROLL_PAGE")
		return nil, err
	}

	return &QdrantCfg{
		Host:                 host,
		Port:                 port,
		ApiKey:               getEnv("QDRANT_API_KEY"),
		QdrantCollectionName: collection,
		UseTLS:               useTLS,
		VectorSize:           vectorSize,
		ScrollPageSize:       uint32(pageSize),
	}, nil
}

// parseQdrantURL разбирает адрес вида https://host:6334. Схема https включает TLS,
// без порта используется gRPC-порт по умолчанию.
func parseQdrantURL(raw string, defaultPort int) (string, int, bool, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", 0, false, e.Wrap("QDRANT_URL", err)
	}

	var useTLS bool
	switch u.Scheme {
	case "https":
		useTLS = true
	case "http":
	default:
		return "", 0, false, e.Wrap("QDRANT_URL scheme "+u.Scheme, e.ErrIncorrectEnvVariable)
	}

	host := u.Hostname()
	if host == "" {
		return "", 0, false, e.Wrap("QDRANT_URL host", e.ErrIncorrectEnvVariable)
	}

	port := defaultPort
	if p := u.Port(); p != "" {
		port, err = strconv.Atoi(p)
		if err != nil {
			return "", 0, false, e.Wrap("QDRANT_URL port", e.ErrIncorrectEnvVariable)
		}
	}

	return host, port, useTLS, nil
}

func loadMLServiceCfg(log logger.Logger) (*MLServiceCfg, error) {
	const (
		defaultHost               = "ml-service"
		defaultPort               = "50051"
		defaultModel              = "Qdrant/resnet50-onnx"
		defaultMaxConcurrentReads = 8
		defaultBreakerFailures    = 5
		defaultBreakerTimeout     = 30 * time.Second
	)

	host := getEnvOrDefault("ML_HOST", defaultHost)
	port := getEnvOrDefault("ML_PORT", defaultPort)

	maxReads, err := parseIntEnv("ML_MAX_CONCURRENT_READS", defaultMaxConcurrentReads)
	if err != nil || maxReads <= 0 {
		err = e.Wrap("ML_MAX_CONCURRENT_READS", e.ErrIncorrectEnvVariable)
		log.Errorf(err, "invalid ML_MAX_CONCURRENT_READS")
		return nil, err
	}

	failures, err := parseIntEnv("ML_BREAKER_FAILURES", defaultBreakerFailures)
	if err != nil || failures <= 0 {
		err = e.Wrap("ML_BREAKER_FAILURES", e.ErrIncorrectEnvVariable)
		log.Errorf(err, "invalid ML_BREAKER_FAILURES")
		return nil, err
	}

	breakerTimeout, err := parseDurationEnv("ML_BREAKER_TIMEOUT", defaultBreakerTimeout)
	if err != nil {
		log.Errorf(err, "invalid ML_BREAKER_TIMEOUT")
		return nil, err
	}

	return &MLServiceCfg{
		Addr:               host + ":" + port,
		Model:              getEnvOrDefault("EMBEDDING_MODEL", defaultModel),
		MaxConcurrentReads: maxReads,
		BreakerFailures:    uint32(failures),
		BreakerTimeout:     breakerTimeout,
	}, nil
}

func loadIngestCfg(log logger.Logger) (*IngestCfg, error) {
	const (
		defaultEmbedBatch  = 64
		defaultUploadBatch = 32
		defaultMaxRetries  = 3
	)

	embedBatch, err := parseIntEnv("EMBED_BATCH", defaultEmbedBatch)
	if err != nil || embedBatch <= 0 {
		err = e.Wrap("EMBED_BATCH", e.ErrIncorrectEnvVariable)
		log.Errorf(err, "invalid EMBED_BATCH")
		return nil, err
	}

	uploadBatch, err := parseIntEnv("UPLOAD_BATCH", defaultUploadBatch)
	if err != nil || uploadBatch <= 0 {
		err = e.Wrap("UPLOAD_BATCH", e.ErrIncorrectEnvVariable)
		log.Errorf(err, "invalid UPLOAD_BATCH")
		return nil, err
	}

	parallelism, err := parseIntEnv("INGEST_PARALLELISM", runtime.NumCPU())
	if err != nil {
		log.Errorf(err, "invalid INGEST_PARALLELISM")
		return nil, err
	}

	maxRetries, err := parseIntEnv("UPLOAD_MAX_RETRIES", defaultMaxRetries)
	if err != nil || maxRetries <= 0 {
		err = e.Wrap("UPLOAD_MAX_RETRIES", e.ErrIncorrectEnvVariable)
		log.Errorf(err, "invalid UPLOAD_MAX_RETRIES")
		return nil, err
	}

	return &IngestCfg{
		EmbedBatch:      embedBatch,
		UploadBatch:     uploadBatch,
		ParallelUploads: ParallelUploads(parallelism),
		MaxRetries:      maxRetries,
	}, nil
}

// ParallelUploads возвращает число параллельных загрузок: parallelism-1, но не меньше 1.
func ParallelUploads(parallelism int) int {
	if parallelism-1 < 1 {
		return 1
	}
	return parallelism - 1
}

func loadDatasetCfg() *DatasetCfg {
	const defaultIncludes = "**/*.jpg,**/*.jpeg,**/*.png,**/*.webp"

	return &DatasetCfg{
		DataPath: getEnv("DATA_PATH"),
		Source:   getEnv("KAGGLE_REPO"),
		Includes: splitList(getEnvOrDefault("DATASET_INCLUDE", defaultIncludes)),
		Excludes: splitList(getEnv("DATASET_EXCLUDE")),
	}
}

func loadRecommendCfg() (*RecommendCfg, error) {
	policy := EmptyPreferencePolicy(strings.ToLower(getEnvOrDefault("RECOMMEND_EMPTY_POLICY", string(EmptyPolicyCatalog))))
	switch policy {
	case EmptyPolicyCatalog, EmptyPolicyEmpty:
	default:
		return nil, e.Wrap("RECOMMEND_EMPTY_POLICY", e.ErrIncorrectEnvVariable)
	}

	return &RecommendCfg{EmptyPolicy: policy}, nil
}

func loadLockCfg(log logger.Logger) (*LockCfg, error) {
	const (
		defaultBackend = "local"
		defaultTTL     = 2 * time.Minute
	)

	backend := strings.ToLower(getEnvOrDefault("LOCK_BACKEND", defaultBackend))
	if backend != "local" && backend != "redis" {
		err := e.Wrap("LOCK_BACKEND", e.ErrIncorrectEnvVariable)
		log.Errorf(err, "invalid LOCK_BACKEND")
		return nil, err
	}

	ttl, err := parseDurationEnv("LOCK_TTL", defaultTTL)
	if err != nil {
		log.Errorf(err, "invalid LOCK_TTL")
		return nil, err
	}

	return &LockCfg{Backend: backend, TTL: ttl}, nil
}

func loadHTTPConfig(log logger.Logger) (*HTTPConfig, error) {
	const (
		defaultPort         = "8080"
		defaultReadTimeout  = 5 * time.Second
		defaultWriteTimeout = 5 * time.Minute // загрузка изображений держит запрос до подтверждения всех чанков
		defaultIdleTimeout  = 60 * time.Second
		defaultRateLimit    = 120
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

	rateLimit, err := parseIntEnv("HTTP_RATE_LIMIT", defaultRateLimit)
	if err != nil {
		log.Errorf(err, "invalid HTTP_RATE_LIMIT")
		return nil, err
	}

	return &HTTPConfig{
		Port:         port,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
		RateLimit:    rateLimit,
	}, nil
}

func loadPGDBCfg(log logger.Logger) (*PGDBCfg, error) {
	const (
		defaultHost    = "localhost"
		defaultPort    = "5432"
		defaultSSLMode = "disable"
	)

	for _, key := range []string{"POSTGRES_USER", "POSTGRES_PASSWORD", "POSTGRES_DB"} {
		if getEnv(key) == "" {
			err := e.Wrap(key, e.ErrMissingEnvVariable)
			log.Errorf(err, "missing %s", key)
			return nil, err
		}
	}

	return &PGDBCfg{
		Host:     getEnvOrDefault("POSTGRES_HOST", defaultHost),
		Port:     getEnvOrDefault("POSTGRES_PORT", defaultPort),
		User:     getEnv("POSTGRES_USER"),
		Password: getEnv("POSTGRES_PASSWORD"),
		DBName:   getEnv("POSTGRES_DB"),
		SSLMode:  getEnvOrDefault("SSL_MODE", defaultSSLMode),
	}, nil
}

func loadRedisCfg(log logger.Logger) (*RedisCfg, error) {
	const (
		defaultAddr         = "localhost:6379"
		defaultDB           = 0
		defaultMaxRetries   = 3
		defaultDialTimeout  = 5 * time.Second
		defaultReadTimeout  = 3 * time.Second
		defaultWriteTimeout = 3 * time.Second
	)

	db, err := parseIntEnv("REDIS_DB_ID", defaultDB)
	if err != nil {
		log.Errorf(err, "invalid REDIS_DB_ID")
		return nil, err
	}

	maxRetries, err := parseIntEnv("REDIS_MAX_RETRIES", defaultMaxRetries)
	if err != nil {
		log.Errorf(err, "invalid REDIS_MAX_RETRIES")
		return nil, err
	}

	dialTimeout, err := parseDurationEnv("REDIS_DIAL_TIMEOUT", defaultDialTimeout)
	if err != nil {
		log.Errorf(err, "invalid REDIS_DIAL_TIMEOUT")
		return nil, err
	}

	readTimeout, err := parseDurationEnv("REDIS_READ_TIMEOUT", defaultReadTimeout)
	if err != nil {
		log.Errorf(err, "invalid REDIS_READ_TIMEOUT")
		return nil, err
	}

	writeTimeout, err := parseDurationEnv("REDIS_WRITE_TIMEOUT", defaultWriteTimeout)
	if err != nil {
		log.Errorf(err, "invalid REDIS_WRITE_TIMEOUT")
		return nil, err
	}

	timeout := readTimeout
	if writeTimeout > timeout {
		timeout = writeTimeout
	}

	return &RedisCfg{
		Addr:        getEnvOrDefault("REDIS_ADDR", defaultAddr),
		Password:    getEnv("REDIS_PASSWORD"),
		User:        getEnv("REDIS_USER"),
		DB:          db,
		MaxRetries:  maxRetries,
		DialTimeout: dialTimeout,
		Timeout:     timeout,
	}, nil
}

func loadMinIOCfg(log logger.Logger) (*MinIOCfg, error) {
	const defaultUseSSL = false

	useSSL, err := strconv.ParseBool(getEnvOrDefault("MINIO_USE_SSL", strconv.FormatBool(defaultUseSSL)))
	if err != nil {
		log.Errorf(err, "invalid MINIO_USE_SSL")
		return nil, err
	}

	endpoint := getEnv("MINIO_ENDPOINT")

	return &MinIOCfg{
		Enabled:           endpoint != "",
		MinioEndpoint:     endpoint,
		MinioRootUser:     getEnv("MINIO_ROOT_USER"),
		MinioRootPassword: getEnv("MINIO_ROOT_PASSWORD"),
		MinioUseSSL:       useSSL,
	}, nil
}

func loadKafkaCfg(log logger.Logger) (*KafkaCfg, error) {
	const (
		defaultTopic        = "images.ingested"
		defaultPollInterval = 2 * time.Second
		defaultBatchSize    = 10
		defaultPartitions   = 3
		defaultReplication  = 1
	)

	brokers := splitList(getEnv("KAFKA_BROKERS"))

	pollInterval, err := parseDurationEnv("OUTBOX_POLL_INTERVAL", defaultPollInterval)
	if err != nil {
		log.Errorf(err, "invalid OUTBOX_POLL_INTERVAL")
		return nil, err
	}

	batchSize, err := parseIntEnv("OUTBOX_BATCH_SIZE", defaultBatchSize)
	if err != nil || batchSize <= 0 {
		err = e.Wrap("OUTBOX_BATCH_SIZE", e.ErrIncorrectEnvVariable)
		log.Errorf(err, "invalid OUTBOX_BATCH_SIZE")
		return nil, err
	}

	partitions, err := parseIntEnv("KAFKA_PARTITIONS", defaultPartitions)
	if err != nil || partitions <= 0 {
		err = e.Wrap("KAFKA_PARTITIONS", e.ErrIncorrectEnvVariable)
		log.Errorf(err, "invalid KAFKA_PARTITIONS")
		return nil, err
	}

	replication, err := parseIntEnv("KAFKA_REPLICATION_FACTOR", defaultReplication)
	if err != nil || replication <= 0 {
		err = e.Wrap("KAFKA_REPLICATION_FACTOR", e.ErrIncorrectEnvVariable)
		log.Errorf(err, "invalid KAFKA_REPLICATION_FACTOR")
		return nil, err
	}

	return &KafkaCfg{
		Enabled:           len(brokers) > 0,
		Topic:             getEnvOrDefault("KAFKA_TOPIC", defaultTopic),
		Brokers:           brokers,
		Partitions:        partitions,
		ReplicationFactor: replication,
		PollInterval:      pollInterval,
		BatchSize:         batchSize,
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
		return defaultValue, e.Wrap(key, e.ErrIncorrectEnvVariable)
	}

	return intValue, nil
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
