package app

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/DRSN-tech/style-recommender/db"
	config "github.com/DRSN-tech/style-recommender/internal/cfg"
	v1Http "github.com/DRSN-tech/style-recommender/internal/delivery/v1/http"
	"github.com/DRSN-tech/style-recommender/internal/infrastructure/images"
	"github.com/DRSN-tech/style-recommender/internal/infrastructure/kafka"
	ml_service "github.com/DRSN-tech/style-recommender/internal/infrastructure/ml-service"
	s3Repo "github.com/DRSN-tech/style-recommender/internal/repository/minio"
	"github.com/DRSN-tech/style-recommender/internal/repository/pgdb"
	pgdbConv "github.com/DRSN-tech/style-recommender/internal/repository/pgdb/converter"
	qdrantRepo "github.com/DRSN-tech/style-recommender/internal/repository/qdrant"
	"github.com/DRSN-tech/style-recommender/internal/repository/redis"
	"github.com/DRSN-tech/style-recommender/internal/usecase"
	"github.com/DRSN-tech/style-recommender/pkg/closer"
	"github.com/DRSN-tech/style-recommender/pkg/clients"
	"github.com/DRSN-tech/style-recommender/pkg/e"
	"github.com/DRSN-tech/style-recommender/pkg/logger"
	"github.com/DRSN-tech/style-recommender/pkg/postgres"
	"github.com/go-chi/chi/v5"
	"github.com/jimlawless/whereami"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

const (
	startupTimeout  = 10 * time.Second
	shutdownTimeout = 10 * time.Second
)

// App собирает клиенты, репозитории и use case один раз при старте. Ресурсы закрываются через Close.
type App struct {
	cfg    *config.Config
	logger logger.Logger
	closer *closer.Closer

	Catalog   *usecase.CatalogUseCase
	Ingest    *usecase.IngestUseCase
	Recommend *usecase.RecommendUseCase

	outboxWorker *kafka.OutboxWorker
}

func NewApp(cfg *config.Config, logger logger.Logger) (*App, error) {
	a := &App{
		cfg:    cfg,
		logger: logger,
		closer: closer.NewCloser(0),
	}

	if err := a.init(); err != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if cerr := a.Close(ctx); cerr != nil {
			logger.Warnf("cleanup after failed start: %v", cerr)
		}
		return nil, err
	}

	return a, nil
}

func (a *App) init() error {
	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()

	points, err := a.initQdrant(ctx)
	if err != nil {
		return err
	}

	embedder, err := a.initEmbedder()
	if err != nil {
		return err
	}

	locker, err := a.initLocker(ctx)
	if err != nil {
		return err
	}

	pg, err := a.initPGDB(ctx)
	if err != nil {
		return err
	}

	ledger := pgdb.NewLedgerRepo(pg.Pool, pgdbConv.IngestedImageConverter{}, a.cfg.Qdrant.QdrantCollectionName)
	outboxRepo := pgdb.NewOutboxEventRepo(pg.Pool, pgdbConv.OutboxEventConverter{})

	// Без Kafka события некому пересылать, поэтому outbox не пишется
	var outbox usecase.OutboxRepository
	if a.cfg.Kafka.Enabled {
		outbox = outboxRepo
		a.initOutboxWorker(outboxRepo, pg.Dsn)
	}

	a.Catalog = usecase.NewCatalogUC(points, locker, a.cfg.Qdrant.ScrollPageSize, a.logger)

	a.Ingest = usecase.NewIngestUC(
		embedder,
		points,
		a.Catalog,
		locker,
		ledger,
		outbox,
		postgres.NewTxManager(pg.Pool),
		usecase.IngestSettings{
			EmbedBatch: a.cfg.Ingest.EmbedBatch,
			VectorSize: a.cfg.Qdrant.VectorSize,
			Dataset:    a.cfg.Dataset.Source,
			Upload: usecase.UploadOptions{
				BatchSize:  a.cfg.Ingest.UploadBatch,
				Parallel:   a.cfg.Ingest.ParallelUploads,
				MaxRetries: a.cfg.Ingest.MaxRetries,
			},
		},
		a.logger,
	)

	a.Recommend = usecase.NewRecommendUC(
		points,
		embedder,
		a.Catalog,
		usecase.EmptyPolicy(a.cfg.Recommend.EmptyPolicy),
		a.logger,
	)

	return nil
}

func (a *App) initQdrant(ctx context.Context) (*qdrantRepo.PointRepo, error) {
	qdrantClient, err := clients.NewQdrantClient(a.cfg.Qdrant)
	if err != nil {
		a.logger.Errorf(err, "failed to initialize qdrant")
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	a.closer.Add("qdrant", func(context.Context) error { return qdrantClient.Close() })

	if err := clients.EnsureCollection(ctx, qdrantClient.Client, a.cfg.Qdrant); err != nil {
		a.logger.Errorf(err, "failed to ensure qdrant collection %s", a.cfg.Qdrant.QdrantCollectionName)
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return qdrantRepo.NewPointRepo(qdrantClient.Client, a.cfg.Qdrant, a.logger), nil
}

func (a *App) initEmbedder() (*ml_service.MLService, error) {
	// Пути s3://bucket/key читаются из MinIO, если он настроен
	var objects images.ObjectReader
	if a.cfg.Minio.Enabled {
		minioClient, err := clients.NewMinIOClient(a.cfg.Minio)
		if err != nil {
			a.logger.Errorf(err, "failed to initialize minio client")
			return nil, e.Wrap(whereami.WhereAmI(), err)
		}
		objects = s3Repo.NewImageRepo(minioClient)
	}

	conn, err := grpc.NewClient(
		a.cfg.Ml.Addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()), // сервис эмбеддингов работает без TLS внутри сети
	)
	if err != nil {
		a.logger.Errorf(err, "failed to initialize grpc client")
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	a.closer.Add("ml-service grpc", func(context.Context) error { return conn.Close() })

	loader := images.NewLoader(objects, a.cfg.Ml.MaxConcurrentReads)
	return ml_service.NewMLService(conn, loader, a.cfg.Ml, a.logger), nil
}

func (a *App) initLocker(ctx context.Context) (usecase.CollectionLocker, error) {
	if a.cfg.Lock.Backend != "redis" {
		return usecase.NewLocalLocker(), nil
	}

	redisClient := clients.NewRedisClient(a.cfg.Redis)
	a.closer.Add("redis", func(context.Context) error { return redisClient.Close() })

	if err := redisClient.Ping(ctx); err != nil {
		a.logger.Errorf(err, "failed to connect to redis")
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return redis.NewCollectionLocker(redisClient.Client, a.cfg.Lock.TTL, a.logger), nil
}

func (a *App) initPGDB(ctx context.Context) (*postgres.PgDatabase, error) {
	pg, err := postgres.Connect(ctx, a.cfg.Db)
	if err != nil {
		a.logger.Errorf(err, "failed to connect to database")
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	a.closer.AddFunc("postgres", pg.Close)

	if err := pg.RunMigrations(db.Migrations, a.logger); err != nil {
		a.logger.Errorf(err, "failed to run migrations")
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	if err := pg.Ping(ctx); err != nil {
		a.logger.Errorf(err, "failed to ping database")
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return pg, nil
}

func (a *App) initOutboxWorker(repo usecase.OutboxRepository, dsn string) {
	producer := kafka.NewProducer(a.logger, a.cfg.Kafka)
	a.closer.Add("kafka producer", func(context.Context) error { return producer.Close() })

	if err := producer.EnsureTopic(startupTimeout); err != nil {
		a.logger.Warnf("kafka topic %s not ensured, relying on broker auto-creation: %v", a.cfg.Kafka.Topic, err)
	}

	a.outboxWorker = kafka.NewOutboxWorker(
		repo,
		a.logger,
		producer,
		dsn,
		pgdb.OutboxChannel,
		a.cfg.Kafka.PollInterval,
		a.cfg.Kafka.BatchSize,
	)
}

// Close освобождает ресурсы в порядке, обратном созданию.
func (a *App) Close(ctx context.Context) error {
	return a.closer.Close(ctx)
}

// Run запускает HTTP API и пересылку outbox, затем ждёт сигнала остановки или ошибки сервера.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if a.outboxWorker != nil {
		a.outboxWorker.Start(ctx)
		a.closer.AddFunc("outbox worker", a.outboxWorker.Stop)
	}

	snap := a.Catalog.Refresh(ctx)
	if snap.Degraded() {
		a.logger.Warnf("initial catalog snapshot is degraded: %v", snap.Cause)
	} else {
		a.logger.Infof("catalog loaded: %d images", snap.Count)
	}

	r := chi.NewRouter()
	router := v1Http.NewRouter(r, a.logger, a.cfg.Http.RateLimit)
	router.Init(a.Ingest, a.Catalog, a.Recommend)

	httpSrv := v1Http.NewServer(r, a.cfg.Http)
	a.closer.Add("http server", httpSrv.Stop)

	errCh := make(chan error, 1)
	go func() {
		a.logger.Infof("HTTP server started on port %s", a.cfg.Http.Port)
		if err := httpSrv.Run(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Errorf(err, "HTTP server failed")
			errCh <- err
		}
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	var appErr error
	select {
	case appErr = <-errCh:
		a.logger.Errorf(appErr, "HTTP server fatal error")
	case <-shutdown:
		a.logger.Infof("Received shutdown signal, stopping gracefully...")
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := a.Close(shutdownCtx); err != nil {
		a.logger.Errorf(err, "shutdown finished with errors")
	}

	a.logger.Infof("Application shutdown complete")
	return appErr
}
