// Package app construye el grafo de dependencias del proceso a partir de la configuración.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/thejerf/suture/v4"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	analyticsApp "github.com/davicafu/placementlab/internal/analytics/application"
	analyticsDomain "github.com/davicafu/placementlab/internal/analytics/domain"
	analyticsEvents "github.com/davicafu/placementlab/internal/analytics/infra/inbound/events"
	analyticsHttp "github.com/davicafu/placementlab/internal/analytics/infra/inbound/http"
	analyticsClickHouse "github.com/davicafu/placementlab/internal/analytics/infra/outbound/clickhouse"
	analyticsMemory "github.com/davicafu/placementlab/internal/analytics/infra/outbound/memory"
	campaignApp "github.com/davicafu/placementlab/internal/campaign/application"
	campaignDomain "github.com/davicafu/placementlab/internal/campaign/domain"
	campaignHttp "github.com/davicafu/placementlab/internal/campaign/infra/inbound/http"
	campaignDB "github.com/davicafu/placementlab/internal/campaign/infra/outbound/db"
	"github.com/davicafu/placementlab/internal/config"
	notificationApp "github.com/davicafu/placementlab/internal/notification/application"
	notificationDomain "github.com/davicafu/placementlab/internal/notification/domain"
	notificationEvents "github.com/davicafu/placementlab/internal/notification/infra/inbound/events"
	notificationHttp "github.com/davicafu/placementlab/internal/notification/infra/inbound/http"
	notificationMemory "github.com/davicafu/placementlab/internal/notification/infra/outbound/memory"
	notificationMongo "github.com/davicafu/placementlab/internal/notification/infra/outbound/mongodb"
	placementApp "github.com/davicafu/placementlab/internal/placement/application"
	placementDomain "github.com/davicafu/placementlab/internal/placement/domain"
	placementEvents "github.com/davicafu/placementlab/internal/placement/infra/inbound/events"
	placementHttp "github.com/davicafu/placementlab/internal/placement/infra/inbound/http"
	placementDB "github.com/davicafu/placementlab/internal/placement/infra/outbound/db"
	"github.com/davicafu/placementlab/internal/placement/infra/outbound/readers"
	sharedDomain "github.com/davicafu/placementlab/internal/shared/domain"
	"github.com/davicafu/placementlab/internal/shared/domain/events"
	"github.com/davicafu/placementlab/internal/shared/infra/dispatcher"
	infraEvents "github.com/davicafu/placementlab/internal/shared/infra/events"
	"github.com/davicafu/placementlab/internal/shared/infra/idempotency"
	sharedHttp "github.com/davicafu/placementlab/internal/shared/infra/inbound/http"
	sharedBus "github.com/davicafu/placementlab/internal/shared/infra/platform/bus"
	sharedCache "github.com/davicafu/placementlab/internal/shared/infra/platform/cache"
	"github.com/davicafu/placementlab/internal/shared/infra/platform/persistence"
	"github.com/davicafu/placementlab/internal/shared/infra/platform/storage"
	"github.com/davicafu/placementlab/internal/shared/infra/queue"
	"github.com/davicafu/placementlab/internal/shared/infra/relayer"
	"github.com/davicafu/placementlab/internal/shared/infra/worker"
	videoApp "github.com/davicafu/placementlab/internal/video/application"
	videoDomain "github.com/davicafu/placementlab/internal/video/domain"
	videoEvents "github.com/davicafu/placementlab/internal/video/infra/inbound/events"
	videoHttp "github.com/davicafu/placementlab/internal/video/infra/inbound/http"
	videoDB "github.com/davicafu/placementlab/internal/video/infra/outbound/db"
)

// ErrUnknownQueue se devuelve al pedir un worker para una cola inexistente.
var ErrUnknownQueue = errors.New("unknown queue")

// Container agrupa los adaptadores y servicios de un proceso.
type Container struct {
	Config *config.Config
	Log    *zap.Logger

	DB          *persistence.DB
	Queue       *queue.SQLQueue
	Outbox      *persistence.OutboxRepo
	EventLog    *persistence.EventLogRepo
	Idempotency idempotency.Store
	Cache       sharedCache.Cache
	Files       placementDomain.FileStorage
	Registry    events.Registry
	Routes      dispatcher.RoutingTable

	Bus        sharedBus.EventBus
	Dispatcher *dispatcher.Dispatcher
	Relayer    *relayer.Worker

	Videos        *videoApp.VideoService
	Campaigns     *campaignApp.CampaignService
	Placements    *placementApp.PlacementService
	Notifications *notificationApp.NotificationService
	Analytics     *analyticsApp.AnalyticsService

	busConsumer suture.Service
	closers     []func() error
}

// NewEventRegistry une los registros de cada agregado.
func NewEventRegistry() events.Registry {
	return events.Merge(
		placementDomain.NewEventRegistry(),
		campaignDomain.NewEventRegistry(),
		videoDomain.NewEventRegistry(),
	)
}

// New abre las conexiones y construye los servicios. Las dependencias opcionales
// (Redis, Mongo, ClickHouse, S3) caen a su variante local cuando no están configuradas.
func New(ctx context.Context, cfg *config.Config, log *zap.Logger) (*Container, error) {
	c := &Container{Config: cfg, Log: log, Registry: NewEventRegistry(), Routes: dispatcher.DefaultRoutes()}
	if err := c.build(ctx); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

func (c *Container) build(ctx context.Context) error {
	cfg, log := c.Config, c.Log

	// ---------------- DB ----------------
	db, err := persistence.Open(ctx, cfg.DBDriver, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	c.DB = db
	c.onClose(db.Close)
	if cfg.AutoMigrate {
		if err := persistence.Migrate(db); err != nil {
			return err
		}
	}
	c.Queue = queue.NewSQLQueue(db)
	c.Outbox = persistence.NewOutboxRepo(db)
	c.EventLog = persistence.NewEventLogRepo(db)

	// ---------------- Cache / idempotencia ----------------
	rdb := c.connectRedis(ctx)
	if rdb != nil {
		c.Cache = sharedCache.NewRedisCache(rdb, "placementlab:")
	} else {
		ttl := cfg.CacheTTL
		if ttl <= 0 {
			ttl = 5 * time.Minute
		}
		mem := sharedCache.NewInMemoryCache(ttl, 3*ttl)
		c.onClose(func() error { mem.Stop(); return nil })
		c.Cache = mem
	}
	if cfg.IdempotencyBackend == "redis" && rdb != nil {
		c.Idempotency = idempotency.NewRedisStore(rdb, cfg.IdempotencyRetention)
	} else {
		c.Idempotency = idempotency.NewSQLStore(db, cfg.IdempotencyRetention)
	}
	guard := idempotency.NewGuard(c.Idempotency, cfg.IdempotencyLease, log)

	// ---------------- Ficheros ----------------
	if c.Files, err = c.openStorage(ctx); err != nil {
		return err
	}

	// ---------------- Bus ----------------
	c.Dispatcher = dispatcher.NewDispatcher(c.Routes, c.Queue, log)
	if err := c.openBus(); err != nil {
		return err
	}
	c.Relayer = relayer.NewOutboxWorker(c.Outbox, c.Bus, c.Registry, relayer.Config{
		Interval:  cfg.OutboxPeriod,
		BatchSize: cfg.OutboxLimit,
		Lease:     cfg.OutboxLease,
		Retention: cfg.OutboxRetention,
	}, log.Named("relayer"))

	tier, err := cfg.Tier()
	if err != nil {
		return err
	}
	policy := sharedDomain.CommandPolicy{Tier: tier, Notifier: c.Relayer}

	// ---------------- Servicios ----------------
	c.Videos = videoApp.NewVideoService(videoDB.NewVideoRepoSQL(db), videoDB.NewValidationSourceSQL(db), c.Cache, guard, policy, log)
	c.Campaigns = campaignApp.NewCampaignService(campaignDB.NewCampaignRepoSQL(db), guard, policy, log)
	c.Placements = placementApp.NewPlacementService(
		placementDB.NewPlacementRepoSQL(db),
		readers.NewVideoReader(c.Videos),
		readers.NewCampaignReader(c.Campaigns),
		c.Files,
		c.Cache,
		guard,
		policy,
		cfg.FileURLTTL,
		log,
	)

	notifications, err := c.openNotifications(ctx)
	if err != nil {
		return err
	}
	c.Notifications = notificationApp.NewNotificationService(notifications, log)

	sink, err := c.openAnalytics(ctx)
	if err != nil {
		return err
	}
	c.Analytics = analyticsApp.NewAnalyticsService(sink, log)
	return nil
}

func (c *Container) connectRedis(ctx context.Context) *redis.Client {
	if c.Config.RedisAddr == "" {
		return nil
	}
	rdb := redis.NewClient(&redis.Options{Addr: c.Config.RedisAddr})
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		c.Log.Warn("⚠️ Redis no disponible, cache en memoria", zap.Error(err))
		rdb.Close()
		return nil
	}
	c.Log.Info("✅ Redis conectado, cache habilitado")
	c.onClose(rdb.Close)
	return rdb
}

func (c *Container) openStorage(ctx context.Context) (placementDomain.FileStorage, error) {
	if c.Config.S3Bucket != "" {
		c.Log.Info("🪣 Ficheros en S3", zap.String("bucket", c.Config.S3Bucket))
		return storage.NewS3Storage(ctx, c.Config.S3Bucket, c.Config.S3Region, c.Config.S3Endpoint)
	}
	return storage.NewFilesystemStorage(c.Config.StorageDir, c.Config.FileBaseURL)
}

func (c *Container) openBus() error {
	cfg, log := c.Config, c.Log
	switch cfg.EventBus {
	case config.BusKafka:
		log.Info("🚀 Usando Kafka como bus de eventos", zap.Strings("brokers", cfg.KafkaBrokers))
		publisher := infraEvents.NewKafkaPublisher(infraEvents.NewKafkaWriter(cfg.KafkaBrokers), log)
		c.onClose(publisher.Close)
		c.Bus = publisher

		reader := infraEvents.NewKafkaReader(cfg.KafkaBrokers, cfg.KafkaGroupID, events.Topics())
		adapter := infraEvents.NewConsumerAdapter(reader, c.Dispatcher, log)
		c.onClose(adapter.Close)
		c.busConsumer = adapter
	case config.BusNATS:
		log.Info("🚀 Usando NATS JetStream como bus de eventos", zap.String("url", cfg.NATSURL))
		bus, err := infraEvents.NewNATSBus(cfg.NATSURL, log)
		if err != nil {
			return err
		}
		c.onClose(bus.Close)
		c.Bus = bus
		c.busConsumer = bus.NewConsumer(cfg.KafkaGroupID, c.Dispatcher)
	default:
		log.Info("⚡️Usando bus de eventos en memoria")
		bus := infraEvents.NewInMemoryEventBus()
		bus.Subscribe(c.Dispatcher.Dispatch)
		c.Bus = bus
	}
	return nil
}

func (c *Container) openNotifications(ctx context.Context) (notificationDomain.NotificationRepository, error) {
	if c.Config.MongoURI == "" {
		return notificationMemory.NewNotificationRepoInMemory(), nil
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(c.Config.MongoURI))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	c.onClose(func() error { return client.Disconnect(context.Background()) })

	repo, err := notificationMongo.NewNotificationRepoMongoDB(ctx, client, c.Config.MongoDatabase)
	if err != nil {
		return nil, err
	}
	if err := repo.EnsureIndexes(ctx); err != nil {
		return nil, err
	}
	c.Log.Info("✅ MongoDB conectado para notificaciones")
	return repo, nil
}

func (c *Container) openAnalytics(ctx context.Context) (analyticsDomain.EventSink, error) {
	if c.Config.ClickHouseAddr == "" {
		return analyticsMemory.NewEventSinkInMemory(), nil
	}
	sink, err := analyticsClickHouse.NewEventSinkClickHouse(ctx, analyticsClickHouse.Options{
		Addr:     c.Config.ClickHouseAddr,
		Database: c.Config.ClickHouseDatabase,
		Username: c.Config.ClickHouseUser,
		Password: c.Config.ClickHousePassword,
	})
	if err != nil {
		return nil, err
	}
	c.onClose(sink.Close)
	if err := sink.InitSchema(ctx); err != nil {
		return nil, err
	}
	c.Log.Info("✅ ClickHouse conectado para analítica")
	return sink, nil
}

// Router monta la API HTTP completa.
func (c *Container) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), sharedHttp.CorrelationID(), sharedHttp.RequestLogger(c.Log))
	r.Use(sharedHttp.NewRateLimiter(c.Config.RateLimitRPS, c.Config.RateLimitBurst).Middleware())

	sharedHttp.RegisterPlatformRoutes(r, sharedHttp.NewPlatformHandler(c.EventLog, c.Queue, c.Log))
	placementHttp.RegisterPlacementRoutes(r, placementHttp.NewPlacementHandler(c.Placements))
	campaignHttp.RegisterCampaignRoutes(r, campaignHttp.NewCampaignHandler(c.Campaigns))
	videoHttp.RegisterVideoRoutes(r, videoHttp.NewVideoHandler(c.Videos))
	notificationHttp.RegisterNotificationRoutes(r, notificationHttp.NewNotificationHandler(c.Notifications))
	analyticsHttp.RegisterAnalyticsRoutes(r, analyticsHttp.NewAnalyticsHandler(c.Analytics))
	return r
}

// HTTPServer envuelve el router en un servicio supervisable.
func (c *Container) HTTPServer() *HTTPService {
	return NewHTTPService(&http.Server{
		Addr:              ":" + c.Config.HTTPPort,
		Handler:           c.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}, 10*time.Second, c.Log)
}

// Worker construye el runner de una cola con su processor y su hook de DLQ.
func (c *Container) Worker(q string) (*worker.Runner, error) {
	cfg := worker.Config{
		Queue:             q,
		BatchSize:         c.Config.WorkerBatchSize,
		PollInterval:      c.Config.WorkerPollInterval,
		VisibilityTimeout: c.Config.WorkerVisibility,
		MaxReceives:       c.Config.WorkerMaxReceives,
		RetryBaseDelay:    c.Config.WorkerRetryBase,
		RetryMaxDelay:     c.Config.WorkerRetryMaxDelay,
	}
	log := c.Log.Named("worker")

	switch q {
	case queue.FileGeneration:
		consumer := placementEvents.NewFileConsumer(c.Placements, log)
		return worker.NewRunner(cfg, c.Queue, c.Idempotency, c.Registry, consumer.Process, log).
			OnDeadLetter(consumer.OnDeadLetter), nil
	case queue.Validation:
		consumer := videoEvents.NewValidationConsumer(c.Videos, log)
		return worker.NewRunner(cfg, c.Queue, c.Idempotency, c.Registry, consumer.Process, log).
			OnDeadLetter(consumer.OnDeadLetter), nil
	case queue.Notification:
		consumer := notificationEvents.NewNotificationConsumer(c.Notifications, log)
		return worker.NewRunner(cfg, c.Queue, c.Idempotency, c.Registry, consumer.Process, log), nil
	case queue.Sync:
		consumer := analyticsEvents.NewSyncConsumer(c.Analytics, log)
		return worker.NewRunner(cfg, c.Queue, c.Idempotency, c.Registry, consumer.Process, log), nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownQueue, q)
}

// BusConsumer devuelve el consumidor del broker que alimenta al dispatcher.
// Con el bus en memoria el dispatcher está suscrito directamente y devuelve nil.
func (c *Container) BusConsumer() suture.Service {
	return c.busConsumer
}

// Sweeper purga las claves de idempotencia caducadas.
func (c *Container) Sweeper() *idempotency.Sweeper {
	return idempotency.NewSweeper(c.Idempotency, time.Hour, c.Log)
}

func (c *Container) onClose(fn func() error) {
	c.closers = append(c.closers, fn)
}

// Close libera las conexiones en orden inverso a su apertura.
func (c *Container) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}
