package di

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"

	"CreditIntel/internal/domain/models"
	domrepo "CreditIntel/internal/domain/repository"
	"CreditIntel/internal/handler/api"
	"CreditIntel/internal/handler/ws"
	internalrepo "CreditIntel/internal/repository"
	"CreditIntel/internal/scheduler"
	"CreditIntel/internal/service/ratelimit"
	"CreditIntel/internal/services/collector"
	"CreditIntel/internal/services/scoring"
	"CreditIntel/internal/usecase"
	"CreditIntel/pkg/cache"
	pkgch "CreditIntel/pkg/clickhouse"
	"CreditIntel/pkg/config"
	xhttp "CreditIntel/pkg/http"
	pkgkafka "CreditIntel/pkg/kafka"
	applogger "CreditIntel/pkg/logger"
	"CreditIntel/pkg/metrics"
	"CreditIntel/pkg/postgres"
	"CreditIntel/pkg/queue"
	"CreditIntel/pkg/server"
)

const (
	startupTimeout = 15 * time.Second
	cachePrefix    = "credit:"
	queuePrefix    = "credit:queue"
)

// ProvideLogger creates the application logger from config.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&cfg.Logger)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l, nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() domrepo.Metrics {
	return metrics.New(nil)
}

// ProvideClickHouseClient creates a ClickHouse client, or nil when disabled.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if !cfg.ClickHouse.Enabled {
		return nil, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithAddress(cfg.ClickHouse.Host, cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithPool(10, 5, 0),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, nil
}

// ProvideRedisClient connects to Redis, or returns nil when disabled.
func ProvideRedisClient(cfg *config.Config) (*redis.Client, error) {
	if !cfg.Redis.Enabled {
		return nil, nil
	}
	rc := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rc.Ping(ctx).Err(); err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rc, nil
}

// ProvideCache returns a memory+Redis layered cache when Redis is on, memory otherwise.
func ProvideCache(cfg *config.Config, rc *redis.Client) cache.Service {
	if rc != nil {
		return cache.NewLayeredCache(
			cache.NewRedisCacheFromClient(rc, cachePrefix),
			cache.WithLayeredMemorySize(cfg.Cache.MemoryMaxSize),
			cache.WithLayeredMemoryTTL(cfg.Cache.MemoryTTL),
		)
	}
	return cache.NewMemoryCache(
		cache.WithMemoryMaxSize(cfg.Cache.MemoryMaxSize),
		cache.WithMemoryCleanup(cfg.Cache.CleanupEvery),
	)
}

// ProvideCreditStore opens the settings/snapshot store selected by storage.type.
func ProvideCreditStore(cfg *config.Config) (domrepo.CreditStore, error) {
	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()

	if cfg.Storage.Type == "sqlite" {
		store, err := internalrepo.NewSQLiteCreditStore(ctx, cfg.Storage.SQLite.Path)
		if err != nil {
			return nil, fmt.Errorf("sqlite store: %w", err)
		}
		return store, nil
	}

	pg := cfg.Storage.Postgres
	pool, err := postgres.NewPool(ctx, postgres.Config{
		DSN:      pg.DSN,
		Host:     pg.Host,
		Port:     pg.Port,
		User:     pg.User,
		Password: pg.Password,
		Database: pg.Database,
		SSLMode:  pg.SSLMode,
		MaxConns: pg.MaxConns,
		MinConns: pg.MinConns,
	})
	if err != nil {
		return nil, fmt.Errorf("postgres pool: %w", err)
	}
	store, err := internalrepo.NewPostgresCreditStore(ctx, pool)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: %w", err)
	}
	return store, nil
}

// ProvideSnapshotHistory keeps the audit trail in ClickHouse when available,
// otherwise in the credit store itself.
func ProvideSnapshotHistory(cfg *config.Config, store domrepo.CreditStore, ch *pkgch.Client, l *applogger.Logger) (domrepo.SnapshotHistory, error) {
	if ch == nil || cfg.ClickHouse.HistoryDatabase == "" {
		return store, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()
	h, err := internalrepo.NewCHSnapshotHistory(ctx, ch, cfg.ClickHouse.HistoryDatabase)
	if err != nil {
		return nil, fmt.Errorf("clickhouse history: %w", err)
	}
	h.SetLogger(l)
	return h, nil
}

// ProvideSettingsStore puts the settings row behind the cache.
func ProvideSettingsStore(cfg *config.Config, store domrepo.CreditStore, c cache.Service, l *applogger.Logger) domrepo.SettingsStore {
	s := internalrepo.NewCachedSettingsStore(store, c, cfg.Cache.SettingsTTL)
	s.SetLogger(l)
	return s
}

// ProvideSignalSource selects the ERP signal collector.
func ProvideSignalSource(cfg *config.Config, ch *pkgch.Client, l *applogger.Logger) (domrepo.SignalSource, error) {
	if cfg.Collector.Type == "http" {
		clientOpts := []xhttp.ClientOption{xhttp.WithTimeout(cfg.Collector.Timeout)}
		if cfg.Collector.APIToken != "" {
			clientOpts = append(clientOpts, xhttp.WithHeader("Authorization", "Bearer "+cfg.Collector.APIToken))
		}
		return collector.NewHTTPCollector(
			cfg.Collector.BaseURL,
			cfg.Credit.WindowDays,
			cfg.Collector.Timeout,
			collector.WithRetries(cfg.Collector.MaxRetries),
			collector.WithClient(xhttp.NewClient(clientOpts...)),
			collector.WithLogger(l),
		), nil
	}
	if ch == nil {
		return nil, fmt.Errorf("clickhouse collector requires a clickhouse client")
	}
	c := internalrepo.NewCHSignalCollector(ch, cfg.Credit.WindowDays)
	c.SetLogger(l)
	return c, nil
}

// ProvideScoringEngine builds the engine from credit.engine coefficients.
func ProvideScoringEngine(cfg *config.Config) (*scoring.Engine, error) {
	e := cfg.Credit.Engine
	engine, err := scoring.NewEngine(scoring.WithPolicy(scoring.Policy{
		TrendThreshold:   e.TrendThreshold,
		NeutralScore:     e.NeutralScore,
		GrowthScale:      e.GrowthScale,
		PayGraceDays:     e.PayGraceDays,
		PayMaxDays:       e.PayMaxDays,
		MarginFloor:      e.MarginFloor,
		MarginTarget:     e.MarginTarget,
		AgingBestDays:    e.AgingBestDays,
		AgingWorstDays:   e.AgingWorstDays,
		RepaymentTarget:  e.RepaymentTarget,
		TenureCapMonths:  e.TenureCapMonths,
		LimitMultiplier:  e.LimitMultiplier,
		MinimumLimit:     e.MinimumLimit,
		LearningCeiling:  e.LearningCeiling,
		LearningFraction: e.LearningFraction,
		RoundTo:          e.RoundTo,
	}))
	if err != nil {
		return nil, fmt.Errorf("scoring engine: %w", err)
	}
	return engine, nil
}

func ProvideSettingsProvider(cfg *config.Config, store domrepo.SettingsStore, engine *scoring.Engine, l *applogger.Logger) *usecase.SettingsProvider {
	lc := cfg.Credit.Learning
	p := usecase.NewSettingsProvider(store, engine, models.LearningThresholds{
		MinOrders:       lc.MinOrders,
		MinTenureDays:   lc.MinTenureDays,
		MinRecentOrders: lc.MinRecentOrders,
	})
	p.SetLogger(l)
	return p
}

// ProvideKafkaProducer creates a Kafka producer, or nil when Kafka is disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithDelivery(cfg.Kafka.RequiredAcks, cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithBatching(cfg.Kafka.Producer.BatchSize, cfg.Kafka.Producer.BatchBytes, cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideKafkaConsumer creates the activity consumer, or nil when Kafka is disabled.
func ProvideKafkaConsumer(cfg *config.Config, l *applogger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
		pkgkafka.WithConsumerLogger(l),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.WithConsumerHook(pkgkafka.NewHookChain(pkgkafka.TraceHook{}, pkgkafka.RequireJSON()))
	return consumer, nil
}

func ProvideHub(cfg *config.Config, l *applogger.Logger) *ws.Hub {
	return ws.NewHub(ws.WithAllowedOrigins(cfg.Server.AllowedOrigins), ws.WithLogger(l))
}

// ProvideSnapshotPublisher fans snapshots out to WebSocket subscribers and,
// when enabled, the Kafka snapshot topic.
func ProvideSnapshotPublisher(cfg *config.Config, producer *pkgkafka.Producer, hub *ws.Hub) domrepo.SnapshotPublisher {
	pubs := internalrepo.MultiPublisher{hub}
	if producer != nil {
		pubs = append(pubs, internalrepo.NewKafkaSnapshotPublisher(producer, cfg.Kafka.SnapshotTopic))
	}
	return pubs
}

func ProvideCreditLimitService(
	cfg *config.Config,
	src domrepo.SignalSource,
	settings *usecase.SettingsProvider,
	engine *scoring.Engine,
	store domrepo.CreditStore,
	history domrepo.SnapshotHistory,
	pub domrepo.SnapshotPublisher,
	m domrepo.Metrics,
	l *applogger.Logger,
) *usecase.CreditLimitService {
	return usecase.NewCreditLimitService(src, settings, engine, engine, store,
		usecase.WithHistory(history),
		usecase.WithPublisher(pub),
		usecase.WithMetrics(m),
		usecase.WithTimeout(cfg.Credit.Timeout),
		usecase.WithServiceLogger(l),
	)
}

func ProvideBatchRecalculator(cfg *config.Config, svc *usecase.CreditLimitService, src domrepo.SignalSource, l *applogger.Logger) *usecase.BatchRecalculator {
	b := usecase.NewBatchRecalculator(svc, src, cfg.Credit.BatchWorkers, cfg.Scheduler.ActiveSince)
	b.SetLogger(l)
	return b
}

func ProvideRecalcJob(svc *usecase.CreditLimitService) *usecase.RecalcJob {
	return usecase.NewRecalcJob(svc)
}

// ProvideJobQueue runs recalculation jobs on Redis when available, in memory otherwise.
func ProvideJobQueue(cfg *config.Config, rc *redis.Client, job *usecase.RecalcJob, l *applogger.Logger) queue.Queue {
	qcfg := &queue.QueueConfig{
		Workers:    cfg.Queue.Workers,
		RetryLimit: cfg.Queue.MaxRetries,
		RetryDelay: cfg.Queue.RetryDelay,
	}
	if rc != nil {
		q := queue.NewRedisQueue(l, qcfg, rc, queue.WithKeyPrefix(queuePrefix))
		q.RegisterJob(job)
		return q
	}
	return queue.NewMemoryQueue(l, qcfg, job)
}

func ProvideRecalcDispatcher(q queue.Queue, batch *usecase.BatchRecalculator, l *applogger.Logger) *usecase.RecalcDispatcher {
	d := usecase.NewRecalcDispatcher(q, batch)
	d.SetLogger(l)
	return d
}

// ProvideScheduler arms the nightly sweep when scheduler.enabled is set.
func ProvideScheduler(cfg *config.Config, d *usecase.RecalcDispatcher, c cache.Service, l *applogger.Logger) (*scheduler.Scheduler, error) {
	s := scheduler.New(d, scheduler.WithLocker(c), scheduler.WithLogger(l))
	if !cfg.Scheduler.Enabled {
		return s, nil
	}
	if err := s.Register(cfg.Scheduler.Spec); err != nil {
		return nil, err
	}
	return s, nil
}

func ProvideActivityHandler(cfg *config.Config, svc *usecase.CreditLimitService, m domrepo.Metrics, l *applogger.Logger) *usecase.KafkaActivityHandler {
	h := usecase.NewKafkaActivityHandler(cfg.Kafka.ActivityTopic, svc, m)
	h.SetLogger(l)
	return h
}

// ProvideRateLimiter returns nil when rate limiting is disabled.
func ProvideRateLimiter(cfg *config.Config) *ratelimit.Limiter {
	if !cfg.RateLimit.Enabled {
		return nil
	}
	return ratelimit.New(cfg.RateLimit.Capacity, cfg.RateLimit.RefillPerSec)
}

// ProvideHTTPHandler groups the REST API and the WebSocket route.
func ProvideHTTPHandler(
	svc *usecase.CreditLimitService,
	settings *usecase.SettingsProvider,
	d *usecase.RecalcDispatcher,
	hub *ws.Hub,
	rl *ratelimit.Limiter,
	l *applogger.Logger,
) xhttp.Handler {
	h := api.NewCreditEchoHandler(l, svc, settings, d)
	if rl != nil {
		h.SetRateLimiter(rl)
	}
	return xhttp.Handlers{h, hub}
}

// ProvideHTTPServer creates the Echo server with /healthz probes per dependency.
func ProvideHTTPServer(cfg *config.Config, handler xhttp.Handler, store domrepo.CreditStore, ch *pkgch.Client, rc *redis.Client, l *applogger.Logger) *xhttp.Server {
	opts := []xhttp.ServerOption{
		xhttp.WithHost(cfg.Server.Host),
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithCORS(true, cfg.Server.AllowedOrigins...),
		xhttp.WithLogger(l),
		xhttp.WithHealthCheck("store", store.Health),
	}
	if cfg.Metrics.Enabled {
		opts = append(opts, xhttp.WithMetricsPath(cfg.Metrics.Path))
	} else {
		opts = append(opts, xhttp.WithMetricsPath(""))
	}
	if ch != nil {
		opts = append(opts, xhttp.WithHealthCheck("clickhouse", ch.Health))
	}
	if rc != nil {
		opts = append(opts, xhttp.WithHealthCheck("redis", func(ctx context.Context) error {
			return rc.Ping(ctx).Err()
		}))
	}
	return xhttp.NewServer(handler, opts...)
}

// ProvideApp creates the application server. Error logs are shipped to the
// log topic when Kafka is enabled.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	srv *xhttp.Server,
	consumer *pkgkafka.Consumer,
	kh *usecase.KafkaActivityHandler,
	q queue.Queue,
	sched *scheduler.Scheduler,
	hub *ws.Hub,
	producer *pkgkafka.Producer,
	store domrepo.CreditStore,
	ch *pkgch.Client,
	c cache.Service,
) *server.App {
	if producer != nil && cfg.Kafka.LogTopic != "" {
		l.AddCollector(&applogger.CollectionConfig{
			Topic:     cfg.Kafka.LogTopic,
			Publisher: producer,
		})
	}

	app := server.New(cfg, l, srv, consumer, kh, q, sched, hub)
	if ch != nil {
		app.AddCloser("clickhouse", ch)
	}
	app.AddCloser("credit store", store)
	if closer, ok := c.(io.Closer); ok {
		app.AddCloser("cache", closer)
	}
	if producer != nil {
		app.AddCloser("kafka producer", producer)
	}
	return app
}
