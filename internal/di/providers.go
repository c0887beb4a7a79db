package di

import (
	"context"
	"fmt"
	"time"

	"FinSqueeze/internal/domain/repository"
	"FinSqueeze/internal/handler/api"
	"FinSqueeze/internal/middleware"
	internalrepo "FinSqueeze/internal/repository"
	svccache "FinSqueeze/internal/service/cache"
	"FinSqueeze/internal/service/finnhub"
	svcmetrics "FinSqueeze/internal/service/metrics"
	"FinSqueeze/internal/service/ratelimit"
	"FinSqueeze/internal/services/marketdata"
	"FinSqueeze/internal/services/squeeze"
	"FinSqueeze/internal/usecase"
	pkgcache "FinSqueeze/pkg/cache"
	pkgch "FinSqueeze/pkg/clickhouse"
	"FinSqueeze/pkg/config"
	xhttp "FinSqueeze/pkg/http"
	pkgkafka "FinSqueeze/pkg/kafka"
	applogger "FinSqueeze/pkg/logger"
	"FinSqueeze/pkg/metrics"
	"FinSqueeze/pkg/queue"
	"FinSqueeze/pkg/server"

	"github.com/labstack/echo/v4"
)

// ProvideLogger creates the application logger from the log section.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l, nil
}

// ProvideMetrics creates a Prometheus metrics recorder and registers engine collectors.
func ProvideMetrics() repository.Metrics {
	svcmetrics.Register()
	return metrics.New()
}

// ProvideClickHouseClient creates a ClickHouse client and the bar tables. Nil when disabled.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if !cfg.ClickHouse.Enabled {
		return nil, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(true),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.InitSchema(ctx, internalrepo.BarSchema(cfg.ClickHouse.Database)); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return client, nil
}

// ProvideBarStore prefers ClickHouse and falls back to the HTTP market-data service.
func ProvideBarStore(cfg *config.Config, ch *pkgch.Client, l *applogger.Logger) repository.BarStore {
	if ch != nil {
		return internalrepo.NewCHBarStore(ch, l)
	}
	return marketdata.New(cfg.MarketData.BaseURL, cfg.MarketData.APIKey, cfg.MarketData.Timeout)
}

// ProvideQuoteTracker creates the Finnhub websocket quote tracker. Nil when disabled.
func ProvideQuoteTracker(cfg *config.Config, m repository.Metrics, l *applogger.Logger) *finnhub.QuoteTracker {
	if !cfg.Finnhub.Enabled {
		return nil
	}
	return finnhub.New(
		cfg.Finnhub.APIKey,
		cfg.Finnhub.WebSocketURL,
		cfg.Finnhub.Symbols,
		finnhub.WithLogger(l),
		finnhub.WithMetrics(m),
		finnhub.WithIntervals(cfg.Finnhub.ReconnectDelay, cfg.Finnhub.PingInterval),
	)
}

// ProvideQuoteSource picks the live tracker, then the market-data service, else none.
func ProvideQuoteSource(cfg *config.Config, tracker *finnhub.QuoteTracker) repository.QuoteSource {
	if tracker != nil {
		return tracker
	}
	if cfg.MarketData.BaseURL != "" {
		return marketdata.New(cfg.MarketData.BaseURL, cfg.MarketData.APIKey, cfg.MarketData.Timeout)
	}
	return nil
}

// ProvideKafkaProducer creates a Kafka producer. Nil when disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatching(cfg.Kafka.Producer.BatchSize, cfg.Kafka.Producer.Linger),
		pkgkafka.WithWriteTimeout(cfg.Kafka.Producer.WriteTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithHashByKey(true),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideAnalysisPublisher publishes aggregate analyses to Kafka, or drops them.
func ProvideAnalysisPublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.AnalysisPublisher {
	if producer == nil {
		return internalrepo.NopPublisher{}
	}
	return internalrepo.NewKafkaAnalysisPublisher(producer, cfg.Kafka.AnalysisTopic)
}

// ProvideReportStorage creates the backtest audit table. Nil without ClickHouse.
func ProvideReportStorage(ch *pkgch.Client) (repository.ReportStorage, error) {
	if ch == nil {
		return nil, nil
	}
	storage := internalrepo.NewCHReportStorage(ch)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := storage.Init(ctx); err != nil {
		return nil, fmt.Errorf("report storage: %w", err)
	}
	return storage, nil
}

// ProvideRedisCache connects to Redis. Nil when disabled.
func ProvideRedisCache(cfg *config.Config) (*pkgcache.RedisCache, error) {
	if !cfg.Redis.Enabled {
		return nil, nil
	}
	rc, err := pkgcache.NewRedisCache(
		pkgcache.WithRedisHost(cfg.Redis.Host),
		pkgcache.WithRedisPort(cfg.Redis.Port),
		pkgcache.WithRedisPassword(cfg.Redis.Password),
		pkgcache.WithRedisDB(cfg.Redis.DB),
		pkgcache.WithRedisPrefix(cfg.Redis.Prefix),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return rc, nil
}

// ProvideCache layers memory over Redis; memory only when Redis is off.
func ProvideCache(rc *pkgcache.RedisCache) pkgcache.Service {
	return pkgcache.NewLayeredCache(rc,
		pkgcache.WithLayeredMemory(pkgcache.WithMemoryMaxSize(2000), pkgcache.WithMemoryCleanup(time.Minute)),
		pkgcache.WithLayeredL1TTL(30*time.Second),
	)
}

func ProvideAnalysisMemo(store pkgcache.Service, cfg *config.Config) *svccache.AnalysisMemo {
	return svccache.NewAnalysisMemo(store, cfg.Engine.MemoTTL)
}

// ProvideAggregator builds the multi-timeframe aggregator from the configured sources.
func ProvideAggregator(cfg *config.Config, store repository.BarStore, l *applogger.Logger) *squeeze.Aggregator {
	sources := make([]squeeze.TimeframeSource, 0, len(cfg.Engine.Sources))
	for _, s := range cfg.Engine.Sources {
		sources = append(sources, squeeze.TimeframeSource{
			Timeframe: repository.NormalizeTimeframe(s.Timeframe),
			Group:     s.Group,
			Offset:    s.Offset,
			Length:    s.Length,
			Native:    s.Native,
		})
	}
	return squeeze.NewAggregator(squeeze.NewClassifier(),
		squeeze.WithSources(sources),
		squeeze.WithBarStore(store),
		squeeze.WithLogger(l),
	)
}

func ProvideBarsUseCase(store repository.BarStore) *usecase.BarsUseCase {
	return usecase.NewBarsUseCase(store)
}

func ProvideEngineUseCase(bars *usecase.BarsUseCase, cfg *config.Config, memo *svccache.AnalysisMemo, agg *squeeze.Aggregator, l *applogger.Logger) *usecase.EngineUseCase {
	return usecase.NewEngineUseCase(bars, cfg.Engine, memo, agg, l)
}

func ProvideAggregateUseCase(
	engine *usecase.EngineUseCase,
	quotes repository.QuoteSource,
	pub repository.AnalysisPublisher,
	reports repository.ReportStorage,
	m repository.Metrics,
	cfg *config.Config,
	l *applogger.Logger,
) *usecase.AggregateUseCase {
	return usecase.NewAggregateUseCase(engine, l,
		usecase.WithQuoteSource(quotes),
		usecase.WithPublisher(pub),
		usecase.WithReportStorage(reports),
		usecase.WithMetrics(m),
		usecase.WithTimeout(cfg.Engine.Timeout),
	)
}

func ProvideBacktestJob(engine *usecase.EngineUseCase, reports repository.ReportStorage, l *applogger.Logger) *usecase.BacktestJob {
	return usecase.NewBacktestJob(engine, reports, l)
}

// ProvideJobQueue runs backtest jobs on Redis when available, otherwise in-process.
// A refresh gate in front of it collapses bursts of bar events per symbol.
func ProvideJobQueue(cfg *config.Config, rc *pkgcache.RedisCache, job *usecase.BacktestJob, m repository.Metrics, l *applogger.Logger) queue.Publisher {
	qcfg := &queue.Config{
		Workers:    cfg.Queue.Workers,
		RetryLimit: cfg.Queue.RetryLimit,
		RetryDelay: cfg.Queue.RetryDelay,
	}
	var q queue.Publisher
	if rc == nil {
		q = queue.NewMemoryQueue(l, qcfg, job)
	} else {
		rq := queue.NewRedisQueue(l, qcfg, rc.Client(), queue.WithKeyPrefix(cfg.Redis.Prefix+":queue"))
		rq.RegisterJob(job)
		q = rq
	}
	return middleware.NewRefreshGate(q, m, middleware.WithInterval(cfg.Queue.RefreshInterval))
}

// ProvideKafkaConsumer creates the bar-update consumer. Nil when disabled.
func ProvideKafkaConsumer(cfg *config.Config, l *applogger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(l,
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer.WithHook(pkgkafka.TraceHook), nil
}

func ProvideBarEventsHandler(cfg *config.Config, engine *usecase.EngineUseCase, jobs queue.Publisher, m repository.Metrics, l *applogger.Logger) *usecase.BarEventsHandler {
	return usecase.NewBarEventsHandler(cfg.Kafka.BarsTopic, engine, jobs, m, l)
}

func ProvideRateLimiter(cfg *config.Config) *ratelimit.Limiter {
	return ratelimit.New(cfg.RateLimit.Capacity, cfg.RateLimit.RefillPerSec)
}

func ProvideEngineHandler(l *applogger.Logger, engine *usecase.EngineUseCase, agg *usecase.AggregateUseCase, limiter *ratelimit.Limiter) *api.EngineHandler {
	return api.NewEngineHandler(l, engine, agg, limiter)
}

// ProvideHTTPServer creates the Echo server with a health check per enabled backend.
func ProvideHTTPServer(cfg *config.Config, h *api.EngineHandler, l *applogger.Logger, ch *pkgch.Client, rc *pkgcache.RedisCache) *xhttp.Server {
	opts := []xhttp.ServerOption{
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithSlowRequest(cfg.Server.SlowRequest),
		xhttp.WithCORS(cfg.Server.CORS),
		xhttp.WithLogger(l),
	}
	if ch != nil {
		opts = append(opts, xhttp.WithHealthCheck("clickhouse", func(c echo.Context) error {
			return ch.Health(c.Request().Context())
		}))
	}
	if rc != nil {
		opts = append(opts, xhttp.WithHealthCheck("redis", func(c echo.Context) error {
			return rc.Ping(c.Request().Context())
		}))
	}
	return xhttp.NewServer(h, opts...)
}

// ProvideApp assembles the application and attaches the Kafka log sink when enabled.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	srv *xhttp.Server,
	consumer *pkgkafka.Consumer,
	bars *usecase.BarEventsHandler,
	jobs queue.Publisher,
	tracker *finnhub.QuoteTracker,
	producer *pkgkafka.Producer,
	pub repository.AnalysisPublisher,
	ch *pkgch.Client,
	store pkgcache.Service,
) *server.App {
	opts := []server.Option{
		server.WithConsumer(consumer, bars),
		server.WithJobs(jobs),
		// closes redis too
		server.WithCloser("cache", store.Close),
	}
	if tracker != nil {
		opts = append(opts, server.WithRunner("finnhub", tracker))
	}
	if ch != nil {
		opts = append(opts, server.WithCloser("clickhouse", ch.Close))
	}
	if producer != nil {
		// closers run in reverse: the collector flushes before the producer closes
		opts = append(opts, server.WithCloser("kafka producer", pub.Close))
		l.AddCollector(&applogger.CollectionConfig{
			TimeInterval:   30 * time.Second,
			CountThreshold: 100,
			Topic:          cfg.Kafka.LogsTopic,
			Publisher:      producer,
		})
		opts = append(opts, server.WithCloser("log collector", func() error {
			l.RemoveCollector()
			return nil
		}))
	}
	return server.New(cfg, l, srv, opts...)
}
