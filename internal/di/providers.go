package di

import (
	"context"
	"errors"
	"fmt"
	"time"

	"LiqSweep/internal/domain/models"
	"LiqSweep/internal/domain/repository"
	domsvc "LiqSweep/internal/domain/service"
	"LiqSweep/internal/handler/api"
	mid "LiqSweep/internal/middleware"
	internalrepo "LiqSweep/internal/repository"
	"LiqSweep/internal/service/broker"
	"LiqSweep/internal/service/events"
	"LiqSweep/internal/service/feed"
	"LiqSweep/internal/service/ratelimit"
	"LiqSweep/internal/services/session"
	"LiqSweep/internal/services/takeprofit"
	"LiqSweep/internal/services/trend"
	"LiqSweep/internal/usecase"
	"LiqSweep/pkg/cache"
	pkgch "LiqSweep/pkg/clickhouse"
	"LiqSweep/pkg/config"
	xhttp "LiqSweep/pkg/http"
	pkgkafka "LiqSweep/pkg/kafka"
	applogger "LiqSweep/pkg/logger"
	"LiqSweep/pkg/metrics"
	"LiqSweep/pkg/queue"
	"LiqSweep/pkg/server"
)

// ProvideKafkaProducer creates the shared Kafka producer. It is nil when
// neither proposals nor alerts go to Kafka.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if cfg.Execution.Backend != usecase.BackendKafka && !cfg.Log.AlertsEnabled {
		return nil, nil
	}
	k := cfg.Kafka
	producer, err := pkgkafka.NewProducer(pkgkafka.ProducerConfig{
		Brokers:      k.Brokers,
		RequiredAcks: k.RequiredAcks,
		Compression:  k.Compression,
		MaxAttempts:  k.Producer.MaxAttempts,
		BatchSize:    k.Producer.BatchSize,
		BatchBytes:   int64(k.Producer.BatchBytes),
		Linger:       k.Producer.Linger,
		WriteTimeout: k.Producer.WriteTimeout,
		ReadTimeout:  k.Producer.ReadTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideLogger builds the application logger and attaches the Kafka error
// digest when alerts are enabled.
func ProvideLogger(cfg *config.Config, producer *pkgkafka.Producer) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: "stdout"})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	if cfg.Log.AlertsEnabled && producer != nil {
		l.AttachDigest(applogger.DigestConfig{
			Window:    cfg.Log.AlertsWindow,
			Topic:     cfg.Kafka.AlertsTopic,
			Publisher: producer,
			Service:   "liqsweep-" + cfg.Engine.Symbol,
		})
	}
	return l, nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideClickHouseClient connects and prepares the bar and event tables.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if !cfg.ClickHouse.Enabled {
		return nil, nil
	}
	ch := cfg.ClickHouse
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := pkgch.NewClient(ctx, pkgch.Config{
		Host:             ch.Host,
		Port:             ch.Port,
		User:             ch.User,
		Password:         ch.Password,
		UseHTTP:          ch.UseHTTP,
		AsyncInsert:      ch.AsyncInsert,
		WaitForAsync:     ch.WaitForAsync,
		DialTimeout:      ch.DialTimeout,
		ReadTimeout:      ch.ReadTimeout,
		MaxExecutionTime: ch.MaxExecutionTime,
	})
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	db := ch.Database
	stmts := append([]string{"CREATE DATABASE IF NOT EXISTS " + db}, internalrepo.BarSchema(db)...)
	stmts = append(stmts, internalrepo.EventSchema(db)...)
	if err := client.Exec(ctx, stmts...); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return client, nil
}

// ProvideRedisCache connects to Redis when enabled.
func ProvideRedisCache(cfg *config.Config) (*cache.RedisCache, error) {
	if !cfg.Redis.Enabled {
		return nil, nil
	}
	rc, err := cache.NewRedisCache(
		cache.WithRedisHost(cfg.Redis.Host),
		cache.WithRedisPort(cfg.Redis.Port),
		cache.WithRedisPassword(cfg.Redis.Password),
		cache.WithRedisDB(cfg.Redis.DB),
		cache.WithRedisPrefix(cfg.Redis.Prefix),
		cache.WithRedisPool(cfg.Redis.PoolSize, 2),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return rc, nil
}

// ProvideStateCache layers a memory cache over Redis, or uses memory only.
func ProvideStateCache(rc *cache.RedisCache) cache.Service {
	if rc == nil {
		return cache.NewMemoryCache()
	}
	return cache.NewLayeredCache(rc, cache.WithLayeredMemorySize(64))
}

func ProvideStateStore(c cache.Service, cfg *config.Config) repository.StateStore {
	return internalrepo.NewStateStore(c, cfg.Redis.StateTTL)
}

func ProvideBarStore(ch *pkgch.Client, cfg *config.Config, l *applogger.Logger) repository.BarStore {
	if ch == nil {
		return nil
	}
	s := internalrepo.NewCHBarStore(ch, cfg.ClickHouse.Database)
	s.SetLogger(l)
	return s
}

func ProvideEventStore(ch *pkgch.Client, cfg *config.Config) repository.EventStore {
	if ch == nil {
		return nil
	}
	return internalrepo.NewCHEventStore(ch, cfg.ClickHouse.Database)
}

// ProvideEventSink fans decision events out to the log, metrics and ClickHouse.
func ProvideEventSink(l *applogger.Logger, m repository.Metrics, store repository.EventStore, cfg *config.Config) *events.Sink {
	opts := []events.Option{events.WithBatch(cfg.ClickHouse.EventBatchSize, cfg.ClickHouse.EventFlush)}
	if store != nil {
		opts = append(opts, events.WithStore(store))
	}
	return events.NewSink(l, m, opts...)
}

func ProvideProposalPublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.ProposalPublisher {
	if producer == nil || cfg.Execution.Backend != usecase.BackendKafka {
		return nil
	}
	return internalrepo.NewKafkaProposalPublisher(producer, cfg.Kafka.ProposalsTopic)
}

// ProvideOutbox is the Redis proposal queue used by the redis execution backend.
func ProvideOutbox(rc *cache.RedisCache, cfg *config.Config) queue.Publisher {
	if rc == nil || cfg.Execution.Backend != usecase.BackendRedis {
		return nil
	}
	return queue.NewRedisPublisher(rc.Client(), cfg.Execution.ProposalsQueue)
}

func ProvideExecutor(pub repository.ProposalPublisher, outbox queue.Publisher, m repository.Metrics, cfg *config.Config) *usecase.ProposalExecutor {
	return usecase.NewProposalExecutor(pub, outbox, m, cfg.Execution.Backend)
}

// ProvideAccountProvider serves static metadata, or the broker API with the
// static values as instrument fallback.
func ProvideAccountProvider(cfg *config.Config, l *applogger.Logger) domsvc.AccountProvider {
	st := cfg.Broker.Static
	static := broker.NewStaticAccountProvider(
		models.Account{Balance: st.Balance, Currency: st.Currency},
		models.Instrument{
			Symbol:            cfg.Engine.Symbol,
			PipSize:           cfg.Engine.PipSize,
			Digits:            cfg.Engine.Digits,
			PipValue:          st.PipValue,
			VolumeMin:         st.VolumeMin,
			VolumeMax:         st.VolumeMax,
			VolumeStep:        st.VolumeStep,
			MinStopPips:       st.MinStopPips,
			MinTakeProfitPips: st.MinTakeProfitPips,
		},
	)
	if cfg.Broker.URL == "" {
		return static
	}
	return broker.NewHTTPAccountProvider(
		broker.HTTPConfig{BaseURL: cfg.Broker.URL, APIKey: cfg.Broker.APIKey, MaxRetries: cfg.Broker.MaxRetries},
		xhttp.NewClient(xhttp.WithTimeout(cfg.Broker.Timeout)),
		ratelimit.New(cfg.Broker.RPS, cfg.Broker.Burst),
		static,
		l,
	)
}

func ProvideMarketData(cfg *config.Config, store repository.BarStore, l *applogger.Logger) *usecase.MarketData {
	return usecase.NewMarketData(usecase.MarketDataConfig{
		Symbol:              cfg.Engine.Symbol,
		StructureTF:         repository.Timeframe(cfg.Engine.StructureTimeframe),
		ConfirmationTF:      repository.Timeframe(cfg.Engine.ConfirmationTimeframe),
		StructureHistory:    cfg.Engine.StructureHistory,
		ConfirmationHistory: cfg.Engine.ConfirmationHistory,
	}, store, l)
}

// EngineConfigFrom maps the YAML engine section onto the orchestrator settings.
func EngineConfigFrom(cfg *config.Config) (usecase.EngineConfig, error) {
	e := cfg.Engine
	mode, err := models.ParseBiasMode(e.BiasMode)
	if err != nil {
		return usecase.EngineConfig{}, err
	}
	return usecase.EngineConfig{
		Symbol:             e.Symbol,
		FractalPeriod:      e.FractalPeriod,
		RiskPercent:        e.RiskPercent,
		Band:               takeprofit.Band{MinRR: e.MinRR, MaxRR: e.MaxRR},
		MaxBOSDistancePips: e.MaxBOSDistancePips,
		Stop: usecase.StopConfig{
			Anchor:     usecase.StopAnchor(e.StopAnchor),
			BufferPips: e.StopBufferPips,
			MinPips:    e.MinStopPips,
		},
		Trend: trend.Config{
			Mode:                   mode,
			PipSize:                e.PipSize,
			MinBars:                e.Trend.MinBars,
			CandleEnabled:          e.Trend.CandleEnabled,
			CandleLookback:         e.Trend.CandleLookback,
			CandleThreshold:        e.Trend.CandleThreshold,
			ImpulseEnabled:         e.Trend.ImpulseEnabled,
			ImpulseLookback:        e.Trend.ImpulseLookback,
			ImpulsePips:            e.Trend.ImpulsePips,
			StructureEnabled:       e.Trend.StructureEnabled,
			StructureLookback:      e.Trend.StructureLookback,
			StructureConfirmations: e.Trend.StructureConfirmations,
		},
	}, nil
}

func ProvideOrchestrator(
	cfg *config.Config,
	market *usecase.MarketData,
	accounts domsvc.AccountProvider,
	exec *usecase.ProposalExecutor,
	sink *events.Sink,
	state repository.StateStore,
	m repository.Metrics,
	l *applogger.Logger,
) (*usecase.Orchestrator, error) {
	ec, err := EngineConfigFrom(cfg)
	if err != nil {
		return nil, fmt.Errorf("engine config: %w", err)
	}
	cal, err := session.NewCalendar(cfg.Location(), cfg.Engine.SessionWindow, cfg.Engine.TradingHours)
	if err != nil {
		return nil, fmt.Errorf("session calendar: %w", err)
	}
	return usecase.NewOrchestrator(ec, cal, market, accounts, exec, sink, state, m, l), nil
}

func ProvideTickProcessor(market *usecase.MarketData, engine *usecase.Orchestrator, m repository.Metrics) *usecase.TickProcessor {
	return usecase.NewTickProcessor(market, engine, m)
}

// ProvideMarketStream creates the WebSocket tick feed.
func ProvideMarketStream(cfg *config.Config, l *applogger.Logger) repository.MarketStream {
	return feed.New(feed.Config{
		URL:            cfg.Feed.URL,
		APIKey:         cfg.Feed.APIKey,
		Symbol:         cfg.Engine.Symbol,
		VenueSymbol:    cfg.FeedSymbol(),
		ReconnectDelay: cfg.Feed.ReconnectDelay,
		PingInterval:   cfg.Feed.PingInterval,
		BufferSize:     cfg.Feed.QueueSize,
	}, l)
}

// ProvideTickPipeline throttles evaluation per symbol and rounds prices to
// the instrument's digits.
func ProvideTickPipeline(proc *usecase.TickProcessor, m repository.Metrics, cfg *config.Config, l *applogger.Logger) *mid.TickPipeline {
	inst := models.Instrument{Digits: cfg.Engine.Digits}
	return mid.NewTickPipeline(proc, m,
		mid.WithLimiter(ratelimit.New(cfg.Feed.ThrottleRPS, cfg.Feed.ThrottleBurst)),
		mid.WithBufferSize(cfg.Feed.QueueSize),
		mid.WithTransform(func(t *models.Tick) *models.Tick {
			t.Price = inst.Round(t.Price)
			return t
		}),
		mid.WithLogger(l),
	)
}

func ProvideTickCollector(
	cfg *config.Config,
	stream repository.MarketStream,
	proc *usecase.TickProcessor,
	m repository.Metrics,
	pipe *mid.TickPipeline,
	l *applogger.Logger,
) *usecase.TickCollector {
	if cfg.Feed.Type != "websocket" {
		return nil
	}
	return usecase.NewTickCollector(stream, proc, m, pipe, l)
}

// ProvideKafkaConsumer creates the bars topic consumer when the feed is Kafka.
func ProvideKafkaConsumer(cfg *config.Config, l *applogger.Logger) (*pkgkafka.Consumer, error) {
	if cfg.Feed.Type != "kafka" {
		return nil, nil
	}
	k := cfg.Kafka.Consumer
	consumer, err := pkgkafka.NewConsumer(pkgkafka.ConsumerConfig{
		Brokers:    cfg.Kafka.Brokers,
		GroupID:    k.GroupID,
		RetryMax:   uint64(k.RetryMax),
		BackoffMin: k.BackoffMin,
		BackoffMax: k.BackoffMax,
		DLQTopic:   k.DLQTopic,
		MinBytes:   k.MinBytes,
		MaxBytes:   k.MaxBytes,
	}, l)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

func ProvideKafkaBarsHandler(cfg *config.Config, market *usecase.MarketData, pipe *mid.TickPipeline, m repository.Metrics) *usecase.KafkaBarsHandler {
	return usecase.NewKafkaBarsHandler(cfg.Kafka.BarsTopic, cfg.Engine.Symbol, market, pipe, m)
}

// ProvideReportConsumer reads execution reports from Redis when available.
func ProvideReportConsumer(rc *cache.RedisCache, sink *events.Sink, m repository.Metrics, l *applogger.Logger, cfg *config.Config) *queue.RedisConsumer {
	if rc == nil {
		return nil
	}
	return queue.NewRedisConsumer(l, rc.Client(), cfg.Execution.ReportsQueue,
		queue.ConsumerConfig{Workers: cfg.Execution.ReportWorkers, MaxAttempts: 3},
		usecase.NewExecutionReportJob(sink, m))
}

// ProvideHTTPHandler registers the engine API with dependency health checks.
func ProvideHTTPHandler(
	l *applogger.Logger,
	engine *usecase.Orchestrator,
	store repository.BarStore,
	sink *events.Sink,
	collector *usecase.TickCollector,
	ch *pkgch.Client,
	rc *cache.RedisCache,
	reports *queue.RedisConsumer,
) xhttp.Handler {
	var bars api.BarsReader
	if store != nil {
		bars = usecase.NewBarsQuery(store)
	}
	h := api.NewEngineEchoHandler(l, engine, bars, sink)
	if collector != nil {
		h.AddCheck("feed", func(context.Context) error {
			if !collector.IsConnected() {
				return errors.New("feed disconnected")
			}
			return nil
		})
	}
	if ch != nil {
		h.AddCheck("clickhouse", ch.Health)
	}
	if rc != nil {
		h.AddCheck("redis", rc.Ping)
	}
	if reports != nil {
		h.AddCheck("reports_queue", func(ctx context.Context) error {
			d, err := reports.Depth(ctx)
			if err != nil {
				return err
			}
			if d.Dead > 0 {
				l.Warn("execution reports in dead letter queue", applogger.Int64("count", d.Dead))
			}
			return nil
		})
	}
	return h
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	market *usecase.MarketData,
	engine *usecase.Orchestrator,
	sink *events.Sink,
	exec *usecase.ProposalExecutor,
	handler xhttp.Handler,
	collector *usecase.TickCollector,
	consumer *pkgkafka.Consumer,
	barsHandler *usecase.KafkaBarsHandler,
	reports *queue.RedisConsumer,
	ch *pkgch.Client,
	rc *cache.RedisCache,
	producer *pkgkafka.Producer,
) *server.App {
	return server.New(cfg, server.Deps{
		Logger:      l,
		Market:      market,
		Engine:      engine,
		Events:      sink,
		Executor:    exec,
		Handler:     handler,
		Collector:   collector,
		Consumer:    consumer,
		BarsHandler: barsHandler,
		Reports:     reports,
		ClickHouse:  ch,
		Redis:       rc,
		Producer:    producer,
	})
}
