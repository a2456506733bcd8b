package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"LiqSweep/internal/service/events"
	"LiqSweep/internal/usecase"
	"LiqSweep/pkg/cache"
	pkgch "LiqSweep/pkg/clickhouse"
	"LiqSweep/pkg/config"
	xhttp "LiqSweep/pkg/http"
	pkgkafka "LiqSweep/pkg/kafka"
	applogger "LiqSweep/pkg/logger"
	"LiqSweep/pkg/queue"
)

// Deps are the components App drives. Optional parts are nil when their
// backend is disabled in config.
type Deps struct {
	Logger   *applogger.Logger
	Market   *usecase.MarketData
	Engine   *usecase.Orchestrator
	Events   *events.Sink
	Executor *usecase.ProposalExecutor
	Handler  xhttp.Handler

	Collector   *usecase.TickCollector
	Consumer    *pkgkafka.Consumer
	BarsHandler *usecase.KafkaBarsHandler
	Reports     *queue.RedisConsumer

	ClickHouse *pkgch.Client
	Redis      *cache.RedisCache
	Producer   *pkgkafka.Producer
}

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	deps       Deps
	log        *applogger.Logger
	httpServer *xhttp.Server
}

// New creates a new App instance with all dependencies.
func New(cfg *config.Config, deps Deps) *App {
	l := deps.Logger
	if l == nil {
		l = applogger.Nop()
	}
	return &App{cfg: cfg, deps: deps, log: l}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.start(ctx); err != nil {
		_ = a.shutdown()
		return err
	}

	<-ctx.Done()
	a.log.Info("shutdown signal received")
	return a.shutdown()
}

func (a *App) start(ctx context.Context) error {
	d := a.deps

	if err := d.Engine.Start(ctx); err != nil {
		return fmt.Errorf("engine start: %w", err)
	}
	if err := d.Market.Seed(ctx, a.cfg.Engine.StructureHistory, a.cfg.Engine.ConfirmationHistory); err != nil {
		// live bars will fill the series
		a.log.Warn("bar history unavailable", applogger.Error(err))
	}
	if d.Events != nil {
		d.Events.Start(ctx)
	}

	switch {
	case d.Collector != nil:
		if err := d.Collector.Start(ctx); err != nil {
			return fmt.Errorf("feed start: %w", err)
		}
		a.log.Info("feed started",
			applogger.String("url", a.cfg.Feed.URL),
			applogger.String("symbol", a.cfg.FeedSymbol()))
	case d.Consumer != nil && d.BarsHandler != nil:
		d.BarsHandler.Start(ctx)
		d.Consumer.RegisterHandler(d.BarsHandler)
		go func() {
			if err := d.Consumer.Start(); err != nil {
				a.log.Error("kafka consumer error", applogger.Error(err))
			}
		}()
		a.log.Info("kafka consumer started", applogger.String("topic", d.BarsHandler.Topic()))
	default:
		a.log.Warn("no price source configured")
	}

	if d.Reports != nil {
		if err := d.Reports.Start(); err != nil {
			a.log.Error("execution report queue start failed", applogger.Error(err))
		}
	}

	a.httpServer = xhttp.NewServer(d.Handler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
		xhttp.WithLogger(a.log),
		xhttp.WithMetricsPath(a.metricsPath()),
	)
	if err := a.httpServer.Start(); err != nil {
		return fmt.Errorf("http server: %w", err)
	}

	a.log.Info("engine running",
		applogger.String("env", a.cfg.Environment),
		applogger.String("symbol", a.cfg.Engine.Symbol),
		applogger.String("feed", a.cfg.Feed.Type),
		applogger.String("execution", a.cfg.Execution.Backend))
	return nil
}

func (a *App) metricsPath() string {
	if !a.cfg.Metrics.Enabled {
		return ""
	}
	return a.cfg.Metrics.Path
}

// shutdown stops intake first, then persists state, then closes clients.
func (a *App) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	d := a.deps
	a.log.Info("shutting down...")

	if a.httpServer != nil {
		if err := a.httpServer.Stop(ctx); err != nil {
			a.log.Error("http shutdown error", applogger.Error(err))
		}
	}
	if d.Collector != nil {
		if err := d.Collector.Shutdown(ctx); err != nil {
			a.log.Warn("feed stop error", applogger.Error(err))
		}
	}
	if d.Consumer != nil {
		if err := d.Consumer.Stop(ctx); err != nil {
			a.log.Warn("kafka consumer stop error", applogger.Error(err))
		}
		if d.BarsHandler != nil {
			d.BarsHandler.Stop()
		}
	}
	if d.Reports != nil {
		if err := d.Reports.Stop(ctx); err != nil {
			a.log.Warn("report queue stop error", applogger.Error(err))
		}
	}

	if err := d.Engine.Stop(ctx); err != nil {
		a.log.Error("save day state", applogger.Error(err))
	}
	if d.Events != nil {
		d.Events.Close(ctx)
	}
	if d.Executor != nil {
		d.Executor.Close()
	}

	if d.Producer != nil {
		// flushes pending alert digests before the writer goes away
		a.log.DetachDigest()
		if err := d.Producer.Close(); err != nil {
			a.log.Warn("kafka producer close error", applogger.Error(err))
		}
	}
	if d.ClickHouse != nil {
		if err := d.ClickHouse.Close(); err != nil {
			a.log.Warn("clickhouse close error", applogger.Error(err))
		}
	}
	if d.Redis != nil {
		if err := d.Redis.Close(); err != nil {
			a.log.Warn("redis close error", applogger.Error(err))
		}
	}

	a.log.Info("shutdown complete")
	return nil
}
