package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"Sniper/internal/handler/api"
	"Sniper/internal/usecase"
	pkgch "Sniper/pkg/clickhouse"
	"Sniper/pkg/config"
	xhttp "Sniper/pkg/http"
	pkgkafka "Sniper/pkg/kafka"
	applogger "Sniper/pkg/logger"
)

// App owns the process lifecycle: it restores state, starts the tick
// feed, the bar-close pipeline, the intrabar probe, the optional Kafka
// ticks consumer, and the ops HTTP server, then tears everything down in
// reverse order on SIGTERM.
type App struct {
	cfg       *config.Config
	log       *applogger.Logger
	pipeline  *usecase.Pipeline
	states    *usecase.StateStore
	collector *usecase.TickCollector // nil when no quote stream is configured
	consumer  *pkgkafka.Consumer     // nil when kafka ticks are off
	ticksKH   *usecase.KafkaTicksHandler
	chClient  *pkgch.Client
	ops       *api.OpsHandler

	httpServer *xhttp.Server
}

// New creates the App. collector, consumer, and ticksKH may be nil.
func New(
	cfg *config.Config,
	log *applogger.Logger,
	pipeline *usecase.Pipeline,
	states *usecase.StateStore,
	collector *usecase.TickCollector,
	consumer *pkgkafka.Consumer,
	ticksKH *usecase.KafkaTicksHandler,
	chClient *pkgch.Client,
	ops *api.OpsHandler,
) *App {
	return &App{
		cfg:       cfg,
		log:       log,
		pipeline:  pipeline,
		states:    states,
		collector: collector,
		consumer:  consumer,
		ticksKH:   ticksKH,
		chClient:  chClient,
		ops:       ops,
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := a.states.Restore(ctx); err != nil {
		// start cold rather than refuse to start
		a.log.Warn("state restore failed", applogger.Error(err))
	}

	if a.collector != nil {
		if err := a.collector.Start(ctx); err != nil {
			a.log.Error("tick collector start failed", applogger.Error(err))
			return err
		}
		a.log.Info("tick collector started", applogger.Strings("symbols", a.cfg.Pipeline.Symbols))
	}

	if a.consumer != nil && a.ticksKH != nil {
		a.consumer.RegisterHandler(a.ticksKH)
		go func() {
			if err := a.consumer.Start(); err != nil {
				a.log.Error("kafka ticks consumer error", applogger.Error(err))
			}
		}()
		a.log.Info("kafka ticks consumer started", applogger.String("topic", a.ticksKH.Topic()))
	}

	go func() {
		if err := a.pipeline.Run(ctx); err != nil && ctx.Err() == nil {
			a.log.Error("pipeline stopped", applogger.Error(err))
		}
	}()
	a.log.Info("pipeline started",
		applogger.Any("timeframe", a.cfg.Pipeline.Timeframe),
		applogger.Int("universe", len(a.cfg.Pipeline.Symbols)),
	)

	go a.intrabarLoop(ctx)

	a.httpServer = xhttp.NewServer(a.ops,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
	)
	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		return err
	}
	a.log.Info("ops server started", applogger.Int("port", a.cfg.Server.Port))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.log.Info("shutdown signal received")
	cancel()
	return a.shutdown()
}

// intrabarLoop probes the armed setups between bar closes.
func (a *App) intrabarLoop(ctx context.Context) {
	interval := a.cfg.Pipeline.IntrabarInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.pipeline.IntrabarScan(ctx)
		}
	}
}

// shutdown stops all services in reverse start order.
func (a *App) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if a.httpServer != nil {
		if err := a.httpServer.Stop(ctx); err != nil {
			a.log.Error("http shutdown error", applogger.Error(err))
		}
	}

	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			a.log.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	if a.collector != nil {
		if err := a.collector.Shutdown(ctx); err != nil {
			a.log.Warn("tick collector stop error", applogger.Error(err))
		}
	}

	if err := a.pipeline.Close(); err != nil {
		a.log.Warn("intent sink close error", applogger.Error(err))
	}

	if err := a.states.Close(); err != nil {
		a.log.Warn("state store close error", applogger.Error(err))
	}

	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			a.log.Warn("clickhouse close error", applogger.Error(err))
		}
	}

	a.log.Info("shutdown complete")
	return nil
}
