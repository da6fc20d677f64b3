package di

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"Sniper/internal/domain/repository"
	"Sniper/internal/handler/api"
	mid "Sniper/internal/middleware"
	internalrepo "Sniper/internal/repository"
	icache "Sniper/internal/service/cache"
	"Sniper/internal/service/stream"
	"Sniper/internal/services/classifier"
	"Sniper/internal/services/detectors"
	"Sniper/internal/services/snapshot"
	"Sniper/internal/usecase"
	pkgcache "Sniper/pkg/cache"
	pkgch "Sniper/pkg/clickhouse"
	"Sniper/pkg/config"
	pkgkafka "Sniper/pkg/kafka"
	"Sniper/pkg/logger"
	"Sniper/pkg/metrics"
	"Sniper/pkg/queue"
	"Sniper/pkg/server"
	"Sniper/pkg/util"

	kafkago "github.com/segmentio/kafka-go"
)

// clockGrace delays each cycle past the bar boundary so the upstream
// aggregation job has committed the closing bar.
const clockGrace = 5 * time.Second

// ProvideLogger builds the process logger from the log section.
func ProvideLogger(cfg *config.Config) (*logger.Logger, error) {
	return logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideClickHouseClient creates the ClickHouse client and ensures the
// schema exists. ClickHouse is the bar store, so it is always required.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := client.InitSchema(ctx, []string{
		"CREATE DATABASE IF NOT EXISTS sniper",
		`CREATE TABLE IF NOT EXISTS sniper.bars_15m (
            bucket DateTime, symbol String,
            open Float64, high Float64, low Float64, close Float64, vol Float64
        ) ENGINE=MergeTree ORDER BY (symbol, bucket)`,
		`CREATE TABLE IF NOT EXISTS sniper.intents (
            id String, created_at DateTime, symbol String,
            setup_type String, direction String, entry_type String,
            entry_price Float64, stop_loss Float64, tp1 Float64, tp2 Float64,
            expiry_bars Int32, risk_factor Float64, reasons Array(String)
        ) ENGINE=MergeTree ORDER BY (created_at, symbol)`,
	}); err != nil {
		_ = client.Close() // cannot log here (DI layer no logger); propagate error
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}

	return client, nil
}

// ProvideBarSource creates the ClickHouse-backed bar window reader.
func ProvideBarSource(chClient *pkgch.Client, log *logger.Logger) repository.BarSource {
	src := internalrepo.NewCHBarSource(chClient)
	src.SetLogger(log)
	return src
}

// ProvideIntentArchive creates the intent archive, or nil when archival
// is turned off.
func ProvideIntentArchive(chClient *pkgch.Client, cfg *config.Config) repository.IntentArchive {
	if !cfg.Intents.Archive {
		return nil
	}
	return internalrepo.NewCHIntentArchive(chClient)
}

// ProvideRedisCache connects to Redis when enabled; nil otherwise.
func ProvideRedisCache(cfg *config.Config) (*pkgcache.RedisCache, error) {
	if !cfg.Redis.Enabled {
		return nil, nil
	}
	host := cfg.Redis.Addr
	port := 6379
	if i := strings.LastIndex(cfg.Redis.Addr, ":"); i >= 0 {
		host = cfg.Redis.Addr[:i]
		p, err := strconv.Atoi(cfg.Redis.Addr[i+1:])
		if err != nil {
			return nil, fmt.Errorf("redis addr %q: %w", cfg.Redis.Addr, err)
		}
		port = p
	}
	return pkgcache.NewRedisCache(
		pkgcache.WithRedisHost(host),
		pkgcache.WithRedisPort(port),
		pkgcache.WithRedisPassword(cfg.Redis.Password),
		pkgcache.WithRedisDB(cfg.Redis.DB),
	)
}

// ProvideStateRepository persists symbol state in Redis when available;
// nil keeps the state store memory-only. The layered cache keeps the hot
// state reads off Redis while writes stay write-through.
func ProvideStateRepository(rc *pkgcache.RedisCache, cfg *config.Config) repository.StateRepository {
	if rc == nil {
		return nil
	}
	layered := pkgcache.NewLayeredCache(rc, pkgcache.WithLayeredMemorySize(4*len(cfg.Pipeline.Symbols)+16))
	return internalrepo.NewRedisStateRepository(layered, cfg.Redis.StatePrefix, cfg.Pipeline.Symbols)
}

// ProvideStateStore creates the in-memory state store over the optional
// repository.
func ProvideStateStore(repo repository.StateRepository) *usecase.StateStore {
	return usecase.NewStateStore(repo)
}

// ProvideTickBook creates the shared latest-quote book.
func ProvideTickBook() *usecase.TickBook {
	return usecase.NewTickBook()
}

// ProvideAdaptiveGate creates the idle-relaxation gate.
func ProvideAdaptiveGate(cfg *config.Config) *classifier.AdaptiveGate {
	return classifier.NewAdaptiveGate(cfg)
}

// ProvideClassifier creates the fast-pass regime classifier.
func ProvideClassifier(cfg *config.Config, gate *classifier.AdaptiveGate) *classifier.Classifier {
	return classifier.New(cfg, gate)
}

// ProvideSnapshotBuilder creates the per-symbol snapshot builder.
func ProvideSnapshotBuilder(cfg *config.Config) *snapshot.Builder {
	return snapshot.NewBuilder(cfg)
}

// ProvideCycleClock aligns cycles to bar boundaries.
func ProvideCycleClock(cfg *config.Config) repository.CycleClock {
	return util.NewBarClock(cfg.Pipeline.Timeframe, clockGrace)
}

// ProvideIntentSink selects the intent backend from config. Validate has
// already confirmed the backend's infrastructure is configured.
func ProvideIntentSink(cfg *config.Config, log *logger.Logger, rc *pkgcache.RedisCache) (repository.IntentSink, error) {
	switch cfg.Intents.Backend {
	case "kafka":
		producer, err := pkgkafka.NewProducer(
			pkgkafka.WithBrokers(cfg.Kafka.Brokers),
			pkgkafka.WithCompression(cfg.Kafka.Compression),
			pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
			pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
			pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
			pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
			pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
			pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
			pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
			pkgkafka.WithHashByKey(true),
		)
		if err != nil {
			return nil, fmt.Errorf("kafka producer: %w", err)
		}
		return internalrepo.NewKafkaIntentSink(producer, cfg.Intents.Topic), nil
	case "redis":
		pub := queue.NewRedisPublisher(log, rc.Client(), queue.WithKeyPrefix(cfg.Redis.OutboxStream))
		return internalrepo.NewRedisIntentSink(pub, "execution_intent"), nil
	default:
		return internalrepo.NewLogIntentSink(log), nil
	}
}

// ProvideEmitter creates the intent emitter.
func ProvideEmitter(
	cfg *config.Config,
	log *logger.Logger,
	sink repository.IntentSink,
	archive repository.IntentArchive,
	m repository.Metrics,
) *usecase.Emitter {
	return usecase.NewEmitter(cfg, log, sink, archive, m)
}

// ProvidePipeline wires the cycle driver with its three detectors.
func ProvidePipeline(
	cfg *config.Config,
	log *logger.Logger,
	bars repository.BarSource,
	book *usecase.TickBook,
	states *usecase.StateStore,
	builder *snapshot.Builder,
	class *classifier.Classifier,
	gate *classifier.AdaptiveGate,
	clock repository.CycleClock,
	emitter *usecase.Emitter,
	m repository.Metrics,
) *usecase.Pipeline {
	return usecase.NewPipeline(
		cfg, log, bars, book, states, builder, class, gate, clock, emitter, m,
		detectors.NewTPR(cfg),
		detectors.NewRBH(cfg),
		detectors.NewECR(cfg),
	)
}

// ProvideTickStream creates the websocket quote stream, or nil when no
// stream URL is configured.
func ProvideTickStream(cfg *config.Config) repository.TickStream {
	if cfg.Stream.URL == "" {
		return nil
	}
	return stream.New(
		cfg.Stream.APIKey,
		cfg.Stream.URL,
		cfg.Pipeline.Symbols,
		cfg.Stream.ReconnectDelay,
		cfg.Stream.PingInterval,
	)
}

// ProvideTickCollector attaches the tick gate between the stream and the
// book. Nil when there is no stream.
func ProvideTickCollector(s repository.TickStream, book *usecase.TickBook, m repository.Metrics) *usecase.TickCollector {
	if s == nil {
		return nil
	}
	gate := mid.NewTickGate(book, m,
		mid.WithMaxRPS(50),
		mid.WithBufferSize(2000),
	)
	return usecase.NewTickCollector(s, book, m, gate)
}

// ProvideKafkaConsumer creates the ticks consumer, or nil when kafka
// tick ingestion is off.
func ProvideKafkaConsumer(cfg *config.Config, m repository.Metrics) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Ticks.Enabled {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Ticks.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Ticks.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Ticks.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Ticks.RetryMax, cfg.Kafka.Ticks.BackoffMin, cfg.Kafka.Ticks.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Ticks.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Ticks.MinBytes, cfg.Kafka.Ticks.MaxBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.WithConsumerHook(pkgkafka.HookFuncs{
		Before: func(ctx context.Context, _ string, km kafkago.Message, data []byte) (context.Context, kafkago.Message, []byte, error) {
			return pkgkafka.WithStartTime(ctx, time.Now()), km, data, nil
		},
		After: func(ctx context.Context, _ string, _ kafkago.Message, _ []byte, err error) {
			if start, ok := pkgkafka.StartTime(ctx); ok && err == nil {
				m.RecordLatency("kafka_consume", time.Since(start).Seconds())
			}
		},
		Err: func(context.Context, string, kafkago.Message, []byte, error) {
			m.RecordError("kafka_consume")
		},
	})
	return consumer, nil
}

// ProvideKafkaTicksHandler routes consumed quote messages into the book.
func ProvideKafkaTicksHandler(book *usecase.TickBook, m repository.Metrics, cfg *config.Config) *usecase.KafkaTicksHandler {
	if !cfg.Kafka.Ticks.Enabled {
		return nil
	}
	return usecase.NewKafkaTicksHandler(cfg.Kafka.Ticks.Topic, book, m)
}

// ProvideProfileSource resolves symbol profiles from config.
func ProvideProfileSource(cfg *config.Config) repository.ProfileSource {
	return internalrepo.NewConfigProfiles(cfg)
}

// ProvideOpsHandler creates the read-only ops API handler.
func ProvideOpsHandler(
	cfg *config.Config,
	log *logger.Logger,
	pipeline *usecase.Pipeline,
	states *usecase.StateStore,
	archive repository.IntentArchive,
	bars repository.BarSource,
	collector *usecase.TickCollector,
	profiles repository.ProfileSource,
) *api.OpsHandler {
	// avoid a typed-nil interface when no stream is wired
	var status api.StreamStatus
	if collector != nil {
		status = collector
	}
	h := api.NewOpsHandler(log, pipeline, states, archive, bars, status, profiles)
	if cfg.Redis.Enabled {
		h.SetCache(icache.NewRedisCache(icache.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}))
	} else {
		h.SetCache(icache.NewTTLCache())
	}
	return h
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	log *logger.Logger,
	pipeline *usecase.Pipeline,
	states *usecase.StateStore,
	collector *usecase.TickCollector,
	consumer *pkgkafka.Consumer,
	kh *usecase.KafkaTicksHandler,
	chClient *pkgch.Client,
	ops *api.OpsHandler,
) *server.App {
	return server.New(cfg, log, pipeline, states, collector, consumer, kh, chClient, ops)
}
