package repository

import (
	"context"

	"Sniper/internal/domain/models"
	domrepo "Sniper/internal/domain/repository"
	pkgkafka "Sniper/pkg/kafka"
	"Sniper/pkg/logger"
	"Sniper/pkg/queue"
)

// KafkaIntentSink publishes intents to a Kafka topic, keyed by symbol so
// per-symbol ordering survives partitioning.
type KafkaIntentSink struct {
	producer *pkgkafka.Producer
	topic    string
}

func NewKafkaIntentSink(producer *pkgkafka.Producer, topic string) domrepo.IntentSink {
	return &KafkaIntentSink{producer: producer, topic: topic}
}

func (s *KafkaIntentSink) Emit(ctx context.Context, in *models.ExecutionIntent) error {
	return s.producer.Publish(ctx, s.topic, []byte(in.Symbol), in)
}

func (s *KafkaIntentSink) Close() error {
	if s.producer != nil {
		return s.producer.Close()
	}
	return nil
}

// RedisIntentSink pushes intents onto the Redis outbox queue for hosts
// that poll instead of consuming Kafka.
type RedisIntentSink struct {
	q       queue.QueueService
	msgType string
}

func NewRedisIntentSink(q queue.QueueService, msgType string) domrepo.IntentSink {
	return &RedisIntentSink{q: q, msgType: msgType}
}

func (s *RedisIntentSink) Emit(ctx context.Context, in *models.ExecutionIntent) error {
	return s.q.PublishMessage(ctx, s.msgType, in)
}

func (s *RedisIntentSink) Close() error { return nil }

// LogIntentSink writes intents to the log only. Dry-run backend.
type LogIntentSink struct {
	log *logger.Logger
}

func NewLogIntentSink(log *logger.Logger) domrepo.IntentSink {
	return &LogIntentSink{log: log}
}

func (s *LogIntentSink) Emit(_ context.Context, in *models.ExecutionIntent) error {
	s.log.Info("dry-run intent",
		logger.String("id", in.ID),
		logger.String("symbol", in.Symbol),
		logger.String("setup", string(in.SetupType)),
		logger.String("direction", string(in.Direction)),
		logger.String("entry_type", string(in.EntryType)),
		logger.Any("entry_price", in.EntryPrice),
		logger.Any("stop_loss", in.StopLoss),
		logger.Any("tp1", in.TP1),
		logger.Any("tp2", in.TP2),
		logger.Any("risk_factor", in.RiskFactor),
		logger.Strings("reasons", in.Reasons),
	)
	return nil
}

func (s *LogIntentSink) Close() error { return nil }
