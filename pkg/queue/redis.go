package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"Sniper/pkg/logger"

	"github.com/redis/go-redis/v9"
)

// RedisQueue is a producer-only Redis list outbox. Consumers live in the
// execution host, not here.
type RedisQueue struct {
	logger    *logger.Logger
	client    *redis.Client
	keyPrefix string
}

// RedisQueueOption configures RedisQueue.
type RedisQueueOption func(*RedisQueue)

// WithKeyPrefix sets custom key prefix.
func WithKeyPrefix(prefix string) RedisQueueOption {
	return func(r *RedisQueue) {
		r.keyPrefix = prefix
	}
}

// NewRedisPublisher creates a publisher on the given client. A failed
// ping is logged, not fatal; the first publish will surface the error.
func NewRedisPublisher(lgr *logger.Logger, client *redis.Client, opts ...RedisQueueOption) *RedisQueue {
	rq := &RedisQueue{
		logger:    lgr,
		client:    client,
		keyPrefix: "sniper:queue",
	}
	for _, opt := range opts {
		opt(rq)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		lgr.Error("redis publisher ping failed", logger.Error(err))
	} else {
		lgr.Info("redis publisher started", logger.String("addr", client.Options().Addr))
	}
	return rq
}

// PublishMessage pushes a message onto the outbox (implements QueueService).
func (r *RedisQueue) PublishMessage(ctx context.Context, msgType string, payload interface{}) error {
	msg := Message{
		ID:        fmt.Sprintf("%d", time.Now().UnixNano()),
		Type:      msgType,
		Payload:   payload,
		Timestamp: time.Now(),
	}

	msgData, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	if err := r.client.LPush(ctx, r.getQueueKey(), msgData).Err(); err != nil {
		return fmt.Errorf("lpush: %w", err)
	}
	return nil
}

func (r *RedisQueue) getQueueKey() string {
	return fmt.Sprintf("%s:messages", r.keyPrefix)
}
