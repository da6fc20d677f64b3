package queue

import (
	"context"
	"time"
)

// QueueService publishes typed messages onto an outbox queue.
type QueueService interface {
	PublishMessage(ctx context.Context, msgType string, payload interface{}) error
}

// Message is the envelope pushed onto the outbox. Downstream executors
// pop and decode it; this process only ever produces.
type Message struct {
	ID        string
	Type      string
	Payload   interface{}
	Timestamp time.Time
}
