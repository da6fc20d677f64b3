package usecase

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"Sniper/internal/domain/models"
	drepo "Sniper/internal/domain/repository"
	mid "Sniper/internal/middleware"
	pkgkafka "Sniper/pkg/kafka"
)

// TickBook holds the latest quote per symbol. The bar-close pass reads
// spreads off it and the intrabar path reads mids; both only ever want
// the freshest value.
type TickBook struct {
	mu    sync.RWMutex
	ticks map[string]models.Tick
}

func NewTickBook() *TickBook {
	return &TickBook{ticks: make(map[string]models.Tick)}
}

// Update stores the latest quote for the tick's symbol.
func (b *TickBook) Update(t models.Tick) {
	b.mu.Lock()
	b.ticks[t.Symbol] = t
	b.mu.Unlock()
}

// Last returns the latest quote for symbol.
func (b *TickBook) Last(symbol string) (models.Tick, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	t, ok := b.ticks[symbol]
	return t, ok
}

// Spread returns the latest spread for symbol, zero when no quote has
// been seen yet.
func (b *TickBook) Spread(symbol string) float64 {
	if t, ok := b.Last(symbol); ok {
		return t.Spread()
	}
	return 0
}

// Process implements middleware.TickProc: the book is the gate's
// downstream.
func (b *TickBook) Process(_ context.Context, t *models.Tick) error {
	if t != nil {
		b.Update(*t)
	}
	return nil
}

// TickCollector connects the live quote stream to the tick book through
// the gate and keeps the stream alive.
type TickCollector struct {
	stream  drepo.TickStream
	book    *TickBook
	metrics drepo.Metrics
	gate    *mid.TickGate
}

// NewTickCollector creates a TickCollector. gate may be nil, in which
// case ticks go straight to the book.
func NewTickCollector(stream drepo.TickStream, book *TickBook, metrics drepo.Metrics, gate *mid.TickGate) *TickCollector {
	return &TickCollector{stream: stream, book: book, metrics: metrics, gate: gate}
}

// IsConnected reports whether the quote stream is up.
func (c *TickCollector) IsConnected() bool { return c.stream.IsConnected() }

func (c *TickCollector) Start(ctx context.Context) error {
	if err := c.stream.Connect(ctx); err != nil {
		return err
	}
	if err := c.stream.Subscribe(ctx); err != nil {
		return err
	}
	if c.gate != nil {
		c.gate.Start(ctx)
	}
	tickCh, errCh := c.stream.Read(ctx)
	go c.consume(ctx, tickCh, errCh)
	return nil
}

func (c *TickCollector) consume(ctx context.Context, tickCh <-chan *models.Tick, errCh <-chan error) {
	for {
		select {
		case <-ctx.Done():
			return
		case err := <-errCh:
			if err != nil {
				c.metrics.RecordError("stream")
				_ = c.stream.Reconnect(ctx)
			}
		case t := <-tickCh:
			if t == nil {
				continue
			}
			if c.gate != nil {
				_ = c.gate.Process(ctx, t)
			} else {
				c.book.Update(*t)
			}
			c.metrics.RecordLastPrice(t.Symbol, t.Mid())
		}
	}
}

// Shutdown stops the gate and closes the stream.
func (c *TickCollector) Shutdown(ctx context.Context) error {
	if c.gate != nil {
		c.gate.Stop()
	}
	return c.stream.Close()
}

// KafkaTicksHandler feeds the tick book from a Kafka quotes topic, for
// deployments where quotes arrive through the broker instead of a
// direct websocket.
type KafkaTicksHandler struct {
	topic   string
	book    *TickBook
	metrics drepo.Metrics
}

func NewKafkaTicksHandler(topic string, book *TickBook, metrics drepo.Metrics) *KafkaTicksHandler {
	return &KafkaTicksHandler{topic: topic, book: book, metrics: metrics}
}

func (h *KafkaTicksHandler) Topic() string { return h.topic }

// incoming message schema: {symbol, t, bid, ask}
func (h *KafkaTicksHandler) Handle(ctx context.Context, b []byte) error {
	var m struct {
		Symbol string  `json:"symbol"`
		T      int64   `json:"t"`
		Bid    float64 `json:"bid"`
		Ask    float64 `json:"ask"`
	}
	if err := json.Unmarshal(b, &m); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return err
	}
	if m.T > 1e11 { // ms
		m.T = m.T / 1000
	}
	h.metrics.RecordLatency("tick_ingest_e2e_seconds", time.Since(time.Unix(m.T, 0)).Seconds())

	tick := models.Tick{Symbol: m.Symbol, Timestamp: m.T, Bid: m.Bid, Ask: m.Ask}
	h.book.Update(tick)
	h.metrics.RecordLastPrice(m.Symbol, tick.Mid())
	return nil
}

var _ pkgkafka.MessageHandler = (*KafkaTicksHandler)(nil)
var _ mid.TickProc = (*TickBook)(nil)
