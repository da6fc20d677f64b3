package middleware

import (
	"context"
	"fmt"
	"sync"
	"time"

	"Sniper/internal/domain/models"
	domrepo "Sniper/internal/domain/repository"
)

// TickProc is the minimal downstream interface the gate needs.
type TickProc interface {
	Process(ctx context.Context, t *models.Tick) error
}

// TickGate sits between the quote stream and the pipeline's tick
// consumers. It validates, throttles per symbol, and buffers when the
// downstream stalls. Quotes are a firehose and every stage past the gate
// only cares about the latest value, so dropping under pressure is fine.
type TickGate struct {
	proc     TickProc
	metrics  domrepo.Metrics
	maxRPS   int
	bufSize  int
	bufCh    chan *models.Tick
	stopCh   chan struct{}
	started  bool
	mu       sync.Mutex
	lastSeen map[string]time.Time
}

// GateOption configures a TickGate.
type GateOption func(*TickGate)

// WithMaxRPS sets the max accepted quotes per second per symbol.
func WithMaxRPS(n int) GateOption {
	return func(g *TickGate) {
		if n > 0 {
			g.maxRPS = n
		}
	}
}

// WithBufferSize sets the retry buffer capacity.
func WithBufferSize(n int) GateOption {
	return func(g *TickGate) {
		if n > 0 {
			g.bufSize = n
		}
	}
}

// NewTickGate creates a gate in front of proc.
func NewTickGate(proc TickProc, metrics domrepo.Metrics, opts ...GateOption) *TickGate {
	g := &TickGate{
		proc:     proc,
		metrics:  metrics,
		maxRPS:   20,
		bufSize:  1000,
		bufCh:    make(chan *models.Tick, 1000),
		stopCh:   make(chan struct{}),
		lastSeen: make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.bufSize != cap(g.bufCh) {
		g.bufCh = make(chan *models.Tick, g.bufSize)
	}
	return g
}

// Start launches background flushing of buffered ticks.
func (g *TickGate) Start(ctx context.Context) {
	g.mu.Lock()
	if g.started {
		g.mu.Unlock()
		return
	}
	g.started = true
	g.mu.Unlock()

	go func() {
		backoff := 50 * time.Millisecond
		for {
			select {
			case <-g.stopCh:
				return
			case t := <-g.bufCh:
				if t == nil {
					continue
				}
				if err := g.proc.Process(ctx, t); err != nil {
					if backoff < 2*time.Second {
						backoff *= 2
					}
					g.metrics.RecordError("tick_gate_flush")
					time.Sleep(backoff)
					select {
					case g.bufCh <- t:
					default:
						g.metrics.RecordError("tick_gate_drop")
					}
				} else {
					backoff = 50 * time.Millisecond
				}
			}
		}
	}()
}

// Stop halts background flushing.
func (g *TickGate) Stop() {
	g.mu.Lock()
	if !g.started {
		g.mu.Unlock()
		return
	}
	g.started = false
	g.mu.Unlock()
	close(g.stopCh)
}

// Process validates, throttles, and forwards a tick downstream,
// buffering on downstream errors.
func (g *TickGate) Process(ctx context.Context, t *models.Tick) error {
	start := time.Now()
	if err := validateTick(t); err != nil {
		g.metrics.RecordError("tick_gate_validate")
		return err
	}
	if !g.allow(t.Symbol, start) {
		// over the per-symbol rate, drop silently
		return nil
	}

	if err := g.proc.Process(ctx, t); err != nil {
		g.metrics.RecordError("tick_gate_process")
		select {
		case g.bufCh <- t:
		default:
			g.metrics.RecordError("tick_gate_buffer_full")
		}
		return fmt.Errorf("tick gate downstream: %w", err)
	}
	g.metrics.RecordLatency("tick_gate_process", time.Since(start).Seconds())
	return nil
}

func validateTick(t *models.Tick) error {
	if t == nil {
		return fmt.Errorf("tick nil")
	}
	if t.Symbol == "" {
		return fmt.Errorf("symbol empty")
	}
	if t.Bid <= 0 || t.Ask <= 0 {
		return fmt.Errorf("non-positive quote")
	}
	if t.Ask < t.Bid {
		return fmt.Errorf("crossed quote")
	}
	return nil
}

func (g *TickGate) allow(symbol string, now time.Time) bool {
	if g.maxRPS <= 0 {
		return true
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	last := g.lastSeen[symbol]
	if last.IsZero() || now.Sub(last) >= time.Second/time.Duration(g.maxRPS) {
		g.lastSeen[symbol] = now
		return true
	}
	return false
}
