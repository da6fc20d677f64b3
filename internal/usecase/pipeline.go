package usecase

import (
	"context"
	"sync"
	"time"

	"Sniper/internal/domain/models"
	drepo "Sniper/internal/domain/repository"
	"Sniper/internal/domain/service"
	"Sniper/internal/services/classifier"
	"Sniper/internal/services/snapshot"
	"Sniper/pkg/config"
	"Sniper/pkg/logger"
)

// Pipeline drives one bar-close cycle over the whole universe: fetch
// windows, build snapshots, fast-pass rank, fold regime hysteresis, run
// the deep pass on the shortlist, and emit intents for fired triggers.
// Symbols fail independently; a bad fetch or short window skips that
// symbol for the cycle and touches nothing else.
type Pipeline struct {
	cfg     *config.Config
	log     *logger.Logger
	bars    drepo.BarSource
	book    *TickBook
	states  *StateStore
	builder *snapshot.Builder
	class   *classifier.Classifier
	gate    *classifier.AdaptiveGate
	clock   drepo.CycleClock
	emitter *Emitter
	metrics drepo.Metrics

	tpr service.Detector
	rbh service.Detector
	ecr service.Detector

	mu        sync.Mutex
	barIndex  int
	shortlist []ShortlistEntry
}

// ShortlistEntry is the ops-facing summary of one shortlist slot from
// the most recent cycle.
type ShortlistEntry struct {
	Symbol          string  `json:"symbol"`
	Regime          string  `json:"regime"`
	Bias            string  `json:"bias,omitempty"`
	QuickScore      float64 `json:"quick_score"`
	TrendConfidence float64 `json:"trend_confidence"`
	RangeConfidence float64 `json:"range_confidence"`
}

// NewPipeline wires the cycle driver.
func NewPipeline(
	cfg *config.Config,
	log *logger.Logger,
	bars drepo.BarSource,
	book *TickBook,
	states *StateStore,
	builder *snapshot.Builder,
	class *classifier.Classifier,
	gate *classifier.AdaptiveGate,
	clock drepo.CycleClock,
	emitter *Emitter,
	metrics drepo.Metrics,
	tpr, rbh, ecr service.Detector,
) *Pipeline {
	return &Pipeline{
		cfg:     cfg,
		log:     log,
		bars:    bars,
		book:    book,
		states:  states,
		builder: builder,
		class:   class,
		gate:    gate,
		clock:   clock,
		emitter: emitter,
		metrics: metrics,
		tpr:     tpr,
		rbh:     rbh,
		ecr:     ecr,
	}
}

// Run blocks, running one cycle per clock tick until the context ends.
func (p *Pipeline) Run(ctx context.Context) error {
	for {
		barTime, err := p.clock.Next(ctx)
		if err != nil {
			return err
		}
		if err := p.RunCycle(ctx, barTime); err != nil {
			p.log.Error("cycle failed", logger.Error(err))
		}
	}
}

// RunCycle executes a single bar-close cycle. Cycles never overlap.
func (p *Pipeline) RunCycle(ctx context.Context, barTime time.Time) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.barIndex++
	start := time.Now()

	snaps := make(map[string]*models.Snapshot, len(p.cfg.Pipeline.Symbols))
	candidates := make([]*models.FastCandidate, 0, len(p.cfg.Pipeline.Symbols))
	for _, symbol := range p.cfg.Pipeline.Symbols {
		window, err := p.bars.LatestWindow(ctx, symbol, p.cfg.Pipeline.WindowBars)
		if err != nil {
			p.metrics.RecordError("bar_fetch")
			p.log.Warn("bar fetch failed", logger.String("symbol", symbol), logger.Error(err))
			continue
		}
		snap := p.builder.Build(symbol, window, p.book.Spread(symbol))
		if snap == nil {
			continue
		}
		snaps[symbol] = snap
		if cand := p.class.Classify(snap); cand != nil {
			candidates = append(candidates, cand)
		}
	}

	shortlist := p.class.Shortlist(candidates)
	p.shortlist = p.shortlist[:0]
	for _, cand := range shortlist {
		p.shortlist = append(p.shortlist, ShortlistEntry{
			Symbol:          cand.Symbol,
			Regime:          string(cand.Regime),
			Bias:            string(cand.Bias),
			QuickScore:      cand.QuickScore,
			TrendConfidence: cand.TrendConfidence,
			RangeConfidence: cand.RangeConfidence,
		})
	}

	fired := false
	processed := make(map[string]bool, len(shortlist))
	for _, cand := range shortlist {
		st := p.states.Get(cand.Symbol)
		st.ObserveRegime(cand.Regime, regimeConfidence(cand))
		if p.deepPass(ctx, st, cand.Snapshot) {
			fired = true
		}
		processed[cand.Symbol] = true
		p.persist(ctx, st)
	}

	// live setups whose symbols fell off the shortlist are still managed,
	// otherwise they would neither fire nor expire
	for _, st := range p.states.ActiveSetups() {
		if processed[st.Symbol] {
			continue
		}
		snap := snaps[st.Symbol]
		if snap == nil {
			continue // no data this cycle, the setup waits
		}
		if p.deepPass(ctx, st, snap) {
			fired = true
		}
		p.persist(ctx, st)
	}

	p.gate.OnCycle(fired)

	active := len(p.states.ActiveSetups())
	p.metrics.RecordRelax(p.gate.Relax())
	p.metrics.RecordShortlist(len(shortlist))
	p.metrics.RecordActiveSetups(active)
	p.metrics.RecordLatency("cycle", time.Since(start).Seconds())

	p.log.Info("cycle complete",
		logger.Any("bar_time", barTime),
		logger.Int("bar_index", p.barIndex),
		logger.Int("snapshots", len(snaps)),
		logger.Int("shortlist", len(shortlist)),
		logger.Int("active_setups", active),
		logger.Any("relax", p.gate.Relax()),
	)
	return nil
}

// deepPass runs the owning detector for st and emits on a trigger.
// Reports whether an intent went out.
func (p *Pipeline) deepPass(ctx context.Context, st *models.SymbolState, snap *models.Snapshot) bool {
	det := p.detectorFor(st)
	if det == nil {
		return false
	}
	setup, trig := det.Detect(snap, st, p.barIndex)
	st.Active = setup
	st.LastBarTime = snap.BarTime
	if trig == nil {
		return false
	}
	st.LastSignalTime = trig.Time
	if _, err := p.emitter.Emit(ctx, trig); err != nil {
		p.log.Error("intent emit failed", logger.String("symbol", st.Symbol), logger.Error(err))
		return false
	}
	return true
}

// detectorFor picks the detector owning st: an active setup is always
// managed by the detector of its own type; otherwise the confirmed
// regime routes. An unconfirmed streak is treated like transition and
// goes to the reversion detector, which carries its own entry gates.
func (p *Pipeline) detectorFor(st *models.SymbolState) service.Detector {
	if st.Active != nil {
		switch st.Active.Type() {
		case models.SetupTPR:
			return p.tpr
		case models.SetupRBH:
			return p.rbh
		case models.SetupECR:
			return p.ecr
		}
	}
	if !p.regimeConfirmed(st) {
		return p.ecr
	}
	return service.DetectorFor(st.Regime, p.tpr, p.rbh, p.ecr)
}

// regimeConfirmed applies hysteresis. Trend and range must also clear
// the (relaxed) confidence floor; transition confirms on streak alone
// since it is by definition the low-confidence regime.
func (p *Pipeline) regimeConfirmed(st *models.SymbolState) bool {
	if st.RegimeStreak < p.cfg.Pipeline.HysteresisBars {
		return false
	}
	if st.Regime == models.RegimeTransition {
		return true
	}
	return st.RegimeConfidence >= p.gate.RegimeFloor()
}

func (p *Pipeline) persist(ctx context.Context, st *models.SymbolState) {
	if err := p.states.Persist(ctx, st); err != nil {
		p.metrics.RecordError("state_persist")
		p.log.Warn("state persist failed", logger.String("symbol", st.Symbol), logger.Error(err))
	}
}

// BarIndex returns the current cycle counter.
func (p *Pipeline) BarIndex() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.barIndex
}

// Gate exposes the adaptive gate for the ops surface.
func (p *Pipeline) Gate() *classifier.AdaptiveGate { return p.gate }

// Close releases the emitter's downstream sink.
func (p *Pipeline) Close() error { return p.emitter.Close() }

// Shortlist returns a copy of the last cycle's shortlist summaries.
func (p *Pipeline) Shortlist() []ShortlistEntry {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]ShortlistEntry, len(p.shortlist))
	copy(out, p.shortlist)
	return out
}

// regimeConfidence picks the confidence matching the candidate's regime.
func regimeConfidence(cand *models.FastCandidate) float64 {
	switch cand.Regime {
	case models.RegimeTrend:
		return cand.TrendConfidence
	case models.RegimeRange:
		return cand.RangeConfidence
	default:
		if cand.TrendConfidence > cand.RangeConfidence {
			return cand.TrendConfidence
		}
		return cand.RangeConfidence
	}
}
