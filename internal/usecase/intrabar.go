package usecase

import (
	"context"
	"sort"
	"time"

	"Sniper/internal/domain/models"
	"Sniper/pkg/logger"
)

// IntrabarScan probes the top-N armed trend setups against live quotes
// between bar closes. Only breakout-style trend entries qualify: the
// other setup kinds want a confirming close, which by definition does
// not exist intrabar. A fire here clears the setup exactly as a
// bar-close fire would.
func (p *Pipeline) IntrabarScan(ctx context.Context) {
	if !p.emitter.AllowIntrabar() {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	armed := make([]*models.SymbolState, 0)
	for _, st := range p.states.ActiveSetups() {
		if st.Active.Type() == models.SetupTPR {
			armed = append(armed, st)
		}
	}
	if len(armed) == 0 {
		return
	}

	// re-rank by setup confidence each probe; the shortlist order at
	// creation time goes stale fast
	sort.SliceStable(armed, func(i, j int) bool {
		return armed[i].Active.Core().Confidence > armed[j].Active.Core().Confidence
	})
	if n := p.cfg.Pipeline.IntrabarTopN; len(armed) > n {
		armed = armed[:n]
	}

	for _, st := range armed {
		tick, ok := p.book.Last(st.Symbol)
		if !ok {
			continue
		}
		trig := intrabarTrigger(st.Active.(*models.TPRSetup), tick)
		if trig == nil {
			continue
		}
		st.ClearSetup()
		st.LastSignalTime = trig.Time
		if _, err := p.emitter.Emit(ctx, trig); err != nil {
			p.log.Error("intrabar emit failed", logger.String("symbol", st.Symbol), logger.Error(err))
			continue
		}
		p.gate.OnFire()
		p.persist(ctx, st)
	}
}

// intrabarTrigger checks a live mid against the armed trigger level,
// honoring the no-chase bound. Momentum is unknowable mid-bar and left
// zero.
func intrabarTrigger(s *models.TPRSetup, tick models.Tick) *models.TriggerEvent {
	mid := tick.Mid()
	fired := false
	switch s.Direction {
	case models.Buy:
		fired = mid > s.TriggerLevel && mid <= s.NoChase
	case models.Sell:
		fired = mid < s.TriggerLevel && mid >= s.NoChase
	}
	if !fired {
		return nil
	}
	return &models.TriggerEvent{
		SetupType: models.SetupTPR,
		Symbol:    s.Symbol,
		Direction: s.Direction,
		Time:      time.Unix(tick.Timestamp, 0).UTC(),
		Price:     mid,
		Intrabar:  true,
		Reasons:   []string{"tpr_intrabar_break"},
		Fired:     s,
	}
}
