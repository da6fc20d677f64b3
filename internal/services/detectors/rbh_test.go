package detectors

import (
	"math"
	"testing"
	"time"

	"Sniper/internal/domain/models"
)

func rangeBoundSnapshot(lastBar models.Bar) *models.Snapshot {
	return &models.Snapshot{
		Symbol:  "XAUUSD",
		BarTime: lastBar.Time,
		Bars:    []models.Bar{lastBar},
		ATR:     1.0,
		EMA20:   103, EMA50: 103.1,
		EMA20Slope: 0.02, EMA50Slope: 0.01,
		TrendState: models.TrendStateRange,
		Range: &models.RangeInfo{
			High: 105, Low: 101, Width: 4,
			TouchHigh: 3, TouchLow: 3,
		},
		Compression: 30,
		Spread:      0.03,
		SpreadATR:   0.03,
	}
}

func armedRBH(dir models.Direction) *models.RBHSetup {
	return &models.RBHSetup{
		SetupCore: models.SetupCore{
			Symbol:    "XAUUSD",
			Direction: dir,
			ExpiryBar: 210,
		},
		Phase: models.RBHAwaitingBreak,
		Range: models.RangeInfo{High: 105, Low: 101, Width: 4, TouchHigh: 3, TouchLow: 3},
	}
}

func TestRBHArmsNearUpperBoundary(t *testing.T) {
	d := NewRBH(testConfig())
	st := &models.SymbolState{Symbol: "XAUUSD"}
	snap := rangeBoundSnapshot(barAt(time.Date(2025, 3, 4, 10, 0, 0, 0, time.UTC), 104.2, 104.6, 104.0, 104.5))

	setup, trig := d.Detect(snap, st, 200)
	if trig != nil {
		t.Fatalf("arming must not trigger: %+v", trig)
	}
	rbh, ok := setup.(*models.RBHSetup)
	if !ok {
		t.Fatalf("expected *RBHSetup, got %T", setup)
	}
	if rbh.Phase != models.RBHAwaitingBreak {
		t.Errorf("phase = %s, want awaiting_break", rbh.Phase)
	}
	if rbh.Direction != models.Buy {
		t.Errorf("direction = %s, want buy near upper boundary", rbh.Direction)
	}
}

func TestRBHIgnoresMidRangeClose(t *testing.T) {
	d := NewRBH(testConfig())
	st := &models.SymbolState{Symbol: "XAUUSD"}
	snap := rangeBoundSnapshot(barAt(time.Date(2025, 3, 4, 10, 0, 0, 0, time.UTC), 103, 103.3, 102.8, 103.1))

	if setup, _ := d.Detect(snap, st, 200); setup != nil {
		t.Fatalf("mid-range close must not arm: %+v", setup)
	}
}

func TestRBHBreakConfirmation(t *testing.T) {
	d := NewRBH(testConfig())
	st := &models.SymbolState{Symbol: "XAUUSD"}
	st.Active = armedRBH(models.Buy)

	// strong close beyond boundary plus buffer, outer-range close
	snap := rangeBoundSnapshot(barAt(time.Date(2025, 3, 4, 10, 15, 0, 0, time.UTC), 104.6, 105.8, 104.5, 105.7))
	setup, trig := d.Detect(snap, st, 201)
	if trig != nil {
		t.Fatalf("break bar is never the entry: %+v", trig)
	}
	rbh := setup.(*models.RBHSetup)
	if rbh.Phase != models.RBHBreakConfirmed {
		t.Fatalf("phase = %s, want break_confirmed", rbh.Phase)
	}
	if rbh.BrokenLevel != 105 {
		t.Errorf("broken level = %v, want 105", rbh.BrokenLevel)
	}
	if rbh.BreakBar != 201 || rbh.RetestDue != 209 {
		t.Errorf("break bar %d, retest due %d", rbh.BreakBar, rbh.RetestDue)
	}
	if rbh.BreakExtreme != 105.8 {
		t.Errorf("break extreme = %v", rbh.BreakExtreme)
	}
	if rbh.TriggerLevel <= rbh.BrokenLevel {
		t.Errorf("entry %v must sit beyond the broken level", rbh.TriggerLevel)
	}
	// stop goes under the break bar's low, not inside the range body
	if math.Abs(rbh.StopLoss-104.15) > 1e-9 {
		t.Errorf("stop = %v, want break-bar low minus buffer 104.15", rbh.StopLoss)
	}
	if rbh.TakeProfit1 <= rbh.TriggerLevel || rbh.TakeProfit2 <= rbh.TakeProfit1 {
		t.Errorf("targets out of order: tp1=%v tp2=%v", rbh.TakeProfit1, rbh.TakeProfit2)
	}
}

func TestRBHWeakBreakBarDoesNotConfirm(t *testing.T) {
	d := NewRBH(testConfig())
	st := &models.SymbolState{Symbol: "XAUUSD"}
	st.Active = armedRBH(models.Buy)

	// closes beyond the buffer but with a tiny body and a mid-range close
	snap := rangeBoundSnapshot(barAt(time.Date(2025, 3, 4, 10, 15, 0, 0, time.UTC), 105.2, 105.9, 104.8, 105.3))
	setup, _ := d.Detect(snap, st, 201)
	rbh := setup.(*models.RBHSetup)
	if rbh.Phase != models.RBHAwaitingBreak {
		t.Fatalf("weak bar must not confirm, phase = %s", rbh.Phase)
	}
}

func brokenRBH() *models.RBHSetup {
	return &models.RBHSetup{
		SetupCore: models.SetupCore{
			Symbol:       "XAUUSD",
			Direction:    models.Buy,
			ExpiryBar:    210,
			TriggerLevel: 105.1,
			Invalidation: 101,
			StopLoss:     104.15,
			NoChase:      105.8,
			TakeProfit1:  108.2,
			TakeProfit2:  111,
		},
		Phase:        models.RBHBreakConfirmed,
		Range:        models.RangeInfo{High: 105, Low: 101, Width: 4, TouchHigh: 3, TouchLow: 3},
		BrokenLevel:  105,
		BreakBar:     201,
		BreakExtreme: 105.8,
		RetestDue:    209,
	}
}

func TestRBHRetestHoldFiresTrigger(t *testing.T) {
	d := NewRBH(testConfig())
	st := &models.SymbolState{Symbol: "XAUUSD"}
	st.Active = brokenRBH()

	// dips into the retest zone and closes back above the broken level
	snap := rangeBoundSnapshot(barAt(time.Date(2025, 3, 4, 10, 30, 0, 0, time.UTC), 105.6, 105.7, 105.05, 105.4))
	setup, trig := d.Detect(snap, st, 203)
	if setup != nil {
		t.Fatalf("fired setup must clear: %+v", setup)
	}
	if trig == nil {
		t.Fatal("expected retest-hold trigger")
	}
	if trig.Price != 105.1 {
		t.Errorf("trigger price = %v, want entry level 105.1", trig.Price)
	}
	if trig.SetupType != models.SetupRBH {
		t.Errorf("setup type = %s", trig.SetupType)
	}
	fired := trig.Fired.(*models.RBHSetup)
	// retest low 105.05 minus buffer is too tight, so the stop floors at
	// the minimum distance below entry
	if math.Abs(fired.StopLoss-104.3) > 1e-9 {
		t.Errorf("stop = %v, want min-distance floor 104.3", fired.StopLoss)
	}
}

func TestRBHDeepRetestRepositionsStop(t *testing.T) {
	d := NewRBH(testConfig())
	st := &models.SymbolState{Symbol: "XAUUSD"}
	st.Active = brokenRBH()

	// a deep dip that still holds the breakout side puts the stop under
	// the retest low without flooring
	snap := rangeBoundSnapshot(barAt(time.Date(2025, 3, 4, 10, 30, 0, 0, time.UTC), 105.5, 105.6, 104.0, 105.2))
	_, trig := d.Detect(snap, st, 203)
	if trig == nil {
		t.Fatal("expected retest-hold trigger")
	}
	fired := trig.Fired.(*models.RBHSetup)
	if math.Abs(fired.StopLoss-103.65) > 1e-9 {
		t.Errorf("stop = %v, want retest low minus buffer 103.65", fired.StopLoss)
	}
}

func TestRBHFailedBreakInvalidates(t *testing.T) {
	d := NewRBH(testConfig())
	st := &models.SymbolState{Symbol: "XAUUSD"}
	st.Active = brokenRBH()

	// closes back inside the range
	snap := rangeBoundSnapshot(barAt(time.Date(2025, 3, 4, 10, 30, 0, 0, time.UTC), 105.3, 105.4, 104, 104.2))
	setup, trig := d.Detect(snap, st, 203)
	if setup != nil || trig != nil {
		t.Fatalf("failed break must clear silently, got setup=%v trig=%v", setup, trig)
	}
}

func TestRBHRetestWindowExpires(t *testing.T) {
	d := NewRBH(testConfig())
	st := &models.SymbolState{Symbol: "XAUUSD"}
	st.Active = brokenRBH()

	// price never came back; past the retest window the setup dies
	snap := rangeBoundSnapshot(barAt(time.Date(2025, 3, 4, 13, 0, 0, 0, time.UTC), 106.8, 107.2, 106.6, 107.0))
	setup, trig := d.Detect(snap, st, 210)
	if setup != nil || trig != nil {
		t.Fatal("stale retest window must clear the setup")
	}
}

func TestRBHPhaseNeverSkipsBreak(t *testing.T) {
	s := armedRBH(models.Buy)
	if s.Advance(models.RBHRetestConfirmed) {
		t.Fatal("awaiting_break -> retest_confirmed must be rejected")
	}
	if s.Phase != models.RBHAwaitingBreak {
		t.Fatalf("rejected transition mutated phase to %s", s.Phase)
	}
	if !s.Advance(models.RBHBreakConfirmed) {
		t.Fatal("awaiting_break -> break_confirmed must be allowed")
	}
	if s.Advance(models.RBHAwaitingBreak) {
		t.Fatal("state machine must not move backwards")
	}
	if !s.Advance(models.RBHRetestConfirmed) {
		t.Fatal("break_confirmed -> retest_confirmed must be allowed")
	}
	if s.Advance(models.RBHExpired) {
		t.Fatal("terminal phases accept no transitions")
	}
}
