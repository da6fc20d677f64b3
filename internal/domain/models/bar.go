package models

import "time"

// Bar represents a closed OHLCV bar at the pipeline timeframe.
type Bar struct {
	Time   time.Time
	Symbol string
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// Body returns the absolute body size of the bar.
func (b Bar) Body() float64 {
	if b.Close >= b.Open {
		return b.Close - b.Open
	}
	return b.Open - b.Close
}

// Range returns high minus low.
func (b Bar) Range() float64 { return b.High - b.Low }

// Bullish reports whether the bar closed above its open.
func (b Bar) Bullish() bool { return b.Close > b.Open }

// Bearish reports whether the bar closed below its open.
func (b Bar) Bearish() bool { return b.Close < b.Open }

// Tick is a live best-bid/best-ask quote used by the intrabar path
// and for spread computation.
type Tick struct {
	Symbol    string
	Timestamp int64 // unix seconds
	Bid       float64
	Ask       float64
}

// Mid returns the quote midpoint.
func (t Tick) Mid() float64 { return (t.Bid + t.Ask) / 2 }

// Spread returns ask minus bid.
func (t Tick) Spread() float64 { return t.Ask - t.Bid }

// SymbolProfile carries static per-symbol calibration: asset class plus
// threshold/risk overrides applied on top of the global config.
type SymbolProfile struct {
	Symbol         string
	AssetClass     string // "fx", "metal", "index", "crypto"
	MaxSpreadATR   float64
	RiskMultiplier float64
}
