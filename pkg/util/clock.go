package util

import (
    "context"
    "time"
)

// BarClock yields bar-close instants. Each Next waits until the current
// bar closes plus a grace delay, then reports the close time. The grace
// delay gives the bar store time to land the final bar.
type BarClock struct {
    interval time.Duration
    grace    time.Duration
}

func NewBarClock(interval, grace time.Duration) *BarClock {
    if interval <= 0 {
        interval = 15 * time.Minute
    }
    return &BarClock{interval: interval, grace: grace}
}

func (c *BarClock) Next(ctx context.Context) (time.Time, error) {
    now := time.Now()
    barClose := NextBarClose(now, c.interval)
    timer := time.NewTimer(barClose.Add(c.grace).Sub(now))
    defer timer.Stop()
    select {
    case <-ctx.Done():
        return time.Time{}, ctx.Err()
    case <-timer.C:
        return barClose, nil
    }
}
