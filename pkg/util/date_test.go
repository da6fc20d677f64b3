package util

import (
    "strconv"
    "testing"
    "time"
)

func TestParseTimeRFC3339(t *testing.T) {
    s := "2024-10-10T10:10:10Z"
    got, ok := ParseTime(s)
    if !ok {
        t.Fatalf("expected ok")
    }
    if got.UTC().Format(time.RFC3339) != s {
        t.Fatalf("unexpected time %v", got)
    }
}

func TestParseTimeUnix(t *testing.T) {
    ts := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC).Unix()
    got, ok := ParseTime(strconv.FormatInt(ts, 10))
    if !ok {
        t.Fatalf("expected ok")
    }
    if got.Unix() != ts {
        t.Fatalf("unexpected unix %v", got.Unix())
    }
}

func TestParseTimeDefault(t *testing.T) {
    def := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC)
    got := ParseTimeDefault("", def)
    if !got.Equal(def) {
        t.Fatalf("expected default")
    }
}

func TestNextBarClose(t *testing.T) {
    in := time.Date(2024, 10, 10, 10, 7, 3, 0, time.UTC)
    got := NextBarClose(in, 15*time.Minute)
    want := time.Date(2024, 10, 10, 10, 15, 0, 0, time.UTC)
    if !got.Equal(want) {
        t.Fatalf("expected %v, got %v", want, got)
    }
    // exactly on a boundary advances a full bar
    got = NextBarClose(want, 15*time.Minute)
    if !got.Equal(want.Add(15 * time.Minute)) {
        t.Fatalf("expected %v, got %v", want.Add(15*time.Minute), got)
    }
}

func TestBarStart(t *testing.T) {
    in := time.Date(2024, 10, 10, 10, 14, 59, 0, time.UTC)
    want := time.Date(2024, 10, 10, 10, 0, 0, 0, time.UTC)
    if got := BarStart(in, 15*time.Minute); !got.Equal(want) {
        t.Fatalf("expected %v, got %v", want, got)
    }
}