package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"Sniper/internal/domain/models"
	pkgch "Sniper/pkg/clickhouse"
	applogger "Sniper/pkg/logger"
)

const barsTable = "sniper.bars_15m"

// CHBarSource reads closed 15m bars from ClickHouse. The upstream
// aggregation job owns the table; this side only reads.
type CHBarSource struct {
	db *sql.DB
	l  *applogger.Logger
}

func NewCHBarSource(ch *pkgch.Client) *CHBarSource {
	return &CHBarSource{db: ch.DB()}
}

// SetLogger injects a structured logger.
func (s *CHBarSource) SetLogger(l *applogger.Logger) { s.l = l }

// LatestWindow returns up to n closed bars for symbol, oldest first.
func (s *CHBarSource) LatestWindow(ctx context.Context, symbol string, n int) ([]models.Bar, error) {
	start := time.Now()
	const q = `
        SELECT bucket, symbol, open, high, low, close, vol
        FROM ` + barsTable + `
        WHERE symbol = ?
        ORDER BY bucket DESC
        LIMIT ?
    `
	rows, err := s.db.QueryContext(ctx, q, symbol, n)
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse bar window query error",
				applogger.String("symbol", symbol),
				applogger.Int("limit", n),
				applogger.Error(err),
			)
		}
		return nil, fmt.Errorf("bar window: %w", err)
	}
	defer rows.Close()

	tmp := make([]models.Bar, 0, n)
	for rows.Next() {
		var b models.Bar
		if err := rows.Scan(&b.Time, &b.Symbol, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, fmt.Errorf("scan bar: %w", err)
		}
		tmp = append(tmp, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	// reverse to ASC
	for i, j := 0, len(tmp)-1; i < j; i, j = i+1, j-1 {
		tmp[i], tmp[j] = tmp[j], tmp[i]
	}
	if s.l != nil {
		s.l.Debug("clickhouse bar window ok",
			applogger.String("symbol", symbol),
			applogger.Int("rows", len(tmp)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return tmp, nil
}

func (s *CHBarSource) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *CHBarSource) Close() error {
	return nil // client lifecycle managed by pkg
}

const intentsTable = "sniper.intents"

// CHIntentArchive persists emitted intents for research and audit.
type CHIntentArchive struct {
	db *sql.DB
}

func NewCHIntentArchive(ch *pkgch.Client) *CHIntentArchive {
	return &CHIntentArchive{db: ch.DB()}
}

func (a *CHIntentArchive) Store(ctx context.Context, in *models.ExecutionIntent) error {
	const q = `INSERT INTO ` + intentsTable + `
        (id, created_at, symbol, setup_type, direction, entry_type, entry_price,
         stop_loss, tp1, tp2, expiry_bars, risk_factor, reasons)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := a.db.ExecContext(ctx, q,
		in.ID,
		in.CreatedAt,
		in.Symbol,
		string(in.SetupType),
		string(in.Direction),
		string(in.EntryType),
		in.EntryPrice,
		in.StopLoss,
		in.TP1,
		in.TP2,
		in.ExpiryBars,
		in.RiskFactor,
		in.Reasons,
	)
	if err != nil {
		return fmt.Errorf("archive intent: %w", err)
	}
	return nil
}

func (a *CHIntentArchive) Recent(ctx context.Context, limit int) ([]*models.ExecutionIntent, error) {
	if limit <= 0 {
		limit = 50
	}
	const q = `
        SELECT id, created_at, symbol, setup_type, direction, entry_type, entry_price,
               stop_loss, tp1, tp2, expiry_bars, risk_factor, reasons
        FROM ` + intentsTable + `
        ORDER BY created_at DESC
        LIMIT ?
    `
	rows, err := a.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("recent intents: %w", err)
	}
	defer rows.Close()

	var out []*models.ExecutionIntent
	for rows.Next() {
		var in models.ExecutionIntent
		var setupType, direction, entryType string
		if err := rows.Scan(&in.ID, &in.CreatedAt, &in.Symbol, &setupType, &direction,
			&entryType, &in.EntryPrice, &in.StopLoss, &in.TP1, &in.TP2,
			&in.ExpiryBars, &in.RiskFactor, &in.Reasons); err != nil {
			return nil, fmt.Errorf("scan intent: %w", err)
		}
		in.SetupType = models.SetupType(setupType)
		in.Direction = models.Direction(direction)
		in.EntryType = models.EntryType(entryType)
		out = append(out, &in)
	}
	return out, rows.Err()
}

func (a *CHIntentArchive) Health(ctx context.Context) error {
	return a.db.PingContext(ctx)
}

func (a *CHIntentArchive) Close() error { return nil }
