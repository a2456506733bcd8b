package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"LiqSweep/internal/domain/models"
	domrepo "LiqSweep/internal/domain/repository"
	pkgch "LiqSweep/pkg/clickhouse"
	applogger "LiqSweep/pkg/logger"
)

// CHBarStore implements BarStore backed by ClickHouse.
type CHBarStore struct {
	db    *sql.DB
	table string
	l     *applogger.Logger
}

func NewCHBarStore(ch *pkgch.Client, database string) *CHBarStore {
	return &CHBarStore{db: ch.DB(), table: database + ".bars", l: applogger.Nop()}
}

// SetLogger injects a structured logger.
func (s *CHBarStore) SetLogger(l *applogger.Logger) {
	if l != nil {
		s.l = l
	}
}

// BarSchema returns the idempotent DDL for the bar table.
func BarSchema(database string) []string {
	return []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.bars (
            symbol    LowCardinality(String),
            tf        LowCardinality(String),
            open_time DateTime64(3, 'UTC'),
            open      Float64,
            high      Float64,
            low       Float64,
            close     Float64,
            volume    Float64,
            inserted  DateTime DEFAULT now()
        ) ENGINE = ReplacingMergeTree(inserted)
        ORDER BY (symbol, tf, open_time)`, database),
	}
}

func (s *CHBarStore) GetBars(ctx context.Context, symbol string, from, to time.Time, tf domrepo.Timeframe) ([]models.Bar, error) {
	const qtpl = `
        SELECT open_time, symbol, open, high, low, close, volume
        FROM %s FINAL
        WHERE symbol = ? AND tf = ? AND open_time >= ? AND open_time <= ?
        ORDER BY open_time ASC
    `
	return s.query(ctx, "get_bars", fmt.Sprintf(qtpl, s.table), symbol, tf, false, symbol, string(tf), from, to)
}

// GetLatestNBars returns up to n newest bars in ascending order.
func (s *CHBarStore) GetLatestNBars(ctx context.Context, symbol string, n int, tf domrepo.Timeframe) ([]models.Bar, error) {
	const qtpl = `
        SELECT open_time, symbol, open, high, low, close, volume
        FROM %s FINAL
        WHERE symbol = ? AND tf = ?
        ORDER BY open_time DESC
        LIMIT ?
    `
	return s.query(ctx, "latest_bars", fmt.Sprintf(qtpl, s.table), symbol, tf, true, symbol, string(tf), n)
}

func (s *CHBarStore) AppendBar(ctx context.Context, tf domrepo.Timeframe, b models.Bar) error {
	q := fmt.Sprintf("INSERT INTO %s (symbol, tf, open_time, open, high, low, close, volume) VALUES (?, ?, ?, ?, ?, ?, ?, ?)", s.table)
	_, err := s.db.ExecContext(ctx, q, b.Symbol, string(tf), b.OpenTime.UTC(), b.Open, b.High, b.Low, b.Close, b.Volume)
	if err != nil {
		s.l.Error("clickhouse append_bar error",
			applogger.String("symbol", b.Symbol),
			applogger.String("tf", string(tf)),
			applogger.Error(err),
		)
		return fmt.Errorf("append bar: %w", err)
	}
	return nil
}

func (s *CHBarStore) query(ctx context.Context, op, q, symbol string, tf domrepo.Timeframe, reverse bool, args ...interface{}) ([]models.Bar, error) {
	start := time.Now()
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		s.l.Error("clickhouse "+op+" query error",
			applogger.String("symbol", symbol),
			applogger.String("tf", string(tf)),
			applogger.Error(err),
		)
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	out := make([]models.Bar, 0, 512)
	for rows.Next() {
		var b models.Bar
		if err := rows.Scan(&b.OpenTime, &b.Symbol, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, fmt.Errorf("scan bar: %w", err)
		}
		b.OpenTime = b.OpenTime.UTC()
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	if reverse {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	s.l.Debug("clickhouse "+op+" ok",
		applogger.String("symbol", symbol),
		applogger.String("tf", string(tf)),
		applogger.Int("rows", len(out)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return out, nil
}

var _ domrepo.BarStore = (*CHBarStore)(nil)
