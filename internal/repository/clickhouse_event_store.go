package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"LiqSweep/internal/domain/models"
	domrepo "LiqSweep/internal/domain/repository"
	pkgch "LiqSweep/pkg/clickhouse"
)

// CHEventStore writes the decision trail to ClickHouse.
type CHEventStore struct {
	db    *sql.DB
	table string
}

func NewCHEventStore(ch *pkgch.Client, database string) *CHEventStore {
	return &CHEventStore{db: ch.DB(), table: database + ".engine_events"}
}

// EventSchema returns the DDL for the event table.
func EventSchema(database string) []string {
	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.engine_events (
            id       String,
            at       DateTime64(3, 'UTC'),
            symbol   LowCardinality(String),
            kind     LowCardinality(String),
            level    LowCardinality(String),
            level_id Int64,
            vals     String,
            note     String
        ) ENGINE = MergeTree
        PARTITION BY toYYYYMM(at)
        ORDER BY (symbol, at, kind)`, database),
	}
}

// StoreBatch inserts events with multi-row VALUES in chunks.
func (s *CHEventStore) StoreBatch(ctx context.Context, events []models.Event) error {
	const chunkSize = 1000
	for start := 0; start < len(events); start += chunkSize {
		end := start + chunkSize
		if end > len(events) {
			end = len(events)
		}
		q, args, err := buildEventInsert(s.table, events[start:end])
		if err != nil {
			return err
		}
		if q == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("insert events: %w", err)
		}
	}
	return nil
}

func buildEventInsert(table string, events []models.Event) (string, []interface{}, error) {
	values := make([]string, 0, len(events))
	args := make([]interface{}, 0, len(events)*8)
	for _, e := range events {
		if e.ID == "" || e.Kind == "" {
			continue
		}
		vals := "{}"
		if len(e.Values) > 0 {
			b, err := json.Marshal(e.Values)
			if err != nil {
				return "", nil, fmt.Errorf("encode event values: %w", err)
			}
			vals = string(b)
		}
		values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?)")
		args = append(args, e.ID, e.At.UTC(), e.Symbol, string(e.Kind), string(e.Level), int64(e.LevelID), vals, e.Note)
	}
	if len(values) == 0 {
		return "", nil, nil
	}
	q := fmt.Sprintf("INSERT INTO %s (id, at, symbol, kind, level, level_id, vals, note) VALUES %s", table, strings.Join(values, ","))
	return q, args, nil
}

func (s *CHEventStore) Close() error { return nil }

var _ domrepo.EventStore = (*CHEventStore)(nil)
