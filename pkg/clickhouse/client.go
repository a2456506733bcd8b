// Package clickhouse opens the database/sql pool backing bar history and the
// decision event log.
package clickhouse

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/creasty/defaults"
)

// Config describes the connection. Zero fields take the `default` tags.
type Config struct {
	Host     string `default:"localhost"`
	Port     int    `default:"9000"`
	User     string `default:"default"`
	Password string
	// UseHTTP selects the HTTP interface instead of the native protocol.
	UseHTTP bool
	// AsyncInsert lets the server buffer inserts; WaitForAsync makes the
	// insert return only once the buffer is flushed.
	AsyncInsert      bool
	WaitForAsync     bool
	DialTimeout      time.Duration `default:"5s"`
	ReadTimeout      time.Duration `default:"10s"`
	MaxExecutionTime time.Duration `default:"30s"`
	MaxOpenConns     int           `default:"10"`
	MaxIdleConns     int           `default:"5"`
}

// Client owns the pool. Tables are always addressed as database.table, so
// the session stays on the server's default database and the schema
// statements can create the engine database itself.
type Client struct {
	db *sql.DB
}

func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	opts, err := options(cfg)
	if err != nil {
		return nil, err
	}
	db := clickhouse.OpenDB(opts)
	db.SetMaxOpenConns(opts.MaxOpenConns)
	db.SetMaxIdleConns(opts.MaxIdleConns)
	db.SetConnMaxLifetime(opts.ConnMaxLifetime)

	pctx, cancel := context.WithTimeout(ctx, opts.DialTimeout)
	defer cancel()
	if err := db.PingContext(pctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("clickhouse ping %s: %w", opts.Addr[0], err)
	}
	return &Client{db: db}, nil
}

func options(cfg Config) (*clickhouse.Options, error) {
	if err := defaults.Set(&cfg); err != nil {
		return nil, fmt.Errorf("clickhouse defaults: %w", err)
	}
	if cfg.Host == "" {
		return nil, errors.New("clickhouse: empty host")
	}
	settings := clickhouse.Settings{}
	if s := int(cfg.MaxExecutionTime / time.Second); s > 0 {
		settings["max_execution_time"] = s
	}
	if cfg.AsyncInsert {
		settings["async_insert"] = 1
		if cfg.WaitForAsync {
			settings["wait_for_async_insert"] = 1
		} else {
			settings["wait_for_async_insert"] = 0
		}
	}
	proto := clickhouse.Native
	if cfg.UseHTTP {
		proto = clickhouse.HTTP
	}
	return &clickhouse.Options{
		Protocol:        proto,
		Addr:            []string{fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)},
		Auth:            clickhouse.Auth{Username: cfg.User, Password: cfg.Password},
		Settings:        settings,
		DialTimeout:     cfg.DialTimeout,
		ReadTimeout:     cfg.ReadTimeout,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: 5 * time.Minute,
		Compression:     &clickhouse.Compression{Method: clickhouse.CompressionLZ4},
	}, nil
}

func (c *Client) DB() *sql.DB { return c.db }

func (c *Client) Health(ctx context.Context) error { return c.db.PingContext(ctx) }

func (c *Client) Close() error { return c.db.Close() }

// Exec runs DDL statements in order and stops at the first failure.
func (c *Client) Exec(ctx context.Context, stmts ...string) error {
	for i, stmt := range stmts {
		if _, err := c.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("statement %d: %w", i+1, err)
		}
	}
	return nil
}
