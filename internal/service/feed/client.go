// Package feed streams live prices from a Finnhub-style WebSocket.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"

	"LiqSweep/internal/domain/models"
	drepo "LiqSweep/internal/domain/repository"
	"LiqSweep/pkg/logger"
)

var errNotConnected = errors.New("feed not connected")

// Config describes one subscription. VenueSymbol is what the venue expects;
// ticks are emitted under Symbol.
type Config struct {
	URL            string
	APIKey         string
	Symbol         string
	VenueSymbol    string
	ReconnectDelay time.Duration
	PingInterval   time.Duration
	BufferSize     int
}

// Client implements MarketStream. Read returns channels that survive
// reconnects; after a read error the loop waits for Reconnect.
type Client struct {
	cfg Config
	log *logger.Logger

	mu        sync.RWMutex
	conn      *websocket.Conn
	connected bool
	resume    chan struct{}
}

func New(cfg Config, log *logger.Logger) *Client {
	if cfg.VenueSymbol == "" {
		cfg.VenueSymbol = cfg.Symbol
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1024
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = 3 * time.Second
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Client{
		cfg:    cfg,
		log:    log.With(logger.String("component", "feed"), logger.String("symbol", cfg.Symbol)),
		resume: make(chan struct{}, 1),
	}
}

func (c *Client) dialURL() (string, error) {
	u, err := url.Parse(c.cfg.URL)
	if err != nil {
		return "", fmt.Errorf("feed url: %w", err)
	}
	if c.cfg.APIKey != "" {
		q := u.Query()
		q.Set("token", c.cfg.APIKey)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// Connect dials the WebSocket.
func (c *Client) Connect(ctx context.Context) error {
	u, err := c.dialURL()
	if err != nil {
		return err
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u, nil)
	if err != nil {
		return fmt.Errorf("feed connect: %w", err)
	}
	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()
	c.log.Info("feed connected")
	return nil
}

// Subscribe asks the venue for the configured symbol.
func (c *Client) Subscribe(ctx context.Context) error {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()
	if conn == nil {
		return errNotConnected
	}
	msg := map[string]string{"type": "subscribe", "symbol": c.cfg.VenueSymbol}
	if err := conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("subscribe %s: %w", c.cfg.VenueSymbol, err)
	}
	c.log.Info("feed subscribed", logger.String("venue_symbol", c.cfg.VenueSymbol))
	return nil
}

type wireTrade struct {
	S string  `json:"s"`
	P float64 `json:"p"`
	V float64 `json:"v"`
	T int64   `json:"t"` // ms
}

type wireMessage struct {
	Type string      `json:"type"`
	Data []wireTrade `json:"data"`
}

// Read streams ticks and errors until ctx is done.
func (c *Client) Read(ctx context.Context) (<-chan *models.Tick, <-chan error) {
	ticks := make(chan *models.Tick, c.cfg.BufferSize)
	errs := make(chan error, 1)

	if c.cfg.PingInterval > 0 {
		go c.pingLoop(ctx)
	}

	go func() {
		defer close(ticks)
		for {
			c.mu.RLock()
			conn := c.conn
			c.mu.RUnlock()
			if conn == nil {
				select {
				case <-ctx.Done():
					return
				case <-c.resume:
					continue
				}
			}
			_, b, err := conn.ReadMessage()
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				c.markDown(conn)
				select {
				case errs <- fmt.Errorf("feed read: %w", err):
				default:
				}
				select {
				case <-ctx.Done():
					return
				case <-c.resume:
				}
				continue
			}
			for _, t := range c.decode(b) {
				select {
				case ticks <- t:
				default:
					c.log.Warn("feed backpressure, tick dropped")
				}
			}
		}
	}()

	return ticks, errs
}

// decode ignores frames that are not trades for the subscribed symbol.
func (c *Client) decode(b []byte) []*models.Tick {
	var m wireMessage
	if err := json.Unmarshal(b, &m); err != nil || m.Type != "trade" {
		return nil
	}
	out := make([]*models.Tick, 0, len(m.Data))
	for _, d := range m.Data {
		if d.S != c.cfg.VenueSymbol || d.P <= 0 {
			continue
		}
		out = append(out, &models.Tick{
			Symbol: c.cfg.Symbol,
			Time:   time.UnixMilli(d.T).UTC(),
			Price:  d.P,
			Volume: d.V,
		})
	}
	return out
}

func (c *Client) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.mu.RLock()
			conn := c.conn
			c.mu.RUnlock()
			if conn != nil {
				_ = conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
			}
		}
	}
}

func (c *Client) markDown(conn *websocket.Conn) {
	c.mu.Lock()
	if c.conn == conn {
		c.connected = false
	}
	c.mu.Unlock()
}

// Reconnect closes the current socket and dials again with exponential
// backoff until it succeeds or ctx is done.
func (c *Client) Reconnect(ctx context.Context) error {
	_ = c.Close()
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.cfg.ReconnectDelay
	b.MaxInterval = 20 * c.cfg.ReconnectDelay
	b.MaxElapsedTime = 0

	op := func() error {
		if err := c.Connect(ctx); err != nil {
			c.log.Warn("feed reconnect attempt failed", logger.Error(err))
			return err
		}
		return c.Subscribe(ctx)
	}
	if err := backoff.Retry(op, backoff.WithContext(b, ctx)); err != nil {
		return err
	}
	select {
	case c.resume <- struct{}{}:
	default:
	}
	return nil
}

// Close closes the socket.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

var _ drepo.MarketStream = (*Client)(nil)
