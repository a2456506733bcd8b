// Package broker supplies account balance and instrument metadata.
package broker

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"LiqSweep/internal/domain/models"
	domsvc "LiqSweep/internal/domain/service"
	icache "LiqSweep/internal/service/cache"
	"LiqSweep/internal/service/ratelimit"
	xhttp "LiqSweep/pkg/http"
	"LiqSweep/pkg/logger"
)

// StaticAccountProvider serves fixed values from configuration.
type StaticAccountProvider struct {
	account     models.Account
	instruments map[string]models.Instrument
}

func NewStaticAccountProvider(account models.Account, instruments ...models.Instrument) *StaticAccountProvider {
	m := make(map[string]models.Instrument, len(instruments))
	for _, i := range instruments {
		m[strings.ToUpper(i.Symbol)] = i
	}
	return &StaticAccountProvider{account: account, instruments: m}
}

func (s *StaticAccountProvider) Account(context.Context) (models.Account, error) {
	return s.account, nil
}

func (s *StaticAccountProvider) Instrument(_ context.Context, symbol string) (models.Instrument, error) {
	i, ok := s.instruments[strings.ToUpper(symbol)]
	if !ok {
		return models.Instrument{}, fmt.Errorf("instrument %s not configured", symbol)
	}
	return i, nil
}

// HTTPConfig configures HTTPAccountProvider.
type HTTPConfig struct {
	BaseURL     string
	APIKey      string
	MaxRetries  uint64
	AccountTTL  time.Duration
	MetadataTTL time.Duration
}

// HTTPAccountProvider reads the broker's REST API with a request rate
// limit, exponential retry on transient failures and short-lived caching.
// Instrument lookups fall back to a static provider when the API fails.
type HTTPAccountProvider struct {
	cfg         HTTPConfig
	client      *xhttp.Client
	limiter     *ratelimit.Limiter
	fallback    domsvc.AccountProvider
	accounts    *icache.TTL[models.Account]
	instruments *icache.TTL[models.Instrument]
	log         *logger.Logger
}

func NewHTTPAccountProvider(cfg HTTPConfig, client *xhttp.Client, limiter *ratelimit.Limiter, fallback domsvc.AccountProvider, log *logger.Logger) *HTTPAccountProvider {
	if cfg.AccountTTL <= 0 {
		cfg.AccountTTL = 5 * time.Second
	}
	if cfg.MetadataTTL <= 0 {
		cfg.MetadataTTL = 10 * time.Minute
	}
	if log == nil {
		log = logger.Nop()
	}
	return &HTTPAccountProvider{
		cfg:         cfg,
		client:      client,
		limiter:     limiter,
		fallback:    fallback,
		accounts:    icache.NewTTL[models.Account](),
		instruments: icache.NewTTL[models.Instrument](),
		log:         log.With(logger.String("component", "broker")),
	}
}

func (p *HTTPAccountProvider) Account(ctx context.Context) (models.Account, error) {
	if a, ok := p.accounts.Get("account"); ok {
		return a, nil
	}
	var a models.Account
	if err := p.get(ctx, "/account", &a); err != nil {
		return models.Account{}, fmt.Errorf("broker account: %w", err)
	}
	p.accounts.Set("account", a, p.cfg.AccountTTL)
	return a, nil
}

func (p *HTTPAccountProvider) Instrument(ctx context.Context, symbol string) (models.Instrument, error) {
	key := strings.ToUpper(symbol)
	if i, ok := p.instruments.Get(key); ok {
		return i, nil
	}
	var i models.Instrument
	err := p.get(ctx, "/instruments/"+url.PathEscape(symbol), &i)
	if err == nil && i.PipSize <= 0 {
		err = fmt.Errorf("instrument %s without pip size", symbol)
	}
	if err != nil {
		if p.fallback == nil || ctx.Err() != nil {
			return models.Instrument{}, fmt.Errorf("broker instrument: %w", err)
		}
		p.log.Warn("broker instrument lookup failed, using static metadata",
			logger.String("symbol", symbol), logger.Error(err))
		return p.fallback.Instrument(ctx, symbol)
	}
	if i.Symbol == "" {
		i.Symbol = symbol
	}
	p.instruments.Set(key, i, p.cfg.MetadataTTL)
	return i, nil
}

func (p *HTTPAccountProvider) get(ctx context.Context, path string, dest interface{}) error {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx, "broker"); err != nil {
			return err
		}
	}
	header := http.Header{}
	if p.cfg.APIKey != "" {
		header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	}
	endpoint := strings.TrimRight(p.cfg.BaseURL, "/") + path
	op := func() error {
		err := p.client.GetJSON(ctx, endpoint, header, dest)
		var se *xhttp.StatusError
		if errors.As(err, &se) && !se.Temporary() {
			return backoff.Permanent(err)
		}
		return err
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxElapsedTime = 10 * time.Second
	return backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(b, p.cfg.MaxRetries), ctx))
}

var (
	_ domsvc.AccountProvider = (*StaticAccountProvider)(nil)
	_ domsvc.AccountProvider = (*HTTPAccountProvider)(nil)
)
