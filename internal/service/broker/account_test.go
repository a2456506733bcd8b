package broker

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"LiqSweep/internal/domain/models"
	"LiqSweep/internal/service/ratelimit"
	xhttp "LiqSweep/pkg/http"
)

func eurusdStatic() *StaticAccountProvider {
	return NewStaticAccountProvider(
		models.Account{Balance: 10000, Currency: "USD"},
		models.Instrument{Symbol: "EURUSD", PipSize: 0.0001, Digits: 5, PipValue: 0.0001, VolumeMin: 1000, VolumeMax: 1e7, VolumeStep: 1000},
	)
}

func TestStaticProvider(t *testing.T) {
	s := eurusdStatic()
	if i, err := s.Instrument(context.Background(), "eurusd"); err != nil || i.PipSize != 0.0001 {
		t.Fatalf("unexpected instrument %+v %v", i, err)
	}
	if _, err := s.Instrument(context.Background(), "USDJPY"); err == nil {
		t.Fatal("expected unknown instrument error")
	}
}

func newProvider(url string) *HTTPAccountProvider {
	return NewHTTPAccountProvider(
		HTTPConfig{BaseURL: url, APIKey: "k", MaxRetries: 3},
		xhttp.NewClient(xhttp.WithTimeout(time.Second)),
		ratelimit.New(0, 1),
		eurusdStatic(),
		nil,
	)
}

func TestHTTPProviderRetriesAndCaches(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer k" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(models.Account{Balance: 2500, Currency: "EUR"})
	}))
	defer srv.Close()

	p := newProvider(srv.URL)
	a, err := p.Account(context.Background())
	if err != nil {
		t.Fatalf("account: %v", err)
	}
	if a.Balance != 2500 || a.Currency != "EUR" {
		t.Fatalf("unexpected account %+v", a)
	}
	if _, err := p.Account(context.Background()); err != nil {
		t.Fatalf("cached account: %v", err)
	}
	if n := atomic.LoadInt32(&calls); n != 2 {
		t.Fatalf("expected one retry and a cache hit, got %d calls", n)
	}
}

func TestHTTPProviderDoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	p := newProvider(srv.URL)
	if _, err := p.Account(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Fatalf("4xx must not be retried, got %d calls", n)
	}
}

func TestHTTPProviderInstrumentFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/instruments/GBPUSD" {
			_ = json.NewEncoder(w).Encode(models.Instrument{PipSize: 0.0001, Digits: 5, VolumeStep: 1000})
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	p := newProvider(srv.URL)
	i, err := p.Instrument(context.Background(), "GBPUSD")
	if err != nil || i.Symbol != "GBPUSD" {
		t.Fatalf("unexpected instrument %+v %v", i, err)
	}
	i, err = p.Instrument(context.Background(), "EURUSD")
	if err != nil || i.VolumeMin != 1000 {
		t.Fatalf("expected static fallback, got %+v %v", i, err)
	}
}
