package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func wsServer(t *testing.T, frames ...string) (*httptest.Server, chan map[string]string) {
	t.Helper()
	subs := make(chan map[string]string, 4)
	up := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("token") != "secret" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		var sub map[string]string
		if err := conn.ReadJSON(&sub); err != nil {
			return
		}
		subs <- sub
		for _, f := range frames {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(f)); err != nil {
				return
			}
		}
		time.Sleep(200 * time.Millisecond)
	}))
	return srv, subs
}

func TestClientStreamsTicksForSubscribedSymbol(t *testing.T) {
	srv, subs := wsServer(t,
		`{"type":"ping"}`,
		`{"type":"trade","data":[{"s":"OANDA:EUR_USD","p":1.1012,"v":3,"t":1709543220000},{"s":"OANDA:GBP_USD","p":1.27,"v":1,"t":1709543220000}]}`,
	)
	defer srv.Close()

	c := New(Config{
		URL:         "ws" + strings.TrimPrefix(srv.URL, "http"),
		APIKey:      "secret",
		Symbol:      "EURUSD",
		VenueSymbol: "OANDA:EUR_USD",
	}, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := c.Connect(ctx); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer c.Close()
	if err := c.Subscribe(ctx); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if sub := <-subs; sub["symbol"] != "OANDA:EUR_USD" || sub["type"] != "subscribe" {
		t.Fatalf("unexpected subscription %v", sub)
	}

	ticks, _ := c.Read(ctx)
	select {
	case tk := <-ticks:
		if tk.Symbol != "EURUSD" || tk.Price != 1.1012 || tk.Volume != 3 {
			t.Fatalf("unexpected tick %+v", tk)
		}
		if !tk.Time.Equal(time.UnixMilli(1709543220000).UTC()) {
			t.Fatalf("unexpected tick time %v", tk.Time)
		}
	case <-ctx.Done():
		t.Fatal("no tick received")
	}
	select {
	case tk := <-ticks:
		t.Fatalf("foreign symbol leaked: %+v", tk)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestClientReportsReadErrors(t *testing.T) {
	srv, _ := wsServer(t)
	defer srv.Close()

	c := New(Config{URL: "ws" + strings.TrimPrefix(srv.URL, "http"), APIKey: "secret", Symbol: "EURUSD"}, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.Connect(ctx); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := c.Subscribe(ctx); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	_, errs := c.Read(ctx)
	select {
	case err := <-errs:
		if err == nil {
			t.Fatal("expected read error after server hangup")
		}
	case <-ctx.Done():
		t.Fatal("no error reported")
	}
	if c.IsConnected() {
		t.Fatal("client should be marked disconnected")
	}
}

func TestConnectRejectsBadToken(t *testing.T) {
	srv, _ := wsServer(t)
	defer srv.Close()
	c := New(Config{URL: "ws" + strings.TrimPrefix(srv.URL, "http"), APIKey: "wrong", Symbol: "EURUSD"}, nil)
	if err := c.Connect(context.Background()); err == nil {
		t.Fatal("expected handshake failure")
	}
}
