package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"LiqSweep/internal/domain/models"
	domrepo "LiqSweep/internal/domain/repository"
	mid "LiqSweep/internal/middleware"
	pkgkafka "LiqSweep/pkg/kafka"
	xutil "LiqSweep/pkg/util"
)

// KafkaBarsHandler consumes the bars topic. A message carrying a timeframe is
// a closed bar; anything else is a tick and goes through the tick pipeline.
type KafkaBarsHandler struct {
	topic   string
	symbol  string
	market  *MarketData
	pipe    *mid.TickPipeline
	metrics domrepo.Metrics
}

func NewKafkaBarsHandler(topic, symbol string, market *MarketData, pipe *mid.TickPipeline, metrics domrepo.Metrics) *KafkaBarsHandler {
	return &KafkaBarsHandler{topic: topic, symbol: symbol, market: market, pipe: pipe, metrics: metrics}
}

func (h *KafkaBarsHandler) Topic() string { return h.topic }

// Start runs the pipeline's retry loop for the lifetime of the consumer.
func (h *KafkaBarsHandler) Start(ctx context.Context) { h.pipe.Start(ctx) }

func (h *KafkaBarsHandler) Stop() { h.pipe.Stop() }

// incoming message schema: {symbol, tf?, t, o?, h?, l?, c, v}
type barMessage struct {
	Symbol string  `json:"symbol"`
	TF     string  `json:"tf"`
	T      int64   `json:"t"`
	O      float64 `json:"o"`
	H      float64 `json:"h"`
	L      float64 `json:"l"`
	C      float64 `json:"c"`
	V      float64 `json:"v"`
}

func (h *KafkaBarsHandler) Handle(ctx context.Context, b []byte) error {
	var m barMessage
	if err := json.Unmarshal(b, &m); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return pkgkafka.Permanent(err)
	}
	if m.Symbol != "" && m.Symbol != h.symbol {
		return nil
	}
	at := xutil.UnixAny(m.T)
	h.metrics.RecordLatency("ingest_e2e_seconds", time.Since(at).Seconds())

	if m.TF == "" {
		return h.pipe.Process(ctx, &models.Tick{Symbol: h.symbol, Time: at, Price: m.C, Volume: m.V})
	}

	tf := domrepo.Timeframe(m.TF)
	if !domrepo.IsValidTimeframe(tf) {
		h.metrics.RecordError("consumer_timeframe")
		return pkgkafka.Permanent(fmt.Errorf("unknown timeframe %q", m.TF))
	}
	bar := models.Bar{OpenTime: at, Symbol: h.symbol, Open: m.O, High: m.H, Low: m.L, Close: m.C, Volume: m.V}
	if bar.High < bar.Low || bar.Close <= 0 {
		h.metrics.RecordError("consumer_bar")
		return pkgkafka.Permanent(fmt.Errorf("malformed bar at %s", at.Format(time.RFC3339)))
	}
	if err := h.market.OnBar(ctx, tf, bar); err != nil {
		h.metrics.RecordError("consumer_bar")
		return err
	}
	return nil
}

var _ pkgkafka.MessageHandler = (*KafkaBarsHandler)(nil)
