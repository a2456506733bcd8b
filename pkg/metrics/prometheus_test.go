package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecorderCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewWithRegistry(reg)

	r.RecordTick("EURUSD")
	r.RecordTick("EURUSD")
	r.RecordEvent("level_swept")
	r.RecordProposal("EURUSD", "Buy")
	r.RecordLevels(map[string]int{"found": 3, "swept": 1})
	r.RecordLevels(map[string]int{"found": 2})

	if got := testutil.ToFloat64(r.ticks.WithLabelValues("EURUSD")); got != 2 {
		t.Fatalf("ticks = %v", got)
	}
	if got := testutil.ToFloat64(r.proposals.WithLabelValues("EURUSD", "Buy")); got != 1 {
		t.Fatalf("proposals = %v", got)
	}
	if got := testutil.ToFloat64(r.levels.WithLabelValues("found")); got != 2 {
		t.Fatalf("found gauge = %v", got)
	}
	if n := testutil.CollectAndCount(r.levels); n != 1 {
		t.Fatalf("stale level states kept: %d series", n)
	}
}
