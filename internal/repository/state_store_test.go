package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"LiqSweep/internal/domain/models"
	"LiqSweep/pkg/cache"
)

func TestStateStoreRoundTripsDayState(t *testing.T) {
	mc := cache.NewMemoryCache()
	s := NewStateStore(mc, time.Hour)
	ctx := context.Background()

	if st, err := s.Load(ctx, "EURUSD"); err != nil || st != nil {
		t.Fatalf("empty store should load nil, got %+v %v", st, err)
	}

	want := &models.DayState{
		Symbol:       "EURUSD",
		Day:          "2024-03-04",
		LastTradeDay: "2024-03-04",
		RegistryDay:  "2024-03-04",
		RegistryBias: models.BiasBullish,
		NextLevelID:  3,
		Levels: []models.LiquidityLevel{
			{ID: 1, Kind: models.LowFractal, Price: 1.1, State: models.StateEntryDone},
		},
	}
	if err := s.Save(ctx, want); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := s.Load(ctx, "eurusd")
	if err != nil || got == nil {
		t.Fatalf("load: %+v %v", got, err)
	}
	if got.LastTradeDay != want.LastTradeDay || got.RegistryBias != models.BiasBullish || got.NextLevelID != 3 {
		t.Fatalf("unexpected state %+v", got)
	}
	if len(got.Levels) != 1 || got.Levels[0].State != models.StateEntryDone {
		t.Fatalf("levels not restored: %+v", got.Levels)
	}
}

func TestStateStoreRespectsLock(t *testing.T) {
	mc := cache.NewMemoryCache()
	s := NewStateStore(mc, time.Hour)
	ctx := context.Background()

	if _, ok, _ := mc.TryLock(ctx, lockKey("EURUSD"), time.Minute); !ok {
		t.Fatal("could not take lock")
	}
	if err := s.Save(ctx, &models.DayState{Symbol: "EURUSD"}); !errors.Is(err, ErrStateLocked) {
		t.Fatalf("expected ErrStateLocked, got %v", err)
	}
}

func TestBuildEventInsertSkipsIncomplete(t *testing.T) {
	at := time.Date(2024, 3, 4, 9, 7, 0, 0, time.UTC)
	q, args, err := buildEventInsert("liqsweep.engine_events", []models.Event{
		{ID: "a", Kind: models.EventLevelSwept, Level: models.LevelInfo, Symbol: "EURUSD", At: at, LevelID: 2, Values: map[string]float64{"price": 1.1}},
		{ID: "", Kind: models.EventLevelSwept},
		{ID: "b", Kind: models.EventTradeProposed, Symbol: "EURUSD", At: at},
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(args) != 16 {
		t.Fatalf("expected 2 rows of 8 args, got %d", len(args))
	}
	if args[6] != `{"price":1.1}` || args[14] != "{}" {
		t.Fatalf("unexpected values column %v / %v", args[6], args[14])
	}
	if q == "" {
		t.Fatal("empty query")
	}
	if q2, _, _ := buildEventInsert("t", nil); q2 != "" {
		t.Fatal("no rows must build no query")
	}
}
