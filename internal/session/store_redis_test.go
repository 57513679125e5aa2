package session

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/park285/boardsync/internal/board"
)

func TestRedisStoreRoundTrip(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s := NewRedisStore(rdb)
	ctx := context.Background()

	if g, err := s.Load(ctx, "page"); err != nil || g != nil {
		t.Fatalf("empty load: %v %v", g, err)
	}

	started := time.Date(2026, 5, 6, 7, 8, 9, 0, time.UTC)
	in := &GameSession{
		ID:         "s1",
		ExternalID: "987",
		Start:      startState(),
		Moves:      []string{"e4", "c5"},
		Variant:    "standard",
		StartedAt:  started,
		UpdatedAt:  started.Add(time.Minute),
	}
	if err := s.Save(ctx, "page", in); err != nil {
		t.Fatalf("save: %v", err)
	}
	out, err := s.Load(ctx, "page")
	if err != nil || out == nil {
		t.Fatalf("load: %v", err)
	}
	if out.ID != "s1" || out.ExternalID != "987" || len(out.Moves) != 2 || !out.StartedAt.Equal(started) {
		t.Fatalf("loaded = %+v", out)
	}
	if out.Start == nil || out.Start.Placement() != board.StartPlacement {
		t.Fatalf("start not restored")
	}
	hist, err := s.History(ctx, "s1")
	if err != nil || len(hist) != 2 || hist[1] != "c5" {
		t.Fatalf("history = %v %v", hist, err)
	}
	if ttl := mr.TTL("boardsync:session:page"); ttl <= 0 {
		t.Fatalf("expected ttl, got %v", ttl)
	}
}

func TestMemoryStoreIsolation(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	g := &GameSession{ID: "x", Moves: []string{"e4"}}
	_ = s.Save(ctx, "k", g)
	g.Moves[0] = "d4"
	out, _ := s.Load(ctx, "k")
	if out.Moves[0] != "e4" {
		t.Fatalf("store shares memory with caller")
	}
	if miss, _ := s.Load(ctx, "other"); miss != nil {
		t.Fatalf("unexpected session")
	}
}
