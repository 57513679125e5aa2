package session

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/park285/boardsync/internal/board"
	"github.com/redis/go-redis/v9"
)

const ttlSession = 24 * time.Hour

// Store keeps the latest session per page so a restart resumes the game
// instead of announcing a new one.
type Store interface {
	Save(ctx context.Context, pageKey string, g *GameSession) error
	Load(ctx context.Context, pageKey string) (*GameSession, error)
}

// record is the persisted form of a GameSession.
type record struct {
	ID          string            `json:"id"`
	ExternalID  string            `json:"externalId"`
	StartSize   int               `json:"startSize"`
	StartPieces map[string]string `json:"startPieces"`
	StartFEN    string            `json:"startFen"`
	Moves       []string          `json:"moves"`
	Variant     string            `json:"variant"`
	StartedAt   time.Time         `json:"startedAt"`
	UpdatedAt   time.Time         `json:"updatedAt"`
}

func toRecord(g *GameSession) record {
	r := record{
		ID:         g.ID,
		ExternalID: g.ExternalID,
		Moves:      g.Moves,
		Variant:    g.Variant,
		StartedAt:  g.StartedAt,
		UpdatedAt:  g.UpdatedAt,
	}
	if g.Start != nil {
		r.StartSize = g.Start.Size
		r.StartPieces = g.Start.Pieces()
		r.StartFEN = g.Start.FEN()
	}
	return r
}

func (r record) session() *GameSession {
	g := &GameSession{
		ID:         r.ID,
		ExternalID: r.ExternalID,
		Moves:      r.Moves,
		Variant:    r.Variant,
		StartedAt:  r.StartedAt,
		UpdatedAt:  r.UpdatedAt,
	}
	if r.StartSize > 0 {
		g.Start = board.FromPieces(r.StartSize, r.StartPieces)
	}
	return g
}

type MemoryStore struct {
	mu   sync.Mutex
	byPg map[string]*GameSession
}

func NewMemoryStore() *MemoryStore { return &MemoryStore{byPg: map[string]*GameSession{}} }

func (m *MemoryStore) Save(_ context.Context, pageKey string, g *GameSession) error {
	if g == nil {
		return nil
	}
	m.mu.Lock()
	m.byPg[strings.TrimSpace(pageKey)] = g.Clone()
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Load(_ context.Context, pageKey string) (*GameSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.byPg[strings.TrimSpace(pageKey)].Clone(), nil
}

type RedisStore struct{ rdb *redis.Client }

func NewRedisStore(rdb *redis.Client) *RedisStore { return &RedisStore{rdb: rdb} }

// NewRedisStoreFromURL parses a redis:// URL and pings the server.
func NewRedisStoreFromURL(ctx context.Context, url string) (*RedisStore, error) {
	opt, err := redis.ParseURL(strings.TrimSpace(url))
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opt)
	pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return &RedisStore{rdb: rdb}, nil
}

func (s *RedisStore) Close() error { return s.rdb.Close() }

func (s *RedisStore) keySession(pageKey string) string { return "boardsync:session:" + strings.TrimSpace(pageKey) }
func (s *RedisStore) keyHistory(id string) string      { return "boardsync:moves:" + strings.TrimSpace(id) }

func (s *RedisStore) Save(ctx context.Context, pageKey string, g *GameSession) error {
	if g == nil {
		return nil
	}
	raw, err := json.Marshal(toRecord(g))
	if err != nil {
		return err
	}
	if err := s.rdb.Set(ctx, s.keySession(pageKey), raw, ttlSession).Err(); err != nil {
		return err
	}
	// move history mirror for consumers that only read lists
	pipe := s.rdb.TxPipeline()
	pipe.Del(ctx, s.keyHistory(g.ID))
	if len(g.Moves) > 0 {
		vals := make([]any, len(g.Moves))
		for i, m := range g.Moves {
			vals[i] = m
		}
		pipe.RPush(ctx, s.keyHistory(g.ID), vals...)
		pipe.Expire(ctx, s.keyHistory(g.ID), ttlSession)
	}
	_, err = pipe.Exec(ctx)
	return err
}

func (s *RedisStore) Load(ctx context.Context, pageKey string) (*GameSession, error) {
	raw, err := s.rdb.Get(ctx, s.keySession(pageKey)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var r record
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, err
	}
	return r.session(), nil
}

// History returns the mirrored move list of a session.
func (s *RedisStore) History(ctx context.Context, id string) ([]string, error) {
	return s.rdb.LRange(ctx, s.keyHistory(id), 0, -1).Result()
}
