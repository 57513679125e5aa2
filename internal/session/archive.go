package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
)

// Archive stores finished sessions with their PGN in Postgres.
type Archive struct {
	db *sql.DB
}

func NewArchive(databaseURL string) (*Archive, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return &Archive{db: db}, nil
}

func (a *Archive) Close() error {
	if a == nil || a.db == nil {
		return nil
	}
	return a.db.Close()
}

const schema = `CREATE TABLE IF NOT EXISTS observed_games (
    session_id  TEXT PRIMARY KEY,
    external_id TEXT NOT NULL DEFAULT '',
    variant     TEXT NOT NULL DEFAULT '',
    start_fen   TEXT NOT NULL DEFAULT '',
    moves_san   JSONB NOT NULL,
    pgn         TEXT NOT NULL,
    started_at  TIMESTAMPTZ NOT NULL,
    ended_at    TIMESTAMPTZ NOT NULL,
    duration_ms BIGINT NOT NULL
)`

// EnsureSchema creates the archive table if it is missing.
func (a *Archive) EnsureSchema(ctx context.Context) error {
	if a == nil || a.db == nil {
		return nil
	}
	_, err := a.db.ExecContext(ctx, schema)
	return err
}

// SaveSession upserts g.
func (a *Archive) SaveSession(ctx context.Context, g *GameSession) error {
	if a == nil || a.db == nil || g == nil {
		return nil
	}
	movesRaw, _ := json.Marshal(g.Moves)
	startFEN := ""
	if g.Start != nil {
		startFEN = g.Start.FEN()
	}
	duration := g.UpdatedAt.Sub(g.StartedAt).Milliseconds()
	if duration < 0 {
		duration = 0
	}

	q := `INSERT INTO observed_games (
        session_id, external_id, variant, start_fen, moves_san, pgn,
        started_at, ended_at, duration_ms
      ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
      ON CONFLICT (session_id) DO UPDATE SET
        external_id=EXCLUDED.external_id,
        variant=EXCLUDED.variant,
        start_fen=EXCLUDED.start_fen,
        moves_san=EXCLUDED.moves_san,
        pgn=EXCLUDED.pgn,
        started_at=EXCLUDED.started_at,
        ended_at=EXCLUDED.ended_at,
        duration_ms=EXCLUDED.duration_ms`

	_, err := a.db.ExecContext(ctx, q,
		g.ID, g.ExternalID, g.Variant, startFEN, string(movesRaw), buildPGN(g),
		g.StartedAt, g.UpdatedAt, duration,
	)
	return err
}

// buildPGN renders the observed move list. The result is always "*" since
// the page outcome is not observed.
func buildPGN(g *GameSession) string {
	if g == nil {
		return ""
	}
	var b strings.Builder
	date := g.StartedAt
	if date.IsZero() {
		date = time.Now()
	}
	b.WriteString("[Event \"Observed game\"]\n")
	b.WriteString(fmt.Sprintf("[Site \"%s\"]\n", sanitizePGN(g.ExternalID)))
	b.WriteString(fmt.Sprintf("[Date \"%04d.%02d.%02d\"]\n", date.Year(), int(date.Month()), date.Day()))
	// standard move lists always replay from the initial setup
	if v := strings.TrimSpace(g.Variant); v != "" && v != "standard" {
		b.WriteString(fmt.Sprintf("[Variant \"%s\"]\n", sanitizePGN(v)))
		if g.Start != nil {
			b.WriteString("[SetUp \"1\"]\n")
			b.WriteString(fmt.Sprintf("[FEN \"%s\"]\n", g.Start.FEN()))
		}
	}
	b.WriteString("[Result \"*\"]\n\n")

	for i := 0; i < len(g.Moves); i += 2 {
		b.WriteString(fmt.Sprintf("%d. %s", i/2+1, strings.TrimSpace(g.Moves[i])))
		if i+1 < len(g.Moves) {
			b.WriteString(" ")
			b.WriteString(strings.TrimSpace(g.Moves[i+1]))
		}
		b.WriteString(" ")
	}
	b.WriteString("*")
	return b.String()
}

func sanitizePGN(s string) string {
	s = strings.ReplaceAll(s, "\\", " ")
	s = strings.ReplaceAll(s, "\"", "'")
	return strings.TrimSpace(s)
}
