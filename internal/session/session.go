// Package session decides when an extracted position belongs to a new game
// and keeps the running move history of the current one.
package session

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/park285/boardsync/internal/board"
	"go.uber.org/zap"
)

// GameSession is the identity and history of one observed game.
type GameSession struct {
	ID         string
	ExternalID string
	Start      *board.State
	Moves      []string
	Variant    string
	StartedAt  time.Time
	UpdatedAt  time.Time
}

func (g *GameSession) Clone() *GameSession {
	if g == nil {
		return nil
	}
	c := *g
	c.Start = g.Start.Clone()
	c.Moves = append([]string(nil), g.Moves...)
	return &c
}

// Reason names the signal that started a new session.
type Reason string

const (
	ReasonNone           Reason = ""
	ReasonNoSession      Reason = "no_session"
	ReasonExternalID     Reason = "external_id_changed"
	ReasonMovesShrank    Reason = "moves_shrank"
	ReasonStartDiffers   Reason = "start_position_differs"
	ReasonStartPosition  Reason = "start_position_after_moves"
	ReasonOpeningDiverge Reason = "opening_diverged"
	ReasonIdle           Reason = "idle_timeout"
)

type Decision struct {
	StartNew bool
	Reason   Reason
}

// Thresholds tune the heuristics. Zero fields take the defaults.
type Thresholds struct {
	ShrinkFrom      int
	ShrinkTo        int
	ShortMoveList   int
	StartAfterMoves int
	DivergePrefix   int
	DivergeMinMoves int
	IdleTimeout     time.Duration
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		ShrinkFrom:      5,
		ShrinkTo:        2,
		ShortMoveList:   2,
		StartAfterMoves: 10,
		DivergePrefix:   4,
		DivergeMinMoves: 6,
		IdleTimeout:     30 * time.Minute,
	}
}

func (t Thresholds) withDefaults() Thresholds {
	d := DefaultThresholds()
	if t.ShrinkFrom > 0 {
		d.ShrinkFrom = t.ShrinkFrom
	}
	if t.ShrinkTo > 0 {
		d.ShrinkTo = t.ShrinkTo
	}
	if t.ShortMoveList > 0 {
		d.ShortMoveList = t.ShortMoveList
	}
	if t.StartAfterMoves > 0 {
		d.StartAfterMoves = t.StartAfterMoves
	}
	if t.DivergePrefix > 0 {
		d.DivergePrefix = t.DivergePrefix
	}
	if t.DivergeMinMoves > 0 {
		d.DivergeMinMoves = t.DivergeMinMoves
	}
	if t.IdleTimeout > 0 {
		d.IdleTimeout = t.IdleTimeout
	}
	return d
}

// Archiver persists a session that has been replaced by a new one.
type Archiver interface {
	SaveSession(ctx context.Context, g *GameSession) error
}

type Tracker struct {
	th      Thresholds
	now     func() time.Time
	logger  *zap.Logger
	archive Archiver
}

type Option func(*Tracker)

func WithThresholds(th Thresholds) Option {
	return func(t *Tracker) { t.th = th.withDefaults() }
}

func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

func WithLogger(l *zap.Logger) Option {
	return func(t *Tracker) {
		if l != nil {
			t.logger = l
		}
	}
}

func WithArchive(a Archiver) Option {
	return func(t *Tracker) { t.archive = a }
}

func NewTracker(opts ...Option) *Tracker {
	t := &Tracker{
		th:     DefaultThresholds(),
		now:    time.Now,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Classify checks the new-game signals in order and reports the first that
// fires.
func (t *Tracker) Classify(st *board.State, moves []string, externalID string, cur *GameSession) Decision {
	th := t.th
	if cur == nil {
		return Decision{StartNew: true, Reason: ReasonNoSession}
	}
	externalID = strings.TrimSpace(externalID)
	if externalID != "" && cur.ExternalID != "" && externalID != cur.ExternalID {
		return Decision{StartNew: true, Reason: ReasonExternalID}
	}
	if len(cur.Moves) > th.ShrinkFrom && len(moves) < th.ShrinkTo {
		return Decision{StartNew: true, Reason: ReasonMovesShrank}
	}
	if len(moves) <= th.ShortMoveList && cur.Start != nil && st != nil {
		differ, occupied := st.Diff(cur.Start)
		if occupied > 0 && differ*2 > occupied {
			return Decision{StartNew: true, Reason: ReasonStartDiffers}
		}
	}
	if len(cur.Moves) >= th.StartAfterMoves && board.IsStartPosition(st) {
		return Decision{StartNew: true, Reason: ReasonStartPosition}
	}
	if len(cur.Moves) >= th.DivergeMinMoves && diverged(cur.Moves, moves, th.DivergePrefix) {
		return Decision{StartNew: true, Reason: ReasonOpeningDiverge}
	}
	if !cur.UpdatedAt.IsZero() && t.now().Sub(cur.UpdatedAt) >= th.IdleTimeout {
		return Decision{StartNew: true, Reason: ReasonIdle}
	}
	return Decision{}
}

// diverged reports whether every compared opening move differs. At least
// one move must be comparable.
func diverged(old, cand []string, prefix int) bool {
	n := prefix
	if len(old) < n {
		n = len(old)
	}
	if len(cand) < n {
		n = len(cand)
	}
	if n == 0 {
		return false
	}
	for i := 0; i < n; i++ {
		if board.CleanSAN(old[i]) == board.CleanSAN(cand[i]) {
			return false
		}
	}
	return true
}

// Observe classifies and applies the decision. It returns the session to
// keep and whether it was just created. The previous session is archived
// when replaced.
func (t *Tracker) Observe(ctx context.Context, st *board.State, moves []string, externalID, variant string, cur *GameSession) (*GameSession, Decision) {
	dec := t.Classify(st, moves, externalID, cur)
	now := t.now()
	if dec.StartNew {
		t.logger.Info("game_session_new",
			zap.String("reason", string(dec.Reason)),
			zap.String("external_id", externalID),
			zap.Int("moves", len(moves)),
		)
		if cur != nil && len(cur.Moves) > 0 && t.archive != nil {
			actx, cancel := context.WithTimeout(ctx, 3*time.Second)
			if err := t.archive.SaveSession(actx, cur); err != nil {
				t.logger.Warn("game_session_archive_failed", zap.String("session", cur.ID), zap.Error(err))
			}
			cancel()
		}
		id := strings.TrimSpace(externalID)
		if id == "" {
			id = uuid.NewString()
		}
		next := &GameSession{
			ID:         id,
			ExternalID: strings.TrimSpace(externalID),
			Start:      st.Clone(),
			Moves:      append([]string(nil), moves...),
			Variant:    variant,
			StartedAt:  now,
			UpdatedAt:  now,
		}
		t.crossCheck(next, st)
		return next, dec
	}

	next := cur.Clone()
	next.Moves = append([]string(nil), moves...)
	if variant != "" {
		next.Variant = variant
	}
	if next.ExternalID == "" {
		next.ExternalID = strings.TrimSpace(externalID)
	}
	next.UpdatedAt = now
	t.crossCheck(next, st)
	return next, dec
}

// crossCheck replays the move list of standard games from the initial
// position and logs any disagreement with the page. It never changes the
// outcome.
func (t *Tracker) crossCheck(g *GameSession, st *board.State) {
	if g == nil || st == nil || len(g.Moves) == 0 {
		return
	}
	if g.Variant != "" && g.Variant != "standard" {
		return
	}
	if err := board.CrossCheck(st, g.Moves); err != nil {
		t.logger.Debug("move_list_cross_check", zap.String("session", g.ID), zap.Error(err))
	}
}
