// Package pipeline drives detection, extraction and session tracking on
// page changes and transmits changed states to the backend.
package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/park285/boardsync/internal/backend"
	"github.com/park285/boardsync/internal/board"
	"github.com/park285/boardsync/internal/extract"
	"github.com/park285/boardsync/internal/layout"
	"github.com/park285/boardsync/internal/page"
	"github.com/park285/boardsync/internal/perspective"
	"github.com/park285/boardsync/internal/session"
	"github.com/park285/boardsync/pkg/syncdto"
	"go.uber.org/zap"
)

type Config struct {
	// Debounce is the quiet period after the last notification before a
	// cycle runs.
	Debounce time.Duration
	// RetryDelay re-arms a cycle after an extraction failure.
	RetryDelay time.Duration
	// PageKey names the page in the session store.
	PageKey string
	// Scopes limits change notifications; empty means the whole page.
	Scopes []string
}

func (c Config) withDefaults() Config {
	if c.Debounce <= 0 {
		c.Debounce = 300 * time.Millisecond
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = time.Second
	}
	if strings.TrimSpace(c.PageKey) == "" {
		c.PageKey = "default"
	}
	return c
}

type Deps struct {
	Page      page.Page
	Registry  *layout.Registry
	Resolver  *perspective.Resolver
	Extractor *extract.Extractor
	Tracker   *session.Tracker
	Store     session.Store
	Egress    backend.Egress
	Logger    *zap.Logger
	Now       func() time.Time
}

// Stats counts cycle outcomes since start. Coalesced counts notifications
// folded into one already pending.
type Stats struct {
	Cycles    int64
	Sent      int64
	Skipped   int64
	Failed    int64
	Coalesced int64
}

type cmdKind int

const (
	cmdRecalculate cmdKind = iota
	cmdTurn
	cmdVariant
)

type command struct {
	kind    cmdKind
	color   board.Color
	variant string
}

// snapshot is the last transmitted triple.
type snapshot struct {
	state   *board.State
	moves   []string
	variant string
}

func (s *snapshot) equal(o *snapshot) bool {
	if s == nil || o == nil {
		return false
	}
	if s.variant != o.variant || len(s.moves) != len(o.moves) || !s.state.Equal(o.state) {
		return false
	}
	for i := range s.moves {
		if s.moves[i] != o.moves[i] {
			return false
		}
	}
	return true
}

// Controller owns the perspective cache, the current session and the last
// transmitted snapshot. All of it is touched only from Run's goroutine.
type Controller struct {
	cfg    Config
	deps   Deps
	logger *zap.Logger
	now    func() time.Time

	notifyCh chan struct{}
	cmdCh    chan command
	running  atomic.Bool

	cycles, sent, skipped, failed, coalesced atomic.Int64

	current         *session.GameSession
	last            *snapshot
	force           bool
	turnOverride    board.Color
	variantOverride string
}

func New(cfg Config, deps Deps) *Controller {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.Registry == nil {
		deps.Registry = layout.DefaultRegistry(nil, logger)
	}
	if deps.Resolver == nil {
		deps.Resolver = perspective.NewResolver(logger)
	}
	if deps.Extractor == nil {
		deps.Extractor = extract.New(logger)
	}
	if deps.Tracker == nil {
		deps.Tracker = session.NewTracker(session.WithLogger(logger))
	}
	if deps.Store == nil {
		deps.Store = session.NewMemoryStore()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Controller{
		cfg:      cfg.withDefaults(),
		deps:     deps,
		logger:   logger,
		now:      now,
		notifyCh: make(chan struct{}, 1),
		cmdCh:    make(chan command, 16),
	}
}

// Notify signals a page change. It never blocks. A notification that
// arrives during a cycle stays pending and re-arms the debounce once the
// cycle returns.
func (c *Controller) Notify() {
	select {
	case c.notifyCh <- struct{}{}:
	default:
		c.coalesced.Add(1)
	}
}

// Recalculate clears the perspective cache and the last snapshot and
// transmits the current state unconditionally.
func (c *Controller) Recalculate() { c.enqueue(command{kind: cmdRecalculate}) }

// OverrideTurn forces the side to move until the next new game.
func (c *Controller) OverrideTurn(color board.Color) {
	c.enqueue(command{kind: cmdTurn, color: color})
}

// OverrideVariant replaces the detected variant tag. An empty value
// restores detection.
func (c *Controller) OverrideVariant(v string) {
	c.enqueue(command{kind: cmdVariant, variant: strings.TrimSpace(v)})
}

func (c *Controller) enqueue(cmd command) {
	select {
	case c.cmdCh <- cmd:
	default:
		c.logger.Warn("pipeline_command_dropped", zap.Int("kind", int(cmd.kind)))
	}
}

// HandleInbound applies backend control messages. It reports whether m was
// a control message.
func (c *Controller) HandleInbound(m *syncdto.Inbound) bool {
	if m == nil {
		return false
	}
	switch m.Type {
	case syncdto.TypeRecalculate:
		c.Recalculate()
	case syncdto.TypeSetTurn:
		color, ok := board.ParseColor(m.Color)
		if !ok {
			c.logger.Warn("pipeline_bad_turn", zap.String("color", m.Color))
			return true
		}
		c.OverrideTurn(color)
	case syncdto.TypeSetVariant:
		c.OverrideVariant(m.Variant)
	default:
		return false
	}
	return true
}

func (c *Controller) Stats() Stats {
	return Stats{
		Cycles:    c.cycles.Load(),
		Sent:      c.sent.Load(),
		Skipped:   c.skipped.Load(),
		Failed:    c.failed.Load(),
		Coalesced: c.coalesced.Load(),
	}
}

// Run subscribes to the page and processes notifications until ctx is
// done. A first cycle runs after one debounce period.
func (c *Controller) Run(ctx context.Context) error {
	unsubscribe := c.deps.Page.Subscribe(c.cfg.Scopes, c.Notify)
	defer unsubscribe()

	if g, err := c.deps.Store.Load(ctx, c.cfg.PageKey); err != nil {
		c.logger.Warn("session_load_failed", zap.String("page", c.cfg.PageKey), zap.Error(err))
	} else if g != nil {
		c.current = g
		c.logger.Info("session_resumed", zap.String("session", g.ID), zap.Int("moves", len(g.Moves)))
	}

	timer := time.NewTimer(c.cfg.Debounce)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.notifyCh:
			timer.Reset(c.cfg.Debounce)
		case cmd := <-c.cmdCh:
			c.apply(cmd)
			timer.Reset(0)
		case <-timer.C:
			if c.cycle(ctx) {
				timer.Reset(c.cfg.RetryDelay)
			}
		}
	}
}

func (c *Controller) apply(cmd command) {
	switch cmd.kind {
	case cmdRecalculate:
		c.deps.Resolver.Invalidate()
		c.last = nil
		c.force = true
		c.logger.Info("pipeline_recalculate")
	case cmdTurn:
		c.deps.Resolver.Invalidate()
		c.turnOverride = cmd.color
		c.force = true
		c.logger.Info("pipeline_turn_override", zap.String("color", cmd.color.String()))
	case cmdVariant:
		c.variantOverride = cmd.variant
		c.logger.Info("pipeline_variant_override", zap.String("variant", cmd.variant))
	}
}

// cycle runs detect → resolve → extract → classify → compare → transmit. It
// reports whether a retry should be armed.
func (c *Controller) cycle(ctx context.Context) (retry bool) {
	if !c.running.CompareAndSwap(false, true) {
		return false
	}
	defer c.running.Store(false)
	c.cycles.Add(1)

	doc, err := c.deps.Page.Snapshot(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		c.failed.Add(1)
		c.logger.Warn("page_snapshot_failed", zap.Error(err))
		return true
	}
	desc := c.deps.Registry.Detect(doc)
	if !desc.Known() {
		c.skipped.Add(1)
		c.logger.Debug("layout_unknown", zap.String("url", doc.URL))
		return false
	}
	est := c.deps.Resolver.Resolve(desc)
	st, err := c.deps.Extractor.Extract(desc, est)
	if err != nil {
		c.failed.Add(1)
		c.logger.Warn("extraction_failed", zap.String("kind", string(desc.Kind)), zap.Error(err))
		return errors.Is(err, extract.ErrExtractionFailure)
	}
	moves := c.deps.Extractor.MoveList(desc)
	externalID := c.deps.Extractor.GameID(desc)
	variant := c.variantOverride
	if variant == "" {
		variant = c.deps.Extractor.Variant(desc)
	}

	next, dec := c.deps.Tracker.Observe(ctx, st, moves, externalID, variant, c.current)
	if dec.StartNew {
		if dec.Reason != session.ReasonNoSession {
			c.turnOverride = board.NoColor
		}
		est, st = c.reresolve(desc, est, st)
		next.Start = st.Clone()
		c.last = nil
		c.announce(ctx, next)
	}
	c.current = next
	if err := c.deps.Store.Save(ctx, c.cfg.PageKey, next); err != nil {
		c.logger.Warn("session_save_failed", zap.Error(err))
	}

	if c.turnOverride != board.NoColor {
		st.SetTurn(c.turnOverride, st.Plies)
	}
	if err := board.Validate(st); err != nil {
		c.logger.Debug("fen_validation", zap.String("fen", st.FEN()), zap.Error(err))
	}

	snap := &snapshot{state: st.Clone(), moves: moves, variant: variant}
	if !c.force && snap.equal(c.last) {
		c.skipped.Add(1)
		return false
	}
	msg := buildUpdate(next.ID, est, st, moves, variant, c.now())
	if err := c.deps.Egress.SendState(ctx, msg); err != nil {
		c.failed.Add(1)
		c.logger.Warn("board_update_failed", zap.Error(err))
		return false
	}
	c.sent.Add(1)
	c.last = snap
	c.force = false
	c.logger.Debug("board_update_sent",
		zap.String("game", next.ID),
		zap.String("fen", st.FEN()),
		zap.Int("moves", len(moves)),
	)
	return false
}

// reresolve drops cached estimates for a new game. The board may have been
// flipped between games without any class or URL change, so the position
// is extracted again when the fresh estimate disagrees.
func (c *Controller) reresolve(desc *layout.Descriptor, est perspective.Estimate, st *board.State) (perspective.Estimate, *board.State) {
	c.deps.Resolver.Invalidate()
	fresh := c.deps.Resolver.Resolve(desc)
	if fresh.BlackBottom == est.BlackBottom {
		return fresh, st
	}
	again, err := c.deps.Extractor.Extract(desc, fresh)
	if err != nil {
		c.logger.Warn("extraction_failed", zap.String("kind", string(desc.Kind)), zap.Error(err))
		return est, st
	}
	c.logger.Info("perspective_changed",
		zap.String("from", est.Orientation()),
		zap.String("to", fresh.Orientation()),
	)
	return fresh, again
}

func (c *Controller) announce(ctx context.Context, g *session.GameSession) {
	msg := &syncdto.NewGame{
		Type:          syncdto.TypeNewGame,
		GameID:        g.ID,
		StartPosition: g.Start.Pieces(),
		Variant:       g.Variant,
		Timestamp:     c.now().UnixMilli(),
	}
	if err := c.deps.Egress.SendNewGame(ctx, msg); err != nil {
		c.logger.Warn("new_game_failed", zap.String("game", g.ID), zap.Error(err))
	}
}

func buildUpdate(gameID string, est perspective.Estimate, st *board.State, moves []string, variant string, now time.Time) *syncdto.BoardUpdate {
	data := syncdto.BoardData{
		GameID:           gameID,
		Pieces:           st.Pieces(),
		MoveList:         append([]string{}, moves...),
		RawMoveText:      strings.Join(moves, " "),
		ActiveColor:      st.Active.String(),
		FullMoveNumber:   st.FullMove,
		FEN:              st.FEN(),
		Variant:          variant,
		Flags:            syncdto.Flags{PossibleCastling: st.Castling != "-", BoardFlipped: est.BlackBottom},
		BoardOrientation: est.Orientation(),
		Timestamp:        now.UnixMilli(),
	}
	if st.Size != board.DefaultSize {
		data.BoardLayout = layoutOf(st)
	}
	return &syncdto.BoardUpdate{Type: syncdto.TypeBoardUpdate, Data: data}
}

func layoutOf(st *board.State) *syncdto.BoardLayout {
	out := &syncdto.BoardLayout{Files: st.Size, Ranks: st.Size}
	for r := st.Size - 1; r >= 0; r-- {
		row := make([]syncdto.SquareInfo, 0, st.Size)
		for f := 0; f < st.Size; f++ {
			sq := board.Square{File: f, Rank: r}
			info := syncdto.SquareInfo{Square: sq.String()}
			if p := st.At(sq); !p.IsZero() {
				code := p.Code()
				info.Piece = &code
			}
			row = append(row, info)
		}
		out.Squares = append(out.Squares, row)
	}
	return out
}
