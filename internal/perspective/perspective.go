// Package perspective decides which side of the board is drawn at the
// bottom of the screen and maps between visual and absolute squares.
package perspective

import (
	"strconv"
	"strings"
	"sync"

	"github.com/park285/boardsync/internal/board"
	"github.com/park285/boardsync/internal/dom"
	"github.com/park285/boardsync/internal/layout"
	"go.uber.org/zap"
	"golang.org/x/net/html"
)

// Source records which tier produced an estimate.
type Source string

const (
	SourceExplicit  Source = "explicit"
	SourceContainer Source = "container"
	SourceGeometry  Source = "geometry"
	SourceDefault   Source = "default"
)

type Estimate struct {
	BlackBottom bool
	Source      Source
}

// Orientation is the side drawn at the bottom: "white" or "black".
func (e Estimate) Orientation() string {
	if e.BlackBottom {
		return "black"
	}
	return "white"
}

// Absolute maps an on-screen column/row (row 0 at the top) of an n×n board
// to an absolute square.
func (e Estimate) Absolute(col, row, n int) board.Square {
	if e.BlackBottom {
		return board.Square{File: n - 1 - col, Rank: row}
	}
	return board.Square{File: col, Rank: n - 1 - row}
}

// Visual is the inverse of Absolute.
func (e Estimate) Visual(sq board.Square, n int) (col, row int) {
	if e.BlackBottom {
		return n - 1 - sq.File, sq.Rank
	}
	return sq.File, n - 1 - sq.Rank
}

// Resolver memoizes estimates per descriptor key. Safe for concurrent use.
type Resolver struct {
	mu     sync.Mutex
	cache  map[string]Estimate
	logger *zap.Logger
}

func NewResolver(logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{cache: map[string]Estimate{}, logger: logger}
}

// Resolve returns the cached estimate for d, computing it on first use.
func (r *Resolver) Resolve(d *layout.Descriptor) Estimate {
	key := d.Key()
	r.mu.Lock()
	if est, ok := r.cache[key]; ok {
		r.mu.Unlock()
		return est
	}
	r.mu.Unlock()

	est := r.Compute(d)
	r.mu.Lock()
	r.cache[key] = est
	r.mu.Unlock()
	return est
}

// Invalidate drops every cached estimate.
func (r *Resolver) Invalidate() {
	r.mu.Lock()
	r.cache = map[string]Estimate{}
	r.mu.Unlock()
}

// Compute runs the tiers without touching the cache.
func (r *Resolver) Compute(d *layout.Descriptor) Estimate {
	if !d.Known() {
		return Estimate{Source: SourceDefault}
	}
	p := d.Patterns
	if black, ok := explicit(d.Board, p); ok {
		return Estimate{BlackBottom: black, Source: SourceExplicit}
	}
	if d.Container != nil {
		if black, ok := explicit(d.Container, p); ok {
			return Estimate{BlackBottom: black, Source: SourceContainer}
		}
	}
	if black, ok := fromLabels(d); ok {
		return Estimate{BlackBottom: black, Source: SourceGeometry}
	}
	r.logger.Debug("perspective_ambiguous",
		zap.String("kind", string(d.Kind)),
		zap.String("key", d.Key()),
	)
	return Estimate{Source: SourceDefault}
}

func explicit(n *html.Node, p layout.Patterns) (blackBottom, ok bool) {
	if n == nil {
		return false, false
	}
	if dom.HasClass(n, p.FlippedClass) || dom.HasClass(n, p.OrientBlack) {
		return true, true
	}
	if dom.HasClass(n, p.OrientWhite) {
		return false, true
	}
	return false, false
}

// fromLabels compares the vertical position of the lowest and highest rank
// labels. The lowest rank drawn higher on screen means Black is at the
// bottom.
func fromLabels(d *layout.Descriptor) (blackBottom, ok bool) {
	scope := d.Container
	if scope == nil {
		scope = d.Board
	}
	var (
		lowY, highY float64
		low, high   = 0, 0
	)
	for _, n := range dom.QueryAll(scope, d.Patterns.RankLabel) {
		v, err := strconv.Atoi(strings.TrimSpace(dom.Text(n)))
		if err != nil || v < 1 {
			continue
		}
		rect, found := dom.RectOf(n)
		if !found {
			continue
		}
		if low == 0 || v < low {
			low, lowY = v, rect.Y
		}
		if v > high {
			high, highY = v, rect.Y
		}
	}
	if low == 0 || high == low || lowY == highY {
		return false, false
	}
	return lowY < highY, true
}
