// Package extract turns a detected board subtree into a BoardState.
package extract

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/park285/boardsync/internal/board"
	"github.com/park285/boardsync/internal/dom"
	"github.com/park285/boardsync/internal/layout"
	"github.com/park285/boardsync/internal/perspective"
	"go.uber.org/zap"
	"golang.org/x/net/html"
)

// ErrExtractionFailure means piece candidates existed but none could be
// placed. The cycle is skipped and retried.
var ErrExtractionFailure = errors.New("no piece could be placed")

// SizeAttr optionally declares a non-standard board dimension on the root.
const SizeAttr = "data-board-size"

var (
	codeClassRe = regexp.MustCompile(`^([wb])([kqrbnp])$`)
	imageCodeRe = regexp.MustCompile(`(?i)/([wb][kqrbnp])\.(?:png|svg|webp)`)
)

type Extractor struct {
	logger *zap.Logger
}

func New(logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{logger: logger}
}

// Extract enumerates piece nodes under the board root and places them on a
// fresh state. Side to move and the full-move number come from the move
// list; castling rights are inferred from home squares.
func (x *Extractor) Extract(d *layout.Descriptor, est perspective.Estimate) (*board.State, error) {
	if !d.Known() {
		return nil, layout.ErrLayoutMismatch
	}
	p := d.Patterns
	n := BoardSize(d.Board)
	st := board.NewState(n)

	var (
		boardRect dom.Rect
		hasRect   bool
	)
	if p.Geometry == layout.GeometryPixel {
		boardRect, hasRect = d.BoardRect()
		if !hasRect {
			return nil, fmt.Errorf("%w: board root has no geometry", ErrExtractionFailure)
		}
	}

	ignore := splitList(p.IgnorePieceWith)
	candidates, placed := 0, 0
	for _, node := range dom.QueryAll(d.Board, p.Piece) {
		if hasAnyClass(node, ignore) {
			continue
		}
		candidates++
		piece, ok := identify(node, p)
		if !ok {
			x.logger.Debug("piece_unidentified", zap.Strings("class", dom.Classes(node)))
			continue
		}
		var (
			sq    board.Square
			found bool
		)
		switch p.Geometry {
		case layout.GeometryPixel:
			sq, found = pixelSquare(node, boardRect, n, est)
		default:
			sq, found = symbolicSquare(node, p.SquarePrefix, n)
		}
		if !found {
			x.logger.Debug("piece_unplaced", zap.String("piece", piece.Code()), zap.Strings("class", dom.Classes(node)))
			continue
		}
		if !st.Place(sq, piece) {
			x.logger.Debug("piece_collision",
				zap.String("square", sq.String()),
				zap.String("kept", st.At(sq).Code()),
				zap.String("dropped", piece.Code()),
			)
			continue
		}
		placed++
	}
	if candidates > 0 && placed == 0 {
		return nil, fmt.Errorf("%w: %d candidates on %s", ErrExtractionFailure, candidates, d.Kind)
	}

	moves, selected := x.moves(d)
	plies := len(moves)
	if selected >= 0 {
		plies = selected + 1
	}
	active := board.White
	if plies%2 == 1 {
		active = board.Black
	}
	st.SetTurn(active, plies)
	st.InferCastling()
	return st, nil
}

// BoardSize reads the optional dimension marker, defaulting to 8.
func BoardSize(root *html.Node) int {
	if v, ok := dom.Attr(root, SizeAttr); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n >= 2 && n <= 26 {
			return n
		}
	}
	return board.DefaultSize
}

// identify decodes piece identity from the class discriminator first and
// the secondary attribute or background image second.
func identify(n *html.Node, p layout.Patterns) (board.Piece, bool) {
	var color board.Color
	var kind board.Kind
	for _, c := range dom.Classes(n) {
		lc := strings.ToLower(c)
		if m := codeClassRe.FindStringSubmatch(lc); m != nil {
			if pc, ok := board.ParseCode(m[1] + m[2]); ok {
				return pc, true
			}
		}
		if col, ok := board.ParseColor(lc); ok && len(lc) > 1 {
			color = col
			continue
		}
		if k, ok := board.ParseKind(lc); ok && len(lc) > 1 {
			kind = k
		}
	}
	if color != board.NoColor && kind != board.NoKind {
		return board.Piece{Color: color, Kind: kind}, true
	}
	if v, ok := dom.Attr(n, p.PieceAttr); ok {
		if pc, ok := parseMarker(v); ok {
			return pc, true
		}
	}
	if m := imageCodeRe.FindStringSubmatch(dom.Style(n, "background-image")); m != nil {
		if pc, ok := board.ParseCode(m[1]); ok {
			return pc, true
		}
	}
	return board.Piece{}, false
}

// parseMarker accepts "wK", "white-king" and "white king".
func parseMarker(v string) (board.Piece, bool) {
	if pc, ok := board.ParseCode(v); ok {
		return pc, true
	}
	f := strings.FieldsFunc(v, func(r rune) bool { return r == '-' || r == '_' || r == ' ' })
	if len(f) != 2 {
		return board.Piece{}, false
	}
	c, ok1 := board.ParseColor(f[0])
	k, ok2 := board.ParseKind(f[1])
	if !ok1 || !ok2 {
		return board.Piece{}, false
	}
	return board.Piece{Color: c, Kind: k}, true
}

// symbolicSquare reads "square-FR" (1-based file and rank). Boards larger
// than nine use two digits each: "square-1012".
func symbolicSquare(n *html.Node, prefix string, size int) (board.Square, bool) {
	if prefix != "" {
		for _, c := range dom.Classes(n) {
			if !strings.HasPrefix(c, prefix) {
				continue
			}
			digits := strings.TrimPrefix(c, prefix)
			if _, err := strconv.Atoi(digits); err != nil || len(digits)%2 != 0 {
				continue
			}
			half := len(digits) / 2
			f, _ := strconv.Atoi(digits[:half])
			r, _ := strconv.Atoi(digits[half:])
			sq := board.Square{File: f - 1, Rank: r - 1}
			if sq.Valid(size) {
				return sq, true
			}
		}
	}
	if v, ok := dom.Attr(n, "data-square"); ok {
		if sq, err := board.ParseSquare(v); err == nil && sq.Valid(size) {
			return sq, true
		}
	}
	return board.Square{}, false
}

// pixelSquare inverts the node's visual offset through est. Stamped
// document coordinates are made relative to the board first.
func pixelSquare(n *html.Node, boardRect dom.Rect, size int, est perspective.Estimate) (board.Square, bool) {
	r, ok := dom.RectOf(n)
	if !ok {
		return board.Square{}, false
	}
	x, y := r.X, r.Y
	if _, stamped := dom.Attr(n, dom.RectAttr); stamped {
		x -= boardRect.X
		y -= boardRect.Y
	}
	sqW := boardRect.W / float64(size)
	sqH := boardRect.H / float64(size)
	col := int(math.Floor((x + sqW/2) / sqW))
	row := int(math.Floor((y + sqH/2) / sqH))
	if col < 0 || col >= size || row < 0 || row >= size {
		return board.Square{}, false
	}
	return est.Absolute(col, row, size), true
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if v := strings.TrimSpace(part); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func hasAnyClass(n *html.Node, classes []string) bool {
	for _, c := range classes {
		if dom.HasClass(n, c) {
			return true
		}
	}
	return false
}
