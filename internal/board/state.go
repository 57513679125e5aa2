package board

import (
	"strconv"
	"strings"
)

const StartPlacement = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR"

// State is one extracted position. grid[0] is the highest rank and grid[r][0]
// the lowest file, independent of the on-screen orientation.
type State struct {
	Size     int
	grid     [][]Piece
	Active   Color
	FullMove int
	HalfMove int
	// Plies is the completed half-move count the turn was derived from.
	Plies    int
	Castling string
	EnPass   string
}

func NewState(size int) *State {
	if size <= 0 {
		size = DefaultSize
	}
	grid := make([][]Piece, size)
	for i := range grid {
		grid[i] = make([]Piece, size)
	}
	return &State{
		Size:     size,
		grid:     grid,
		Active:   White,
		FullMove: 1,
		Castling: "-",
		EnPass:   "-",
	}
}

func (s *State) row(sq Square) int { return s.Size - 1 - sq.Rank }

// Place puts p on sq unless the square is taken. It reports whether the
// piece was placed; the earlier occupant always wins.
func (s *State) Place(sq Square, p Piece) bool {
	if !sq.Valid(s.Size) || p.IsZero() {
		return false
	}
	cell := &s.grid[s.row(sq)][sq.File]
	if !cell.IsZero() {
		return false
	}
	*cell = p
	return true
}

func (s *State) At(sq Square) Piece {
	if !sq.Valid(s.Size) {
		return Piece{}
	}
	return s.grid[s.row(sq)][sq.File]
}

func (s *State) Count() int {
	n := 0
	for _, row := range s.grid {
		for _, p := range row {
			if !p.IsZero() {
				n++
			}
		}
	}
	return n
}

// Placement renders the FEN piece-placement field.
func (s *State) Placement() string {
	rows := make([]string, 0, s.Size)
	for _, row := range s.grid {
		var b strings.Builder
		empty := 0
		for _, p := range row {
			if p.IsZero() {
				empty++
				continue
			}
			if empty > 0 {
				b.WriteString(strconv.Itoa(empty))
				empty = 0
			}
			b.WriteString(p.FEN())
		}
		if empty > 0 {
			b.WriteString(strconv.Itoa(empty))
		}
		rows = append(rows, b.String())
	}
	return strings.Join(rows, "/")
}

func (s *State) FEN() string {
	return strings.Join([]string{
		s.Placement(),
		s.Active.String(),
		orDash(s.Castling),
		orDash(s.EnPass),
		strconv.Itoa(s.HalfMove),
		strconv.Itoa(s.FullMove),
	}, " ")
}

// Pieces returns the occupied squares keyed by square name, values as
// two-letter codes.
func (s *State) Pieces() map[string]string {
	out := make(map[string]string, 32)
	for r := 0; r < s.Size; r++ {
		for f := 0; f < s.Size; f++ {
			sq := Square{File: f, Rank: r}
			if p := s.At(sq); !p.IsZero() {
				out[sq.String()] = p.Code()
			}
		}
	}
	return out
}

// SetTurn sets the side to move and derives the full-move number from the
// count of completed half-moves, per the FEN convention.
func (s *State) SetTurn(active Color, plies int) {
	if plies < 0 {
		plies = 0
	}
	s.Active = active
	s.Plies = plies
	s.FullMove = FullMoveNumber(active, plies)
}

// FullMoveNumber returns the number of the next full move. With White to
// move that is completed full moves plus one; with Black to move it is the
// number of the move Black is about to finish.
func FullMoveNumber(active Color, plies int) int {
	if active == Black {
		n := (plies + 1) / 2
		if n < 1 {
			n = 1
		}
		return n
	}
	return plies/2 + 1
}

// InferCastling is a best-effort rights guess from king and rook home squares.
func (s *State) InferCastling() {
	if s.Size != DefaultSize {
		s.Castling = "-"
		return
	}
	has := func(sq string, code string) bool {
		q, _ := ParseSquare(sq)
		return s.At(q).Code() == code
	}
	var b strings.Builder
	if has("e1", "wK") {
		if has("h1", "wR") {
			b.WriteByte('K')
		}
		if has("a1", "wR") {
			b.WriteByte('Q')
		}
	}
	if has("e8", "bK") {
		if has("h8", "bR") {
			b.WriteByte('k')
		}
		if has("a8", "bR") {
			b.WriteByte('q')
		}
	}
	s.Castling = orDash(b.String())
}

// Equal compares the full position including side to move and counters.
func (s *State) Equal(o *State) bool {
	if s == nil || o == nil {
		return s == o
	}
	if s.Size != o.Size || s.Active != o.Active || s.FullMove != o.FullMove ||
		s.HalfMove != o.HalfMove || s.Castling != o.Castling || s.EnPass != o.EnPass {
		return false
	}
	for r := range s.grid {
		for f := range s.grid[r] {
			if s.grid[r][f] != o.grid[r][f] {
				return false
			}
		}
	}
	return true
}

// Diff counts squares whose occupant differs, and squares occupied in either.
func (s *State) Diff(o *State) (differ, occupied int) {
	if s == nil || o == nil || s.Size != o.Size {
		return 0, 0
	}
	for r := range s.grid {
		for f := range s.grid[r] {
			a, b := s.grid[r][f], o.grid[r][f]
			if a.IsZero() && b.IsZero() {
				continue
			}
			occupied++
			if a != b {
				differ++
			}
		}
	}
	return differ, occupied
}

func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	c := *s
	c.grid = make([][]Piece, len(s.grid))
	for i := range s.grid {
		c.grid[i] = append([]Piece(nil), s.grid[i]...)
	}
	return &c
}

// FromPieces rebuilds a state from a square→code map; unknown entries are
// skipped.
func FromPieces(size int, pieces map[string]string) *State {
	st := NewState(size)
	for sq, code := range pieces {
		q, err := ParseSquare(sq)
		if err != nil {
			continue
		}
		if p, ok := ParseCode(code); ok {
			st.Place(q, p)
		}
	}
	return st
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
