package board

import (
	"fmt"
	"strconv"
	"strings"
)

const DefaultSize = 8

type Color byte

const (
	NoColor Color = 0
	White   Color = 'w'
	Black   Color = 'b'
)

func (c Color) String() string {
	switch c {
	case White:
		return "w"
	case Black:
		return "b"
	default:
		return "-"
	}
}

func (c Color) Other() Color {
	switch c {
	case White:
		return Black
	case Black:
		return White
	default:
		return NoColor
	}
}

// ParseColor accepts "w", "b", "white", "black" in any case.
func ParseColor(s string) (Color, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "w", "white":
		return White, true
	case "b", "black":
		return Black, true
	default:
		return NoColor, false
	}
}

// Kind is the lowercase FEN letter of a piece type.
type Kind byte

const (
	NoKind Kind = 0
	King   Kind = 'k'
	Queen  Kind = 'q'
	Rook   Kind = 'r'
	Bishop Kind = 'b'
	Knight Kind = 'n'
	Pawn   Kind = 'p'
)

var kindNames = map[string]Kind{
	"k": King, "king": King,
	"q": Queen, "queen": Queen,
	"r": Rook, "rook": Rook,
	"b": Bishop, "bishop": Bishop,
	"n": Knight, "knight": Knight,
	"p": Pawn, "pawn": Pawn,
}

func ParseKind(s string) (Kind, bool) {
	k, ok := kindNames[strings.ToLower(strings.TrimSpace(s))]
	return k, ok
}

type Piece struct {
	Color Color
	Kind  Kind
}

func (p Piece) IsZero() bool { return p.Color == NoColor || p.Kind == NoKind }

// FEN returns the single FEN letter: uppercase for White.
func (p Piece) FEN() string {
	if p.IsZero() {
		return ""
	}
	s := string(rune(p.Kind))
	if p.Color == White {
		return strings.ToUpper(s)
	}
	return s
}

// Code returns the two-letter wire code, e.g. "wK", "bP".
func (p Piece) Code() string {
	if p.IsZero() {
		return ""
	}
	return p.Color.String() + strings.ToUpper(string(rune(p.Kind)))
}

// ParseCode decodes two-letter codes in either case ordering: "wK", "bp", "WP".
func ParseCode(code string) (Piece, bool) {
	code = strings.TrimSpace(code)
	if len(code) != 2 {
		return Piece{}, false
	}
	c, ok := ParseColor(code[:1])
	if !ok {
		return Piece{}, false
	}
	k, ok := ParseKind(code[1:])
	if !ok {
		return Piece{}, false
	}
	return Piece{Color: c, Kind: k}, true
}

// Square is an absolute coordinate; File 0 is the a-file, Rank 0 is the
// first rank, regardless of how the board is displayed.
type Square struct {
	File int
	Rank int
}

func (s Square) Valid(size int) bool {
	return s.File >= 0 && s.File < size && s.Rank >= 0 && s.Rank < size
}

func (s Square) String() string {
	return string(rune('a'+s.File)) + strconv.Itoa(s.Rank+1)
}

func ParseSquare(s string) (Square, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) < 2 {
		return Square{}, fmt.Errorf("invalid square %q", s)
	}
	f := int(s[0]) - 'a'
	r, err := strconv.Atoi(s[1:])
	if err != nil || f < 0 || f >= 26 || r < 1 {
		return Square{}, fmt.Errorf("invalid square %q", s)
	}
	return Square{File: f, Rank: r - 1}, nil
}
