// Package pagefixture renders synthetic host pages for both supported board
// layouts. It is used by tests and by the layoutcheck tool's demo mode.
package pagefixture

import (
	"fmt"
	"sort"
	"strings"

	"github.com/park285/boardsync/internal/board"
)

// Options describes the page to render. Pieces uses square→code ("e2"→"wP").
type Options struct {
	Pieces map[string]string
	Moves  []string
	// Selected is the highlighted move index; -1 means no highlight.
	Selected int
	// BlackBottom is where the pieces are actually drawn.
	BlackBottom bool
	// Explicit controls the explicit orientation marker: "" none, "white"
	// or "black".
	Explicit string
	// LabelsBlackBottom positions rank labels as if Black were at the
	// bottom. Defaults to BlackBottom when LabelsSet is false.
	LabelsBlackBottom bool
	LabelsSet         bool
	NoLabels          bool
	URL               string
	SquareSize        float64
	// Omit drops one required region: "board", "moves", "top", "bottom".
	Omit string
}

func (o Options) labelsBlack() bool {
	if o.LabelsSet {
		return o.LabelsBlackBottom
	}
	return o.BlackBottom
}

func (o Options) size() float64 {
	if o.SquareSize <= 0 {
		return 50
	}
	return o.SquareSize
}

// StartPieces returns the standard initial arrangement.
func StartPieces() map[string]string {
	out := map[string]string{}
	back := "RNBQKBNR"
	for f := 0; f < 8; f++ {
		file := string(rune('a' + f))
		out[file+"1"] = "w" + string(back[f])
		out[file+"2"] = "wP"
		out[file+"7"] = "bP"
		out[file+"8"] = "b" + string(back[f])
	}
	return out
}

func sortedSquares(pieces map[string]string) []string {
	keys := make([]string, 0, len(pieces))
	for k := range pieces {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// visual maps an absolute square to on-screen column/row (row 0 at top).
func visual(sq board.Square, blackBottom bool) (col, row int) {
	if blackBottom {
		return 7 - sq.File, sq.Rank
	}
	return sq.File, 7 - sq.Rank
}

// ChessCom renders the square-FR class layout.
func ChessCom(o Options) string {
	var b strings.Builder
	b.WriteString(`<html><body><div class="board-layout-main">`)
	if o.Omit != "top" {
		b.WriteString(`<div class="board-layout-top"><div class="user-username">opponent</div></div>`)
	}
	b.WriteString(`<div class="board-layout-chessboard">`)
	if o.Omit != "board" {
		class := "board"
		if o.Explicit == "black" {
			class += " flipped"
		}
		sz := o.size() * 8
		fmt.Fprintf(&b, `<wc-chess-board class="%s" id="board-single" data-rect="100,120,%g,%g">`, class, sz, sz)
		if !o.NoLabels {
			b.WriteString(`<svg class="coordinates" viewBox="0 0 100 100">`)
			for r := 1; r <= 8; r++ {
				row := 8 - r
				if o.labelsBlack() {
					row = r - 1
				}
				fmt.Fprintf(&b, `<text x="0.75" y="%g" font-size="2.8">%d</text>`, float64(row)*12.5+3.5, r)
			}
			b.WriteString(`</svg>`)
		}
		for _, sq := range sortedSquares(o.Pieces) {
			q, err := board.ParseSquare(sq)
			if err != nil {
				continue
			}
			code := strings.ToLower(o.Pieces[sq])
			fmt.Fprintf(&b, `<div class="piece %s square-%d%d"></div>`, code, q.File+1, q.Rank+1)
		}
		b.WriteString(`</wc-chess-board>`)
	}
	b.WriteString(`</div>`)
	if o.Omit != "bottom" {
		b.WriteString(`<div class="board-layout-bottom"><div class="user-username">me</div></div>`)
	}
	b.WriteString(`</div>`)
	if o.Omit != "moves" {
		b.WriteString(`<wc-simple-move-list class="move-list">`)
		for i, mv := range o.Moves {
			side := "white-move"
			if i%2 == 1 {
				side = "black-move"
			}
			sel := ""
			if i == o.Selected {
				sel = " selected"
			}
			fmt.Fprintf(&b, `<div class="node %s main-line-ply"><span class="node-highlight-content%s">%s</span></div>`, side, sel, mv)
		}
		b.WriteString(`</wc-simple-move-list>`)
	}
	b.WriteString(`</body></html>`)
	return b.String()
}

var kindWords = map[byte]string{'K': "king", 'Q': "queen", 'R': "rook", 'B': "bishop", 'N': "knight", 'P': "pawn"}

// Lichess renders the chessground layout with translated pieces.
func Lichess(o Options) string {
	sq := o.size()
	var b strings.Builder
	b.WriteString(`<html><body><main class="round"><div class="round__app">`)
	b.WriteString(`<div class="round__app__board main-board">`)
	wrap := "cg-wrap manipulable"
	switch o.Explicit {
	case "white":
		wrap += " orientation-white"
	case "black":
		wrap += " orientation-black"
	}
	fmt.Fprintf(&b, `<div class="%s"><cg-container style="width: %gpx; height: %gpx">`, wrap, sq*8, sq*8)
	if o.Omit != "board" {
		fmt.Fprintf(&b, `<cg-board style="width: %gpx; height: %gpx">`, sq*8, sq*8)
		for _, name := range sortedSquares(o.Pieces) {
			q, err := board.ParseSquare(name)
			if err != nil {
				continue
			}
			code := o.Pieces[name]
			color := "white"
			if strings.HasPrefix(strings.ToLower(code), "b") {
				color = "black"
			}
			kind := kindWords[strings.ToUpper(code[1:])[0]]
			col, row := visual(q, o.BlackBottom)
			fmt.Fprintf(&b, `<piece class="%s %s" style="transform: translate(%gpx, %gpx);"></piece>`, color, kind, float64(col)*sq, float64(row)*sq)
		}
		b.WriteString(`</cg-board>`)
	}
	if !o.NoLabels {
		b.WriteString(`<coords class="ranks">`)
		for r := 1; r <= 8; r++ {
			row := 8 - r
			if o.labelsBlack() {
				row = r - 1
			}
			fmt.Fprintf(&b, `<coord style="top: %gpx; height: %gpx">%d</coord>`, float64(row)*sq, sq, r)
		}
		b.WriteString(`</coords>`)
	}
	b.WriteString(`</cg-container></div></div>`)
	if o.Omit != "top" {
		b.WriteString(`<div class="ruser-top ruser user-link">opponent</div>`)
	}
	if o.Omit != "moves" {
		b.WriteString(`<rm6><l4x>`)
		for i, mv := range o.Moves {
			if i%2 == 0 {
				fmt.Fprintf(&b, `<i5z>%d</i5z>`, i/2+1)
			}
			if i == o.Selected {
				fmt.Fprintf(&b, `<kwdb class="a1t">%s</kwdb>`, mv)
			} else {
				fmt.Fprintf(&b, `<kwdb>%s</kwdb>`, mv)
			}
		}
		b.WriteString(`</l4x></rm6>`)
	}
	if o.Omit != "bottom" {
		b.WriteString(`<div class="ruser-bottom ruser user-link">me</div>`)
	}
	b.WriteString(`</div></main></body></html>`)
	return b.String()
}
