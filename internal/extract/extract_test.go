package extract

import (
	"errors"
	"strings"
	"testing"

	"github.com/park285/boardsync/internal/board"
	"github.com/park285/boardsync/internal/dom"
	"github.com/park285/boardsync/internal/layout"
	"github.com/park285/boardsync/internal/pagefixture"
	"github.com/park285/boardsync/internal/perspective"
)

func detect(t *testing.T, html, url string) *layout.Descriptor {
	t.Helper()
	doc, err := dom.ParseString(html, url)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	d := layout.DefaultRegistry(nil, nil).Detect(doc)
	if !d.Known() {
		t.Fatalf("layout not detected")
	}
	return d
}

func TestStartPlacementIndependentOfPerspective(t *testing.T) {
	x := New(nil)
	for _, render := range []func(pagefixture.Options) string{pagefixture.ChessCom, pagefixture.Lichess} {
		for _, black := range []bool{false, true} {
			d := detect(t, render(pagefixture.Options{
				Pieces:      pagefixture.StartPieces(),
				Selected:    -1,
				BlackBottom: black,
			}), "")
			est := perspective.NewResolver(nil).Resolve(d)
			if est.BlackBottom != black {
				t.Fatalf("%s black=%v: estimate %+v", d.Kind, black, est)
			}
			st, err := x.Extract(d, est)
			if err != nil {
				t.Fatalf("%s black=%v: %v", d.Kind, black, err)
			}
			if st.Placement() != board.StartPlacement {
				t.Fatalf("%s black=%v: placement %s", d.Kind, black, st.Placement())
			}
			if st.FEN() != board.StartPlacement+" w KQkq - 0 1" {
				t.Fatalf("%s: fen %s", d.Kind, st.FEN())
			}
		}
	}
}

func TestPixelDecodeUsesEstimate(t *testing.T) {
	d := detect(t, pagefixture.Lichess(pagefixture.Options{
		Pieces:   map[string]string{"e4": "wP"},
		Selected: -1,
	}), "")
	st, err := New(nil).Extract(d, perspective.Estimate{BlackBottom: true})
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	// Drawn for White at the bottom but decoded as if flipped: e4 mirrors to d5.
	if got := st.Pieces(); got["d5"] != "wP" || len(got) != 1 {
		t.Fatalf("pieces = %v", got)
	}
}

func TestExtractionFailure(t *testing.T) {
	html := pagefixture.ChessCom(pagefixture.Options{Pieces: pagefixture.StartPieces(), Selected: -1})
	html = strings.ReplaceAll(html, "square-", "sq-")
	d := detect(t, html, "")
	_, err := New(nil).Extract(d, perspective.Estimate{})
	if !errors.Is(err, ErrExtractionFailure) {
		t.Fatalf("err = %v", err)
	}
}

func TestEmptyBoardIsNotFailure(t *testing.T) {
	d := detect(t, pagefixture.ChessCom(pagefixture.Options{Selected: -1}), "")
	st, err := New(nil).Extract(d, perspective.Estimate{})
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if st.Count() != 0 || st.Castling != "-" {
		t.Fatalf("state = %s", st.FEN())
	}
}

func TestUnknownDescriptor(t *testing.T) {
	if _, err := New(nil).Extract(layout.Unknown(), perspective.Estimate{}); !errors.Is(err, layout.ErrLayoutMismatch) {
		t.Fatalf("err = %v", err)
	}
}

func TestTurnFromMoveList(t *testing.T) {
	moves := []string{"e4", "e5", "Nf3"}
	cases := []struct {
		selected int
		active   board.Color
		full     int
	}{
		{-1, board.Black, 2},
		{1, board.White, 2},
		{0, board.Black, 1},
		{2, board.Black, 2},
	}
	x := New(nil)
	for _, render := range []func(pagefixture.Options) string{pagefixture.ChessCom, pagefixture.Lichess} {
		for _, c := range cases {
			d := detect(t, render(pagefixture.Options{
				Pieces:   pagefixture.StartPieces(),
				Moves:    moves,
				Selected: c.selected,
			}), "")
			st, err := x.Extract(d, perspective.Estimate{})
			if err != nil {
				t.Fatalf("extract: %v", err)
			}
			if st.Active != c.active || st.FullMove != c.full {
				t.Fatalf("%s selected=%d: active=%s full=%d", d.Kind, c.selected, st.Active, st.FullMove)
			}
			if got := x.MoveList(d); strings.Join(got, " ") != "e4 e5 Nf3" {
				t.Fatalf("%s moves = %v", d.Kind, got)
			}
		}
	}
}

func TestIdentityMarkers(t *testing.T) {
	html := `<html><body><div class="board-layout-top"></div><div class="board-layout-chessboard">
<wc-chess-board class="board">
<div class="piece square-51" data-piece="white-king"></div>
<div class="piece square-58" style="background-image: url('https://img.example/150/bk.png')"></div>
<div class="piece bq square-48"></div>
<div class="piece wq square-48"></div>
<div class="piece wn square-36 dragging"></div>
</wc-chess-board></div><div class="board-layout-bottom"></div>
<wc-simple-move-list><div class="node"><span class="node-highlight-content"><span class="icon-font-chess" data-figurine="N"></span>f3</span></div></wc-simple-move-list>
</body></html>`
	d := detect(t, html, "https://www.chess.com/game/live/987654")
	x := New(nil)
	st, err := x.Extract(d, perspective.Estimate{})
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	got := st.Pieces()
	want := map[string]string{"e1": "wK", "e8": "bK", "d8": "bQ"}
	if len(got) != len(want) {
		t.Fatalf("pieces = %v", got)
	}
	for sq, code := range want {
		if got[sq] != code {
			t.Fatalf("%s = %q want %q (all %v)", sq, got[sq], code, got)
		}
	}
	if mv := x.MoveList(d); len(mv) != 1 || mv[0] != "Nf3" {
		t.Fatalf("moves = %v", mv)
	}
	if id := x.GameID(d); id != "987654" {
		t.Fatalf("game id = %q", id)
	}
	if v := x.Variant(d); v != VariantStandard {
		t.Fatalf("variant = %q", v)
	}
}

func TestGameIDAndVariantMarkers(t *testing.T) {
	html := pagefixture.Lichess(pagefixture.Options{Pieces: pagefixture.StartPieces(), Selected: -1})
	html = strings.Replace(html, `<main class="round">`, `<main class="round" data-game-id="AbCd1234" data-variant="Chess960">`, 1)
	d := detect(t, html, "https://lichess.org/tv")
	x := New(nil)
	if id := x.GameID(d); id != "AbCd1234" {
		t.Fatalf("game id = %q", id)
	}
	if v := x.Variant(d); v != Variant960 {
		t.Fatalf("variant = %q", v)
	}

	d = detect(t, pagefixture.Lichess(pagefixture.Options{Selected: -1}), "https://lichess.org/q7ZvsdUF/black")
	if id := x.GameID(d); id != "q7ZvsdUF" {
		t.Fatalf("url game id = %q", id)
	}
}
