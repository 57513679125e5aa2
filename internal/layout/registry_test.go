package layout

import (
	"testing"

	"github.com/park285/boardsync/internal/dom"
	"github.com/park285/boardsync/internal/pagefixture"
)

func parse(t *testing.T, html, url string) *dom.Document {
	t.Helper()
	doc, err := dom.ParseString(html, url)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return doc
}

func TestDetectKinds(t *testing.T) {
	reg := DefaultRegistry(nil, nil)
	opts := pagefixture.Options{Pieces: pagefixture.StartPieces(), Selected: -1}

	cc := reg.Detect(parse(t, pagefixture.ChessCom(opts), "https://www.chess.com/game/live/123"))
	if cc.Kind != KindChessCom {
		t.Fatalf("chesscom page detected as %s", cc.Kind)
	}
	if dom.Tag(cc.Board) != "wc-chess-board" {
		t.Fatalf("board root = %s", dom.Tag(cc.Board))
	}
	if cc.Container == nil || !dom.HasClass(cc.Container, "board-layout-chessboard") {
		t.Fatalf("container not resolved")
	}

	li := reg.Detect(parse(t, pagefixture.Lichess(opts), "https://lichess.org/abcdefgh"))
	if li.Kind != KindLichess {
		t.Fatalf("lichess page detected as %s", li.Kind)
	}
	if !dom.HasClass(li.Container, "cg-wrap") {
		t.Fatalf("lichess container = %v", dom.Classes(li.Container))
	}
	if r, ok := li.BoardRect(); !ok || r.W != 400 {
		t.Fatalf("board rect = %+v ok=%v", r, ok)
	}
}

func TestDetectRequiresAllRegions(t *testing.T) {
	reg := DefaultRegistry(nil, nil)
	for _, omit := range []string{"board", "moves", "top", "bottom"} {
		opts := pagefixture.Options{Pieces: pagefixture.StartPieces(), Selected: -1, Omit: omit}
		for name, html := range map[string]string{
			"chesscom": pagefixture.ChessCom(opts),
			"lichess":  pagefixture.Lichess(opts),
		} {
			d := reg.Detect(parse(t, html, ""))
			if d.Known() {
				t.Fatalf("%s without %s detected as %s", name, omit, d.Kind)
			}
			if d != Unknown() {
				t.Fatalf("expected sentinel descriptor")
			}
		}
	}
}

func TestDetectUnrelatedPage(t *testing.T) {
	d := DefaultRegistry(nil, nil).Detect(parse(t, "<html><body><p>hello</p></body></html>", ""))
	if d.Kind != KindUnknown {
		t.Fatalf("kind = %s", d.Kind)
	}
	if d.Key() != string(KindUnknown) {
		t.Fatalf("key = %s", d.Key())
	}
}

func TestKeyTracksOrientationClass(t *testing.T) {
	reg := DefaultRegistry(nil, nil)
	base := pagefixture.Options{Pieces: pagefixture.StartPieces(), Selected: -1}
	flipped := base
	flipped.Explicit = "black"

	a := reg.Detect(parse(t, pagefixture.ChessCom(base), "u"))
	b := reg.Detect(parse(t, pagefixture.ChessCom(flipped), "u"))
	if a.Key() == b.Key() {
		t.Fatalf("flip should change key: %s", a.Key())
	}
	c := reg.Detect(parse(t, pagefixture.ChessCom(base), "u"))
	if a.Key() != c.Key() {
		t.Fatalf("same markup should keep key")
	}
}

func TestApplyOverrides(t *testing.T) {
	raw := []byte("lichess:\n  move_list: \".moves-x\"\n  geometry: symbolic\n")
	got, err := ApplyOverrides(raw, DefaultPatterns())
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	li := got[KindLichess]
	if li.MoveList != ".moves-x" || li.Geometry != GeometrySymbolic {
		t.Fatalf("override not applied: %+v", li)
	}
	if li.BoardRoot != "cg-board" {
		t.Fatalf("untouched field changed: %s", li.BoardRoot)
	}
	if got[KindChessCom].MoveList != ChessComPatterns().MoveList {
		t.Fatalf("other kind changed")
	}

	if _, err := ApplyOverrides([]byte("bogus:\n  piece: x\n"), DefaultPatterns()); err == nil {
		t.Fatalf("expected unknown kind error")
	}
}

func TestLoadOverridesEmptyPath(t *testing.T) {
	got, err := LoadOverrides("", DefaultPatterns())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("kinds = %d", len(got))
	}
}

func TestScopesDeduplicated(t *testing.T) {
	scopes := Scopes(DefaultPatterns())
	seen := map[string]bool{}
	for _, s := range scopes {
		if seen[s] {
			t.Fatalf("duplicate scope %q", s)
		}
		seen[s] = true
	}
	for _, want := range []string{"wc-chess-board", ".board-layout-chessboard", "cg-board", "rm6"} {
		if !seen[want] {
			t.Fatalf("missing scope %q in %v", want, scopes)
		}
	}
	if seen[".board-layout-top"] {
		t.Fatalf("player regions must not be observed")
	}
}
