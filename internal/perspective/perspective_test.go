package perspective

import (
	"testing"

	"github.com/park285/boardsync/internal/board"
	"github.com/park285/boardsync/internal/dom"
	"github.com/park285/boardsync/internal/layout"
	"github.com/park285/boardsync/internal/pagefixture"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func detect(t *testing.T, html string) *layout.Descriptor {
	t.Helper()
	doc, err := dom.ParseString(html, "https://example.test/game/1")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	d := layout.DefaultRegistry(nil, nil).Detect(doc)
	if !d.Known() {
		t.Fatalf("layout not detected")
	}
	return d
}

func TestTiers(t *testing.T) {
	pieces := pagefixture.StartPieces()
	cases := []struct {
		name   string
		html   string
		black  bool
		source Source
	}{
		{"chesscom flipped class", pagefixture.ChessCom(pagefixture.Options{Pieces: pieces, Selected: -1, BlackBottom: true, Explicit: "black"}), true, SourceExplicit},
		{"chesscom labels white", pagefixture.ChessCom(pagefixture.Options{Pieces: pieces, Selected: -1}), false, SourceGeometry},
		{"chesscom labels black", pagefixture.ChessCom(pagefixture.Options{Pieces: pieces, Selected: -1, BlackBottom: true}), true, SourceGeometry},
		{"lichess container black", pagefixture.Lichess(pagefixture.Options{Pieces: pieces, Selected: -1, BlackBottom: true, Explicit: "black"}), true, SourceContainer},
		{"lichess container white", pagefixture.Lichess(pagefixture.Options{Pieces: pieces, Selected: -1, Explicit: "white"}), false, SourceContainer},
		{"lichess labels black", pagefixture.Lichess(pagefixture.Options{Pieces: pieces, Selected: -1, BlackBottom: true}), true, SourceGeometry},
		{"no signal", pagefixture.ChessCom(pagefixture.Options{Pieces: pieces, Selected: -1, NoLabels: true}), false, SourceDefault},
	}
	for _, c := range cases {
		est := NewResolver(nil).Compute(detect(t, c.html))
		if est.BlackBottom != c.black || est.Source != c.source {
			t.Fatalf("%s: got %+v want black=%v source=%s", c.name, est, c.black, c.source)
		}
	}
}

func TestExplicitOverridesGeometry(t *testing.T) {
	html := pagefixture.ChessCom(pagefixture.Options{
		Pieces:            pagefixture.StartPieces(),
		Selected:          -1,
		BlackBottom:       true,
		Explicit:          "black",
		LabelsSet:         true,
		LabelsBlackBottom: false,
	})
	est := NewResolver(nil).Resolve(detect(t, html))
	if !est.BlackBottom || est.Source != SourceExplicit {
		t.Fatalf("explicit marker should win over labels: %+v", est)
	}
}

func TestResolveCachesByKey(t *testing.T) {
	r := NewResolver(nil)
	white := detect(t, pagefixture.Lichess(pagefixture.Options{Pieces: pagefixture.StartPieces(), Selected: -1}))
	first := r.Resolve(white)
	if first.BlackBottom {
		t.Fatalf("expected white at bottom")
	}

	// Same key, different label geometry: cached value is reused.
	flippedLabels := detect(t, pagefixture.Lichess(pagefixture.Options{
		Pieces: pagefixture.StartPieces(), Selected: -1, LabelsSet: true, LabelsBlackBottom: true,
	}))
	if white.Key() != flippedLabels.Key() {
		t.Fatalf("keys differ: %s vs %s", white.Key(), flippedLabels.Key())
	}
	if r.Resolve(flippedLabels).BlackBottom {
		t.Fatalf("cached estimate not reused")
	}
	r.Invalidate()
	if !r.Resolve(flippedLabels).BlackBottom {
		t.Fatalf("invalidate should force recomputation")
	}
}

func TestAbsoluteVisualInverse(t *testing.T) {
	for _, est := range []Estimate{{}, {BlackBottom: true}} {
		for _, n := range []int{8, 10} {
			for f := 0; f < n; f++ {
				for r := 0; r < n; r++ {
					sq := board.Square{File: f, Rank: r}
					col, row := est.Visual(sq, n)
					if got := est.Absolute(col, row, n); got != sq {
						t.Fatalf("est=%+v n=%d %v -> (%d,%d) -> %v", est, n, sq, col, row, got)
					}
				}
			}
		}
	}
	if sq := (Estimate{}).Absolute(0, 7, 8); sq.String() != "a1" {
		t.Fatalf("white bottom-left = %s", sq)
	}
	if sq := (Estimate{BlackBottom: true}).Absolute(0, 7, 8); sq.String() != "h8" {
		t.Fatalf("black bottom-left = %s", sq)
	}
}

func TestAmbiguousPageLogsBelowInfo(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	r := NewResolver(zap.New(core))
	d := detect(t, pagefixture.ChessCom(pagefixture.Options{Pieces: pagefixture.StartPieces(), Selected: -1, NoLabels: true}))
	for i := 0; i < 3; i++ {
		r.Compute(d)
	}
	entries := logs.FilterMessage("perspective_ambiguous").All()
	if len(entries) != 3 {
		t.Fatalf("entries = %d", len(entries))
	}
	for _, e := range entries {
		if e.Level != zap.DebugLevel {
			t.Fatalf("level = %s", e.Level)
		}
	}
}
