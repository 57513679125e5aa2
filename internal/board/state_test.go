package board

import "testing"

func startState() *State {
	st := NewState(DefaultSize)
	back := []Kind{Rook, Knight, Bishop, Queen, King, Bishop, Knight, Rook}
	for f, k := range back {
		st.Place(Square{File: f, Rank: 0}, Piece{Color: White, Kind: k})
		st.Place(Square{File: f, Rank: 1}, Piece{Color: White, Kind: Pawn})
		st.Place(Square{File: f, Rank: 6}, Piece{Color: Black, Kind: Pawn})
		st.Place(Square{File: f, Rank: 7}, Piece{Color: Black, Kind: k})
	}
	return st
}

func TestPlacementStartPosition(t *testing.T) {
	st := startState()
	if got := st.Placement(); got != StartPlacement {
		t.Fatalf("placement = %q", got)
	}
	if !IsStartPosition(st) {
		t.Fatalf("expected start position")
	}
	st.InferCastling()
	if st.FEN() != StartPlacement+" w KQkq - 0 1" {
		t.Fatalf("fen = %q", st.FEN())
	}
	if err := Validate(st); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestPlaceFirstWriteWins(t *testing.T) {
	st := NewState(8)
	e4 := Square{File: 4, Rank: 3}
	if !st.Place(e4, Piece{Color: White, Kind: Pawn}) {
		t.Fatalf("first place failed")
	}
	if st.Place(e4, Piece{Color: Black, Kind: Queen}) {
		t.Fatalf("second place should be rejected")
	}
	if got := st.At(e4).Code(); got != "wP" {
		t.Fatalf("occupant = %s", got)
	}
}

func TestFullMoveNumber(t *testing.T) {
	cases := []struct {
		plies  int
		active Color
		want   int
	}{
		{0, White, 1},
		{1, Black, 1},
		{2, White, 2},
		{3, Black, 2},
		{40, White, 21},
		{41, Black, 21},
	}
	for _, c := range cases {
		st := NewState(8)
		active := White
		if c.plies%2 == 1 {
			active = Black
		}
		if active != c.active {
			t.Fatalf("bad case %+v", c)
		}
		st.SetTurn(active, c.plies)
		if st.FullMove != c.want {
			t.Fatalf("plies=%d: fullmove=%d want %d", c.plies, st.FullMove, c.want)
		}
	}
}

func TestSquareRoundTrip(t *testing.T) {
	for _, name := range []string{"a1", "e4", "h8"} {
		sq, err := ParseSquare(name)
		if err != nil {
			t.Fatalf("parse %s: %v", name, err)
		}
		if sq.String() != name {
			t.Fatalf("%s -> %s", name, sq)
		}
	}
	if _, err := ParseSquare("z"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestDiffAndPieces(t *testing.T) {
	a := startState()
	b := FromPieces(8, a.Pieces())
	if !a.Equal(b) {
		t.Fatalf("round trip through Pieces differs: %s vs %s", a.Placement(), b.Placement())
	}
	b2 := NewState(8)
	b2.Place(Square{File: 4, Rank: 0}, Piece{Color: White, Kind: King})
	differ, occupied := a.Diff(b2)
	if occupied != 32 || differ != 31 {
		t.Fatalf("differ=%d occupied=%d", differ, occupied)
	}
}

func TestReplayAndCrossCheck(t *testing.T) {
	moves := []string{"1. e4", "e5", "Nf3!", "Nc6"}
	placement, err := Replay(moves)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	want := "r1bqkbnr/pppp1ppp/2n5/4p3/4P3/5N2/PPPP1PPP/RNBQKB1R"
	if placement != want {
		t.Fatalf("placement = %s", placement)
	}
	if err := CrossCheck(startState(), moves); err == nil {
		t.Fatalf("expected mismatch against start position")
	}
}

func TestCleanSAN(t *testing.T) {
	cases := map[string]string{
		"1. e4":  "e4",
		"♘f3":    "Nf3",
		"Qxd5+!?": "Qxd5+",
		" O-O ":  "O-O",
	}
	for in, want := range cases {
		if got := CleanSAN(in); got != want {
			t.Fatalf("CleanSAN(%q) = %q want %q", in, got, want)
		}
	}
}
