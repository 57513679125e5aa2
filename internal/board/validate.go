package board

import (
	"errors"
	"fmt"
	"strings"

	nchess "github.com/corentings/chess/v2"
)

var ErrReplayMismatch = errors.New("move list does not reproduce position")

// Validate cross-checks the synthesized FEN with the rule library. Callers
// log the result; an invalid FEN is never a reason to drop a state.
func Validate(st *State) error {
	if st == nil {
		return fmt.Errorf("nil state")
	}
	if st.Size != DefaultSize {
		return nil
	}
	if _, err := nchess.FEN(st.FEN()); err != nil {
		return fmt.Errorf("fen rejected: %w", err)
	}
	return nil
}

// IsStartPosition reports whether st holds the standard initial setup.
func IsStartPosition(st *State) bool {
	return st != nil && st.Size == DefaultSize && st.Placement() == StartPlacement
}

// Replay plays SAN moves from the initial position and returns the
// resulting placement.
func Replay(moves []string) (string, error) {
	game := nchess.NewGame()
	for i, raw := range moves {
		mv := CleanSAN(raw)
		if mv == "" {
			continue
		}
		if err := game.PushNotationMove(mv, nchess.AlgebraicNotation{}, nil); err != nil {
			return "", fmt.Errorf("ply %d %q: %w", i+1, raw, err)
		}
	}
	return game.Position().Board().String(), nil
}

// CrossCheck replays moves and compares the result with st. Only meaningful
// for standard games that started from the initial position.
func CrossCheck(st *State, moves []string) error {
	if st == nil || st.Size != DefaultSize {
		return nil
	}
	placement, err := Replay(moves)
	if err != nil {
		return err
	}
	if placement != st.Placement() {
		return fmt.Errorf("%w: replay=%s page=%s", ErrReplayMismatch, placement, st.Placement())
	}
	return nil
}

var figurines = strings.NewReplacer(
	"♔", "K", "♕", "Q", "♖", "R", "♗", "B", "♘", "N",
	"♚", "K", "♛", "Q", "♜", "R", "♝", "B", "♞", "N",
	"♙", "", "♟", "",
)

// CleanSAN strips move numbers, annotation glyphs and figurines from a
// move-list entry.
func CleanSAN(raw string) string {
	s := strings.TrimSpace(figurines.Replace(raw))
	if i := strings.LastIndex(s, "."); i >= 0 {
		s = strings.TrimSpace(s[i+1:])
	}
	s = strings.TrimRight(s, "!?")
	if f := strings.Fields(s); len(f) > 0 {
		s = f[0]
	}
	return s
}
