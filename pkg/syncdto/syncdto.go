// Package syncdto holds the JSON messages exchanged with the local analysis
// backend.
package syncdto

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

const (
	TypeBoardUpdate = "board_update"
	TypeNewGame     = "new_game"
	TypePing        = "ping"
	TypePong        = "pong"
	TypeReceived    = "received"
	TypeError       = "error"
	TypeFENUpdate   = "fen_update"
	TypeAnalysis    = "analysis"
	TypeRecalculate = "recalculate"
	TypeSetTurn     = "set_turn"
	TypeSetVariant  = "set_variant"
)

// BoardUpdate is the streaming envelope; the HTTP fallback posts Data alone.
type BoardUpdate struct {
	Type string    `json:"type"`
	Data BoardData `json:"data"`
}

type BoardData struct {
	GameID           string            `json:"gameId"`
	Pieces           map[string]string `json:"pieces"`
	MoveList         []string          `json:"moveList"`
	RawMoveText      string            `json:"rawMoveText,omitempty"`
	ActiveColor      string            `json:"activeColor"`
	FullMoveNumber   int               `json:"fullMoveNumber"`
	FEN              string            `json:"fen"`
	Variant          string            `json:"variant"`
	Flags            Flags             `json:"flags"`
	BoardOrientation string            `json:"boardOrientation"`
	BoardLayout      *BoardLayout      `json:"boardLayout,omitempty"`
	Timestamp        int64             `json:"timestamp"`
}

type Flags struct {
	PossibleCastling  bool `json:"possibleCastling"`
	PossibleEnPassant bool `json:"possibleEnPassant"`
	BoardFlipped      bool `json:"boardFlipped"`
}

// BoardLayout carries the full grid, top rank first, for boards that are
// not 8×8.
type BoardLayout struct {
	Files   int            `json:"files"`
	Ranks   int            `json:"ranks"`
	Squares [][]SquareInfo `json:"squares"`
}

type SquareInfo struct {
	Square string  `json:"square"`
	Piece  *string `json:"piece"`
}

type NewGame struct {
	Type          string            `json:"type"`
	GameID        string            `json:"gameId"`
	StartPosition map[string]string `json:"startPosition"`
	Variant       string            `json:"variant"`
	Timestamp     int64             `json:"timestamp"`
}

// Inbound is any message the backend pushes. Only the fields relevant to
// Type are populated.
type Inbound struct {
	Type        string  `json:"type"`
	EngineID    string  `json:"engineId,omitempty"`
	FinalShapes []Shape `json:"finalShapes,omitempty"`
	Color       string  `json:"color,omitempty"`
	Variant     string  `json:"variant,omitempty"`
	Message     string  `json:"message,omitempty"`
	FEN         string  `json:"fen,omitempty"`
	Timestamp   int64   `json:"timestamp,omitempty"`
}

// IsAnalysis reports whether the message carries an overlay batch. A batch
// with zero shapes clears the overlay.
func (m *Inbound) IsAnalysis() bool {
	return m != nil && (m.Type == TypeAnalysis || m.FinalShapes != nil || m.EngineID != "")
}

// Shape is one suggested move. Chessground's orig/dest/brush spelling is
// accepted as well.
type Shape struct {
	From     string `json:"from"`
	To       string `json:"to"`
	Color    string `json:"color,omitempty"`
	Rank     int    `json:"rank,omitempty"`
	Score    *Score `json:"score,omitempty"`
	EngineID string `json:"engineId,omitempty"`
}

func (s *Shape) UnmarshalJSON(b []byte) error {
	var raw struct {
		From     string `json:"from"`
		To       string `json:"to"`
		Orig     string `json:"orig"`
		Dest     string `json:"dest"`
		Color    string `json:"color"`
		Brush    string `json:"brush"`
		Rank     int    `json:"rank"`
		Score    *Score `json:"score"`
		EngineID string `json:"engineId"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*s = Shape{
		From:     firstNonEmpty(raw.From, raw.Orig),
		To:       firstNonEmpty(raw.To, raw.Dest),
		Color:    firstNonEmpty(raw.Color, raw.Brush),
		Rank:     raw.Rank,
		Score:    raw.Score,
		EngineID: raw.EngineID,
	}
	return nil
}

// Score is an engine evaluation: pawns from White's view, or moves to mate.
type Score struct {
	Pawns float64
	Mate  int
	// IsMate distinguishes mate-in-N from a pawn score.
	IsMate bool
}

// Label renders "+0.35", "-1.20" or "M3"/"M-2".
func (s Score) Label() string {
	if s.IsMate {
		return "M" + strconv.Itoa(s.Mate)
	}
	return fmt.Sprintf("%+.2f", s.Pawns)
}

func (s Score) MarshalJSON() ([]byte, error) {
	if s.IsMate {
		return json.Marshal(map[string]int{"mate": s.Mate})
	}
	return json.Marshal(s.Pawns)
}

// UnmarshalJSON accepts 0.35, "0.35", "M3", "#-2", {"cp":35} and {"mate":3}.
func (s *Score) UnmarshalJSON(b []byte) error {
	trimmed := strings.TrimSpace(string(b))
	if trimmed == "null" || trimmed == "" {
		*s = Score{}
		return nil
	}
	switch trimmed[0] {
	case '{':
		var obj struct {
			CP   *float64 `json:"cp"`
			Mate *int     `json:"mate"`
		}
		if err := json.Unmarshal(b, &obj); err != nil {
			return err
		}
		switch {
		case obj.Mate != nil:
			*s = Score{Mate: *obj.Mate, IsMate: true}
		case obj.CP != nil:
			*s = Score{Pawns: *obj.CP / 100}
		default:
			return fmt.Errorf("score object without cp or mate")
		}
		return nil
	case '"':
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		return s.parseString(str)
	default:
		var f float64
		if err := json.Unmarshal(b, &f); err != nil {
			return err
		}
		*s = Score{Pawns: f}
		return nil
	}
}

func (s *Score) parseString(str string) error {
	str = strings.TrimSpace(str)
	upper := strings.ToUpper(str)
	if strings.HasPrefix(upper, "M") || strings.HasPrefix(upper, "#") {
		n, err := strconv.Atoi(strings.TrimSpace(str[1:]))
		if err != nil {
			return fmt.Errorf("mate score %q: %w", str, err)
		}
		*s = Score{Mate: n, IsMate: true}
		return nil
	}
	f, err := strconv.ParseFloat(str, 64)
	if err != nil {
		return fmt.Errorf("score %q: %w", str, err)
	}
	*s = Score{Pawns: f}
	return nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
