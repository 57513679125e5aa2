package layout

import (
	"fmt"
	"os"
	"strings"

	yaml "gopkg.in/yaml.v3"
)

// Kind tags a recognised page variant.
type Kind string

const (
	KindUnknown  Kind = "unknown"
	KindChessCom Kind = "chesscom"
	KindLichess  Kind = "lichess"
)

// Geometry selects how a piece node's square is decoded.
type Geometry string

const (
	// GeometrySymbolic: the node carries an absolute file/rank marker.
	GeometrySymbolic Geometry = "symbolic"
	// GeometryPixel: the node's visual offset is inverted through the
	// perspective estimate.
	GeometryPixel Geometry = "pixel"
)

// Patterns is the variant-specific bag of structural selectors shared by the
// registry, perspective resolver, extractor and overlay.
type Patterns struct {
	BoardRoot    string `yaml:"board_root"`
	Container    string `yaml:"container"`
	MoveList     string `yaml:"move_list"`
	PlayerTop    string `yaml:"player_top"`
	PlayerBottom string `yaml:"player_bottom"`

	Piece           string   `yaml:"piece"`
	Geometry        Geometry `yaml:"geometry"`
	SquarePrefix    string   `yaml:"square_prefix"`
	PieceAttr       string   `yaml:"piece_attr"`
	FlippedClass    string   `yaml:"flipped_class"`
	OrientWhite     string   `yaml:"orient_white"`
	OrientBlack     string   `yaml:"orient_black"`
	RankLabel       string   `yaml:"rank_label"`
	MoveEntry       string   `yaml:"move_entry"`
	SelectedMove    string   `yaml:"selected_move"`
	GameIDPattern   string   `yaml:"game_id_pattern"`
	GameIDAttr      string   `yaml:"game_id_attr"`
	VariantMarker   string   `yaml:"variant_marker"`
	IgnorePieceWith string   `yaml:"ignore_piece_with"`
}

// ChessComPatterns describes the custom-element board with square-FR classes.
func ChessComPatterns() Patterns {
	return Patterns{
		BoardRoot:       "wc-chess-board, chess-board, #board-single.board, .board",
		Container:       ".board-layout-chessboard",
		MoveList:        "wc-simple-move-list, vertical-move-list, .move-list, .vertical-move-list",
		PlayerTop:       ".board-layout-top, #board-layout-player-top, .player-top",
		PlayerBottom:    ".board-layout-bottom, #board-layout-player-bottom, .player-bottom",
		Piece:           ".piece",
		Geometry:        GeometrySymbolic,
		SquarePrefix:    "square-",
		PieceAttr:       "data-piece",
		FlippedClass:    "flipped",
		OrientWhite:     "",
		OrientBlack:     "flipped",
		RankLabel:       "svg.coordinates text, .coordinates text",
		MoveEntry:       ".node",
		SelectedMove:    "selected",
		GameIDPattern:   `/game/(?:live/|daily/)?(\d+)`,
		GameIDAttr:      "data-game-id",
		VariantMarker:   ".variant-name, [data-variant]",
		IgnorePieceWith: "dragging",
	}
}

// LichessPatterns describes the chessground board with translated pieces.
func LichessPatterns() Patterns {
	return Patterns{
		BoardRoot:       "cg-board",
		Container:       ".cg-wrap, cg-wrap",
		MoveList:        "rm6, l4x, .moves",
		PlayerTop:       ".ruser-top, .ruser.top, .rclock-top",
		PlayerBottom:    ".ruser-bottom, .ruser.bottom, .rclock-bottom",
		Piece:           "piece",
		Geometry:        GeometryPixel,
		PieceAttr:       "data-piece",
		FlippedClass:    "",
		OrientWhite:     "orientation-white",
		OrientBlack:     "orientation-black",
		RankLabel:       "coords.ranks coord",
		MoveEntry:       "kwdb, move, u8t",
		SelectedMove:    "a1t",
		GameIDPattern:   `^https?://[^/]+/([A-Za-z0-9]{8})(?:[A-Za-z0-9]{4})?(?:/(?:white|black))?/?$`,
		GameIDAttr:      "data-game-id",
		VariantMarker:   ".setup .variant, [data-variant]",
		IgnorePieceWith: "ghost, fading, anim",
	}
}

// DefaultPatterns returns the built-in patterns keyed by kind.
func DefaultPatterns() map[Kind]Patterns {
	return map[Kind]Patterns{
		KindChessCom: ChessComPatterns(),
		KindLichess:  LichessPatterns(),
	}
}

// overrideFile is the YAML shape of LAYOUTS_FILE:
//
//	lichess:
//	  move_list: "rm6"
//	  piece: "piece"
type overrideFile map[string]Patterns

// LoadOverrides merges non-empty fields from a YAML file into base.
func LoadOverrides(path string, base map[Kind]Patterns) (map[Kind]Patterns, error) {
	out := make(map[Kind]Patterns, len(base))
	for k, v := range base {
		out[k] = v
	}
	if strings.TrimSpace(path) == "" {
		return out, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read layouts file: %w", err)
	}
	return ApplyOverrides(raw, out)
}

func ApplyOverrides(raw []byte, base map[Kind]Patterns) (map[Kind]Patterns, error) {
	var file overrideFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("decode layouts yaml: %w", err)
	}
	for name, ov := range file {
		kind := Kind(strings.ToLower(strings.TrimSpace(name)))
		cur, ok := base[kind]
		if !ok {
			return nil, fmt.Errorf("unknown layout kind %q", name)
		}
		base[kind] = merge(cur, ov)
	}
	return base, nil
}

func merge(dst, src Patterns) Patterns {
	pick := func(d *string, s string) {
		if strings.TrimSpace(s) != "" {
			*d = s
		}
	}
	pick(&dst.BoardRoot, src.BoardRoot)
	pick(&dst.Container, src.Container)
	pick(&dst.MoveList, src.MoveList)
	pick(&dst.PlayerTop, src.PlayerTop)
	pick(&dst.PlayerBottom, src.PlayerBottom)
	pick(&dst.Piece, src.Piece)
	pick(&dst.SquarePrefix, src.SquarePrefix)
	pick(&dst.PieceAttr, src.PieceAttr)
	pick(&dst.FlippedClass, src.FlippedClass)
	pick(&dst.OrientWhite, src.OrientWhite)
	pick(&dst.OrientBlack, src.OrientBlack)
	pick(&dst.RankLabel, src.RankLabel)
	pick(&dst.MoveEntry, src.MoveEntry)
	pick(&dst.SelectedMove, src.SelectedMove)
	pick(&dst.GameIDPattern, src.GameIDPattern)
	pick(&dst.GameIDAttr, src.GameIDAttr)
	pick(&dst.VariantMarker, src.VariantMarker)
	pick(&dst.IgnorePieceWith, src.IgnorePieceWith)
	if src.Geometry != "" {
		dst.Geometry = src.Geometry
	}
	return dst
}

// Scopes lists the board-root and move-list selectors of every kind; the
// change notifications are limited to these subtrees.
func Scopes(patterns map[Kind]Patterns) []string {
	var out []string
	seen := map[string]bool{}
	for _, k := range []Kind{KindChessCom, KindLichess} {
		p, ok := patterns[k]
		if !ok {
			continue
		}
		for _, sel := range []string{p.BoardRoot, p.Container, p.MoveList} {
			for _, part := range strings.Split(sel, ",") {
				part = strings.TrimSpace(part)
				if part != "" && !seen[part] {
					seen[part] = true
					out = append(out, part)
				}
			}
		}
	}
	return out
}
