package layout

import (
	"errors"
	"strings"

	"github.com/park285/boardsync/internal/dom"
	"go.uber.org/zap"
	"golang.org/x/net/html"
)

// ErrLayoutMismatch is returned by callers that need an error value for an
// unknown descriptor. It is never fatal; the next notification retries.
var ErrLayoutMismatch = errors.New("no layout adapter matched")

// Descriptor identifies a recognised page variant and the nodes every
// downstream component relies on. It is built once per detection and never
// mutated afterwards.
type Descriptor struct {
	Kind         Kind
	Board        *html.Node
	Container    *html.Node
	MoveList     *html.Node
	PlayerTop    *html.Node
	PlayerBottom *html.Node
	Patterns     Patterns
	Doc          *dom.Document
}

var unknown = &Descriptor{Kind: KindUnknown}

// Unknown returns the sentinel descriptor. Callers must no-op on it.
func Unknown() *Descriptor { return unknown }

func (d *Descriptor) Known() bool { return d != nil && d.Kind != KindUnknown && d.Board != nil }

// Key identifies one board appearance. It changes on navigation, on a layout
// kind change and when the root or container markup is swapped (for example
// a flip that toggles the orientation class).
func (d *Descriptor) Key() string {
	if !d.Known() {
		return string(KindUnknown)
	}
	boardClass, _ := dom.Attr(d.Board, "class")
	var containerClass string
	if d.Container != nil {
		containerClass, _ = dom.Attr(d.Container, "class")
	}
	url := ""
	if d.Doc != nil {
		url = d.Doc.URL
	}
	return strings.Join([]string{string(d.Kind), url, boardClass, containerClass}, "|")
}

// BoardRect returns the on-page box of the board root, if known.
func (d *Descriptor) BoardRect() (dom.Rect, bool) {
	if !d.Known() {
		return dom.Rect{}, false
	}
	r, ok := dom.RectOf(d.Board)
	if !ok || r.Empty() {
		return dom.Rect{}, false
	}
	return r, true
}

// Adapter locates the required node set for one page variant.
type Adapter interface {
	Kind() Kind
	Locate(doc *dom.Document) (*Descriptor, bool)
}

type patternAdapter struct {
	kind     Kind
	patterns Patterns
	logger   *zap.Logger
}

// NewAdapter builds an adapter driven entirely by p.
func NewAdapter(kind Kind, p Patterns, logger *zap.Logger) Adapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &patternAdapter{kind: kind, patterns: p, logger: logger}
}

func (a *patternAdapter) Kind() Kind { return a.kind }

func (a *patternAdapter) Locate(doc *dom.Document) (*Descriptor, bool) {
	if doc == nil || doc.Root == nil {
		return nil, false
	}
	p := a.patterns
	boardNode := dom.Query(doc.Root, p.BoardRoot)
	moveList := dom.Query(doc.Root, p.MoveList)
	top := dom.Query(doc.Root, p.PlayerTop)
	bottom := dom.Query(doc.Root, p.PlayerBottom)

	found := 0
	for _, n := range []*html.Node{boardNode, moveList, top, bottom} {
		if n != nil {
			found++
		}
	}
	if found < 4 {
		if found > 0 {
			a.logger.Debug("layout_partial_match",
				zap.String("kind", string(a.kind)),
				zap.Bool("board", boardNode != nil),
				zap.Bool("move_list", moveList != nil),
				zap.Bool("player_top", top != nil),
				zap.Bool("player_bottom", bottom != nil),
			)
		}
		return nil, false
	}

	var container *html.Node
	if strings.TrimSpace(p.Container) != "" {
		container = dom.Closest(boardNode.Parent, p.Container)
	}
	return &Descriptor{
		Kind:         a.kind,
		Board:        boardNode,
		Container:    container,
		MoveList:     moveList,
		PlayerTop:    top,
		PlayerBottom: bottom,
		Patterns:     p,
		Doc:          doc,
	}, true
}

// Registry is the ordered set of known adapters.
type Registry struct {
	adapters []Adapter
	logger   *zap.Logger
}

func NewRegistry(logger *zap.Logger, adapters ...Adapter) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{adapters: adapters, logger: logger}
}

// DefaultRegistry registers the built-in variants in priority order, using
// patterns (typically DefaultPatterns with YAML overrides applied).
func DefaultRegistry(patterns map[Kind]Patterns, logger *zap.Logger) *Registry {
	if patterns == nil {
		patterns = DefaultPatterns()
	}
	var adapters []Adapter
	for _, k := range []Kind{KindChessCom, KindLichess} {
		if p, ok := patterns[k]; ok {
			adapters = append(adapters, NewAdapter(k, p, logger))
		}
	}
	return NewRegistry(logger, adapters...)
}

// Detect returns the first adapter's descriptor whose full node set is
// present, or Unknown().
func (r *Registry) Detect(doc *dom.Document) *Descriptor {
	for _, a := range r.adapters {
		if d, ok := a.Locate(doc); ok {
			return d
		}
	}
	return Unknown()
}
