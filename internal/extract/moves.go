package extract

import (
	"regexp"
	"strings"

	"github.com/park285/boardsync/internal/board"
	"github.com/park285/boardsync/internal/dom"
	"github.com/park285/boardsync/internal/layout"
	"golang.org/x/net/html"
)

// MoveList returns the cleaned move texts in document order.
func (x *Extractor) MoveList(d *layout.Descriptor) []string {
	moves, _ := x.moves(d)
	return moves
}

// moves also reports the index of the highlighted entry, or -1.
func (x *Extractor) moves(d *layout.Descriptor) ([]string, int) {
	if !d.Known() || d.MoveList == nil {
		return nil, -1
	}
	p := d.Patterns
	selected := -1
	var out []string
	for _, n := range dom.QueryAll(d.MoveList, p.MoveEntry) {
		san := board.CleanSAN(entryText(n))
		if san == "" || !looksLikeMove(san) {
			continue
		}
		if isSelected(n, p.SelectedMove) {
			selected = len(out)
		}
		out = append(out, san)
	}
	return out, selected
}

// entryText is the visible move text with figurine glyph spans expanded to
// their piece letter.
func entryText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(c *html.Node) {
		switch c.Type {
		case html.TextNode:
			b.WriteString(c.Data)
		case html.ElementNode:
			if v, ok := dom.Attr(c, "data-figurine"); ok {
				b.WriteString(strings.TrimSpace(v))
			}
		}
		for ch := c.FirstChild; ch != nil; ch = ch.NextSibling {
			walk(ch)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(b.String()), " ")
}

var moveRe = regexp.MustCompile(`^(?:O-O(?:-O)?|0-0(?:-0)?|[KQRBN]?[a-z]?\d*x?[a-z]\d+(?:=?[QRBN])?|[a-z]x[a-z]\d+)[+#]?$`)

func looksLikeMove(s string) bool { return moveRe.MatchString(s) }

func isSelected(n *html.Node, class string) bool {
	class = strings.TrimSpace(class)
	if class == "" {
		return false
	}
	return dom.HasClass(n, class) || dom.Query(n, "."+class) != nil
}

// GameID returns the page's external game id from the URL pattern, then
// from the id attribute anywhere in the document.
func (x *Extractor) GameID(d *layout.Descriptor) string {
	if !d.Known() || d.Doc == nil {
		return ""
	}
	p := d.Patterns
	if p.GameIDPattern != "" {
		if re, err := regexp.Compile(p.GameIDPattern); err == nil {
			if m := re.FindStringSubmatch(d.Doc.URL); len(m) > 1 {
				return m[1]
			}
		}
	}
	if p.GameIDAttr != "" {
		if n := dom.Query(d.Doc.Root, "["+p.GameIDAttr+"]"); n != nil {
			v, _ := dom.Attr(n, p.GameIDAttr)
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// Variant reads the page's variant marker. Unmarked pages are standard.
func (x *Extractor) Variant(d *layout.Descriptor) string {
	if !d.Known() || d.Doc == nil {
		return VariantStandard
	}
	n := dom.Query(d.Doc.Root, d.Patterns.VariantMarker)
	if n == nil {
		return VariantStandard
	}
	raw, ok := dom.Attr(n, "data-variant")
	if !ok {
		raw = dom.Text(n)
	}
	return NormalizeVariant(raw)
}

const (
	VariantStandard = "standard"
	Variant960      = "chess960"
)

func NormalizeVariant(raw string) string {
	v := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case v == "":
		return VariantStandard
	case strings.Contains(v, "960") || strings.Contains(v, "fischer"):
		return Variant960
	default:
		return strings.Join(strings.Fields(v), "-")
	}
}
