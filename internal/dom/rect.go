package dom

import (
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

// RectAttr is stamped on elements by the live page source before a snapshot
// is serialised. Values are document coordinates: "x,y,w,h".
const RectAttr = "data-rect"

type Rect struct {
	X, Y, W, H float64
}

func (r Rect) Empty() bool { return r.W <= 0 || r.H <= 0 }

func (r Rect) CenterY() float64 { return r.Y + r.H/2 }

var translateRe = regexp.MustCompile(`translate(?:3d)?\(\s*(-?[\d.]+)(?:px)?\s*,\s*(-?[\d.]+)(?:px)?`)

// RectOf resolves a node's box from, in order, the stamped data-rect
// attribute, its inline style, and SVG x/y attributes. ok is false when no
// positional information exists at all.
func RectOf(n *html.Node) (Rect, bool) {
	if n == nil {
		return Rect{}, false
	}
	if v, ok := Attr(n, RectAttr); ok {
		if r, ok := parseRectAttr(v); ok {
			return r, true
		}
	}
	if v, ok := Attr(n, "style"); ok {
		if r, ok := parseStyleRect(v); ok {
			return r, true
		}
	}
	x, okX := floatAttr(n, "x")
	y, okY := floatAttr(n, "y")
	if okX || okY {
		w, _ := floatAttr(n, "width")
		h, _ := floatAttr(n, "height")
		return Rect{X: x, Y: y, W: w, H: h}, true
	}
	return Rect{}, false
}

func parseRectAttr(v string) (Rect, bool) {
	parts := strings.Split(v, ",")
	if len(parts) != 4 {
		return Rect{}, false
	}
	var vals [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return Rect{}, false
		}
		vals[i] = f
	}
	return Rect{X: vals[0], Y: vals[1], W: vals[2], H: vals[3]}, true
}

func parseStyleRect(style string) (Rect, bool) {
	decl := parseStyle(style)
	var r Rect
	found := false
	if v, ok := pxValue(decl["left"]); ok {
		r.X, found = v, true
	}
	if v, ok := pxValue(decl["top"]); ok {
		r.Y, found = v, true
	}
	if v, ok := pxValue(decl["width"]); ok {
		r.W, found = v, true
	}
	if v, ok := pxValue(decl["height"]); ok {
		r.H, found = v, true
	}
	if m := translateRe.FindStringSubmatch(decl["transform"]); m != nil {
		tx, _ := strconv.ParseFloat(m[1], 64)
		ty, _ := strconv.ParseFloat(m[2], 64)
		r.X += tx
		r.Y += ty
		found = true
	}
	return r, found
}

// Style returns one inline style property of n, lowercased key.
func Style(n *html.Node, prop string) string {
	v, ok := Attr(n, "style")
	if !ok {
		return ""
	}
	return parseStyle(v)[strings.ToLower(strings.TrimSpace(prop))]
}

func parseStyle(style string) map[string]string {
	out := map[string]string{}
	for _, decl := range strings.Split(style, ";") {
		k, v, ok := strings.Cut(decl, ":")
		if !ok {
			continue
		}
		out[strings.ToLower(strings.TrimSpace(k))] = strings.TrimSpace(v)
	}
	return out
}

func pxValue(v string) (float64, bool) {
	v = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(v), "px"))
	if v == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func floatAttr(n *html.Node, key string) (float64, bool) {
	v, ok := Attr(n, key)
	if !ok {
		return 0, false
	}
	return pxValue(strings.TrimSuffix(strings.TrimSpace(v), "%"))
}
