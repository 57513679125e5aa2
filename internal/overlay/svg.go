package overlay

import (
	"fmt"
	"html"
	"math"
	"strings"
)

// Outline returns the arrow polygon: shaft quad followed by the head
// triangle, seven points in drawing order.
func (a Arrow) Outline(sq float64) []Point {
	dir, length := unit(a.Start, a.Tip)
	if length == 0 {
		return nil
	}
	perp := Point{-dir.Y, dir.X}
	headLen := math.Min(sq*0.45, length*0.5)
	half := a.Width / 2
	headHalf := half * 1.8
	base := a.Tip.sub(dir.scale(headLen))

	return []Point{
		a.Start.add(perp.scale(half)),
		base.add(perp.scale(half)),
		base.add(perp.scale(headHalf)),
		a.Tip,
		base.sub(perp.scale(headHalf)),
		base.sub(perp.scale(half)),
		a.Start.sub(perp.scale(half)),
	}
}

const svgNS = "http://www.w3.org/2000/svg"

// SVG renders the scene in paint order. Labels are emitted as text nodes
// only when withLabels is set; raster output draws them separately.
func SVG(scene Scene, withLabels bool) string {
	w, h := scene.Board.W, scene.Board.H
	var b strings.Builder
	fmt.Fprintf(&b, `<svg xmlns="%s" width="%g" height="%g" viewBox="0 0 %g %g">`, svgNS, w, h, w, h)
	for _, a := range scene.Arrows {
		pts := a.Outline(scene.SquareSize)
		if len(pts) == 0 {
			continue
		}
		b.WriteString(`<polygon points="`)
		for i, p := range pts {
			if i > 0 {
				b.WriteByte(' ')
			}
			fmt.Fprintf(&b, "%.2f,%.2f", p.X, p.Y)
		}
		fmt.Fprintf(&b, `" fill="%s" fill-opacity="%.2f"/>`, html.EscapeString(a.Color), a.Opacity)
	}
	if withLabels {
		r := scene.SquareSize * 0.18
		fs := scene.SquareSize * 0.2
		for _, a := range scene.Arrows {
			if a.Label == "" {
				continue
			}
			fmt.Fprintf(&b, `<g class="label"><rect x="%.2f" y="%.2f" width="%.2f" height="%.2f" rx="%.2f" fill="#FFFFFF" fill-opacity="0.85" stroke="%s"/>`,
				a.LabelPos.X-labelWidth(a.Label, fs)/2, a.LabelPos.Y-r, labelWidth(a.Label, fs), 2*r, r, html.EscapeString(a.Color))
			fmt.Fprintf(&b, `<text x="%.2f" y="%.2f" font-size="%.2f" font-family="sans-serif" font-weight="bold" text-anchor="middle" dominant-baseline="central" fill="%s">%s</text></g>`,
				a.LabelPos.X, a.LabelPos.Y, fs, html.EscapeString(a.Color), html.EscapeString(a.Label))
		}
	}
	b.WriteString(`</svg>`)
	return b.String()
}

func labelWidth(label string, fontSize float64) float64 {
	return float64(len(label))*fontSize*0.62 + fontSize*0.8
}
