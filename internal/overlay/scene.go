// Package overlay draws engine suggestions as arrows over the detected board.
package overlay

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/park285/boardsync/internal/board"
	"github.com/park285/boardsync/internal/dom"
	"github.com/park285/boardsync/internal/perspective"
	"github.com/park285/boardsync/pkg/syncdto"
)

const (
	// fanStep separates arrows that share an endpoint.
	fanStep = 12 * math.Pi / 180
	// tipRadius and tailRadius are fractions of a square.
	tipRadius  = 0.30
	tailRadius = 0.25
)

type Point struct {
	X, Y float64
}

func (p Point) add(q Point) Point { return Point{p.X + q.X, p.Y + q.Y} }
func (p Point) sub(q Point) Point { return Point{p.X - q.X, p.Y - q.Y} }
func (p Point) scale(k float64) Point { return Point{p.X * k, p.Y * k} }
func (p Point) dist(q Point) float64 { return math.Hypot(p.X-q.X, p.Y-q.Y) }
func polar(r, theta float64) Point { return Point{r * math.Cos(theta), r * math.Sin(theta)} }
func angle(from, to Point) float64 { return math.Atan2(to.Y-from.Y, to.X-from.X) }
func unit(from, to Point) (Point, float64) {
	l := from.dist(to)
	if l == 0 {
		return Point{}, 0
	}
	return to.sub(from).scale(1 / l), l
}

// Arrow is one shape mapped to board-local pixels.
// Width is the shaft width; the head is proportionally wider. Z is the
// paint order, higher paints later.
type Arrow struct {
	From, To board.Square
	Start    Point
	Tip      Point
	Width    float64
	Color    string
	Opacity  float64
	Rank     int
	Label    string
	LabelPos Point
	Z        int
}

func (a Arrow) Length() float64 { return a.Start.dist(a.Tip) }

// Scene is a full redraw of the overlay. Coordinates are relative to the
// board's top-left corner.
type Scene struct {
	Board      dom.Rect
	Size       int
	SquareSize float64
	Arrows     []Arrow
}

var brushes = map[string]string{
	"green":     "#15781B",
	"red":       "#882020",
	"blue":      "#003088",
	"yellow":    "#E68F00",
	"grey":      "#4A4A4A",
	"paleblue":  "#003088",
	"palegreen": "#15781B",
	"palered":   "#882020",
	"palegrey":  "#4A4A4A",
}

var rankPalette = []string{"#15781B", "#003088", "#E68F00", "#882020"}

func colorFor(s syncdto.Shape) string {
	c := strings.TrimSpace(s.Color)
	if strings.HasPrefix(c, "#") {
		return c
	}
	if v, ok := brushes[c]; ok {
		return v
	}
	if v, ok := brushes[strings.ToLower(c)]; ok {
		return v
	}
	if s.Rank > 0 {
		return rankPalette[min(s.Rank-1, len(rankPalette)-1)]
	}
	return rankPalette[0]
}

// widthFor narrows the shaft for worse ranks. Unranked shapes sit in the middle.
func widthFor(rank int, sq float64) float64 {
	if rank <= 0 {
		return sq * 0.14
	}
	return sq * math.Max(0.08, 0.20-0.03*float64(rank-1))
}

func opacityFor(rank int) float64 {
	if rank <= 0 {
		return 0.8
	}
	return math.Max(0.45, 0.9-0.1*float64(rank-1))
}

func labelFor(s syncdto.Shape) string {
	var parts []string
	if s.Rank > 0 {
		parts = append(parts, strconv.Itoa(s.Rank))
	}
	if s.Score != nil {
		parts = append(parts, s.Score.Label())
	}
	return strings.Join(parts, " ")
}

// BuildScene maps shapes to arrows on an n×n board occupying rect. Shapes
// with an unparsable or off-board endpoint, or from == to, are dropped.
func BuildScene(rect dom.Rect, n int, est perspective.Estimate, shapes []syncdto.Shape) Scene {
	if n <= 0 {
		n = board.DefaultSize
	}
	side := math.Min(rect.W, rect.H)
	sq := side / float64(n)
	scene := Scene{Board: rect, Size: n, SquareSize: sq}

	center := func(s board.Square) Point {
		col, row := est.Visual(s, n)
		return Point{(float64(col) + 0.5) * sq, (float64(row) + 0.5) * sq}
	}

	var arrows []Arrow
	for _, s := range shapes {
		from, err1 := board.ParseSquare(s.From)
		to, err2 := board.ParseSquare(s.To)
		if err1 != nil || err2 != nil || !from.Valid(n) || !to.Valid(n) || from == to {
			continue
		}
		arrows = append(arrows, Arrow{
			From:    from,
			To:      to,
			Start:   center(from),
			Tip:     center(to),
			Width:   widthFor(s.Rank, sq),
			Color:   colorFor(s),
			Opacity: opacityFor(s.Rank),
			Rank:    s.Rank,
			Label:   labelFor(s),
		})
	}

	fan(arrows, sq,
		func(a *Arrow) board.Square { return a.To },
		func(a *Arrow) (anchor, other Point) { return center(a.To), center(a.From) },
		func(a *Arrow, p Point) { a.Tip = p },
		tipRadius)
	fan(arrows, sq,
		func(a *Arrow) board.Square { return a.From },
		func(a *Arrow) (anchor, other Point) { return center(a.From), center(a.To) },
		func(a *Arrow, p Point) { a.Start = p },
		tailRadius)

	for i := range arrows {
		a := &arrows[i]
		dir, l := unit(a.Start, a.Tip)
		back := math.Min(sq*0.35, l*0.4)
		a.LabelPos = a.Tip.sub(dir.scale(back))
	}

	sort.SliceStable(arrows, func(i, j int) bool {
		li, lj := arrows[i].Length(), arrows[j].Length()
		if math.Abs(li-lj) > 1e-6 {
			return li > lj
		}
		if arrows[i].Rank != arrows[j].Rank {
			return arrows[i].Rank > arrows[j].Rank
		}
		if arrows[i].From != arrows[j].From {
			return arrows[i].From.String() < arrows[j].From.String()
		}
		return arrows[i].To.String() < arrows[j].To.String()
	})
	for i := range arrows {
		arrows[i].Z = i
	}
	scene.Arrows = arrows
	return scene
}

// fan spreads arrows sharing the same endpoint around that endpoint so their
// heads (or tails) do not coincide. Members are ordered by rank.
func fan(arrows []Arrow, sq float64,
	key func(*Arrow) board.Square,
	ends func(*Arrow) (anchor, other Point),
	set func(*Arrow, Point),
	radius float64,
) {
	groups := map[board.Square][]int{}
	var order []board.Square
	for i := range arrows {
		k := key(&arrows[i])
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], i)
	}
	for _, k := range order {
		idx := groups[k]
		if len(idx) < 2 {
			continue
		}
		sort.SliceStable(idx, func(a, b int) bool {
			ra, rb := rankOrder(arrows[idx[a]].Rank), rankOrder(arrows[idx[b]].Rank)
			if ra != rb {
				return ra < rb
			}
			return arrows[idx[a]].From.String()+arrows[idx[a]].To.String() <
				arrows[idx[b]].From.String()+arrows[idx[b]].To.String()
		})
		mid := float64(len(idx)-1) / 2
		for i, ai := range idx {
			a := &arrows[ai]
			anchor, other := ends(a)
			theta := angle(anchor, other) + (float64(i)-mid)*fanStep
			set(a, anchor.add(polar(radius*sq, theta)))
		}
	}
}

// rankOrder puts unranked shapes after ranked ones.
func rankOrder(r int) int {
	if r <= 0 {
		return math.MaxInt32
	}
	return r
}
