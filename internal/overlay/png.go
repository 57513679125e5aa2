package overlay

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	imagedraw "image/draw"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Rasterize draws the scene into an RGBA image the size of the board.
func Rasterize(scene Scene) (*image.RGBA, error) {
	w := int(math.Round(scene.Board.W))
	h := int(math.Round(scene.Board.H))
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("empty board rect %vx%v", scene.Board.W, scene.Board.H)
	}
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	if len(scene.Arrows) > 0 {
		icon, err := oksvg.ReadIconStream(strings.NewReader(SVG(scene, false)))
		if err != nil {
			return nil, fmt.Errorf("parse overlay svg: %w", err)
		}
		icon.SetTarget(0, 0, float64(w), float64(h))
		scanner := rasterx.NewScannerGV(w, h, img, img.Bounds())
		raster := rasterx.NewDasher(w, h, scanner)
		icon.Draw(raster, 1.0)
	}
	drawLabels(img, scene)
	return img, nil
}

func drawLabels(img *image.RGBA, scene Scene) {
	drawer := &font.Drawer{Dst: img, Face: basicfont.Face7x13}
	metrics := drawer.Face.Metrics()
	for _, a := range scene.Arrows {
		text := strings.TrimSpace(a.Label)
		if text == "" {
			continue
		}
		width := drawer.MeasureString(text).Round()
		height := metrics.Ascent.Ceil() + metrics.Descent.Ceil()
		cx, cy := int(math.Round(a.LabelPos.X)), int(math.Round(a.LabelPos.Y))
		box := image.Rect(cx-width/2-3, cy-height/2-2, cx+(width+1)/2+3, cy+(height+1)/2+2).Intersect(img.Bounds())
		if box.Empty() {
			continue
		}
		imagedraw.Draw(img, box, image.NewUniform(color.RGBA{255, 255, 255, 220}), image.Point{}, imagedraw.Over)
		baseline := box.Min.Y + (box.Dy()+metrics.Ascent.Ceil()-metrics.Descent.Ceil())/2
		drawer.Src = image.NewUniform(parseHex(a.Color))
		drawer.Dot = fixed.P(box.Min.X+(box.Dx()-width)/2, baseline)
		drawer.DrawString(text)
	}
}

// parseHex accepts #RGB and #RRGGBB; anything else is black.
func parseHex(s string) color.RGBA {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) == 3 {
		s = string([]byte{s[0], s[0], s[1], s[1], s[2], s[2]})
	}
	if len(s) != 6 {
		return color.RGBA{A: 255}
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return color.RGBA{A: 255}
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 255}
}

// PNGSurface renders scenes to PNG bytes, optionally persisted to a file.
type PNGSurface struct {
	mu   sync.Mutex
	path string
	last []byte
}

func NewPNGSurface(path string) *PNGSurface {
	return &PNGSurface{path: strings.TrimSpace(path)}
}

func (s *PNGSurface) Draw(_ context.Context, scene Scene) error {
	img, err := Rasterize(scene)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return fmt.Errorf("encode overlay png: %w", err)
	}
	return s.store(buf.Bytes())
}

// Clear writes a fully transparent image of the last known size, or drops
// the stored bytes when nothing was drawn yet.
func (s *PNGSurface) Clear(ctx context.Context) error {
	s.mu.Lock()
	prev := s.last
	s.mu.Unlock()
	if prev == nil {
		return nil
	}
	cfg, err := png.DecodeConfig(bytes.NewReader(prev))
	if err != nil {
		return s.store(nil)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, cfg.Width, cfg.Height))); err != nil {
		return fmt.Errorf("encode overlay png: %w", err)
	}
	return s.store(buf.Bytes())
}

// Last returns the most recently drawn PNG.
func (s *PNGSurface) Last() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.last...)
}

func (s *PNGSurface) store(data []byte) error {
	s.mu.Lock()
	s.last = data
	s.mu.Unlock()
	if s.path == "" || data == nil {
		return nil
	}
	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create overlay dir: %w", err)
		}
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write overlay png: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace overlay png: %w", err)
	}
	return nil
}
