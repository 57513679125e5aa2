package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/park285/boardsync/internal/dom"
	"github.com/park285/boardsync/internal/extract"
	"github.com/park285/boardsync/internal/layout"
	"github.com/park285/boardsync/internal/overlay"
	"github.com/park285/boardsync/internal/page"
	"github.com/park285/boardsync/internal/pagefixture"
	"github.com/park285/boardsync/internal/perspective"
	"github.com/park285/boardsync/pkg/syncdto"
)

func main() {
	htmlPath := flag.String("html", "", "saved page to inspect")
	pageURL := flag.String("url", "", "page URL (game id source)")
	layoutsFile := flag.String("layouts", os.Getenv("LAYOUTS_FILE"), "YAML layout overrides")
	demo := flag.String("demo", "", "render a built-in page instead: chesscom or lichess")
	shapesPath := flag.String("shapes", "", "analysis JSON (finalShapes message or shape array) to draw")
	pngOut := flag.String("png", "overlay.png", "PNG output for -shapes")
	flag.Parse()

	raw, err := loadPage(*htmlPath, *demo)
	if err != nil {
		log.Fatal(err)
	}
	doc, err := dom.Parse(bytes.NewReader(raw), *pageURL)
	if err != nil {
		log.Fatalf("parse error: %v", err)
	}

	patterns, err := layout.LoadOverrides(*layoutsFile, layout.DefaultPatterns())
	if err != nil {
		log.Fatalf("layouts error: %v", err)
	}
	registry := layout.DefaultRegistry(patterns, nil)
	desc := registry.Detect(doc)
	fmt.Printf("layout:      %s\n", desc.Kind)
	if !desc.Known() {
		os.Exit(1)
	}
	est := perspective.NewResolver(nil).Compute(desc)
	fmt.Printf("perspective: %s (%s)\n", est.Orientation(), est.Source)
	if r, ok := desc.BoardRect(); ok {
		fmt.Printf("board rect:  %gx%g at %g,%g\n", r.W, r.H, r.X, r.Y)
	}

	x := extract.New(nil)
	moves := x.MoveList(desc)
	st, err := x.Extract(desc, est)
	if err != nil {
		fmt.Printf("extract:     %v\n", err)
	} else {
		fmt.Printf("fen:         %s\n", st.FEN())
	}
	fmt.Printf("game id:     %s\n", x.GameID(desc))
	fmt.Printf("variant:     %s\n", x.Variant(desc))
	fmt.Printf("moves (%d):  %s\n", len(moves), strings.Join(moves, " "))

	if *shapesPath == "" {
		return
	}
	shapes, err := loadShapes(*shapesPath)
	if err != nil {
		log.Fatalf("shapes error: %v", err)
	}
	surface := overlay.NewPNGSurface(*pngOut)
	renderer := overlay.NewRenderer(page.NewStatic(string(raw), *pageURL), registry, nil, nil, surface)
	scene, err := renderer.Render(context.Background(), shapes)
	if err != nil {
		log.Fatalf("render error: %v", err)
	}
	fmt.Printf("overlay:     %d arrows -> %s\n", len(scene.Arrows), *pngOut)
}

func loadPage(path, demo string) ([]byte, error) {
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read page: %w", err)
		}
		return raw, nil
	}
	opts := pagefixture.Options{
		Pieces:   pagefixture.StartPieces(),
		Moves:    []string{"e4", "e5", "Nf3"},
		Selected: 2,
	}
	switch strings.ToLower(demo) {
	case "chesscom":
		return []byte(pagefixture.ChessCom(opts)), nil
	case "lichess":
		return []byte(pagefixture.Lichess(opts)), nil
	default:
		return nil, fmt.Errorf("either -html or -demo chesscom|lichess is required")
	}
}

// loadShapes accepts either a bare shape array or an analysis message.
func loadShapes(path string) ([]syncdto.Shape, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	raw = bytes.TrimSpace(raw)
	if bytes.HasPrefix(raw, []byte("[")) {
		var shapes []syncdto.Shape
		if err := json.Unmarshal(raw, &shapes); err != nil {
			return nil, err
		}
		return shapes, nil
	}
	var msg syncdto.Inbound
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, err
	}
	return msg.FinalShapes, nil
}
