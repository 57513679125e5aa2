package overlay

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/park285/boardsync/internal/extract"
	"github.com/park285/boardsync/internal/layout"
	"github.com/park285/boardsync/internal/page"
	"github.com/park285/boardsync/internal/perspective"
	"github.com/park285/boardsync/pkg/syncdto"
	"go.uber.org/zap"
)

// ErrNoBoardRect is returned when the board has no measurable box.
var ErrNoBoardRect = errors.New("board rect unavailable")

// Surface receives complete scenes. Draw replaces whatever was shown before.
type Surface interface {
	Draw(ctx context.Context, scene Scene) error
	Clear(ctx context.Context) error
}

// Renderer turns analysis batches into scenes. Each batch is a full redraw;
// batches are serialized.
type Renderer struct {
	mu       sync.Mutex
	page     page.Page
	registry *layout.Registry
	resolver *perspective.Resolver
	surfaces []Surface
	logger   *zap.Logger
	pending  chan []syncdto.Shape
}

func NewRenderer(p page.Page, registry *layout.Registry, resolver *perspective.Resolver, logger *zap.Logger, surfaces ...Surface) *Renderer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if resolver == nil {
		resolver = perspective.NewResolver(logger)
	}
	return &Renderer{
		page:     p,
		registry: registry,
		resolver: resolver,
		surfaces: surfaces,
		logger:   logger,
		pending:  make(chan []syncdto.Shape, 1),
	}
}

// Render draws shapes over the current board. Perspective is recomputed
// for every batch so a flip since the last sync cycle is honoured.
func (r *Renderer) Render(ctx context.Context, shapes []syncdto.Shape) (Scene, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, err := r.page.Snapshot(ctx)
	if err != nil {
		return Scene{}, fmt.Errorf("overlay snapshot: %w", err)
	}
	desc := r.registry.Detect(doc)
	if !desc.Known() {
		return Scene{}, layout.ErrLayoutMismatch
	}
	rect, ok := desc.BoardRect()
	if !ok {
		return Scene{}, ErrNoBoardRect
	}
	est := r.resolver.Compute(desc)
	scene := BuildScene(rect, extract.BoardSize(desc.Board), est, shapes)

	var errs []error
	for _, s := range r.surfaces {
		var err error
		if len(scene.Arrows) == 0 {
			err = s.Clear(ctx)
		} else {
			err = s.Draw(ctx, scene)
		}
		if err != nil {
			errs = append(errs, err)
		}
	}
	r.logger.Debug("overlay_rendered",
		zap.Int("shapes", len(shapes)),
		zap.Int("arrows", len(scene.Arrows)),
		zap.String("orientation", est.Orientation()),
	)
	return scene, errors.Join(errs...)
}

// Clear removes the overlay from every surface.
func (r *Renderer) Clear(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var errs []error
	for _, s := range r.surfaces {
		if err := s.Clear(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Submit queues a batch for Run without blocking. An older batch that has
// not been drawn yet is replaced.
func (r *Renderer) Submit(shapes []syncdto.Shape) {
	for {
		select {
		case r.pending <- shapes:
			return
		default:
		}
		select {
		case <-r.pending:
		default:
		}
	}
}

// Run draws submitted batches until ctx is done.
func (r *Renderer) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case shapes := <-r.pending:
			if _, err := r.Render(ctx, shapes); err != nil {
				r.logger.Warn("overlay_render_failed", zap.Error(err))
			}
		}
	}
}

// HandleInbound queues analysis messages and reports whether m was one.
func (r *Renderer) HandleInbound(m *syncdto.Inbound) bool {
	if !m.IsAnalysis() {
		return false
	}
	r.Submit(m.FinalShapes)
	return true
}
