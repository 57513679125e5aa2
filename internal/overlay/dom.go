package overlay

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/park285/boardsync/internal/page"
)

// OverlayID is the id of the element mounted into the host page. It lives
// under document.body, outside every observed scope.
const OverlayID = "boardsync-overlay"

const mountJS = `(function(id, markup, x, y, w, h) {
  var el = document.getElementById(id);
  if (!el) {
    el = document.createElement('div');
    el.id = id;
    el.style.position = 'absolute';
    el.style.pointerEvents = 'none';
    el.style.zIndex = '2147483000';
    document.body.appendChild(el);
  }
  el.style.left = x + 'px';
  el.style.top = y + 'px';
  el.style.width = w + 'px';
  el.style.height = h + 'px';
  el.innerHTML = markup;
})(%s, %s, %g, %g, %g, %g)`

const clearJS = `(function(id) {
  var el = document.getElementById(id);
  if (el) { el.innerHTML = ''; }
})(%s)`

// DOMSurface mounts the scene as inline SVG positioned over the board.
type DOMSurface struct {
	runner page.ScriptRunner
	id     string
}

func NewDOMSurface(runner page.ScriptRunner) *DOMSurface {
	return &DOMSurface{runner: runner, id: OverlayID}
}

func (s *DOMSurface) Draw(ctx context.Context, scene Scene) error {
	id, _ := json.Marshal(s.id)
	markup, err := json.Marshal(SVG(scene, true))
	if err != nil {
		return fmt.Errorf("encode overlay markup: %w", err)
	}
	r := scene.Board
	js := fmt.Sprintf(mountJS, id, markup, r.X, r.Y, r.W, r.H)
	if err := s.runner.RunScript(ctx, js); err != nil {
		return fmt.Errorf("mount overlay: %w", err)
	}
	return nil
}

func (s *DOMSurface) Clear(ctx context.Context) error {
	id, _ := json.Marshal(s.id)
	if err := s.runner.RunScript(ctx, fmt.Sprintf(clearJS, id)); err != nil {
		return fmt.Errorf("clear overlay: %w", err)
	}
	return nil
}
