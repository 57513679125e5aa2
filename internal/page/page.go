// Package page provides snapshots of the host page and change
// notifications for parts of it.
package page

import (
	"context"
	"sync"

	"github.com/park285/boardsync/internal/dom"
)

// Page is the external visual tree.
type Page interface {
	// Snapshot returns the latest state of the page.
	Snapshot(ctx context.Context) (*dom.Document, error)
	// Subscribe registers fn for changes inside any node matching scopes.
	// fn may be called from any goroutine and must not block.
	Subscribe(scopes []string, fn func()) (unsubscribe func())
}

// ScriptRunner is implemented by pages that can execute script in the host
// document.
type ScriptRunner interface {
	RunScript(ctx context.Context, js string) error
}

// subscribers is the notification fan-out shared by implementations.
type subscribers struct {
	mu   sync.Mutex
	next int
	fns  map[int]func()
}

func (s *subscribers) add(fn func()) func() {
	s.mu.Lock()
	if s.fns == nil {
		s.fns = map[int]func(){}
	}
	s.next++
	id := s.next
	s.fns[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.fns, id)
		s.mu.Unlock()
	}
}

func (s *subscribers) notify() {
	s.mu.Lock()
	fns := make([]func(), 0, len(s.fns))
	for _, fn := range s.fns {
		fns = append(fns, fn)
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

func (s *subscribers) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.fns)
}
