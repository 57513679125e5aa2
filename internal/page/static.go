package page

import (
	"context"
	"sync"

	"github.com/park285/boardsync/internal/dom"
)

// Static is an in-memory page. Every Set notifies all subscribers,
// regardless of scope.
type Static struct {
	mu   sync.RWMutex
	html string
	url  string
	subs subscribers
}

func NewStatic(html, url string) *Static {
	return &Static{html: html, url: url}
}

func (s *Static) Snapshot(ctx context.Context) (*dom.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	html, url := s.html, s.url
	s.mu.RUnlock()
	return dom.ParseString(html, url)
}

func (s *Static) Subscribe(_ []string, fn func()) func() { return s.subs.add(fn) }

// Set replaces the markup and notifies.
func (s *Static) Set(html string) {
	s.mu.Lock()
	s.html = html
	s.mu.Unlock()
	s.subs.notify()
}

// Navigate replaces markup and URL together and notifies.
func (s *Static) Navigate(url, html string) {
	s.mu.Lock()
	s.url, s.html = url, html
	s.mu.Unlock()
	s.subs.notify()
}

// Subscribers reports the number of live subscriptions.
func (s *Static) Subscribers() int { return s.subs.count() }
