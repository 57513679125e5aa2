package page

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"time"

	"github.com/park285/boardsync/internal/dom"
	"go.uber.org/zap"
)

// File serves snapshots from an HTML file on disk and notifies when its
// modification time or size changes. Useful with a browser extension or
// script that dumps the page periodically.
type File struct {
	path     string
	url      string
	interval time.Duration
	logger   *zap.Logger
	subs     subscribers
}

func NewFile(path, url string, interval time.Duration, logger *zap.Logger) *File {
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &File{path: path, url: url, interval: interval, logger: logger}
}

func (f *File) Snapshot(ctx context.Context) (*dom.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("read page file: %w", err)
	}
	return dom.Parse(bytes.NewReader(raw), f.url)
}

func (f *File) Subscribe(_ []string, fn func()) func() { return f.subs.add(fn) }

// Run polls until ctx is done.
func (f *File) Run(ctx context.Context) error {
	var lastMod time.Time
	var lastSize int64 = -1
	t := time.NewTicker(f.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
		info, err := os.Stat(f.path)
		if err != nil {
			f.logger.Debug("page_file_stat_failed", zap.String("path", f.path), zap.Error(err))
			continue
		}
		if info.ModTime().Equal(lastMod) && info.Size() == lastSize {
			continue
		}
		lastMod, lastSize = info.ModTime(), info.Size()
		f.subs.notify()
	}
}
