package page

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	cdppage "github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/park285/boardsync/internal/dom"
	"go.uber.org/zap"
)

const bindingName = "__boardsyncNotify"

// observerJS installs one MutationObserver on the document root and reports
// mutations inside any of the watched scopes through the binding. The
// data-rect stamp is excluded by the attribute filter.
const observerJS = `(() => {
  const scopes = %s;
  if (window.__boardsyncObserver) window.__boardsyncObserver.disconnect();
  const inScope = (n) => {
    const el = n && (n.nodeType === 1 ? n : n.parentElement);
    if (!el) return false;
    return scopes.some((s) => { try { return !!el.closest(s); } catch (e) { return false; } });
  };
  const start = () => {
    const obs = new MutationObserver((records) => {
      if (records.some((r) => inScope(r.target))) window.%s('mutation');
    });
    obs.observe(document.documentElement, {subtree: true, childList: true, characterData: true, attributes: true, attributeFilter: ['class', 'style']});
    window.__boardsyncObserver = obs;
    window.%s('ready');
  };
  if (document.documentElement) start(); else document.addEventListener('DOMContentLoaded', start);
})()`

// snapshotJS clones the document and stamps each element's page box onto
// the clone so the live DOM is never written to.
const snapshotJS = `(() => {
  const live = Array.from(document.documentElement.querySelectorAll('*'));
  const clone = document.documentElement.cloneNode(true);
  const copies = clone.querySelectorAll('*');
  const sx = window.scrollX, sy = window.scrollY;
  const round = (v) => Math.round(v * 100) / 100;
  for (let i = 0; i < live.length && i < copies.length; i++) {
    const r = live[i].getBoundingClientRect();
    if (r.width === 0 && r.height === 0) continue;
    copies[i].setAttribute('%s', [r.left + sx, r.top + sy, r.width, r.height].map(round).join(','));
  }
  return {html: '<!DOCTYPE html>' + clone.outerHTML, url: location.href};
})()`

// Chrome is a live browser tab driven over the DevTools protocol.
type Chrome struct {
	ctx         context.Context
	cancelTab   context.CancelFunc
	cancelAlloc context.CancelFunc
	logger      *zap.Logger

	scopesMu  sync.Mutex
	scopes    []string
	scriptID  cdppage.ScriptIdentifier
	subs      subscribers
	installMu sync.Mutex
}

var (
	_ Page         = (*Chrome)(nil)
	_ ScriptRunner = (*Chrome)(nil)
)

// NewChrome attaches to a running browser when wsURL is set, otherwise it
// launches a local one. pageURL, when set, is opened in the new tab.
func NewChrome(ctx context.Context, wsURL, pageURL string, logger *zap.Logger) (*Chrome, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var (
		allocCtx    context.Context
		cancelAlloc context.CancelFunc
	)
	if strings.TrimSpace(wsURL) != "" {
		allocCtx, cancelAlloc = chromedp.NewRemoteAllocator(ctx, wsURL)
	} else {
		allocCtx, cancelAlloc = chromedp.NewExecAllocator(ctx, chromedp.DefaultExecAllocatorOptions[:]...)
	}
	tabCtx, cancelTab := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(format string, args ...any) {
		logger.Debug("chromedp", zap.String("msg", fmt.Sprintf(format, args...)))
	}))

	c := &Chrome{ctx: tabCtx, cancelTab: cancelTab, cancelAlloc: cancelAlloc, logger: logger}
	chromedp.ListenTarget(tabCtx, func(ev any) {
		e, ok := ev.(*runtime.EventBindingCalled)
		if !ok || e.Name != bindingName {
			return
		}
		c.subs.notify()
	})

	tasks := chromedp.Tasks{
		chromedp.ActionFunc(func(ctx context.Context) error {
			return runtime.AddBinding(bindingName).Do(ctx)
		}),
	}
	if strings.TrimSpace(pageURL) != "" {
		tasks = append(tasks, chromedp.Navigate(pageURL))
	}
	if err := chromedp.Run(tabCtx, tasks); err != nil {
		c.Close()
		return nil, fmt.Errorf("start chrome tab: %w", err)
	}
	return c, nil
}

func (c *Chrome) Close() {
	c.cancelTab()
	c.cancelAlloc()
}

// Subscribe adds scopes to the observer and registers fn. The observer is
// reinstalled on every navigation.
func (c *Chrome) Subscribe(scopes []string, fn func()) func() {
	c.scopesMu.Lock()
	for _, s := range scopes {
		s = strings.TrimSpace(s)
		if s != "" && !contains(c.scopes, s) {
			c.scopes = append(c.scopes, s)
		}
	}
	all := append([]string(nil), c.scopes...)
	c.scopesMu.Unlock()

	if err := c.installObserver(all); err != nil {
		c.logger.Warn("chrome_observer_install_failed", zap.Error(err))
	}
	return c.subs.add(fn)
}

func (c *Chrome) installObserver(scopes []string) error {
	c.installMu.Lock()
	defer c.installMu.Unlock()
	raw, err := json.Marshal(scopes)
	if err != nil {
		return err
	}
	js := fmt.Sprintf(observerJS, raw, bindingName, bindingName)
	return chromedp.Run(c.ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		if c.scriptID != "" {
			if err := cdppage.RemoveScriptToEvaluateOnNewDocument(c.scriptID).Do(ctx); err != nil {
				c.logger.Debug("chrome_observer_remove_failed", zap.Error(err))
			}
		}
		id, err := cdppage.AddScriptToEvaluateOnNewDocument(js).Do(ctx)
		if err != nil {
			return err
		}
		c.scriptID = id
		return chromedp.Evaluate(js, nil).Do(ctx)
	}))
}

type snapshotResult struct {
	HTML string `json:"html"`
	URL  string `json:"url"`
}

func (c *Chrome) Snapshot(ctx context.Context) (*dom.Document, error) {
	var res snapshotResult
	js := fmt.Sprintf(snapshotJS, dom.RectAttr)
	if err := c.run(ctx, chromedp.Evaluate(js, &res)); err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}
	return dom.ParseString(res.HTML, res.URL)
}

// RunScript evaluates js in the page, discarding the result.
func (c *Chrome) RunScript(ctx context.Context, js string) error {
	return c.run(ctx, chromedp.Evaluate(js, nil))
}

// run executes action on the tab while honouring the caller's ctx.
func (c *Chrome) run(ctx context.Context, action chromedp.Action) error {
	done := make(chan error, 1)
	go func() { done <- chromedp.Run(c.ctx, action) }()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		return err
	}
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
