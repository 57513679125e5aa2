package dom

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

// Document is one parsed snapshot of the host page.
type Document struct {
	Root *html.Node
	URL  string
}

func Parse(r io.Reader, pageURL string) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return &Document{Root: root, URL: strings.TrimSpace(pageURL)}, nil
}

func ParseString(s, pageURL string) (*Document, error) {
	return Parse(strings.NewReader(s), pageURL)
}

var (
	selCache   = map[string]cascadia.Selector{}
	selCacheMu sync.RWMutex
)

func compile(sel string) (cascadia.Selector, error) {
	selCacheMu.RLock()
	if s, ok := selCache[sel]; ok {
		selCacheMu.RUnlock()
		return s, nil
	}
	selCacheMu.RUnlock()

	s, err := cascadia.Compile(sel)
	if err != nil {
		return nil, fmt.Errorf("compile selector %q: %w", sel, err)
	}
	selCacheMu.Lock()
	selCache[sel] = s
	selCacheMu.Unlock()
	return s, nil
}

// Query returns the first node under n matching any of the comma separated
// selector list, or nil. Invalid selectors never match.
func Query(n *html.Node, sel string) *html.Node {
	if n == nil || strings.TrimSpace(sel) == "" {
		return nil
	}
	s, err := compile(sel)
	if err != nil {
		return nil
	}
	return s.MatchFirst(n)
}

func QueryAll(n *html.Node, sel string) []*html.Node {
	if n == nil || strings.TrimSpace(sel) == "" {
		return nil
	}
	s, err := compile(sel)
	if err != nil {
		return nil
	}
	return s.MatchAll(n)
}

// Matches reports whether n itself satisfies sel.
func Matches(n *html.Node, sel string) bool {
	if n == nil || strings.TrimSpace(sel) == "" {
		return false
	}
	s, err := compile(sel)
	if err != nil {
		return false
	}
	return s.Match(n)
}

// Closest walks up from n (inclusive) to the first ancestor matching sel.
func Closest(n *html.Node, sel string) *html.Node {
	for cur := n; cur != nil; cur = cur.Parent {
		if cur.Type == html.ElementNode && Matches(cur, sel) {
			return cur
		}
	}
	return nil
}

func Attr(n *html.Node, key string) (string, bool) {
	if n == nil {
		return "", false
	}
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val, true
		}
	}
	return "", false
}

func Classes(n *html.Node) []string {
	v, _ := Attr(n, "class")
	return strings.Fields(v)
}

func HasClass(n *html.Node, class string) bool {
	class = strings.TrimSpace(class)
	if class == "" {
		return false
	}
	for _, c := range Classes(n) {
		if c == class {
			return true
		}
	}
	return false
}

// Text returns the concatenated, whitespace-collapsed text content of n.
func Text(n *html.Node) string {
	if n == nil {
		return ""
	}
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(c *html.Node) {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
			b.WriteByte(' ')
		}
		for ch := c.FirstChild; ch != nil; ch = ch.NextSibling {
			walk(ch)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(b.String()), " ")
}

// Tag returns the lowercase element name, or "" for non-elements.
func Tag(n *html.Node) string {
	if n == nil || n.Type != html.ElementNode {
		return ""
	}
	return strings.ToLower(n.Data)
}
