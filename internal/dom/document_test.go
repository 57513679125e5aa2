package dom

import "testing"

const sample = `<html><body>
<div class="wrap outer"><div class="inner" style="left: 10px; top: 20px; width: 30px; height: 40px">
<span class="a"> hello
  world </span><piece class="white pawn" style="transform: translate(50px, 350px);"></piece>
</div></div>
<div id="stamped" data-rect="1.5,2,100,200"></div>
<svg><text x="3" y="91.5">1</text></svg>
</body></html>`

func TestQueryAndText(t *testing.T) {
	doc, err := ParseString(sample, " https://example.test/x ")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if doc.URL != "https://example.test/x" {
		t.Fatalf("url = %q", doc.URL)
	}
	span := Query(doc.Root, "span.a")
	if span == nil {
		t.Fatalf("span not found")
	}
	if got := Text(span); got != "hello world" {
		t.Fatalf("text = %q", got)
	}
	if c := Closest(span, ".wrap"); c == nil || !HasClass(c, "outer") {
		t.Fatalf("closest failed")
	}
	if Query(doc.Root, "[[invalid") != nil {
		t.Fatalf("invalid selector must not match")
	}
	if n := len(QueryAll(doc.Root, "div")); n != 3 {
		t.Fatalf("divs = %d", n)
	}
}

func TestRectOf(t *testing.T) {
	doc, _ := ParseString(sample, "")
	cases := []struct {
		sel  string
		want Rect
	}{
		{".inner", Rect{X: 10, Y: 20, W: 30, H: 40}},
		{"piece", Rect{X: 50, Y: 350}},
		{"#stamped", Rect{X: 1.5, Y: 2, W: 100, H: 200}},
		{"text", Rect{X: 3, Y: 91.5}},
	}
	for _, c := range cases {
		n := Query(doc.Root, c.sel)
		got, ok := RectOf(n)
		if !ok || got != c.want {
			t.Fatalf("%s: rect=%+v ok=%v want %+v", c.sel, got, ok, c.want)
		}
	}
	if _, ok := RectOf(Query(doc.Root, "span")); ok {
		t.Fatalf("span has no geometry")
	}
	if Style(Query(doc.Root, ".inner"), "WIDTH") != "30px" {
		t.Fatalf("style lookup failed")
	}
}
