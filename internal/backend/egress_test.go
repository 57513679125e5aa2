package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/park285/boardsync/pkg/syncdto"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

type recorded struct {
	path string
	body []byte
}

func newHTTPBackend(t *testing.T) (*httptest.Server, func() []recorded) {
	t.Helper()
	var mu sync.Mutex
	var got []recorded
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		mu.Lock()
		got = append(got, recorded{path: r.URL.Path, body: b})
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	return srv, func() []recorded {
		mu.Lock()
		defer mu.Unlock()
		return append([]recorded(nil), got...)
	}
}

func sampleUpdate() *syncdto.BoardUpdate {
	return &syncdto.BoardUpdate{Type: syncdto.TypeBoardUpdate, Data: syncdto.BoardData{
		GameID: "g-1",
		Pieces: map[string]string{"e1": "wK", "e8": "bK"},
	}}
}

func TestAutoEgressFallsBackWhenDisconnected(t *testing.T) {
	srv, calls := newHTTPBackend(t)
	ws := NewWebSocket("ws://127.0.0.1:1/ws", time.Hour, nil)
	defer ws.Close(context.Background())
	eg := NewEgress("auto", NewClient(srv.URL, WithRateLimit(0)), ws, nil)

	if err := eg.SendState(context.Background(), sampleUpdate()); err != nil {
		t.Fatalf("send state: %v", err)
	}
	if err := eg.SendNewGame(context.Background(), &syncdto.NewGame{Type: syncdto.TypeNewGame, GameID: "g-2"}); err != nil {
		t.Fatalf("send new game: %v", err)
	}
	got := calls()
	if len(got) != 2 || got[0].path != "/fen" || got[1].path != "/new-game" {
		t.Fatalf("calls = %+v", got)
	}
	var data syncdto.BoardData
	if err := json.Unmarshal(got[0].body, &data); err != nil || data.GameID != "g-1" {
		t.Fatalf("fallback body = %s (%v)", got[0].body, err)
	}
}

func TestFallbackRateLimitDrops(t *testing.T) {
	srv, calls := newHTTPBackend(t)
	eg := NewEgress("http", NewClient(srv.URL, WithRateLimit(0.001)), nil, nil)
	if err := eg.SendState(context.Background(), sampleUpdate()); err != nil {
		t.Fatalf("first send: %v", err)
	}
	err := eg.SendState(context.Background(), sampleUpdate())
	if !errors.Is(err, ErrTransmission) || !errors.Is(err, ErrRateLimited) {
		t.Fatalf("second send err = %v", err)
	}
	if n := len(calls()); n != 1 {
		t.Fatalf("requests = %d", n)
	}
}

func TestHTTPErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()
	err := NewEgress("http", NewClient(srv.URL, WithRateLimit(0)), nil, nil).SendState(context.Background(), sampleUpdate())
	if !errors.Is(err, ErrTransmission) || !strings.Contains(err.Error(), "status=500") {
		t.Fatalf("err = %v", err)
	}
}

func TestWSEgressDisconnected(t *testing.T) {
	ws := NewWebSocket("ws://127.0.0.1:1/ws", time.Hour, nil)
	defer ws.Close(context.Background())
	err := NewEgress("ws", nil, ws, nil).SendState(context.Background(), sampleUpdate())
	if !errors.Is(err, ErrChannelDisconnected) || !errors.Is(err, ErrTransmission) {
		t.Fatalf("err = %v", err)
	}
}

func TestWebSocketRoundTrip(t *testing.T) {
	received := make(chan map[string]any, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close(websocket.StatusNormalClosure, "")
		ctx := r.Context()
		var msg map[string]any
		if err := wsjson.Read(ctx, c, &msg); err != nil {
			return
		}
		received <- msg
		_ = c.Write(ctx, websocket.MessageText, []byte("not json"))
		_ = wsjson.Write(ctx, c, map[string]any{"type": "set_turn", "color": "b"})
		// hold the connection until the client goes away
		_, _, _ = c.Read(ctx)
	}))
	defer srv.Close()

	ws := NewWebSocket("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", 50*time.Millisecond, nil)
	inbound := make(chan *syncdto.Inbound, 1)
	ws.OnMessage(func(m *syncdto.Inbound) { inbound <- m })
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := ws.Connect(ctx); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if !ws.Connected() {
		t.Fatalf("state = %s", ws.State())
	}

	eg := NewEgress("auto", nil, ws, nil)
	if err := eg.SendState(ctx, sampleUpdate()); err != nil {
		t.Fatalf("send: %v", err)
	}
	select {
	case msg := <-received:
		if msg["type"] != "board_update" {
			t.Fatalf("server got %v", msg)
		}
	case <-ctx.Done():
		t.Fatalf("server never received the update")
	}
	select {
	case m := <-inbound:
		if m.Type != syncdto.TypeSetTurn || m.Color != "b" {
			t.Fatalf("inbound = %+v", m)
		}
	case <-ctx.Done():
		t.Fatalf("no inbound message")
	}

	if err := ws.Close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}
	if ws.State() != WSStateClosed {
		t.Fatalf("state after close = %s", ws.State())
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestWebSocketReconnectsAfterDrop(t *testing.T) {
	var (
		mu      sync.Mutex
		accepts int
		posts   []string
	)
	release := make(chan struct{})
	var releaseOnce sync.Once
	open := func() { releaseOnce.Do(func() { close(release) }) }
	received := make(chan map[string]any, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ws" {
			_, _ = io.Copy(io.Discard, r.Body)
			mu.Lock()
			posts = append(posts, r.URL.Path)
			mu.Unlock()
			w.WriteHeader(http.StatusOK)
			return
		}
		mu.Lock()
		accepts++
		n := accepts
		mu.Unlock()
		if n > 1 {
			// Keep the client in its reconnect gap until the test lets it through.
			<-release
		}
		c, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		if n == 1 {
			_ = c.Close(websocket.StatusGoingAway, "restart")
			return
		}
		defer c.Close(websocket.StatusNormalClosure, "")
		var msg map[string]any
		if err := wsjson.Read(r.Context(), c, &msg); err == nil {
			received <- msg
		}
		_, _, _ = c.Read(r.Context())
	}))
	defer srv.Close()
	defer open()

	ws := NewWebSocket("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", 20*time.Millisecond, nil)
	defer ws.Close(context.Background())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := ws.Connect(ctx); err != nil {
		t.Fatalf("connect: %v", err)
	}
	waitFor(t, "first drop", func() bool { return !ws.Connected() })
	waitFor(t, "redial", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return accepts == 2
	})

	eg := NewEgress("auto", NewClient(srv.URL, WithRateLimit(0)), ws, nil)
	if err := eg.SendState(ctx, sampleUpdate()); err != nil {
		t.Fatalf("send during gap: %v", err)
	}
	mu.Lock()
	gap := append([]string(nil), posts...)
	mu.Unlock()
	if len(gap) != 1 || gap[0] != "/fen" {
		t.Fatalf("fallback posts = %v", gap)
	}

	open()
	waitFor(t, "reconnect", ws.Connected)
	if err := eg.SendState(ctx, sampleUpdate()); err != nil {
		t.Fatalf("send after reconnect: %v", err)
	}
	select {
	case msg := <-received:
		if msg["type"] != "board_update" {
			t.Fatalf("server got %v", msg)
		}
	case <-ctx.Done():
		t.Fatalf("second connection never received the update")
	}
	mu.Lock()
	defer mu.Unlock()
	if accepts != 2 || len(posts) != 1 {
		t.Fatalf("accepts = %d posts = %v", accepts, posts)
	}
}

func TestWebSocketSurvivesRepeatedDrops(t *testing.T) {
	var (
		mu      sync.Mutex
		accepts int
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		mu.Lock()
		accepts++
		n := accepts
		mu.Unlock()
		if n <= 3 {
			_ = c.Close(websocket.StatusGoingAway, "flap")
			return
		}
		defer c.Close(websocket.StatusNormalClosure, "")
		_, _, _ = c.Read(r.Context())
	}))
	defer srv.Close()

	ws := NewWebSocket("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", 10*time.Millisecond, nil)
	defer ws.Close(context.Background())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := ws.Connect(ctx); err != nil {
		t.Fatalf("connect: %v", err)
	}
	waitFor(t, "stable connection", func() bool {
		mu.Lock()
		n := accepts
		mu.Unlock()
		return n == 4 && ws.Connected()
	})
}
