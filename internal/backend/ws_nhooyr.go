package backend

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/park285/boardsync/pkg/syncdto"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

type callbackEntry struct {
	id       int
	callback MessageCallback
}

type stateCallbackEntry struct {
	id       int
	callback StateCallback
}

// WebSocket is the streaming channel to the backend. After any disconnect
// it redials on a fixed delay until Close.
type WebSocket struct {
	wsURL  string
	logger *zap.Logger

	conn   *websocket.Conn
	state  WebSocketState
	stateM sync.RWMutex
	writeM sync.Mutex

	msgCbs   []callbackEntry
	stateCbs []stateCallbackEntry
	nextCbID int
	cbM      sync.RWMutex

	reconnectDelay time.Duration
	reconnecting   atomic.Bool
	pingInterval   time.Duration

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	rootCtx    context.Context
	rootCancel context.CancelFunc
}

var _ WSClient = (*WebSocket)(nil)

func NewWebSocket(wsURL string, reconnectDelay time.Duration, logger *zap.Logger) *WebSocket {
	if logger == nil {
		logger = zap.NewNop()
	}
	if reconnectDelay <= 0 {
		reconnectDelay = 3 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &WebSocket{
		wsURL:          wsURL,
		logger:         logger,
		state:          WSStateDisconnected,
		reconnectDelay: reconnectDelay,
		pingInterval:   30 * time.Second,
		stopCh:         make(chan struct{}),
		rootCtx:        ctx,
		rootCancel:     cancel,
	}
}

// Connect dials once. On failure the reconnect loop is started and the
// dial error returned.
func (ws *WebSocket) Connect(ctx context.Context) error {
	if ws.isStopping() {
		return ErrChannelDisconnected
	}
	ws.stateM.RLock()
	st := ws.state
	ws.stateM.RUnlock()
	if st == WSStateConnected || st == WSStateConnecting {
		return nil
	}
	ws.setState(WSStateConnecting)
	if err := ws.dial(ctx); err != nil {
		ws.setState(WSStateDisconnected)
		ws.scheduleReconnect()
		return err
	}
	return nil
}

func (ws *WebSocket) dial(ctx context.Context) error {
	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(dialCtx, ws.wsURL, &websocket.DialOptions{
		CompressionMode: websocket.CompressionNoContextTakeover,
	})
	if err != nil {
		return err
	}
	conn.SetReadLimit(1 << 20)

	ws.stateM.Lock()
	if ws.isStopping() {
		ws.stateM.Unlock()
		_ = conn.Close(websocket.StatusNormalClosure, "close")
		return ErrChannelDisconnected
	}
	ws.conn = conn
	ws.stateM.Unlock()
	ws.setState(WSStateConnected)
	ws.logger.Info("ws_connected", zap.String("url", ws.wsURL))

	ws.wg.Add(2)
	go ws.listen(conn)
	go ws.pingLoop(conn)
	return nil
}

func (ws *WebSocket) listen(conn *websocket.Conn) {
	defer ws.wg.Done()
	for {
		typ, data, err := conn.Read(ws.rootCtx)
		if err != nil {
			if ws.isStopping() {
				return
			}
			ws.logger.Warn("ws_read_failed", zap.Error(err))
			ws.dropConn(conn, "reconnect")
			return
		}
		if typ != websocket.MessageText {
			continue
		}
		// decoded here rather than with wsjson.Read so a bad frame does not
		// close the connection
		var msg syncdto.Inbound
		if err := json.Unmarshal(data, &msg); err != nil {
			ws.logger.Warn("ws_invalid_json", zap.Error(err), zap.Int("bytes", len(data)))
			continue
		}

		ws.cbM.RLock()
		callbacks := make([]callbackEntry, len(ws.msgCbs))
		copy(callbacks, ws.msgCbs)
		ws.cbM.RUnlock()
		for _, entry := range callbacks {
			if entry.callback != nil {
				entry.callback(&msg)
			}
		}
	}
}

func (ws *WebSocket) pingLoop(conn *websocket.Conn) {
	defer ws.wg.Done()
	t := time.NewTicker(ws.pingInterval)
	defer t.Stop()
	failures := 0
	for {
		select {
		case <-ws.stopCh:
			return
		case <-t.C:
			if ws.current() != conn {
				return
			}
			ctx, cancel := context.WithTimeout(ws.rootCtx, 3*time.Second)
			err := conn.Ping(ctx)
			cancel()
			if err == nil {
				failures = 0
				continue
			}
			failures++
			if failures >= 2 {
				ws.logger.Warn("ws_ping_failed", zap.Error(err))
				ws.dropConn(conn, "ping failure")
				return
			}
		}
	}
}

// dropConn closes conn if it is still current and starts reconnecting.
func (ws *WebSocket) dropConn(conn *websocket.Conn, reason string) {
	ws.stateM.Lock()
	if ws.conn != conn {
		ws.stateM.Unlock()
		return
	}
	ws.conn = nil
	ws.stateM.Unlock()
	_ = conn.Close(websocket.StatusGoingAway, reason)
	ws.setState(WSStateDisconnected)
	ws.scheduleReconnect()
}

func (ws *WebSocket) scheduleReconnect() {
	if ws.isStopping() || !ws.reconnecting.CompareAndSwap(false, true) {
		return
	}
	ws.setState(WSStateReconnecting)

	ws.wg.Add(1)
	go func() {
		defer ws.wg.Done()
		for attempt := 1; ; attempt++ {
			select {
			case <-ws.stopCh:
				ws.reconnecting.Store(false)
				return
			case <-time.After(ws.reconnectDelay):
			}
			if err := ws.dial(ws.rootCtx); err != nil {
				ws.logger.Debug("ws_reconnect_failed", zap.Int("attempt", attempt), zap.Error(err))
				continue
			}
			ws.reconnecting.Store(false)
			// A drop between dial and the store above could not start its
			// own loop, so this one keeps going.
			if ws.Connected() || ws.isStopping() || !ws.reconnecting.CompareAndSwap(false, true) {
				return
			}
			ws.setState(WSStateReconnecting)
		}
	}()
}

// Send writes one JSON frame. It fails fast with ErrChannelDisconnected
// when no connection is up.
func (ws *WebSocket) Send(ctx context.Context, v any) error {
	conn := ws.current()
	if conn == nil || !ws.Connected() {
		return ErrChannelDisconnected
	}
	dctx := ctx
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		dctx, cancel = context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
	}
	ws.writeM.Lock()
	defer ws.writeM.Unlock()
	return wsjson.Write(dctx, conn, v)
}

func (ws *WebSocket) Connected() bool {
	ws.stateM.RLock()
	defer ws.stateM.RUnlock()
	return ws.state == WSStateConnected && ws.conn != nil
}

func (ws *WebSocket) State() WebSocketState {
	ws.stateM.RLock()
	defer ws.stateM.RUnlock()
	return ws.state
}

func (ws *WebSocket) current() *websocket.Conn {
	ws.stateM.RLock()
	defer ws.stateM.RUnlock()
	return ws.conn
}

func (ws *WebSocket) OnMessage(cb MessageCallback) int {
	ws.cbM.Lock()
	defer ws.cbM.Unlock()
	ws.nextCbID++
	ws.msgCbs = append(ws.msgCbs, callbackEntry{id: ws.nextCbID, callback: cb})
	return ws.nextCbID
}

func (ws *WebSocket) RemoveMessageCallback(id int) {
	ws.cbM.Lock()
	defer ws.cbM.Unlock()
	for i, cb := range ws.msgCbs {
		if cb.id == id {
			ws.msgCbs = append(ws.msgCbs[:i], ws.msgCbs[i+1:]...)
			break
		}
	}
}

func (ws *WebSocket) OnStateChange(cb StateCallback) int {
	ws.cbM.Lock()
	defer ws.cbM.Unlock()
	ws.nextCbID++
	ws.stateCbs = append(ws.stateCbs, stateCallbackEntry{id: ws.nextCbID, callback: cb})
	return ws.nextCbID
}

func (ws *WebSocket) RemoveStateCallback(id int) {
	ws.cbM.Lock()
	defer ws.cbM.Unlock()
	for i, cb := range ws.stateCbs {
		if cb.id == id {
			ws.stateCbs = append(ws.stateCbs[:i], ws.stateCbs[i+1:]...)
			break
		}
	}
}

func (ws *WebSocket) setState(state WebSocketState) {
	ws.stateM.Lock()
	if ws.state == WSStateClosed {
		ws.stateM.Unlock()
		return
	}
	ws.state = state
	ws.stateM.Unlock()

	ws.cbM.RLock()
	callbacks := make([]stateCallbackEntry, len(ws.stateCbs))
	copy(callbacks, ws.stateCbs)
	ws.cbM.RUnlock()
	for _, entry := range callbacks {
		if entry.callback != nil {
			entry.callback(state)
		}
	}
}

func (ws *WebSocket) Close(ctx context.Context) error {
	ws.stopOnce.Do(func() { close(ws.stopCh) })
	ws.stateM.Lock()
	conn := ws.conn
	ws.conn = nil
	ws.stateM.Unlock()
	ws.setState(WSStateClosed)
	if conn != nil {
		_ = conn.Close(websocket.StatusNormalClosure, "close")
	}
	ws.rootCancel()

	done := make(chan struct{})
	go func() {
		ws.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

func (ws *WebSocket) isStopping() bool {
	select {
	case <-ws.stopCh:
		return true
	default:
		return false
	}
}
