package backend

import (
	"context"
	"errors"
	"fmt"

	"github.com/park285/boardsync/pkg/syncdto"
	"go.uber.org/zap"
)

// Egress delivers outbound messages over HTTP or WebSocket.
type Egress interface {
	SendState(ctx context.Context, msg *syncdto.BoardUpdate) error
	SendNewGame(ctx context.Context, msg *syncdto.NewGame) error
}

type transportMode string

const (
	transportHTTP transportMode = "http"
	transportWS   transportMode = "ws"
	transportAuto transportMode = "auto"
)

// NewEgress creates an Egress based on mode. When mode is auto, WS is
// preferred when connected; otherwise or on WS failure the message goes out
// once over HTTP.
func NewEgress(mode string, c *Client, ws WSClient, logger *zap.Logger) Egress {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch transportMode(mode) {
	case transportWS:
		return &wsEgress{ws: ws}
	case transportHTTP:
		return &httpEgress{c: c}
	default:
		return &autoEgress{ws: &wsEgress{ws: ws}, http: &httpEgress{c: c}, logger: logger}
	}
}

func transmissionErr(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrTransmission, err)
}

// httpEgress delegates to Client.
type httpEgress struct{ c *Client }

func (h *httpEgress) SendState(ctx context.Context, msg *syncdto.BoardUpdate) error {
	if h == nil || h.c == nil {
		return transmissionErr(errors.New("http egress not available"))
	}
	return transmissionErr(h.c.PostBoard(ctx, &msg.Data))
}

func (h *httpEgress) SendNewGame(ctx context.Context, msg *syncdto.NewGame) error {
	if h == nil || h.c == nil {
		return transmissionErr(errors.New("http egress not available"))
	}
	return transmissionErr(h.c.PostNewGame(ctx, msg))
}

type wsEgress struct{ ws WSClient }

func (w *wsEgress) available() bool { return w != nil && w.ws != nil && w.ws.Connected() }

func (w *wsEgress) SendState(ctx context.Context, msg *syncdto.BoardUpdate) error {
	if !w.available() {
		return transmissionErr(ErrChannelDisconnected)
	}
	return transmissionErr(w.ws.Send(ctx, msg))
}

func (w *wsEgress) SendNewGame(ctx context.Context, msg *syncdto.NewGame) error {
	if !w.available() {
		return transmissionErr(ErrChannelDisconnected)
	}
	return transmissionErr(w.ws.Send(ctx, msg))
}

// autoEgress prefers WS if available, with single fallback to HTTP.
type autoEgress struct {
	ws     *wsEgress
	http   *httpEgress
	logger *zap.Logger
}

func (a *autoEgress) SendState(ctx context.Context, msg *syncdto.BoardUpdate) error {
	if a.ws.available() {
		err := a.ws.SendState(ctx, msg)
		if err == nil {
			return nil
		}
		a.logger.Warn("egress_fallback", zap.String("type", msg.Type), zap.Error(err))
	}
	return a.http.SendState(ctx, msg)
}

func (a *autoEgress) SendNewGame(ctx context.Context, msg *syncdto.NewGame) error {
	if a.ws.available() {
		err := a.ws.SendNewGame(ctx, msg)
		if err == nil {
			return nil
		}
		a.logger.Warn("egress_fallback", zap.String("type", msg.Type), zap.Error(err))
	}
	return a.http.SendNewGame(ctx, msg)
}
