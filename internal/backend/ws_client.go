package backend

import (
	"context"

	"github.com/park285/boardsync/pkg/syncdto"
)

type WebSocketState int

const (
	WSStateDisconnected WebSocketState = iota
	WSStateConnecting
	WSStateConnected
	WSStateReconnecting
	WSStateClosed
)

func (s WebSocketState) String() string {
	switch s {
	case WSStateConnecting:
		return "connecting"
	case WSStateConnected:
		return "connected"
	case WSStateReconnecting:
		return "reconnecting"
	case WSStateClosed:
		return "closed"
	default:
		return "disconnected"
	}
}

type MessageCallback func(message *syncdto.Inbound)

type StateCallback func(state WebSocketState)

type WSClient interface {
	Connect(ctx context.Context) error
	Send(ctx context.Context, v any) error
	Connected() bool
	OnMessage(cb MessageCallback) int
	RemoveMessageCallback(id int)
	OnStateChange(cb StateCallback) int
	RemoveStateCallback(id int)
	Close(ctx context.Context) error
}
