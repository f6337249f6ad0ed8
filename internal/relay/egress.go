package relay

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// Egress delivers robot status text and workspace images to a room.
type Egress interface {
	SendText(ctx context.Context, room, text string) error
	SendImage(ctx context.Context, room string, png []byte) error
}

const (
	ModeHTTP = "http"
	ModeWS   = "ws"
	ModeAuto = "auto"
)

var errNoHTTP = errors.New("http egress not available")

// NewEgress picks a transport. Auto prefers the live WebSocket and falls back
// to HTTP for that one frame.
func NewEgress(mode string, c *Client, l *Listener, logger *zap.Logger) Egress {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &egress{http: c, ws: l, logger: logger}
	switch mode {
	case ModeWS:
		e.http = nil
	case ModeHTTP:
		e.ws = nil
	}
	return e
}

type egress struct {
	http   *Client
	ws     *Listener
	logger *zap.Logger
}

func (e *egress) SendText(ctx context.Context, room, text string) error {
	return e.send(ctx, TextReply(room, text))
}

func (e *egress) SendImage(ctx context.Context, room string, png []byte) error {
	return e.send(ctx, ImageReply(room, png))
}

func (e *egress) send(ctx context.Context, req ReplyRequest) error {
	if e.ws != nil {
		err := e.ws.Send(ctx, req)
		if err == nil {
			return nil
		}
		if e.http == nil {
			return err
		}
		if !errors.Is(err, ErrNotConnected) {
			e.logger.Warn("egress_fallback", zap.String("type", req.Type), zap.String("room", req.Room), zap.Error(err))
		}
	}
	if e.http == nil {
		return errNoHTTP
	}
	return e.http.Reply(ctx, req)
}
