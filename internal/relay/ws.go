package relay

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

var ErrNotConnected = errors.New("relay websocket not connected")

const (
	dialTimeout  = 10 * time.Second
	writeTimeout = 5 * time.Second
	pingTimeout  = 3 * time.Second
)

// Listener keeps one WebSocket to the relay open, redialing after drops, and
// delivers chat messages on Messages().
type Listener struct {
	url          string
	headers      HeaderProvider
	redials      int
	retry        RetryPolicy
	pingInterval time.Duration
	onState      func(WebSocketState)
	logger       *zap.Logger

	mu    sync.RWMutex
	conn  *websocket.Conn
	state WebSocketState

	writeMu sync.Mutex
	msgs    chan *Message
	cancel  context.CancelFunc
	done    chan struct{}
}

type ListenerOption func(*Listener)

// WithRedials bounds consecutive failed redials; 0 means the first drop is final.
func WithRedials(n int) ListenerOption {
	return func(l *Listener) { l.redials = n }
}

func WithDialHeaders(h HeaderProvider) ListenerOption {
	return func(l *Listener) { l.headers = h }
}

func WithStateHook(fn func(WebSocketState)) ListenerOption {
	return func(l *Listener) { l.onState = fn }
}

func WithPingInterval(d time.Duration) ListenerOption {
	return func(l *Listener) { l.pingInterval = d }
}

func WithListenerLogger(logger *zap.Logger) ListenerOption {
	return func(l *Listener) {
		if logger != nil {
			l.logger = logger
		}
	}
}

func NewListener(url string, opts ...ListenerOption) *Listener {
	l := &Listener{
		url:          url,
		retry:        DefaultRetryPolicy(),
		pingInterval: 30 * time.Second,
		logger:       zap.NewNop(),
		msgs:         make(chan *Message, 16),
		done:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Messages is closed once the listener stops for good.
func (l *Listener) Messages() <-chan *Message { return l.msgs }

func (l *Listener) State() WebSocketState {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// Start dials once synchronously so a bad URL fails fast, then supervises the
// connection in the background until ctx ends or Close is called.
func (l *Listener) Start(ctx context.Context) error {
	l.setState(WSStateConnecting)
	conn, err := l.dial(ctx)
	if err != nil {
		l.setState(WSStateFailed)
		close(l.msgs)
		close(l.done)
		return err
	}
	l.attach(conn)
	runCtx, cancel := context.WithCancel(ctx)
	l.cancel = cancel
	go l.supervise(runCtx, conn)
	return nil
}

func (l *Listener) supervise(ctx context.Context, conn *websocket.Conn) {
	defer close(l.done)
	defer close(l.msgs)
	for {
		err := l.serve(ctx, conn)
		l.detach(conn)
		if ctx.Err() != nil {
			l.setState(WSStateDisconnected)
			return
		}
		l.logger.Warn("relay_ws_dropped", zap.Error(err))
		if conn = l.redial(ctx); conn == nil {
			return
		}
		l.attach(conn)
	}
}

func (l *Listener) redial(ctx context.Context) *websocket.Conn {
	l.setState(WSStateReconnecting)
	for attempt := 1; attempt <= l.redials; attempt++ {
		select {
		case <-ctx.Done():
			l.setState(WSStateDisconnected)
			return nil
		case <-time.After(l.retry.delay(attempt)):
		}
		conn, err := l.dial(ctx)
		if err == nil {
			return conn
		}
		l.logger.Debug("relay_ws_redial_failed", zap.Int("attempt", attempt), zap.Error(err))
	}
	l.setState(WSStateFailed)
	return nil
}

// serve reads until the connection breaks, pinging on the side.
func (l *Listener) serve(ctx context.Context, conn *websocket.Conn) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go l.keepAlive(ctx, conn)
	for {
		var msg Message
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			return err
		}
		select {
		case l.msgs <- &msg:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (l *Listener) keepAlive(ctx context.Context, conn *websocket.Conn) {
	t := time.NewTicker(l.pingInterval)
	defer t.Stop()
	missed := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
		pctx, cancel := context.WithTimeout(ctx, pingTimeout)
		err := conn.Ping(pctx)
		cancel()
		if err == nil {
			missed = 0
			continue
		}
		// 두 번 연속 실패하면 끊고 serve 쪽에서 재연결
		if missed++; missed >= 2 {
			_ = conn.Close(websocket.StatusGoingAway, "ping failure")
			return
		}
	}
}

// Send writes one reply frame over the live connection.
func (l *Listener) Send(ctx context.Context, req ReplyRequest) error {
	l.mu.RLock()
	conn := l.conn
	l.mu.RUnlock()
	if conn == nil {
		return ErrNotConnected
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	l.writeMu.Lock()
	defer l.writeMu.Unlock()
	return wsjson.Write(ctx, conn, req)
}

// Close stops the supervisor and waits for it to exit.
func (l *Listener) Close(ctx context.Context) error {
	if l.cancel == nil {
		return nil
	}
	l.cancel()
	select {
	case <-l.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Listener) dial(ctx context.Context) (*websocket.Conn, error) {
	ctx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()
	hdr := http.Header{}
	if l.headers != nil {
		for k, v := range l.headers() {
			if strings.TrimSpace(k) != "" && strings.TrimSpace(v) != "" {
				hdr.Set(k, v)
			}
		}
	}
	conn, _, err := websocket.Dial(ctx, l.url, &websocket.DialOptions{
		CompressionMode: websocket.CompressionNoContextTakeover,
		HTTPHeader:      hdr,
	})
	return conn, err
}

func (l *Listener) attach(conn *websocket.Conn) {
	l.mu.Lock()
	l.conn = conn
	l.mu.Unlock()
	l.setState(WSStateConnected)
}

func (l *Listener) detach(conn *websocket.Conn) {
	l.mu.Lock()
	if l.conn == conn {
		l.conn = nil
	}
	l.mu.Unlock()
	_ = conn.Close(websocket.StatusGoingAway, "detach")
}

func (l *Listener) setState(s WebSocketState) {
	l.mu.Lock()
	changed := l.state != s
	l.state = s
	l.mu.Unlock()
	if changed && l.onState != nil {
		l.onState(s)
	}
}
