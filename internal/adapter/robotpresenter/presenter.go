package robotpresenter

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/park285/cheese-robot-bridge/internal/relay"
	"github.com/park285/cheese-robot-bridge/pkg/robotdto"
	"go.uber.org/zap"
)

// Sink is where presenter output goes: a chat room or the console.
type Sink interface {
	Text(ctx context.Context, text string) error
	Image(ctx context.Context, png []byte) error
}

// Presenter implements the session notifier by formatting and forwarding to a Sink.
type Presenter struct {
	sink   Sink
	format *Formatter
	logger *zap.Logger
}

func NewPresenter(sink Sink, format *Formatter, logger *zap.Logger) *Presenter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Presenter{sink: sink, format: format, logger: logger}
}

func (p *Presenter) Formatter() *Formatter { return p.format }

func (p *Presenter) Say(ctx context.Context, text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	if err := p.sink.Text(ctx, text); err != nil {
		p.logger.Warn("Failed to deliver message", zap.Error(err))
	}
}

// Board sends the text and, when present, the rendered workspace.
func (p *Presenter) Board(ctx context.Context, text string, state *robotdto.SessionState) {
	p.Say(ctx, text)
	if state == nil || len(state.BoardImage) == 0 {
		return
	}
	if err := p.sink.Image(ctx, state.BoardImage); err != nil {
		p.logger.Warn("Failed to deliver workspace image", zap.Error(err))
	}
}

func (p *Presenter) MoveAccepted(ctx context.Context, st robotdto.MoveStatus) {
	p.Say(ctx, p.format.Accepted(st))
}

func (p *Presenter) MoveExecuted(ctx context.Context, st robotdto.MoveStatus) {
	p.Say(ctx, p.format.Executed(st))
}

func (p *Presenter) MoveFailed(ctx context.Context, st robotdto.MoveStatus, derr robotdto.DomainError) {
	p.Say(ctx, p.format.Failed(st, derr))
}

func (p *Presenter) AwaitingHuman(ctx context.Context, state robotdto.SessionState) {
	p.Say(ctx, p.format.YourTurn(state))
}

func (p *Presenter) GameOver(ctx context.Context, res robotdto.GameResult) {
	p.Say(ctx, p.format.GameOver(res))
}

// RoomSink posts into one chat room through the relay.
// Long texts are folded behind the chat client's "see more" marker after FoldRows lines.
type RoomSink struct {
	Egress   relay.Egress
	Room     string
	FoldRows int
}

func (s RoomSink) Text(ctx context.Context, text string) error {
	return s.Egress.SendText(ctx, s.Room, relay.Fold(text, s.FoldRows))
}

func (s RoomSink) Image(ctx context.Context, png []byte) error {
	return s.Egress.SendImage(ctx, s.Room, png)
}

// ConsoleSink prints text and stores images as numbered PNG files in Dir.
type ConsoleSink struct {
	mu  sync.Mutex
	Out io.Writer
	Dir string
	n   int
}

func (s *ConsoleSink) Text(_ context.Context, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := fmt.Fprintln(s.Out, text)
	return err
}

func (s *ConsoleSink) Image(_ context.Context, png []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Dir == "" {
		return nil
	}
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return err
	}
	s.n++
	path := filepath.Join(s.Dir, fmt.Sprintf("workspace-%03d.png", s.n))
	if err := os.WriteFile(path, png, 0o644); err != nil {
		return err
	}
	_, err := fmt.Fprintf(s.Out, "workspace image: %s\n", path)
	return err
}
