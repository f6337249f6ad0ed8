// Package handshake implements the write-then-wait-for-deletion protocol
// between the game and the arm controller.
package handshake

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/park285/cheese-robot-bridge/internal/choreo"
	"github.com/park285/cheese-robot-bridge/internal/emitter"
	"go.uber.org/zap"
)

var ErrProtocolViolation = errors.New("robot handshake already pending")

const DefaultPollInterval = 200 * time.Millisecond

type State int

const (
	StateIdle State = iota
	StateAwaitingDeletion
)

func (s State) String() string {
	if s == StateAwaitingDeletion {
		return "awaiting_deletion"
	}
	return "idle"
}

// Outcome is how a pending handshake ended.
type Outcome int

const (
	OutcomeDeleted Outcome = iota
	OutcomeReleased
	OutcomeTimedOut
	OutcomeCancelled
)

func (o Outcome) String() string {
	switch o {
	case OutcomeDeleted:
		return "deleted"
	case OutcomeReleased:
		return "released"
	case OutcomeTimedOut:
		return "timed_out"
	case OutcomeCancelled:
		return "cancelled"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// Emitter is satisfied by *emitter.FileEmitter.
type Emitter interface {
	Emit(kind choreo.Kind, ch choreo.Choreography) (emitter.Result, error)
	PathFor(kind choreo.Kind) string
}

// Observer receives handshake lifecycle events; internal/metrics implements it.
type Observer interface {
	HandshakeStarted(kind string)
	HandshakeFinished(kind string, outcome string, waited time.Duration)
}

// Continuation runs once per handshake, after the protocol is back to Idle
// and before Pending.Done is closed.
type Continuation func(p *Pending, outcome Outcome)

type Protocol struct {
	emitter   Emitter
	interval  time.Duration
	timeout   time.Duration
	onTimeout func(path string)
	terminal  func() bool
	exists    func(path string) (bool, error)
	useNotify bool
	observer  Observer
	logger    *zap.Logger

	mu      sync.Mutex
	state   State
	pending *Pending
}

type Option func(*Protocol)

func WithPollInterval(d time.Duration) Option {
	return func(p *Protocol) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithTimeout bounds the wait. Zero waits forever.
func WithTimeout(d time.Duration, hook func(path string)) Option {
	return func(p *Protocol) {
		p.timeout = d
		p.onTimeout = hook
	}
}

// WithTerminal is consulted before every re-check; true releases the handshake.
func WithTerminal(fn func() bool) Option {
	return func(p *Protocol) { p.terminal = fn }
}

// WithExistsCheck replaces the filesystem existence check.
func WithExistsCheck(fn func(path string) (bool, error)) Option {
	return func(p *Protocol) {
		if fn != nil {
			p.exists = fn
		}
	}
}

// WithFSNotify wakes the waiter on directory events in addition to the ticker.
func WithFSNotify(enabled bool) Option {
	return func(p *Protocol) { p.useNotify = enabled }
}

func WithObserver(o Observer) Option {
	return func(p *Protocol) { p.observer = o }
}

func WithLogger(l *zap.Logger) Option {
	return func(p *Protocol) {
		if l != nil {
			p.logger = l
		}
	}
}

func NewProtocol(em Emitter, opts ...Option) *Protocol {
	p := &Protocol{
		emitter:  em,
		interval: DefaultPollInterval,
		exists:   fileExists,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Protocol) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// PendingFile returns the path awaiting deletion, or "" when idle.
func (p *Protocol) PendingFile() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pending == nil {
		return ""
	}
	return p.pending.Path
}

func (p *Protocol) Pending() *Pending {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pending
}

// Emit writes the choreography and schedules the deletion wait. It never blocks on the actor.
func (p *Protocol) Emit(ctx context.Context, kind choreo.Kind, ch choreo.Choreography, cont Continuation) (*Pending, error) {
	p.mu.Lock()
	if p.state != StateIdle {
		held := p.pending.Path
		p.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrProtocolViolation, held)
	}
	// 이전 파일을 행위자가 아직 지우지 않았으면 덮어쓰지 않는다
	target := p.emitter.PathFor(kind)
	present, err := p.exists(target)
	if err != nil {
		// 확인 실패는 쓰기 단계가 보고한다
		p.logger.Debug("robot_file_stat_failed", zap.String("path", target), zap.Error(err))
	}
	if present {
		p.mu.Unlock()
		return nil, fmt.Errorf("%w: %s not yet deleted", ErrProtocolViolation, target)
	}
	res, err := p.emitter.Emit(kind, ch)
	if err != nil {
		p.mu.Unlock()
		return nil, err
	}

	waitCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	pending := &Pending{
		Kind:      kind,
		Path:      res.Path,
		Result:    res,
		StartedAt: time.Now(),
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	p.state = StateAwaitingDeletion
	p.pending = pending
	p.mu.Unlock()

	if p.observer != nil {
		p.observer.HandshakeStarted(kind.String())
	}
	p.logger.Info("handshake_emitted",
		zap.String("kind", kind.String()),
		zap.String("path", res.Path),
		zap.Strings("squares", ch.Strings()),
	)

	// ctx 취소도 대기 취소로 전달
	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-pending.done:
		}
	}()
	go p.wait(waitCtx, pending, cont)
	return pending, nil
}

// Cancel stops waiting on the current handshake, if any.
func (p *Protocol) Cancel() {
	if pending := p.Pending(); pending != nil {
		pending.Cancel()
	}
}

// Restore re-arms a wait for a file emitted by a previous process.
func (p *Protocol) Restore(kind choreo.Kind, path string, cont Continuation) (*Pending, error) {
	p.mu.Lock()
	if p.state != StateIdle {
		held := p.pending.Path
		p.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrProtocolViolation, held)
	}
	ctx, cancel := context.WithCancel(context.Background())
	pending := &Pending{
		Kind:      kind,
		Path:      path,
		Result:    emitter.Result{Kind: kind, Path: path},
		StartedAt: time.Now(),
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	p.state = StateAwaitingDeletion
	p.pending = pending
	p.mu.Unlock()

	go p.wait(ctx, pending, cont)
	return pending, nil
}

func (p *Protocol) wait(ctx context.Context, pending *Pending, cont Continuation) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	var deadline <-chan time.Time
	if p.timeout > 0 {
		timer := time.NewTimer(p.timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	var wake <-chan struct{}
	if p.useNotify {
		w, err := WatchDeletion(pending.Path)
		if err != nil {
			p.logger.Warn("Deletion watcher unavailable, polling only", zap.String("path", pending.Path), zap.Error(err))
		} else {
			defer w.Stop()
			wake = w.Removed()
		}
	}

	for {
		select {
		case <-ctx.Done():
			p.finish(pending, OutcomeCancelled, cont)
			return
		case <-deadline:
			if p.onTimeout != nil {
				p.onTimeout(pending.Path)
			}
			p.finish(pending, OutcomeTimedOut, cont)
			return
		case <-ticker.C:
		case <-wake:
		}

		present, err := p.exists(pending.Path)
		if err != nil {
			p.logger.Warn("Failed to stat robot file", zap.String("path", pending.Path), zap.Error(err))
		} else if !present {
			p.finish(pending, OutcomeDeleted, cont)
			return
		}

		// 다음 예약 전에 종료 상태를 명시적으로 확인
		if p.terminal != nil && p.terminal() {
			p.finish(pending, OutcomeReleased, cont)
			return
		}
	}
}

func (p *Protocol) finish(pending *Pending, outcome Outcome, cont Continuation) {
	p.mu.Lock()
	if p.pending == pending {
		p.pending = nil
		p.state = StateIdle
	}
	p.mu.Unlock()

	pending.outcome = outcome
	pending.cancel()
	defer close(pending.done)

	waited := time.Since(pending.StartedAt)
	if p.observer != nil {
		p.observer.HandshakeFinished(pending.Kind.String(), outcome.String(), waited)
	}
	p.logger.Info("handshake_finished",
		zap.String("kind", pending.Kind.String()),
		zap.String("path", pending.Path),
		zap.String("outcome", outcome.String()),
		zap.Duration("waited", waited),
	)
	if cont != nil {
		cont(pending, outcome)
	}
}

// Pending is one outstanding handshake.
type Pending struct {
	Kind      choreo.Kind
	Path      string
	Result    emitter.Result
	StartedAt time.Time

	cancel  context.CancelFunc
	done    chan struct{}
	outcome Outcome
}

// Cancel stops the wait; the continuation sees OutcomeCancelled.
func (pd *Pending) Cancel() { pd.cancel() }

// Done is closed once the handshake has resolved and its continuation returned.
func (pd *Pending) Done() <-chan struct{} { return pd.done }

// Outcome is valid after Done is closed.
func (pd *Pending) Outcome() Outcome {
	<-pd.done
	return pd.outcome
}

// Wait blocks until the handshake resolves or ctx ends.
func (pd *Pending) Wait(ctx context.Context) (Outcome, error) {
	select {
	case <-pd.done:
		return pd.outcome, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

func (pd *Pending) FileName() string { return filepath.Base(pd.Path) }

func fileExists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, err
}
