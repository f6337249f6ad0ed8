package handshake

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/park285/cheese-robot-bridge/internal/choreo"
	"github.com/park285/cheese-robot-bridge/internal/emitter"
	"github.com/park285/cheese-robot-bridge/internal/workspace"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

const testInterval = 5 * time.Millisecond

func newTestEmitter(t *testing.T) *emitter.FileEmitter {
	t.Helper()
	m, err := workspace.NewMapper(workspace.DefaultCalibration())
	if err != nil {
		t.Fatalf("mapper: %v", err)
	}
	return emitter.New(t.TempDir(), m)
}

func moveChoreo() choreo.Choreography {
	return choreo.Choreography{
		Kind:    choreo.KindMove,
		Squares: []workspace.Square{workspace.MustParseSquare("e2"), workspace.MustParseSquare("e4")},
	}
}

func waitOutcome(t *testing.T, pd *Pending) Outcome {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	out, err := pd.Wait(ctx)
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	return out
}

func TestEmitRejectsOverlappingHandshake(t *testing.T) {
	p := NewProtocol(newTestEmitter(t), WithPollInterval(testInterval))
	pd, err := p.Emit(context.Background(), choreo.KindMove, moveChoreo(), nil)
	if err != nil {
		t.Fatalf("emit: %v", err)
	}
	defer pd.Cancel()
	if p.State() != StateAwaitingDeletion {
		t.Fatalf("state = %s", p.State())
	}
	if _, err := p.Emit(context.Background(), choreo.KindMove, moveChoreo(), nil); !errors.Is(err, ErrProtocolViolation) {
		t.Fatalf("expected ErrProtocolViolation, got %v", err)
	}
	if p.PendingFile() != pd.Path {
		t.Fatalf("pending file = %q", p.PendingFile())
	}
}

func TestDeletionRunsContinuationAndRearms(t *testing.T) {
	p := NewProtocol(newTestEmitter(t), WithPollInterval(testInterval))

	var calls int32
	var gotState State
	var mu sync.Mutex
	cont := func(_ *Pending, o Outcome) {
		if o != OutcomeDeleted {
			t.Errorf("outcome = %s", o)
		}
		mu.Lock()
		gotState = p.State()
		mu.Unlock()
		atomic.AddInt32(&calls, 1)
	}
	pd, err := p.Emit(context.Background(), choreo.KindMove, moveChoreo(), cont)
	if err != nil {
		t.Fatalf("emit: %v", err)
	}
	if err := os.Remove(pd.Path); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if out := waitOutcome(t, pd); out != OutcomeDeleted {
		t.Fatalf("outcome = %s", out)
	}
	if p.State() != StateIdle || p.PendingFile() != "" {
		t.Fatalf("protocol not idle: %s %q", p.State(), p.PendingFile())
	}

	pd2, err := p.Emit(context.Background(), choreo.KindMove, moveChoreo(), cont)
	if err != nil {
		t.Fatalf("re-emit: %v", err)
	}
	if err := os.Remove(pd2.Path); err != nil {
		t.Fatalf("remove: %v", err)
	}
	waitOutcome(t, pd2)

	if atomic.LoadInt32(&calls) != 2 {
		t.Fatalf("continuation calls = %d", calls)
	}
	mu.Lock()
	defer mu.Unlock()
	if gotState != StateIdle {
		t.Fatalf("continuation saw state %s", gotState)
	}
}

func TestTerminalReleasesHandshake(t *testing.T) {
	var over atomic.Bool
	p := NewProtocol(newTestEmitter(t), WithPollInterval(testInterval), WithTerminal(over.Load))
	pd, err := p.Emit(context.Background(), choreo.KindMove, moveChoreo(), nil)
	if err != nil {
		t.Fatalf("emit: %v", err)
	}
	over.Store(true)
	if out := waitOutcome(t, pd); out != OutcomeReleased {
		t.Fatalf("outcome = %s", out)
	}
	if _, err := os.Stat(pd.Path); err != nil {
		t.Fatalf("released handshake must leave the file in place: %v", err)
	}
	if p.State() != StateIdle {
		t.Fatalf("state = %s", p.State())
	}
}

func TestEmitRefusesUndeletedFile(t *testing.T) {
	em := newTestEmitter(t)
	var over atomic.Bool
	p := NewProtocol(em, WithPollInterval(testInterval), WithTerminal(over.Load))
	pd, err := p.Emit(context.Background(), choreo.KindMove, moveChoreo(), nil)
	if err != nil {
		t.Fatalf("emit: %v", err)
	}
	over.Store(true)
	if out := waitOutcome(t, pd); out != OutcomeReleased {
		t.Fatalf("outcome = %s", out)
	}
	before, err := os.ReadFile(pd.Path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	// 해제 후에도 파일이 남아 있으면 다음 Emit은 거부
	next := choreo.Choreography{
		Kind:    choreo.KindMove,
		Squares: []workspace.Square{workspace.MustParseSquare("d2"), workspace.MustParseSquare("d4")},
	}
	if _, err := p.Emit(context.Background(), choreo.KindMove, next, nil); !errors.Is(err, ErrProtocolViolation) {
		t.Fatalf("expected ErrProtocolViolation, got %v", err)
	}
	after, err := os.ReadFile(pd.Path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(after) != string(before) {
		t.Fatalf("undeleted file was overwritten: %q -> %q", before, after)
	}
	if p.State() != StateIdle {
		t.Fatalf("state = %s", p.State())
	}

	if err := os.Remove(pd.Path); err != nil {
		t.Fatalf("remove: %v", err)
	}
	over.Store(false)
	pd2, err := p.Emit(context.Background(), choreo.KindMove, next, nil)
	if err != nil {
		t.Fatalf("emit after deletion: %v", err)
	}
	pd2.Cancel()
	waitOutcome(t, pd2)
}

func TestTimeoutHook(t *testing.T) {
	var hooked atomic.Value
	p := NewProtocol(newTestEmitter(t),
		WithPollInterval(testInterval),
		WithTimeout(30*time.Millisecond, func(path string) { hooked.Store(path) }),
	)
	pd, err := p.Emit(context.Background(), choreo.KindMove, moveChoreo(), nil)
	if err != nil {
		t.Fatalf("emit: %v", err)
	}
	if out := waitOutcome(t, pd); out != OutcomeTimedOut {
		t.Fatalf("outcome = %s", out)
	}
	if v, _ := hooked.Load().(string); v != pd.Path {
		t.Fatalf("hook path = %q", v)
	}
}

func TestCancelAndContext(t *testing.T) {
	p := NewProtocol(newTestEmitter(t), WithPollInterval(testInterval))
	pd, err := p.Emit(context.Background(), choreo.KindMove, moveChoreo(), nil)
	if err != nil {
		t.Fatalf("emit: %v", err)
	}
	p.Cancel()
	if out := waitOutcome(t, pd); out != OutcomeCancelled {
		t.Fatalf("outcome = %s", out)
	}

	ctx, cancel := context.WithCancel(context.Background())
	pd, err = p.Emit(ctx, choreo.KindMove, moveChoreo(), nil)
	if err != nil {
		t.Fatalf("emit: %v", err)
	}
	cancel()
	if out := waitOutcome(t, pd); out != OutcomeCancelled {
		t.Fatalf("outcome = %s", out)
	}
}

type failingEmitter struct{}

func (failingEmitter) Emit(choreo.Kind, choreo.Choreography) (emitter.Result, error) {
	return emitter.Result{}, emitter.ErrWriteFailure
}

func (failingEmitter) PathFor(kind choreo.Kind) string { return kind.FileName() }

func TestEmitterFailureKeepsIdle(t *testing.T) {
	p := NewProtocol(failingEmitter{})
	if _, err := p.Emit(context.Background(), choreo.KindMove, moveChoreo(), nil); !errors.Is(err, emitter.ErrWriteFailure) {
		t.Fatalf("expected ErrWriteFailure, got %v", err)
	}
	if p.State() != StateIdle {
		t.Fatalf("state = %s", p.State())
	}
}

func TestStatErrorsAreLoggedAndRetried(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	var n atomic.Int32
	stat := func(string) (bool, error) {
		// 첫 호출은 Emit의 사전 확인
		if n.Add(1) == 2 {
			return false, errors.New("stale handle")
		}
		return false, nil
	}
	p := NewProtocol(newTestEmitter(t), WithPollInterval(testInterval), WithExistsCheck(stat), WithLogger(zap.New(core)))
	pd, err := p.Emit(context.Background(), choreo.KindMove, moveChoreo(), nil)
	if err != nil {
		t.Fatalf("emit: %v", err)
	}
	if out := waitOutcome(t, pd); out != OutcomeDeleted {
		t.Fatalf("outcome = %s", out)
	}
	if logs.FilterMessage("Failed to stat robot file").Len() != 1 {
		t.Fatalf("expected one stat warning, got %d", logs.Len())
	}
}

func TestFSNotifyWakesWaiter(t *testing.T) {
	// 폴링 간격을 길게 잡아 fsnotify 경로로만 깨어나는지 확인
	p := NewProtocol(newTestEmitter(t), WithPollInterval(time.Hour), WithFSNotify(true))
	pd, err := p.Emit(context.Background(), choreo.KindCapture, choreo.Choreography{
		Kind: choreo.KindCapture,
		Squares: []workspace.Square{
			workspace.MustParseSquare("e4"), workspace.MustParseSquare("i1"),
			workspace.MustParseSquare("d3"), workspace.MustParseSquare("e4"),
		},
	}, nil)
	if err != nil {
		t.Fatalf("emit: %v", err)
	}
	time.Sleep(50 * time.Millisecond)
	if err := os.Remove(pd.Path); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if out := waitOutcome(t, pd); out != OutcomeDeleted {
		t.Fatalf("outcome = %s", out)
	}
}
