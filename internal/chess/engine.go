package chess

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os/exec"
	"sync"
	"time"

	"github.com/park285/cheese-robot-bridge/internal/chess/uci"
	"go.uber.org/zap"
)

var (
	ErrNoLegalMove       = errors.New("no legal move available")
	ErrEngineUnavailable = errors.New("chess engine unavailable")
)

// MoveSelector picks the robot's reply. Moves is the game so far in UCI notation.
type MoveSelector interface {
	SelectMove(ctx context.Context, req MoveRequest) (MoveChoice, error)
	NewGame(ctx context.Context) error
	Close() error
}

type MoveRequest struct {
	PresetName string
	Moves      []string
}

type MoveChoice struct {
	Move     string
	EvalCP   int
	BestMove string
	Preset   string
	Source   string
	Duration time.Duration
}

// Engine keeps one UCI process alive across the session and restarts it when the preset changes.
type Engine struct {
	binaryPath string
	logger     *zap.Logger

	mu      sync.Mutex
	session *uci.Session
	preset  string

	randMu sync.Mutex
	rand   *rand.Rand
}

func NewEngine(binaryPath string, logger *zap.Logger) (*Engine, error) {
	resolved, err := exec.LookPath(binaryPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEngineUnavailable, err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		binaryPath: resolved,
		logger:     logger,
		rand:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}, nil
}

func (e *Engine) SetRandomSeed(seed int64) {
	e.randMu.Lock()
	e.rand = rand.New(rand.NewSource(seed))
	e.randMu.Unlock()
}

func (e *Engine) NewGame(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil {
		return nil
	}
	return e.session.NewGame(ctx)
}

func (e *Engine) SelectMove(ctx context.Context, req MoveRequest) (MoveChoice, error) {
	start := time.Now()
	preset, err := GetPreset(req.PresetName)
	if err != nil {
		return MoveChoice{}, err
	}
	goTokens, err := BuildGoCommand(preset)
	if err != nil {
		return MoveChoice{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	session, err := e.ensureSession(ctx, preset)
	if err != nil {
		return MoveChoice{}, err
	}
	resp, err := session.Search(ctx, uci.SearchRequest{
		Moves:    req.Moves,
		Limits:   limitsFromPreset(preset),
		GoTokens: goTokens,
	})
	if err != nil {
		if errors.Is(err, uci.ErrNoBestMove) {
			return MoveChoice{}, ErrNoLegalMove
		}
		e.resetLocked()
		return MoveChoice{}, fmt.Errorf("%w: %v", ErrEngineUnavailable, err)
	}

	choice := MoveChoice{
		Move:     resp.BestMove,
		BestMove: resp.BestMove,
		Preset:   preset.Name,
		Source:   "engine",
		Duration: time.Since(start),
	}
	candidates := convertCandidates(resp.Candidates)
	if len(candidates) > 0 {
		picked, err := SelectCandidate(preset, candidates, e.random())
		if err != nil {
			return MoveChoice{}, err
		}
		choice.Move = picked.Move
		choice.EvalCP = picked.EvalCP
	}
	return choice, nil
}

func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.resetLocked()
}

func (e *Engine) ensureSession(ctx context.Context, p DifficultyPreset) (*uci.Session, error) {
	if e.session != nil && e.preset == p.Name {
		return e.session, nil
	}
	e.resetLocked()
	s, err := uci.NewSession(ctx, e.binaryPath, optionsFromPreset(p), e.logger)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEngineUnavailable, err)
	}
	if err := s.NewGame(ctx); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("%w: %v", ErrEngineUnavailable, err)
	}
	e.session = s
	e.preset = p.Name
	e.logger.Info("UCI engine started", zap.String("binary", e.binaryPath), zap.String("preset", p.Name))
	return s, nil
}

func (e *Engine) resetLocked() error {
	if e.session == nil {
		return nil
	}
	err := e.session.Close()
	e.session = nil
	e.preset = ""
	return err
}

func (e *Engine) random() *rand.Rand {
	e.randMu.Lock()
	seed := e.rand.Int63()
	e.randMu.Unlock()
	return rand.New(rand.NewSource(seed))
}

func convertCandidates(in []uci.Candidate) []Candidate {
	out := make([]Candidate, 0, len(in))
	for _, c := range in {
		out = append(out, Candidate{
			Move:      c.Move,
			EvalCP:    c.EvalCP,
			Principal: append([]string(nil), c.Principal...),
		})
	}
	return out
}
