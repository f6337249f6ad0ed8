// Package uci drives a UCI engine process for the robot's side of the game.
package uci

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	readyTimeout  = 4 * time.Second
	readyAttempts = 3
	readyBackoff  = 150 * time.Millisecond
	quitGrace     = time.Second
)

// Session owns one engine process. Searches are serialized.
type Session struct {
	cmd    *exec.Cmd
	logger *zap.Logger

	writeMu sync.Mutex
	stdin   io.WriteCloser

	searchMu sync.Mutex
	lines    <-chan string
	readErr  error
}

func NewSession(ctx context.Context, binaryPath string, opt Options, logger *zap.Logger) (*Session, error) {
	if strings.TrimSpace(binaryPath) == "" {
		return nil, errors.New("engine binary path is required")
	}
	if err := opt.validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	// 프로세스 수명은 Close 가 관리
	cmd := exec.Command(binaryPath)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("create stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		_ = stdin.Close()
		return nil, fmt.Errorf("create stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		_ = stdin.Close()
		return nil, fmt.Errorf("start engine: %w", err)
	}

	lines := make(chan string, 64)
	s := &Session{cmd: cmd, logger: logger, stdin: stdin, lines: lines}
	go s.pump(stdout, lines)

	if err := s.handshake(ctx, opt); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// pump is the only reader of stdout and closes lines when the process goes away.
func (s *Session) pump(r io.Reader, lines chan<- string) {
	defer close(lines)
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		lines <- strings.TrimSpace(sc.Text())
	}
	s.readErr = sc.Err()
}

func (s *Session) handshake(ctx context.Context, opt Options) error {
	ctx, cancel := context.WithTimeout(ctx, readyTimeout)
	defer cancel()

	if err := s.exchange(ctx, "uciok", "uci"); err != nil {
		return err
	}
	cmds := append(opt.commands(), "isready")
	return s.exchange(ctx, "readyok", cmds...)
}

type SearchRequest struct {
	FEN      string
	Moves    []string
	Limits   Limits
	GoTokens []string
}

type SearchResponse struct {
	Candidates []Candidate
	BestMove   string
	Elapsed    time.Duration
}

func (s *Session) Search(ctx context.Context, req SearchRequest) (SearchResponse, error) {
	s.searchMu.Lock()
	defer s.searchMu.Unlock()

	goArgs := req.GoTokens
	if len(goArgs) == 0 {
		var err error
		if goArgs, err = req.Limits.GoArgs(); err != nil {
			return SearchResponse{}, err
		}
	}
	position := positionLine(req.FEN, req.Moves)
	if err := s.send(position, strings.Join(goArgs, " ")); err != nil {
		return SearchResponse{}, fmt.Errorf("start search: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, req.Limits.deadline())
	defer cancel()

	start := time.Now()
	seen := candidates{}
	for {
		line, err := s.next(ctx)
		if err != nil {
			s.logger.Warn("UCI search aborted",
				zap.String("position", position),
				zap.Strings("go", goArgs),
				zap.Error(err),
			)
			if ctx.Err() != nil {
				s.stopSearch()
			}
			return SearchResponse{}, fmt.Errorf("read search output: %w", err)
		}
		if in, ok := parseInfo(line); ok {
			seen.add(in)
			continue
		}
		if !strings.HasPrefix(line, "bestmove") {
			continue
		}
		best, ok := parseBestMove(line)
		if !ok {
			return SearchResponse{}, ErrNoBestMove
		}
		return SearchResponse{Candidates: seen.ranked(), BestMove: best, Elapsed: time.Since(start)}, nil
	}
}

// stopSearch drains the pending bestmove so the next search starts clean.
func (s *Session) stopSearch() {
	ctx, cancel := context.WithTimeout(context.Background(), readyTimeout)
	defer cancel()
	_ = s.exchange(ctx, "bestmove", "stop")
}

func (s *Session) EnsureReady(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, readyTimeout)
	defer cancel()
	return s.exchange(ctx, "readyok", "isready")
}

// NewGame resets engine state between robot sessions. Some engines are slow to
// answer isready right after ucinewgame, so readiness is retried.
func (s *Session) NewGame(ctx context.Context) error {
	if err := s.send("ucinewgame"); err != nil {
		return fmt.Errorf("send ucinewgame: %w", err)
	}
	var err error
	for attempt := 1; attempt <= readyAttempts; attempt++ {
		if err = s.EnsureReady(ctx); err == nil {
			return nil
		}
		s.logger.Warn("UCI engine not ready after ucinewgame", zap.Int("attempt", attempt), zap.Error(err))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(readyBackoff):
		}
	}
	return err
}

func (s *Session) Close() error {
	_ = s.send("quit")

	s.writeMu.Lock()
	if s.stdin != nil {
		_ = s.stdin.Close()
		s.stdin = nil
	}
	s.writeMu.Unlock()

	if s.cmd.Process == nil {
		return nil
	}
	done := make(chan error, 1)
	go func() { done <- s.cmd.Wait() }()
	select {
	case err := <-done:
		return err
	case <-time.After(quitGrace):
		_ = s.cmd.Process.Kill()
		return <-done
	}
}

// exchange writes cmds and reads until a line containing token arrives.
func (s *Session) exchange(ctx context.Context, token string, cmds ...string) error {
	if err := s.send(cmds...); err != nil {
		return fmt.Errorf("send %s: %w", cmds[0], err)
	}
	for {
		line, err := s.next(ctx)
		if err != nil {
			return fmt.Errorf("wait %s: %w", token, err)
		}
		if strings.Contains(line, token) {
			return nil
		}
	}
}

func (s *Session) send(cmds ...string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.stdin == nil {
		return io.ErrClosedPipe
	}
	for _, c := range cmds {
		if _, err := io.WriteString(s.stdin, c+"\n"); err != nil {
			return err
		}
	}
	return nil
}

func (s *Session) next(ctx context.Context) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case line, ok := <-s.lines:
		if !ok {
			if s.readErr != nil {
				return "", s.readErr
			}
			return "", io.EOF
		}
		return line, nil
	}
}
