package robot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	nchess "github.com/corentings/chess/v2"
	"github.com/google/uuid"
	corechess "github.com/park285/cheese-robot-bridge/internal/chess"
	"github.com/park285/cheese-robot-bridge/internal/choreo"
	"github.com/park285/cheese-robot-bridge/internal/domain"
	"github.com/park285/cheese-robot-bridge/internal/emitter"
	"github.com/park285/cheese-robot-bridge/internal/handshake"
	"github.com/park285/cheese-robot-bridge/internal/storage"
	"github.com/park285/cheese-robot-bridge/internal/workspace"
	"github.com/park285/cheese-robot-bridge/pkg/robotdto"
	"go.uber.org/zap"
)

var (
	ErrSessionNotFound   = errors.New("robot session not found")
	ErrSessionInProgress = errors.New("robot session already in progress")
	ErrSessionFinished   = errors.New("robot session already finished")
	ErrInvalidMove       = errors.New("invalid chess move")
	ErrNotHumanTurn      = errors.New("not the human player's turn")
	ErrRobotBusy         = errors.New("robot is still executing the previous move")
	ErrNotRobotTurn      = errors.New("not the robot's turn")
)

const (
	statusActive   = "active"
	statusFinished = "finished"
	statusAborted  = "aborted"

	sideHuman = "human"
	sideRobot = "robot"

	defaultEngineTimeout  = 30 * time.Second
	defaultEngineAttempts = 3
	defaultEngineBackoff  = 2 * time.Second
	maxEngineBackoff      = 30 * time.Second
)

// Notifier is the presentation side of the bridge.
type Notifier interface {
	MoveAccepted(ctx context.Context, st robotdto.MoveStatus)
	MoveExecuted(ctx context.Context, st robotdto.MoveStatus)
	MoveFailed(ctx context.Context, st robotdto.MoveStatus, derr robotdto.DomainError)
	AwaitingHuman(ctx context.Context, state robotdto.SessionState)
	GameOver(ctx context.Context, res robotdto.GameResult)
}

// WorkspaceRenderer draws the board plus side storage for status messages.
type WorkspaceRenderer interface {
	RenderWorkspace(ctx context.Context, pos *nchess.Position, grid storage.Grid, highlight []workspace.Square) ([]byte, error)
}

// Metrics receives session counters; internal/metrics implements it.
type Metrics interface {
	MoveEmitted(kind string, side string)
	MoveRejected(code string)
	StorageRemaining(color string, purpose string, n int)
}

type Config struct {
	RobotID       string
	DefaultPreset string
	HumanColor    nchess.Color
	EnPassant     choreo.EnPassantPolicy
	EngineTimeout time.Duration
	// EngineAttempts bounds automatic move selection retries per robot turn.
	EngineAttempts int
	// EngineBackoff is the first retry delay; it doubles per attempt.
	EngineBackoff time.Duration
}

type StartOptions struct {
	Preset     string
	HumanColor string
	// Replace aborts a live session and discards any saved snapshot.
	Replace bool
}

type Service struct {
	cfg          Config
	emitter      *emitter.FileEmitter
	protocolOpts []handshake.Option
	selector     corechess.MoveSelector
	store        SnapshotStore
	repo         Repository
	notifier     Notifier
	renderer     WorkspaceRenderer
	metrics      Metrics
	logger       *zap.Logger

	mu     sync.Mutex
	active *activeSession
}

type Deps struct {
	Emitter      *emitter.FileEmitter
	ProtocolOpts []handshake.Option
	Selector     corechess.MoveSelector
	Store        SnapshotStore
	Repo         Repository
	Notifier     Notifier
	Renderer     WorkspaceRenderer
	Metrics      Metrics
	Logger       *zap.Logger
}

type activeSession struct {
	uuid       string
	humanColor nchess.Color
	preset     string
	status     string
	game       *nchess.Game
	movesUCI   []string
	movesSAN   []string
	alloc      *storage.Allocator
	protocol   *handshake.Protocol
	thinking   bool
	finished   atomic.Bool
	handshakes int
	captures   int
	queens     int
	lastMove   robotdto.MoveStatus
	lastPath   []workspace.Square
	result     *robotdto.GameResult
	startedAt  time.Time
	updatedAt  time.Time

	ctx    context.Context
	cancel context.CancelFunc
}

func NewService(cfg Config, deps Deps) (*Service, error) {
	if deps.Emitter == nil {
		return nil, fmt.Errorf("robot service requires a file emitter")
	}
	if deps.Selector == nil {
		return nil, fmt.Errorf("robot service requires a move selector")
	}
	if strings.TrimSpace(cfg.RobotID) == "" {
		cfg.RobotID = "arm-1"
	}
	if strings.TrimSpace(cfg.DefaultPreset) == "" {
		cfg.DefaultPreset = "level3"
	}
	if cfg.HumanColor != nchess.Black {
		cfg.HumanColor = nchess.White
	}
	if cfg.EngineTimeout <= 0 {
		cfg.EngineTimeout = defaultEngineTimeout
	}
	if cfg.EngineAttempts <= 0 {
		cfg.EngineAttempts = defaultEngineAttempts
	}
	if cfg.EngineBackoff <= 0 {
		cfg.EngineBackoff = defaultEngineBackoff
	}
	if deps.Store == nil {
		deps.Store = NewMemoryStore()
	}
	if deps.Repo == nil {
		deps.Repo = NewMemoryRepository()
	}
	if deps.Notifier == nil {
		deps.Notifier = NopNotifier{}
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &Service{
		cfg:          cfg,
		emitter:      deps.Emitter,
		protocolOpts: deps.ProtocolOpts,
		selector:     deps.Selector,
		store:        deps.Store,
		repo:         deps.Repo,
		notifier:     deps.Notifier,
		renderer:     deps.Renderer,
		metrics:      deps.Metrics,
		logger:       deps.Logger,
	}, nil
}

// Start opens a new game. When the robot plays white its first move is scheduled immediately.
func (s *Service) Start(ctx context.Context, opts StartOptions) (*robotdto.SessionState, error) {
	preset := strings.TrimSpace(opts.Preset)
	if preset == "" {
		preset = s.cfg.DefaultPreset
	}
	if _, err := corechess.GetPreset(preset); err != nil {
		return nil, err
	}
	human := s.cfg.HumanColor
	if strings.TrimSpace(opts.HumanColor) != "" {
		c, err := parseColor(opts.HumanColor)
		if err != nil {
			return nil, err
		}
		human = c
	}

	s.mu.Lock()
	var replaced *robotdto.GameResult
	if s.active != nil && s.active.status == statusActive {
		if !opts.Replace {
			s.mu.Unlock()
			return nil, ErrSessionInProgress
		}
		old := s.active
		replaced = s.finishLocked(ctx, old, nchess.NoOutcome, "replaced", statusAborted)
		if pd := old.protocol.Pending(); pd != nil {
			pd.Cancel()
			// 버려진 세션의 파일은 새 세션의 Emit을 막는다
			if err := s.emitter.Remove(pd.Kind); err != nil {
				s.logger.Warn("Failed to remove abandoned robot file", zap.String("path", pd.Path), zap.Error(err))
			}
		}
		old.cancel()
	}
	if err := s.selector.NewGame(ctx); err != nil {
		s.logger.Warn("Failed to reset move selector", zap.Error(err))
	}
	if opts.Replace {
		if err := s.store.Delete(ctx, s.cfg.RobotID); err != nil {
			s.logger.Warn("Failed to discard saved robot session", zap.Error(err))
		}
	}
	now := time.Now()
	sess := s.newSession(uuid.NewString(), human, preset, nchess.NewGame(), storage.NewAllocator(), now)
	if err := s.store.Save(ctx, sess.snapshot(s.cfg.RobotID)); err != nil {
		sess.cancel()
		s.mu.Unlock()
		return nil, fmt.Errorf("save robot session: %w", err)
	}
	s.active = sess
	state := s.stateLocked(ctx, sess, false)
	s.mu.Unlock()

	if replaced != nil {
		s.notifier.GameOver(context.WithoutCancel(ctx), *replaced)
	}
	s.logger.Info("robot_session_start",
		zap.String("session_uuid", sess.uuid),
		zap.String("human_color", colorName(human)),
		zap.String("preset", preset),
	)
	s.reportStorage(sess)
	s.nextTurn(sess)
	return &state, nil
}

// Resume reloads the robot's saved session, re-arming a pending handshake if one was outstanding.
func (s *Service) Resume(ctx context.Context) (*robotdto.SessionState, error) {
	snap, err := s.store.Load(ctx, s.cfg.RobotID)
	if err != nil {
		return nil, fmt.Errorf("load robot session: %w", err)
	}
	if snap == nil || snap.Status != statusActive {
		return nil, ErrSessionNotFound
	}
	human, err := parseColor(snap.HumanColor)
	if err != nil {
		return nil, err
	}
	game := nchess.NewGame()
	sans := make([]string, 0, len(snap.Moves))
	for _, mv := range snap.Moves {
		pos := game.Position()
		move, err := nchess.UCINotation{}.Decode(pos, mv)
		if err != nil {
			return nil, fmt.Errorf("replay %s: %w", mv, err)
		}
		sans = append(sans, nchess.AlgebraicNotation{}.Encode(pos, move))
		if err := game.Move(move, nil); err != nil {
			return nil, fmt.Errorf("replay %s: %w", mv, err)
		}
	}
	alloc := storage.NewAllocator()
	if err := alloc.Restore(snap.Storage); err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.active != nil && s.active.status == statusActive {
		s.mu.Unlock()
		return nil, ErrSessionInProgress
	}
	sess := s.newSession(snap.SessionUUID, human, snap.Preset, game, alloc, snap.StartedAt)
	sess.movesUCI = append([]string(nil), snap.Moves...)
	sess.movesSAN = sans
	sess.handshakes = snap.Handshakes
	s.active = sess

	pendingRestored := false
	if snap.PendingFile != "" {
		kind, kerr := choreo.ParseKind(snap.PendingKind)
		if kerr != nil {
			s.mu.Unlock()
			return nil, kerr
		}
		if _, err := sess.protocol.Restore(kind, snap.PendingFile, s.continuation(sess)); err != nil {
			s.mu.Unlock()
			return nil, err
		}
		pendingRestored = true
	}
	state := s.stateLocked(ctx, sess, false)
	s.mu.Unlock()

	s.logger.Info("robot_session_resume",
		zap.String("session_uuid", state.SessionUUID),
		zap.Int("moves", state.MoveCount),
		zap.Bool("pending", pendingRestored),
	)
	if !pendingRestored {
		s.nextTurn(sess)
	}
	return &state, nil
}

// Submit plays the human's move. The move is only applied once its file has been written.
func (s *Service) Submit(ctx context.Context, raw string) (*robotdto.MoveStatus, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return nil, ErrInvalidMove
	}

	s.mu.Lock()
	sess, err := s.liveSessionLocked()
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	if sess.protocol.State() != handshake.StateIdle {
		s.mu.Unlock()
		s.reject(robotdto.CodeRobotBusy)
		return nil, ErrRobotBusy
	}
	if sess.game.Position().Turn() != sess.humanColor {
		s.mu.Unlock()
		s.reject(robotdto.CodeNotYourTurn)
		return nil, ErrNotHumanTurn
	}
	mv, err := decodeHumanMove(sess.game, text)
	if err != nil {
		s.mu.Unlock()
		s.reject(robotdto.CodeInvalidMove)
		return nil, err
	}
	out, err := s.playLocked(ctx, sess, mv, sideHuman)
	s.mu.Unlock()

	s.publish(sess.ctx, sess, out)
	if err != nil {
		return nil, err
	}
	return &out.status, nil
}

// Retry re-runs a robot turn that gave up, e.g. after the engine kept failing
// or the move file could not be written.
func (s *Service) Retry(ctx context.Context) (*robotdto.SessionState, error) {
	s.mu.Lock()
	sess, err := s.liveSessionLocked()
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	if sess.protocol.State() != handshake.StateIdle || sess.thinking {
		s.mu.Unlock()
		s.reject(robotdto.CodeRobotBusy)
		return nil, ErrRobotBusy
	}
	if sess.game.Position().Turn() == sess.humanColor {
		s.mu.Unlock()
		return nil, ErrNotRobotTurn
	}
	state := s.stateLocked(ctx, sess, false)
	s.mu.Unlock()

	s.logger.Info("robot_turn_retry", zap.String("session_uuid", state.SessionUUID))
	s.nextTurn(sess)
	return &state, nil
}

// Resign ends the game in the robot's favour and stops any pending wait.
func (s *Service) Resign(ctx context.Context) (*robotdto.GameResult, error) {
	s.mu.Lock()
	sess, err := s.liveSessionLocked()
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	outcome := nchess.WhiteWon
	if sess.humanColor == nchess.White {
		outcome = nchess.BlackWon
	}
	res := s.finishLocked(ctx, sess, outcome, "resignation", statusFinished)
	sess.protocol.Cancel()
	sess.cancel()
	s.mu.Unlock()

	s.notifier.GameOver(context.WithoutCancel(ctx), *res)
	return res, nil
}

// State returns the current session, optionally with a rendered workspace image.
func (s *Service) State(ctx context.Context, withImage bool) (*robotdto.SessionState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return nil, ErrSessionNotFound
	}
	st := s.stateLocked(ctx, s.active, withImage)
	return &st, nil
}

// RecentGames lists archived games for this robot, newest first.
func (s *Service) RecentGames(ctx context.Context, limit int) ([]*domain.RobotGame, error) {
	if limit <= 0 {
		limit = 5
	}
	return s.repo.GetRecentGames(ctx, s.cfg.RobotID, limit)
}

// Close abandons the active session without archiving it; the snapshot stays for Resume.
func (s *Service) Close() error {
	s.mu.Lock()
	sess := s.active
	s.active = nil
	s.mu.Unlock()
	if sess != nil {
		sess.protocol.Cancel()
		sess.cancel()
	}
	return s.selector.Close()
}

func (s *Service) newSession(id string, human nchess.Color, preset string, game *nchess.Game, alloc *storage.Allocator, startedAt time.Time) *activeSession {
	ctx, cancel := context.WithCancel(context.Background())
	sess := &activeSession{
		uuid:       id,
		humanColor: human,
		preset:     preset,
		status:     statusActive,
		game:       game,
		alloc:      alloc,
		startedAt:  startedAt,
		updatedAt:  time.Now(),
		ctx:        ctx,
		cancel:     cancel,
	}
	opts := append([]handshake.Option{}, s.protocolOpts...)
	opts = append(opts, handshake.WithTerminal(sess.finished.Load), handshake.WithLogger(s.logger))
	sess.protocol = handshake.NewProtocol(s.emitter, opts...)
	return sess
}

func (s *Service) liveSessionLocked() (*activeSession, error) {
	sess := s.active
	if sess == nil {
		return nil, ErrSessionNotFound
	}
	if sess.status != statusActive {
		return nil, ErrSessionFinished
	}
	return sess, nil
}

type playOutcome struct {
	status robotdto.MoveStatus
	result *robotdto.GameResult
	failed *robotdto.DomainError
}

// playLocked classifies, encodes and emits mv, then applies it to the game.
// Any failure before the file is written leaves the game and storage untouched.
func (s *Service) playLocked(ctx context.Context, sess *activeSession, mv *nchess.Move, side string) (playOutcome, error) {
	pos := sess.game.Position()
	uci := strings.ToLower(nchess.UCINotation{}.Encode(pos, mv))
	st := robotdto.MoveStatus{
		SessionUUID: sess.uuid,
		Side:        side,
		Color:       colorName(pos.Turn()),
		UCI:         uci,
		SAN:         nchess.AlgebraicNotation{}.Encode(pos, mv),
		MoveNumber:  len(sess.movesUCI) + 1,
	}

	cl, err := choreo.Classify(pos, mv, s.cfg.EnPassant)
	if err != nil {
		return s.failLocked(ctx, sess, st, err)
	}
	st.Kind = cl.Kind.String()
	// 슬롯은 사본에서 잡고 파일이 나간 뒤에 확정
	draft := sess.alloc.Clone()
	ch, err := choreo.NewChoreographer(draft).Encode(cl)
	if err != nil {
		return s.failLocked(ctx, sess, st, err)
	}
	st.Waypoints = ch.Strings()

	pending, err := sess.protocol.Emit(sess.ctx, cl.Kind, ch, s.continuation(sess))
	if err != nil {
		return s.failLocked(ctx, sess, st, err)
	}
	if err := sess.game.Move(mv, nil); err != nil {
		// 파일은 이미 나갔으므로 대기를 거두고 호출자에 알림
		pending.Cancel()
		return s.failLocked(ctx, sess, st, fmt.Errorf("%w: %v", ErrInvalidMove, err))
	}
	sess.alloc = draft

	st.File = pending.FileName()
	st.FEN = sess.game.FEN()
	for _, c := range pending.Result.Coordinates {
		st.Coordinates = append(st.Coordinates, c.Format())
	}
	sess.movesUCI = append(sess.movesUCI, uci)
	sess.movesSAN = append(sess.movesSAN, st.SAN)
	sess.handshakes++
	if cl.Kind == choreo.KindCapture || cl.Kind == choreo.KindCapturePromotion {
		sess.captures++
	}
	if cl.Kind == choreo.KindPromotion || cl.Kind == choreo.KindCapturePromotion {
		sess.captures++
		sess.queens++
	}
	sess.lastMove = st
	sess.lastPath = ch.Squares
	sess.updatedAt = time.Now()
	if s.metrics != nil {
		s.metrics.MoveEmitted(st.Kind, side)
	}

	out := playOutcome{status: st}
	if sess.game.Outcome() != nchess.NoOutcome {
		out.result = s.finishLocked(ctx, sess, sess.game.Outcome(), strings.ToLower(sess.game.Method().String()), statusFinished)
	} else {
		s.saveLocked(ctx, sess)
	}

	s.logger.Info("robot_move_emitted",
		zap.String("session_uuid", sess.uuid),
		zap.String("side", side),
		zap.String("uci", uci),
		zap.String("kind", st.Kind),
		zap.Strings("waypoints", st.Waypoints),
	)
	return out, nil
}

func (s *Service) failLocked(ctx context.Context, sess *activeSession, st robotdto.MoveStatus, err error) (playOutcome, error) {
	derr := toDomainError(err)
	out := playOutcome{status: st, failed: &derr}
	s.logger.Warn("Move not communicated to robot",
		zap.String("session_uuid", sess.uuid),
		zap.String("uci", st.UCI),
		zap.String("code", derr.Code),
		zap.Error(err),
	)
	if errors.Is(err, storage.ErrStorageExhausted) {
		out.result = s.finishLocked(ctx, sess, nchess.NoOutcome, "storage_exhausted", statusAborted)
	}
	return out, err
}

func (s *Service) publish(ctx context.Context, sess *activeSession, out playOutcome) {
	if out.failed != nil {
		s.reject(out.failed.Code)
		s.notifier.MoveFailed(ctx, out.status, *out.failed)
	} else {
		s.notifier.MoveAccepted(ctx, out.status)
		s.reportStorage(sess)
	}
	if out.result != nil {
		s.notifier.GameOver(ctx, *out.result)
	}
}

// continuation resumes the game once the robot has confirmed (or abandoned) the move.
func (s *Service) continuation(sess *activeSession) handshake.Continuation {
	return func(p *handshake.Pending, outcome handshake.Outcome) {
		ctx := context.WithoutCancel(sess.ctx)
		s.mu.Lock()
		if s.active != sess {
			s.mu.Unlock()
			return
		}
		last := sess.lastMove
		switch outcome {
		case handshake.OutcomeDeleted:
			if sess.status == statusActive {
				s.saveLocked(ctx, sess)
			}
			s.mu.Unlock()
			s.notifier.MoveExecuted(ctx, last)
			s.nextTurn(sess)

		case handshake.OutcomeTimedOut:
			var res *robotdto.GameResult
			if sess.status == statusActive {
				res = s.finishLocked(ctx, sess, nchess.NoOutcome, "handshake_timeout", statusAborted)
			}
			s.mu.Unlock()
			derr := robotdto.DomainError{Code: robotdto.CodeHandshakeTimeout, Message: fmt.Sprintf("robot did not confirm %s", p.FileName())}
			s.reject(derr.Code)
			s.notifier.MoveFailed(ctx, last, derr)
			if res != nil {
				s.notifier.GameOver(ctx, *res)
			}

		default:
			s.mu.Unlock()
		}
	}
}

// nextTurn prompts the human or lets the robot move.
func (s *Service) nextTurn(sess *activeSession) {
	s.mu.Lock()
	if s.active != sess || sess.status != statusActive {
		s.mu.Unlock()
		return
	}
	robotToMove := sess.game.Position().Turn() != sess.humanColor
	if robotToMove {
		if sess.thinking {
			s.mu.Unlock()
			return
		}
		sess.thinking = true
	}
	state := s.stateLocked(sess.ctx, sess, false)
	s.mu.Unlock()

	if robotToMove {
		go s.robotTurn(sess, 1)
		return
	}
	s.notifier.AwaitingHuman(sess.ctx, state)
}

func (s *Service) robotTurn(sess *activeSession, attempt int) {
	s.mu.Lock()
	if s.active != sess || sess.status != statusActive {
		sess.thinking = false
		s.mu.Unlock()
		return
	}
	moves := append([]string(nil), sess.movesUCI...)
	preset := sess.preset
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(sess.ctx, s.cfg.EngineTimeout)
	defer cancel()
	choice, err := s.selector.SelectMove(ctx, corechess.MoveRequest{PresetName: preset, Moves: moves})
	if err != nil {
		if sess.ctx.Err() != nil {
			return
		}
		if attempt < s.cfg.EngineAttempts {
			delay := s.engineBackoff(attempt)
			s.logger.Warn("Move selection failed, retrying",
				zap.String("session_uuid", sess.uuid),
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay),
				zap.Error(err),
			)
			time.AfterFunc(delay, func() { s.robotTurn(sess, attempt+1) })
			return
		}
		s.logger.Warn("Move selection failed", zap.String("session_uuid", sess.uuid), zap.Int("attempts", attempt), zap.Error(err))
		s.mu.Lock()
		sess.thinking = false
		s.mu.Unlock()
		derr := robotdto.DomainError{Code: robotdto.CodeEngine, Message: err.Error(), Retryable: true}
		s.reject(derr.Code)
		s.notifier.MoveFailed(sess.ctx, robotdto.MoveStatus{SessionUUID: sess.uuid, Side: sideRobot}, derr)
		return
	}

	s.mu.Lock()
	sess.thinking = false
	if s.active != sess || sess.status != statusActive || len(sess.movesUCI) != len(moves) {
		s.mu.Unlock()
		return
	}
	mv, err := decodeRobotMove(sess.game, choice.Move)
	if err != nil {
		s.mu.Unlock()
		s.logger.Warn("Engine proposed an illegal move", zap.String("move", choice.Move), zap.Error(err))
		derr := robotdto.DomainError{Code: robotdto.CodeEngine, Message: err.Error(), Retryable: true}
		s.reject(derr.Code)
		s.notifier.MoveFailed(sess.ctx, robotdto.MoveStatus{SessionUUID: sess.uuid, Side: sideRobot, UCI: choice.Move}, derr)
		return
	}
	out, _ := s.playLocked(sess.ctx, sess, mv, sideRobot)
	s.mu.Unlock()

	s.publish(sess.ctx, sess, out)
}

// engineBackoff doubles from EngineBackoff per attempt, capped.
func (s *Service) engineBackoff(attempt int) time.Duration {
	d := s.cfg.EngineBackoff
	for i := 1; i < attempt && d < maxEngineBackoff; i++ {
		d *= 2
	}
	return min(d, maxEngineBackoff)
}

func (s *Service) finishLocked(ctx context.Context, sess *activeSession, outcome nchess.Outcome, method string, status string) *robotdto.GameResult {
	sess.finished.Store(true)
	sess.status = status
	now := time.Now()

	res := &robotdto.GameResult{
		SessionUUID: sess.uuid,
		Outcome:     string(outcome),
		Method:      method,
		Winner:      winnerName(outcome, sess.humanColor),
		MoveCount:   len(sess.movesUCI),
		PGN:         sess.game.String(),
	}
	record := &domain.RobotGame{
		SessionUUID:    sess.uuid,
		RobotID:        s.cfg.RobotID,
		HumanColor:     colorName(sess.humanColor),
		Preset:         sess.preset,
		Result:         res.Outcome,
		ResultMethod:   method,
		MovesUCI:       append([]string(nil), sess.movesUCI...),
		MovesSAN:       append([]string(nil), sess.movesSAN...),
		PGN:            res.PGN,
		Handshakes:     sess.handshakes,
		CapturesStored: sess.captures,
		QueensStaged:   sess.queens,
		StartedAt:      sess.startedAt,
		EndedAt:        now,
		Duration:       now.Sub(sess.startedAt),
	}
	id, err := s.repo.InsertGame(ctx, record)
	if err != nil {
		s.logger.Warn("Failed to archive robot game", zap.String("session_uuid", sess.uuid), zap.Error(err))
	}
	res.GameID = id
	sess.result = res
	if err := s.store.Delete(ctx, s.cfg.RobotID); err != nil {
		s.logger.Warn("Failed to delete finished robot session", zap.Error(err))
	}
	s.logger.Info("robot_session_finish",
		zap.String("session_uuid", sess.uuid),
		zap.String("status", status),
		zap.String("outcome", res.Outcome),
		zap.String("method", method),
	)
	return res
}

func (s *Service) saveLocked(ctx context.Context, sess *activeSession) {
	if err := s.store.Save(ctx, sess.snapshot(s.cfg.RobotID)); err != nil {
		s.logger.Warn("Failed to save robot session", zap.String("session_uuid", sess.uuid), zap.Error(err))
	}
}

func (s *Service) stateLocked(ctx context.Context, sess *activeSession, withImage bool) robotdto.SessionState {
	st := robotdto.SessionState{
		SessionUUID: sess.uuid,
		RobotID:     s.cfg.RobotID,
		HumanColor:  colorName(sess.humanColor),
		Preset:      sess.preset,
		Status:      sess.status,
		Turn:        colorName(sess.game.Position().Turn()),
		FEN:         sess.game.FEN(),
		MovesUCI:    append([]string(nil), sess.movesUCI...),
		MovesSAN:    append([]string(nil), sess.movesSAN...),
		MoveCount:   len(sess.movesUCI),
		Handshake:   sess.protocol.State().String(),
		PendingFile: sess.protocol.PendingFile(),
		Storage:     storageLeft(sess.alloc),
	}
	if sess.result != nil {
		st.Outcome = sess.result.Outcome
		st.OutcomeMethod = sess.result.Method
	}
	if withImage && s.renderer != nil {
		img, err := s.renderer.RenderWorkspace(ctx, sess.game.Position(), sess.alloc.Snapshot(), sess.lastPath)
		if err != nil {
			s.logger.Warn("Failed to render workspace", zap.Error(err))
		} else {
			st.BoardImage = img
		}
	}
	return st
}

func (s *Service) reportStorage(sess *activeSession) {
	if s.metrics == nil {
		return
	}
	s.mu.Lock()
	left := storageLeft(sess.alloc)
	s.mu.Unlock()
	s.metrics.StorageRemaining("white", "capture", left.WhiteCapture)
	s.metrics.StorageRemaining("white", "queen", left.WhiteQueens)
	s.metrics.StorageRemaining("black", "capture", left.BlackCapture)
	s.metrics.StorageRemaining("black", "queen", left.BlackQueens)
}

func (s *Service) reject(code string) {
	if s.metrics != nil {
		s.metrics.MoveRejected(code)
	}
}

func (sess *activeSession) snapshot(robotID string) *Snapshot {
	snap := &Snapshot{
		SessionUUID: sess.uuid,
		RobotID:     robotID,
		HumanColor:  colorName(sess.humanColor),
		Preset:      sess.preset,
		Status:      sess.status,
		Moves:       append([]string(nil), sess.movesUCI...),
		Storage:     sess.alloc.Snapshot(),
		Handshakes:  sess.handshakes,
		StartedAt:   sess.startedAt,
		UpdatedAt:   sess.updatedAt,
	}
	if pd := sess.protocol.Pending(); pd != nil {
		snap.PendingKind = pd.Kind.String()
		snap.PendingFile = pd.Path
	}
	return snap
}

func storageLeft(a *storage.Allocator) robotdto.StorageLeft {
	var left robotdto.StorageLeft
	left.WhiteCapture, left.WhiteQueens = a.Remaining(nchess.White)
	left.BlackCapture, left.BlackQueens = a.Remaining(nchess.Black)
	return left
}

// decodeHumanMove accepts SAN or UCI and always promotes to a queen.
func decodeHumanMove(game *nchess.Game, text string) (*nchess.Move, error) {
	pos := game.Position()
	mv, err := nchess.AlgebraicNotation{}.Decode(pos, text)
	if err != nil {
		mv, err = nchess.UCINotation{}.Decode(pos, strings.ToLower(text))
	}
	if err == nil {
		if mv, err = queenPromotion(game, mv); err == nil && isLegal(game, mv) {
			return mv, nil
		}
	}
	// "e7e8" 처럼 승격 기물이 빠진 입력
	if lower := strings.ToLower(text); len(lower) == 4 {
		if mv, qerr := (nchess.UCINotation{}).Decode(pos, lower+"q"); qerr == nil && isLegal(game, mv) {
			return mv, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrInvalidMove, text)
}

// decodeRobotMove coerces engine underpromotions to a queen; only queens are staged.
func decodeRobotMove(game *nchess.Game, text string) (*nchess.Move, error) {
	mv, err := nchess.UCINotation{}.Decode(game.Position(), strings.ToLower(strings.TrimSpace(text)))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidMove, text)
	}
	mv, err = queenPromotion(game, mv)
	if err != nil {
		return nil, err
	}
	if !isLegal(game, mv) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidMove, text)
	}
	return mv, nil
}

func queenPromotion(game *nchess.Game, mv *nchess.Move) (*nchess.Move, error) {
	if mv.Promo() == nchess.NoPieceType || mv.Promo() == nchess.Queen {
		return mv, nil
	}
	pos := game.Position()
	uci := strings.ToLower(nchess.UCINotation{}.Encode(pos, mv))
	if len(uci) != 5 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidMove, uci)
	}
	return nchess.UCINotation{}.Decode(pos, uci[:4]+"q")
}

func isLegal(game *nchess.Game, mv *nchess.Move) bool {
	want := mv.String()
	for _, legal := range game.ValidMoves() {
		if legal.String() == want {
			return true
		}
	}
	return false
}

func toDomainError(err error) robotdto.DomainError {
	switch {
	case errors.Is(err, workspace.ErrUnrecognizedZone), errors.Is(err, workspace.ErrInvalidRow):
		return robotdto.DomainError{Code: robotdto.CodeUnrecognizedZone, Message: err.Error()}
	case errors.Is(err, storage.ErrStorageExhausted):
		return robotdto.DomainError{Code: robotdto.CodeStorageExhausted, Message: err.Error()}
	case errors.Is(err, emitter.ErrWriteFailure):
		return robotdto.DomainError{Code: robotdto.CodeWriteFailure, Message: err.Error(), Retryable: true}
	case errors.Is(err, handshake.ErrProtocolViolation):
		return robotdto.DomainError{Code: robotdto.CodeProtocolViolation, Message: err.Error()}
	case errors.Is(err, ErrInvalidMove), errors.Is(err, choreo.ErrUnsupportedPromotion):
		return robotdto.DomainError{Code: robotdto.CodeInvalidMove, Message: err.Error()}
	}
	return robotdto.DomainError{Code: robotdto.CodeInternal, Message: err.Error()}
}

// DomainErrorOf maps service errors for presenters.
func DomainErrorOf(err error) robotdto.DomainError {
	switch {
	case errors.Is(err, ErrSessionNotFound), errors.Is(err, ErrSessionFinished):
		return robotdto.DomainError{Code: robotdto.CodeNoSession, Message: err.Error()}
	case errors.Is(err, ErrNotHumanTurn), errors.Is(err, ErrNotRobotTurn):
		return robotdto.DomainError{Code: robotdto.CodeNotYourTurn, Message: err.Error()}
	case errors.Is(err, ErrRobotBusy):
		return robotdto.DomainError{Code: robotdto.CodeRobotBusy, Message: err.Error(), Retryable: true}
	}
	return toDomainError(err)
}

func parseColor(s string) (nchess.Color, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "white", "w":
		return nchess.White, nil
	case "black", "b":
		return nchess.Black, nil
	}
	return nchess.NoColor, fmt.Errorf("unknown color %q", s)
}

func colorName(c nchess.Color) string {
	switch c {
	case nchess.White:
		return "white"
	case nchess.Black:
		return "black"
	}
	return ""
}

func winnerName(outcome nchess.Outcome, human nchess.Color) string {
	switch outcome {
	case nchess.WhiteWon:
		if human == nchess.White {
			return sideHuman
		}
		return sideRobot
	case nchess.BlackWon:
		if human == nchess.Black {
			return sideHuman
		}
		return sideRobot
	case nchess.Draw:
		return "draw"
	}
	return ""
}

type NopNotifier struct{}

func (NopNotifier) MoveAccepted(context.Context, robotdto.MoveStatus)                     {}
func (NopNotifier) MoveExecuted(context.Context, robotdto.MoveStatus)                     {}
func (NopNotifier) MoveFailed(context.Context, robotdto.MoveStatus, robotdto.DomainError) {}
func (NopNotifier) AwaitingHuman(context.Context, robotdto.SessionState)                  {}
func (NopNotifier) GameOver(context.Context, robotdto.GameResult)                         {}
