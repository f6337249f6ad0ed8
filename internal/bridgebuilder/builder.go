package bridgebuilder

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	nchess "github.com/corentings/chess/v2"
	_ "github.com/lib/pq"
	corechess "github.com/park285/cheese-robot-bridge/internal/chess"
	"github.com/park285/cheese-robot-bridge/internal/choreo"
	"github.com/park285/cheese-robot-bridge/internal/config"
	"github.com/park285/cheese-robot-bridge/internal/emitter"
	"github.com/park285/cheese-robot-bridge/internal/handshake"
	"github.com/park285/cheese-robot-bridge/internal/metrics"
	"github.com/park285/cheese-robot-bridge/internal/render"
	"github.com/park285/cheese-robot-bridge/internal/service/robot"
	"github.com/park285/cheese-robot-bridge/internal/workspace"
	"go.uber.org/zap"
)

type Deps struct {
	Service  *robot.Service
	Mapper   *workspace.Mapper
	Emitter  *emitter.FileEmitter
	Metrics  *metrics.Metrics
	Renderer *render.WorkspaceRenderer

	closers []func() error
}

// Close releases stores opened by New. The service itself is closed by the caller.
func (d *Deps) Close() error {
	var first error
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// New wires the bridge from configuration. notifier may be nil and set later via the presenter.
func New(cfg *config.AppConfig, notifier robot.Notifier, logger *zap.Logger) (*Deps, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Deps{}
	ok := false
	defer func() {
		if !ok {
			_ = d.Close()
		}
	}()

	cal := workspace.DefaultCalibration()
	if path := strings.TrimSpace(cfg.CalibrationFile); path != "" {
		loaded, err := workspace.LoadCalibration(path)
		if err != nil {
			return nil, fmt.Errorf("load calibration: %w", err)
		}
		cal = loaded
	}
	mapper, err := workspace.NewMapper(cal)
	if err != nil {
		return nil, err
	}
	d.Mapper = mapper
	d.Emitter = emitter.New(cfg.OutputDir, mapper, emitter.WithLogger(logger))
	d.Metrics = metrics.New()
	d.Renderer = render.NewWorkspaceRenderer()

	policy, err := choreo.ParseEnPassantPolicy(cfg.EnPassant)
	if err != nil {
		return nil, err
	}

	// Move selection: stockfish when configured, otherwise random legal moves
	var selector corechess.MoveSelector
	if strings.TrimSpace(cfg.StockfishPath) != "" {
		engine, err := corechess.NewEngine(cfg.StockfishPath, logger)
		if err != nil {
			return nil, fmt.Errorf("init engine: %w", err)
		}
		if cfg.EngineSeed != 0 {
			engine.SetRandomSeed(cfg.EngineSeed)
		}
		selector = engine
	} else {
		logger.Warn("STOCKFISH_PATH not set, robot plays random legal moves")
		selector = corechess.NewRandomSelector(cfg.EngineSeed)
	}

	// Snapshots (Redis optional)
	var store robot.SnapshotStore
	if strings.TrimSpace(cfg.RedisURL) != "" {
		rs, err := robot.NewRedisStore(cfg.RedisURL, time.Duration(cfg.SessionTTLSec)*time.Second)
		if err != nil {
			return nil, fmt.Errorf("init redis store: %w", err)
		}
		d.closers = append(d.closers, rs.Close)
		store = rs
	} else {
		store = robot.NewMemoryStore()
	}

	// Archive (postgres optional)
	var repo robot.Repository
	if strings.TrimSpace(cfg.DatabaseURL) != "" {
		db, err := openPostgres(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		d.closers = append(d.closers, db.Close)
		repo = robot.NewRepository(db)
	} else {
		repo = robot.NewMemoryRepository()
	}

	human := nchess.White
	if cfg.HumanColor == "black" {
		human = nchess.Black
	}

	popts := []handshake.Option{
		handshake.WithPollInterval(cfg.PollInterval),
		handshake.WithFSNotify(cfg.UseFSNotify),
		handshake.WithObserver(d.Metrics),
	}
	if cfg.WaitTimeout > 0 {
		popts = append(popts, handshake.WithTimeout(cfg.WaitTimeout, func(path string) {
			logger.Warn("Robot did not delete instruction file in time", zap.String("path", path), zap.Duration("timeout", cfg.WaitTimeout))
		}))
	}

	svc, err := robot.NewService(robot.Config{
		RobotID:       cfg.RobotID,
		DefaultPreset: cfg.ChessDefaultPreset,
		HumanColor:    human,
		EnPassant:     policy,
	}, robot.Deps{
		Emitter:      d.Emitter,
		ProtocolOpts: popts,
		Selector:     selector,
		Store:        store,
		Repo:         repo,
		Notifier:     notifier,
		Renderer:     d.Renderer,
		Metrics:      d.Metrics,
		Logger:       logger,
	})
	if err != nil {
		_ = selector.Close()
		return nil, err
	}
	d.Service = svc
	ok = true
	return d, nil
}

func openPostgres(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	// basic pool settings
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := robot.EnsureSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return db, nil
}
