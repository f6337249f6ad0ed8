package robot

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/park285/cheese-robot-bridge/internal/domain"
)

var ErrDuplicateGame = errors.New("robot game already archived")

type Repository interface {
	InsertGame(ctx context.Context, game *domain.RobotGame) (int64, error)
	GetRecentGames(ctx context.Context, robotID string, limit int) ([]*domain.RobotGame, error)
	GetGameBySession(ctx context.Context, sessionUUID string) (*domain.RobotGame, error)
}

const robotGamesSchema = `
	CREATE TABLE IF NOT EXISTS robot_games (
		id              BIGSERIAL PRIMARY KEY,
		session_uuid    TEXT NOT NULL UNIQUE,
		robot_id        TEXT NOT NULL,
		human_color     TEXT NOT NULL,
		preset          TEXT NOT NULL,
		result          TEXT NOT NULL,
		result_method   TEXT NOT NULL,
		moves_uci       TEXT[] NOT NULL,
		moves_san       TEXT[] NOT NULL,
		pgn             TEXT NOT NULL,
		handshakes      INTEGER NOT NULL DEFAULT 0,
		captures_stored INTEGER NOT NULL DEFAULT 0,
		queens_staged   INTEGER NOT NULL DEFAULT 0,
		started_at      TIMESTAMPTZ NOT NULL,
		ended_at        TIMESTAMPTZ NOT NULL,
		duration_ms     BIGINT
	);
	CREATE INDEX IF NOT EXISTS robot_games_robot_ended ON robot_games (robot_id, ended_at DESC)`

// gameColumns is shared by insert and select; order matches gameFields.
var gameColumns = []string{
	"session_uuid", "robot_id", "human_color", "preset", "result", "result_method",
	"moves_uci", "moves_san", "pgn", "handshakes", "captures_stored", "queens_staged",
	"started_at", "ended_at", "duration_ms",
}

var (
	insertGameSQL = buildInsert()
	selectGameSQL = "SELECT id, " + strings.Join(gameColumns, ", ") + " FROM robot_games"
)

func buildInsert() string {
	marks := make([]string, len(gameColumns))
	for i := range marks {
		marks[i] = "$" + strconv.Itoa(i+1)
	}
	return "INSERT INTO robot_games (" + strings.Join(gameColumns, ", ") + ") VALUES (" +
		strings.Join(marks, ", ") + ") ON CONFLICT (session_uuid) DO NOTHING RETURNING id"
}

type repository struct {
	db *sql.DB
}

// NewRepository archives finished games in postgres.
func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

// EnsureSchema creates the archive table when missing.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, robotGamesSchema); err != nil {
		return fmt.Errorf("create robot_games: %w", err)
	}
	return nil
}

// gameFields returns pointers (for Scan) or values (for Exec) in gameColumns order.
func gameFields(g *domain.RobotGame, durationMS *sql.NullInt64) []any {
	return []any{
		&g.SessionUUID, &g.RobotID, &g.HumanColor, &g.Preset, &g.Result, &g.ResultMethod,
		pq.Array(&g.MovesUCI), pq.Array(&g.MovesSAN), &g.PGN, &g.Handshakes, &g.CapturesStored, &g.QueensStaged,
		&g.StartedAt, &g.EndedAt, durationMS,
	}
}

func (r *repository) InsertGame(ctx context.Context, game *domain.RobotGame) (int64, error) {
	if game == nil {
		return 0, errors.New("nil robot game payload")
	}
	g := *game
	if g.MovesUCI == nil {
		g.MovesUCI = []string{}
	}
	if g.MovesSAN == nil {
		g.MovesSAN = []string{}
	}
	dur := sql.NullInt64{Int64: g.Duration.Milliseconds(), Valid: true}
	args := gameFields(&g, &dur)
	for i, a := range args {
		args[i] = deref(a)
	}

	var id int64
	err := r.db.QueryRowContext(ctx, insertGameSQL, args...).Scan(&id)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return 0, ErrDuplicateGame
	case err != nil:
		return 0, fmt.Errorf("insert robot game: %w", err)
	}
	return id, nil
}

// deref turns a Scan destination into an Exec argument. pq.Array wrappers are
// both Scanner and Valuer and pass through unchanged.
func deref(p any) any {
	switch v := p.(type) {
	case *string:
		return *v
	case *int:
		return *v
	case *time.Time:
		return *v
	case *sql.NullInt64:
		return *v
	}
	return p
}

func (r *repository) GetRecentGames(ctx context.Context, robotID string, limit int) ([]*domain.RobotGame, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := r.db.QueryContext(ctx, selectGameSQL+" WHERE robot_id = $1 ORDER BY ended_at DESC LIMIT $2", robotID, limit)
	if err != nil {
		return nil, fmt.Errorf("select robot games: %w", err)
	}
	defer rows.Close()

	games := make([]*domain.RobotGame, 0, limit)
	for rows.Next() {
		game, err := scanGame(rows)
		if err != nil {
			return nil, err
		}
		games = append(games, game)
	}
	return games, rows.Err()
}

// GetGameBySession returns nil, nil when the session was never archived.
func (r *repository) GetGameBySession(ctx context.Context, sessionUUID string) (*domain.RobotGame, error) {
	game, err := scanGame(r.db.QueryRowContext(ctx, selectGameSQL+" WHERE session_uuid = $1", sessionUUID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return game, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGame(row rowScanner) (*domain.RobotGame, error) {
	var (
		game domain.RobotGame
		dur  sql.NullInt64
	)
	dest := append([]any{&game.ID}, gameFields(&game, &dur)...)
	if err := row.Scan(dest...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan robot game: %w", err)
	}
	if dur.Valid {
		game.Duration = time.Duration(dur.Int64) * time.Millisecond
	}
	return &game, nil
}
