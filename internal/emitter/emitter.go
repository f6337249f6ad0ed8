// Package emitter writes choreographies as coordinate files for the arm controller.
package emitter

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/park285/cheese-robot-bridge/internal/choreo"
	"github.com/park285/cheese-robot-bridge/internal/workspace"
	"go.uber.org/zap"
)

var (
	ErrWriteFailure = errors.New("robot file write failed")
	ErrEmptyChoreo  = errors.New("choreography has no waypoints")
)

// CoordinateMapper is satisfied by *workspace.Mapper.
type CoordinateMapper interface {
	Map(sq workspace.Square) (workspace.Coordinate, error)
}

type Result struct {
	Kind        choreo.Kind
	Path        string
	Coordinates []workspace.Coordinate
	Bytes       int
}

type FileEmitter struct {
	dir      string
	mapper   CoordinateMapper
	logger   *zap.Logger
	fileMode os.FileMode
	dirMode  os.FileMode
}

type Option func(*FileEmitter)

func WithLogger(l *zap.Logger) Option {
	return func(e *FileEmitter) {
		if l != nil {
			e.logger = l
		}
	}
}

func WithFileMode(m os.FileMode) Option {
	return func(e *FileEmitter) { e.fileMode = m }
}

func New(dir string, mapper CoordinateMapper, opts ...Option) *FileEmitter {
	e := &FileEmitter{
		dir:      strings.TrimSpace(dir),
		mapper:   mapper,
		logger:   zap.NewNop(),
		fileMode: 0o644,
		dirMode:  0o755,
	}
	if e.dir == "" {
		e.dir = "."
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *FileEmitter) Dir() string { return e.dir }

// PathFor is where a kind's file appears and where deletion is awaited.
func (e *FileEmitter) PathFor(kind choreo.Kind) string {
	return filepath.Join(e.dir, kind.FileName())
}

// Emit maps every waypoint before touching the disk so a bad square never
// leaves a partial file behind.
func (e *FileEmitter) Emit(kind choreo.Kind, ch choreo.Choreography) (Result, error) {
	if !kind.Valid() {
		return Result{}, fmt.Errorf("emit: unknown kind %s", kind)
	}
	if len(ch.Squares) == 0 {
		return Result{}, ErrEmptyChoreo
	}
	coords := make([]workspace.Coordinate, 0, len(ch.Squares))
	for i, sq := range ch.Squares {
		c, err := e.mapper.Map(sq)
		if err != nil {
			return Result{}, fmt.Errorf("emit %s waypoint %d: %w", kind, i, err)
		}
		coords = append(coords, c)
	}
	body := workspace.FormatAll(coords)

	path := e.PathFor(kind)
	if err := e.writeAtomic(path, []byte(body)); err != nil {
		e.logger.Warn("Failed to write robot file", zap.String("path", path), zap.Error(err))
		return Result{}, fmt.Errorf("%w: %s: %w", ErrWriteFailure, path, err)
	}
	e.logger.Debug("robot_file_written",
		zap.String("kind", kind.String()),
		zap.String("path", path),
		zap.Strings("squares", ch.Strings()),
	)
	return Result{Kind: kind, Path: path, Coordinates: coords, Bytes: len(body)}, nil
}

// Remove deletes a kind's file if present. Used when a session is abandoned.
func (e *FileEmitter) Remove(kind choreo.Kind) error {
	err := os.Remove(e.PathFor(kind))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (e *FileEmitter) writeAtomic(path string, data []byte) error {
	if err := os.MkdirAll(e.dir, e.dirMode); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}
	tmp, err := os.CreateTemp(e.dir, ".robot-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("write: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("sync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close: %w", err)
	}
	if err := os.Chmod(tmpName, e.fileMode); err != nil {
		cleanup()
		return fmt.Errorf("chmod: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}
