package workspace

import (
	_ "embed"
	"errors"
	"fmt"
	"math"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed calibration.default.yaml
var defaultCalibrationYAML []byte

var ErrInvalidCalibration = errors.New("invalid workspace calibration")

type Point struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
}

func (p Point) finite() bool {
	return !math.IsNaN(p.X) && !math.IsNaN(p.Y) && !math.IsInf(p.X, 0) && !math.IsInf(p.Y, 0)
}

// BoardCorners holds the four calibrated outer squares of the playing surface.
type BoardCorners struct {
	A1 Point `yaml:"a1"`
	H1 Point `yaml:"h1"`
	A8 Point `yaml:"a8"`
	H8 Point `yaml:"h8"`
}

// BinCorners holds the corners of a two-column capture bin. "near" is row 1,
// "first" is the column closest to the board edge listed first (i or l).
type BinCorners struct {
	NearFirst Point `yaml:"near_first"`
	NearLast  Point `yaml:"near_last"`
	FarFirst  Point `yaml:"far_first"`
	FarLast   Point `yaml:"far_last"`
}

type ColumnEnds struct {
	Row1 Point `yaml:"row1"`
	Row8 Point `yaml:"row8"`
}

type Calibration struct {
	Board            BoardCorners `yaml:"board"`
	WhiteCaptureBin  BinCorners   `yaml:"white_capture_bin"`
	BlackCaptureBin  BinCorners   `yaml:"black_capture_bin"`
	WhiteQueenSource ColumnEnds   `yaml:"white_queen_source"`
	BlackQueenSource ColumnEnds   `yaml:"black_queen_source"`
	BoardHeight      float64      `yaml:"board_height"`
	StorageHeight    float64      `yaml:"storage_height"`
}

// DefaultCalibration returns the factory calibration.
func DefaultCalibration() Calibration {
	var cal Calibration
	if err := yaml.Unmarshal(defaultCalibrationYAML, &cal); err != nil {
		panic(fmt.Sprintf("workspace: embedded calibration: %v", err))
	}
	return cal
}

// LoadCalibration overlays the yaml file at path on the factory calibration.
// An empty path returns the defaults.
func LoadCalibration(path string) (Calibration, error) {
	cal := DefaultCalibration()
	path = strings.TrimSpace(path)
	if path == "" {
		return cal, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Calibration{}, fmt.Errorf("read calibration %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &cal); err != nil {
		return Calibration{}, fmt.Errorf("parse calibration %s: %w", path, err)
	}
	if err := cal.Validate(); err != nil {
		return Calibration{}, err
	}
	return cal, nil
}

func (c Calibration) Validate() error {
	quads := map[string][4]Point{
		"board":             {c.Board.A1, c.Board.H1, c.Board.A8, c.Board.H8},
		"white_capture_bin": {c.WhiteCaptureBin.NearFirst, c.WhiteCaptureBin.NearLast, c.WhiteCaptureBin.FarFirst, c.WhiteCaptureBin.FarLast},
		"black_capture_bin": {c.BlackCaptureBin.NearFirst, c.BlackCaptureBin.NearLast, c.BlackCaptureBin.FarFirst, c.BlackCaptureBin.FarLast},
	}
	for name, q := range quads {
		for _, p := range q {
			if !p.finite() {
				return fmt.Errorf("%w: %s has a non-finite corner", ErrInvalidCalibration, name)
			}
		}
		// 행 방향, 열 방향 모두 길이가 있어야 보간이 의미 있음
		if q[0] == q[1] || q[0] == q[2] {
			return fmt.Errorf("%w: %s has coincident corners", ErrInvalidCalibration, name)
		}
	}
	lines := map[string]ColumnEnds{
		"white_queen_source": c.WhiteQueenSource,
		"black_queen_source": c.BlackQueenSource,
	}
	for name, l := range lines {
		if !l.Row1.finite() || !l.Row8.finite() {
			return fmt.Errorf("%w: %s has a non-finite end", ErrInvalidCalibration, name)
		}
		if l.Row1 == l.Row8 {
			return fmt.Errorf("%w: %s has coincident ends", ErrInvalidCalibration, name)
		}
	}
	if math.IsNaN(c.BoardHeight) || math.IsInf(c.BoardHeight, 0) || math.IsNaN(c.StorageHeight) || math.IsInf(c.StorageHeight, 0) {
		return fmt.Errorf("%w: non-finite height", ErrInvalidCalibration)
	}
	return nil
}
