package workspace

import (
	"fmt"
	"strings"
)

type Coordinate struct {
	X float64
	Y float64
	Z float64
}

// Format renders the coordinate the way the arm controller reads it.
func (c Coordinate) Format() string {
	return fmt.Sprintf("%.2f,%.2f,%.2f", c.X, c.Y, c.Z)
}

func (c Coordinate) String() string { return c.Format() }

// Mapper converts workspace squares into arm coordinates for one calibration.
type Mapper struct {
	cal Calibration
}

func NewMapper(cal Calibration) (*Mapper, error) {
	if err := cal.Validate(); err != nil {
		return nil, err
	}
	return &Mapper{cal: cal}, nil
}

func (m *Mapper) Calibration() Calibration { return m.cal }

func (m *Mapper) Map(sq Square) (Coordinate, error) {
	if sq.Row < MinRow || sq.Row > MaxRow {
		return Coordinate{}, fmt.Errorf("%w: %s", ErrInvalidRow, sq)
	}
	zone, idx, ok := ZoneOf(sq.Col)
	if !ok {
		return Coordinate{}, fmt.Errorf("%w: column %q", ErrUnrecognizedZone, sq.Col.String())
	}
	v := float64(sq.Row-1) / 7.0

	var p Point
	z := m.cal.StorageHeight
	switch zone {
	case ZoneMainBoard:
		b := m.cal.Board
		p = bilinear(b.A1, b.H1, b.A8, b.H8, float64(idx)/7.0, v)
		z = m.cal.BoardHeight
	case ZoneWhiteCaptureBin:
		p = binPoint(m.cal.WhiteCaptureBin, idx, v)
	case ZoneBlackCaptureBin:
		p = binPoint(m.cal.BlackCaptureBin, idx, v)
	case ZoneWhiteQueenSource:
		p = linear(m.cal.WhiteQueenSource.Row1, m.cal.WhiteQueenSource.Row8, v)
	case ZoneBlackQueenSource:
		p = linear(m.cal.BlackQueenSource.Row1, m.cal.BlackQueenSource.Row8, v)
	default:
		return Coordinate{}, fmt.Errorf("%w: column %q", ErrUnrecognizedZone, sq.Col.String())
	}
	return Coordinate{X: p.X, Y: p.Y, Z: z}, nil
}

// MapString parses and maps a square name such as "e4" or "k3".
func (m *Mapper) MapString(raw string) (Coordinate, error) {
	sq, err := ParseSquare(raw)
	if err != nil {
		return Coordinate{}, err
	}
	return m.Map(sq)
}

// MapAll maps every square or none.
func (m *Mapper) MapAll(squares []Square) ([]Coordinate, error) {
	out := make([]Coordinate, 0, len(squares))
	for i, sq := range squares {
		c, err := m.Map(sq)
		if err != nil {
			return nil, fmt.Errorf("waypoint %d: %w", i, err)
		}
		out = append(out, c)
	}
	return out, nil
}

// FormatAll renders coordinates one per line without a trailing newline.
func FormatAll(coords []Coordinate) string {
	lines := make([]string, len(coords))
	for i, c := range coords {
		lines[i] = c.Format()
	}
	return strings.Join(lines, "\n")
}

func binPoint(b BinCorners, idx int, v float64) Point {
	return bilinear(b.NearFirst, b.NearLast, b.FarFirst, b.FarLast, float64(idx)/1.0, v)
}

func bilinear(c00, c10, c01, c11 Point, u, v float64) Point {
	w00 := (1 - u) * (1 - v)
	w10 := u * (1 - v)
	w01 := (1 - u) * v
	w11 := u * v
	return Point{
		X: c00.X*w00 + c10.X*w10 + c01.X*w01 + c11.X*w11,
		Y: c00.Y*w00 + c10.Y*w10 + c01.Y*w01 + c11.Y*w11,
	}
}

func linear(start, end Point, v float64) Point {
	return Point{
		X: start.X*(1-v) + end.X*v,
		Y: start.Y*(1-v) + end.Y*v,
	}
}
