package workspace

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrUnrecognizedZone = errors.New("unrecognized workspace zone")
	ErrInvalidRow       = errors.New("workspace row out of range")
)

const (
	MinRow = 1
	MaxRow = 8
)

// Column is one of the 14 column symbols spanning the board and the side storage.
type Column byte

const (
	ColA Column = 'a'
	ColB Column = 'b'
	ColC Column = 'c'
	ColD Column = 'd'
	ColE Column = 'e'
	ColF Column = 'f'
	ColG Column = 'g'
	ColH Column = 'h'
	ColI Column = 'i'
	ColJ Column = 'j'
	ColK Column = 'k'
	ColL Column = 'l'
	ColM Column = 'm'
	ColN Column = 'n'
)

func (c Column) String() string { return string(rune(c)) }

type Zone int

const (
	ZoneUnknown Zone = iota
	ZoneMainBoard
	ZoneWhiteCaptureBin
	ZoneBlackCaptureBin
	ZoneWhiteQueenSource
	ZoneBlackQueenSource
)

var zoneNames = map[Zone]string{
	ZoneMainBoard:        "main_board",
	ZoneWhiteCaptureBin:  "white_capture_bin",
	ZoneBlackCaptureBin:  "black_capture_bin",
	ZoneWhiteQueenSource: "white_queen_source",
	ZoneBlackQueenSource: "black_queen_source",
}

func (z Zone) String() string {
	if s, ok := zoneNames[z]; ok {
		return s
	}
	return "unknown"
}

// Zones lists every configured zone in a stable order.
func Zones() []Zone {
	return []Zone{ZoneMainBoard, ZoneWhiteCaptureBin, ZoneBlackCaptureBin, ZoneWhiteQueenSource, ZoneBlackQueenSource}
}

// ZoneOf resolves the zone owning a column and the column's index inside that zone.
func ZoneOf(c Column) (Zone, int, bool) {
	switch {
	case c >= ColA && c <= ColH:
		return ZoneMainBoard, int(c - ColA), true
	case c == ColI || c == ColJ:
		return ZoneWhiteCaptureBin, int(c - ColI), true
	case c == ColL || c == ColM:
		return ZoneBlackCaptureBin, int(c - ColL), true
	case c == ColK:
		return ZoneWhiteQueenSource, 0, true
	case c == ColN:
		return ZoneBlackQueenSource, 0, true
	}
	return ZoneUnknown, 0, false
}

// Columns returns the columns of a zone, left to right.
func (z Zone) Columns() []Column {
	switch z {
	case ZoneMainBoard:
		return []Column{ColA, ColB, ColC, ColD, ColE, ColF, ColG, ColH}
	case ZoneWhiteCaptureBin:
		return []Column{ColI, ColJ}
	case ZoneBlackCaptureBin:
		return []Column{ColL, ColM}
	case ZoneWhiteQueenSource:
		return []Column{ColK}
	case ZoneBlackQueenSource:
		return []Column{ColN}
	}
	return nil
}

type Square struct {
	Col Column
	Row int
}

func Sq(col Column, row int) Square { return Square{Col: col, Row: row} }

func (s Square) String() string {
	return s.Col.String() + strconv.Itoa(s.Row)
}

func (s Square) Zone() Zone {
	z, _, _ := ZoneOf(s.Col)
	return z
}

func (s Square) IsZero() bool { return s.Col == 0 && s.Row == 0 }

func ParseSquare(raw string) (Square, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if len(s) < 2 {
		return Square{}, fmt.Errorf("%w: %q", ErrUnrecognizedZone, raw)
	}
	col := Column(s[0])
	if _, _, ok := ZoneOf(col); !ok {
		return Square{}, fmt.Errorf("%w: column %q", ErrUnrecognizedZone, string(s[0]))
	}
	// 행은 한 자리 숫자만
	if len(s) != 2 || s[1] < '0' || s[1] > '9' {
		return Square{}, fmt.Errorf("%w: %q", ErrInvalidRow, raw)
	}
	row := int(s[1] - '0')
	if row < MinRow || row > MaxRow {
		return Square{}, fmt.Errorf("%w: %q", ErrInvalidRow, raw)
	}
	return Square{Col: col, Row: row}, nil
}

func MustParseSquare(raw string) Square {
	sq, err := ParseSquare(raw)
	if err != nil {
		panic(err)
	}
	return sq
}
