package workspace

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func newTestMapper(t *testing.T) *Mapper {
	t.Helper()
	m, err := NewMapper(DefaultCalibration())
	if err != nil {
		t.Fatalf("new mapper: %v", err)
	}
	return m
}

func TestMapBoardCornersAreExact(t *testing.T) {
	m := newTestMapper(t)
	cal := DefaultCalibration()
	cases := map[string]Point{
		"a1": cal.Board.A1,
		"h1": cal.Board.H1,
		"a8": cal.Board.A8,
		"h8": cal.Board.H8,
	}
	for name, want := range cases {
		got, err := m.MapString(name)
		if err != nil {
			t.Fatalf("map %s: %v", name, err)
		}
		if got.X != want.X || got.Y != want.Y || got.Z != cal.BoardHeight {
			t.Fatalf("map %s = %+v, want %+v z=%v", name, got, want, cal.BoardHeight)
		}
	}
}

func TestMapStorageZones(t *testing.T) {
	m := newTestMapper(t)
	cases := map[string]string{
		"i1": "411.00,854.00,118.00",
		"j1": "365.00,844.00,118.00",
		"i8": "411.00,556.00,118.00",
		"j8": "365.00,561.00,118.00",
		"l1": "-172.00,859.00,118.00",
		"m8": "-222.00,575.00,118.00",
		"k1": "464.00,846.00,118.00",
		"k4": "464.00,721.29,118.00",
		"k8": "464.00,555.00,118.00",
		"n1": "-269.00,857.00,118.00",
		"n8": "-269.00,577.00,118.00",
	}
	for name, want := range cases {
		got, err := m.MapString(name)
		if err != nil {
			t.Fatalf("map %s: %v", name, err)
		}
		if got.Format() != want {
			t.Fatalf("map %s = %s, want %s", name, got.Format(), want)
		}
	}
}

func TestMapInteriorSquares(t *testing.T) {
	m := newTestMapper(t)
	e2, err := m.MapString("e2")
	if err != nil {
		t.Fatalf("map e2: %v", err)
	}
	if e2.Format() != "73.29,807.12,143.00" {
		t.Fatalf("e2 = %s", e2.Format())
	}
	e4, err := m.MapString("e4")
	if err != nil {
		t.Fatalf("map e4: %v", err)
	}
	if e4.Format() != "70.86,730.37,143.00" {
		t.Fatalf("e4 = %s", e4.Format())
	}
}

func TestMapBoardIsMonotone(t *testing.T) {
	m := newTestMapper(t)
	board := ZoneMainBoard.Columns()
	for row := MinRow; row <= MaxRow; row++ {
		prev, _ := m.Map(Sq(board[0], row))
		for _, col := range board[1:] {
			cur, err := m.Map(Sq(col, row))
			if err != nil {
				t.Fatalf("map %c%d: %v", col, row, err)
			}
			if !(cur.X < prev.X) {
				t.Fatalf("x not decreasing along row %d at %c: %v -> %v", row, col, prev.X, cur.X)
			}
			prev = cur
		}
	}
	for _, col := range board {
		prev, _ := m.Map(Sq(col, MinRow))
		for row := MinRow + 1; row <= MaxRow; row++ {
			cur, err := m.Map(Sq(col, row))
			if err != nil {
				t.Fatalf("map %c%d: %v", col, row, err)
			}
			if !(cur.Y < prev.Y) {
				t.Fatalf("y not decreasing along column %c at %d: %v -> %v", col, row, prev.Y, cur.Y)
			}
			prev = cur
		}
	}
}

func TestMapRejectsUnknownColumn(t *testing.T) {
	m := newTestMapper(t)
	if _, err := m.Map(Sq('z', 3)); !errors.Is(err, ErrUnrecognizedZone) {
		t.Fatalf("expected ErrUnrecognizedZone, got %v", err)
	}
	if _, err := m.MapString("o4"); !errors.Is(err, ErrUnrecognizedZone) {
		t.Fatalf("expected ErrUnrecognizedZone for o4, got %v", err)
	}
	if _, err := m.Map(Sq(ColE, 9)); !errors.Is(err, ErrInvalidRow) {
		t.Fatalf("expected ErrInvalidRow, got %v", err)
	}
}

func TestMapAllIsAllOrNothing(t *testing.T) {
	m := newTestMapper(t)
	coords, err := m.MapAll([]Square{Sq(ColE, 2), Sq('x', 1), Sq(ColE, 4)})
	if !errors.Is(err, ErrUnrecognizedZone) {
		t.Fatalf("expected ErrUnrecognizedZone, got %v", err)
	}
	if coords != nil {
		t.Fatalf("expected no coordinates, got %v", coords)
	}
}

func TestFormatAllHasNoTrailingNewline(t *testing.T) {
	got := FormatAll([]Coordinate{{1, 2, 3}, {4.25, -5.5, 6}})
	if got != "1.00,2.00,3.00\n4.25,-5.50,6.00" {
		t.Fatalf("unexpected format %q", got)
	}
}

func TestLoadCalibrationOverlaysDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cal.yaml")
	body := "board_height: 150.5\nwhite_queen_source:\n  row1: { x: 470, y: 846 }\n  row8: { x: 470, y: 555 }\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cal, err := LoadCalibration(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cal.BoardHeight != 150.5 {
		t.Fatalf("board height = %v", cal.BoardHeight)
	}
	if cal.WhiteQueenSource.Row1.X != 470 {
		t.Fatalf("queen source not overlaid: %+v", cal.WhiteQueenSource)
	}
	if cal.Board.A1 != DefaultCalibration().Board.A1 {
		t.Fatalf("board corners should keep defaults: %+v", cal.Board)
	}
}

func TestValidateRejectsDegenerateCorners(t *testing.T) {
	cal := DefaultCalibration()
	cal.Board.H1 = cal.Board.A1
	if _, err := NewMapper(cal); !errors.Is(err, ErrInvalidCalibration) {
		t.Fatalf("expected ErrInvalidCalibration, got %v", err)
	}
	cal = DefaultCalibration()
	cal.BlackQueenSource.Row8 = cal.BlackQueenSource.Row1
	if err := cal.Validate(); !errors.Is(err, ErrInvalidCalibration) {
		t.Fatalf("expected ErrInvalidCalibration, got %v", err)
	}
}
