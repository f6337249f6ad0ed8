package workspace

import (
	"errors"
	"testing"
)

func TestZoneOfPartitionsColumns(t *testing.T) {
	seen := map[Column]Zone{}
	for _, z := range Zones() {
		for _, c := range z.Columns() {
			if prev, ok := seen[c]; ok {
				t.Fatalf("column %s in both %s and %s", c, prev, z)
			}
			seen[c] = z
			got, _, ok := ZoneOf(c)
			if !ok || got != z {
				t.Fatalf("ZoneOf(%s) = %s, want %s", c, got, z)
			}
		}
	}
	if len(seen) != 14 {
		t.Fatalf("expected 14 columns, got %d", len(seen))
	}
}

func TestParseSquare(t *testing.T) {
	sq, err := ParseSquare(" K3 ")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if sq != Sq(ColK, 3) || sq.String() != "k3" || sq.Zone() != ZoneWhiteQueenSource {
		t.Fatalf("unexpected square %+v", sq)
	}
	if _, err := ParseSquare("p2"); !errors.Is(err, ErrUnrecognizedZone) {
		t.Fatalf("expected ErrUnrecognizedZone, got %v", err)
	}
	if _, err := ParseSquare("a0"); !errors.Is(err, ErrInvalidRow) {
		t.Fatalf("expected ErrInvalidRow, got %v", err)
	}
	if _, err := ParseSquare("a"); !errors.Is(err, ErrUnrecognizedZone) {
		t.Fatalf("expected ErrUnrecognizedZone for short input, got %v", err)
	}
	for _, raw := range []string{"e+4", "e04", "e9", "e10", "e 4", "e-1"} {
		if _, err := ParseSquare(raw); !errors.Is(err, ErrInvalidRow) {
			t.Fatalf("ParseSquare(%q): expected ErrInvalidRow, got %v", raw, err)
		}
	}
}
