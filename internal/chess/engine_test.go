package chess

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	nchess "github.com/corentings/chess/v2"
)

func TestGetPresetAliases(t *testing.T) {
	p, err := GetPreset("Intermediate")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if p.Name != "level5" {
		t.Fatalf("alias resolved to %s", p.Name)
	}
	if _, err := GetPreset("grandmaster"); err == nil {
		t.Fatalf("expected unknown preset error")
	}
	for _, name := range PresetNames() {
		p, _ := GetPreset(name)
		if err := ValidatePreset(p); err != nil {
			t.Fatalf("%s invalid: %v", name, err)
		}
	}
}

func TestFormatGoCommand(t *testing.T) {
	p, _ := GetPreset("level3")
	got, err := FormatGoCommand(p)
	if err != nil {
		t.Fatalf("format: %v", err)
	}
	if got != "go depth 8 movetime 80" {
		t.Fatalf("got %q", got)
	}
	p.DepthCap, p.MoveTimeMillis = 0, 0
	if _, err := BuildGoCommand(p); err == nil {
		t.Fatalf("expected error for preset without limits")
	}
}

func TestSelectCandidateRespectsPrimaryChoices(t *testing.T) {
	p, _ := GetPreset("level6")
	cands := []Candidate{{Move: "e2e4"}, {Move: "d2d4"}, {Move: "a2a3"}}
	r := rand.New(rand.NewSource(7))
	for i := 0; i < 200; i++ {
		got, err := SelectCandidate(p, cands, r)
		if err != nil {
			t.Fatalf("select: %v", err)
		}
		if got.Move == "a2a3" {
			t.Fatalf("picked candidate outside primary choices")
		}
	}
	if _, err := SelectCandidate(p, nil, r); err == nil {
		t.Fatalf("expected error for empty candidates")
	}
}

func TestRandomSelectorPlaysLegalMoves(t *testing.T) {
	sel := NewRandomSelector(42)
	history := []string{"e2e4", "e7e5"}
	choice, err := sel.SelectMove(context.Background(), MoveRequest{Moves: history})
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	game := nchess.NewGame()
	for _, mv := range append(history, choice.Move) {
		if err := game.PushNotationMove(mv, nchess.UCINotation{}, nil); err != nil {
			t.Fatalf("illegal move %s: %v", mv, err)
		}
	}
	if choice.Source != "random" {
		t.Fatalf("source = %s", choice.Source)
	}
}

func TestRandomSelectorReportsMate(t *testing.T) {
	sel := NewRandomSelector(1)
	// fool's mate
	_, err := sel.SelectMove(context.Background(), MoveRequest{Moves: []string{"f2f3", "e7e5", "g2g4", "d8h4"}})
	if !errors.Is(err, ErrNoLegalMove) {
		t.Fatalf("expected ErrNoLegalMove, got %v", err)
	}
}

func TestNewEngineRequiresBinary(t *testing.T) {
	if _, err := NewEngine("/nonexistent/stockfish", nil); !errors.Is(err, ErrEngineUnavailable) {
		t.Fatalf("expected ErrEngineUnavailable, got %v", err)
	}
}
