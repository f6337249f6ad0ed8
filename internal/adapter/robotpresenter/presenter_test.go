package robotpresenter

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/park285/cheese-robot-bridge/internal/domain"
	"github.com/park285/cheese-robot-bridge/internal/msgcat"
	"github.com/park285/cheese-robot-bridge/internal/service/robot"
	"github.com/park285/cheese-robot-bridge/pkg/robotdto"
)

func newFormatter(t *testing.T) *Formatter {
	t.Helper()
	cat, err := msgcat.New("")
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	return NewFormatter(cat, "!robot")
}

func TestPresenterForwardsNotifications(t *testing.T) {
	var out bytes.Buffer
	sink := &ConsoleSink{Out: &out, Dir: t.TempDir()}
	p := NewPresenter(sink, newFormatter(t), nil)
	ctx := context.Background()

	p.MoveAccepted(ctx, robotdto.MoveStatus{Side: "human", SAN: "e4", UCI: "e2e4", File: "move.txt", Waypoints: []string{"e2", "e4"}})
	p.MoveExecuted(ctx, robotdto.MoveStatus{SAN: "e4"})
	p.MoveFailed(ctx, robotdto.MoveStatus{UCI: "h7h8q"}, robotdto.DomainError{Code: robotdto.CodeStorageExhausted, Message: "no queens"})
	p.GameOver(ctx, robotdto.GameResult{Outcome: "1-0", Method: "checkmate", Winner: "human", MoveCount: 31})
	p.Board(ctx, "", &robotdto.SessionState{BoardImage: []byte{0x89, 'P', 'N', 'G'}})

	text := out.String()
	for _, want := range []string{
		"sent to robot as move.txt: e2 -> e4",
		"Robot finished e4.",
		"[STORAGE_EXHAUSTED]",
		"Game over: 1-0 by checkmate (winner: human) after 31 moves.",
		"workspace-001.png",
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("missing %q in:\n%s", want, text)
		}
	}
	if _, err := os.Stat(sink.Dir + "/workspace-001.png"); err != nil {
		t.Fatalf("image not written: %v", err)
	}
}

func TestFormatterErrors(t *testing.T) {
	f := newFormatter(t)
	cases := map[error]string{
		robot.ErrSessionNotFound:                          `Use "!robot start"`,
		robot.ErrRobotBusy:                                "still executing",
		robot.ErrNotHumanTurn:                             "robot's turn",
		robot.ErrNotRobotTurn:                             "waiting for your move",
		fmt.Errorf("%w: e5", robot.ErrInvalidMove):        "Illegal move: e5",
		fmt.Errorf("save: %w", robot.ErrSnapshotConflict): "already running",
	}
	for err, want := range cases {
		if got := f.Error(err, "e5"); !strings.Contains(got, want) {
			t.Fatalf("Error(%v) = %q, want substring %q", err, got, want)
		}
	}
}

func TestFormatterHistory(t *testing.T) {
	f := newFormatter(t)
	if got := f.History(nil); !strings.Contains(got, "No finished") {
		t.Fatalf("empty history = %q", got)
	}
	games := []*domain.RobotGame{{
		SessionUUID:  "s-1",
		Result:       "0-1",
		ResultMethod: "resignation",
		HumanColor:   "white",
		MovesUCI:     []string{"e2e4", "e7e5"},
		EndedAt:      time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC),
	}}
	got := f.History(games)
	if !strings.Contains(got, "2026-10-01 12:00 0-1 (resignation)") || !strings.Contains(got, "2 moves") {
		t.Fatalf("history = %q", got)
	}
}
