package robotpresenter

import (
	"errors"
	"fmt"
	"strings"

	"github.com/park285/cheese-robot-bridge/internal/domain"
	"github.com/park285/cheese-robot-bridge/internal/msgcat"
	"github.com/park285/cheese-robot-bridge/internal/service/robot"
	"github.com/park285/cheese-robot-bridge/pkg/robotdto"
)

// Formatter renders robot DTOs into chat/console text through the message catalog.
type Formatter struct {
	cat    *msgcat.Catalog
	prefix string
}

func NewFormatter(cat *msgcat.Catalog, prefix string) *Formatter {
	return &Formatter{cat: cat, prefix: strings.TrimSpace(prefix)}
}

func (f *Formatter) Prefix() string { return f.prefix }

func (f *Formatter) Start(state *robotdto.SessionState, resumed bool) string {
	if state == nil {
		return ""
	}
	if resumed {
		return f.cat.RenderOr("robot.resumed", state, "Resumed robot game "+state.SessionUUID)
	}
	return f.cat.RenderOr("robot.started", state, "Robot game "+state.SessionUUID+" started")
}

func (f *Formatter) YourTurn(state robotdto.SessionState) string {
	return f.cat.RenderOr("robot.your_turn", state, "Your move.")
}

func (f *Formatter) Accepted(st robotdto.MoveStatus) string {
	return f.cat.RenderOr("robot.accepted", st, fmt.Sprintf("%s %s sent to robot", st.Side, st.UCI))
}

func (f *Formatter) Executed(st robotdto.MoveStatus) string {
	return f.cat.RenderOr("robot.executed", st, "Robot finished "+st.UCI)
}

func (f *Formatter) Failed(st robotdto.MoveStatus, derr robotdto.DomainError) string {
	data := map[string]any{"UCI": st.UCI, "Code": derr.Code, "Message": derr.Message}
	return f.cat.RenderOr("robot.failed", data, "Move not communicated to robot: "+derr.Error())
}

func (f *Formatter) GameOver(res robotdto.GameResult) string {
	return f.cat.RenderOr("robot.game_over", res, "Game over: "+res.Outcome)
}

func (f *Formatter) Status(state *robotdto.SessionState) string {
	if state == nil {
		return f.Error(robot.ErrSessionNotFound, "")
	}
	return f.cat.RenderOr("robot.status", state, state.Status)
}

func (f *Formatter) History(games []*domain.RobotGame) string {
	if len(games) == 0 {
		return f.cat.RenderOr("robot.history_empty", nil, "No finished robot games yet.")
	}
	lines := make([]string, 0, len(games))
	for _, g := range games {
		data := map[string]any{
			"EndedAt":      g.EndedAt.Format("2006-01-02 15:04"),
			"Result":       g.Result,
			"ResultMethod": g.ResultMethod,
			"HumanColor":   g.HumanColor,
			"Moves":        len(g.MovesUCI),
		}
		lines = append(lines, f.cat.RenderOr("robot.history_line", data, g.SessionUUID+" "+g.Result))
	}
	return strings.Join(lines, "\n")
}

func (f *Formatter) Help() string {
	return f.cat.RenderOr("robot.help", map[string]any{"Prefix": f.prefix}, f.prefix+" start | <move> | status | resign")
}

// Error maps service errors onto user-facing text.
func (f *Formatter) Error(err error, input string) string {
	data := map[string]any{"Prefix": f.prefix, "Input": input, "Message": ""}
	if err != nil {
		data["Message"] = err.Error()
	}
	key := "robot.error.generic"
	switch {
	case errors.Is(err, robot.ErrSessionNotFound), errors.Is(err, robot.ErrSessionFinished):
		key = "robot.error.no_session"
	case errors.Is(err, robot.ErrRobotBusy):
		key = "robot.error.busy"
	case errors.Is(err, robot.ErrNotHumanTurn):
		key = "robot.error.not_your_turn"
	case errors.Is(err, robot.ErrNotRobotTurn):
		key = "robot.error.not_robot_turn"
	case errors.Is(err, robot.ErrInvalidMove):
		key = "robot.error.invalid_move"
	case errors.Is(err, robot.ErrSessionInProgress), errors.Is(err, robot.ErrSnapshotConflict):
		key = "robot.error.in_progress"
	default:
		derr := robot.DomainErrorOf(err)
		return f.Failed(robotdto.MoveStatus{UCI: input}, derr)
	}
	fallback := "error"
	if err != nil {
		fallback = err.Error()
	}
	return f.cat.RenderOr(key, data, fallback)
}
