package main

import (
	"context"
	"strings"

	"github.com/park285/cheese-robot-bridge/internal/adapter/robotpresenter"
	"github.com/park285/cheese-robot-bridge/internal/service/robot"
	"go.uber.org/zap"
)

// handler turns one line of user input into a service call.
type handler struct {
	svc          *robot.Service
	presenter    *robotpresenter.Presenter
	historyLimit int
	logger       *zap.Logger
}

func (h *handler) handle(ctx context.Context, line string) {
	args := strings.Fields(strings.TrimSpace(line))
	if len(args) == 0 {
		return
	}
	f := h.presenter.Formatter()
	cmd := strings.ToLower(args[0])
	switch cmd {
	case "help", "?":
		h.presenter.Say(ctx, f.Help())

	case "start", "new":
		opts := robot.StartOptions{}
		for _, a := range args[1:] {
			switch lower := strings.ToLower(a); lower {
			case "white", "black":
				opts.HumanColor = lower
			case "force", "replace":
				opts.Replace = true
			default:
				opts.Preset = lower
			}
		}
		state, err := h.svc.Start(ctx, opts)
		if err != nil {
			h.fail(ctx, err, "")
			return
		}
		h.presenter.Say(ctx, f.Start(state, false))

	case "resume":
		state, err := h.svc.Resume(ctx)
		if err != nil {
			h.fail(ctx, err, "")
			return
		}
		h.presenter.Say(ctx, f.Start(state, true))

	case "retry":
		state, err := h.svc.Retry(ctx)
		if err != nil {
			h.fail(ctx, err, "")
			return
		}
		h.presenter.Say(ctx, f.Status(state))

	case "status", "state":
		state, err := h.svc.State(ctx, false)
		if err != nil {
			h.fail(ctx, err, "")
			return
		}
		h.presenter.Say(ctx, f.Status(state))

	case "board":
		state, err := h.svc.State(ctx, true)
		if err != nil {
			h.fail(ctx, err, "")
			return
		}
		h.presenter.Board(ctx, f.Status(state), state)

	case "resign":
		if _, err := h.svc.Resign(ctx); err != nil {
			h.fail(ctx, err, "")
		}

	case "history":
		games, err := h.svc.RecentGames(ctx, h.historyLimit)
		if err != nil {
			h.fail(ctx, err, "")
			return
		}
		h.presenter.Say(ctx, f.History(games))

	default:
		// 명령이 아니면 수로 해석
		if _, err := h.svc.Submit(ctx, args[0]); err != nil {
			h.fail(ctx, err, args[0])
		}
	}
}

func (h *handler) fail(ctx context.Context, err error, input string) {
	h.logger.Info("command_rejected", zap.String("input", input), zap.Error(err))
	h.presenter.Say(ctx, h.presenter.Formatter().Error(err, input))
}
