package main

import (
	"bufio"
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/park285/cheese-robot-bridge/internal/adapter/robotpresenter"
	"github.com/park285/cheese-robot-bridge/internal/bridgebuilder"
	appcfg "github.com/park285/cheese-robot-bridge/internal/config"
	"github.com/park285/cheese-robot-bridge/internal/msgcat"
	"github.com/park285/cheese-robot-bridge/internal/obslog"
	"github.com/park285/cheese-robot-bridge/internal/relay"
	"go.uber.org/zap"
)

func main() {
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer obslog.Sync()
	logger := obslog.L()

	cat, err := msgcat.New(cfg.MessagesDir)
	if err != nil {
		log.Fatalf("message catalog error: %v", err)
	}
	formatter := robotpresenter.NewFormatter(cat, cfg.BotPrefix)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		sink robotpresenter.Sink
		ws   *relay.Listener
	)
	if cfg.RelayEnabled() {
		client := relay.NewClient(cfg.IrisBaseURL)
		ws = relay.NewListener(cfg.IrisWSURL,
			relay.WithRedials(5),
			relay.WithListenerLogger(logger),
			relay.WithStateHook(func(state relay.WebSocketState) {
				logger.Info("relay_ws_state", zap.String("state", state.String()))
			}),
		)
		sink = robotpresenter.RoomSink{Egress: relay.NewEgress(relay.ModeAuto, client, ws, logger), Room: cfg.IrisRoom, FoldRows: relay.DefaultFoldRows}
	} else {
		sink = &robotpresenter.ConsoleSink{Out: os.Stdout, Dir: cfg.OutputDir + "-images"}
	}
	presenter := robotpresenter.NewPresenter(sink, formatter, logger)

	deps, err := bridgebuilder.New(cfg, presenter, logger)
	if err != nil {
		log.Fatalf("bridge init error: %v", err)
	}
	defer deps.Close()
	defer deps.Service.Close()

	if cfg.MetricsAddr != "" {
		srv := &http.Server{Addr: cfg.MetricsAddr, Handler: metricsMux(deps), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("Metrics server stopped", zap.Error(err))
			}
		}()
		defer srv.Close()
	}

	h := &handler{svc: deps.Service, presenter: presenter, historyLimit: cfg.HistoryLimit, logger: logger}

	// 이전 프로세스의 세션이 있으면 이어서 진행
	if state, err := deps.Service.Resume(ctx); err == nil {
		presenter.Say(ctx, formatter.Start(state, true))
	}

	logger.Info("robot_bridge_start",
		zap.String("robot_id", cfg.RobotID),
		zap.String("output_dir", cfg.OutputDir),
		zap.Bool("relay", cfg.RelayEnabled()),
	)

	if ws != nil {
		if err := ws.Start(ctx); err != nil {
			log.Fatalf("ws connect error: %v", err)
		}
		defer ws.Close(context.Background())
		for msg := range ws.Messages() {
			if cmd, ok := msg.Command(cfg.IrisRoom, cfg.BotPrefix); ok {
				go h.handle(ctx, cmd)
			}
		}
		return
	}

	presenter.Say(ctx, formatter.Help())
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			h.handle(ctx, line)
		}
	}
}

func metricsMux(deps *bridgebuilder.Deps) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", deps.Metrics.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}
