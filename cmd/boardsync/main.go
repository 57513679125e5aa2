package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/park285/boardsync/internal/backend"
	appcfg "github.com/park285/boardsync/internal/config"
	"github.com/park285/boardsync/internal/extract"
	"github.com/park285/boardsync/internal/layout"
	"github.com/park285/boardsync/internal/obslog"
	"github.com/park285/boardsync/internal/overlay"
	"github.com/park285/boardsync/internal/page"
	"github.com/park285/boardsync/internal/perspective"
	"github.com/park285/boardsync/internal/pipeline"
	"github.com/park285/boardsync/internal/session"
	"github.com/park285/boardsync/pkg/syncdto"
	"go.uber.org/zap"
)

func main() {
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	logger := obslog.L()
	defer func() { _ = logger.Sync() }()

	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	patterns, err := layout.LoadOverrides(cfg.LayoutsFile, layout.DefaultPatterns())
	if err != nil {
		log.Fatalf("layouts error: %v", err)
	}
	registry := layout.DefaultRegistry(patterns, obslog.Component("layout"))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	src, closePage, err := openPage(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("page source error: %v", err)
	}
	defer closePage()

	// Session store: Redis when configured, otherwise in-process.
	var store session.Store = session.NewMemoryStore()
	if cfg.RedisURL != "" {
		rs, err := session.NewRedisStoreFromURL(ctx, cfg.RedisURL)
		if err != nil {
			log.Fatalf("redis init error: %v", err)
		}
		defer func() { _ = rs.Close() }()
		store = rs
	}

	trackerOpts := []session.Option{
		session.WithLogger(obslog.Component("session")),
		session.WithThresholds(thresholds(cfg)),
	}
	if cfg.DatabaseURL != "" {
		archive, err := session.NewArchive(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("archive init error: %v", err)
		}
		defer func() { _ = archive.Close() }()
		sctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err = archive.EnsureSchema(sctx)
		cancel()
		if err != nil {
			log.Fatalf("archive schema error: %v", err)
		}
		trackerOpts = append(trackerOpts, session.WithArchive(archive))
	}

	client := backend.NewClient(cfg.BackendHTTPURL, backend.WithRateLimit(cfg.FallbackRPS))

	// A nil *WebSocket must not reach NewEgress as a non-nil interface.
	var wsClient backend.WSClient
	var ws *backend.WebSocket
	if cfg.BackendWSURL != "" && cfg.Transport != "http" {
		ws = backend.NewWebSocket(cfg.BackendWSURL, cfg.ReconnectDelay, obslog.Component("ws"))
		ws.OnStateChange(func(state backend.WebSocketState) {
			logger.Info("ws_state", zap.String("state", state.String()))
		})
		wsClient = ws
	}
	egress := backend.NewEgress(cfg.Transport, client, wsClient, obslog.Component("egress"))

	resolver := perspective.NewResolver(obslog.Component("perspective"))
	controller := pipeline.New(pipeline.Config{
		Debounce:   cfg.Debounce,
		RetryDelay: cfg.RetryDelay,
		PageKey:    cfg.PageKey,
		Scopes:     layout.Scopes(patterns),
	}, pipeline.Deps{
		Page:      src,
		Registry:  registry,
		Resolver:  resolver,
		Extractor: extract.New(obslog.Component("extract")),
		Tracker:   session.NewTracker(trackerOpts...),
		Store:     store,
		Egress:    egress,
		Logger:    obslog.Component("pipeline"),
	})

	var surfaces []overlay.Surface
	if runner, ok := src.(page.ScriptRunner); ok && cfg.OverlayDOM {
		surfaces = append(surfaces, overlay.NewDOMSurface(runner))
	}
	if cfg.OverlayPNG != "" {
		surfaces = append(surfaces, overlay.NewPNGSurface(cfg.OverlayPNG))
	}
	// The overlay keeps its own resolver; it never reads the pipeline's cache.
	renderer := overlay.NewRenderer(src, registry, nil, obslog.Component("overlay"), surfaces...)
	go func() { _ = renderer.Run(ctx) }()

	if ws != nil {
		ws.OnMessage(func(msg *syncdto.Inbound) {
			switch {
			case controller.HandleInbound(msg):
			case renderer.HandleInbound(msg):
			default:
				logger.Debug("backend_message", zap.String("type", msg.Type), zap.String("message", msg.Message))
			}
		})
		cctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		if err := ws.Connect(cctx); err != nil {
			// Reconnect runs in the background; the HTTP fallback covers the gap.
			logger.Warn("ws_connect_failed", zap.Error(err))
		}
		cancel()
	}

	usr1 := make(chan os.Signal, 1)
	signal.Notify(usr1, syscall.SIGUSR1)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-usr1:
				logger.Info("recalculate_requested")
				controller.Recalculate()
			}
		}
	}()

	logger.Info("boardsync_started",
		zap.String("transport", cfg.Transport),
		zap.String("page_key", cfg.PageKey),
		zap.Int("surfaces", len(surfaces)),
	)
	if err := controller.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("controller_stopped", zap.Error(err))
	}

	st := controller.Stats()
	logger.Info("boardsync_stopped",
		zap.Int64("cycles", st.Cycles),
		zap.Int64("sent", st.Sent),
		zap.Int64("failed", st.Failed),
		zap.Int64("coalesced", st.Coalesced),
	)
	if ws != nil {
		cctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		_ = ws.Close(cctx)
		cancel()
	}
}

// openPage picks the page source: a DevTools endpoint or URL opens a browser
// tab, otherwise PAGE_FILE is polled.
func openPage(ctx context.Context, cfg *appcfg.AppConfig, logger *zap.Logger) (page.Page, func(), error) {
	if cfg.ChromeWSURL != "" || cfg.PageURL != "" {
		c, err := page.NewChrome(ctx, cfg.ChromeWSURL, cfg.PageURL, obslog.Component("chrome"))
		if err != nil {
			return nil, nil, err
		}
		return c, c.Close, nil
	}
	f := page.NewFile(cfg.PageFile, cfg.PageURL, cfg.FilePoll, obslog.Component("file"))
	go func() {
		if err := f.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn("page_file_stopped", zap.Error(err))
		}
	}()
	return f, func() {}, nil
}

func thresholds(cfg *appcfg.AppConfig) session.Thresholds {
	th := session.DefaultThresholds()
	if cfg.SessionIdle > 0 {
		th.IdleTimeout = cfg.SessionIdle
	}
	return th
}
