package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/vladimirvolkov/soccer/server/internal/config"
	"github.com/vladimirvolkov/soccer/server/internal/game"
	"github.com/vladimirvolkov/soccer/server/internal/logging"
	"github.com/vladimirvolkov/soccer/server/internal/middleware"
	"github.com/vladimirvolkov/soccer/server/internal/ws"
)

const visitorSweepInterval = 5 * time.Minute

// securityHeaders wraps a handler with common security response headers.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "no-referrer")
		w.Header().Set("Content-Security-Policy",
			"default-src 'self'; script-src 'self'; style-src 'self' 'unsafe-inline'; connect-src 'self' ws: wss:; img-src 'self' data:")
		next.ServeHTTP(w, r)
	})
}

// GameManager turns matched connection pairs into running rooms.
type GameManager struct {
	hub  *ws.Hub
	ctx  context.Context
	room game.RoomConfig
	log  zerolog.Logger
}

func (gm *GameManager) CreateRoom(p1, p2 *ws.Conn) {
	room, err := game.NewRoom(p1, p2, gm.room)
	if err != nil {
		gm.log.Error().Err(err).Msg("create room failed")
		p1.Close()
		p2.Close()
		gm.hub.RoomEnded()
		return
	}
	room.Start(gm.ctx)
	go func() {
		<-room.Done()
		gm.hub.RoomEnded()
		gm.log.Info().Str("room", room.ID()).Msg("room ended")
	}()
}

func main() {
	configDir := flag.String("config", ".", "directory holding "+config.FileName)
	flag.Parse()

	cfg, err := config.Load(*configDir)
	if err != nil {
		// Logger settings live in the config; fall back to defaults to report.
		log := logging.New(os.Stdout, "info", false)
		log.Fatal().Err(err).Msg("load config")
	}

	// Logs go to stdout so hosting platforms don't flag them as errors
	log := logging.New(os.Stdout, cfg.Log.Level, cfg.Log.Pretty)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	limiter := middleware.NewIPRateLimiter(cfg.Server.MaxConnsPerIP, cfg.Server.MsgRate, cfg.Server.MsgBurst)
	go limiter.Run(ctx.Done(), visitorSweepInterval)

	manager := &GameManager{
		ctx: ctx,
		room: game.RoomConfig{
			Match:     cfg.Game(),
			Countdown: cfg.Match.Countdown,
			FrameDT:   cfg.Match.FrameDT(),
			Logger:    log,
		},
		log: log,
	}
	hub := ws.NewHub(manager, limiter, ws.HubOptions{
		OriginPatterns: cfg.Server.AllowedOrigins,
		MaxActiveRooms: cfg.Server.MaxActiveRooms,
		Logger:         log,
	})
	manager.hub = hub

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", hub.HandleWS)

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(hub.Stats()); err != nil {
			log.Warn().Err(err).Msg("write health")
		}
	})

	// Static files with no-cache headers (prevents stale JS in browser)
	fs := http.FileServer(http.Dir(cfg.Server.StaticDir))
	mux.Handle("/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
		w.Header().Set("Pragma", "no-cache")
		w.Header().Set("Expires", "0")
		fs.ServeHTTP(w, r)
	}))

	server := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           securityHeaders(mux),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 16, // 64KB
	}

	go func() {
		<-ctx.Done()
		log.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		// Hijacked websocket connections are not tracked by Shutdown.
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("shutdown")
		}
	}()

	log.Info().
		Str("port", cfg.Server.Port).
		Str("static", cfg.Server.StaticDir).
		Int("fixedRate", cfg.Match.FixedRate).
		Int("frameRate", cfg.Match.FrameRate).
		Msg("soccer server starting")
	if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("server error")
	}
	log.Info().Msg("server stopped")
}
