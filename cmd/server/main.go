package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/playmatatu/arena/internal/api"
	"github.com/playmatatu/arena/internal/arena"
	"github.com/playmatatu/arena/internal/auth"
	"github.com/playmatatu/arena/internal/clock"
	"github.com/playmatatu/arena/internal/config"
	"github.com/playmatatu/arena/internal/database"
	"github.com/playmatatu/arena/internal/game"
	"github.com/playmatatu/arena/internal/middleware"
	"github.com/playmatatu/arena/internal/migrations"
	"github.com/playmatatu/arena/internal/redis"
	"github.com/playmatatu/arena/internal/store"
	"github.com/playmatatu/arena/internal/ws"
	"github.com/playmatatu/arena/pkg/logger"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Connect(ctx, cfg.DatabaseURL, log)
	if err != nil {
		return err
	}
	defer db.Close()

	if cfg.MigrateOnStart {
		if err := migrations.Run(cfg.DatabaseURL, "migrations", log); err != nil {
			return err
		}
	}

	rdb, err := redis.Connect(ctx, cfg.RedisURL, log)
	if err != nil {
		return err
	}
	defer rdb.Close()

	records := store.NewPostgres(db, cfg.DefaultRating)
	st := store.Composite{
		Players:  records,
		Matches:  records,
		Statuses: store.NewRedisStatus(rdb),
	}

	hub := ws.NewHub(log)
	fanout := ws.NewRedisFanout(rdb, log)
	hub.SetRelay(fanout)

	engine := arena.New(arena.Config{
		MatchmakerInterval:     cfg.MatchmakerInterval,
		ChallengeSweepInterval: cfg.ChallengeSweepInterval,
		SessionTickInterval:    cfg.SessionTickInterval,
		ChallengeTimeout:       cfg.ChallengeTimeout,
		StoreTimeout:           cfg.StoreTimeout,
		InstanceID:             cfg.InstanceID,
	}, st, hub, clock.Real(), game.DefaultRegistry(), log)
	engine.SetPresence(hub)

	verifier := auth.NewVerifier(cfg.JWTSecret)
	wsServer := ws.NewServer(hub, engine, verifier, func(origin string) bool {
		return middleware.OriginAllowed(cfg, origin)
	}, log)

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	api.SetupRoutes(router, api.Deps{
		Config:      cfg,
		Matchmaker:  engine,
		Games:       records,
		Verifier:    verifier,
		WebSocket:   wsServer.HandleWebSocket,
		Connections: hub.Count,
		Logger:      log,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 3)
	go func() {
		if err := engine.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errc <- fmt.Errorf("engine: %w", err)
		}
	}()
	go fanout.Run(ctx, hub)
	go func() {
		log.Info("starting arena server", zap.String("port", cfg.Port), zap.String("env", cfg.Environment))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- fmt.Errorf("http: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err := <-errc:
		stop()
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
