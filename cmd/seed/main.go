// Command seed creates development players and prints a token for each so
// they can connect to /ws without an identity service.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/playmatatu/arena/internal/auth"
	"github.com/playmatatu/arena/internal/config"
	"github.com/playmatatu/arena/internal/database"
	"github.com/playmatatu/arena/internal/migrations"
	"github.com/playmatatu/arena/internal/store"
	"github.com/playmatatu/arena/pkg/logger"
	"go.uber.org/zap"
)

func main() {
	names := flag.String("players", "alice,bob", "comma separated nicknames to create")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	cfg := config.Load()
	log, err := logger.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log, strings.Split(*names, ","), *ttl); err != nil {
		log.Fatal("seed failed", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger, names []string, ttl time.Duration) error {
	if cfg.Environment == "production" {
		log.Warn("seeding players in production")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	db, err := database.Connect(ctx, cfg.DatabaseURL, log)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	if err := migrations.Run(cfg.DatabaseURL, "migrations", log); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	records := store.NewPostgres(db, cfg.DefaultRating)
	verifier := auth.NewVerifier(cfg.JWTSecret)

	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		player, err := records.UpsertPlayer(ctx, name)
		if err != nil {
			return err
		}
		token, err := verifier.Sign(player.ID, ttl)
		if err != nil {
			return fmt.Errorf("sign token for player %d: %w", player.ID, err)
		}
		fmt.Printf("%s\tid=%d\trating=%d\ttoken=%s\n", player.Nickname, player.ID, player.Rating, token)
	}
	return nil
}
