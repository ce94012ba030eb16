package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

const connectTimeout = 10 * time.Second

// Connect establishes a connection to PostgreSQL
func Connect(ctx context.Context, databaseURL string, log *zap.Logger) (*sqlx.DB, error) {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	db, err := sqlx.ConnectContext(ctx, "postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxIdleTime(5 * time.Minute)

	stats := db.Stats()
	log.Named("db").Info("connected to postgres", zap.Int("max_open_conns", stats.MaxOpenConnections))
	return db, nil
}
