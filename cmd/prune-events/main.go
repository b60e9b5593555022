package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/pscheid92/fanout/internal/postgres"
)

func main() {
	_ = godotenv.Load()

	var (
		databaseURL = flag.String("database", os.Getenv("DATABASE_URL"), "Postgres URL (or set DATABASE_URL env)")
		retention   = flag.Duration("retention", 24*time.Hour, "Delete events older than this")
		dryRun      = flag.Bool("dry-run", false, "Count matching events without deleting")
	)
	flag.Parse()

	if *databaseURL == "" {
		log.Fatal("Database URL required (--database or DATABASE_URL env)")
	}

	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	slog.SetDefault(slog.New(handler))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	pool, err := postgres.Connect(ctx, *databaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	cutoff := time.Now().Add(-*retention)
	slog.Info("Pruning broadcast events", "cutoff", cutoff, "dry_run", *dryRun)

	if *dryRun {
		var count int64
		err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM broadcast_events WHERE created_at < $1`, cutoff).Scan(&count)
		if err != nil {
			log.Fatalf("Failed to count events: %v", err)
		}
		slog.Info("Dry run complete", "would_delete", count)
		return
	}

	store := postgres.NewEventStore(pool)
	pruned, err := store.PruneOlderThan(ctx, cutoff)
	if err != nil {
		log.Fatalf("Failed to prune events: %v", err)
	}

	slog.Info("Prune complete", "deleted", pruned)
}
