package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mleary/nightraces/internal/domain/order"
	"github.com/mleary/nightraces/internal/repository"
)

type capacityFlags struct {
	eventTickets int
	horses       int
	programAds   int
	raffle       int
}

func main() {
	var (
		databaseURL string
		caps        capacityFlags
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.IntVar(&caps.eventTickets, "event-tickets", 200, "event ticket capacity")
	flag.IntVar(&caps.horses, "horses", 90, "horse sponsorship capacity")
	flag.IntVar(&caps.programAds, "program-ads", 40, "program ad capacity")
	flag.IntVar(&caps.raffle, "raffle-tickets", 899999, "raffle ticket capacity")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, caps); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL string, caps capacityFlags) error {
	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	return seedInventory(ctx, pool, caps)
}

const upsertCapacity = `
INSERT INTO inventory (category, sold, capacity)
VALUES ($1, 0, $2)
ON CONFLICT (category) DO UPDATE SET capacity = EXCLUDED.capacity, updated_at = now()`

func seedInventory(ctx context.Context, pool *pgxpool.Pool, caps capacityFlags) error {
	rows := []struct {
		category string
		capacity int
	}{
		{order.InventoryEventTickets, caps.eventTickets},
		{order.InventoryHorses, caps.horses},
		{order.InventoryProgramAds, caps.programAds},
		{order.InventoryRaffle, caps.raffle},
	}

	for _, row := range rows {
		if _, err := pool.Exec(ctx, upsertCapacity, row.category, row.capacity); err != nil {
			return errors.Wrapf(err, "upsert inventory %s", row.category)
		}

		slog.Info("upserted inventory", slog.String("category", row.category), slog.Int("capacity", row.capacity))
	}

	return nil
}
