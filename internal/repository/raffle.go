package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mleary/nightraces/internal/domain/raffle"
)

const numberExistsSQL = `SELECT EXISTS (SELECT 1 FROM raffle_tickets WHERE ticket_number = $1)`

var _ raffle.Repository = (*RaffleNumberRepository)(nil)

// RaffleNumberRepository answers allocator existence pre-checks against the
// persisted raffle numbering space.
type RaffleNumberRepository struct {
	pool *pgxpool.Pool
}

// NewRaffleNumberRepository returns a RaffleNumberRepository over the pool.
func NewRaffleNumberRepository(pool *pgxpool.Pool) *RaffleNumberRepository {
	return &RaffleNumberRepository{pool: pool}
}

// NumberExists reports whether a ticket number has already been persisted.
func (r *RaffleNumberRepository) NumberExists(ctx context.Context, number string) (bool, error) {
	var exists bool
	if err := r.pool.QueryRow(ctx, numberExistsSQL, number).Scan(&exists); err != nil {
		return false, fmt.Errorf("checking ticket number %q: %w", number, err)
	}
	return exists, nil
}
