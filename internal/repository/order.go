package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mleary/nightraces/internal/domain/order"
)

const createOrderSQL = `INSERT INTO orders (
		order_id, stripe_session_id, stripe_payment_intent_id,
		purchaser_first_name, purchaser_last_name, purchaser_email, purchaser_phone,
		dancer_family, subtotal, processing_fee, stripe_fee_actual, total_paid,
		covered_fees, payment_status, created_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	ON CONFLICT (stripe_session_id) DO NOTHING`

const insertEventTicketsSQL = `INSERT INTO event_tickets
	(order_id, quantity, table_name, price_per_ticket, total_price)
	VALUES ($1, $2, $3, $4, $5)`

const insertProgramAdSQL = `INSERT INTO program_ads
	(order_id, business_name, ad_size, design_option, price)
	VALUES ($1, $2, $3, $4, $5)`

const insertDonationSQL = `INSERT INTO donations
	(order_id, donation_type, amount, purpose)
	VALUES ($1, $2, $3, $4)`

const addSoldSQL = `INSERT INTO inventory (category, sold) VALUES ($1, $2)
	ON CONFLICT (category) DO UPDATE SET sold = inventory.sold + EXCLUDED.sold, updated_at = now()`

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// CreateOrder inserts the order header. The insert is conditional on the
// session ID uniqueness constraint: a redelivered event affects zero rows and
// is reported as created=false rather than an error.
func (r *OrderRepository) CreateOrder(ctx context.Context, o *order.Order) (bool, error) {
	tag, err := r.pool.Exec(ctx, createOrderSQL,
		o.ID, o.SessionID, o.PaymentIntentID,
		o.PurchaserFirstName, o.PurchaserLastName, o.Email, o.Phone,
		o.DancerFamily, o.Subtotal, o.ProcessingFee, o.ProviderFee, o.TotalPaid,
		o.CoveredFees, o.PaymentStatus, o.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("creating order for session %q: %w", o.SessionID, err)
	}
	return tag.RowsAffected() == 1, nil
}

// InsertEventTickets writes the aggregated event-ticket row for an order.
func (r *OrderRepository) InsertEventTickets(ctx context.Context, t *order.EventTicketBlock) error {
	_, err := r.pool.Exec(ctx, insertEventTicketsSQL,
		t.OrderID, t.Quantity, t.TableName, t.PricePerTicket, t.TotalPrice,
	)
	if err != nil {
		return fmt.Errorf("inserting event tickets for order %q: %w", t.OrderID, err)
	}
	return nil
}

// InsertHorses writes one row per sponsored horse in a single statement.
func (r *OrderRepository) InsertHorses(ctx context.Context, horses []order.Horse) error {
	if len(horses) == 0 {
		return nil
	}

	sql, args := multiInsert("horses",
		[]string{"order_id", "horse_name", "owner_name", "price"},
		len(horses),
		func(i int) []any {
			h := horses[i]
			return []any{h.OrderID, h.HorseName, h.OwnerName, h.Price}
		},
	)
	if _, err := r.pool.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("inserting %d horses for order %q: %w", len(horses), horses[0].OrderID, err)
	}
	return nil
}

// InsertProgramAd writes one program ad row.
func (r *OrderRepository) InsertProgramAd(ctx context.Context, ad *order.ProgramAd) error {
	_, err := r.pool.Exec(ctx, insertProgramAdSQL,
		ad.OrderID, ad.BusinessName, ad.AdSize, ad.DesignOption, ad.Price,
	)
	if err != nil {
		return fmt.Errorf("inserting program ad for order %q: %w", ad.OrderID, err)
	}
	return nil
}

// InsertRaffleEntries writes a full raffle batch in one statement. Single
// statement means single transaction: the batch lands completely or not at
// all, and the ticket_number UNIQUE constraint rejects any number a
// concurrent allocation persisted first.
func (r *OrderRepository) InsertRaffleEntries(ctx context.Context, entries []order.RaffleEntry) error {
	if len(entries) == 0 {
		return nil
	}

	sql, args := multiInsert("raffle_tickets",
		[]string{"order_id", "ticket_number", "owner_name", "owner_contact", "ticket_type", "book_id"},
		len(entries),
		func(i int) []any {
			e := entries[i]
			var bookID any
			if e.BookID != "" {
				bookID = e.BookID
			}
			return []any{e.OrderID, e.TicketNumber, e.OwnerName, e.OwnerContact, e.TicketType, bookID}
		},
	)
	if _, err := r.pool.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("inserting %d raffle entries for order %q: %w", len(entries), entries[0].OrderID, err)
	}
	return nil
}

// InsertDonation writes one donation row.
func (r *OrderRepository) InsertDonation(ctx context.Context, d *order.Donation) error {
	_, err := r.pool.Exec(ctx, insertDonationSQL,
		d.OrderID, d.DonationType, d.Amount, d.Purpose,
	)
	if err != nil {
		return fmt.Errorf("inserting donation for order %q: %w", d.OrderID, err)
	}
	return nil
}

// AddSold increments a category's sold counter with an atomic upsert.
func (r *OrderRepository) AddSold(ctx context.Context, category string, delta int) error {
	if _, err := r.pool.Exec(ctx, addSoldSQL, category, delta); err != nil {
		return fmt.Errorf("incrementing inventory for %q: %w", category, err)
	}
	return nil
}

// multiInsert builds a single multi-row INSERT statement with numbered
// placeholders: INSERT INTO table (cols...) VALUES ($1,..),($..),...
func multiInsert(table string, cols []string, rows int, rowArgs func(i int) []any) (string, []any) {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(table)
	b.WriteString(" (")
	b.WriteString(strings.Join(cols, ", "))
	b.WriteString(") VALUES ")

	args := make([]any, 0, rows*len(cols))
	p := 1
	for i := range rows {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteByte('(')
		for j := range cols {
			if j > 0 {
				b.WriteByte(',')
			}
			fmt.Fprintf(&b, "$%d", p)
			p++
		}
		b.WriteByte(')')
		args = append(args, rowArgs(i)...)
	}
	return b.String(), args
}
