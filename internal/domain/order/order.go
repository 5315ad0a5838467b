// Package order persists reconstructed carts as normalized order graphs.
package order

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Order is the header row for one confirmed payment. Exactly one Order exists
// per provider session; the stripe_session_id uniqueness constraint enforces
// this under concurrent webhook redelivery.
type Order struct {
	ID              string
	SessionID       string
	PaymentIntentID string

	PurchaserFirstName string
	PurchaserLastName  string
	Email              string
	Phone              string
	DancerFamily       string

	Subtotal      decimal.Decimal
	ProcessingFee decimal.Decimal
	ProviderFee   decimal.Decimal // Stripe-reported actual fee, best effort
	TotalPaid     decimal.Decimal
	CoveredFees   bool

	PaymentStatus string
	CreatedAt     time.Time
}

// EventTicketBlock is the aggregated event-ticket purchase for one order:
// one row per order, not per ticket.
type EventTicketBlock struct {
	OrderID        string
	Quantity       int
	TableName      string
	PricePerTicket decimal.Decimal
	TotalPrice     decimal.Decimal
}

// Horse is one sponsored horse. One row per unit purchased.
type Horse struct {
	OrderID   string
	HorseName string
	OwnerName string
	Price     decimal.Decimal
}

// ProgramAd is one purchased program book advertisement.
type ProgramAd struct {
	OrderID      string
	BusinessName string
	AdSize       string
	DesignOption string
	Price        decimal.Decimal
}

// RaffleEntry is a single numbered raffle ticket. BookID groups the five
// entries of one book and is empty for individual tickets.
type RaffleEntry struct {
	OrderID      string
	TicketNumber string
	OwnerName    string
	OwnerContact string
	TicketType   string // "individual" or "book"
	BookID       string
}

// Raffle entry types.
const (
	TicketTypeIndividual = "individual"
	TicketTypeBook       = "book"
)

// Donation is a cash donation attached to an order.
type Donation struct {
	OrderID      string
	DonationType string
	Amount       decimal.Decimal
	Purpose      string
}

// Repository defines the persistence operations the persister needs. All
// inserts are single statements; CreateOrder is conditional on the session ID
// and reports whether a row was actually created.
type Repository interface {
	// CreateOrder inserts the order header unless an order for the same
	// session already exists. It returns false (and no error) on conflict.
	CreateOrder(ctx context.Context, o *Order) (created bool, err error)

	InsertEventTickets(ctx context.Context, t *EventTicketBlock) error
	InsertHorses(ctx context.Context, horses []Horse) error
	InsertProgramAd(ctx context.Context, ad *ProgramAd) error
	// InsertRaffleEntries persists a full batch in one statement so a raffle
	// line is either completely numbered or not recorded at all.
	InsertRaffleEntries(ctx context.Context, entries []RaffleEntry) error
	InsertDonation(ctx context.Context, d *Donation) error

	// AddSold atomically increments the sold counter for a category.
	AddSold(ctx context.Context, category string, delta int) error
}

// NumberAllocator yields batches of unique raffle ticket numbers.
type NumberAllocator interface {
	Allocate(ctx context.Context, count int) ([]string, error)
}
