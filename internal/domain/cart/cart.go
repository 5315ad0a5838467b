// Package cart rebuilds the semantic shopping cart from a confirmed checkout
// session. Stripe's line-item schema has no category field and its metadata
// values are capped around 500 characters, so the original structured cart
// arrives as display text plus a lossy metadata side-channel. Reconstruction
// must always produce a usable cart: missing or malformed detail degrades to
// synthesized defaults, never to a failure.
package cart

import (
	"github.com/shopspring/decimal"
)

// Category identifies what kind of item a confirmed line represents.
type Category string

const (
	CategoryEventTickets     Category = "event_tickets"
	CategoryHorses           Category = "horses"
	CategoryProgramAd        Category = "program_ad"
	CategoryRaffleIndividual Category = "raffle_individual"
	CategoryRaffleBook       Category = "raffle_book"
	CategoryDonation         Category = "donation"
	CategoryProcessingFee    Category = "processing_fee"
	CategoryUnknown          Category = "unknown"
)

// TicketsPerBook is the number of raffle entries bundled in one book.
const TicketsPerBook = 5

// Session is the provider-agnostic view of a confirmed checkout session:
// everything reconstruction and persistence need, already decoupled from the
// Stripe API types.
type Session struct {
	ID              string
	PaymentIntentID string
	PurchaserName   string
	Email           string
	Phone           string
	DancerFamily    string
	AmountTotal     int64 // cents, authoritative
	AmountSubtotal  int64 // cents, authoritative
	Items           []Item
	Metadata        map[string]string
}

// Item is one confirmed line item as reported by the provider.
type Item struct {
	Description string
	Quantity    int
	AmountTotal int64 // cents paid for the whole line
}

// HorseEntry names one sponsored horse and its owner display name.
type HorseEntry struct {
	Name  string `json:"name"`
	Owner string `json:"owner"`
}

// AdEntry carries purchaser-supplied program ad detail.
type AdEntry struct {
	Business string `json:"business"`
	Size     string `json:"size"`
	Design   string `json:"design"`
}

// RaffleOwner assigns a number of raffle entries to a named owner.
type RaffleOwner struct {
	Name    string `json:"name"`
	Contact string `json:"contact"`
	Tickets int    `json:"tickets"`
}

// Line is one reconstructed cart line: a classified line item enriched with
// whatever detail survived the metadata side-channel.
type Line struct {
	Category    Category
	Description string
	Quantity    int
	Amount      decimal.Decimal // dollars paid for the line

	// Category-specific detail. Horses and RaffleOwners are normalized to
	// cover the full paid quantity, padding with synthesized defaults.
	TableName    string
	Horses       []HorseEntry
	Ad           AdEntry
	RaffleOwners []RaffleOwner
}

// TicketCount reports the number of physical raffle entries a raffle line
// pays for: the line quantity for individual tickets, quantity x 5 for books.
func (l Line) TicketCount() int {
	if l.Category == CategoryRaffleBook {
		return l.Quantity * TicketsPerBook
	}
	return l.Quantity
}

// Cart is the reconstructed order content for one confirmed session.
type Cart struct {
	Session Session
	Lines   []Line
}

// Dollars converts a provider cent amount to an exact two-decimal value.
func Dollars(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}
