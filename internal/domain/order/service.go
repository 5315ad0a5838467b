package order

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mleary/nightraces/internal/domain/cart"
)

// Inventory category keys. These match the cart categories except that both
// raffle variants feed one counter of physical tickets.
const (
	InventoryEventTickets = "event_tickets"
	InventoryHorses       = "horses"
	InventoryProgramAds   = "program_ads"
	InventoryRaffle       = "raffle_tickets"
)

// Result reports the outcome of processing one confirmed session.
type Result struct {
	Order *Order

	// AlreadyProcessed is set when an order for the session existed before
	// this invocation; no child rows were written.
	AlreadyProcessed bool

	// FailedCategories lists cart categories whose child rows could not be
	// written. The order header is authoritative proof of payment, so these
	// are reconciled out of band from logs rather than failing the event.
	FailedCategories []cart.Category
}

// Service turns reconstructed carts into persisted order graphs.
type Service struct {
	repo      Repository
	allocator NumberAllocator
	lg        *zap.Logger
	now       func() time.Time
}

// NewService creates the persister with its repository and raffle allocator.
func NewService(repo Repository, allocator NumberAllocator, lg *zap.Logger) *Service {
	return &Service{
		repo:      repo,
		allocator: allocator,
		lg:        lg,
		now:       time.Now,
	}
}

// Process persists exactly one Order plus child rows for the cart, or reports
// the session as already processed. Redelivered events short-circuit on the
// conditional header insert. After the header exists, child-row failures are
// logged per category and processing continues: there is no cross-table
// transaction, and a bookkeeping gap is recoverable while a dropped payment
// record is not. Only a header insert failure is returned as an error.
func (s *Service) Process(ctx context.Context, c cart.Cart, providerFee decimal.Decimal) (*Result, error) {
	o := s.buildOrder(c.Session, providerFee)

	created, err := s.repo.CreateOrder(ctx, o)
	if err != nil {
		return nil, errors.Wrap(err, "create order")
	}
	if !created {
		s.lg.Info("session already processed, skipping",
			zap.String("session_id", c.Session.ID),
		)
		return &Result{Order: o, AlreadyProcessed: true}, nil
	}

	res := &Result{Order: o}
	for _, line := range c.Lines {
		if line.Category == cart.CategoryProcessingFee {
			// Fee is already part of the order totals.
			continue
		}
		if err := s.persistLine(ctx, o, line); err != nil {
			s.lg.Error("persisting line item failed, continuing with remaining categories",
				zap.String("session_id", c.Session.ID),
				zap.String("order_id", o.ID),
				zap.String("category", string(line.Category)),
				zap.Int("quantity", line.Quantity),
				zap.String("amount", line.Amount.String()),
				zap.Error(err),
			)
			res.FailedCategories = append(res.FailedCategories, line.Category)
		}
	}
	return res, nil
}

func (s *Service) buildOrder(sess cart.Session, providerFee decimal.Decimal) *Order {
	first, last := splitName(sess.PurchaserName)

	total := cart.Dollars(sess.AmountTotal)
	subtotal := cart.Dollars(sess.AmountSubtotal)
	fee := total.Sub(subtotal)

	return &Order{
		ID:                 uuid.New().String(),
		SessionID:          sess.ID,
		PaymentIntentID:    sess.PaymentIntentID,
		PurchaserFirstName: first,
		PurchaserLastName:  last,
		Email:              sess.Email,
		Phone:              sess.Phone,
		DancerFamily:       sess.DancerFamily,
		Subtotal:           subtotal,
		ProcessingFee:      fee,
		ProviderFee:        providerFee,
		TotalPaid:          total,
		CoveredFees:        fee.IsPositive(),
		PaymentStatus:      "completed",
		CreatedAt:          s.now(),
	}
}

func (s *Service) persistLine(ctx context.Context, o *Order, line cart.Line) error {
	switch line.Category {
	case cart.CategoryEventTickets:
		err := s.repo.InsertEventTickets(ctx, &EventTicketBlock{
			OrderID:        o.ID,
			Quantity:       line.Quantity,
			TableName:      line.TableName,
			PricePerTicket: unitPrice(line.Amount, line.Quantity),
			TotalPrice:     line.Amount,
		})
		if err != nil {
			return err
		}
		return s.bumpInventory(ctx, o, InventoryEventTickets, line.Quantity)

	case cart.CategoryHorses:
		price := unitPrice(line.Amount, line.Quantity)
		horses := make([]Horse, len(line.Horses))
		for i, h := range line.Horses {
			horses[i] = Horse{
				OrderID:   o.ID,
				HorseName: h.Name,
				OwnerName: h.Owner,
				Price:     price,
			}
		}
		if err := s.repo.InsertHorses(ctx, horses); err != nil {
			return err
		}
		return s.bumpInventory(ctx, o, InventoryHorses, line.Quantity)

	case cart.CategoryProgramAd:
		err := s.repo.InsertProgramAd(ctx, &ProgramAd{
			OrderID:      o.ID,
			BusinessName: line.Ad.Business,
			AdSize:       line.Ad.Size,
			DesignOption: line.Ad.Design,
			Price:        line.Amount,
		})
		if err != nil {
			return err
		}
		return s.bumpInventory(ctx, o, InventoryProgramAds, 1)

	case cart.CategoryRaffleIndividual, cart.CategoryRaffleBook:
		return s.persistRaffleLine(ctx, o, line)

	case cart.CategoryDonation:
		return s.repo.InsertDonation(ctx, &Donation{
			OrderID:      o.ID,
			DonationType: "cash",
			Amount:       line.Amount,
			Purpose:      "General Fund",
		})
	}
	return nil
}

// persistRaffleLine allocates the full batch of numbers before writing
// anything, then inserts all entries in one statement. An allocation shortage
// fails the whole line: no partial books.
func (s *Service) persistRaffleLine(ctx context.Context, o *Order, line cart.Line) error {
	count := line.TicketCount()
	numbers, err := s.allocator.Allocate(ctx, count)
	if err != nil {
		return errors.Wrap(err, "allocate ticket numbers")
	}

	entries := buildRaffleEntries(o.ID, line, numbers)
	if err := s.repo.InsertRaffleEntries(ctx, entries); err != nil {
		return err
	}
	return s.bumpInventory(ctx, o, InventoryRaffle, count)
}

// buildRaffleEntries zips allocated numbers against the line's owner
// assignments. Book lines are grouped into consecutive books of five, each
// under a fresh random book ID.
func buildRaffleEntries(orderID string, line cart.Line, numbers []string) []RaffleEntry {
	ticketType := TicketTypeIndividual
	if line.Category == cart.CategoryRaffleBook {
		ticketType = TicketTypeBook
	}

	entries := make([]RaffleEntry, 0, len(numbers))
	idx := 0
	for _, owner := range line.RaffleOwners {
		for range owner.Tickets {
			if idx >= len(numbers) {
				break
			}
			entries = append(entries, RaffleEntry{
				OrderID:      orderID,
				TicketNumber: numbers[idx],
				OwnerName:    owner.Name,
				OwnerContact: owner.Contact,
				TicketType:   ticketType,
			})
			idx++
		}
	}

	if ticketType == TicketTypeBook {
		bookID := ""
		for i := range entries {
			if i%cart.TicketsPerBook == 0 {
				bookID = uuid.New().String()
			}
			entries[i].BookID = bookID
		}
	}
	return entries
}

// bumpInventory increments a sold counter. Counter drift is a reporting
// problem, not a financial one, so failures are logged and swallowed.
func (s *Service) bumpInventory(ctx context.Context, o *Order, category string, delta int) error {
	if err := s.repo.AddSold(ctx, category, delta); err != nil {
		s.lg.Warn("inventory counter update failed",
			zap.String("session_id", o.SessionID),
			zap.String("category", category),
			zap.Int("delta", delta),
			zap.Error(err),
		)
	}
	return nil
}

func unitPrice(total decimal.Decimal, quantity int) decimal.Decimal {
	if quantity <= 0 {
		return total
	}
	return total.Div(decimal.NewFromInt(int64(quantity))).Round(2)
}

// splitName splits a free-form purchaser name into first and last parts,
// falling back to placeholders so the order row is always well-formed.
func splitName(name string) (first, last string) {
	fields := strings.Fields(name)
	switch {
	case len(fields) == 0:
		return "Unknown", "Customer"
	case len(fields) == 1:
		return fields[0], "Customer"
	default:
		return fields[0], strings.Join(fields[1:], " ")
	}
}
