package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"unicode/utf8"

	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	gostripe "github.com/stripe/stripe-go/v82"
	"go.uber.org/zap"

	"github.com/mleary/nightraces/internal/domain/cart"
)

// Event price list, in cents.
const (
	eventTicketPriceCents     = 2500
	horsePriceCents           = 2500
	raffleIndividualCents     = 500
	raffleBookCents           = 2000
	centsPerDollar            = 100
	metadataValueLimit        = 450 // Stripe caps metadata values near 500 chars
	raffleTypeIndividualInput = "individual"
)

// CheckoutRequest is the cart payload from the event site.
type CheckoutRequest struct {
	Purchaser Purchaser    `json:"purchaser"`
	Cart      CheckoutCart `json:"cart"`
	Totals    Totals       `json:"totals"`
}

type Purchaser struct {
	FirstName    string `json:"firstName"`
	LastName     string `json:"lastName"`
	Email        string `json:"email"`
	Phone        string `json:"phone"`
	DancerFamily string `json:"dancerFamily"`
}

type CheckoutCart struct {
	EventTickets  *EventTicketsRequest `json:"eventTickets"`
	Horses        *HorsesRequest       `json:"horses"`
	ProgramAds    []ProgramAdRequest   `json:"programAds"`
	RaffleTickets *RaffleRequest       `json:"raffleTickets"`
	Donation      *DonationRequest     `json:"donation"`

	// CashDonation is the older form of the donation field still sent by
	// cached copies of the checkout page. It carries an amount only.
	CashDonation *CashDonationRequest `json:"cashDonation"`
}

type EventTicketsRequest struct {
	Quantity  int    `json:"quantity"`
	TableName string `json:"tableName"`
}

type HorsesRequest struct {
	Quantity int               `json:"quantity"`
	Entries  []cart.HorseEntry `json:"entries"`
}

type ProgramAdRequest struct {
	BusinessName string `json:"businessName"`
	SizeLabel    string `json:"sizeLabel"`
	DesignOption string `json:"designOption"`
	Price        int64  `json:"price"` // whole dollars
}

type RaffleRequest struct {
	Type              string             `json:"type"` // "individual" or "books"
	IndividualTickets int                `json:"individualTickets"`
	Books             int                `json:"books"`
	Entries           []cart.RaffleOwner `json:"entries"`
}

type DonationRequest struct {
	Type   string          `json:"type"`
	Amount decimal.Decimal `json:"amount"` // dollars
}

type CashDonationRequest struct {
	Amount decimal.Decimal `json:"amount"` // dollars
}

type Totals struct {
	CoveringFees  bool            `json:"coveringFees"`
	ProcessingFee decimal.Decimal `json:"processingFee"` // dollars
}

// HandleCreateCheckout assembles the priced cart into Stripe line items plus
// the metadata side-channel, creates a hosted checkout session, and returns
// its URL. No database writes happen here; the webhook records the order
// after payment actually completes.
func (h *Handler) HandleCreateCheckout(w http.ResponseWriter, r *http.Request) {
	lg := zctx.From(r.Context())

	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req CheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid cart data")
		return
	}
	if req.Purchaser.Email == "" {
		writeError(w, http.StatusBadRequest, "purchaser email is required")
		return
	}

	lines, categories := buildLineItems(req)
	if len(lines) == 0 {
		writeError(w, http.StatusBadRequest, "cart is empty")
		return
	}

	params := &gostripe.CheckoutSessionParams{
		Mode:               gostripe.String(string(gostripe.CheckoutSessionModePayment)),
		PaymentMethodTypes: gostripe.StringSlice([]string{"card"}),
		LineItems:          lines,
		SuccessURL:         gostripe.String(h.cfg.SuccessURL),
		CancelURL:          gostripe.String(h.cfg.CancelURL),
		CustomerEmail:      gostripe.String(req.Purchaser.Email),
	}
	for k, v := range buildMetadata(req, categories) {
		params.AddMetadata(k, v)
	}

	sess, err := h.provider.CreateSession(r.Context(), params)
	if err != nil {
		lg.Error("checkout session creation failed",
			zap.String("email", req.Purchaser.Email),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "could not create checkout session")
		return
	}

	lg.Info("checkout session created",
		zap.String("session_id", sess.ID),
		zap.Int("line_items", len(lines)),
	)
	writeJSON(w, http.StatusOK, map[string]string{"url": sess.URL})
}

// buildLineItems converts the cart into Stripe line items. The returned
// categories slice is index-aligned with the line items and is persisted as
// the itemCategories metadata tag; the human-readable descriptions double as
// the classification fallback for old sessions, so their fixed substrings
// must stay in sync with the reconstructor.
func buildLineItems(req CheckoutRequest) ([]*gostripe.CheckoutSessionLineItemParams, []cart.Category) {
	var (
		lines      []*gostripe.CheckoutSessionLineItemParams
		categories []cart.Category
	)
	add := func(category cart.Category, name, description string, unitCents int64, qty int) {
		lines = append(lines, &gostripe.CheckoutSessionLineItemParams{
			PriceData: &gostripe.CheckoutSessionLineItemPriceDataParams{
				Currency: gostripe.String("usd"),
				ProductData: &gostripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name:        gostripe.String(name),
					Description: gostripe.String(description),
				},
				UnitAmount: gostripe.Int64(unitCents),
			},
			Quantity: gostripe.Int64(int64(qty)),
		})
		categories = append(categories, category)
	}

	if t := req.Cart.EventTickets; t != nil && t.Quantity > 0 {
		add(cart.CategoryEventTickets,
			"Event Tickets",
			fmt.Sprintf("%d tickets for Night at the Races", t.Quantity),
			eventTicketPriceCents, t.Quantity,
		)
	}

	if hs := req.Cart.Horses; hs != nil && hs.Quantity > 0 {
		add(cart.CategoryHorses,
			"Horse Sponsorships",
			fmt.Sprintf("%d horse sponsorships", hs.Quantity),
			horsePriceCents, hs.Quantity,
		)
	}

	for _, ad := range req.Cart.ProgramAds {
		if ad.Price <= 0 {
			continue
		}
		size := ad.SizeLabel
		if size == "" {
			size = sizeLabelForPrice(ad.Price)
		}
		business := ad.BusinessName
		if business == "" {
			business = "Program Ad"
		}
		add(cart.CategoryProgramAd,
			"Program Book Ad - "+size,
			fmt.Sprintf("Program Book Ad - %s\nBusiness: %s", size, business),
			ad.Price*centsPerDollar, 1,
		)
	}

	if rt := req.Cart.RaffleTickets; rt != nil {
		if rt.Type == raffleTypeIndividualInput && rt.IndividualTickets > 0 {
			add(cart.CategoryRaffleIndividual,
				"Raffle Tickets",
				fmt.Sprintf("Raffle Tickets - %d individual tickets", rt.IndividualTickets),
				raffleIndividualCents, rt.IndividualTickets,
			)
		} else if rt.Type != raffleTypeIndividualInput && rt.Books > 0 {
			add(cart.CategoryRaffleBook,
				"Raffle Tickets",
				fmt.Sprintf("Raffle Tickets - %d books (%d tickets)", rt.Books, rt.Books*cart.TicketsPerBook),
				raffleBookCents, rt.Books,
			)
		}
	}

	if d := req.Cart.CashDonation; d != nil && d.Amount.IsPositive() {
		add(cart.CategoryDonation,
			"Cash Donation",
			"Cash Donation (tax-deductible)",
			dollarsToCents(d.Amount), 1,
		)
	}

	if d := req.Cart.Donation; d != nil && d.Type == "cash" && d.Amount.IsPositive() {
		add(cart.CategoryDonation,
			"Cash Donation",
			"Cash Donation (tax-deductible)",
			dollarsToCents(d.Amount), 1,
		)
	}

	if req.Totals.CoveringFees && req.Totals.ProcessingFee.IsPositive() {
		add(cart.CategoryProcessingFee,
			"Processing Fee",
			"Processing Fee - credit card processing (2.9% + $0.30)",
			dollarsToCents(req.Totals.ProcessingFee), 1,
		)
	}

	return lines, categories
}

// buildMetadata packs purchaser info and cart detail into the metadata bag.
// Values are truncated to the provider's per-field limit; the reconstructor
// treats a truncated (hence malformed) JSON value as absent detail.
func buildMetadata(req CheckoutRequest, categories []cart.Category) map[string]string {
	md := map[string]string{
		cart.MetaPurchaserName: truncate(req.Purchaser.FirstName+" "+req.Purchaser.LastName, metadataValueLimit),
		cart.MetaPhone:         truncate(req.Purchaser.Phone, metadataValueLimit),
		cart.MetaDancerFamily:  truncate(req.Purchaser.DancerFamily, metadataValueLimit),
	}

	if tags, err := json.Marshal(categories); err == nil {
		md[cart.MetaItemCategories] = string(tags)
	}

	if t := req.Cart.EventTickets; t != nil && t.TableName != "" {
		md[cart.MetaTableName] = truncate(t.TableName, metadataValueLimit)
	}
	if hs := req.Cart.Horses; hs != nil && len(hs.Entries) > 0 {
		putJSON(md, cart.MetaHorses, hs.Entries)
	}
	if len(req.Cart.ProgramAds) > 0 {
		ads := make([]cart.AdEntry, len(req.Cart.ProgramAds))
		for i, ad := range req.Cart.ProgramAds {
			ads[i] = cart.AdEntry{
				Business: ad.BusinessName,
				Size:     ad.SizeLabel,
				Design:   ad.DesignOption,
			}
		}
		putJSON(md, cart.MetaProgramAds, ads)
	}
	if rt := req.Cart.RaffleTickets; rt != nil && len(rt.Entries) > 0 {
		putJSON(md, cart.MetaRaffleOwners, rt.Entries)
	}
	return md
}

func putJSON(md map[string]string, key string, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	md[key] = truncate(string(b), metadataValueLimit)
}

func sizeLabelForPrice(price int64) string {
	switch price {
	case 25:
		return "Business Card"
	case 50:
		return "½ Page"
	case 100:
		return "Full Page"
	case 120:
		return "Full Page + Sponsored Race"
	default:
		return "Program Ad"
	}
}

func dollarsToCents(d decimal.Decimal) int64 {
	return d.Mul(decimal.NewFromInt(centsPerDollar)).Round(0).IntPart()
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	// Back off to a rune boundary so a multi-byte rune is never cut in half.
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	return s[:limit]
}
