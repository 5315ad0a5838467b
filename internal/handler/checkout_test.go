package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gostripe "github.com/stripe/stripe-go/v82"
	"go.uber.org/zap"

	"github.com/mleary/nightraces/internal/domain/cart"
)

func postCheckout(h *Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/checkout", strings.NewReader(body))
	w := httptest.NewRecorder()
	h.HandleCreateCheckout(w, req)
	return w
}

func fullCheckoutRequest() CheckoutRequest {
	return CheckoutRequest{
		Purchaser: Purchaser{
			FirstName:    "Jane",
			LastName:     "Smith",
			Email:        "jane@example.com",
			Phone:        "555-0100",
			DancerFamily: "Smith",
		},
		Cart: CheckoutCart{
			EventTickets: &EventTicketsRequest{Quantity: 4, TableName: "Smith Party"},
			Horses: &HorsesRequest{
				Quantity: 2,
				Entries: []cart.HorseEntry{
					{Name: "Thunder", Owner: "Jane"},
					{Name: "Bolt", Owner: "Rob"},
				},
			},
			ProgramAds: []ProgramAdRequest{
				{BusinessName: "Acme Feed", SizeLabel: "Full Page", DesignOption: "emailed", Price: 100},
			},
			RaffleTickets: &RaffleRequest{
				Type:  "books",
				Books: 2,
				Entries: []cart.RaffleOwner{
					{Name: "Jane Smith", Contact: "jane@example.com", Tickets: 10},
				},
			},
			Donation: &DonationRequest{Type: "cash", Amount: decimal.RequireFromString("25.00")},
		},
		Totals: Totals{CoveringFees: true, ProcessingFee: decimal.RequireFromString("5.48")},
	}
}

func TestHandleCreateCheckout_MethodNotAllowed(t *testing.T) {
	h := newTestHandler(&mockProvider{}, &mockProcessor{})

	req := httptest.NewRequest(http.MethodGet, "/api/checkout", nil)
	w := httptest.NewRecorder()
	h.HandleCreateCheckout(w, req)

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestHandleCreateCheckout_InvalidJSON(t *testing.T) {
	h := newTestHandler(&mockProvider{}, &mockProcessor{})

	w := postCheckout(h, "{not json")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid cart data", decodeBody(t, w)["error"])
}

func TestHandleCreateCheckout_MissingEmail(t *testing.T) {
	h := newTestHandler(&mockProvider{}, &mockProcessor{})

	w := postCheckout(h, `{"purchaser":{"firstName":"Jane"}}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "purchaser email is required", decodeBody(t, w)["error"])
}

func TestHandleCreateCheckout_EmptyCart(t *testing.T) {
	h := newTestHandler(&mockProvider{}, &mockProcessor{})

	w := postCheckout(h, `{"purchaser":{"email":"jane@example.com"}}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "cart is empty", decodeBody(t, w)["error"])
}

func TestHandleCreateCheckout_Success(t *testing.T) {
	provider := &mockProvider{created: &gostripe.CheckoutSession{
		ID:  "cs_test_new",
		URL: "https://checkout.stripe.com/pay/cs_test_new",
	}}
	h := newTestHandler(provider, &mockProcessor{})

	body, err := json.Marshal(fullCheckoutRequest())
	require.NoError(t, err)
	w := postCheckout(h, string(body))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "https://checkout.stripe.com/pay/cs_test_new", decodeBody(t, w)["url"])

	params := provider.lastParams
	require.NotNil(t, params)
	assert.Equal(t, string(gostripe.CheckoutSessionModePayment), *params.Mode)
	assert.Equal(t, "jane@example.com", *params.CustomerEmail)
	assert.Equal(t, "https://example.com/success", *params.SuccessURL)
	assert.Len(t, params.LineItems, 6)

	md := params.Metadata
	require.NotNil(t, md)
	assert.Equal(t, "Jane Smith", md[cart.MetaPurchaserName])
	assert.Equal(t, "Smith Party", md[cart.MetaTableName])
	assert.JSONEq(t,
		`["event_tickets","horses","program_ad","raffle_book","donation","processing_fee"]`,
		md[cart.MetaItemCategories],
	)
	assert.Contains(t, md[cart.MetaHorses], "Thunder")
	assert.Contains(t, md[cart.MetaProgramAds], "Acme Feed")
	assert.Contains(t, md[cart.MetaRaffleOwners], "jane@example.com")
}

func TestHandleCreateCheckout_ProviderFailure(t *testing.T) {
	provider := &mockProvider{createErr: errors.New("api key revoked")}
	h := newTestHandler(provider, &mockProcessor{})

	body, err := json.Marshal(fullCheckoutRequest())
	require.NoError(t, err)
	w := postCheckout(h, string(body))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "could not create checkout session", decodeBody(t, w)["error"])
}

func TestBuildLineItems_DescriptionsMatchClassifier(t *testing.T) {
	// Every generated description must classify back to its own category, or
	// sessions created before explicit tagging would reconstruct wrong.
	lines, categories := buildLineItems(fullCheckoutRequest())
	require.Len(t, lines, 6)
	require.Len(t, categories, 6)

	for i, li := range lines {
		sess := cart.Session{Items: []cart.Item{{
			Description: *li.PriceData.ProductData.Description,
			Quantity:    1,
			AmountTotal: 100,
		}}}
		c := cart.Reconstruct(zap.NewNop(), sess)
		require.Len(t, c.Lines, 1, "description %q must be classifiable", *li.PriceData.ProductData.Description)
		assert.Equal(t, categories[i], c.Lines[0].Category)
	}
}

func TestBuildLineItems_Prices(t *testing.T) {
	lines, _ := buildLineItems(fullCheckoutRequest())
	require.Len(t, lines, 6)

	assert.Equal(t, int64(2500), *lines[0].PriceData.UnitAmount) // event ticket
	assert.Equal(t, int64(4), *lines[0].Quantity)
	assert.Equal(t, int64(2500), *lines[1].PriceData.UnitAmount)  // horse
	assert.Equal(t, int64(10000), *lines[2].PriceData.UnitAmount) // full page ad
	assert.Equal(t, int64(2000), *lines[3].PriceData.UnitAmount)  // raffle book
	assert.Equal(t, int64(2), *lines[3].Quantity)
	assert.Equal(t, int64(2500), *lines[4].PriceData.UnitAmount) // donation
	assert.Equal(t, int64(548), *lines[5].PriceData.UnitAmount)  // processing fee
}

func TestBuildLineItems_IndividualRaffle(t *testing.T) {
	req := CheckoutRequest{Cart: CheckoutCart{
		RaffleTickets: &RaffleRequest{Type: "individual", IndividualTickets: 3},
	}}

	lines, categories := buildLineItems(req)
	require.Len(t, lines, 1)
	assert.Equal(t, cart.CategoryRaffleIndividual, categories[0])
	assert.Equal(t, int64(500), *lines[0].PriceData.UnitAmount)
	assert.Equal(t, int64(3), *lines[0].Quantity)
}

func TestBuildLineItems_LegacyCashDonationKey(t *testing.T) {
	req := CheckoutRequest{Cart: CheckoutCart{
		CashDonation: &CashDonationRequest{Amount: decimal.RequireFromString("40.00")},
	}}

	lines, categories := buildLineItems(req)
	require.Len(t, lines, 1)
	assert.Equal(t, cart.CategoryDonation, categories[0])
	assert.Equal(t, int64(4000), *lines[0].PriceData.UnitAmount)
}

func TestBuildLineItems_SkipsEmptySections(t *testing.T) {
	req := CheckoutRequest{Cart: CheckoutCart{
		EventTickets: &EventTicketsRequest{Quantity: 0},
		Donation:     &DonationRequest{Type: "cash", Amount: decimal.Zero},
		ProgramAds:   []ProgramAdRequest{{BusinessName: "Free", Price: 0}},
	}}

	lines, _ := buildLineItems(req)
	assert.Empty(t, lines)
}

func TestBuildMetadata_TruncatesLongValues(t *testing.T) {
	req := fullCheckoutRequest()
	req.Purchaser.DancerFamily = strings.Repeat("x", 600)

	md := buildMetadata(req, nil)
	assert.Len(t, md[cart.MetaDancerFamily], metadataValueLimit)
}

func TestTruncate_KeepsRuneBoundary(t *testing.T) {
	s := strings.Repeat("½", 4) // each rune is two bytes

	got := truncate(s, 5)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, "½½", got)

	assert.Equal(t, s, truncate(s, 8))
	assert.Equal(t, "abc", truncate("abcdef", 3))
}

func TestSizeLabelForPrice(t *testing.T) {
	assert.Equal(t, "Business Card", sizeLabelForPrice(25))
	assert.Equal(t, "½ Page", sizeLabelForPrice(50))
	assert.Equal(t, "Full Page", sizeLabelForPrice(100))
	assert.Equal(t, "Full Page + Sponsored Race", sizeLabelForPrice(120))
	assert.Equal(t, "Program Ad", sizeLabelForPrice(37))
}

func TestDollarsToCents(t *testing.T) {
	assert.Equal(t, int64(2500), dollarsToCents(decimal.RequireFromString("25.00")))
	assert.Equal(t, int64(548), dollarsToCents(decimal.RequireFromString("5.48")))
	assert.Equal(t, int64(0), dollarsToCents(decimal.Zero))
}
