// Package handler exposes the HTTP surface: the Stripe webhook endpoint and
// the checkout-session creation endpoint.
package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/shopspring/decimal"
	gostripe "github.com/stripe/stripe-go/v82"

	"github.com/mleary/nightraces/internal/domain/cart"
	"github.com/mleary/nightraces/internal/domain/order"
)

// PaymentProvider is the payment collaborator surface the handlers depend on.
type PaymentProvider interface {
	VerifyEvent(payload []byte, sigHeader string) (gostripe.Event, error)
	FetchSession(ctx context.Context, id string) (*gostripe.CheckoutSession, error)
	ActualFee(ctx context.Context, sess *gostripe.CheckoutSession) decimal.Decimal
	CreateSession(ctx context.Context, params *gostripe.CheckoutSessionParams) (*gostripe.CheckoutSession, error)
}

// OrderProcessor persists a reconstructed cart.
type OrderProcessor interface {
	Process(ctx context.Context, c cart.Cart, providerFee decimal.Decimal) (*order.Result, error)
}

// Compile-time check that the order service satisfies OrderProcessor.
var _ OrderProcessor = (*order.Service)(nil)

// Config holds non-dependency handler configuration.
type Config struct {
	// SuccessURL and CancelURL are the hosted-checkout redirect targets.
	SuccessURL string
	CancelURL  string
}

// Handler serves the checkout and webhook endpoints.
type Handler struct {
	provider PaymentProvider
	orders   OrderProcessor
	cfg      Config
}

// NewHandler constructs a Handler with its collaborators.
func NewHandler(cfg Config, provider PaymentProvider, orders OrderProcessor) *Handler {
	return &Handler{
		provider: provider,
		orders:   orders,
		cfg:      cfg,
	}
}

// Register mounts the handler's routes on the mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/webhooks/stripe", h.HandleWebhook)
	mux.HandleFunc("/api/checkout", h.HandleCreateCheckout)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
