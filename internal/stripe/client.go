// Package stripe wraps the official Stripe SDK with the small surface the
// order pipeline needs: webhook verification, confirmed-session retrieval,
// actual-fee lookup, and checkout session creation.
package stripe

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	gostripe "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
	"github.com/stripe/stripe-go/v82/webhook"
	"go.uber.org/zap"

	"github.com/mleary/nightraces/internal/domain/cart"
)

// ErrMisconfigured is returned when webhook verification is attempted without
// a configured signing secret.
var ErrMisconfigured = errors.New("stripe webhook secret not configured")

// Client is the payment-provider collaborator. All calls that hit the Stripe
// API take a context and are subject to the SDK's per-request timeouts.
type Client struct {
	api           *client.API
	webhookSecret string
	lg            *zap.Logger
}

// New creates a Client with its own SDK backend bound to the given secret key.
func New(secretKey, webhookSecret string, lg *zap.Logger) *Client {
	api := &client.API{}
	api.Init(secretKey, nil)
	return &Client{
		api:           api,
		webhookSecret: webhookSecret,
		lg:            lg,
	}
}

// VerifyEvent authenticates a webhook delivery against the signing secret.
// The payload must be the raw request bytes exactly as transmitted: any
// decode/re-encode step upstream breaks the signature.
func (c *Client) VerifyEvent(payload []byte, sigHeader string) (gostripe.Event, error) {
	if c.webhookSecret == "" {
		return gostripe.Event{}, ErrMisconfigured
	}
	event, err := webhook.ConstructEventWithOptions(payload, sigHeader, c.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true},
	)
	if err != nil {
		return gostripe.Event{}, errors.Wrap(err, "verify webhook signature")
	}
	return event, nil
}

// FetchSession retrieves the full checkout session, expanding line items and
// the payment intent's latest charge. The expanded session is the source of
// truth for what was actually charged.
func (c *Client) FetchSession(ctx context.Context, id string) (*gostripe.CheckoutSession, error) {
	params := &gostripe.CheckoutSessionParams{}
	params.Context = ctx
	params.AddExpand("line_items")
	params.AddExpand("payment_intent.latest_charge")

	sess, err := c.api.CheckoutSessions.Get(id, params)
	if err != nil {
		return nil, errors.Wrapf(err, "retrieve checkout session %s", id)
	}
	return sess, nil
}

// ActualFee looks up the Stripe-reported fee for the session's charge via its
// balance transaction. The fee is informational, so any gap in the chain
// (no intent, no charge, no balance transaction yet) degrades to zero with a
// warning rather than failing reconciliation.
func (c *Client) ActualFee(ctx context.Context, sess *gostripe.CheckoutSession) decimal.Decimal {
	if sess.PaymentIntent == nil || sess.PaymentIntent.LatestCharge == nil {
		return decimal.Zero
	}
	bt := sess.PaymentIntent.LatestCharge.BalanceTransaction
	if bt == nil || bt.ID == "" {
		return decimal.Zero
	}

	params := &gostripe.BalanceTransactionParams{}
	params.Context = ctx
	full, err := c.api.BalanceTransactions.Get(bt.ID, params)
	if err != nil {
		c.lg.Warn("could not retrieve balance transaction, recording zero provider fee",
			zap.String("session_id", sess.ID),
			zap.String("balance_transaction_id", bt.ID),
			zap.Error(err),
		)
		return decimal.Zero
	}
	return cart.Dollars(full.Fee)
}

// CreateSession creates a hosted checkout session from prepared params.
func (c *Client) CreateSession(ctx context.Context, params *gostripe.CheckoutSessionParams) (*gostripe.CheckoutSession, error) {
	params.Context = ctx
	sess, err := c.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, errors.Wrap(err, "create checkout session")
	}
	return sess, nil
}
