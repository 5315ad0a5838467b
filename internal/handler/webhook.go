package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	gostripe "github.com/stripe/stripe-go/v82"
	"go.uber.org/zap"

	"github.com/mleary/nightraces/internal/domain/cart"
	stripeclient "github.com/mleary/nightraces/internal/stripe"
)

// webhookBodyLimit caps the webhook payload size. Stripe events are small;
// anything larger is not a legitimate delivery.
const webhookBodyLimit = 1 << 20

// HandleWebhook receives provider-signed confirmation events.
//
// Everything after successful signature verification is acknowledged with
// 2xx, including internal processing failures: Stripe retries any non-2xx
// response, and redelivering an event we already verified only produces
// duplicate work that the idempotency key rejects anyway. Failures are
// surfaced through logs for manual reconciliation.
func (h *Handler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	lg := zctx.From(r.Context())

	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	// The raw bytes feed signature verification; nothing may parse the body
	// before this read.
	r.Body = http.MaxBytesReader(w, r.Body, webhookBodyLimit)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	sig := r.Header.Get("Stripe-Signature")
	if sig == "" {
		writeError(w, http.StatusBadRequest, "invalid signature")
		return
	}

	event, err := h.provider.VerifyEvent(payload, sig)
	if err != nil {
		if errors.Is(err, stripeclient.ErrMisconfigured) {
			lg.Error("webhook secret not configured")
			writeError(w, http.StatusInternalServerError, "webhook not configured")
			return
		}
		lg.Warn("webhook signature verification failed", zap.Error(err))
		writeError(w, http.StatusBadRequest, "invalid signature")
		return
	}

	if event.Type != gostripe.EventTypeCheckoutSessionCompleted {
		lg.Debug("ignoring event", zap.String("type", string(event.Type)))
		writeJSON(w, http.StatusOK, map[string]any{"received": true})
		return
	}

	orderID := h.processCompletedSession(r.Context(), lg, event)
	resp := map[string]any{"received": true}
	if orderID != "" {
		resp["orderId"] = orderID
	}
	writeJSON(w, http.StatusOK, resp)
}

// processCompletedSession runs the reconciliation pipeline for one completed
// checkout session and returns the order ID when one was persisted. All
// failures are logged, never propagated: the caller acknowledges regardless.
func (h *Handler) processCompletedSession(ctx context.Context, lg *zap.Logger, event gostripe.Event) string {
	if event.Data == nil {
		lg.Error("event carries no data object",
			zap.String("event_id", event.ID),
		)
		return ""
	}

	var notified gostripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &notified); err != nil || notified.ID == "" {
		lg.Error("could not decode session from event",
			zap.String("event_id", event.ID),
			zap.Error(err),
		)
		return ""
	}

	lg.Info("payment completed",
		zap.String("event_id", event.ID),
		zap.String("session_id", notified.ID),
	)

	full, err := h.provider.FetchSession(ctx, notified.ID)
	if err != nil {
		lg.Error("could not retrieve session, order not recorded",
			zap.String("session_id", notified.ID),
			zap.Error(err),
		)
		return ""
	}

	sess := sessionFromStripe(full)
	c := cart.Reconstruct(lg, sess)
	fee := h.provider.ActualFee(ctx, full)

	res, err := h.orders.Process(ctx, c, fee)
	if err != nil {
		lg.Error("order persistence failed",
			zap.String("session_id", sess.ID),
			zap.Error(err),
		)
		return ""
	}
	if res.AlreadyProcessed {
		return res.Order.ID
	}
	if len(res.FailedCategories) > 0 {
		lg.Error("order persisted with category gaps",
			zap.String("session_id", sess.ID),
			zap.String("order_id", res.Order.ID),
			zap.Any("failed_categories", res.FailedCategories),
		)
	} else {
		lg.Info("order processing complete",
			zap.String("session_id", sess.ID),
			zap.String("order_id", res.Order.ID),
		)
	}
	return res.Order.ID
}

// sessionFromStripe maps the expanded Stripe session onto the
// provider-agnostic view the domain works with.
func sessionFromStripe(s *gostripe.CheckoutSession) cart.Session {
	sess := cart.Session{
		ID:             s.ID,
		PurchaserName:  s.Metadata[cart.MetaPurchaserName],
		Email:          s.CustomerEmail,
		Phone:          s.Metadata[cart.MetaPhone],
		DancerFamily:   s.Metadata[cart.MetaDancerFamily],
		AmountTotal:    s.AmountTotal,
		AmountSubtotal: s.AmountSubtotal,
		Metadata:       s.Metadata,
	}
	if s.CustomerDetails != nil {
		if s.CustomerDetails.Email != "" {
			sess.Email = s.CustomerDetails.Email
		}
		if sess.Phone == "" {
			sess.Phone = s.CustomerDetails.Phone
		}
	}
	if s.PaymentIntent != nil {
		sess.PaymentIntentID = s.PaymentIntent.ID
	}
	if s.LineItems != nil {
		sess.Items = make([]cart.Item, 0, len(s.LineItems.Data))
		for _, li := range s.LineItems.Data {
			qty := int(li.Quantity)
			if qty <= 0 {
				qty = 1
			}
			sess.Items = append(sess.Items, cart.Item{
				Description: li.Description,
				Quantity:    qty,
				AmountTotal: li.AmountTotal,
			})
		}
	}
	return sess
}
