package stripe

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/webhook"
)

// ErrInvalidSignature means the payload was not signed with our secret.
var ErrInvalidSignature = errors.New("stripe webhook signature verification failed")

// EventKind is the reconciliation-relevant category of a webhook event.
type EventKind string

const (
	EventPaymentSucceeded EventKind = "payment_succeeded"
	EventPaymentFailed    EventKind = "payment_failed"
	EventRefunded         EventKind = "refunded"
	EventDisputed         EventKind = "disputed"
	EventCanceled         EventKind = "canceled"
	EventUnhandled        EventKind = "unhandled"
)

// Event is a verified webhook event reduced to what reconciliation needs.
type Event struct {
	ID          string
	Type        string
	Kind        EventKind
	IntentID    string
	ChargeID    string
	RefundID    string
	AmountMinor int64
	Reason      string
}

// DecodeWebhookEvent verifies the signature header against the raw payload and
// classifies the event.
func (c *Client) DecodeWebhookEvent(payload []byte, header string) (Event, error) {
	secret := c.SigningSecret()
	if secret == "" {
		return Event{}, ErrSigningSecretMissing
	}
	return DecodeEvent(payload, header, secret)
}

// DecodeEvent is DecodeWebhookEvent with an explicit secret.
func DecodeEvent(payload []byte, header, secret string) (Event, error) {
	if strings.TrimSpace(secret) == "" {
		return Event{}, ErrSigningSecretMissing
	}
	raw, err := webhook.ConstructEventWithOptions(payload, header, secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	evt := Event{ID: raw.ID, Type: string(raw.Type), Kind: EventUnhandled}
	if raw.Data == nil {
		return evt, nil
	}

	switch raw.Type {
	case stripe.EventTypePaymentIntentSucceeded, stripe.EventTypePaymentIntentPaymentFailed, stripe.EventTypePaymentIntentCanceled:
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(raw.Data.Raw, &pi); err != nil {
			return Event{}, fmt.Errorf("decode payment intent: %w", err)
		}
		evt.IntentID = pi.ID
		evt.AmountMinor = pi.Amount
		switch raw.Type {
		case stripe.EventTypePaymentIntentSucceeded:
			evt.Kind = EventPaymentSucceeded
		case stripe.EventTypePaymentIntentPaymentFailed:
			evt.Kind = EventPaymentFailed
			if pi.LastPaymentError != nil {
				evt.Reason = pi.LastPaymentError.Msg
			}
		default:
			evt.Kind = EventCanceled
			evt.Reason = string(pi.CancellationReason)
		}

	case stripe.EventTypeChargeRefunded:
		var ch stripe.Charge
		if err := json.Unmarshal(raw.Data.Raw, &ch); err != nil {
			return Event{}, fmt.Errorf("decode charge: %w", err)
		}
		evt.Kind = EventRefunded
		evt.ChargeID = ch.ID
		evt.AmountMinor = ch.AmountRefunded
		if ch.PaymentIntent != nil {
			evt.IntentID = ch.PaymentIntent.ID
		}
		if ch.Refunds != nil && len(ch.Refunds.Data) > 0 && ch.Refunds.Data[0] != nil {
			evt.RefundID = ch.Refunds.Data[0].ID
		}

	case stripe.EventTypeChargeDisputeCreated:
		var dp stripe.Dispute
		if err := json.Unmarshal(raw.Data.Raw, &dp); err != nil {
			return Event{}, fmt.Errorf("decode dispute: %w", err)
		}
		evt.Kind = EventDisputed
		evt.AmountMinor = dp.Amount
		evt.Reason = string(dp.Reason)
		if dp.PaymentIntent != nil {
			evt.IntentID = dp.PaymentIntent.ID
		}
		if dp.Charge != nil {
			evt.ChargeID = dp.Charge.ID
		}
	}
	return evt, nil
}
