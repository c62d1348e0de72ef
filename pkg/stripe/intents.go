package stripe

import (
	"context"
	"errors"
	"strings"

	"github.com/stripe/stripe-go/v84"
)

// MetadataUserID is the metadata key carrying the purchasing account id.
const MetadataUserID = "userId"

// CreateIntentInput describes a new card payment.
type CreateIntentInput struct {
	AmountMinor    int64
	Currency       string
	Metadata       map[string]string
	IdempotencyKey string
}

// Intent is the gateway-neutral view of a payment intent.
type Intent struct {
	ID           string
	ClientSecret string
	Status       string
	AmountMinor  int64
	Currency     string
	UserID       string
	Metadata     map[string]string
}

// Succeeded reports whether the intent has been paid.
func (i Intent) Succeeded() bool {
	return i.Status == string(stripe.PaymentIntentStatusSucceeded)
}

// CreateIntent opens a payment intent with automatic payment methods enabled.
func (c *Client) CreateIntent(ctx context.Context, in CreateIntentInput) (Intent, error) {
	if c == nil || c.intents == nil {
		return Intent{}, errors.New("stripe client not initialized")
	}

	params := &stripe.PaymentIntentCreateParams{
		Amount:   stripe.Int64(in.AmountMinor),
		Currency: stripe.String(strings.ToLower(in.Currency)),
		AutomaticPaymentMethods: &stripe.PaymentIntentCreateAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	if len(in.Metadata) > 0 {
		params.Metadata = make(map[string]string, len(in.Metadata))
		for k, v := range in.Metadata {
			if v != "" {
				params.Metadata[k] = v
			}
		}
	}
	if key := strings.TrimSpace(in.IdempotencyKey); key != "" {
		params.SetIdempotencyKey(key)
	}

	pi, err := c.intents.Create(ctx, params)
	if err != nil {
		return Intent{}, classify("create payment intent", err)
	}
	return intentFrom(pi), nil
}

// RetrieveIntent fetches the current state of a payment intent.
func (c *Client) RetrieveIntent(ctx context.Context, id string) (Intent, error) {
	if c == nil || c.intents == nil {
		return Intent{}, errors.New("stripe client not initialized")
	}
	pi, err := c.intents.Retrieve(ctx, strings.TrimSpace(id), nil)
	if err != nil {
		return Intent{}, classify("retrieve payment intent", err)
	}
	return intentFrom(pi), nil
}

func intentFrom(pi *stripe.PaymentIntent) Intent {
	if pi == nil {
		return Intent{}
	}
	return Intent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Status:       string(pi.Status),
		AmountMinor:  pi.Amount,
		Currency:     string(pi.Currency),
		UserID:       pi.Metadata[MetadataUserID],
		Metadata:     pi.Metadata,
	}
}
