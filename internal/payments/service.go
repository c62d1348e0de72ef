package payments

import (
	"context"
	"fmt"
	"strings"

	"github.com/angelmondragon/storefront-backend/internal/pricing"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/stripe"
	"github.com/angelmondragon/storefront-backend/pkg/types"
	"github.com/google/uuid"
)

// Metadata keys attached to created intents.
const (
	MetadataIdempotencyKey = "idempotencyKey"
	MetadataCouponCode     = "couponCode"
	MetadataGuestEmail     = "guestEmail"
)

// Service opens and inspects card payments ahead of order placement.
type Service interface {
	CreatePayment(ctx context.Context, input CreatePaymentInput) (*CreatePaymentResult, error)
	VerifyPayment(ctx context.Context, intentID string) (*VerifyPaymentResult, error)
}

// CreatePaymentInput is a cart the client intends to pay by card.
type CreatePaymentInput struct {
	Items          []pricing.Line
	Currency       string
	CouponCode     string
	UserID         *uuid.UUID
	GuestEmail     string
	IdempotencyKey string
}

// CreatePaymentResult hands the client what it needs to confirm the intent.
type CreatePaymentResult struct {
	ClientSecret    string      `json:"clientSecret"`
	PaymentIntentID string      `json:"paymentIntentId"`
	Amount          types.Money `json:"amount"`
	Subtotal        types.Money `json:"subtotal"`
	Discount        types.Money `json:"discount"`
	Currency        string      `json:"currency"`
	IdempotencyKey  string      `json:"idempotencyKey"`
	CouponRejection string      `json:"couponRejection,omitempty"`
}

// VerifyPaymentResult reports the gateway's view of an intent.
type VerifyPaymentResult struct {
	Success bool        `json:"success"`
	Status  string      `json:"status"`
	Amount  types.Money `json:"amount"`
}

type quoter interface {
	Quote(ctx context.Context, in pricing.QuoteInput) (*pricing.Quote, error)
}

type intentGateway interface {
	CreateIntent(ctx context.Context, in stripe.CreateIntentInput) (stripe.Intent, error)
	RetrieveIntent(ctx context.Context, id string) (stripe.Intent, error)
}

// ServiceParams groups dependencies for the payments service.
type ServiceParams struct {
	Pricing  quoter
	Gateway  intentGateway
	Checkout config.CheckoutConfig
	Logger   *logger.Logger
}

type service struct {
	pricing  quoter
	gateway  intentGateway
	currency string
	logg     *logger.Logger
	newKey   func() string
}

// NewService constructs the payments service.
func NewService(params ServiceParams) (Service, error) {
	if params.Pricing == nil {
		return nil, fmt.Errorf("pricing engine required")
	}
	if params.Gateway == nil {
		return nil, fmt.Errorf("payment gateway required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	currency := strings.ToLower(strings.TrimSpace(params.Checkout.Currency))
	if currency == "" {
		currency = "eur"
	}
	return &service{
		pricing:  params.Pricing,
		gateway:  params.Gateway,
		currency: currency,
		logg:     logg,
		newKey:   uuid.NewString,
	}, nil
}

func (s *service) CreatePayment(ctx context.Context, input CreatePaymentInput) (*CreatePaymentResult, error) {
	currency := strings.ToLower(strings.TrimSpace(input.Currency))
	if currency == "" {
		currency = s.currency
	}
	if currency != s.currency {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("currency must be %s", s.currency))
	}

	quote, err := s.pricing.Quote(ctx, pricing.QuoteInput{
		Lines:      input.Items,
		CouponCode: input.CouponCode,
		UserID:     input.UserID,
		Method:     enums.PaymentMethodCard,
	})
	if err != nil {
		return nil, err
	}

	key := strings.TrimSpace(input.IdempotencyKey)
	if key == "" {
		key = s.newKey()
	}
	metadata := map[string]string{
		MetadataIdempotencyKey: key,
		MetadataGuestEmail:     strings.ToLower(strings.TrimSpace(input.GuestEmail)),
	}
	if input.UserID != nil {
		metadata[stripe.MetadataUserID] = input.UserID.String()
	}
	if quote.Coupon != nil {
		metadata[MetadataCouponCode] = quote.Coupon.Code
	}

	intent, err := s.gateway.CreateIntent(ctx, stripe.CreateIntentInput{
		AmountMinor:    quote.FinalTotal.Cents(),
		Currency:       currency,
		Metadata:       metadata,
		IdempotencyKey: key,
	})
	if err != nil {
		if gwErr, ok := stripe.AsGatewayError(err); ok {
			return nil, gwErr.AsAPIError()
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodePaymentUnavailable, err, "create payment intent")
	}

	s.logg.Info(s.logg.WithPaymentIntentID(ctx, intent.ID), "payment.intent.created")
	return &CreatePaymentResult{
		ClientSecret:    intent.ClientSecret,
		PaymentIntentID: intent.ID,
		Amount:          quote.FinalTotal,
		Subtotal:        quote.Subtotal,
		Discount:        quote.Discount,
		Currency:        currency,
		IdempotencyKey:  key,
		CouponRejection: quote.CouponRejection,
	}, nil
}

func (s *service) VerifyPayment(ctx context.Context, intentID string) (*VerifyPaymentResult, error) {
	intentID = strings.TrimSpace(intentID)
	if intentID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "paymentIntentId required")
	}
	if enums.IsCODIntent(intentID) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cash on delivery orders have no card payment")
	}
	intent, err := s.gateway.RetrieveIntent(ctx, intentID)
	if err != nil {
		if gwErr, ok := stripe.AsGatewayError(err); ok {
			return nil, gwErr.AsAPIError()
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodePaymentUnavailable, err, "retrieve payment intent")
	}
	return &VerifyPaymentResult{
		Success: intent.Succeeded(),
		Status:  intent.Status,
		Amount:  types.Money(intent.AmountMinor),
	}, nil
}
