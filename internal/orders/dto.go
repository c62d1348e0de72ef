package orders

import (
	"time"

	"github.com/angelmondragon/storefront-backend/internal/pricing"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
	"github.com/angelmondragon/storefront-backend/pkg/types"
	"github.com/google/uuid"
)

// PlaceInput is an order submission after request decoding.
type PlaceInput struct {
	UserID *uuid.UUID
	// Email is the authenticated caller's email, used when the contact omits one.
	Email           string
	Items           []pricing.Line
	ClaimedTotal    *types.Money
	PaymentIntentID string
	PaymentMethod   string
	IdempotencyKey  string
	Shipping        types.ShippingAddress
	Contact         types.Contact
	CouponCode      string
	Guest           bool
}

// UpdateStatusInput is a staff fulfillment change.
type UpdateStatusInput struct {
	OrderID uuid.UUID
	Status  string
	ActorID uuid.UUID
}

// ConfirmCancelInput is the customer's OTP-backed cancellation.
type ConfirmCancelInput struct {
	OrderID uuid.UUID
	Reason  string
	OTP     string
}

// Viewer identifies who is reading an order.
type Viewer struct {
	UserID uuid.UUID
	Staff  bool
}

// OTPChallenge describes a dispatched cancellation code.
type OTPChallenge struct {
	OrderID   uuid.UUID `json:"orderId"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// OTPRecord is the stored form of a cancellation code.
type OTPRecord struct {
	Hash       string    `json:"hash"`
	ExpiresAt  time.Time `json:"expiresAt"`
	LastSentAt time.Time `json:"lastSentAt"`
}

// ListFilters narrows order listings.
type ListFilters struct {
	UserID *uuid.UUID
	Status *enums.OrderStatus
	From   *time.Time
	To     *time.Time
}

// OrderList is one page of orders, newest first.
type OrderList struct {
	Orders     []models.Order  `json:"orders"`
	Pagination pagination.Meta `json:"pagination"`
}

// ReconcileOutcome reports what a webhook event did to the order table.
type ReconcileOutcome string

const (
	OutcomeApplied ReconcileOutcome = "applied"
	OutcomeNoop    ReconcileOutcome = "noop"
	OutcomeIgnored ReconcileOutcome = "ignored"
)
