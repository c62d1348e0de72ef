package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

// Order is the aggregate root of checkout and payment reconciliation.
type Order struct {
	ID              uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID          *uuid.UUID            `gorm:"column:user_id;type:uuid" json:"userId,omitempty"`
	Items           []OrderItem           `gorm:"column:items;type:jsonb;serializer:json;not null" json:"items"`
	Currency        string                `gorm:"column:currency;not null;default:'eur'" json:"currency"`
	TotalCents      types.Money           `gorm:"column:total_cents;not null" json:"totalAmount"`
	DiscountCents   types.Money           `gorm:"column:discount_cents;not null;default:0" json:"discount"`
	FinalTotalCents types.Money           `gorm:"column:final_total_cents;not null" json:"finalTotal"`
	CouponCode      *string               `gorm:"column:coupon_code" json:"couponCode,omitempty"`
	PaymentMethod   enums.PaymentMethod   `gorm:"column:payment_method;not null" json:"paymentMethod"`
	PaymentStatus   enums.PaymentStatus   `gorm:"column:payment_status;not null;default:'pending'" json:"paymentStatus"`
	IsPaid          bool                  `gorm:"column:is_paid;not null;default:false" json:"isPaid"`
	PaidAt          *time.Time            `gorm:"column:paid_at" json:"paidAt,omitempty"`
	PaymentIntentID *string               `gorm:"column:payment_intent_id" json:"paymentIntentId,omitempty"`
	IdempotencyKey  *string               `gorm:"column:idempotency_key" json:"-"`
	Status          enums.OrderStatus     `gorm:"column:status;not null;default:'Processing'" json:"status"`
	CancelReason    *string               `gorm:"column:cancel_reason" json:"cancelReason,omitempty"`
	Shipping        types.ShippingAddress `gorm:"column:shipping;type:jsonb;serializer:json" json:"shipping"`
	Contact         types.Contact         `gorm:"column:contact;type:jsonb;serializer:json" json:"contact"`
	RefundID        *string               `gorm:"column:refund_id" json:"refundId,omitempty"`
	RefundedAt      *time.Time            `gorm:"column:refunded_at" json:"refundedAt,omitempty"`
	DisputedAt      *time.Time            `gorm:"column:disputed_at" json:"disputedAt,omitempty"`
	CreatedAt       time.Time             `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt       time.Time             `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

// OrderItem is the immutable line snapshot stored on the order.
type OrderItem struct {
	ProductID  uuid.UUID   `json:"productId"`
	VariantID  *uuid.UUID  `json:"variantId,omitempty"`
	Name       string      `json:"name"`
	Image      string      `json:"image,omitempty"`
	UnitPrice  types.Money `json:"price"`
	Quantity   int         `json:"qty"`
	Color      string      `json:"color,omitempty"`
	Dimensions string      `json:"dimensions"`
}

// IsGuest reports whether the order was placed without an account.
func (o Order) IsGuest() bool {
	return o.UserID == nil
}

// ContactEmail returns the best known email for customer notifications.
func (o Order) ContactEmail() string {
	if o.Contact.Email != "" {
		return o.Contact.Email
	}
	return o.Shipping.Email
}
