package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// Coupon is a single-use discount code tied to one user.
type Coupon struct {
	ID           uuid.UUID                `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Code         string                   `gorm:"column:code;not null;uniqueIndex"`
	UserID       uuid.UUID                `gorm:"column:user_id;type:uuid;not null"`
	DiscountType enums.CouponDiscountType `gorm:"column:discount_type;not null;default:'percent'"`
	Value        decimal.Decimal          `gorm:"column:value;type:numeric(5,2);not null"`
	Reason       enums.CouponReason       `gorm:"column:reason;not null"`
	ExpiresAt    time.Time                `gorm:"column:expires_at;not null"`
	UsedAt       *time.Time               `gorm:"column:used_at"`
	OrderID      *uuid.UUID               `gorm:"column:order_id;type:uuid"`
	CreatedAt    time.Time                `gorm:"column:created_at;autoCreateTime"`
}

// IsUsed reports whether the coupon was already consumed.
func (c Coupon) IsUsed() bool {
	return c.UsedAt != nil
}
