package orders

import (
	"strings"

	"github.com/angelmondragon/storefront-backend/internal/pricing"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/types"
	"github.com/google/uuid"
)

// CartItem is one requested line, shared with the create-payment route.
type CartItem struct {
	ProductID  string `json:"productId" validate:"required,uuid"`
	VariantID  string `json:"variantId,omitempty" validate:"omitempty,uuid"`
	Quantity   int    `json:"qty" validate:"required,min=1,max=100"`
	Color      string `json:"color,omitempty" validate:"omitempty,max=60"`
	Dimensions string `json:"dimensions,omitempty" validate:"omitempty,max=60"`
	// Accepted for compatibility with older carts. Prices are always read from the catalog.
	Price *types.Money `json:"price,omitempty"`
	Name  string       `json:"name,omitempty"`
}

// placeOrderRequest is shared by the authenticated and guest checkout routes.
type placeOrderRequest struct {
	// UserID is ignored; the caller identity comes from the bearer token.
	UserID          string                `json:"userId,omitempty"`
	Items           []CartItem            `json:"items" validate:"required,min=1,max=50,dive"`
	Total           *types.Money          `json:"total,omitempty"`
	PaymentIntentID string                `json:"paymentIntentId,omitempty" validate:"omitempty,max=255"`
	PaymentMethod   string                `json:"paymentMethod,omitempty" validate:"omitempty,oneof=CARD COD card cod"`
	IdempotencyKey  string                `json:"idempotencyKey,omitempty" validate:"omitempty,max=255"`
	Shipping        types.ShippingAddress `json:"shipping"`
	Contact         types.Contact         `json:"contact"`
	CouponCode      string                `json:"couponCode,omitempty" validate:"omitempty,max=64"`
}

type updateStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

type cancelOrderRequest struct {
	Reason string `json:"reason,omitempty" validate:"omitempty,max=500"`
	OTP    string `json:"otp"`
}

// ToLines converts request items into pricing lines.
func ToLines(items []CartItem) ([]pricing.Line, error) {
	lines := make([]pricing.Line, 0, len(items))
	for i, item := range items {
		productID, err := uuid.Parse(strings.TrimSpace(item.ProductID))
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid product id").
				WithDetails(map[string]any{"index": i})
		}
		line := pricing.Line{
			ProductID:  productID,
			Color:      item.Color,
			Dimensions: item.Dimensions,
			Quantity:   item.Quantity,
		}
		if raw := strings.TrimSpace(item.VariantID); raw != "" {
			variantID, err := uuid.Parse(raw)
			if err != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid variant id").
					WithDetails(map[string]any{"index": i})
			}
			line.VariantID = &variantID
		}
		lines = append(lines, line)
	}
	return lines, nil
}
