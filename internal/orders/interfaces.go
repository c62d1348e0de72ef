package orders

import (
	"context"
	"time"

	"github.com/angelmondragon/storefront-backend/internal/coupons"
	"github.com/angelmondragon/storefront-backend/internal/inventory"
	"github.com/angelmondragon/storefront-backend/internal/pricing"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
	"github.com/angelmondragon/storefront-backend/pkg/stripe"
	"github.com/angelmondragon/storefront-backend/pkg/types"
	"github.com/google/uuid"
)

// Repository defines persistence operations for the orders table.
type Repository interface {
	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindByPaymentIntent(ctx context.Context, intentID string) (*models.Order, error)
	FindByIdempotencyKey(ctx context.Context, key string) (*models.Order, error)
	CountByUser(ctx context.Context, userID uuid.UUID) (int64, error)
	List(ctx context.Context, filters ListFilters, params pagination.Params) (*OrderList, error)
	TransitionPayment(ctx context.Context, intentID string, from []enums.PaymentStatus, updates map[string]any) (bool, error)
	TransitionStatus(ctx context.Context, id uuid.UUID, from []enums.OrderStatus, updates map[string]any) (bool, error)
	DeleteCancelled(ctx context.Context, id uuid.UUID) (bool, error)
}

// Quoter prices a cart.
type Quoter interface {
	Quote(ctx context.Context, in pricing.QuoteInput) (*pricing.Quote, error)
}

// IntentRetriever reads a payment intent from the gateway.
type IntentRetriever interface {
	RetrieveIntent(ctx context.Context, id string) (stripe.Intent, error)
}

// StockAdjuster moves stock for committed and cancelled orders.
type StockAdjuster interface {
	DecrementAll(ctx context.Context, lines []inventory.Line) (inventory.Summary, error)
	IncrementAll(ctx context.Context, lines []inventory.Line) error
}

// CouponConsumer marks a ledger coupon as used by an order.
type CouponConsumer interface {
	TryConsume(ctx context.Context, code string, userID, orderID uuid.UUID, subtotal types.Money) (coupons.Consumption, error)
}

// Notifier fans order events out to customers and operators. Every method is
// best effort; callers log returned errors and move on.
type Notifier interface {
	CustomerOrderPlaced(ctx context.Context, order *models.Order) error
	OperatorsOrderPlaced(ctx context.Context, order *models.Order) error
	PaymentConfirmed(ctx context.Context, order *models.Order) error
	PaymentFailed(ctx context.Context, order *models.Order, reason string) error
	Refunded(ctx context.Context, order *models.Order) error
	Disputed(ctx context.Context, order *models.Order, reason string) error
	CancelOTP(ctx context.Context, order *models.Order, code string, ttl time.Duration) error
	OrderCancelled(ctx context.Context, order *models.Order) error
}

// OTPStore keeps at most one pending cancellation code per order.
type OTPStore interface {
	Save(ctx context.Context, orderID uuid.UUID, record OTPRecord, ttl time.Duration) error
	// Load returns nil, nil when no record exists.
	Load(ctx context.Context, orderID uuid.UUID) (*OTPRecord, error)
	Delete(ctx context.Context, orderID uuid.UUID) error
}
