package coupons

import (
	"context"
	"strings"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/types"
	"github.com/google/uuid"
)

// Rejection reasons returned by Evaluate.
const (
	RejectNotFound      = "coupon_not_found"
	RejectUsed          = "coupon_already_used"
	RejectExpired       = "coupon_expired"
	RejectNotApplicable = "coupon_not_applicable"
)

// Consumption is the outcome of TryConsume.
type Consumption struct {
	Applied bool
	Amount  types.Money
}

// Ledger validates and consumes single-use welcome coupons.
type Ledger struct {
	repo  Repository
	clock func() time.Time
}

// NewLedger builds a ledger over repo.
func NewLedger(repo Repository) *Ledger {
	return &Ledger{repo: repo, clock: func() time.Time { return time.Now().UTC() }}
}

// Evaluate checks whether code is currently redeemable by userID without
// consuming it. A non-empty rejection means no discount; err is reserved for
// storage failures.
func (l *Ledger) Evaluate(ctx context.Context, code string, userID uuid.UUID, now time.Time) (*models.Coupon, string, error) {
	if strings.TrimSpace(code) == "" {
		return nil, RejectNotFound, nil
	}
	coupon, err := l.repo.FindByCodeAndUser(ctx, code, userID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, RejectNotFound, nil
		}
		return nil, "", err
	}
	switch {
	case coupon.IsUsed():
		return nil, RejectUsed, nil
	case !coupon.ExpiresAt.After(now):
		return nil, RejectExpired, nil
	case coupon.Reason != enums.CouponReasonWelcomeNewUser || coupon.DiscountType != enums.CouponDiscountPercent:
		return nil, RejectNotApplicable, nil
	}
	return coupon, "", nil
}

// TryConsume atomically marks the coupon used for orderID. A coupon that was
// consumed concurrently, or is no longer valid, yields Applied=false.
func (l *Ledger) TryConsume(ctx context.Context, code string, userID, orderID uuid.UUID, subtotal types.Money) (Consumption, error) {
	now := l.clock()
	coupon, rejection, err := l.Evaluate(ctx, code, userID, now)
	if err != nil || rejection != "" {
		return Consumption{}, err
	}
	applied, err := l.repo.MarkUsed(ctx, code, userID, orderID, now)
	if err != nil || !applied {
		return Consumption{}, err
	}
	return Consumption{Applied: true, Amount: subtotal.Percent(coupon.Value)}, nil
}
