package pricing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/storefront-backend/internal/products"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/types"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// GuestCouponPrefix grants GuestDiscountPercent to unauthenticated checkouts.
const GuestCouponPrefix = "WELCOME"

// GuestDiscountPercent is the flat guest discount.
var GuestDiscountPercent = decimal.NewFromInt(5)

// Coupon sources.
const (
	CouponSourceLedger = "ledger"
	CouponSourceGuest  = "guest_prefix"
)

// RejectFirstOrderOnly is set when a valid welcome coupon meets a returning customer.
const RejectFirstOrderOnly = "coupon_first_order_only"

// Catalog loads products with their variants.
type Catalog interface {
	FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Product, error)
}

// CouponEvaluator validates a ledger coupon without consuming it.
type CouponEvaluator interface {
	Evaluate(ctx context.Context, code string, userID uuid.UUID, now time.Time) (*models.Coupon, string, error)
}

// OrderHistory counts a user's prior orders.
type OrderHistory interface {
	CountByUser(ctx context.Context, userID uuid.UUID) (int64, error)
}

// Line is one requested cart entry.
type Line struct {
	ProductID  uuid.UUID
	VariantID  *uuid.UUID
	Color      string
	Dimensions string
	Quantity   int
}

// QuoteInput carries an untrusted cart plus the caller identity.
type QuoteInput struct {
	Lines      []Line
	CouponCode string
	UserID     *uuid.UUID
	Method     enums.PaymentMethod
}

// PricedLine is a cart line priced from the catalog.
type PricedLine struct {
	ProductID uuid.UUID
	Variant   *models.ProductVariant
	Name      string
	Image     string
	UnitPrice types.Money
	Quantity  int
	LineTotal types.Money
	Color     string
	// Dimensions falls back to products.DefaultDimensions.
	Dimensions string
}

// AppliedCoupon describes the discount source.
type AppliedCoupon struct {
	Code    string
	Percent decimal.Decimal
	Source  string
}

// Quote is the authoritative price of a cart.
type Quote struct {
	Subtotal        types.Money
	Discount        types.Money
	FinalTotal      types.Money
	Lines           []PricedLine
	Coupon          *AppliedCoupon
	CouponRejection string
}

// Engine recomputes cart totals from trusted catalog data.
type Engine struct {
	catalog        Catalog
	coupons        CouponEvaluator
	history        OrderHistory
	minChargeCents types.Money
	clock          func() time.Time
}

// NewEngine builds a pricing engine. coupons and history may be nil, in which
// case the ledger path never grants a discount.
func NewEngine(catalog Catalog, coupons CouponEvaluator, history OrderHistory, minChargeCents int64) (*Engine, error) {
	if catalog == nil {
		return nil, fmt.Errorf("catalog is required")
	}
	return &Engine{
		catalog:        catalog,
		coupons:        coupons,
		history:        history,
		minChargeCents: types.Money(minChargeCents),
		clock:          func() time.Time { return time.Now().UTC() },
	}, nil
}

// Quote prices in. It has no side effects.
func (e *Engine) Quote(ctx context.Context, in QuoteInput) (*Quote, error) {
	if len(in.Lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}
	ids := make([]uuid.UUID, 0, len(in.Lines))
	for i, line := range in.Lines {
		if line.Quantity < 1 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("items[%d].qty must be at least 1", i))
		}
		ids = append(ids, line.ProductID)
	}

	catalog, err := e.catalog.FindByIDs(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load catalog")
	}

	quote := &Quote{Lines: make([]PricedLine, 0, len(in.Lines))}
	for _, line := range in.Lines {
		product, ok := catalog[line.ProductID]
		if !ok {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("product %s not found", line.ProductID)).
				WithDetails(map[string]any{"productId": line.ProductID})
		}
		priced := priceLine(product, line)
		quote.Subtotal += priced.LineTotal
		quote.Lines = append(quote.Lines, priced)
	}
	if quote.Subtotal <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order total must be positive")
	}

	if err := e.applyDiscount(ctx, in, quote); err != nil {
		return nil, err
	}
	quote.FinalTotal = quote.Subtotal - quote.Discount

	if in.Method != enums.PaymentMethodCOD && quote.FinalTotal < e.minChargeCents {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("order total must be at least %s", e.minChargeCents)).
			WithDetails(map[string]any{"minimum": e.minChargeCents, "finalTotal": quote.FinalTotal})
	}
	return quote, nil
}

func priceLine(product models.Product, line Line) PricedLine {
	priced := PricedLine{
		ProductID:  product.ID,
		Name:       product.Name,
		UnitPrice:  product.PriceCents,
		Quantity:   line.Quantity,
		Color:      strings.TrimSpace(line.Color),
		Dimensions: strings.TrimSpace(line.Dimensions),
	}
	if product.Image != nil {
		priced.Image = *product.Image
	}
	if v := products.MatchVariant(product, products.VariantQuery{VariantID: line.VariantID, Color: line.Color, Dimensions: line.Dimensions}); v != nil {
		priced.Variant = v
		if v.PriceCents > 0 {
			priced.UnitPrice = v.PriceCents
		}
		if v.Color != "" {
			priced.Color = v.Color
		}
		if v.Dimensions != "" {
			priced.Dimensions = v.Dimensions
		}
	}
	if priced.Dimensions == "" {
		priced.Dimensions = products.DefaultDimensions
	}
	priced.LineTotal = priced.UnitPrice * types.Money(priced.Quantity)
	return priced
}

func (e *Engine) applyDiscount(ctx context.Context, in QuoteInput, quote *Quote) error {
	code := strings.TrimSpace(in.CouponCode)
	if code == "" {
		return nil
	}

	if in.UserID == nil {
		if strings.HasPrefix(strings.ToUpper(code), GuestCouponPrefix) {
			quote.Coupon = &AppliedCoupon{Code: code, Percent: GuestDiscountPercent, Source: CouponSourceGuest}
			quote.Discount = quote.Subtotal.Percent(GuestDiscountPercent)
		} else {
			quote.CouponRejection = "coupon_not_applicable"
		}
		return nil
	}

	if e.coupons == nil || e.history == nil {
		quote.CouponRejection = "coupon_not_applicable"
		return nil
	}
	coupon, rejection, err := e.coupons.Evaluate(ctx, code, *in.UserID, e.clock())
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "evaluate coupon")
	}
	if rejection != "" {
		quote.CouponRejection = rejection
		return nil
	}
	prior, err := e.history.CountByUser(ctx, *in.UserID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "count prior orders")
	}
	if prior > 0 {
		quote.CouponRejection = RejectFirstOrderOnly
		return nil
	}
	quote.Coupon = &AppliedCoupon{Code: coupon.Code, Percent: coupon.Value, Source: CouponSourceLedger}
	quote.Discount = quote.Subtotal.Percent(coupon.Value)
	return nil
}

// CheckClaimedTotal rejects a client-submitted total that matches neither the
// subtotal nor the final total within tolerance. A nil claim is not checked.
func CheckClaimedTotal(claimed *types.Money, quote *Quote, tolerance types.Money) error {
	if claimed == nil || quote == nil {
		return nil
	}
	if (*claimed - quote.FinalTotal).Abs() <= tolerance || (*claimed - quote.Subtotal).Abs() <= tolerance {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeValidation, "total_mismatch").WithDetails(map[string]any{
		"reason":     "total_mismatch",
		"claimed":    *claimed,
		"subtotal":   quote.Subtotal,
		"finalTotal": quote.FinalTotal,
	})
}
