package orders

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/storefront-backend/internal/inventory"
	"github.com/angelmondragon/storefront-backend/internal/pricing"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
	"github.com/angelmondragon/storefront-backend/pkg/stripe"
	"github.com/angelmondragon/storefront-backend/pkg/types"
	"github.com/google/uuid"
)

// Rejection reasons carried in error details and metrics.
const (
	ReasonIdempotencyKey      = "idempotency_key"
	ReasonPaymentAlreadyUsed  = "payment_already_used"
	ReasonPaymentNotSucceeded = "payment_not_succeeded"
	ReasonAmountMismatch      = "amount_mismatch"
	ReasonUserMismatch        = "user_mismatch"
	ReasonTotalMismatch       = "total_mismatch"
)

// Service is the order state machine.
type Service interface {
	Place(ctx context.Context, input PlaceInput) (*models.Order, error)
	ApplyPaymentEvent(ctx context.Context, event stripe.Event) (ReconcileOutcome, error)
	UpdateStatus(ctx context.Context, input UpdateStatusInput) (*models.Order, error)
	RequestCancelOTP(ctx context.Context, orderID uuid.UUID) (*OTPChallenge, error)
	ConfirmCancel(ctx context.Context, input ConfirmCancelInput) (*models.Order, error)
	Get(ctx context.Context, orderID uuid.UUID, viewer Viewer) (*models.Order, error)
	ListForUser(ctx context.Context, userID uuid.UUID, filters ListFilters, params pagination.Params) (*OrderList, error)
	List(ctx context.Context, filters ListFilters, params pagination.Params) (*OrderList, error)
	Delete(ctx context.Context, orderID uuid.UUID) error
}

// ServiceParams are the collaborators of the order service. Metrics may be nil.
type ServiceParams struct {
	Repo      Repository
	Pricing   Quoter
	Intents   IntentRetriever
	Inventory StockAdjuster
	Coupons   CouponConsumer
	Notifier  Notifier
	OTP       OTPStore
	Metrics   *metrics.CheckoutMetrics
	Logger    *logger.Logger

	Checkout config.CheckoutConfig
	OTPRules config.OTPConfig
	Password config.PasswordConfig
}

type service struct {
	repo      Repository
	pricing   Quoter
	intents   IntentRetriever
	inventory StockAdjuster
	coupons   CouponConsumer
	notifier  Notifier
	otp       OTPStore
	metrics   *metrics.CheckoutMetrics
	logg      *logger.Logger

	checkout config.CheckoutConfig
	otpRules config.OTPConfig
	password config.PasswordConfig
	now      func() time.Time
}

// NewService builds the order service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Pricing == nil {
		return nil, fmt.Errorf("pricing engine required")
	}
	if params.Intents == nil {
		return nil, fmt.Errorf("payment intent retriever required")
	}
	if params.Inventory == nil {
		return nil, fmt.Errorf("inventory adjuster required")
	}
	if params.Coupons == nil {
		return nil, fmt.Errorf("coupon ledger required")
	}
	if params.Notifier == nil {
		return nil, fmt.Errorf("notifier required")
	}
	if params.OTP == nil {
		return nil, fmt.Errorf("otp store required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{
		repo:      params.Repo,
		pricing:   params.Pricing,
		intents:   params.Intents,
		inventory: params.Inventory,
		coupons:   params.Coupons,
		notifier:  params.Notifier,
		otp:       params.OTP,
		metrics:   params.Metrics,
		logg:      logg,
		checkout:  params.Checkout,
		otpRules:  params.OTPRules,
		password:  params.Password,
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *service) Place(ctx context.Context, input PlaceInput) (*models.Order, error) {
	userID := input.UserID
	if input.Guest {
		userID = nil
	} else if userID == nil || *userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}

	method, intentID, err := resolveMethod(input.PaymentMethod, input.PaymentIntentID)
	if err != nil {
		return nil, s.reject("invalid_method", err)
	}

	shipping := input.Shipping.Normalize(s.checkout.DefaultCountry)
	contact := input.Contact.Normalize()
	if contact.Email == "" {
		contact.Email = strings.ToLower(strings.TrimSpace(input.Email))
	}
	if contact.Email == "" {
		contact.Email = shipping.Email
	}
	if contact.Name == "" {
		contact.Name = shipping.Name
	}
	if contact.Phone == "" {
		contact.Phone = shipping.Phone
	}
	if input.Guest {
		if err := validateGuest(shipping, contact); err != nil {
			return nil, s.reject("guest_details", err)
		}
	}

	quote, err := s.pricing.Quote(ctx, pricing.QuoteInput{
		Lines:      input.Items,
		CouponCode: input.CouponCode,
		UserID:     userID,
		Method:     method,
	})
	if err != nil {
		return nil, s.reject("pricing", err)
	}
	if err := pricing.CheckClaimedTotal(input.ClaimedTotal, quote, types.Money(s.checkout.AmountToleranceCents)); err != nil {
		return nil, s.reject(ReasonTotalMismatch, err)
	}

	idemKey := strings.TrimSpace(input.IdempotencyKey)
	if idemKey != "" {
		if existing, err := s.repo.FindByIdempotencyKey(ctx, idemKey); err == nil {
			return nil, s.reject(ReasonIdempotencyKey, duplicateOrder(existing.ID, ReasonIdempotencyKey))
		} else if !db.IsNotFound(err) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup idempotency key")
		}
	}

	if method == enums.PaymentMethodCard {
		if existing, err := s.repo.FindByPaymentIntent(ctx, intentID); err == nil {
			return nil, s.reject(ReasonPaymentAlreadyUsed, duplicateOrder(existing.ID, ReasonPaymentAlreadyUsed))
		} else if !db.IsNotFound(err) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup payment intent")
		}
		if err := s.verifyIntent(ctx, intentID, quote.FinalTotal, userID); err != nil {
			return nil, err
		}
	}

	now := s.now()
	order := &models.Order{
		ID:              uuid.New(),
		UserID:          userID,
		Items:           snapshotItems(quote.Lines),
		Currency:        strings.ToLower(strings.TrimSpace(s.checkout.Currency)),
		TotalCents:      quote.Subtotal,
		DiscountCents:   quote.Discount,
		FinalTotalCents: quote.FinalTotal,
		PaymentMethod:   method,
		Status:          enums.OrderStatusProcessing,
		Shipping:        shipping,
		Contact:         contact,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if quote.Coupon != nil {
		code := quote.Coupon.Code
		order.CouponCode = &code
	}
	if idemKey != "" {
		order.IdempotencyKey = &idemKey
	}
	if method == enums.PaymentMethodCard {
		order.PaymentStatus = enums.PaymentStatusSucceeded
		order.IsPaid = true
		order.PaidAt = &now
	} else {
		order.PaymentStatus = enums.PaymentStatusPending
		if intentID == "" {
			intentID = enums.CODIntentPrefix + uuid.NewString()
		}
	}
	order.PaymentIntentID = &intentID

	if err := s.repo.Create(ctx, order); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, s.reject("duplicate_insert", s.duplicateFromRace(ctx, intentID, idemKey, err))
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create order")
	}
	s.metrics.OrderPlaced(string(method), order.IsGuest())

	ctx = s.logg.WithOrderID(ctx, order.ID.String())
	ctx = s.logg.WithPaymentIntentID(ctx, intentID)
	s.logg.Info(ctx, "order.placed")

	s.runPostCommit(ctx, s.placementTasks(order, quote))
	return order, nil
}

func resolveMethod(rawMethod, rawIntent string) (enums.PaymentMethod, string, error) {
	intentID := strings.TrimSpace(rawIntent)
	var method enums.PaymentMethod
	if strings.TrimSpace(rawMethod) != "" {
		parsed, err := enums.ParsePaymentMethod(rawMethod)
		if err != nil {
			return "", "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "paymentMethod must be CARD or COD")
		}
		method = parsed
	}
	if method == enums.PaymentMethodCOD || enums.IsCODIntent(intentID) {
		if !enums.IsCODIntent(intentID) {
			intentID = ""
		}
		return enums.PaymentMethodCOD, intentID, nil
	}
	if intentID == "" {
		return "", "", pkgerrors.New(pkgerrors.CodeValidation, "paymentIntentId is required for card payments")
	}
	return enums.PaymentMethodCard, intentID, nil
}

func validateGuest(shipping types.ShippingAddress, contact types.Contact) error {
	missing := []string{}
	if contact.Email == "" {
		missing = append(missing, "email")
	}
	if contact.Name == "" {
		missing = append(missing, "name")
	}
	if shipping.Address == "" {
		missing = append(missing, "address")
	}
	if len(missing) == 0 {
		return nil
	}
	details := map[string]string{}
	for _, field := range missing {
		details[field] = "is required"
	}
	return pkgerrors.New(pkgerrors.CodeValidation, "guest checkout requires email, name and address").WithDetails(details)
}

func (s *service) verifyIntent(ctx context.Context, intentID string, finalTotal types.Money, userID *uuid.UUID) error {
	intent, err := s.intents.RetrieveIntent(ctx, intentID)
	if err != nil {
		if gwErr, ok := stripe.AsGatewayError(err); ok {
			return s.reject("gateway_"+string(gwErr.Kind), gwErr.AsAPIError())
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "retrieve payment intent")
	}
	if !intent.Succeeded() {
		return s.reject(ReasonPaymentNotSucceeded, paymentVerification(ReasonPaymentNotSucceeded, "payment has not succeeded", map[string]any{"status": intent.Status}))
	}
	diff := types.Money(intent.AmountMinor) - finalTotal
	if diff.Abs() > types.Money(s.checkout.AmountToleranceCents) {
		return s.reject(ReasonAmountMismatch, paymentVerification(ReasonAmountMismatch, "paid amount does not match order total", map[string]any{
			"paid":       types.Money(intent.AmountMinor),
			"finalTotal": finalTotal,
		}))
	}
	if tagged := strings.TrimSpace(intent.UserID); tagged != "" {
		if userID == nil || tagged != userID.String() {
			return s.reject(ReasonUserMismatch, paymentVerification(ReasonUserMismatch, "payment belongs to a different user", nil))
		}
	}
	return nil
}

func (s *service) duplicateFromRace(ctx context.Context, intentID, idemKey string, cause error) error {
	var (
		existing *models.Order
		err      error
		reason   = ReasonPaymentAlreadyUsed
	)
	if idemKey != "" {
		existing, err = s.repo.FindByIdempotencyKey(ctx, idemKey)
		reason = ReasonIdempotencyKey
	}
	if existing == nil {
		existing, err = s.repo.FindByPaymentIntent(ctx, intentID)
		reason = ReasonPaymentAlreadyUsed
	}
	if err != nil || existing == nil {
		return pkgerrors.Wrap(pkgerrors.CodeDuplicateOrder, cause, "order already exists").
			WithDetails(map[string]any{"reason": reason})
	}
	return duplicateOrder(existing.ID, reason)
}

func (s *service) reject(reason string, err error) error {
	s.metrics.OrderRejected(reason)
	return err
}

func duplicateOrder(orderID uuid.UUID, reason string) error {
	return pkgerrors.New(pkgerrors.CodeDuplicateOrder, "order already exists").
		WithDetails(map[string]any{"orderId": orderID, "reason": reason})
}

func paymentVerification(reason, message string, extra map[string]any) error {
	details := map[string]any{"reason": reason}
	for k, v := range extra {
		details[k] = v
	}
	return pkgerrors.New(pkgerrors.CodePaymentVerification, message).WithDetails(details)
}

func snapshotItems(lines []pricing.PricedLine) []models.OrderItem {
	items := make([]models.OrderItem, 0, len(lines))
	for _, line := range lines {
		item := models.OrderItem{
			ProductID:  line.ProductID,
			Name:       line.Name,
			Image:      line.Image,
			UnitPrice:  line.UnitPrice,
			Quantity:   line.Quantity,
			Color:      line.Color,
			Dimensions: line.Dimensions,
		}
		if line.Variant != nil {
			id := line.Variant.ID
			item.VariantID = &id
		}
		items = append(items, item)
	}
	return items
}

func stockLines(order *models.Order) []inventory.Line {
	lines := make([]inventory.Line, 0, len(order.Items))
	for _, item := range order.Items {
		lines = append(lines, inventory.Line{ProductID: item.ProductID, VariantID: item.VariantID, Quantity: item.Quantity})
	}
	return lines
}

func (s *service) placementTasks(order *models.Order, quote *pricing.Quote) []postCommitTask {
	tasks := []postCommitTask{{
		name: TaskInventoryDecrement,
		run: func(ctx context.Context) error {
			summary, err := s.inventory.DecrementAll(ctx, stockLines(order))
			if len(summary.Oversold) > 0 {
				s.logg.Warn(s.logg.WithField(ctx, "oversold_lines", len(summary.Oversold)), "order.inventory.oversold")
			}
			return err
		},
	}}
	if order.UserID != nil && quote.Coupon != nil && quote.Coupon.Source == pricing.CouponSourceLedger {
		userID := *order.UserID
		tasks = append(tasks, postCommitTask{
			name: TaskCouponConsume,
			run: func(ctx context.Context) error {
				res, err := s.coupons.TryConsume(ctx, quote.Coupon.Code, userID, order.ID, quote.Subtotal)
				if err != nil {
					return err
				}
				if !res.Applied {
					s.logg.Warn(s.logg.WithField(ctx, "coupon_code", quote.Coupon.Code), "order.coupon.not_consumed")
				}
				return nil
			},
		})
	}
	return append(tasks,
		postCommitTask{name: TaskNotifyCustomer, run: func(ctx context.Context) error { return s.notifier.CustomerOrderPlaced(ctx, order) }},
		postCommitTask{name: TaskNotifyOperators, run: func(ctx context.Context) error { return s.notifier.OperatorsOrderPlaced(ctx, order) }},
	)
}
