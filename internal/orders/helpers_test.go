package orders

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/angelmondragon/storefront-backend/internal/coupons"
	"github.com/angelmondragon/storefront-backend/internal/inventory"
	"github.com/angelmondragon/storefront-backend/internal/pricing"
	"github.com/angelmondragon/storefront-backend/internal/products"
	"github.com/angelmondragon/storefront-backend/internal/testdb"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/stripe"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakeIntents struct {
	mu      sync.Mutex
	intents map[string]stripe.Intent
	err     error
}

func (f *fakeIntents) put(intent stripe.Intent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.intents[intent.ID] = intent
}

func (f *fakeIntents) RetrieveIntent(_ context.Context, id string) (stripe.Intent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return stripe.Intent{}, f.err
	}
	intent, ok := f.intents[id]
	if !ok {
		return stripe.Intent{}, &stripe.GatewayError{Kind: stripe.ErrorKindInvalidRequest, Op: "retrieve_intent", Message: "no such payment_intent"}
	}
	return intent, nil
}

type recordingNotifier struct {
	mu      sync.Mutex
	events  []string
	lastOTP string
	failOn  map[string]error
}

func (n *recordingNotifier) record(name string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, name)
	return n.failOn[name]
}

func (n *recordingNotifier) count(name string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	total := 0
	for _, e := range n.events {
		if e == name {
			total++
		}
	}
	return total
}

func (n *recordingNotifier) CustomerOrderPlaced(context.Context, *models.Order) error {
	return n.record("customer_placed")
}

func (n *recordingNotifier) OperatorsOrderPlaced(context.Context, *models.Order) error {
	return n.record("operators_placed")
}

func (n *recordingNotifier) PaymentConfirmed(context.Context, *models.Order) error {
	return n.record("payment_confirmed")
}

func (n *recordingNotifier) PaymentFailed(context.Context, *models.Order, string) error {
	return n.record("payment_failed")
}

func (n *recordingNotifier) Refunded(context.Context, *models.Order) error {
	return n.record("refunded")
}

func (n *recordingNotifier) Disputed(context.Context, *models.Order, string) error {
	return n.record("disputed")
}

func (n *recordingNotifier) CancelOTP(_ context.Context, _ *models.Order, code string, _ time.Duration) error {
	n.mu.Lock()
	n.lastOTP = code
	n.mu.Unlock()
	return n.record("cancel_otp")
}

func (n *recordingNotifier) OrderCancelled(context.Context, *models.Order) error {
	return n.record("cancelled")
}

type memoryOTPStore struct {
	mu      sync.Mutex
	records map[uuid.UUID]OTPRecord
}

func (m *memoryOTPStore) Save(_ context.Context, orderID uuid.UUID, record OTPRecord, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[orderID] = record
	return nil
}

func (m *memoryOTPStore) Load(_ context.Context, orderID uuid.UUID) (*OTPRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.records[orderID]
	if !ok {
		return nil, nil
	}
	return &record, nil
}

func (m *memoryOTPStore) Delete(_ context.Context, orderID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, orderID)
	return nil
}

type harness struct {
	t        *testing.T
	db       *gorm.DB
	svc      *service
	repo     Repository
	products products.Repository
	coupons  coupons.Repository
	intents  *fakeIntents
	notifier *recordingNotifier
	otp      *memoryOTPStore
	now      time.Time

	lamp models.Product
	rug  models.Product
}

var baseNow = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func newHarness(t *testing.T) *harness {
	t.Helper()
	conn := testdb.Open(t)
	h := &harness{
		t:        t,
		db:       conn,
		repo:     NewRepository(conn),
		products: products.NewRepository(conn),
		coupons:  coupons.NewRepository(conn),
		intents:  &fakeIntents{intents: map[string]stripe.Intent{}},
		notifier: &recordingNotifier{failOn: map[string]error{}},
		otp:      &memoryOTPStore{records: map[uuid.UUID]OTPRecord{}},
		now:      baseNow,
	}

	ledger := coupons.NewLedger(h.coupons)
	engine, err := pricing.NewEngine(h.products, ledger, h.repo, 50)
	require.NoError(t, err)

	svc, err := NewService(ServiceParams{
		Repo:      h.repo,
		Pricing:   engine,
		Intents:   h.intents,
		Inventory: inventory.NewAdjuster(conn, nil),
		Coupons:   ledger,
		Notifier:  h.notifier,
		OTP:       h.otp,
		Checkout: config.CheckoutConfig{
			Currency:             "eur",
			MinChargeCents:       50,
			AmountToleranceCents: 2,
			DefaultCountry:       "MT",
			StaffGraceWindow:     2 * time.Hour,
			CancellationWindow:   2 * time.Hour,
		},
		OTPRules: config.OTPConfig{TTL: 10 * time.Minute, ResendInterval: 60 * time.Second, Digits: 6},
		Password: config.PasswordConfig{ArgonMemoryKB: 64, ArgonTime: 1, ArgonParallelism: 1, ArgonSaltLen: 16, ArgonKeyLen: 32},
	})
	require.NoError(t, err)
	h.svc = svc.(*service)
	h.svc.now = func() time.Time { return h.now }

	h.lamp = models.Product{Name: "Lamp", PriceCents: 1999, Stock: 10}
	h.rug = models.Product{Name: "Rug", PriceCents: 2000, Stock: 10, Variants: []models.ProductVariant{
		{Color: "Red", Dimensions: "2x3", PriceCents: 2999, Stock: 4},
	}}
	require.NoError(t, h.products.Create(context.Background(), &h.lamp))
	require.NoError(t, h.products.Create(context.Background(), &h.rug))
	return h
}

// cart is the 4998 cent basket: one lamp and one red rug.
func (h *harness) cart() []pricing.Line {
	return []pricing.Line{
		{ProductID: h.lamp.ID, Quantity: 1},
		{ProductID: h.rug.ID, Color: "red", Quantity: 1},
	}
}

func (h *harness) seedWelcome(userID uuid.UUID) *models.Coupon {
	h.t.Helper()
	coupon := &models.Coupon{
		Code:         "WELCOME-" + userID.String()[:8],
		UserID:       userID,
		DiscountType: enums.CouponDiscountPercent,
		Value:        decimal.NewFromInt(5),
		Reason:       enums.CouponReasonWelcomeNewUser,
		ExpiresAt:    time.Now().UTC().Add(24 * time.Hour),
	}
	require.NoError(h.t, h.coupons.Create(context.Background(), coupon))
	return coupon
}

func (h *harness) succeededIntent(id string, amount int64, userID *uuid.UUID) {
	intent := stripe.Intent{ID: id, Status: "succeeded", AmountMinor: amount, Currency: "eur"}
	if userID != nil {
		intent.UserID = userID.String()
	}
	h.intents.put(intent)
}

// seedOrder inserts an order directly, bypassing placement.
func (h *harness) seedOrder(mutate func(*models.Order)) *models.Order {
	h.t.Helper()
	intent := "pi_" + uuid.NewString()
	userID := uuid.New()
	order := &models.Order{
		ID:              uuid.New(),
		UserID:          &userID,
		Items:           []models.OrderItem{{ProductID: h.lamp.ID, Name: "Lamp", UnitPrice: 1999, Quantity: 2, Dimensions: "N/A"}},
		Currency:        "eur",
		TotalCents:      3998,
		FinalTotalCents: 3998,
		PaymentMethod:   enums.PaymentMethodCard,
		PaymentStatus:   enums.PaymentStatusPending,
		PaymentIntentID: &intent,
		Status:          enums.OrderStatusProcessing,
		CreatedAt:       h.now,
		UpdatedAt:       h.now,
	}
	order.Contact.Email = "buyer@example.com"
	if mutate != nil {
		mutate(order)
	}
	require.NoError(h.t, h.repo.Create(context.Background(), order))
	return order
}

func (h *harness) reload(id uuid.UUID) *models.Order {
	h.t.Helper()
	order, err := h.repo.FindByID(context.Background(), id)
	require.NoError(h.t, err)
	return order
}

func (h *harness) stock(id uuid.UUID) int {
	h.t.Helper()
	var product models.Product
	require.NoError(h.t, h.db.First(&product, "id = ?", id).Error)
	return product.Stock
}

func (h *harness) variantStock(id uuid.UUID) int {
	h.t.Helper()
	var variant models.ProductVariant
	require.NoError(h.t, h.db.First(&variant, "id = ?", id).Error)
	return variant.Stock
}
