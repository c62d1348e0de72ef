package routes

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	internalorders "github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/internal/payments"
	stripewebhook "github.com/angelmondragon/storefront-backend/internal/webhooks/stripe"
	pkgAuth "github.com/angelmondragon/storefront-backend/pkg/auth"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
	"github.com/angelmondragon/storefront-backend/pkg/redis"
	"github.com/angelmondragon/storefront-backend/pkg/stripe"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error {
	return nil
}

type stubOrdersService struct{}

func (stubOrdersService) Place(ctx context.Context, input internalorders.PlaceInput) (*models.Order, error) {
	return &models.Order{ID: uuid.New(), Status: enums.OrderStatusProcessing}, nil
}

func (stubOrdersService) ApplyPaymentEvent(ctx context.Context, event stripe.Event) (internalorders.ReconcileOutcome, error) {
	return internalorders.OutcomeIgnored, nil
}

func (stubOrdersService) UpdateStatus(ctx context.Context, input internalorders.UpdateStatusInput) (*models.Order, error) {
	return &models.Order{ID: input.OrderID}, nil
}

func (stubOrdersService) RequestCancelOTP(ctx context.Context, orderID uuid.UUID) (*internalorders.OTPChallenge, error) {
	return &internalorders.OTPChallenge{OrderID: orderID, ExpiresAt: time.Now().Add(10 * time.Minute)}, nil
}

func (stubOrdersService) ConfirmCancel(ctx context.Context, input internalorders.ConfirmCancelInput) (*models.Order, error) {
	return &models.Order{ID: input.OrderID, Status: enums.OrderStatusCancelled}, nil
}

func (stubOrdersService) Get(ctx context.Context, orderID uuid.UUID, viewer internalorders.Viewer) (*models.Order, error) {
	return &models.Order{ID: orderID}, nil
}

func (stubOrdersService) ListForUser(ctx context.Context, userID uuid.UUID, filters internalorders.ListFilters, params pagination.Params) (*internalorders.OrderList, error) {
	return &internalorders.OrderList{Orders: []models.Order{}, Pagination: pagination.NewMeta(params, 0)}, nil
}

func (stubOrdersService) List(ctx context.Context, filters internalorders.ListFilters, params pagination.Params) (*internalorders.OrderList, error) {
	return &internalorders.OrderList{Orders: []models.Order{}, Pagination: pagination.NewMeta(params, 0)}, nil
}

func (stubOrdersService) Delete(ctx context.Context, orderID uuid.UUID) error {
	return nil
}

type stubPaymentsService struct{}

func (stubPaymentsService) CreatePayment(ctx context.Context, input payments.CreatePaymentInput) (*payments.CreatePaymentResult, error) {
	return &payments.CreatePaymentResult{ClientSecret: "cs", PaymentIntentID: "pi_1"}, nil
}

func (stubPaymentsService) VerifyPayment(ctx context.Context, intentID string) (*payments.VerifyPaymentResult, error) {
	return &payments.VerifyPaymentResult{Success: true, Status: "succeeded"}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test", Port: "0"},
		JWT: config.JWTConfig{
			Secret:            "secret",
			Issuer:            "issuer",
			ExpirationMinutes: 60,
		},
	}
}

func newTestRouter(t *testing.T, cfg *config.Config) http.Handler {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "test-routing", Level: "debug", Output: io.Discard})
	webhookSvc, err := stripewebhook.NewService(stripewebhook.ServiceParams{Orders: stubOrdersService{}, Logger: logg})
	if err != nil {
		t.Fatalf("webhook service: %v", err)
	}
	return NewRouter(
		cfg,
		logg,
		stubPinger{},         // db.Pinger
		(*redis.Client)(nil), // *redis.Client
		stubOrdersService{},
		stubPaymentsService{},
		nil, // *stripe.Client
		webhookSvc,
		nil, // *stripewebhook.IdempotencyGuard
	)
}

func buildToken(t *testing.T, cfg *config.Config, role enums.UserRole) string {
	t.Helper()
	token, err := pkgAuth.MintAccessToken(cfg.JWT, time.Now(), pkgAuth.AccessTokenPayload{
		UserID: uuid.New(),
		Email:  "user@example.com",
		Role:   role,
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}

func serve(router http.Handler, req *http.Request) *httptest.ResponseRecorder {
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func TestHealthAndMetricsArePublic(t *testing.T) {
	router := newTestRouter(t, testConfig())
	if resp := serve(router, httptest.NewRequest(http.MethodGet, "/health/live", nil)); resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for live got %d", resp.Code)
	}
	if resp := serve(router, httptest.NewRequest(http.MethodGet, "/metrics", nil)); resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for metrics got %d", resp.Code)
	}
}

func TestOrdersRequireJWT(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(t, cfg)

	if resp := serve(router, httptest.NewRequest(http.MethodGet, "/api/orders/my", nil)); resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token got %d", resp.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/orders/my", nil)
	req.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.UserRoleCustomer))
	if resp := serve(router, req); resp.Code != http.StatusOK {
		t.Fatalf("expected 200 with token got %d (%s)", resp.Code, resp.Body.String())
	}
}

func TestGuestCheckoutIsPublic(t *testing.T) {
	router := newTestRouter(t, testConfig())
	body := `{"items":[{"productId":"` + uuid.NewString() + `","qty":1}],"paymentMethod":"COD","shipping":{"name":"Ana","address":"Calle 1","city":"Madrid"},"contact":{"email":"ana@example.com"}}`
	resp := serve(router, httptest.NewRequest(http.MethodPost, "/api/orders/guest", strings.NewReader(body)))
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d (%s)", resp.Code, resp.Body.String())
	}
}

func TestAdminOrdersRequireStaffRole(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(t, cfg)

	customer := httptest.NewRequest(http.MethodGet, "/api/admin/orders", nil)
	customer.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.UserRoleCustomer))
	if resp := serve(router, customer); resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for customer got %d", resp.Code)
	}

	staff := httptest.NewRequest(http.MethodDelete, "/api/admin/orders/"+uuid.NewString(), nil)
	staff.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.UserRoleStaff))
	if resp := serve(router, staff); resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for staff got %d", resp.Code)
	}
}

func TestCancellationRoutesArePublic(t *testing.T) {
	router := newTestRouter(t, testConfig())
	orderID := uuid.NewString()

	resp := serve(router, httptest.NewRequest(http.MethodPost, "/api/orders/"+orderID+"/send-cancel-otp", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for send-cancel-otp got %d", resp.Code)
	}
	resp = serve(router, httptest.NewRequest(http.MethodPost, "/api/orders/"+orderID+"/cancel", strings.NewReader(`{"otp":"123456"}`)))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for cancel got %d (%s)", resp.Code, resp.Body.String())
	}
}

func TestCreatePaymentAllowsAnonymousCallers(t *testing.T) {
	router := newTestRouter(t, testConfig())
	body := `{"items":[{"productId":"` + uuid.NewString() + `","qty":1}]}`
	resp := serve(router, httptest.NewRequest(http.MethodPost, "/api/payments/create-payment", strings.NewReader(body)))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d (%s)", resp.Code, resp.Body.String())
	}
}

func TestWebhookWithoutStripeClientIsInternalError(t *testing.T) {
	router := newTestRouter(t, testConfig())
	req := httptest.NewRequest(http.MethodPost, "/api/webhook", strings.NewReader(`{}`))
	req.Header.Set("Stripe-Signature", "t=1,v1=abc")
	resp := serve(router, req)
	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 without a stripe client got %d", resp.Code)
	}
}
