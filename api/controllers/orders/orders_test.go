package orders

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/api/middleware"
	internalorders "github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
	"github.com/angelmondragon/storefront-backend/pkg/stripe"
)

type stubOrdersService struct {
	place       func(ctx context.Context, input internalorders.PlaceInput) (*models.Order, error)
	get         func(ctx context.Context, orderID uuid.UUID, viewer internalorders.Viewer) (*models.Order, error)
	listForUser func(ctx context.Context, userID uuid.UUID, filters internalorders.ListFilters, params pagination.Params) (*internalorders.OrderList, error)
	confirm     func(ctx context.Context, input internalorders.ConfirmCancelInput) (*models.Order, error)
	update      func(ctx context.Context, input internalorders.UpdateStatusInput) (*models.Order, error)
}

func (s *stubOrdersService) Place(ctx context.Context, input internalorders.PlaceInput) (*models.Order, error) {
	return s.place(ctx, input)
}

func (s *stubOrdersService) ApplyPaymentEvent(ctx context.Context, event stripe.Event) (internalorders.ReconcileOutcome, error) {
	panic("not implemented")
}

func (s *stubOrdersService) UpdateStatus(ctx context.Context, input internalorders.UpdateStatusInput) (*models.Order, error) {
	return s.update(ctx, input)
}

func (s *stubOrdersService) RequestCancelOTP(ctx context.Context, orderID uuid.UUID) (*internalorders.OTPChallenge, error) {
	return &internalorders.OTPChallenge{OrderID: orderID}, nil
}

func (s *stubOrdersService) ConfirmCancel(ctx context.Context, input internalorders.ConfirmCancelInput) (*models.Order, error) {
	return s.confirm(ctx, input)
}

func (s *stubOrdersService) Get(ctx context.Context, orderID uuid.UUID, viewer internalorders.Viewer) (*models.Order, error) {
	return s.get(ctx, orderID, viewer)
}

func (s *stubOrdersService) ListForUser(ctx context.Context, userID uuid.UUID, filters internalorders.ListFilters, params pagination.Params) (*internalorders.OrderList, error) {
	return s.listForUser(ctx, userID, filters, params)
}

func (s *stubOrdersService) List(ctx context.Context, filters internalorders.ListFilters, params pagination.Params) (*internalorders.OrderList, error) {
	panic("not implemented")
}

func (s *stubOrdersService) Delete(ctx context.Context, orderID uuid.UUID) error {
	return nil
}

func withRouteParam(req *http.Request, key, value string) *http.Request {
	rc := chi.NewRouteContext()
	rc.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))
}

func withCaller(req *http.Request, userID uuid.UUID, role enums.UserRole) *http.Request {
	return req.WithContext(middleware.WithIdentity(req.Context(), middleware.Identity{UserID: userID, Email: "shopper@example.com", Role: role}))
}

const placeBody = `{"items":[{"productId":"%s","qty":2}],"total":47.48,"paymentIntentId":"pi_1","shipping":{"name":"Ana","address":"Calle 1"},"contact":{"email":"ana@example.com"},"couponCode":"WELCOME5"}`

func TestPlaceMapsRequestAndReturns201(t *testing.T) {
	userID := uuid.New()
	productID := uuid.New()
	var captured internalorders.PlaceInput
	svc := &stubOrdersService{place: func(ctx context.Context, input internalorders.PlaceInput) (*models.Order, error) {
		captured = input
		return &models.Order{ID: uuid.New(), FinalTotalCents: 4748, Status: enums.OrderStatusProcessing}, nil
	}}

	body := strings.Replace(placeBody, "%s", productID.String(), 1)
	req := httptest.NewRequest(http.MethodPost, "/api/orders", strings.NewReader(body))
	req.Header.Set("Idempotency-Key", "key-1")
	req = withCaller(req, userID, enums.UserRoleCustomer)
	rec := httptest.NewRecorder()
	Place(svc, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (%s)", rec.Code, rec.Body.String())
	}
	if captured.UserID == nil || *captured.UserID != userID {
		t.Fatalf("expected caller id, got %v", captured.UserID)
	}
	if captured.IdempotencyKey != "key-1" || captured.PaymentIntentID != "pi_1" {
		t.Fatalf("unexpected placement input %+v", captured)
	}
	if captured.ClaimedTotal == nil || *captured.ClaimedTotal != 4748 {
		t.Fatalf("expected claimed total 4748, got %v", captured.ClaimedTotal)
	}
	if len(captured.Items) != 1 || captured.Items[0].ProductID != productID || captured.Items[0].Quantity != 2 {
		t.Fatalf("unexpected lines %+v", captured.Items)
	}
	if captured.Email != "shopper@example.com" {
		t.Fatalf("expected token email, got %q", captured.Email)
	}

	var resp struct {
		Data struct {
			FinalTotal float64 `json:"finalTotal"`
			Status     string  `json:"status"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Data.FinalTotal != 47.48 || resp.Data.Status != "Processing" {
		t.Fatalf("unexpected response %+v", resp.Data)
	}
}

func TestPlaceRequiresCaller(t *testing.T) {
	svc := &stubOrdersService{}
	req := httptest.NewRequest(http.MethodPost, "/api/orders", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	Place(svc, nil).ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestPlaceGuestRejectsUnknownFieldsAndEmptyCart(t *testing.T) {
	svc := &stubOrdersService{place: func(ctx context.Context, input internalorders.PlaceInput) (*models.Order, error) {
		t.Fatal("service must not be called")
		return nil, nil
	}}
	for _, body := range []string{`{"items":[]}`, `{"items":[{"productId":"x","qty":1}]}`, `{"items":[{"productId":"` + uuid.NewString() + `","qty":1}],"isPaid":true}`} {
		req := httptest.NewRequest(http.MethodPost, "/api/orders/guest", strings.NewReader(body))
		rec := httptest.NewRecorder()
		PlaceGuest(svc, nil).ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", body, rec.Code)
		}
	}
}

func TestPlaceGuestMarksGuestAndSurfacesDuplicate(t *testing.T) {
	existing := uuid.New()
	svc := &stubOrdersService{place: func(ctx context.Context, input internalorders.PlaceInput) (*models.Order, error) {
		if !input.Guest || input.UserID != nil {
			t.Fatalf("expected guest placement, got %+v", input)
		}
		return nil, pkgerrors.New(pkgerrors.CodeDuplicateOrder, "order already exists for this payment").
			WithDetails(map[string]any{"orderId": existing, "reason": "payment_already_used"})
	}}
	body := strings.Replace(placeBody, "%s", uuid.NewString(), 1)
	req := httptest.NewRequest(http.MethodPost, "/api/orders/guest", strings.NewReader(body))
	rec := httptest.NewRecorder()
	PlaceGuest(svc, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), existing.String()) {
		t.Fatalf("expected existing order id in body: %s", rec.Body.String())
	}
}

func TestDetailPassesViewer(t *testing.T) {
	staffID := uuid.New()
	orderID := uuid.New()
	svc := &stubOrdersService{get: func(ctx context.Context, id uuid.UUID, viewer internalorders.Viewer) (*models.Order, error) {
		if id != orderID || viewer.UserID != staffID || !viewer.Staff {
			t.Fatalf("unexpected viewer %+v for %s", viewer, id)
		}
		return &models.Order{ID: id}, nil
	}}
	req := httptest.NewRequest(http.MethodGet, "/api/orders/"+orderID.String(), nil)
	req = withRouteParam(withCaller(req, staffID, enums.UserRoleStaff), "orderId", orderID.String())
	rec := httptest.NewRecorder()
	Detail(svc, nil).ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestDetailRejectsBadOrderID(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/orders/nope", nil)
	req = withRouteParam(withCaller(req, uuid.New(), enums.UserRoleCustomer), "orderId", "nope")
	rec := httptest.NewRecorder()
	Detail(&stubOrdersService{}, nil).ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestMineParsesFilters(t *testing.T) {
	userID := uuid.New()
	svc := &stubOrdersService{listForUser: func(ctx context.Context, id uuid.UUID, filters internalorders.ListFilters, params pagination.Params) (*internalorders.OrderList, error) {
		if id != userID {
			t.Fatalf("unexpected user %s", id)
		}
		if filters.Status == nil || *filters.Status != enums.OrderStatusShipped {
			t.Fatalf("expected shipped filter, got %v", filters.Status)
		}
		if filters.From == nil || filters.From.Format("2006-01-02") != "2026-01-01" {
			t.Fatalf("unexpected from %v", filters.From)
		}
		if params.Page != 2 || params.Limit != 10 {
			t.Fatalf("unexpected params %+v", params)
		}
		return &internalorders.OrderList{Orders: []models.Order{}, Pagination: pagination.NewMeta(params, 0)}, nil
	}}
	req := httptest.NewRequest(http.MethodGet, "/api/orders/my?status=shipped&from=2026-01-01&page=2&limit=10", nil)
	req = withCaller(req, userID, enums.UserRoleCustomer)
	rec := httptest.NewRecorder()
	Mine(svc, nil).ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}

	bad := withCaller(httptest.NewRequest(http.MethodGet, "/api/orders/my?status=Lost", nil), userID, enums.UserRoleCustomer)
	rec = httptest.NewRecorder()
	Mine(svc, nil).ServeHTTP(rec, bad)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad status, got %d", rec.Code)
	}
}

func TestCancelForwardsOTP(t *testing.T) {
	orderID := uuid.New()
	svc := &stubOrdersService{confirm: func(ctx context.Context, input internalorders.ConfirmCancelInput) (*models.Order, error) {
		if input.OrderID != orderID || input.OTP != "123456" || input.Reason != "changed my mind" {
			t.Fatalf("unexpected cancel input %+v", input)
		}
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "Invalid OTP.")
	}}
	req := httptest.NewRequest(http.MethodPost, "/api/orders/x/cancel", strings.NewReader(`{"reason":"  changed my mind ","otp":"123456"}`))
	req = withRouteParam(req, "orderId", orderID.String())
	rec := httptest.NewRecorder()
	Cancel(svc, nil).ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Invalid OTP.") {
		t.Fatalf("expected message passthrough: %s", rec.Body.String())
	}
}

func TestAdminUpdateStatusUsesActor(t *testing.T) {
	staffID := uuid.New()
	orderID := uuid.New()
	svc := &stubOrdersService{update: func(ctx context.Context, input internalorders.UpdateStatusInput) (*models.Order, error) {
		if input.ActorID != staffID || input.Status != "Packed" || input.OrderID != orderID {
			t.Fatalf("unexpected update %+v", input)
		}
		return &models.Order{ID: orderID, Status: enums.OrderStatusPacked}, nil
	}}
	req := httptest.NewRequest(http.MethodPut, "/api/admin/orders/x/status", strings.NewReader(`{"status":"Packed"}`))
	req = withRouteParam(withCaller(req, staffID, enums.UserRoleStaff), "orderId", orderID.String())
	rec := httptest.NewRecorder()
	AdminUpdateStatus(svc, nil).ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
}
