package payments

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/storefront-backend/api/controllers/orders"
	"github.com/angelmondragon/storefront-backend/api/middleware"
	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/api/validators"
	internalpayments "github.com/angelmondragon/storefront-backend/internal/payments"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

type guestInfo struct {
	Email string `json:"email" validate:"omitempty,email"`
	Name  string `json:"name,omitempty" validate:"omitempty,max=120"`
}

type createPaymentRequest struct {
	Items      []orders.CartItem `json:"items" validate:"required,min=1,max=50,dive"`
	Currency   string            `json:"currency,omitempty" validate:"omitempty,len=3"`
	CouponCode string            `json:"couponCode,omitempty" validate:"omitempty,max=64"`
	// UserID is ignored; identity comes from the optional bearer token.
	UserID         string     `json:"userId,omitempty"`
	GuestInfo      *guestInfo `json:"guestInfo,omitempty"`
	IdempotencyKey string     `json:"idempotencyKey,omitempty" validate:"omitempty,max=255"`
}

// CreatePayment opens a card payment intent for the server-priced cart.
func CreatePayment(svc internalpayments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}

		var payload createPaymentRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		lines, err := orders.ToLines(payload.Items)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := internalpayments.CreatePaymentInput{
			Items:          lines,
			Currency:       payload.Currency,
			CouponCode:     payload.CouponCode,
			IdempotencyKey: payload.IdempotencyKey,
		}
		if key := strings.TrimSpace(r.Header.Get("Idempotency-Key")); key != "" {
			input.IdempotencyKey = key
		}
		if id, ok := middleware.IdentityFromContext(r.Context()); ok {
			userID := id.UserID
			input.UserID = &userID
		} else if payload.GuestInfo != nil {
			input.GuestEmail = payload.GuestInfo.Email
		}

		result, err := svc.CreatePayment(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// VerifyPayment reports whether an intent has succeeded.
func VerifyPayment(svc internalpayments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}

		result, err := svc.VerifyPayment(r.Context(), chi.URLParam(r, "paymentIntentId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
