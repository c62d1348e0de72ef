package orders

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/security"
	"github.com/google/uuid"
)

// customerCancellable is true only before the order is packed.
func customerCancellable(status enums.OrderStatus) bool {
	return status == enums.OrderStatusProcessing
}

func notCancellable(order *models.Order) error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("order can no longer be cancelled (status %s)", order.Status)).
		WithDetails(map[string]any{"status": order.Status})
}

// RequestCancelOTP emails a one-time cancellation code to the order contact.
func (s *service) RequestCancelOTP(ctx context.Context, orderID uuid.UUID) (*OTPChallenge, error) {
	order, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !customerCancellable(order.Status) {
		return nil, notCancellable(order)
	}
	if order.ContactEmail() == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order has no contact email")
	}

	now := s.now()
	existing, err := s.otp.Load(ctx, order.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load otp")
	}
	if existing != nil {
		if wait := s.otpRules.ResendInterval - now.Sub(existing.LastSentAt); wait > 0 {
			seconds := int(math.Ceil(wait.Seconds()))
			return nil, pkgerrors.New(pkgerrors.CodeRateLimit, fmt.Sprintf("Please wait %ds", seconds)).
				WithDetails(map[string]any{"retryAfterSeconds": seconds})
		}
	}

	code, err := security.NumericCode(s.otpRules.Digits)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate otp")
	}
	hash, err := security.HashSecret(code, s.password)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash otp")
	}
	record := OTPRecord{Hash: hash, ExpiresAt: now.Add(s.otpRules.TTL), LastSentAt: now}
	if err := s.otp.Save(ctx, order.ID, record, s.otpRules.TTL); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store otp")
	}

	ctx = s.logg.WithOrderID(ctx, order.ID.String())
	if err := s.notifier.CancelOTP(ctx, order, code, s.otpRules.TTL); err != nil {
		if delErr := s.otp.Delete(ctx, order.ID); delErr != nil {
			s.logg.Error(ctx, "order.cancel_otp.cleanup_failed", delErr)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "send otp email")
	}
	s.logg.Info(s.logg.WithRecipient(ctx, order.ContactEmail()), "order.cancel_otp.sent")
	return &OTPChallenge{OrderID: order.ID, ExpiresAt: record.ExpiresAt}, nil
}

// ConfirmCancel cancels an order when the OTP matches and the window is open.
func (s *service) ConfirmCancel(ctx context.Context, input ConfirmCancelInput) (*models.Order, error) {
	order, err := s.load(ctx, input.OrderID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if now.Sub(order.CreatedAt) > s.checkout.CancellationWindow {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, fmt.Sprintf("orders can only be cancelled within %s of placement", s.checkout.CancellationWindow))
	}
	if !customerCancellable(order.Status) {
		return nil, notCancellable(order)
	}

	code := strings.TrimSpace(input.OTP)
	if code == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "Enter the OTP sent to your email.")
	}
	record, err := s.otp.Load(ctx, order.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load otp")
	}
	if record == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "OTP required.")
	}
	ctx = s.logg.WithOrderID(ctx, order.ID.String())
	if now.After(record.ExpiresAt) {
		if err := s.otp.Delete(ctx, order.ID); err != nil {
			s.logg.Error(ctx, "order.cancel_otp.cleanup_failed", err)
		}
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "OTP expired.")
	}
	ok, err := security.VerifySecret(code, record.Hash)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify otp")
	}
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "Invalid OTP.")
	}

	updates := map[string]any{
		"status":     enums.OrderStatusCancelled,
		"updated_at": now,
	}
	reason := strings.TrimSpace(input.Reason)
	if reason != "" {
		updates["cancel_reason"] = reason
	}
	cancelled, err := s.repo.TransitionStatus(ctx, order.ID, []enums.OrderStatus{enums.OrderStatusProcessing}, updates)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "cancel order")
	}
	if !cancelled {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order changed concurrently")
	}
	if err := s.otp.Delete(ctx, order.ID); err != nil {
		s.logg.Error(ctx, "order.cancel_otp.cleanup_failed", err)
	}
	s.logg.Info(ctx, "order.cancelled")

	order.Status = enums.OrderStatusCancelled
	order.UpdatedAt = now
	if reason != "" {
		order.CancelReason = &reason
	}
	s.runPostCommit(ctx, s.cancellationTasks(order))
	return order, nil
}
