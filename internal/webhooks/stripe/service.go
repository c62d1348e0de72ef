package stripewebhook

import (
	"context"

	"github.com/angelmondragon/storefront-backend/internal/orders"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/stripe"
)

const outcomeError = "error"

type paymentReconciler interface {
	ApplyPaymentEvent(ctx context.Context, event stripe.Event) (orders.ReconcileOutcome, error)
}

type ServiceParams struct {
	Orders  paymentReconciler
	Metrics *metrics.CheckoutMetrics
	Logger  *logger.Logger
}

// Service routes verified payment events to order reconciliation.
type Service struct {
	orders  paymentReconciler
	metrics *metrics.CheckoutMetrics
	logg    *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Orders == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "orders service required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &Service{orders: params.Orders, metrics: params.Metrics, logg: logg}, nil
}

func (s *Service) HandleEvent(ctx context.Context, event stripe.Event) error {
	ctx = s.logg.WithFields(s.logg.WithEventID(ctx, event.ID), map[string]any{
		"event_type": event.Type,
		"event_kind": string(event.Kind),
	})

	outcome, err := s.orders.ApplyPaymentEvent(ctx, event)
	if err != nil {
		s.metrics.WebhookEvent(string(event.Kind), outcomeError)
		return err
	}
	s.metrics.WebhookEvent(string(event.Kind), string(outcome))
	s.logg.Info(s.logg.WithField(ctx, "outcome", string(outcome)), "webhook.event.processed")
	return nil
}
