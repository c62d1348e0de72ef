package orders

import (
	"context"

	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/stripe"
)

// paymentTransition is the guarded write for one webhook kind.
type paymentTransition struct {
	from    []enums.PaymentStatus
	to      enums.PaymentStatus
	updates func(event stripe.Event, s *service) map[string]any
	notify  func(ctx context.Context, s *service, order *models.Order, event stripe.Event) error
}

func allExcept(skip enums.PaymentStatus) []enums.PaymentStatus {
	all := []enums.PaymentStatus{
		enums.PaymentStatusPending,
		enums.PaymentStatusSucceeded,
		enums.PaymentStatusFailed,
		enums.PaymentStatusCanceled,
		enums.PaymentStatusRefunded,
		enums.PaymentStatusDisputed,
	}
	out := make([]enums.PaymentStatus, 0, len(all)-1)
	for _, status := range all {
		if status != skip {
			out = append(out, status)
		}
	}
	return out
}

var paymentTransitions = map[stripe.EventKind]paymentTransition{
	stripe.EventPaymentSucceeded: {
		from: []enums.PaymentStatus{enums.PaymentStatusPending, enums.PaymentStatusFailed, enums.PaymentStatusCanceled},
		to:   enums.PaymentStatusSucceeded,
		updates: func(_ stripe.Event, s *service) map[string]any {
			return map[string]any{"paid_at": s.now()}
		},
		notify: func(ctx context.Context, s *service, order *models.Order, _ stripe.Event) error {
			return s.notifier.PaymentConfirmed(ctx, order)
		},
	},
	stripe.EventPaymentFailed: {
		from: []enums.PaymentStatus{enums.PaymentStatusPending, enums.PaymentStatusFailed},
		to:   enums.PaymentStatusFailed,
		notify: func(ctx context.Context, s *service, order *models.Order, event stripe.Event) error {
			return s.notifier.PaymentFailed(ctx, order, event.Reason)
		},
	},
	stripe.EventRefunded: {
		from: allExcept(enums.PaymentStatusRefunded),
		to:   enums.PaymentStatusRefunded,
		updates: func(event stripe.Event, s *service) map[string]any {
			updates := map[string]any{
				"refunded_at": s.now(),
				"status":      enums.OrderStatusCancelled,
			}
			if event.RefundID != "" {
				updates["refund_id"] = event.RefundID
			}
			return updates
		},
		notify: func(ctx context.Context, s *service, order *models.Order, _ stripe.Event) error {
			return s.notifier.Refunded(ctx, order)
		},
	},
	stripe.EventDisputed: {
		from: allExcept(enums.PaymentStatusDisputed),
		to:   enums.PaymentStatusDisputed,
		updates: func(_ stripe.Event, s *service) map[string]any {
			return map[string]any{"disputed_at": s.now()}
		},
		notify: func(ctx context.Context, s *service, order *models.Order, event stripe.Event) error {
			return s.notifier.Disputed(ctx, order, event.Reason)
		},
	},
	stripe.EventCanceled: {
		from: []enums.PaymentStatus{enums.PaymentStatusPending, enums.PaymentStatusFailed},
		to:   enums.PaymentStatusCanceled,
	},
}

// ApplyPaymentEvent reconciles a verified gateway event onto its order. Events
// for unknown intents and COD orders are ignored. Persistence failures are
// returned so the gateway redelivers.
func (s *service) ApplyPaymentEvent(ctx context.Context, event stripe.Event) (ReconcileOutcome, error) {
	transition, ok := paymentTransitions[event.Kind]
	if !ok || event.IntentID == "" || enums.IsCODIntent(event.IntentID) {
		return OutcomeIgnored, nil
	}
	ctx = s.logg.WithEventID(s.logg.WithPaymentIntentID(ctx, event.IntentID), event.ID)

	order, err := s.repo.FindByPaymentIntent(ctx, event.IntentID)
	if err != nil {
		if db.IsNotFound(err) {
			s.logg.Warn(ctx, "webhook.order_not_found")
			return OutcomeIgnored, nil
		}
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup order by payment intent")
	}
	if order.PaymentMethod == enums.PaymentMethodCOD {
		return OutcomeIgnored, nil
	}
	if order.PaymentStatus == transition.to && event.Kind == stripe.EventPaymentSucceeded {
		return OutcomeNoop, nil
	}

	updates := map[string]any{}
	if transition.updates != nil {
		updates = transition.updates(event, s)
	}
	updates["payment_status"] = transition.to
	updates["is_paid"] = transition.to.IsPaid()
	updates["updated_at"] = s.now()

	applied, err := s.repo.TransitionPayment(ctx, event.IntentID, transition.from, updates)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "apply payment transition")
	}
	if !applied {
		return OutcomeNoop, nil
	}

	ctx = s.logg.WithOrderID(ctx, order.ID.String())
	s.logg.Info(s.logg.WithField(ctx, "payment_status", transition.to), "order.payment.reconciled")

	if transition.notify != nil {
		updated, err := s.repo.FindByID(ctx, order.ID)
		if err != nil {
			updated = order
		}
		task := TaskNotifyOperators
		if event.Kind == stripe.EventPaymentSucceeded {
			task = TaskNotifyCustomer
		}
		s.runPostCommit(ctx, []postCommitTask{{
			name: task,
			run:  func(ctx context.Context) error { return transition.notify(ctx, s, updated, event) },
		}})
	}
	return OutcomeApplied, nil
}
