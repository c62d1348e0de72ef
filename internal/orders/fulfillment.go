package orders

import (
	"context"
	"fmt"

	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
	"github.com/google/uuid"
)

func (s *service) load(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order")
	}
	return order, nil
}

// UpdateStatus moves an order along the fulfillment lifecycle on behalf of staff.
func (s *service) UpdateStatus(ctx context.Context, input UpdateStatusInput) (*models.Order, error) {
	next, err := enums.ParseOrderStatus(input.Status)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "status must be one of Processing, Packed, Shipped, Delivered, Cancelled")
	}
	order, err := s.load(ctx, input.OrderID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if now.Sub(order.CreatedAt) < s.checkout.StaffGraceWindow {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, fmt.Sprintf("orders cannot be updated within %s of placement", s.checkout.StaffGraceWindow))
	}
	if order.Status == next {
		return order, nil
	}
	if !order.Status.CanTransitionTo(next) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("cannot move order from %s to %s", order.Status, next)).
			WithDetails(map[string]any{"from": order.Status, "to": next})
	}

	updated, err := s.repo.TransitionStatus(ctx, order.ID, []enums.OrderStatus{order.Status}, map[string]any{
		"status":     next,
		"updated_at": now,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update order status")
	}
	if !updated {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order changed concurrently")
	}

	ctx = s.logg.WithOrderID(ctx, order.ID.String())
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"from":     order.Status,
		"to":       next,
		"actor_id": input.ActorID.String(),
	}), "order.status.updated")

	order.Status = next
	order.UpdatedAt = now
	if next == enums.OrderStatusCancelled {
		s.runPostCommit(ctx, s.cancellationTasks(order))
	}
	return order, nil
}

func (s *service) cancellationTasks(order *models.Order) []postCommitTask {
	return []postCommitTask{
		{name: TaskNotifyCancelled, run: func(ctx context.Context) error { return s.notifier.OrderCancelled(ctx, order) }},
		{name: TaskInventoryRestock, run: func(ctx context.Context) error { return s.inventory.IncrementAll(ctx, stockLines(order)) }},
	}
}

// Get returns an order visible to viewer. Customers only see their own orders.
func (s *service) Get(ctx context.Context, orderID uuid.UUID, viewer Viewer) (*models.Order, error) {
	order, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if viewer.Staff {
		return order, nil
	}
	if order.UserID == nil || *order.UserID != viewer.UserID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order belongs to another customer")
	}
	return order, nil
}

func (s *service) ListForUser(ctx context.Context, userID uuid.UUID, filters ListFilters, params pagination.Params) (*OrderList, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	filters.UserID = &userID
	return s.List(ctx, filters, params)
}

func (s *service) List(ctx context.Context, filters ListFilters, params pagination.Params) (*OrderList, error) {
	if filters.From != nil && filters.To != nil && filters.From.After(*filters.To) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "from must be before to")
	}
	list, err := s.repo.List(ctx, filters, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list orders")
	}
	return list, nil
}

// Delete removes a cancelled order.
func (s *service) Delete(ctx context.Context, orderID uuid.UUID) error {
	order, err := s.load(ctx, orderID)
	if err != nil {
		return err
	}
	if order.Status != enums.OrderStatusCancelled {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "only cancelled orders can be deleted")
	}
	deleted, err := s.repo.DeleteCancelled(ctx, order.ID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete order")
	}
	if !deleted {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "order changed concurrently")
	}
	s.logg.Info(s.logg.WithOrderID(ctx, order.ID.String()), "order.deleted")
	return nil
}
