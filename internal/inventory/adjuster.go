package inventory

import (
	"context"
	"fmt"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"
)

const (
	productsTable = "products"
	variantsTable = "product_variants"
)

// Line is one stock movement. When VariantID is set the variant row is
// adjusted, otherwise the product row.
type Line struct {
	ProductID uuid.UUID
	VariantID *uuid.UUID
	Quantity  int
}

// Result reports whether a decrement hit the zero floor.
type Result struct {
	Oversold bool
}

// Summary aggregates a multi-line adjustment.
type Summary struct {
	Applied  int
	Oversold []Line
}

// Adjuster mutates stock counters with single-statement conditional updates.
type Adjuster struct {
	db   *gorm.DB
	logg *logger.Logger
}

// NewAdjuster builds an adjuster bound to db.
func NewAdjuster(db *gorm.DB, logg *logger.Logger) *Adjuster {
	if logg == nil {
		logg = logger.Nop()
	}
	return &Adjuster{db: db, logg: logg}
}

func (l Line) target() (string, uuid.UUID) {
	if l.VariantID != nil {
		return variantsTable, *l.VariantID
	}
	return productsTable, l.ProductID
}

// Decrement lowers stock by the line quantity, never below zero.
func (a *Adjuster) Decrement(ctx context.Context, line Line) (Result, error) {
	if line.Quantity < 1 {
		return Result{}, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	table, id := line.target()

	res := a.db.WithContext(ctx).Table(table).
		Where("id = ? AND stock >= ?", id, line.Quantity).
		Update("stock", gorm.Expr("stock - ?", line.Quantity))
	if res.Error != nil {
		return Result{}, fmt.Errorf("decrement %s stock: %w", table, res.Error)
	}
	if res.RowsAffected == 1 {
		return Result{}, nil
	}

	res = a.db.WithContext(ctx).Table(table).
		Where("id = ?", id).
		Update("stock", gorm.Expr("CASE WHEN stock >= ? THEN stock - ? ELSE 0 END", line.Quantity, line.Quantity))
	if res.Error != nil {
		return Result{}, fmt.Errorf("floor %s stock: %w", table, res.Error)
	}
	if res.RowsAffected == 0 {
		return Result{}, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("%s row %s not found", table, id))
	}
	return Result{Oversold: true}, nil
}

// Increment restocks by the line quantity.
func (a *Adjuster) Increment(ctx context.Context, line Line) error {
	if line.Quantity < 1 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	table, id := line.target()
	res := a.db.WithContext(ctx).Table(table).
		Where("id = ?", id).
		Update("stock", gorm.Expr("stock + ?", line.Quantity))
	if res.Error != nil {
		return fmt.Errorf("increment %s stock: %w", table, res.Error)
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("%s row %s not found", table, id))
	}
	return nil
}

// DecrementAll applies every line independently. Failures are logged and
// combined; earlier lines are never rolled back.
func (a *Adjuster) DecrementAll(ctx context.Context, lines []Line) (Summary, error) {
	var (
		summary Summary
		errs    error
	)
	for _, line := range lines {
		lineCtx := a.logg.WithFields(ctx, map[string]any{"product_id": line.ProductID.String(), "qty": line.Quantity})
		res, err := a.Decrement(ctx, line)
		if err != nil {
			a.logg.Error(lineCtx, "stock decrement failed", err)
			errs = multierr.Append(errs, err)
			continue
		}
		summary.Applied++
		if res.Oversold {
			summary.Oversold = append(summary.Oversold, line)
			a.logg.Warn(a.logg.WithField(lineCtx, "error_code", pkgerrors.CodeInsufficientStock), "stock floored at zero")
		}
	}
	return summary, errs
}

// IncrementAll restocks every line independently.
func (a *Adjuster) IncrementAll(ctx context.Context, lines []Line) error {
	var errs error
	for _, line := range lines {
		if err := a.Increment(ctx, line); err != nil {
			a.logg.Error(a.logg.WithField(ctx, "product_id", line.ProductID.String()), "stock increment failed", err)
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}
