package coupons

import (
	"context"
	"strings"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository persists welcome coupons.
type Repository interface {
	Create(ctx context.Context, coupon *models.Coupon) error
	FindByCodeAndUser(ctx context.Context, code string, userID uuid.UUID) (*models.Coupon, error)
	MarkUsed(ctx context.Context, code string, userID, orderID uuid.UUID, now time.Time) (bool, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a coupon repository bound to db.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

// NormalizeCode is the stored form of a coupon code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func (r *repository) Create(ctx context.Context, coupon *models.Coupon) error {
	if coupon.ID == uuid.Nil {
		coupon.ID = uuid.New()
	}
	coupon.Code = NormalizeCode(coupon.Code)
	return r.db.WithContext(ctx).Create(coupon).Error
}

func (r *repository) FindByCodeAndUser(ctx context.Context, code string, userID uuid.UUID) (*models.Coupon, error) {
	var coupon models.Coupon
	err := r.db.WithContext(ctx).
		Where("code = ? AND user_id = ?", NormalizeCode(code), userID).
		First(&coupon).Error
	if err != nil {
		return nil, err
	}
	return &coupon, nil
}

// MarkUsed sets used_at and order_id in a single conditional write. It reports
// false when the coupon is missing, already used or expired.
func (r *repository) MarkUsed(ctx context.Context, code string, userID, orderID uuid.UUID, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Coupon{}).
		Where("code = ? AND user_id = ? AND used_at IS NULL AND expires_at > ?", NormalizeCode(code), userID, now).
		Updates(map[string]any{"used_at": now, "order_id": orderID})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
