package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/types"
)

// Product is a catalog entry with a base price and optional variants.
type Product struct {
	ID         uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name       string           `gorm:"column:name;not null"`
	Image      *string          `gorm:"column:image"`
	PriceCents types.Money      `gorm:"column:price_cents;not null"`
	Stock      int              `gorm:"column:stock;not null;default:0"`
	Variants   []ProductVariant `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	CreatedAt  time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

// ProductVariant is a color/dimension configuration with its own price and stock.
type ProductVariant struct {
	ID         uuid.UUID   `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ProductID  uuid.UUID   `gorm:"column:product_id;type:uuid;not null"`
	Color      string      `gorm:"column:color;not null;default:''"`
	Dimensions string      `gorm:"column:dimensions;not null;default:''"`
	PriceCents types.Money `gorm:"column:price_cents;not null;default:0"`
	Stock      int         `gorm:"column:stock;not null;default:0"`
}
