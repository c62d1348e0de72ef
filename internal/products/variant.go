package products

import (
	"strings"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/google/uuid"
)

// DefaultDimensions is recorded on line snapshots when no dimension resolves.
const DefaultDimensions = "N/A"

// VariantQuery describes what the client asked for on a line.
type VariantQuery struct {
	VariantID  *uuid.UUID
	Color      string
	Dimensions string
}

// IsEmpty reports whether the line carries no variant hints at all.
func (q VariantQuery) IsEmpty() bool {
	return q.VariantID == nil && strings.TrimSpace(q.Color) == "" && strings.TrimSpace(q.Dimensions) == ""
}

// MatchVariant resolves a variant of product. An explicit id wins; otherwise
// every non-empty requested attribute must match, trimmed and case-insensitive.
func MatchVariant(product models.Product, q VariantQuery) *models.ProductVariant {
	if q.VariantID != nil {
		for i := range product.Variants {
			if product.Variants[i].ID == *q.VariantID {
				return &product.Variants[i]
			}
		}
	}

	color := normalize(q.Color)
	dims := normalize(q.Dimensions)
	if color == "" && dims == "" {
		return nil
	}
	for i := range product.Variants {
		v := &product.Variants[i]
		if color != "" && normalize(v.Color) != color {
			continue
		}
		if dims != "" && normalize(v.Dimensions) != dims {
			continue
		}
		return v
	}
	return nil
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
