package products

import (
	"testing"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/google/uuid"
)

func sofa() models.Product {
	return models.Product{
		ID:         uuid.New(),
		Name:       "Sofa",
		PriceCents: 10000,
		Variants: []models.ProductVariant{
			{ID: uuid.New(), Color: "Grey", Dimensions: "200x90", PriceCents: 12000, Stock: 3},
			{ID: uuid.New(), Color: "Blue", Dimensions: "200x90", PriceCents: 12500, Stock: 1},
			{ID: uuid.New(), Color: "Blue", Dimensions: "240x90", PriceCents: 14000, Stock: 0},
		},
	}
}

func TestMatchVariant(t *testing.T) {
	p := sofa()
	cases := []struct {
		name string
		q    VariantQuery
		want *uuid.UUID
	}{
		{"color and dimension", VariantQuery{Color: " blue ", Dimensions: "240X90"}, &p.Variants[2].ID},
		{"color only picks first match", VariantQuery{Color: "BLUE"}, &p.Variants[1].ID},
		{"dimension only", VariantQuery{Dimensions: "200x90"}, &p.Variants[0].ID},
		{"explicit id", VariantQuery{VariantID: &p.Variants[2].ID, Color: "grey"}, &p.Variants[2].ID},
		{"unknown color", VariantQuery{Color: "red"}, nil},
		{"no hints", VariantQuery{}, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := MatchVariant(p, tc.q)
			switch {
			case tc.want == nil && got != nil:
				t.Fatalf("expected no match, got %s", got.ID)
			case tc.want != nil && got == nil:
				t.Fatalf("expected %s, got no match", *tc.want)
			case tc.want != nil && got.ID != *tc.want:
				t.Fatalf("expected %s, got %s", *tc.want, got.ID)
			}
		})
	}
}

func TestVariantQueryIsEmpty(t *testing.T) {
	if !(VariantQuery{Color: "  "}).IsEmpty() {
		t.Fatal("blank color should count as empty")
	}
	if (VariantQuery{Dimensions: "1x1"}).IsEmpty() {
		t.Fatal("dimension hint is not empty")
	}
}
