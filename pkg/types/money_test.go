package types

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
)

func TestMoneyPercentRoundsHalfUp(t *testing.T) {
	subtotal := Money(4998)
	discount := subtotal.Percent(decimal.NewFromInt(5))
	if discount != 250 {
		t.Fatalf("expected 250 cents discount, got %d", discount)
	}
	if final := subtotal - discount; final != 4748 {
		t.Fatalf("expected 4748 final, got %d", final)
	}
}

func TestMoneyJSONUsesMajorUnits(t *testing.T) {
	payload, err := json.Marshal(struct {
		Total Money `json:"total"`
	}{Total: 4748})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(payload) != `{"total":47.48}` {
		t.Fatalf("unexpected payload %s", payload)
	}

	var decoded struct {
		Total Money `json:"total"`
	}
	if err := json.Unmarshal([]byte(`{"total":49.985}`), &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.Total != 4999 {
		t.Fatalf("expected half-up rounding to 4999, got %d", decoded.Total)
	}

	if err := json.Unmarshal([]byte(`{"total":"12.30"}`), &decoded); err != nil {
		t.Fatalf("unmarshal quoted: %v", err)
	}
	if decoded.Total != 1230 {
		t.Fatalf("expected 1230, got %d", decoded.Total)
	}
}

func TestMoneyRejectsGarbage(t *testing.T) {
	var m Money
	if err := json.Unmarshal([]byte(`"abc"`), &m); err == nil {
		t.Fatal("expected error for non-numeric money")
	}
}
