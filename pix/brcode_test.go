package pix

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func TestCRC16(t *testing.T) {
	tests := []struct {
		input string
		want  uint16
	}{
		{"123456789", 0x29B1},
		{"", 0xFFFF},
	}

	for _, tt := range tests {
		if got := CRC16(tt.input); got != tt.want {
			t.Errorf("CRC16(%q) = %04X, want %04X", tt.input, got, tt.want)
		}
	}
}

func TestPayload(t *testing.T) {
	payload, err := Payload(Charge{
		Key:          "condominio@example.com",
		MerchantName: "Condomínio Solar",
		MerchantCity: "São Paulo",
		Amount:       decimal.RequireFromString("300.5"),
		TxID:         "ABC123",
	})
	if err != nil {
		t.Fatalf("Payload() error = %v", err)
	}

	wantParts := []string{
		"000201",
		"26440014br.gov.bcb.pix0122condominio@example.com",
		"52040000",
		"5303986",
		"5406300.50",
		"5802BR",
		"5916CONDOMINIO SOLAR",
		"6009SAO PAULO",
		"62100506ABC123",
	}
	for _, part := range wantParts {
		if !strings.Contains(payload, part) {
			t.Errorf("Payload() = %q, missing %q", payload, part)
		}
	}
	if !strings.HasPrefix(payload, "000201") {
		t.Errorf("Payload() prefix = %q, want 000201", payload[:6])
	}
	if !Valid(payload) {
		t.Errorf("Valid(%q) = false, want true", payload)
	}

	tampered := strings.Replace(payload, "300.50", "300.51", 1)
	if Valid(tampered) {
		t.Errorf("Valid(tampered) = true, want false")
	}
}

func TestPayload_ZeroAmountOmitsField(t *testing.T) {
	payload, err := Payload(Charge{Key: "key", MerchantName: "A", MerchantCity: "B", TxID: "T1"})
	if err != nil {
		t.Fatalf("Payload() error = %v", err)
	}
	if strings.Contains(payload, "5303986540") {
		t.Errorf("Payload() = %q, want no amount field", payload)
	}
}

func TestPayload_RequiresKey(t *testing.T) {
	if _, err := Payload(Charge{Amount: decimal.NewFromInt(1)}); err == nil {
		t.Error("Payload() error = nil, want error")
	}
}

func TestNewTxID(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := NewTxID()
		if len(id) != 25 {
			t.Fatalf("len(NewTxID()) = %d, want 25", len(id))
		}
		if sanitizeTxID(id) != id {
			t.Fatalf("NewTxID() = %q, want alphanumeric", id)
		}
		if seen[id] {
			t.Fatalf("NewTxID() repeated %q", id)
		}
		seen[id] = true
	}
}
