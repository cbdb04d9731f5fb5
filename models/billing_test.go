package models_test

import (
	"testing"

	"github.com/sgmotoworks/workshop_backend/models"
	"github.com/shopspring/decimal"
)

func TestAllocateProportional(t *testing.T) {
	d := func(s string) decimal.Decimal {
		v, err := decimal.NewFromString(s)
		if err != nil {
			t.Fatalf("bad decimal %q: %v", s, err)
		}
		return v
	}

	cases := []struct {
		name    string
		share   string
		total   string
		payment string
		want    string
	}{
		{"full share", "200", "200", "150", "150"},
		{"half share", "100", "200", "150", "75"},
		{"zero payment", "100", "200", "0", "0"},
		{"zero total", "100", "0", "150", "0"},
		{"zero share", "0", "200", "150", "0"},
		{"negative total", "100", "-5", "150", "0"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := models.AllocateProportional(d(tc.share), d(tc.total), d(tc.payment))
			if !got.Equal(d(tc.want)) {
				t.Fatalf("AllocateProportional(%s, %s, %s) = %s, want %s",
					tc.share, tc.total, tc.payment, got, tc.want)
			}
		})
	}
}

// Allocations over a split must add back up to the amount actually received.
func TestAllocateProportionalConservation(t *testing.T) {
	total := decimal.NewFromInt(300)
	payment := decimal.NewFromFloat(123.45)
	shares := []decimal.Decimal{
		decimal.NewFromInt(120),
		decimal.NewFromInt(80),
		decimal.NewFromInt(100),
	}

	sum := decimal.Zero
	for _, share := range shares {
		sum = sum.Add(models.AllocateProportional(share, total, payment))
	}
	if !sum.Equal(payment) {
		t.Fatalf("allocations sum to %s, want %s", sum, payment)
	}
}
