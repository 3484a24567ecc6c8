package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCampaign_Discount(t *testing.T) {
	tests := []struct {
		name     string
		campaign Campaign
		amount   int64
		want     int64
	}{
		{"fixed", Campaign{DiscountType: DiscountFixed, DiscountValue: 500}, 3000, 500},
		{"fixed capped by order amount", Campaign{DiscountType: DiscountFixed, DiscountValue: 500}, 300, 300},
		{"percent", Campaign{DiscountType: DiscountPercent, DiscountValue: 15}, 1000, 150},
		{"percent with ceiling", Campaign{DiscountType: DiscountPercent, DiscountValue: 50, MaxDiscount: 200}, 1000, 200},
		{"percent rounds down", Campaign{DiscountType: DiscountPercent, DiscountValue: 33}, 10, 3},
		{"unknown type", Campaign{DiscountType: "BOGO", DiscountValue: 5}, 1000, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.campaign.Discount(tt.amount))
		})
	}
}

func TestCampaign_ActiveAt(t *testing.T) {
	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	c := Campaign{ValidFrom: from, ValidUntil: from.Add(time.Hour)}

	assert.False(t, c.ActiveAt(from.Add(-time.Nanosecond)))
	assert.True(t, c.ActiveAt(from))
	assert.True(t, c.ActiveAt(from.Add(59*time.Minute)))
	assert.False(t, c.ActiveAt(from.Add(time.Hour)))
}
