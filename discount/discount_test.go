package discount

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(t *testing.T, s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

func intPtr(i int) *int {
	return &i
}

func timePtr(t time.Time) *time.Time {
	return &t
}

func TestNormalizeCode(t *testing.T) {
	assert.Equal(t, "SUMMER20", NormalizeCode("  summer20 "))
	assert.Equal(t, "WELCOME", NormalizeCode("Welcome"))
	assert.Equal(t, "", NormalizeCode("   "))
}

func TestApplyPercent(t *testing.T) {
	cases := []struct {
		name           string
		value          string
		basePrice      string
		expectedFinal  string
		expectedAmount string
		expectedFree   bool
	}{
		{
			name:           "twenty percent",
			value:          "20",
			basePrice:      "49.99",
			expectedFinal:  "39.99",
			expectedAmount: "10.00",
		},
		{
			name:           "fifteen percent rounds half away",
			value:          "15",
			basePrice:      "19.99",
			expectedFinal:  "16.99",
			expectedAmount: "3.00",
		},
		{
			name:          "hundred percent is free",
			value:         "100",
			basePrice:     "10.00",
			expectedFinal: "0.00",
			expectedFree:  true,
		},
		{
			name:           "zero percent",
			value:          "0",
			basePrice:      "5.00",
			expectedFinal:  "5.00",
			expectedAmount: "0.00",
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			d := DiscountCode{
				Kind:  KindPercent,
				Value: dec(t, c.value),
			}
			quote := d.Apply(dec(t, c.basePrice))
			assert.True(t, dec(t, c.expectedFinal).Equal(quote.FinalPrice), "final: %s", quote.FinalPrice)
			if len(c.expectedAmount) > 0 {
				assert.True(t, dec(t, c.expectedAmount).Equal(quote.DiscountAmount), "amount: %s", quote.DiscountAmount)
			}
			assert.Equal(t, c.expectedFree, quote.IsFree)
			require.NotNil(t, quote.DiscountPercent)
			assert.True(t, dec(t, c.value).Equal(*quote.DiscountPercent))
		})
	}
}

func TestApplyFixed(t *testing.T) {
	t.Run("ordinary subtraction", func(t *testing.T) {
		d := DiscountCode{
			Kind:  KindFixed,
			Value: dec(t, "2.50"),
		}
		quote := d.Apply(dec(t, "9.99"))
		assert.True(t, dec(t, "7.49").Equal(quote.FinalPrice))
		assert.True(t, dec(t, "2.50").Equal(quote.DiscountAmount))
		assert.False(t, quote.IsFree)
		assert.Nil(t, quote.DiscountPercent)
	})

	t.Run("floored at zero", func(t *testing.T) {
		d := DiscountCode{
			Kind:  KindFixed,
			Value: dec(t, "5.00"),
		}
		quote := d.Apply(dec(t, "3.50"))
		assert.True(t, quote.FinalPrice.IsZero())
		assert.True(t, quote.IsFree)
	})

	t.Run("exact zero is free", func(t *testing.T) {
		d := DiscountCode{
			Kind:  KindFixed,
			Value: dec(t, "12.00"),
		}
		quote := d.Apply(dec(t, "12.00"))
		assert.True(t, quote.IsFree)
	})
}

func TestValidOrder(t *testing.T) {
	now := time.Date(2021, 6, 15, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)
	planID := uint(7)

	cases := []struct {
		name     string
		code     DiscountCode
		expected error
	}{
		{
			name: "inactive wins over exhausted",
			code: DiscountCode{
				IsActive:    false,
				MaxUses:     intPtr(1),
				CurrentUses: 1,
			},
			expected: ErrCodeInactive,
		},
		{
			name: "exhausted wins over expired",
			code: DiscountCode{
				IsActive:    true,
				MaxUses:     intPtr(5),
				CurrentUses: 5,
				ValidUntil:  timePtr(past),
			},
			expected: ErrCodeExhausted,
		},
		{
			name: "not yet valid wins over not applicable",
			code: DiscountCode{
				IsActive:          true,
				ValidFrom:         timePtr(future),
				ApplicablePlanIDs: "99",
			},
			expected: ErrCodeNotYetValid,
		},
		{
			name: "expired wins over not applicable",
			code: DiscountCode{
				IsActive:          true,
				ValidUntil:        timePtr(past),
				ApplicablePlanIDs: "99",
			},
			expected: ErrCodeExpired,
		},
		{
			name: "not applicable checked last",
			code: DiscountCode{
				IsActive:          true,
				ApplicablePlanIDs: "99",
			},
			expected: ErrCodeNotApplicable,
		},
		{
			name: "all checks pass",
			code: DiscountCode{
				IsActive:          true,
				MaxUses:           intPtr(5),
				CurrentUses:       4,
				ValidFrom:         timePtr(past),
				ValidUntil:        timePtr(future),
				ApplicablePlanIDs: "3,7",
			},
			expected: nil,
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.expected, c.code.Valid(now, &planID))
		})
	}
}

func TestValidBoundaries(t *testing.T) {
	now := time.Date(2021, 6, 15, 12, 0, 0, 0, time.UTC)

	t.Run("last remaining use is valid", func(t *testing.T) {
		d := DiscountCode{
			IsActive:    true,
			MaxUses:     intPtr(10),
			CurrentUses: 9,
		}
		assert.NoError(t, d.Valid(now, nil))
	})

	t.Run("at the ceiling is exhausted", func(t *testing.T) {
		d := DiscountCode{
			IsActive:    true,
			MaxUses:     intPtr(10),
			CurrentUses: 10,
		}
		assert.Equal(t, ErrCodeExhausted, d.Valid(now, nil))
	})

	t.Run("window bounds are inclusive", func(t *testing.T) {
		d := DiscountCode{
			IsActive:   true,
			ValidFrom:  timePtr(now),
			ValidUntil: timePtr(now),
		}
		assert.NoError(t, d.Valid(now, nil))
	})

	t.Run("one instant before the window", func(t *testing.T) {
		d := DiscountCode{
			IsActive:  true,
			ValidFrom: timePtr(now.Add(time.Nanosecond)),
		}
		assert.Equal(t, ErrCodeNotYetValid, d.Valid(now, nil))
	})

	t.Run("one instant after the window", func(t *testing.T) {
		d := DiscountCode{
			IsActive:   true,
			ValidUntil: timePtr(now.Add(-time.Nanosecond)),
		}
		assert.Equal(t, ErrCodeExpired, d.Valid(now, nil))
	})

	t.Run("nil plan skips applicability", func(t *testing.T) {
		d := DiscountCode{
			IsActive:          true,
			ApplicablePlanIDs: "99",
		}
		assert.NoError(t, d.Valid(now, nil))
	})
}

func TestAppliesToPlan(t *testing.T) {
	t.Run("empty allow-list applies to all", func(t *testing.T) {
		d := DiscountCode{}
		assert.True(t, d.AppliesToPlan(1))
	})

	t.Run("listed plan", func(t *testing.T) {
		d := DiscountCode{ApplicablePlanIDs: "1, 2,3"}
		assert.True(t, d.AppliesToPlan(2))
		assert.False(t, d.AppliesToPlan(4))
	})

	t.Run("malformed tokens are ignored", func(t *testing.T) {
		d := DiscountCode{ApplicablePlanIDs: "abc, ,5"}
		assert.True(t, d.AppliesToPlan(5))
		assert.False(t, d.AppliesToPlan(1))
	})
}
