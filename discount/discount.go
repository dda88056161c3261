package discount

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Kind is the custom type to define how a discount value is interpreted
type Kind string

// Defining the discount kinds
const (
	KindPercent Kind = "percent" // Value in [0, 100], applied as a percentage of the base price
	KindFixed   Kind = "fixed"   // Value >= 0, subtracted from the base price, floored at zero
)

// Validation failures, surfaced verbatim to the end user as the reason a code
// was rejected. The checks run in a fixed order and short-circuit, so the
// first failing condition determines the error.
var (
	ErrCodeNotFound      = errors.New("discount code not found")
	ErrCodeInactive      = errors.New("discount code is not active")
	ErrCodeExhausted     = errors.New("discount code has reached maximum uses")
	ErrCodeNotYetValid   = errors.New("discount code is not yet valid")
	ErrCodeExpired       = errors.New("discount code has expired")
	ErrCodeNotApplicable = errors.New("discount code is not applicable to this plan")
)

// DiscountCode describes a promo code that adjusts a plan's price
type DiscountCode struct {
	ID          uint   `json:"id" gorm:"primaryKey"`
	Code        string `json:"code" gorm:"uniqueIndex;not null"` // Canonically upper-cased
	Description string `json:"description"`

	Kind  Kind            `json:"kind" gorm:"column:discount_type;default:percent"`
	Value decimal.Decimal `json:"value" gorm:"column:discount_value;type:numeric(10,2);not null"`

	MaxUses     *int `json:"maxUses"` // nil = unlimited
	CurrentUses int  `json:"currentUses"`

	ValidFrom  *time.Time `json:"validFrom"`  // nil = no lower bound
	ValidUntil *time.Time `json:"validUntil"` // nil = no expiration

	IsActive bool `json:"isActive" gorm:"default:true"`

	// Comma-separated plan ids; empty = applies to all plans
	ApplicablePlanIDs string `json:"applicablePlanIds"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NormalizeCode canonicalizes free-text code input for lookup
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// applicableIDs parses the comma-separated plan allow-list. Tokens that do not
// parse as integers are ignored.
func (d *DiscountCode) applicableIDs() []uint {
	if len(d.ApplicablePlanIDs) == 0 {
		return nil
	}
	parts := strings.Split(d.ApplicablePlanIDs, ",")
	ids := make([]uint, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if len(part) == 0 {
			continue
		}
		id, err := strconv.ParseUint(part, 10, 32)
		if err != nil {
			continue
		}
		ids = append(ids, uint(id))
	}
	return ids
}

// AppliesToPlan reports whether the code may be used with the given plan. A
// code with no allow-list applies to every plan.
func (d *DiscountCode) AppliesToPlan(planID uint) bool {
	ids := d.applicableIDs()
	if len(ids) == 0 {
		return true
	}
	for _, id := range ids {
		if id == planID {
			return true
		}
	}
	return false
}

// Valid evaluates the code against the reference instant and an optional plan.
// The evaluation order is fixed: inactive, exhausted uses, not yet valid,
// expired, then plan applicability. Both validity-window bounds are inclusive:
// now == ValidUntil is still valid, now == ValidFrom is already valid.
func (d *DiscountCode) Valid(now time.Time, planID *uint) error {
	if !d.IsActive {
		return ErrCodeInactive
	}
	if d.MaxUses != nil && d.CurrentUses >= *d.MaxUses {
		return ErrCodeExhausted
	}
	if d.ValidFrom != nil && now.Before(*d.ValidFrom) {
		return ErrCodeNotYetValid
	}
	if d.ValidUntil != nil && now.After(*d.ValidUntil) {
		return ErrCodeExpired
	}
	if planID != nil && !d.AppliesToPlan(*planID) {
		return ErrCodeNotApplicable
	}
	return nil
}

// Quote is the pricing outcome of applying a discount code to a base price
type Quote struct {
	BasePrice       decimal.Decimal  `json:"basePrice"`
	DiscountPercent *decimal.Decimal `json:"discountPercent"` // Set only for percent codes
	DiscountAmount  decimal.Decimal  `json:"discountAmount"`
	FinalPrice      decimal.Decimal  `json:"finalPrice"`
	IsFree          bool             `json:"isFree"` // Callers skip payment checkout and activate directly when set
}

var oneHundred = decimal.NewFromInt(100)

// Apply computes the discounted price. Amounts are rounded half away from
// zero to 2 decimal places. Fixed discounts never produce a negative price;
// a final price of exactly zero is the legitimate "free" outcome.
func (d *DiscountCode) Apply(basePrice decimal.Decimal) Quote {
	quote := Quote{
		BasePrice: basePrice,
	}
	switch d.Kind {
	case KindFixed:
		quote.DiscountAmount = d.Value.Round(2)
		final := basePrice.Sub(d.Value)
		if final.IsNegative() {
			final = decimal.Zero
		}
		quote.FinalPrice = final.Round(2)
	default: // percent
		percent := d.Value
		quote.DiscountPercent = &percent
		quote.FinalPrice = basePrice.Sub(basePrice.Mul(percent).Div(oneHundred)).Round(2)
		quote.DiscountAmount = basePrice.Sub(quote.FinalPrice)
	}
	quote.IsFree = quote.FinalPrice.IsZero()
	return quote
}
