package plan

import (
	"time"

	"github.com/shopspring/decimal"
)

// Plan describes a subscription pricing plan offered to subscribers
type Plan struct {
	ID          uint            `json:"id" gorm:"primaryKey"`
	Name        string          `json:"name" gorm:"uniqueIndex;not null"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price" gorm:"type:numeric(10,2);not null"` // Monthly price, never negative
	Currency    string          `json:"currency" gorm:"default:USD"`

	HasTrial  bool `json:"hasTrial"`
	TrialDays int  `json:"trialDays"`

	IsActive     bool `json:"isActive" gorm:"default:true"`
	DisplayOrder int  `json:"displayOrder"` // Sort key for listing, ties broken by insertion order

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
