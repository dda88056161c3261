package discount

import (
	"context"
	"errors"
	"time"

	extErrors "github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Manager handles the database operations relating to DiscountCodes
type Manager struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewManager returns a new Manager for discount codes
func NewManager(logger *zap.Logger, db *gorm.DB) (*Manager, error) {
	if err := db.AutoMigrate(&DiscountCode{}); err != nil {
		return nil, extErrors.Wrap(err, "Cannot initialize discount.Manager")
	}
	return &Manager{
		db:     db,
		logger: logger,
	}, nil
}

// Create will persist a new discount code. The code text is canonicalized to
// upper case before storage.
func (m *Manager) Create(ctx context.Context, d *DiscountCode) error {
	d.Code = NormalizeCode(d.Code)
	result := m.db.WithContext(ctx).Create(d)
	if result.Error != nil {
		m.logger.Error("Unable to create new discount code in database",
			zap.Error(result.Error),
		)
		return extErrors.Wrap(result.Error, "Cannot create discount code")
	}
	return nil
}

// GetByCode will try to return the discount code by its canonical code text
func (m *Manager) GetByCode(ctx context.Context, code string) (*DiscountCode, error) {
	var d DiscountCode

	result := m.db.WithContext(ctx).First(&d, "code = ?", NormalizeCode(code))

	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, nil
	}

	if result.Error != nil {
		m.logger.Error("Database returned error",
			zap.Error(result.Error),
		)
		return nil, extErrors.Wrap(result.Error, "Cannot get discount code")
	}

	return &d, nil
}

// Validate looks up a code by free text and evaluates it, optionally against
// a plan. On a validation failure the matched code is still returned
// alongside the error so the caller can echo details about the rejection.
func (m *Manager) Validate(ctx context.Context, codeText string, planID *uint) (*DiscountCode, error) {
	d, err := m.GetByCode(ctx, codeText)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, ErrCodeNotFound
	}
	if err := d.Valid(time.Now().UTC(), planID); err != nil {
		return d, err
	}
	return d, nil
}

// IncrementUsage atomically increments current_uses by exactly one. The
// conditional update guards the max_uses ceiling at the database, so two
// subscriptions racing to redeem the last remaining use cannot both succeed:
// the loser observes ErrCodeExhausted. Callers must invoke this exactly once
// per subscription creation, after the subscriber row is durably committed;
// there is no decrement.
func (m *Manager) IncrementUsage(ctx context.Context, id uint) error {
	result := m.db.WithContext(ctx).
		Model(&DiscountCode{}).
		Where("id = ?", id).
		Where("max_uses IS NULL OR current_uses < max_uses").
		UpdateColumn("current_uses", gorm.Expr("current_uses + ?", 1))
	if result.Error != nil {
		m.logger.Error("Database returned error",
			zap.Error(result.Error),
		)
		return extErrors.Wrap(result.Error, "Cannot increment discount code usage")
	}
	if result.RowsAffected > 0 {
		return nil
	}
	// no row updated: either the code is gone or the ceiling was hit
	var d DiscountCode
	lookup := m.db.WithContext(ctx).First(&d, "id = ?", id)
	if errors.Is(lookup.Error, gorm.ErrRecordNotFound) {
		return ErrCodeNotFound
	}
	if lookup.Error != nil {
		return extErrors.Wrap(lookup.Error, "Cannot inspect discount code after increment")
	}
	return ErrCodeExhausted
}

// List returns every discount code, most recent first
func (m *Manager) List(ctx context.Context) ([]DiscountCode, error) {
	results := make([]DiscountCode, 0, 4)
	result := m.db.WithContext(ctx).Order("created_at desc").Find(&results)
	if result.Error != nil {
		m.logger.Error("Database returned error",
			zap.Error(result.Error),
		)
		return nil, extErrors.Wrap(result.Error, "Cannot list discount codes")
	}
	return results, nil
}

// Delete removes a discount code. Deletion is independent of usage history.
func (m *Manager) Delete(ctx context.Context, id uint) error {
	result := m.db.WithContext(ctx).Delete(&DiscountCode{}, "id = ?", id)
	if result.Error != nil {
		m.logger.Error("Database returned error",
			zap.Error(result.Error),
		)
		return extErrors.Wrap(result.Error, "Cannot delete discount code")
	}
	if result.RowsAffected == 0 {
		return ErrCodeNotFound
	}
	return nil
}
