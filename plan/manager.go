package plan

import (
	"context"
	"errors"

	"github.com/zllovesuki/subtext/subscriber"

	extErrors "github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned when no plan matches the given id or name
	ErrNotFound = errors.New("plan not found")
	// ErrReferenced is returned when deleting a plan that subscribers still reference
	ErrReferenced = errors.New("plan is referenced by subscribers")
)

// Manager handles the database operations relating to Plans
type Manager struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewManager returns a new Manager for plans
func NewManager(logger *zap.Logger, db *gorm.DB) (*Manager, error) {
	if err := db.AutoMigrate(&Plan{}); err != nil {
		return nil, extErrors.Wrap(err, "Cannot initialize plan.Manager")
	}
	return &Manager{
		db:     db,
		logger: logger,
	}, nil
}

// Create will persist a new plan
func (m *Manager) Create(ctx context.Context, p *Plan) error {
	result := m.db.WithContext(ctx).Create(p)
	if result.Error != nil {
		m.logger.Error("Unable to create new plan in database",
			zap.Error(result.Error),
		)
		return extErrors.Wrap(result.Error, "Cannot create plan")
	}
	return nil
}

// GetByID will try to return the plan in the database by id
func (m *Manager) GetByID(ctx context.Context, id uint) (*Plan, error) {
	var p Plan

	result := m.db.WithContext(ctx).First(&p, "id = ?", id)

	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, nil
	}

	if result.Error != nil {
		m.logger.Error("Database returned error",
			zap.Error(result.Error),
		)
		return nil, extErrors.Wrap(result.Error, "Cannot get plan by id")
	}

	return &p, nil
}

// GetByName will try to return an active plan in the database by its unique name
func (m *Manager) GetByName(ctx context.Context, name string) (*Plan, error) {
	var p Plan

	result := m.db.WithContext(ctx).
		Where("name = ?", name).
		Where("is_active = ?", true).
		First(&p)

	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, nil
	}

	if result.Error != nil {
		m.logger.Error("Database returned error",
			zap.Error(result.Error),
		)
		return nil, extErrors.Wrap(result.Error, "Cannot get plan by name")
	}

	return &p, nil
}

// ListActive returns all active plans ordered for display. Ties on
// display_order fall back to insertion order.
func (m *Manager) ListActive(ctx context.Context) ([]Plan, error) {
	results := make([]Plan, 0, 4)
	result := m.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("display_order asc").
		Order("id asc").
		Find(&results)
	if result.Error != nil {
		m.logger.Error("Database returned error",
			zap.Error(result.Error),
		)
		return nil, extErrors.Wrap(result.Error, "Cannot list active plans")
	}
	return results, nil
}

// Update will persist administrative corrections to a plan
func (m *Manager) Update(ctx context.Context, p *Plan) error {
	result := m.db.WithContext(ctx).Save(p)
	if result.Error != nil {
		m.logger.Error("Database returned error",
			zap.Error(result.Error),
		)
		return extErrors.Wrap(result.Error, "Cannot update plan")
	}
	return nil
}

// Delete removes a plan. The delete is rejected with ErrReferenced while any
// subscriber still references the plan.
func (m *Manager) Delete(ctx context.Context, id uint) error {
	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var referencing int64
		if err := tx.Model(&subscriber.Subscriber{}).
			Where("plan_id = ?", id).
			Count(&referencing).Error; err != nil {
			return extErrors.Wrap(err, "Cannot count subscribers referencing plan")
		}
		if referencing > 0 {
			return ErrReferenced
		}
		result := tx.Delete(&Plan{}, "id = ?", id)
		if result.Error != nil {
			return extErrors.Wrap(result.Error, "Cannot delete plan")
		}
		if result.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}
