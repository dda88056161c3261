package subscriber

import (
	"context"
	"errors"

	extErrors "github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Manager handles the database operations relating to Subscribers
type Manager struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewManager returns a new Manager for subscribers
func NewManager(logger *zap.Logger, db *gorm.DB) (*Manager, error) {
	if err := db.AutoMigrate(&Subscriber{}); err != nil {
		return nil, extErrors.Wrap(err, "Cannot initialize subscriber.Manager")
	}
	return &Manager{
		db:     db,
		logger: logger,
	}, nil
}

// Create will persist a new subscriber profile
func (m *Manager) Create(ctx context.Context, sub *Subscriber) error {
	result := m.db.WithContext(ctx).Create(sub)
	if result.Error != nil {
		m.logger.Error("Unable to create new subscriber in database",
			zap.Error(result.Error),
		)
		return extErrors.Wrap(result.Error, "Cannot create subscriber")
	}
	return nil
}

// GetByID will try to return the subscriber in the database by id
func (m *Manager) GetByID(ctx context.Context, id uint) (*Subscriber, error) {
	var sub Subscriber

	result := m.db.WithContext(ctx).First(&sub, "id = ?", id)

	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, nil
	}

	if result.Error != nil {
		m.logger.Error("Database returned error",
			zap.Error(result.Error),
		)
		return nil, extErrors.Wrap(result.Error, "Cannot get subscriber by id")
	}

	return &sub, nil
}

// GetByPhoneNumber will try to return the subscriber in the database by phone number
func (m *Manager) GetByPhoneNumber(ctx context.Context, phoneNumber string) (*Subscriber, error) {
	var sub Subscriber

	result := m.db.WithContext(ctx).First(&sub, "phone_number = ?", phoneNumber)

	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, nil
	}

	if result.Error != nil {
		m.logger.Error("Database returned error",
			zap.Error(result.Error),
		)
		return nil, extErrors.Wrap(result.Error, "Cannot get subscriber by phone number")
	}

	return &sub, nil
}

// ListActiveByGroup returns every subscriber in a group whose subscription is active
func (m *Manager) ListActiveByGroup(ctx context.Context, groupID uint) ([]Subscriber, error) {
	results := make([]Subscriber, 0, 4)
	result := m.db.WithContext(ctx).
		Where("group_id = ?", groupID).
		Where("subscription_status = ?", StatusActive).
		Order("id asc").
		Find(&results)
	if result.Error != nil {
		m.logger.Error("Database returned error",
			zap.Error(result.Error),
		)
		return nil, extErrors.Wrap(result.Error, "Cannot list active subscribers in group")
	}
	return results, nil
}

// Update will persist mutated subscriber fields
func (m *Manager) Update(ctx context.Context, sub *Subscriber) error {
	result := m.db.WithContext(ctx).Save(sub)
	if result.Error != nil {
		m.logger.Error("Database returned error",
			zap.Error(result.Error),
		)
		return extErrors.Wrap(result.Error, "Cannot update subscriber")
	}
	return nil
}

// UpdateStatus will transition a subscriber's subscription status. Flipping a
// subscriber to active makes already-queued pending messages eligible for
// dispatch without re-creating them.
func (m *Manager) UpdateStatus(ctx context.Context, id uint, status Status) error {
	result := m.db.WithContext(ctx).
		Model(&Subscriber{}).
		Where("id = ?", id).
		Update("subscription_status", status)
	if result.Error != nil {
		m.logger.Error("Database returned error",
			zap.Error(result.Error),
		)
		return extErrors.Wrap(result.Error, "Cannot update subscriber status")
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a subscriber. Scheduled messages owned by the subscriber are
// removed by the store's cascade constraint.
func (m *Manager) Delete(ctx context.Context, id uint) error {
	result := m.db.WithContext(ctx).Delete(&Subscriber{}, "id = ?", id)
	if result.Error != nil {
		m.logger.Error("Database returned error",
			zap.Error(result.Error),
		)
		return extErrors.Wrap(result.Error, "Cannot delete subscriber")
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ErrNotFound is returned when no subscriber matches the given identity
var ErrNotFound = errors.New("subscriber not found")
