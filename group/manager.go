package group

import (
	"context"
	"errors"

	extErrors "github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrNotFound is returned when no service group matches the given id
var ErrNotFound = errors.New("group not found")

// Manager handles the database operations relating to ServiceGroups
type Manager struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewManager returns a new Manager for service groups
func NewManager(logger *zap.Logger, db *gorm.DB) (*Manager, error) {
	if err := db.AutoMigrate(&ServiceGroup{}); err != nil {
		return nil, extErrors.Wrap(err, "Cannot initialize group.Manager")
	}
	return &Manager{
		db:     db,
		logger: logger,
	}, nil
}

// Create will persist a new service group
func (m *Manager) Create(ctx context.Context, g *ServiceGroup) error {
	result := m.db.WithContext(ctx).Create(g)
	if result.Error != nil {
		m.logger.Error("Unable to create new group in database",
			zap.Error(result.Error),
		)
		return extErrors.Wrap(result.Error, "Cannot create group")
	}
	return nil
}

// GetByID will try to return the service group in the database by id
func (m *Manager) GetByID(ctx context.Context, id uint) (*ServiceGroup, error) {
	var g ServiceGroup

	result := m.db.WithContext(ctx).First(&g, "id = ?", id)

	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, nil
	}

	if result.Error != nil {
		m.logger.Error("Database returned error",
			zap.Error(result.Error),
		)
		return nil, extErrors.Wrap(result.Error, "Cannot get group by id")
	}

	return &g, nil
}

// ListActive returns all active service groups
func (m *Manager) ListActive(ctx context.Context) ([]ServiceGroup, error) {
	results := make([]ServiceGroup, 0, 2)
	result := m.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("id asc").
		Find(&results)
	if result.Error != nil {
		m.logger.Error("Database returned error",
			zap.Error(result.Error),
		)
		return nil, extErrors.Wrap(result.Error, "Cannot list active groups")
	}
	return results, nil
}

// Update will persist mutated group fields
func (m *Manager) Update(ctx context.Context, g *ServiceGroup) error {
	result := m.db.WithContext(ctx).Save(g)
	if result.Error != nil {
		m.logger.Error("Database returned error",
			zap.Error(result.Error),
		)
		return extErrors.Wrap(result.Error, "Cannot update group")
	}
	return nil
}
