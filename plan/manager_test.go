package plan

import (
	"context"
	"testing"

	"github.com/zllovesuki/subtext/subscriber"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func testManagers(t *testing.T) (*Manager, *subscriber.Manager) {
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	logger := zap.NewNop()
	subscribers, err := subscriber.NewManager(logger, db)
	require.NoError(t, err)
	plans, err := NewManager(logger, db)
	require.NoError(t, err)
	return plans, subscribers
}

func TestListActiveOrdering(t *testing.T) {
	plans, _ := testManagers(t)
	ctx := context.Background()

	basic := &Plan{Name: "Basic", Price: decimal.NewFromInt(5), DisplayOrder: 2}
	premium := &Plan{Name: "Premium", Price: decimal.NewFromInt(15), DisplayOrder: 1}
	legacy := &Plan{Name: "Legacy", Price: decimal.NewFromInt(3), DisplayOrder: 2, IsActive: true}
	retired := &Plan{Name: "Retired", Price: decimal.NewFromInt(1)}

	for _, p := range []*Plan{basic, premium, legacy} {
		p.IsActive = true
		require.NoError(t, plans.Create(ctx, p))
	}
	require.NoError(t, plans.Create(ctx, retired))
	retired.IsActive = false
	require.NoError(t, plans.Update(ctx, retired))

	listed, err := plans.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, listed, 3)
	assert.Equal(t, "Premium", listed[0].Name)
	// equal display_order resolves by insertion order
	assert.Equal(t, "Basic", listed[1].Name)
	assert.Equal(t, "Legacy", listed[2].Name)
}

func TestGetByName(t *testing.T) {
	plans, _ := testManagers(t)
	ctx := context.Background()

	p := &Plan{Name: "Starter", Price: decimal.NewFromInt(5), IsActive: true}
	require.NoError(t, plans.Create(ctx, p))

	found, err := plans.GetByName(ctx, "Starter")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, p.ID, found.ID)

	missing, err := plans.GetByName(ctx, "Unknown")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestDeleteReferenced(t *testing.T) {
	plans, subscribers := testManagers(t)
	ctx := context.Background()

	p := &Plan{Name: "Sticky", Price: decimal.NewFromInt(9), IsActive: true}
	require.NoError(t, plans.Create(ctx, p))

	sub := &subscriber.Subscriber{
		PhoneNumber: "15553000001",
		PlanID:      &p.ID,
	}
	require.NoError(t, subscribers.Create(ctx, sub))

	assert.Equal(t, ErrReferenced, plans.Delete(ctx, p.ID))

	sub.PlanID = nil
	require.NoError(t, subscribers.Update(ctx, sub))
	require.NoError(t, plans.Delete(ctx, p.ID))

	assert.Equal(t, ErrNotFound, plans.Delete(ctx, p.ID))
}
