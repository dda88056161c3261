package discount

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func testManager(t *testing.T) *Manager {
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	// sqlite shared-cache connections race on writes; a single connection
	// serializes them without changing the semantics under test
	sqlDB.SetMaxOpenConns(1)

	m, err := NewManager(zap.NewNop(), db)
	require.NoError(t, err)
	return m
}

func TestManagerValidate(t *testing.T) {
	m := testManager(t)
	ctx := context.Background()

	code := &DiscountCode{
		Code:     "welcome10",
		Kind:     KindPercent,
		Value:    dec(t, "10"),
		IsActive: true,
	}
	require.NoError(t, m.Create(ctx, code))
	assert.Equal(t, "WELCOME10", code.Code)

	t.Run("lookup is case and whitespace insensitive", func(t *testing.T) {
		found, err := m.Validate(ctx, "  Welcome10 ", nil)
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, code.ID, found.ID)
	})

	t.Run("unknown code", func(t *testing.T) {
		found, err := m.Validate(ctx, "NOPE", nil)
		assert.Equal(t, ErrCodeNotFound, err)
		assert.Nil(t, found)
	})

	t.Run("failed validation still returns the code", func(t *testing.T) {
		inactive := &DiscountCode{
			Code:  "RETIRED",
			Kind:  KindFixed,
			Value: dec(t, "5"),
		}
		require.NoError(t, m.Create(ctx, inactive))
		// the is_active column defaults to true on insert
		require.NoError(t, m.db.Model(inactive).Update("is_active", false).Error)

		found, err := m.Validate(ctx, "retired", nil)
		assert.Equal(t, ErrCodeInactive, err)
		require.NotNil(t, found)
		assert.Equal(t, inactive.ID, found.ID)
	})
}

func TestManagerIncrementUsage(t *testing.T) {
	m := testManager(t)
	ctx := context.Background()

	t.Run("unlimited code keeps counting", func(t *testing.T) {
		code := &DiscountCode{
			Code:     "FOREVER",
			Kind:     KindPercent,
			Value:    dec(t, "5"),
			IsActive: true,
		}
		require.NoError(t, m.Create(ctx, code))

		for i := 0; i < 3; i++ {
			require.NoError(t, m.IncrementUsage(ctx, code.ID))
		}
		reloaded, err := m.GetByCode(ctx, "FOREVER")
		require.NoError(t, err)
		assert.Equal(t, 3, reloaded.CurrentUses)
	})

	t.Run("ceiling is enforced", func(t *testing.T) {
		maxUses := 2
		code := &DiscountCode{
			Code:     "TWICE",
			Kind:     KindPercent,
			Value:    dec(t, "5"),
			MaxUses:  &maxUses,
			IsActive: true,
		}
		require.NoError(t, m.Create(ctx, code))

		require.NoError(t, m.IncrementUsage(ctx, code.ID))
		require.NoError(t, m.IncrementUsage(ctx, code.ID))
		assert.Equal(t, ErrCodeExhausted, m.IncrementUsage(ctx, code.ID))

		reloaded, err := m.GetByCode(ctx, "TWICE")
		require.NoError(t, err)
		assert.Equal(t, 2, reloaded.CurrentUses)
	})

	t.Run("missing code", func(t *testing.T) {
		assert.Equal(t, ErrCodeNotFound, m.IncrementUsage(ctx, 99999))
	})
}

func TestManagerIncrementUsageConcurrent(t *testing.T) {
	m := testManager(t)
	ctx := context.Background()

	maxUses := 1
	code := &DiscountCode{
		Code:     "LASTONE",
		Kind:     KindFixed,
		Value:    dec(t, "1"),
		MaxUses:  &maxUses,
		IsActive: true,
	}
	require.NoError(t, m.Create(ctx, code))

	const contenders = 8
	results := make(chan error, contenders)
	var wg sync.WaitGroup
	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- m.IncrementUsage(ctx, code.ID)
		}()
	}
	wg.Wait()
	close(results)

	var succeeded, exhausted int
	for err := range results {
		switch err {
		case nil:
			succeeded++
		case ErrCodeExhausted:
			exhausted++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, contenders-1, exhausted)

	reloaded, err := m.GetByCode(ctx, "LASTONE")
	require.NoError(t, err)
	assert.Equal(t, 1, reloaded.CurrentUses)
}
