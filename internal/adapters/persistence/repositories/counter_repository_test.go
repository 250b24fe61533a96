package repositories

import (
	"context"
	"sort"
	"sync"
	"testing"

	"ssc-carecard/internal/adapters/persistence/models"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestDB opens an in-memory sqlite database with the full schema.
// A single connection keeps in-memory sqlite consistent across goroutines.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, models.AutoMigrate(db))
	return db
}

func TestCounterRepository_Next(t *testing.T) {
	db := newTestDB(t)
	repo := NewCounterRepository(db)
	ctx := context.Background()

	t.Run("first call creates at one", func(t *testing.T) {
		value, err := repo.Next(ctx, "cards/2512/0101")
		require.NoError(t, err)
		assert.EqualValues(t, 1, value)
	})

	t.Run("subsequent calls increment", func(t *testing.T) {
		for want := int64(2); want <= 5; want++ {
			value, err := repo.Next(ctx, "cards/2512/0101")
			require.NoError(t, err)
			assert.Equal(t, want, value)
		}
	})

	t.Run("scopes are independent", func(t *testing.T) {
		value, err := repo.Next(ctx, "cards/2512/0202")
		require.NoError(t, err)
		assert.EqualValues(t, 1, value)

		value, err = repo.Next(ctx, "receipts/2025")
		require.NoError(t, err)
		assert.EqualValues(t, 1, value)
	})
}

func TestCounterRepository_Current(t *testing.T) {
	db := newTestDB(t)
	repo := NewCounterRepository(db)
	ctx := context.Background()

	t.Run("unseen scope reads zero", func(t *testing.T) {
		value, err := repo.Current(ctx, "receipts/2099")
		require.NoError(t, err)
		assert.Zero(t, value)
	})

	t.Run("reflects last issued value without advancing", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			_, err := repo.Next(ctx, "receipts/2025")
			require.NoError(t, err)
		}

		value, err := repo.Current(ctx, "receipts/2025")
		require.NoError(t, err)
		assert.EqualValues(t, 3, value)

		// Current is a pure read
		value, err = repo.Current(ctx, "receipts/2025")
		require.NoError(t, err)
		assert.EqualValues(t, 3, value)
	})
}

// Concurrent callers must each receive a distinct value with no gaps: the
// whole point of pushing the increment into the database.
func TestCounterRepository_ConcurrentNext(t *testing.T) {
	db := newTestDB(t)
	repo := NewCounterRepository(db)
	ctx := context.Background()

	const workers = 50

	var (
		mu     sync.Mutex
		values []int64
		wg     sync.WaitGroup
	)

	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			value, err := repo.Next(ctx, "cards/2512/0101")
			if err != nil {
				t.Error(err)
				return
			}
			mu.Lock()
			values = append(values, value)
			mu.Unlock()
		}()
	}
	wg.Wait()

	require.Len(t, values, workers)

	sort.Slice(values, func(i, j int) bool { return values[i] < values[j] })
	for i, value := range values {
		assert.EqualValues(t, i+1, value, "values must be distinct and gapless")
	}

	final, err := repo.Current(ctx, "cards/2512/0101")
	require.NoError(t, err)
	assert.EqualValues(t, workers, final)
}
