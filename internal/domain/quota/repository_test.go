package quota

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"sportclub/internal/database"
)

func setupDB(t *testing.T, name string) *gorm.DB {
	t.Helper()
	db, err := database.OpenInMemory(name)
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&MonthlyQuota{}, &Entry{}))
	return db
}

func TestPeriodNext(t *testing.T) {
	assert.Equal(t, Period{Month: 11, Year: 2026}, Period{Month: 10, Year: 2026}.Next())
	assert.Equal(t, Period{Month: 1, Year: 2027}, Period{Month: 12, Year: 2026}.Next())
	assert.False(t, Period{Month: 13, Year: 2026}.Valid())
}

func TestGetOrCreateIsIdempotent(t *testing.T) {
	db := setupDB(t, "quota_get_or_create")
	repo := NewRepository(db, 12)
	ctx := context.Background()
	p := Period{Month: 10, Year: 2026}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			q, err := repo.GetOrCreate(ctx, 7, p, 12)
			assert.NoError(t, err)
			if q != nil {
				assert.Equal(t, 12, q.RemainingClasses)
			}
		}()
	}
	wg.Wait()

	var n int64
	require.NoError(t, db.Model(&MonthlyQuota{}).Where("user_id = ?", 7).Count(&n).Error)
	assert.Equal(t, int64(1), n)
}

func TestApplyRejectsOverdraftUnlessAllowed(t *testing.T) {
	db := setupDB(t, "quota_apply")
	repo := NewRepository(db, 1)
	ctx := context.Background()
	p := Period{Month: 10, Year: 2026}

	err := db.Transaction(func(tx *gorm.DB) error {
		q, err := repo.WithTx(tx).Apply(ctx, Change{UserID: 3, Period: p, Delta: -1, Kind: KindReserve})
		require.NoError(t, err)
		assert.Equal(t, 0, q.RemainingClasses)
		return nil
	})
	require.NoError(t, err)

	err = db.Transaction(func(tx *gorm.DB) error {
		_, err := repo.WithTx(tx).Apply(ctx, Change{UserID: 3, Period: p, Delta: -1, Kind: KindReserve})
		return err
	})
	assert.ErrorIs(t, err, ErrInsufficientClasses)

	err = db.Transaction(func(tx *gorm.DB) error {
		q, err := repo.WithTx(tx).Apply(ctx, Change{UserID: 3, Period: p, Delta: -1, Kind: KindPenalty, AllowNegative: true})
		require.NoError(t, err)
		assert.Equal(t, -1, q.RemainingClasses)
		return nil
	})
	require.NoError(t, err)

	entries, err := repo.Entries(ctx, 3, p)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	kinds := []string{entries[0].Kind, entries[1].Kind}
	assert.ElementsMatch(t, []string{KindReserve, KindPenalty}, kinds)
}

func TestSetJournalsDelta(t *testing.T) {
	db := setupDB(t, "quota_set")
	repo := NewRepository(db, 12)
	ctx := context.Background()
	p := Period{Month: 10, Year: 2026}
	actor := int64(1)

	var q *MonthlyQuota
	err := db.Transaction(func(tx *gorm.DB) error {
		var err error
		q, err = repo.WithTx(tx).Set(ctx, 9, p, 4, 8, KindReset, &actor, "trial month")
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, 4, q.RemainingClasses)
	assert.Equal(t, 8, q.MaxMonthlyClasses)

	entries, err := repo.Entries(ctx, 9, p)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, -8, entries[0].Delta)
	assert.Equal(t, "trial month", entries[0].Note)
}
