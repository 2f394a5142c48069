package booking

import (
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"sportclub/internal/database"
	"sportclub/internal/database/migrate"
	bookingdomain "sportclub/internal/domain/booking"
)

// These run the concurrent paths against Postgres, where row locks are real.
// SQLite serialises every transaction, so it cannot exercise them.
func newPostgresFixture(t *testing.T) *fixture {
	t.Helper()
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set")
	}
	db, err := database.Connect(dsn)
	require.NoError(t, err)
	require.NoError(t, migrate.Run(db))

	for _, m := range migrate.Models() {
		stmt := &gorm.Statement{DB: db}
		require.NoError(t, stmt.Parse(m))
		require.NoError(t, db.Exec("TRUNCATE TABLE "+stmt.Schema.Table+" RESTART IDENTITY CASCADE").Error)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return newFixtureOn(t, db)
}

func TestPostgresCapacityRaceAdmitsExactlyOne(t *testing.T) {
	f := newPostgresFixture(t)
	ref := f.mondayClass(t, 1)

	const n = 16
	users := make([]int64, n)
	for i := range users {
		users[i] = f.approvedMember(t)
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		ok, full int
	)
	for _, u := range users {
		wg.Add(1)
		go func(u int64) {
			defer wg.Done()
			_, err := f.engine.CreateReservation(f.ctx, u, mondayDate, ref)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case assert.ErrorIs(t, err, ErrClassFull):
				full++
			}
		}(u)
	}
	wg.Wait()

	assert.Equal(t, 1, ok)
	assert.Equal(t, n-1, full)

	var confirmed int64
	require.NoError(t, f.db.Model(&bookingdomain.Booking{}).Where("status = ?", bookingdomain.StatusConfirmed).Count(&confirmed).Error)
	assert.Equal(t, int64(1), confirmed)
}

func TestPostgresDeactivationLeavesNoBookingBehind(t *testing.T) {
	f := newPostgresFixture(t)
	ref := f.mondayClass(t, 50)

	const n = 16
	users := make([]int64, n)
	for i := range users {
		users[i] = f.approvedMember(t)
	}

	var wg sync.WaitGroup
	start := make(chan struct{})
	for _, u := range users {
		wg.Add(1)
		go func(u int64) {
			defer wg.Done()
			<-start
			_, _ = f.engine.CreateReservation(f.ctx, u, mondayDate, ref)
		}(u)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		<-start
		_, _, err := f.engine.ToggleRecurringClass(f.ctx, f.admin, ref.ID, false)
		assert.NoError(t, err)
	}()
	close(start)
	wg.Wait()

	var confirmed int64
	require.NoError(t, f.db.Model(&bookingdomain.Booking{}).
		Where("occurrence_key = ? AND status = ?", ref.String(), bookingdomain.StatusConfirmed).
		Count(&confirmed).Error)
	assert.Zero(t, confirmed)
	for _, u := range users {
		assert.Equal(t, 12, f.remaining(t, u), "user %d", u)
	}
}
