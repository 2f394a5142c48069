package quota

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrNotFound            = errors.New("quota: not found")
	ErrInsufficientClasses = errors.New("quota: no classes remaining")
	ErrWouldBeNegative     = errors.New("quota: balance would be negative")
	ErrInvalidAmount       = errors.New("quota: invalid amount")
)

// Repository owns MonthlyQuota rows and their journal. Mutations must run
// inside a transaction (WithTx) so the row lock covers read and write.
type Repository struct {
	db         *gorm.DB
	defaultMax int
}

func NewRepository(db *gorm.DB, defaultMax int) *Repository {
	return &Repository{db: db, defaultMax: defaultMax}
}

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx, defaultMax: r.defaultMax}
}

func (r *Repository) DefaultMax() int {
	return r.defaultMax
}

func (r *Repository) Get(ctx context.Context, userID int64, p Period) (*MonthlyQuota, error) {
	var q MonthlyQuota
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND month = ? AND year = ?", userID, p.Month, p.Year).
		First(&q).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &q, nil
}

// GetOrCreate inserts the period row at maxClasses if absent and returns the
// stored row. Concurrent callers converge on one row.
func (r *Repository) GetOrCreate(ctx context.Context, userID int64, p Period, maxClasses int) (*MonthlyQuota, error) {
	if q, err := r.Get(ctx, userID, p); err == nil {
		return q, nil
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	if err := r.insertIfAbsent(ctx, userID, p, maxClasses); err != nil {
		return nil, err
	}
	return r.Get(ctx, userID, p)
}

// Lock returns the period row with a write lock, creating it first if needed.
func (r *Repository) Lock(ctx context.Context, userID int64, p Period) (*MonthlyQuota, error) {
	if err := r.insertIfAbsent(ctx, userID, p, r.defaultMax); err != nil {
		return nil, err
	}
	var q MonthlyQuota
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ? AND month = ? AND year = ?", userID, p.Month, p.Year).
		First(&q).Error
	if err != nil {
		return nil, err
	}
	return &q, nil
}

func (r *Repository) insertIfAbsent(ctx context.Context, userID int64, p Period, maxClasses int) error {
	_, err := r.CreateIfAbsent(ctx, userID, p, maxClasses)
	return err
}

// CreateIfAbsent inserts a full period row unless one exists and reports
// whether this call created it.
func (r *Repository) CreateIfAbsent(ctx context.Context, userID int64, p Period, maxClasses int) (bool, error) {
	row := MonthlyQuota{
		UserID:            userID,
		Month:             p.Month,
		Year:              p.Year,
		RemainingClasses:  maxClasses,
		MaxMonthlyClasses: maxClasses,
	}
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&row)
	if res.Error != nil {
		return false, fmt.Errorf("insert quota: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// Change describes one mutation of a period balance.
type Change struct {
	UserID    int64
	Period    Period
	Delta     int
	Kind      string
	BookingID *int64
	ActorID   *int64
	Note      string
	// AllowNegative lets a penalty push the balance into debt.
	AllowNegative bool
}

// Apply locks the period row, applies the delta and journals it. A debit
// that would go below zero fails with ErrInsufficientClasses unless
// AllowNegative is set.
func (r *Repository) Apply(ctx context.Context, c Change) (*MonthlyQuota, error) {
	q, err := r.Lock(ctx, c.UserID, c.Period)
	if err != nil {
		return nil, err
	}
	next := q.RemainingClasses + c.Delta
	if c.Delta < 0 && next < 0 && !c.AllowNegative {
		return nil, ErrInsufficientClasses
	}
	q.RemainingClasses = next
	if err := r.db.WithContext(ctx).Model(&MonthlyQuota{}).
		Where("id = ?", q.ID).
		Update("remaining_classes", q.RemainingClasses).Error; err != nil {
		return nil, err
	}
	if err := r.AppendEntry(ctx, q, c.Delta, c.Kind, c.BookingID, c.ActorID, c.Note); err != nil {
		return nil, err
	}
	return q, nil
}

// Set overwrites a period's balance and maximum.
func (r *Repository) Set(ctx context.Context, userID int64, p Period, remaining, maxClasses int, kind string, actorID *int64, note string) (*MonthlyQuota, error) {
	q, err := r.Lock(ctx, userID, p)
	if err != nil {
		return nil, err
	}
	delta := remaining - q.RemainingClasses
	q.RemainingClasses = remaining
	q.MaxMonthlyClasses = maxClasses
	if err := r.db.WithContext(ctx).Model(&MonthlyQuota{}).
		Where("id = ?", q.ID).
		Updates(map[string]any{
			"remaining_classes":   remaining,
			"max_monthly_classes": maxClasses,
		}).Error; err != nil {
		return nil, err
	}
	if err := r.AppendEntry(ctx, q, delta, kind, nil, actorID, note); err != nil {
		return nil, err
	}
	return q, nil
}

func (r *Repository) AppendEntry(ctx context.Context, q *MonthlyQuota, delta int, kind string, bookingID, actorID *int64, note string) error {
	e := Entry{
		UserID:    q.UserID,
		Month:     q.Month,
		Year:      q.Year,
		Delta:     delta,
		Balance:   q.RemainingClasses,
		Kind:      kind,
		BookingID: bookingID,
		ActorID:   actorID,
		Note:      note,
	}
	return r.db.WithContext(ctx).Create(&e).Error
}

func (r *Repository) Entries(ctx context.Context, userID int64, p Period) ([]Entry, error) {
	var out []Entry
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND month = ? AND year = ?", userID, p.Month, p.Year).
		Order("created_at, id").
		Find(&out).Error
	return out, err
}

func (r *Repository) ListForPeriod(ctx context.Context, p Period) ([]MonthlyQuota, error) {
	var out []MonthlyQuota
	err := r.db.WithContext(ctx).
		Where("month = ? AND year = ?", p.Month, p.Year).
		Order("user_id").
		Find(&out).Error
	return out, err
}
