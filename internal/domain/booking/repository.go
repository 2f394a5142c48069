package booking

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"sportclub/internal/database"
)

var (
	ErrNotFound           = errors.New("booking: not found")
	ErrDuplicateConfirmed = errors.New("booking: confirmed booking already exists")
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

func (r *Repository) Create(ctx context.Context, b *Booking) error {
	if err := r.db.WithContext(ctx).Create(b).Error; err != nil {
		if database.IsUniqueViolation(err) {
			return ErrDuplicateConfirmed
		}
		return err
	}
	return nil
}

func (r *Repository) GetByID(ctx context.Context, id int64) (*Booking, error) {
	var b Booking
	if err := r.db.WithContext(ctx).First(&b, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &b, nil
}

// LockByID reads a booking with a row lock held until the transaction ends.
func (r *Repository) LockByID(ctx context.Context, id int64) (*Booking, error) {
	var b Booking
	err := r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).First(&b, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &b, nil
}

// LockSlot serialises writers for one (occurrence, date). The lock row is
// created on first use.
func (r *Repository) LockSlot(ctx context.Context, key, date string) error {
	lock := SlotLock{OccurrenceKey: key, BookingDate: date}
	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&lock).Error; err != nil {
		return err
	}
	return r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("occurrence_key = ? AND booking_date = ?", key, date).
		First(&lock).Error
}

func (r *Repository) CountConfirmed(ctx context.Context, key, date string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&Booking{}).
		Where("occurrence_key = ? AND booking_date = ? AND status = ?", key, date, StatusConfirmed).
		Count(&n).Error
	return n, err
}

// FindConfirmed returns the user's confirmed booking for the slot, or nil.
func (r *Repository) FindConfirmed(ctx context.Context, userID int64, key, date string) (*Booking, error) {
	var out []Booking
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND occurrence_key = ? AND booking_date = ? AND status = ?", userID, key, date, StatusConfirmed).
		Limit(1).
		Find(&out).Error
	if err != nil || len(out) == 0 {
		return nil, err
	}
	return &out[0], nil
}

// ListConfirmedForSlot returns confirmed bookings, newest last.
func (r *Repository) ListConfirmedForSlot(ctx context.Context, key, date string) ([]Booking, error) {
	var out []Booking
	err := r.db.WithContext(ctx).
		Where("occurrence_key = ? AND booking_date = ? AND status = ?", key, date, StatusConfirmed).
		Order("id").
		Find(&out).Error
	return out, err
}

// ListConfirmedFrom returns confirmed bookings for an occurrence dated on or after from.
func (r *Repository) ListConfirmedFrom(ctx context.Context, key, from string) ([]Booking, error) {
	var out []Booking
	err := r.db.WithContext(ctx).
		Where("occurrence_key = ? AND booking_date >= ? AND status = ?", key, from, StatusConfirmed).
		Order("booking_date, id").
		Find(&out).Error
	return out, err
}

func (r *Repository) ExistsForOccurrence(ctx context.Context, key string) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&Booking{}).Where("occurrence_key = ?", key).Count(&n).Error
	return n > 0, err
}

func (r *Repository) ListForDate(ctx context.Context, date string) ([]Booking, error) {
	var out []Booking
	err := r.db.WithContext(ctx).
		Where("booking_date = ?", date).
		Order("occurrence_key, id").
		Find(&out).Error
	return out, err
}

// ListByUser returns a member's bookings in [from, to], most recent date first.
func (r *Repository) ListByUser(ctx context.Context, userID int64, from, to string) ([]Booking, error) {
	var out []Booking
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND booking_date >= ? AND booking_date <= ?", userID, from, to).
		Order("booking_date DESC, starts_at DESC").
		Find(&out).Error
	return out, err
}

type slotCount struct {
	OccurrenceKey string
	N             int
}

// ConfirmedCountsForDate maps occurrence key to confirmed count on date.
func (r *Repository) ConfirmedCountsForDate(ctx context.Context, date string) (map[string]int, error) {
	var rows []slotCount
	err := r.db.WithContext(ctx).Model(&Booking{}).
		Select("occurrence_key, COUNT(*) AS n").
		Where("booking_date = ? AND status = ?", date, StatusConfirmed).
		Group("occurrence_key").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]int, len(rows))
	for _, row := range rows {
		out[row.OccurrenceKey] = row.N
	}
	return out, nil
}

// Save writes every column of b.
func (r *Repository) Save(ctx context.Context, b *Booking) error {
	return r.db.WithContext(ctx).Save(b).Error
}
