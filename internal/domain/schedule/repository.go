package schedule

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrNotFound = errors.New("schedule: not found")

// Repository reads and writes the three schedule sources. Bind it to a
// transaction with WithTx so reads happen under the caller's locks.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

func (r *Repository) DB() *gorm.DB {
	return r.db
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// ---- recurring templates ----

func (r *Repository) CreateClass(ctx context.Context, c *RecurringClass) error {
	return r.db.WithContext(ctx).Create(c).Error
}

func (r *Repository) GetClass(ctx context.Context, id int64) (*RecurringClass, error) {
	var c RecurringClass
	if err := r.db.WithContext(ctx).First(&c, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

// LockClass takes a row lock on the template. Writers that change whether
// a class runs use FOR UPDATE; reservations use FOR SHARE so they queue
// behind a deactivation but not behind each other.
func (r *Repository) LockClass(ctx context.Context, id int64, exclusive bool) (*RecurringClass, error) {
	strength := "SHARE"
	if exclusive {
		strength = "UPDATE"
	}
	var c RecurringClass
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: strength}).
		First(&c, id).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

func (r *Repository) ListClasses(ctx context.Context, includeInactive bool) ([]RecurringClass, error) {
	q := r.db.WithContext(ctx).Order("day_of_week, start_time, title")
	if !includeInactive {
		q = q.Where("active = ?", true)
	}
	var out []RecurringClass
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Repository) ActiveClassesForWeekday(ctx context.Context, dow int) ([]RecurringClass, error) {
	var out []RecurringClass
	err := r.db.WithContext(ctx).
		Where("active = ? AND day_of_week = ?", true, dow).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Repository) SetClassActive(ctx context.Context, id int64, active bool) error {
	res := r.db.WithContext(ctx).Model(&RecurringClass{}).Where("id = ?", id).Update("active", active)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ---- date overrides ----

func (r *Repository) GetOverride(ctx context.Context, classID int64, date string) (*DateOverride, error) {
	var o DateOverride
	err := r.db.WithContext(ctx).
		Where("recurring_class_id = ? AND class_date = ?", classID, date).
		First(&o).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &o, nil
}

func (r *Repository) OverridesInRange(ctx context.Context, from, to string) ([]DateOverride, error) {
	var out []DateOverride
	err := r.db.WithContext(ctx).
		Where("class_date >= ? AND class_date <= ?", from, to).
		Order("class_date, recurring_class_id").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SaveOverride inserts or replaces the override for (class, date).
func (r *Repository) SaveOverride(ctx context.Context, o *DateOverride) error {
	existing, err := r.GetOverride(ctx, o.RecurringClassID, o.Date)
	switch {
	case errors.Is(err, ErrNotFound):
		return r.db.WithContext(ctx).Create(o).Error
	case err != nil:
		return err
	}
	o.ID = existing.ID
	o.CreatedAt = existing.CreatedAt
	return r.db.WithContext(ctx).Save(o).Error
}

func (r *Repository) DeleteOverride(ctx context.Context, classID int64, date string) error {
	res := r.db.WithContext(ctx).
		Where("recurring_class_id = ? AND class_date = ?", classID, date).
		Delete(&DateOverride{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ---- instructor assignments ----

// AssignmentsInRange returns the dated assignments in [from, to] plus every
// standing (undated) assignment.
func (r *Repository) AssignmentsInRange(ctx context.Context, from, to string) ([]InstructorAssignment, error) {
	var out []InstructorAssignment
	err := r.db.WithContext(ctx).
		Where("class_date IS NULL OR (class_date >= ? AND class_date <= ?)", from, to).
		Order("recurring_class_id, class_date, id").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SaveAssignment keeps one assignment per (class, date|null). Concurrent
// saves for the same key resolve on the unique index rather than a read.
func (r *Repository) SaveAssignment(ctx context.Context, a *InstructorAssignment) error {
	target := "class_date IS NOT NULL"
	cols := []clause.Column{{Name: "recurring_class_id"}, {Name: "class_date"}}
	if a.Date == nil {
		target = "class_date IS NULL"
		cols = []clause.Column{{Name: "recurring_class_id"}}
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:     cols,
		TargetWhere: clause.Where{Exprs: []clause.Expression{clause.Expr{SQL: target}}},
		DoUpdates:   clause.AssignmentColumns([]string{"instructor", "updated_at"}),
	}).Create(a).Error
	if err != nil {
		return err
	}

	q := r.db.WithContext(ctx).Where("recurring_class_id = ?", a.RecurringClassID)
	if a.Date == nil {
		q = q.Where("class_date IS NULL")
	} else {
		q = q.Where("class_date = ?", *a.Date)
	}
	var saved InstructorAssignment
	if err := q.First(&saved).Error; err != nil {
		return err
	}
	*a = saved
	return nil
}

func (r *Repository) DeleteAssignment(ctx context.Context, classID int64, date *string) error {
	q := r.db.WithContext(ctx).Where("recurring_class_id = ?", classID)
	if date == nil {
		q = q.Where("class_date IS NULL")
	} else {
		q = q.Where("class_date = ?", *date)
	}
	res := q.Delete(&InstructorAssignment{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ---- one-off occurrences ----

func (r *Repository) CreateOneOff(ctx context.Context, o *OneOffOccurrence) error {
	return r.db.WithContext(ctx).Create(o).Error
}

func (r *Repository) GetOneOff(ctx context.Context, id int64) (*OneOffOccurrence, error) {
	var o OneOffOccurrence
	if err := r.db.WithContext(ctx).First(&o, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &o, nil
}

func (r *Repository) OneOffsInRange(ctx context.Context, from, to string, enabledOnly bool) ([]OneOffOccurrence, error) {
	q := r.db.WithContext(ctx).
		Where("class_date >= ? AND class_date <= ?", from, to).
		Order("class_date, start_time, title")
	if enabledOnly {
		q = q.Where("enabled = ?", true)
	}
	var out []OneOffOccurrence
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Repository) SetOneOffEnabled(ctx context.Context, id int64, enabled bool) error {
	res := r.db.WithContext(ctx).Model(&OneOffOccurrence{}).Where("id = ?", id).Update("enabled", enabled)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) DeleteOneOff(ctx context.Context, id int64) error {
	res := r.db.WithContext(ctx).Delete(&OneOffOccurrence{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
