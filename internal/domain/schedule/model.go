package schedule

import "time"

// RecurringClass is a weekly template. Rows are never hard-deleted while
// bookings reference them; staff toggle Active instead.
type RecurringClass struct {
	ID          int64     `json:"id" gorm:"primaryKey"`
	Title       string    `json:"title" gorm:"type:varchar(120);not null"`
	Instructor  *string   `json:"instructor,omitempty" gorm:"type:varchar(120)"`
	DayOfWeek   int       `json:"day_of_week" gorm:"not null;index:idx_recurring_day_active"`
	StartTime   string    `json:"start_time" gorm:"type:varchar(5);not null"`
	EndTime     string    `json:"end_time" gorm:"type:varchar(5);not null"`
	MaxCapacity int       `json:"max_capacity" gorm:"not null"`
	Active      bool      `json:"active" gorm:"not null;index:idx_recurring_day_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (RecurringClass) TableName() string { return "recurring_classes" }

// DateOverride modifies or cancels one occurrence of a RecurringClass.
// Nil fields fall back to the template. At most one per (class, date).
type DateOverride struct {
	ID                      int64     `json:"id" gorm:"primaryKey"`
	RecurringClassID        int64     `json:"recurring_class_id" gorm:"not null;uniqueIndex:idx_override_class_date"`
	Date                    string    `json:"date" gorm:"column:class_date;type:varchar(10);not null;uniqueIndex:idx_override_class_date;index"`
	StartTime               *string   `json:"start_time,omitempty" gorm:"type:varchar(5)"`
	EndTime                 *string   `json:"end_time,omitempty" gorm:"type:varchar(5)"`
	Instructor              *string   `json:"instructor,omitempty" gorm:"type:varchar(120)"`
	MaxCapacity             *int      `json:"max_capacity,omitempty"`
	IsCancelled             bool      `json:"is_cancelled" gorm:"not null"`
	MigrateExistingBookings bool      `json:"migrate_existing_bookings" gorm:"not null"`
	Notes                   string    `json:"notes,omitempty" gorm:"type:text"`
	CreatedBy               int64     `json:"created_by"`
	CreatedAt               time.Time `json:"created_at"`
	UpdatedAt               time.Time `json:"updated_at"`
}

func (DateOverride) TableName() string { return "date_overrides" }

// InstructorAssignment replaces only the instructor of a RecurringClass,
// either for every date (Date == nil) or for a single date.
type InstructorAssignment struct {
	ID               int64     `json:"id" gorm:"primaryKey"`
	RecurringClassID int64     `json:"recurring_class_id" gorm:"not null;uniqueIndex:idx_assignment_class_date,where:class_date IS NOT NULL;uniqueIndex:idx_assignment_standing,where:class_date IS NULL"`
	Date             *string   `json:"date,omitempty" gorm:"column:class_date;type:varchar(10);uniqueIndex:idx_assignment_class_date,where:class_date IS NOT NULL"`
	Instructor       string    `json:"instructor" gorm:"type:varchar(120);not null"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func (InstructorAssignment) TableName() string { return "instructor_assignments" }

// OneOffOccurrence is a single-date class with no template behind it.
type OneOffOccurrence struct {
	ID          int64     `json:"id" gorm:"primaryKey"`
	Title       string    `json:"title" gorm:"type:varchar(120);not null"`
	Instructor  string    `json:"instructor" gorm:"type:varchar(120)"`
	Date        string    `json:"date" gorm:"column:class_date;type:varchar(10);not null;index"`
	StartTime   string    `json:"start_time" gorm:"type:varchar(5);not null"`
	EndTime     string    `json:"end_time" gorm:"type:varchar(5);not null"`
	MaxCapacity int       `json:"max_capacity" gorm:"not null"`
	Enabled     bool      `json:"enabled" gorm:"not null"`
	Notes       string    `json:"notes,omitempty" gorm:"type:text"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (OneOffOccurrence) TableName() string { return "one_off_occurrences" }

// EffectiveOccurrence is what a member can actually book on a date. It is
// derived on every read and never stored.
type EffectiveOccurrence struct {
	Ref         OccurrenceRef `json:"ref"`
	Date        string        `json:"date"`
	Title       string        `json:"title"`
	Instructor  string        `json:"instructor"`
	StartTime   string        `json:"start_time"`
	EndTime     string        `json:"end_time"`
	MaxCapacity int           `json:"max_capacity"`
	IsSpecial   bool          `json:"is_special"`
	IsCancelled bool          `json:"is_cancelled"`
	Notes       string        `json:"notes,omitempty"`
}
