package booking

import "time"

type Status string

const (
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
)

// Booking is one member's seat in one occurrence. It moves confirmed ->
// cancelled only; re-booking inserts a new row.
type Booking struct {
	ID          int64  `json:"id" gorm:"primaryKey"`
	UserID      int64  `json:"user_id" gorm:"not null;index;uniqueIndex:idx_bookings_one_confirmed,where:status = 'confirmed'"`
	BookingDate string `json:"booking_date" gorm:"type:varchar(10);not null;index:idx_bookings_slot;uniqueIndex:idx_bookings_one_confirmed,where:status = 'confirmed'"`

	// Exactly one of these is set; OccurrenceKey mirrors it as "kind:id".
	RecurringClassID   *int64 `json:"recurring_class_id,omitempty" gorm:"index"`
	OneOffOccurrenceID *int64 `json:"one_off_occurrence_id,omitempty" gorm:"index"`
	OccurrenceKey      string `json:"occurrence_ref" gorm:"type:varchar(40);not null;index:idx_bookings_slot;uniqueIndex:idx_bookings_one_confirmed,where:status = 'confirmed'"`

	Status   Status `json:"status" gorm:"type:varchar(16);not null;index:idx_bookings_slot"`
	Attended *bool  `json:"attended"`

	// StartsAt snapshots the occurrence start used for cancellation when the
	// occurrence no longer resolves.
	StartsAt time.Time `json:"starts_at"`

	// QuotaMonth/QuotaYear identify the ledger period debited at creation.
	QuotaMonth     int  `json:"quota_month"`
	QuotaYear      int  `json:"quota_year"`
	PenaltyApplied bool `json:"penalty_applied" gorm:"not null"`

	CancelledAt        *time.Time `json:"cancelled_at,omitempty"`
	CancelledBy        *int64     `json:"cancelled_by,omitempty"`
	CancellationReason string     `json:"cancellation_reason,omitempty" gorm:"type:text"`

	AttendanceMarkedAt *time.Time `json:"attendance_marked_at,omitempty"`
	AttendanceMarkedBy *int64     `json:"attendance_marked_by,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Booking) TableName() string { return "bookings" }

// SlotLock is the row a reservation transaction locks for (occurrence, date)
// before counting seats.
type SlotLock struct {
	OccurrenceKey string    `gorm:"type:varchar(40);primaryKey"`
	BookingDate   string    `gorm:"type:varchar(10);primaryKey"`
	CreatedAt     time.Time
}

func (SlotLock) TableName() string { return "booking_slot_locks" }
