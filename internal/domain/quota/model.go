package quota

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Period is a calendar month in the club timezone.
type Period struct {
	Month int `json:"month"`
	Year  int `json:"year"`
}

func PeriodOf(t time.Time) Period {
	return Period{Month: int(t.Month()), Year: t.Year()}
}

func (p Period) Next() Period {
	if p.Month == 12 {
		return Period{Month: 1, Year: p.Year + 1}
	}
	return Period{Month: p.Month + 1, Year: p.Year}
}

func (p Period) Valid() bool {
	return p.Month >= 1 && p.Month <= 12 && p.Year > 0
}

// MonthlyQuota is the per-member, per-month class counter.
type MonthlyQuota struct {
	ID                int64     `json:"id" gorm:"primaryKey"`
	UserID            int64     `json:"user_id" gorm:"not null;uniqueIndex:idx_quota_user_period"`
	Month             int       `json:"month" gorm:"not null;uniqueIndex:idx_quota_user_period"`
	Year              int       `json:"year" gorm:"not null;uniqueIndex:idx_quota_user_period"`
	RemainingClasses  int       `json:"remaining_classes" gorm:"not null"`
	MaxMonthlyClasses int       `json:"max_monthly_classes" gorm:"not null"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

func (MonthlyQuota) TableName() string { return "monthly_quotas" }

func (q MonthlyQuota) Period() Period {
	return Period{Month: q.Month, Year: q.Year}
}

const (
	KindReserve  = "reserve"
	KindRestore  = "restore"
	KindPenalty  = "penalty"
	KindAdjust   = "adjust"
	KindReset    = "reset"
	KindRollover = "rollover"
)

// Entry is an append-only journal row written with every quota mutation.
type Entry struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	UserID    int64     `json:"user_id" gorm:"not null;index:idx_quota_entries_period"`
	Month     int       `json:"month" gorm:"not null;index:idx_quota_entries_period"`
	Year      int       `json:"year" gorm:"not null;index:idx_quota_entries_period"`
	Delta     int       `json:"delta" gorm:"not null"`
	Balance   int       `json:"balance" gorm:"not null"`
	Kind      string    `json:"kind" gorm:"type:varchar(16);not null;check:kind IN ('reserve','restore','penalty','adjust','reset','rollover')"`
	BookingID *int64    `json:"booking_id,omitempty" gorm:"index"`
	ActorID   *int64    `json:"actor_id,omitempty"`
	Note      string    `json:"note,omitempty" gorm:"type:text"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

func (Entry) TableName() string { return "quota_entries" }

func (e *Entry) BeforeCreate(_ *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
