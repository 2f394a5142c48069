// Package audit keeps the append-only record of privileged operations.
package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	ActionForceCancel    = "booking.force_cancel"
	ActionQuotaAdjust    = "quota.adjust"
	ActionQuotaReset     = "quota.reset"
	ActionQuotaRollover  = "quota.rollover"
	ActionDisableClass   = "schedule.disable_class"
	ActionOverrideSave   = "schedule.override_save"
	ActionOverrideDelete = "schedule.override_delete"
	ActionClassToggle    = "schedule.class_toggle"
	ActionOneOffDelete   = "schedule.oneoff_delete"
	ActionMemberApprove  = "member.approve"
	ActionMemberBlock    = "member.block"
)

type Entry struct {
	ID        uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey"`
	ActorID   int64          `json:"actor_id" gorm:"not null;index"`
	Action    string         `json:"action" gorm:"type:varchar(64);not null;index"`
	Subject   string         `json:"subject" gorm:"type:varchar(120);not null"`
	Reason    string         `json:"reason,omitempty" gorm:"type:text"`
	Details   datatypes.JSON `json:"details,omitempty"`
	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime;index"`
}

func (Entry) TableName() string { return "audit_entries" }

func (e *Entry) BeforeCreate(_ *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// Append writes one entry. details is marshalled to JSON; nil is stored as null.
func (r *Repository) Append(ctx context.Context, actorID int64, action, subject, reason string, details any) (*Entry, error) {
	e := &Entry{ActorID: actorID, Action: action, Subject: subject, Reason: reason}
	if details != nil {
		raw, err := json.Marshal(details)
		if err != nil {
			return nil, err
		}
		e.Details = datatypes.JSON(raw)
	}
	if err := r.db.WithContext(ctx).Create(e).Error; err != nil {
		return nil, err
	}
	return e, nil
}

// List returns the newest entries first. action filters when non-empty.
func (r *Repository) List(ctx context.Context, action string, limit int) ([]Entry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	q := r.db.WithContext(ctx).Order("created_at DESC").Limit(limit)
	if action != "" {
		q = q.Where("action = ?", action)
	}
	var out []Entry
	err := q.Find(&out).Error
	return out, err
}
