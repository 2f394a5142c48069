// Package member holds the administrative membership workflow: approval,
// blocking and the audit trail view.
package member

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"gorm.io/gorm"

	"sportclub/internal/domain/audit"
	memberdomain "sportclub/internal/domain/member"
	"sportclub/internal/domain/quota"
	"sportclub/internal/logging"
	"sportclub/internal/pkg/apperr"
)

var (
	ErrAdminOnly      = fmt.Errorf("%w: admin only", apperr.ErrForbidden)
	ErrMemberNotFound = fmt.Errorf("%w: member", apperr.ErrNotFound)
	ErrSelfBlock      = apperr.Validation("admins cannot block themselves")
)

type Service struct {
	db       *gorm.DB
	members  *memberdomain.Repository
	quotas   *quota.Repository
	audit    *audit.Repository
	location *time.Location
	now      func() time.Time
}

func NewService(db *gorm.DB, quotas *quota.Repository, location *time.Location) *Service {
	if location == nil {
		location = time.UTC
	}
	return &Service{
		db:       db,
		members:  memberdomain.NewRepository(db),
		quotas:   quotas,
		audit:    audit.NewRepository(db),
		location: location,
		now:      time.Now,
	}
}

func (s *Service) ListPending(ctx context.Context, actor memberdomain.Actor) ([]memberdomain.Member, error) {
	if actor.Role != memberdomain.RoleAdmin {
		return nil, ErrAdminOnly
	}
	return s.members.ListByStatus(ctx, memberdomain.StatusPending)
}

// Approve activates a member and opens their quota for the current month.
// Approving an already approved member is a no-op apart from the audit row.
func (s *Service) Approve(ctx context.Context, actor memberdomain.Actor, id int64) (*memberdomain.Member, error) {
	return s.setStatus(ctx, actor, id, memberdomain.StatusApproved, audit.ActionMemberApprove, "")
}

// Block stops a member from logging in and reserving. Existing bookings are
// left for staff to handle.
func (s *Service) Block(ctx context.Context, actor memberdomain.Actor, id int64, reason string) (*memberdomain.Member, error) {
	if actor.UserID == id {
		return nil, ErrSelfBlock
	}
	return s.setStatus(ctx, actor, id, memberdomain.StatusBlocked, audit.ActionMemberBlock, reason)
}

func (s *Service) setStatus(ctx context.Context, actor memberdomain.Actor, id int64, status memberdomain.Status, action, reason string) (*memberdomain.Member, error) {
	if actor.Role != memberdomain.RoleAdmin {
		return nil, ErrAdminOnly
	}

	var out *memberdomain.Member
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		members := s.members.WithTx(tx)
		if err := members.SetStatus(ctx, id, status); err != nil {
			if errors.Is(err, memberdomain.ErrNotFound) {
				return ErrMemberNotFound
			}
			return err
		}
		if status == memberdomain.StatusApproved {
			quotas := s.quotas.WithTx(tx)
			if _, err := quotas.GetOrCreate(ctx, id, quota.PeriodOf(s.now().In(s.location)), quotas.DefaultMax()); err != nil {
				return err
			}
		}
		if _, err := s.audit.WithTx(tx).Append(ctx, actor.UserID, action, "member:"+strconv.FormatInt(id, 10), reason, nil); err != nil {
			return err
		}
		m, err := members.GetByID(ctx, id)
		if err != nil {
			return err
		}
		out = m
		return nil
	})
	if err != nil {
		return nil, err
	}

	logging.Ctx(ctx).Info().
		Int64("user_id", id).
		Str("status", string(status)).
		Int64("actor_id", actor.UserID).
		Msg("member status changed")
	return out, nil
}

// ListAudit returns the newest audit entries, optionally filtered by action.
func (s *Service) ListAudit(ctx context.Context, actor memberdomain.Actor, action string, limit int) ([]audit.Entry, error) {
	if actor.Role != memberdomain.RoleAdmin {
		return nil, ErrAdminOnly
	}
	return s.audit.List(ctx, action, limit)
}
