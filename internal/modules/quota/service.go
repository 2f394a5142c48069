package quota

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"gorm.io/gorm"

	"sportclub/internal/database"
	"sportclub/internal/domain/audit"
	"sportclub/internal/domain/member"
	"sportclub/internal/domain/quota"
	"sportclub/internal/logging"
	"sportclub/internal/metrics"
	"sportclub/internal/pkg/apperr"
	"sportclub/internal/realtime"
)

var (
	ErrQuotaWouldBeNegative = apperr.NewPolicy("quota_would_be_negative", "Adjustment would leave a negative balance")
	ErrAdminOnly            = fmt.Errorf("%w: admin only", apperr.ErrForbidden)
	ErrNotOwner             = fmt.Errorf("%w: quota belongs to another member", apperr.ErrForbidden)
	ErrMemberNotFound       = fmt.Errorf("%w: member", apperr.ErrNotFound)
)

// Service is the administrative face of the quota ledger. Reservation
// debits and credits go through the booking engine instead.
type Service struct {
	db        *gorm.DB
	quotas    *quota.Repository
	members   *member.Repository
	audit     *audit.Repository
	publisher realtime.Publisher
	location  *time.Location
	now       func() time.Time
}

func NewService(db *gorm.DB, quotas *quota.Repository, publisher realtime.Publisher, location *time.Location) *Service {
	if publisher == nil {
		publisher = realtime.Nop{}
	}
	if location == nil {
		location = time.UTC
	}
	return &Service{
		db:        db,
		quotas:    quotas,
		members:   member.NewRepository(db),
		audit:     audit.NewRepository(db),
		publisher: publisher,
		location:  location,
		now:       time.Now,
	}
}

// SetClock replaces time.Now. Tests only.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

func (s *Service) CurrentPeriod() quota.Period {
	return quota.PeriodOf(s.now().In(s.location))
}

// GetOrCreateMonthlyQuota returns the caller's row for the current month,
// creating it at the configured default.
func (s *Service) GetOrCreateMonthlyQuota(ctx context.Context, userID int64) (*quota.MonthlyQuota, error) {
	q, err := s.quotas.GetOrCreate(ctx, userID, s.CurrentPeriod(), s.quotas.DefaultMax())
	return q, classify(err)
}

// AdjustMonthlyQuota adds delta to the current month. A result below zero is
// refused rather than clamped.
func (s *Service) AdjustMonthlyQuota(ctx context.Context, actor member.Actor, userID int64, delta int, note string) (*quota.MonthlyQuota, error) {
	if actor.Role != member.RoleAdmin {
		return nil, ErrAdminOnly
	}
	if delta == 0 {
		return nil, apperr.Validation("delta must not be zero")
	}

	var out *quota.MonthlyQuota
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.requireMember(ctx, tx, userID); err != nil {
			return err
		}
		q, err := s.quotas.WithTx(tx).Apply(ctx, quota.Change{
			UserID:  userID,
			Period:  s.CurrentPeriod(),
			Delta:   delta,
			Kind:    quota.KindAdjust,
			ActorID: &actor.UserID,
			Note:    note,
		})
		if errors.Is(err, quota.ErrInsufficientClasses) {
			return ErrQuotaWouldBeNegative
		}
		if err != nil {
			return err
		}
		if _, err := s.audit.WithTx(tx).Append(ctx, actor.UserID, audit.ActionQuotaAdjust, memberSubject(userID), note, map[string]any{
			"delta":     delta,
			"remaining": q.RemainingClasses,
			"month":     q.Month,
			"year":      q.Year,
		}); err != nil {
			return err
		}
		out = q
		return nil
	})
	if err != nil {
		return nil, classify(err)
	}

	metrics.RecordQuotaMutation(quota.KindAdjust)
	logging.Ctx(ctx).Info().Int64("user_id", userID).Int("delta", delta).Int64("actor_id", actor.UserID).Msg("quota adjusted")
	s.publisher.Publish(realtime.ChangeEvent{Kind: realtime.KindQuota, UserID: userID})
	return out, nil
}

// ResetMonthlyQuota sets the current month's balance and maximum outright.
func (s *Service) ResetMonthlyQuota(ctx context.Context, actor member.Actor, userID int64, remaining, maxClasses int) (*quota.MonthlyQuota, error) {
	if actor.Role != member.RoleAdmin {
		return nil, ErrAdminOnly
	}
	if remaining < 0 || maxClasses < 0 {
		return nil, apperr.Validation("remaining and max must not be negative")
	}

	var out *quota.MonthlyQuota
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.requireMember(ctx, tx, userID); err != nil {
			return err
		}
		q, err := s.quotas.WithTx(tx).Set(ctx, userID, s.CurrentPeriod(), remaining, maxClasses, quota.KindReset, &actor.UserID, "")
		if err != nil {
			return err
		}
		if _, err := s.audit.WithTx(tx).Append(ctx, actor.UserID, audit.ActionQuotaReset, memberSubject(userID), "", map[string]any{
			"remaining": remaining,
			"max":       maxClasses,
			"month":     q.Month,
			"year":      q.Year,
		}); err != nil {
			return err
		}
		out = q
		return nil
	})
	if err != nil {
		return nil, classify(err)
	}

	metrics.RecordQuotaMutation(quota.KindReset)
	logging.Ctx(ctx).Info().Int64("user_id", userID).Int("remaining", remaining).Int("max", maxClasses).Int64("actor_id", actor.UserID).Msg("quota reset")
	s.publisher.Publish(realtime.ChangeEvent{Kind: realtime.KindQuota, UserID: userID})
	return out, nil
}

// RolloverResult summarises one AdvanceAllToNextMonth run.
type RolloverResult struct {
	Period  quota.Period `json:"period"`
	Members int          `json:"members"`
	Created int          `json:"created"`
}

// AdvanceAllToNextMonth opens next month's row for every approved member at
// their current maximum. Unused balance is not carried over. Rows that
// already exist are left alone, so running it twice is harmless. actorID is
// zero when invoked by the scheduler.
func (s *Service) AdvanceAllToNextMonth(ctx context.Context, actorID int64) (*RolloverResult, error) {
	current := s.CurrentPeriod()
	next := current.Next()
	res := &RolloverResult{Period: next}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ids, err := s.members.WithTx(tx).ListApprovedIDs(ctx)
		if err != nil {
			return err
		}
		rows, err := s.quotas.WithTx(tx).ListForPeriod(ctx, current)
		if err != nil {
			return err
		}
		maxByUser := make(map[int64]int, len(rows))
		for _, q := range rows {
			maxByUser[q.UserID] = q.MaxMonthlyClasses
		}

		repo := s.quotas.WithTx(tx)
		for _, id := range ids {
			maxClasses, ok := maxByUser[id]
			if !ok {
				maxClasses = repo.DefaultMax()
			}
			created, err := repo.CreateIfAbsent(ctx, id, next, maxClasses)
			if err != nil {
				return err
			}
			if !created {
				continue
			}
			res.Created++
			q := &quota.MonthlyQuota{UserID: id, Month: next.Month, Year: next.Year, RemainingClasses: maxClasses, MaxMonthlyClasses: maxClasses}
			var actor *int64
			if actorID > 0 {
				actor = &actorID
			}
			if err := repo.AppendEntry(ctx, q, maxClasses, quota.KindRollover, nil, actor, ""); err != nil {
				return err
			}
		}
		res.Members = len(ids)

		_, err = s.audit.WithTx(tx).Append(ctx, actorID, audit.ActionQuotaRollover, fmt.Sprintf("period:%d-%02d", next.Year, next.Month), "", res)
		return err
	})
	if err != nil {
		return nil, classify(err)
	}

	for i := 0; i < res.Created; i++ {
		metrics.RecordQuotaMutation(quota.KindRollover)
	}
	logging.Ctx(ctx).Info().
		Int("year", next.Year).
		Int("month", next.Month).
		Int("members", res.Members).
		Int("created", res.Created).
		Int64("actor_id", actorID).
		Msg("monthly quota rollover")
	s.publisher.Publish(realtime.ChangeEvent{Kind: realtime.KindQuota})
	return res, nil
}

// ListEntries returns a member's journal for one period. Members see their
// own; admins see anyone's.
func (s *Service) ListEntries(ctx context.Context, actor member.Actor, userID int64, p quota.Period) ([]quota.Entry, error) {
	if actor.UserID != userID && actor.Role != member.RoleAdmin {
		return nil, ErrNotOwner
	}
	if !p.Valid() {
		return nil, apperr.Validation("invalid period %d-%d", p.Year, p.Month)
	}
	out, err := s.quotas.Entries(ctx, userID, p)
	return out, classify(err)
}

func (s *Service) requireMember(ctx context.Context, tx *gorm.DB, userID int64) error {
	if _, err := s.members.WithTx(tx).GetByID(ctx, userID); err != nil {
		if errors.Is(err, member.ErrNotFound) {
			return ErrMemberNotFound
		}
		return err
	}
	return nil
}

func memberSubject(id int64) string {
	return "member:" + strconv.FormatInt(id, 10)
}

func classify(err error) error {
	if err != nil && database.IsTransient(err) {
		return apperr.Transient(err)
	}
	return err
}
