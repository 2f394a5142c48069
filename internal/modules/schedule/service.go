package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"gorm.io/gorm"

	"sportclub/internal/database"
	"sportclub/internal/domain/member"
	"sportclub/internal/domain/schedule"
	"sportclub/internal/logging"
	"sportclub/internal/pkg/apperr"
	"sportclub/internal/pkg/caltime"
	"sportclub/internal/realtime"
)

var (
	ErrStaffOnly     = fmt.Errorf("%w: staff only", apperr.ErrForbidden)
	ErrClassNotFound = fmt.Errorf("%w: recurring class", apperr.ErrNotFound)
)

// Service exposes schedule reads and the staff mutations that never touch
// bookings. Mutations that can affect bookings live on the booking engine.
type Service struct {
	repo         *schedule.Repository
	resolver     *schedule.Resolver
	publisher    realtime.Publisher
	maxRangeDays int
	// retry builds the back-off policy for read-only resolution.
	retry func() backoff.BackOff
}

func NewService(repo *schedule.Repository, publisher realtime.Publisher, maxRangeDays int) *Service {
	if publisher == nil {
		publisher = realtime.Nop{}
	}
	return &Service{
		repo:         repo,
		resolver:     schedule.NewResolver(repo),
		publisher:    publisher,
		maxRangeDays: maxRangeDays,
		retry: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 50 * time.Millisecond
			b.MaxElapsedTime = 2 * time.Second
			return backoff.WithMaxRetries(b, 3)
		},
	}
}

// ResolveSchedule returns the effective occurrences for one date. Transient
// read failures are retried; resolution has no side effects.
func (s *Service) ResolveSchedule(ctx context.Context, date string) ([]schedule.EffectiveOccurrence, error) {
	if _, err := caltime.ParseDate(date, time.UTC); err != nil {
		return nil, apperr.Validation("%v", err)
	}
	return withRetry(ctx, s.retry(), func() ([]schedule.EffectiveOccurrence, error) {
		return s.resolver.ForDate(ctx, date)
	})
}

// ResolveScheduleRange resolves every date in [start, end].
func (s *Service) ResolveScheduleRange(ctx context.Context, start, end string) ([]schedule.EffectiveOccurrence, error) {
	dates, err := caltime.Dates(start, end)
	if err != nil {
		return nil, apperr.Validation("%v", err)
	}
	if len(dates) > s.maxRangeDays {
		return nil, apperr.Validation("range spans %d days, at most %d allowed", len(dates), s.maxRangeDays)
	}
	return withRetry(ctx, s.retry(), func() ([]schedule.EffectiveOccurrence, error) {
		return s.resolver.ForRange(ctx, start, end)
	})
}

func withRetry[T any](ctx context.Context, b backoff.BackOff, op func() (T, error)) (T, error) {
	attempt := 0
	out, err := backoff.RetryWithData(func() (T, error) {
		attempt++
		v, err := op()
		if err != nil && !database.IsTransient(err) {
			return v, backoff.Permanent(err)
		}
		if err != nil {
			logging.Ctx(ctx).Warn().Err(err).Int("attempt", attempt).Msg("schedule read failed, retrying")
		}
		return v, err
	}, backoff.WithContext(b, ctx))
	if err != nil && database.IsTransient(err) {
		return out, apperr.Transient(err)
	}
	return out, err
}

type ClassInput struct {
	Title       string
	Instructor  *string
	DayOfWeek   int
	StartTime   string
	EndTime     string
	MaxCapacity int
}

func (s *Service) CreateRecurringClass(ctx context.Context, actor member.Actor, in ClassInput) (*schedule.RecurringClass, error) {
	if !actor.Role.IsStaff() {
		return nil, ErrStaffOnly
	}
	if in.DayOfWeek < 0 || in.DayOfWeek > 6 {
		return nil, apperr.Validation("day_of_week must be 0-6")
	}
	if !caltime.ValidRange(in.StartTime, in.EndTime) {
		return nil, apperr.Validation("invalid time range %s-%s", in.StartTime, in.EndTime)
	}
	if in.MaxCapacity < 1 {
		return nil, apperr.Validation("max capacity must be at least 1")
	}
	c := &schedule.RecurringClass{
		Title:       in.Title,
		Instructor:  in.Instructor,
		DayOfWeek:   in.DayOfWeek,
		StartTime:   in.StartTime,
		EndTime:     in.EndTime,
		MaxCapacity: in.MaxCapacity,
		Active:      true,
	}
	if err := s.repo.CreateClass(ctx, c); err != nil {
		return nil, classify(err)
	}
	s.publisher.Publish(realtime.ChangeEvent{Kind: realtime.KindSchedule, Ref: schedule.RecurringRef(c.ID).String()})
	return c, nil
}

func (s *Service) ListRecurringClasses(ctx context.Context, includeInactive bool) ([]schedule.RecurringClass, error) {
	out, err := s.repo.ListClasses(ctx, includeInactive)
	return out, classify(err)
}

type OneOffInput struct {
	Title       string
	Instructor  string
	Date        string
	StartTime   string
	EndTime     string
	MaxCapacity int
	Notes       string
}

func (s *Service) CreateOneOffOccurrence(ctx context.Context, actor member.Actor, in OneOffInput) (*schedule.OneOffOccurrence, error) {
	if !actor.Role.IsStaff() {
		return nil, ErrStaffOnly
	}
	if _, err := caltime.ParseDate(in.Date, time.UTC); err != nil {
		return nil, apperr.Validation("%v", err)
	}
	if !caltime.ValidRange(in.StartTime, in.EndTime) {
		return nil, apperr.Validation("invalid time range %s-%s", in.StartTime, in.EndTime)
	}
	if in.MaxCapacity < 1 {
		return nil, apperr.Validation("max capacity must be at least 1")
	}
	o := &schedule.OneOffOccurrence{
		Title:       in.Title,
		Instructor:  in.Instructor,
		Date:        in.Date,
		StartTime:   in.StartTime,
		EndTime:     in.EndTime,
		MaxCapacity: in.MaxCapacity,
		Enabled:     true,
		Notes:       in.Notes,
	}
	if err := s.repo.CreateOneOff(ctx, o); err != nil {
		return nil, classify(err)
	}
	s.publisher.Publish(realtime.ChangeEvent{Kind: realtime.KindSchedule, Date: o.Date, Ref: schedule.OneOffRef(o.ID).String()})
	return o, nil
}

func (s *Service) ListOneOffs(ctx context.Context, from, to string) ([]schedule.OneOffOccurrence, error) {
	if _, err := caltime.Dates(from, to); err != nil {
		return nil, apperr.Validation("%v", err)
	}
	out, err := s.repo.OneOffsInRange(ctx, from, to, false)
	return out, classify(err)
}

// SetInstructorAssignment sets the instructor of a class for one date, or
// for every date when date is nil. An empty instructor removes the
// assignment.
func (s *Service) SetInstructorAssignment(ctx context.Context, actor member.Actor, classID int64, date *string, instructor string) (*schedule.InstructorAssignment, error) {
	if !actor.Role.IsStaff() {
		return nil, ErrStaffOnly
	}
	class, err := s.repo.GetClass(ctx, classID)
	if err != nil {
		if errors.Is(err, schedule.ErrNotFound) {
			return nil, ErrClassNotFound
		}
		return nil, classify(err)
	}
	if date != nil {
		dow, err := caltime.Weekday(*date)
		if err != nil {
			return nil, apperr.Validation("%v", err)
		}
		if dow != class.DayOfWeek {
			return nil, apperr.Validation("%s is not a day this class runs on", *date)
		}
	}

	ev := realtime.ChangeEvent{Kind: realtime.KindSchedule, Ref: schedule.RecurringRef(classID).String()}
	if date != nil {
		ev.Date = *date
	}

	if instructor == "" {
		err := s.repo.DeleteAssignment(ctx, classID, date)
		if err != nil && !errors.Is(err, schedule.ErrNotFound) {
			return nil, classify(err)
		}
		s.publisher.Publish(ev)
		return nil, nil
	}

	a := &schedule.InstructorAssignment{RecurringClassID: classID, Date: date, Instructor: instructor}
	err = s.repo.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.repo.WithTx(tx).SaveAssignment(ctx, a)
	})
	if err != nil {
		return nil, classify(err)
	}
	s.publisher.Publish(ev)
	return a, nil
}

func (s *Service) ListDateOverrides(ctx context.Context, from, to string) ([]schedule.DateOverride, error) {
	if _, err := caltime.Dates(from, to); err != nil {
		return nil, apperr.Validation("%v", err)
	}
	out, err := s.repo.OverridesInRange(ctx, from, to)
	return out, classify(err)
}

func classify(err error) error {
	if err != nil && database.IsTransient(err) {
		return apperr.Transient(err)
	}
	return err
}
