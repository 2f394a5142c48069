package booking

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"sportclub/internal/domain/audit"
	bookingdomain "sportclub/internal/domain/booking"
	"sportclub/internal/domain/quota"
	"sportclub/internal/domain/schedule"
	"sportclub/internal/logging"
	"sportclub/internal/metrics"
	"sportclub/internal/notification"
	"sportclub/internal/pkg/apperr"
	"sportclub/internal/pkg/caltime"
	"sportclub/internal/realtime"
)

// OverrideInput is a per-date change to a recurring class. Nil fields keep
// the template value.
type OverrideInput struct {
	RecurringClassID        int64
	Date                    string
	StartTime               *string
	EndTime                 *string
	Instructor              *string
	MaxCapacity             *int
	IsCancelled             bool
	MigrateExistingBookings bool
	Notes                   string
}

// OverrideResult reports what happened to the bookings on that date.
type OverrideResult struct {
	Override          *schedule.DateOverride `json:"override"`
	CancelledBookings int                    `json:"cancelled_bookings"`
	MigratedBookings  int                    `json:"migrated_bookings"`
}

func (in OverrideInput) validate(class *schedule.RecurringClass) error {
	dow, err := caltime.Weekday(in.Date)
	if err != nil {
		return apperr.Validation("%v", err)
	}
	if dow != class.DayOfWeek {
		return apperr.Validation("%s is not a day this class runs on", in.Date)
	}
	start := derefOr(in.StartTime, class.StartTime)
	end := derefOr(in.EndTime, class.EndTime)
	if !caltime.ValidRange(start, end) {
		return apperr.Validation("invalid time range %s-%s", start, end)
	}
	if in.MaxCapacity != nil && *in.MaxCapacity < 1 {
		return apperr.Validation("max capacity must be at least 1")
	}
	return nil
}

// CreateDateOverride inserts or replaces the override for (class, date).
// A cancelling override releases every confirmed booking on that date with
// quota restored. Otherwise the new capacity may not drop below the
// confirmed count, and a changed start time either moves the bookings
// (MigrateExistingBookings) or releases them.
func (e *Engine) CreateDateOverride(ctx context.Context, actor Actor, in OverrideInput) (*OverrideResult, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}
	return e.saveOverride(ctx, actor, in, audit.ActionOverrideSave, "")
}

// DisableClass cancels one date of a recurring class.
func (e *Engine) DisableClass(ctx context.Context, actor Actor, classID int64, date, reason string) (*OverrideResult, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}
	return e.saveOverride(ctx, actor, OverrideInput{
		RecurringClassID: classID,
		Date:             date,
		IsCancelled:      true,
		Notes:            reason,
	}, audit.ActionDisableClass, reason)
}

func (e *Engine) saveOverride(ctx context.Context, actor Actor, in OverrideInput, action, reason string) (*OverrideResult, error) {
	res := &OverrideResult{}
	err := e.inTx(ctx, func(s *txScope, fx *effects) error {
		class, err := s.schedule.GetClass(ctx, in.RecurringClassID)
		if err != nil {
			return lookupErr(err, schedule.ErrNotFound, ErrClassNotFound)
		}
		if err := in.validate(class); err != nil {
			return err
		}

		ref := schedule.RecurringRef(class.ID)
		key := ref.String()
		if err := s.bookings.LockSlot(ctx, key, in.Date); err != nil {
			return fmt.Errorf("lock slot: %w", err)
		}

		prev, prevStatus, err := s.resolver.Find(ctx, in.Date, ref)
		if err != nil {
			return err
		}
		confirmed, err := s.bookings.ListConfirmedForSlot(ctx, key, in.Date)
		if err != nil {
			return err
		}

		o, err := s.schedule.GetOverride(ctx, class.ID, in.Date)
		switch {
		case errors.Is(err, schedule.ErrNotFound):
			o = &schedule.DateOverride{RecurringClassID: class.ID, Date: in.Date}
		case err != nil:
			return err
		}
		o.StartTime = in.StartTime
		o.EndTime = in.EndTime
		o.Instructor = in.Instructor
		o.MaxCapacity = in.MaxCapacity
		o.IsCancelled = in.IsCancelled
		o.MigrateExistingBookings = in.MigrateExistingBookings
		o.Notes = in.Notes
		o.CreatedBy = actor.UserID

		if !o.IsCancelled {
			capacity := class.MaxCapacity
			if o.MaxCapacity != nil {
				capacity = *o.MaxCapacity
			}
			if len(confirmed) > capacity {
				return ErrCapacityBelowBookings
			}
		}

		if err := s.schedule.SaveOverride(ctx, o); err != nil {
			return err
		}
		res.Override = o

		switch {
		case o.IsCancelled:
			n, err := e.releaseAll(ctx, s, fx, confirmed, actor.UserID, cancelReason(reason, o.Notes, "class cancelled"), class.Title)
			if err != nil {
				return err
			}
			res.CancelledBookings = n
		case prevStatus == schedule.StatusActive && derefOr(o.StartTime, class.StartTime) != prev.StartTime:
			newStart, err := caltime.At(in.Date, derefOr(o.StartTime, class.StartTime), e.policy.Location)
			if err != nil {
				return err
			}
			if o.MigrateExistingBookings {
				for i := range confirmed {
					confirmed[i].StartsAt = newStart
					if err := s.bookings.Save(ctx, &confirmed[i]); err != nil {
						return err
					}
				}
				res.MigratedBookings = len(confirmed)
			} else {
				n, err := e.releaseAll(ctx, s, fx, confirmed, actor.UserID, cancelReason(reason, o.Notes, "class time changed"), class.Title)
				if err != nil {
					return err
				}
				res.CancelledBookings = n
			}
		}

		if _, err := s.audit.Append(ctx, actor.UserID, action, overrideSubject(class.ID, in.Date), reason, map[string]any{
			"is_cancelled":       o.IsCancelled,
			"start_time":         o.StartTime,
			"end_time":           o.EndTime,
			"instructor":         o.Instructor,
			"max_capacity":       o.MaxCapacity,
			"migrate":            o.MigrateExistingBookings,
			"cancelled_bookings": res.CancelledBookings,
			"migrated_bookings":  res.MigratedBookings,
		}); err != nil {
			return err
		}

		fx.onCommit(func() {
			logging.Ctx(ctx).Info().
				Int64("class_id", class.ID).
				Str("date", in.Date).
				Bool("cancelled", o.IsCancelled).
				Int("released", res.CancelledBookings).
				Int("migrated", res.MigratedBookings).
				Int64("actor_id", actor.UserID).
				Msg("date override saved")
		})
		fx.publish(realtime.ChangeEvent{Kind: realtime.KindSchedule, Date: in.Date, Ref: key})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// DeleteDateOverride removes the override so the template applies again.
// Existing bookings are kept and follow the template start time; the
// template capacity must still hold them.
func (e *Engine) DeleteDateOverride(ctx context.Context, actor Actor, classID int64, date string) error {
	if err := requireStaff(actor); err != nil {
		return err
	}
	return e.inTx(ctx, func(s *txScope, fx *effects) error {
		class, err := s.schedule.GetClass(ctx, classID)
		if err != nil {
			return lookupErr(err, schedule.ErrNotFound, ErrClassNotFound)
		}
		key := schedule.RecurringRef(classID).String()
		if err := s.bookings.LockSlot(ctx, key, date); err != nil {
			return fmt.Errorf("lock slot: %w", err)
		}
		o, err := s.schedule.GetOverride(ctx, classID, date)
		if err != nil {
			return lookupErr(err, schedule.ErrNotFound, ErrOverrideNotFound)
		}

		confirmed, err := s.bookings.ListConfirmedForSlot(ctx, key, date)
		if err != nil {
			return err
		}
		if len(confirmed) > class.MaxCapacity {
			return ErrCapacityBelowBookings
		}
		if err := s.schedule.DeleteOverride(ctx, classID, date); err != nil {
			return err
		}

		start, err := caltime.At(date, class.StartTime, e.policy.Location)
		if err != nil {
			return err
		}
		for i := range confirmed {
			if confirmed[i].StartsAt.Equal(start) {
				continue
			}
			confirmed[i].StartsAt = start
			if err := s.bookings.Save(ctx, &confirmed[i]); err != nil {
				return err
			}
		}

		if _, err := s.audit.Append(ctx, actor.UserID, audit.ActionOverrideDelete, overrideSubject(classID, date), "", map[string]any{
			"was_cancelled": o.IsCancelled,
		}); err != nil {
			return err
		}
		fx.publish(realtime.ChangeEvent{Kind: realtime.KindSchedule, Date: date, Ref: key})
		return nil
	})
}

// ToggleRecurringClass activates or deactivates a template. Deactivation
// releases confirmed bookings that have not started yet; past bookings stay
// as history.
func (e *Engine) ToggleRecurringClass(ctx context.Context, actor Actor, classID int64, active bool) (*schedule.RecurringClass, int, error) {
	if err := requireStaff(actor); err != nil {
		return nil, 0, err
	}
	var (
		out      *schedule.RecurringClass
		released int
	)
	err := e.inTx(ctx, func(s *txScope, fx *effects) error {
		class, err := s.schedule.LockClass(ctx, classID, true)
		if err != nil {
			return lookupErr(err, schedule.ErrNotFound, ErrClassNotFound)
		}
		if class.Active == active {
			out = class
			return nil
		}
		if err := s.schedule.SetClassActive(ctx, classID, active); err != nil {
			return err
		}
		class.Active = active

		if !active {
			n, err := e.releaseUpcoming(ctx, s, fx, schedule.RecurringRef(classID), actor.UserID, "class discontinued", class.Title)
			if err != nil {
				return err
			}
			released = n
		}
		if _, err := s.audit.Append(ctx, actor.UserID, audit.ActionClassToggle, "recurring:"+strconv.FormatInt(classID, 10), "", map[string]any{
			"active":   active,
			"released": released,
		}); err != nil {
			return err
		}
		out = class
		fx.publish(realtime.ChangeEvent{Kind: realtime.KindSchedule, Ref: schedule.RecurringRef(classID).String()})
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return out, released, nil
}

// DeleteOneOffOccurrence removes a one-off. Upcoming bookings are released;
// if any booking ever referenced it the row is disabled instead of deleted.
func (e *Engine) DeleteOneOffOccurrence(ctx context.Context, actor Actor, id int64) (int, error) {
	if err := requireStaff(actor); err != nil {
		return 0, err
	}
	var released int
	err := e.inTx(ctx, func(s *txScope, fx *effects) error {
		occ, err := s.schedule.GetOneOff(ctx, id)
		if err != nil {
			return lookupErr(err, schedule.ErrNotFound, ErrOneOffNotFound)
		}
		ref := schedule.OneOffRef(id)
		if err := s.bookings.LockSlot(ctx, ref.String(), occ.Date); err != nil {
			return fmt.Errorf("lock slot: %w", err)
		}
		n, err := e.releaseUpcoming(ctx, s, fx, ref, actor.UserID, "class cancelled", occ.Title)
		if err != nil {
			return err
		}
		released = n

		referenced, err := s.bookings.ExistsForOccurrence(ctx, ref.String())
		if err != nil {
			return err
		}
		if referenced {
			err = s.schedule.SetOneOffEnabled(ctx, id, false)
		} else {
			err = s.schedule.DeleteOneOff(ctx, id)
		}
		if err != nil {
			return err
		}
		if _, err := s.audit.Append(ctx, actor.UserID, audit.ActionOneOffDelete, ref.String(), "", map[string]any{
			"date":        occ.Date,
			"released":    released,
			"soft_delete": referenced,
		}); err != nil {
			return err
		}
		fx.publish(realtime.ChangeEvent{Kind: realtime.KindSchedule, Date: occ.Date, Ref: ref.String()})
		return nil
	})
	if err != nil {
		return 0, err
	}
	return released, nil
}

// releaseUpcoming releases confirmed bookings of ref that start after now.
func (e *Engine) releaseUpcoming(ctx context.Context, s *txScope, fx *effects, ref schedule.OccurrenceRef, actorID int64, reason, title string) (int, error) {
	list, err := s.bookings.ListConfirmedFrom(ctx, ref.String(), e.today())
	if err != nil {
		return 0, err
	}
	now := e.clock()
	upcoming := list[:0]
	for _, b := range list {
		if b.StartsAt.After(now) {
			upcoming = append(upcoming, b)
		}
	}
	return e.releaseAll(ctx, s, fx, upcoming, actorID, reason, title)
}

// releaseAll cancels every booking in list with quota restored and queues a
// class-cancelled notification per member.
func (e *Engine) releaseAll(ctx context.Context, s *txScope, fx *effects, list []bookingdomain.Booking, actorID int64, reason, title string) (int, error) {
	n := 0
	for i := range list {
		b := &list[i]
		locked, err := s.bookings.LockByID(ctx, b.ID)
		if err != nil {
			return 0, err
		}
		if locked.Status != bookingdomain.StatusConfirmed {
			continue
		}
		actor := actorID
		if _, err := e.release(ctx, s, locked, &actor, reason, quota.KindRestore); err != nil {
			return 0, err
		}
		n++
		fx.onCommit(func() {
			metrics.RecordQuotaMutation(quota.KindRestore)
			metrics.RecordCancellation("schedule", "cancelled")
		})
		fx.notify(notification.Notification{
			Type:       notification.TypeClassCancelled,
			UserID:     locked.UserID,
			BookingID:  locked.ID,
			Date:       locked.BookingDate,
			Occurrence: locked.OccurrenceKey,
			Title:      title,
			Message:    fmt.Sprintf("%s on %s was cancelled; your class has been returned.", title, locked.BookingDate),
			Reason:     reason,
			CreatedAt:  e.clock(),
		})
		fx.publish(realtime.ChangeEvent{Kind: realtime.KindCancellation, Date: locked.BookingDate, Ref: locked.OccurrenceKey, UserID: locked.UserID})
	}
	return n, nil
}

func cancelReason(explicit, notes, fallback string) string {
	switch {
	case explicit != "":
		return explicit
	case notes != "":
		return notes
	}
	return fallback
}

func overrideSubject(classID int64, date string) string {
	return fmt.Sprintf("recurring:%d@%s", classID, date)
}

func derefOr(p *string, fallback string) string {
	if p == nil {
		return fallback
	}
	return *p
}
