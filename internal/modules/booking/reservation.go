package booking

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"sportclub/internal/domain/audit"
	bookingdomain "sportclub/internal/domain/booking"
	"sportclub/internal/domain/member"
	"sportclub/internal/domain/quota"
	"sportclub/internal/domain/schedule"
	"sportclub/internal/logging"
	"sportclub/internal/metrics"
	"sportclub/internal/notification"
	"sportclub/internal/pkg/apperr"
	"sportclub/internal/pkg/caltime"
	"sportclub/internal/realtime"
)

// CreateReservation books one seat for userID. The occurrence is resolved
// inside the transaction so a cancellation or capacity change committed just
// before is always seen.
func (e *Engine) CreateReservation(ctx context.Context, userID int64, date string, ref schedule.OccurrenceRef) (*Confirmation, error) {
	if _, err := caltime.ParseDate(date, e.policy.Location); err != nil {
		return nil, apperr.Validation("%v", err)
	}
	if !ref.Valid() {
		return nil, apperr.Validation("%v", schedule.ErrInvalidRef)
	}

	var conf *Confirmation
	err := e.inTx(ctx, func(s *txScope, fx *effects) error {
		m, err := s.members.GetByID(ctx, userID)
		if err != nil {
			return lookupErr(err, member.ErrNotFound, ErrMemberNotFound)
		}
		if m.Status != member.StatusApproved {
			return ErrMemberNotApproved
		}

		// A share lock on the template queues this reservation behind a
		// concurrent deactivation, which would not see the new row.
		if ref.Kind == schedule.SourceRecurring {
			if _, err := s.schedule.LockClass(ctx, ref.ID, false); err != nil && !errors.Is(err, schedule.ErrNotFound) {
				return fmt.Errorf("lock class: %w", err)
			}
		}

		key := ref.String()
		if err := s.bookings.LockSlot(ctx, key, date); err != nil {
			return fmt.Errorf("lock slot: %w", err)
		}

		occ, status, err := s.resolver.Find(ctx, date, ref)
		if err != nil {
			return err
		}
		switch status {
		case schedule.StatusCancelled:
			return ErrOccurrenceCancelled
		case schedule.StatusMissing:
			return ErrOccurrenceNotFound
		}

		now := e.clock()
		start, err := caltime.At(date, occ.StartTime, e.policy.Location)
		if err != nil {
			return err
		}
		if !e.withinWindow(date, start, now) {
			return ErrOutsideBookingWindow
		}

		existing, err := s.bookings.FindConfirmed(ctx, userID, key, date)
		if err != nil {
			return err
		}
		if existing != nil {
			return ErrAlreadyBooked
		}

		taken, err := s.bookings.CountConfirmed(ctx, key, date)
		if err != nil {
			return err
		}
		if taken >= int64(occ.MaxCapacity) {
			return ErrClassFull
		}

		period := quota.PeriodOf(now)
		b := &bookingdomain.Booking{
			UserID:        userID,
			BookingDate:   date,
			OccurrenceKey: key,
			Status:        bookingdomain.StatusConfirmed,
			StartsAt:      start,
			QuotaMonth:    period.Month,
			QuotaYear:     period.Year,
		}
		id := ref.ID
		if ref.Kind == schedule.SourceRecurring {
			b.RecurringClassID = &id
		} else {
			b.OneOffOccurrenceID = &id
		}
		if err := s.bookings.Create(ctx, b); err != nil {
			if errors.Is(err, bookingdomain.ErrDuplicateConfirmed) {
				return ErrAlreadyBooked
			}
			return err
		}

		q, err := s.quotas.Apply(ctx, quota.Change{
			UserID:    userID,
			Period:    period,
			Delta:     -1,
			Kind:      quota.KindReserve,
			BookingID: &b.ID,
		})
		if err != nil {
			if errors.Is(err, quota.ErrInsufficientClasses) {
				return ErrNoClassesRemaining
			}
			return err
		}

		conf = &Confirmation{
			BookingID:        b.ID,
			Status:           b.Status,
			Message:          fmt.Sprintf("Booked %s on %s at %s. %d classes left this month.", occ.Title, date, occ.StartTime, q.RemainingClasses),
			Occurrence:       &occ,
			RemainingClasses: q.RemainingClasses,
		}
		fx.onCommit(func() { metrics.RecordQuotaMutation(quota.KindReserve) })
		fx.notify(notification.Notification{
			Type:       notification.TypeReservationConfirmed,
			UserID:     userID,
			BookingID:  b.ID,
			Date:       date,
			Occurrence: key,
			Title:      occ.Title,
			Message:    conf.Message,
			CreatedAt:  now,
		})
		fx.publish(realtime.ChangeEvent{Kind: realtime.KindReservation, Date: date, Ref: key, UserID: userID})
		return nil
	})
	if err != nil {
		metrics.RecordReservation(outcome(err))
		return nil, err
	}
	metrics.RecordReservation("created")
	return conf, nil
}

// withinWindow: not in the past, not beyond the weekly release horizon and
// not already started.
func (e *Engine) withinWindow(date string, start, now time.Time) bool {
	today := caltime.StartOfDay(now)
	if date < caltime.FormatDate(today) {
		return false
	}
	if date > caltime.FormatDate(caltime.BookingHorizon(today)) {
		return false
	}
	return start.After(now)
}

// CanCancel reports whether the owner may cancel the booking right now.
func (e *Engine) CanCancel(ctx context.Context, bookingID, userID int64) (*CancelCheck, error) {
	b, err := e.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, classify(lookupErr(err, bookingdomain.ErrNotFound, ErrBookingNotFound))
	}
	if b.UserID != userID {
		return nil, ErrNotOwner
	}
	start, err := e.occurrenceStart(ctx, schedule.NewResolver(e.schedule), b)
	if err != nil {
		return nil, classify(err)
	}
	check := e.evaluateCancel(b, start, e.clock())
	return &check, nil
}

// CancelReservation is the owner's self-service cancellation. It is refused
// inside the cut-off and restores one class to the debited period.
func (e *Engine) CancelReservation(ctx context.Context, bookingID, userID int64) (*Confirmation, error) {
	var conf *Confirmation
	err := e.inTx(ctx, func(s *txScope, fx *effects) error {
		b, err := s.bookings.LockByID(ctx, bookingID)
		if err != nil {
			return lookupErr(err, bookingdomain.ErrNotFound, ErrBookingNotFound)
		}
		if b.UserID != userID {
			return ErrNotOwner
		}
		if b.Status != bookingdomain.StatusConfirmed {
			return ErrNotConfirmed
		}
		start, err := e.occurrenceStart(ctx, s.resolver, b)
		if err != nil {
			return err
		}
		now := e.clock()
		if check := e.evaluateCancel(b, start, now); !check.CanCancel {
			return ErrWithinTimeLimit
		}

		actor := userID
		q, err := e.release(ctx, s, b, &actor, "", quota.KindRestore)
		if err != nil {
			return err
		}
		conf = &Confirmation{
			BookingID:        b.ID,
			Status:           b.Status,
			Message:          fmt.Sprintf("Booking cancelled. %d classes left this month.", q.RemainingClasses),
			RemainingClasses: q.RemainingClasses,
		}
		fx.onCommit(func() { metrics.RecordQuotaMutation(quota.KindRestore) })
		fx.notify(notification.Notification{
			Type:       notification.TypeReservationCancelled,
			UserID:     b.UserID,
			BookingID:  b.ID,
			Date:       b.BookingDate,
			Occurrence: b.OccurrenceKey,
			Message:    conf.Message,
			CreatedAt:  now,
		})
		fx.publish(realtime.ChangeEvent{Kind: realtime.KindCancellation, Date: b.BookingDate, Ref: b.OccurrenceKey, UserID: b.UserID})
		return nil
	})
	if err != nil {
		metrics.RecordCancellation("self", outcome(err))
		return nil, err
	}
	metrics.RecordCancellation("self", "cancelled")
	return conf, nil
}

// ForceCancelReservation lets staff cancel any confirmed booking regardless
// of the time window. Quota is always restored and the reason is audited.
func (e *Engine) ForceCancelReservation(ctx context.Context, bookingID int64, actor Actor, reason string) (*Confirmation, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}
	if reason == "" {
		return nil, apperr.Validation("reason is required")
	}

	var conf *Confirmation
	err := e.inTx(ctx, func(s *txScope, fx *effects) error {
		b, err := s.bookings.LockByID(ctx, bookingID)
		if err != nil {
			return lookupErr(err, bookingdomain.ErrNotFound, ErrBookingNotFound)
		}
		if b.Status != bookingdomain.StatusConfirmed {
			return ErrNotConfirmed
		}
		q, err := e.release(ctx, s, b, &actor.UserID, reason, quota.KindRestore)
		if err != nil {
			return err
		}
		if _, err := s.audit.Append(ctx, actor.UserID, audit.ActionForceCancel, bookingSubject(b.ID), reason, map[string]any{
			"user_id":        b.UserID,
			"date":           b.BookingDate,
			"occurrence_ref": b.OccurrenceKey,
			"remaining":      q.RemainingClasses,
		}); err != nil {
			return err
		}

		conf = &Confirmation{
			BookingID:        b.ID,
			Status:           b.Status,
			Message:          "Booking cancelled by staff: " + reason,
			RemainingClasses: q.RemainingClasses,
		}
		fx.onCommit(func() {
			metrics.RecordQuotaMutation(quota.KindRestore)
			logging.Ctx(ctx).Info().
				Int64("booking_id", b.ID).
				Int64("actor_id", actor.UserID).
				Str("reason", reason).
				Msg("booking force-cancelled")
		})
		fx.notify(notification.Notification{
			Type:       notification.TypeReservationCancelled,
			UserID:     b.UserID,
			BookingID:  b.ID,
			Date:       b.BookingDate,
			Occurrence: b.OccurrenceKey,
			Message:    conf.Message,
			Reason:     reason,
			CreatedAt:  e.clock(),
		})
		fx.publish(realtime.ChangeEvent{Kind: realtime.KindCancellation, Date: b.BookingDate, Ref: b.OccurrenceKey, UserID: b.UserID})
		return nil
	})
	if err != nil {
		metrics.RecordCancellation("forced", outcome(err))
		return nil, err
	}
	metrics.RecordCancellation("forced", "cancelled")
	return conf, nil
}

// MarkAttendance records whether the member showed up. The first time a
// booking is marked as a no-show one class is charged as a penalty; later
// marks never charge again.
func (e *Engine) MarkAttendance(ctx context.Context, bookingID int64, attended bool, actor Actor) (*bookingdomain.Booking, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}

	var out *bookingdomain.Booking
	var penalty bool
	err := e.inTx(ctx, func(s *txScope, fx *effects) error {
		b, err := s.bookings.LockByID(ctx, bookingID)
		if err != nil {
			return lookupErr(err, bookingdomain.ErrNotFound, ErrBookingNotFound)
		}
		if b.Status != bookingdomain.StatusConfirmed {
			return ErrNotConfirmed
		}

		now := e.clock()
		b.Attended = &attended
		b.AttendanceMarkedAt = &now
		b.AttendanceMarkedBy = &actor.UserID

		if !attended && !b.PenaltyApplied {
			if _, err := s.quotas.Apply(ctx, quota.Change{
				UserID:        b.UserID,
				Period:        quota.Period{Month: b.QuotaMonth, Year: b.QuotaYear},
				Delta:         -1,
				Kind:          quota.KindPenalty,
				BookingID:     &b.ID,
				ActorID:       &actor.UserID,
				Note:          "no-show",
				AllowNegative: true,
			}); err != nil {
				return err
			}
			b.PenaltyApplied = true
			penalty = true
			fx.onCommit(func() { metrics.RecordQuotaMutation(quota.KindPenalty) })
			fx.notify(notification.Notification{
				Type:       notification.TypeNoShowPenalty,
				UserID:     b.UserID,
				BookingID:  b.ID,
				Date:       b.BookingDate,
				Occurrence: b.OccurrenceKey,
				Message:    "You were marked absent; one class was deducted from your monthly quota.",
				CreatedAt:  now,
			})
		}

		if err := s.bookings.Save(ctx, b); err != nil {
			return err
		}
		out = b
		fx.publish(realtime.ChangeEvent{Kind: realtime.KindAttendance, Date: b.BookingDate, Ref: b.OccurrenceKey, UserID: b.UserID})
		return nil
	})
	if err != nil {
		return nil, err
	}
	metrics.RecordAttendance(attended, penalty)
	return out, nil
}

// release cancels a locked, confirmed booking and credits one class back to
// the period it was debited from.
func (e *Engine) release(ctx context.Context, s *txScope, b *bookingdomain.Booking, actorID *int64, reason, kind string) (*quota.MonthlyQuota, error) {
	now := e.clock()
	b.Status = bookingdomain.StatusCancelled
	b.CancelledAt = &now
	b.CancelledBy = actorID
	b.CancellationReason = reason
	if err := s.bookings.Save(ctx, b); err != nil {
		return nil, err
	}
	return s.quotas.Apply(ctx, quota.Change{
		UserID:    b.UserID,
		Period:    quota.Period{Month: b.QuotaMonth, Year: b.QuotaYear},
		Delta:     1,
		Kind:      kind,
		BookingID: &b.ID,
		ActorID:   actorID,
		Note:      reason,
	})
}

func bookingSubject(id int64) string {
	return "booking:" + strconv.FormatInt(id, 10)
}

// outcome labels a failure for metrics.
func outcome(err error) string {
	if p, ok := apperr.AsPolicy(err); ok {
		return p.Code
	}
	switch {
	case errors.Is(err, apperr.ErrForbidden):
		return "forbidden"
	case errors.Is(err, apperr.ErrNotFound):
		return "not_found"
	case errors.Is(err, apperr.ErrValidation):
		return "invalid"
	case errors.Is(err, apperr.ErrTransient):
		return "transient"
	}
	return "error"
}
