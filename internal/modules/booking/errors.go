package booking

import (
	"fmt"

	"sportclub/internal/database"
	"sportclub/internal/pkg/apperr"
)

var (
	ErrOccurrenceCancelled   = apperr.NewPolicy("occurrence_cancelled", "This class is cancelled on the selected date")
	ErrOutsideBookingWindow  = apperr.NewPolicy("outside_booking_window", "Bookings for this date are not open")
	ErrClassFull             = apperr.NewPolicy("class_full", "This class is full")
	ErrAlreadyBooked         = apperr.NewPolicy("already_booked", "You already have a booking for this class")
	ErrNoClassesRemaining    = apperr.NewPolicy("no_classes_remaining", "No classes remaining this month")
	ErrWithinTimeLimit       = apperr.NewPolicy("within_time_limit", "Bookings cannot be cancelled this close to the start")
	ErrNotConfirmed          = apperr.NewPolicy("not_confirmed", "Booking is not confirmed")
	ErrCapacityBelowBookings = apperr.NewPolicy("capacity_below_bookings", "New capacity is below the number of confirmed bookings")
)

var (
	ErrBookingNotFound    = fmt.Errorf("%w: booking", apperr.ErrNotFound)
	ErrOccurrenceNotFound = fmt.Errorf("%w: occurrence", apperr.ErrNotFound)
	ErrClassNotFound      = fmt.Errorf("%w: recurring class", apperr.ErrNotFound)
	ErrOverrideNotFound   = fmt.Errorf("%w: date override", apperr.ErrNotFound)
	ErrOneOffNotFound     = fmt.Errorf("%w: one-off occurrence", apperr.ErrNotFound)
	ErrMemberNotFound     = fmt.Errorf("%w: member", apperr.ErrNotFound)

	ErrNotOwner          = fmt.Errorf("%w: booking belongs to another member", apperr.ErrForbidden)
	ErrStaffOnly         = fmt.Errorf("%w: staff only", apperr.ErrForbidden)
	ErrMemberNotApproved = fmt.Errorf("%w: membership is not approved", apperr.ErrForbidden)
)

// classify marks driver and connection failures as transient. Everything
// else passes through unchanged.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := apperr.AsPolicy(err); ok {
		return err
	}
	if database.IsTransient(err) {
		return apperr.Transient(err)
	}
	return err
}
