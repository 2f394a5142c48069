package booking

import (
	"context"

	bookingdomain "sportclub/internal/domain/booking"
	"sportclub/internal/domain/schedule"
	"sportclub/internal/pkg/apperr"
	"sportclub/internal/pkg/caltime"
)

// AvailabilityItem is an occurrence annotated with live seat counts.
type AvailabilityItem struct {
	schedule.EffectiveOccurrence
	Confirmed   int    `json:"confirmed"`
	SpotsLeft   int    `json:"spots_left"`
	Bookable    bool   `json:"bookable"`
	MyBookingID *int64 `json:"my_booking_id,omitempty"`
}

// Availability resolves date and adds confirmed counts and the caller's own
// booking. Display only; CreateReservation re-checks everything.
func (e *Engine) Availability(ctx context.Context, date string, userID int64) ([]AvailabilityItem, error) {
	if _, err := caltime.ParseDate(date, e.policy.Location); err != nil {
		return nil, apperr.Validation("%v", err)
	}
	occs, err := schedule.NewResolver(e.schedule).ForDate(ctx, date)
	if err != nil {
		return nil, classify(err)
	}
	counts, err := e.bookings.ConfirmedCountsForDate(ctx, date)
	if err != nil {
		return nil, classify(err)
	}
	mine := map[string]int64{}
	if userID > 0 {
		own, err := e.bookings.ListByUser(ctx, userID, date, date)
		if err != nil {
			return nil, classify(err)
		}
		for _, b := range own {
			if b.Status == bookingdomain.StatusConfirmed {
				mine[b.OccurrenceKey] = b.ID
			}
		}
	}

	now := e.clock()
	out := make([]AvailabilityItem, 0, len(occs))
	for _, occ := range occs {
		key := occ.Ref.String()
		item := AvailabilityItem{EffectiveOccurrence: occ, Confirmed: counts[key]}
		item.SpotsLeft = max(occ.MaxCapacity-item.Confirmed, 0)
		if id, ok := mine[key]; ok {
			item.MyBookingID = &id
		}
		if start, err := caltime.At(date, occ.StartTime, e.policy.Location); err == nil {
			item.Bookable = item.SpotsLeft > 0 && item.MyBookingID == nil && e.withinWindow(date, start, now)
		}
		out = append(out, item)
	}
	return out, nil
}

// ListMyBookings returns the member's bookings between from and to inclusive.
func (e *Engine) ListMyBookings(ctx context.Context, userID int64, from, to string) ([]bookingdomain.Booking, error) {
	if _, err := caltime.Dates(from, to); err != nil {
		return nil, apperr.Validation("%v", err)
	}
	out, err := e.bookings.ListByUser(ctx, userID, from, to)
	return out, classify(err)
}

// ListOccurrenceBookings is the staff roster for one occurrence.
func (e *Engine) ListOccurrenceBookings(ctx context.Context, actor Actor, date string, ref schedule.OccurrenceRef) ([]bookingdomain.Booking, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}
	if _, err := caltime.ParseDate(date, e.policy.Location); err != nil {
		return nil, apperr.Validation("%v", err)
	}
	out, err := e.bookings.ListConfirmedForSlot(ctx, ref.String(), date)
	return out, classify(err)
}

// BookingsForDate returns every booking on date, any status.
func (e *Engine) BookingsForDate(ctx context.Context, actor Actor, date string) ([]bookingdomain.Booking, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}
	if _, err := caltime.ParseDate(date, e.policy.Location); err != nil {
		return nil, apperr.Validation("%v", err)
	}
	out, err := e.bookings.ListForDate(ctx, date)
	return out, classify(err)
}
