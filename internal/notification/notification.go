// Package notification delivers member-facing messages after a write has
// committed. Delivery is fire-and-forget: a failure is logged and counted,
// never returned to the booking path.
package notification

import (
	"context"
	"time"

	"sportclub/internal/logging"
	"sportclub/internal/metrics"
)

const (
	TypeReservationConfirmed = "reservation.confirmed"
	TypeReservationCancelled = "reservation.cancelled"
	TypeNoShowPenalty        = "reservation.no_show_penalty"
	TypeClassCancelled       = "class.cancelled"
)

type Notification struct {
	Type       string    `json:"type"`
	UserID     int64     `json:"user_id"`
	BookingID  int64     `json:"booking_id,omitempty"`
	Date       string    `json:"date,omitempty"`
	Occurrence string    `json:"occurrence_ref,omitempty"`
	Title      string    `json:"title,omitempty"`
	Message    string    `json:"message"`
	Reason     string    `json:"reason,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Dispatcher must not block the caller for longer than it takes to hand the
// notification off.
type Dispatcher interface {
	Dispatch(ctx context.Context, n Notification)
}

// LogDispatcher writes notifications to the structured log. It is the
// default when no webhook is configured.
type LogDispatcher struct{}

func NewLogDispatcher() *LogDispatcher {
	return &LogDispatcher{}
}

func (LogDispatcher) Dispatch(ctx context.Context, n Notification) {
	logging.Ctx(ctx).Info().
		Str("type", n.Type).
		Int64("user_id", n.UserID).
		Int64("booking_id", n.BookingID).
		Str("date", n.Date).
		Str("occurrence", n.Occurrence).
		Msg(n.Message)
	metrics.RecordNotification("logged")
}

// Discard drops every notification.
type Discard struct{}

func (Discard) Dispatch(context.Context, Notification) {}
