package booking

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"sportclub/internal/domain/audit"
	bookingdomain "sportclub/internal/domain/booking"
	"sportclub/internal/domain/member"
	"sportclub/internal/domain/quota"
	"sportclub/internal/domain/schedule"
	"sportclub/internal/notification"
	"sportclub/internal/pkg/caltime"
	"sportclub/internal/realtime"
)

// Policy holds the club rules the engine enforces.
type Policy struct {
	Location *time.Location
	// CancelCutoff is how long before the start self-service cancellation closes.
	CancelCutoff time.Duration
}

// Actor is the authenticated caller of a privileged operation.
type Actor = member.Actor

// Engine commits reservations, cancellations and attendance against the
// resolved schedule. Every check-then-write runs in one transaction that
// first locks the (occurrence, date) slot, then the booking, then the quota
// period.
type Engine struct {
	db        *gorm.DB
	policy    Policy
	schedule  *schedule.Repository
	bookings  *bookingdomain.Repository
	quotas    *quota.Repository
	members   *member.Repository
	audit     *audit.Repository
	notifier  notification.Dispatcher
	publisher realtime.Publisher
	now       func() time.Time
}

type Option func(*Engine)

func WithNotifier(d notification.Dispatcher) Option {
	return func(e *Engine) { e.notifier = d }
}

func WithPublisher(p realtime.Publisher) Option {
	return func(e *Engine) { e.publisher = p }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func NewEngine(db *gorm.DB, quotas *quota.Repository, policy Policy, opts ...Option) *Engine {
	if policy.Location == nil {
		policy.Location = time.UTC
	}
	e := &Engine{
		db:        db,
		policy:    policy,
		schedule:  schedule.NewRepository(db),
		bookings:  bookingdomain.NewRepository(db),
		quotas:    quotas,
		members:   member.NewRepository(db),
		audit:     audit.NewRepository(db),
		notifier:  notification.Discard{},
		publisher: realtime.Nop{},
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Confirmation is returned by every successful mutating call.
type Confirmation struct {
	BookingID        int64                         `json:"booking_id"`
	Status           bookingdomain.Status          `json:"status"`
	Message          string                        `json:"message"`
	Occurrence       *schedule.EffectiveOccurrence `json:"occurrence,omitempty"`
	RemainingClasses int                           `json:"remaining_classes"`
}

// CancelCheck is the read-only answer to "may this booking be cancelled now".
type CancelCheck struct {
	CanCancel         bool   `json:"can_cancel"`
	Reason            string `json:"reason,omitempty"`
	MinutesUntilClass *int   `json:"minutes_until_class,omitempty"`
}

// txScope bundles the repositories bound to one transaction.
type txScope struct {
	tx       *gorm.DB
	schedule *schedule.Repository
	resolver *schedule.Resolver
	bookings *bookingdomain.Repository
	quotas   *quota.Repository
	members  *member.Repository
	audit    *audit.Repository
}

func (e *Engine) scope(tx *gorm.DB) *txScope {
	sched := e.schedule.WithTx(tx)
	return &txScope{
		tx:       tx,
		schedule: sched,
		resolver: schedule.NewResolver(sched),
		bookings: e.bookings.WithTx(tx),
		quotas:   e.quotas.WithTx(tx),
		members:  e.members.WithTx(tx),
		audit:    e.audit.WithTx(tx),
	}
}

// inTx runs fn in a transaction and, only after commit, emits the side
// effects fn collected.
func (e *Engine) inTx(ctx context.Context, fn func(s *txScope, fx *effects) error) error {
	fx := &effects{}
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(e.scope(tx), fx)
	})
	if err != nil {
		return classify(err)
	}
	fx.emit(ctx, e.notifier, e.publisher)
	return nil
}

type effects struct {
	notifications []notification.Notification
	events        []realtime.ChangeEvent
	after         []func()
}

func (fx *effects) notify(n notification.Notification) {
	fx.notifications = append(fx.notifications, n)
}

func (fx *effects) publish(ev realtime.ChangeEvent) {
	fx.events = append(fx.events, ev)
}

func (fx *effects) onCommit(f func()) {
	fx.after = append(fx.after, f)
}

func (fx *effects) emit(ctx context.Context, d notification.Dispatcher, p realtime.Publisher) {
	for _, f := range fx.after {
		f()
	}
	for _, n := range fx.notifications {
		d.Dispatch(ctx, n)
	}
	for _, ev := range fx.events {
		p.Publish(ev)
	}
}

func (e *Engine) clock() time.Time {
	return e.now().In(e.policy.Location)
}

func (e *Engine) today() string {
	return caltime.FormatDate(e.clock())
}

func requireStaff(a Actor) error {
	if !a.Role.IsStaff() {
		return ErrStaffOnly
	}
	return nil
}

// occurrenceStart returns the instant the booked occurrence begins. The
// current schedule wins; the snapshot taken at booking time is used when the
// occurrence no longer resolves.
func (e *Engine) occurrenceStart(ctx context.Context, r *schedule.Resolver, b *bookingdomain.Booking) (time.Time, error) {
	ref, err := schedule.ParseOccurrenceRef(b.OccurrenceKey)
	if err != nil {
		return b.StartsAt, nil
	}
	occ, status, err := r.Find(ctx, b.BookingDate, ref)
	if err != nil {
		return time.Time{}, err
	}
	if status != schedule.StatusActive {
		return b.StartsAt, nil
	}
	return caltime.At(b.BookingDate, occ.StartTime, e.policy.Location)
}

// evaluateCancel applies the self-service time window. Both CanCancel and
// CancelReservation go through here.
func (e *Engine) evaluateCancel(b *bookingdomain.Booking, start, now time.Time) CancelCheck {
	if b.Status != bookingdomain.StatusConfirmed {
		return CancelCheck{Reason: ErrNotConfirmed.Code}
	}
	minutes := int(start.Sub(now) / time.Minute)
	check := CancelCheck{MinutesUntilClass: &minutes}
	if start.Sub(now) < e.policy.CancelCutoff {
		check.Reason = ErrWithinTimeLimit.Code
		return check
	}
	check.CanCancel = true
	return check
}

func lookupErr(err error, notFound, target error) error {
	if errors.Is(err, notFound) {
		return target
	}
	return err
}
