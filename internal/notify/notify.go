// Package notify sends fire-and-forget notifications about registrations (confirmation
// emails, promotion notices, overdue reminders) to whatever consumes them downstream.
//
// Nothing here feeds back into placement or payment decisions: a failed publish is
// logged and dropped, never returned to the request that caused it.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/Ottawa-Fun-Sports-League/ofsl-web-sub004/internal/metrics"
)

// Routing keys, also used as Event.Type.
const (
	RegistrationCreated   = "registration.created"
	RegistrationPromoted  = "registration.promoted"
	RegistrationCancelled = "registration.cancelled"
	PaymentRecorded       = "payment.recorded"
	PaymentOverdue        = "payment.overdue"
)

// Event is the JSON body published for every notification.
type Event struct {
	ID             uuid.UUID  `json:"id"`
	Type           string     `json:"type"`
	LeagueID       uuid.UUID  `json:"league_id"`
	RegistrationID uuid.UUID  `json:"registration_id"`
	UserID         uuid.UUID  `json:"user_id"`
	Status         string     `json:"status"`
	AmountDue      string     `json:"amount_due"`
	AmountPaid     string     `json:"amount_paid"`
	PaymentStatus  string     `json:"payment_status"`
	Deadline       *time.Time `json:"payment_deadline,omitempty"`
	OccurredAt     time.Time  `json:"occurred_at"`
}

// Publisher delivers one event. Implementations may block until the broker accepts it.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// LogPublisher writes events to the log. It is used when no broker is configured.
type LogPublisher struct{}

// Publish implements Publisher.
func (LogPublisher) Publish(_ context.Context, ev Event) error {
	log.Info().
		Str("type", ev.Type).
		Str("league_id", ev.LeagueID.String()).
		Str("registration_id", ev.RegistrationID.String()).
		Str("status", ev.Status).
		Msg("Notification")
	return nil
}

// defaultTimeout bounds how long one publish may take.
const defaultTimeout = 3 * time.Second

// Notifier wraps a Publisher so that sending never fails the caller. A queued Notifier
// (NewQueuedNotifier) also never blocks it: events go through a buffer drained by one
// goroutine.
type Notifier struct {
	pub     Publisher
	timeout time.Duration

	mu     sync.RWMutex // guards closed against Send racing Close
	closed bool
	queue  chan queued // nil publishes inline
	done   chan struct{}
}

type queued struct {
	ctx context.Context
	ev  Event
}

// NewNotifier returns a Notifier that publishes inline, bounded by the publish
// timeout. A nil pub logs instead.
func NewNotifier(pub Publisher) *Notifier {
	if pub == nil {
		pub = LogPublisher{}
	}
	return &Notifier{pub: pub, timeout: defaultTimeout}
}

// NewQueuedNotifier returns a Notifier that hands events to a background publisher
// through a buffer of size events. When the buffer is full the event is dropped and
// logged. Close drains what is buffered.
func NewQueuedNotifier(pub Publisher, size int) *Notifier {
	n := NewNotifier(pub)
	n.queue = make(chan queued, size)
	n.done = make(chan struct{})
	go n.drain()
	return n
}

func (n *Notifier) drain() {
	defer close(n.done)
	for q := range n.queue {
		n.publish(q.ctx, q.ev)
	}
}

// Send publishes ev, detached from ctx's cancellation so a client hanging up does not
// drop the notice. Errors are logged.
func (n *Notifier) Send(ctx context.Context, ev Event) {
	if ev.ID == uuid.Nil {
		ev.ID = uuid.New()
	}
	ctx = context.WithoutCancel(ctx)
	if n.queue == nil {
		n.publish(ctx, ev)
		return
	}

	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.closed {
		logDropped(ev, "notifier closed")
		return
	}
	select {
	case n.queue <- queued{ctx: ctx, ev: ev}:
	default:
		logDropped(ev, "notification queue full")
	}
}

// Close stops accepting events and waits until the buffered ones are published.
// It is a no-op for an inline Notifier.
func (n *Notifier) Close() error {
	if n.queue == nil {
		return nil
	}
	n.mu.Lock()
	if !n.closed {
		n.closed = true
		close(n.queue)
	}
	n.mu.Unlock()
	<-n.done
	return nil
}

func (n *Notifier) publish(ctx context.Context, ev Event) {
	sendCtx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	if err := n.pub.Publish(sendCtx, ev); err != nil {
		metrics.NotificationsDropped.WithLabelValues(ev.Type).Inc()
		log.Warn().Err(err).
			Str("type", ev.Type).
			Str("registration_id", ev.RegistrationID.String()).
			Msg("Notification publish failed")
	}
}

func logDropped(ev Event, reason string) {
	metrics.NotificationsDropped.WithLabelValues(ev.Type).Inc()
	log.Warn().
		Str("type", ev.Type).
		Str("registration_id", ev.RegistrationID.String()).
		Msg("Notification dropped: " + reason)
}
