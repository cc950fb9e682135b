// Package metrics declares the Prometheus collectors for registration activity.
// They register on the default registry and are served at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registrations counts new registrations by placement ("active" or "waitlisted") and mode.
var Registrations = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "league",
	Name:      "registrations_total",
	Help:      "Registrations created, by placement and registration mode.",
}, []string{"placement", "mode"})

// Promotions counts waitlisted registrations moved to active, by trigger
// ("manual", "cancellation" or "sweep").
var Promotions = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "league",
	Name:      "promotions_total",
	Help:      "Waitlisted registrations promoted to active.",
}, []string{"trigger"})

// Cancellations counts cancelled registrations by the status they had.
var Cancellations = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "league",
	Name:      "cancellations_total",
	Help:      "Registrations cancelled, by prior status.",
}, []string{"status"})

// OverdueNotices counts overdue payment notices sent.
var OverdueNotices = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "league",
	Name:      "overdue_notices_total",
	Help:      "Overdue payment notices published.",
})

// SweepErrors counts failed background sweeps by job name.
var SweepErrors = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "league",
	Name:      "sweep_errors_total",
	Help:      "Background sweep runs that returned an error.",
}, []string{"job"})

// NotificationsDropped counts notifications that never reached the broker, by type.
var NotificationsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "league",
	Name:      "notifications_dropped_total",
	Help:      "Notifications dropped because the queue was full or the publish failed.",
}, []string{"type"})
