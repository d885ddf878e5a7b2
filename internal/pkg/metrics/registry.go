package metrics

import "github.com/prometheus/client_golang/prometheus"

var registry = prometheus.NewRegistry()

func GetRegistry() *prometheus.Registry {
	return registry
}

var (
	// RemindersScheduled counts reminders accepted into the agent registry.
	RemindersScheduled = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "routineflow",
		Subsystem: "notify",
		Name:      "reminders_scheduled_total",
		Help:      "Reminders registered with a pending timer.",
	})

	// RemindersFired counts timers that elapsed and displayed a notification.
	RemindersFired = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "routineflow",
		Subsystem: "notify",
		Name:      "reminders_fired_total",
		Help:      "Reminders whose timer elapsed.",
	})

	// RemindersCanceled counts explicit cancellations of pending timers.
	RemindersCanceled = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "routineflow",
		Subsystem: "notify",
		Name:      "reminders_canceled_total",
		Help:      "Pending reminders canceled before firing.",
	})

	// RemindersSnoozed counts snooze interactions on fired notifications.
	RemindersSnoozed = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "routineflow",
		Subsystem: "notify",
		Name:      "reminders_snoozed_total",
		Help:      "Fired notifications re-armed via snooze.",
	})

	// RemindersDroppedPast counts schedule requests rejected for a past instant.
	RemindersDroppedPast = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "routineflow",
		Subsystem: "notify",
		Name:      "reminders_dropped_past_total",
		Help:      "Schedule requests silently dropped because the instant had passed.",
	})
)

func init() {
	registry.MustRegister(
		RemindersScheduled,
		RemindersFired,
		RemindersCanceled,
		RemindersSnoozed,
		RemindersDroppedPast,
	)
}
