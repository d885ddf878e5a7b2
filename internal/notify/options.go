package notify

// Options is the displayable payload attached to a notification. It is a
// closed, typed structure rather than an open bag: everything a sink may
// render is an explicit field.
type Options struct {
	Body string `json:"body,omitempty"`
	Icon string `json:"icon,omitempty"`
	// Tag deduplicates notifications at the sink; the agent always sets it
	// to the reminder identifier before display.
	Tag string `json:"tag,omitempty"`
	// Data travels opaquely with the notification and comes back on user
	// interaction.
	Data    map[string]string `json:"data,omitempty"`
	Actions []Action          `json:"actions,omitempty"`
}

// Action is a user-facing button on a displayed notification.
type Action struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

const (
	ActionSnooze  = "snooze"
	ActionDismiss = "dismiss"
	// ActionOpen is the default body-click action: focus the application,
	// opening it at the root when no view exists.
	ActionOpen = "open"
)

// ReminderActions is the standard button set attached to reminder
// notifications.
func ReminderActions() []Action {
	return []Action{
		{ID: ActionSnooze, Title: "Snooze"},
		{ID: ActionDismiss, Title: "Dismiss"},
	}
}
