package core

// EventLogger receives the audit events of a scheduling pass:
// "schedule.completed", "schedule.failed" and "task.rejected".
type EventLogger interface {
	LogEvent(eventType string, data map[string]any) error
}
