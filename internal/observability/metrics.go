package observability

import (
	"fmt"
	"time"
)

// Metrics summarises the scheduling passes found in the event log.
type Metrics struct {
	Passes           int            `json:"passes"`
	PassesByMode     map[string]int `json:"passes_by_mode"`
	PassesByStrategy map[string]int `json:"passes_by_strategy"`
	EventsPlaced     int            `json:"events_placed"`
	EventsKept       int            `json:"events_kept"`
	TasksRejected    int            `json:"tasks_rejected"`
	Failures         int            `json:"failures"`
	FailuresByReason map[string]int `json:"failures_by_reason"`
	LastPassID       string         `json:"last_pass_id,omitempty"`
	EventCount       int            `json:"event_count"`
	OldestEvent      *time.Time     `json:"oldest_event,omitempty"`
	NewestEvent      *time.Time     `json:"newest_event,omitempty"`
}

// MetricsCalculator derives metrics from the event log.
type MetricsCalculator interface {
	Calculate(since time.Time) (*Metrics, error)
}

type metricsCalculator struct {
	eventLog EventLog
}

// NewMetricsCalculator creates a MetricsCalculator reading from eventLog.
func NewMetricsCalculator(eventLog EventLog) MetricsCalculator {
	return &metricsCalculator{eventLog: eventLog}
}

func (mc *metricsCalculator) Calculate(since time.Time) (*Metrics, error) {
	events, err := mc.eventLog.Read(EventFilter{Since: &since})
	if err != nil {
		return nil, fmt.Errorf("reading events for metrics: %w", err)
	}

	m := &Metrics{
		PassesByMode:     make(map[string]int),
		PassesByStrategy: make(map[string]int),
		FailuresByReason: make(map[string]int),
		EventCount:       len(events),
	}

	for i, event := range events {
		t := event.Time
		if i == 0 {
			m.OldestEvent = &t
		}
		m.NewestEvent = &t

		switch event.Type {
		case "schedule.completed":
			m.Passes++
			m.PassesByMode[stringField(event, "mode")]++
			m.PassesByStrategy[stringField(event, "strategy")]++
			m.EventsPlaced += intField(event, "placed")
			m.EventsKept += intField(event, "kept")
			m.LastPassID = stringField(event, "pass_id")
		case "schedule.failed":
			m.Failures++
			m.FailuresByReason[stringField(event, "reason")]++
		case "task.rejected":
			m.TasksRejected++
		}
	}
	return m, nil
}

func stringField(event Event, key string) string {
	s, _ := event.Data[key].(string)
	return s
}

// intField reads a count that was written as an int and decoded from JSON
// as a float64.
func intField(event Event, key string) int {
	switch v := event.Data[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return 0
}
