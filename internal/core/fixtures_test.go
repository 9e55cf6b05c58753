package core

import (
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/valter-silva-au/blockplan/pkg/models"
)

// monday is the reference day for every scheduling test.
var monday = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

// at returns monday plus the given day offset, hour, and minute.
func at(day, hour, minute int) time.Time {
	return monday.AddDate(0, 0, day).Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

func newZone(t *testing.T, start, end time.Time, zt models.ZoneType, el models.EnergyLevel, minDuration, buffer int, events ...models.Event) *models.TimeBlockZone {
	t.Helper()
	z, err := models.NewTimeBlockZone(start, end, zt, el, minDuration, buffer, events)
	if err != nil {
		t.Fatalf("NewTimeBlockZone: %v", err)
	}
	return z
}

func deepZone(t *testing.T, start, end time.Time, events ...models.Event) *models.TimeBlockZone {
	t.Helper()
	return newZone(t, start, end, models.ZoneDeep, models.EnergyHigh, 30, 0, events...)
}

// template returns a zone template suitable for PlanRequest.Zones.
func template(start, end time.Time, zt models.ZoneType, el models.EnergyLevel, minDuration, buffer int) models.TimeBlockZone {
	return models.TimeBlockZone{
		TimeBlock:      models.TimeBlock{Start: start, End: end, Type: models.EventZone},
		ZoneType:       zt,
		EnergyLevel:    el,
		MinDuration:    minDuration,
		BufferRequired: buffer,
	}
}

func deepTask(id string, duration, buffer int) models.Task {
	return models.Task{
		ID:        id,
		Title:     "Task " + id,
		Duration:  duration,
		DueDate:   at(4, 18, 0),
		Priority:  1,
		ProjectID: "proj1",
		Constraints: models.TaskConstraints{
			ZoneType:       models.ZoneDeep,
			EnergyLevel:    models.EnergyHigh,
			RequiredBuffer: buffer,
		},
	}
}

func fixedEvent(id string, start, end time.Time) models.Event {
	return models.Event{ID: id, Title: "Meeting " + id, Start: start, End: end, Type: models.EventFixed}
}

func newTestStrategy(t *testing.T, name string) SchedulingStrategy {
	t.Helper()
	s, err := NewStrategy(name, NewConflictDetector(), zerolog.Nop())
	if err != nil {
		t.Fatalf("NewStrategy(%q): %v", name, err)
	}
	return s
}

func assertSpan(t *testing.T, e models.Event, start, end time.Time) {
	t.Helper()
	if !e.Start.Equal(start) || !e.End.Equal(end) {
		t.Errorf("event %s: got %s-%s, want %s-%s", e.ID,
			e.Start.Format("Mon 15:04"), e.End.Format("Mon 15:04"),
			start.Format("Mon 15:04"), end.Format("Mon 15:04"))
	}
}

// fakeEventLogger records logged events.
type fakeEventLogger struct {
	events []loggedEvent
}

type loggedEvent struct {
	Type string
	Data map[string]any
}

func (l *fakeEventLogger) LogEvent(eventType string, data map[string]any) error {
	l.events = append(l.events, loggedEvent{Type: eventType, Data: data})
	return nil
}

func (l *fakeEventLogger) ofType(eventType string) []loggedEvent {
	var out []loggedEvent
	for _, e := range l.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}
