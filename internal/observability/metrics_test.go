package observability

import (
	"testing"
	"time"
)

func completed(at time.Time, passID, mode string, placed, kept int) Event {
	return Event{Time: at, Type: "schedule.completed", Data: map[string]any{
		"pass_id": passID, "mode": mode, "strategy": "sequence", "placed": placed, "kept": kept,
	}}
}

func TestMetricsCalculator_Calculate(t *testing.T) {
	log := newTestEventLog(t)
	writeAll(t, log,
		completed(base, "p1", "full", 4, 0),
		Event{Time: base.Add(time.Minute), Type: "task.rejected", Level: LevelWarn, Data: map[string]any{"pass_id": "p2", "task_id": "t9"}},
		Event{Time: base.Add(2 * time.Minute), Type: "schedule.failed", Level: LevelWarn, Data: map[string]any{"pass_id": "p2", "reason": "deadlock"}},
		completed(base.Add(3*time.Minute), "p3", "incremental", 1, 3),
		Event{Time: base.Add(4 * time.Minute), Type: "schedule.failed", Level: LevelWarn, Data: map[string]any{"pass_id": "p4", "reason": "placement"}},
	)

	m, err := NewMetricsCalculator(log).Calculate(time.Time{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if m.Passes != 2 || m.Failures != 2 || m.TasksRejected != 1 {
		t.Errorf("passes=%d failures=%d rejected=%d", m.Passes, m.Failures, m.TasksRejected)
	}
	if m.EventsPlaced != 5 || m.EventsKept != 3 {
		t.Errorf("placed=%d kept=%d", m.EventsPlaced, m.EventsKept)
	}
	if m.PassesByMode["full"] != 1 || m.PassesByMode["incremental"] != 1 {
		t.Errorf("PassesByMode = %v", m.PassesByMode)
	}
	if m.PassesByStrategy["sequence"] != 2 {
		t.Errorf("PassesByStrategy = %v", m.PassesByStrategy)
	}
	if m.FailuresByReason["deadlock"] != 1 || m.FailuresByReason["placement"] != 1 {
		t.Errorf("FailuresByReason = %v", m.FailuresByReason)
	}
	if m.LastPassID != "p3" {
		t.Errorf("LastPassID = %q", m.LastPassID)
	}
	if m.EventCount != 5 {
		t.Errorf("EventCount = %d", m.EventCount)
	}
	if m.OldestEvent == nil || !m.OldestEvent.Equal(base) {
		t.Errorf("OldestEvent = %v", m.OldestEvent)
	}
	if m.NewestEvent == nil || !m.NewestEvent.Equal(base.Add(4*time.Minute)) {
		t.Errorf("NewestEvent = %v", m.NewestEvent)
	}
}

func TestMetricsCalculator_EmptyLog(t *testing.T) {
	m, err := NewMetricsCalculator(newTestEventLog(t)).Calculate(time.Time{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Passes != 0 || m.EventCount != 0 || m.OldestEvent != nil || m.NewestEvent != nil {
		t.Errorf("expected zero metrics, got %+v", m)
	}
}

func TestMetricsCalculator_FiltersBySince(t *testing.T) {
	log := newTestEventLog(t)
	writeAll(t, log,
		completed(base, "old", "full", 2, 0),
		completed(base.Add(48*time.Hour), "new", "full", 3, 0),
	)

	m, err := NewMetricsCalculator(log).Calculate(base.Add(24 * time.Hour))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Passes != 1 || m.EventsPlaced != 3 || m.LastPassID != "new" {
		t.Errorf("unexpected metrics %+v", m)
	}
}
