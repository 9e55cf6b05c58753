package observability

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func newTestEventLog(t *testing.T) EventLog {
	t.Helper()
	log, err := NewJSONLEventLog(filepath.Join(t.TempDir(), "logs", "events.jsonl"))
	if err != nil {
		t.Fatalf("creating event log: %v", err)
	}
	t.Cleanup(func() { _ = log.Close() })
	return log
}

func writeAll(t *testing.T, log EventLog, events ...Event) {
	t.Helper()
	for _, e := range events {
		if err := log.Write(e); err != nil {
			t.Fatalf("writing event: %v", err)
		}
	}
}

var base = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

func TestEventLog_WriteAndRead(t *testing.T) {
	log := newTestEventLog(t)
	writeAll(t, log,
		Event{Time: base, Type: "schedule.completed", Message: "pass done", Data: map[string]any{"pass_id": "p1", "placed": 3}},
		Event{Time: base.Add(time.Second), Level: LevelWarn, Type: "schedule.failed", Message: "pass failed"},
	)

	result, err := log.Read(EventFilter{})
	if err != nil {
		t.Fatalf("reading events: %v", err)
	}
	if len(result) != 2 {
		t.Fatalf("expected 2 events, got %d", len(result))
	}
	if result[0].Level != LevelInfo {
		t.Errorf("expected default level INFO, got %s", result[0].Level)
	}
	if result[0].Data["placed"] != float64(3) {
		t.Errorf("placed = %v", result[0].Data["placed"])
	}
	if result[1].Level != LevelWarn || result[1].Message != "pass failed" {
		t.Errorf("unexpected second event %+v", result[1])
	}
}

func TestEventLog_StampsMissingTime(t *testing.T) {
	log := newTestEventLog(t)
	before := time.Now().UTC().Add(-time.Second)
	writeAll(t, log, Event{Type: "schedule.completed"})

	result, _ := log.Read(EventFilter{})
	if len(result) != 1 || result[0].Time.Before(before) {
		t.Errorf("expected a stamped time, got %+v", result)
	}
}

func TestEventLog_Filters(t *testing.T) {
	log := newTestEventLog(t)
	writeAll(t, log,
		Event{Time: base, Type: "schedule.completed", Data: map[string]any{"pass_id": "p1"}},
		Event{Time: base.Add(time.Hour), Type: "task.rejected", Level: LevelWarn, Data: map[string]any{"pass_id": "p2"}},
		Event{Time: base.Add(2 * time.Hour), Type: "schedule.failed", Level: LevelWarn, Data: map[string]any{"pass_id": "p2"}},
		Event{Time: base.Add(3 * time.Hour), Type: "schedule.completed", Data: map[string]any{"pass_id": "p3"}},
	)
	since := base.Add(30 * time.Minute)
	until := base.Add(2*time.Hour + 30*time.Minute)

	tests := []struct {
		name   string
		filter EventFilter
		want   int
	}{
		{"type", EventFilter{Type: "schedule.completed"}, 2},
		{"prefix", EventFilter{TypePrefix: "schedule."}, 3},
		{"level", EventFilter{Level: LevelWarn}, 2},
		{"pass", EventFilter{PassID: "p2"}, 2},
		{"range", EventFilter{Since: &since, Until: &until}, 2},
		{"combined", EventFilter{PassID: "p2", TypePrefix: "schedule."}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := log.Read(tt.filter)
			if err != nil {
				t.Fatalf("reading events: %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("got %d events, want %d", len(got), tt.want)
			}
		})
	}
}

func TestEventLog_SkipsMalformedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	content := `{"time":"2026-03-02T08:00:00Z","level":"INFO","type":"schedule.completed","msg":"ok"}
not json

{"time":"2026-03-02T09:00:00Z","level":"INFO","type":"task.rejected","msg":"bad task"}
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	log, err := NewJSONLEventLog(path)
	if err != nil {
		t.Fatalf("creating event log: %v", err)
	}
	defer log.Close()

	result, err := log.Read(EventFilter{})
	if err != nil {
		t.Fatalf("reading events: %v", err)
	}
	if len(result) != 2 {
		t.Errorf("expected 2 events, got %d", len(result))
	}
}

func TestEventLog_WriteAfterClose(t *testing.T) {
	log, err := NewJSONLEventLog(filepath.Join(t.TempDir(), "events.jsonl"))
	if err != nil {
		t.Fatalf("creating event log: %v", err)
	}
	if err := log.Close(); err != nil {
		t.Fatalf("closing: %v", err)
	}
	if err := log.Close(); err != nil {
		t.Errorf("second close: %v", err)
	}
	if err := log.Write(Event{Type: "schedule.completed"}); err == nil {
		t.Error("expected error writing to a closed log")
	}
}

func TestEventLog_ConcurrentWrites(t *testing.T) {
	log := newTestEventLog(t)

	const goroutines = 8
	const perGoroutine = 25

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for g := 0; g < goroutines; g++ {
		go func(id int) {
			defer wg.Done()
			for i := 0; i < perGoroutine; i++ {
				if err := log.Write(Event{Type: "task.rejected", Data: map[string]any{"worker": id, "index": i}}); err != nil {
					t.Errorf("concurrent write error: %v", err)
				}
			}
		}(g)
	}
	wg.Wait()

	result, err := log.Read(EventFilter{})
	if err != nil {
		t.Fatalf("reading events: %v", err)
	}
	if len(result) != goroutines*perGoroutine {
		t.Errorf("expected %d events, got %d", goroutines*perGoroutine, len(result))
	}
}
