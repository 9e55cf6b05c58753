package models

import (
	"testing"
	"time"
)

func at(hour, minute int) time.Time {
	return time.Date(2026, 3, 2, hour, minute, 0, 0, time.UTC)
}

func meeting(id string, start, end time.Time) Event {
	return Event{ID: id, Title: id, Start: start, End: end, Type: EventFixed}
}

func TestNewTimeBlock_RejectsInvertedInterval(t *testing.T) {
	if _, err := NewTimeBlock(at(10, 0), at(9, 0), EventManaged, nil); err == nil {
		t.Error("expected error for end before start")
	}
	if _, err := NewTimeBlock(at(9, 0), at(9, 0), EventManaged, nil); err == nil {
		t.Error("expected error for empty interval")
	}
}

func TestNewTimeBlockZone_Validation(t *testing.T) {
	if _, err := NewTimeBlockZone(at(9, 0), at(12, 0), ZoneDeep, EnergyHigh, 0, 0, nil); err == nil {
		t.Error("expected error for non-positive minimum duration")
	}
	if _, err := NewTimeBlockZone(at(9, 0), at(12, 0), ZoneDeep, EnergyHigh, 30, -5, nil); err == nil {
		t.Error("expected error for negative buffer")
	}
	z, err := NewTimeBlockZone(at(9, 0), at(12, 0), ZoneDeep, EnergyHigh, 30, 10, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if z.Type != EventZone || z.DurationMinutes() != 180 {
		t.Errorf("unexpected zone %+v", z)
	}
}

func TestTimeBlock_GetConflicts(t *testing.T) {
	block, err := NewTimeBlock(at(9, 0), at(13, 0), EventManaged, []Event{
		meeting("a", at(9, 0), at(10, 0)),
		meeting("b", at(11, 0), at(12, 0)),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tests := []struct {
		name    string
		start   time.Time
		minutes int
		want    []string
	}{
		{"between events", at(10, 0), 60, nil},
		{"overlaps first", at(9, 30), 60, []string{"a"}},
		{"spans both", at(9, 30), 120, []string{"a", "b"}},
		{"touches second end", at(12, 0), 30, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := block.GetConflicts(tt.start, tt.minutes)
			if len(got) != len(tt.want) {
				t.Fatalf("got %d conflicts, want %d", len(got), len(tt.want))
			}
			for i, e := range got {
				if e.ID != tt.want[i] {
					t.Errorf("conflict %d = %s, want %s", i, e.ID, tt.want[i])
				}
			}
		})
	}
}

func TestTimeBlock_IsAvailable(t *testing.T) {
	block, _ := NewTimeBlock(at(9, 0), at(13, 0), EventManaged, []Event{meeting("a", at(10, 0), at(11, 0))})

	if !block.IsAvailable(at(9, 0), 60) {
		t.Error("09:00 for 60 min should be available")
	}
	if block.IsAvailable(at(9, 30), 60) {
		t.Error("09:30 for 60 min overlaps the meeting")
	}
	if block.IsAvailable(at(12, 30), 60) {
		t.Error("12:30 for 60 min runs past the block")
	}
	if block.IsAvailable(at(8, 30), 15) {
		t.Error("08:30 starts before the block")
	}
}

func TestTimeBlockZone_BufferAndMinimum(t *testing.T) {
	z, err := NewTimeBlockZone(at(9, 0), at(13, 0), ZoneDeep, EnergyHigh, 30, 15, []Event{meeting("a", at(11, 0), at(12, 0))})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := z.GetConflicts(at(10, 0), 50); len(got) != 1 {
		t.Errorf("expected padded candidate to hit the meeting, got %v", got)
	}
	if got := z.TimeBlock.GetConflicts(at(10, 0), 50); len(got) != 0 {
		t.Errorf("unpadded candidate should be clear, got %v", got)
	}
	if z.IsAvailable(at(9, 30), 15) {
		t.Error("duration below zone minimum accepted")
	}
	if !z.IsAvailable(at(9, 15), 30) {
		t.Error("09:15 for 30 min with 15 min padding should fit")
	}
	if z.IsAvailable(at(9, 0), 30) {
		t.Error("padding before the zone start should make 09:00 unavailable")
	}

	var b Block = z
	if s, e := b.Bounds(); !s.Equal(at(9, 0)) || !e.Equal(at(13, 0)) {
		t.Errorf("Bounds = %v-%v", s, e)
	}
}

func TestEvent_Overlaps(t *testing.T) {
	e := meeting("a", at(10, 0), at(11, 0))
	if e.Overlaps(at(11, 0), at(12, 0)) || e.Overlaps(at(9, 0), at(10, 0)) {
		t.Error("touching intervals must not overlap")
	}
	if !e.Overlaps(at(10, 59), at(12, 0)) {
		t.Error("expected overlap")
	}
	if e.Minutes() != 60 {
		t.Errorf("Minutes = %d", e.Minutes())
	}
}
