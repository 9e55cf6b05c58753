package models

import (
	"fmt"
	"time"
)

// EventType distinguishes externally owned calendar entries from the ones
// the scheduler produces.
type EventType string

const (
	// EventFixed events come from an external calendar and are read-only.
	EventFixed EventType = "fixed"
	// EventManaged events are scheduler output and are replaced on every
	// full reschedule.
	EventManaged EventType = "managed"
	// EventZone marks a block that represents a zone rather than an event.
	EventZone EventType = "zone"
)

// Event is a concrete calendar entry.
type Event struct {
	ID             string    `yaml:"id" json:"id"`
	TaskID         string    `yaml:"task_id,omitempty" json:"task_id,omitempty"`
	Start          time.Time `yaml:"start" json:"start"`
	End            time.Time `yaml:"end" json:"end"`
	Title          string    `yaml:"title" json:"title"`
	Type           EventType `yaml:"type" json:"type"`
	BufferRequired int       `yaml:"buffer_required,omitempty" json:"buffer_required,omitempty"`
	CalendarID     string    `yaml:"calendar_id,omitempty" json:"calendar_id,omitempty"`
}

// Minutes returns the length of the event in whole minutes.
func (e Event) Minutes() int {
	return int(e.End.Sub(e.Start) / time.Minute)
}

// Overlaps reports whether the event intersects the half-open interval
// [start, end). Touching endpoints do not overlap.
func (e Event) Overlaps(start, end time.Time) bool {
	return start.Before(e.End) && end.After(e.Start)
}

// Block is implemented by TimeBlock and TimeBlockZone.
type Block interface {
	Bounds() (start, end time.Time)
	BlockEvents() []Event
	GetConflicts(start time.Time, minutes int) []Event
	IsAvailable(start time.Time, minutes int) bool
}

// TimeBlock is a bounded interval holding an ordered list of events.
type TimeBlock struct {
	Start  time.Time `yaml:"start" json:"start"`
	End    time.Time `yaml:"end" json:"end"`
	Type   EventType `yaml:"type" json:"type"`
	Events []Event   `yaml:"events,omitempty" json:"events,omitempty"`
}

// NewTimeBlock returns a TimeBlock, or an error if start is not before end.
func NewTimeBlock(start, end time.Time, blockType EventType, events []Event) (*TimeBlock, error) {
	if !start.Before(end) {
		return nil, fmt.Errorf("start time must be before end time")
	}
	return &TimeBlock{Start: start, End: end, Type: blockType, Events: events}, nil
}

// Bounds returns the block interval.
func (b *TimeBlock) Bounds() (time.Time, time.Time) { return b.Start, b.End }

// BlockEvents returns the events held by the block.
func (b *TimeBlock) BlockEvents() []Event { return b.Events }

// DurationMinutes returns the block length in whole minutes.
func (b *TimeBlock) DurationMinutes() int {
	return int(b.End.Sub(b.Start) / time.Minute)
}

// GetConflicts returns the events overlapping [start, start+minutes).
func (b *TimeBlock) GetConflicts(start time.Time, minutes int) []Event {
	end := start.Add(time.Duration(minutes) * time.Minute)
	var conflicts []Event
	for _, e := range b.Events {
		if e.Overlaps(start, end) {
			conflicts = append(conflicts, e)
		}
	}
	return conflicts
}

// IsAvailable reports whether [start, start+minutes) lies inside the
// block and overlaps none of its events.
func (b *TimeBlock) IsAvailable(start time.Time, minutes int) bool {
	if start.Before(b.Start) || !start.Before(b.End) {
		return false
	}
	end := start.Add(time.Duration(minutes) * time.Minute)
	if end.After(b.End) {
		return false
	}
	return len(b.GetConflicts(start, minutes)) == 0
}

// TimeBlockZone is a TimeBlock reserved for one kind of work at one
// energy level. Its constraints add to the constraints of the tasks
// placed in it.
type TimeBlockZone struct {
	TimeBlock      `yaml:",inline"`
	Name           string      `yaml:"name,omitempty" json:"name,omitempty"`
	ZoneType       ZoneType    `yaml:"zone_type" json:"zone_type"`
	EnergyLevel    EnergyLevel `yaml:"energy_level" json:"energy_level"`
	MinDuration    int         `yaml:"min_duration" json:"min_duration"`
	BufferRequired int         `yaml:"buffer_required" json:"buffer_required"`
	// Days is a cron day-of-week field ("*", "MON-FRI", "1,3,5") naming the
	// days a template applies to. Empty means every day.
	Days string `yaml:"days,omitempty" json:"days,omitempty"`
}

// NewTimeBlockZone returns a zone, validating its interval, minimum
// duration and buffer.
func NewTimeBlockZone(start, end time.Time, zoneType ZoneType, energy EnergyLevel, minDuration, buffer int, events []Event) (*TimeBlockZone, error) {
	tb, err := NewTimeBlock(start, end, EventZone, events)
	if err != nil {
		return nil, err
	}
	if minDuration <= 0 {
		return nil, fmt.Errorf("minimum duration must be positive")
	}
	if buffer < 0 {
		return nil, fmt.Errorf("buffer time cannot be negative")
	}
	return &TimeBlockZone{
		TimeBlock:      *tb,
		ZoneType:       zoneType,
		EnergyLevel:    energy,
		MinDuration:    minDuration,
		BufferRequired: buffer,
	}, nil
}

func (z *TimeBlockZone) pad(start time.Time, minutes int) (time.Time, int) {
	return start.Add(-time.Duration(z.BufferRequired) * time.Minute), minutes + 2*z.BufferRequired
}

// GetConflicts returns the events overlapping the candidate widened by the
// zone buffer on both sides.
func (z *TimeBlockZone) GetConflicts(start time.Time, minutes int) []Event {
	s, m := z.pad(start, minutes)
	return z.TimeBlock.GetConflicts(s, m)
}

// IsAvailable rejects durations below the zone minimum, then checks the
// buffer-widened candidate against the block. The widened interval must
// itself fit inside the zone.
func (z *TimeBlockZone) IsAvailable(start time.Time, minutes int) bool {
	if minutes < z.MinDuration {
		return false
	}
	s, m := z.pad(start, minutes)
	return z.TimeBlock.IsAvailable(s, m)
}
