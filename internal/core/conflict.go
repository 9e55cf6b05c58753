package core

import (
	"fmt"
	"time"

	"github.com/valter-silva-au/blockplan/pkg/models"
)

// SlotStep is the granularity of the available-slot scan.
const SlotStep = 15 * time.Minute

// SchedulingConflict describes why a task cannot start at a proposed time
// inside a block.
type SchedulingConflict struct {
	Task              models.Task
	ConflictingEvents []models.Event
	ProposedStart     time.Time
	Message           string
}

func (c *SchedulingConflict) Error() string {
	return fmt.Sprintf("task %s at %s: %s", c.Task.ID, c.ProposedStart.Format(time.RFC3339), c.Message)
}

// ConflictDetector answers placement questions for a task against a
// TimeBlock or a TimeBlockZone.
type ConflictDetector interface {
	FindConflicts(task models.Task, proposedStart time.Time, block models.Block) *SchedulingConflict
	FindAvailableSlot(task models.Task, block models.Block, startFrom time.Time) (time.Time, bool)
}

// conflictDetector holds no state; every answer depends only on its
// arguments.
type conflictDetector struct{}

// NewConflictDetector creates a new ConflictDetector.
func NewConflictDetector() ConflictDetector {
	return &conflictDetector{}
}

// FindConflicts checks a proposal against the block in a fixed order:
// bounds and direct overlap, then buffers, then zone compatibility. The
// first rule that fires is reported. A nil result means the task can be
// placed at proposedStart.
func (d *conflictDetector) FindConflicts(task models.Task, proposedStart time.Time, block models.Block) *SchedulingConflict {
	proposedEnd := proposedStart.Add(minutes(task.Duration))
	blockStart, blockEnd := block.Bounds()

	conflict := func(msg string, events []models.Event) *SchedulingConflict {
		return &SchedulingConflict{
			Task:              task,
			ConflictingEvents: events,
			ProposedStart:     proposedStart,
			Message:           msg,
		}
	}

	if proposedStart.Before(blockStart) || proposedEnd.After(blockEnd) {
		return conflict("Proposed slot falls outside the time block", nil)
	}

	if direct := block.GetConflicts(proposedStart, task.Duration); len(direct) > 0 {
		return conflict("Time slot has conflicting events", direct)
	}

	zone, isZone := block.(*models.TimeBlockZone)
	zoneBuffer := 0
	if isZone {
		zoneBuffer = zone.BufferRequired
	}

	var violating []models.Event
	worst := 0
	for _, e := range block.BlockEvents() {
		eff := effectiveBuffer(task.Constraints.RequiredBuffer, zoneBuffer, e.BufferRequired)
		gap := minutes(eff)
		before := !e.End.After(proposedStart) && proposedStart.Sub(e.End) < gap
		after := !e.Start.Before(proposedEnd) && e.Start.Sub(proposedEnd) < gap
		if before || after {
			violating = append(violating, e)
			worst = max(worst, eff)
		}
	}
	if len(violating) > 0 {
		return conflict(fmt.Sprintf("Buffer requirement of %d minutes not met", worst), violating)
	}

	if !isZone {
		return nil
	}
	if task.Constraints.ZoneType != zone.ZoneType {
		return conflict(fmt.Sprintf("Task requires %s zone", task.Constraints.ZoneType), nil)
	}
	if task.Constraints.EnergyLevel != zone.EnergyLevel {
		return conflict(fmt.Sprintf("Task requires %s energy level", task.Constraints.EnergyLevel), nil)
	}
	if task.MinimumDuration() < zone.MinDuration {
		return conflict(fmt.Sprintf("Task duration below zone minimum (%d min)", zone.MinDuration), nil)
	}
	return nil
}

// FindAvailableSlot scans the block in SlotStep increments from
// max(startFrom, block start) and returns the first start with no
// conflict that also ends by the task's due date.
func (d *conflictDetector) FindAvailableSlot(task models.Task, block models.Block, startFrom time.Time) (time.Time, bool) {
	blockStart, blockEnd := block.Bounds()
	from := laterOf(startFrom, blockStart)
	limit := blockEnd
	if !task.DueDate.IsZero() && task.DueDate.Before(limit) {
		limit = task.DueDate
	}

	length := minutes(task.Duration)
	for t := from; t.Before(limit); t = t.Add(SlotStep) {
		end := t.Add(length)
		if end.After(blockEnd) || (!task.DueDate.IsZero() && end.After(task.DueDate)) {
			break
		}
		if d.FindConflicts(task, t, block) == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func effectiveBuffer(buffers ...int) int {
	eff := 0
	for _, b := range buffers {
		eff = max(eff, b)
	}
	return eff
}

func minutes(n int) time.Duration {
	return time.Duration(n) * time.Minute
}

func laterOf(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}
