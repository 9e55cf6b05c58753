package models

import (
	"fmt"
	"strings"
	"time"
)

// ZoneType represents the kind of work a zone is reserved for.
type ZoneType string

const (
	ZoneDeep  ZoneType = "deep"
	ZoneLight ZoneType = "light"
	ZoneAdmin ZoneType = "admin"
)

// EnergyLevel represents the energy a task needs, or a zone offers.
type EnergyLevel string

const (
	EnergyHigh   EnergyLevel = "high"
	EnergyMedium EnergyLevel = "medium"
	EnergyLow    EnergyLevel = "low"
)

// ValidZoneTypes lists every accepted ZoneType.
var ValidZoneTypes = map[ZoneType]bool{
	ZoneDeep:  true,
	ZoneLight: true,
	ZoneAdmin: true,
}

// ValidEnergyLevels lists every accepted EnergyLevel.
var ValidEnergyLevels = map[EnergyLevel]bool{
	EnergyHigh:   true,
	EnergyMedium: true,
	EnergyLow:    true,
}

// TaskConstraints holds the placement rules for a task. Durations and
// buffers are in minutes.
type TaskConstraints struct {
	ZoneType         ZoneType    `yaml:"zone_type" json:"zone_type"`
	EnergyLevel      EnergyLevel `yaml:"energy_level" json:"energy_level"`
	IsSplittable     bool        `yaml:"splittable" json:"splittable"`
	MinChunkDuration int         `yaml:"min_chunk_duration" json:"min_chunk_duration"`
	MaxSplitCount    int         `yaml:"max_split_count" json:"max_split_count"`
	RequiredBuffer   int         `yaml:"required_buffer" json:"required_buffer"`
	Dependencies     []string    `yaml:"dependencies,omitempty" json:"dependencies,omitempty"`
}

// Task is a unit of work to be placed into a zone. A task is treated as
// immutable for the duration of one scheduling pass.
type Task struct {
	ID             string          `yaml:"id" json:"id"`
	Title          string          `yaml:"title" json:"title"`
	Duration       int             `yaml:"duration" json:"duration"`
	DueDate        time.Time       `yaml:"due_date" json:"due_date"`
	Priority       int             `yaml:"priority" json:"priority"`
	ProjectID      string          `yaml:"project_id" json:"project_id"`
	SequenceNumber int             `yaml:"sequence_number" json:"sequence_number"`
	Constraints    TaskConstraints `yaml:"constraints" json:"constraints"`
}

// ValidationError lists the problems that make a task, or a requested
// split of it, structurally invalid.
type ValidationError struct {
	TaskID   string
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("task %s is invalid: %s", e.TaskID, strings.Join(e.Problems, "; "))
}

// Validate reports every structural problem with the task. An empty
// result means the task can be scheduled. now is the reference time for
// the due date check.
func (t Task) Validate(now time.Time) []string {
	var problems []string

	if t.Duration <= 0 {
		problems = append(problems, "Task duration must be positive")
	}
	if !t.DueDate.After(now) {
		problems = append(problems, "Due date cannot be in the past")
	}
	if strings.TrimSpace(t.Title) == "" {
		problems = append(problems, "Task title must not be empty")
	}
	if t.Priority <= 0 {
		problems = append(problems, "Task priority must be positive")
	}

	c := t.Constraints
	if c.IsSplittable {
		if c.MinChunkDuration <= 0 {
			problems = append(problems, "Minimum chunk duration must be positive for splittable tasks")
		}
		if c.MaxSplitCount < 2 {
			problems = append(problems, "Maximum split count must be at least 2 for splittable tasks")
		}
		total := c.MinChunkDuration * c.MaxSplitCount
		if total > t.Duration {
			problems = append(problems, fmt.Sprintf(
				"Total minimum chunk duration (%d min) exceeds task duration (%d min)",
				total, t.Duration,
			))
		}
	}

	return problems
}

// MinimumDuration returns the smallest unit of the task that can be
// placed on its own.
func (t Task) MinimumDuration() int {
	if t.Constraints.IsSplittable {
		return t.Constraints.MinChunkDuration
	}
	return t.Duration
}

// ChunkID returns the ID of the n-th chunk (1-based) of the task with the
// given ID.
func ChunkID(taskID string, n int) string {
	return fmt.Sprintf("%s_chunk_%d", taskID, n)
}

// Split divides the task into len(sizes) chunks. Each chunk keeps the
// zone, energy and buffer constraints, cannot be split again, and depends
// on the chunk before it. The first chunk inherits the task's own
// dependencies.
func (t Task) Split(sizes []int) ([]Task, error) {
	c := t.Constraints
	var problems []string

	if !c.IsSplittable {
		problems = append(problems, "Task is not splittable")
	}
	if len(sizes) == 0 {
		problems = append(problems, "At least one chunk size is required")
	}
	if len(sizes) > c.MaxSplitCount {
		problems = append(problems, fmt.Sprintf("Exceeds maximum split count of %d", c.MaxSplitCount))
	}
	sum := 0
	tooSmall := false
	for _, size := range sizes {
		sum += size
		if size < c.MinChunkDuration || size <= 0 {
			tooSmall = true
		}
	}
	if sum != t.Duration {
		problems = append(problems, fmt.Sprintf(
			"Sum of chunk sizes (%d) must equal task duration (%d)", sum, t.Duration,
		))
	}
	if tooSmall {
		problems = append(problems, fmt.Sprintf("All chunks must be at least %d minutes", c.MinChunkDuration))
	}
	if len(problems) > 0 {
		return nil, &ValidationError{TaskID: t.ID, Problems: problems}
	}

	chunks := make([]Task, 0, len(sizes))
	for i, size := range sizes {
		n := i + 1

		var deps []string
		if n == 1 {
			deps = append(deps, c.Dependencies...)
		} else {
			deps = []string{ChunkID(t.ID, n-1)}
		}

		chunks = append(chunks, Task{
			ID:             ChunkID(t.ID, n),
			Title:          fmt.Sprintf("%s (Part %d/%d)", t.Title, n, len(sizes)),
			Duration:       size,
			DueDate:        t.DueDate,
			Priority:       t.Priority,
			ProjectID:      t.ProjectID,
			SequenceNumber: t.SequenceNumber,
			Constraints: TaskConstraints{
				ZoneType:         c.ZoneType,
				EnergyLevel:      c.EnergyLevel,
				IsSplittable:     false,
				MinChunkDuration: c.MinChunkDuration,
				MaxSplitCount:    1,
				RequiredBuffer:   c.RequiredBuffer,
				Dependencies:     deps,
			},
		})
	}

	return chunks, nil
}
