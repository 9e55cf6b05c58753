package core

import (
	"fmt"
	"sort"
	"strings"
)

// PlacementError aborts a pass when a task cannot be placed in any zone.
// Unscheduled lists every task ID that was still waiting, the failing task
// included.
type PlacementError struct {
	TaskID      string
	Reason      string
	Unscheduled []string
}

func (e *PlacementError) Error() string {
	return fmt.Sprintf("placing task %s: %s (unscheduled: %s)", e.TaskID, e.Reason, strings.Join(e.Unscheduled, ", "))
}

// DependencyDeadlockError aborts a pass when no remaining task has all of
// its dependencies scheduled. Unmet maps each remaining task ID to the
// dependencies it is still waiting on.
type DependencyDeadlockError struct {
	Unmet map[string][]string
}

func (e *DependencyDeadlockError) Error() string {
	ids := make([]string, 0, len(e.Unmet))
	for id := range e.Unmet {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, fmt.Sprintf("%s waits on [%s]", id, strings.Join(e.Unmet[id], ", ")))
	}
	return "dependency deadlock: " + strings.Join(parts, "; ")
}

// RepositoryError wraps a failure reported by a task or calendar
// repository. The adapter's error is kept unchanged for errors.Is.
type RepositoryError struct {
	Op  string
	Err error
}

func (e *RepositoryError) Error() string {
	return fmt.Sprintf("repository %s: %v", e.Op, e.Err)
}

func (e *RepositoryError) Unwrap() error { return e.Err }
