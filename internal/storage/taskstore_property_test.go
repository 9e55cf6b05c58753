package storage

import (
	"fmt"
	"os"
	"testing"

	"pgregory.net/rapid"
)

// Feature: blockplan, Property: Task store preserves input order
// For any set of distinct task IDs added in some order, with an arbitrary
// subset marked scheduled, a save followed by a load SHALL return the tasks
// in the same order and SHALL report ScheduledAt for exactly that subset.
func TestProperty_TaskStorePreservesOrder(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		dir, err := os.MkdirTemp("", "blockplan-tasks-*")
		if err != nil {
			rt.Fatal(err)
		}
		defer os.RemoveAll(dir)

		n := rapid.IntRange(0, 12).Draw(rt, "n")
		perm := rapid.Permutation(makeRange(n)).Draw(rt, "order")
		marked := make(map[string]bool)

		s := NewTaskStore(dir)
		for _, i := range perm {
			id := fmt.Sprintf("task-%02d", i)
			if err := s.AddTask(sampleTask(id)); err != nil {
				rt.Fatalf("add %s: %v", id, err)
			}
			if rapid.Bool().Draw(rt, "mark-"+id) {
				marked[id] = true
				if err := s.MarkScheduled(id, refTime); err != nil {
					rt.Fatalf("mark %s: %v", id, err)
				}
			}
		}
		if err := s.Save(); err != nil {
			rt.Fatalf("save: %v", err)
		}

		reloaded := NewTaskStore(dir)
		if err := reloaded.Load(); err != nil {
			rt.Fatalf("load: %v", err)
		}
		all, _ := reloaded.GetAllTasks()
		if len(all) != n {
			rt.Fatalf("got %d tasks, want %d", len(all), n)
		}
		for pos, e := range all {
			want := fmt.Sprintf("task-%02d", perm[pos])
			if e.ID != want {
				rt.Fatalf("position %d holds %s, want %s", pos, e.ID, want)
			}
			if (e.ScheduledAt != "") != marked[e.ID] {
				rt.Fatalf("task %s ScheduledAt=%q, marked=%v", e.ID, e.ScheduledAt, marked[e.ID])
			}
		}
	})
}

func makeRange(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}
