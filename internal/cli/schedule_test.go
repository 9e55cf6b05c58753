package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/valter-silva-au/blockplan/internal/core"
	"github.com/valter-silva-au/blockplan/internal/storage"
	"github.com/valter-silva-au/blockplan/pkg/models"
)

// testNow is a Monday morning, before the first zone opens.
var testNow = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

// storeTaskRepo exposes a TaskStore as a core.TaskRepository.
type storeTaskRepo struct {
	store storage.TaskStore
}

func (r storeTaskRepo) GetTasks() ([]models.Task, error) {
	if err := r.store.Load(); err != nil {
		return nil, err
	}
	entries, err := r.store.GetAllTasks()
	if err != nil {
		return nil, err
	}
	tasks := make([]models.Task, len(entries))
	for i, e := range entries {
		tasks[i] = e.Task
	}
	return tasks, nil
}

func (r storeTaskRepo) MarkScheduled(taskID string) error {
	if err := r.store.MarkScheduled(taskID, testNow); err != nil {
		return err
	}
	return r.store.Save()
}

// setupTestEnv points the package globals at fresh stores in a temp dir
// and restores them when the test ends.
func setupTestEnv(t *testing.T) {
	t.Helper()
	dir := t.TempDir()

	cal, err := storage.NewYAMLCalendar(dir, time.UTC)
	if err != nil {
		t.Fatalf("opening calendar: %v", err)
	}
	store := storage.NewTaskStore(dir)
	strategy, err := core.NewStrategy(core.StrategySequence, core.NewConflictDetector(), zerolog.Nop())
	if err != nil {
		t.Fatalf("creating strategy: %v", err)
	}
	clock := core.FixedClock{At: testNow}
	sched := core.NewScheduler(core.SchedulerDeps{
		Tasks:       storeTaskRepo{store: store},
		Calendar:    cal,
		Strategy:    strategy,
		Clock:       clock,
		Logger:      zerolog.Nop(),
		HorizonDays: 5,
	})

	origBase, origSched, origStore, origCal := BasePath, Scheduler, TaskStore, Calendar
	origClock, origHorizon := Clock, HorizonDays
	t.Cleanup(func() {
		BasePath, Scheduler, TaskStore, Calendar = origBase, origSched, origStore, origCal
		Clock, HorizonDays = origClock, origHorizon
		_ = cal.Close()
	})

	BasePath = dir
	Scheduler = sched
	TaskStore = store
	Calendar = cal
	Clock = clock
	HorizonDays = 5
}

// runCmd runs a command's RunE and captures what it writes.
func runCmd(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	defer cmd.SetOut(nil)
	err := cmd.RunE(cmd, args)
	return buf.String(), err
}

func morningZone() storage.ZoneEntry {
	return storage.ZoneEntry{
		Name:        "morning",
		Start:       "09:00",
		End:         "12:00",
		From:        "2026-03-02",
		Days:        "1-5",
		ZoneType:    models.ZoneDeep,
		EnergyLevel: models.EnergyHigh,
		MinDuration: 30,
	}
}

func deepTask(id string, minutes int) models.Task {
	return models.Task{
		ID:       id,
		Title:    "Task " + id,
		Duration: minutes,
		DueDate:  time.Date(2026, 3, 6, 18, 0, 0, 0, time.UTC),
		Priority: 1,
		Constraints: models.TaskConstraints{
			ZoneType:    models.ZoneDeep,
			EnergyLevel: models.EnergyHigh,
		},
	}
}

// seed stores the morning zone and the given tasks.
func seed(t *testing.T, tasks ...models.Task) {
	t.Helper()
	if err := Calendar.AddZone(morningZone()); err != nil {
		t.Fatalf("adding zone: %v", err)
	}
	for _, task := range tasks {
		if err := TaskStore.AddTask(task); err != nil {
			t.Fatalf("adding task: %v", err)
		}
	}
	if err := TaskStore.Save(); err != nil {
		t.Fatalf("saving tasks: %v", err)
	}
}

func resetScheduleFlags(t *testing.T) {
	t.Helper()
	origDry, origHorizon, origJSON, origRJSON := scheduleDryRun, scheduleHorizon, scheduleJSON, rescheduleJSON
	t.Cleanup(func() {
		scheduleDryRun, scheduleHorizon, scheduleJSON, rescheduleJSON = origDry, origHorizon, origJSON, origRJSON
	})
	scheduleDryRun, scheduleHorizon, scheduleJSON, rescheduleJSON = false, 0, false, false
}

func TestScheduleCmd_NilScheduler(t *testing.T) {
	orig := Scheduler
	defer func() { Scheduler = orig }()
	Scheduler = nil

	_, err := runCmd(t, scheduleCmd)
	if err == nil || !strings.Contains(err.Error(), "not initialized") {
		t.Fatalf("expected not initialized error, got %v", err)
	}
}

func TestScheduleCmd_PlacesStoredTasks(t *testing.T) {
	setupTestEnv(t)
	resetScheduleFlags(t)
	seed(t, deepTask("t1", 60))

	out, err := runCmd(t, scheduleCmd)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "placed: 1") {
		t.Errorf("output should report one placement, got:\n%s", out)
	}

	managed, err := Calendar.GetManagedEvents()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(managed) != 1 || managed[0].TaskID != "t1" {
		t.Fatalf("managed events = %+v, want one event for t1", managed)
	}
	if err := TaskStore.Load(); err != nil {
		t.Fatalf("reloading tasks: %v", err)
	}
	entry, err := TaskStore.GetTask("t1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if entry.ScheduledAt == "" {
		t.Error("t1 should be marked scheduled")
	}
}

func TestScheduleCmd_DryRunWritesNothing(t *testing.T) {
	setupTestEnv(t)
	resetScheduleFlags(t)
	seed(t, deepTask("t1", 60))
	scheduleDryRun = true

	out, err := runCmd(t, scheduleCmd)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, core.ModePreview) {
		t.Errorf("output should name the preview mode, got:\n%s", out)
	}
	managed, _ := Calendar.GetManagedEvents()
	if len(managed) != 0 {
		t.Errorf("dry run wrote %d managed events", len(managed))
	}
}

func TestScheduleCmd_JSONOutput(t *testing.T) {
	setupTestEnv(t)
	resetScheduleFlags(t)
	seed(t, deepTask("t1", 60), deepTask("t2", 30))
	scheduleJSON = true

	out, err := runCmd(t, scheduleCmd)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var result core.PassResult
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("output is not a pass result: %v\n%s", err, out)
	}
	if result.Mode != core.ModeFull {
		t.Errorf("Mode = %q, want %q", result.Mode, core.ModeFull)
	}
	if len(result.Events) != 2 {
		t.Errorf("got %d events, want 2", len(result.Events))
	}
}

func TestScheduleCmd_ReportsRejectedTasks(t *testing.T) {
	setupTestEnv(t)
	resetScheduleFlags(t)
	stale := deepTask("stale", 30)
	stale.DueDate = testNow.Add(-time.Hour)
	seed(t, deepTask("t1", 60), stale)

	out, err := runCmd(t, scheduleCmd)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "rejected stale") {
		t.Errorf("output should list the rejected task, got:\n%s", out)
	}
	if !strings.Contains(out, "Due date cannot be in the past") {
		t.Errorf("output should list the problem, got:\n%s", out)
	}
}

func TestScheduleCmd_PlacementFailureLeavesCalendar(t *testing.T) {
	setupTestEnv(t)
	resetScheduleFlags(t)
	seed(t, deepTask("huge", 240))

	_, err := runCmd(t, scheduleCmd)
	if err == nil {
		t.Fatal("expected error for a task longer than every zone")
	}
	if !strings.Contains(err.Error(), "could not be placed") {
		t.Errorf("unexpected error: %v", err)
	}
	managed, _ := Calendar.GetManagedEvents()
	if len(managed) != 0 {
		t.Errorf("failed pass wrote %d managed events", len(managed))
	}
}

func TestScheduleCmd_PlacementFailureReportsPartialPlan(t *testing.T) {
	setupTestEnv(t)
	resetScheduleFlags(t)
	huge := deepTask("huge", 240)
	huge.DueDate = time.Date(2026, 3, 6, 19, 0, 0, 0, time.UTC)
	seed(t, deepTask("t1", 60), huge)

	out, err := runCmd(t, scheduleCmd)
	if err == nil || !strings.Contains(err.Error(), "task huge could not be placed") {
		t.Fatalf("expected placement error for huge, got %v", err)
	}
	if !strings.Contains(out, "placed: 1") {
		t.Errorf("output should report the partial plan, got:\n%s", out)
	}
	managed, _ := Calendar.GetManagedEvents()
	if len(managed) != 0 {
		t.Errorf("failed pass wrote %d managed events", len(managed))
	}
}

func TestRescheduleCmd_UnknownTask(t *testing.T) {
	setupTestEnv(t)
	resetScheduleFlags(t)
	seed(t, deepTask("t1", 60))

	_, err := runCmd(t, rescheduleCmd, "missing")
	if err == nil || !strings.Contains(err.Error(), "task missing not found") {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestRescheduleCmd_KeepsUnaffectedEvents(t *testing.T) {
	setupTestEnv(t)
	resetScheduleFlags(t)
	seed(t, deepTask("t1", 60), deepTask("t2", 30))

	if _, err := runCmd(t, scheduleCmd); err != nil {
		t.Fatalf("initial schedule: %v", err)
	}
	before, _ := Calendar.GetManagedEvents()

	rescheduleJSON = true
	out, err := runCmd(t, rescheduleCmd, "t2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var result core.PassResult
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("output is not a pass result: %v\n%s", err, out)
	}
	if result.Mode != core.ModeIncremental {
		t.Errorf("Mode = %q, want %q", result.Mode, core.ModeIncremental)
	}
	if len(result.Kept) != 1 || result.Kept[0].TaskID != "t1" {
		t.Fatalf("Kept = %+v, want the t1 event", result.Kept)
	}

	var t1Before models.Event
	for _, e := range before {
		if e.TaskID == "t1" {
			t1Before = e
		}
	}
	if !result.Kept[0].Start.Equal(t1Before.Start) || !result.Kept[0].End.Equal(t1Before.End) {
		t.Errorf("t1 moved from %v-%v to %v-%v", t1Before.Start, t1Before.End, result.Kept[0].Start, result.Kept[0].End)
	}
}

func TestValidateCmd(t *testing.T) {
	setupTestEnv(t)
	seed(t, deepTask("t1", 60), deepTask("t2", 30))

	out, err := runCmd(t, validateCmd)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "2 tasks valid.") {
		t.Errorf("unexpected output: %q", out)
	}

	bad := deepTask("bad", 0)
	if err := TaskStore.AddTask(bad); err != nil {
		t.Fatalf("adding task: %v", err)
	}
	if err := TaskStore.Save(); err != nil {
		t.Fatalf("saving: %v", err)
	}

	out, err = runCmd(t, validateCmd)
	if err == nil || !strings.Contains(err.Error(), "1 of 3 tasks invalid") {
		t.Fatalf("expected invalid count error, got %v", err)
	}
	if !strings.Contains(out, "Task duration must be positive") {
		t.Errorf("output should list the problem, got:\n%s", out)
	}
}
