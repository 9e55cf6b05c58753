package core

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/valter-silva-au/blockplan/pkg/models"
)

// TaskRepository supplies the tasks to plan and records which were placed.
type TaskRepository interface {
	GetTasks() ([]models.Task, error)
	MarkScheduled(taskID string) error
}

// CalendarRepository is the source of truth for zones and events.
// GetEvents returns fixed events only.
type CalendarRepository interface {
	GetEvents(start, end time.Time) ([]models.Event, error)
	GetZones() ([]models.TimeBlockZone, error)
	CreateEvent(event models.Event) (string, error)
	RemoveManagedEvents() error
}

// ManagedEventSource is implemented by calendar repositories that can
// return the managed events persisted by an earlier process. The
// scheduler uses it to seed an incremental pass when it has no plan of
// its own in memory.
type ManagedEventSource interface {
	GetManagedEvents() ([]models.Event, error)
}

// Pass modes reported in PassResult.Mode.
const (
	ModeFull        = "full"
	ModeIncremental = "incremental"
	ModePreview     = "preview"
)

// RescheduleOptions narrows a Reschedule call. With no AffectedTaskIDs the
// pass is a full one. FixedEvents, when non-nil, replaces the fixed events
// read from the calendar repository.
type RescheduleOptions struct {
	AffectedTaskIDs []string
	FixedEvents     []models.Event
}

// PassResult reports the outcome of one pass. Events holds the managed
// events created by the pass; Kept holds managed events carried over
// unchanged by an incremental pass. Rejected maps each task that failed
// validation to its problems.
type PassResult struct {
	PassID   string
	Mode     string
	Strategy string
	Now      time.Time
	Events   []models.Event
	Kept     []models.Event
	Rejected map[string][]string
}

// Scheduler runs scheduling passes against the repositories.
type Scheduler interface {
	// ScheduleTasks replans every stored task over the horizon. A
	// non-positive horizon uses the configured default.
	ScheduleTasks(horizonDays int) (*PassResult, error)
	// Reschedule replans the given tasks. When opts names affected tasks
	// only those and their transitive dependents move.
	Reschedule(tasks []models.Task, opts RescheduleOptions) (*PassResult, error)
	// Preview runs a full pass over the stored tasks without persisting.
	Preview(horizonDays int) (*PassResult, error)
}

// SchedulerDeps holds the collaborators of a Scheduler. Clock defaults to
// SystemClock, Events may be nil, and a zero Logger discards output.
type SchedulerDeps struct {
	Tasks       TaskRepository
	Calendar    CalendarRepository
	Strategy    SchedulingStrategy
	Clock       Clock
	Events      EventLogger
	Logger      zerolog.Logger
	HorizonDays int
}

type scheduler struct {
	tasks    TaskRepository
	calendar CalendarRepository
	strategy SchedulingStrategy
	clock    Clock
	events   EventLogger
	logger   zerolog.Logger
	horizon  int

	lastPlan []models.Event
	havePlan bool
}

// NewScheduler creates a Scheduler from its collaborators.
func NewScheduler(deps SchedulerDeps) Scheduler {
	clock := deps.Clock
	if clock == nil {
		clock = SystemClock{}
	}
	horizon := deps.HorizonDays
	if horizon <= 0 {
		horizon = DefaultHorizonDays
	}
	return &scheduler{
		tasks:    deps.Tasks,
		calendar: deps.Calendar,
		strategy: deps.Strategy,
		clock:    clock,
		events:   deps.Events,
		logger:   deps.Logger,
		horizon:  horizon,
	}
}

func (s *scheduler) ScheduleTasks(horizonDays int) (*PassResult, error) {
	tasks, err := s.tasks.GetTasks()
	if err != nil {
		return nil, &RepositoryError{Op: "get tasks", Err: err}
	}
	return s.execute(passInput{mode: ModeFull, horizon: horizonDays, plan: tasks, persist: true})
}

func (s *scheduler) Preview(horizonDays int) (*PassResult, error) {
	tasks, err := s.tasks.GetTasks()
	if err != nil {
		return nil, &RepositoryError{Op: "get tasks", Err: err}
	}
	return s.execute(passInput{mode: ModePreview, horizon: horizonDays, plan: tasks})
}

func (s *scheduler) Reschedule(tasks []models.Task, opts RescheduleOptions) (*PassResult, error) {
	in := passInput{mode: ModeFull, plan: tasks, fixed: opts.FixedEvents, persist: true}
	if len(opts.AffectedTaskIDs) == 0 {
		return s.execute(in)
	}

	previous, ok, err := s.previousPlan()
	if err != nil {
		return nil, err
	}
	if !ok {
		s.logger.Info().Msg("no previous plan, running a full pass")
		return s.execute(in)
	}

	closure := DependentClosure(tasks, opts.AffectedTaskIDs)
	present := make(map[string]bool, len(tasks))
	for _, t := range tasks {
		present[t.ID] = true
	}

	planned := make(map[string]bool)
	var kept []models.Event
	for _, e := range previous {
		if present[e.TaskID] && !closure[e.TaskID] {
			kept = append(kept, e)
			planned[e.TaskID] = true
		}
	}

	var plan []models.Task
	for _, t := range tasks {
		if !planned[t.ID] {
			plan = append(plan, t)
		}
	}

	in.mode = ModeIncremental
	in.plan = plan
	in.kept = kept
	return s.execute(in)
}

func (s *scheduler) previousPlan() ([]models.Event, bool, error) {
	if s.havePlan {
		return s.lastPlan, true, nil
	}
	src, ok := s.calendar.(ManagedEventSource)
	if !ok {
		return nil, false, nil
	}
	events, err := src.GetManagedEvents()
	if err != nil {
		return nil, false, &RepositoryError{Op: "get managed events", Err: err}
	}
	return events, len(events) > 0, nil
}

// DependentClosure returns the affected IDs plus every task that depends
// on one of them, directly or transitively.
func DependentClosure(tasks []models.Task, affected []string) map[string]bool {
	dependents := make(map[string][]string)
	for _, t := range tasks {
		for _, dep := range t.Constraints.Dependencies {
			dependents[dep] = append(dependents[dep], t.ID)
		}
	}

	closure := make(map[string]bool, len(affected))
	queue := append([]string(nil), affected...)
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if closure[id] {
			continue
		}
		closure[id] = true
		queue = append(queue, dependents[id]...)
	}
	return closure
}

type passInput struct {
	mode    string
	horizon int
	plan    []models.Task
	fixed   []models.Event
	kept    []models.Event
	persist bool
}

func (s *scheduler) execute(in passInput) (*PassResult, error) {
	now := s.clock.Now()
	horizon := in.horizon
	if horizon <= 0 {
		horizon = s.horizon
	}

	result := &PassResult{
		PassID:   uuid.NewString(),
		Mode:     in.mode,
		Strategy: s.strategy.Name(),
		Now:      now,
		Kept:     in.kept,
		Rejected: make(map[string][]string),
	}
	log := s.logger.With().Str("pass_id", result.PassID).Str("mode", in.mode).Logger()
	log.Info().Int("tasks", len(in.plan)).Int("kept", len(in.kept)).Int("horizon_days", horizon).Msg("scheduling pass started")

	zones, err := s.calendar.GetZones()
	if err != nil {
		return nil, s.fail(result, &RepositoryError{Op: "get zones", Err: err})
	}

	fixed := in.fixed
	if fixed == nil {
		events, err := s.calendar.GetEvents(now, now.AddDate(0, 0, horizon))
		if err != nil {
			return nil, s.fail(result, &RepositoryError{Op: "get events", Err: err})
		}
		for _, e := range events {
			if e.Type != models.EventManaged {
				fixed = append(fixed, e)
			}
		}
	}

	var valid []models.Task
	for _, t := range in.plan {
		if problems := t.Validate(now); len(problems) > 0 {
			result.Rejected[t.ID] = problems
			s.logEvent("task.rejected", map[string]any{"pass_id": result.PassID, "task_id": t.ID, "problems": problems})
			log.Warn().Str("task_id", t.ID).Strs("problems", problems).Msg("task rejected")
			continue
		}
		valid = append(valid, t)
	}

	existing := make([]models.Event, 0, len(fixed)+len(in.kept))
	existing = append(existing, fixed...)
	existing = append(existing, in.kept...)

	placed, err := s.strategy.Schedule(PlanRequest{
		Now:         now,
		HorizonDays: horizon,
		Tasks:       valid,
		Zones:       zones,
		Existing:    existing,
	})
	result.Events = placed
	if err != nil {
		return result, s.fail(result, err)
	}

	if in.persist {
		if err := s.persist(result); err != nil {
			return nil, s.fail(result, err)
		}
		s.lastPlan = append(append([]models.Event(nil), result.Kept...), result.Events...)
		s.havePlan = true
	}

	s.logEvent("schedule.completed", map[string]any{
		"pass_id":  result.PassID,
		"mode":     result.Mode,
		"strategy": result.Strategy,
		"placed":   len(result.Events),
		"rejected": len(result.Rejected),
		"kept":     len(result.Kept),
	})
	log.Info().Int("placed", len(result.Events)).Int("rejected", len(result.Rejected)).Msg("scheduling pass finished")
	return result, nil
}

// persist replaces every managed event in the calendar with the kept and
// newly placed events, then marks the placed tasks as scheduled.
func (s *scheduler) persist(result *PassResult) error {
	if err := s.calendar.RemoveManagedEvents(); err != nil {
		return &RepositoryError{Op: "remove managed events", Err: err}
	}

	create := func(events []models.Event) error {
		for i := range events {
			id, err := s.calendar.CreateEvent(events[i])
			if err != nil {
				return &RepositoryError{Op: fmt.Sprintf("create event %s", events[i].ID), Err: err}
			}
			events[i].CalendarID = id
		}
		return nil
	}
	if err := create(result.Kept); err != nil {
		return err
	}
	if err := create(result.Events); err != nil {
		return err
	}

	marked := make(map[string]bool)
	for _, e := range result.Events {
		if e.TaskID == "" || marked[e.TaskID] {
			continue
		}
		marked[e.TaskID] = true
		if err := s.tasks.MarkScheduled(e.TaskID); err != nil {
			return &RepositoryError{Op: fmt.Sprintf("mark scheduled %s", e.TaskID), Err: err}
		}
	}
	return nil
}

func (s *scheduler) fail(result *PassResult, err error) error {
	data := map[string]any{
		"pass_id": result.PassID,
		"mode":    result.Mode,
		"reason":  failureKind(err),
		"error":   err.Error(),
	}
	var pe *PlacementError
	if errors.As(err, &pe) {
		data["task_id"] = pe.TaskID
	}
	s.logEvent("schedule.failed", data)
	s.logger.Warn().Err(err).Str("pass_id", result.PassID).Msg("scheduling pass failed")
	return err
}

func failureKind(err error) string {
	var (
		pe *PlacementError
		de *DependencyDeadlockError
		re *RepositoryError
	)
	switch {
	case errors.As(err, &pe):
		return "placement"
	case errors.As(err, &de):
		return "deadlock"
	case errors.As(err, &re):
		return "repository"
	default:
		return "other"
	}
}

// logEvent emits an event if an EventLogger is configured.
func (s *scheduler) logEvent(eventType string, data map[string]any) {
	if s.events != nil {
		_ = s.events.LogEvent(eventType, data)
	}
}
