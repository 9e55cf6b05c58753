package core

import (
	"fmt"
	"slices"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/valter-silva-au/blockplan/pkg/models"
)

// Strategy names accepted by NewStrategy and the planning.strategy setting.
const (
	StrategySequence = "sequence"
	StrategyPriority = "priority"
)

// MaxChunkMinutes caps the size of a single chunk of a split task.
const MaxChunkMinutes = 120

// PlanRequest carries everything a strategy needs for one pass. Zones are
// templates; Existing holds fixed events plus any managed events that the
// pass must keep in place.
type PlanRequest struct {
	Now         time.Time
	HorizonDays int
	Tasks       []models.Task
	Zones       []models.TimeBlockZone
	Existing    []models.Event
}

// SchedulingStrategy places tasks into zones. Schedule returns only the
// managed events created by the call. On a placement failure or a
// dependency deadlock it returns the events placed so far together with
// the error.
type SchedulingStrategy interface {
	Name() string
	Schedule(req PlanRequest) ([]models.Event, error)
}

// NewStrategy returns the strategy registered under name.
func NewStrategy(name string, detector ConflictDetector, logger zerolog.Logger) (SchedulingStrategy, error) {
	switch name {
	case "", StrategySequence:
		return NewSequenceBasedStrategy(detector, logger), nil
	case StrategyPriority:
		return NewPriorityBasedStrategy(detector, logger), nil
	default:
		return nil, fmt.Errorf("unknown scheduling strategy %q (want %s or %s)", name, StrategySequence, StrategyPriority)
	}
}

// SequenceBasedStrategy orders work by due date, then project, then the
// sequence number inside the project. A task is placed directly after the
// previous placement when the zone allows it.
type SequenceBasedStrategy struct {
	detector ConflictDetector
	logger   zerolog.Logger
}

// NewSequenceBasedStrategy creates a SequenceBasedStrategy.
func NewSequenceBasedStrategy(detector ConflictDetector, logger zerolog.Logger) SchedulingStrategy {
	return &SequenceBasedStrategy{detector: detector, logger: logger}
}

func (s *SequenceBasedStrategy) Name() string { return StrategySequence }

func (s *SequenceBasedStrategy) Schedule(req PlanRequest) ([]models.Event, error) {
	p, err := newPlacementPass(req, s.detector, s.logger.With().Str("strategy", StrategySequence).Logger())
	if err != nil {
		return nil, err
	}
	return p.run(req.Tasks, sequenceLess, p.placeAfterLast)
}

func sequenceLess(a, b models.Task) bool {
	if !a.DueDate.Equal(b.DueDate) {
		return a.DueDate.Before(b.DueDate)
	}
	if a.ProjectID != b.ProjectID {
		return a.ProjectID < b.ProjectID
	}
	return a.SequenceNumber < b.SequenceNumber
}

// PriorityBasedStrategy orders work by priority, then due date, and
// places each task in the earliest free slot of a matching zone.
type PriorityBasedStrategy struct {
	detector ConflictDetector
	logger   zerolog.Logger
}

// NewPriorityBasedStrategy creates a PriorityBasedStrategy.
func NewPriorityBasedStrategy(detector ConflictDetector, logger zerolog.Logger) SchedulingStrategy {
	return &PriorityBasedStrategy{detector: detector, logger: logger}
}

func (s *PriorityBasedStrategy) Name() string { return StrategyPriority }

func (s *PriorityBasedStrategy) Schedule(req PlanRequest) ([]models.Event, error) {
	p, err := newPlacementPass(req, s.detector, s.logger.With().Str("strategy", StrategyPriority).Logger())
	if err != nil {
		return nil, err
	}
	return p.run(req.Tasks, priorityLess, p.placeEarliest)
}

func priorityLess(a, b models.Task) bool {
	if a.Priority != b.Priority {
		return a.Priority < b.Priority
	}
	return a.DueDate.Before(b.DueDate)
}

// placementPass is the working state of one Schedule call. The arena is a
// flat list of every event the pass must respect: existing events first,
// then the events placed by the pass in order.
type placementPass struct {
	detector ConflictDetector
	logger   zerolog.Logger

	zones      []models.TimeBlockZone
	arena      []models.Event
	placedFrom int
	last       int

	scheduled map[string]bool
	latest    map[string]models.Event
}

func newPlacementPass(req PlanRequest, detector ConflictDetector, logger zerolog.Logger) (*placementPass, error) {
	zones, err := ExpandZones(req.Zones, req.Now, req.HorizonDays)
	if err != nil {
		return nil, fmt.Errorf("expanding zones: %w", err)
	}

	p := &placementPass{
		detector:  detector,
		logger:    logger,
		zones:     zones,
		last:      -1,
		scheduled: make(map[string]bool),
		latest:    make(map[string]models.Event),
	}
	for _, e := range req.Existing {
		p.record(e)
		if e.Type != models.EventManaged {
			continue
		}
		if e.TaskID != "" {
			p.scheduled[e.TaskID] = true
		}
		if e.ID != "" {
			p.scheduled[e.ID] = true
		}
	}
	p.placedFrom = len(p.arena)
	return p, nil
}

func (p *placementPass) record(e models.Event) {
	p.arena = append(p.arena, e)
	p.index(e)
}

func (p *placementPass) index(e models.Event) {
	if e.Type != models.EventManaged {
		return
	}
	for _, key := range []string{e.ID, e.TaskID} {
		if key == "" {
			continue
		}
		if prev, ok := p.latest[key]; !ok || e.End.After(prev.End) {
			p.latest[key] = e
		}
	}
}

func (p *placementPass) placed() []models.Event {
	return slices.Clone(p.arena[p.placedFrom:])
}

func (p *placementPass) run(tasks []models.Task, less func(a, b models.Task) bool, placeSingle func(models.Task) (models.Event, string)) ([]models.Event, error) {
	remaining := slices.Clone(tasks)
	p.logger.Debug().Int("tasks", len(remaining)).Int("zones", len(p.zones)).Msg("placement pass started")

	for len(remaining) > 0 {
		next := -1
		for i, t := range remaining {
			if !p.dependenciesMet(t) {
				continue
			}
			if next < 0 || less(t, remaining[next]) {
				next = i
			}
		}
		if next < 0 {
			unmet := make(map[string][]string, len(remaining))
			for _, t := range remaining {
				unmet[t.ID] = p.unmetDependencies(t)
			}
			p.logger.Warn().Int("remaining", len(remaining)).Msg("dependency deadlock")
			return p.placed(), &DependencyDeadlockError{Unmet: unmet}
		}

		task := remaining[next]
		var reason string
		if task.Constraints.IsSplittable {
			reason = p.placeChunks(task)
		} else {
			var e models.Event
			if e, reason = placeSingle(task); reason == "" {
				p.commit(e)
			}
		}
		if reason != "" {
			ids := make([]string, 0, len(remaining))
			for _, t := range remaining {
				ids = append(ids, t.ID)
			}
			p.logger.Warn().Str("task_id", task.ID).Str("reason", reason).Msg("placement failed")
			return p.placed(), &PlacementError{TaskID: task.ID, Reason: reason, Unscheduled: ids}
		}

		p.scheduled[task.ID] = true
		remaining = slices.Delete(remaining, next, next+1)
	}
	return p.placed(), nil
}

func (p *placementPass) commit(e models.Event) {
	p.record(e)
	p.last = len(p.arena) - 1
	p.scheduled[e.ID] = true
	p.logger.Debug().
		Str("task_id", e.TaskID).
		Str("event_id", e.ID).
		Time("start", e.Start).
		Time("end", e.End).
		Msg("placed")
}

func (p *placementPass) dependenciesMet(t models.Task) bool {
	for _, dep := range t.Constraints.Dependencies {
		if !p.scheduled[dep] {
			return false
		}
	}
	return true
}

func (p *placementPass) unmetDependencies(t models.Task) []string {
	var unmet []string
	for _, dep := range t.Constraints.Dependencies {
		if !p.scheduled[dep] {
			unmet = append(unmet, dep)
		}
	}
	return unmet
}

// dependencyEnd returns the latest end of any event placed for one of the
// task's dependencies, and that event's own buffer.
func (p *placementPass) dependencyEnd(t models.Task) (time.Time, int) {
	var end time.Time
	buffer := 0
	for _, dep := range t.Constraints.Dependencies {
		e, ok := p.latest[dep]
		if !ok {
			continue
		}
		if e.End.After(end) {
			end = e.End
			buffer = e.BufferRequired
		}
	}
	return end, buffer
}

func zoneMatches(t models.Task, z *models.TimeBlockZone) bool {
	return t.Constraints.ZoneType == z.ZoneType && t.Constraints.EnergyLevel == z.EnergyLevel
}

// zoneView returns a copy of the zone holding every arena event close
// enough to matter for a placement that keeps pad minutes of buffer.
func (p *placementPass) zoneView(z *models.TimeBlockZone, pad int) *models.TimeBlockZone {
	widest := max(pad, z.BufferRequired)
	for _, e := range p.arena {
		widest = max(widest, e.BufferRequired)
	}
	from := z.Start.Add(-minutes(widest))
	to := z.End.Add(minutes(widest))

	view := *z
	view.Events = nil
	for _, e := range p.arena {
		if e.Overlaps(from, to) {
			view.Events = append(view.Events, e)
		}
	}
	return &view
}

func managedEvent(id, taskID, title string, start time.Time, length, buffer int) models.Event {
	return models.Event{
		ID:             id,
		TaskID:         taskID,
		Start:          start,
		End:            start.Add(minutes(length)),
		Title:          title,
		Type:           models.EventManaged,
		BufferRequired: buffer,
	}
}

// placeAfterLast tries, zone by zone, the single start right after the
// previous placement and the task's dependencies.
func (p *placementPass) placeAfterLast(task models.Task) (models.Event, string) {
	depEnd, depBuffer := p.dependencyEnd(task)
	reason := fmt.Sprintf("no %s zone with %s energy can hold %d minutes before %s",
		task.Constraints.ZoneType, task.Constraints.EnergyLevel, task.Duration, task.DueDate.Format(time.RFC3339))

	for i := range p.zones {
		zone := &p.zones[i]
		if !zoneMatches(task, zone) {
			continue
		}
		eff := effectiveBuffer(task.Constraints.RequiredBuffer, zone.BufferRequired)

		candidate := zone.Start
		if p.last >= 0 {
			last := p.arena[p.last]
			candidate = laterOf(candidate, last.End.Add(minutes(max(eff, last.BufferRequired))))
		}
		if !depEnd.IsZero() {
			candidate = laterOf(candidate, depEnd.Add(minutes(max(eff, depBuffer))))
		}

		end := candidate.Add(minutes(task.Duration))
		if end.After(zone.End) || end.After(task.DueDate) {
			continue
		}
		if c := p.detector.FindConflicts(task, candidate, p.zoneView(zone, eff)); c != nil {
			p.logger.Debug().Str("task_id", task.ID).Time("candidate", candidate).Str("conflict", c.Message).Msg("zone rejected")
			reason = c.Message
			continue
		}
		return managedEvent(task.ID, task.ID, task.Title, candidate, task.Duration, eff), ""
	}
	return models.Event{}, reason
}

// placeEarliest scans every matching zone for the first free slot that
// starts after the task's dependencies.
func (p *placementPass) placeEarliest(task models.Task) (models.Event, string) {
	depEnd, depBuffer := p.dependencyEnd(task)
	for i := range p.zones {
		zone := &p.zones[i]
		if !zoneMatches(task, zone) {
			continue
		}
		eff := effectiveBuffer(task.Constraints.RequiredBuffer, zone.BufferRequired)
		from := zone.Start
		if !depEnd.IsZero() {
			from = laterOf(from, depEnd.Add(minutes(max(eff, depBuffer))))
		}
		if start, ok := p.detector.FindAvailableSlot(task, p.zoneView(zone, eff), from); ok {
			return managedEvent(task.ID, task.ID, task.Title, start, task.Duration, eff), ""
		}
	}
	return models.Event{}, fmt.Sprintf("no free %d minute slot in a %s zone with %s energy before %s",
		task.Duration, task.Constraints.ZoneType, task.Constraints.EnergyLevel, task.DueDate.Format(time.RFC3339))
}

// placeChunks splits a task across zones. Each free gap of a matching zone,
// taken as it stood when the zone was reached, holds at most one chunk. The
// chunks are committed only when the whole duration fits.
func (p *placementPass) placeChunks(task models.Task) string {
	c := task.Constraints
	mark := len(p.arena)
	remaining := task.Duration
	var sizes []int

	depEnd, depBuffer := p.dependencyEnd(task)
	var prevEnd time.Time
	prevBuffer := 0

	for i := range p.zones {
		if remaining == 0 || len(sizes) == c.MaxSplitCount {
			break
		}
		zone := &p.zones[i]
		if !zoneMatches(task, zone) {
			continue
		}

		minChunk := max(c.MinChunkDuration, zone.MinDuration)
		eff := effectiveBuffer(c.RequiredBuffer, zone.BufferRequired)
		from := zone.Start
		if !depEnd.IsZero() {
			from = laterOf(from, depEnd.Add(minutes(max(eff, depBuffer))))
		}
		if !prevEnd.IsZero() {
			from = laterOf(from, prevEnd.Add(minutes(max(eff, prevBuffer))))
		}
		limit := zone.End
		if task.DueDate.Before(limit) {
			limit = task.DueDate
		}

		for _, g := range p.gaps(from, limit, eff) {
			if remaining == 0 || len(sizes) == c.MaxSplitCount {
				break
			}
			size, ok := p.carve(task, zone, g, eff, remaining, minChunk)
			if !ok {
				continue
			}

			n := len(sizes) + 1
			e := managedEvent(models.ChunkID(task.ID, n), task.ID, task.Title, g.start, size, eff)
			p.record(e)
			sizes = append(sizes, size)
			remaining -= size
			prevEnd, prevBuffer = e.End, e.BufferRequired
		}
	}

	if remaining > 0 {
		p.rollback(mark)
		if len(sizes) == c.MaxSplitCount {
			return fmt.Sprintf("%d minutes left after %d chunks (maximum %d)", remaining, len(sizes), c.MaxSplitCount)
		}
		return fmt.Sprintf("no %s zone with %s energy has room for the remaining %d of %d minutes",
			c.ZoneType, c.EnergyLevel, remaining, task.Duration)
	}

	chunks, err := task.Split(sizes)
	if err != nil {
		p.rollback(mark)
		return err.Error()
	}
	for i, chunk := range chunks {
		p.arena[mark+i].Title = chunk.Title
		p.scheduled[chunk.ID] = true
		p.logger.Debug().
			Str("task_id", task.ID).
			Str("event_id", chunk.ID).
			Time("start", p.arena[mark+i].Start).
			Int("minutes", chunk.Duration).
			Msg("placed chunk")
	}
	p.last = len(p.arena) - 1
	return ""
}

func (p *placementPass) rollback(mark int) {
	p.arena = p.arena[:mark]
	clear(p.latest)
	for _, e := range p.arena {
		p.index(e)
	}
}

type interval struct {
	start, end time.Time
}

// gaps returns the free intervals in [from, limit). Arena events are
// widened by the larger of their own buffer and eff.
func (p *placementPass) gaps(from, limit time.Time, eff int) []interval {
	if !from.Before(limit) {
		return nil
	}

	var busy []interval
	for _, e := range p.arena {
		b := minutes(max(eff, e.BufferRequired))
		iv := interval{start: e.Start.Add(-b), end: e.End.Add(b)}
		if iv.end.After(from) && iv.start.Before(limit) {
			busy = append(busy, iv)
		}
	}
	sort.Slice(busy, func(i, j int) bool { return busy[i].start.Before(busy[j].start) })

	var free []interval
	cursor := from
	for _, iv := range busy {
		if iv.start.After(cursor) {
			free = append(free, interval{start: cursor, end: earlierOf(iv.start, limit)})
		}
		cursor = laterOf(cursor, iv.end)
		if !cursor.Before(limit) {
			break
		}
	}
	if cursor.Before(limit) {
		free = append(free, interval{start: cursor, end: limit})
	}
	return free
}

// carve sizes a chunk starting at g.start. It reports false when the gap
// is too small or the chunk would conflict with what is already placed.
func (p *placementPass) carve(task models.Task, zone *models.TimeBlockZone, g interval, eff, remaining, minChunk int) (int, bool) {
	room := int(g.end.Sub(g.start) / time.Minute)
	if room < minChunk {
		return 0, false
	}
	size := min(remaining, room, MaxChunkMinutes)
	if left := remaining - size; left > 0 && left < minChunk {
		size = remaining - minChunk
	}
	if size < minChunk {
		return 0, false
	}

	candidate := task
	candidate.Duration = size
	candidate.Constraints.IsSplittable = false
	if conflict := p.detector.FindConflicts(candidate, g.start, p.zoneView(zone, eff)); conflict != nil {
		p.logger.Debug().Str("task_id", task.ID).Time("candidate", g.start).Str("conflict", conflict.Message).Msg("gap rejected")
		return 0, false
	}
	return size, true
}

func earlierOf(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
