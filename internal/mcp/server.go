// Package mcp exposes blockplan over the Model Context Protocol so that an
// assistant can validate tasks, preview a plan, read the calendar and read
// pass metrics.
package mcp

import (
	"context"
	"fmt"
	"sort"
	"time"

	gomcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/valter-silva-au/blockplan/internal/core"
	"github.com/valter-silva-au/blockplan/internal/observability"
	"github.com/valter-silva-au/blockplan/pkg/models"
)

// EventLister reads calendar events of every type in a window.
type EventLister interface {
	ListEvents(start, end time.Time) ([]models.Event, error)
}

// Server wraps the scheduler and its stores as MCP tools.
type Server struct {
	server      *gomcp.Server
	scheduler   core.Scheduler
	events      EventLister
	metricsCalc observability.MetricsCalculator
	clock       core.Clock
}

// NewServer creates the MCP server. events and metricsCalc may be nil, in
// which case the matching tools report an error result. A nil clock uses
// the system clock.
func NewServer(scheduler core.Scheduler, events EventLister, metricsCalc observability.MetricsCalculator, clock core.Clock, version string) *Server {
	if version == "" {
		version = "dev"
	}
	if clock == nil {
		clock = core.SystemClock{}
	}

	s := &Server{
		scheduler:   scheduler,
		events:      events,
		metricsCalc: metricsCalc,
		clock:       clock,
	}
	s.server = gomcp.NewServer(&gomcp.Implementation{Name: "blockplan", Version: version}, nil)
	s.registerTools()
	return s
}

// Run serves over stdio until the client disconnects or ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &gomcp.StdioTransport{})
}

// MCPServer returns the underlying mcp.Server for testing purposes.
func (s *Server) MCPServer() *gomcp.Server {
	return s.server
}

// --- Tool input/output types ---

type validateTaskInput struct {
	ID               string   `json:"id,omitempty" jsonschema:"task identifier"`
	Title            string   `json:"title" jsonschema:"task title"`
	Duration         int      `json:"duration" jsonschema:"duration in minutes"`
	DueDate          string   `json:"due_date" jsonschema:"due date, RFC3339 or YYYY-MM-DD"`
	Priority         int      `json:"priority,omitempty" jsonschema:"priority, 1 is the highest. Defaults to 1."`
	ZoneType         string   `json:"zone_type,omitempty" jsonschema:"deep, light or admin"`
	EnergyLevel      string   `json:"energy_level,omitempty" jsonschema:"high, medium or low"`
	Splittable       bool     `json:"splittable,omitempty" jsonschema:"whether the task may be split into chunks"`
	MinChunkDuration int      `json:"min_chunk_duration,omitempty" jsonschema:"minimum chunk length in minutes"`
	MaxSplitCount    int      `json:"max_split_count,omitempty" jsonschema:"maximum number of chunks"`
	RequiredBuffer   int      `json:"required_buffer,omitempty" jsonschema:"minutes of free time needed around the task"`
	Dependencies     []string `json:"dependencies,omitempty" jsonschema:"IDs of tasks that must finish first"`
}

type validateTaskOutput struct {
	Valid           bool     `json:"valid"`
	Problems        []string `json:"problems"`
	MinimumDuration int      `json:"minimum_duration"`
}

type previewInput struct {
	HorizonDays int `json:"horizon_days,omitempty" jsonschema:"days of zones to expand. Defaults to the configured horizon."`
}

type eventOutput struct {
	ID         string `json:"id"`
	TaskID     string `json:"task_id,omitempty"`
	Title      string `json:"title"`
	Type       string `json:"type"`
	Start      string `json:"start"`
	End        string `json:"end"`
	Minutes    int    `json:"minutes"`
	CalendarID string `json:"calendar_id,omitempty"`
}

type previewOutput struct {
	PassID   string              `json:"pass_id"`
	Strategy string              `json:"strategy"`
	Events   []eventOutput       `json:"events"`
	Rejected map[string][]string `json:"rejected"`
	Count    int                 `json:"count"`
}

type listEventsInput struct {
	From string `json:"from,omitempty" jsonschema:"window start, RFC3339 or YYYY-MM-DD. Defaults to today."`
	To   string `json:"to,omitempty" jsonschema:"window end, RFC3339 or YYYY-MM-DD. Defaults to seven days after from."`
}

type listEventsOutput struct {
	Events []eventOutput `json:"events"`
	Count  int           `json:"count"`
}

type getMetricsInput struct {
	Since string `json:"since,omitempty" jsonschema:"time window for metrics (e.g. 7d, 30d, 24h). Defaults to 7d."`
}

type metricsOutput struct {
	Passes           int            `json:"passes"`
	PassesByMode     map[string]int `json:"passes_by_mode"`
	PassesByStrategy map[string]int `json:"passes_by_strategy"`
	EventsPlaced     int            `json:"events_placed"`
	EventsKept       int            `json:"events_kept"`
	TasksRejected    int            `json:"tasks_rejected"`
	Failures         int            `json:"failures"`
	FailuresByReason map[string]int `json:"failures_by_reason"`
	LastPassID       string         `json:"last_pass_id,omitempty"`
	EventCount       int            `json:"event_count"`
	OldestEvent      string         `json:"oldest_event,omitempty"`
	NewestEvent      string         `json:"newest_event,omitempty"`
}

// --- Tool registration ---

func (s *Server) registerTools() {
	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "validate_task",
		Description: "Check a task definition against the scheduling rules and return every problem found.",
	}, s.handleValidateTask)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "preview_schedule",
		Description: "Run a full scheduling pass over the stored tasks without writing anything and return the planned events.",
	}, s.handlePreview)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "list_events",
		Description: "List fixed and managed calendar events in a time window.",
	}, s.handleListEvents)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "get_metrics",
		Description: "Get aggregated scheduling pass metrics from the event log.",
	}, s.handleGetMetrics)
}

// --- Tool handlers ---

func (s *Server) handleValidateTask(_ context.Context, _ *gomcp.CallToolRequest, input validateTaskInput) (*gomcp.CallToolResult, validateTaskOutput, error) {
	now := s.clock.Now()
	due, err := parseWhen(input.DueDate, now.Location())
	if err != nil {
		return errorResult(fmt.Sprintf("parsing due_date: %s", err)), validateTaskOutput{Problems: []string{}}, nil
	}

	task := models.Task{
		ID:       input.ID,
		Title:    input.Title,
		Duration: input.Duration,
		DueDate:  due,
		Priority: input.Priority,
		Constraints: models.TaskConstraints{
			ZoneType:         models.ZoneType(input.ZoneType),
			EnergyLevel:      models.EnergyLevel(input.EnergyLevel),
			IsSplittable:     input.Splittable,
			MinChunkDuration: input.MinChunkDuration,
			MaxSplitCount:    input.MaxSplitCount,
			RequiredBuffer:   input.RequiredBuffer,
			Dependencies:     input.Dependencies,
		},
	}
	if task.Priority == 0 {
		task.Priority = 1
	}
	if task.Constraints.ZoneType == "" {
		task.Constraints.ZoneType = models.ZoneDeep
	}
	if task.Constraints.EnergyLevel == "" {
		task.Constraints.EnergyLevel = models.EnergyMedium
	}

	problems := task.Validate(now)
	if !models.ValidZoneTypes[task.Constraints.ZoneType] {
		problems = append(problems, fmt.Sprintf("Unknown zone type %q", input.ZoneType))
	}
	if !models.ValidEnergyLevels[task.Constraints.EnergyLevel] {
		problems = append(problems, fmt.Sprintf("Unknown energy level %q", input.EnergyLevel))
	}
	if problems == nil {
		problems = []string{}
	}
	return nil, validateTaskOutput{
		Valid:           len(problems) == 0,
		Problems:        problems,
		MinimumDuration: task.MinimumDuration(),
	}, nil
}

func (s *Server) handlePreview(_ context.Context, _ *gomcp.CallToolRequest, input previewInput) (*gomcp.CallToolResult, previewOutput, error) {
	empty := previewOutput{Events: []eventOutput{}, Rejected: map[string][]string{}}
	if s.scheduler == nil {
		return errorResult("scheduler not available"), empty, nil
	}

	result, err := s.scheduler.Preview(input.HorizonDays)
	if err != nil {
		return errorResult(fmt.Sprintf("previewing schedule: %s", err)), empty, nil
	}

	out := previewOutput{
		PassID:   result.PassID,
		Strategy: result.Strategy,
		Events:   toEventOutputs(result.Events),
		Rejected: result.Rejected,
		Count:    len(result.Events),
	}
	if out.Rejected == nil {
		out.Rejected = map[string][]string{}
	}
	return nil, out, nil
}

func (s *Server) handleListEvents(_ context.Context, _ *gomcp.CallToolRequest, input listEventsInput) (*gomcp.CallToolResult, listEventsOutput, error) {
	empty := listEventsOutput{Events: []eventOutput{}}
	if s.events == nil {
		return errorResult("calendar not available"), empty, nil
	}

	now := s.clock.Now()
	y, m, d := now.Date()
	from := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	if input.From != "" {
		t, err := parseWhen(input.From, now.Location())
		if err != nil {
			return errorResult(fmt.Sprintf("parsing from: %s", err)), empty, nil
		}
		from = t
	}
	to := from.AddDate(0, 0, 7)
	if input.To != "" {
		t, err := parseWhen(input.To, now.Location())
		if err != nil {
			return errorResult(fmt.Sprintf("parsing to: %s", err)), empty, nil
		}
		to = t
	}
	if !from.Before(to) {
		return errorResult("from must be before to"), empty, nil
	}

	events, err := s.events.ListEvents(from, to)
	if err != nil {
		return errorResult(fmt.Sprintf("listing events: %s", err)), empty, nil
	}
	return nil, listEventsOutput{Events: toEventOutputs(events), Count: len(events)}, nil
}

func (s *Server) handleGetMetrics(_ context.Context, _ *gomcp.CallToolRequest, input getMetricsInput) (*gomcp.CallToolResult, metricsOutput, error) {
	if s.metricsCalc == nil {
		return errorResult("metrics calculator not available (event log may be disabled)"), emptyMetricsOutput(), nil
	}

	sinceStr := input.Since
	if sinceStr == "" {
		sinceStr = "7d"
	}
	sinceTime, err := parseSince(sinceStr, s.clock.Now())
	if err != nil {
		return errorResult(fmt.Sprintf("parsing since duration: %s", err)), emptyMetricsOutput(), nil
	}

	metrics, err := s.metricsCalc.Calculate(sinceTime)
	if err != nil {
		return errorResult(fmt.Sprintf("calculating metrics: %s", err)), emptyMetricsOutput(), nil
	}

	out := metricsOutput{
		Passes:           metrics.Passes,
		PassesByMode:     metrics.PassesByMode,
		PassesByStrategy: metrics.PassesByStrategy,
		EventsPlaced:     metrics.EventsPlaced,
		EventsKept:       metrics.EventsKept,
		TasksRejected:    metrics.TasksRejected,
		Failures:         metrics.Failures,
		FailuresByReason: metrics.FailuresByReason,
		LastPassID:       metrics.LastPassID,
		EventCount:       metrics.EventCount,
	}
	if metrics.OldestEvent != nil {
		out.OldestEvent = metrics.OldestEvent.Format(time.RFC3339)
	}
	if metrics.NewestEvent != nil {
		out.NewestEvent = metrics.NewestEvent.Format(time.RFC3339)
	}
	return nil, out, nil
}

// --- Helpers ---

func toEventOutputs(events []models.Event) []eventOutput {
	sorted := make([]models.Event, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Start.Before(sorted[j].Start) })

	out := make([]eventOutput, len(sorted))
	for i, e := range sorted {
		out[i] = eventOutput{
			ID:         e.ID,
			TaskID:     e.TaskID,
			Title:      e.Title,
			Type:       string(e.Type),
			Start:      e.Start.Format(time.RFC3339),
			End:        e.End.Format(time.RFC3339),
			Minutes:    e.Minutes(),
			CalendarID: e.CalendarID,
		}
	}
	return out
}

func emptyMetricsOutput() metricsOutput {
	return metricsOutput{
		PassesByMode:     make(map[string]int),
		PassesByStrategy: make(map[string]int),
		FailuresByReason: make(map[string]int),
	}
}

func errorResult(msg string) *gomcp.CallToolResult {
	return &gomcp.CallToolResult{
		Content: []gomcp.Content{&gomcp.TextContent{Text: msg}},
		IsError: true,
	}
}

// parseWhen accepts an RFC3339 timestamp or a bare YYYY-MM-DD date, which
// is read as midnight in loc.
func parseWhen(s string, loc *time.Location) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation("2006-01-02", s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q: use RFC3339 or YYYY-MM-DD", s)
	}
	return t, nil
}

// parseSince parses a duration string like "7d", "30d", or "24h" into the
// corresponding time before now.
func parseSince(s string, now time.Time) (time.Time, error) {
	if len(s) < 2 {
		return time.Time{}, fmt.Errorf("invalid duration %q", s)
	}

	suffix := s[len(s)-1]
	var num int
	if _, err := fmt.Sscanf(s[:len(s)-1], "%d", &num); err != nil {
		return time.Time{}, fmt.Errorf("invalid duration %q: %w", s, err)
	}

	switch suffix {
	case 'd':
		return now.AddDate(0, 0, -num), nil
	case 'h':
		return now.Add(-time.Duration(num) * time.Hour), nil
	default:
		return time.Time{}, fmt.Errorf("unsupported duration suffix %q (use d or h)", string(suffix))
	}
}
