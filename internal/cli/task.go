package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/valter-silva-au/blockplan/internal/storage"
	"github.com/valter-silva-au/blockplan/pkg/models"
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Manage the task list",
}

var taskAddFlags struct {
	id         string
	title      string
	duration   int
	due        string
	priority   int
	project    string
	sequence   int
	zone       string
	energy     string
	splittable bool
	minChunk   int
	maxSplit   int
	buffer     int
	depends    []string
}

var taskAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a task to tasks.yaml",
	Long: `Add a task. The task is validated before it is stored; a task that
fails validation is not added.

The due date accepts RFC3339 or "2006-01-02 15:04" in local time.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if TaskStore == nil {
			return fmt.Errorf("task store not initialized")
		}
		f := taskAddFlags

		due, err := parseLocalTime(f.due)
		if err != nil {
			return fmt.Errorf("parsing --due: %w", err)
		}
		task := models.Task{
			ID:             f.id,
			Title:          f.title,
			Duration:       f.duration,
			DueDate:        due,
			Priority:       f.priority,
			ProjectID:      f.project,
			SequenceNumber: f.sequence,
			Constraints: models.TaskConstraints{
				ZoneType:         models.ZoneType(f.zone),
				EnergyLevel:      models.EnergyLevel(f.energy),
				IsSplittable:     f.splittable,
				MinChunkDuration: f.minChunk,
				MaxSplitCount:    f.maxSplit,
				RequiredBuffer:   f.buffer,
				Dependencies:     f.depends,
			},
		}

		problems := task.Validate(Clock.Now())
		if !models.ValidZoneTypes[task.Constraints.ZoneType] {
			problems = append(problems, fmt.Sprintf("Unknown zone type %q", f.zone))
		}
		if !models.ValidEnergyLevels[task.Constraints.EnergyLevel] {
			problems = append(problems, fmt.Sprintf("Unknown energy level %q", f.energy))
		}
		if len(problems) > 0 {
			return &models.ValidationError{TaskID: task.ID, Problems: problems}
		}

		if err := TaskStore.Load(); err != nil {
			return err
		}
		if err := TaskStore.AddTask(task); err != nil {
			return err
		}
		if err := TaskStore.Save(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Added task %s (%d min, due %s)\n", task.ID, task.Duration, task.DueDate.Format("2006-01-02 15:04"))
		return nil
	},
}

var taskListUnscheduled bool
var taskListZone string

var taskListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored tasks",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if TaskStore == nil {
			return fmt.Errorf("task store not initialized")
		}
		if err := TaskStore.Load(); err != nil {
			return err
		}
		entries, err := TaskStore.FilterTasks(storage.TaskFilter{
			ZoneType:    models.ZoneType(taskListZone),
			Unscheduled: taskListUnscheduled,
		})
		if err != nil {
			return fmt.Errorf("listing tasks: %w", err)
		}

		out := cmd.OutOrStdout()
		if len(entries) == 0 {
			fmt.Fprintln(out, "No tasks found.")
			return nil
		}
		fmt.Fprintf(out, "%-16s %-6s %-6s %-16s %-8s %s\n", "ID", "MIN", "PRIO", "DUE", "ZONE", "TITLE")
		for _, e := range entries {
			scheduled := ""
			if e.ScheduledAt != "" {
				scheduled = helpStyle.Render("  scheduled")
			}
			fmt.Fprintf(out, "%-16s %-6d %-6d %-16s %-8s %s%s\n",
				e.ID, e.Duration, e.Priority, e.DueDate.Local().Format("2006-01-02 15:04"),
				e.Constraints.ZoneType, e.Title, scheduled)
		}
		return nil
	},
}

var taskRemoveCmd = &cobra.Command{
	Use:   "remove <task-id>",
	Short: "Remove a task from tasks.yaml",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if TaskStore == nil {
			return fmt.Errorf("task store not initialized")
		}
		if err := TaskStore.Load(); err != nil {
			return err
		}
		if err := TaskStore.RemoveTask(args[0]); err != nil {
			return err
		}
		if err := TaskStore.Save(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed task %s\n", args[0])
		return nil
	},
}

// parseLocalTime accepts RFC3339, "2006-01-02 15:04" or "2006-01-02" in
// the clock's location.
func parseLocalTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	loc := Clock.Now().Location()
	for _, layout := range []string{"2006-01-02 15:04", "2006-01-02T15:04", "2006-01-02"} {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid time %q (use RFC3339 or 2006-01-02 15:04)", s)
}

func init() {
	f := taskAddCmd.Flags()
	f.StringVar(&taskAddFlags.id, "id", "", "Task ID (required)")
	f.StringVar(&taskAddFlags.title, "title", "", "Task title (required)")
	f.IntVar(&taskAddFlags.duration, "duration", 0, "Duration in minutes (required)")
	f.StringVar(&taskAddFlags.due, "due", "", "Due date (required)")
	f.IntVar(&taskAddFlags.priority, "priority", 1, "Priority, 1 is the highest")
	f.StringVar(&taskAddFlags.project, "project", "", "Project ID")
	f.IntVar(&taskAddFlags.sequence, "seq", 0, "Sequence number within the project")
	f.StringVar(&taskAddFlags.zone, "zone", string(models.ZoneDeep), "Zone type: deep, light or admin")
	f.StringVar(&taskAddFlags.energy, "energy", string(models.EnergyMedium), "Energy level: high, medium or low")
	f.BoolVar(&taskAddFlags.splittable, "splittable", false, "Allow splitting into chunks")
	f.IntVar(&taskAddFlags.minChunk, "min-chunk", 0, "Minimum chunk length in minutes")
	f.IntVar(&taskAddFlags.maxSplit, "max-split", 0, "Maximum number of chunks")
	f.IntVar(&taskAddFlags.buffer, "buffer", 0, "Minutes of free time needed around the task")
	f.StringSliceVar(&taskAddFlags.depends, "depends", nil, "IDs of tasks that must finish first")
	_ = taskAddCmd.MarkFlagRequired("id")
	_ = taskAddCmd.MarkFlagRequired("title")
	_ = taskAddCmd.MarkFlagRequired("duration")
	_ = taskAddCmd.MarkFlagRequired("due")

	taskListCmd.Flags().BoolVar(&taskListUnscheduled, "unscheduled", false, "Only tasks not placed by a pass")
	taskListCmd.Flags().StringVar(&taskListZone, "zone", "", "Only tasks for this zone type")

	taskCmd.AddCommand(taskAddCmd)
	taskCmd.AddCommand(taskListCmd)
	taskCmd.AddCommand(taskRemoveCmd)
	rootCmd.AddCommand(taskCmd)
}
