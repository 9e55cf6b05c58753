package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/valter-silva-au/blockplan/internal/core"
	"github.com/valter-silva-au/blockplan/pkg/models"
)

var (
	scheduleDryRun  bool
	scheduleHorizon int
	scheduleJSON    bool
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run a full scheduling pass over every stored task",
	Long: `Run a full scheduling pass.

Zones are expanded over the horizon, managed events from the previous
pass are replaced, and every valid task is placed. Tasks that fail
validation are reported and skipped. If any task cannot be placed the
pass fails and the calendar is left untouched.

With --dry-run the pass is computed but nothing is written.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Scheduler == nil {
			return fmt.Errorf("scheduler not initialized")
		}

		var result *core.PassResult
		var err error
		if scheduleDryRun {
			result, err = Scheduler.Preview(scheduleHorizon)
		} else {
			result, err = Scheduler.ScheduleTasks(scheduleHorizon)
		}
		return reportPass(cmd.OutOrStdout(), result, err, scheduleJSON)
	},
}

var rescheduleJSON bool

var rescheduleCmd = &cobra.Command{
	Use:   "reschedule [task-id...]",
	Short: "Replan the given tasks and everything that depends on them",
	Long: `Replan only the named tasks and their transitive dependents, keeping
every other managed event where it is. With no task IDs this is the same
as a full schedule.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Scheduler == nil || TaskStore == nil {
			return fmt.Errorf("scheduler not initialized")
		}

		tasks, err := storedTasks()
		if err != nil {
			return err
		}
		known := make(map[string]bool, len(tasks))
		for _, t := range tasks {
			known[t.ID] = true
		}
		for _, id := range args {
			if !known[id] {
				return fmt.Errorf("task %s not found", id)
			}
		}

		result, err := Scheduler.Reschedule(tasks, core.RescheduleOptions{AffectedTaskIDs: args})
		return reportPass(cmd.OutOrStdout(), result, err, rescheduleJSON)
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check every stored task and list its problems",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if TaskStore == nil {
			return fmt.Errorf("task store not initialized")
		}
		tasks, err := storedTasks()
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		now := Clock.Now()
		invalid := make(map[string][]string)
		for _, t := range tasks {
			if problems := t.Validate(now); len(problems) > 0 {
				invalid[t.ID] = problems
			}
		}
		if len(invalid) == 0 {
			fmt.Fprintf(out, "%d tasks valid.\n", len(tasks))
			return nil
		}
		renderRejected(out, invalid)
		return fmt.Errorf("%d of %d tasks invalid", len(invalid), len(tasks))
	},
}

// storedTasks reloads the task store and returns its tasks in file order.
func storedTasks() ([]models.Task, error) {
	if err := TaskStore.Load(); err != nil {
		return nil, err
	}
	entries, err := TaskStore.GetAllTasks()
	if err != nil {
		return nil, fmt.Errorf("listing tasks: %w", err)
	}
	tasks := make([]models.Task, len(entries))
	for i, e := range entries {
		tasks[i] = e.Task
	}
	return tasks, nil
}

// reportPass prints a pass result, including the partial result of a
// failed pass, and returns the pass error.
func reportPass(w io.Writer, result *core.PassResult, passErr error, asJSON bool) error {
	if asJSON && result != nil {
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("formatting pass as JSON: %w", err)
		}
		fmt.Fprintln(w, string(data))
	} else if result != nil {
		renderPass(w, result)
	}

	if passErr == nil {
		return nil
	}
	var placement *core.PlacementError
	var deadlock *core.DependencyDeadlockError
	switch {
	case errors.As(passErr, &placement):
		return fmt.Errorf("scheduling failed: task %s could not be placed: %w", placement.TaskID, passErr)
	case errors.As(passErr, &deadlock):
		return fmt.Errorf("scheduling failed: %w", passErr)
	}
	return fmt.Errorf("scheduling pass: %w", passErr)
}

func init() {
	scheduleCmd.Flags().BoolVar(&scheduleDryRun, "dry-run", false, "Compute the plan without writing it")
	scheduleCmd.Flags().IntVar(&scheduleHorizon, "horizon", 0, "Days of zones to expand (default from config)")
	scheduleCmd.Flags().BoolVar(&scheduleJSON, "json", false, "Output the pass result as JSON")
	rescheduleCmd.Flags().BoolVar(&rescheduleJSON, "json", false, "Output the pass result as JSON")

	rootCmd.AddCommand(scheduleCmd)
	rootCmd.AddCommand(rescheduleCmd)
	rootCmd.AddCommand(validateCmd)
}
