// Package internal provides the App struct that wires the blockplan
// components together and initializes the CLI layer.
package internal

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/valter-silva-au/blockplan/internal/cli"
	"github.com/valter-silva-au/blockplan/internal/core"
	"github.com/valter-silva-au/blockplan/internal/observability"
	"github.com/valter-silva-au/blockplan/internal/storage"
	"github.com/valter-silva-au/blockplan/pkg/models"
)

// App holds all service dependencies for blockplan.
type App struct {
	BasePath string

	// Configuration
	ConfigMgr core.ConfigurationManager
	Config    *models.GlobalConfig
	Logger    zerolog.Logger
	Clock     core.Clock

	// Storage layer
	TaskStore storage.TaskStore
	Calendar  storage.Calendar

	// Core services
	Strategy  core.SchedulingStrategy
	Scheduler core.Scheduler

	// Observability
	EventLog    observability.EventLog
	MetricsCalc observability.MetricsCalculator
}

// NewApp creates and wires all components. basePath is the directory
// holding tasks.yaml, the calendar and .blockplan.yaml.
func NewApp(basePath string) (*App, error) {
	app := &App{BasePath: basePath, Clock: core.SystemClock{}}

	// --- Configuration ---
	app.ConfigMgr = core.NewConfigurationManager(basePath)
	cfg, err := app.ConfigMgr.LoadGlobalConfig()
	if err != nil {
		// Unreadable config falls back to defaults.
		cfg = core.DefaultGlobalConfig()
	}
	if err := app.ConfigMgr.ValidateConfig(cfg); err != nil {
		return nil, err
	}
	app.Config = cfg

	app.Logger, err = observability.NewLogger(cfg.Log, os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	// --- Storage layer ---
	app.TaskStore = storage.NewTaskStore(basePath)
	app.Calendar, err = openCalendar(basePath, cfg.Storage, time.Local)
	if err != nil {
		return nil, err
	}

	// --- Observability ---
	app.EventLog, err = observability.NewJSONLEventLog(resolvePath(basePath, cfg.EventLog))
	if err != nil {
		// Non-fatal: passes still run without an audit trail.
		app.Logger.Warn().Err(err).Msg("event log disabled")
		app.EventLog = nil
	}
	var evtAdapter core.EventLogger
	if app.EventLog != nil {
		evtAdapter = &eventLogAdapter{log: app.EventLog, clock: app.Clock}
		app.MetricsCalc = observability.NewMetricsCalculator(app.EventLog)
	}

	// --- Core services ---
	app.Strategy, err = core.NewStrategy(cfg.Planning.Strategy, core.NewConflictDetector(), app.Logger)
	if err != nil {
		_ = app.Close()
		return nil, err
	}
	app.Scheduler = core.NewScheduler(core.SchedulerDeps{
		Tasks:       &taskRepoAdapter{store: app.TaskStore, clock: app.Clock},
		Calendar:    app.Calendar,
		Strategy:    app.Strategy,
		Clock:       app.Clock,
		Events:      evtAdapter,
		Logger:      app.Logger,
		HorizonDays: cfg.Planning.HorizonDays,
	})

	// --- Wire CLI package-level variables ---
	cli.BasePath = basePath
	cli.Scheduler = app.Scheduler
	cli.TaskStore = app.TaskStore
	cli.Calendar = app.Calendar
	cli.Clock = app.Clock
	cli.HorizonDays = cfg.Planning.HorizonDays
	cli.Logger = app.Logger

	cli.EventLog = app.EventLog
	cli.MetricsCalc = app.MetricsCalc

	return app, nil
}

// openCalendar opens the calendar backend named by the storage driver.
func openCalendar(basePath string, sc models.StorageConfig, loc *time.Location) (storage.Calendar, error) {
	switch sc.Driver {
	case "sqlite":
		path := sc.Path
		if path == "" {
			path = storage.CalendarDBFileName
		}
		return storage.OpenSQLiteCalendar(resolvePath(basePath, path), loc)
	case "", "yaml":
		return storage.NewYAMLCalendar(basePath, loc)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", sc.Driver)
	}
}

func resolvePath(basePath, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(basePath, p)
}

// Close releases the calendar and the event log file handle. It is safe
// to call on a partially initialized App.
func (a *App) Close() error {
	var errs []error
	if a.Calendar != nil {
		errs = append(errs, a.Calendar.Close())
	}
	if a.EventLog != nil {
		errs = append(errs, a.EventLog.Close())
	}
	return errors.Join(errs...)
}

// ResolveBasePath determines the blockplan data directory. It checks the
// BLOCKPLAN_HOME env var, then walks up from the current directory looking
// for .blockplan.yaml, and falls back to the current directory.
func ResolveBasePath() string {
	if home := os.Getenv("BLOCKPLAN_HOME"); home != "" {
		return home
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "."
	}
	for dir := cwd; ; {
		if _, err := os.Stat(filepath.Join(dir, core.ConfigFileName+".yaml")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return cwd
}

// --- Adapters ---

// taskRepoAdapter adapts storage.TaskStore to core.TaskRepository. Every
// read reloads tasks.yaml so edits made between passes are seen.
type taskRepoAdapter struct {
	store storage.TaskStore
	clock core.Clock
}

func (a *taskRepoAdapter) GetTasks() ([]models.Task, error) {
	if err := a.store.Load(); err != nil {
		return nil, err
	}
	entries, err := a.store.GetAllTasks()
	if err != nil {
		return nil, err
	}
	tasks := make([]models.Task, len(entries))
	for i, e := range entries {
		tasks[i] = e.Task
	}
	return tasks, nil
}

func (a *taskRepoAdapter) MarkScheduled(taskID string) error {
	if err := a.store.MarkScheduled(taskID, a.clock.Now()); err != nil {
		return err
	}
	return a.store.Save()
}

// eventLogAdapter adapts observability.EventLog to core.EventLogger.
type eventLogAdapter struct {
	log   observability.EventLog
	clock core.Clock
}

func (a *eventLogAdapter) LogEvent(eventType string, data map[string]any) error {
	level := observability.LevelInfo
	if strings.HasSuffix(eventType, ".failed") {
		level = observability.LevelWarn
	}
	return a.log.Write(observability.Event{
		Time:    a.clock.Now().UTC(),
		Level:   level,
		Type:    eventType,
		Message: eventType,
		Data:    data,
	})
}
