package cli

import (
	"github.com/rs/zerolog"

	"github.com/valter-silva-au/blockplan/internal/core"
	"github.com/valter-silva-au/blockplan/internal/observability"
	"github.com/valter-silva-au/blockplan/internal/storage"
)

// Service instances, set during app initialization in app.go.
var (
	BasePath    string
	Scheduler   core.Scheduler
	TaskStore   storage.TaskStore
	Calendar    storage.Calendar
	Clock       core.Clock = core.SystemClock{}
	HorizonDays = core.DefaultHorizonDays
	Logger      = zerolog.Nop()
)

// Observability service instances, set during app initialization in app.go.
var (
	EventLog    observability.EventLog
	MetricsCalc observability.MetricsCalculator
)
