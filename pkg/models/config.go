package models

// PlanningConfig holds the settings for a scheduling pass.
type PlanningConfig struct {
	HorizonDays int    `yaml:"horizon_days" mapstructure:"horizon_days"`
	Strategy    string `yaml:"strategy" mapstructure:"strategy"`
}

// StorageConfig selects the backend behind the calendar repository.
type StorageConfig struct {
	Driver string `yaml:"driver" mapstructure:"driver"`
	Path   string `yaml:"path,omitempty" mapstructure:"path"`
}

// LogConfig controls the diagnostic logger.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// GlobalConfig holds the settings read from .blockplan.yaml via Viper.
type GlobalConfig struct {
	Planning PlanningConfig `yaml:"planning" mapstructure:"planning"`
	Storage  StorageConfig  `yaml:"storage" mapstructure:"storage"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
	EventLog string         `yaml:"event_log" mapstructure:"event_log"`
}
