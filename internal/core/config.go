// Package core contains the scheduling logic for blockplan: conflict
// detection, zone expansion, placement strategies, the pass orchestrator,
// and configuration loading.
package core

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/valter-silva-au/blockplan/pkg/models"
)

// ConfigFileName is the base name of the configuration file, without the
// extension Viper adds when searching.
const ConfigFileName = ".blockplan"

// ConfigurationManager loads and validates the .blockplan.yaml settings.
type ConfigurationManager interface {
	LoadGlobalConfig() (*models.GlobalConfig, error)
	ValidateConfig(cfg *models.GlobalConfig) error
}

// viperConfigManager implements ConfigurationManager using Viper for
// reading YAML configuration files.
type viperConfigManager struct {
	basePath string
}

// NewConfigurationManager creates a new ConfigurationManager that reads
// configuration files relative to basePath.
func NewConfigurationManager(basePath string) ConfigurationManager {
	return &viperConfigManager{basePath: basePath}
}

// DefaultGlobalConfig returns a GlobalConfig populated with defaults.
func DefaultGlobalConfig() *models.GlobalConfig {
	return &models.GlobalConfig{
		Planning: models.PlanningConfig{
			HorizonDays: DefaultHorizonDays,
			Strategy:    StrategySequence,
		},
		Storage: models.StorageConfig{
			Driver: "yaml",
		},
		Log: models.LogConfig{
			Level:  "info",
			Format: "console",
		},
		EventLog: ".blockplan_events.jsonl",
	}
}

// LoadGlobalConfig reads .blockplan.yaml from the base path using Viper.
// If the file does not exist, defaults are returned. Environment variables
// prefixed with BLOCKPLAN_ override file values, for example
// BLOCKPLAN_PLANNING_STRATEGY=priority.
func (cm *viperConfigManager) LoadGlobalConfig() (*models.GlobalConfig, error) {
	cfg := DefaultGlobalConfig()

	v := viper.New()
	v.SetConfigName(ConfigFileName)
	v.SetConfigType("yaml")
	v.AddConfigPath(cm.basePath)
	v.SetEnvPrefix("BLOCKPLAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("planning.horizon_days", cfg.Planning.HorizonDays)
	v.SetDefault("planning.strategy", cfg.Planning.Strategy)
	v.SetDefault("storage.driver", cfg.Storage.Driver)
	v.SetDefault("storage.path", cfg.Storage.Path)
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)
	v.SetDefault("event_log", cfg.EventLog)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading %s.yaml: %w", ConfigFileName, err)
		}
	}

	cfg.Planning.HorizonDays = v.GetInt("planning.horizon_days")
	cfg.Planning.Strategy = v.GetString("planning.strategy")
	cfg.Storage.Driver = v.GetString("storage.driver")
	cfg.Storage.Path = v.GetString("storage.path")
	cfg.Log.Level = v.GetString("log.level")
	cfg.Log.Format = v.GetString("log.format")
	cfg.EventLog = v.GetString("event_log")

	return cfg, nil
}

var validStrategies = map[string]bool{
	StrategySequence: true,
	StrategyPriority: true,
}

var validDrivers = map[string]bool{
	"yaml":   true,
	"sqlite": true,
}

var validLogFormats = map[string]bool{
	"console": true,
	"json":    true,
}

// ValidateConfig checks every field and reports all problems in one error.
func (cm *viperConfigManager) ValidateConfig(cfg *models.GlobalConfig) error {
	if cfg == nil {
		return fmt.Errorf("configuration is nil")
	}

	var errs []string

	if cfg.Planning.HorizonDays <= 0 {
		errs = append(errs, fmt.Sprintf("planning.horizon_days must be positive, got %d", cfg.Planning.HorizonDays))
	}
	if !validStrategies[cfg.Planning.Strategy] {
		errs = append(errs, fmt.Sprintf(
			"planning.strategy %q is invalid, must be one of: %s, %s",
			cfg.Planning.Strategy, StrategySequence, StrategyPriority,
		))
	}
	if !validDrivers[cfg.Storage.Driver] {
		errs = append(errs, fmt.Sprintf("storage.driver %q is invalid, must be one of: yaml, sqlite", cfg.Storage.Driver))
	}
	if _, err := zerolog.ParseLevel(cfg.Log.Level); err != nil {
		errs = append(errs, fmt.Sprintf("log.level %q is invalid", cfg.Log.Level))
	}
	if !validLogFormats[cfg.Log.Format] {
		errs = append(errs, fmt.Sprintf("log.format %q is invalid, must be one of: console, json", cfg.Log.Format))
	}
	if strings.TrimSpace(cfg.EventLog) == "" {
		errs = append(errs, "event_log must not be empty")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
