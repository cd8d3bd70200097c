package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/picogrid/swarm-exploration/pkg/logger"
	"gopkg.in/yaml.v3"
)

// LoadConfig loads configuration from a YAML file
func LoadConfig(path string) (*SimulationConfig, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Start from defaults so a partial file only overrides what it names
	config := GetDefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// LoadConfigOrDefault loads config from file or returns default, with environment overrides
func LoadConfigOrDefault(path string) (*SimulationConfig, error) {
	var config *SimulationConfig
	var err error

	if path != "" {
		config, err = LoadConfig(path)
		if err != nil {
			logger.Warnf("Could not load config from %s: %v", path, err)
			config = nil
		}
	}

	if config == nil {
		defaultPaths := []string{
			"config.yaml",
			"drone-exploration.yaml",
			filepath.Join("cmd", "drone-exploration", "config.yaml"),
		}

		for _, p := range defaultPaths {
			if _, err := os.Stat(p); err == nil {
				config, err = LoadConfig(p)
				if err == nil {
					logger.Debugf("Loaded config from: %s", p)
					break
				}
			}
		}
	}

	if config == nil {
		logger.Debug("Using default configuration")
		config = GetDefaultConfig()
	}

	MergeWithEnvironment(config)

	return config, nil
}

// SaveConfig saves configuration to a YAML file
func SaveConfig(config *SimulationConfig, path string) error {
	if err := config.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// MergeWithCLIOverrides applies parameter overrides to the configuration.
// Keys match the parameter names in simulation.yaml; values of the wrong type
// or out of range are ignored.
func MergeWithCLIOverrides(config *SimulationConfig, overrides map[string]interface{}) {
	for key, value := range overrides {
		switch key {
		case "num_agents":
			if count, ok := asInt(value); ok && count > 0 {
				config.Swarm.NumAgents = count
			}
		case "num_targets":
			if count, ok := asInt(value); ok && count > 0 {
				config.Field.NumTargets = count
				config.Field.Targets = nil
			}
		case "field_size":
			if size, ok := asInt(value); ok && size > 0 {
				config.Field.Width = size
				config.Field.Height = size
			}
		case "region_size":
			if size, ok := asInt(value); ok && size > 0 {
				config.Field.RegionSize = size
			}
		case "explore_threshold":
			if ticks, ok := asInt(value); ok && ticks > 0 {
				config.Exploration.ExploreThreshold = ticks
			}
		case "assignment":
			if strategy, ok := value.(string); ok && contains(validAssignments, strategy) {
				config.Exploration.Assignment = strategy
			}
		case "enable_metrics":
			if enable, ok := value.(bool); ok {
				config.Metrics.Enabled = enable
			}
		case "detection_radius":
			if radius, ok := asFloat(value); ok && radius >= 0 {
				config.Exploration.DetectionRadius = radius
			}
		case "initial_energy":
			if energy, ok := asFloat(value); ok && energy >= 0 {
				config.Swarm.InitialEnergy = energy
			}
		case "tick_interval":
			if interval, ok := asDuration(value); ok && interval >= 0 {
				config.Simulation.TickInterval = interval
			}
		case "duration":
			if duration, ok := asDuration(value); ok && duration >= 0 {
				config.Simulation.Duration = duration
			}
		case "seed":
			if seed, ok := asInt(value); ok {
				config.Simulation.Seed = int64(seed)
			}
		case "operator_policy":
			if policy, ok := value.(string); ok && contains(validPolicies, policy) {
				config.Operator.Policy = policy
			}
		case "render_view":
			if render, ok := value.(bool); ok {
				config.Logging.RenderView = render
			}
		case "enable_report":
			if enable, ok := value.(bool); ok {
				config.Logging.EnableReport = enable
			}
		case "report_format":
			if format, ok := value.(string); ok && contains(validReportFormats, format) {
				config.Logging.ReportFormat = format
			}
		case "log_level":
			if level, ok := value.(string); ok && contains(validLogLevels, level) {
				config.Logging.ConsoleLevel = level
			}
		}
	}
}

// LoadConfigWithOverrides loads config and applies both environment and CLI overrides
func LoadConfigWithOverrides(path string, cliOverrides map[string]interface{}) (*SimulationConfig, error) {
	config, err := LoadConfigOrDefault(path)
	if err != nil {
		return nil, err
	}

	if cliOverrides != nil {
		MergeWithCLIOverrides(config, cliOverrides)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed after overrides: %w", err)
	}

	return config, nil
}

// MergeWithEnvironment merges config with environment variables
func MergeWithEnvironment(config *SimulationConfig) {
	if interval := os.Getenv("SIMULATION_TICK_INTERVAL"); interval != "" {
		if duration, err := time.ParseDuration(interval); err == nil && duration >= 0 {
			config.Simulation.TickInterval = duration
		}
	}

	if d := os.Getenv("SIMULATION_DURATION"); d != "" {
		if duration, err := time.ParseDuration(d); err == nil && duration >= 0 {
			config.Simulation.Duration = duration
		}
	}

	if s := os.Getenv("SIMULATION_SEED"); s != "" {
		if seed, err := strconv.ParseInt(s, 10, 64); err == nil {
			config.Simulation.Seed = seed
		}
	}

	if size := os.Getenv("FIELD_SIZE"); size != "" {
		if n, err := strconv.Atoi(size); err == nil && n > 0 {
			config.Field.Width = n
			config.Field.Height = n
		}
	}

	if numTargets := os.Getenv("NUM_TARGETS"); numTargets != "" {
		if count, err := strconv.Atoi(numTargets); err == nil && count > 0 {
			config.Field.NumTargets = count
			config.Field.Targets = nil
		}
	}

	if numAgents := os.Getenv("NUM_AGENTS"); numAgents != "" {
		if count, err := strconv.Atoi(numAgents); err == nil && count > 0 {
			config.Swarm.NumAgents = count
		}
	}

	if radius := os.Getenv("DETECTION_RADIUS"); radius != "" {
		if r, err := strconv.ParseFloat(radius, 64); err == nil && r >= 0 {
			config.Exploration.DetectionRadius = r
		}
	}

	if strategy := os.Getenv("EXPLORATION_ASSIGNMENT"); strategy != "" {
		if a := strings.ToLower(strategy); contains(validAssignments, a) {
			config.Exploration.Assignment = a
		}
	}

	if policy := os.Getenv("OPERATOR_POLICY"); policy != "" {
		if p := strings.ToLower(policy); contains(validPolicies, p) {
			config.Operator.Policy = p
		}
	}

	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		if level := strings.ToLower(logLevel); contains(validLogLevels, level) {
			config.Logging.ConsoleLevel = level
		}
	}

	if enable := os.Getenv("ENABLE_REPORT"); enable != "" {
		if b, err := strconv.ParseBool(enable); err == nil {
			config.Logging.EnableReport = b
		}
	}

	if format := os.Getenv("REPORT_FORMAT"); format != "" {
		if f := strings.ToLower(format); contains(validReportFormats, f) {
			config.Logging.ReportFormat = f
		}
	}

	if path := os.Getenv("REPORT_OUTPUT_PATH"); path != "" {
		config.Logging.ReportOutputPath = path
	}

	if enable := os.Getenv("METRICS_ENABLED"); enable != "" {
		if b, err := strconv.ParseBool(enable); err == nil {
			config.Metrics.Enabled = b
		}
	}

	if path := os.Getenv("METRICS_OUTPUT_PATH"); path != "" {
		config.Metrics.OutputPath = path
	}
}

// asInt accepts the integer shapes produced by prompts, YAML and JSON
func asInt(v interface{}) (int, bool) {
	switch val := v.(type) {
	case int:
		return val, true
	case int64:
		return int(val), true
	case float64:
		if val != float64(int(val)) {
			return 0, false
		}
		return int(val), true
	case string:
		i, err := strconv.Atoi(val)
		return i, err == nil
	default:
		return 0, false
	}
}

func asFloat(v interface{}) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case int:
		return float64(val), true
	case string:
		f, err := strconv.ParseFloat(val, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func asDuration(v interface{}) (time.Duration, bool) {
	switch val := v.(type) {
	case time.Duration:
		return val, true
	case string:
		d, err := time.ParseDuration(val)
		return d, err == nil
	default:
		return 0, false
	}
}
