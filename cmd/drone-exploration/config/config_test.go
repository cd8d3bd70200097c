package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/picogrid/swarm-exploration/cmd/drone-exploration/core"
)

func TestLoadConfig(t *testing.T) {
	config, err := LoadConfig("../config.yaml")
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if config.Simulation.Name != "drone-exploration" {
		t.Errorf("Expected simulation name 'drone-exploration', got '%s'", config.Simulation.Name)
	}

	if config.Simulation.TickInterval != 100*time.Millisecond {
		t.Errorf("Expected tick interval 100ms, got %v", config.Simulation.TickInterval)
	}

	if config.Simulation.SnapshotInterval != 5 {
		t.Errorf("Expected snapshot interval 5, got %d", config.Simulation.SnapshotInterval)
	}

	if config.Field.Width != 50 || config.Field.Height != 50 {
		t.Errorf("Expected 50x50 field, got %dx%d", config.Field.Width, config.Field.Height)
	}

	if config.Swarm.NumAgents != 20 {
		t.Errorf("Expected 20 agents, got %d", config.Swarm.NumAgents)
	}

	if config.Exploration.DetectionRadius != 2.0 {
		t.Errorf("Expected detection radius 2.0, got %f", config.Exploration.DetectionRadius)
	}

	if config.Operator.Policy != PolicyAccept {
		t.Errorf("Expected policy 'accept', got '%s'", config.Operator.Policy)
	}

	if config.Logging.ReportFormat != ReportMarkdown {
		t.Errorf("Expected report format 'markdown', got '%s'", config.Logging.ReportFormat)
	}
}

func TestDefaultConfigMatchesFile(t *testing.T) {
	fromFile, err := LoadConfig("../config.yaml")
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if fromFile.Params().Validate() != nil {
		t.Fatal("Expected file params to be valid")
	}

	def := GetDefaultConfig()
	if fromFile.String() != def.String() {
		t.Errorf("Expected config.yaml to match defaults:\n%s\nvs\n%s", fromFile, def)
	}
}

func TestPartialConfigKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partial.yaml")
	data := []byte("simulation:\n  name: small\nswarm:\n  num_agents: 4\nfield:\n  targets:\n    - {x: 10, y: 10}\n")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	config, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if config.Swarm.NumAgents != 4 {
		t.Errorf("Expected 4 agents, got %d", config.Swarm.NumAgents)
	}
	if config.Swarm.InitialEnergy != 1000 {
		t.Errorf("Expected default energy 1000, got %f", config.Swarm.InitialEnergy)
	}
	if len(config.Field.Targets) != 1 || config.Field.Targets[0] != (core.Coord{X: 10, Y: 10}) {
		t.Errorf("Expected explicit target (10, 10), got %v", config.Field.Targets)
	}
	if p := config.Params(); len(p.Targets) != 1 {
		t.Errorf("Expected targets to reach engine params, got %v", p.Targets)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*SimulationConfig)
	}{
		{"missing name", func(c *SimulationConfig) { c.Simulation.Name = "" }},
		{"small field", func(c *SimulationConfig) { c.Field.Width = 5 }},
		{"no agents", func(c *SimulationConfig) { c.Swarm.NumAgents = 0 }},
		{"no targets", func(c *SimulationConfig) { c.Field.NumTargets = 0 }},
		{"bad policy", func(c *SimulationConfig) { c.Operator.Policy = "ignore" }},
		{"bad report format", func(c *SimulationConfig) { c.Logging.ReportFormat = "pdf" }},
		{"negative duration", func(c *SimulationConfig) { c.Simulation.Duration = -time.Second }},
		{"zero region size", func(c *SimulationConfig) { c.Field.RegionSize = 0 }},
		{"bad assignment", func(c *SimulationConfig) { c.Exploration.Assignment = "spiral" }},
		{"zero partition interval", func(c *SimulationConfig) {
			c.Exploration.Assignment = core.AssignVoronoi
			c.Exploration.PartitionInterval = 0
		}},
		{"zero metrics interval", func(c *SimulationConfig) {
			c.Metrics.Enabled = true
			c.Metrics.ExportInterval = 0
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := GetDefaultConfig()
			tt.modify(config)
			if err := config.Validate(); err == nil {
				t.Errorf("Expected validation error for %s", tt.name)
			}
		})
	}

	config := GetDefaultConfig()
	config.Field.Width = 5
	if err := config.Validate(); !errors.Is(err, core.ErrInvalidParams) {
		t.Errorf("Expected ErrInvalidParams, got %v", err)
	}
}

func TestMergeWithEnvironment(t *testing.T) {
	t.Setenv("NUM_AGENTS", "7")
	t.Setenv("FIELD_SIZE", "30")
	t.Setenv("SIMULATION_TICK_INTERVAL", "20ms")
	t.Setenv("OPERATOR_POLICY", "DISCARD")
	t.Setenv("LOG_LEVEL", "verbose")
	t.Setenv("REPORT_FORMAT", "yaml")
	t.Setenv("EXPLORATION_ASSIGNMENT", "Voronoi")
	t.Setenv("METRICS_ENABLED", "true")
	t.Setenv("METRICS_OUTPUT_PATH", "/tmp/metrics.json")

	config := GetDefaultConfig()
	MergeWithEnvironment(config)

	if config.Swarm.NumAgents != 7 {
		t.Errorf("Expected 7 agents, got %d", config.Swarm.NumAgents)
	}
	if config.Field.Width != 30 || config.Field.Height != 30 {
		t.Errorf("Expected 30x30 field, got %dx%d", config.Field.Width, config.Field.Height)
	}
	if config.Simulation.TickInterval != 20*time.Millisecond {
		t.Errorf("Expected 20ms tick, got %v", config.Simulation.TickInterval)
	}
	if config.Operator.Policy != PolicyDiscard {
		t.Errorf("Expected discard policy, got %s", config.Operator.Policy)
	}
	if config.Logging.ConsoleLevel != "info" {
		t.Errorf("Expected invalid log level to be ignored, got %s", config.Logging.ConsoleLevel)
	}
	if config.Logging.ReportFormat != ReportYAML {
		t.Errorf("Expected yaml report, got %s", config.Logging.ReportFormat)
	}
	if config.Exploration.Assignment != core.AssignVoronoi {
		t.Errorf("Expected voronoi assignment, got %s", config.Exploration.Assignment)
	}
	if !config.Metrics.Enabled || config.Metrics.OutputPath != "/tmp/metrics.json" {
		t.Errorf("Expected metrics enabled to /tmp/metrics.json, got %+v", config.Metrics)
	}
}

func TestMergeWithCLIOverrides(t *testing.T) {
	config := GetDefaultConfig()
	MergeWithCLIOverrides(config, map[string]interface{}{
		"num_agents":       12,
		"num_targets":      5.0,
		"field_size":       "40",
		"detection_radius": 3,
		"duration":         "30s",
		"operator_policy":  "hold",
		"report_format":    "pdf",
		"seed":             42,
		"assignment":       "voronoi",
		"enable_metrics":   true,
		"unknown":          true,
	})

	if config.Swarm.NumAgents != 12 {
		t.Errorf("Expected 12 agents, got %d", config.Swarm.NumAgents)
	}
	if config.Field.NumTargets != 5 {
		t.Errorf("Expected 5 targets, got %d", config.Field.NumTargets)
	}
	if config.Field.Width != 40 {
		t.Errorf("Expected width 40, got %d", config.Field.Width)
	}
	if config.Exploration.DetectionRadius != 3 {
		t.Errorf("Expected radius 3, got %f", config.Exploration.DetectionRadius)
	}
	if config.Simulation.Duration != 30*time.Second {
		t.Errorf("Expected 30s duration, got %v", config.Simulation.Duration)
	}
	if config.Operator.Policy != PolicyHold {
		t.Errorf("Expected hold policy, got %s", config.Operator.Policy)
	}
	if config.Logging.ReportFormat != ReportMarkdown {
		t.Errorf("Expected invalid report format to be ignored, got %s", config.Logging.ReportFormat)
	}
	if config.Simulation.Seed != 42 {
		t.Errorf("Expected seed 42, got %d", config.Simulation.Seed)
	}
	if config.Exploration.Assignment != core.AssignVoronoi {
		t.Errorf("Expected voronoi assignment, got %s", config.Exploration.Assignment)
	}
	if p := config.Params(); p.Assignment != core.AssignVoronoi || p.PartitionInterval != core.DefaultPartitionInterval {
		t.Errorf("Expected voronoi params with default interval, got %s/%d", p.Assignment, p.PartitionInterval)
	}
	if !config.Metrics.Enabled {
		t.Error("Expected metrics to be enabled")
	}
}

func TestSaveAndLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	config := GetDefaultConfig()
	config.Swarm.NumAgents = 9
	config.Simulation.Duration = 90 * time.Second

	if err := SaveConfig(config, path); err != nil {
		t.Fatalf("Failed to save config: %v", err)
	}

	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("Failed to load saved config: %v", err)
	}

	if loaded.Swarm.NumAgents != 9 {
		t.Errorf("Expected 9 agents, got %d", loaded.Swarm.NumAgents)
	}
	if loaded.Simulation.Duration != 90*time.Second {
		t.Errorf("Expected 90s duration, got %v", loaded.Simulation.Duration)
	}

	config.Swarm.NumAgents = 0
	if err := SaveConfig(config, path); err == nil {
		t.Error("Expected error saving invalid config")
	}
}

func TestLoadConfigWithOverrides(t *testing.T) {
	t.Setenv("NUM_AGENTS", "3")

	config, err := LoadConfigWithOverrides("../config.yaml", map[string]interface{}{"num_agents": 5})
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	// CLI overrides win over the environment
	if config.Swarm.NumAgents != 5 {
		t.Errorf("Expected 5 agents, got %d", config.Swarm.NumAgents)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Expected error for missing file")
	}
}
