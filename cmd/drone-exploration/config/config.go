package config

import (
	"fmt"
	"time"

	"github.com/picogrid/swarm-exploration/cmd/drone-exploration/core"
	"github.com/picogrid/swarm-exploration/cmd/drone-exploration/operator"
)

// Operator policies for resolving detections
const (
	PolicyAccept      = operator.PolicyAccept
	PolicyDiscard     = operator.PolicyDiscard
	PolicyHold        = operator.PolicyHold
	PolicyInteractive = operator.PolicyInteractive
)

// Mission report formats
const (
	ReportJSON     = "json"
	ReportYAML     = "yaml"
	ReportMarkdown = "markdown"
)

var (
	validPolicies      = []string{PolicyAccept, PolicyDiscard, PolicyHold, PolicyInteractive}
	validReportFormats = []string{ReportJSON, ReportYAML, ReportMarkdown}
	validLogLevels     = []string{"debug", "info", "warn", "error"}
	validAssignments   = []string{core.AssignFirstUnexplored, core.AssignVoronoi}
)

// SimulationConfig holds the complete simulation configuration
type SimulationConfig struct {
	// Basic simulation settings
	Simulation SimulationSettings `yaml:"simulation"`

	// Exploration area and targets
	Field FieldConfig `yaml:"field"`

	// Agent roster and motion
	Swarm SwarmConfig `yaml:"swarm"`

	// Detection and region coverage
	Exploration ExplorationConfig `yaml:"exploration"`

	// Operator behaviour
	Operator OperatorConfig `yaml:"operator"`

	// Logging and reporting
	Logging LoggingConfig `yaml:"logging"`

	// Metrics export
	Metrics MetricsConfig `yaml:"metrics"`
}

// SimulationSettings holds basic simulation settings
type SimulationSettings struct {
	Name             string        `yaml:"name"`
	Description      string        `yaml:"description"`
	TickInterval     time.Duration `yaml:"tick_interval"`
	SnapshotInterval int           `yaml:"snapshot_interval"` // ticks
	Duration         time.Duration `yaml:"duration"`          // 0 runs until stopped
	Seed             int64         `yaml:"seed"`
}

// FieldConfig defines the exploration area
type FieldConfig struct {
	Width      int          `yaml:"width"`
	Height     int          `yaml:"height"`
	NumTargets int          `yaml:"num_targets"`
	Targets    []core.Coord `yaml:"targets,omitempty"` // overrides num_targets
	RegionSize int          `yaml:"region_size"`
}

// SwarmConfig defines the agents
type SwarmConfig struct {
	NumAgents          int     `yaml:"num_agents"`
	InitialEnergy      float64 `yaml:"initial_energy"`
	EnergyCost         float64 `yaml:"energy_cost"` // per tick
	LowEnergyThreshold float64 `yaml:"low_energy_threshold"`
	CruiseSpeed        float64 `yaml:"cruise_speed"` // units per tick
	ManualStep         float64 `yaml:"manual_step"`
	Jitter             float64 `yaml:"jitter"`
	LoiterJitter       float64 `yaml:"loiter_jitter"`
	ArrivalThreshold   float64 `yaml:"arrival_threshold"`
}

// ExplorationConfig defines detection and coverage
type ExplorationConfig struct {
	DetectionRadius      float64 `yaml:"detection_radius"`
	ExploreThreshold     int     `yaml:"explore_threshold"` // ticks spent in a region
	MinAgentDistance     float64 `yaml:"min_agent_distance"`
	AvoidanceForce       float64 `yaml:"avoidance_force"`
	Assignment           string  `yaml:"assignment"`         // "first", "voronoi"
	PartitionInterval    int     `yaml:"partition_interval"` // ticks between voronoi splits
	PartitionMinMovement float64 `yaml:"partition_min_movement"`
}

// OperatorConfig defines how detections are resolved
type OperatorConfig struct {
	Policy       string        `yaml:"policy"` // "accept", "discard", "hold", "interactive"
	PollInterval time.Duration `yaml:"poll_interval"`
}

// LoggingConfig defines logging and reporting settings
type LoggingConfig struct {
	ConsoleLevel     string `yaml:"console_level"` // "debug", "info", "warn", "error"
	ShowProgress     bool   `yaml:"show_progress"`
	RenderView       bool   `yaml:"render_view"`
	EnableReport     bool   `yaml:"enable_report"`
	ReportFormat     string `yaml:"report_format"` // "json", "yaml", "markdown"
	ReportOutputPath string `yaml:"report_output_path"`
}

// MetricsConfig defines the optional metrics export. Metrics are written as
// JSON to OutputPath, or to stderr when it is empty.
type MetricsConfig struct {
	Enabled        bool          `yaml:"enabled"`
	ExportInterval time.Duration `yaml:"export_interval"`
	OutputPath     string        `yaml:"output_path"`
}

// Validate checks if the configuration is valid
func (c *SimulationConfig) Validate() error {
	if c.Simulation.Name == "" {
		return fmt.Errorf("simulation name is required")
	}

	if err := c.Params().Validate(); err != nil {
		return err
	}

	if !contains(validPolicies, c.Operator.Policy) {
		return fmt.Errorf("operator policy must be one of %v, got %q", validPolicies, c.Operator.Policy)
	}

	if c.Operator.PollInterval <= 0 {
		return fmt.Errorf("operator poll interval must be positive")
	}

	if c.Simulation.Duration < 0 {
		return fmt.Errorf("duration must not be negative")
	}

	if c.Logging.EnableReport && !contains(validReportFormats, c.Logging.ReportFormat) {
		return fmt.Errorf("report format must be one of %v, got %q", validReportFormats, c.Logging.ReportFormat)
	}

	if c.Metrics.Enabled && c.Metrics.ExportInterval <= 0 {
		return fmt.Errorf("metrics export interval must be positive")
	}

	return nil
}

// Params converts the configuration into engine parameters
func (c *SimulationConfig) Params() core.Params {
	return core.Params{
		Width:                c.Field.Width,
		Height:               c.Field.Height,
		Targets:              c.Field.Targets,
		TargetCount:          c.Field.NumTargets,
		AgentCount:           c.Swarm.NumAgents,
		InitialEnergy:        c.Swarm.InitialEnergy,
		EnergyCost:           c.Swarm.EnergyCost,
		LowEnergyThreshold:   c.Swarm.LowEnergyThreshold,
		DetectionRadius:      c.Exploration.DetectionRadius,
		CruiseSpeed:          c.Swarm.CruiseSpeed,
		ManualStep:           c.Swarm.ManualStep,
		Jitter:               c.Swarm.Jitter,
		LoiterJitter:         c.Swarm.LoiterJitter,
		ArrivalThreshold:     c.Swarm.ArrivalThreshold,
		MinAgentDistance:     c.Exploration.MinAgentDistance,
		AvoidanceForce:       c.Exploration.AvoidanceForce,
		RegionSize:           c.Field.RegionSize,
		ExploreThreshold:     c.Exploration.ExploreThreshold,
		Assignment:           c.Exploration.Assignment,
		PartitionInterval:    c.Exploration.PartitionInterval,
		PartitionMinMovement: c.Exploration.PartitionMinMovement,
		SnapshotInterval:     c.Simulation.SnapshotInterval,
		TickInterval:         c.Simulation.TickInterval,
		Seed:                 c.Simulation.Seed,
	}
}

// String returns a human-readable representation of the configuration
func (c *SimulationConfig) String() string {
	return fmt.Sprintf(`Simulation Configuration:
  Name: %s
  Description: %s
  Tick Interval: %v
  Snapshot Interval: %d ticks
  Duration: %v
  Seed: %d

Field:
  Size: %dx%d
  Targets: %d
  Region Size: %d

Swarm:
  Agents: %d
  Initial Energy: %.1f
  Energy Cost: %.2f/tick
  Cruise Speed: %.2f

Exploration:
  Detection Radius: %.1f
  Explore Threshold: %d ticks
  Min Agent Distance: %.1f
  Assignment: %s

Operator:
  Policy: %s

Logging:
  Console Level: %s
  Report Enabled: %t
  Report Format: %s

Metrics:
  Enabled: %t
  Export Interval: %v`,
		c.Simulation.Name,
		c.Simulation.Description,
		c.Simulation.TickInterval,
		c.Simulation.SnapshotInterval,
		c.Simulation.Duration,
		c.Simulation.Seed,
		c.Field.Width,
		c.Field.Height,
		c.targetCount(),
		c.Field.RegionSize,
		c.Swarm.NumAgents,
		c.Swarm.InitialEnergy,
		c.Swarm.EnergyCost,
		c.Swarm.CruiseSpeed,
		c.Exploration.DetectionRadius,
		c.Exploration.ExploreThreshold,
		c.Exploration.MinAgentDistance,
		c.Exploration.Assignment,
		c.Operator.Policy,
		c.Logging.ConsoleLevel,
		c.Logging.EnableReport,
		c.Logging.ReportFormat,
		c.Metrics.Enabled,
		c.Metrics.ExportInterval,
	)
}

func (c *SimulationConfig) targetCount() int {
	if len(c.Field.Targets) > 0 {
		return len(c.Field.Targets)
	}
	return c.Field.NumTargets
}

// GetDefaultConfig returns the stock 50x50, 20 agent, 3 target scenario
func GetDefaultConfig() *SimulationConfig {
	return &SimulationConfig{
		Simulation: SimulationSettings{
			Name:             "drone-exploration",
			Description:      "Autonomous drone swarm area exploration with operator verification",
			TickInterval:     100 * time.Millisecond,
			SnapshotInterval: 5,
			Duration:         0,
			Seed:             1,
		},

		Field: FieldConfig{
			Width:      50,
			Height:     50,
			NumTargets: 3,
			RegionSize: 5,
		},

		Swarm: SwarmConfig{
			NumAgents:          20,
			InitialEnergy:      1000,
			EnergyCost:         0.1,
			LowEnergyThreshold: 200,
			CruiseSpeed:        0.5,
			ManualStep:         1.0,
			Jitter:             0.1,
			LoiterJitter:       0.3,
			ArrivalThreshold:   0.5,
		},

		Exploration: ExplorationConfig{
			DetectionRadius:      2.0,
			ExploreThreshold:     50,
			MinAgentDistance:     1.5,
			AvoidanceForce:       0.3,
			Assignment:           core.AssignFirstUnexplored,
			PartitionInterval:    core.DefaultPartitionInterval,
			PartitionMinMovement: core.DefaultPartitionMinMovement,
		},

		Operator:             OperatorConfig{
			Policy:               PolicyAccept,
			PollInterval:         250 * time.Millisecond,
		},

		Logging:              LoggingConfig{
			ConsoleLevel:         "info",
			ShowProgress:         true,
			RenderView:           false,
			EnableReport:         true,
			ReportFormat:         ReportMarkdown,
			ReportOutputPath:     "./reports/",
		},

		Metrics:              MetricsConfig{
			Enabled:              false,
			ExportInterval:       10 * time.Second,
			OutputPath:           "",
		},
	}
}

func contains(values []string, v string) bool {
	for _, valid := range values {
		if v == valid {
			return true
		}
	}
	return false
}
