package reporting

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/picogrid/swarm-exploration/cmd/drone-exploration/core"
	"github.com/picogrid/swarm-exploration/pkg/logger"
	"gopkg.in/yaml.v3"
)

const reportVersion = "1.0"

// ReportGenerator builds mission reports from a SimulationLogger
type ReportGenerator struct {
	logger *SimulationLogger
	config ReportConfig
}

// ReportConfig configures report generation
type ReportConfig struct {
	OutputDir        string
	Format           string                 // "json", "yaml", "markdown"
	SimulationConfig map[string]interface{} // Configuration used for the simulation
}

// MissionReport is the end-of-run report
type MissionReport struct {
	Metadata      ReportMetadata         `json:"metadata" yaml:"metadata"`
	Coverage      CoverageSummary        `json:"coverage" yaml:"coverage"`
	Targets       TargetSummary          `json:"targets" yaml:"targets"`
	Detections    []DetectionRecord      `json:"detections" yaml:"detections"`
	Agents        AgentStatistics        `json:"agents" yaml:"agents"`
	EventCounts   map[string]int         `json:"event_counts" yaml:"event_counts"`
	Timeline      []TimelineEntry        `json:"timeline" yaml:"timeline"`
	Configuration map[string]interface{} `json:"configuration,omitempty" yaml:"configuration,omitempty"`
}

// ReportMetadata contains report metadata
type ReportMetadata struct {
	SimulationID    string    `json:"simulation_id" yaml:"simulation_id"`
	GeneratedAt     time.Time `json:"generated_at" yaml:"generated_at"`
	SimulationStart time.Time `json:"simulation_start" yaml:"simulation_start"`
	SimulationEnd   time.Time `json:"simulation_end" yaml:"simulation_end"`
	Duration        string    `json:"duration" yaml:"duration"`
	FinalTick       uint64    `json:"final_tick" yaml:"final_tick"`
	Version         string    `json:"version" yaml:"version"`
}

// CoverageSummary describes how much of the field was explored
type CoverageSummary struct {
	ExploredRegions int     `json:"explored_regions" yaml:"explored_regions"`
	TotalRegions    int     `json:"total_regions" yaml:"total_regions"`
	Percent         float64 `json:"percent" yaml:"percent"`
}

// TargetSummary lists operator verdicts
type TargetSummary struct {
	Detected   int          `json:"detected" yaml:"detected"`
	Confirmed  []core.Coord `json:"confirmed" yaml:"confirmed"`
	Discarded  []core.Coord `json:"discarded" yaml:"discarded"`
	Unresolved int          `json:"unresolved" yaml:"unresolved"`
}

// DetectionRecord is one detection and how it was resolved
type DetectionRecord struct {
	Tick     uint64     `json:"tick" yaml:"tick"`
	AgentID  int        `json:"agent_id" yaml:"agent_id"`
	Target   core.Coord `json:"target" yaml:"target"`
	Decision string     `json:"decision" yaml:"decision"`
}

// AgentStatistics summarises the roster at the end of the run
type AgentStatistics struct {
	Count           int            `json:"count" yaml:"count"`
	ByState         map[string]int `json:"by_state" yaml:"by_state"`
	MinEnergy       float64        `json:"min_energy" yaml:"min_energy"`
	MaxEnergy       float64        `json:"max_energy" yaml:"max_energy"`
	MeanEnergy      float64        `json:"mean_energy" yaml:"mean_energy"`
	LowEnergyAgents int            `json:"low_energy_agents" yaml:"low_energy_agents"`
}

// TimelineEntry represents a significant event
type TimelineEntry struct {
	ElapsedTime string `json:"elapsed_time" yaml:"elapsed_time"`
	Tick        uint64 `json:"tick" yaml:"tick"`
	EventType   string `json:"event_type" yaml:"event_type"`
	Description string `json:"description" yaml:"description"`
}

// NewReportGenerator creates a report generator
func NewReportGenerator(logger *SimulationLogger, config ReportConfig) *ReportGenerator {
	return &ReportGenerator{
		logger: logger,
		config: config,
	}
}

// Generate builds a mission report from the logged events and the final snapshot
func (g *ReportGenerator) Generate(final core.Snapshot) *MissionReport {
	summary := g.logger.GetSummary()
	events := g.logger.GetEvents()

	report := &MissionReport{
		Metadata: ReportMetadata{
			SimulationID:    summary.SimulationID,
			GeneratedAt:     time.Now(),
			SimulationStart: summary.StartTime,
			SimulationEnd:   summary.StartTime.Add(summary.Duration),
			Duration:        summary.Duration.Round(time.Millisecond).String(),
			FinalTick:       final.Tick,
			Version:         reportVersion,
		},
		Coverage: CoverageSummary{
			ExploredRegions: final.ExploredRegions,
			TotalRegions:    final.TotalRegions,
			Percent:         math.Round(final.Coverage()*1000) / 10,
		},
		EventCounts:   summary.EventCounts,
		Configuration: g.config.SimulationConfig,
	}

	report.Detections, report.Targets = g.analyzeDetections(events)
	report.Agents = g.analyzeAgents(final, summary)
	report.Timeline = g.buildTimeline(events, summary.StartTime)

	return report
}

// Save writes the report in the configured format and returns the file path
func (g *ReportGenerator) Save(report *MissionReport) (string, error) {
	if err := os.MkdirAll(g.config.OutputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	timestamp := report.Metadata.GeneratedAt.Format("20060102_150405")
	base := fmt.Sprintf("mission_%s_%s", shortID(report.Metadata.SimulationID), timestamp)

	var (
		data []byte
		ext  string
		err  error
	)
	switch g.config.Format {
	case "json":
		ext = "json"
		data, err = json.MarshalIndent(report, "", "  ")
	case "yaml":
		ext = "yaml"
		data, err = yaml.Marshal(report)
	case "markdown":
		ext = "md"
		data = []byte(RenderMarkdown(report))
	default:
		return "", fmt.Errorf("unsupported format: %s", g.config.Format)
	}
	if err != nil {
		return "", fmt.Errorf("failed to marshal report: %w", err)
	}

	path := filepath.Join(g.config.OutputDir, base+"."+ext)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}

	logger.Successf("Mission report saved to: %s", path)
	return path, nil
}

// RenderMarkdown formats a report as Markdown
func RenderMarkdown(report *MissionReport) string {
	var sb strings.Builder

	sb.WriteString("# Mission Report\n\n")
	sb.WriteString(fmt.Sprintf("**Simulation ID:** %s\n", report.Metadata.SimulationID))
	sb.WriteString(fmt.Sprintf("**Generated:** %s\n", report.Metadata.GeneratedAt.Format("2006-01-02 15:04:05")))
	sb.WriteString(fmt.Sprintf("**Duration:** %s (%d ticks)\n\n", report.Metadata.Duration, report.Metadata.FinalTick))

	sb.WriteString("## Coverage\n\n")
	sb.WriteString(fmt.Sprintf("- **Explored Regions:** %d/%d (%.1f%%)\n\n",
		report.Coverage.ExploredRegions, report.Coverage.TotalRegions, report.Coverage.Percent))

	sb.WriteString("## Targets\n\n")
	sb.WriteString(fmt.Sprintf("- **Detections:** %d\n", report.Targets.Detected))
	sb.WriteString(fmt.Sprintf("- **Confirmed:** %s\n", formatCoords(report.Targets.Confirmed)))
	sb.WriteString(fmt.Sprintf("- **Discarded:** %s\n", formatCoords(report.Targets.Discarded)))
	sb.WriteString(fmt.Sprintf("- **Unresolved:** %d\n\n", report.Targets.Unresolved))

	if len(report.Detections) > 0 {
		sb.WriteString("| Tick | Agent | Target | Decision |\n")
		sb.WriteString("|------|-------|--------|----------|\n")
		for _, d := range report.Detections {
			sb.WriteString(fmt.Sprintf("| %d | %d | %s | %s |\n", d.Tick, d.AgentID, d.Target, d.Decision))
		}
		sb.WriteString("\n")
	}

	sb.WriteString("## Agents\n\n")
	sb.WriteString(fmt.Sprintf("- **Agents:** %d\n", report.Agents.Count))
	sb.WriteString(fmt.Sprintf("- **Exploring:** %d\n", report.Agents.ByState[core.StateExploring.String()]))
	sb.WriteString(fmt.Sprintf("- **Halted:** %d\n", report.Agents.ByState[core.StateHalted.String()]))
	sb.WriteString(fmt.Sprintf("- **Manual:** %d\n", report.Agents.ByState[core.StateManualControl.String()]))
	sb.WriteString(fmt.Sprintf("- **Energy:** min %.1f, mean %.1f, max %.1f\n",
		report.Agents.MinEnergy, report.Agents.MeanEnergy, report.Agents.MaxEnergy))
	sb.WriteString(fmt.Sprintf("- **Low Energy Agents:** %d\n\n", report.Agents.LowEnergyAgents))

	if len(report.EventCounts) > 0 {
		sb.WriteString("## Events\n\n")
		for _, t := range sortedKeys(report.EventCounts) {
			sb.WriteString(fmt.Sprintf("- %s: %d\n", t, report.EventCounts[t]))
		}
		sb.WriteString("\n")
	}

	if len(report.Timeline) > 0 {
		sb.WriteString("## Timeline\n\n")
		for _, e := range report.Timeline {
			sb.WriteString(fmt.Sprintf("- `%s` tick %d: %s\n", e.ElapsedTime, e.Tick, e.Description))
		}
	}

	return sb.String()
}

// analyzeDetections pairs each detection with the operator decision that
// followed it for the same agent
func (g *ReportGenerator) analyzeDetections(events []SimulationEvent) ([]DetectionRecord, TargetSummary) {
	var records []DetectionRecord
	open := make(map[int]int) // agent -> index of unresolved record

	confirmed := make(map[core.Coord]bool)
	discarded := make(map[core.Coord]bool)

	for _, ev := range events {
		if ev.AgentID == nil {
			continue
		}
		agent := *ev.AgentID

		switch ev.Type {
		case EventTypeDetection:
			records = append(records, DetectionRecord{
				Tick:     ev.Tick,
				AgentID:  agent,
				Target:   coordFromDetails(ev.Details),
				Decision: "pending",
			})
			open[agent] = len(records) - 1
		case EventTypeDecision:
			decision, _ := ev.Details["decision"].(string)
			target := coordFromDetails(ev.Details)
			if i, ok := open[agent]; ok {
				records[i].Decision = decision
				delete(open, agent)
			}
			switch decision {
			case DecisionConfirmed:
				confirmed[target] = true
			case DecisionDiscarded:
				discarded[target] = true
			}
		}
	}

	summary := TargetSummary{
		Detected:   len(records),
		Confirmed:  sortedCoords(confirmed),
		Discarded:  sortedCoords(discarded),
		Unresolved: len(open),
	}
	return records, summary
}

func (g *ReportGenerator) analyzeAgents(final core.Snapshot, summary SimulationSummary) AgentStatistics {
	stats := AgentStatistics{
		Count:   len(final.Agents),
		ByState: make(map[string]int),
	}

	if len(final.Agents) == 0 {
		return stats
	}

	stats.MinEnergy = math.Inf(1)
	stats.MaxEnergy = math.Inf(-1)
	total := 0.0
	for _, a := range final.Agents {
		stats.ByState[a.State.String()]++
		stats.MinEnergy = math.Min(stats.MinEnergy, a.Energy)
		stats.MaxEnergy = math.Max(stats.MaxEnergy, a.Energy)
		total += a.Energy
	}
	stats.MeanEnergy = total / float64(len(final.Agents))

	for _, counts := range summary.AgentEvents {
		if counts[EventTypeEnergy] > 0 {
			stats.LowEnergyAgents++
		}
	}

	return stats
}

// buildTimeline keeps detections, decisions, low energy notices and
// rejected commands
func (g *ReportGenerator) buildTimeline(events []SimulationEvent, startTime time.Time) []TimelineEntry {
	var timeline []TimelineEntry
	for _, ev := range events {
		switch ev.Type {
		case EventTypeDetection, EventTypeDecision, EventTypeEnergy, EventTypeCommandRejected, EventTypeSystem:
		default:
			continue
		}
		elapsed := ev.Timestamp.Sub(startTime)
		if elapsed < 0 {
			elapsed = 0
		}
		timeline = append(timeline, TimelineEntry{
			ElapsedTime: formatDuration(elapsed),
			Tick:        ev.Tick,
			EventType:   ev.Type,
			Description: ev.Message,
		})
	}
	return timeline
}

func coordFromDetails(details map[string]interface{}) core.Coord {
	x, _ := details["target_x"].(int)
	y, _ := details["target_y"].(int)
	return core.Coord{X: x, Y: y}
}

func sortedCoords(set map[core.Coord]bool) []core.Coord {
	out := make([]core.Coord, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].X != out[j].X {
			return out[i].X < out[j].X
		}
		return out[i].Y < out[j].Y
	})
	return out
}

func formatCoords(coords []core.Coord) string {
	if len(coords) == 0 {
		return "none"
	}
	parts := make([]string, len(coords))
	for i, c := range coords {
		parts[i] = c.String()
	}
	return strings.Join(parts, ", ")
}
