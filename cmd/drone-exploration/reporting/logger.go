package reporting

import (
	"fmt"
	"io"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/picogrid/swarm-exploration/cmd/drone-exploration/core"
	"github.com/picogrid/swarm-exploration/pkg/logger"
)

// SimulationLogger records simulation events in memory and echoes the
// interesting ones to the console. It implements core.Observer.
type SimulationLogger struct {
	simulationID string
	startTime    time.Time
	out          io.Writer
	events       []SimulationEvent
	metrics      map[string]Metric
	mu           sync.RWMutex
}

// SimulationEvent represents a logged simulation event
type SimulationEvent struct {
	Timestamp time.Time              `json:"timestamp" yaml:"timestamp"`
	Tick      uint64                 `json:"tick" yaml:"tick"`
	Type      string                 `json:"type" yaml:"type"`
	Severity  string                 `json:"severity" yaml:"severity"`
	AgentID   *int                   `json:"agent_id,omitempty" yaml:"agent_id,omitempty"`
	Message   string                 `json:"message" yaml:"message"`
	Details   map[string]interface{} `json:"details,omitempty" yaml:"details,omitempty"`
}

// Metric represents a tracked metric
type Metric struct {
	Name        string
	Value       float64
	Unit        string
	LastUpdated time.Time
	History     []MetricPoint
}

// MetricPoint represents a metric value at a point in time
type MetricPoint struct {
	Timestamp time.Time
	Value     float64
}

// EventType constants
const (
	EventTypeDetection       = "detection"
	EventTypeCommand         = "command"
	EventTypeCommandRejected = "command_rejected"
	EventTypeDecision        = "decision"
	EventTypeRegion          = "region"
	EventTypeEnergy          = "energy"
	EventTypeProgress        = "progress"
	EventTypeSystem          = "system"
)

// Severity constants
const (
	SeverityDebug   = "debug"
	SeverityInfo    = "info"
	SeverityWarning = "warning"
	SeverityError   = "error"
)

// Operator decisions recorded with EventTypeDecision
const (
	DecisionConfirmed = "confirmed"
	DecisionDiscarded = "discarded"
)

const maxEvents = 10000

var (
	colorDebug     = color.New(color.FgHiBlack)
	colorInfo      = color.New(color.FgCyan)
	colorWarning   = color.New(color.FgYellow)
	colorError     = color.New(color.FgRed)
	colorSuccess   = color.New(color.FgGreen)
	colorHighlight = color.New(color.FgMagenta, color.Bold)
)

// NewSimulationLogger creates a new simulation logger writing to out, or
// stdout when out is nil
func NewSimulationLogger(simulationID string, out io.Writer) *SimulationLogger {
	if out == nil {
		out = os.Stdout
	}

	sl := &SimulationLogger{
		simulationID: simulationID,
		startTime:    time.Now(),
		out:          out,
		events:       make([]SimulationEvent, 0),
		metrics:      make(map[string]Metric),
	}

	sl.logColoredMessage(SeverityInfo, "Simulation Started",
		fmt.Sprintf("ID: %s | Time: %s", simulationID, sl.startTime.Format("15:04:05")))

	return sl
}

// SimulationID returns the run identifier
func (sl *SimulationLogger) SimulationID() string { return sl.simulationID }

// Detection logs a detection event
func (sl *SimulationLogger) Detection(ev core.DetectionEvent) {
	id := ev.AgentID
	sl.logEvent(SimulationEvent{
		Timestamp: ev.Timestamp,
		Tick:      ev.Tick,
		Type:      EventTypeDetection,
		Severity:  SeverityInfo,
		AgentID:   &id,
		Message:   fmt.Sprintf("Agent %d detected target at %s", ev.AgentID, ev.TargetPosition),
		Details: map[string]interface{}{
			"target_x": ev.TargetPosition.X,
			"target_y": ev.TargetPosition.Y,
			"agent_x":  ev.AgentPosition[0],
			"agent_y":  ev.AgentPosition[1],
		},
	})

	sl.logColoredMessage(SeverityInfo, "Target Detected",
		fmt.Sprintf("Agent: %d | Target: %s | Tick: %d",
			ev.AgentID, colorHighlight.Sprint(ev.TargetPosition), ev.Tick))
}

// CommandApplied logs an operator command the engine accepted
func (sl *SimulationLogger) CommandApplied(cmd core.Command, tick uint64) {
	id := cmd.AgentID()
	details := map[string]interface{}{"command": cmd.Kind()}
	if m, ok := cmd.(core.ManualMove); ok {
		details["direction"] = m.Direction.String()
	}

	sl.logEvent(SimulationEvent{
		Timestamp: time.Now(),
		Tick:      tick,
		Type:      EventTypeCommand,
		Severity:  SeverityDebug,
		AgentID:   &id,
		Message:   fmt.Sprintf("Command %s applied to agent %d", cmd.Kind(), id),
		Details:   details,
	})
}

// CommandRejected logs an operator command the engine ignored
func (sl *SimulationLogger) CommandRejected(cmd core.Command, err error, tick uint64) {
	id := cmd.AgentID()
	sl.logEvent(SimulationEvent{
		Timestamp: time.Now(),
		Tick:      tick,
		Type:      EventTypeCommandRejected,
		Severity:  SeverityWarning,
		AgentID:   &id,
		Message:   fmt.Sprintf("Command %s for agent %d ignored: %v", cmd.Kind(), id, err),
		Details: map[string]interface{}{
			"command": cmd.Kind(),
			"error":   err.Error(),
		},
	})
}

// RegionExplored logs a region completion
func (sl *SimulationLogger) RegionExplored(agentID int, r core.Region, tick uint64) {
	id := agentID
	sl.logEvent(SimulationEvent{
		Timestamp: time.Now(),
		Tick:      tick,
		Type:      EventTypeRegion,
		Severity:  SeverityDebug,
		AgentID:   &id,
		Message:   fmt.Sprintf("Region %s explored by agent %d", r, agentID),
		Details: map[string]interface{}{
			"region_x": r.X,
			"region_y": r.Y,
		},
	})
}

// LowEnergy logs the first time an agent drops below the energy threshold
func (sl *SimulationLogger) LowEnergy(agentID int, energy float64, tick uint64) {
	id := agentID
	sl.logEvent(SimulationEvent{
		Timestamp: time.Now(),
		Tick:      tick,
		Type:      EventTypeEnergy,
		Severity:  SeverityWarning,
		AgentID:   &id,
		Message:   fmt.Sprintf("Agent %d low on energy (%.1f)", agentID, energy),
		Details:   map[string]interface{}{"energy": energy},
	})

	sl.logColoredMessage(SeverityWarning, "Low Energy",
		fmt.Sprintf("Agent: %d | Energy: %.1f", agentID, energy))
}

// LogDecision logs an operator verdict on a detection
func (sl *SimulationLogger) LogDecision(agentID int, target core.Coord, decision string) {
	id := agentID
	sl.logEvent(SimulationEvent{
		Timestamp: time.Now(),
		Type:      EventTypeDecision,
		Severity:  SeverityInfo,
		AgentID:   &id,
		Message:   fmt.Sprintf("Target %s %s (agent %d)", target, decision, agentID),
		Details: map[string]interface{}{
			"decision": decision,
			"target_x": target.X,
			"target_y": target.Y,
		},
	})

	c := colorSuccess
	if decision != DecisionConfirmed {
		c = colorWarning
	}
	sl.logColoredMessage(SeverityInfo, "Operator Decision",
		fmt.Sprintf("Target: %s | %s | Agent: %d", target, c.Sprint(decision), agentID))
}

// LogProgress records coverage from a snapshot and prints a status line
func (sl *SimulationLogger) LogProgress(snap core.Snapshot) {
	counts := snap.CountByState()
	coverage := snap.Coverage() * 100
	elapsed := time.Since(sl.startTime)

	sl.UpdateMetric("coverage", coverage, "%")
	sl.UpdateMetric("tick", float64(snap.Tick), "ticks")

	sl.logEvent(SimulationEvent{
		Timestamp: snap.Timestamp,
		Tick:      snap.Tick,
		Type:      EventTypeProgress,
		Severity:  SeverityDebug,
		Message:   fmt.Sprintf("Coverage %.1f%% at tick %d", coverage, snap.Tick),
		Details: map[string]interface{}{
			"explored":  snap.ExploredRegions,
			"total":     snap.TotalRegions,
			"exploring": counts[core.StateExploring],
			"halted":    counts[core.StateHalted],
			"manual":    counts[core.StateManualControl],
		},
	})

	logger.Progressf("Elapsed %s | Tick %d | Coverage %.1f%% (%d/%d) | exploring %d, halted %d, manual %d",
		formatDuration(elapsed), snap.Tick, coverage, snap.ExploredRegions, snap.TotalRegions,
		counts[core.StateExploring], counts[core.StateHalted], counts[core.StateManualControl])
}

// LogError logs an error event
func (sl *SimulationLogger) LogError(message string, err error, details map[string]interface{}) {
	if details == nil {
		details = make(map[string]interface{})
	}
	details["error"] = err.Error()

	sl.logEvent(SimulationEvent{
		Timestamp: time.Now(),
		Type:      EventTypeSystem,
		Severity:  SeverityError,
		Message:   message,
		Details:   details,
	})

	logger.Errorf("%s: %v", message, err)
}

// UpdateMetric updates a metric value
func (sl *SimulationLogger) UpdateMetric(name string, value float64, unit string) {
	sl.mu.Lock()
	defer sl.mu.Unlock()

	metric, exists := sl.metrics[name]
	if !exists {
		metric = Metric{
			Name:    name,
			Unit:    unit,
			History: make([]MetricPoint, 0),
		}
	}

	now := time.Now()
	metric.Value = value
	metric.LastUpdated = now
	metric.History = append(metric.History, MetricPoint{Timestamp: now, Value: value})

	if len(metric.History) > 1000 {
		metric.History = metric.History[len(metric.History)-1000:]
	}

	sl.metrics[name] = metric
}

// GetEvents returns all logged events
func (sl *SimulationLogger) GetEvents() []SimulationEvent {
	sl.mu.RLock()
	defer sl.mu.RUnlock()

	events := make([]SimulationEvent, len(sl.events))
	copy(events, sl.events)
	return events
}

// GetMetrics returns current metrics
func (sl *SimulationLogger) GetMetrics() map[string]Metric {
	sl.mu.RLock()
	defer sl.mu.RUnlock()

	metrics := make(map[string]Metric, len(sl.metrics))
	for k, v := range sl.metrics {
		metrics[k] = v
	}
	return metrics
}

// SimulationSummary represents a summary of the simulation
type SimulationSummary struct {
	SimulationID string
	StartTime    time.Time
	Duration     time.Duration
	TotalEvents  int
	EventCounts  map[string]int
	AgentEvents  map[int]map[string]int
	Metrics      map[string]Metric
}

// GetSummary returns a simulation summary
func (sl *SimulationLogger) GetSummary() SimulationSummary {
	metrics := sl.GetMetrics()

	sl.mu.RLock()
	defer sl.mu.RUnlock()

	eventCounts := make(map[string]int)
	agentEvents := make(map[int]map[string]int)

	for _, event := range sl.events {
		eventCounts[event.Type]++

		if event.AgentID != nil {
			id := *event.AgentID
			if agentEvents[id] == nil {
				agentEvents[id] = make(map[string]int)
			}
			agentEvents[id][event.Type]++
		}
	}

	return SimulationSummary{
		SimulationID: sl.simulationID,
		StartTime:    sl.startTime,
		Duration:     time.Since(sl.startTime),
		TotalEvents:  len(sl.events),
		EventCounts:  eventCounts,
		AgentEvents:  agentEvents,
		Metrics:      metrics,
	}
}

// PrintSummary prints a formatted summary
func (sl *SimulationLogger) PrintSummary() {
	summary := sl.GetSummary()

	colorSuccess.Fprintln(sl.out, "\n================================================================")
	colorSuccess.Fprintf(sl.out, "  SIMULATION SUMMARY - %s\n", shortID(summary.SimulationID))
	colorSuccess.Fprintln(sl.out, "================================================================")

	fmt.Fprintf(sl.out, "\nDuration: %v | Total Events: %d\n", summary.Duration.Round(time.Millisecond), summary.TotalEvents)

	fmt.Fprintln(sl.out, "\nEvent Distribution:")
	for _, eventType := range sortedKeys(summary.EventCounts) {
		fmt.Fprintf(sl.out, "   %-20s: %d\n", eventType, summary.EventCounts[eventType])
	}

	if len(summary.Metrics) > 0 {
		fmt.Fprintln(sl.out, "\nMetrics:")
		names := make([]string, 0, len(summary.Metrics))
		for name := range summary.Metrics {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			m := summary.Metrics[name]
			fmt.Fprintf(sl.out, "   %-20s: %.2f %s\n", name, m.Value, m.Unit)
		}
	}

	colorSuccess.Fprintln(sl.out, "\n================================================================")
}

// logEvent adds an event to the log
func (sl *SimulationLogger) logEvent(event SimulationEvent) {
	sl.mu.Lock()
	defer sl.mu.Unlock()

	sl.events = append(sl.events, event)

	if len(sl.events) > maxEvents {
		sl.events = sl.events[len(sl.events)-maxEvents:]
	}
}

// logColoredMessage logs a message with color based on severity
func (sl *SimulationLogger) logColoredMessage(severity, eventType, message string) {
	timestamp := time.Now().Format("15:04:05.000")

	var severityColor *color.Color
	switch severity {
	case SeverityDebug:
		severityColor = colorDebug
	case SeverityWarning:
		severityColor = colorWarning
	case SeverityError:
		severityColor = colorError
	default:
		severityColor = colorInfo
	}

	fmt.Fprintf(sl.out, "[%s] %s %s | %s\n",
		timestamp,
		severityColor.Sprint(fmt.Sprintf("%-8s", severity)),
		eventType,
		message)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func formatDuration(d time.Duration) string {
	minutes := int(d.Minutes())
	seconds := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d", minutes, seconds)
}

var _ core.Observer = (*SimulationLogger)(nil)
