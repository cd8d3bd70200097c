package simulation

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/picogrid/swarm-exploration/cmd/drone-exploration/core"
	"github.com/picogrid/swarm-exploration/cmd/drone-exploration/operator"
	"github.com/picogrid/swarm-exploration/pkg/simulation"
)

type acceptAll struct {
	asked int
}

func (p *acceptAll) Decide(context.Context, operator.Investigation, core.Snapshot) (operator.Action, error) {
	p.asked++
	return operator.Action{Kind: operator.ActionAccept}, nil
}

// silentOperator never answers and gives up when its context ends
type silentOperator struct {
	asked chan struct{}
}

func (p *silentOperator) Decide(ctx context.Context, _ operator.Investigation, _ core.Snapshot) (operator.Action, error) {
	select {
	case p.asked <- struct{}{}:
	default:
	}
	<-ctx.Done()
	return operator.Action{}, ctx.Err()
}

func configured(t *testing.T, params map[string]interface{}) *DroneExplorationSimulation {
	t.Helper()

	sim := NewDroneExplorationSimulation().(*DroneExplorationSimulation)
	if err := sim.Configure(params); err != nil {
		t.Fatalf("Failed to configure simulation: %v", err)
	}
	sim.out = io.Discard
	sim.config.Logging.ReportOutputPath = t.TempDir()
	return sim
}

func TestRegistered(t *testing.T) {
	sim, err := simulation.DefaultRegistry.Get(Name)
	if err != nil {
		t.Fatalf("Expected simulation to be registered: %v", err)
	}
	if sim.Name() != Name {
		t.Errorf("Expected name %s, got %s", Name, sim.Name())
	}
}

func TestConfigureAppliesOverrides(t *testing.T) {
	sim := configured(t, map[string]interface{}{
		"num_agents":      5,
		"field_size":      20,
		"operator_policy": "hold",
		"duration":        "1s",
	})

	if sim.config.Swarm.NumAgents != 5 {
		t.Errorf("Expected 5 agents, got %d", sim.config.Swarm.NumAgents)
	}
	if sim.config.Field.Width != 20 || sim.config.Field.Height != 20 {
		t.Errorf("Expected 20x20 field, got %dx%d", sim.config.Field.Width, sim.config.Field.Height)
	}
	if sim.config.Operator.Policy != "hold" {
		t.Errorf("Expected hold policy, got %s", sim.config.Operator.Policy)
	}
	if sim.config.Simulation.Duration != time.Second {
		t.Errorf("Expected 1s duration, got %v", sim.config.Simulation.Duration)
	}
}

func TestConfigureMissingFileFallsBack(t *testing.T) {
	sim := configured(t, map[string]interface{}{"config_path": "does-not-exist.yaml"})
	if sim.config.Swarm.NumAgents != 20 {
		t.Errorf("Expected default 20 agents, got %d", sim.config.Swarm.NumAgents)
	}
}

func TestRunWithoutConfigure(t *testing.T) {
	sim := NewDroneExplorationSimulation()
	if err := sim.Run(context.Background()); err == nil {
		t.Error("Expected error when running unconfigured simulation")
	}
}

func TestRunForDuration(t *testing.T) {
	sim := configured(t, map[string]interface{}{
		"num_agents":      10,
		"field_size":      20,
		"tick_interval":   "1ms",
		"duration":        "300ms",
		"operator_policy": "accept",
		"render_view":     true,
		"report_format":   "json",
	})
	sim.config.Operator.PollInterval = 10 * time.Millisecond

	start := time.Now()
	if err := sim.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("Expected run to stop near its duration, took %v", elapsed)
	}

	if sim.Engine().Tick() == 0 {
		t.Error("Expected engine to advance")
	}

	path := sim.ReportPath()
	if !strings.HasSuffix(path, ".json") {
		t.Fatalf("Expected a JSON report, got %q", path)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("Expected report file to exist: %v", err)
	}
}

func TestStopEndsRun(t *testing.T) {
	sim := configured(t, map[string]interface{}{
		"tick_interval":   "1ms",
		"operator_policy": "interactive",
		"enable_report":   false,
	})
	sim.prompter = &acceptAll{}
	sim.config.Operator.PollInterval = 5 * time.Millisecond

	if err := sim.Stop(); err != nil {
		t.Fatalf("Expected Stop before Run to be a no-op, got %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- sim.Run(context.Background()) }()

	deadline := time.Now().Add(2 * time.Second)
	for sim.Engine() == nil && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	time.Sleep(100 * time.Millisecond)

	if err := sim.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Expected clean stop, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop")
	}

	if sim.ReportPath() != "" {
		t.Errorf("Expected no report, got %s", sim.ReportPath())
	}
	if sim.Console() == nil {
		t.Error("Expected operator console to be created")
	}
}

func TestRunEndsWithPromptOpen(t *testing.T) {
	sim := configured(t, map[string]interface{}{
		"num_agents":      4,
		"field_size":      20,
		"tick_interval":   "1ms",
		"duration":        "300ms",
		"operator_policy": "interactive",
		"enable_report":   false,
	})
	sim.config.Field.Targets = []core.Coord{{X: 2, Y: 2}}
	sim.config.Operator.PollInterval = 5 * time.Millisecond
	prompter := &silentOperator{asked: make(chan struct{}, 1)}
	sim.prompter = prompter

	done := make(chan error, 1)
	go func() { done <- sim.Run(context.Background()) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not return while the operator prompt was open")
	}

	select {
	case <-prompter.asked:
	default:
		t.Fatal("Expected the operator to be asked about a detection")
	}
	if len(sim.Console().Queue()) == 0 {
		t.Error("Expected the unanswered investigation to stay queued")
	}
}

func TestRunExportsMetrics(t *testing.T) {
	sim := configured(t, map[string]interface{}{
		"num_agents":      4,
		"field_size":      20,
		"tick_interval":   "1ms",
		"duration":        "100ms",
		"operator_policy": "accept",
		"enable_report":   false,
		"enable_metrics":  true,
	})
	path := filepath.Join(t.TempDir(), "metrics", "run.json")
	sim.config.Metrics.OutputPath = path

	if err := sim.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Expected metrics file: %v", err)
	}
	for _, name := range []string{"swarm.engine.ticks", "swarm.regions.explored", Name} {
		if !strings.Contains(string(data), name) {
			t.Errorf("Expected exported metrics to contain %q", name)
		}
	}
}
