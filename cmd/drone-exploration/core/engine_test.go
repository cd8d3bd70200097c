package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/paulmach/orb"
)

type recordingObserver struct {
	mu         sync.Mutex
	detections []DetectionEvent
	applied    []Command
	rejected   []error
	explored   []Region
	lowEnergy  []int
}

func (o *recordingObserver) Detection(ev DetectionEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.detections = append(o.detections, ev)
}

func (o *recordingObserver) CommandApplied(cmd Command, _ uint64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.applied = append(o.applied, cmd)
}

func (o *recordingObserver) CommandRejected(_ Command, err error, _ uint64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.rejected = append(o.rejected, err)
}

func (o *recordingObserver) RegionExplored(_ int, r Region, _ uint64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.explored = append(o.explored, r)
}

func (o *recordingObserver) LowEnergy(agentID int, _ float64, _ uint64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.lowEnergy = append(o.lowEnergy, agentID)
}

type stubRenderer struct{}

func (stubRenderer) Render(view FieldView) ([]byte, error) {
	return []byte("view"), nil
}

// testParams returns a deterministic single-agent scenario with a target at
// (10, 10)
func testParams(spawn ...orb.Point) Params {
	p := DefaultParams()
	p.Targets = []Coord{{X: 10, Y: 10}}
	p.AgentCount = len(spawn)
	p.SpawnPositions = spawn
	p.Jitter = 0
	p.LoiterJitter = 0
	p.TickInterval = 0
	p.SnapshotInterval = 1
	return p
}

func newTestEngine(t *testing.T, p Params, opts ...Option) *Engine {
	t.Helper()
	e, err := NewEngine(p, opts...)
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}
	return e
}

func detectionsIn(msgs []Outbound) []DetectionEvent {
	var out []DetectionEvent
	for _, m := range msgs {
		if ev, ok := m.(DetectionEvent); ok {
			out = append(out, ev)
		}
	}
	return out
}

func TestNewEngineValidates(t *testing.T) {
	p := DefaultParams()
	p.AgentCount = 0
	if _, err := NewEngine(p); !errors.Is(err, ErrInvalidParams) {
		t.Errorf("Expected ErrInvalidParams, got %v", err)
	}

	p = DefaultParams()
	p.Width = 5
	if _, err := NewEngine(p); !errors.Is(err, ErrInvalidParams) {
		t.Errorf("Expected ErrInvalidParams for small field, got %v", err)
	}

	e := newTestEngine(t, DefaultParams())
	if len(e.Agents()) != 20 {
		t.Errorf("Expected 20 agents, got %d", len(e.Agents()))
	}
	if len(e.Field().Targets()) != 3 {
		t.Errorf("Expected 3 targets, got %d", len(e.Field().Targets()))
	}
	if e.TotalRegions() != 100 {
		t.Errorf("Expected 100 regions, got %d", e.TotalRegions())
	}
}

func TestAgentAtTargetHaltsWithOneDetection(t *testing.T) {
	for _, radius := range []float64{0, 2} {
		p := testParams(orb.Point{10, 10})
		p.DetectionRadius = radius
		e := newTestEngine(t, p)

		e.Step(context.Background())

		a, err := e.Agent(0)
		if err != nil {
			t.Fatalf("Failed to get agent: %v", err)
		}
		if a.State != StateHalted {
			t.Errorf("radius %v: expected halted, got %s", radius, a.State)
		}

		events := detectionsIn(e.Channel().Poll())
		if len(events) != 1 {
			t.Fatalf("radius %v: expected 1 detection, got %d", radius, len(events))
		}
		if events[0].TargetPosition != (Coord{X: 10, Y: 10}) {
			t.Errorf("Expected target (10, 10), got %s", events[0].TargetPosition)
		}

		for i := 0; i < 5; i++ {
			e.Step(context.Background())
		}
		if more := detectionsIn(e.Channel().Poll()); len(more) != 0 {
			t.Errorf("Expected no further detections while halted, got %d", len(more))
		}
	}
}

func TestAcceptResolvesWithinOneTick(t *testing.T) {
	e := newTestEngine(t, testParams(orb.Point{10, 10}))
	e.agents[0].Assign(&Region{X: 5, Y: 5})
	e.agents[0].RegionTicksSpent = 7

	e.Step(context.Background())
	if e.agents[0].State != StateHalted {
		t.Fatalf("Expected halted, got %s", e.agents[0].State)
	}

	e.Channel().Send(AcceptDetection{Agent: 0})
	e.Step(context.Background())

	a, _ := e.Agent(0)
	if a.State != StateExploring {
		t.Errorf("Expected exploring, got %s", a.State)
	}
	if a.PendingDetection != nil {
		t.Errorf("Expected no pending detection, got %v", a.PendingDetection)
	}
	// the old region was dropped and a fresh one taken in the motion phase
	if e.agents[0].RegionTicksSpent != 1 {
		t.Errorf("Expected region counter restarted, got %d", e.agents[0].RegionTicksSpent)
	}
	if a.AssignedRegion == nil || *a.AssignedRegion != (Region{X: 0, Y: 0}) {
		t.Errorf("Expected fresh assignment R[0,0], got %v", a.AssignedRegion)
	}

	// the same agent does not report the same target again
	for i := 0; i < 3; i++ {
		e.Step(context.Background())
	}
	if e.Detections() != 1 {
		t.Errorf("Expected 1 detection in total, got %d", e.Detections())
	}
}

func TestManualMoveUp(t *testing.T) {
	e := newTestEngine(t, testParams(orb.Point{20, 20}))
	before, _ := e.Agent(0)

	e.Channel().Send(ManualMove{Agent: 0, Direction: DirectionUp})
	e.Step(context.Background())

	a, _ := e.Agent(0)
	if a.State != StateManualControl {
		t.Errorf("Expected manual, got %s", a.State)
	}
	if a.Position[1] != before.Position[1]-1 || a.Position[0] != before.Position[0] {
		t.Errorf("Expected (20, 19), got %v", a.Position)
	}
	if a.Energy != before.Energy-e.Params().EnergyCost {
		t.Errorf("Expected energy %f, got %f", before.Energy-e.Params().EnergyCost, a.Energy)
	}

	// manual agents stay put without commands
	e.Step(context.Background())
	after, _ := e.Agent(0)
	if after.Position != a.Position {
		t.Errorf("Expected manual agent to hold position, got %v", after.Position)
	}

	e.Channel().Send(DiscardDetection{Agent: 0})
	e.Step(context.Background())
	if resumed, _ := e.Agent(0); resumed.State != StateExploring {
		t.Errorf("Expected exploring after discard, got %s", resumed.State)
	}
}

func TestManualMoveFromHaltedKeepsDetection(t *testing.T) {
	e := newTestEngine(t, testParams(orb.Point{10, 10}))
	e.Step(context.Background())

	e.Channel().Send(ManualMove{Agent: 0, Direction: DirectionRight})
	e.Step(context.Background())

	a, _ := e.Agent(0)
	if a.State != StateManualControl {
		t.Errorf("Expected manual, got %s", a.State)
	}
	if a.PendingDetection == nil {
		t.Error("Expected pending detection to be kept")
	}
	if a.Position != (orb.Point{11, 10}) {
		t.Errorf("Expected (11, 10), got %v", a.Position)
	}
}

func TestInvalidCommandsAreIgnored(t *testing.T) {
	obs := &recordingObserver{}
	e := newTestEngine(t, testParams(orb.Point{30, 30}), WithObserver(obs))

	e.Channel().Send(AcceptDetection{Agent: 99})
	e.Channel().Send(DiscardDetection{Agent: 0})
	if !e.Step(context.Background()) {
		t.Fatal("Expected tick to complete")
	}

	if len(obs.rejected) != 2 {
		t.Fatalf("Expected 2 rejected commands, got %d", len(obs.rejected))
	}
	if !errors.Is(obs.rejected[0], ErrUnknownAgent) {
		t.Errorf("Expected ErrUnknownAgent, got %v", obs.rejected[0])
	}
	if !errors.Is(obs.rejected[1], ErrNothingToResolve) {
		t.Errorf("Expected ErrNothingToResolve, got %v", obs.rejected[1])
	}
	if a, _ := e.Agent(0); a.State != StateExploring {
		t.Errorf("Expected agent unaffected, got %s", a.State)
	}

	if _, err := e.Agent(99); !errors.Is(err, ErrUnknownAgent) {
		t.Errorf("Expected ErrUnknownAgent, got %v", err)
	}
}

func TestRegionExploredAtThreshold(t *testing.T) {
	obs := &recordingObserver{}
	p := testParams(orb.Point{2, 2})
	p.Targets = []Coord{{X: 49, Y: 49}}
	p.ExploreThreshold = 3
	e := newTestEngine(t, p, WithObserver(obs))

	e.Step(context.Background())
	e.Step(context.Background())
	if n := len(e.ExploredRegions()); n != 0 {
		t.Fatalf("Expected no explored regions after 2 ticks, got %d", n)
	}

	e.Step(context.Background())
	explored := e.ExploredRegions()
	if len(explored) != 1 || explored[0] != (Region{X: 0, Y: 0}) {
		t.Fatalf("Expected R[0,0] explored, got %v", explored)
	}
	if len(obs.explored) != 1 {
		t.Errorf("Expected 1 region event, got %d", len(obs.explored))
	}
	if e.agents[0].AssignedRegion != nil {
		t.Errorf("Expected assignment cleared, got %v", e.agents[0].AssignedRegion)
	}

	e.Step(context.Background())
	if r := e.agents[0].AssignedRegion; r == nil || *r != (Region{X: 0, Y: 5}) {
		t.Errorf("Expected next assignment R[0,5], got %v", r)
	}
}

func TestDuplicateAssignment(t *testing.T) {
	p := testParams(orb.Point{2, 2}, orb.Point{40, 40})
	p.Targets = []Coord{{X: 49, Y: 0}}
	e := newTestEngine(t, p)

	e.Step(context.Background())

	for _, a := range e.Agents() {
		if a.AssignedRegion == nil || *a.AssignedRegion != (Region{X: 0, Y: 0}) {
			t.Errorf("Expected agent %d on R[0,0], got %v", a.ID, a.AssignedRegion)
		}
	}
}

func TestInvariantsHoldOverLongRun(t *testing.T) {
	p := DefaultParams()
	p.Seed = 7
	p.TickInterval = 0
	p.ExploreThreshold = 10
	e := newTestEngine(t, p)

	ctx := context.Background()
	explored := 0
	for i := 0; i < 400; i++ {
		e.Step(ctx)

		for _, a := range e.Agents() {
			if a.Position[0] < 0 || a.Position[0] >= 50 || a.Position[1] < 0 || a.Position[1] >= 50 {
				t.Fatalf("Agent %d out of bounds at %v", a.ID, a.Position)
			}
			if a.Energy < 0 {
				t.Fatalf("Agent %d has negative energy %f", a.ID, a.Energy)
			}
			if a.State == StateHalted && a.PendingDetection == nil {
				t.Fatalf("Agent %d halted without a detection", a.ID)
			}
			if a.State == StateExploring && a.PendingDetection != nil {
				t.Fatalf("Agent %d exploring with a pending detection", a.ID)
			}
		}

		n := len(e.ExploredRegions())
		if n < explored {
			t.Fatalf("Explored set shrank from %d to %d", explored, n)
		}
		explored = n
	}

	if explored == 0 {
		t.Error("Expected some regions to be explored")
	}
}

func TestHaltedAgentsUseNoEnergy(t *testing.T) {
	e := newTestEngine(t, testParams(orb.Point{10, 10}))
	e.Step(context.Background())
	before, _ := e.Agent(0)

	e.Step(context.Background())
	e.Step(context.Background())

	after, _ := e.Agent(0)
	if after.Energy != before.Energy {
		t.Errorf("Expected energy %f, got %f", before.Energy, after.Energy)
	}
}

func TestLowEnergyReportedOnce(t *testing.T) {
	obs := &recordingObserver{}
	p := testParams(orb.Point{30, 30})
	p.InitialEnergy = 1
	p.EnergyCost = 0.5
	p.LowEnergyThreshold = 0.8
	e := newTestEngine(t, p, WithObserver(obs))

	for i := 0; i < 4; i++ {
		e.Step(context.Background())
	}

	if len(obs.lowEnergy) != 1 {
		t.Errorf("Expected 1 low energy notice, got %d", len(obs.lowEnergy))
	}
	if a, _ := e.Agent(0); a.Energy != 0 {
		t.Errorf("Expected energy floored at 0, got %f", a.Energy)
	}
}

func TestSnapshotInterval(t *testing.T) {
	p := testParams(orb.Point{30, 30})
	p.SnapshotInterval = 5
	e := newTestEngine(t, p, WithRenderer(stubRenderer{}))

	for i := 0; i < 10; i++ {
		e.Step(context.Background())
	}

	var ticks []uint64
	for _, m := range e.Channel().Poll() {
		if s, ok := m.(Snapshot); ok {
			ticks = append(ticks, s.Tick)
			if string(s.View) != "view" {
				t.Errorf("Expected rendered view, got %q", s.View)
			}
			if len(s.Agents) != 1 || s.TotalRegions != 100 {
				t.Errorf("Unexpected snapshot contents: %+v", s)
			}
		}
	}

	if len(ticks) != 2 || ticks[0] != 5 || ticks[1] != 10 {
		t.Errorf("Expected snapshots at ticks 5 and 10, got %v", ticks)
	}
}

func TestStepAbandonsPhasesAfterStop(t *testing.T) {
	e := newTestEngine(t, testParams(orb.Point{30, 30}))
	e.Channel().Send(ManualMove{Agent: 0, Direction: DirectionUp})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if e.Step(ctx) {
		t.Error("Expected cancelled tick to report incomplete")
	}
	if pending := e.Channel().Stats().PendingCommands; pending != 1 {
		t.Errorf("Expected command left queued, got %d pending", pending)
	}
	if msgs := e.Channel().Poll(); len(msgs) != 0 {
		t.Errorf("Expected no snapshot from abandoned tick, got %d messages", len(msgs))
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	p := testParams(orb.Point{30, 30})
	p.TickInterval = time.Millisecond
	e := newTestEngine(t, p)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Expected clean stop, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancellation")
	}

	if e.Tick() == 0 {
		t.Error("Expected at least one tick")
	}
}
