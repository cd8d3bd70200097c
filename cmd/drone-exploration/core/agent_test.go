package core

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/paulmach/orb"
)

func newTestField(t *testing.T) *SpatialField {
	t.Helper()
	f, err := NewSpatialField(50, 50, []Coord{{X: 10, Y: 10}})
	if err != nil {
		t.Fatalf("Failed to create field: %v", err)
	}
	return f
}

func TestHaltRecordsDetection(t *testing.T) {
	a := NewAgent(1, orb.Point{10, 10}, 100)
	a.Velocity = orb.Point{0.5, 0.5}

	if !a.Halt(Coord{X: 10, Y: 10}) {
		t.Fatal("Expected exploring agent to halt")
	}
	if a.State != StateHalted {
		t.Errorf("Expected halted, got %s", a.State)
	}
	if a.PendingDetection == nil || *a.PendingDetection != (Coord{X: 10, Y: 10}) {
		t.Errorf("Expected pending detection (10, 10), got %v", a.PendingDetection)
	}
	if a.Velocity != (orb.Point{0, 0}) {
		t.Errorf("Expected zero velocity, got %v", a.Velocity)
	}
	if !a.HasReported(Coord{X: 10, Y: 10}) {
		t.Error("Expected target to be remembered")
	}
	if a.Halt(Coord{X: 20, Y: 20}) {
		t.Error("Expected a halted agent to refuse a second detection")
	}
}

func TestResolve(t *testing.T) {
	a := NewAgent(1, orb.Point{10, 10}, 100)

	if err := a.Resolve(); !errors.Is(err, ErrNothingToResolve) {
		t.Errorf("Expected ErrNothingToResolve, got %v", err)
	}

	a.Assign(&Region{X: 5, Y: 5})
	a.RegionTicksSpent = 12
	a.Halt(Coord{X: 10, Y: 10})

	if err := a.Resolve(); err != nil {
		t.Fatalf("Expected resolve to succeed, got %v", err)
	}
	if a.State != StateExploring {
		t.Errorf("Expected exploring, got %s", a.State)
	}
	if a.PendingDetection != nil {
		t.Errorf("Expected no pending detection, got %v", a.PendingDetection)
	}
	if a.AssignedRegion != nil || a.RegionTicksSpent != 0 {
		t.Errorf("Expected region cleared, got %v after %d ticks", a.AssignedRegion, a.RegionTicksSpent)
	}
}

func TestManualStep(t *testing.T) {
	f := newTestField(t)
	a := NewAgent(1, orb.Point{20, 20}, 100)
	a.Velocity = orb.Point{0.3, 0.3}

	a.ManualStep(DirectionUp, 1, f)
	if a.Position != (orb.Point{20, 19}) {
		t.Errorf("Expected (20, 19), got %v", a.Position)
	}
	if a.State != StateManualControl {
		t.Errorf("Expected manual, got %s", a.State)
	}
	if a.Velocity != (orb.Point{0, 0}) {
		t.Errorf("Expected zero velocity, got %v", a.Velocity)
	}

	a.ManualStep(DirectionRight, 1, f)
	if a.Position != (orb.Point{21, 19}) {
		t.Errorf("Expected (21, 19), got %v", a.Position)
	}

	edge := NewAgent(2, orb.Point{0, 0}, 100)
	edge.ManualStep(DirectionUp, 1, f)
	edge.ManualStep(DirectionLeft, 1, f)
	if edge.Position != (orb.Point{0, 0}) {
		t.Errorf("Expected clamped (0, 0), got %v", edge.Position)
	}
}

func TestManualStepFromHaltedKeepsDetection(t *testing.T) {
	f := newTestField(t)
	a := NewAgent(1, orb.Point{10, 10}, 100)
	a.Halt(Coord{X: 10, Y: 10})

	a.ManualStep(DirectionDown, 1, f)
	if a.PendingDetection == nil {
		t.Error("Expected pending detection to survive manual takeover")
	}
	if a.Position != (orb.Point{10, 11}) {
		t.Errorf("Expected (10, 11), got %v", a.Position)
	}
}

func TestAdvanceFloorsEnergy(t *testing.T) {
	f := newTestField(t)
	a := NewAgent(1, orb.Point{49, 0}, 0.05)
	a.Velocity = orb.Point{1, -1}

	a.Advance(f, 0.1)
	if a.Energy != 0 {
		t.Errorf("Expected energy 0, got %f", a.Energy)
	}
	if a.Position != (orb.Point{49, 0}) {
		t.Errorf("Expected clamped (49, 0), got %v", a.Position)
	}
}

func TestSteer(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	p := MotionParams{CruiseSpeed: 0.5, ArrivalThreshold: 0.5}

	a := NewAgent(1, orb.Point{0, 0}, 100)
	a.Steer(orb.Point{10, 0}, p, rng)
	if a.Velocity != (orb.Point{0.5, 0}) {
		t.Errorf("Expected (0.5, 0), got %v", a.Velocity)
	}

	a.Position = orb.Point{9.8, 0}
	a.Steer(orb.Point{10, 0}, p, rng)
	if a.Velocity != (orb.Point{0, 0}) {
		t.Errorf("Expected loiter with no jitter to stand still, got %v", a.Velocity)
	}

	p.Jitter = 0.1
	a.Position = orb.Point{0, 0}
	a.Steer(orb.Point{10, 0}, p, rng)
	if a.Velocity[0] < 0.4 || a.Velocity[0] > 0.6 || a.Velocity[1] < -0.1 || a.Velocity[1] > 0.1 {
		t.Errorf("Expected velocity within jitter bounds, got %v", a.Velocity)
	}
}

func TestAvoidPushesApart(t *testing.T) {
	p := MotionParams{AvoidDistance: 1.5, AvoidForce: 0.3}
	a := NewAgent(1, orb.Point{10, 10}, 100)
	b := NewAgent(2, orb.Point{11, 10}, 100)

	a.Avoid([]*Agent{a, b}, p)
	if a.Velocity[0] >= 0 {
		t.Errorf("Expected negative x velocity, got %v", a.Velocity)
	}

	far := NewAgent(3, orb.Point{20, 20}, 100)
	far.Avoid([]*Agent{a, b, far}, p)
	if far.Velocity != (orb.Point{0, 0}) {
		t.Errorf("Expected no avoidance for distant agent, got %v", far.Velocity)
	}

	p.AvoidDistance = 0
	c := NewAgent(4, orb.Point{10, 10.5}, 100)
	c.Avoid([]*Agent{a, c}, p)
	if c.Velocity != (orb.Point{0, 0}) {
		t.Errorf("Expected avoidance disabled, got %v", c.Velocity)
	}
}

func TestCrossedLowEnergyOnce(t *testing.T) {
	a := NewAgent(1, orb.Point{0, 0}, 250)
	if a.CrossedLowEnergy(200) {
		t.Error("Expected no notice above threshold")
	}
	a.Energy = 150
	if !a.CrossedLowEnergy(200) {
		t.Error("Expected notice below threshold")
	}
	a.Energy = 100
	if a.CrossedLowEnergy(200) {
		t.Error("Expected notice only once")
	}
}

func TestDirectionText(t *testing.T) {
	for _, name := range []string{"up", "down", "left", "right"} {
		d, err := ParseDirection(name)
		if err != nil {
			t.Errorf("Failed to parse %q: %v", name, err)
			continue
		}
		if d.String() != name {
			t.Errorf("Expected %q, got %q", name, d.String())
		}
	}
	if _, err := ParseDirection("sideways"); err == nil {
		t.Error("Expected error for unknown direction")
	}
}

func TestAgentStateText(t *testing.T) {
	var s AgentState
	if err := s.UnmarshalText([]byte("manual")); err != nil {
		t.Fatalf("Failed to unmarshal: %v", err)
	}
	if s != StateManualControl {
		t.Errorf("Expected manual, got %s", s)
	}
	if err := s.UnmarshalText([]byte("crashed")); err == nil {
		t.Error("Expected error for unknown state")
	}
}
