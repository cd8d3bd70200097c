package core

import (
	"fmt"
	"math"
	"math/rand"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// AgentState is the behavioural mode of an agent
type AgentState int

const (
	StateExploring AgentState = iota
	StateHalted
	StateManualControl
)

func (s AgentState) String() string {
	switch s {
	case StateExploring:
		return "exploring"
	case StateHalted:
		return "halted"
	case StateManualControl:
		return "manual"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// MarshalText encodes the state by name
func (s AgentState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a state name
func (s *AgentState) UnmarshalText(b []byte) error {
	switch strings.ToLower(string(b)) {
	case "exploring":
		*s = StateExploring
	case "halted":
		*s = StateHalted
	case "manual":
		*s = StateManualControl
	default:
		return fmt.Errorf("unknown agent state %q", string(b))
	}
	return nil
}

// Direction is a manual movement direction. Up decreases y.
type Direction int

const (
	DirectionUp Direction = iota
	DirectionDown
	DirectionLeft
	DirectionRight
)

// ParseDirection converts "up", "down", "left" or "right" to a Direction
func ParseDirection(s string) (Direction, error) {
	var d Direction
	err := d.UnmarshalText([]byte(s))
	return d, err
}

func (d Direction) String() string {
	switch d {
	case DirectionUp:
		return "up"
	case DirectionDown:
		return "down"
	case DirectionLeft:
		return "left"
	case DirectionRight:
		return "right"
	default:
		return fmt.Sprintf("direction(%d)", int(d))
	}
}

// MarshalText encodes the direction by name
func (d Direction) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText decodes a direction name
func (d *Direction) UnmarshalText(b []byte) error {
	switch strings.ToLower(string(b)) {
	case "up":
		*d = DirectionUp
	case "down":
		*d = DirectionDown
	case "left":
		*d = DirectionLeft
	case "right":
		*d = DirectionRight
	default:
		return fmt.Errorf("unknown direction %q", string(b))
	}
	return nil
}

// unit returns the one-unit displacement for d
func (d Direction) unit() orb.Point {
	switch d {
	case DirectionUp:
		return orb.Point{0, -1}
	case DirectionDown:
		return orb.Point{0, 1}
	case DirectionLeft:
		return orb.Point{-1, 0}
	case DirectionRight:
		return orb.Point{1, 0}
	default:
		return orb.Point{0, 0}
	}
}

// MotionParams tunes autonomous steering
type MotionParams struct {
	CruiseSpeed      float64
	Jitter           float64
	LoiterJitter     float64
	ArrivalThreshold float64
	AvoidDistance    float64
	AvoidForce       float64
}

// Agent is one drone. Agents are owned and mutated by the Engine only.
type Agent struct {
	ID               int
	Position         orb.Point
	Velocity         orb.Point
	Energy           float64
	State            AgentState
	AssignedRegion   *Region
	RegionTicksSpent int
	PendingDetection *Coord

	reported      map[Coord]struct{}
	lowEnergySeen bool
}

// NewAgent creates an exploring agent
func NewAgent(id int, position orb.Point, energy float64) *Agent {
	return &Agent{
		ID:       id,
		Position: position,
		Energy:   energy,
		State:    StateExploring,
		reported: make(map[Coord]struct{}),
	}
}

// HasReported reports whether the agent already raised a detection for target
func (a *Agent) HasReported(target Coord) bool {
	_, ok := a.reported[target]
	return ok
}

// Halt records a detection and stops the agent. Only an exploring agent with
// no pending detection can halt.
func (a *Agent) Halt(target Coord) bool {
	if a.State != StateExploring || a.PendingDetection != nil {
		return false
	}
	t := target
	a.PendingDetection = &t
	a.State = StateHalted
	a.Velocity = orb.Point{0, 0}
	a.reported[target] = struct{}{}
	return true
}

// Resolve returns a halted or manually controlled agent to exploration and
// forces a fresh region assignment
func (a *Agent) Resolve() error {
	if a.State == StateExploring {
		return ErrNothingToResolve
	}
	a.State = StateExploring
	a.PendingDetection = nil
	a.Velocity = orb.Point{0, 0}
	a.Assign(nil)
	return nil
}

// ManualStep switches the agent to manual control and moves it one step
func (a *Agent) ManualStep(d Direction, step float64, field *SpatialField) {
	a.State = StateManualControl
	a.Velocity = orb.Point{0, 0}
	u := d.unit()
	a.Position = field.Clamp(orb.Point{a.Position[0] + u[0]*step, a.Position[1] + u[1]*step})
}

// Assign sets the region in progress and resets the region tick counter
func (a *Agent) Assign(r *Region) {
	if r == nil {
		a.AssignedRegion = nil
	} else {
		region := *r
		a.AssignedRegion = &region
	}
	a.RegionTicksSpent = 0
}

// Steer sets the velocity toward target with jitter, or loiters when close
func (a *Agent) Steer(target orb.Point, p MotionParams, rng *rand.Rand) {
	dx := target[0] - a.Position[0]
	dy := target[1] - a.Position[1]
	dist := math.Hypot(dx, dy)

	if dist > p.ArrivalThreshold && dist > 0 {
		a.Velocity = orb.Point{
			dx/dist*p.CruiseSpeed + jitter(rng, p.Jitter),
			dy/dist*p.CruiseSpeed + jitter(rng, p.Jitter),
		}
		return
	}

	a.Loiter(p, rng)
}

// Loiter replaces the velocity with small random motion
func (a *Agent) Loiter(p MotionParams, rng *rand.Rand) {
	a.Velocity = orb.Point{jitter(rng, p.LoiterJitter), jitter(rng, p.LoiterJitter)}
}

// Avoid adds a repulsive term for every other agent closer than AvoidDistance
func (a *Agent) Avoid(others []*Agent, p MotionParams) {
	if p.AvoidDistance <= 0 {
		return
	}
	for _, o := range others {
		if o.ID == a.ID {
			continue
		}
		d := planar.Distance(a.Position, o.Position)
		if d <= 0 || d >= p.AvoidDistance {
			continue
		}
		force := p.AvoidForce / (d + 0.1)
		a.Velocity[0] += (a.Position[0] - o.Position[0]) / d * force
		a.Velocity[1] += (a.Position[1] - o.Position[1]) / d * force
	}
}

// Advance applies the velocity, clamps to the field and spends energy
func (a *Agent) Advance(field *SpatialField, cost float64) {
	a.Position = field.Clamp(orb.Point{a.Position[0] + a.Velocity[0], a.Position[1] + a.Velocity[1]})
	a.Energy = math.Max(0, a.Energy-cost)
}

// CrossedLowEnergy reports true exactly once, the first time energy falls
// below threshold
func (a *Agent) CrossedLowEnergy(threshold float64) bool {
	if a.lowEnergySeen || a.Energy >= threshold {
		return false
	}
	a.lowEnergySeen = true
	return true
}

// Status returns the snapshot view of the agent
func (a *Agent) Status() AgentStatus {
	s := AgentStatus{
		ID:       a.ID,
		Position: a.Position,
		State:    a.State,
		Energy:   a.Energy,
	}
	if a.AssignedRegion != nil {
		r := *a.AssignedRegion
		s.AssignedRegion = &r
	}
	if a.PendingDetection != nil {
		c := *a.PendingDetection
		s.PendingDetection = &c
	}
	return s
}

func jitter(rng *rand.Rand, magnitude float64) float64 {
	if magnitude <= 0 {
		return 0
	}
	return (rng.Float64()*2 - 1) * magnitude
}
