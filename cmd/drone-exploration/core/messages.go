package core

import (
	"time"

	"github.com/paulmach/orb"
)

// Command is an operator instruction addressed to one agent. The set of
// commands is closed: AcceptDetection, DiscardDetection and ManualMove.
type Command interface {
	AgentID() int
	Kind() string
	isCommand()
}

// AcceptDetection confirms the agent's pending detection
type AcceptDetection struct {
	Agent int `json:"agent_id" yaml:"agent_id"`
}

// DiscardDetection rejects the agent's pending detection
type DiscardDetection struct {
	Agent int `json:"agent_id" yaml:"agent_id"`
}

// ManualMove takes over an agent and moves it one step
type ManualMove struct {
	Agent     int       `json:"agent_id" yaml:"agent_id"`
	Direction Direction `json:"direction" yaml:"direction"`
}

func (c AcceptDetection) AgentID() int  { return c.Agent }
func (c DiscardDetection) AgentID() int { return c.Agent }
func (c ManualMove) AgentID() int       { return c.Agent }

func (AcceptDetection) Kind() string  { return "accept" }
func (DiscardDetection) Kind() string { return "discard" }
func (ManualMove) Kind() string       { return "manual_move" }

func (AcceptDetection) isCommand()  {}
func (DiscardDetection) isCommand() {}
func (ManualMove) isCommand()       {}

// Outbound is a message from the engine to the operator: a Snapshot or a
// DetectionEvent
type Outbound interface {
	isOutbound()
}

// AgentStatus is the per-agent part of a snapshot
type AgentStatus struct {
	ID               int        `json:"id" yaml:"id"`
	Position         orb.Point  `json:"position" yaml:"position"`
	State            AgentState `json:"state" yaml:"state"`
	Energy           float64    `json:"energy" yaml:"energy"`
	AssignedRegion   *Region    `json:"assigned_region,omitempty" yaml:"assigned_region,omitempty"`
	PendingDetection *Coord     `json:"pending_detection,omitempty" yaml:"pending_detection,omitempty"`
}

// Snapshot is a periodic copy of the engine state
type Snapshot struct {
	Tick            uint64        `json:"tick"`
	Timestamp       time.Time     `json:"timestamp"`
	Agents          []AgentStatus `json:"agents"`
	ExploredRegions int           `json:"explored_regions"`
	TotalRegions    int           `json:"total_regions"`
	View            []byte        `json:"view,omitempty"`
}

// DetectionEvent is emitted once for each transition of an agent into Halted
type DetectionEvent struct {
	AgentID        int       `json:"agent_id"`
	AgentPosition  orb.Point `json:"agent_position"`
	TargetPosition Coord     `json:"target_position"`
	Tick           uint64    `json:"tick"`
	Timestamp      time.Time `json:"timestamp"`
}

func (Snapshot) isOutbound()       {}
func (DetectionEvent) isOutbound() {}

// Coverage returns the explored fraction of the field in [0, 1]
func (s Snapshot) Coverage() float64 {
	if s.TotalRegions == 0 {
		return 0
	}
	return float64(s.ExploredRegions) / float64(s.TotalRegions)
}

// CountByState tallies agents per state
func (s Snapshot) CountByState() map[AgentState]int {
	counts := make(map[AgentState]int)
	for _, a := range s.Agents {
		counts[a.State]++
	}
	return counts
}

// FieldView is the raw data handed to a Renderer
type FieldView struct {
	Width    int
	Height   int
	Targets  []Coord
	Agents   []AgentStatus
	Explored []orb.Bound
}

// Renderer turns a field view into an opaque presentation
type Renderer interface {
	Render(view FieldView) ([]byte, error)
}
