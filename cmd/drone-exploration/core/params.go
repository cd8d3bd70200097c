package core

import (
	"fmt"
	"time"

	"github.com/paulmach/orb"
)

// Params configures an Engine
type Params struct {
	Width  int
	Height int

	// Targets is used as-is when set, otherwise TargetCount targets are
	// placed at random
	Targets     []Coord
	TargetCount int

	AgentCount int
	// SpawnPositions places the first agents explicitly; the rest spawn at
	// random points
	SpawnPositions []orb.Point

	InitialEnergy      float64
	EnergyCost         float64
	LowEnergyThreshold float64

	DetectionRadius  float64
	CruiseSpeed      float64
	ManualStep       float64
	Jitter           float64
	LoiterJitter     float64
	ArrivalThreshold float64
	MinAgentDistance float64
	AvoidanceForce   float64

	RegionSize       int
	ExploreThreshold int

	// Assignment selects the region strategy, AssignFirstUnexplored when
	// empty. The partition fields only apply to AssignVoronoi.
	Assignment           string
	PartitionInterval    int
	PartitionMinMovement float64

	SnapshotInterval int
	TickInterval     time.Duration

	Seed int64
}

// DefaultParams returns the stock 50x50 scenario
func DefaultParams() Params {
	return Params{
		Width:                50,
		Height:               50,
		TargetCount:          3,
		AgentCount:           20,
		InitialEnergy:        1000,
		EnergyCost:           0.1,
		LowEnergyThreshold:   200,
		DetectionRadius:      2.0,
		CruiseSpeed:          0.5,
		ManualStep:           1.0,
		Jitter:               0.1,
		LoiterJitter:         0.3,
		ArrivalThreshold:     0.5,
		MinAgentDistance:     1.5,
		AvoidanceForce:       0.3,
		RegionSize:           5,
		ExploreThreshold:     50,
		Assignment:           AssignFirstUnexplored,
		PartitionInterval:    DefaultPartitionInterval,
		PartitionMinMovement: DefaultPartitionMinMovement,
		SnapshotInterval:     5,
		TickInterval:         100 * time.Millisecond,
		Seed:                 1,
	}
}

// Validate checks that the parameters describe a runnable simulation
func (p Params) Validate() error {
	if p.Width < MinFieldSize || p.Height < MinFieldSize {
		return fmt.Errorf("%w: field must be at least %dx%d", ErrInvalidParams, MinFieldSize, MinFieldSize)
	}
	if len(p.Targets) == 0 && p.TargetCount < 1 {
		return fmt.Errorf("%w: at least one target is required", ErrInvalidParams)
	}
	if p.AgentCount < 1 {
		return fmt.Errorf("%w: at least one agent is required", ErrInvalidParams)
	}
	if len(p.SpawnPositions) > p.AgentCount {
		return fmt.Errorf("%w: %d spawn positions for %d agents", ErrInvalidParams, len(p.SpawnPositions), p.AgentCount)
	}
	if p.InitialEnergy < 0 || p.EnergyCost < 0 {
		return fmt.Errorf("%w: energy values must not be negative", ErrInvalidParams)
	}
	if p.DetectionRadius < 0 {
		return fmt.Errorf("%w: detection radius must not be negative", ErrInvalidParams)
	}
	if p.CruiseSpeed <= 0 || p.ManualStep <= 0 {
		return fmt.Errorf("%w: speeds must be positive", ErrInvalidParams)
	}
	if p.Jitter < 0 || p.LoiterJitter < 0 || p.ArrivalThreshold < 0 {
		return fmt.Errorf("%w: jitter and arrival threshold must not be negative", ErrInvalidParams)
	}
	if p.MinAgentDistance < 0 || p.AvoidanceForce < 0 {
		return fmt.Errorf("%w: avoidance values must not be negative", ErrInvalidParams)
	}
	if p.RegionSize < 1 {
		return fmt.Errorf("%w: region size must be positive", ErrInvalidParams)
	}
	if p.ExploreThreshold < 1 {
		return fmt.Errorf("%w: explore threshold must be positive", ErrInvalidParams)
	}
	switch p.assignment() {
	case AssignFirstUnexplored:
	case AssignVoronoi:
		if p.PartitionInterval < 1 {
			return fmt.Errorf("%w: partition interval must be positive", ErrInvalidParams)
		}
		if p.PartitionMinMovement < 0 {
			return fmt.Errorf("%w: partition movement must not be negative", ErrInvalidParams)
		}
	default:
		return fmt.Errorf("%w: unknown assignment %q", ErrInvalidParams, p.Assignment)
	}
	if p.SnapshotInterval < 0 {
		return fmt.Errorf("%w: snapshot interval must not be negative", ErrInvalidParams)
	}
	if p.TickInterval < 0 {
		return fmt.Errorf("%w: tick interval must not be negative", ErrInvalidParams)
	}
	return nil
}

func (p Params) motion() MotionParams {
	return MotionParams{
		CruiseSpeed:      p.CruiseSpeed,
		Jitter:           p.Jitter,
		LoiterJitter:     p.LoiterJitter,
		ArrivalThreshold: p.ArrivalThreshold,
		AvoidDistance:    p.MinAgentDistance,
		AvoidForce:       p.AvoidanceForce,
	}
}

func (p Params) assignment() string {
	if p.Assignment == "" {
		return AssignFirstUnexplored
	}
	return p.Assignment
}
