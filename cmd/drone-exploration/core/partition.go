package core

import (
	"math"
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// Region assignment strategies
const (
	// AssignFirstUnexplored hands every idle agent the first unexplored
	// region in grid order
	AssignFirstUnexplored = "first"

	// AssignVoronoi splits unexplored regions among exploring agents by
	// nearest agent and lets each agent pick the closest of its own
	AssignVoronoi = "voronoi"
)

// Partition defaults
const (
	DefaultPartitionInterval    = 20
	DefaultPartitionMinMovement = 3.0

	// Below partitionMinAgents exploring agents the nearest-agent split is
	// replaced by giving each agent its partitionFallbackRegions closest regions
	partitionMinAgents       = 4
	partitionFallbackRegions = 5
)

// Partitioner divides unexplored regions among exploring agents. Each
// unexplored region belongs to the agent closest to its center. The split is
// recomputed at most every interval ticks and only when the exploring set
// changed or some agent moved at least minMovement since the last split.
type Partitioner struct {
	regions     *RegionAssigner
	interval    uint64
	minMovement float64

	assignments map[int][]Region
	positions   map[int]orb.Point
	lastUpdate  uint64
	updated     bool
}

// NewPartitioner creates a partitioner over the regions of ra
func NewPartitioner(ra *RegionAssigner, interval int, minMovement float64) *Partitioner {
	return &Partitioner{
		regions:     ra,
		interval:    uint64(interval),
		minMovement: minMovement,
		assignments: make(map[int][]Region),
	}
}

// ShouldUpdate reports whether the split is due at tick for the given
// exploring agents
func (p *Partitioner) ShouldUpdate(tick uint64, exploring []*Agent) bool {
	if !p.updated {
		return true
	}
	if tick-p.lastUpdate < p.interval {
		return false
	}
	if len(exploring) != len(p.positions) {
		return true
	}

	moved := 0.0
	for _, a := range exploring {
		last, ok := p.positions[a.ID]
		if !ok {
			return true
		}
		moved = math.Max(moved, planar.Distance(a.Position, last))
	}
	return moved >= p.minMovement
}

// Update recomputes the split for the exploring agents and records their
// positions. Nothing changes when no region is left to explore.
func (p *Partitioner) Update(tick uint64, exploring []*Agent) {
	unexplored := p.unexplored()
	if len(unexplored) == 0 {
		return
	}

	assignments := make(map[int][]Region, len(exploring))
	switch {
	case len(exploring) == 0:
	case len(exploring) < partitionMinAgents:
		for _, a := range exploring {
			assignments[a.ID] = closestRegions(a.Position, unexplored, partitionFallbackRegions)
		}
	default:
		for _, r := range unexplored {
			owner := nearestAgent(p.regions.Center(r), exploring)
			assignments[owner.ID] = append(assignments[owner.ID], r)
		}
	}

	positions := make(map[int]orb.Point, len(exploring))
	for _, a := range exploring {
		positions[a.ID] = a.Position
	}

	p.assignments = assignments
	p.positions = positions
	p.lastUpdate = tick
	p.updated = true
}

// Assigned returns the regions currently owned by an agent
func (p *Partitioner) Assigned(agentID int) []Region {
	out := make([]Region, len(p.assignments[agentID]))
	copy(out, p.assignments[agentID])
	return out
}

// Pick returns the closest still unexplored region owned by a
func (p *Partitioner) Pick(a *Agent) (Region, bool) {
	var (
		best  Region
		found bool
		bestD float64
	)
	for _, r := range p.assignments[a.ID] {
		if p.regions.IsExplored(r) {
			continue
		}
		d := planar.Distance(a.Position, origin(r))
		if !found || d < bestD {
			best, bestD, found = r, d, true
		}
	}
	return best, found
}

func (p *Partitioner) unexplored() []Region {
	var out []Region
	for _, r := range p.regions.Regions() {
		if !p.regions.IsExplored(r) {
			out = append(out, r)
		}
	}
	return out
}

func nearestAgent(pt orb.Point, agents []*Agent) *Agent {
	best := agents[0]
	bestD := planar.Distance(pt, best.Position)
	for _, a := range agents[1:] {
		if d := planar.Distance(pt, a.Position); d < bestD {
			best, bestD = a, d
		}
	}
	return best
}

// closestRegions returns up to n regions ordered by distance from pt to
// their origin
func closestRegions(pt orb.Point, regions []Region, n int) []Region {
	sorted := make([]Region, len(regions))
	copy(sorted, regions)
	sort.SliceStable(sorted, func(i, j int) bool {
		return planar.Distance(pt, origin(sorted[i])) < planar.Distance(pt, origin(sorted[j]))
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

func origin(r Region) orb.Point {
	return orb.Point{float64(r.X), float64(r.Y)}
}
