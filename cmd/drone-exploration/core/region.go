package core

import (
	"fmt"

	"github.com/paulmach/orb"
)

// Region identifies one cell of the exploration grid by its origin
type Region struct {
	X int `json:"x" yaml:"x"`
	Y int `json:"y" yaml:"y"`
}

func (r Region) String() string {
	return fmt.Sprintf("R[%d,%d]", r.X, r.Y)
}

// RegionAssigner partitions a field into fixed-size regions and tracks which
// have been explored. The explored set only grows.
type RegionAssigner struct {
	size     int
	field    orb.Bound
	regions  []Region
	explored map[Region]struct{}
	order    []Region
}

// NewRegionAssigner builds the region grid for a width x height field. Regions
// are ordered column by column: all regions with x=0 first, then x=size, and
// so on.
func NewRegionAssigner(width, height, size int) (*RegionAssigner, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: region size must be positive, got %d", ErrInvalidParams, size)
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: field must have positive dimensions", ErrInvalidParams)
	}

	var regions []Region
	for x := 0; x < width; x += size {
		for y := 0; y < height; y += size {
			regions = append(regions, Region{X: x, Y: y})
		}
	}

	return &RegionAssigner{
		size:     size,
		field:    orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{float64(width), float64(height)}},
		regions:  regions,
		explored: make(map[Region]struct{}),
	}, nil
}

// Size returns the configured region side length
func (ra *RegionAssigner) Size() int { return ra.size }

// Regions returns the full region list in assignment order
func (ra *RegionAssigner) Regions() []Region {
	out := make([]Region, len(ra.regions))
	copy(out, ra.regions)
	return out
}

// Total returns the number of regions in the grid
func (ra *RegionAssigner) Total() int { return len(ra.regions) }

// ExploredCount returns the number of explored regions
func (ra *RegionAssigner) ExploredCount() int { return len(ra.order) }

// Explored returns explored regions in the order they were completed
func (ra *RegionAssigner) Explored() []Region {
	out := make([]Region, len(ra.order))
	copy(out, ra.order)
	return out
}

// IsExplored reports whether r has been explored
func (ra *RegionAssigner) IsExplored(r Region) bool {
	_, ok := ra.explored[r]
	return ok
}

// Next returns the first unexplored region in grid order. Callers asking twice
// before anything is marked explored receive the same region.
func (ra *RegionAssigner) Next() (Region, bool) {
	for _, r := range ra.regions {
		if _, done := ra.explored[r]; !done {
			return r, true
		}
	}
	return Region{}, false
}

// MarkExplored adds r to the explored set and reports whether it was new
func (ra *RegionAssigner) MarkExplored(r Region) bool {
	if _, done := ra.explored[r]; done {
		return false
	}
	ra.explored[r] = struct{}{}
	ra.order = append(ra.order, r)
	return true
}

// Bound returns the area covered by r, clipped to the field
func (ra *RegionAssigner) Bound(r Region) orb.Bound {
	return orb.Bound{
		Min: orb.Point{float64(r.X), float64(r.Y)},
		Max: orb.Point{
			clamp(float64(r.X+ra.size), 0, ra.field.Max[0]),
			clamp(float64(r.Y+ra.size), 0, ra.field.Max[1]),
		},
	}
}

// Center returns the steering target for r
func (ra *RegionAssigner) Center(r Region) orb.Point {
	return ra.Bound(r).Center()
}
