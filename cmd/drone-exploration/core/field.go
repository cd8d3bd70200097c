package core

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// MinFieldSize is the smallest side length accepted for a field
const MinFieldSize = 10

// Coord is an integer grid coordinate
type Coord struct {
	X int `json:"x" yaml:"x"`
	Y int `json:"y" yaml:"y"`
}

// Point returns the coordinate as a continuous point
func (c Coord) Point() orb.Point {
	return orb.Point{float64(c.X), float64(c.Y)}
}

func (c Coord) String() string {
	return fmt.Sprintf("(%d, %d)", c.X, c.Y)
}

// SpatialField is the bounded exploration area and its fixed targets.
// It is read-only after construction and safe for concurrent queries.
type SpatialField struct {
	width   int
	height  int
	targets []Coord
}

// NewSpatialField validates the bounds and targets and builds a field
func NewSpatialField(width, height int, targets []Coord) (*SpatialField, error) {
	if width < MinFieldSize || height < MinFieldSize {
		return nil, fmt.Errorf("%w: field must be at least %dx%d, got %dx%d",
			ErrInvalidParams, MinFieldSize, MinFieldSize, width, height)
	}
	if len(targets) == 0 {
		return nil, fmt.Errorf("%w: at least one target is required", ErrInvalidParams)
	}

	owned := make([]Coord, len(targets))
	for i, t := range targets {
		if t.X < 0 || t.X >= width || t.Y < 0 || t.Y >= height {
			return nil, fmt.Errorf("%w: %s outside %dx%d", ErrTargetOutOfBounds, t, width, height)
		}
		owned[i] = t
	}

	return &SpatialField{width: width, height: height, targets: owned}, nil
}

// GenerateTargets places count distinct targets uniformly at random.
// Placement gives up after count*10 attempts, so fewer targets may be returned
// on a crowded field.
func GenerateTargets(rng *rand.Rand, width, height, count int) []Coord {
	targets := make([]Coord, 0, count)
	seen := make(map[Coord]struct{}, count)

	for attempts := 0; len(targets) < count && attempts < count*10; attempts++ {
		c := Coord{X: rng.Intn(width), Y: rng.Intn(height)}
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		targets = append(targets, c)
	}

	return targets
}

// Width returns the field width
func (f *SpatialField) Width() int { return f.width }

// Height returns the field height
func (f *SpatialField) Height() int { return f.height }

// Targets returns a copy of the target list
func (f *SpatialField) Targets() []Coord {
	out := make([]Coord, len(f.targets))
	copy(out, f.targets)
	return out
}

// Query returns the first target, in target-list order, within radius of p.
// It is not a nearest-target search.
func (f *SpatialField) Query(p orb.Point, radius float64) (Coord, bool) {
	return f.QueryExcluding(p, radius, nil)
}

// QueryExcluding behaves like Query but skips targets for which skip returns true
func (f *SpatialField) QueryExcluding(p orb.Point, radius float64, skip func(Coord) bool) (Coord, bool) {
	for _, t := range f.targets {
		if skip != nil && skip(t) {
			continue
		}
		if planar.Distance(p, t.Point()) <= radius {
			return t, true
		}
	}
	return Coord{}, false
}

// Clamp confines p to [0, width-1] x [0, height-1]
func (f *SpatialField) Clamp(p orb.Point) orb.Point {
	return orb.Point{
		clamp(p[0], 0, float64(f.width-1)),
		clamp(p[1], 0, float64(f.height-1)),
	}
}

// Contains reports whether p lies in the clamped area
func (f *SpatialField) Contains(p orb.Point) bool {
	return p[0] >= 0 && p[0] < float64(f.width) && p[1] >= 0 && p[1] < float64(f.height)
}

// RandomPoint returns a uniformly distributed point inside the field
func (f *SpatialField) RandomPoint(rng *rand.Rand) orb.Point {
	return f.Clamp(orb.Point{rng.Float64() * float64(f.width), rng.Float64() * float64(f.height)})
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
