package core

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/paulmach/orb"
	"github.com/picogrid/swarm-exploration/pkg/logger"
	"go.opentelemetry.io/otel/metric"
)

// Observer receives engine-side events that are not part of the operator
// protocol. Calls happen on the engine goroutine while the engine is locked;
// implementations must not block or call back into the engine.
type Observer interface {
	Detection(ev DetectionEvent)
	CommandApplied(cmd Command, tick uint64)
	CommandRejected(cmd Command, err error, tick uint64)
	RegionExplored(agentID int, r Region, tick uint64)
	LowEnergy(agentID int, energy float64, tick uint64)
}

// NopObserver ignores every event
type NopObserver struct{}

func (NopObserver) Detection(DetectionEvent)               {}
func (NopObserver) CommandApplied(Command, uint64)         {}
func (NopObserver) CommandRejected(Command, error, uint64) {}
func (NopObserver) RegionExplored(int, Region, uint64)     {}
func (NopObserver) LowEnergy(int, float64, uint64)         {}

// Option configures an Engine
type Option func(*Engine)

// WithChannel uses ch instead of a fresh ControlChannel
func WithChannel(ch *ControlChannel) Option {
	return func(e *Engine) { e.channel = ch }
}

// WithRenderer attaches a renderer used to fill Snapshot.View
func WithRenderer(r Renderer) Option {
	return func(e *Engine) { e.renderer = r }
}

// WithObserver attaches an observer
func WithObserver(o Observer) Option {
	return func(e *Engine) { e.observer = o }
}

// WithLogger replaces the engine logger
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithClock replaces the timestamp source
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithMeterProvider records engine metrics into mp instead of the global
// provider
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(e *Engine) { e.meterProvider = mp }
}

// Engine owns the field, the region grid and the agent roster and advances
// them in fixed ticks. Only the goroutine calling Step or Run mutates state.
type Engine struct {
	params   Params
	field    *SpatialField
	regions  *RegionAssigner
	split    *Partitioner
	agents   []*Agent
	index    map[int]*Agent
	channel  *ControlChannel
	renderer Renderer
	observer Observer
	log      logger.Logger
	metrics  *engineMetrics
	rng      *rand.Rand
	now      func() time.Time

	meterProvider metric.MeterProvider

	mu         sync.RWMutex
	tick       uint64
	detections uint64
	overruns   uint64
}

// NewEngine builds the field, regions and agents described by p
func NewEngine(p Params, opts ...Option) (*Engine, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	e := &Engine{
		params:   p,
		index:    make(map[int]*Agent),
		observer: NopObserver{},
		log:      logger.WithPrefix("engine"),
		rng:      rand.New(rand.NewSource(p.Seed)),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.channel == nil {
		e.channel = NewControlChannel()
	}

	targets := p.Targets
	if len(targets) == 0 {
		targets = GenerateTargets(e.rng, p.Width, p.Height, p.TargetCount)
	}

	field, err := NewSpatialField(p.Width, p.Height, targets)
	if err != nil {
		return nil, fmt.Errorf("failed to create field: %w", err)
	}
	e.field = field

	regions, err := NewRegionAssigner(p.Width, p.Height, p.RegionSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create regions: %w", err)
	}
	e.regions = regions
	if p.assignment() == AssignVoronoi {
		e.split = NewPartitioner(regions, p.PartitionInterval, p.PartitionMinMovement)
	}

	for i := 0; i < p.AgentCount; i++ {
		var pos orb.Point
		if i < len(p.SpawnPositions) {
			pos = field.Clamp(p.SpawnPositions[i])
		} else {
			pos = field.RandomPoint(e.rng)
		}
		a := NewAgent(i, pos, p.InitialEnergy)
		e.agents = append(e.agents, a)
		e.index[a.ID] = a
	}

	e.metrics, err = newEngineMetrics(e, e.meterProvider)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics: %w", err)
	}

	e.log.Debugf("Created engine: %dx%d field, %d targets, %d agents, %d regions of size %d, %s assignment",
		p.Width, p.Height, len(targets), len(e.agents), regions.Total(), regions.Size(), p.assignment())

	return e, nil
}

// Channel returns the control channel the engine drains and publishes to
func (e *Engine) Channel() *ControlChannel { return e.channel }

// Field returns the spatial field
func (e *Engine) Field() *SpatialField { return e.field }

// Params returns the engine parameters
func (e *Engine) Params() Params { return e.params }

// Tick returns the number of the last tick started
func (e *Engine) Tick() uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.tick
}

// Agents returns a copy of every agent's status
func (e *Engine) Agents() []AgentStatus {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.statuses()
}

// Agent returns the status of one agent
func (e *Engine) Agent(id int) (AgentStatus, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	a, ok := e.index[id]
	if !ok {
		return AgentStatus{}, fmt.Errorf("%w: %d", ErrUnknownAgent, id)
	}
	return a.Status(), nil
}

// ExploredRegions returns explored regions in completion order
func (e *Engine) ExploredRegions() []Region {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.regions.Explored()
}

// TotalRegions returns the size of the region grid
func (e *Engine) TotalRegions() int { return e.regions.Total() }

// Detections returns how many detection events have been emitted
func (e *Engine) Detections() uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.detections
}

// Snapshot builds a snapshot of the current state without publishing it
func (e *Engine) Snapshot() Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.snapshot(e.tick)
}

// Run steps the engine every TickInterval until ctx is cancelled. A tick that
// overruns the interval delays the next one; ticks are never skipped.
func (e *Engine) Run(ctx context.Context) error {
	e.log.Infof("Engine started: tick interval %v, snapshot every %d ticks",
		e.params.TickInterval, e.params.SnapshotInterval)

	timer := time.NewTimer(e.params.TickInterval)
	defer timer.Stop()

	for {
		if ctx.Err() != nil {
			e.log.Infof("Engine stopped after %d ticks", e.Tick())
			return nil
		}

		start := time.Now()
		e.Step(ctx)
		elapsed := time.Since(start)

		wait := e.params.TickInterval - elapsed
		if wait <= 0 {
			if e.params.TickInterval > 0 {
				e.mu.Lock()
				e.overruns++
				e.mu.Unlock()
				e.log.Debugf("Tick overran interval by %v", -wait)
			}
			continue
		}

		timer.Reset(wait)
		select {
		case <-ctx.Done():
			e.log.Infof("Engine stopped after %d ticks", e.Tick())
			return nil
		case <-timer.C:
		}
	}
}

// Step runs one tick: detection, command drain, motion and, on every
// SnapshotInterval-th tick, a snapshot. It returns false if ctx was cancelled
// before the tick completed; the remaining phases are then skipped.
func (e *Engine) Step(ctx context.Context) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	start := time.Now()
	e.tick++
	tick := e.tick

	e.detect(ctx, tick)
	if ctx.Err() != nil {
		return false
	}

	e.applyCommands(ctx, tick)
	if ctx.Err() != nil {
		return false
	}

	e.move(tick)
	if ctx.Err() != nil {
		return false
	}

	if n := e.params.SnapshotInterval; n > 0 && tick%uint64(n) == 0 {
		e.channel.publish(e.snapshot(tick))
	}

	e.metrics.ticks.Add(ctx, 1)
	e.metrics.tickDuration.Record(ctx, float64(time.Since(start).Microseconds())/1000)
	return true
}

func (e *Engine) detect(ctx context.Context, tick uint64) {
	for _, a := range e.agents {
		if a.State != StateExploring || a.PendingDetection != nil {
			continue
		}

		target, found := e.field.QueryExcluding(a.Position, e.params.DetectionRadius, a.HasReported)
		if !found || !a.Halt(target) {
			continue
		}

		ev := DetectionEvent{
			AgentID:        a.ID,
			AgentPosition:  a.Position,
			TargetPosition: target,
			Tick:           tick,
			Timestamp:      e.now(),
		}
		e.detections++
		e.channel.publish(ev)
		e.observer.Detection(ev)
		e.metrics.detections.Add(ctx, 1)

		e.log.WithFields(map[string]interface{}{"agent": a.ID, "tick": tick}).
			Infof("Target detected at %s", target)
	}
}

func (e *Engine) applyCommands(ctx context.Context, tick uint64) {
	for _, cmd := range e.channel.drainCommands() {
		if err := e.apply(cmd); err != nil {
			e.log.WithField("tick", tick).Warnf("Ignoring %s command for agent %d: %v", cmd.Kind(), cmd.AgentID(), err)
			e.observer.CommandRejected(cmd, err, tick)
			e.metrics.commandRejected(ctx, cmd.Kind(), rejectReason(err))
			continue
		}
		e.observer.CommandApplied(cmd, tick)
		e.metrics.commandApplied(ctx, cmd.Kind())
	}
}

func (e *Engine) apply(cmd Command) error {
	a, ok := e.index[cmd.AgentID()]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownAgent, cmd.AgentID())
	}

	switch c := cmd.(type) {
	case AcceptDetection, DiscardDetection:
		return a.Resolve()
	case ManualMove:
		a.ManualStep(c.Direction, e.params.ManualStep, e.field)
		return nil
	default:
		return fmt.Errorf("%w: %T", ErrUnknownCommand, cmd)
	}
}

func (e *Engine) move(tick uint64) {
	mp := e.params.motion()
	e.repartition(tick)

	for _, a := range e.agents {
		switch a.State {
		case StateExploring:
			e.steer(a, mp, tick)
			a.Avoid(e.agents, mp)
			a.Advance(e.field, e.params.EnergyCost)
		case StateManualControl:
			a.Advance(e.field, e.params.EnergyCost)
		default:
			continue
		}

		if a.CrossedLowEnergy(e.params.LowEnergyThreshold) {
			e.log.WithField("agent", a.ID).Warnf("Low energy: %.1f remaining", a.Energy)
			e.observer.LowEnergy(a.ID, a.Energy, tick)
		}
	}
}

// steer assigns a region if needed, sets the velocity toward it and counts
// the time spent on it
func (e *Engine) steer(a *Agent, mp MotionParams, tick uint64) {
	if a.AssignedRegion == nil {
		r, ok := e.nextRegion(a)
		if !ok {
			a.Loiter(mp, e.rng)
			return
		}
		a.Assign(&r)
	}

	region := *a.AssignedRegion
	a.Steer(e.regions.Center(region), mp, e.rng)

	a.RegionTicksSpent++
	if a.RegionTicksSpent >= e.params.ExploreThreshold {
		if e.regions.MarkExplored(region) {
			e.log.WithField("agent", a.ID).Debugf("Region %s explored (%d/%d)",
				region, e.regions.ExploredCount(), e.regions.Total())
			e.observer.RegionExplored(a.ID, region, tick)
		}
		a.Assign(nil)
	}
}

func (e *Engine) nextRegion(a *Agent) (Region, bool) {
	if e.split != nil {
		return e.split.Pick(a)
	}
	return e.regions.Next()
}

func (e *Engine) repartition(tick uint64) {
	if e.split == nil {
		return
	}

	var exploring []*Agent
	for _, a := range e.agents {
		if a.State == StateExploring {
			exploring = append(exploring, a)
		}
	}
	if !e.split.ShouldUpdate(tick, exploring) {
		return
	}

	e.split.Update(tick, exploring)
	e.log.WithField("tick", tick).Debugf("Regions partitioned among %d exploring agents", len(exploring))
}

func (e *Engine) statuses() []AgentStatus {
	out := make([]AgentStatus, len(e.agents))
	for i, a := range e.agents {
		out[i] = a.Status()
	}
	return out
}

func (e *Engine) snapshot(tick uint64) Snapshot {
	s := Snapshot{
		Tick:            tick,
		Timestamp:       e.now(),
		Agents:          e.statuses(),
		ExploredRegions: e.regions.ExploredCount(),
		TotalRegions:    e.regions.Total(),
	}

	if e.renderer != nil {
		view, err := e.renderer.Render(e.fieldView(s.Agents))
		if err != nil {
			e.log.Warnf("Render failed: %v", err)
		} else {
			s.View = view
		}
	}

	return s
}

func (e *Engine) fieldView(agents []AgentStatus) FieldView {
	explored := e.regions.Explored()
	bounds := make([]orb.Bound, len(explored))
	for i, r := range explored {
		bounds[i] = e.regions.Bound(r)
	}
	return FieldView{
		Width:    e.field.Width(),
		Height:   e.field.Height(),
		Targets:  e.field.Targets(),
		Agents:   agents,
		Explored: bounds,
	}
}

func (e *Engine) exploredCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.regions.ExploredCount()
}

// Overruns returns how many ticks took longer than the tick interval
func (e *Engine) Overruns() uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.overruns
}
