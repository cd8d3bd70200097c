package operator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/paulmach/orb"
	"github.com/picogrid/swarm-exploration/cmd/drone-exploration/core"
	"github.com/picogrid/swarm-exploration/cmd/drone-exploration/reporting"
	"github.com/picogrid/swarm-exploration/pkg/logger"
)

// Resolution policies
const (
	PolicyAccept      = "accept"
	PolicyDiscard     = "discard"
	PolicyHold        = "hold"
	PolicyInteractive = "interactive"
)

// ErrNoInvestigation is returned when no detection is queued for an agent
var ErrNoInvestigation = errors.New("no pending investigation for agent")

// Investigation is a detection waiting for an operator verdict
type Investigation struct {
	AgentID       int
	Target        core.Coord
	AgentPosition orb.Point
	Tick          uint64
	ReceivedAt    time.Time
}

// DecisionRecorder receives operator verdicts
type DecisionRecorder interface {
	LogDecision(agentID int, target core.Coord, decision string)
}

// Config configures a Console
type Config struct {
	Policy       string
	PollInterval time.Duration
}

// Option configures a Console
type Option func(*Console)

// WithPrompter sets the prompter used by the interactive policy
func WithPrompter(p Prompter) Option {
	return func(c *Console) { c.prompter = p }
}

// WithRecorder records verdicts, typically into a reporting.SimulationLogger
func WithRecorder(r DecisionRecorder) Option {
	return func(c *Console) { c.recorder = r }
}

// WithSnapshotHandler is called for every snapshot received
func WithSnapshotHandler(fn func(core.Snapshot)) Option {
	return func(c *Console) { c.onSnapshot = fn }
}

// WithLogger replaces the console logger
func WithLogger(l logger.Logger) Option {
	return func(c *Console) { c.log = l }
}

// Console is the operator side of a ControlChannel. It keeps an
// investigation queue of halted agents and resolves them by policy.
type Console struct {
	endpoint     core.OperatorEndpoint
	policy       string
	pollInterval time.Duration
	prompter     Prompter
	recorder     DecisionRecorder
	onSnapshot   func(core.Snapshot)
	log          logger.Logger

	mu        sync.Mutex
	queue     []Investigation
	confirmed []core.Coord
	discarded []core.Coord
	latest    *core.Snapshot
}

// NewConsole creates a console bound to endpoint
func NewConsole(endpoint core.OperatorEndpoint, cfg Config, opts ...Option) (*Console, error) {
	switch cfg.Policy {
	case PolicyAccept, PolicyDiscard, PolicyHold, PolicyInteractive:
	default:
		return nil, fmt.Errorf("unknown operator policy %q", cfg.Policy)
	}
	if cfg.PollInterval <= 0 {
		return nil, fmt.Errorf("poll interval must be positive")
	}

	c := &Console{
		endpoint:     endpoint,
		policy:       cfg.Policy,
		pollInterval: cfg.PollInterval,
		log:          logger.WithPrefix("operator"),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.policy == PolicyInteractive && c.prompter == nil {
		return nil, fmt.Errorf("interactive policy requires a prompter")
	}

	return c, nil
}

// Run polls the channel every PollInterval until ctx is cancelled
func (c *Console) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.Process(ctx)
			return nil
		case <-ticker.C:
			c.Process(ctx)
		}
	}
}

// Process drains the outbound queue and applies the policy. It returns the
// number of messages handled. Interactive prompts are abandoned once ctx is
// done; their agents stay halted.
func (c *Console) Process(ctx context.Context) int {
	msgs := c.endpoint.Poll()
	for _, msg := range msgs {
		switch m := msg.(type) {
		case core.DetectionEvent:
			c.enqueue(m)
		case core.Snapshot:
			c.mu.Lock()
			snap := m
			c.latest = &snap
			c.mu.Unlock()
			if c.onSnapshot != nil {
				c.onSnapshot(m)
			}
		}
	}

	c.resolve(ctx)
	return len(msgs)
}

// Accept confirms the queued detection for agentID
func (c *Console) Accept(agentID int) error {
	inv, err := c.take(agentID)
	if err != nil {
		return err
	}
	c.endpoint.Send(core.AcceptDetection{Agent: agentID})
	c.record(inv, reporting.DecisionConfirmed)
	return nil
}

// Discard rejects the queued detection for agentID
func (c *Console) Discard(agentID int) error {
	inv, err := c.take(agentID)
	if err != nil {
		return err
	}
	c.endpoint.Send(core.DiscardDetection{Agent: agentID})
	c.record(inv, reporting.DecisionDiscarded)
	return nil
}

// Move sends a manual step. The agent stays in the investigation queue
// until its detection is accepted or discarded.
func (c *Console) Move(agentID int, d core.Direction) {
	c.endpoint.Send(core.ManualMove{Agent: agentID, Direction: d})
}

// Queue returns the pending investigations, oldest first
func (c *Console) Queue() []Investigation {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Investigation, len(c.queue))
	copy(out, c.queue)
	return out
}

// Confirmed returns the confirmed targets in confirmation order
func (c *Console) Confirmed() []core.Coord {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]core.Coord(nil), c.confirmed...)
}

// Discarded returns the discarded targets in order
func (c *Console) Discarded() []core.Coord {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]core.Coord(nil), c.discarded...)
}

// LatestSnapshot returns the most recent snapshot received
func (c *Console) LatestSnapshot() (core.Snapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.latest == nil {
		return core.Snapshot{}, false
	}
	return *c.latest, true
}

func (c *Console) enqueue(ev core.DetectionEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.queue = append(c.queue, Investigation{
		AgentID:       ev.AgentID,
		Target:        ev.TargetPosition,
		AgentPosition: ev.AgentPosition,
		Tick:          ev.Tick,
		ReceivedAt:    time.Now(),
	})
	c.log.WithField("agent", ev.AgentID).Infof("Investigation queued for target %s (%d pending)", ev.TargetPosition, len(c.queue))
}

func (c *Console) resolve(ctx context.Context) {
	switch c.policy {
	case PolicyAccept:
		for _, inv := range c.Queue() {
			_ = c.Accept(inv.AgentID)
		}
	case PolicyDiscard:
		for _, inv := range c.Queue() {
			_ = c.Discard(inv.AgentID)
		}
	case PolicyInteractive:
		c.resolveInteractive(ctx)
	}
}

// resolveInteractive asks about each queued investigation once per pass.
// Detections of targets that are already confirmed are accepted without
// asking.
func (c *Console) resolveInteractive(ctx context.Context) {
	for _, inv := range c.Queue() {
		if c.isConfirmed(inv.Target) {
			c.log.WithField("agent", inv.AgentID).Infof("Target %s already confirmed", inv.Target)
			_ = c.Accept(inv.AgentID)
			continue
		}

		if ctx.Err() != nil {
			return
		}

		snap, _ := c.LatestSnapshot()
		action, err := c.prompter.Decide(ctx, inv, snap)
		if ctx.Err() != nil {
			c.log.Debugf("Prompt for agent %d abandoned: %v", inv.AgentID, ctx.Err())
			return
		}
		if err != nil {
			c.log.Warnf("Prompt failed, leaving agent %d halted: %v", inv.AgentID, err)
			return
		}

		switch action.Kind {
		case ActionAccept:
			_ = c.Accept(inv.AgentID)
		case ActionDiscard:
			_ = c.Discard(inv.AgentID)
		case ActionMove:
			c.Move(inv.AgentID, action.Direction)
		case ActionSkip:
			c.rotate(inv.AgentID)
		}
	}
}

func (c *Console) take(agentID int) (Investigation, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i, inv := range c.queue {
		if inv.AgentID == agentID {
			c.queue = append(c.queue[:i], c.queue[i+1:]...)
			return inv, nil
		}
	}
	return Investigation{}, fmt.Errorf("%w %d", ErrNoInvestigation, agentID)
}

// rotate moves agentID's investigation to the back of the queue
func (c *Console) rotate(agentID int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i, inv := range c.queue {
		if inv.AgentID == agentID {
			c.queue = append(append(c.queue[:i:i], c.queue[i+1:]...), inv)
			return
		}
	}
}

func (c *Console) isConfirmed(target core.Coord) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, t := range c.confirmed {
		if t == target {
			return true
		}
	}
	return false
}

func (c *Console) record(inv Investigation, decision string) {
	c.mu.Lock()
	switch decision {
	case reporting.DecisionConfirmed:
		known := false
		for _, t := range c.confirmed {
			if t == inv.Target {
				known = true
				break
			}
		}
		if !known {
			c.confirmed = append(c.confirmed, inv.Target)
		}
	case reporting.DecisionDiscarded:
		c.discarded = append(c.discarded, inv.Target)
	}
	c.mu.Unlock()

	if c.recorder != nil {
		c.recorder.LogDecision(inv.AgentID, inv.Target, decision)
	}
}
