package core

import "sync"

// Queue is an unbounded FIFO safe for concurrent producers and a single
// consumer. Push never blocks; Drain empties the queue without waiting.
type Queue[T any] struct {
	mu    sync.Mutex
	items []T
}

// NewQueue creates an empty queue
func NewQueue[T any]() *Queue[T] {
	return &Queue[T]{}
}

// Push appends v
func (q *Queue[T]) Push(v T) {
	q.mu.Lock()
	q.items = append(q.items, v)
	q.mu.Unlock()
}

// Drain removes and returns everything queued, oldest first
func (q *Queue[T]) Drain() []T {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return nil
	}
	out := q.items
	q.items = nil
	return out
}

// Len returns the number of queued items
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// OperatorEndpoint is the operator's view of a ControlChannel
type OperatorEndpoint interface {
	Send(cmd Command)
	Poll() []Outbound
}

// ChannelStats counts traffic through a ControlChannel
type ChannelStats struct {
	CommandsSent    int64
	CommandsDrained int64
	OutboundSent    int64
	OutboundPolled  int64
	SnapshotsSent   int64
	DetectionsSent  int64
	PendingCommands int
	PendingOutbound int
}

// ControlChannel connects the engine and an operator. Commands flow from the
// operator to the engine and snapshots and detection events flow back. Neither
// side ever blocks on the other.
type ControlChannel struct {
	commands *Queue[Command]
	outbound *Queue[Outbound]

	mu     sync.Mutex
	latest *Snapshot
	stats  ChannelStats
}

// NewControlChannel creates an empty channel
func NewControlChannel() *ControlChannel {
	return &ControlChannel{
		commands: NewQueue[Command](),
		outbound: NewQueue[Outbound](),
	}
}

// Send queues a command for the next tick
func (c *ControlChannel) Send(cmd Command) {
	if cmd == nil {
		return
	}
	c.commands.Push(cmd)

	c.mu.Lock()
	c.stats.CommandsSent++
	c.mu.Unlock()
}

// Poll returns every outbound message published since the last poll
func (c *ControlChannel) Poll() []Outbound {
	msgs := c.outbound.Drain()

	c.mu.Lock()
	c.stats.OutboundPolled += int64(len(msgs))
	c.mu.Unlock()

	return msgs
}

// LatestSnapshot returns the most recent snapshot published, if any
func (c *ControlChannel) LatestSnapshot() (Snapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.latest == nil {
		return Snapshot{}, false
	}
	return *c.latest, true
}

// Stats returns a copy of the traffic counters
func (c *ControlChannel) Stats() ChannelStats {
	c.mu.Lock()
	s := c.stats
	c.mu.Unlock()

	s.PendingCommands = c.commands.Len()
	s.PendingOutbound = c.outbound.Len()
	return s
}

// drainCommands is called by the engine once per tick
func (c *ControlChannel) drainCommands() []Command {
	cmds := c.commands.Drain()

	c.mu.Lock()
	c.stats.CommandsDrained += int64(len(cmds))
	c.mu.Unlock()

	return cmds
}

// publish is called by the engine to hand a message to the operator
func (c *ControlChannel) publish(msg Outbound) {
	c.outbound.Push(msg)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.stats.OutboundSent++
	switch m := msg.(type) {
	case Snapshot:
		c.stats.SnapshotsSent++
		snap := m
		c.latest = &snap
	case DetectionEvent:
		c.stats.DetectionsSent++
	}
}
