package node

import (
	"blocksim/block"
	"blocksim/consensus"
	"blocksim/logger"
	"blocksim/sim"
)

var log = logger.Logger

// Scheduler defines the interface the node needs for timed work.
type Scheduler interface {
	ScheduleAfter(delay int64, t sim.Task)
}

// Tracker defines the interface for reporting block arrivals; the simulator
// context implements it.
type Tracker interface {
	OnArrival(b *block.Block, nodeID int)
}

// LatencyModel supplies the propagation delay between two linked nodes, in
// virtual microseconds. The topology owns it.
type LatencyModel interface {
	PropagationDelay(from, to *Node) int64
}

// Node is one simulated participant: a current head, a neighbor set and a
// consensus strategy. All state changes funnel through ReceiveBlock on the
// simulation goroutine; nothing here is locked or needs to be.
type Node struct {
	id          int
	region      string
	miningPower int64

	head      *block.Block
	neighbors []*Node

	strategy consensus.Strategy
	sched    Scheduler
	tracker  Tracker
	latency  LatencyModel
}

// Config wires a node's identity and collaborators.
type Config struct {
	ID          int
	Region      string
	MiningPower int64
	Scheduler   Scheduler
	Tracker     Tracker
	Latency     LatencyModel
}

func New(cfg Config) *Node {
	return &Node{
		id:          cfg.ID,
		region:      cfg.Region,
		miningPower: cfg.MiningPower,
		sched:       cfg.Scheduler,
		tracker:     cfg.Tracker,
		latency:     cfg.Latency,
	}
}

// UseStrategy binds the consensus strategy. Kept apart from New because the
// strategy constructor needs the node it will serve.
func (n *Node) UseStrategy(s consensus.Strategy) {
	n.strategy = s
}

func (n *Node) NodeID() int        { return n.id }
func (n *Node) Region() string     { return n.region }
func (n *Node) MiningPower() int64 { return n.miningPower }

// Head returns the node's current chain head, nil before bootstrap.
func (n *Node) Head() *block.Block {
	return n.head
}

// AddNeighbor links a peer for block relay. Self-links and duplicates are
// ignored; links are one-directional, the topology adds both sides.
func (n *Node) AddNeighbor(peer *Node) {
	if peer == nil || peer == n {
		return
	}
	for _, existing := range n.neighbors {
		if existing == peer {
			return
		}
	}
	n.neighbors = append(n.neighbors, peer)
}

// Neighbors returns the relay targets in link order.
func (n *Node) Neighbors() []*Node {
	out := make([]*Node, len(n.neighbors))
	copy(out, n.neighbors)
	return out
}

// ReceiveBlock is the single entry point for blocks, minted locally or
// delivered by a neighbor. A block that fails validation is dropped with no
// state change; that is the normal fate of stale minting attempts and relay
// echoes. An accepted block moves the head, is reported to the tracker,
// restarts minting and fans out to every neighbor.
func (n *Node) ReceiveBlock(b *block.Block) {
	if b == nil {
		return
	}
	if n.strategy == nil || !n.strategy.Validate(b, n.head) {
		log.WithFields(logger.Fields{
			"node":  n.id,
			"block": b.String(),
		}).Debug("Discarded block")
		return
	}

	n.head = b
	if n.tracker != nil {
		n.tracker.OnArrival(b, n.id)
	}
	n.scheduleNextMint()
	n.broadcast(b)
}

// BootstrapGenesis mints the strategy's genesis block and feeds it through
// the normal arrival path, seeding the whole network from this one node.
func (n *Node) BootstrapGenesis() {
	n.ReceiveBlock(n.strategy.Genesis())
}

func (n *Node) scheduleNextMint() {
	task := n.strategy.Mint()
	if task == nil {
		return
	}
	n.sched.ScheduleAfter(task.Delay(), task)
}

func (n *Node) broadcast(b *block.Block) {
	for _, peer := range n.neighbors {
		var delay int64
		if n.latency != nil {
			delay = n.latency.PropagationDelay(n, peer)
		}
		n.sched.ScheduleAfter(delay, &delivery{to: peer, block: b})
	}
}

// delivery is the in-flight copy of a block on one link.
type delivery struct {
	to    *Node
	block *block.Block
}

func (d *delivery) Run(now int64) {
	d.to.ReceiveBlock(d.block)
}
