package node

import (
	"blocksim/block"
	"blocksim/consensus"
	"blocksim/sim"
)

// Arrival is one recorded tracker notification.
type Arrival struct {
	Block  *block.Block
	NodeID int
}

// MockTracker records every arrival, genesis included.
type MockTracker struct {
	Arrivals []Arrival
}

func NewMockTracker() *MockTracker {
	return &MockTracker{}
}

func (mt *MockTracker) OnArrival(b *block.Block, nodeID int) {
	mt.Arrivals = append(mt.Arrivals, Arrival{Block: b, NodeID: nodeID})
}

// Seen reports whether a block arrived at a node.
func (mt *MockTracker) Seen(h block.Hash, nodeID int) bool {
	for _, a := range mt.Arrivals {
		if a.Block.Hash() == h && a.NodeID == nodeID {
			return true
		}
	}
	return false
}

// FixedLatency assigns the same delay to every link.
type FixedLatency int64

func (d FixedLatency) PropagationDelay(from, to *Node) int64 {
	return int64(d)
}

// CreateTestNode wires one node with a proof-of-work strategy onto the given
// scheduler and tracker.
func CreateTestNode(id int, sched Scheduler, tracker Tracker, latency LatencyModel, params *consensus.Params) *Node {
	n := New(Config{
		ID:          id,
		Region:      "TEST",
		MiningPower: 10,
		Scheduler:   sched,
		Tracker:     tracker,
		Latency:     latency,
	})
	n.UseStrategy(consensus.NewProofOfWork(n, params))
	return n
}

// CreateTestCluster builds a fully meshed set of nodes sharing one scheduler,
// tracker and latency model.
func CreateTestCluster(count int, sched *sim.Scheduler, tracker Tracker, latency LatencyModel) []*Node {
	params := consensus.CreateTestParams(count)
	nodes := make([]*Node, 0, count)
	for id := 1; id <= count; id++ {
		nodes = append(nodes, CreateTestNode(id, sched, tracker, latency, params))
	}
	for _, a := range nodes {
		for _, b := range nodes {
			a.AddNeighbor(b)
		}
	}
	return nodes
}
