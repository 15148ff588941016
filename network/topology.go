package network

import (
	"fmt"
	"math/rand"

	"blocksim/consensus"
	"blocksim/logger"
	"blocksim/node"
	"blocksim/sim"
)

var log = logger.Logger

// Config describes the simulated network population.
type Config struct {
	Nodes          int
	Degree         int   // desired relay links per node
	MinPower       int64 // mining power range, inclusive
	MaxPower       int64
	TargetInterval int64 // virtual microseconds between blocks

	// Regions and Latency override the built-in six-region model when both
	// are set. Latency must be square, one row per region.
	Regions []string
	Latency [][]int64
}

// Validate rejects configurations the builder cannot honor.
func (cfg *Config) Validate() error {
	if cfg.Nodes < 1 {
		return fmt.Errorf("node count must be at least 1, got %d", cfg.Nodes)
	}
	if cfg.Nodes > 1 && cfg.Degree < 1 {
		return fmt.Errorf("degree must be at least 1 for %d nodes", cfg.Nodes)
	}
	if cfg.MinPower < 1 || cfg.MaxPower < cfg.MinPower {
		return fmt.Errorf("invalid mining power range [%d, %d]", cfg.MinPower, cfg.MaxPower)
	}
	if cfg.TargetInterval < 1 {
		return fmt.Errorf("target interval must be positive, got %d", cfg.TargetInterval)
	}
	if len(cfg.Regions) != len(cfg.Latency) {
		return fmt.Errorf("latency table has %d rows for %d regions", len(cfg.Latency), len(cfg.Regions))
	}
	for i, row := range cfg.Latency {
		if len(row) != len(cfg.Regions) {
			return fmt.Errorf("latency row %d has %d entries for %d regions", i, len(row), len(cfg.Regions))
		}
	}
	return nil
}

// Topology is the built network: the node population, their regions and the
// latency model the nodes consult when relaying blocks.
type Topology struct {
	cfg      Config
	nodes    []*node.Node
	regionOf map[int]int // node ID -> region index
	params   *consensus.Params
}

// Build creates cfg.Nodes nodes wired to the scheduler and simulator, assigns
// regions round-robin and mining power uniformly from the configured range,
// links a ring plus random extra edges up to the desired degree, and binds a
// proof-of-work strategy sharing one Params to every node. The same seed
// reproduces the same network.
func Build(cfg Config, sched *sim.Scheduler, simr *sim.Simulator, rng *rand.Rand, policy consensus.SchedulingPolicy) (*Topology, error) {
	if len(cfg.Regions) == 0 && len(cfg.Latency) == 0 {
		cfg.Regions = DefaultRegions()
		cfg.Latency = DefaultLatency()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid topology config: %w", err)
	}

	t := &Topology{
		cfg:      cfg,
		nodes:    make([]*node.Node, 0, cfg.Nodes),
		regionOf: make(map[int]int, cfg.Nodes),
	}

	var totalPower int64
	for id := 1; id <= cfg.Nodes; id++ {
		regionIdx := (id - 1) % len(cfg.Regions)
		power := cfg.MinPower + rng.Int63n(cfg.MaxPower-cfg.MinPower+1)
		totalPower += power

		n := node.New(node.Config{
			ID:          id,
			Region:      cfg.Regions[regionIdx],
			MiningPower: power,
			Scheduler:   sched,
			Tracker:     simr,
			Latency:     t,
		})
		t.nodes = append(t.nodes, n)
		t.regionOf[id] = regionIdx

		if err := simr.Register(id); err != nil {
			return nil, fmt.Errorf("failed to register node %d: %w", id, err)
		}
	}

	t.params = &consensus.Params{
		NumNodes:         cfg.Nodes,
		TargetInterval:   cfg.TargetInterval,
		TotalMiningPower: totalPower,
		Policy:           policy,
		Rand:             rng,
	}
	for _, n := range t.nodes {
		n.UseStrategy(consensus.NewProofOfWork(n, t.params))
	}

	t.linkNodes(rng)

	log.WithFields(logger.Fields{
		"nodes":      cfg.Nodes,
		"regions":    len(cfg.Regions),
		"totalPower": totalPower,
	}).Info("Topology built")

	return t, nil
}

// linkNodes joins every node into a ring so the network is connected, then
// adds random edges until each node reaches the configured degree or the
// draw limit runs out.
func (t *Topology) linkNodes(rng *rand.Rand) {
	n := len(t.nodes)
	if n < 2 {
		return
	}

	for i, cur := range t.nodes {
		next := t.nodes[(i+1)%n]
		cur.AddNeighbor(next)
		next.AddNeighbor(cur)
	}

	target := t.cfg.Degree
	if target > n-1 {
		target = n - 1
	}
	for _, cur := range t.nodes {
		attempts := 0
		for len(cur.Neighbors()) < target && attempts < 8*n {
			attempts++
			peer := t.nodes[rng.Intn(n)]
			if peer == cur {
				continue
			}
			cur.AddNeighbor(peer)
			peer.AddNeighbor(cur)
		}
	}
}

// PropagationDelay is the one-way link delay between two nodes, looked up on
// the region table.
func (t *Topology) PropagationDelay(from, to *node.Node) int64 {
	return t.cfg.Latency[t.regionOf[from.NodeID()]][t.regionOf[to.NodeID()]]
}

// Nodes returns the population in ID order.
func (t *Topology) Nodes() []*node.Node {
	out := make([]*node.Node, len(t.nodes))
	copy(out, t.nodes)
	return out
}

// Params returns the consensus parameters shared by every node.
func (t *Topology) Params() *consensus.Params {
	return t.params
}

// Bootstrap lets the first node mint and relay the genesis block.
func (t *Topology) Bootstrap() {
	if len(t.nodes) > 0 {
		t.nodes[0].BootstrapGenesis()
	}
}
