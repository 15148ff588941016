package network

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blocksim/consensus"
	"blocksim/sim"
)

func testConfig(nodes int) Config {
	return Config{
		Nodes:          nodes,
		Degree:         3,
		MinPower:       10,
		MaxPower:       40,
		TargetInterval: 1_000_000,
	}
}

func buildTest(t *testing.T, cfg Config, seed int64) (*Topology, *sim.Scheduler, *sim.Simulator) {
	t.Helper()
	sched := sim.NewScheduler()
	simr := sim.NewSimulator(sched)
	rng := rand.New(rand.NewSource(seed))
	topo, err := Build(cfg, sched, simr, rng, consensus.NewRoundRobin(cfg.Nodes))
	require.NoError(t, err, "Test topology should build")
	return topo, sched, simr
}

func TestBuildPopulation(t *testing.T) {
	topo, _, simr := buildTest(t, testConfig(8), 1)

	nodes := topo.Nodes()
	require.Len(t, nodes, 8)
	assert.Equal(t, 8, simr.NumNodes(), "Every node must be registered with the simulator")

	var total int64
	for i, n := range nodes {
		assert.Equal(t, i+1, n.NodeID(), "IDs count from one in build order")
		assert.GreaterOrEqual(t, n.MiningPower(), int64(10))
		assert.LessOrEqual(t, n.MiningPower(), int64(40))
		assert.NotEmpty(t, n.Region(), "Every node gets a region")
		total += n.MiningPower()
	}

	params := topo.Params()
	assert.Equal(t, total, params.TotalMiningPower, "Shared params must carry the summed power")
	assert.Equal(t, 8, params.NumNodes)
}

func TestBuildIsDeterministicPerSeed(t *testing.T) {
	a, _, _ := buildTest(t, testConfig(12), 99)
	b, _, _ := buildTest(t, testConfig(12), 99)

	nodesA, nodesB := a.Nodes(), b.Nodes()
	require.Len(t, nodesB, len(nodesA))

	for i := range nodesA {
		assert.Equal(t, nodesA[i].MiningPower(), nodesB[i].MiningPower(),
			"Same seed must assign the same power to node %d", i+1)
		assert.Equal(t, nodesA[i].Region(), nodesB[i].Region())

		idsA := make([]int, 0)
		for _, p := range nodesA[i].Neighbors() {
			idsA = append(idsA, p.NodeID())
		}
		idsB := make([]int, 0)
		for _, p := range nodesB[i].Neighbors() {
			idsB = append(idsB, p.NodeID())
		}
		assert.Equal(t, idsA, idsB, "Same seed must wire the same links for node %d", i+1)
	}
}

func TestLinksAreSymmetricAndSelfFree(t *testing.T) {
	topo, _, _ := buildTest(t, testConfig(10), 7)

	for _, n := range topo.Nodes() {
		neighbors := n.Neighbors()
		assert.NotEmpty(t, neighbors, "The ring leaves nobody isolated")

		for _, p := range neighbors {
			assert.NotEqual(t, n.NodeID(), p.NodeID(), "No node links to itself")

			back := false
			for _, q := range p.Neighbors() {
				if q == n {
					back = true
					break
				}
			}
			assert.True(t, back, "Link %d-%d must exist in both directions", n.NodeID(), p.NodeID())
		}
	}
}

func TestPropagationDelayUsesRegionTable(t *testing.T) {
	cfg := testConfig(4)
	cfg.Regions = []string{"A", "B"}
	cfg.Latency = [][]int64{
		{5, 700},
		{700, 9},
	}

	topo, _, _ := buildTest(t, cfg, 3)
	nodes := topo.Nodes()

	// Regions assign round-robin: 1->A, 2->B, 3->A, 4->B.
	assert.Equal(t, "A", nodes[0].Region())
	assert.Equal(t, "B", nodes[1].Region())

	assert.Equal(t, int64(5), topo.PropagationDelay(nodes[0], nodes[2]), "Intra-region pairs use the diagonal")
	assert.Equal(t, int64(700), topo.PropagationDelay(nodes[0], nodes[1]), "Cross-region pairs use the table entry")
	assert.Equal(t, int64(700), topo.PropagationDelay(nodes[3], nodes[2]))
}

func TestBuildRejectsBadConfig(t *testing.T) {
	sched := sim.NewScheduler()
	simr := sim.NewSimulator(sched)
	rng := rand.New(rand.NewSource(1))

	bad := testConfig(0)
	_, err := Build(bad, sched, simr, rng, consensus.NewRoundRobin(0))
	assert.Error(t, err, "Zero nodes cannot build")

	bad = testConfig(3)
	bad.MinPower, bad.MaxPower = 50, 10
	_, err = Build(bad, sched, simr, rng, consensus.NewRoundRobin(3))
	assert.Error(t, err, "Inverted power range cannot build")

	bad = testConfig(3)
	bad.Regions = []string{"A", "B"}
	bad.Latency = [][]int64{{1, 2}}
	_, err = Build(bad, sched, simr, rng, consensus.NewRoundRobin(3))
	assert.Error(t, err, "Ragged latency tables cannot build")
}

func TestBootstrapReachesEveryNode(t *testing.T) {
	cfg := testConfig(5)
	topo, sched, _ := buildTest(t, cfg, 11)

	topo.Bootstrap()
	sim.RunTo(sched, 2_000_000) // far beyond the widest region latency

	first := topo.Nodes()[0].Head()
	require.NotNil(t, first, "The boot node must adopt its own genesis")
	require.Equal(t, uint64(0), first.Height())

	for _, n := range topo.Nodes() {
		require.NotNil(t, n.Head(), "Node %d should have received the genesis", n.NodeID())
		assert.Same(t, first, n.Head(), "The whole network converges on one genesis")
	}
}
