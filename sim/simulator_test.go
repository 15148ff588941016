package sim

import (
	"bytes"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blocksim/block"
)

// testBlock links a block with constant difficulty under parent; a nil parent
// yields a genesis block.
func testBlock(parent *block.Block, minter int, ts int64) *block.Block {
	if parent == nil {
		return block.New(nil, block.AlgoProofOfWork, minter, ts, big.NewInt(0), big.NewInt(10))
	}
	return block.New(parent, block.AlgoProofOfWork, minter, ts, parent.NextDifficulty(), parent.NextDifficulty())
}

func TestRegisterKeepsOrderAndUniqueness(t *testing.T) {
	simr := NewSimulator(NewScheduler())

	require.NoError(t, simr.Register(3))
	require.NoError(t, simr.Register(1))
	require.NoError(t, simr.Register(2))
	assert.Error(t, simr.Register(1), "Duplicate IDs must be rejected")

	assert.Equal(t, []int{3, 1, 2}, simr.NodeIDs(), "Registration order is canonical, not sorted")
	assert.Equal(t, 3, simr.NumNodes())

	assert.True(t, simr.Unregister(1))
	assert.False(t, simr.Unregister(1), "Removing an absent ID reports false")
	assert.Equal(t, []int{3, 2}, simr.NodeIDs())
	assert.Equal(t, 2, simr.NumNodes())
}

func TestGenesisArrivalsAreIgnored(t *testing.T) {
	simr := NewSimulator(NewScheduler())
	require.NoError(t, simr.Register(1))

	genesis := testBlock(nil, 1, 0)
	simr.OnArrival(genesis, 1)
	simr.OnArrival(nil, 1)

	assert.Equal(t, 0, simr.TrackedCount(), "Genesis must never open a propagation record")
	assert.Same(t, genesis, simr.BestHead(), "Genesis still counts for the best head")

	simr.FlushAll()
	stats := simr.Stats()
	require.Len(t, stats, 1)
	assert.Equal(t, int64(0), stats[0].MintCount, "Nothing should have been folded")
}

func TestArrivalDelaysAccumulatePerMinter(t *testing.T) {
	sched := NewScheduler()
	simr := NewSimulator(sched)
	require.NoError(t, simr.Register(1))
	require.NoError(t, simr.Register(2))

	genesis := testBlock(nil, 1, 0)
	b1 := testBlock(genesis, 1, 1000)

	sched.Schedule(1500, TaskFunc(func(now int64) { simr.OnArrival(b1, 1) }))
	sched.Schedule(2000, TaskFunc(func(now int64) { simr.OnArrival(b1, 2) }))
	for sched.Step() {
	}

	assert.Equal(t, 1, simr.TrackedCount())
	simr.FlushAll()
	assert.Equal(t, 0, simr.TrackedCount(), "Flush empties the window")

	stats := simr.Stats()
	require.Len(t, stats, 2)
	assert.Equal(t, int64(1), stats[0].MintCount)
	assert.Equal(t, int64(500), stats[0].Cumulative[1], "Delay is arrival time minus mint time")
	assert.Equal(t, int64(1000), stats[0].Cumulative[2])
	assert.Equal(t, int64(0), stats[1].MintCount, "Node 2 never minted")

	var buf bytes.Buffer
	require.NoError(t, simr.WriteMatrix(&buf))
	assert.Equal(t, "500 1000 \n\n", buf.String(),
		"Zero-mint rows stay in the matrix with their entries omitted")
}

func TestDuplicateArrivalKeepsFirstMeasurement(t *testing.T) {
	sched := NewScheduler()
	simr := NewSimulator(sched)
	require.NoError(t, simr.Register(1))

	genesis := testBlock(nil, 1, 0)
	b1 := testBlock(genesis, 1, 0)

	sched.Schedule(100, TaskFunc(func(now int64) { simr.OnArrival(b1, 1) }))
	sched.Schedule(900, TaskFunc(func(now int64) { simr.OnArrival(b1, 1) }))
	for sched.Step() {
	}

	simr.FlushAll()
	stats := simr.Stats()
	assert.Equal(t, int64(1), stats[0].MintCount, "One block, one fold")
	assert.Equal(t, int64(100), stats[0].Cumulative[1], "The first measurement wins")
}

// Scenario: eleven distinct blocks against a ten-slot window; the first
// block's record folds the moment the eleventh arrives.
func TestWindowEvictsOldestAtCapacity(t *testing.T) {
	simr := NewSimulator(NewScheduler())
	require.NoError(t, simr.Register(1))
	require.NoError(t, simr.Register(2))

	parent := testBlock(nil, 1, 0)
	blocks := make([]*block.Block, 0, WindowCapacity+1)
	for i := 0; i <= WindowCapacity; i++ {
		child := testBlock(parent, 1, int64(i))
		blocks = append(blocks, child)
		parent = child
	}

	for _, b := range blocks[:WindowCapacity] {
		simr.OnArrival(b, 1)
	}
	assert.Equal(t, WindowCapacity, simr.TrackedCount(), "The window fills to capacity")

	stats := simr.Stats()
	assert.Equal(t, int64(0), stats[0].MintCount, "Nothing folds while the window has room")

	simr.OnArrival(blocks[WindowCapacity], 2)

	assert.Equal(t, WindowCapacity, simr.TrackedCount(),
		"Eviction keeps the window at capacity after the new record opens")
	stats = simr.Stats()
	assert.Equal(t, int64(1), stats[0].MintCount,
		"Exactly the oldest record folds, partial coverage and all")

	simr.FlushAll()
	stats = simr.Stats()
	assert.Equal(t, int64(WindowCapacity+1), stats[0].MintCount,
		"Every block passed to the tracker is folded exactly once")
}

func TestArrivalAfterFoldIsDiscarded(t *testing.T) {
	simr := NewSimulator(NewScheduler())
	require.NoError(t, simr.Register(1))
	require.NoError(t, simr.Register(2))

	genesis := testBlock(nil, 1, 0)
	b1 := testBlock(genesis, 1, 0)

	simr.OnArrival(b1, 1)
	simr.FlushAll()

	simr.OnArrival(b1, 2)

	assert.Equal(t, 0, simr.TrackedCount(), "A folded block must not reopen a record")
	stats := simr.Stats()
	assert.Equal(t, int64(1), stats[0].MintCount, "Mint counts never double-count a block")
	assert.NotContains(t, stats[0].Cumulative, 2, "The late arrival is dropped, not folded")
}

func TestBestHeadFollowsFirstSeenHeaviest(t *testing.T) {
	simr := NewSimulator(NewScheduler())
	require.NoError(t, simr.Register(1))
	require.NoError(t, simr.Register(2))

	genesis := testBlock(nil, 1, 0)
	left := testBlock(genesis, 1, 10)
	right := testBlock(genesis, 2, 10)
	require.Equal(t, 0, left.TotalDifficulty().Cmp(right.TotalDifficulty()))

	simr.OnArrival(left, 1)
	simr.OnArrival(right, 2)
	assert.Same(t, left, simr.BestHead(), "Equal weight keeps the first seen head")

	heavier := testBlock(left, 1, 20)
	simr.OnArrival(heavier, 1)
	assert.Same(t, heavier, simr.BestHead(), "Strictly more weight moves the best head")
	assert.Equal(t, uint64(2), simr.MaxHeight())
}

func TestRunUntilStopsAtTargetHeight(t *testing.T) {
	sched := NewScheduler()
	simr := NewSimulator(sched)
	require.NoError(t, simr.Register(1))

	genesis := testBlock(nil, 1, 0)
	b1 := testBlock(genesis, 1, 0)
	b2 := testBlock(b1, 1, 10)

	var lateFired bool
	sched.Schedule(10, TaskFunc(func(now int64) { simr.OnArrival(b1, 1) }))
	sched.Schedule(20, TaskFunc(func(now int64) { simr.OnArrival(b2, 1) }))
	sched.Schedule(30, TaskFunc(func(now int64) { lateFired = true }))

	steps := RunUntil(sched, simr, 2)

	assert.Equal(t, 2, steps, "The loop stops right after the stop height arrives")
	assert.False(t, lateFired, "Tasks beyond the stop point stay pending")
	assert.Equal(t, int64(20), sched.Now())
	assert.Equal(t, 1, sched.Len())
}
