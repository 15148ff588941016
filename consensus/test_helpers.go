package consensus

import (
	"math/rand"

	"blocksim/block"
)

// MockNode implements the Node interface for tests. Received blocks are
// recorded; the head only moves when a test moves it.
type MockNode struct {
	ID       int
	Power    int64
	HeadBlk  *block.Block
	Received []*block.Block
}

// NewMockNode creates a mock participant with the given ID and mining power.
func NewMockNode(id int, power int64) *MockNode {
	return &MockNode{ID: id, Power: power}
}

func (m *MockNode) NodeID() int {
	return m.ID
}

func (m *MockNode) Head() *block.Block {
	return m.HeadBlk
}

func (m *MockNode) MiningPower() int64 {
	return m.Power
}

func (m *MockNode) ReceiveBlock(b *block.Block) {
	m.Received = append(m.Received, b)
}

// CreateTestParams returns run parameters for numNodes nodes of equal power
// with the round-robin policy and a fixed seed.
func CreateTestParams(numNodes int) *Params {
	return &Params{
		NumNodes:         numNodes,
		TargetInterval:   1_000_000,
		TotalMiningPower: int64(numNodes) * 10,
		Policy:           NewRoundRobin(numNodes),
		Rand:             rand.New(rand.NewSource(1)),
	}
}

// CreateTestChain builds a genesis plus n descendants minted by the given
// node at one-second spacing, returning every block oldest first.
func CreateTestChain(pow *ProofOfWork, n int) []*block.Block {
	chain := []*block.Block{pow.Genesis()}
	for i := 1; i <= n; i++ {
		parent := chain[len(chain)-1]
		child := block.New(parent, block.AlgoProofOfWork, pow.node.NodeID(),
			int64(i)*1_000_000, parent.NextDifficulty(), parent.NextDifficulty())
		chain = append(chain, child)
	}
	return chain
}
