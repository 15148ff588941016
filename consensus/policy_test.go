package consensus

import (
	"math/big"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blocksim/block"
)

func TestRoundRobinRotatesDesignation(t *testing.T) {
	policy := NewRoundRobin(3)
	diff := big.NewInt(30_000_000)

	parent := block.New(nil, block.AlgoProofOfWork, 1, 0, big.NewInt(0), diff)
	nodes := []*MockNode{NewMockNode(1, 10), NewMockNode(2, 10), NewMockNode(3, 10)}

	for height := 0; height < 6; height++ {
		designatedID := height%3 + 1
		for _, n := range nodes {
			delay, designated := policy.Delay(n, parent, diff)
			if n.NodeID() == designatedID {
				assert.True(t, designated, "Node %d should be designated at parent height %d", n.NodeID(), height)
				assert.Equal(t, int64(DefaultSlotDelay), delay, "Designated minter gets the short delay")
			} else {
				assert.False(t, designated, "Node %d should not be designated at parent height %d", n.NodeID(), height)
				assert.Equal(t, int64(DefaultOffSlotDelay), delay, "Off-slot minter gets the long delay")
			}
		}
		parent = block.New(parent, block.AlgoProofOfWork, designatedID, int64(height+1)*1000, diff, diff)
	}
}

func TestExponentialIsSeededAndPositive(t *testing.T) {
	diff := big.NewInt(10_000_000)
	parent := block.New(nil, block.AlgoProofOfWork, 1, 0, big.NewInt(0), diff)
	node := NewMockNode(1, 10)

	first := NewExponential(rand.New(rand.NewSource(42)))
	second := NewExponential(rand.New(rand.NewSource(42)))

	for i := 0; i < 100; i++ {
		d1, designated := first.Delay(node, parent, diff)
		d2, _ := second.Delay(node, parent, diff)

		assert.Equal(t, d1, d2, "Equal seeds must reproduce the same delay sequence")
		assert.GreaterOrEqual(t, d1, int64(1), "Delays must be at least one microsecond")
		assert.False(t, designated, "The race policy has no designated minter")
	}
}

func TestExponentialMeanTracksDifficultyOverPower(t *testing.T) {
	policy := NewExponential(rand.New(rand.NewSource(7)))

	power := int64(100)
	diff := big.NewInt(100 * 1_000_000) // expected solve time: 1s of virtual time
	parent := block.New(nil, block.AlgoProofOfWork, 1, 0, big.NewInt(0), diff)
	node := NewMockNode(1, power)

	const samples = 20_000
	var sum int64
	for i := 0; i < samples; i++ {
		d, _ := policy.Delay(node, parent, diff)
		sum += d
	}
	mean := float64(sum) / samples

	require.InEpsilon(t, 1_000_000, mean, 0.1,
		"Sample mean should sit near difficulty divided by mining power")
}

func TestExponentialClampsZeroPower(t *testing.T) {
	policy := NewExponential(rand.New(rand.NewSource(3)))
	diff := big.NewInt(1000)
	parent := block.New(nil, block.AlgoProofOfWork, 1, 0, big.NewInt(0), diff)

	d, _ := policy.Delay(NewMockNode(1, 0), parent, diff)
	assert.GreaterOrEqual(t, d, int64(1), "Powerless nodes still get a finite positive delay")
}
