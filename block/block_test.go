package block

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// makeChain builds a linear chain of length n on top of a genesis block with
// constant difficulty, returning every block from genesis to tip.
func makeChain(t *testing.T, n int, difficulty int64) []*Block {
	t.Helper()

	diff := big.NewInt(difficulty)
	genesis := New(nil, AlgoProofOfWork, 1, 0, big.NewInt(0), diff)
	chain := []*Block{genesis}

	for i := 1; i <= n; i++ {
		parent := chain[len(chain)-1]
		child := New(parent, AlgoProofOfWork, 1, int64(i)*1000, parent.NextDifficulty(), parent.NextDifficulty())
		chain = append(chain, child)
	}
	return chain
}

func TestGenesisBlock(t *testing.T) {
	diff := big.NewInt(1000000)
	genesis := New(nil, AlgoProofOfWork, 1, 0, big.NewInt(0), diff)

	assert.Equal(t, uint64(0), genesis.Height(), "Genesis should sit at height zero")
	assert.Nil(t, genesis.Parent(), "Genesis should have no parent")
	assert.Equal(t, AlgoProofOfWork, genesis.Algo(), "Genesis should carry its consensus tag")
	assert.Equal(t, 0, genesis.TotalDifficulty().Sign(), "Genesis total difficulty should equal its own zero difficulty")
	assert.Equal(t, 0, genesis.NextDifficulty().Cmp(diff), "Genesis should carry the configured child difficulty")
	assert.Equal(t, 1, genesis.MinterID(), "Genesis should remember its minter")
	assert.Equal(t, int64(0), genesis.Timestamp(), "Genesis should be stamped at virtual time zero")
}

func TestChildHeightAndTotalDifficulty(t *testing.T) {
	chain := makeChain(t, 3, 500)

	for i := 1; i < len(chain); i++ {
		assert.Equal(t, chain[i-1].Height()+1, chain[i].Height(), "Child height should be parent height plus one")
		assert.Same(t, chain[i-1], chain[i].Parent(), "Child should link to its parent")

		expected := new(big.Int).Add(chain[i-1].TotalDifficulty(), chain[i].Difficulty())
		assert.Equal(t, 0, chain[i].TotalDifficulty().Cmp(expected), "Total difficulty should accumulate parent total plus own difficulty")
	}
}

func TestTotalDifficultyMonotonic(t *testing.T) {
	chain := makeChain(t, 10, 123)

	for i := 1; i < len(chain); i++ {
		assert.Equal(t, 1, chain[i].TotalDifficulty().Cmp(chain[i-1].TotalDifficulty()),
			"Total difficulty should strictly increase along a chain with positive difficulties")
	}
}

func TestBlockAtHeight(t *testing.T) {
	chain := makeChain(t, 5, 42)
	tip := chain[len(chain)-1]

	for h := uint64(0); h <= tip.Height(); h++ {
		found, ok := tip.BlockAtHeight(h)
		require.True(t, ok, "Every height up to the tip should resolve")
		assert.Same(t, chain[h], found, "Walk should land on the chain block at that height")
	}

	self, ok := tip.BlockAtHeight(tip.Height())
	require.True(t, ok)
	assert.Same(t, tip, self, "A block should resolve itself at its own height")

	_, ok = tip.BlockAtHeight(tip.Height() + 1)
	assert.False(t, ok, "Heights above the tip should report a miss, not an error")
}

func TestHashDeterministicAndContentBound(t *testing.T) {
	diff := big.NewInt(7)
	g1 := New(nil, AlgoProofOfWork, 1, 0, big.NewInt(0), diff)
	g2 := New(nil, AlgoProofOfWork, 1, 0, big.NewInt(0), diff)

	assert.Equal(t, g1.Hash(), g2.Hash(), "Identical content should produce identical hashes")

	otherMinter := New(nil, AlgoProofOfWork, 2, 0, big.NewInt(0), diff)
	otherTime := New(nil, AlgoProofOfWork, 1, 99, big.NewInt(0), diff)
	assert.NotEqual(t, g1.Hash(), otherMinter.Hash(), "Minter should contribute to identity")
	assert.NotEqual(t, g1.Hash(), otherTime.Hash(), "Timestamp should contribute to identity")

	c1 := New(g1, AlgoProofOfWork, 1, 10, diff, diff)
	c2 := New(otherMinter, AlgoProofOfWork, 1, 10, diff, diff)
	assert.NotEqual(t, c1.Hash(), c2.Hash(), "Parent identity should contribute to child identity")
}

func TestGettersReturnCopies(t *testing.T) {
	chain := makeChain(t, 1, 77)
	tip := chain[1]

	before := tip.TotalDifficulty()
	tip.Difficulty().SetInt64(0)
	tip.TotalDifficulty().SetInt64(0)
	tip.NextDifficulty().SetInt64(0)

	assert.Equal(t, 0, tip.TotalDifficulty().Cmp(before), "Mutating returned values should not touch the block")
	assert.Equal(t, int64(77), tip.Difficulty().Int64(), "Difficulty should be unchanged after caller mutation")
}

func TestHashSetBytes(t *testing.T) {
	var h Hash
	h.SetBytes([]byte{0xab, 0xcd})

	assert.Equal(t, byte(0xab), h[HashLength-2], "Short input should be left-padded")
	assert.Equal(t, byte(0xcd), h[HashLength-1])

	long := make([]byte, HashLength+4)
	for i := range long {
		long[i] = byte(i)
	}
	h.SetBytes(long)
	assert.Equal(t, long[4:], h.Bytes(), "Oversized input should be cropped from the left")

	assert.Len(t, h.String(), 2+2*HashLength, "String form should be 0x plus full hex")
	assert.Len(t, h.Short(), 2+8, "Short form should be 0x plus four hex bytes")
}
