package consensus

import (
	"math/big"
	"math/rand"

	"blocksim/block"
	"blocksim/logger"
)

var log = logger.Logger

// Node defines the interface the consensus strategies need from a participant.
type Node interface {
	NodeID() int
	Head() *block.Block
	MiningPower() int64
	ReceiveBlock(b *block.Block)
}

// Strategy decides how a node mints blocks and which chain it follows. An
// instance is bound to exactly one node and keeps no state of its own; the
// node's head is the only input that changes between calls.
type Strategy interface {
	// Mint prepares the node's next minting attempt on top of its current
	// head. Returns nil when the node has no head to build on yet.
	Mint() *MintingTask

	// Validate reports whether a received block may replace the current
	// head. It has no side effects either way.
	Validate(received, current *block.Block) bool

	// Genesis builds the height-zero block this strategy boots the network
	// with.
	Genesis() *block.Block
}

// SchedulingPolicy computes how long a node waits before its next minting
// attempt completes.
type SchedulingPolicy interface {
	// Delay returns the wait in virtual microseconds for a mint on top of
	// parent, and whether the node is the designated minter for that height.
	Delay(n Node, parent *block.Block, difficulty *big.Int) (int64, bool)
}

// Params carries the per-run constants shared by every strategy instance.
type Params struct {
	NumNodes         int
	TargetInterval   int64 // virtual microseconds between blocks
	TotalMiningPower int64
	Policy           SchedulingPolicy
	Rand             *rand.Rand
}
