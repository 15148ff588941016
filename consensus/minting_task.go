package consensus

import (
	"math/big"

	"blocksim/block"
)

// MintingTask is the scheduled completion of one minting attempt. It holds a
// snapshot of the parent taken when the attempt started; by the time the task
// fires its owner may have adopted a better head, in which case the stale
// block simply loses validation on arrival. Tasks are never cancelled.
type MintingTask struct {
	owner          Node
	algo           block.Algo
	parent         *block.Block
	difficulty     *big.Int
	nextDifficulty *big.Int
	delay          int64
	designated     bool
}

// Delay is the wait in virtual microseconds between scheduling and firing.
func (t *MintingTask) Delay() int64 {
	return t.delay
}

// Designated reports whether the owner was the designated minter for the
// attempted height. Diagnostic only; race-based policies always report false.
func (t *MintingTask) Designated() bool {
	return t.designated
}

// Parent returns the head snapshot the attempt builds on.
func (t *MintingTask) Parent() *block.Block {
	return t.parent
}

// Owner returns the node that scheduled the attempt.
func (t *MintingTask) Owner() Node {
	return t.owner
}

// Run completes the attempt: the block is stamped with the firing time and
// handed straight back to its owner, whose fork choice decides whether the
// work still matters.
func (t *MintingTask) Run(now int64) {
	minted := block.New(t.parent, t.algo, t.owner.NodeID(), now, t.difficulty, t.nextDifficulty)
	t.owner.ReceiveBlock(minted)
}
