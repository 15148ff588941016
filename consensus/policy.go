package consensus

import (
	"math"
	"math/big"
	"math/rand"

	"blocksim/block"
)

// Delays used by the round-robin policy, in virtual microseconds. The gap
// between them is wide enough that an off-slot attempt never beats the
// designated one across realistic propagation delays.
const (
	DefaultSlotDelay    = 10_000_000
	DefaultOffSlotDelay = 100_000_000
)

// RoundRobin designates one minter per height, rotating through node IDs in
// order. The designated node completes its attempt after the short delay,
// everyone else after the long one.
type RoundRobin struct {
	NumNodes     int
	SlotDelay    int64
	OffSlotDelay int64
}

func NewRoundRobin(numNodes int) *RoundRobin {
	return &RoundRobin{
		NumNodes:     numNodes,
		SlotDelay:    DefaultSlotDelay,
		OffSlotDelay: DefaultOffSlotDelay,
	}
}

// Delay designates the node whose ID, counted from one, matches the parent
// height modulo the node count.
func (p *RoundRobin) Delay(n Node, parent *block.Block, difficulty *big.Int) (int64, bool) {
	if p.NumNodes > 0 && parent.Height()%uint64(p.NumNodes) == uint64(n.NodeID()-1) {
		return p.SlotDelay, true
	}
	return p.OffSlotDelay, false
}

// Exponential draws solve times from the memoryless mining race:
// -ln(1-U) * difficulty / miningPower. Every node races on every height, so
// no attempt is ever designated.
type Exponential struct {
	rand *rand.Rand
}

func NewExponential(r *rand.Rand) *Exponential {
	return &Exponential{rand: r}
}

func (p *Exponential) Delay(n Node, parent *block.Block, difficulty *big.Int) (int64, bool) {
	power := n.MiningPower()
	if power < 1 {
		power = 1
	}

	diff, _ := new(big.Float).SetInt(difficulty).Float64()
	wait := -math.Log(1.0-p.rand.Float64()) * diff / float64(power)

	delay := int64(math.Ceil(wait))
	if delay < 1 {
		delay = 1
	}
	return delay, false
}
