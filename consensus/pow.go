package consensus

import (
	"math/big"

	"blocksim/block"
	"blocksim/logger"
)

// ProofOfWork models the abstract mining race: a block must carry at least
// the difficulty its parent demanded, and chains compete on accumulated total
// difficulty. The retarget here is the constant-target model: every block
// inherits its parent's child difficulty, fixed at genesis from the total
// network power and the target interval.
type ProofOfWork struct {
	node   Node
	params *Params
}

func NewProofOfWork(node Node, params *Params) *ProofOfWork {
	return &ProofOfWork{node: node, params: params}
}

// Mint prepares the next attempt on top of the current head. The parent is
// snapshotted now; whether the attempt still matters when it completes is
// decided by validation at that point.
func (pow *ProofOfWork) Mint() *MintingTask {
	parent := pow.node.Head()
	if parent == nil {
		return nil
	}

	difficulty := parent.NextDifficulty()
	delay, designated := pow.params.Policy.Delay(pow.node, parent, difficulty)

	log.WithFields(logger.Fields{
		"node":       pow.node.NodeID(),
		"parent":     parent.String(),
		"delay":      delay,
		"designated": designated,
	}).Debug("Prepared minting task")

	return &MintingTask{
		owner:          pow.node,
		algo:           block.AlgoProofOfWork,
		parent:         parent,
		difficulty:     difficulty,
		nextDifficulty: parent.NextDifficulty(),
		delay:          delay,
		designated:     designated,
	}
}

// Validate applies the three acceptance checks: same consensus variant,
// enough proven work for the height, and a strict total-difficulty win over
// the current head. Equal weight keeps the incumbent.
func (pow *ProofOfWork) Validate(received, current *block.Block) bool {
	if received == nil || received.Algo() != block.AlgoProofOfWork {
		return false
	}

	if received.Height() > 0 {
		parent, ok := received.BlockAtHeight(received.Height() - 1)
		if !ok {
			// Unknown ancestry proves nothing
			return false
		}
		if received.Difficulty().Cmp(parent.NextDifficulty()) < 0 {
			return false
		}
	}

	if current == nil {
		return true
	}
	return received.TotalDifficulty().Cmp(current.TotalDifficulty()) > 0
}

// Genesis builds the shared height-zero block: zero own difficulty, child
// difficulty fixed to total network power times the target interval, stamped
// at virtual time zero.
func (pow *ProofOfWork) Genesis() *block.Block {
	next := new(big.Int).Mul(
		big.NewInt(pow.params.TotalMiningPower),
		big.NewInt(pow.params.TargetInterval),
	)
	return block.New(nil, block.AlgoProofOfWork, pow.node.NodeID(), 0, big.NewInt(0), next)
}
