package block

import (
	"encoding/binary"
	"fmt"
	"math/big"

	"lukechampine.com/blake3"
)

// Algo tags the consensus variant a block was minted under.
type Algo uint8

const (
	AlgoUnknown Algo = iota
	AlgoProofOfWork
)

func (a Algo) String() string {
	switch a {
	case AlgoProofOfWork:
		return "pow"
	default:
		return "unknown"
	}
}

// Block is one element of a parent-linked chain. Every field is fixed at
// construction, so blocks can be shared freely without locking.
type Block struct {
	hash            Hash
	height          uint64
	parent          *Block
	algo            Algo
	difficulty      *big.Int
	totalDifficulty *big.Int
	nextDifficulty  *big.Int
	minterID        int
	timestamp       int64
}

// New links a block under parent. A nil parent makes a genesis block at height
// zero. Height and total difficulty derive from the parent; nextDifficulty is
// the retarget value the consensus strategy computed for this block's children.
func New(parent *Block, algo Algo, minterID int, timestamp int64, difficulty, nextDifficulty *big.Int) *Block {
	b := &Block{
		parent:         parent,
		algo:           algo,
		difficulty:     new(big.Int).Set(difficulty),
		nextDifficulty: new(big.Int).Set(nextDifficulty),
		minterID:       minterID,
		timestamp:      timestamp,
	}

	if parent == nil {
		b.height = 0
		b.totalDifficulty = new(big.Int).Set(difficulty)
	} else {
		b.height = parent.height + 1
		b.totalDifficulty = new(big.Int).Add(parent.totalDifficulty, difficulty)
	}

	b.hash = b.sealHash()
	return b
}

// sealHash digests the identity-bearing fields. Two blocks with equal content
// share a hash even when built independently or re-read from storage.
func (b *Block) sealHash() Hash {
	var parentHash Hash
	if b.parent != nil {
		parentHash = b.parent.hash
	}

	buf := make([]byte, 0, 1+8+8+8+HashLength+len(b.difficulty.Bytes()))
	buf = append(buf, byte(b.algo))
	buf = binary.BigEndian.AppendUint64(buf, b.height)
	buf = binary.BigEndian.AppendUint64(buf, uint64(b.minterID))
	buf = binary.BigEndian.AppendUint64(buf, uint64(b.timestamp))
	buf = append(buf, parentHash.Bytes()...)
	buf = append(buf, b.difficulty.Bytes()...)

	return Hash(blake3.Sum256(buf))
}

func (b *Block) Hash() Hash       { return b.hash }
func (b *Block) Height() uint64   { return b.height }
func (b *Block) Parent() *Block   { return b.parent }
func (b *Block) Algo() Algo       { return b.algo }
func (b *Block) MinterID() int    { return b.minterID }
func (b *Block) Timestamp() int64 { return b.timestamp }

// Difficulty returns a copy of the block's own difficulty.
func (b *Block) Difficulty() *big.Int {
	return new(big.Int).Set(b.difficulty)
}

// TotalDifficulty returns a copy of the cumulative chain difficulty up to and
// including this block. It is the fork-choice weight.
func (b *Block) TotalDifficulty() *big.Int {
	return new(big.Int).Set(b.totalDifficulty)
}

// NextDifficulty returns a copy of the retarget difficulty expected of this
// block's children. The retarget formula itself belongs to the consensus
// strategy that built the block.
func (b *Block) NextDifficulty() *big.Int {
	return new(big.Int).Set(b.nextDifficulty)
}

// BlockAtHeight walks parent links to the ancestor at height h. The second
// result is false when h is above this block's height or the ancestry is
// incomplete; an unknown ancestor is an expected lookup miss, not an error.
func (b *Block) BlockAtHeight(h uint64) (*Block, bool) {
	if h > b.height {
		return nil, false
	}
	cur := b
	for cur != nil && cur.height > h {
		cur = cur.parent
	}
	if cur == nil || cur.height != h {
		return nil, false
	}
	return cur, true
}

func (b *Block) String() string {
	return fmt.Sprintf("%s@%d", b.hash.Short(), b.height)
}
