package api

import (
	"fmt"

	"blocksim/block"
	"blocksim/store"
)

const liveIndexSize = 512

// LiveResults serves the outcome of the run that just finished in this
// process. Chain lookups resolve against the winning head through a height
// index instead of archived rows.
type LiveResults struct {
	run    store.RunRecord
	matrix store.MatrixRecord
	head   *block.Block
	index  *block.HeightIndex
}

// NewLiveResults wraps a finished run as a ResultSource. head may be nil when
// the run never grew past genesis.
func NewLiveResults(run store.RunRecord, matrix store.MatrixRecord, head *block.Block) (*LiveResults, error) {
	index, err := block.NewHeightIndex(liveIndexSize)
	if err != nil {
		return nil, fmt.Errorf("failed to build height index: %w", err)
	}
	return &LiveResults{run: run, matrix: matrix, head: head, index: index}, nil
}

// Runs lists the single in-memory run.
func (lr *LiveResults) Runs() ([]store.RunRecord, error) {
	return []store.RunRecord{lr.run}, nil
}

// Run returns the in-memory run when the ID matches.
func (lr *LiveResults) Run(id string) (*store.RunRecord, error) {
	if id != lr.run.ID {
		return nil, fmt.Errorf("run %s: %w", id, store.ErrNotFound)
	}
	run := lr.run
	return &run, nil
}

// LatestRunID returns the ID of the in-memory run.
func (lr *LiveResults) LatestRunID() (string, error) {
	return lr.run.ID, nil
}

// Matrix returns the in-memory propagation matrix when the ID matches.
func (lr *LiveResults) Matrix(id string) (*store.MatrixRecord, error) {
	if id != lr.run.ID {
		return nil, fmt.Errorf("matrix for run %s: %w", id, store.ErrNotFound)
	}
	matrix := lr.matrix
	return &matrix, nil
}

// ChainBlock resolves one block of the winning chain by height.
func (lr *LiveResults) ChainBlock(id string, height uint64) (*store.BlockRecord, error) {
	if id != lr.run.ID {
		return nil, fmt.Errorf("run %s: %w", id, store.ErrNotFound)
	}
	b, ok := lr.index.BlockAtHeight(lr.head, height)
	if !ok {
		return nil, fmt.Errorf("run %s block %d: %w", id, height, store.ErrNotFound)
	}
	rec := store.NewBlockRecord(b)
	return &rec, nil
}

// ChainRange resolves the blocks with from <= height <= to, ascending,
// clipped to the winning chain.
func (lr *LiveResults) ChainRange(id string, from, to uint64) ([]store.BlockRecord, error) {
	if to < from {
		return nil, fmt.Errorf("invalid range %d..%d", from, to)
	}
	if id != lr.run.ID {
		return nil, fmt.Errorf("run %s: %w", id, store.ErrNotFound)
	}

	blocks := make([]store.BlockRecord, 0)
	if lr.head == nil {
		return blocks, nil
	}
	if max := lr.head.Height(); to > max {
		to = max
	}
	for h := from; h <= to; h++ {
		b, ok := lr.index.BlockAtHeight(lr.head, h)
		if !ok {
			break
		}
		blocks = append(blocks, store.NewBlockRecord(b))
	}
	return blocks, nil
}
