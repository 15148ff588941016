package store

import (
	"time"

	"blocksim/block"
	"blocksim/sim"
)

// BlockRecord is the persisted form of one chain block.
type BlockRecord struct {
	Hash            string `json:"hash"`
	Height          uint64 `json:"height"`
	ParentHash      string `json:"parentHash"`
	Algo            string `json:"algo"`
	MinterID        int    `json:"minterId"`
	Timestamp       int64  `json:"timestamp"`
	Difficulty      string `json:"difficulty"`
	TotalDifficulty string `json:"totalDifficulty"`
}

// NewBlockRecord flattens a block for storage. Big integers travel as
// decimal strings so they survive JSON intact.
func NewBlockRecord(b *block.Block) BlockRecord {
	rec := BlockRecord{
		Hash:            b.Hash().String(),
		Height:          b.Height(),
		Algo:            b.Algo().String(),
		MinterID:        b.MinterID(),
		Timestamp:       b.Timestamp(),
		Difficulty:      b.Difficulty().String(),
		TotalDifficulty: b.TotalDifficulty().String(),
	}
	if parent := b.Parent(); parent != nil {
		rec.ParentHash = parent.Hash().String()
	}
	return rec
}

// NodeRecord is one node's identity and folded mint count.
type NodeRecord struct {
	ID          int    `json:"id"`
	Region      string `json:"region"`
	MiningPower int64  `json:"miningPower"`
	MintCount   int64  `json:"mintCount"`
}

// RunRecord is the archived summary of one finished simulation.
type RunRecord struct {
	ID             string       `json:"id"`
	CreatedAt      time.Time    `json:"createdAt"`
	Seed           int64        `json:"seed"`
	Policy         string       `json:"policy"`
	Nodes          int          `json:"nodes"`
	Degree         int          `json:"degree"`
	TargetInterval int64        `json:"targetInterval"`
	StopHeight     uint64       `json:"stopHeight"`
	VirtualTime    int64        `json:"virtualTime"`
	TasksExecuted  int          `json:"tasksExecuted"`
	BestHeight     uint64       `json:"bestHeight"`
	BestHash       string       `json:"bestHash"`
	NodeStats      []NodeRecord `json:"nodeStats"`
}

// MatrixRow is one minter's average propagation delay to every node, aligned
// with the parent record's Order. Averages is nil when the minter folded no
// blocks; readers must treat that as missing data, not zeroes.
type MatrixRow struct {
	MinterID  int     `json:"minterId"`
	MintCount int64   `json:"mintCount"`
	Averages  []int64 `json:"averages,omitempty"`
}

// MatrixRecord is the archived propagation matrix of one run.
type MatrixRecord struct {
	RunID string      `json:"runId"`
	Order []int       `json:"order"`
	Rows  []MatrixRow `json:"rows"`
}

// NewMatrixRecord folds simulator stats into their storable form. Stats must
// already be flushed; order and rows follow registration order.
func NewMatrixRecord(runID string, order []int, stats []sim.MinterStats) MatrixRecord {
	rec := MatrixRecord{RunID: runID, Order: order, Rows: make([]MatrixRow, 0, len(stats))}
	for _, st := range stats {
		row := MatrixRow{MinterID: st.NodeID, MintCount: st.MintCount}
		if st.MintCount != 0 {
			row.Averages = make([]int64, len(order))
			for i, to := range order {
				row.Averages[i] = st.Cumulative[to] / st.MintCount
			}
		}
		rec.Rows = append(rec.Rows, row)
	}
	return rec
}
