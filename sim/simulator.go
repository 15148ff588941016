package sim

import (
	"bufio"
	"fmt"
	"io"

	"blocksim/block"
	"blocksim/logger"
)

var log = logger.Logger

// WindowCapacity bounds how many blocks have their propagation tracked at
// once. Arrival of an eleventh distinct block folds the oldest record first.
const WindowCapacity = 10

// diagnosticStride picks which fully-covered heights get a progress line.
const diagnosticStride = 100

// record collects one tracked block's arrival delays per node.
type record struct {
	block    *block.Block
	arrivals map[int]int64 // node ID -> virtual microseconds since mint
}

// MinterStats is the folded aggregate for one minter: how many of its blocks
// finished tracking and the summed propagation delay per receiving node.
type MinterStats struct {
	NodeID     int
	MintCount  int64
	Cumulative map[int]int64
}

// Simulator is the per-run context: the canonical node list, the bounded
// propagation window and the per-minter aggregates. One instance per run
// replaces any notion of process-wide registries. Like the Scheduler it is
// confined to the simulation goroutine.
type Simulator struct {
	sched *Scheduler

	ids     []int // registration order
	present map[int]struct{}

	window  []*record // tracking order, oldest first
	tracked map[block.Hash]*record
	folded  map[block.Hash]struct{}
	stats   map[int]*MinterStats

	best      *block.Block
	maxHeight uint64
}

func NewSimulator(sched *Scheduler) *Simulator {
	return &Simulator{
		sched:   sched,
		present: make(map[int]struct{}),
		tracked: make(map[block.Hash]*record),
		folded:  make(map[block.Hash]struct{}),
		stats:   make(map[int]*MinterStats),
	}
}

// Register appends a node ID to the canonical list. IDs must be unique; order
// of registration fixes row and column order of the final matrix.
func (s *Simulator) Register(id int) error {
	if _, dup := s.present[id]; dup {
		return fmt.Errorf("node %d already registered", id)
	}
	s.present[id] = struct{}{}
	s.ids = append(s.ids, id)
	return nil
}

// Unregister removes a node ID from the canonical list and reports whether it
// was present. Aggregates already folded for the node are left untouched.
func (s *Simulator) Unregister(id int) bool {
	if _, ok := s.present[id]; !ok {
		return false
	}
	delete(s.present, id)
	for i, known := range s.ids {
		if known == id {
			s.ids = append(s.ids[:i], s.ids[i+1:]...)
			break
		}
	}
	return true
}

// NumNodes reports the current size of the canonical node list.
func (s *Simulator) NumNodes() int {
	return len(s.ids)
}

// NodeIDs returns the registered IDs in registration order.
func (s *Simulator) NodeIDs() []int {
	out := make([]int, len(s.ids))
	copy(out, s.ids)
	return out
}

// OnArrival records that a block reached a node at the current virtual time.
// Genesis arrivals are ignored. The first arrival of an untracked block opens
// a record, evicting (folding) the oldest one if the window is full; repeat
// arrivals for the same node keep the first measurement.
func (s *Simulator) OnArrival(b *block.Block, nodeID int) {
	if b == nil {
		return
	}

	if b.Height() > s.maxHeight {
		s.maxHeight = b.Height()
	}
	if s.best == nil || b.TotalDifficulty().Cmp(s.best.TotalDifficulty()) > 0 {
		s.best = b
	}

	if b.Height() == 0 {
		return
	}

	delay := s.sched.Now() - b.Timestamp()

	if rec, ok := s.tracked[b.Hash()]; ok {
		if _, dup := rec.arrivals[nodeID]; dup {
			log.WithFields(logger.Fields{
				"block": b.String(),
				"node":  nodeID,
			}).Warn("Duplicate arrival for tracked block, keeping first measurement")
			return
		}
		rec.arrivals[nodeID] = delay
		return
	}

	if _, done := s.folded[b.Hash()]; done {
		log.WithFields(logger.Fields{
			"block": b.String(),
			"node":  nodeID,
		}).Warn("Arrival for already folded block discarded")
		return
	}

	if len(s.window) >= WindowCapacity {
		s.fold(s.window[0])
		s.window = s.window[1:]
	}

	rec := &record{block: b, arrivals: map[int]int64{nodeID: delay}}
	s.window = append(s.window, rec)
	s.tracked[b.Hash()] = rec
}

// fold moves a record into its minter's aggregates. Partial records fold like
// complete ones; coverage only decides whether the progress line appears.
func (s *Simulator) fold(rec *record) {
	st := s.statsFor(rec.block.MinterID())
	st.MintCount++
	for nodeID, delay := range rec.arrivals {
		st.Cumulative[nodeID] += delay
	}

	delete(s.tracked, rec.block.Hash())
	s.folded[rec.block.Hash()] = struct{}{}

	if len(rec.arrivals) >= len(s.ids) && rec.block.Height()%diagnosticStride == 0 {
		log.WithFields(logger.Fields{
			"block":  rec.block.String(),
			"height": rec.block.Height(),
		}).Info("Fully propagated block reached height checkpoint")
	}
}

// TrackedCount reports how many blocks the window currently tracks.
func (s *Simulator) TrackedCount() int {
	return len(s.window)
}

// FlushAll folds every still-tracked record in tracking order and empties the
// window. Called once when a run finishes so no measurement stays buffered.
func (s *Simulator) FlushAll() {
	for _, rec := range s.window {
		s.fold(rec)
	}
	s.window = s.window[:0]
}

func (s *Simulator) statsFor(minterID int) *MinterStats {
	st, ok := s.stats[minterID]
	if !ok {
		st = &MinterStats{NodeID: minterID, Cumulative: make(map[int]int64)}
		s.stats[minterID] = st
	}
	return st
}

// Stats returns the folded aggregates for every registered node in
// registration order. Nodes that never had a block folded report a zero
// MintCount and an empty cumulative map.
func (s *Simulator) Stats() []MinterStats {
	out := make([]MinterStats, 0, len(s.ids))
	for _, id := range s.ids {
		st, ok := s.stats[id]
		if !ok {
			out = append(out, MinterStats{NodeID: id, Cumulative: map[int]int64{}})
			continue
		}
		cum := make(map[int]int64, len(st.Cumulative))
		for k, v := range st.Cumulative {
			cum[k] = v
		}
		out = append(out, MinterStats{NodeID: st.NodeID, MintCount: st.MintCount, Cumulative: cum})
	}
	return out
}

// WriteMatrix emits the average propagation matrix: one row per registered
// node in registration order, each row holding the integer average delay to
// every registered node in the same order. A minter that never had a block
// folded still gets its row, with all entries omitted so readers treat them
// as missing rather than zero. The writer is flushed before returning.
func (s *Simulator) WriteMatrix(w io.Writer) error {
	bw := bufio.NewWriter(w)

	for _, from := range s.ids {
		st := s.stats[from]
		if st != nil && st.MintCount != 0 {
			for _, to := range s.ids {
				fmt.Fprintf(bw, "%d ", st.Cumulative[to]/st.MintCount)
			}
		}
		fmt.Fprintln(bw)
	}

	return bw.Flush()
}

// BestHead returns the arrived block with the greatest total difficulty seen
// so far; ties keep the earlier block, matching per-node fork choice.
func (s *Simulator) BestHead() *block.Block {
	return s.best
}

// MaxHeight returns the highest block height that has arrived anywhere.
func (s *Simulator) MaxHeight() uint64 {
	return s.maxHeight
}
