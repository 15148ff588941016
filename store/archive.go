package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"sync"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"

	"blocksim/block"
	"blocksim/logger"
)

var log = logger.Logger

// Key prefixes keep the run, matrix and chain keyspaces disjoint
const (
	runKeyPrefix    = "run_"    // run_<id> -> RunRecord
	matrixKeyPrefix = "matrix_" // matrix_<id> -> MatrixRecord
	chainKeyPrefix  = "chain_"  // chain_<id>_<height> -> BlockRecord
	latestRunKey    = "latest"  // id of the most recently saved run
)

// ErrNotFound reports a lookup for a run or block that was never archived.
var ErrNotFound = errors.New("not found")

// Archive persists finished runs to LevelDB so results survive the process
// and can be served later without re-running the simulation.
type Archive struct {
	db        *leveldb.DB
	batchLock sync.Mutex
	path      string
}

// Open creates or reopens the archive under dataDir.
func Open(dataDir string) (*Archive, error) {
	dbPath := filepath.Join(dataDir, "runs")

	options := &opt.Options{
		BlockCacheCapacity:  32 * 1024 * 1024,
		WriteBuffer:         16 * 1024 * 1024,
		CompactionTableSize: 2 * 1024 * 1024,
	}

	db, err := leveldb.OpenFile(dbPath, options)
	if err != nil {
		return nil, fmt.Errorf("failed to open run archive: %w", err)
	}

	log.WithField("path", dbPath).Info("Run archive opened")

	return &Archive{db: db, path: dbPath}, nil
}

// Close closes the underlying database.
func (a *Archive) Close() error {
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}

// chainKey builds the key for one archived block. Heights are zero padded so
// the lexicographic key order matches numeric height order under iteration.
func chainKey(runID string, height uint64) []byte {
	return []byte(fmt.Sprintf("%s%s_%020d", chainKeyPrefix, runID, height))
}

// SaveRun writes the run summary, its propagation matrix and the winning
// chain in a single batch. head may be nil when the run produced no blocks
// beyond genesis worth archiving.
func (a *Archive) SaveRun(run RunRecord, matrix MatrixRecord, head *block.Block) error {
	runData, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("failed to marshal run %s: %w", run.ID, err)
	}
	matrixData, err := json.Marshal(matrix)
	if err != nil {
		return fmt.Errorf("failed to marshal matrix for run %s: %w", run.ID, err)
	}

	batch := new(leveldb.Batch)
	batch.Put([]byte(runKeyPrefix+run.ID), runData)
	batch.Put([]byte(matrixKeyPrefix+run.ID), matrixData)
	batch.Put([]byte(latestRunKey), []byte(run.ID))

	chainLen := 0
	for b := head; b != nil; b = b.Parent() {
		blockData, err := json.Marshal(NewBlockRecord(b))
		if err != nil {
			return fmt.Errorf("failed to marshal block %s: %w", b.Hash().Short(), err)
		}
		batch.Put(chainKey(run.ID, b.Height()), blockData)
		chainLen++
	}

	a.batchLock.Lock()
	defer a.batchLock.Unlock()

	if err := a.db.Write(batch, nil); err != nil {
		return fmt.Errorf("failed to save run %s: %w", run.ID, err)
	}

	log.WithFields(logger.Fields{
		"runId":    run.ID,
		"chainLen": chainLen,
		"nodes":    run.Nodes,
	}).Info("Run archived")
	return nil
}

// Run loads one archived run summary by ID.
func (a *Archive) Run(id string) (*RunRecord, error) {
	data, err := a.db.Get([]byte(runKeyPrefix+id), nil)
	if err != nil {
		if err == leveldb.ErrNotFound {
			return nil, fmt.Errorf("run %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to retrieve run %s: %w", id, err)
	}

	var run RunRecord
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run %s: %w", id, err)
	}
	return &run, nil
}

// Runs lists every archived run, oldest first.
func (a *Archive) Runs() ([]RunRecord, error) {
	runs := make([]RunRecord, 0)

	iter := a.db.NewIterator(util.BytesPrefix([]byte(runKeyPrefix)), nil)
	defer iter.Release()

	for iter.Next() {
		var run RunRecord
		if err := json.Unmarshal(iter.Value(), &run); err != nil {
			return nil, fmt.Errorf("failed to unmarshal run %s: %w", string(iter.Key()), err)
		}
		runs = append(runs, run)
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}

	// Run IDs are random, so key order says nothing useful; sort by age.
	sort.Slice(runs, func(i, j int) bool {
		return runs[i].CreatedAt.Before(runs[j].CreatedAt)
	})
	return runs, nil
}

// LatestRunID returns the ID of the most recently saved run.
func (a *Archive) LatestRunID() (string, error) {
	data, err := a.db.Get([]byte(latestRunKey), nil)
	if err != nil {
		if err == leveldb.ErrNotFound {
			return "", fmt.Errorf("latest run: %w", ErrNotFound)
		}
		return "", fmt.Errorf("failed to retrieve latest run id: %w", err)
	}
	return string(data), nil
}

// Matrix loads the archived propagation matrix of one run.
func (a *Archive) Matrix(id string) (*MatrixRecord, error) {
	data, err := a.db.Get([]byte(matrixKeyPrefix+id), nil)
	if err != nil {
		if err == leveldb.ErrNotFound {
			return nil, fmt.Errorf("matrix for run %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to retrieve matrix for run %s: %w", id, err)
	}

	var matrix MatrixRecord
	if err := json.Unmarshal(data, &matrix); err != nil {
		return nil, fmt.Errorf("failed to unmarshal matrix for run %s: %w", id, err)
	}
	return &matrix, nil
}

// ChainBlock loads one archived block of a run by height.
func (a *Archive) ChainBlock(id string, height uint64) (*BlockRecord, error) {
	data, err := a.db.Get(chainKey(id, height), nil)
	if err != nil {
		if err == leveldb.ErrNotFound {
			return nil, fmt.Errorf("run %s block %d: %w", id, height, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to retrieve block %d of run %s: %w", height, id, err)
	}

	var rec BlockRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal block %d of run %s: %w", height, id, err)
	}
	return &rec, nil
}

// ChainRange loads the archived blocks of a run with from <= height <= to,
// ascending. Heights that were never stored are simply absent from the result.
func (a *Archive) ChainRange(id string, from, to uint64) ([]BlockRecord, error) {
	if to < from {
		return nil, fmt.Errorf("invalid range %d..%d", from, to)
	}

	blocks := make([]BlockRecord, 0)

	iter := a.db.NewIterator(util.BytesPrefix([]byte(chainKeyPrefix+id+"_")), nil)
	defer iter.Release()

	for ok := iter.Seek(chainKey(id, from)); ok; ok = iter.Next() {
		var rec BlockRecord
		if err := json.Unmarshal(iter.Value(), &rec); err != nil {
			return nil, fmt.Errorf("failed to unmarshal block %s: %w", string(iter.Key()), err)
		}
		if rec.Height > to {
			break
		}
		blocks = append(blocks, rec)
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("error iterating chain of run %s: %w", id, err)
	}

	return blocks, nil
}
