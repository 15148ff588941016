package api

import "blocksim/store"

// ResultSource supplies simulation results to the server. The run archive
// satisfies it directly; LiveResults adapts the outcome of an in-process run
// so results can be served without reopening the database.
type ResultSource interface {
	Runs() ([]store.RunRecord, error)
	Run(id string) (*store.RunRecord, error)
	LatestRunID() (string, error)
	Matrix(id string) (*store.MatrixRecord, error)
	ChainBlock(id string, height uint64) (*store.BlockRecord, error)
	ChainRange(id string, from, to uint64) ([]store.BlockRecord, error)
}
