package sim

import "blocksim/logger"

// RunUntil steps the scheduler until its queue drains or a block at or above
// stopHeight has arrived somewhere in the network. A stopHeight of zero means
// run until the queue is empty. Returns the number of tasks executed.
func RunUntil(sched *Scheduler, simr *Simulator, stopHeight uint64) int {
	steps := 0
	for sched.Step() {
		steps++
		if stopHeight > 0 && simr.MaxHeight() >= stopHeight {
			break
		}
	}

	log.WithFields(logger.Fields{
		"tasks":       steps,
		"virtualTime": sched.Now(),
		"maxHeight":   simr.MaxHeight(),
		"pending":     sched.Len(),
	}).Info("Simulation run finished")

	return steps
}

// RunTo steps the scheduler through every task firing at or before the given
// virtual time. Returns the number of tasks executed.
func RunTo(sched *Scheduler, until int64) int {
	steps := 0
	for {
		next, ok := sched.NextTime()
		if !ok || next > until {
			return steps
		}
		sched.Step()
		steps++
	}
}
