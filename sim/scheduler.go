package sim

import "container/heap"

// Task is a unit of work bound to a virtual-time instant.
type Task interface {
	Run(now int64)
}

// TaskFunc adapts a plain function to the Task interface.
type TaskFunc func(now int64)

func (f TaskFunc) Run(now int64) { f(now) }

type scheduledTask struct {
	at   int64
	seq  uint64
	task Task
}

// taskQueue orders by firing time, breaking ties by insertion sequence so
// simultaneous tasks run in the order they were scheduled.
type taskQueue []*scheduledTask

func (q taskQueue) Len() int { return len(q) }

func (q taskQueue) Less(i, j int) bool {
	if q[i].at != q[j].at {
		return q[i].at < q[j].at
	}
	return q[i].seq < q[j].seq
}

func (q taskQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *taskQueue) Push(x any) { *q = append(*q, x.(*scheduledTask)) }

func (q *taskQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return item
}

// Scheduler owns virtual time. The clock only moves inside Step, which runs
// tasks strictly in (firing time, insertion) order on the calling goroutine.
// The whole simulation is single-threaded and the scheduler relies on that.
type Scheduler struct {
	now   int64
	seq   uint64
	queue taskQueue
}

func NewScheduler() *Scheduler {
	return &Scheduler{queue: make(taskQueue, 0, 64)}
}

// Now returns the current virtual time in microseconds.
func (s *Scheduler) Now() int64 {
	return s.now
}

// Len reports how many tasks are pending.
func (s *Scheduler) Len() int {
	return len(s.queue)
}

// Schedule inserts a task at an absolute firing time. Callers compute their
// own offsets from Now; a past firing time is accepted and the clock simply
// does not rewind for it.
func (s *Scheduler) Schedule(at int64, t Task) {
	s.seq++
	heap.Push(&s.queue, &scheduledTask{at: at, seq: s.seq, task: t})
}

// ScheduleAfter inserts a task delay microseconds from now.
func (s *Scheduler) ScheduleAfter(delay int64, t Task) {
	s.Schedule(s.now+delay, t)
}

// NextTime reports the firing time of the earliest pending task.
func (s *Scheduler) NextTime() (int64, bool) {
	if len(s.queue) == 0 {
		return 0, false
	}
	return s.queue[0].at, true
}

// Step pops the earliest pending task, advances the clock to its firing time
// and runs it to completion. It reports false, with no other effect, once the
// queue is empty.
func (s *Scheduler) Step() bool {
	if len(s.queue) == 0 {
		return false
	}

	next := heap.Pop(&s.queue).(*scheduledTask)
	if next.at > s.now {
		s.now = next.at
	}
	next.task.Run(s.now)
	return true
}
