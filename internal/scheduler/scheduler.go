// Package scheduler runs subsystems cooperatively from a single goroutine.
// Each task declares its own interval; a tick runs every task that is due,
// ordered by stage so inputs are always processed before policy, policy
// before actuation and actuation before outward traffic.
package scheduler

import (
	"container/heap"
	"context"
	"sort"
	"time"
)

// Stage orders tasks that are due in the same tick.
type Stage int

const (
	StageInput Stage = iota
	StagePolicy
	StageActuate
	StageOutput
)

func (s Stage) String() string {
	switch s {
	case StageInput:
		return "input"
	case StagePolicy:
		return "policy"
	case StageActuate:
		return "actuate"
	case StageOutput:
		return "output"
	}
	return "unknown"
}

// Task is a unit of periodic work.
type Task struct {
	Name     string
	Stage    Stage
	Interval time.Duration // 0 runs on every tick

	// Ready, if set, gates the run. A task that is not ready is rescheduled
	// as if it had run.
	Ready func(now time.Time) bool

	Run func(ctx context.Context, now time.Time)
}

type entry struct {
	task    Task
	seq     int
	nextDue time.Time
	index   int
	runs    int
}

// Scheduler is not safe for concurrent use. It is owned by the control loop.
type Scheduler struct {
	queue queue
	seq   int
}

// New creates an empty scheduler.
func New() *Scheduler {
	return &Scheduler{}
}

// Add registers a task. It becomes due at start.
func (s *Scheduler) Add(task Task, start time.Time) {
	e := &entry{task: task, seq: s.seq, nextDue: start}
	s.seq++
	heap.Push(&s.queue, e)
}

// Len returns the number of registered tasks.
func (s *Scheduler) Len() int {
	return len(s.queue)
}

// NextDue returns the earliest next-due time, or the zero time if empty.
func (s *Scheduler) NextDue() time.Time {
	if len(s.queue) == 0 {
		return time.Time{}
	}
	return s.queue[0].nextDue
}

// Tick runs every task due at now and returns the names of the tasks that ran.
// Each task is rescheduled at now+Interval, so lateness accumulates as drift
// rather than causing catch-up runs.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) []string {
	var due []*entry
	for len(s.queue) > 0 && !s.queue[0].nextDue.After(now) {
		due = append(due, heap.Pop(&s.queue).(*entry))
	}

	sort.Slice(due, func(i, j int) bool {
		if due[i].task.Stage != due[j].task.Stage {
			return due[i].task.Stage < due[j].task.Stage
		}
		return due[i].seq < due[j].seq
	})

	var ran []string
	for _, e := range due {
		if e.task.Ready == nil || e.task.Ready(now) {
			e.task.Run(ctx, now)
			e.runs++
			ran = append(ran, e.task.Name)
		}
		e.nextDue = now.Add(e.task.Interval)
		heap.Push(&s.queue, e)
	}
	return ran
}

// Runs returns how many times the named task has run.
func (s *Scheduler) Runs(name string) int {
	for _, e := range s.queue {
		if e.task.Name == name {
			return e.runs
		}
	}
	return 0
}

// queue is a min-heap on next-due time, ties broken by stage then insertion.
type queue []*entry

func (q queue) Len() int { return len(q) }

func (q queue) Less(i, j int) bool {
	if !q[i].nextDue.Equal(q[j].nextDue) {
		return q[i].nextDue.Before(q[j].nextDue)
	}
	if q[i].task.Stage != q[j].task.Stage {
		return q[i].task.Stage < q[j].task.Stage
	}
	return q[i].seq < q[j].seq
}

func (q queue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *queue) Push(x any) {
	e := x.(*entry)
	e.index = len(*q)
	*q = append(*q, e)
}

func (q *queue) Pop() any {
	old := *q
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*q = old[:n-1]
	return e
}
