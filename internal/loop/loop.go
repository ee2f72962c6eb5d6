// Package loop provides a single-threaded timed callback scheduler.
//
// All callbacks run on the goroutine that drives the loop, so state touched
// only from callbacks needs no locking. Other goroutines hand work to the loop
// with Post. A virtual loop advances its own clock instead of sleeping, which
// makes timing deterministic in tests.
package loop

import (
	"container/heap"
	"context"
	"sync"
	"time"
)

// Clock provides the current time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now()
}

// Timer is a scheduled callback.
type Timer struct {
	at      time.Time
	seq     uint64
	fn      func()
	index   int
	stopped bool
}

// Stop cancels the callback. It reports whether the timer was still pending.
// Stop must be called from the loop goroutine.
func (t *Timer) Stop() bool {
	if t == nil || t.stopped {
		return false
	}
	t.stopped = true
	return t.index >= 0
}

// Loop is a timer heap plus an inbox of posted functions.
type Loop struct {
	clock   Clock
	virtual bool
	now     time.Time

	queue timerQueue
	seq   uint64

	mu     sync.Mutex
	inbox  []func()
	notify chan struct{}
}

// New returns a loop driven by the system clock.
func New() *Loop {
	return &Loop{clock: systemClock{}, notify: make(chan struct{}, 1)}
}

// NewVirtual returns a loop whose clock only moves when RunFor or
// RunUntilIdle advance it.
func NewVirtual(start time.Time) *Loop {
	return &Loop{virtual: true, now: start, notify: make(chan struct{}, 1)}
}

// Now returns the loop's current time.
func (l *Loop) Now() time.Time {
	if l.virtual {
		return l.now
	}
	return l.clock.Now()
}

// After schedules fn to run once d has elapsed. Must be called from the loop
// goroutine or before the loop starts.
func (l *Loop) After(d time.Duration, fn func()) *Timer {
	if d < 0 {
		d = 0
	}
	l.seq++
	t := &Timer{at: l.Now().Add(d), seq: l.seq, fn: fn}
	heap.Push(&l.queue, t)
	return t
}

// Post queues fn to run on the loop goroutine. Safe for concurrent use.
func (l *Loop) Post(fn func()) {
	l.mu.Lock()
	l.inbox = append(l.inbox, fn)
	l.mu.Unlock()
	select {
	case l.notify <- struct{}{}:
	default:
	}
}

// Pending returns the number of scheduled timers, including stopped ones not
// yet discarded.
func (l *Loop) Pending() int {
	return l.queue.Len()
}

// Run executes callbacks in real time until ctx is done.
func (l *Loop) Run(ctx context.Context) error {
	wait := time.NewTimer(time.Hour)
	defer wait.Stop()
	for {
		l.drainInbox()
		l.runDue(l.Now())

		d := time.Hour
		if next, ok := l.nextDeadline(); ok {
			d = time.Until(next)
		}
		if !wait.Stop() {
			select {
			case <-wait.C:
			default:
			}
		}
		wait.Reset(d)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.notify:
		case <-wait.C:
		}
	}
}

// RunFor advances a virtual loop by d, running every callback due in that
// window in deadline order.
func (l *Loop) RunFor(d time.Duration) {
	end := l.now.Add(d)
	for {
		l.drainInbox()
		next, ok := l.nextDeadline()
		if !ok || next.After(end) {
			break
		}
		if next.After(l.now) {
			l.now = next
		}
		l.runDue(l.now)
	}
	l.now = end
}

// RunUntilIdle runs a virtual loop until no timers remain or limit callbacks
// have run. It returns the number of callbacks run.
func (l *Loop) RunUntilIdle(limit int) int {
	ran := 0
	for ran < limit {
		l.drainInbox()
		next, ok := l.nextDeadline()
		if !ok {
			break
		}
		if next.After(l.now) {
			l.now = next
		}
		ran += l.runDue(l.now)
	}
	return ran
}

func (l *Loop) drainInbox() {
	l.mu.Lock()
	inbox := l.inbox
	l.inbox = nil
	l.mu.Unlock()
	for _, fn := range inbox {
		fn()
	}
}

func (l *Loop) nextDeadline() (time.Time, bool) {
	for l.queue.Len() > 0 {
		head := l.queue[0]
		if !head.stopped {
			return head.at, true
		}
		heap.Pop(&l.queue)
	}
	return time.Time{}, false
}

func (l *Loop) runDue(now time.Time) int {
	ran := 0
	for l.queue.Len() > 0 {
		head := l.queue[0]
		if head.stopped {
			heap.Pop(&l.queue)
			continue
		}
		if head.at.After(now) {
			break
		}
		heap.Pop(&l.queue)
		head.stopped = true
		head.fn()
		ran++
	}
	return ran
}

type timerQueue []*Timer

func (q timerQueue) Len() int { return len(q) }

func (q timerQueue) Less(i, j int) bool {
	if q[i].at.Equal(q[j].at) {
		return q[i].seq < q[j].seq
	}
	return q[i].at.Before(q[j].at)
}

func (q timerQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *timerQueue) Push(x any) {
	t := x.(*Timer)
	t.index = len(*q)
	*q = append(*q, t)
}

func (q *timerQueue) Pop() any {
	old := *q
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*q = old[:n-1]
	return t
}
