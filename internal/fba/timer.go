package fba

import (
	"sync"
	"time"
)

// TimerKind distinguishes the timers a slot schedules (spec.md §4.6
// "setup_timer(slot, kind, ...)").
type TimerKind uint8

const (
	// TimerNomination bounds how long a slot waits for nomination to
	// converge before retrying with a higher round number.
	TimerNomination TimerKind = iota
	// TimerBallot bounds how long a slot waits for confirm votes.
	TimerBallot
)

type timerKey struct {
	slot uint64
	kind TimerKind
}

// Timers implements spec.md §5's watermark-id cancellation pattern: a
// newer setup_timer for the same (slot, kind) bumps a watermark so any
// in-flight, superseded callback becomes a silent no-op instead of firing
// twice. Grounded on the teacher's internal/node shutdown pattern of a
// generation counter guarding late callbacks, generalized from one
// counter per node to one per (slot, kind).
type Timers struct {
	mu         sync.Mutex
	watermark  map[timerKey]uint64
	cancelFunc map[timerKey]func()
}

// NewTimers creates an empty timer set.
func NewTimers() *Timers {
	return &Timers{
		watermark:  make(map[timerKey]uint64),
		cancelFunc: make(map[timerKey]func()),
	}
}

// Setup schedules callback to run after timeout unless superseded by a
// later Setup for the same (slot, kind), or cancels all outstanding
// timers of that kind when timeout is zero or callback is nil (spec.md
// §4.6 "setup_timer").
func (t *Timers) Setup(slot uint64, kind TimerKind, timeout time.Duration, callback func()) {
	key := timerKey{slot: slot, kind: kind}

	t.mu.Lock()
	t.watermark[key]++
	id := t.watermark[key]
	if cancel, ok := t.cancelFunc[key]; ok {
		cancel()
		delete(t.cancelFunc, key)
	}
	t.mu.Unlock()

	if timeout <= 0 || callback == nil {
		return
	}

	timer := time.AfterFunc(timeout, func() {
		t.mu.Lock()
		current := t.watermark[key]
		t.mu.Unlock()
		if current != id {
			return // Superseded; silently drop.
		}
		callback()
	})
	t.mu.Lock()
	t.cancelFunc[key] = func() { timer.Stop() }
	t.mu.Unlock()
}

// CancelAll marks every outstanding timer cancelled — used on node
// shutdown (spec.md §5 "Task cancellation on node shutdown is
// cooperative").
func (t *Timers) CancelAll() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for key := range t.watermark {
		t.watermark[key]++
		if cancel, ok := t.cancelFunc[key]; ok {
			cancel()
			delete(t.cancelFunc, key)
		}
	}
}
