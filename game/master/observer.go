package master

import (
	"sync"
	"sync/atomic"

	"github.com/wricardo/capture-maze/game/engine"
)

// Snapshot is what observers see after each turn. The universe is a copy
// owned by the receiving observer.
type Snapshot struct {
	Round    int              `json:"round"`
	Turn     int              `json:"turn"`
	State    State            `json:"state"`
	Universe *engine.Universe `json:"universe"`
	Events   engine.EventList `json:"events"`
}

func (s Snapshot) copy() Snapshot {
	if s.Universe != nil {
		s.Universe = s.Universe.Copy()
	}
	s.Events = append(engine.EventList(nil), s.Events...)
	return s
}

// Observer receives a snapshot after every turn. Observe is called
// synchronously from the game loop.
type Observer interface {
	Observe(s Snapshot)
}

// Finisher is implemented by observers that want the final result
type Finisher interface {
	Finish(r Result)
}

// ObserverFunc adapts a function to the Observer interface
type ObserverFunc func(s Snapshot)

func (f ObserverFunc) Observe(s Snapshot) {
	f(s)
}

// BufferedObserver decouples a slow observer from the game loop with a
// bounded queue. When the queue is full the newest snapshot is dropped and
// counted.
type BufferedObserver struct {
	next    Observer
	queue   chan Snapshot
	done    chan struct{}
	mu      sync.Mutex
	closed  bool
	result  *Result
	dropped atomic.Uint64
}

// NewBufferedObserver starts delivering to next from a queue of size
// snapshots
func NewBufferedObserver(next Observer, size int) *BufferedObserver {
	if size < 1 {
		size = 1
	}
	b := &BufferedObserver{
		next:  next,
		queue: make(chan Snapshot, size),
		done:  make(chan struct{}),
	}
	go b.loop()
	return b
}

func (b *BufferedObserver) loop() {
	defer close(b.done)
	for s := range b.queue {
		b.next.Observe(s)
	}
	b.mu.Lock()
	result := b.result
	b.mu.Unlock()
	if f, ok := b.next.(Finisher); ok && result != nil {
		f.Finish(*result)
	}
}

// Observe enqueues s without blocking
func (b *BufferedObserver) Observe(s Snapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		b.dropped.Add(1)
		return
	}
	select {
	case b.queue <- s:
	default:
		b.dropped.Add(1)
	}
}

// Finish closes the queue. The result is forwarded once every queued
// snapshot has been delivered.
func (b *BufferedObserver) Finish(r Result) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	b.result = &r
	close(b.queue)
}

// Close stops accepting snapshots without forwarding a result
func (b *BufferedObserver) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.closed {
		b.closed = true
		close(b.queue)
	}
}

// Wait blocks until the queue is drained after Finish or Close
func (b *BufferedObserver) Wait() {
	<-b.done
}

// Dropped returns the number of snapshots that did not fit the queue
func (b *BufferedObserver) Dropped() uint64 {
	return b.dropped.Load()
}

// Recorder keeps every snapshot and the final result in memory
type Recorder struct {
	mu        sync.RWMutex
	snapshots []Snapshot
	result    *Result
}

func (r *Recorder) Observe(s Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshots = append(r.snapshots, s)
}

func (r *Recorder) Finish(res Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.result = &res
}

// Snapshots returns the recorded snapshots in order
func (r *Recorder) Snapshots() []Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Snapshot(nil), r.snapshots...)
}

// Events returns all recorded events in order
func (r *Recorder) Events() engine.EventList {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out engine.EventList
	for _, s := range r.snapshots {
		out = append(out, s.Events...)
	}
	return out
}

// Result returns the recorded result, or nil before Finish
func (r *Recorder) Result() *Result {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.result.copy()
}
