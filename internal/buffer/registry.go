// Package buffer owns named mono sample buffers and hands out exclusive leases
// on their contents.
package buffer

import (
	"errors"
	"fmt"
	"sync"
)

// ErrNotFound is returned when no buffer is registered under a name.
var ErrNotFound = errors.New("buffer not found")

// ErrExists is returned by Create when the name is already taken.
var ErrExists = errors.New("buffer already exists")

// EventKind says what happened to a buffer.
type EventKind int

const (
	// EventExists fires when a buffer appears under a watched name.
	EventExists EventKind = iota
	// EventModified fires when a buffer's contents are replaced or marked dirty.
	EventModified
	// EventRemoved fires when a buffer is dropped from the registry.
	EventRemoved
)

func (k EventKind) String() string {
	switch k {
	case EventExists:
		return "exists"
	case EventModified:
		return "modified"
	case EventRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// Event is delivered to subscribers of a buffer name.
type Event struct {
	Name string
	Kind EventKind
}

// entry is one registered buffer. mu is held for the lifetime of a lease.
type entry struct {
	mu         sync.Mutex
	samples    []float64
	sampleRate int
	dirty      bool
}

type subscriber struct {
	id int
	fn func(Event)
}

// Registry maps names to sample buffers. It is safe for concurrent use.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*entry
	leased  map[string]*entry
	subs    map[string][]subscriber
	nextSub int
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]*entry),
		leased:  make(map[string]*entry),
		subs:    make(map[string][]subscriber),
	}
}

// Create registers samples under name. The registry takes ownership of the
// slice. A name stays taken while a lease on a removed buffer of that name is
// still held.
func (r *Registry) Create(name string, samples []float64, sampleRate int) error {
	r.mu.Lock()
	if _, ok := r.entries[name]; ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrExists, name)
	}
	if _, ok := r.leased[name]; ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s is still leased", ErrExists, name)
	}
	r.entries[name] = &entry{samples: samples, sampleRate: sampleRate}
	r.mu.Unlock()

	r.notify(Event{Name: name, Kind: EventExists})
	return nil
}

// Replace swaps the contents of an existing buffer. It waits for any lease
// on the buffer to be released.
func (r *Registry) Replace(name string, samples []float64) error {
	e, err := r.lookup(name)
	if err != nil {
		return err
	}

	e.mu.Lock()
	e.samples = samples
	e.dirty = false
	e.mu.Unlock()

	r.notify(Event{Name: name, Kind: EventModified})
	return nil
}

// Remove drops a buffer from the registry. A lease held on it stays valid
// until released.
func (r *Registry) Remove(name string) error {
	r.mu.Lock()
	if _, ok := r.entries[name]; !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	delete(r.entries, name)
	r.mu.Unlock()

	r.notify(Event{Name: name, Kind: EventRemoved})
	return nil
}

// Acquire takes an exclusive lease on a buffer and returns its samples for
// in-place modification. It blocks while another lease is held, and fails
// with ErrNotFound if the buffer is removed while it waits. Every successful
// Acquire must be paired with Release.
func (r *Registry) Acquire(name string) ([]float64, error) {
	e, err := r.lookup(name)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()

	r.mu.Lock()
	if r.entries[name] != e {
		r.mu.Unlock()
		e.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	r.leased[name] = e
	r.mu.Unlock()
	return e.samples, nil
}

// Release ends the lease taken by Acquire. It is a no-op when no lease is
// held on name.
func (r *Registry) Release(name string) {
	r.mu.Lock()
	e, ok := r.leased[name]
	delete(r.leased, name)
	r.mu.Unlock()
	if !ok {
		return
	}
	e.mu.Unlock()
}

// FrameCount returns the number of samples held under name.
func (r *Registry) FrameCount(name string) (int, error) {
	e, err := r.lookup(name)
	if err != nil {
		return 0, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.samples), nil
}

// SampleRate returns the sample rate the buffer was created with.
func (r *Registry) SampleRate(name string) (int, error) {
	e, err := r.lookup(name)
	if err != nil {
		return 0, err
	}
	return e.sampleRate, nil
}

// MarkDirty records that the buffer contents changed and tells subscribers.
func (r *Registry) MarkDirty(name string) {
	e, err := r.lookup(name)
	if err != nil {
		return
	}
	e.mu.Lock()
	e.dirty = true
	e.mu.Unlock()

	r.notify(Event{Name: name, Kind: EventModified})
}

// Dirty reports whether the buffer has been marked dirty since it was
// created or last replaced.
func (r *Registry) Dirty(name string) bool {
	e, err := r.lookup(name)
	if err != nil {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dirty
}

// Snapshot returns a copy of the buffer contents.
func (r *Registry) Snapshot(name string) ([]float64, error) {
	samples, err := r.Acquire(name)
	if err != nil {
		return nil, err
	}
	defer r.Release(name)

	out := make([]float64, len(samples))
	copy(out, samples)
	return out, nil
}

// Subscribe calls fn for every event on name, including events for buffers
// created under that name later. The returned function cancels the
// subscription. fn runs on the goroutine that caused the event and must not
// call back into Acquire for the same buffer.
func (r *Registry) Subscribe(name string, fn func(Event)) (cancel func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextSub++
	id := r.nextSub
	r.subs[name] = append(r.subs[name], subscriber{id: id, fn: fn})

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		subs := r.subs[name]
		for i, s := range subs {
			if s.id == id {
				r.subs[name] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
		if len(r.subs[name]) == 0 {
			delete(r.subs, name)
		}
	}
}

func (r *Registry) lookup(name string) (*entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return e, nil
}

func (r *Registry) notify(ev Event) {
	r.mu.Lock()
	subs := make([]subscriber, len(r.subs[ev.Name]))
	copy(subs, r.subs[ev.Name])
	r.mu.Unlock()

	for _, s := range subs {
		s.fn(ev)
	}
}
