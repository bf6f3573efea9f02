// Package collection holds the in-memory record collections and the engine
// that keeps them in sync with the remote document store.
package collection

import (
	"fmt"
	"sync"

	"github.com/vinayKumarReddy-mangalampenta/project-cost-estimater/internal/models"
)

// State is the request state of a collection.
type State int

const (
	// StateIdle means no operation is in flight and the last one succeeded.
	StateIdle State = iota
	// StatePending means at least one operation is in flight.
	StatePending
	// StateError means the most recent completed operation failed.
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePending:
		return "pending"
	case StateError:
		return "error"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Status is the single status value of a collection.
type Status struct {
	State State
	// Err is the last error message. Only set when State is StateError.
	Err string
}

func (s Status) String() string {
	if s.State == StateError {
		return fmt.Sprintf("error(%s)", s.Err)
	}
	return s.State.String()
}

// Store is the in-memory mirror of one remote collection for the active session.
// It is written only by the Engine that owns it; everyone else reads.
type Store struct {
	mu       sync.RWMutex
	records  map[string]models.Record
	order    []string
	status   Status
	inFlight int

	// generation changes on every Reset. Completions dispatched under an older
	// generation are dropped.
	generation uint64

	changed chan struct{}
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		records: make(map[string]models.Record),
		changed: make(chan struct{}, 1),
	}
}

// Records returns a copy of the cached records in insertion order.
func (s *Store) Records() []models.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Record, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.records[id])
	}
	return out
}

// Get returns the cached record with the given id.
func (s *Store) Get(id string) (models.Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[id]
	return r, ok
}

// Len returns the number of cached records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// Status returns the current collection status.
func (s *Store) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// InFlight returns the number of operations dispatched and not yet completed.
func (s *Store) InFlight() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.inFlight
}

// Changed returns a channel that receives a value after the store's records
// or status change. Notifications coalesce: several changes between two reads
// produce a single value.
func (s *Store) Changed() <-chan struct{} {
	return s.changed
}

// Reset empties the store and sets it idle. Operations still in flight will
// not touch the store when they complete.
func (s *Store) Reset() {
	s.mu.Lock()
	s.records = make(map[string]models.Record)
	s.order = nil
	s.status = Status{State: StateIdle}
	s.inFlight = 0
	s.generation++
	s.mu.Unlock()

	s.notify()
}

// begin marks an operation as started and returns the generation it runs under.
func (s *Store) begin() uint64 {
	s.mu.Lock()
	s.inFlight++
	s.status = Status{State: StatePending}
	gen := s.generation
	s.mu.Unlock()

	s.notify()
	return gen
}

// complete applies the outcome of an operation started under gen.
// On success apply runs with the lock held; on failure the records are left as
// they are. Returns false when the completion was discarded as stale.
func (s *Store) complete(gen uint64, err error, apply func()) bool {
	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		return false
	}

	s.inFlight--
	switch {
	case err != nil:
		s.status = Status{State: StateError, Err: err.Error()}
	case s.inFlight > 0:
		s.status = Status{State: StatePending}
		apply()
	default:
		s.status = Status{State: StateIdle}
		apply()
	}
	s.mu.Unlock()

	s.notify()
	return true
}

// The helpers below must be called with mu held.

func (s *Store) replaceAll(records []models.Record) {
	s.records = make(map[string]models.Record, len(records))
	s.order = make([]string, 0, len(records))
	for _, r := range records {
		if _, dup := s.records[r.ID]; !dup {
			s.order = append(s.order, r.ID)
		}
		s.records[r.ID] = r
	}
}

func (s *Store) put(r models.Record) {
	if _, ok := s.records[r.ID]; !ok {
		s.order = append(s.order, r.ID)
	}
	s.records[r.ID] = r
}

func (s *Store) patch(id string, p models.Patch) {
	r, ok := s.records[id]
	if !ok {
		return
	}
	s.records[id] = p.Apply(r)
}

func (s *Store) delete(id string) {
	if _, ok := s.records[id]; !ok {
		return
	}
	delete(s.records, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

func (s *Store) notify() {
	select {
	case s.changed <- struct{}{}:
	default:
	}
}
