// Package state holds the authoritative in-memory health record of every
// monitored target.
package state

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hazz-dev/healthwatch/internal/checker"
	"github.com/hazz-dev/healthwatch/internal/config"
)

// ErrUnknownTarget is returned when a result names a target the store was
// not built with.
var ErrUnknownTarget = errors.New("unknown target")

// Record is the health state of one target. Pointer fields are nil until
// they have a value: Up and LastCheckedAt before the first check,
// ResponseTimeMs and StatusCode when the last attempt got no response.
type Record struct {
	Target               config.Target
	Up                   *bool
	LastCheckedAt        *time.Time
	ResponseTimeMs       *int64
	StatusCode           *int
	ConsecutiveFailures  int
	ConsecutiveSuccesses int
	LastError            string
}

// Checked reports whether at least one probe has completed.
func (r Record) Checked() bool {
	return r.LastCheckedAt != nil
}

// IsUp reports whether the target is known to be up.
func (r Record) IsUp() bool {
	return r.Up != nil && *r.Up
}

// apply returns the record that results from recording res at time at.
// Pointer fields are freshly allocated so the returned record shares no
// memory with r.
func (r Record) apply(res checker.Result, at time.Time) Record {
	next := Record{Target: r.Target}

	up := res.Success
	next.Up = &up
	checkedAt := at
	next.LastCheckedAt = &checkedAt

	if res.Responded {
		ms := res.Latency.Milliseconds()
		next.ResponseTimeMs = &ms
	}
	if res.StatusCode != 0 {
		code := res.StatusCode
		next.StatusCode = &code
	}

	if res.Success {
		next.ConsecutiveSuccesses = r.ConsecutiveSuccesses + 1
	} else {
		next.ConsecutiveFailures = r.ConsecutiveFailures + 1
		next.LastError = res.Error
	}
	return next
}

// Store owns one Record per configured target. Records are replaced
// whole under the write lock, so readers never see a partial update.
// The set of targets is fixed at construction.
type Store struct {
	mu      sync.RWMutex
	order   []string
	records map[string]Record
}

// New creates a store with an unknown record for every target.
func New(targets []config.Target) *Store {
	s := &Store{
		order:   make([]string, 0, len(targets)),
		records: make(map[string]Record, len(targets)),
	}
	for _, t := range targets {
		if _, dup := s.records[t.Name]; dup {
			continue
		}
		s.order = append(s.order, t.Name)
		s.records[t.Name] = Record{Target: t}
	}
	return s
}

// Targets returns the configured targets in configuration order.
func (s *Store) Targets() []config.Target {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]config.Target, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.records[name].Target)
	}
	return out
}

// Apply records a completed probe for the named target and returns the
// record before and after the update.
func (s *Store) Apply(name string, res checker.Result, at time.Time) (prev, next Record, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.records[name]
	if !ok {
		return Record{}, Record{}, fmt.Errorf("applying result for %q: %w", name, ErrUnknownTarget)
	}
	next = prev.apply(res, at)
	s.records[name] = next
	return prev, next, nil
}

// Get returns the current record for a target.
func (s *Store) Get(name string) (Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[name]
	return r, ok
}

// Snapshot returns a copy of every record, taken at the given time.
func (s *Store) Snapshot(at time.Time) Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		TakenAt: at,
		Records: make([]Record, 0, len(s.order)),
	}
	for _, name := range s.order {
		snap.Records = append(snap.Records, s.records[name])
	}
	return snap
}
