// Package monitor loads provider identities and usage together and keeps
// the latest consistent snapshot for the CLI and HTTP consumers.
package monitor

import (
	"sync"
	"time"

	"github.com/nghyane/llm-mux-monitor/internal/identity"
	"github.com/nghyane/llm-mux-monitor/internal/usage"
)

// Snapshot is a consistent view of the loaded data. The dataset and identity
// map are shared and must be treated as read-only.
type Snapshot struct {
	Dataset    *usage.Dataset
	Identity   *identity.Map
	Loading    bool
	Err        string
	Generation uint64
	LoadedAt   time.Time
}

// State holds the most recently published load.
type State struct {
	mu      sync.RWMutex
	snap    Snapshot
	started uint64
}

// NewState returns a state with an empty identity map and no dataset.
func NewState() *State {
	return &State{snap: Snapshot{Identity: identity.Empty()}}
}

// Snapshot returns the current snapshot.
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

func (s *State) begin(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen > s.started {
		s.started = gen
	}
	s.snap.Loading = true
	s.snap.Err = ""
}

// publish stores a settled load unless a newer one has started since. A
// failed usage fetch keeps the previous dataset. It reports whether the
// result was published.
func (s *State) publish(gen uint64, ds *usage.Dataset, ids *identity.Map, err error, at time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.started {
		return false
	}
	if err != nil {
		s.snap.Err = err.Error()
	} else {
		s.snap.Err = ""
		s.snap.Dataset = ds
	}
	s.snap.Identity = ids
	s.snap.Loading = false
	s.snap.Generation = gen
	s.snap.LoadedAt = at
	return true
}
