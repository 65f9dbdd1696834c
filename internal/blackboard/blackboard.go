// Package blackboard is the single shared evidence store every probe
// and the fusion step read from and append to (spec.md §3, §4.5). It
// is append-only and single-writer per call: callers never get a
// mutable reference into the store's backing slices.
package blackboard

import (
	"sync"

	"github.com/daydemir/cip-agent/internal/types"
)

// Store guards one types.Blackboard behind a mutex. All mutation goes
// through the Publish* methods; reads go through Snapshot, which
// deep-copies so a returned value is immune to writers that run after
// the snapshot was taken.
type Store struct {
	mu sync.Mutex
	bb types.Blackboard
}

func New() *Store {
	return &Store{}
}

// PublishSuspects appends nodes to the suspect list.
func (s *Store) PublishSuspects(nodes ...types.Node) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bb.Suspects = append(s.bb.Suspects, nodes...)
}

// PublishProbePatch appends a probe patch record.
func (s *Store) PublishProbePatch(p types.ProbePatch) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bb.ProbePatches = append(s.bb.ProbePatches, p)
}

// PublishEvidence appends a free-form observation, keyed however the
// caller likes (a probe's report, a gate's output, a planner's note).
func (s *Store) PublishEvidence(e map[string]interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bb.Evidence = append(s.bb.Evidence, e)
}

// PublishObservable appends a raw observable record distinct from
// curated evidence (spec.md §3's Observables slice).
func (s *Store) PublishObservable(o map[string]interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bb.Observables = append(s.bb.Observables, o)
}

// PublishInvariant appends a discovered or asserted invariant.
func (s *Store) PublishInvariant(inv string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bb.Invariants = append(s.bb.Invariants, inv)
}

// Snapshot returns a deep copy of the current blackboard state. The
// copy shares no backing arrays with the store, so a writer that
// appends after Snapshot returns can never mutate the caller's view.
func (s *Store) Snapshot() types.Blackboard {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := types.Blackboard{
		Suspects:     append([]types.Node(nil), s.bb.Suspects...),
		ProbePatches: append([]types.ProbePatch(nil), s.bb.ProbePatches...),
		Invariants:   append([]string(nil), s.bb.Invariants...),
	}
	out.Observables = deepCopyMaps(s.bb.Observables)
	out.Evidence = deepCopyMaps(s.bb.Evidence)
	return out
}

func deepCopyMaps(in []map[string]interface{}) []map[string]interface{} {
	if in == nil {
		return nil
	}
	var copyValue func(v interface{}) interface{}
	copyValue = func(v interface{}) interface{} {
		switch t := v.(type) {
		case map[string]interface{}:
			cp := make(map[string]interface{}, len(t))
			for k, x := range t {
				cp[k] = copyValue(x)
			}
			return cp
		case []interface{}:
			cp := make([]interface{}, len(t))
			for i, x := range t {
				cp[i] = copyValue(x)
			}
			return cp
		default:
			return v
		}
	}
	out := make([]map[string]interface{}, len(in))
	for i, m := range in {
		out[i] = copyValue(m).(map[string]interface{})
	}
	return out
}
