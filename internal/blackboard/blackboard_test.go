package blackboard

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/daydemir/cip-agent/internal/types"
)

func TestSnapshotIsIsolatedFromLaterWrites(t *testing.T) {
	store := New()
	store.PublishSuspects(types.Node{ID: "n1"})
	store.PublishEvidence(map[string]interface{}{"k": "v1"})

	snap := store.Snapshot()
	require := assert.New(t)
	require.Len(snap.Suspects, 1)
	require.Len(snap.Evidence, 1)

	store.PublishSuspects(types.Node{ID: "n2"})
	store.PublishEvidence(map[string]interface{}{"k": "v2"})
	snap.Evidence[0]["k"] = "mutated"

	require.Len(snap.Suspects, 1, "snapshot must not see suspects appended after it was taken")
	store2 := store.Snapshot()
	require.Len(store2.Suspects, 2)
	require.Equal("v1", store2.Evidence[0]["k"], "mutating a snapshot's evidence map must not affect the store")
}

func TestConcurrentPublishIsRaceFree(t *testing.T) {
	store := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			store.PublishSuspects(types.Node{ID: "n"})
			store.PublishObservable(map[string]interface{}{"i": n})
		}(i)
	}
	wg.Wait()

	snap := store.Snapshot()
	assert.Len(t, snap.Suspects, 50)
	assert.Len(t, snap.Observables, 50)
}

func TestPublishProbePatchAndInvariant(t *testing.T) {
	store := New()
	store.PublishProbePatch(types.ProbePatch{ID: "p1", Purpose: "instrument"})
	store.PublishInvariant("total() never decreases")

	snap := store.Snapshot()
	assert.Equal(t, "p1", snap.ProbePatches[0].ID)
	assert.Equal(t, []string{"total() never decreases"}, snap.Invariants)
}
