package models

import (
	"slices"
	"sync"
	"time"

	ttlworker "github.com/FloatTech/ttl"

	"github.com/moyoez/blendconv/saga"
	"github.com/moyoez/blendconv/types"
)

var (
	// AttemptTTL is how long a finished attempt stays queryable.
	AttemptTTL = 60 * time.Minute

	attemptMu sync.RWMutex
	snapshots = ttlworker.NewCache[string, types.AttemptSnapshot](AttemptTTL)
	running   = ttlworker.NewCache[string, *saga.Saga](AttemptTTL)
)

// runningIDs indexes running, the cache itself cannot be enumerated.
var runningIDs = map[string]struct{}{}

// PutSnapshot records the latest state of an attempt.
func PutSnapshot(snap types.AttemptSnapshot) {
	if snap.ID == "" {
		return
	}
	attemptMu.Lock()
	defer attemptMu.Unlock()
	snapshots.Set(snap.ID, snap)
}

// GetSnapshot returns the latest known state of an attempt.
func GetSnapshot(id string) (types.AttemptSnapshot, bool) {
	attemptMu.RLock()
	defer attemptMu.RUnlock()
	snap := snapshots.Get(id)
	if snap.ID == "" {
		return types.AttemptSnapshot{}, false
	}
	return snap, true
}

// RegisterRunning makes a saga cancellable by attempt id.
func RegisterRunning(id string, s *saga.Saga) {
	attemptMu.Lock()
	defer attemptMu.Unlock()
	running.Set(id, s)
	runningIDs[id] = struct{}{}
}

// GetRunning returns the saga driving an attempt, nil once it has finished.
func GetRunning(id string) *saga.Saga {
	attemptMu.RLock()
	defer attemptMu.RUnlock()
	return running.Get(id)
}

func RemoveRunning(id string) {
	attemptMu.Lock()
	defer attemptMu.Unlock()
	running.Delete(id)
	delete(runningIDs, id)
}

// RunningSnapshots returns the latest snapshot of every attempt still running, oldest update first.
func RunningSnapshots() []types.AttemptSnapshot {
	attemptMu.RLock()
	defer attemptMu.RUnlock()
	snaps := make([]types.AttemptSnapshot, 0, len(runningIDs))
	for id := range runningIDs {
		if snap := snapshots.Get(id); snap.ID != "" {
			snaps = append(snaps, snap)
		}
	}
	slices.SortFunc(snaps, func(a, b types.AttemptSnapshot) int {
		return a.UpdatedAt.Compare(b.UpdatedAt)
	})
	return snaps
}
