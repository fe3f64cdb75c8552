package crdtsync

import (
	"sync"

	"treecrdt/common"
)

// StateVector tracks the highest counter observed per session. Comparing
// vectors tells two replicas which patches the other has not seen.
type StateVector struct {
	// vector maps a session ID string to its highest observed counter.
	vector map[string]uint64

	// mutex protects the vector.
	mutex sync.RWMutex
}

// NewStateVector creates an empty state vector.
func NewStateVector() *StateVector {
	return &StateVector{
		vector: make(map[string]uint64),
	}
}

// Update advances the vector with an observed timestamp.
func (sv *StateVector) Update(ts common.Timestamp) {
	sv.mutex.Lock()
	defer sv.mutex.Unlock()

	sid := ts.SID.String()
	if current, ok := sv.vector[sid]; !ok || ts.Counter > current {
		sv.vector[sid] = ts.Counter
	}
}

// UpdateFromMap advances the vector with another vector's entries.
func (sv *StateVector) UpdateFromMap(vector map[string]uint64) {
	sv.mutex.Lock()
	defer sv.mutex.Unlock()

	for sid, counter := range vector {
		if current, ok := sv.vector[sid]; !ok || counter > current {
			sv.vector[sid] = counter
		}
	}
}

// Get returns a copy of the vector.
func (sv *StateVector) Get() map[string]uint64 {
	sv.mutex.RLock()
	defer sv.mutex.RUnlock()

	result := make(map[string]uint64, len(sv.vector))
	for sid, counter := range sv.vector {
		result[sid] = counter
	}
	return result
}

// Covers reports whether the vector has observed the given timestamp.
func (sv *StateVector) Covers(ts common.Timestamp) bool {
	sv.mutex.RLock()
	defer sv.mutex.RUnlock()

	return sv.vector[ts.SID.String()] >= ts.Counter
}

// Missing returns the sessions where remote is ahead of this vector, mapped
// to this vector's counters (zero for unknown sessions).
func (sv *StateVector) Missing(remote map[string]uint64) map[string]uint64 {
	sv.mutex.RLock()
	defer sv.mutex.RUnlock()

	missing := make(map[string]uint64)
	for sid, counter := range remote {
		if sv.vector[sid] < counter {
			missing[sid] = sv.vector[sid]
		}
	}
	return missing
}
