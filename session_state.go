package training

import "sync"

// SessionState consolidates the mutable progress of a session: the current
// checkpoint and cross-validation indices, which persist across save and
// restore, and the one-way latch marking the switch to distributed
// partitioning. The training loop itself stays a thin driver over this
// struct and the pure trigger decisions.
type SessionState struct {
	checkpointIndex uint64
	validationIndex uint64
	distributed     bool
	mutex           sync.RWMutex
}

func newSessionState() *SessionState {
	return &SessionState{}
}

// CheckpointIndex returns the index of the most recent checkpoint.
func (s *SessionState) CheckpointIndex() uint64 {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return s.checkpointIndex
}

// SetCheckpointIndex advances the checkpoint index. Indices strictly
// increase across successive saves within one session.
func (s *SessionState) SetCheckpointIndex(index uint64) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.checkpointIndex = index
}

// ValidationIndex returns the index of the most recent validation round.
func (s *SessionState) ValidationIndex() uint64 {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return s.validationIndex
}

// SetValidationIndex advances the validation round index.
func (s *SessionState) SetValidationIndex(index uint64) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.validationIndex = index
}

// Distributed reports whether the session has switched to partitioned work.
func (s *SessionState) Distributed() bool {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return s.distributed
}

// LatchDistributed marks the permanent switch to partitioned work. The
// transition is one-way; there is no way to unlatch.
func (s *SessionState) LatchDistributed() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.distributed = true
}
