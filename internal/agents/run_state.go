package agents

import (
	"sync"

	"deckforge/internal/domain/research"
)

// runState is everything one research run accumulates. Each run gets its
// own value; nothing here is shared between requests.
type runState struct {
	runID  string
	ledger *research.SourceLedger

	mu             sync.Mutex
	lookups        int
	lookupFailures int
	lastFailure    string
	refused        bool
	refusalReason  string
}

func newRunState(runID string) *runState {
	return &runState{runID: runID, ledger: research.NewSourceLedger()}
}

func (s *runState) recordLookup(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lookups++
	if err != nil {
		s.lookupFailures++
		s.lastFailure = err.Error()
	}
}

// allLookupsFailed reports a tool outage: lookups were attempted and none
// succeeded.
func (s *runState) allLookupsFailed() (bool, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lookups > 0 && s.lookupFailures == s.lookups, s.lastFailure
}

func (s *runState) refuse(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refused = true
	if s.refusalReason == "" {
		s.refusalReason = reason
	}
}

func (s *runState) refusal() (bool, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refused, s.refusalReason
}

func (s *runState) isRefused() bool {
	refused, _ := s.refusal()
	return refused
}

func (s *runState) counts() (lookups, failures int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lookups, s.lookupFailures
}
