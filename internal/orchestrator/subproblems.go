package orchestrator

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

type subProblemEntry struct {
	definition SubRoutine
	problem    AnyProblem
}

// SubProblemRef links a declared sub-routine of the current solver to the
// ids of the problems created for it.
type SubProblemRef struct {
	Definition SubRoutine
	ProblemIDs []uuid.UUID
}

// subProblems holds one child problem per sub-routine declared by a
// problem's current solver. It is the Resolver handed to that solver.
type subProblems struct {
	mu      sync.RWMutex
	entries []subProblemEntry
}

// rebuild replaces all entries with fresh children for defs. Duplicate
// definitions share one child.
func (s *subProblems) rebuild(defs []SubRoutine) (removed, added []subProblemEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed = s.entries
	s.entries = nil
	for _, def := range defs {
		if def == nil || s.indexLocked(def) >= 0 {
			continue
		}
		s.entries = append(s.entries, subProblemEntry{definition: def, problem: def.newProblem()})
	}
	added = append([]subProblemEntry(nil), s.entries...)
	return removed, added
}

func (s *subProblems) indexLocked(def SubRoutine) int {
	for i, e := range s.entries {
		if e.definition == def {
			return i
		}
	}
	return -1
}

func (s *subProblems) subProblem(def SubRoutine) (AnyProblem, error) {
	if def == nil {
		return nil, fmt.Errorf("resolve sub-routine: %w", ErrUnknownSubRoutine)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.indexLocked(def); i >= 0 {
		return s.entries[i].problem, nil
	}
	return nil, fmt.Errorf("resolve %q (%s): %w", def.Description(), def.Type().ID(), ErrUnknownSubRoutine)
}

func (s *subProblems) problems() []AnyProblem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]AnyProblem, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e.problem)
	}
	return out
}

func (s *subProblems) problemsFor(def SubRoutine) []AnyProblem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.indexLocked(def); i >= 0 {
		return []AnyProblem{s.entries[i].problem}
	}
	return nil
}

func (s *subProblems) refs() []SubProblemRef {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]SubProblemRef, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, SubProblemRef{
			Definition: e.definition,
			ProblemIDs: []uuid.UUID{e.problem.ID()},
		})
	}
	return out
}
