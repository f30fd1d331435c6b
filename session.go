package stride

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
)

// Session assigns short references (R1, R2, ...) to the recommendations
// surfaced to one caller, so feedback can name them without the full id.
type Session struct {
	mu      sync.Mutex
	recs    map[string]string // session ref -> recommendation ID
	reverse map[string]string // recommendation ID -> session ref
	counter int
}

var sessionRefPattern = regexp.MustCompile(`^[Rr][0-9]+$`)

// IsSessionRef reports whether s has the shape of a session reference.
func IsSessionRef(s string) bool {
	return sessionRefPattern.MatchString(s)
}

// NewSession creates an empty session.
func NewSession() *Session {
	return &Session{
		recs:    make(map[string]string),
		reverse: make(map[string]string),
	}
}

// Track returns the session reference of a recommendation, assigning the
// next one on first sight.
func (s *Session) Track(id string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ref, ok := s.reverse[id]; ok {
		return ref
	}

	s.counter++
	ref := fmt.Sprintf("R%d", s.counter)
	s.recs[ref] = id
	s.reverse[id] = ref
	return ref
}

// Resolve converts a session reference to a recommendation ID. References
// are case-insensitive.
func (s *Session) Resolve(ref string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.recs[strings.ToUpper(ref)]
	return id, ok
}

// ResolveByID gets the session reference for a recommendation ID.
func (s *Session) ResolveByID(id string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ref, ok := s.reverse[id]
	return ref, ok
}

// All returns every tracked reference.
func (s *Session) All() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make(map[string]string, len(s.recs))
	for ref, id := range s.recs {
		result[ref] = id
	}
	return result
}

// Count returns the number of tracked recommendations.
func (s *Session) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.recs)
}

// Clear forgets every reference and restarts numbering at R1.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.recs = make(map[string]string)
	s.reverse = make(map[string]string)
	s.counter = 0
}

// FuzzyMatch resolves ref to a tracked recommendation. It accepts a session
// reference, a recommendation ID, or a case-insensitive fragment of the
// title returned by titleLookup.
func (s *Session) FuzzyMatch(ref string, titleLookup func(id string) string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.recs[strings.ToUpper(ref)]; ok {
		return id, true
	}

	if _, ok := s.reverse[ref]; ok {
		return ref, true
	}

	needle := strings.ToLower(strings.TrimSpace(ref))
	if needle == "" || titleLookup == nil {
		return "", false
	}
	for i := 1; i <= s.counter; i++ {
		id, ok := s.recs[fmt.Sprintf("R%d", i)]
		if !ok {
			continue
		}
		if strings.Contains(strings.ToLower(titleLookup(id)), needle) {
			return id, true
		}
	}
	return "", false
}
