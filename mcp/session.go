package mcp

import (
	"fmt"
	"sync"
)

// IngredientRef locates a library entry shown to the agent.
type IngredientRef struct {
	UserID       string
	IngredientID string
}

// Session hands out short references (I1, I2, ...) for library entries
// listed during one MCP session, so an agent can name an entry without
// copying its ID. The counter is global across users.
type Session struct {
	mu      sync.Mutex
	refs    map[string]IngredientRef // I1 -> entry
	reverse map[string]string        // "userID:ingredientID" -> I1
	counter int
}

// NewSession creates an empty session.
func NewSession() *Session {
	return &Session{
		refs:    make(map[string]IngredientRef),
		reverse: make(map[string]string),
	}
}

// Track returns the session reference for an entry, assigning the next
// one on first sight.
func (s *Session) Track(userID, ingredientID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := reverseKey(userID, ingredientID)
	if ref, ok := s.reverse[key]; ok {
		return ref
	}

	s.counter++
	ref := fmt.Sprintf("I%d", s.counter)
	s.refs[ref] = IngredientRef{UserID: userID, IngredientID: ingredientID}
	s.reverse[key] = ref
	return ref
}

// Resolve converts a session reference to the entry it names.
func (s *Session) Resolve(ref string) (IngredientRef, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.refs[ref]
	return r, ok
}

// Forget drops a reference once its entry is gone. Numbering is not reused.
func (s *Session) Forget(ref string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r, ok := s.refs[ref]; ok {
		delete(s.reverse, reverseKey(r.UserID, r.IngredientID))
		delete(s.refs, ref)
	}
}

// Len returns the number of live references.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.refs)
}

func reverseKey(userID, ingredientID string) string {
	return userID + ":" + ingredientID
}
