package server

import "sync"

// Session is the ephemeral state attached to one live connection.
type Session struct {
	UserID      string
	UserEmail   string
	DisplayName string
	GameID      string
}

// SessionPatch is a partial session write. Nil fields are left untouched.
// A GameID pointing at "" clears the room.
type SessionPatch struct {
	UserID      *string
	UserEmail   *string
	DisplayName *string
	GameID      *string
}

type sessionEntry struct {
	mu      sync.Mutex
	session Session
}

// SessionStore maps connection ids to sessions. Writes to one connection are
// serialized by that entry's lock; distinct connections only share the
// index lock for lookups.
type SessionStore struct {
	mu      sync.RWMutex
	entries map[string]*sessionEntry
}

func NewSessionStore() *SessionStore {
	return &SessionStore{entries: make(map[string]*sessionEntry)}
}

// Get returns a copy of the session, or the zero Session when absent.
func (s *SessionStore) Get(connID string) Session {
	s.mu.RLock()
	entry, ok := s.entries[connID]
	s.mu.RUnlock()
	if !ok {
		return Session{}
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return entry.session
}

// Merge creates the session if needed and applies patch field by field.
func (s *SessionStore) Merge(connID string, patch SessionPatch) Session {
	entry := s.entry(connID)
	entry.mu.Lock()
	defer entry.mu.Unlock()
	if patch.UserID != nil {
		entry.session.UserID = *patch.UserID
	}
	if patch.UserEmail != nil {
		entry.session.UserEmail = *patch.UserEmail
	}
	if patch.DisplayName != nil {
		entry.session.DisplayName = *patch.DisplayName
	}
	if patch.GameID != nil {
		entry.session.GameID = *patch.GameID
	}
	return entry.session
}

func (s *SessionStore) Remove(connID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, connID)
}

func (s *SessionStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *SessionStore) entry(connID string) *sessionEntry {
	s.mu.RLock()
	entry, ok := s.entries[connID]
	s.mu.RUnlock()
	if ok {
		return entry
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry, ok := s.entries[connID]; ok {
		return entry
	}
	entry = &sessionEntry{}
	s.entries[connID] = entry
	return entry
}

func strPtr(value string) *string {
	return &value
}
