// Package session holds the process-scoped session state: the bearer token,
// the active chat id, the resolved user and the chat id resolver.
package session

import (
	"sort"
	"sync"
)

// Storage keys
const (
	KeyToken        = "jarvis_token"
	KeyActiveChatID = "active_chat_id"
)

// Event describes one write to the Store. Cleared is set for Clear, in which
// case Key is empty.
type Event struct {
	Key      string
	Value    string
	Previous string
	Deleted  bool
	Cleared  bool
}

// Listener receives store events
type Listener func(Event)

// Store is an in-memory key/value store scoped to one process run. It is
// never written to disk. Every write emits an Event to the subscribers, in
// subscription order, after the write is visible to readers.
type Store struct {
	mu        sync.RWMutex
	values    map[string]string
	listeners map[int]Listener
	nextID    int
}

// NewStore creates an empty Store
func NewStore() *Store {
	return &Store{
		values:    make(map[string]string),
		listeners: make(map[int]Listener),
	}
}

// Get returns the value for key and whether it is set
func (s *Store) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

// Set writes key. An empty value is stored as is; use Delete to remove.
func (s *Store) Set(key, value string) {
	s.mu.Lock()
	prev := s.values[key]
	s.values[key] = value
	s.mu.Unlock()

	s.emit(Event{Key: key, Value: value, Previous: prev})
}

// Delete removes key. Deleting a missing key still emits an event.
func (s *Store) Delete(key string) {
	s.mu.Lock()
	prev := s.values[key]
	delete(s.values, key)
	s.mu.Unlock()

	s.emit(Event{Key: key, Previous: prev, Deleted: true})
}

// Clear removes every key
func (s *Store) Clear() {
	s.mu.Lock()
	s.values = make(map[string]string)
	s.mu.Unlock()

	s.emit(Event{Cleared: true})
}

// Subscribe registers fn for every subsequent write and returns a function
// that removes it.
func (s *Store) Subscribe(fn Listener) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
		})
	}
}

func (s *Store) emit(ev Event) {
	s.mu.RLock()
	ids := make([]int, 0, len(s.listeners))
	for id := range s.listeners {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]Listener, 0, len(ids))
	for _, id := range ids {
		fns = append(fns, s.listeners[id])
	}
	s.mu.RUnlock()

	for _, fn := range fns {
		fn(ev)
	}
}

// Token returns the bearer token, or "" for a guest
func (s *Store) Token() string {
	v, _ := s.Get(KeyToken)
	return v
}

// SetToken stores the bearer token. Switching to a different token drops the
// active chat id since chats belong to one account.
func (s *Store) SetToken(token string) {
	if token == "" {
		s.Logout()
		return
	}
	prev := s.Token()
	s.Set(KeyToken, token)
	if prev != token {
		if _, ok := s.Get(KeyActiveChatID); ok {
			s.Delete(KeyActiveChatID)
		}
	}
}

// ActiveChatID returns the cached chat id, or ""
func (s *Store) ActiveChatID() string {
	v, _ := s.Get(KeyActiveChatID)
	return v
}

// SetActiveChatID caches the chat id; "" removes it
func (s *Store) SetActiveChatID(id string) {
	if id == "" {
		s.Delete(KeyActiveChatID)
		return
	}
	s.Set(KeyActiveChatID, id)
}

// Logout removes the token and the active chat id
func (s *Store) Logout() {
	s.Delete(KeyToken)
	s.Delete(KeyActiveChatID)
}
