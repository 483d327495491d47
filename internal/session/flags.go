package session

import (
	"time"

	"github.com/patrickmn/go-cache"
)

const (
	FlagVisitorLogged = "visitor_logged"
	blockedPrefix     = "blocked:"

	// FlagDenied marks a session whose latest access check was a block
	FlagDenied = "denied"
)

// BlockedFlag is the flag recording that a block with reason was logged.
func BlockedFlag(reason string) string {
	return blockedPrefix + reason
}

// Flags is a session-scoped set of markers used to deduplicate log writes.
type Flags interface {
	// MarkOnce sets the flag and reports whether this call set it. Concurrent
	// callers for the same session and flag see exactly one true.
	MarkOnce(sessionID, flag string) bool
	Set(sessionID, flag string)
	IsSet(sessionID, flag string) bool
	Release(sessionID, flag string)
}

// Store keeps flags in memory until the session TTL passes.
type Store struct {
	cache *cache.Cache
	ttl   time.Duration
}

func NewStore(ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &Store{
		cache: cache.New(ttl, ttl/2),
		ttl:   ttl,
	}
}

func key(sessionID, flag string) string {
	return sessionID + "\x00" + flag
}

func (s *Store) MarkOnce(sessionID, flag string) bool {
	return s.cache.Add(key(sessionID, flag), struct{}{}, s.ttl) == nil
}

// Set marks the flag and restarts its TTL.
func (s *Store) Set(sessionID, flag string) {
	s.cache.Set(key(sessionID, flag), struct{}{}, s.ttl)
}

func (s *Store) IsSet(sessionID, flag string) bool {
	_, ok := s.cache.Get(key(sessionID, flag))
	return ok
}

func (s *Store) Release(sessionID, flag string) {
	s.cache.Delete(key(sessionID, flag))
}

// Len returns the number of live flags.
func (s *Store) Len() int {
	return s.cache.ItemCount()
}
