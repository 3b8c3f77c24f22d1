package store

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"xflow.dev/assistant/internal/metrics"
)

// ErrBusy is returned by Session.Begin when the same action is already in
// flight for the session.
var ErrBusy = errors.New("action already in progress")

// Session is the server-side half of one page load.
type Session struct {
	ID    string
	Store *RedactingStore

	mu       sync.Mutex
	inFlight map[string]bool
}

// Begin marks action as pending and returns the func that releases it.
func (s *Session) Begin(action string) (func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight[action] {
		return nil, ErrBusy
	}
	s.inFlight[action] = true
	return func() {
		s.mu.Lock()
		delete(s.inFlight, action)
		s.mu.Unlock()
	}, nil
}

// Sessions keeps every live page session in memory with a sliding TTL.
type Sessions struct {
	cache  *cache.Cache
	ttl    time.Duration
	logger *zap.SugaredLogger
}

func NewSessions(ttl time.Duration, logger *zap.SugaredLogger) *Sessions {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	cleanup := ttl / 4
	if cleanup < time.Minute {
		cleanup = time.Minute
	}
	c := cache.New(ttl, cleanup)
	c.OnEvicted(func(id string, v any) {
		if sess, ok := v.(*Session); ok {
			sess.Store.Clear()
		}
		metrics.ActiveSessions.Set(float64(c.ItemCount()))
		logger.Debugf("Session %s evicted", id)
	})
	return &Sessions{cache: c, ttl: ttl, logger: logger}
}

func (s *Sessions) TTL() time.Duration { return s.ttl }

func (s *Sessions) Create() *Session {
	sess := &Session{
		ID:       uuid.NewString(),
		Store:    NewRedactingStore(s.logger),
		inFlight: make(map[string]bool),
	}
	s.cache.Set(sess.ID, sess, cache.DefaultExpiration)
	metrics.ActiveSessions.Set(float64(s.cache.ItemCount()))
	s.logger.Debugf("Session %s created", sess.ID)
	return sess
}

// Get returns the live session and pushes its expiry forward.
func (s *Sessions) Get(id string) (*Session, bool) {
	v, found := s.cache.Get(id)
	if !found {
		return nil, false
	}
	sess := v.(*Session)
	// Replace fails when End won the race; the session is gone then.
	if err := s.cache.Replace(id, sess, cache.DefaultExpiration); err != nil {
		return nil, false
	}
	return sess, true
}

// End removes the session and wipes its store. Unknown ids are ignored.
func (s *Sessions) End(id string) {
	// Delete fires OnEvicted, which clears the store.
	s.cache.Delete(id)
}

func (s *Sessions) Count() int {
	return s.cache.ItemCount()
}
