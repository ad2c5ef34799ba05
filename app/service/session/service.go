package session

import (
	"errors"
	"sync"
	"time"

	"coldcall/app/service/call"

	"github.com/google/uuid"
	"github.com/samber/do"
)

var ErrNotFound = errors.New("session not found")

// Service is the explicit session registry. Transport layers hand out and
// resolve sessions through it instead of ambient package-level maps; aliases
// let telephony identifiers (call SID, stream SID) route back to a session.
type Service struct {
	mu      sync.RWMutex
	byID    map[string]*call.Session
	byAlias map[string]string
}

func New(_ *do.Injector) (*Service, error) {
	return &Service{
		byID:    make(map[string]*call.Session),
		byAlias: make(map[string]string),
	}, nil
}

func (s *Service) Create(lead call.Lead, slots []call.TimeSlot) *call.Session {
	sess := &call.Session{
		ID:             uuid.NewString(),
		Lead:           lead,
		Stage:          call.StageIntro,
		History:        []call.ConversationTurn{},
		AvailableSlots: slots,
		StartTime:      time.Now(),
	}

	s.mu.Lock()
	s.byID[sess.ID] = sess
	s.mu.Unlock()

	return sess
}

func (s *Service) Get(id string) (*call.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}

	return sess, nil
}

// Bind associates an external identifier with a session.
func (s *Service) Bind(alias, sessionID string) {
	s.mu.Lock()
	s.byAlias[alias] = sessionID
	s.mu.Unlock()
}

// Resolve looks a session up by a bound external identifier.
func (s *Service) Resolve(alias string) (*call.Session, error) {
	s.mu.RLock()
	id, ok := s.byAlias[alias]
	s.mu.RUnlock()

	if !ok {
		return nil, ErrNotFound
	}

	return s.Get(id)
}

func (s *Service) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.byID, id)

	for alias, sessID := range s.byAlias {
		if sessID == id {
			delete(s.byAlias, alias)
		}
	}
}
