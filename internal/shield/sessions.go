package shield

import (
	"sync"

	"github.com/xela07ax/agent-shield-gateway/internal/domain"
)

type sessionKey struct {
	Vault domain.Address
	Agent domain.Address
}

// SessionStore — arena одноразовых capability, ключ (vault, agent).
// Создание — строго compare-and-insert: коллизия по ключу означает, что
// у агента уже есть живая (или не прибранная) сессия, и вторая не выдается.
// Потребление удаляет запись, поэтому повторный расчет той же сессии
// невозможен — записи больше не существует.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[sessionKey]domain.SessionAuthority
}

func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[sessionKey]domain.SessionAuthority)}
}

// Put вставляет сессию, если слот свободен (compare-and-insert, не слепая запись).
func (s *SessionStore) Put(sess domain.SessionAuthority) error {
	key := sessionKey{Vault: sess.Vault, Agent: sess.Agent}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[key]; exists {
		return domain.ErrSessionExists
	}
	s.sessions[key] = sess
	return nil
}

func (s *SessionStore) Get(vault, agent domain.Address) (domain.SessionAuthority, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[sessionKey{Vault: vault, Agent: agent}]
	return sess, ok
}

func (s *SessionStore) Exists(vault, agent domain.Address) bool {
	_, ok := s.Get(vault, agent)
	return ok
}

func (s *SessionStore) Delete(vault, agent domain.Address) {
	s.mu.Lock()
	delete(s.sessions, sessionKey{Vault: vault, Agent: agent})
	s.mu.Unlock()
}

// Len — число живых сессий (для метрик).
func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
