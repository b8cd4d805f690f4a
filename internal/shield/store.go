package shield

import (
	"sync"

	"github.com/xela07ax/agent-shield-gateway/internal/domain"
)

// VaultState — полный набор долгоживущих записей одного хранилища.
// Владеет ими идентичность хранилища на весь срок его жизни.
type VaultState struct {
	Vault    domain.AgentVault
	Policy   domain.PolicyConfig
	Tracker  *Tracker
	Balances map[domain.Address]uint64 // Кастодиальные остатки по токенам
}

// Store — in-memory хранилище состояний с блокировкой на запись per-vault.
// Это и есть гарантия "один логический писатель на запись": каждый вызов
// допуска или расчета выполняется целиком под замком своего хранилища,
// чужих частично примененных мутаций движок не наблюдает.
type Store struct {
	mu      sync.RWMutex
	records map[domain.Address]*vaultRecord
}

type vaultRecord struct {
	mu    sync.Mutex
	state *VaultState
}

func NewStore() *Store {
	return &Store{records: make(map[domain.Address]*vaultRecord)}
}

// Create — compare-and-insert новой записи хранилища.
func (s *Store) Create(state *VaultState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[state.Vault.ID]; exists {
		return domain.ErrVaultExists
	}
	s.records[state.Vault.ID] = &vaultRecord{state: state}
	return nil
}

// Load — холодная загрузка состояний при старте (из Postgres).
func (s *Store) Load(states []*VaultState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, st := range states {
		s.records[st.Vault.ID] = &vaultRecord{state: st}
	}
}

func (s *Store) get(id domain.Address) (*vaultRecord, error) {
	s.mu.RLock()
	rec, ok := s.records[id]
	s.mu.RUnlock()
	if !ok {
		return nil, domain.ErrVaultNotFound
	}
	return rec, nil
}

// Update исполняет fn под эксклюзивным замком записи. fn обязана соблюдать
// дисциплину "сначала все проверки, потом все мутации": ошибка после мутаций
// не откатывается автоматически.
func (s *Store) Update(id domain.Address, fn func(*VaultState) error) error {
	rec, err := s.get(id)
	if err != nil {
		return err
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	return fn(rec.state)
}

// View — то же, что Update; отдельное имя документирует намерение "только чтение".
// Замок эксклюзивный сознательно: даже пути чтения скользящего окна мутируют
// состояние (prune).
func (s *Store) View(id domain.Address, fn func(*VaultState) error) error {
	return s.Update(id, fn)
}

// IDs возвращает адреса всех загруженных хранилищ.
func (s *Store) IDs() []domain.Address {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]domain.Address, 0, len(s.records))
	for id := range s.records {
		ids = append(ids, id)
	}
	return ids
}
