package notifier

import (
	"time"

	"github.com/xela07ax/agent-shield-gateway/internal/domain"
)

// EventType — типы переходов состояния, о которых шлюз уведомляет внешний мир.
type EventType string

const (
	EventVaultCreated     EventType = "VAULT_CREATED"
	EventFundsDeposited   EventType = "FUNDS_DEPOSITED"
	EventFundsWithdrawn   EventType = "FUNDS_WITHDRAWN"
	EventAgentRegistered  EventType = "AGENT_REGISTERED"
	EventAgentRevoked     EventType = "AGENT_REVOKED"
	EventVaultReactivated EventType = "VAULT_REACTIVATED"
	EventVaultClosed      EventType = "VAULT_CLOSED"
	EventPolicyUpdated    EventType = "POLICY_UPDATED"
	EventActionAuthorized EventType = "ACTION_AUTHORIZED"
	EventActionDenied     EventType = "ACTION_DENIED"
	EventSessionFinalized EventType = "SESSION_FINALIZED"
	EventFeesCollected    EventType = "FEES_COLLECTED"
)

// Event — структурированная запись перехода. Чисто наблюдательная: ядро
// не зависит от успеха доставки.
type Event struct {
	Type      EventType              `json:"type"`
	Vault     domain.Address         `json:"vault"`
	Agent     domain.Address         `json:"agent,omitempty"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// Emitter — контракт коллаборатора уведомлений.
type Emitter interface {
	Emit(event Event)
}

// Noop — заглушка для тестов и конфигураций без вебхука.
type Noop struct{}

func (Noop) Emit(Event) {}
