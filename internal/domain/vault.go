package domain

import "time"

// VaultStatus — статус записи хранилища. Closed терминален.
type VaultStatus string

const (
	VaultActive VaultStatus = "ACTIVE"
	VaultFrozen VaultStatus = "FROZEN"
	VaultClosed VaultStatus = "CLOSED"
)

// AgentVault — корневая запись хранилища: кто владеет, кто агент, куда идет
// комиссия разработчика, плюс агрегированные счетчики расчетов. Счетчики
// меняются только проверяемой арифметикой и только при успешном расчете.
type AgentVault struct {
	ID             Address     `json:"id"`
	Owner          Address     `json:"owner"`
	Agent          Address     `json:"agent"` // ZeroAddress — агент не зарегистрирован
	FeeDestination Address     `json:"fee_destination"`
	VaultID        uint64      `json:"vault_id"` // Пользовательский номер для деривации адреса
	Status         VaultStatus `json:"status"`
	CreatedAt      time.Time   `json:"created_at"`

	TotalTransactions  uint64 `json:"total_transactions"`
	TotalVolume        uint64 `json:"total_volume"`
	OpenPositions      uint8  `json:"open_positions"`
	TotalFeesCollected uint64 `json:"total_fees_collected"`
}

func (v *AgentVault) IsActive() bool {
	return v.Status == VaultActive
}

func (v *AgentVault) HasAgent() bool {
	return !v.Agent.IsZero()
}

func (v *AgentVault) IsAgent(key Address) bool {
	return v.HasAgent() && v.Agent == key
}

func (v *AgentVault) IsOwner(key Address) bool {
	return v.Owner == key
}
