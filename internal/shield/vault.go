package shield

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/xela07ax/agent-shield-gateway/internal/domain"
	"github.com/xela07ax/agent-shield-gateway/internal/notifier"
	"go.uber.org/zap"
)

// Lifecycle-операции владельца. Это CRUD-слой вокруг ядра: его единственная
// связь с движками допуска/расчетов — чтение и запись сущностей хранилища.

// DeriveVaultAddress — детерминированный адрес записи хранилища.
// Повторное создание с той же парой (owner, vaultID) сталкивается по ключу.
func DeriveVaultAddress(owner domain.Address, vaultID uint64) domain.Address {
	h := sha256.Sum256([]byte(fmt.Sprintf("vault:%s:%d", owner, vaultID)))
	return domain.Address(hex.EncodeToString(h[:]))
}

// InitializeVaultRequest — параметры создания хранилища и стартовой политики.
type InitializeVaultRequest struct {
	Owner          domain.Address
	VaultID        uint64
	FeeDestination domain.Address

	DailySpendingCap       uint64
	MaxTransactionSize     uint64
	AllowedTokens          []domain.Address
	AllowedProtocols       []domain.Address
	MaxLeverageBps         uint16
	MaxConcurrentPositions uint8
	DeveloperFeeRate       uint16
}

// InitializeVault создает хранилище, политику и трекер одним переходом.
// Инварианты политики проверяются до того, как хоть что-то создано.
func (e *Engine) InitializeVault(ctx context.Context, req InitializeVaultRequest) (*domain.AgentVault, error) {
	if req.FeeDestination.IsZero() {
		return nil, domain.ErrInvalidFeeDestination
	}

	id := DeriveVaultAddress(req.Owner, req.VaultID)

	policy := domain.PolicyConfig{
		Vault:              id,
		DailySpendingCap:   req.DailySpendingCap,
		MaxTransactionSize: req.MaxTransactionSize,
		AllowedTokens:      append([]domain.Address(nil), req.AllowedTokens...),
		AllowedProtocols:   append([]domain.Address(nil), req.AllowedProtocols...),
		MaxLeverageBps:     req.MaxLeverageBps,
		// Новое хранилище по умолчанию может открывать позиции;
		// владелец ограничивает это обновлением политики
		CanOpenPositions:       true,
		MaxConcurrentPositions: req.MaxConcurrentPositions,
		DeveloperFeeRate:       req.DeveloperFeeRate,
	}
	if err := policy.Validate(); err != nil {
		return nil, err
	}

	vault := domain.AgentVault{
		ID:             id,
		Owner:          req.Owner,
		Agent:          domain.ZeroAddress,
		FeeDestination: req.FeeDestination,
		VaultID:        req.VaultID,
		Status:         domain.VaultActive,
		CreatedAt:      e.clock.Now(),
	}

	state := &VaultState{
		Vault:    vault,
		Policy:   policy,
		Tracker:  NewTracker(id),
		Balances: make(map[domain.Address]uint64),
	}
	if err := e.store.Create(state); err != nil {
		return nil, err
	}

	e.persistVault(ctx, &vault)
	e.persistPolicy(ctx, &policy)
	e.persistTracker(ctx, state.Tracker)

	e.emit(notifier.EventVaultCreated, id, domain.ZeroAddress, map[string]interface{}{
		"owner":    string(req.Owner),
		"vault_id": req.VaultID,
	})
	e.logger.Info("vault initialized",
		zap.String("vault", string(id)), zap.String("owner", string(req.Owner)))

	return &vault, nil
}

// RegisterAgent привязывает ключ агента. Один агент на хранилище; ключ не
// может быть пустым и не может совпадать с владельцем.
func (e *Engine) RegisterAgent(ctx context.Context, owner, vaultID, agent domain.Address) error {
	return e.store.Update(vaultID, func(state *VaultState) error {
		vault := &state.Vault

		if !vault.IsOwner(owner) {
			return domain.ErrUnauthorizedOwner
		}
		if vault.Status == domain.VaultClosed {
			return domain.ErrVaultClosed
		}
		if vault.HasAgent() {
			return domain.ErrAgentAlreadyRegistered
		}
		if agent.IsZero() {
			return domain.ErrInvalidAgentKey
		}
		if agent == vault.Owner {
			return domain.ErrAgentIsOwner
		}

		vault.Agent = agent
		e.persistVault(ctx, vault)
		e.emit(notifier.EventAgentRegistered, vaultID, agent, nil)
		return nil
	})
}

// RevokeAgent — kill switch: мгновенно замораживает хранилище и очищает ключ
// агента, чтобы скомпрометированный ключ нельзя было случайно реактивировать.
func (e *Engine) RevokeAgent(ctx context.Context, owner, vaultID domain.Address) error {
	return e.store.Update(vaultID, func(state *VaultState) error {
		vault := &state.Vault

		if !vault.IsOwner(owner) {
			return domain.ErrUnauthorizedOwner
		}
		if vault.Status == domain.VaultClosed {
			return domain.ErrVaultClosed
		}

		revoked := vault.Agent
		vault.Status = domain.VaultFrozen
		vault.Agent = domain.ZeroAddress

		e.persistVault(ctx, vault)
		e.emit(notifier.EventAgentRevoked, vaultID, revoked, nil)
		e.logger.Warn("kill switch engaged",
			zap.String("vault", string(vaultID)), zap.String("agent", string(revoked)))
		return nil
	})
}

// ReactivateVault размораживает хранилище, опционально ротируя ключ агента.
func (e *Engine) ReactivateVault(ctx context.Context, owner, vaultID domain.Address, newAgent *domain.Address) error {
	return e.store.Update(vaultID, func(state *VaultState) error {
		vault := &state.Vault

		if !vault.IsOwner(owner) {
			return domain.ErrUnauthorizedOwner
		}
		if vault.Status != domain.VaultFrozen {
			return domain.ErrVaultNotFrozen
		}

		if newAgent != nil {
			if newAgent.IsZero() {
				return domain.ErrInvalidAgentKey
			}
			if *newAgent == vault.Owner {
				return domain.ErrAgentIsOwner
			}
		}

		vault.Status = domain.VaultActive
		if newAgent != nil {
			vault.Agent = *newAgent
		}

		e.persistVault(ctx, vault)
		payload := map[string]interface{}{}
		if newAgent != nil {
			payload["new_agent"] = string(*newAgent)
		}
		e.emit(notifier.EventVaultReactivated, vaultID, vault.Agent, payload)
		return nil
	})
}

// UpdatePolicy применяет частичное обновление атомарно: нарушение любого
// инварианта оставляет прежнюю политику нетронутой целиком.
func (e *Engine) UpdatePolicy(ctx context.Context, owner, vaultID domain.Address, update domain.PolicyUpdate) (*domain.PolicyConfig, error) {
	var updated domain.PolicyConfig

	err := e.store.Update(vaultID, func(state *VaultState) error {
		if !state.Vault.IsOwner(owner) {
			return domain.ErrUnauthorizedOwner
		}
		if state.Vault.Status == domain.VaultClosed {
			return domain.ErrVaultClosed
		}

		next, err := update.Apply(state.Policy)
		if err != nil {
			return err
		}
		state.Policy = next
		updated = next

		e.persistPolicy(ctx, &state.Policy)
		e.emit(notifier.EventPolicyUpdated, vaultID, state.Vault.Agent, map[string]interface{}{
			"daily_cap":          next.DailySpendingCap,
			"max_tx_size":        next.MaxTransactionSize,
			"allowed_tokens":     len(next.AllowedTokens),
			"allowed_protocols":  len(next.AllowedProtocols),
			"max_leverage_bps":   next.MaxLeverageBps,
			"developer_fee_rate": next.DeveloperFeeRate,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// Deposit зачисляет средства владельца на кастодиальный остаток хранилища.
func (e *Engine) Deposit(ctx context.Context, owner, vaultID, token domain.Address, amount uint64) error {
	return e.store.Update(vaultID, func(state *VaultState) error {
		if !state.Vault.IsOwner(owner) {
			return domain.ErrUnauthorizedOwner
		}
		if state.Vault.Status == domain.VaultClosed {
			return domain.ErrVaultClosed
		}

		if err := creditVault(state, token, amount); err != nil {
			return err
		}

		e.persistBalances(ctx, vaultID, state.Balances)
		e.emit(notifier.EventFundsDeposited, vaultID, domain.ZeroAddress, map[string]interface{}{
			"token":  string(token),
			"amount": amount,
		})
		return nil
	})
}

// Withdraw возвращает средства владельцу. Работает в любом статусе, кроме
// Closed: владелец должен мочь забрать средства даже из замороженного
// хранилища.
func (e *Engine) Withdraw(ctx context.Context, owner, vaultID, token domain.Address, amount uint64) error {
	return e.store.Update(vaultID, func(state *VaultState) error {
		if !state.Vault.IsOwner(owner) {
			return domain.ErrUnauthorizedOwner
		}
		if state.Vault.Status == domain.VaultClosed {
			return domain.ErrVaultClosed
		}

		if err := debitVault(state, token, amount); err != nil {
			return err
		}
		if err := e.accounts.Credit(owner, token, amount); err != nil {
			// Возвращаем списание: счет владельца переполнен
			state.Balances[token] += amount
			return err
		}

		e.persistBalances(ctx, vaultID, state.Balances)
		e.emit(notifier.EventFundsWithdrawn, vaultID, domain.ZeroAddress, map[string]interface{}{
			"token":       string(token),
			"amount":      amount,
			"destination": string(owner),
		})
		return nil
	})
}

// CloseVault закрывает хранилище: требует нулевых открытых позиций,
// выметает остатки владельцу и переводит запись в Closed.
func (e *Engine) CloseVault(ctx context.Context, owner, vaultID domain.Address) error {
	return e.store.Update(vaultID, func(state *VaultState) error {
		vault := &state.Vault

		if !vault.IsOwner(owner) {
			return domain.ErrUnauthorizedOwner
		}
		if vault.Status == domain.VaultClosed {
			return domain.ErrVaultClosed
		}
		if vault.OpenPositions > 0 {
			return domain.ErrOpenPositionsExist
		}

		// Проверяем, что все остатки влезают на счета владельца, до мутаций
		for token, amount := range state.Balances {
			if _, err := checkedAdd(e.accounts.Balance(owner, token), amount); err != nil {
				return err
			}
		}
		for token, amount := range state.Balances {
			_ = e.accounts.Credit(owner, token, amount)
			delete(state.Balances, token)
		}

		vault.Status = domain.VaultClosed
		vault.Agent = domain.ZeroAddress

		e.persistVault(ctx, vault)
		e.persistBalances(ctx, vaultID, state.Balances)
		e.emit(notifier.EventVaultClosed, vaultID, domain.ZeroAddress, map[string]interface{}{
			"owner": string(owner),
		})
		return nil
	})
}

// GetVault — снимок записи хранилища.
func (e *Engine) GetVault(vaultID domain.Address) (*domain.AgentVault, error) {
	var v domain.AgentVault
	err := e.store.View(vaultID, func(state *VaultState) error {
		v = state.Vault
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// GetPolicy — снимок политики хранилища.
func (e *Engine) GetPolicy(vaultID domain.Address) (*domain.PolicyConfig, error) {
	var p domain.PolicyConfig
	err := e.store.View(vaultID, func(state *VaultState) error {
		p = state.Policy
		p.AllowedTokens = append([]domain.Address(nil), state.Policy.AllowedTokens...)
		p.AllowedProtocols = append([]domain.Address(nil), state.Policy.AllowedProtocols...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetAuditRing — аудит-кольцо хранилища, от старых записей к новым.
func (e *Engine) GetAuditRing(vaultID domain.Address) ([]domain.TransactionRecord, error) {
	var records []domain.TransactionRecord
	err := e.store.View(vaultID, func(state *VaultState) error {
		records = append([]domain.TransactionRecord(nil), state.Tracker.RecentTransactions...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// GetBalance — кастодиальный остаток хранилища по токену.
func (e *Engine) GetBalance(vaultID, token domain.Address) (uint64, error) {
	var balance uint64
	err := e.store.View(vaultID, func(state *VaultState) error {
		balance = state.Balances[token]
		return nil
	})
	return balance, err
}
