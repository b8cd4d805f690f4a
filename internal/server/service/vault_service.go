package service

import (
	"context"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xela07ax/agent-shield-gateway/internal/domain"
	"github.com/xela07ax/agent-shield-gateway/internal/infra"
	"github.com/xela07ax/agent-shield-gateway/internal/shield"
)

// VaultService — прикладной слой над ядром: lifecycle-операции плюс
// распределенные сигналы (freeze set, уведомления об изменении политики).
// Сам допуск и расчет сессий идут в ядро напрямую, без этого слоя.
type VaultService struct {
	engine *shield.Engine
	freeze *shield.FreezeManager // nil в single-instance конфигурации
	rdb    *redis.Client         // nil — без межинстансных уведомлений
	logger *zap.Logger
}

func NewVaultService(engine *shield.Engine, freeze *shield.FreezeManager, rdb *redis.Client, logger *zap.Logger) *VaultService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VaultService{
		engine: engine,
		freeze: freeze,
		rdb:    rdb,
		logger: logger.With(zap.String("mod", "vault-service")),
	}
}

func (s *VaultService) Initialize(ctx context.Context, req shield.InitializeVaultRequest) (*domain.AgentVault, error) {
	return s.engine.InitializeVault(ctx, req)
}

func (s *VaultService) Get(vaultID domain.Address) (*domain.AgentVault, error) {
	return s.engine.GetVault(vaultID)
}

func (s *VaultService) RegisterAgent(ctx context.Context, owner, vaultID, agent domain.Address) error {
	return s.engine.RegisterAgent(ctx, owner, vaultID, agent)
}

// RevokeAgent — kill switch. Сначала фиксируем переход в ядре, затем
// разносим сигнал по инстансам: если Redis недоступен, локальный инстанс
// все равно заморожен через статус записи.
func (s *VaultService) RevokeAgent(ctx context.Context, owner, vaultID domain.Address) error {
	if err := s.engine.RevokeAgent(ctx, owner, vaultID); err != nil {
		return err
	}
	if s.freeze != nil {
		s.freeze.Freeze(ctx, vaultID)
	}
	return nil
}

func (s *VaultService) Reactivate(ctx context.Context, owner, vaultID domain.Address, newAgent *domain.Address) error {
	if err := s.engine.ReactivateVault(ctx, owner, vaultID, newAgent); err != nil {
		return err
	}
	if s.freeze != nil {
		s.freeze.Unfreeze(ctx, vaultID)
	}
	return nil
}

func (s *VaultService) GetPolicy(vaultID domain.Address) (*domain.PolicyConfig, error) {
	return s.engine.GetPolicy(vaultID)
}

func (s *VaultService) UpdatePolicy(ctx context.Context, owner, vaultID domain.Address, update domain.PolicyUpdate) (*domain.PolicyConfig, error) {
	policy, err := s.engine.UpdatePolicy(ctx, owner, vaultID, update)
	if err != nil {
		return nil, err
	}

	// Уведомляем остальные инстансы: их in-memory политика устарела
	if s.rdb != nil {
		if err := s.rdb.Publish(ctx, infra.RedisChanPolicyUpdate, string(vaultID)+":on").Err(); err != nil {
			s.logger.Error("failed to broadcast policy update",
				zap.String("vault", string(vaultID)), zap.Error(err))
		}
	}
	return policy, nil
}

func (s *VaultService) Deposit(ctx context.Context, owner, vaultID, token domain.Address, amount uint64) error {
	return s.engine.Deposit(ctx, owner, vaultID, token, amount)
}

func (s *VaultService) Withdraw(ctx context.Context, owner, vaultID, token domain.Address, amount uint64) error {
	return s.engine.Withdraw(ctx, owner, vaultID, token, amount)
}

func (s *VaultService) Close(ctx context.Context, owner, vaultID domain.Address) error {
	return s.engine.CloseVault(ctx, owner, vaultID)
}

func (s *VaultService) AuditRing(vaultID domain.Address) ([]domain.TransactionRecord, error) {
	return s.engine.GetAuditRing(vaultID)
}

func (s *VaultService) Balance(vaultID, token domain.Address) (uint64, error) {
	return s.engine.GetBalance(vaultID, token)
}
