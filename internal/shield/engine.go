package shield

import (
	"context"

	"github.com/xela07ax/agent-shield-gateway/internal/audit"
	"github.com/xela07ax/agent-shield-gateway/internal/domain"
	"github.com/xela07ax/agent-shield-gateway/internal/notifier"
	"go.uber.org/zap"
)

// Persister — write-through в долговременное хранилище. Вызывается ПОСЛЕ
// фиксации in-memory перехода; ошибка записи логируется, но переход не
// откатывает (механика персистентности — забота коллаборатора, не ядра).
type Persister interface {
	SaveVault(ctx context.Context, v *domain.AgentVault) error
	SavePolicy(ctx context.Context, p *domain.PolicyConfig) error
	SaveTracker(ctx context.Context, t *Tracker) error
	SaveBalances(ctx context.Context, vault domain.Address, balances map[domain.Address]uint64) error
}

type noopPersister struct{}

func (noopPersister) SaveVault(context.Context, *domain.AgentVault) error    { return nil }
func (noopPersister) SavePolicy(context.Context, *domain.PolicyConfig) error { return nil }
func (noopPersister) SaveTracker(context.Context, *Tracker) error            { return nil }
func (noopPersister) SaveBalances(context.Context, domain.Address, map[domain.Address]uint64) error {
	return nil
}

// Engine — ядро авторизации и учета: движок допуска (ValidateAndAuthorize),
// движок расчетов (FinalizeSession) и lifecycle-операции владельца.
// Каждый вызов — одна атомарная последовательная смена состояния под замком
// своего хранилища.
type Engine struct {
	store    *Store
	sessions *SessionStore
	accounts *Ledger
	freeze   *FreezeManager // nil допустим (single-instance без Redis)
	clock    Clock
	metrics  *Metrics
	auditor  audit.Auditor
	emitter  notifier.Emitter
	persist  Persister
	logger   *zap.Logger
}

func NewEngine(
	store *Store,
	sessions *SessionStore,
	accounts *Ledger,
	freeze *FreezeManager,
	clock Clock,
	metrics *Metrics,
	auditor audit.Auditor,
	emitter notifier.Emitter,
	persist Persister,
	logger *zap.Logger,
) *Engine {
	if clock == nil {
		clock = SystemClock{}
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	if auditor == nil {
		auditor = audit.NoopAuditor{}
	}
	if emitter == nil {
		emitter = notifier.Noop{}
	}
	if persist == nil {
		persist = noopPersister{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Engine{
		store:    store,
		sessions: sessions,
		accounts: accounts,
		freeze:   freeze,
		clock:    clock,
		metrics:  metrics,
		auditor:  auditor,
		emitter:  emitter,
		persist:  persist,
		logger:   logger.With(zap.String("mod", "shield")),
	}
}

// Accounts — расчетные счета внешних получателей (казна, fee destination, owner).
func (e *Engine) Accounts() *Ledger { return e.accounts }

// isFrozen учитывает и статус записи, и внешний kill-switch сигнал.
func (e *Engine) isFrozen(vault domain.Address) bool {
	return e.freeze != nil && e.freeze.IsFrozen(vault)
}

// persistTracker / persistVault — write-through с логированием вместо отката.
func (e *Engine) persistTracker(ctx context.Context, t *Tracker) {
	if err := e.persist.SaveTracker(ctx, t); err != nil {
		e.logger.Error("tracker write-through failed",
			zap.String("vault", string(t.Vault)), zap.Error(err))
	}
}

func (e *Engine) persistVault(ctx context.Context, v *domain.AgentVault) {
	if err := e.persist.SaveVault(ctx, v); err != nil {
		e.logger.Error("vault write-through failed",
			zap.String("vault", string(v.ID)), zap.Error(err))
	}
}

func (e *Engine) persistPolicy(ctx context.Context, p *domain.PolicyConfig) {
	if err := e.persist.SavePolicy(ctx, p); err != nil {
		e.logger.Error("policy write-through failed",
			zap.String("vault", string(p.Vault)), zap.Error(err))
	}
}

func (e *Engine) persistBalances(ctx context.Context, vault domain.Address, balances map[domain.Address]uint64) {
	if err := e.persist.SaveBalances(ctx, vault, balances); err != nil {
		e.logger.Error("balances write-through failed",
			zap.String("vault", string(vault)), zap.Error(err))
	}
}

func (e *Engine) emit(t notifier.EventType, vault, agent domain.Address, payload map[string]interface{}) {
	e.emitter.Emit(notifier.Event{
		Type:      t,
		Vault:     vault,
		Agent:     agent,
		Payload:   payload,
		Timestamp: e.clock.Now(),
	})
}
