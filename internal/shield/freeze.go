package shield

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xela07ax/agent-shield-gateway/internal/domain"
	"github.com/xela07ax/agent-shield-gateway/internal/infra"
)

// FreezeManager — распределенный kill-switch для хранилищ. Локальная мапа (L1)
// синхронизируется с Redis-множеством (L2) через pub/sub, так что RevokeAgent
// на одном инстансе шлюза мгновенно морозит допуск на всех остальных.
type FreezeManager struct {
	mu     sync.RWMutex
	frozen map[domain.Address]struct{}
	rdb    *redis.Client
	logger *zap.Logger
}

func NewFreezeManager(rdb *redis.Client, logger *zap.Logger) *FreezeManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FreezeManager{
		frozen: make(map[domain.Address]struct{}),
		rdb:    rdb,
		logger: logger.With(zap.String("mod", "freeze")),
	}
}

// Init загружает текущее состояние заморозок при старте сервиса
func (m *FreezeManager) Init(ctx context.Context) error {
	ids, err := m.rdb.SMembers(ctx, infra.RedisKeyFrozenVaults).Result()
	if err != nil {
		return err
	}

	m.mu.Lock()
	for _, id := range ids {
		m.frozen[domain.Address(id)] = struct{}{}
	}
	m.mu.Unlock()
	return nil
}

func (m *FreezeManager) IsFrozen(vault domain.Address) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.frozen[vault]
	return ok
}

func (m *FreezeManager) markFrozen(vault domain.Address, frozen bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if frozen {
		m.frozen[vault] = struct{}{}
	} else {
		delete(m.frozen, vault)
	}
}

// Freeze публикует сигнал заморозки: обновляет L1, L2 и уведомляет остальные
// инстансы. Локальная мапа обновляется первой — свой инстанс морозит
// мгновенно даже при недоступном Redis.
func (m *FreezeManager) Freeze(ctx context.Context, vault domain.Address) {
	m.markFrozen(vault, true)

	if err := m.rdb.SAdd(ctx, infra.RedisKeyFrozenVaults, string(vault)).Err(); err != nil {
		m.logger.Error("failed to persist freeze to Redis",
			zap.String("vault", string(vault)), zap.Error(err))
	}
	if err := m.rdb.Publish(ctx, infra.RedisChanFreeze, string(vault)+":on").Err(); err != nil {
		m.logger.Error("failed to broadcast freeze signal",
			zap.String("vault", string(vault)), zap.Error(err))
	}
}

// Unfreeze снимает заморозку после успешной реактивации.
func (m *FreezeManager) Unfreeze(ctx context.Context, vault domain.Address) {
	m.markFrozen(vault, false)

	if err := m.rdb.SRem(ctx, infra.RedisKeyFrozenVaults, string(vault)).Err(); err != nil {
		m.logger.Error("failed to remove freeze from Redis",
			zap.String("vault", string(vault)), zap.Error(err))
	}
	if err := m.rdb.Publish(ctx, infra.RedisChanFreeze, string(vault)+":off").Err(); err != nil {
		m.logger.Error("failed to broadcast unfreeze signal",
			zap.String("vault", string(vault)), zap.Error(err))
	}
}

// StartListener — живучая подписка на freeze-сигналы других инстансов.
// Блокируется до отмены контекста; запускать в отдельной горутине.
func (m *FreezeManager) StartListener(ctx context.Context) {
	m.logger.Info("freeze listener started", zap.String("chan", infra.RedisChanFreeze))

	ListenStateResilient(ctx, m.rdb, m.logger, infra.RedisChanFreeze,
		func() error {
			// Пересинхронизация после каждого (пере)подключения
			return m.Init(ctx)
		},
		func(vault domain.Address, frozen bool) {
			m.logger.Warn("freeze signal received",
				zap.String("vault", string(vault)), zap.Bool("frozen", frozen))
			m.markFrozen(vault, frozen)
		},
	)
}

// Warmup — прогрев L2 из авторитетного состояния (frozen-хранилища из БД).
// Распределенная блокировка гарантирует, что Redis греет один инстанс.
func (m *FreezeManager) Warmup(ctx context.Context, frozenIDs []domain.Address) error {
	ids := make([]string, 0, len(frozenIDs))
	for _, id := range frozenIDs {
		ids = append(ids, string(id))
	}

	// 1. Обновляем локальный кэш (L1)
	m.mu.Lock()
	for _, id := range frozenIDs {
		m.frozen[id] = struct{}{}
	}
	m.mu.Unlock()

	// 2. Распределенная блокировка (SetNX), чтобы только один инстанс обновлял Redis
	ok, err := m.rdb.SetNX(ctx, infra.RedisKeyLockFrozenWarm, "processing", 30*time.Second).Result()
	if err != nil || !ok {
		return nil // Либо ошибка сети, либо другой уже греет кэш
	}

	// 3. Проверка наполненности Redis
	count, err := m.rdb.SCard(ctx, infra.RedisKeyFrozenVaults).Result()
	if err != nil {
		count = 0
		m.logger.Warn("could not check Redis set size, proceeding with warm-up",
			zap.String("key", infra.RedisKeyFrozenVaults), zap.Error(err))
	}

	// 4. Если Redis пуст, а данные в БД есть — заливаем
	if count == 0 && len(ids) > 0 {
		m.logger.Info("Redis freeze cache is empty, performing warm-up from DB...",
			zap.String("key", infra.RedisKeyFrozenVaults), zap.Int("count", len(ids)))

		pipe := m.rdb.Pipeline()
		for _, id := range ids {
			pipe.SAdd(ctx, infra.RedisKeyFrozenVaults, id)
		}
		_, err = pipe.Exec(ctx)
		return err
	}

	return nil
}
