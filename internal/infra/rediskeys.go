package infra

import "fmt"

const (
	// RedisNamespace Базовый префикс для изоляции данных проекта в Redis
	RedisNamespace = "ashield"
)

// Ключи для Sets (состояние)
const (
	RedisKeyFrozenVaults   = RedisNamespace + ":vaults:frozen_set"
	RedisKeyLockFrozenWarm = RedisNamespace + ":lock:warmup:frozen"
)

// Каналы Pub/Sub (события)
const (
	// RedisChanFreeze — трансляция kill-switch сигналов между инстансами шлюза.
	// Формат payload: "vault_id:on" / "vault_id:off".
	RedisChanFreeze = RedisNamespace + ":vaults:freeze-signal"

	// RedisChanPolicyUpdate — уведомление об изменении политики хранилища.
	RedisChanPolicyUpdate = RedisNamespace + ":vaults:policy-update"
)

// GetWarmupLockKey Генератор ключей для блокировок (если нужны динамические)
func GetWarmupLockKey(resource string) string {
	return fmt.Sprintf("%s:lock:warmup:%s", RedisNamespace, resource)
}
