package shield

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xela07ax/agent-shield-gateway/internal/domain"
)

// ListenStateResilient — живучая подписка на канал состояния в Redis.
// Переживает обрывы соединения: после каждого успешного (пере)подключения
// вызывает sync для полной пересинхронизации L1, затем скармливает сигналы
// формата "vault_id:on|off" в apply. Возвращается только по отмене контекста.
func ListenStateResilient(
	ctx context.Context,
	rdb *redis.Client,
	logger *zap.Logger,
	channel string,
	sync func() error,
	apply func(vault domain.Address, frozen bool),
) {
	attempt := 0
	for {
		if ctx.Err() != nil {
			return
		}

		pubsub := rdb.Subscribe(ctx, channel)
		if _, err := pubsub.Receive(ctx); err != nil {
			pubsub.Close()
			attempt++
			logger.Error("failed to subscribe",
				zap.String("chan", channel), zap.Int("attempt", attempt), zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(5 * time.Second):
			}
			continue
		}
		attempt = 0

		// Пока подписки не было, сигналы могли пройти мимо — сверяемся целиком
		if err := sync(); err != nil {
			logger.Error("state sync failed after subscribe", zap.Error(err))
		}

		ch := pubsub.Channel()
		alive := true
		for alive {
			select {
			case <-ctx.Done():
				pubsub.Close()
				return
			case msg, ok := <-ch:
				if !ok {
					alive = false // Канал закрыт, идем на переподключение
					break
				}

				id, state, found := strings.Cut(msg.Payload, ":")
				if !found || id == "" {
					logger.Error("invalid signal format", zap.String("payload", msg.Payload))
					continue
				}
				apply(domain.Address(id), state == "on" || state == "true")
			}
		}

		pubsub.Close()
		time.Sleep(time.Second)
	}
}
