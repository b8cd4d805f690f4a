package audit

import (
	"context"
	"time"

	"github.com/xela07ax/agent-shield-gateway/internal/domain"
)

// Статусы событий аудита
const (
	StatusAuthorized    = "AUTHORIZED"     // Допуск выдан, сессия создана
	StatusDenied        = "DENIED"         // Допуск отклонен (причина в Reason)
	StatusSettled       = "SETTLED"        // Сессия рассчитана успешно
	StatusSettledFailed = "SETTLED_FAILED" // Сессия рассчитана как неуспешная (включая истекшие)
)

// AuditEvent — запись для долговременного следа в Postgres. Дополняет
// ончейн-подобное кольцо в Tracker: кольцо ограничено 50 слотами,
// этот поток — нет.
type AuditEvent struct {
	ID      string         `json:"id"`       // UUID события
	TraceID string         `json:"trace_id"` // Сквозной ID запроса
	Vault   domain.Address `json:"vault"`
	Agent   domain.Address `json:"agent"`

	Action   domain.ActionType `json:"action"`
	Token    domain.Address    `json:"token"`
	Amount   uint64            `json:"amount"`
	Protocol domain.Address    `json:"protocol"`

	Status string `json:"status"`
	Reason string `json:"reason,omitempty"` // Какая именно проверка не прошла

	Slot      uint64    `json:"slot"`
	Timestamp time.Time `json:"timestamp"`
}

// Auditor — контракт для ядра: неблокирующая запись события.
type Auditor interface {
	Log(event AuditEvent)
}

// NoopAuditor — для тестов ядра.
type NoopAuditor struct{}

func (NoopAuditor) Log(AuditEvent) {}

// Тип для ключа в контексте (избегаем коллизий)
type ctxKey string

const traceIDKey ctxKey = "trace_id"

// WithTraceID кладет сквозной ID запроса в контекст.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

// TraceID безопасно достает ID в любом месте кода.
func TraceID(ctx context.Context) string {
	if id, ok := ctx.Value(traceIDKey).(string); ok {
		return id
	}
	return "00000000-0000-0000-0000-000000000000" // Fallback
}
