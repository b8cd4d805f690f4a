package shield

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/xela07ax/agent-shield-gateway/internal/audit"
	"github.com/xela07ax/agent-shield-gateway/internal/domain"
	"github.com/xela07ax/agent-shield-gateway/internal/notifier"
	"go.uber.org/zap"
)

// AuthorizeRequest — запрос агента на допуск перед даунстрим-действием.
// Identity агента берется из аутентифицированного подписанта, не из тела.
type AuthorizeRequest struct {
	Agent          domain.Address
	Vault          domain.Address
	ActionType     domain.ActionType
	Token          domain.Address
	Amount         uint64
	TargetProtocol domain.Address
	LeverageBps    *uint16 // nil — действие без плеча
}

// AuthorizeResult — выданная capability плюс контекст решения для событий.
type AuthorizeResult struct {
	Session           domain.SessionAuthority
	RollingSpendAfter uint64
	DailyCap          uint64
}

// ValidateAndAuthorize — движок допуска. Проверки идут в фиксированном
// порядке, первая нарушенная прерывает всю операцию без частичных эффектов.
// Только после прохождения всех проверок: трата бронируется в скользящем
// реестре и создается сессия — одним неделимым переходом, "authorized, но
// трата не учтена" наблюдать невозможно.
func (e *Engine) ValidateAndAuthorize(ctx context.Context, req AuthorizeRequest) (*AuthorizeResult, error) {
	start := time.Now()

	result, err := e.authorize(ctx, req)

	status := audit.StatusAuthorized
	outcome := "authorized"
	if err != nil {
		status = audit.StatusDenied
		outcome = "denied"
		e.metrics.DenialTotal.WithLabelValues(denialReason(err)).Inc()
	}
	e.metrics.AdmissionTotal.WithLabelValues(outcome).Inc()
	e.metrics.OpDuration.WithLabelValues("authorize", outcome).Observe(time.Since(start).Seconds())

	event := audit.AuditEvent{
		ID:        uuid.New().String(),
		TraceID:   audit.TraceID(ctx),
		Vault:     req.Vault,
		Agent:     req.Agent,
		Action:    req.ActionType,
		Token:     req.Token,
		Amount:    req.Amount,
		Protocol:  req.TargetProtocol,
		Status:    status,
		Slot:      e.clock.Slot(),
		Timestamp: e.clock.Now(),
	}

	if err != nil {
		event.Reason = err.Error()
		e.auditor.Log(event)
		e.emit(notifier.EventActionDenied, req.Vault, req.Agent, map[string]interface{}{
			"reason": err.Error(),
			"action": string(req.ActionType),
		})
		return nil, err
	}

	e.auditor.Log(event)
	e.emit(notifier.EventActionAuthorized, req.Vault, req.Agent, map[string]interface{}{
		"action":              string(req.ActionType),
		"token":               string(req.Token),
		"amount":              req.Amount,
		"protocol":            string(req.TargetProtocol),
		"rolling_spend_after": result.RollingSpendAfter,
		"daily_cap":           result.DailyCap,
		"expires_at_slot":     result.Session.ExpiresAtSlot,
	})
	e.metrics.LiveSessions.Set(float64(e.sessions.Len()))
	return result, nil
}

func (e *Engine) authorize(ctx context.Context, req AuthorizeRequest) (*AuthorizeResult, error) {
	if !req.ActionType.IsValid() {
		return nil, domain.ErrInvalidAction
	}

	var result *AuthorizeResult

	err := e.store.Update(req.Vault, func(state *VaultState) error {
		vault := &state.Vault
		policy := &state.Policy
		now := e.clock.Now().Unix()
		slot := e.clock.Slot()

		// Слот сессии занят — вторая capability на (vault, agent) не выдается,
		// пока первая не рассчитана или не прибрана после истечения
		if e.sessions.Exists(req.Vault, req.Agent) {
			return domain.ErrSessionExists
		}

		// 1. Подписант должен быть зарегистрированным агентом хранилища
		if !vault.IsAgent(req.Agent) {
			return domain.ErrUnauthorizedAgent
		}

		// 2. Хранилище активно (локальный статус + внешний kill-switch)
		if !vault.IsActive() || e.isFrozen(req.Vault) {
			return domain.ErrVaultNotActive
		}

		// 3. Сумма положительна
		if req.Amount == 0 {
			return domain.ErrTransactionTooLarge
		}

		// 4. Токен в белом списке
		if !policy.IsTokenAllowed(req.Token) {
			return domain.ErrTokenNotAllowed
		}

		// 5. Протокол в белом списке
		if !policy.IsProtocolAllowed(req.TargetProtocol) {
			return domain.ErrProtocolNotAllowed
		}

		// 6. Размер одной транзакции
		if req.Amount > policy.MaxTransactionSize {
			return domain.ErrTransactionTooLarge
		}

		// 7. Потолок скользящих 24 часов. Переполнение суммы — отдельный
		// отказ, не превышение лимита.
		rolling, err := state.Tracker.GetRollingSpend(req.Token, now)
		if err != nil {
			return err
		}
		newTotal, err := checkedAdd(rolling, req.Amount)
		if err != nil {
			return err
		}
		if newTotal > policy.DailySpendingCap {
			return domain.ErrDailyCapExceeded
		}

		// 8. Плечо (для перп-действий)
		if req.LeverageBps != nil && !policy.IsLeverageWithinLimit(*req.LeverageBps) {
			return domain.ErrLeverageTooHigh
		}

		// 9. Открытие позиций
		if req.ActionType == domain.ActionOpenPosition {
			if !policy.CanOpenPositions {
				return domain.ErrPositionOpeningDisallowed
			}
			if vault.OpenPositions >= policy.MaxConcurrentPositions {
				return domain.ErrTooManyPositions
			}
		}

		// Все проверки пройдены — бронируем трату и создаем сессию
		if err := state.Tracker.RecordSpend(req.Token, req.Amount, now); err != nil {
			return err
		}

		session := domain.SessionAuthority{
			Vault:              req.Vault,
			Agent:              req.Agent,
			Authorized:         true,
			AuthorizedAmount:   req.Amount,
			AuthorizedToken:    req.Token,
			AuthorizedProtocol: req.TargetProtocol,
			ActionType:         req.ActionType,
			ExpiresAtSlot:      domain.CalculateExpiry(slot),
		}
		if err := e.sessions.Put(session); err != nil {
			// Недостижимо под замком хранилища: Exists проверен выше.
			// Откатываем бронь, чтобы не остаться с учтенной тратой без сессии.
			state.Tracker.RollingSpends = state.Tracker.RollingSpends[:len(state.Tracker.RollingSpends)-1]
			return err
		}

		e.metrics.RollingEntries.WithLabelValues(string(req.Vault)).
			Set(float64(len(state.Tracker.RollingSpends)))
		e.persistTracker(ctx, state.Tracker)

		result = &AuthorizeResult{
			Session:           session,
			RollingSpendAfter: newTotal,
			DailyCap:          policy.DailySpendingCap,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Debug("action authorized",
		zap.String("vault", string(req.Vault)),
		zap.String("agent", string(req.Agent)),
		zap.String("action", string(req.ActionType)),
		zap.Uint64("amount", req.Amount),
	)
	return result, nil
}

// denialReason сводит ошибку к метке метрики по таксономии отказов.
func denialReason(err error) string {
	switch {
	case domain.IsPolicyViolation(err):
		return "policy_violation"
	case domain.IsAuthorizationFailure(err):
		return "authorization_failure"
	case domain.IsCapacityExhaustion(err):
		return "capacity_exhaustion"
	default:
		return "other"
	}
}
