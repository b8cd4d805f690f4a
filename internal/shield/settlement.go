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

// FinalizeRequest — отчет об исходе сессии. Caller — аутентифицированный
// подписант; до истечения сессии закрыть ее может только ее агент, после —
// кто угодно (permissionless cleanup), чтобы упавший агент не замораживал
// слот capability навсегда.
type FinalizeRequest struct {
	Caller  domain.Address
	Vault   domain.Address
	Agent   domain.Address // Чья сессия закрывается
	Success bool           // Исход, заявленный вызывающим
}

// FinalizeResult — эффективный исход расчета.
type FinalizeResult struct {
	Success      bool
	Expired      bool
	ProtocolFee  uint64
	DeveloperFee uint64
	Record       domain.TransactionRecord
}

// FinalizeSession — движок расчетов. Потребляет SessionAuthority ровно один
// раз: применяет исход к агрегатам хранилища, двигает комиссии, пишет
// аудит-кольцо и уничтожает сессию. Истекшая сессия всегда трактуется как
// неуспех, что бы ни заявил вызывающий.
func (e *Engine) FinalizeSession(ctx context.Context, req FinalizeRequest) (*FinalizeResult, error) {
	start := time.Now()

	result, err := e.finalize(ctx, req)

	outcome := "failed"
	if err == nil && result.Success {
		outcome = "success"
	}
	if err == nil && result.Expired {
		outcome = "expired"
	}
	status := "err"
	if err == nil {
		status = "ok"
	}
	e.metrics.OpDuration.WithLabelValues("finalize", status).Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}

	e.metrics.SettlementTotal.WithLabelValues(outcome).Inc()
	e.metrics.LiveSessions.Set(float64(e.sessions.Len()))

	auditStatus := audit.StatusSettledFailed
	if result.Success {
		auditStatus = audit.StatusSettled
	}
	e.auditor.Log(audit.AuditEvent{
		ID:        uuid.New().String(),
		TraceID:   audit.TraceID(ctx),
		Vault:     req.Vault,
		Agent:     req.Agent,
		Action:    result.Record.ActionType,
		Token:     result.Record.Token,
		Amount:    result.Record.Amount,
		Protocol:  result.Record.Protocol,
		Status:    auditStatus,
		Slot:      result.Record.Slot,
		Timestamp: e.clock.Now(),
	})

	e.emit(notifier.EventSessionFinalized, req.Vault, req.Agent, map[string]interface{}{
		"success": result.Success,
		"expired": result.Expired,
	})
	return result, nil
}

func (e *Engine) finalize(ctx context.Context, req FinalizeRequest) (*FinalizeResult, error) {
	var result *FinalizeResult

	err := e.store.Update(req.Vault, func(state *VaultState) error {
		session, ok := e.sessions.Get(req.Vault, req.Agent)
		if !ok || session.Vault != req.Vault {
			// Записи нет — сессия либо не выдавалась, либо уже потреблена.
			// Повторный расчет невозможен по построению.
			return domain.ErrInvalidSession
		}

		now := e.clock.Now()
		slot := e.clock.Slot()
		isExpired := session.IsExpired(slot)

		// До истечения закрыть сессию может только ее агент, и сессия
		// обязана нести authorized=true. После истечения — кто угодно.
		if !isExpired {
			if req.Caller != session.Agent {
				return domain.ErrUnauthorizedAgent
			}
			if !session.Authorized {
				return domain.ErrSessionNotAuthorized
			}
		}

		// Истекшие сессии всегда считаются проваленными
		success := req.Success
		if isExpired {
			success = false
		}

		// ФАЗА РАСЧЕТА: все новые значения вычисляются до единой мутации.
		// Любая ошибка здесь оставляет состояние нетронутым целиком.
		vault := state.Vault // копия
		var protocolFee, developerFee uint64

		if success {
			var err error

			// Комиссии считаются от ОДОБРЕННОЙ суммы сессии, не из запроса
			protocolFee, err = feeAmount(session.AuthorizedAmount, domain.ProtocolFeeRate)
			if err != nil {
				return err
			}
			developerFee, err = feeAmount(session.AuthorizedAmount, state.Policy.DeveloperFeeRate)
			if err != nil {
				return err
			}

			if protocolFee > 0 || developerFee > 0 {
				totalFee, err := checkedAdd(protocolFee, developerFee)
				if err != nil {
					return err
				}
				// Получатели обязаны быть настроены — молча пропустить
				// комиссию нельзя (fail-closed)
				if domain.ProtocolTreasury.IsZero() {
					return domain.ErrInvalidProtocolTreasury
				}
				if developerFee > 0 && vault.FeeDestination.IsZero() {
					return domain.ErrInvalidFeeDestination
				}
				if state.Balances[session.AuthorizedToken] < totalFee {
					return domain.ErrInsufficientBalance
				}
				// Переполнение счетов получателей проверяем до списания
				if _, err := checkedAdd(e.accounts.Balance(domain.ProtocolTreasury, session.AuthorizedToken), protocolFee); err != nil {
					return err
				}
				if _, err := checkedAdd(e.accounts.Balance(vault.FeeDestination, session.AuthorizedToken), developerFee); err != nil {
					return err
				}

				if vault.TotalFeesCollected, err = checkedAdd(vault.TotalFeesCollected, developerFee); err != nil {
					return err
				}
			}

			if vault.TotalTransactions, err = checkedAdd(vault.TotalTransactions, 1); err != nil {
				return err
			}
			if vault.TotalVolume, err = checkedAdd(vault.TotalVolume, session.AuthorizedAmount); err != nil {
				return err
			}

			switch session.ActionType {
			case domain.ActionOpenPosition:
				if vault.OpenPositions, err = checkedAdd8(vault.OpenPositions, 1); err != nil {
					return err
				}
			case domain.ActionClosePosition:
				// Уход ниже нуля — жесткий отказ, не wraparound
				if vault.OpenPositions, err = checkedSub8(vault.OpenPositions, 1); err != nil {
					return err
				}
			}
		}

		// ФАЗА ПРИМЕНЕНИЯ: все проверки позади, мутации уже не могут упасть
		if success {
			totalFee := protocolFee + developerFee
			if totalFee > 0 {
				state.Balances[session.AuthorizedToken] -= totalFee
				_ = e.accounts.Credit(domain.ProtocolTreasury, session.AuthorizedToken, protocolFee)
				_ = e.accounts.Credit(vault.FeeDestination, session.AuthorizedToken, developerFee)

				e.metrics.FeesCollected.WithLabelValues("protocol").Add(float64(protocolFee))
				e.metrics.FeesCollected.WithLabelValues("developer").Add(float64(developerFee))

				e.emit(notifier.EventFeesCollected, req.Vault, session.Agent, map[string]interface{}{
					"token":                     string(session.AuthorizedToken),
					"protocol_fee":              protocolFee,
					"developer_fee":             developerFee,
					"transaction_amount":        session.AuthorizedAmount,
					"cumulative_developer_fees": vault.TotalFeesCollected,
				})
			}
			state.Vault = vault
		}

		// Аудит-кольцо пишется при ЛЮБОМ исходе
		record := domain.TransactionRecord{
			Timestamp:  now.Unix(),
			ActionType: session.ActionType,
			Token:      session.AuthorizedToken,
			Amount:     session.AuthorizedAmount,
			Protocol:   session.AuthorizedProtocol,
			Success:    success,
			Slot:       slot,
		}
		state.Tracker.RecordTransaction(record)

		// Уничтожаем capability: запись исчезает, вторая попытка расчета
		// получит ErrInvalidSession. Слот (vault, agent) освобожден для
		// следующего допуска.
		e.sessions.Delete(req.Vault, req.Agent)

		e.persistVault(ctx, &state.Vault)
		e.persistTracker(ctx, state.Tracker)
		e.persistBalances(ctx, req.Vault, state.Balances)

		result = &FinalizeResult{
			Success:      success,
			Expired:      isExpired,
			ProtocolFee:  protocolFee,
			DeveloperFee: developerFee,
			Record:       record,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Debug("session finalized",
		zap.String("vault", string(req.Vault)),
		zap.String("agent", string(req.Agent)),
		zap.Bool("success", result.Success),
		zap.Bool("expired", result.Expired),
	)
	return result, nil
}
