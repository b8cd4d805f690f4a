package domain

import "errors"

// Таксономия отказов ядра. Четыре класса:
//   - PolicyViolation — ожидаемые, исправимые вызывающим;
//   - AuthorizationFailure — security-critical, всегда fail-closed;
//   - CapacityExhaustion — предел доступности (ledger полон после prune);
//   - Overflow — любая ошибка проверяемой арифметики, никогда не "заворачивается".
// Любой отказ атомарен: частично примененных мутаций не существует.
var (
	ErrVaultNotActive            = errors.New("vault is not active")
	ErrUnauthorizedAgent         = errors.New("unauthorized: signer is not the registered agent")
	ErrUnauthorizedOwner         = errors.New("unauthorized: signer is not the vault owner")
	ErrTokenNotAllowed           = errors.New("token not in allowed list")
	ErrProtocolNotAllowed        = errors.New("protocol not in allowed list")
	ErrTransactionTooLarge       = errors.New("transaction exceeds maximum single transaction size")
	ErrDailyCapExceeded          = errors.New("daily spending cap would be exceeded")
	ErrLeverageTooHigh           = errors.New("leverage exceeds maximum allowed")
	ErrTooManyPositions          = errors.New("maximum concurrent open positions reached")
	ErrPositionOpeningDisallowed = errors.New("cannot open new positions (policy disallows)")
	ErrSessionNotAuthorized      = errors.New("session not authorized")
	ErrSessionExists             = errors.New("session already exists for this vault and agent")
	ErrInvalidSession            = errors.New("invalid session: does not belong to this vault")
	ErrOpenPositionsExist        = errors.New("vault has open positions, cannot close")
	ErrTooManyAllowedTokens      = errors.New("policy invalid: too many allowed tokens")
	ErrTooManyAllowedProtocols   = errors.New("policy invalid: too many allowed protocols")
	ErrAgentAlreadyRegistered    = errors.New("agent already registered for this vault")
	ErrVaultNotFrozen            = errors.New("vault is not frozen (expected frozen for reactivation)")
	ErrVaultClosed               = errors.New("vault is already closed")
	ErrInsufficientBalance       = errors.New("insufficient vault balance")
	ErrDeveloperFeeTooHigh       = errors.New("developer fee rate exceeds maximum")
	ErrInvalidFeeDestination     = errors.New("fee destination account invalid")
	ErrInvalidProtocolTreasury   = errors.New("protocol treasury does not match expected address")
	ErrTooManySpendEntries       = errors.New("spend entry limit reached (too many active entries in rolling window)")
	ErrInvalidAgentKey           = errors.New("invalid agent: cannot be the zero address")
	ErrAgentIsOwner              = errors.New("invalid agent: agent cannot be the vault owner")
	ErrInvalidAction             = errors.New("unknown action type")
	ErrVaultNotFound             = errors.New("vault not found")
	ErrVaultExists               = errors.New("vault already exists")
	ErrOverflow                  = errors.New("arithmetic overflow")
)

// IsPolicyViolation — ожидаемый отказ: вызывающий может скорректировать запрос.
func IsPolicyViolation(err error) bool {
	for _, e := range []error{
		ErrTokenNotAllowed, ErrProtocolNotAllowed, ErrTransactionTooLarge,
		ErrDailyCapExceeded, ErrLeverageTooHigh, ErrTooManyPositions,
		ErrPositionOpeningDisallowed, ErrTooManyAllowedTokens,
		ErrTooManyAllowedProtocols, ErrDeveloperFeeTooHigh,
	} {
		if errors.Is(err, e) {
			return true
		}
	}
	return false
}

// IsAuthorizationFailure — отказ безопасности, деталей наружу не раскрываем.
func IsAuthorizationFailure(err error) bool {
	for _, e := range []error{
		ErrUnauthorizedAgent, ErrUnauthorizedOwner, ErrVaultNotActive,
		ErrSessionNotAuthorized, ErrInvalidSession,
		ErrInvalidFeeDestination, ErrInvalidProtocolTreasury,
	} {
		if errors.Is(err, e) {
			return true
		}
	}
	return false
}

// IsCapacityExhaustion — предел доступности. Отделен от превышения лимитов
// политики: оператор должен отличать "слишком много мелких транзакций"
// от "слишком большие траты".
func IsCapacityExhaustion(err error) bool {
	return errors.Is(err, ErrTooManySpendEntries)
}
