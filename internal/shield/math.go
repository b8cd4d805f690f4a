package shield

import (
	"math"

	"github.com/xela07ax/agent-shield-gateway/internal/domain"
)

// Проверяемая арифметика. Молчаливый wraparound в учете средств — прямой путь
// к багам безопасности, поэтому любое переполнение — это отдельная ошибка
// ErrOverflow, а не saturating и не panic.

func checkedAdd(a, b uint64) (uint64, error) {
	if a > math.MaxUint64-b {
		return 0, domain.ErrOverflow
	}
	return a + b, nil
}

func checkedSub(a, b uint64) (uint64, error) {
	if b > a {
		return 0, domain.ErrOverflow
	}
	return a - b, nil
}

func checkedAdd8(a, b uint8) (uint8, error) {
	if a > math.MaxUint8-b {
		return 0, domain.ErrOverflow
	}
	return a + b, nil
}

func checkedSub8(a, b uint8) (uint8, error) {
	if b > a {
		return 0, domain.ErrOverflow
	}
	return a - b, nil
}

// feeAmount считает комиссию amount * rate / 1_000_000 с контролем
// переполнения умножения.
func feeAmount(amount uint64, rate uint16) (uint64, error) {
	if rate == 0 {
		return 0, nil
	}
	if amount > math.MaxUint64/uint64(rate) {
		return 0, domain.ErrOverflow
	}
	return amount * uint64(rate) / domain.FeeRateDenominator, nil
}
