package domain

// PolicyConfig — авторский набор правил владельца для одного хранилища.
// Чистые данные + предикаты без побочных эффектов: решение "как именно"
// (допуск, учет, сессия) принимает движок, а не политика.
type PolicyConfig struct {
	Vault Address `json:"vault"`

	// Потолок трат за скользящие 24 часа (в базовых единицах токена)
	DailySpendingCap uint64 `json:"daily_spending_cap"`

	// Максимальный размер одной транзакции
	MaxTransactionSize uint64 `json:"max_transaction_size"`

	// Белый список токенов (не более MaxAllowedTokens, проверка только членства)
	AllowedTokens []Address `json:"allowed_tokens"`

	// Белый список протоколов: какие program ID агент вправе вызывать
	AllowedProtocols []Address `json:"allowed_protocols"`

	// Потолок плеча в базисных пунктах (10000 = 100x). 0 — плечо запрещено.
	MaxLeverageBps uint16 `json:"max_leverage_bps"`

	// Может ли агент открывать новые позиции (или только закрывать)
	CanOpenPositions bool `json:"can_open_positions"`

	// Потолок числа одновременно открытых позиций
	MaxConcurrentPositions uint8 `json:"max_concurrent_positions"`

	// Ставка комиссии разработчика (rate / 1_000_000).
	// Не более MaxDeveloperFeeRate, 0 — без комиссии.
	DeveloperFeeRate uint16 `json:"developer_fee_rate"`
}

func (p *PolicyConfig) IsTokenAllowed(token Address) bool {
	for _, t := range p.AllowedTokens {
		if t == token {
			return true
		}
	}
	return false
}

func (p *PolicyConfig) IsProtocolAllowed(programID Address) bool {
	for _, pr := range p.AllowedProtocols {
		if pr == programID {
			return true
		}
	}
	return false
}

func (p *PolicyConfig) IsLeverageWithinLimit(leverageBps uint16) bool {
	return leverageBps <= p.MaxLeverageBps
}

// Validate проверяет инварианты ограниченных полей. Вызывается на КАЖДОЙ
// записи политики (создание и обновление), а не только при создании.
func (p *PolicyConfig) Validate() error {
	if len(p.AllowedTokens) > MaxAllowedTokens {
		return ErrTooManyAllowedTokens
	}
	if len(p.AllowedProtocols) > MaxAllowedProtocols {
		return ErrTooManyAllowedProtocols
	}
	if p.DeveloperFeeRate > MaxDeveloperFeeRate {
		return ErrDeveloperFeeTooHigh
	}
	return nil
}

// PolicyUpdate — частичное обновление политики. Каждое поле опционально:
// nil означает "оставить как есть". Применение атомарно — если хотя бы одно
// поле нарушает инвариант, прежняя политика остается нетронутой целиком.
type PolicyUpdate struct {
	DailySpendingCap       *uint64    `json:"daily_spending_cap,omitempty"`
	MaxTransactionSize     *uint64    `json:"max_transaction_size,omitempty"`
	AllowedTokens          *[]Address `json:"allowed_tokens,omitempty"`
	AllowedProtocols       *[]Address `json:"allowed_protocols,omitempty"`
	MaxLeverageBps         *uint16    `json:"max_leverage_bps,omitempty"`
	CanOpenPositions       *bool      `json:"can_open_positions,omitempty"`
	MaxConcurrentPositions *uint8     `json:"max_concurrent_positions,omitempty"`
	DeveloperFeeRate       *uint16    `json:"developer_fee_rate,omitempty"`
}

// Apply накладывает обновление на копию политики и валидирует результат.
// Исходный объект не трогаем — вызывающий заменяет его только при nil-ошибке.
func (u *PolicyUpdate) Apply(p PolicyConfig) (PolicyConfig, error) {
	if u.DailySpendingCap != nil {
		p.DailySpendingCap = *u.DailySpendingCap
	}
	if u.MaxTransactionSize != nil {
		p.MaxTransactionSize = *u.MaxTransactionSize
	}
	if u.AllowedTokens != nil {
		p.AllowedTokens = append([]Address(nil), (*u.AllowedTokens)...)
	}
	if u.AllowedProtocols != nil {
		p.AllowedProtocols = append([]Address(nil), (*u.AllowedProtocols)...)
	}
	if u.MaxLeverageBps != nil {
		p.MaxLeverageBps = *u.MaxLeverageBps
	}
	if u.CanOpenPositions != nil {
		p.CanOpenPositions = *u.CanOpenPositions
	}
	if u.MaxConcurrentPositions != nil {
		p.MaxConcurrentPositions = *u.MaxConcurrentPositions
	}
	if u.DeveloperFeeRate != nil {
		p.DeveloperFeeRate = *u.DeveloperFeeRate
	}

	if err := p.Validate(); err != nil {
		return PolicyConfig{}, err
	}
	return p, nil
}
