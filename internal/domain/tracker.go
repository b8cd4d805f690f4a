package domain

// SpendEntry — одна забронированная трата в скользящем окне.
// Записи старше RollingWindowSeconds логически мертвы и вычищаются
// при каждом обращении к окну.
type SpendEntry struct {
	Token     Address `json:"token"`
	Amount    uint64  `json:"amount"`
	Timestamp int64   `json:"timestamp"` // Unix-секунды
}

// TransactionRecord — элемент кольцевого буфера аудита. Пишется при каждом
// расчете сессии, независимо от исхода. Итерация для чтения — от старых к новым.
type TransactionRecord struct {
	Timestamp  int64      `json:"timestamp"`
	ActionType ActionType `json:"action_type"`
	Token      Address    `json:"token"`
	Amount     uint64     `json:"amount"`
	Protocol   Address    `json:"protocol"`
	Success    bool       `json:"success"`
	Slot       uint64     `json:"slot"`
}
