package domain

// SessionAuthority — эфемерная одноразовая capability: связывает одного
// агента с одним разрешенным действием. Создается движком допуска атомарно
// (write-once), потребляется движком расчетов ровно один раз (read-once).
// Состояния "Denied" не существует: отказ в допуске вообще не создает запись.
type SessionAuthority struct {
	Vault Address `json:"vault"`
	Agent Address `json:"agent"` // Кто инициировал сессию

	// Выставляется в true только после успешного прохождения всех проверок
	Authorized bool `json:"authorized"`

	// Точные одобренные параметры. Расчет обязан использовать их,
	// а не данные из запроса — защита от подмены.
	AuthorizedAmount   uint64     `json:"authorized_amount"`
	AuthorizedToken    Address    `json:"authorized_token"`
	AuthorizedProtocol Address    `json:"authorized_protocol"`
	ActionType         ActionType `json:"action_type"`

	// Абсолютный слот истечения: сессия валидна, пока текущий слот <= ExpiresAtSlot
	ExpiresAtSlot uint64 `json:"expires_at_slot"`
}

func (s *SessionAuthority) IsExpired(currentSlot uint64) bool {
	return currentSlot > s.ExpiresAtSlot
}

func (s *SessionAuthority) IsValid(currentSlot uint64) bool {
	return s.Authorized && !s.IsExpired(currentSlot)
}

// CalculateExpiry вычисляет слот истечения. Saturating-сложение: переполнение
// счетчика слотов не должно ронять допуск.
func CalculateExpiry(currentSlot uint64) uint64 {
	if currentSlot > ^uint64(0)-SessionExpirySlots {
		return ^uint64(0)
	}
	return currentSlot + SessionExpirySlots
}
