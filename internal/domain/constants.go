package domain

// Address — непрозрачный идентификатор участника: владелец, агент, токен,
// протокол или производный адрес хранилища. Сравнение строковое, никакой
// интерпретации содержимого ядро не делает.
type Address string

// ZeroAddress — "пустой" адрес. Используется как отсутствие агента.
const ZeroAddress Address = ""

func (a Address) IsZero() bool {
	return a == ZeroAddress
}

// Жесткие пределы и протокольные константы. Значения фиксированы: изменение
// любого из них меняет семантику учета для всех хранилищ сразу.
const (
	// Пределы белых списков политики
	MaxAllowedTokens    = 10
	MaxAllowedProtocols = 10

	// Емкость кольцевого буфера аудита (выселение с индекса 0)
	MaxRecentTransactions = 50

	// Жесткий потолок записей скользящего окна. Достигнут после prune —
	// отказываем (fail-closed), а не выселяем живые записи.
	MaxSpendEntries = 100

	// Ширина скользящего окна трат
	RollingWindowSeconds int64 = 86_400

	// Срок жизни сессии в слотах от момента допуска
	SessionExpirySlots uint64 = 20

	// Комиссии считаются как amount * rate / FeeRateDenominator
	FeeRateDenominator uint64 = 1_000_000

	// Фиксированная ставка протокольной комиссии (20 ppm = 0.002%)
	ProtocolFeeRate uint16 = 20

	// Потолок ставки комиссии разработчика (50 ppm = 0.005%)
	MaxDeveloperFeeRate uint16 = 50
)

// ProtocolTreasury — единственный легитимный получатель протокольной
// комиссии. Несовпадение при расчете — AuthorizationFailure, не предупреждение.
const ProtocolTreasury Address = "ASHie1dFTnDSnrHMPGmniJhMgfJVGPm3rAaEPnrtWDiT"
