package shield

import (
	"github.com/xela07ax/agent-shield-gateway/internal/domain"
)

// Tracker — скользящий реестр трат и кольцевой аудит-буфер одного хранилища.
// Коллекции ограничены фиксированными потолками и сканируются линейно:
// на этих размерах (<=100) это дешевле хеш-таблиц и держит запись
// фиксированного размера при сериализации.
type Tracker struct {
	Vault domain.Address `json:"vault"`

	// Записи старше окна логически мертвы: prune обязателен перед любым
	// чтением или записью, зависящими от агрегата.
	RollingSpends []domain.SpendEntry `json:"rolling_spends"`

	// Кольцевой буфер аудита: старейшая запись вытесняется первой,
	// порядок вставки сохраняется.
	RecentTransactions []domain.TransactionRecord `json:"recent_transactions"`
}

func NewTracker(vault domain.Address) *Tracker {
	return &Tracker{Vault: vault}
}

// prune выбрасывает записи старше начала окна. Мутирующая операция, общая
// для пути чтения и пути записи — побочный эффект намеренный.
func (t *Tracker) prune(windowStart int64) {
	kept := t.RollingSpends[:0]
	for _, e := range t.RollingSpends {
		if e.Timestamp >= windowStart {
			kept = append(kept, e)
		}
	}
	t.RollingSpends = kept
}

// GetRollingSpend вычищает просроченные записи и возвращает сумму трат
// по токену внутри окна. Переполнение суммы — жесткий отказ.
func (t *Tracker) GetRollingSpend(token domain.Address, now int64) (uint64, error) {
	t.prune(now - domain.RollingWindowSeconds)

	var total uint64
	var err error
	for _, e := range t.RollingSpends {
		if e.Token != token {
			continue
		}
		if total, err = checkedAdd(total, e.Amount); err != nil {
			return 0, err
		}
	}
	return total, nil
}

// RecordSpend бронирует новую трату. Порядок строго prune -> check -> insert:
// если после вычистки окно все еще полно, значит каждая запись еще влияет
// на лимит, и вытеснение любой из них позволило бы обойти дневной потолок.
// Поэтому отказываем (fail-closed), ограничивая легитимный поток
// MaxSpendEntries событиями на скользящие сутки.
func (t *Tracker) RecordSpend(token domain.Address, amount uint64, timestamp int64) error {
	t.prune(timestamp - domain.RollingWindowSeconds)

	if len(t.RollingSpends) >= domain.MaxSpendEntries {
		return domain.ErrTooManySpendEntries
	}

	t.RollingSpends = append(t.RollingSpends, domain.SpendEntry{
		Token:     token,
		Amount:    amount,
		Timestamp: timestamp,
	})
	return nil
}

// RecordTransaction пишет запись в аудит-кольцо. При заполнении вытесняется
// индекс 0 (старейшая). O(n)-сдвиг приемлем на этой границе.
func (t *Tracker) RecordTransaction(rec domain.TransactionRecord) {
	if len(t.RecentTransactions) >= domain.MaxRecentTransactions {
		t.RecentTransactions = append(t.RecentTransactions[:0], t.RecentTransactions[1:]...)
	}
	t.RecentTransactions = append(t.RecentTransactions, rec)
}
