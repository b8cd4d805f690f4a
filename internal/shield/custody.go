package shield

import (
	"sync"

	"github.com/xela07ax/agent-shield-gateway/internal/domain"
)

// Кастодиальный коллаборатор: остатки хранилища и внешние расчетные счета.
// Ядро двигает средства только здесь и только в двух случаях — комиссии при
// расчете сессии и deposit/withdraw владельца.

type accountKey struct {
	Owner domain.Address
	Token domain.Address
}

// Ledger — расчетные счета внешних получателей (казна протокола, получатель
// комиссии разработчика, владелец при выводе). Отдельный от VaultState,
// потому что получатели живут дольше любого хранилища.
type Ledger struct {
	mu       sync.RWMutex
	balances map[accountKey]uint64
}

func NewLedger() *Ledger {
	return &Ledger{balances: make(map[accountKey]uint64)}
}

func (l *Ledger) Credit(owner, token domain.Address, amount uint64) error {
	if amount == 0 {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	key := accountKey{Owner: owner, Token: token}
	next, err := checkedAdd(l.balances[key], amount)
	if err != nil {
		return err
	}
	l.balances[key] = next
	return nil
}

func (l *Ledger) Balance(owner, token domain.Address) uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.balances[accountKey{Owner: owner, Token: token}]
}

// creditVault зачисляет средства на кастодиальный остаток хранилища.
func creditVault(state *VaultState, token domain.Address, amount uint64) error {
	next, err := checkedAdd(state.Balances[token], amount)
	if err != nil {
		return err
	}
	state.Balances[token] = next
	return nil
}

// debitVault списывает с остатка; недостаток средств — отдельная ошибка,
// а не переполнение.
func debitVault(state *VaultState, token domain.Address, amount uint64) error {
	balance := state.Balances[token]
	if balance < amount {
		return domain.ErrInsufficientBalance
	}
	state.Balances[token] = balance - amount
	return nil
}
