package domain

// ActionType — категория действия, запрошенного агентом. Влияет на допуск
// (гейты открытия позиций) и на учет позиций при расчете.
type ActionType string

const (
	ActionSwap             ActionType = "SWAP"
	ActionOpenPosition     ActionType = "OPEN_POSITION"
	ActionClosePosition    ActionType = "CLOSE_POSITION"
	ActionIncreasePosition ActionType = "INCREASE_POSITION"
	ActionDecreasePosition ActionType = "DECREASE_POSITION"
	ActionDeposit          ActionType = "DEPOSIT"
	ActionWithdraw         ActionType = "WITHDRAW"
)

func (a ActionType) IsValid() bool {
	switch a {
	case ActionSwap, ActionOpenPosition, ActionClosePosition,
		ActionIncreasePosition, ActionDecreasePosition,
		ActionDeposit, ActionWithdraw:
		return true
	}
	return false
}
