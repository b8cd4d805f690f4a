package shield

import (
	"context"
	"testing"

	"github.com/xela07ax/agent-shield-gateway/internal/domain"
)

func TestRegisterAgentValidation(t *testing.T) {
	ctx := context.Background()

	t.Run("zero key", func(t *testing.T) {
		e := newTestEngine(newTestClock())
		v, _ := e.InitializeVault(ctx, InitializeVaultRequest{
			Owner: testOwner, VaultID: 1, FeeDestination: testFeeDest,
		})
		if err := e.RegisterAgent(ctx, testOwner, v.ID, domain.ZeroAddress); err != domain.ErrInvalidAgentKey {
			t.Fatalf("expected ErrInvalidAgentKey, got %v", err)
		}
	})

	t.Run("agent equals owner", func(t *testing.T) {
		e := newTestEngine(newTestClock())
		v, _ := e.InitializeVault(ctx, InitializeVaultRequest{
			Owner: testOwner, VaultID: 1, FeeDestination: testFeeDest,
		})
		if err := e.RegisterAgent(ctx, testOwner, v.ID, testOwner); err != domain.ErrAgentIsOwner {
			t.Fatalf("expected ErrAgentIsOwner, got %v", err)
		}
	})

	t.Run("double registration", func(t *testing.T) {
		e := newTestEngine(newTestClock())
		vault := newFundedVault(t, e, 0)
		if err := e.RegisterAgent(ctx, testOwner, vault, "another-agent"); err != domain.ErrAgentAlreadyRegistered {
			t.Fatalf("expected ErrAgentAlreadyRegistered, got %v", err)
		}
	})

	t.Run("not the owner", func(t *testing.T) {
		e := newTestEngine(newTestClock())
		v, _ := e.InitializeVault(ctx, InitializeVaultRequest{
			Owner: testOwner, VaultID: 1, FeeDestination: testFeeDest,
		})
		if err := e.RegisterAgent(ctx, "stranger", v.ID, testAgent); err != domain.ErrUnauthorizedOwner {
			t.Fatalf("expected ErrUnauthorizedOwner, got %v", err)
		}
	})
}

func TestRevokeAndReactivateCycle(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(newTestClock())
	vault := newFundedVault(t, e, 0)

	if err := e.RevokeAgent(ctx, testOwner, vault); err != nil {
		t.Fatalf("RevokeAgent: %v", err)
	}
	v, _ := e.GetVault(vault)
	if v.Status != domain.VaultFrozen || v.HasAgent() {
		t.Fatalf("expected frozen vault with cleared agent, got %+v", v)
	}

	// Реактивация из не-Frozen статуса запрещена
	if err := e.ReactivateVault(ctx, testOwner, vault, nil); err != nil {
		t.Fatalf("ReactivateVault: %v", err)
	}
	if err := e.ReactivateVault(ctx, testOwner, vault, nil); err != domain.ErrVaultNotFrozen {
		t.Fatalf("expected ErrVaultNotFrozen on active vault, got %v", err)
	}

	// Ротация ключа при реактивации
	if err := e.RevokeAgent(ctx, testOwner, vault); err != nil {
		t.Fatalf("second revoke: %v", err)
	}
	fresh := domain.Address("agent-fresh-key")
	if err := e.ReactivateVault(ctx, testOwner, vault, &fresh); err != nil {
		t.Fatalf("reactivate with rotation: %v", err)
	}
	v, _ = e.GetVault(vault)
	if v.Status != domain.VaultActive || v.Agent != fresh {
		t.Fatalf("expected active vault with rotated agent, got %+v", v)
	}
}

func TestUpdatePolicyAtomicity(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(newTestClock())
	vault := newFundedVault(t, e, 0)

	before, _ := e.GetPolicy(vault)

	// 11 токенов превышает предел белого списка: обновление отклоняется
	// целиком, хотя дневной лимит в нем валиден
	tooMany := make([]domain.Address, domain.MaxAllowedTokens+1)
	for i := range tooMany {
		tooMany[i] = domain.Address(string(rune('a' + i)))
	}
	newCap := uint64(42)

	_, err := e.UpdatePolicy(ctx, testOwner, vault, domain.PolicyUpdate{
		DailySpendingCap: &newCap,
		AllowedTokens:    &tooMany,
	})
	if err != domain.ErrTooManyAllowedTokens {
		t.Fatalf("expected ErrTooManyAllowedTokens, got %v", err)
	}

	after, _ := e.GetPolicy(vault)
	if after.DailySpendingCap != before.DailySpendingCap {
		t.Fatalf("rejected update leaked a field: cap %d -> %d",
			before.DailySpendingCap, after.DailySpendingCap)
	}
	if len(after.AllowedTokens) != len(before.AllowedTokens) {
		t.Fatal("rejected update leaked the token whitelist")
	}
}

func TestUpdatePolicyPartial(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(newTestClock())
	vault := newFundedVault(t, e, 0)

	newCap := uint64(777)
	updated, err := e.UpdatePolicy(ctx, testOwner, vault, domain.PolicyUpdate{
		DailySpendingCap: &newCap,
	})
	if err != nil {
		t.Fatalf("UpdatePolicy: %v", err)
	}
	if updated.DailySpendingCap != 777 {
		t.Fatalf("cap not applied: %d", updated.DailySpendingCap)
	}
	// Не названные поля не тронуты
	if updated.MaxTransactionSize != 100_000_000 || len(updated.AllowedTokens) != 1 {
		t.Fatalf("partial update touched unrelated fields: %+v", updated)
	}
}

func TestDepositWithdrawRoundtrip(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(newTestClock())
	vault := newFundedVault(t, e, 1_000)

	if err := e.Withdraw(ctx, testOwner, vault, testToken, 400); err != nil {
		t.Fatalf("Withdraw: %v", err)
	}
	if got, _ := e.GetBalance(vault, testToken); got != 600 {
		t.Fatalf("vault balance = %d, want 600", got)
	}
	if got := e.Accounts().Balance(testOwner, testToken); got != 400 {
		t.Fatalf("owner account = %d, want 400", got)
	}

	if err := e.Withdraw(ctx, testOwner, vault, testToken, 601); err != domain.ErrInsufficientBalance {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	if err := e.Withdraw(ctx, testAgent, vault, testToken, 1); err != domain.ErrUnauthorizedOwner {
		t.Fatalf("expected ErrUnauthorizedOwner for non-owner, got %v", err)
	}
}

func TestCloseVaultRules(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(newTestClock())
	vault := newFundedVault(t, e, 10_000_000)

	// С открытой позицией закрыть нельзя
	authorizeOK(t, e, vault, domain.ActionOpenPosition, 100)
	if _, err := e.FinalizeSession(ctx, FinalizeRequest{
		Caller: testAgent, Vault: vault, Agent: testAgent, Success: true,
	}); err != nil {
		t.Fatalf("finalize open: %v", err)
	}
	if err := e.CloseVault(ctx, testOwner, vault); err != domain.ErrOpenPositionsExist {
		t.Fatalf("expected ErrOpenPositionsExist, got %v", err)
	}

	// Закрываем позицию и само хранилище
	authorizeOK(t, e, vault, domain.ActionClosePosition, 100)
	if _, err := e.FinalizeSession(ctx, FinalizeRequest{
		Caller: testAgent, Vault: vault, Agent: testAgent, Success: true,
	}); err != nil {
		t.Fatalf("finalize close: %v", err)
	}

	balanceBefore, _ := e.GetBalance(vault, testToken)
	if err := e.CloseVault(ctx, testOwner, vault); err != nil {
		t.Fatalf("CloseVault: %v", err)
	}

	// Остатки выметены владельцу, статус терминален
	if got := e.Accounts().Balance(testOwner, testToken); got != balanceBefore {
		t.Fatalf("owner swept %d, want %d", got, balanceBefore)
	}
	v, _ := e.GetVault(vault)
	if v.Status != domain.VaultClosed {
		t.Fatalf("expected CLOSED, got %s", v.Status)
	}
	if err := e.Deposit(ctx, testOwner, vault, testToken, 1); err != domain.ErrVaultClosed {
		t.Fatalf("expected ErrVaultClosed on deposit, got %v", err)
	}
	if err := e.RegisterAgent(ctx, testOwner, vault, testAgent); err != domain.ErrVaultClosed {
		t.Fatalf("expected ErrVaultClosed on register, got %v", err)
	}
}

func TestInitializeVaultValidation(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(newTestClock())

	_, err := e.InitializeVault(ctx, InitializeVaultRequest{
		Owner: testOwner, VaultID: 1, FeeDestination: domain.ZeroAddress,
	})
	if err != domain.ErrInvalidFeeDestination {
		t.Fatalf("expected ErrInvalidFeeDestination, got %v", err)
	}

	_, err = e.InitializeVault(ctx, InitializeVaultRequest{
		Owner: testOwner, VaultID: 1, FeeDestination: testFeeDest,
		DeveloperFeeRate: domain.MaxDeveloperFeeRate + 1,
	})
	if err != domain.ErrDeveloperFeeTooHigh {
		t.Fatalf("expected ErrDeveloperFeeTooHigh, got %v", err)
	}
}
