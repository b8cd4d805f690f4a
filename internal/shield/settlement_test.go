package shield

import (
	"context"
	"testing"

	"github.com/xela07ax/agent-shield-gateway/internal/domain"
)

func TestFinalizeSuccessMovesFees(t *testing.T) {
	e := newTestEngine(newTestClock())
	vault := newFundedVault(t, e, 10_000_000)
	ctx := context.Background()

	// 1_000_000 * 20 / 1_000_000 = 20; * 50 / 1_000_000 = 50
	authorizeOK(t, e, vault, domain.ActionSwap, 1_000_000)

	res, err := e.FinalizeSession(ctx, FinalizeRequest{
		Caller: testAgent, Vault: vault, Agent: testAgent, Success: true,
	})
	if err != nil {
		t.Fatalf("FinalizeSession: %v", err)
	}
	if !res.Success || res.Expired {
		t.Fatalf("expected successful non-expired settlement, got %+v", res)
	}
	if res.ProtocolFee != 20 {
		t.Fatalf("expected protocol fee 20, got %d", res.ProtocolFee)
	}
	if res.DeveloperFee != 50 {
		t.Fatalf("expected developer fee 50, got %d", res.DeveloperFee)
	}

	if got := e.Accounts().Balance(domain.ProtocolTreasury, testToken); got != 20 {
		t.Fatalf("treasury balance = %d, want 20", got)
	}
	if got := e.Accounts().Balance(testFeeDest, testToken); got != 50 {
		t.Fatalf("fee destination balance = %d, want 50", got)
	}
	if got, _ := e.GetBalance(vault, testToken); got != 10_000_000-70 {
		t.Fatalf("vault balance = %d, want %d", got, 10_000_000-70)
	}

	v, _ := e.GetVault(vault)
	if v.TotalTransactions != 1 || v.TotalVolume != 1_000_000 || v.TotalFeesCollected != 50 {
		t.Fatalf("counters not applied: %+v", v)
	}
}

func TestFinalizeDustAmountNoFees(t *testing.T) {
	e := newTestEngine(newTestClock())
	vault := newFundedVault(t, e, 1_000)
	ctx := context.Background()

	// 100 * 20 / 1_000_000 == 0: комиссия законно нулевая
	authorizeOK(t, e, vault, domain.ActionSwap, 100)
	res, err := e.FinalizeSession(ctx, FinalizeRequest{
		Caller: testAgent, Vault: vault, Agent: testAgent, Success: true,
	})
	if err != nil {
		t.Fatalf("FinalizeSession: %v", err)
	}
	if res.ProtocolFee != 0 || res.DeveloperFee != 0 {
		t.Fatalf("expected zero fees for dust amount, got %d/%d", res.ProtocolFee, res.DeveloperFee)
	}
	if got, _ := e.GetBalance(vault, testToken); got != 1_000 {
		t.Fatalf("vault balance must be untouched, got %d", got)
	}
}

func TestFinalizeFailureSkipsAccounting(t *testing.T) {
	e := newTestEngine(newTestClock())
	vault := newFundedVault(t, e, 10_000_000)
	ctx := context.Background()

	authorizeOK(t, e, vault, domain.ActionSwap, 1_000_000)
	res, err := e.FinalizeSession(ctx, FinalizeRequest{
		Caller: testAgent, Vault: vault, Agent: testAgent, Success: false,
	})
	if err != nil {
		t.Fatalf("FinalizeSession: %v", err)
	}
	if res.Success {
		t.Fatal("expected failed settlement")
	}

	v, _ := e.GetVault(vault)
	if v.TotalTransactions != 0 || v.TotalVolume != 0 || v.TotalFeesCollected != 0 {
		t.Fatalf("failed settlement must not touch counters: %+v", v)
	}
	if got := e.Accounts().Balance(domain.ProtocolTreasury, testToken); got != 0 {
		t.Fatalf("failed settlement must not move fees, treasury = %d", got)
	}

	// Но запись в аудит-кольцо есть
	ring, _ := e.GetAuditRing(vault)
	if len(ring) != 1 || ring[0].Success {
		t.Fatalf("expected one failed record in the ring, got %+v", ring)
	}
}

func TestFinalizeExpiredForcedFailure(t *testing.T) {
	clock := newTestClock()
	e := newTestEngine(clock)
	vault := newFundedVault(t, e, 10_000_000)
	ctx := context.Background()

	authorizeOK(t, e, vault, domain.ActionSwap, 1_000_000)

	// Слот за пределом expires_at_slot
	clock.slot += domain.SessionExpirySlots + 1

	// Заявленный success игнорируется; вызывающий — вообще посторонний
	res, err := e.FinalizeSession(ctx, FinalizeRequest{
		Caller: "random-cleaner", Vault: vault, Agent: testAgent, Success: true,
	})
	if err != nil {
		t.Fatalf("permissionless cleanup failed: %v", err)
	}
	if res.Success || !res.Expired {
		t.Fatalf("expired session must settle as failure, got %+v", res)
	}
	if res.ProtocolFee != 0 || res.DeveloperFee != 0 {
		t.Fatal("expired settlement must not move fees")
	}

	// Слот (vault, agent) освобожден для нового допуска
	authorizeOK(t, e, vault, domain.ActionSwap, 100)
}

func TestFinalizeWrongCallerBeforeExpiry(t *testing.T) {
	e := newTestEngine(newTestClock())
	vault := newFundedVault(t, e, 10_000_000)

	authorizeOK(t, e, vault, domain.ActionSwap, 100)

	_, err := e.FinalizeSession(context.Background(), FinalizeRequest{
		Caller: "random-cleaner", Vault: vault, Agent: testAgent, Success: true,
	})
	if err != domain.ErrUnauthorizedAgent {
		t.Fatalf("expected ErrUnauthorizedAgent for live session, got %v", err)
	}
}

func TestFinalizeTwiceImpossible(t *testing.T) {
	e := newTestEngine(newTestClock())
	vault := newFundedVault(t, e, 10_000_000)
	ctx := context.Background()

	authorizeOK(t, e, vault, domain.ActionSwap, 1_000_000)
	if _, err := e.FinalizeSession(ctx, FinalizeRequest{
		Caller: testAgent, Vault: vault, Agent: testAgent, Success: true,
	}); err != nil {
		t.Fatalf("first finalize: %v", err)
	}

	// Capability потреблена — записи больше не существует
	_, err := e.FinalizeSession(ctx, FinalizeRequest{
		Caller: testAgent, Vault: vault, Agent: testAgent, Success: true,
	})
	if err != domain.ErrInvalidSession {
		t.Fatalf("expected ErrInvalidSession on replay, got %v", err)
	}
}

func TestFinalizePositionCounting(t *testing.T) {
	e := newTestEngine(newTestClock())
	vault := newFundedVault(t, e, 10_000_000)
	ctx := context.Background()

	settle := func(action domain.ActionType, success bool) *FinalizeResult {
		authorizeOK(t, e, vault, action, 100)
		res, err := e.FinalizeSession(ctx, FinalizeRequest{
			Caller: testAgent, Vault: vault, Agent: testAgent, Success: success,
		})
		if err != nil {
			t.Fatalf("settle(%s): %v", action, err)
		}
		return res
	}

	settle(domain.ActionOpenPosition, true)
	settle(domain.ActionOpenPosition, true)
	if v, _ := e.GetVault(vault); v.OpenPositions != 2 {
		t.Fatalf("expected 2 open positions, got %d", v.OpenPositions)
	}

	// Неуспешное закрытие не трогает счетчик
	settle(domain.ActionClosePosition, false)
	if v, _ := e.GetVault(vault); v.OpenPositions != 2 {
		t.Fatalf("failed close must not decrement, got %d", v.OpenPositions)
	}

	settle(domain.ActionClosePosition, true)
	if v, _ := e.GetVault(vault); v.OpenPositions != 1 {
		t.Fatalf("expected 1 open position, got %d", v.OpenPositions)
	}
}

func TestFinalizeCloseBelowZeroIsHardFailure(t *testing.T) {
	e := newTestEngine(newTestClock())
	vault := newFundedVault(t, e, 10_000_000)
	ctx := context.Background()

	// Закрытие при нуле открытых позиций — underflow, расчет отклонен целиком
	authorizeOK(t, e, vault, domain.ActionClosePosition, 1_000_000)
	_, err := e.FinalizeSession(ctx, FinalizeRequest{
		Caller: testAgent, Vault: vault, Agent: testAgent, Success: true,
	})
	if err != domain.ErrOverflow {
		t.Fatalf("expected ErrOverflow on position underflow, got %v", err)
	}

	// Атомарность: ни комиссий, ни счетчиков, сессия не потреблена
	v, _ := e.GetVault(vault)
	if v.TotalTransactions != 0 || v.TotalFeesCollected != 0 {
		t.Fatalf("rejected settlement must not mutate vault: %+v", v)
	}
	if got := e.Accounts().Balance(domain.ProtocolTreasury, testToken); got != 0 {
		t.Fatalf("rejected settlement must not move fees, treasury = %d", got)
	}
	if e.sessions.Len() != 1 {
		t.Fatal("rejected settlement must keep the session for retry")
	}
}

func TestFinalizeInsufficientBalanceForFees(t *testing.T) {
	e := newTestEngine(newTestClock())
	vault := newFundedVault(t, e, 10) // меньше, чем 70 суммарной комиссии
	ctx := context.Background()

	authorizeOK(t, e, vault, domain.ActionSwap, 1_000_000)
	_, err := e.FinalizeSession(ctx, FinalizeRequest{
		Caller: testAgent, Vault: vault, Agent: testAgent, Success: true,
	})
	if err != domain.ErrInsufficientBalance {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
}
